package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/layoutd/internal/logging"
	"github.com/nats-io/nats.go"
)

// NATSInvalidator реализует CacheInvalidator через NATS Pub/Sub:
// узлы layoutd сообщают друг другу об удалённых раскладках.
type NATSInvalidator struct {
	conn    *nats.Conn
	config  *InvalidatorConfig
	subject string
	nodeID  string

	subMu        sync.Mutex
	subscription *nats.Subscription
	handler      InvalidationHandler

	stopCh    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	// Дедупликация
	recentKeys map[string]time.Time
	keysMutex  sync.RWMutex

	publishedCount int64
	receivedCount  int64
	errorsCount    int64
}

// InvalidatorConfig содержит конфигурацию для NATS invalidator.
type InvalidatorConfig struct {
	NATSURL       string
	Subject       string
	MaxReconnects int
	ReconnectWait time.Duration
	DedupeWindow  time.Duration
}

// InvalidationMessage представляет сообщение об инвалидации кеша.
type InvalidationMessage struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	NodeID    string    `json:"node_id"`
	Reason    string    `json:"reason,omitempty"`
}

func (c *InvalidatorConfig) applyDefaults() {
	if c.Subject == "" {
		c.Subject = "layoutd.cache.invalidation"
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = 10
	}
	if c.ReconnectWait == 0 {
		c.ReconnectWait = 2 * time.Second
	}
	if c.DedupeWindow == 0 {
		c.DedupeWindow = 5 * time.Second
	}
}

// NewNATSInvalidator создаёт новый NATS invalidator.
//
// Параметры:
//
//	config - конфигурация NATS соединения
//	nodeID - уникальный идентификатор узла
func NewNATSInvalidator(config *InvalidatorConfig, nodeID string) (*NATSInvalidator, error) {
	config.applyDefaults()

	opts := []nats.Option{
		nats.Name("layoutd-cache-" + nodeID),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logging.Warn("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Info("NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logging.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(config.NATSURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	invalidator := newInvalidator(conn, config, nodeID)
	invalidator.startDedupeCleanup()

	logging.Info("NATS invalidator initialized: %s (subject: %s)", config.NATSURL, config.Subject)
	return invalidator, nil
}

func newInvalidator(conn *nats.Conn, config *InvalidatorConfig, nodeID string) *NATSInvalidator {
	config.applyDefaults()
	return &NATSInvalidator{
		conn:       conn,
		config:     config,
		subject:    config.Subject,
		nodeID:     nodeID,
		stopCh:     make(chan struct{}),
		recentKeys: make(map[string]time.Time),
	}
}

// PublishInvalidation отправляет уведомление об инвалидации ключа.
func (n *NATSInvalidator) PublishInvalidation(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.isDuplicate(key) {
		logging.Debug("Skipping duplicate invalidation for key: %s", key)
		return nil
	}

	data, err := json.Marshal(&InvalidationMessage{
		Key:       key,
		Timestamp: time.Now(),
		NodeID:    n.nodeID,
		Reason:    "layout_deleted",
	})
	if err != nil {
		atomic.AddInt64(&n.errorsCount, 1)
		return fmt.Errorf("failed to marshal invalidation message: %w", err)
	}

	if err := n.conn.Publish(n.subject, data); err != nil {
		atomic.AddInt64(&n.errorsCount, 1)
		return fmt.Errorf("failed to publish invalidation: %w", err)
	}

	n.recordKey(key)
	atomic.AddInt64(&n.publishedCount, 1)
	logging.Debug("Published invalidation for key: %s", key)
	return nil
}

// SubscribeInvalidations подписывается на уведомления об инвалидации.
// Подписка снимается при отмене ctx или Close.
func (n *NATSInvalidator) SubscribeInvalidations(ctx context.Context, handler InvalidationHandler) error {
	n.subMu.Lock()
	defer n.subMu.Unlock()

	if n.subscription != nil {
		return fmt.Errorf("already subscribed to invalidations")
	}

	n.handler = handler
	sub, err := n.conn.Subscribe(n.subject, n.handleInvalidationMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to invalidations: %w", err)
	}
	n.subscription = sub

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		select {
		case <-ctx.Done():
		case <-n.stopCh:
		}
		n.unsubscribe()
	}()

	logging.Info("Subscribed to cache invalidations on subject: %s", n.subject)
	return nil
}

// Close закрывает соединение с NATS.
func (n *NATSInvalidator) Close() error {
	n.closeOnce.Do(func() {
		close(n.stopCh)
		n.wg.Wait()
		n.unsubscribe()
		if n.conn != nil {
			n.conn.Close()
		}
	})
	return nil
}

// GetMetrics возвращает метрики invalidator.
func (n *NATSInvalidator) GetMetrics() map[string]interface{} {
	m := map[string]interface{}{
		"published_count": atomic.LoadInt64(&n.publishedCount),
		"received_count":  atomic.LoadInt64(&n.receivedCount),
		"errors_count":    atomic.LoadInt64(&n.errorsCount),
	}
	if n.conn != nil {
		m["connected"] = n.conn.IsConnected()
	}
	return m
}

// handleInvalidationMessage обрабатывает входящие сообщения об инвалидации.
func (n *NATSInvalidator) handleInvalidationMessage(msg *nats.Msg) {
	atomic.AddInt64(&n.receivedCount, 1)

	var invalidationMsg InvalidationMessage
	if err := json.Unmarshal(msg.Data, &invalidationMsg); err != nil {
		atomic.AddInt64(&n.errorsCount, 1)
		logging.Error("Failed to unmarshal invalidation message: %v", err)
		return
	}

	// Собственные сообщения уже применены локально
	if invalidationMsg.NodeID == n.nodeID {
		return
	}
	if n.isDuplicate(invalidationMsg.Key) {
		logging.Debug("Ignoring duplicate invalidation for key: %s", invalidationMsg.Key)
		return
	}
	n.recordKey(invalidationMsg.Key)

	if n.handler != nil {
		if err := n.handler(invalidationMsg.Key); err != nil {
			atomic.AddInt64(&n.errorsCount, 1)
			logging.Error("Invalidation handler failed for key %s: %v", invalidationMsg.Key, err)
		}
	}
}

func (n *NATSInvalidator) unsubscribe() {
	n.subMu.Lock()
	defer n.subMu.Unlock()

	if n.subscription != nil {
		if err := n.subscription.Unsubscribe(); err != nil {
			logging.Error("Failed to unsubscribe from invalidations: %v", err)
		}
		n.subscription = nil
	}
}

func (n *NATSInvalidator) isDuplicate(key string) bool {
	n.keysMutex.RLock()
	defer n.keysMutex.RUnlock()

	lastSeen, exists := n.recentKeys[key]
	return exists && time.Since(lastSeen) < n.config.DedupeWindow
}

func (n *NATSInvalidator) recordKey(key string) {
	n.keysMutex.Lock()
	n.recentKeys[key] = time.Now()
	n.keysMutex.Unlock()
}

// startDedupeCleanup запускает периодическую очистку дедупликации.
func (n *NATSInvalidator) startDedupeCleanup() {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ticker := time.NewTicker(n.config.DedupeWindow)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				n.cleanupDedupe()
			case <-n.stopCh:
				return
			}
		}
	}()
}

func (n *NATSInvalidator) cleanupDedupe() {
	n.keysMutex.Lock()
	defer n.keysMutex.Unlock()

	now := time.Now()
	for key, timestamp := range n.recentKeys {
		if now.Sub(timestamp) > n.config.DedupeWindow {
			delete(n.recentKeys, key)
		}
	}
}
