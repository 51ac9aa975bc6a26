package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/annel0/layoutd/internal/eventbus"
	"github.com/annel0/layoutd/internal/logging"
)

var ErrInvalidWebhook = errors.New("invalid webhook")

// OutboundWebhook представляет исходящий webhook
type OutboundWebhook struct {
	ID           uint64     `json:"id"`
	Name         string     `json:"name" binding:"required"`
	URL          string     `json:"url" binding:"required"`
	Secret       string     `json:"secret,omitempty"`
	Events       []string   `json:"events" binding:"required"` // События, на которые подписан; "*" — все
	Active       bool       `json:"active"`
	Timeout      int        `json:"timeout"` // Таймаут в секундах
	RetryCount   int        `json:"retry_count"`
	CreatedAt    time.Time  `json:"created_at"`
	LastUsed     *time.Time `json:"last_used,omitempty"`
	FailureCount int        `json:"failure_count"`
}

// OutboundWebhookEvent - тело запроса к webhook'у
type OutboundWebhookEvent struct {
	EventID       string                 `json:"event_id"`
	EventType     string                 `json:"event_type"`
	Timestamp     int64                  `json:"timestamp"`
	ServerID      string                 `json:"server_id"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Data          map[string]interface{} `json:"data"`
}

// OutboundWebhookManager пересылает события шины во внешние HTTP-эндпоинты
type OutboundWebhookManager struct {
	webhooks   map[uint64]*OutboundWebhook
	eventQueue chan OutboundWebhookEvent
	mu         sync.RWMutex
	nextID     uint64
	httpClient *http.Client
	serverID   string
	retryDelay time.Duration
	log        *logging.Logger

	quit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewOutboundWebhookManager создает новый менеджер исходящих webhook'ов
func NewOutboundWebhookManager(serverID string) *OutboundWebhookManager {
	manager := &OutboundWebhookManager{
		webhooks:   make(map[uint64]*OutboundWebhook),
		eventQueue: make(chan OutboundWebhookEvent, 1000),
		nextID:     1,
		serverID:   serverID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retryDelay: time.Second,
		log:        logging.GetServerLogger(),
		quit:       make(chan struct{}),
	}

	manager.wg.Add(1)
	go manager.eventWorker()

	return manager
}

// Attach подписывает менеджер на все события шины
func (owm *OutboundWebhookManager) Attach(ctx context.Context, bus eventbus.EventBus) (eventbus.Subscription, error) {
	return bus.Subscribe(ctx, eventbus.Filter{}, func(_ context.Context, ev *eventbus.Envelope) {
		owm.Enqueue(ev)
	})
}

// AddWebhook проверяет и добавляет новый webhook
func (owm *OutboundWebhookManager) AddWebhook(webhook OutboundWebhook) (*OutboundWebhook, error) {
	if err := validateWebhook(&webhook); err != nil {
		return nil, err
	}

	owm.mu.Lock()
	defer owm.mu.Unlock()

	webhook.ID = owm.nextID
	owm.nextID++
	webhook.CreatedAt = time.Now()
	webhook.Active = true
	webhook.LastUsed = nil
	webhook.FailureCount = 0

	if webhook.Timeout <= 0 {
		webhook.Timeout = 30
	}
	if webhook.RetryCount <= 0 {
		webhook.RetryCount = 3
	}

	stored := webhook
	owm.webhooks[webhook.ID] = &stored
	return &webhook, nil
}

func validateWebhook(w *OutboundWebhook) error {
	u, err := url.ParseRequestURI(w.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url must be absolute http(s)", ErrInvalidWebhook)
	}
	if len(w.Events) == 0 {
		return fmt.Errorf("%w: no events", ErrInvalidWebhook)
	}
	known := make(map[string]bool)
	for _, t := range eventbus.EventTypes() {
		known[t] = true
	}
	for _, e := range w.Events {
		if e != "*" && !known[e] {
			return fmt.Errorf("%w: unknown event %q", ErrInvalidWebhook, e)
		}
	}
	return nil
}

// GetWebhooks возвращает копии всех webhook'ов, отсортированные по ID
func (owm *OutboundWebhookManager) GetWebhooks() []OutboundWebhook {
	owm.mu.RLock()
	defer owm.mu.RUnlock()

	webhooks := make([]OutboundWebhook, 0, len(owm.webhooks))
	for _, webhook := range owm.webhooks {
		webhooks = append(webhooks, *webhook)
	}
	sort.Slice(webhooks, func(i, j int) bool { return webhooks[i].ID < webhooks[j].ID })
	return webhooks
}

// GetWebhook возвращает копию webhook по ID
func (owm *OutboundWebhookManager) GetWebhook(id uint64) (OutboundWebhook, bool) {
	owm.mu.RLock()
	defer owm.mu.RUnlock()

	webhook, exists := owm.webhooks[id]
	if !exists {
		return OutboundWebhook{}, false
	}
	return *webhook, true
}

// DeleteWebhook удаляет webhook
func (owm *OutboundWebhookManager) DeleteWebhook(id uint64) bool {
	owm.mu.Lock()
	defer owm.mu.Unlock()

	if _, exists := owm.webhooks[id]; !exists {
		return false
	}
	delete(owm.webhooks, id)
	return true
}

// Enqueue ставит событие шины в очередь отправки
func (owm *OutboundWebhookManager) Enqueue(ev *eventbus.Envelope) {
	data, err := eventbus.DecodePayload(ev.Payload)
	if err != nil {
		owm.log.Warn("⚠️ Событие %s с повреждённым payload пропущено: %v", ev.ID, err)
		return
	}

	event := OutboundWebhookEvent{
		EventID:       ev.ID,
		EventType:     ev.EventType,
		Timestamp:     ev.Timestamp.Unix(),
		ServerID:      owm.serverID,
		CorrelationID: ev.CorrelationID,
		Data:          data,
	}

	select {
	case <-owm.quit:
		return
	default:
	}

	select {
	case owm.eventQueue <- event:
		owm.log.Trace("📤 Событие %s добавлено в очередь webhook'ов", event.EventType)
	default:
		owm.log.Warn("⚠️ Очередь webhook'ов переполнена, событие %s пропущено", event.EventType)
	}
}

// Close останавливает отправку и дожидается текущих запросов
func (owm *OutboundWebhookManager) Close() {
	owm.closeOnce.Do(func() {
		close(owm.quit)
	})
	owm.wg.Wait()
}

// eventWorker обрабатывает события из очереди
func (owm *OutboundWebhookManager) eventWorker() {
	defer owm.wg.Done()
	for {
		select {
		case <-owm.quit:
			return
		case event := <-owm.eventQueue:
			owm.processEvent(event)
		}
	}
}

// processEvent обрабатывает одно событие
func (owm *OutboundWebhookManager) processEvent(event OutboundWebhookEvent) {
	owm.mu.RLock()
	webhooks := make([]OutboundWebhook, 0)
	for _, webhook := range owm.webhooks {
		if webhook.Active && isSubscribedToEvent(webhook, event.EventType) {
			webhooks = append(webhooks, *webhook)
		}
	}
	owm.mu.RUnlock()

	for _, webhook := range webhooks {
		owm.wg.Add(1)
		go func(w OutboundWebhook) {
			defer owm.wg.Done()
			owm.sendToWebhook(w, event)
		}(webhook)
	}
}

// isSubscribedToEvent проверяет, подписан ли webhook на событие
func isSubscribedToEvent(webhook *OutboundWebhook, eventType string) bool {
	for _, subscribedEvent := range webhook.Events {
		if subscribedEvent == eventType || subscribedEvent == "*" {
			return true
		}
	}
	return false
}

// sendToWebhook отправляет событие конкретному webhook'у с повторами
func (owm *OutboundWebhookManager) sendToWebhook(webhook OutboundWebhook, event OutboundWebhookEvent) {
	jsonData, err := json.Marshal(event)
	if err != nil {
		owm.log.Error("❌ Ошибка маршалинга события для webhook %s: %v", webhook.Name, err)
		return
	}

	var signature string
	if webhook.Secret != "" {
		signature = generateSignature(jsonData, webhook.Secret)
	}

	success := false
	for attempt := 0; attempt <= webhook.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-owm.quit:
				attempt = webhook.RetryCount + 1
				continue
			case <-time.After(time.Duration(attempt) * owm.retryDelay):
			}
		}

		status, err := owm.post(webhook, jsonData, event, signature)
		if err != nil {
			owm.log.Warn("⚠️ Попытка %d/%d для webhook %s: %v", attempt+1, webhook.RetryCount+1, webhook.Name, err)
			continue
		}
		if status >= 200 && status < 300 {
			success = true
			owm.log.Debug("✅ Событие %s отправлено в webhook %s", event.EventType, webhook.Name)
			break
		}
		owm.log.Warn("⚠️ Webhook %s вернул статус %d на попытке %d", webhook.Name, status, attempt+1)
	}

	owm.mu.Lock()
	if stored, ok := owm.webhooks[webhook.ID]; ok {
		now := time.Now()
		stored.LastUsed = &now
		if !success {
			stored.FailureCount++
		}
	}
	owm.mu.Unlock()
}

func (owm *OutboundWebhookManager) post(webhook OutboundWebhook, body []byte, event OutboundWebhookEvent, signature string) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(webhook.Timeout)*time.Second)
	defer cancel()

	// Тело запроса читается при каждой попытке заново
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "layoutd/1.0")
	req.Header.Set("X-Event-Type", event.EventType)
	req.Header.Set("X-Event-ID", event.EventID)
	req.Header.Set("X-Server-ID", event.ServerID)
	if signature != "" {
		req.Header.Set("X-Webhook-Signature", signature)
	}

	resp, err := owm.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// generateSignature генерирует HMAC подпись
func generateSignature(data []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// GetEventTypes возвращает доступные типы событий
func (owm *OutboundWebhookManager) GetEventTypes() []string {
	return eventbus.EventTypes()
}
