package eventbus

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrBusClosed возвращается при публикации в закрытую шину
var ErrBusClosed = errors.New("event bus closed")

// Envelope описывает универсальный контейнер события.
type Envelope struct {
	ID            string            `json:"id"`             // UUID
	Timestamp     time.Time         `json:"timestamp"`      // UTC
	Source        string            `json:"source"`         // Имя сервиса-источника
	EventType     string            `json:"event_type"`     // LayoutDecoded, LayoutSaved…
	Version       int               `json:"version"`        // Схема полезной нагрузки
	CorrelationID string            `json:"correlation_id"` // Для связывания цепочек (request id)
	Priority      int               `json:"priority"`       // 0=Low … 9=Critical (для backpressure)
	Payload       []byte            `json:"payload"`        // protobuf (structpb.Struct)
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// NewEnvelope заполняет служебные поля события.
func NewEnvelope(eventType string, priority int, payload []byte) *Envelope {
	return &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    DefaultSource,
		EventType: eventType,
		Version:   PayloadVersion,
		Priority:  priority,
		Payload:   payload,
	}
}

// Filter позволяет подписаться только на нужные события.
type Filter struct {
	Types   []string // Если пусто — все типы.
	Sources []string // Если пусто — все источники.
}

// Subscription возвращается при подписке; позволяет отписаться.
type Subscription interface {
	Unsubscribe()
}

// Handler потребляет события.
type Handler func(ctx context.Context, ev *Envelope)

// Stats агрегированные метрики шины.
type Stats struct {
	Published uint64
	Consumed  uint64
	Dropped   uint64
	InFlight  int
}

// EventBus определяет абстракцию шины событий.
type EventBus interface {
	Publish(ctx context.Context, ev *Envelope) error
	Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error)
	Metrics() Stats
	Close() error
}

//================ In-Memory implementation =================//

type memoryBus struct {
	mu          sync.RWMutex
	subscribers map[int]subscriber
	nextID      int
	statsMu     sync.Mutex
	stats       Stats
	buffer      chan *Envelope
	done        chan struct{}
	closeOnce   sync.Once
	wg          sync.WaitGroup
}

type subscriber struct {
	filter  Filter
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewMemoryBus создаёт in-memory Bus с указанным буфером.
func NewMemoryBus(capacity int) EventBus {
	if capacity <= 0 {
		capacity = 1
	}
	mb := &memoryBus{
		subscribers: make(map[int]subscriber),
		buffer:      make(chan *Envelope, capacity),
		done:        make(chan struct{}),
	}
	mb.wg.Add(1)
	go mb.dispatchLoop()
	return mb
}

func (mb *memoryBus) Publish(ctx context.Context, ev *Envelope) error {
	select {
	case <-mb.done:
		return ErrBusClosed
	default:
	}

	select {
	case mb.buffer <- ev:
		mb.countPublished()
		return nil
	default:
	}

	// Буфер заполнен — низкий приоритет (<5) отбрасываем
	if ev.Priority < 5 {
		mb.countDropped()
		return nil
	}
	// Для High-priority ждём освобождения места или отмены контекста
	select {
	case mb.buffer <- ev:
		mb.countPublished()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-mb.done:
		return ErrBusClosed
	}
}

func (mb *memoryBus) countPublished() { mb.statsMu.Lock(); mb.stats.Published++; mb.statsMu.Unlock() }
func (mb *memoryBus) countDropped()   { mb.statsMu.Lock(); mb.stats.Dropped++; mb.statsMu.Unlock() }
func (mb *memoryBus) countConsumed()  { mb.statsMu.Lock(); mb.stats.Consumed++; mb.statsMu.Unlock() }

func (mb *memoryBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	select {
	case <-mb.done:
		return nil, ErrBusClosed
	default:
	}

	mb.mu.Lock()
	id := mb.nextID
	mb.nextID++
	cctx, cancel := context.WithCancel(ctx)
	mb.subscribers[id] = subscriber{filter: f, handler: h, ctx: cctx, cancel: cancel}
	mb.mu.Unlock()

	return &memSub{bus: mb, id: id}, nil
}

func (mb *memoryBus) Metrics() Stats {
	mb.statsMu.Lock()
	s := mb.stats
	mb.statsMu.Unlock()
	s.InFlight = len(mb.buffer)
	return s
}

// Close прекращает приём событий; уже принятые доставляются до возврата.
func (mb *memoryBus) Close() error {
	mb.closeOnce.Do(func() { close(mb.done) })
	mb.wg.Wait()
	return nil
}

// dispatchLoop рассылает события подписчикам.
func (mb *memoryBus) dispatchLoop() {
	defer mb.wg.Done()
	var handlers sync.WaitGroup
	defer handlers.Wait()

	for {
		select {
		case ev := <-mb.buffer:
			mb.dispatch(ev, &handlers)
		case <-mb.done:
			for {
				select {
				case ev := <-mb.buffer:
					mb.dispatch(ev, &handlers)
				default:
					return
				}
			}
		}
	}
}

func (mb *memoryBus) dispatch(ev *Envelope, handlers *sync.WaitGroup) {
	mb.mu.RLock()
	subs := make([]subscriber, 0, len(mb.subscribers))
	for _, sub := range mb.subscribers {
		subs = append(subs, sub)
	}
	mb.mu.RUnlock()

	for _, sub := range subs {
		if !matchFilter(ev, sub.filter) {
			continue
		}
		handlers.Add(1)
		go func(s subscriber) {
			defer handlers.Done()
			select {
			case <-s.ctx.Done():
				return
			default:
				s.handler(s.ctx, ev)
				mb.countConsumed()
			}
		}(sub)
	}
}

func matchFilter(ev *Envelope, f Filter) bool {
	match := func(val string, arr []string) bool {
		if len(arr) == 0 {
			return true
		}
		for _, v := range arr {
			if v == val {
				return true
			}
		}
		return false
	}
	return match(ev.EventType, f.Types) && match(ev.Source, f.Sources)
}

type memSub struct {
	bus *memoryBus
	id  int
}

func (s *memSub) Unsubscribe() {
	s.bus.mu.Lock()
	if sub, ok := s.bus.subscribers[s.id]; ok {
		sub.cancel()
		delete(s.bus.subscribers, s.id)
	}
	s.bus.mu.Unlock()
}
