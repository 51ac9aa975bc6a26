package eventbus

import (
	"context"
	"sync"
)

var (
	globalMu  sync.RWMutex
	globalBus EventBus
)

// Init устанавливает глобальную шину.
func Init(bus EventBus) {
	globalMu.Lock()
	globalBus = bus
	globalMu.Unlock()
}

// Global возвращает глобальную шину или nil.
func Global() EventBus {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalBus
}

// Publish отправляет событие в глобальную шину, если она инициализирована.
func Publish(ctx context.Context, ev *Envelope) error {
	bus := Global()
	if bus == nil {
		return nil
	}
	return bus.Publish(ctx, ev)
}

type correlationKey struct{}

// WithCorrelationID сохраняет идентификатор запроса для событий, порождённых им.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationIDFrom возвращает идентификатор запроса или "".
func CorrelationIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
