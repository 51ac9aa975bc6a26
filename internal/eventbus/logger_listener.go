package eventbus

import (
	"context"

	"github.com/annel0/layoutd/internal/logging"
)

// StartLoggingListener подписывается на все события и пишет их в лог компонента eventbus.
// Функция неблокирующая.
func StartLoggingListener(ctx context.Context, bus EventBus) (Subscription, error) {
	log := logging.GetEventBusLogger()

	sub, err := bus.Subscribe(ctx, Filter{}, func(ctx context.Context, ev *Envelope) {
		fields, err := DecodePayload(ev.Payload)
		if err != nil {
			log.Warn("[EventBus] %s %s: payload не разобран: %v", ev.ID, ev.EventType, err)
			return
		}
		log.Debug("[EventBus] %s %s src=%s prio=%d corr=%s %v", ev.ID, ev.EventType, ev.Source, ev.Priority, ev.CorrelationID, fields)
	})
	if err != nil {
		return nil, err
	}
	log.Info("🪵 LoggingListener: подписка на все события активирована")
	return sub, nil
}
