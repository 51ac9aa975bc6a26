package eventbus

import (
	"time"

	"github.com/annel0/layoutd/internal/config"
	"github.com/annel0/layoutd/internal/logging"
)

// DefaultMemoryCapacity - размер очереди шины в памяти
const DefaultMemoryCapacity = 1024

// Open создаёт шину по конфигурации: JetStream при заданном URL, иначе в памяти
func Open(cfg config.EventBusConfig) (EventBus, error) {
	if cfg.URL == "" {
		logging.Info("📨 Event bus: in-memory (capacity %d)", DefaultMemoryCapacity)
		return NewMemoryBus(DefaultMemoryCapacity), nil
	}
	return NewJetStreamBus(cfg.URL, cfg.Stream, time.Duration(cfg.Retention)*time.Hour)
}
