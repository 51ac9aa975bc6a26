// Package service связывает декодер, кэш, хранилище и шину событий:
// каждая операция над раскладкой проходит через LayoutService.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/layoutd/internal/cache"
	"github.com/annel0/layoutd/internal/decoder"
	"github.com/annel0/layoutd/internal/eventbus"
	"github.com/annel0/layoutd/internal/layout"
	"github.com/annel0/layoutd/internal/logging"
	"github.com/annel0/layoutd/internal/storage"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrForbidden    = errors.New("not allowed to modify this layout")
	ErrMissingOwner = errors.New("owner is required")
	// ErrCorruptRecord - сохранённая запись больше не декодируется
	ErrCorruptRecord = errors.New("stored layout is not decodable")
)

const tracerName = "github.com/annel0/layoutd/internal/service"

// Options задаёт зависимости сервиса. Cache и Bus необязательны.
type Options struct {
	Decoder    *decoder.Decoder
	Repo       storage.RecordRepo
	Cache      cache.LayoutCache
	Bus        eventbus.EventBus
	Registerer prometheus.Registerer // nil — собственный реестр
	Tracer     trace.Tracer          // nil — глобальный TracerProvider
	Logger     *logging.Logger
}

// Actor - кто выполняет изменяющую операцию
type Actor struct {
	Name  string
	Admin bool
}

// DecodeResult - результат декодирования входа
type DecodeResult struct {
	Layout   *layout.Layout
	Record   string // текст записи после распаковки кода для обмена
	CacheKey string
	Cached   bool
}

// LayoutService - сервис раскладок
type LayoutService struct {
	decoder *decoder.Decoder
	repo    storage.RecordRepo
	cache   cache.LayoutCache
	bus     eventbus.EventBus
	tracer  trace.Tracer
	log     *logging.Logger
	metrics *metrics
	now     func() time.Time
}

// New создаёт сервис
func New(opts Options) (*LayoutService, error) {
	if opts.Repo == nil {
		return nil, errors.New("service: repository is required")
	}
	if opts.Decoder == nil {
		opts.Decoder = decoder.New(decoder.Options{})
	}
	if opts.Registerer == nil {
		opts.Registerer = prometheus.NewRegistry()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetDecoderLogger()
	}

	return &LayoutService{
		decoder: opts.Decoder,
		repo:    opts.Repo,
		cache:   opts.Cache,
		bus:     opts.Bus,
		tracer:  opts.Tracer,
		log:     opts.Logger,
		metrics: newMetrics(opts.Registerer),
		now:     time.Now,
	}, nil
}

// Decode принимает запись или код для обмена и возвращает раскладку.
// Повторные запросы той же записи обслуживаются из кэша.
func (s *LayoutService) Decode(ctx context.Context, input string) (*DecodeResult, error) {
	ctx, span := s.tracer.Start(ctx, "layout.decode")
	defer span.End()
	span.SetAttributes(attribute.Int("layout.input_bytes", len(input)))

	record, err := decoder.Normalize(input)
	if err != nil {
		return nil, s.reject(ctx, span, err)
	}

	key := cache.KeyForRecord(record)
	span.SetAttributes(attribute.String("layout.cache_key", key))

	if s.cache != nil {
		l, err := s.cache.Get(ctx, key)
		switch {
		case err == nil:
			s.metrics.decodeTotal.WithLabelValues(OutcomeCached).Inc()
			span.SetAttributes(attribute.Bool("layout.cached", true))
			s.publishDecoded(ctx, key, l, true, 0)
			return &DecodeResult{Layout: l, Record: record, CacheKey: key, Cached: true}, nil
		case !cache.IsCacheMiss(err):
			s.log.Warn("Кэш недоступен, декодируем напрямую: %v", err)
		}
	}

	start := time.Now()
	l, err := s.decoder.DecodeV2(record)
	elapsed := time.Since(start)
	s.metrics.decodeDuration.Observe(elapsed.Seconds())
	if err != nil {
		return nil, s.reject(ctx, span, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, l); err != nil {
			s.log.Warn("Не удалось записать в кэш %s: %v", key, err)
		}
	}

	s.metrics.decodeTotal.WithLabelValues(OutcomeOK).Inc()
	span.SetAttributes(
		attribute.Int("layout.height", l.Height()),
		attribute.Int("layout.width", l.Width()),
	)
	s.log.Debug("Декодирована раскладка %dx%d за %v", l.Height(), l.Width(), elapsed)
	s.publishDecoded(ctx, key, l, false, float64(elapsed.Microseconds())/1000)

	return &DecodeResult{Layout: l, Record: record, CacheKey: key}, nil
}

// reject учитывает отклонённый вход и возвращает исходную ошибку
func (s *LayoutService) reject(ctx context.Context, span trace.Span, err error) error {
	kind := decoder.Classify(err)
	s.metrics.decodeTotal.WithLabelValues(OutcomeRejected).Inc()
	s.metrics.decodeErrors.WithLabelValues(kind).Inc()

	span.RecordError(err)
	span.SetStatus(codes.Error, kind)
	span.SetAttributes(attribute.String("layout.error_kind", kind))

	s.log.Debug("Запись отклонена (%s): %v", kind, err)

	row, col, located := decoder.Position(err)
	ev, evErr := eventbus.NewLayoutRejectedEvent(kind, err.Error(), row, col, located)
	s.publish(ctx, ev, evErr)
	return err
}

// Save декодирует вход (невалидные записи не сохраняются) и сохраняет запись.
func (s *LayoutService) Save(ctx context.Context, owner, name, input string) (*storage.Record, *layout.Layout, error) {
	if owner == "" {
		return nil, nil, ErrMissingOwner
	}

	res, err := s.Decode(ctx, input)
	if err != nil {
		return nil, nil, err
	}

	ctx, span := s.tracer.Start(ctx, "layout.save")
	defer span.End()

	rec := &storage.Record{
		ID:        uuid.NewString(),
		Owner:     owner,
		Name:      name,
		Data:      res.Record,
		Height:    res.Layout.Height(),
		Width:     res.Layout.Width(),
		CreatedAt: s.now().UTC(),
	}
	span.SetAttributes(attribute.String("layout.id", rec.ID))

	if err := s.repo.Save(ctx, rec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		return nil, nil, fmt.Errorf("save layout: %w", err)
	}

	s.metrics.layoutsSaved.Inc()
	s.log.Info("💾 Раскладка %s (%dx%d) сохранена владельцем %s", rec.ID, rec.Height, rec.Width, owner)
	ev, evErr := eventbus.NewLayoutSavedEvent(rec.ID, owner, rec.Height, rec.Width)
	s.publish(ctx, ev, evErr)

	return rec, res.Layout, nil
}

// Get загружает запись и её раскладку
func (s *LayoutService) Get(ctx context.Context, id string) (*storage.Record, *layout.Layout, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	// Мимо Decode: повреждённое хранилище не считается отклонённым входом
	l, err := s.decoder.DecodeV2(rec.Data)
	if err != nil {
		s.log.Error("Сохранённая раскладка %s не декодируется: %v", id, err)
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrCorruptRecord, id, err)
	}
	return rec, l, nil
}

// List возвращает записи владельца (всех при owner == ""), новые первыми
func (s *LayoutService) List(ctx context.Context, owner string, limit int) ([]*storage.Record, error) {
	return s.repo.List(ctx, owner, limit)
}

// Delete удаляет запись. Удалять может владелец или администратор.
func (s *LayoutService) Delete(ctx context.Context, id string, by Actor) error {
	ctx, span := s.tracer.Start(ctx, "layout.delete")
	defer span.End()
	span.SetAttributes(attribute.String("layout.id", id))

	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !by.Admin && rec.Owner != by.Name {
		return fmt.Errorf("%w: %s", ErrForbidden, id)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	// Одинаковые записи делят ключ кэша; удаление одной из них лишь вытесняет запись
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, cache.KeyForRecord(rec.Data)); err != nil {
			s.log.Warn("Не удалось инвалидировать кэш для %s: %v", id, err)
		}
	}

	s.metrics.layoutsDeleted.Inc()
	s.log.Info("🗑️ Раскладка %s удалена (%s)", id, by.Name)
	ev, evErr := eventbus.NewLayoutDeletedEvent(id, rec.Owner)
	s.publish(ctx, ev, evErr)
	return nil
}

func (s *LayoutService) publishDecoded(ctx context.Context, key string, l *layout.Layout, cached bool, durationMs float64) {
	ev, err := eventbus.NewLayoutDecodedEvent(key, l.Height(), l.Width(), cached, durationMs)
	s.publish(ctx, ev, err)
}

// publish отправляет событие; ошибки шины не влияют на результат операции
func (s *LayoutService) publish(ctx context.Context, ev *eventbus.Envelope, buildErr error) {
	if s.bus == nil {
		return
	}
	if buildErr != nil {
		s.log.Error("Не удалось сформировать событие: %v", buildErr)
		return
	}
	ev.CorrelationID = eventbus.CorrelationIDFrom(ctx)
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		ev.Metadata = map[string]string{"trace_id": span.SpanContext().TraceID().String()}
	}
	if err := s.bus.Publish(ctx, ev); err != nil {
		s.log.Warn("Событие %s не опубликовано: %v", ev.EventType, err)
	}
}
