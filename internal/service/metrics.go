package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Исходы декодирования для layoutd_decode_total{outcome}
const (
	OutcomeOK       = "ok"
	OutcomeCached   = "cached"
	OutcomeRejected = "rejected"
)

type metrics struct {
	decodeTotal    *prometheus.CounterVec
	decodeErrors   *prometheus.CounterVec
	decodeDuration prometheus.Histogram
	layoutsSaved   prometheus.Counter
	layoutsDeleted prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		decodeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "layoutd",
			Name:      "decode_total",
			Help:      "Количество запросов декодирования по исходу.",
		}, []string{"outcome"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "layoutd",
			Name:      "decode_errors_total",
			Help:      "Отклонённые записи по виду ошибки.",
		}, []string{"kind"}),
		decodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "layoutd",
			Name:      "decode_duration_seconds",
			Help:      "Длительность декодирования (без попаданий в кэш).",
			Buckets:   []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05},
		}),
		layoutsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "layoutd",
			Name:      "layouts_saved_total",
			Help:      "Сохранённые записи раскладок.",
		}),
		layoutsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "layoutd",
			Name:      "layouts_deleted_total",
			Help:      "Удалённые записи раскладок.",
		}),
	}

	reg.MustRegister(m.decodeTotal, m.decodeErrors, m.decodeDuration, m.layoutsSaved, m.layoutsDeleted)
	return m
}
