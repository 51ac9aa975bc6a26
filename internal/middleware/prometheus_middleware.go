package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// unmatchedPath - метка для запросов, не попавших ни в один маршрут
const unmatchedPath = "unmatched"

// PrometheusMiddleware собирает HTTP-метрики REST API:
//   - <ns>_http_requests_total{method,path,status}
//   - <ns>_http_request_duration_seconds{method,path,status}
//   - <ns>_http_response_size_bytes{path}
//   - <ns>_http_requests_inflight
//   - <ns>_http_request_errors_total{method,path,status} (4xx/5xx)
//
// path - шаблон маршрута gin (/api/layouts/:id), а не сырой URL.
type PrometheusMiddleware struct {
	reqTotal    *prometheus.CounterVec
	reqDuration *prometheus.HistogramVec
	respSize    *prometheus.HistogramVec
	reqInflight prometheus.Gauge
	reqErrors   *prometheus.CounterVec
}

// NewPrometheusMiddleware создаёт middleware и регистрирует метрики в reg.
func NewPrometheusMiddleware(namespace string, reg prometheus.Registerer) *PrometheusMiddleware {
	labels := []string{"method", "path", "status"}
	pm := &PrometheusMiddleware{
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Общее число HTTP-запросов.",
		}, labels),
		reqDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Длительность HTTP-запросов.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		}, labels),
		respSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "Размер тела HTTP-ответа.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		}, []string{"path"}),
		reqInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_inflight",
			Help:      "Текущее количество обрабатываемых HTTP-запросов.",
		}),
		reqErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_request_errors_total",
			Help:      "Запросы, завершившиеся ошибкой (4xx/5xx).",
		}, labels),
	}

	reg.MustRegister(pm.reqTotal, pm.reqDuration, pm.respSize, pm.reqInflight, pm.reqErrors)
	return pm
}

// Handler возвращает gin.HandlerFunc для router.Use().
func (pm *PrometheusMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		pm.reqInflight.Inc()
		defer pm.reqInflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = unmatchedPath
		}
		code := c.Writer.Status()
		status := strconv.Itoa(code)
		method := c.Request.Method

		pm.reqTotal.WithLabelValues(method, path, status).Inc()
		pm.reqDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size > 0 {
			pm.respSize.WithLabelValues(path).Observe(float64(size))
		}
		if code >= 400 {
			pm.reqErrors.WithLabelValues(method, path, status).Inc()
		}
	}
}

// RegisterMetricsEndpoint добавляет GET /metrics в указанный router.
func (pm *PrometheusMiddleware) RegisterMetricsEndpoint(r gin.IRoutes, gatherer prometheus.Gatherer) {
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}
