package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/annel0/layoutd/internal/auth"
	"github.com/annel0/layoutd/internal/decoder"
	"github.com/annel0/layoutd/internal/layout"
	"github.com/annel0/layoutd/internal/logging"
	"github.com/annel0/layoutd/internal/middleware"
	"github.com/annel0/layoutd/internal/service"
	"github.com/annel0/layoutd/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// MaxRequestBytes ограничивает тело запроса: запись 256x256 занимает около 230 КиБ
const MaxRequestBytes = 1 << 20

// RestServer представляет REST API сервер
type RestServer struct {
	router   *gin.Engine
	svc      *service.LayoutService
	auth     *auth.Authenticator
	metrics  *ServerMetrics
	webhooks *OutboundWebhookManager
	version  string
	log      *logging.Logger
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Service       *service.LayoutService
	Authenticator *auth.Authenticator
	Webhooks      *OutboundWebhookManager // nil — без управления webhook'ами
	Registerer    prometheus.Registerer
	Gatherer      prometheus.Gatherer
	Version       string
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) *RestServer {
	if config.Registerer == nil || config.Gatherer == nil {
		reg := prometheus.NewRegistry()
		config.Registerer, config.Gatherer = reg, reg
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// otelgin первым, чтобы RequestLogger увидел span
	router.Use(otelgin.Middleware("layoutd"))

	loggerMw := middleware.NewRequestLogger(logging.GetServerLogger())
	router.Use(loggerMw.Handler())

	promMw := middleware.NewPrometheusMiddleware("layoutd", config.Registerer)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, config.Gatherer)

	server := &RestServer{
		router:   router,
		svc:      config.Service,
		auth:     config.Authenticator,
		metrics:  NewServerMetrics(),
		webhooks: config.Webhooks,
		version:  config.Version,
		log:      logging.GetServerLogger(),
	}

	server.setupRoutes()

	return server
}

// Handler возвращает http.Handler сервера
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	// Middleware для CORS
	rs.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	api := rs.router.Group("/api")

	api.POST("/auth/login", rs.handleLogin)

	layouts := api.Group("/layouts")
	{
		layouts.POST("/decode", rs.handleDecode)
		layouts.GET("", rs.handleListLayouts)
		layouts.GET("/:id", rs.handleGetLayout)
	}

	// Защищенные эндпоинты (требуют JWT)
	protected := api.Group("")
	protected.Use(rs.jwtMiddleware())
	{
		protected.POST("/layouts", rs.handleSaveLayout)
		protected.DELETE("/layouts/:id", rs.handleDeleteLayout)
		protected.GET("/server", rs.handleServerInfo)

		if rs.webhooks != nil {
			admin := protected.Group("/admin")
			admin.Use(rs.adminMiddleware())
			{
				admin.GET("/webhooks", rs.handleGetOutboundWebhooks)
				admin.POST("/webhooks", rs.handleCreateOutboundWebhook)
				admin.GET("/webhooks/events", rs.handleGetWebhookEventTypes)
				admin.GET("/webhooks/:id", rs.handleGetOutboundWebhook)
				admin.DELETE("/webhooks/:id", rs.handleDeleteOutboundWebhook)
			}
		}
	}

	rs.router.GET("/health", rs.handleHealth)
}

// LoginRequest представляет запрос на вход
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse представляет ответ на вход
type LoginResponse struct {
	Success   bool   `json:"success"`
	Token     string `json:"token,omitempty"`
	ExpiresAt int64  `json:"expires_at,omitempty"` // unix, секунды
	Message   string `json:"message"`
	UserID    uint64 `json:"user_id,omitempty"`
	IsAdmin   bool   `json:"is_admin,omitempty"`
}

// DecodeRequest - тело POST /api/layouts/decode
type DecodeRequest struct {
	Input string `json:"input" binding:"required"`
}

// SaveRequest - тело POST /api/layouts
type SaveRequest struct {
	Name  string `json:"name"`
	Input string `json:"input" binding:"required"`
}

// LayoutView - раскладка в ответах API
type LayoutView struct {
	Cached   bool            `json:"cached"`
	CacheKey string          `json:"cache_key,omitempty"`
	Layout   layout.Snapshot `json:"layout"`
	Summary  layout.Summary  `json:"summary"`
	Render   string          `json:"render,omitempty"`
}

// RecordView - сохранённая запись вместе с раскладкой
type RecordView struct {
	Record *storage.Record `json:"record"`
	LayoutView
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse - ответ с ошибкой. Для ошибок декодирования заполняются
// error_kind и, если известна, позиция в сетке.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ErrorKind string `json:"error_kind,omitempty"`
	Row       *int   `json:"row,omitempty"`
	Col       *int   `json:"col,omitempty"`
}

func newLayoutView(l *layout.Layout, render bool) LayoutView {
	v := LayoutView{Layout: l.Snapshot(), Summary: l.Summarize()}
	if render {
		v.Render = l.String()
	}
	return v
}

// respondError переводит ошибку сервиса в HTTP-ответ
func (rs *RestServer) respondError(c *gin.Context, err error) {
	resp := ErrorResponse{Success: false, Message: err.Error()}
	status := http.StatusInternalServerError

	switch {
	case decoder.IsDecodeError(err):
		status = http.StatusUnprocessableEntity
		resp.ErrorKind = decoder.Classify(err)
		if row, col, ok := decoder.Position(err); ok {
			resp.Row, resp.Col = &row, &col
		}
	case errors.Is(err, storage.ErrRecordNotFound):
		status = http.StatusNotFound
		resp.ErrorKind = "not_found"
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
		resp.ErrorKind = "forbidden"
	case errors.Is(err, service.ErrMissingOwner), errors.Is(err, storage.ErrInvalidRecord):
		status = http.StatusBadRequest
		resp.ErrorKind = "bad_request"
	default:
		rs.log.Error("Ошибка обработки %s %s: %v", c.Request.Method, c.FullPath(), err)
		resp.Message = "Внутренняя ошибка сервера"
		resp.ErrorKind = "internal"
	}

	c.JSON(status, resp)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Message: message, ErrorKind: "bad_request"})
}

// bindJSON читает тело не больше MaxRequestBytes
func bindJSON(c *gin.Context, dst interface{}) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxRequestBytes)
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Success: false, Message: "Слишком большой запрос", ErrorKind: "too_large"})
			return false
		}
		badRequest(c, "Неверный формат запроса")
		return false
	}
	return true
}

// handleLogin обрабатывает запрос на вход
func (rs *RestServer) handleLogin(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := rs.auth.Login(req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, LoginResponse{
			Success: false,
			Message: "Неверное имя пользователя или пароль",
		})
		return
	}
	if err != nil {
		rs.log.Error("Ошибка входа %s: %v", req.Username, err)
		c.JSON(http.StatusInternalServerError, LoginResponse{
			Success: false,
			Message: "Внутренняя ошибка сервера",
		})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Success:   true,
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt.Unix(),
		Message:   "Успешный вход",
		UserID:    res.User.ID,
		IsAdmin:   res.User.IsAdmin,
	})
}

// handleDecode декодирует запись или код для обмена без сохранения
func (rs *RestServer) handleDecode(c *gin.Context) {
	var req DecodeRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := rs.svc.Decode(c.Request.Context(), req.Input)
	if err != nil {
		rs.respondError(c, err)
		return
	}

	view := newLayoutView(res.Layout, c.Query("render") == "true")
	view.Cached = res.Cached
	view.CacheKey = res.CacheKey
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Раскладка декодирована", Data: view})
}

// handleSaveLayout сохраняет запись от имени владельца токена
func (rs *RestServer) handleSaveLayout(c *gin.Context) {
	var req SaveRequest
	if !bindJSON(c, &req) {
		return
	}

	actor := actorFrom(c)
	rec, l, err := rs.svc.Save(c.Request.Context(), actor.Name, req.Name, req.Input)
	if err != nil {
		rs.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, GenericResponse{
		Success: true,
		Message: "Раскладка сохранена",
		Data:    RecordView{Record: rec, LayoutView: newLayoutView(l, false)},
	})
}

// handleGetLayout возвращает запись и её раскладку
func (rs *RestServer) handleGetLayout(c *gin.Context) {
	rec, l, err := rs.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		rs.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Раскладка найдена",
		Data:    RecordView{Record: rec, LayoutView: newLayoutView(l, c.Query("render") == "true")},
	})
}

// handleListLayouts возвращает последние записи, опционально одного владельца
func (rs *RestServer) handleListLayouts(c *gin.Context) {
	limit := storage.DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > storage.MaxListLimit {
			badRequest(c, "limit должен быть от 1 до "+strconv.Itoa(storage.MaxListLimit))
			return
		}
		limit = n
	}

	records, err := rs.svc.List(c.Request.Context(), c.Query("owner"), limit)
	if err != nil {
		rs.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Список раскладок",
		Data: gin.H{
			"layouts": records,
			"total":   len(records),
		},
	})
}

// handleDeleteLayout удаляет запись; разрешено владельцу и администратору
func (rs *RestServer) handleDeleteLayout(c *gin.Context) {
	id := c.Param("id")
	if err := rs.svc.Delete(c.Request.Context(), id, actorFrom(c)); err != nil {
		rs.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Раскладка удалена"})
}

// handleServerInfo возвращает информацию о сервере
func (rs *RestServer) handleServerInfo(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Информация о сервере",
		Data:    rs.metrics.Collect(rs.version),
	})
}

// handleHealth проверка состояния
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": rs.version,
		"time":    time.Now().Unix(),
	})
}

// === ОБРАБОТЧИКИ ИСХОДЯЩИХ WEBHOOK'ОВ ===

// handleGetOutboundWebhooks возвращает список исходящих webhook'ов
func (rs *RestServer) handleGetOutboundWebhooks(c *gin.Context) {
	webhooks := rs.webhooks.GetWebhooks()

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Список webhook'ов получен",
		Data: gin.H{
			"webhooks": webhooks,
			"total":    len(webhooks),
		},
	})
}

// handleCreateOutboundWebhook регистрирует webhook
func (rs *RestServer) handleCreateOutboundWebhook(c *gin.Context) {
	var req OutboundWebhook
	if !bindJSON(c, &req) {
		return
	}

	webhook, err := rs.webhooks.AddWebhook(req)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	rs.log.Info("🔗 Webhook %s (%s) добавлен пользователем %s", webhook.Name, webhook.URL, actorFrom(c).Name)
	c.JSON(http.StatusCreated, GenericResponse{Success: true, Message: "Webhook создан", Data: webhook})
}

// handleGetOutboundWebhook возвращает webhook по ID
func (rs *RestServer) handleGetOutboundWebhook(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "Неверный ID webhook'а")
		return
	}

	webhook, ok := rs.webhooks.GetWebhook(id)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Success: false, Message: "Webhook не найден", ErrorKind: "not_found"})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Webhook найден", Data: webhook})
}

// handleDeleteOutboundWebhook удаляет webhook
func (rs *RestServer) handleDeleteOutboundWebhook(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "Неверный ID webhook'а")
		return
	}

	if !rs.webhooks.DeleteWebhook(id) {
		c.JSON(http.StatusNotFound, ErrorResponse{Success: false, Message: "Webhook не найден", ErrorKind: "not_found"})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Webhook удален"})
}

// handleGetWebhookEventTypes возвращает доступные типы событий
func (rs *RestServer) handleGetWebhookEventTypes(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Типы событий",
		Data:    gin.H{"events": rs.webhooks.GetEventTypes()},
	})
}
