package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/annel0/related-world/internal/app"
	"github.com/annel0/related-world/internal/hook"
	"github.com/annel0/related-world/internal/host"
	"github.com/annel0/related-world/internal/logging"
	"github.com/annel0/related-world/internal/middleware"
	"github.com/annel0/related-world/internal/relworld"
	"github.com/annel0/related-world/internal/vec"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RestServer представляет REST API администрирования вторичных миров
type RestServer struct {
	router     *gin.Engine
	sim        *app.Simulation
	webhooks   *OutboundWebhookManager
	port       int
	adminToken string
	metrics    *ServerMetrics
	httpServer *http.Server
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port        int
	Simulation  *app.Simulation
	Webhooks    *OutboundWebhookManager // nil — без управления webhook'ами
	Registry    *prometheus.Registry    // nil — дефолтный регистр процесса
	ServiceName string
	AdminToken  string // пусто — изменяющие запросы без авторизации
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) *RestServer {
	if config.Port == 0 {
		config.Port = 8088
	}
	if config.ServiceName == "" {
		config.ServiceName = "related-world"
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	// === Observability middleware ===
	router.Use(otelgin.Middleware(config.ServiceName))
	router.Use(middleware.NewRequestLogger().Handler())

	promMw := middleware.NewPrometheusMiddleware("rest_api", config.Registry)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router)

	router.Use(corsMiddleware())

	rs := &RestServer{
		router:     router,
		sim:        config.Simulation,
		webhooks:   config.Webhooks,
		port:       config.Port,
		adminToken: config.AdminToken,
		metrics:    NewServerMetrics(),
	}
	rs.setupRoutes()
	return rs
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	rs.router.GET("/health", rs.handleHealth)

	api := rs.router.Group("/api")
	api.GET("/stats", rs.handleStats)
	api.GET("/worlds", rs.handleListWorlds)
	api.GET("/worlds/:name", rs.handleGetWorld)
	api.GET("/actors", rs.handleListActors)
	api.GET("/actors/:id", rs.handleGetActor)
	api.GET("/hooks", rs.handleHookStatuses)

	admin := api.Group("")
	admin.Use(rs.adminMiddleware())
	{
		admin.POST("/worlds", rs.handleCreateWorld)
		admin.DELETE("/worlds/:name", rs.handleRemoveWorld)
		admin.POST("/worlds/:name/translate", rs.handleTranslateWorld)

		admin.POST("/actors", rs.handleSpawnActor)
		admin.DELETE("/actors/:id", rs.handleDestroyActor)
		admin.POST("/actors/:id/assign", rs.handleAssignActor)
		admin.POST("/actors/:id/move", rs.handleMoveActor)
		admin.POST("/actors/:id/adjust", rs.handleAdjustClient)

		admin.POST("/hooks/enable", rs.handleSetHooks(true))
		admin.POST("/hooks/disable", rs.handleSetHooks(false))
	}

	if rs.webhooks != nil {
		api.GET("/webhooks", rs.handleGetOutboundWebhooks)
		api.GET("/webhooks/events", rs.handleGetWebhookEventTypes)
		admin.POST("/webhooks", rs.handleCreateOutboundWebhook)
		admin.DELETE("/webhooks/:id", rs.handleDeleteOutboundWebhook)
		admin.POST("/webhooks/:id/test", rs.handleTestOutboundWebhook)
	}
}

// Handler возвращает http.Handler сервера
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// Start запускает REST сервер в отдельной горутине
func (rs *RestServer) Start() error {
	rs.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", rs.port),
		Handler:           rs.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := rs.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("❌ Ошибка REST API сервера: %v", err)
		}
	}()

	logging.Info("✅ REST API сервер запущен на http://localhost:%d", rs.port)
	logging.Info("   ❤️  Health check: http://localhost:%d/health", rs.port)
	return nil
}

// Stop останавливает REST сервер
func (rs *RestServer) Stop(ctx context.Context) error {
	if rs.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := rs.httpServer.Shutdown(ctx); err != nil {
		logging.Error("❌ Ошибка при остановке HTTP сервера: %v", err)
		return err
	}
	logging.Info("✅ REST API сервер остановлен")
	return nil
}

// statusFor сопоставляет доменную ошибку HTTP-статусу
func statusFor(err error) int {
	switch {
	case errors.Is(err, relworld.ErrWorldNotFound),
		errors.Is(err, host.ErrActorNotFound),
		errors.Is(err, hook.ErrClassNotFound):
		return http.StatusNotFound
	case errors.Is(err, relworld.ErrWorldExists),
		errors.Is(err, relworld.ErrNotMember),
		errors.Is(err, app.ErrNoObserver):
		return http.StatusConflict
	case errors.Is(err, app.ErrStopped),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logging.Error("[HTTP] %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, GenericResponse{Success: false, Message: err.Error()})
}

func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, GenericResponse{
		Success: false,
		Message: "Неверный формат запроса: " + err.Error(),
	})
}

func actorIDParam(c *gin.Context) (host.ActorID, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный ID сущности",
		})
		return 0, false
	}
	return host.ActorID(id), true
}

// handleHealth проверка состояния
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
		"ticks":  rs.sim.Ticks(),
	})
}

// handleStats статистика процесса и симуляции
func (rs *RestServer) handleStats(c *gin.Context) {
	worlds, err := rs.sim.Worlds(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статистика сервера",
		Data: gin.H{
			"uptime":         rs.metrics.GetUptime(),
			"memory":         rs.metrics.GetDetailedMemoryStats(),
			"ticks":          rs.sim.Ticks(),
			"worlds":         len(worlds),
			"remote_changes": rs.sim.RemoteChanges(),
		},
	})
}

// === Вторичные миры ===

type createWorldRequest struct {
	Name     string   `json:"name" binding:"required"`
	Origin   vec.Vec3 `json:"origin"`
	NetWorld *bool    `json:"net_world"` // по умолчанию сетевой мир
}

type translateWorldRequest struct {
	Origin vec.Vec3 `json:"origin"`
}

func (rs *RestServer) handleListWorlds(c *gin.Context) {
	worlds, err := rs.sim.Worlds(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if worlds == nil {
		worlds = []app.WorldInfo{}
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Список миров", Data: worlds})
}

func (rs *RestServer) handleGetWorld(c *gin.Context) {
	w, err := rs.sim.World(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Мир найден", Data: w})
}

func (rs *RestServer) handleCreateWorld(c *gin.Context) {
	var req createWorldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	netWorld := true
	if req.NetWorld != nil {
		netWorld = *req.NetWorld
	}

	w, err := rs.sim.CreateWorld(c.Request.Context(), req.Name, req.Origin, netWorld)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, GenericResponse{Success: true, Message: "Мир создан", Data: w})
}

func (rs *RestServer) handleRemoveWorld(c *gin.Context) {
	if err := rs.sim.RemoveWorld(c.Request.Context(), c.Param("name")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Мир удалён"})
}

func (rs *RestServer) handleTranslateWorld(c *gin.Context) {
	var req translateWorldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	name := c.Param("name")
	if err := rs.sim.TranslateWorld(ctx, name, req.Origin); err != nil {
		respondError(c, err)
		return
	}
	w, err := rs.sim.World(ctx, name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Начало координат мира сдвинуто", Data: w})
}

// === Сущности ===

type assignActorRequest struct {
	World string `json:"world" binding:"required"`
}

type moveActorRequest struct {
	Location vec.Vec3Float `json:"location"`
	Rotation vec.Rotator   `json:"rotation"`
}

type adjustClientRequest struct {
	TimeStamp            float32       `json:"timestamp"`
	Location             vec.Vec3Float `json:"location"`
	Velocity             vec.Vec3Float `json:"velocity"`
	Base                 string        `json:"base"`
	BaseBone             string        `json:"base_bone"`
	BaseRelativePosition bool          `json:"base_relative"`
	MovementMode         uint8         `json:"movement_mode"`
}

func (r adjustClientRequest) adjustment() host.ClientAdjustment {
	return host.ClientAdjustment{
		TimeStamp:            r.TimeStamp,
		NewLoc:               r.Location,
		NewVel:               r.Velocity,
		NewBase:              r.Base,
		NewBaseBoneName:      r.BaseBone,
		HasBase:              r.Base != "",
		BaseRelativePosition: r.BaseRelativePosition,
		ServerMovementMode:   r.MovementMode,
	}
}

func (rs *RestServer) handleListActors(c *gin.Context) {
	actors, err := rs.sim.Actors(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if actors == nil {
		actors = []app.ActorInfo{}
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Список сущностей", Data: actors})
}

func (rs *RestServer) handleGetActor(c *gin.Context) {
	id, ok := actorIDParam(c)
	if !ok {
		return
	}
	info, err := rs.sim.Actor(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Сущность найдена", Data: info})
}

func (rs *RestServer) handleSpawnActor(c *gin.Context) {
	var req app.SpawnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	info, err := rs.sim.SpawnActor(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, GenericResponse{Success: true, Message: "Сущность создана", Data: info})
}

func (rs *RestServer) handleDestroyActor(c *gin.Context) {
	id, ok := actorIDParam(c)
	if !ok {
		return
	}
	if err := rs.sim.DestroyActor(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Сущность уничтожена"})
}

func (rs *RestServer) handleAssignActor(c *gin.Context) {
	id, ok := actorIDParam(c)
	if !ok {
		return
	}
	var req assignActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	if err := rs.sim.AssignActor(ctx, id, req.World); err != nil {
		respondError(c, err)
		return
	}
	rs.respondActor(c, id, "Сущность привязана к миру")
}

func (rs *RestServer) handleMoveActor(c *gin.Context) {
	id, ok := actorIDParam(c)
	if !ok {
		return
	}
	var req moveActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	if err := rs.sim.MoveActor(c.Request.Context(), id, req.Location, req.Rotation); err != nil {
		respondError(c, err)
		return
	}
	rs.respondActor(c, id, "Сущность перемещена")
}

func (rs *RestServer) handleAdjustClient(c *gin.Context) {
	id, ok := actorIDParam(c)
	if !ok {
		return
	}
	var req adjustClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	if err := rs.sim.AdjustClient(c.Request.Context(), id, req.adjustment()); err != nil {
		respondError(c, err)
		return
	}
	rs.respondActor(c, id, "Поправка отправлена наблюдателю")
}

func (rs *RestServer) respondActor(c *gin.Context, id host.ActorID, message string) {
	info, err := rs.sim.Actor(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: message, Data: info})
}

// === Перехваты ===

func (rs *RestServer) handleHookStatuses(c *gin.Context) {
	statuses, err := rs.sim.HookStatuses(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Состояние перехватов", Data: statuses})
}

func (rs *RestServer) handleSetHooks(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := rs.sim.SetHooksEnabled(ctx, enabled); err != nil {
			respondError(c, err)
			return
		}
		logging.Info("🪝 Перехваты %s через REST", map[bool]string{true: "включены", false: "отключены"}[enabled])
		rs.handleHookStatuses(c)
	}
}

// === Исходящие webhook'и ===

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

func (rs *RestServer) handleCreateOutboundWebhook(c *gin.Context) {
	var webhook OutboundWebhook
	if err := c.ShouldBindJSON(&webhook); err != nil {
		respondBadRequest(c, err)
		return
	}
	created := rs.webhooks.AddWebhook(webhook)
	c.JSON(http.StatusCreated, GenericResponse{Success: true, Message: "Webhook создан", Data: created})
}

func (rs *RestServer) webhookIDParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный ID webhook'а",
		})
		return 0, false
	}
	return id, true
}

func (rs *RestServer) handleDeleteOutboundWebhook(c *gin.Context) {
	id, ok := rs.webhookIDParam(c)
	if !ok {
		return
	}
	if !rs.webhooks.DeleteWebhook(id) {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Webhook не найден"})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Webhook удален успешно"})
}

func (rs *RestServer) handleTestOutboundWebhook(c *gin.Context) {
	id, ok := rs.webhookIDParam(c)
	if !ok {
		return
	}
	webhook, exists := rs.webhooks.GetWebhook(id)
	if !exists {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Webhook не найден"})
		return
	}

	data := fmt.Sprintf(`{"webhook_id":%d,"message":"тестовое событие"}`, webhook.ID)
	rs.webhooks.SendEvent(EventWebhookTest, "rest_api", []byte(data))

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Тестовое событие отправлено",
		Data:    gin.H{"webhook_id": id, "sent_at": time.Now().Unix()},
	})
}

func (rs *RestServer) handleGetWebhookEventTypes(c *gin.Context) {
	types := rs.webhooks.EventTypes()
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Типы событий получены",
		Data:    gin.H{"event_types": types, "total": len(types)},
	})
}
