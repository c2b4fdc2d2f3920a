package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/treefell/internal/chop"
	"github.com/annel0/treefell/internal/eventbus"
	"github.com/annel0/treefell/internal/logging"
	"github.com/annel0/treefell/internal/middleware"
	"github.com/annel0/treefell/internal/player"
	"github.com/annel0/treefell/internal/vec"
	"github.com/annel0/treefell/internal/world"
)

const (
	defaultChopsLimit = 20
	maxChopsLimit     = 500
	breakWaitTimeout  = 10 * time.Second
)

// RestServer административный REST API сервера рубки
type RestServer struct {
	router  *gin.Engine
	srv     *http.Server
	world   *world.World
	chops   *chop.Orchestrator
	bus     eventbus.EventBus
	metrics *ServerMetrics
	log     *logging.Logger
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port         string             // адрес для запуска сервера, например ":8088"
	World        *world.World       // мир, в котором ломаются блоки
	Orchestrator *chop.Orchestrator // оркестратор рубки
	Bus          eventbus.EventBus  // шина для статистики, может быть nil
	Registerer   prometheus.Registerer
	Gatherer     prometheus.Gatherer // источник /metrics; nil - глобальный регистр
	ServiceName  string
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PreferenceRequest тело PUT /api/preferences/:player
type PreferenceRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// BreakRequest тело POST /api/break: игрок ломает блок
type BreakRequest struct {
	PlayerID   string        `json:"player_id"`
	PlayerName string        `json:"player_name"`
	Position   vec.Vec3Float `json:"position"` // позиция игрока
	Block      vec.Vec3      `json:"block"`
	Wait       bool          `json:"wait"` // дождаться итога рубки
}

// NewRestServer создает новый REST API сервер
func NewRestServer(cfg Config) (*RestServer, error) {
	if cfg.Orchestrator == nil || cfg.World == nil {
		return nil, errors.New("api: world and orchestrator are required")
	}
	if cfg.Port == "" {
		cfg.Port = ":8088"
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "treefell"
	}

	router := gin.New()
	router.Use(gin.Recovery())

	// === Observability middleware ===
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.NewRequestLogger(nil).Handler())

	promMw, err := middleware.NewPrometheusMiddleware("treefell_api", cfg.Registerer)
	if err != nil {
		return nil, err
	}
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, cfg.Gatherer)

	rs := &RestServer{
		router:  router,
		world:   cfg.World,
		chops:   cfg.Orchestrator,
		bus:     cfg.Bus,
		metrics: NewServerMetrics(),
		log:     logging.GetAPILogger(),
	}
	rs.srv = &http.Server{
		Addr:              cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	rs.setupRoutes()
	return rs, nil
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	rs.router.GET("/health", rs.handleHealth)

	api := rs.router.Group("/api")
	{
		api.GET("/stats", rs.handleStats)

		api.GET("/preferences/:player", rs.handleGetPreference)
		api.PUT("/preferences/:player", rs.handleSetPreference)

		api.GET("/chops", rs.handleRecentChops)
		api.GET("/chops/:id", rs.handleGetChop)
		api.POST("/break", rs.handleBreak)
	}
}

// Handler возвращает http.Handler сервера
func (rs *RestServer) Handler() http.Handler { return rs.router }

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: msg})
}

// handleHealth проверка состояния сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	status, code := "ok", http.StatusOK
	select {
	case <-rs.world.Done():
		status, code = "world_stopped", http.StatusServiceUnavailable
	default:
	}
	c.JSON(code, gin.H{
		"status": status,
		"tick":   rs.world.Tick(),
		"time":   time.Now().Unix(),
	})
}

// handleStats возвращает статистику рубок, мира и процесса
func (rs *RestServer) handleStats(c *gin.Context) {
	stats := map[string]interface{}{
		"chops": rs.chops.Stats(),
		"world": map[string]interface{}{
			"name":   rs.world.Name(),
			"seed":   rs.world.Seed(),
			"tick":   rs.world.Tick(),
			"chunks": rs.world.ChunkCount(),
			"items":  len(rs.world.Items()),
		},
	}
	if rs.bus != nil {
		stats["eventbus"] = rs.bus.Metrics()
	}

	cpuPercent, _ := rs.metrics.GetCPUUsage()
	rssMB, _ := rs.metrics.GetRSS()
	stats["server"] = map[string]interface{}{
		"uptime":      rs.metrics.GetUptime(),
		"rss_mb":      rssMB,
		"cpu_percent": cpuPercent,
		"server_time": time.Now().Unix(),
	}
	stats["memory_details"] = rs.metrics.GetDetailedMemoryStats()

	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Статистика получена", Data: stats})
}

func parsePlayer(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("player"))
	if err != nil {
		badRequest(c, "Неверный UUID игрока")
		return uuid.Nil, false
	}
	return id, true
}

// handleGetPreference возвращает настройку рубки игрока
func (rs *RestServer) handleGetPreference(c *gin.Context) {
	id, ok := parsePlayer(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Настройка игрока",
		Data:    gin.H{"player": id, "enabled": rs.chops.Preferences().IsEnabled(id)},
	})
}

// handleSetPreference включает или выключает рубку для игрока
func (rs *RestServer) handleSetPreference(c *gin.Context) {
	id, ok := parsePlayer(c)
	if !ok {
		return
	}
	var req PreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Неверный формат запроса")
		return
	}
	prefs := rs.chops.Preferences()
	prefs.Set(id, *req.Enabled)
	rs.log.Info("Рубка для игрока %s: %v", id, *req.Enabled)

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Настройка сохранена",
		Data:    gin.H{"player": id, "enabled": prefs.IsEnabled(id)},
	})
}

// handleRecentChops возвращает последние рубки из журнала
func (rs *RestServer) handleRecentChops(c *gin.Context) {
	limit := defaultChopsLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			badRequest(c, "limit должен быть положительным числом")
			return
		}
		limit = min(n, maxChopsLimit)
	}

	records, err := rs.chops.Journal().Recent(c.Request.Context(), limit)
	if err != nil {
		rs.log.Error("Не удалось прочитать журнал: %v", err)
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: "Журнал недоступен"})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Последние рубки", Data: records})
}

// handleGetChop возвращает состояние активной рубки
func (rs *RestServer) handleGetChop(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "Неверный ID рубки")
		return
	}
	ch, ok := rs.chops.Chop(id)
	if !ok {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Активная рубка не найдена"})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Рубка выполняется",
		Data:    gin.H{"id": ch.ID(), "state": ch.State().String()},
	})
}

// handleBreak ломает блок от имени игрока. Если блок является стволом дерева,
// запускается рубка; с wait=true ответ содержит её итог.
func (rs *RestServer) handleBreak(c *gin.Context) {
	var req BreakRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Неверный формат запроса")
		return
	}
	id := uuid.New()
	if req.PlayerID != "" {
		parsed, err := uuid.Parse(req.PlayerID)
		if err != nil {
			badRequest(c, "Неверный UUID игрока")
			return
		}
		id = parsed
	}
	p := player.New(id, req.PlayerName, req.Position)

	var (
		started *chop.Chop
		broken  bool
	)
	err := rs.world.ExecContext(c.Request.Context(), func(tx *world.Tx) {
		if tx.Material(req.Block).IsAir() {
			return
		}
		started, _ = rs.chops.Trigger(tx, p, req.Block)
		broken = tx.BreakBlock(req.Block, p)
	})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, GenericResponse{Success: false, Message: err.Error()})
		return
	}
	if !broken {
		c.JSON(http.StatusConflict, GenericResponse{Success: false, Message: "На позиции нет блока"})
		return
	}
	if started == nil {
		c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Блок сломан"})
		return
	}
	if !req.Wait {
		c.JSON(http.StatusAccepted, GenericResponse{
			Success: true,
			Message: "Рубка запущена",
			Data:    gin.H{"id": started.ID()},
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), breakWaitTimeout)
	defer cancel()
	res, err := started.Wait(ctx)
	if err != nil {
		c.JSON(http.StatusGatewayTimeout, GenericResponse{
			Success: false,
			Message: "Рубка не завершилась вовремя",
			Data:    gin.H{"id": started.ID()},
		})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Рубка завершена", Data: res})
}

// Start запускает REST сервер и блокируется до остановки
func (rs *RestServer) Start() error {
	rs.log.Info("🌲 REST API слушает %s", rs.srv.Addr)
	if err := rs.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop плавно останавливает REST сервер
func (rs *RestServer) Stop(ctx context.Context) error {
	return rs.srv.Shutdown(ctx)
}
