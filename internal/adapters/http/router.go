package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/CamView/internal/app/console"
	"github.com/dkeye/CamView/internal/app/session"
	"github.com/dkeye/CamView/internal/config"
	"github.com/dkeye/CamView/internal/domain"
)

const selectedKey = "selected_camera"

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

type handlers struct {
	console    Console
	limiter    *IntentLimiter
	readLimit  int64
	pingPeriod time.Duration
}

func SetupRouter(cfg *config.Config, con Console, gatherer prometheus.Gatherer) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("CamViewSessions", store))
	r.Use(ClientTokenMiddleware())

	h := &handlers{
		console:    con,
		limiter:    NewIntentLimiter(cfg.Intents.Limit, cfg.Intents.Interval),
		readLimit:  cfg.ReadLimit,
		pingPeriod: cfg.PingPeriod,
	}
	if h.pingPeriod <= 0 {
		h.pingPeriod = 54 * time.Second
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")

	api.GET("/cameras", h.listCameras)
	api.POST("/cameras/refresh", h.refresh)
	api.GET("/cameras/:id", h.getCamera)
	api.POST("/cameras/:id/start", h.start)
	api.POST("/cameras/:id/stop", h.stop)
	api.POST("/cameras/:id/mode", h.setMode)
	api.GET("/cameras/:id/frame", h.frame)
	api.GET("/cameras/:id/events", h.handleEvents)

	api.POST("/selected/:id", h.selectCamera)
	api.GET("/selected", h.selected)

	log.Info().Str("module", "http").Msg("router setup")
	return r
}

func (h *handlers) listCameras(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cameras": h.console.List()})
}

func (h *handlers) refresh(c *gin.Context) {
	if err := h.console.Refresh(c.Request.Context()); err != nil {
		log.Warn().Err(err).Str("module", "http").Msg("refresh")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cameras": h.console.List()})
}

func (h *handlers) getCamera(c *gin.Context) {
	snap, err := h.console.Get(domain.DeviceID(c.Param("id")))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *handlers) start(c *gin.Context) {
	h.intent(c, "start", h.console.Start)
}

func (h *handlers) stop(c *gin.Context) {
	h.intent(c, "stop", h.console.Stop)
}

func (h *handlers) intent(c *gin.Context, name string, do func(domain.DeviceID) error) {
	id := domain.DeviceID(c.Param("id"))
	if !h.limiter.Allow(id, name) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
		return
	}
	if err := do(id); err != nil {
		h.fail(c, err)
		return
	}
	h.getCamera(c)
}

type modeRequest struct {
	Mode domain.Mode `json:"mode"`
	Date string      `json:"date"`
	Time string      `json:"time"`
}

func (h *handlers) setMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	id := domain.DeviceID(c.Param("id"))
	var err error
	switch req.Mode {
	case domain.ModeLive:
		err = h.console.RequestLive(id)
	case domain.ModePlayback:
		err = h.console.RequestPlayback(id, req.Date, req.Time)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be live or playback"})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	h.getCamera(c)
}

func (h *handlers) frame(c *gin.Context) {
	b, live, err := h.console.Frame(domain.DeviceID(c.Param("id")))
	if err != nil {
		h.fail(c, err)
		return
	}
	if len(b) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	c.Header("Cache-Control", "no-store")
	if live {
		c.Header("X-Frame-Source", "live")
	} else {
		c.Header("X-Frame-Source", "thumbnail")
	}
	c.Data(http.StatusOK, "image/jpeg", b)
}

func (h *handlers) selectCamera(c *gin.Context) {
	id := domain.DeviceID(c.Param("id"))
	if _, err := h.console.Get(id); err != nil {
		h.fail(c, err)
		return
	}
	s := sessions.Default(c)
	s.Set(selectedKey, string(id))
	if err := s.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session save failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deviceId": id})
}

func (h *handlers) selected(c *gin.Context) {
	id, _ := sessions.Default(c).Get(selectedKey).(string)
	if id == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no camera selected"})
		return
	}
	snap, err := h.console.Get(domain.DeviceID(id))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *handlers) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, console.ErrUnknownCamera):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrInvalidPlayback):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrClosed):
		status = http.StatusConflict
	case errors.Is(err, session.ErrTransport):
		status = http.StatusServiceUnavailable
	case errors.Is(err, session.ErrNegotiation):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("module", "http").Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
