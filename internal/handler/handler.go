package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"emis/internal/auth"
	"emis/internal/httpmiddleware"
	"emis/internal/identity"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Handler serves the authentication surface.
type Handler struct {
	codec      *auth.Codec
	dispatcher *identity.Dispatcher
	recovery   *identity.Recovery
	provision  *identity.Provisioner
	logger     *slog.Logger
	checks     map[string]HealthCheck
}

// New creates a Handler. checks are reported by /healthz.
func New(codec *auth.Codec, d *identity.Dispatcher, r *identity.Recovery, p *identity.Provisioner, logger *slog.Logger, checks map[string]HealthCheck) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{codec: codec, dispatcher: d, recovery: r, provision: p, logger: logger, checks: checks}
}

// RouterOptions configure the outer middleware.
type RouterOptions struct {
	CORSOrigins []string
	// Limiter is optional; nil disables rate limiting.
	Limiter *httpmiddleware.SimpleTokenBucket
}

// Router wires middleware and every route.
func (h *Handler) Router(opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(httpmiddleware.CORS(opts.CORSOrigins))
	r.Use(httpmiddleware.SecurityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.Healthz)

	api := r.Group("/")
	if opts.Limiter != nil {
		api.Use(opts.Limiter.GinMiddleware())
	}

	gate := auth.Gate(h.codec)

	authGroup := api.Group("/auth")
	authGroup.POST("/signup", h.Signup)
	authGroup.POST("/login", h.Login)
	authGroup.POST("/send-reset-otp", h.SendResetOTP)
	authGroup.POST("/reset-password", h.ResetPassword)
	authGroup.GET("/verify", gate, h.Verify)
	authGroup.POST("/credentials", gate, auth.IsAdmin(), h.CreateCredential)

	api.GET("/admin/profile", gate, auth.IsAdmin(), h.Profile)
	api.GET("/districts/details", gate, auth.IsDistrictHead(), h.Profile)
	api.GET("/schools/details", gate, auth.IsSchool(), h.Profile)
	api.GET("/teachers/profile", gate, auth.IsTeacher(), h.Profile)
	api.GET("/parents/profile", gate, auth.IsParent(), h.Profile)

	return r
}

// Healthz reports every dependency; any failure turns the status to 503.
func (h *Handler) Healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.checks {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

func success(c *gin.Context, code int, message string, data any) {
	c.JSON(code, gin.H{"status": "success", "message": message, "data": data})
}

func failure(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"status": "error", "message": message, "data": nil})
}

// internalError echoes err to the caller with a 500.
func (h *Handler) internalError(c *gin.Context, err error) {
	h.logger.ErrorContext(c.Request.Context(), "request failed",
		"method", c.Request.Method, "path", c.FullPath(), "error", err)
	failure(c, http.StatusInternalServerError, err.Error())
}
