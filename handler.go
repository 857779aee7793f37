package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"lg/fitplan-api/internal/ack"
	"lg/fitplan-api/internal/apperr"
	"lg/fitplan-api/internal/logger"
	"lg/fitplan-api/internal/plan"
	"lg/fitplan-api/internal/store"
)

// Handler holds shared dependencies for all route handlers.
type Handler struct {
	store store.Store
	plans *plan.Generator
	acks  *ack.Service
	log   *logger.Logger
	now   func() time.Time
}

func newHandler(s store.Store, plans *plan.Generator, acks *ack.Service, log *logger.Logger) *Handler {
	return &Handler{store: s, plans: plans, acks: acks, log: log.With("service", "HTTP"), now: time.Now}
}

/* ─── Error responses ─────────────────────────────────────────────────── */

// apiError returns a consistent JSON error response: {"error": "message"}.
func apiError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// respondError maps an error kind to a status code. Validation and not-found
// errors carry their fields and details to the client; anything else is
// logged and reported as a bare 500.
func (h *Handler) respondError(c *gin.Context, err error) {
	e, ok := apperr.As(err)
	kind := apperr.KindOf(err)

	status := http.StatusInternalServerError
	switch kind {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		h.log.Error("request failed", "path", c.FullPath(), "user_id", c.GetInt("user_id"), "kind", kind, "error", err)
		msg := "internal server error"
		if kind == apperr.KindComputationFailed {
			msg = "could not compute targets"
		}
		if ctxErr := c.Request.Context().Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			msg = "request cancelled"
		}
		c.JSON(status, gin.H{"error": msg, "code": string(kind)})
		return
	}

	body := gin.H{"error": err.Error(), "code": string(kind)}
	if ok {
		body["error"] = e.Message
		if len(e.Fields) > 0 {
			body["fields"] = e.Fields
		}
		if len(e.Details) > 0 {
			body["details"] = e.Details
		}
	}
	c.JSON(status, body)
}

/* ─── Server setup ────────────────────────────────────────────────────── */

// newRouter builds the engine with CORS for the configured client origins.
func newRouter(h *Handler, corsOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if gin.Mode() != gin.TestMode {
		router.Use(gin.Logger())
	}
	_ = router.SetTrustedProxies(nil)

	if len(corsOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     corsOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowHeaders:     []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	h.registerRoutes(router)
	return router
}

// registerRoutes registers all API routes on the router.
func (h *Handler) registerRoutes(router *gin.Engine) {
	// Public routes
	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.POST("/api/login", h.login)

	// Authenticated routes
	api := router.Group("/api", h.authMiddleware())
	api.GET("/profile", h.getProfile)
	api.PATCH("/profile", h.patchProfile)
	api.GET("/weight-log", h.getWeightLog)
	api.POST("/weight-log", h.upsertWeightEntry)
	api.GET("/plans/current", h.getCurrentPlan)
	api.POST("/plans/generate", h.generatePlan)
	api.GET("/metrics", h.getMetrics)
	api.POST("/metrics/acknowledge", h.acknowledgeMetrics)
}
