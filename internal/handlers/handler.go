package handlers

import (
	"net/http"

	"radiator_control/internal/logger"
	"radiator_control/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
	metrics  http.Handler
}

// Option customizes a Handler.
type Option func(*Handler)

// WithMetrics exposes h under GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(hd *Handler) { hd.metrics = h }
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger, opts ...Option) *Handler {
	h := &Handler{services: services, log: log}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", h.health)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	// Live state stream, same port.
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		h.registerRadiatorRoutes(api)
		h.registerDeviceRoutes(api)
		h.registerPlanningRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerRadiatorRoutes(api *gin.RouterGroup) {
	api.GET("/states", h.getStates)
	// Body example: {"mode":"COMFORT","device":"Salon"}
	api.POST("/mode", h.setMode)
	api.GET("/options", h.getOptions)
	// Body example: {"device":"Salon","disabled":true}
	api.POST("/options", h.setOption)
}

func (h *Handler) registerDeviceRoutes(api *gin.RouterGroup) {
	devices := api.Group("/devices")
	{
		devices.GET("", h.listDevices)
		devices.POST("", h.registerDevice)
		devices.PATCH("", h.renameDevice)
		devices.DELETE("/:name", h.removeDevice)
	}
}

func (h *Handler) registerPlanningRoutes(api *gin.RouterGroup) {
	planning := api.Group("/planning")
	{
		planning.GET("", h.getPlanning)
		planning.PUT("", h.putPlanning)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("", h.getLogs)
	}
}
