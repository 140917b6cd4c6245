package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"getmyguide/internal/infra/obs"
)

type ServerConfig struct {
	Env          string
	Addr         string
	AllowOrigins []string
}

type Handlers struct {
	Bookings       BookingHTTP
	Availability   AvailabilityHTTP
	Guides         GuideHTTP
	AuthMiddleware gin.HandlerFunc
}

func NewServer(cfg ServerConfig, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(cfg, obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func NewRouter(cfg ServerConfig, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Bookings != nil {
		bookings := api.Group("/bookings")
		bookings.POST("/orders", h.Bookings.CreateOrder)
		bookings.POST("", h.Bookings.Confirm)
		bookings.GET("", h.Bookings.List)
		bookings.GET("/:id", h.Bookings.Get)
		bookings.POST("/:id/remaining-order", h.Bookings.CreateRemainingOrder)
		bookings.POST("/:id/remaining-payment", h.Bookings.ConfirmRemaining)
		bookings.POST("/:id/cancel", h.Bookings.Cancel)
		bookings.POST("/:id/complete", h.Bookings.Complete)

		admin := api.Group("/admin/bookings")
		admin.POST("/:id/substitute", h.Bookings.AssignSubstitute)
		admin.DELETE("/:id", h.Bookings.Delete)
	}
	if h.Availability != nil {
		api.GET("/guides/:id/calendar", h.Availability.Calendar)
		api.GET("/guides/:id/availability", h.Availability.Check)
	}
	if h.Guides != nil {
		api.GET("/guides/:id", h.Guides.Get)
		api.PUT("/admin/guides/:id", h.Guides.Upsert)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug", "dev", "local":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
