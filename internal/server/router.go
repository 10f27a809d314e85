package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/pandemonium-osu/pandemonium-backend/internal/handlers"
	"github.com/pandemonium-osu/pandemonium-backend/internal/middleware"
)

type RouterConfig struct {
	OAuthHandler      *handlers.OAuthHandler
	BeatmapsetHandler *handlers.BeatmapsetHandler
	DiscoveryHandler  *handlers.DiscoveryHandler
	AuthMiddleware    *middleware.AuthMiddleware
	AllowOrigins      []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(middleware.RequestID())
	router.Use(otelgin.Middleware("pandemonium-backend"))

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthcheck", handlers.HealthCheck)
	router.GET("/oauth/authorize", cfg.OAuthHandler.Authorize)
	router.GET("/oauth/callback", cfg.OAuthHandler.Callback)

	// Protected
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())
	api.GET("/beatmapsets/:id/similar", cfg.BeatmapsetHandler.Similar)
	api.GET("/feed/discovery", cfg.DiscoveryHandler.Feed)

	return router
}
