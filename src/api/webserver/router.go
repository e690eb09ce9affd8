package webserver

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stake-plus/govcomms-feedback/src/config"
	"github.com/stake-plus/govcomms-feedback/src/proposals"
)

func attachRoutes(r *gin.Engine, cfg config.APIConfig, store proposals.Store) {
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	feedbackH := NewFeedback(store)
	r.GET("/healthz", feedbackH.Health)

	v1 := r.Group("/v1")
	v1.Use(RateLimitMiddleware(NewRateLimiter(120, time.Minute)))
	if cfg.JWTSecret != "" {
		v1.Use(JWTMiddleware([]byte(cfg.JWTSecret)))
	}
	{
		v1.GET("/feedback", feedbackH.List)
		v1.GET("/feedback/:id", feedbackH.Get)
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "If-None-Match"},
		ExposeHeaders: []string{"Content-Length", "ETag", requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}
