package router

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/nat-prohmpiriya/talelingo-studio/config"
	"github.com/nat-prohmpiriya/talelingo-studio/internal/handler"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// streamPath SSE 需要逐块刷新，不能压缩
const streamPath = "/api/generate/stream"

func Setup(
	cfg *config.Config,
	healthHandler *handler.HealthHandler,
	storyHandler *handler.StoryHandler,
	episodeHandler *handler.EpisodeHandler,
	jobHandler *handler.JobHandler,
	generateHandler *handler.GenerateHandler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
	}))
	// promhttp 自己处理压缩
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{streamPath, "/metrics"})))

	r.GET("/healthz", healthHandler.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		storyHandler.RegisterRoutes(api)
		episodeHandler.RegisterRoutes(api)
		jobHandler.RegisterRoutes(api)
		generateHandler.RegisterRoutes(api)
	}

	return r
}
