package router

import (
	"net/http"
	"strings"

	"github.com/gicatesis/backend/config"
	"github.com/gicatesis/backend/internal/handler"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

func Setup(
	cfg *config.Config,
	formatHandler *handler.FormatHandler,
	generationHandler *handler.GenerationHandler,
	renderHandler *handler.RenderHandler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "If-None-Match", "If-Modified-Since"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "ETag", "Last-Modified", "X-Rendered-By", "X-Render-Mode"},
		AllowCredentials: false,
	}))

	// 二进制下载不压缩
	r.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedExtensions([]string{".pdf", ".docx", ".png", ".jpg"}),
		gzip.WithExcludedPaths([]string{"/api/v1/render/", "/api/v1/artifacts/", "/api/v1/assets/"}),
		gzip.WithExcludedPathsRegexs([]string{`/preview/(pdf|docx)$`}),
	))

	r.GET("/health", handler.Health)

	api := r.Group("/api/v1")
	{
		formatHandler.RegisterRoutes(api)
		generationHandler.RegisterRoutes(api)
		renderHandler.RegisterRoutes(api)
	}

	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.Status(http.StatusNotFound)
	})

	return r
}
