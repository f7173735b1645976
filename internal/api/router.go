// Package api exposes the drug search pipeline over HTTP.
package api

import (
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"pillgenious/internal/logger"
)

// Options configures the router and handlers.
type Options struct {
	MaxUploadBytes int64
	UploadDir      string
	RequestTimeout time.Duration
	AllowedOrigins []string

	// Reported by /health.
	OCREngine string
	Catalog   string

	// AccessLog receives request logs. Defaults to the "http" component logger.
	AccessLog *zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = 4 << 20
	}
	if o.UploadDir == "" {
		o.UploadDir = os.TempDir()
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 60 * time.Second
	}
	return o
}

// NewRouter sets up the API router
func NewRouter(searcher ImageSearcher, opts Options) *gin.Engine {
	opts = opts.withDefaults()

	accessLog := logger.WithComponent("http")
	if opts.AccessLog != nil {
		accessLog = *opts.AccessLog
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(accessLog))

	corsConfig := cors.Config{
		AllowOrigins:  opts.AllowedOrigins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", requestIDHeader},
		ExposeHeaders: []string{"Content-Length", requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(opts.AllowedOrigins) == 0 {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	handler := NewHandler(searcher, opts)

	router.GET("/health", handler.HealthCheck)

	drugs := router.Group("/api/drugs")
	{
		drugs.POST("/search-by-image", handler.SearchByImage)
		drugs.POST("/scan", handler.ScanImage)
	}

	return router
}
