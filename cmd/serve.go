package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"pillgenious/internal/api"
	"pillgenious/internal/logger"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the drug search HTTP API",
	Long: `Start the HTTP API.

Endpoints:
  GET  /health                      Liveness and configured engines
  POST /api/drugs/search-by-image   Multipart "image" upload, returns {rawText, keywords, drugs}
  POST /api/drugs/scan              Multipart "image" upload, returns {rawText, keywords}

Uploads must be JPEG, PNG, WEBP or HEIC/HEIF and at most MAX_UPLOAD_BYTES
(default 4 MiB). The server shuts down gracefully on SIGINT or SIGTERM.`,
	Example: `  # Listen on the configured HTTP_ADDR (default :5000)
  pillgenious serve

  # Listen on another port
  pillgenious serve --addr :8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default: HTTP_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.HTTPAddr
	}

	gin.SetMode(cfg.GinMode)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	p, err := buildPipeline(startCtx, cfg, true, log)
	cancelStart()
	if err != nil {
		return err
	}
	defer p.close(log)

	router := api.NewRouter(p.service, api.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		UploadDir:      cfg.UploadDir,
		RequestTimeout: cfg.RequestTimeout,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		OCREngine:      p.recognizer.Name(),
		Catalog:        p.catalog.Name(),
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", addr).
			Str("ocr_engine", p.recognizer.Name()).
			Str("catalog", p.catalog.Name()).
			Bool("ai_keywords", cfg.HasOpenAI()).
			Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err, ok := <-serverErr:
		if ok {
			log.Error().Err(err).Msg("HTTP server failed")
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received interrupt signal, shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info().Msg("HTTP server stopped")
	return nil
}
