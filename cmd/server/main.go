package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"audioreport/internal/ai"
	"audioreport/internal/api"
	"audioreport/internal/config"
	"audioreport/internal/logging"
	"audioreport/internal/memory"
	"audioreport/internal/metrics"
	"audioreport/internal/report"
	"audioreport/internal/storage"
	"audioreport/internal/stt"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(cfg.LogLevel, cfg.LogFormat)
	if envErr != nil {
		log.Debug().Msg("no .env file found, using environment variables")
	}

	// Set Gin mode (default to release mode)
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	probe := memory.NewProbe()
	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	loader, err := stt.CreateLoader(cfg, probe)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create speech loader")
	}
	tier, err := stt.ParseTier(cfg.WhisperTier)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid whisper tier")
	}
	ctrl := stt.NewController(loader, probe, m)
	transcriber := stt.NewService(ctrl, tier, "", ai.CleanFillers, m)

	catalog, err := report.NewCatalog()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load report templates")
	}
	gen, err := ai.CreateGenerator(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("generation service disabled, reports will use the local generator")
	}
	orchestrator := report.NewOrchestrator(catalog, gen, m)

	r := gin.New()
	r.Use(gin.Recovery())
	h := api.NewHandler(transcriber, orchestrator, catalog, probe, ctrl, m, cfg.MaxUploadBytes).
		WithFormats(storage.ExtensionsFor(cfg.STTBackend))
	api.RegisterRoutes(r, h)

	// No write timeout: a cold model load plus transcription can take minutes.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("speech_backend", loader.Name()).
			Str("tier", tier.String()).
			Msg("audioreport backend running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}

	st := ctrl.Status()
	log.Info().Str("model_state", string(st.State)).Msg("server stopped")
}
