package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"server/internal/adapter/repo"
	"server/internal/ai"
	"server/internal/domain"
	"server/internal/http/handlers"
	"server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/infra/geoip"
	"server/internal/middleware"
)

// imageRecorder adapts the image repository to the orchestration facade.
type imageRecorder struct {
	images domain.ImageRepository
}

func (r *imageRecorder) SaveGenerated(ctx context.Context, rec ai.ImageRecord) error {
	return r.images.Save(ctx, &domain.Image{
		UserID:     rec.UserID,
		Prompt:     rec.Prompt,
		Model:      rec.Model,
		Resolution: rec.Size,
		Style:      rec.Style,
		ImageURL:   rec.URL,
	})
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer pool.Close()

	users := repo.NewUserRepository(pool)
	chats := repo.NewChatRepository(pool)
	codes := repo.NewRegistrationCodeRepository(pool)
	images := repo.NewImageRepository(pool)

	// Seed the default registration code so a fresh deployment can accept
	// its first signup.
	if err := codes.EnsureExists(ctx, cfg.DefaultRegistrationCode); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed default registration code")
	}
	logger.Info().Str("code", cfg.DefaultRegistrationCode).Msg("default registration code ready")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if cfg.AIUpstreamURL == "" || cfg.AIAPIKey == "" {
		logger.Warn().Msg("ai upstream not configured; ai routes will answer 500")
	}
	aiClient := ai.NewClient(ai.Options{
		BaseURL: cfg.AIUpstreamURL,
		APIKey:  cfg.AIAPIKey,
	})
	aiService := ai.NewService(ai.ServiceOptions{
		Client:    aiClient,
		Recorder:  &imageRecorder{images: images},
		Logger:    &logger,
		Metrics:   ai.NewMetrics(registry),
		ChatModel: cfg.AIChatModel,
	})

	var countryLookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if resolver != nil {
		countryLookup = resolver.CountryCode
	}

	app := &handlers.App{
		Logger:    logger,
		JWTSecret: cfg.JWTSecret,
		Users:     users,
		Chats:     chats,
		Codes:     codes,
		Images:    images,
		AI:        aiService,
	}

	router := httpapi.NewRouter(httpapi.RouterOptions{
		App:             app,
		CountryLookup:   countryLookup,
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Metrics:         registry,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
