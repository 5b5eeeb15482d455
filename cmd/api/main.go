package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/cardchat/internal/config"
	"github.com/zhouzirui/cardchat/internal/handler"
	"github.com/zhouzirui/cardchat/internal/model/persona"
	"github.com/zhouzirui/cardchat/internal/service/ai"
	"github.com/zhouzirui/cardchat/internal/service/chat"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		log.Warn().Err(err).Msg("failed to load .env file, continuing with system environment only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger, err := config.NewLogger(os.Stderr, cfg.Server.LogLevel, !cfg.Server.LogJSON)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid LOG_LEVEL")
	}
	log.Logger = logger

	personaStore := persona.NewMemoryStore(persona.Seed())
	chatService := chat.NewService()

	responder, err := ai.NewService(ctx, chatModel(ctx, cfg.AI, logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize responder")
	}

	router := handler.NewRouter(logger, personaStore, chatService, responder)

	addr, _ := cfg.Server.Addr()
	startServer(ctx, logger, addr, router)
}

// chatModel picks the Ark model when credentials are present and the offline
// echo model otherwise.
func chatModel(ctx context.Context, cfg config.AIConfig, logger zerolog.Logger) model.BaseChatModel {
	if !cfg.Enabled() {
		logger.Info().Msg("Ark credentials not configured, using echo responder")
		return &ai.EchoModel{}
	}

	m, err := cfg.NewChatModel(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to create Ark chat model, using echo responder")
		return &ai.EchoModel{}
	}
	logger.Info().Str("model", cfg.Model).Msg("Ark chat model initialized")
	return m
}

func startServer(ctx context.Context, logger zerolog.Logger, addr string, router http.Handler) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info().Str("addr", addr).Msg("card chat backend listening")
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
