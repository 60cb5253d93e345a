package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/lumate/voicecoach/internal/channel/telegram"
	"github.com/lumate/voicecoach/internal/config"
	"github.com/lumate/voicecoach/internal/handler"
	"github.com/lumate/voicecoach/internal/logging"
	"github.com/lumate/voicecoach/internal/model/persona"
	"github.com/lumate/voicecoach/internal/service/agent"
	"github.com/lumate/voicecoach/internal/service/pipeline"
	"github.com/lumate/voicecoach/internal/service/speech"
	"github.com/lumate/voicecoach/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.New()

	if err := godotenv.Load(); err != nil {
		logger.Warn().Err(err).Msg("no .env file loaded, using system environment only")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	catalog := persona.NewMemoryCatalog(persona.Seed())

	kv, cleanup := buildKV(cfg.Store, logger)
	defer cleanup()
	sessions := store.NewSessionStore(kv, catalog)

	if !cfg.AI.Enabled() {
		logger.Fatal().Msg("dialogue model not configured: set ARK_API_KEY and ARK_MODEL")
	}
	dialogueAgent, err := agent.NewService(ctx, cfg.AI, cfg.Pipeline.SystemPrompt, cfg.Pipeline.HistoryLimit, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize dialogue agent")
	}

	if cfg.Speech.OpenAIAPIKey == "" {
		logger.Fatal().Msg("transcription not configured: set OPENAI_API_KEY")
	}
	transcriber := speech.NewWhisperTranscriber(cfg.Speech.OpenAIAPIKey, logger)

	synth, err := speech.NewSynthesizer(cfg.Speech, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize synthesizer")
	}
	logger.Info().Str("variant", string(synth.Variant())).Msg("synthesizer ready")

	orchestrator, err := pipeline.NewService(sessions, catalog, dialogueAgent, transcriber, synth, cfg.Pipeline.LockWait, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize pipeline")
	}

	if !cfg.Telegram.Enabled() {
		logger.Fatal().Msg("chat connector not configured: set TELEGRAM_BOT_KEY")
	}
	connector := telegram.New(cfg.Telegram.Token, orchestrator, logger)

	go func() {
		if err := connector.Start(ctx); err != nil {
			logger.Error().Err(err).Str("connector", connector.Name()).Msg("connector stopped")
			stop()
		}
	}()
	defer connector.Stop()

	startServer(ctx, cfg.Server, handler.NewRouter(catalog), logger)
}

// buildKV selects the session backend: Redis when configured, otherwise an
// in-process store that does not survive restarts.
func buildKV(cfg config.StoreConfig, logger zerolog.Logger) (store.KV, func()) {
	if !cfg.Enabled() {
		logger.Warn().Msg("REDIS_ADDR not set, sessions are in-memory only")
		return store.NewMemKV(), func() {}
	}

	kv, err := store.NewRedisKV(store.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	logger.Info().Str("addr", cfg.RedisAddr).Msg("session store backed by Redis")
	return kv, func() { _ = kv.Close() }
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger zerolog.Logger) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info().Str("addr", serverCfg.Addr).Msg("http server listening")
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
