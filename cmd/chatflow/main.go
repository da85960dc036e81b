package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/chatflow/internal/agent"
	"github.com/gosuda/chatflow/internal/agent/backends"
	"github.com/gosuda/chatflow/internal/agent/tools"
	"github.com/gosuda/chatflow/internal/config"
	"github.com/gosuda/chatflow/internal/conversation"
	"github.com/gosuda/chatflow/internal/display"
	"github.com/gosuda/chatflow/internal/server"
	"github.com/gosuda/chatflow/internal/store/memory"
	redisstore "github.com/gosuda/chatflow/internal/store/redis"
	"github.com/gosuda/chatflow/internal/upload"
	"github.com/gosuda/chatflow/internal/view"
	"github.com/gosuda/chatflow/web"
)

const pubsubBuffer = 64

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	zerolog.SetGlobalLevel(cfg.Log.Level)
	if cfg.Log.Format == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	broker, err := newBroker(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer broker.Close()

	uploads := upload.NewStore(cfg.Uploads.Dir, cfg.Uploads.MaxBytes)

	toolRegistry := tools.NewRegistry(
		tools.NewCalculator(),
		tools.NewListUploads(uploads),
		tools.NewReadUpload(uploads, tools.DefaultReadLimit),
	)

	registry := agent.NewRegistry()
	backends.RegisterAll(registry)
	if !registry.Has(cfg.Agent.Backend) {
		return fmt.Errorf("agent backend %q: %w (available: %v)", cfg.Agent.Backend, agent.ErrUnknownBackend, registry.Available())
	}

	opts := agent.Options{
		Model:         cfg.Agent.Model,
		APIKey:        cfg.Agent.APIKey,
		BaseURL:       cfg.Agent.BaseURL,
		SystemPrompt:  cfg.Agent.SystemPrompt,
		Temperature:   float32(cfg.Agent.Temperature),
		TopP:          float32(cfg.Agent.TopP),
		MaxTokens:     cfg.Agent.MaxTokens,
		MaxToolRounds: cfg.Agent.MaxToolRounds,
		Timeout:       cfg.Agent.Timeout,
		Tools:         toolRegistry,
	}

	// Fail fast on missing credentials instead of on the first session.
	if _, err := registry.Create(ctx, cfg.Agent.Backend, opts); err != nil {
		return err
	}

	md := view.NewMarkdown()

	sessions := conversation.NewManager(conversation.ManagerConfig{
		Backend:    cfg.Agent.Backend,
		UploadsDir: uploads.Dir(),
		NewClient: func(ctx context.Context) (agent.Client, error) {
			return registry.Create(ctx, cfg.Agent.Backend, opts)
		},
		NewDisplay: display.Factory(broker, md.Format),
	})

	webAssets, err := fs.Sub(web.Assets, "static")
	if err != nil {
		return fmt.Errorf("web assets: %w", err)
	}

	srv := server.New(ctx, cfg, server.Deps{
		Sessions: sessions,
		Uploads:  uploads,
		PubSub:   broker,
		Backends: registry,
		Tools:    toolRegistry,
		Markdown: md,
	}, webAssets)

	log.Info().
		Str("backend", cfg.Agent.Backend).
		Str("model", cfg.Agent.Model).
		Str("uploads_dir", uploads.Dir()).
		Bool("redis", cfg.Redis.Enabled()).
		Msg("chatflow configured")

	go func() {
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
			cancel()
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Msg("stopped")
	return nil
}

// newBroker connects to Redis when configured and falls back to the
// in-process broker for single-replica deployments.
func newBroker(ctx context.Context, cfg config.RedisConfig) (display.Broker, error) {
	if !cfg.Enabled() {
		log.Info().Msg("CHATFLOW_REDIS_ADDR unset, using in-process pub/sub")
		return memory.New(pubsubBuffer), nil
	}

	ps, err := redisstore.New(ctx, redisstore.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		Buffer:   pubsubBuffer,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("addr", cfg.Addr).Msg("connected to redis pub/sub")
	return ps, nil
}
