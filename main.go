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
	"github.com/kelseyhightower/envconfig"

	"github.com/webchat-agent/server/internal/agent/graph"
	"github.com/webchat-agent/server/internal/agent/graph/conversations"
	"github.com/webchat-agent/server/internal/agent/model"
	"github.com/webchat-agent/server/internal/agent/models"
	"github.com/webchat-agent/server/internal/agent/tools"
	"github.com/webchat-agent/server/internal/api"
	"github.com/webchat-agent/server/internal/checkpoint"
	"github.com/webchat-agent/server/internal/core"
	"github.com/webchat-agent/server/internal/session"
	logx "github.com/webchat-agent/server/pkg/logger"
	pkgredis "github.com/webchat-agent/server/pkg/redis"
)

// AppConfig defines all configurable parameters of the server, sourced from
// environment variables (loaded from .env for local runs).
type AppConfig struct {
	Server       model.ServerConfig
	Providers    model.ProvidersConfig
	Conversation model.ConversationConfig
	Checkpoint   model.CheckpointConfig
	Tools        model.ToolsConfig
	MCP          model.MCPConfig
	Redis        pkgredis.Config
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		logx.Warn().Err(err).Msg("could not load .env file")
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logx.Fatal().Err(err).Msg("failed to process environment config")
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Server.Environment)})

	// The embedded database always opens: sessions live there even when
	// conversation checkpoints are kept in Redis.
	store, err := checkpoint.OpenSQLite(cfg.Checkpoint.Path)
	if err != nil {
		logx.Fatal().Err(err).Str("path", cfg.Checkpoint.Path).Msg("failed to open database")
	}
	defer store.Close()

	sessions, err := session.NewStore(store.DB())
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to init session store")
	}

	var repo model.CheckpointRepository = store
	if cfg.Checkpoint.Backend == "redis" {
		ttl, err := time.ParseDuration(cfg.Checkpoint.TTL)
		if err != nil {
			logx.Fatal().Err(err).Str("ttl", cfg.Checkpoint.TTL).Msg("invalid conversation TTL")
		}
		rdb, err := cfg.Redis.New()
		if err != nil {
			logx.Fatal().Err(err).Msg("failed to initialise Redis client")
		}
		defer rdb.Close()
		repo = checkpoint.NewRedisStore(rdb, ttl)
		logx.Info().Msg("using Redis checkpoint backend")
	}

	manager := conversations.NewManager(repo)

	registry, err := tools.NewBuiltinRegistry(cfg.Tools)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to build tool registry")
	}

	mcpSource, err := tools.ConnectMCP(ctx, registry, tools.ParseMCPServers(cfg.MCP.Servers))
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to connect MCP servers")
	}
	defer mcpSource.Close()

	factory := models.NewFactory(cfg.Providers)

	cache := graph.NewCache(graph.DefaultCacheSize, func(ctx context.Context, modelID string, toolIDs []string) (graph.Runnable, error) {
		chatModel, err := factory.CreateModel(ctx, modelID)
		if err != nil {
			return nil, err
		}
		return graph.Build(ctx, &graph.BuildConfig{
			Model:         chatModel,
			Tools:         registry.Enabled(toolIDs),
			Manager:       manager,
			MaxToolRounds: cfg.Conversation.Tools.MaxRounds,
		})
	})

	server := api.NewServer(cache, graph.NewDispatcher(), manager, sessions)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logx.Info().Str("addr", cfg.Server.Addr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logx.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logx.Error().Err(err).Msg("graceful shutdown failed")
	}
}
