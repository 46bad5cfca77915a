package app

import (
	"context"
	"log/slog"

	httpapp "github.com/livepoll/livepoll/internal/app/http"
	"github.com/livepoll/livepoll/internal/config"
	"github.com/livepoll/livepoll/internal/handlers"
	"github.com/livepoll/livepoll/internal/hub"
	"github.com/livepoll/livepoll/internal/identity"
	"github.com/livepoll/livepoll/internal/middleware"
	"github.com/livepoll/livepoll/internal/repo/memory"
	"github.com/livepoll/livepoll/internal/repo/postgres"
	"github.com/livepoll/livepoll/internal/services"
)

type App struct {
	HTTPServer *httpapp.App
	Polls      *services.Polls
	Hub        *hub.Hub
}

func NewApp(log *slog.Logger, cfg *config.Config) *App {
	var pollStorage services.PollStorage
	var voteStorage services.VoteStorage

	if cfg.Storage.PostgresURL != "" {
		storage, err := postgres.New(cfg.Storage.PostgresURL)
		if err != nil {
			panic(err)
		}
		pollStorage, voteStorage = storage, storage
	} else {
		log.Warn("no postgres url configured, using in-memory storage")
		storage := memory.New()
		pollStorage, voteStorage = storage, storage
	}

	broadcastHub := hub.New()

	pollService := services.NewPolls(log, pollStorage, voteStorage, broadcastHub)

	resolver := identity.NewResolver(cfg.Auth.TokenSecret)
	authMiddleware := middleware.NewAuthMiddleware(resolver)

	pollsHandler := handlers.NewPollsHandler(pollService)
	wsHandler := handlers.NewWSHandler(log, broadcastHub)

	httpApp := httpapp.NewApp(log, cfg.HTTP.Port, pollsHandler, wsHandler, authMiddleware.Middleware())

	return &App{
		HTTPServer: httpApp,
		Polls:      pollService,
		Hub:        broadcastHub,
	}
}

func (a *App) Stop(ctx context.Context) error {
	return a.HTTPServer.Stop(ctx)
}
