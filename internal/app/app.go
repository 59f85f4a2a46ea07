package app

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/medreport-backend/internal/config"
	httpserver "github.com/yungbote/medreport-backend/internal/http"
	"github.com/yungbote/medreport-backend/internal/observability"
	"github.com/yungbote/medreport-backend/internal/platform/logger"
	"github.com/yungbote/medreport-backend/internal/telegram"
)

type App struct {
	Log      *logger.Logger
	Cfg      *config.Config
	Services Services
	Server   *httpserver.Server
	Bot      *telegram.Bot

	otelShutdown func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	a, metrics, err := newCore(ctx)
	if err != nil {
		return nil, err
	}
	handlerset := wireHandlers(a.Log, a.Cfg, a.Services)
	a.Server = wireServer(a.Log, a.Cfg, handlerset, metrics)

	if a.Cfg.Telegram.Token != "" {
		bot, err := telegram.New(a.Cfg.Telegram, a.Services.Pipeline, a.Cfg.Intake.MaxUploadBytes, a.Log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Bot = bot
	}
	return a, nil
}

// NewHeadless wires config, logging and services without any network
// frontend. The console uses it.
func NewHeadless(ctx context.Context) (*App, error) {
	a, _, err := newCore(ctx)
	return a, err
}

func newCore(ctx context.Context) (*App, *observability.Metrics, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	otelShutdown := observability.InitTracing(ctx, log, observability.TracingConfig{
		ServiceName:       "medreport",
		Environment:       cfg.Env,
		SummarizerBackend: cfg.Summarizer.Backend,
		AdviceMode:        cfg.Advice.Mode,
	})
	metrics := observability.Init(log)

	serviceset, err := wireServices(ctx, log, cfg, metrics)
	if err != nil {
		log.Sync()
		return nil, nil, err
	}
	return &App{
		Log:          log,
		Cfg:          cfg,
		Services:     serviceset,
		otelShutdown: otelShutdown,
	}, metrics, nil
}

// Run serves HTTP, and the Telegram bot when configured, until ctx is
// cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return errors.New("app not initialized")
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Log.Info("http server listening", "addr", a.Server.Addr())
		return a.Server.Run(gctx)
	})
	if a.Bot != nil {
		g.Go(func() error { return a.Bot.Run(gctx) })
	}
	return g.Wait()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Services.closeStore != nil {
		if err := a.Services.closeStore(); err != nil && a.Log != nil {
			a.Log.Warn("session store close failed", "error", err)
		}
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.Cfg.HTTP.ShutdownTimeout.Duration)
		if err := a.otelShutdown(ctx); err != nil && a.Log != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
