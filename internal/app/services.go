package app

import (
	"context"
	"fmt"

	"github.com/yungbote/medreport-backend/internal/advice"
	"github.com/yungbote/medreport-backend/internal/config"
	"github.com/yungbote/medreport-backend/internal/intake"
	"github.com/yungbote/medreport-backend/internal/observability"
	"github.com/yungbote/medreport-backend/internal/pipeline"
	"github.com/yungbote/medreport-backend/internal/platform/logger"
	"github.com/yungbote/medreport-backend/internal/session"
	"github.com/yungbote/medreport-backend/internal/summarizer"
)

type Services struct {
	Rules      *advice.RuleSet
	Advice     *advice.Engine
	Intake     *intake.Intaker
	Summarizer summarizer.Summarizer
	Store      session.Store
	Pipeline   *pipeline.Service

	closeStore func() error
}

func wireServices(ctx context.Context, log *logger.Logger, cfg *config.Config, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	rules, err := loadRules(cfg.Advice)
	if err != nil {
		return Services{}, err
	}
	engine, err := advice.NewEngine(rules, advice.Options{
		Mode:   advice.Mode(cfg.Advice.Mode),
		Dedupe: cfg.Advice.DedupeRuleMatches,
	})
	if err != nil {
		return Services{}, fmt.Errorf("init advice engine: %w", err)
	}

	in := intake.New(log, intake.Options{
		MaxUploadBytes:    cfg.Intake.MaxUploadBytes,
		MaxPreviewWidth:   cfg.Intake.MaxPreviewWidth,
		PDFToTextFallback: cfg.Intake.PDFToTextFallback,
	})

	sum, err := summarizer.New(ctx, cfg.Summarizer, log)
	if err != nil {
		return Services{}, fmt.Errorf("init summarizer: %w", err)
	}

	style, err := session.ParseStyle(cfg.Session.InteractionStyle)
	if err != nil {
		return Services{}, err
	}

	store, closeStore, err := wireStore(log, cfg.Session)
	if err != nil {
		return Services{}, err
	}
	svc, err := pipeline.New(log, in, sum, engine, store, style)
	if err != nil {
		return Services{}, err
	}
	svc.SetMetrics(metrics)

	log.Info("services ready",
		"summarizer_backend", cfg.Summarizer.Backend,
		"advice_mode", cfg.Advice.Mode,
		"advice_rules", rules.Len(),
		"session_store", cfg.Session.Store,
		"interaction_style", string(style),
	)
	return Services{
		Rules:      rules,
		Advice:     engine,
		Intake:     in,
		Summarizer: sum,
		Store:      store,
		Pipeline:   svc,
		closeStore: closeStore,
	}, nil
}

func loadRules(cfg config.AdviceConfig) (*advice.RuleSet, error) {
	if cfg.RulesPath == "" {
		return advice.DefaultRules()
	}
	rs, err := advice.LoadRules(cfg.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("load advice rules: %w", err)
	}
	return rs, nil
}

func wireStore(log *logger.Logger, cfg config.SessionConfig) (session.Store, func() error, error) {
	switch cfg.Store {
	case config.StoreRedis:
		rs, err := session.NewRedisStore(log, session.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.TTL.Duration,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init redis session store: %w", err)
		}
		return rs, rs.Close, nil
	default:
		return session.NewMemoryStore(cfg.TTL.Duration), nil, nil
	}
}
