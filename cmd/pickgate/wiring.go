package main

import (
	"context"
	"time"

	"github.com/Alias1177/PickGate/internal/config"
	"github.com/Alias1177/PickGate/internal/database"
	"github.com/Alias1177/PickGate/internal/engine"
	"github.com/Alias1177/PickGate/internal/fallback"
	"github.com/Alias1177/PickGate/internal/notify"
	platformhttp "github.com/Alias1177/PickGate/internal/platform/http"
	"github.com/Alias1177/PickGate/internal/policy"
	"github.com/Alias1177/PickGate/internal/quality"
	"github.com/Alias1177/PickGate/internal/registry"
	"github.com/Alias1177/PickGate/models"
	"github.com/rs/zerolog/log"
)

// store is what the engine records into and the API reads from
type store interface {
	engine.Recorder
	GetDecision(ctx context.Context, decisionID string) (*models.DecisionRecord, error)
}

// app is the wired process: one engine shared by every command
type app struct {
	cfg    *config.Config
	engine *engine.Engine
	store  store
	close  func()
}

func buildApp(ctx context.Context, cfg *config.Config, persist bool) (*app, error) {
	for _, w := range cfg.Warnings {
		log.Warn().Str("field", w.Field).Float64("value", w.Value).Msg(w.Message)
	}

	reg := buildRegistry(cfg)

	qc := quality.DefaultConfig()
	qc.ReliabilityThreshold = cfg.Chain.ReliabilityThreshold
	qc.MaxDataAge = cfg.MaxDataAge
	chain, err := fallback.NewChain(cfg.Chain, reg, quality.NewAssessor(qc))
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, close: func() {}}

	if persist && cfg.DBEnabled {
		connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		db, err := database.New(connCtx, cfg.DB)
		if err != nil {
			return nil, err
		}
		log.Info().Str("host", cfg.DB.Host).Str("dbname", cfg.DB.DBName).Msg("Recording decisions to PostgreSQL")
		a.store = db
		a.close = func() { db.Close() }
	} else {
		a.store = database.NewMemoryRecorder()
	}

	var notifier notify.Notifier = notify.Nop{}
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChat)
		if err != nil {
			log.Error().Err(err).Msg("Telegram alerts disabled")
		} else {
			notifier = tg
		}
	}

	a.engine, err = engine.New(engine.Deps{
		Evaluator:    policy.NewEvaluator(cfg.Thresholds, cfg.Limits),
		Fallback:     chain,
		Recorder:     a.store,
		Notifier:     notifier,
		BatchWorkers: cfg.BatchWorkers,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// buildRegistry uses the ML service when MODEL_REGISTRY_URL is set; otherwise the
// configured model ids are trusted as validated.
func buildRegistry(cfg *config.Config) registry.Registry {
	if cfg.RegistryURL != "" {
		client := platformhttp.NewClient(platformhttp.ClientOptions{
			Timeout:        cfg.Chain.LookupTimeout,
			RequestsPerSec: 10,
		})
		return registry.NewHTTPRegistry(cfg.RegistryURL, client, cfg.RegistryTTL)
	}

	static := registry.NewStatic()
	for _, id := range []string{cfg.Chain.PrimaryModelID, cfg.Chain.SecondaryModelID, cfg.Chain.LastValidatedModelID} {
		if id != "" {
			static.Put(models.ModelInfo{ID: id, Validated: true})
		}
	}
	return static
}
