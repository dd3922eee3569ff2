package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ppiankov/patientsim/internal/cache"
	"github.com/ppiankov/patientsim/internal/classifier"
	"github.com/ppiankov/patientsim/internal/dialog"
	"github.com/ppiankov/patientsim/internal/model"
	"github.com/ppiankov/patientsim/internal/patient"
	"github.com/ppiankov/patientsim/internal/pipeline"
	"github.com/ppiankov/patientsim/internal/store"
	"github.com/ppiankov/patientsim/internal/worker"
)

// app holds the wired collaborators of one command run
type app struct {
	pipeline *pipeline.Pipeline
	store    store.Store
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		logger.Warn("close store", zap.Error(err))
	}
}

// buildApp wires store, catalog, classifier and pipeline from cfg. wrap,
// when set, decorates the configured classifier.
func buildApp(ctx context.Context, cfg model.Config, wrap func(classifier.Classifier) classifier.Classifier) (*app, error) {
	resolver := dialog.NewResolver(logger)

	ccfg := classifier.ConfigFromModel(cfg.Classifier)
	ccfg.Intents = resolver.Intents()

	var cls classifier.Classifier
	base, err := classifier.New(ccfg)
	if err != nil {
		if wrap == nil {
			return nil, fmt.Errorf("create classifier: %w", err)
		}
		logger.Warn("classifier unavailable, using scripted predictions only", zap.Error(err))
	} else {
		cls = base
		if cfg.Classifier.CacheTTL > 0 {
			cls = classifier.NewCached(base, cache.New("layered", filepath.Join(filepath.Dir(cfg.Store.Dir), "classifier"), cfg.Classifier.CacheTTL), cfg.Classifier.CacheTTL, logger)
		}
	}
	if wrap != nil {
		cls = wrap(cls)
	}

	st, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	catalog := patient.NewCatalog(cfg.Patients.Dir, cache.New("memory", "", cfg.Patients.CacheTTL), cfg.Patients.CacheTTL, logger)

	p := pipeline.NewPipeline(pipeline.Deps{
		Store:      st,
		Classifier: cls,
		Patients:   catalog,
		Resolver:   resolver,
		Limiter:    worker.NewLimiter(cfg.Classifier.RequestsPerSecond, cfg.Classifier.BurstSize),
		Log:        logger,
	})
	return &app{pipeline: p, store: st}, nil
}
