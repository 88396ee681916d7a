// Package contextos wires the Context OS layers together.
//
// The dependency order is fixed: document store at the bottom, then the
// decision log and the two graph stores, then the extractor and the two
// query engines on top. Consumers that want the whole stack use System;
// consumers that only need one layer construct it directly from its own
// package.
package contextos

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contextos/internal/config"
	"github.com/fyrsmithlabs/contextos/internal/logging"
	"github.com/fyrsmithlabs/contextos/pkg/decisionlog"
	"github.com/fyrsmithlabs/contextos/pkg/docstore"
	"github.com/fyrsmithlabs/contextos/pkg/extraction"
	"github.com/fyrsmithlabs/contextos/pkg/graph"
	"github.com/fyrsmithlabs/contextos/pkg/graphquery"
	"github.com/fyrsmithlabs/contextos/pkg/semantic"
)

// Config is re-exported so embedders don't import internal packages.
type Config = config.Config

// LoadConfig loads configuration from the given YAML path (or the default
// path when empty), with environment variable overrides.
func LoadConfig(path string) (*Config, error) {
	return config.LoadWithFile(path)
}

// System is the assembled Context OS: decision lineage log, knowledge
// graph, heuristic extractor, and the two query engines.
type System struct {
	Decisions     *decisionlog.Store
	Entities      *graph.EntityStore
	Relationships *graph.RelationshipStore
	Extractor     *extraction.Extractor
	Graph         *graphquery.Engine
	Semantic      *semantic.Engine

	logger   *zap.Logger
	docs     docstore.Store
	ownsDocs bool
}

// New assembles a System.
//
// docs may be nil, in which case the backend named by cfg.Store is
// constructed (and owned, and closed by Close). embedder is required: the
// semantic engine cannot exist without one. logger may be nil, in which
// case one is built from cfg.Logging.
func New(cfg *Config, docs docstore.Store, embedder semantic.Embedder, logger *zap.Logger) (*System, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder cannot be nil")
	}

	if logger == nil {
		l, err := logging.NewLogger(&cfg.Logging, nil)
		if err != nil {
			return nil, fmt.Errorf("building logger: %w", err)
		}
		logger = l.Underlying()
	}

	ownsDocs := false
	if docs == nil {
		var err error
		docs, err = newStoreBackend(cfg.Store)
		if err != nil {
			return nil, err
		}
		ownsDocs = true
	}

	decisions, err := decisionlog.NewStore(docs, logger)
	if err != nil {
		return nil, err
	}
	rels, err := graph.NewRelationshipStore(docs, logger)
	if err != nil {
		return nil, err
	}
	entities, err := graph.NewEntityStore(docs, rels, logger)
	if err != nil {
		return nil, err
	}
	extractor, err := extraction.NewExtractor(entities, rels, cfg.Extraction, logger)
	if err != nil {
		return nil, err
	}
	graphEngine, err := graphquery.NewEngine(entities, rels, decisions, logger)
	if err != nil {
		return nil, err
	}
	semanticEngine, err := semantic.NewEngine(decisions, embedder,
		semantic.Config{SearchWindow: cfg.Semantic.SearchWindow}, logger)
	if err != nil {
		return nil, err
	}

	return &System{
		Decisions:     decisions,
		Entities:      entities,
		Relationships: rels,
		Extractor:     extractor,
		Graph:         graphEngine,
		Semantic:      semanticEngine,
		logger:        logger,
		docs:          docs,
		ownsDocs:      ownsDocs,
	}, nil
}

// LogAndExtract logs the decision, then runs entity extraction over it
// best-effort. The returned id is valid whenever the log write succeeded.
// An extraction failure is logged and absorbed — the call returns the id
// with nil entity ids and no error, and never unwinds the completed
// write. Successful extraction always yields at least the agent entity,
// so nil entity ids alongside a valid id means extraction did not run to
// completion.
func (s *System) LogAndExtract(ctx context.Context, trace *decisionlog.DecisionTrace) (string, []string, error) {
	id, err := s.Decisions.LogDecision(ctx, trace)
	if err != nil {
		return "", nil, err
	}

	entityIDs, err := s.Extractor.ExtractEntitiesFromDecision(ctx, trace)
	if err != nil {
		s.logger.Warn("entity extraction failed after decision logged",
			zap.String("decision_id", id),
			zap.Error(err))
		return id, nil, nil
	}
	return id, entityIDs, nil
}

// Close releases resources the System owns. A caller-supplied document
// store is the caller's to close.
func (s *System) Close() error {
	if s.ownsDocs {
		return s.docs.Close()
	}
	return nil
}

func newStoreBackend(cfg config.StoreConfig) (docstore.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return docstore.NewMemoryStore(), nil
	case "sqlite":
		store, err := docstore.NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
