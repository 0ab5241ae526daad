package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/contaspt/docpipe/internal/audit"
	"github.com/contaspt/docpipe/internal/classifier"
	"github.com/contaspt/docpipe/internal/config"
	"github.com/contaspt/docpipe/internal/consensus"
	"github.com/contaspt/docpipe/internal/docrouter"
	"github.com/contaspt/docpipe/internal/docsource"
	"github.com/contaspt/docpipe/internal/embedding"
	"github.com/contaspt/docpipe/internal/indexer"
	"github.com/contaspt/docpipe/internal/logging"
	"github.com/contaspt/docpipe/internal/pipeline"
	"github.com/contaspt/docpipe/internal/provenance"
	"github.com/contaspt/docpipe/internal/rag"
	"github.com/contaspt/docpipe/internal/store"
	"github.com/contaspt/docpipe/internal/tableparse"
	"github.com/contaspt/docpipe/internal/tenant"
	"github.com/contaspt/docpipe/internal/vectorstore"
)

// app holds the wired services for one docpipe process.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	db         *sql.DB
	store      store.Store
	router     *docrouter.Router
	provenance *provenance.Manager
	rag        *rag.Service
	indexer    *indexer.Service
}

// buildApp loads configuration and wires the full pipeline for the
// given tenant. The indexer is nil when the documents path is missing.
func buildApp(tenantID string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	logger.Info("starting docpipe",
		zap.String("tenant", tenantID),
		zap.String("embedding_model", cfg.Embeddings.Model),
		zap.String("documents_path", cfg.Indexing.DocumentsPath))

	var (
		st store.Store
		db *sql.DB
	)
	if cfg.Database.DSN != "" {
		db, err = store.OpenDB(cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		pg := store.NewPostgresStore(db)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure database schema: %w", err)
		}
		st = pg
		logger.Info("connected to postgres")
	} else {
		st = store.NewMemoryStore()
		logger.Warn("no database DSN configured, using in-memory store")
	}

	embedder, err := embedding.NewService(cfg.Embeddings, embedding.NewMetrics(prometheus.DefaultRegisterer), logger)
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, fmt.Errorf("create embedding service: %w", err)
	}

	vectors := vectorstore.New(st, logger)
	pl := pipeline.New(st, vectors, embedder, cfg.Indexing.BatchSize, logger)

	cls := classifier.New(logger)
	warmClassifier(cls, st, tenantID, logger)

	visionParser := tableparse.NewParser(tableparse.NewHeuristicDetector(), tableparse.NewHeuristicExtractor(), st, logger)
	textParser := tableparse.NewParser(nil, nil, st, logger)
	engine := consensus.NewEngine(st, st, logger)
	router := docrouter.NewRouter(cls, visionParser, textParser, engine, logger)

	auditLog := audit.NewLogger(st, logger)
	ragSvc := rag.NewService(cfg.RAG, embedder, vectors, auditLog, rag.NewMetrics(prometheus.DefaultRegisterer), logger)

	var idx *indexer.Service
	source, err := docsource.NewLocalSource(cfg.Indexing.DocumentsPath)
	if err != nil {
		logger.Warn("documents path unavailable, indexing disabled",
			zap.String("path", cfg.Indexing.DocumentsPath),
			zap.Error(err))
	} else {
		metrics := indexer.NewMetrics(prometheus.DefaultRegisterer)
		idx = indexer.New(cfg.Indexing, tenantID, cfg.Embeddings.Model, source, st, st, pl, metrics, logger)
	}

	return &app{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		store:      st,
		router:     router,
		provenance: provenance.NewManager(st, logger),
		rag:        ragSvc,
		indexer:    idx,
	}, nil
}

// warmClassifier loads persisted training samples so routing starts out
// trained when history exists. Failures leave the rule-based fallback.
func warmClassifier(cls *classifier.Classifier, st store.Store, tenantID string, logger *zap.Logger) {
	ctx := tenant.NewContext(context.Background(), &tenant.Info{TenantID: tenantID})
	n, err := cls.LoadTrainingSamples(ctx, st)
	if err != nil {
		logger.Warn("load training samples failed", zap.Error(err))
		return
	}
	if n == 0 {
		return
	}
	if err := cls.Train(); err != nil {
		logger.Warn("classifier training failed", zap.Error(err))
		return
	}
	logger.Info("classifier trained from stored samples", zap.Int("samples", n))
}

// Close releases process resources.
func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
