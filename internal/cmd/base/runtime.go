package base

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hashicorp-forge/recall/internal/config"
	"github.com/hashicorp-forge/recall/pkg/answer"
	"github.com/hashicorp-forge/recall/pkg/consent"
	"github.com/hashicorp-forge/recall/pkg/embedding"
	"github.com/hashicorp-forge/recall/pkg/events"
	"github.com/hashicorp-forge/recall/pkg/gateway"
	"github.com/hashicorp-forge/recall/pkg/ingest"
	"github.com/hashicorp-forge/recall/pkg/memory"
	"github.com/hashicorp-forge/recall/pkg/privacy"
)

// Persisted artefact names under the data directory.
const (
	databaseFile       = "memory.db"
	embeddingCacheFile = "embedding-cache.json"
	manifestFile       = "ingest-manifest.json"
	statsFile          = "stats.json"
)

// Runtime is the fully wired retrieval pipeline.
type Runtime struct {
	Config     *config.Config
	Fs         afero.Fs
	DB         *gorm.DB
	Embedding  *embedding.Service
	Store      *memory.Store
	Pipeline   *privacy.Pipeline
	Gate       *consent.Gate
	Bus        *events.Bus
	Collector  *events.Collector
	Manifest   *ingest.Manifest
	Ingestor   *ingest.Ingestor
	Controller *gateway.Controller

	unsubscribe func()
	logger      hclog.Logger
}

// StatsPath returns the stats snapshot location for a data directory.
func StatsPath(dataDir string) string {
	return filepath.Join(dataDir, statsFile)
}

// NewRuntime wires every component from a validated configuration.
func NewRuntime(cfg *config.Config, logger hclog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	fs := afero.NewOsFs()

	if err := fs.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	embedSvc, err := embedding.NewService(embedding.ServiceConfig{
		Provider:     cfg.EmbedProvider,
		GeminiAPIKey: cfg.GeminiAPIKey,
		OpenAIAPIKey: cfg.OpenAIAPIKey,
		Model:        cfg.EmbedModel,
		Dimension:    cfg.EmbedDimension,
		CachePath:    filepath.Join(cfg.DataDir, embeddingCacheFile),
		Fs:           fs,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding service: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(filepath.Join(cfg.DataDir, databaseFile)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store, err := memory.NewStore(memory.StoreConfig{
		DB:          db,
		Embedder:    embedSvc,
		Scope:       memory.Scope(cfg.QueryScope),
		StrictMatch: &cfg.StrictMatch,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create memory store: %w", err)
	}

	bus := events.NewBus(events.BusConfig{
		Capacity: cfg.BusCapacity,
		Logger:   logger,
	})
	collector := events.NewCollector(events.CollectorConfig{
		Fs:     fs,
		Path:   StatsPath(cfg.DataDir),
		Logger: logger,
	})
	unsubscribe := bus.Subscribe(collector.Handle)

	pipeline := privacy.NewPipeline(privacy.PipelineConfig{Logger: logger})
	gate := consent.NewGate(consent.GateConfig{
		TTL:    cfg.ConsentTTL(),
		Logger: logger,
	})

	orchestrator, err := buildOrchestrator(cfg, logger)
	if err != nil {
		return nil, err
	}

	controller, err := gateway.NewController(gateway.ControllerConfig{
		Store:          store,
		Pipeline:       pipeline,
		Gate:           gate,
		Bus:            bus,
		Answerer:       orchestrator,
		Generate:       cfg.AnswerMode == config.AnswerModeRemote,
		TopK:           cfg.TopK,
		MaxResultChars: cfg.MaxResultChars,
		ConsentEnabled: &cfg.ConsentEnabled,
		PrivacyDebug:   cfg.PrivacyDebug,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create controller: %w", err)
	}

	manifest := ingest.NewManifest(ingest.ManifestConfig{
		Fs:     fs,
		Path:   filepath.Join(cfg.DataDir, manifestFile),
		Logger: logger,
	})
	ingestor, err := ingest.NewIngestor(ingest.IngestorConfig{
		Fs:       fs,
		Store:    store,
		Manifest: manifest,
		Bus:      bus,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ingestor: %w", err)
	}

	return &Runtime{
		Config:      cfg,
		Fs:          fs,
		DB:          db,
		Embedding:   embedSvc,
		Store:       store,
		Pipeline:    pipeline,
		Gate:        gate,
		Bus:         bus,
		Collector:   collector,
		Manifest:    manifest,
		Ingestor:    ingestor,
		Controller:  controller,
		unsubscribe: unsubscribe,
		logger:      logger.Named("runtime"),
	}, nil
}

// Close flushes persisted state and releases the pipeline.
func (r *Runtime) Close() {
	r.unsubscribe()
	r.Collector.Close()
	r.Manifest.Close()

	if sqlDB, err := r.DB.DB(); err == nil {
		if closeErr := sqlDB.Close(); closeErr != nil {
			r.logger.Warn("failed to close database", "error", closeErr)
		}
	}
}

// buildOrchestrator assembles the answer path. Remote mode resolves the
// provider branch and its base URL; extractive mode needs no provider.
func buildOrchestrator(cfg *config.Config, logger hclog.Logger) (*answer.Orchestrator, error) {
	if cfg.AnswerMode != config.AnswerModeRemote {
		return answer.NewOrchestrator(answer.OrchestratorConfig{
			Extractive: true,
			Grounding:  answer.GroundingMode(cfg.GroundingMode),
			Logger:     logger,
		})
	}

	kind, err := answer.NormalizeAlias(cfg.Provider)
	if err != nil {
		return nil, err
	}
	baseURL, err := answer.ResolveBaseURL(kind, cfg.BaseURL, cfg.ProfileID)
	if err != nil {
		return nil, err
	}

	var generator answer.Generator
	switch kind {
	case answer.KindGemini:
		generator, err = answer.NewGeminiGenerator(answer.GeminiGeneratorConfig{
			APIKey:  cfg.GeminiAPIKey,
			BaseURL: baseURL,
			Model:   cfg.Model,
			Logger:  logger,
		})
	default:
		generator, err = answer.NewOpenAIGenerator(answer.OpenAIGeneratorConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: baseURL,
			Model:   cfg.Model,
			Logger:  logger,
		})
	}
	if err != nil {
		return nil, err
	}

	return answer.NewOrchestrator(answer.OrchestratorConfig{
		Grounding: answer.GroundingMode(cfg.GroundingMode),
		Generator: generator,
		Logger:    logger,
	})
}

// Environ converts the process environment into the map form the config
// loader consumes.
func Environ() map[string]string {
	env := map[string]string{}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// consentTTLFloor guards against accidental zero TTLs from file overrides.
const consentTTLFloor = time.Second

// LoadConfig loads and validates configuration from an environment map,
// reporting warnings through the logger and returning a single error when
// validation failed.
func LoadConfig(env map[string]string, logger hclog.Logger) (*config.Config, error) {
	cfg, warnings, errs := config.Load(env)
	for _, w := range warnings {
		logger.Warn(w)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	if cfg.ConsentTTL() < consentTTLFloor {
		cfg.ConsentTTLMs = int(consentTTLFloor / time.Millisecond)
	}
	return cfg, nil
}
