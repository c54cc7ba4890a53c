package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"github.com/hashicorp-forge/recall/pkg/events"
)

// DocumentStore is the slice of the memory store ingestion writes through.
type DocumentStore interface {
	SaveDocument(ctx context.Context, text, sourceFile string) error
	DeleteDocumentsBySource(ctx context.Context, sourceFile string) (int64, error)
}

// supportedExtensions lists the file types ingestion accepts. Anything else
// is an input validation error at the file level and skipped silently when
// walking a directory.
var supportedExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// Ingestor reads supported files, chunks them, and writes the chunks to the
// document table. Concurrent events for the same path coalesce through an
// in-flight map so a file being processed is not ingested twice.
type Ingestor struct {
	fs       afero.Fs
	store    DocumentStore
	manifest *Manifest
	bus      *events.Bus

	chunkSize    int
	chunkOverlap int

	inflightMu sync.Mutex
	inflight   map[string]bool

	logger hclog.Logger
}

// IngestorConfig holds configuration for the ingestor.
type IngestorConfig struct {
	Fs       afero.Fs
	Store    DocumentStore
	Manifest *Manifest
	Bus      *events.Bus

	ChunkSize    int // default: 800
	ChunkOverlap int // default: 120

	Logger hclog.Logger
}

// NewIngestor creates an ingestor.
func NewIngestor(config IngestorConfig) (*Ingestor, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("ingest: document store is required")
	}
	if config.Manifest == nil {
		return nil, fmt.Errorf("ingest: manifest is required")
	}
	if config.Bus == nil {
		return nil, fmt.Errorf("ingest: event bus is required")
	}
	if config.Fs == nil {
		config.Fs = afero.NewOsFs()
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultChunkSize
	}
	if config.ChunkOverlap <= 0 {
		config.ChunkOverlap = DefaultChunkOverlap
	}
	if config.Logger == nil {
		config.Logger = hclog.NewNullLogger()
	}

	return &Ingestor{
		fs:           config.Fs,
		store:        config.Store,
		manifest:     config.Manifest,
		bus:          config.Bus,
		chunkSize:    config.ChunkSize,
		chunkOverlap: config.ChunkOverlap,
		inflight:     make(map[string]bool),
		logger:       config.Logger.Named("ingestor"),
	}, nil
}

// IngestFile ingests one file, returning the number of chunks written.
// Unchanged files (per the manifest) and files already in flight return
// zero chunks with no error.
func (ing *Ingestor) IngestFile(ctx context.Context, path string) (int, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !supportedExtensions[ext] {
		err := fmt.Errorf("ingest: unsupported file extension %q", ext)
		ing.publishError(path, err)
		return 0, err
	}

	if !ing.acquire(path) {
		ing.logger.Debug("file already in flight, coalescing", "path", path)
		return 0, nil
	}
	defer ing.release(path)

	info, err := ing.fs.Stat(path)
	if err != nil {
		err = fmt.Errorf("ingest: failed to stat file: %w", err)
		ing.publishError(path, err)
		return 0, err
	}
	if !ing.manifest.ShouldIngest(path, info) {
		ing.logger.Debug("file unchanged, skipping", "path", path)
		return 0, nil
	}

	chunks, err := ing.ingest(ctx, path)
	if err != nil {
		ing.publishError(path, err)
		return chunks, err
	}

	ing.manifest.Record(path, info)
	ing.bus.Publish(events.TypeIngestSuccess, map[string]any{
		"path":   path,
		"chunks": chunks,
	})
	ing.logger.Info("ingested file", "path", path, "chunks", chunks)
	return chunks, nil
}

// IngestDir walks a directory and ingests every supported file, aggregating
// per-file failures so one bad file does not stop the walk.
func (ing *Ingestor) IngestDir(ctx context.Context, dir string) (files, chunks int, err error) {
	var merr *multierror.Error

	walkErr := afero.Walk(ing.fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			merr = multierror.Append(merr, err)
			return nil
		}
		if info.IsDir() || !supportedExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		n, ingestErr := ing.IngestFile(ctx, path)
		if ingestErr != nil {
			merr = multierror.Append(merr, ingestErr)
			return nil
		}
		if n > 0 {
			files++
			chunks += n
		}
		return nil
	})
	if walkErr != nil {
		merr = multierror.Append(merr, fmt.Errorf("ingest: directory walk failed: %w", walkErr))
	}

	return files, chunks, merr.ErrorOrNil()
}

// ingest replaces any previous chunks for the file and writes fresh ones.
func (ing *Ingestor) ingest(ctx context.Context, path string) (int, error) {
	data, err := afero.ReadFile(ing.fs, path)
	if err != nil {
		return 0, fmt.Errorf("ingest: failed to read file: %w", err)
	}

	if _, err := ing.store.DeleteDocumentsBySource(ctx, path); err != nil {
		return 0, fmt.Errorf("ingest: failed to clear previous chunks: %w", err)
	}

	chunks := Chunk(string(data), ing.chunkSize, ing.chunkOverlap)
	for i, chunk := range chunks {
		if err := ing.store.SaveDocument(ctx, chunk, path); err != nil {
			return i, fmt.Errorf("ingest: failed to save chunk %d: %w", i+1, err)
		}
	}
	return len(chunks), nil
}

func (ing *Ingestor) publishError(path string, err error) {
	ing.bus.Publish(events.TypeIngestError, map[string]any{
		"path":  path,
		"error": err.Error(),
	})
	ing.logger.Error("ingest failed", "path", path, "error", err)
}

func (ing *Ingestor) acquire(path string) bool {
	ing.inflightMu.Lock()
	defer ing.inflightMu.Unlock()
	if ing.inflight[path] {
		return false
	}
	ing.inflight[path] = true
	return true
}

func (ing *Ingestor) release(path string) {
	ing.inflightMu.Lock()
	delete(ing.inflight, path)
	ing.inflightMu.Unlock()
}
