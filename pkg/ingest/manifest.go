// Package ingest provides directory ingestion for the memory store: a
// persisted manifest that skips unchanged files, a whitespace-aware chunker,
// and an ingestor that writes chunks through the store contract.
package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
)

// ManifestEntry records the observed state of one ingested file.
type ManifestEntry struct {
	MtimeMs int64 `json:"mtimeMs"`
	Size    int64 `json:"size"`
}

// Manifest maps absolute file paths to their last-ingested state so
// unchanged files are skipped on re-ingest. All file writes go through a
// single writer goroutine so concurrent ingests never truncate the manifest
// mid-write.
type Manifest struct {
	mu      sync.Mutex
	entries map[string]ManifestEntry

	fs      afero.Fs
	path    string
	writeCh chan []byte
	quit    chan struct{}
	done    chan struct{}
	logger  hclog.Logger
}

// ManifestConfig holds configuration for the ingestion manifest.
type ManifestConfig struct {
	Fs     afero.Fs
	Path   string // manifest file; empty disables persistence
	Logger hclog.Logger
}

// NewManifest loads the manifest file if present and starts the writer.
// A corrupt manifest is discarded and rebuilt.
func NewManifest(config ManifestConfig) *Manifest {
	if config.Fs == nil {
		config.Fs = afero.NewOsFs()
	}
	if config.Logger == nil {
		config.Logger = hclog.NewNullLogger()
	}

	m := &Manifest{
		entries: make(map[string]ManifestEntry),
		fs:      config.Fs,
		path:    config.Path,
		writeCh: make(chan []byte, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		logger:  config.Logger.Named("ingest-manifest"),
	}

	if m.path != "" {
		data, err := afero.ReadFile(m.fs, m.path)
		switch {
		case err == nil:
			if jsonErr := json.Unmarshal(data, &m.entries); jsonErr != nil {
				m.logger.Warn("discarding corrupt manifest", "path", m.path, "error", jsonErr)
				m.entries = make(map[string]ManifestEntry)
			}
		case !os.IsNotExist(err):
			m.logger.Warn("failed to read manifest", "path", m.path, "error", err)
		}
	}

	go m.writer()
	return m
}

// ShouldIngest reports whether the file changed since its last recorded
// ingest. Unknown paths always ingest.
func (m *Manifest) ShouldIngest(path string, info os.FileInfo) bool {
	m.mu.Lock()
	entry, ok := m.entries[path]
	m.mu.Unlock()

	if !ok {
		return true
	}
	return entry.Size != info.Size() || entry.MtimeMs != info.ModTime().UnixMilli()
}

// Record stores the file's current state and schedules a manifest write.
func (m *Manifest) Record(path string, info os.FileInfo) {
	m.mu.Lock()
	m.entries[path] = ManifestEntry{
		MtimeMs: info.ModTime().UnixMilli(),
		Size:    info.Size(),
	}
	data, err := json.MarshalIndent(m.entries, "", "  ")
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("failed to encode manifest", "error", err)
		return
	}
	m.schedule(data)
}

// Forget drops the entry for a path, forcing re-ingest on next sight.
func (m *Manifest) Forget(path string) {
	m.mu.Lock()
	delete(m.entries, path)
	data, err := json.MarshalIndent(m.entries, "", "  ")
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("failed to encode manifest", "error", err)
		return
	}
	m.schedule(data)
}

// Len returns the number of tracked files.
func (m *Manifest) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close stops the writer after draining any pending write.
func (m *Manifest) Close() {
	close(m.quit)
	<-m.done
}

// schedule hands the latest encoded manifest to the writer, replacing any
// pending write with the newer state.
func (m *Manifest) schedule(data []byte) {
	if m.path == "" {
		return
	}
	for {
		select {
		case <-m.quit:
			return
		case m.writeCh <- data:
			return
		default:
		}
		select {
		case <-m.writeCh:
		default:
		}
	}
}

// writer is the only goroutine that touches the manifest file.
func (m *Manifest) writer() {
	defer close(m.done)
	for {
		select {
		case data := <-m.writeCh:
			m.write(data)
		case <-m.quit:
			select {
			case data := <-m.writeCh:
				m.write(data)
			default:
			}
			return
		}
	}
}

func (m *Manifest) write(data []byte) {
	if err := afero.WriteFile(m.fs, m.path, data, 0o644); err != nil {
		m.logger.Warn(fmt.Sprintf("failed to persist manifest to %s", m.path), "error", err)
	}
}
