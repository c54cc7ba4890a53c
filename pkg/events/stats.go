package events

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"

	"github.com/hashicorp-forge/recall/pkg/privacy"
)

// Stats are the derived counters maintained by the Collector.
type Stats struct {
	TotalQueries         int            `json:"total_queries"`
	BlockedHighRisk      int            `json:"blocked_high_risk"`
	TotalRedactions      int            `json:"total_redactions"`
	IngestedFiles        int            `json:"ingested_files"`
	IngestedChunks       int            `json:"ingested_chunks"`
	IngestErrors         int            `json:"ingest_errors"`
	RedactionsByCategory map[string]int `json:"redactions_by_category"`
}

// Collector is a bus subscriber that maintains counters and persists
// snapshots. All file writes are funneled through a single writer
// goroutine fed by a channel, so concurrent events never interleave
// writes.
type Collector struct {
	mu    sync.Mutex
	stats Stats

	fs      afero.Fs
	path    string
	writeCh chan []byte
	quit    chan struct{}
	done    chan struct{}
	logger  hclog.Logger
}

// CollectorConfig holds configuration for the stats collector.
type CollectorConfig struct {
	Fs     afero.Fs
	Path   string // snapshot file; empty disables persistence
	Logger hclog.Logger
}

// NewCollector creates a stats collector and starts its writer.
func NewCollector(config CollectorConfig) *Collector {
	if config.Fs == nil {
		config.Fs = afero.NewOsFs()
	}
	if config.Logger == nil {
		config.Logger = hclog.NewNullLogger()
	}

	c := &Collector{
		stats: Stats{
			RedactionsByCategory: map[string]int{},
		},
		fs:      config.Fs,
		path:    config.Path,
		writeCh: make(chan []byte, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		logger:  config.Logger.Named("stats-collector"),
	}

	go c.writer()
	return c
}

// Handle updates counters from one event and schedules a snapshot write.
// It is registered with Bus.Subscribe.
func (c *Collector) Handle(event Event) {
	c.mu.Lock()
	switch event.Type {
	case TypeQueryReceived:
		c.stats.TotalQueries++
	case TypePrivacyProcessed:
		c.stats.TotalRedactions += payloadInt(event.Payload["redaction_count"])
		if cleaned, ok := event.Payload["cleaned_text"].(string); ok {
			for _, ph := range privacy.Placeholders() {
				if n := strings.Count(cleaned, ph); n > 0 {
					c.stats.RedactionsByCategory[ph] += n
				}
			}
		}
	case TypeRiskBlocked:
		c.stats.BlockedHighRisk++
	case TypeIngestSuccess:
		c.stats.IngestedFiles++
		c.stats.IngestedChunks += payloadInt(event.Payload["chunks"])
	case TypeIngestError:
		c.stats.IngestErrors++
	}
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.schedule(snapshot)
}

// Snapshot returns a copy of the current counters.
func (c *Collector) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Close stops the writer after draining any pending snapshot.
func (c *Collector) Close() {
	close(c.quit)
	<-c.done
}

func (c *Collector) snapshotLocked() Stats {
	out := c.stats
	out.RedactionsByCategory = make(map[string]int, len(c.stats.RedactionsByCategory))
	for k, v := range c.stats.RedactionsByCategory {
		out.RedactionsByCategory[k] = v
	}
	return out
}

// schedule hands the latest snapshot to the writer, replacing any pending
// one so the writer always persists the most recent state.
func (c *Collector) schedule(snapshot Stats) {
	if c.path == "" {
		return
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		c.logger.Warn("failed to encode stats snapshot", "error", err)
		return
	}

	for {
		select {
		case <-c.quit:
			return
		case c.writeCh <- data:
			return
		default:
		}
		// Channel full: replace the pending snapshot with this newer one.
		select {
		case <-c.writeCh:
		default:
		}
	}
}

// writer is the only goroutine that touches the snapshot file.
func (c *Collector) writer() {
	defer close(c.done)
	for {
		select {
		case data := <-c.writeCh:
			c.write(data)
		case <-c.quit:
			select {
			case data := <-c.writeCh:
				c.write(data)
			default:
			}
			return
		}
	}
}

func (c *Collector) write(data []byte) {
	if err := afero.WriteFile(c.fs, c.path, data, 0o644); err != nil {
		c.logger.Warn("failed to persist stats snapshot", "path", c.path, "error", err)
	}
}

// payloadInt coerces JSON-ish payload numbers to int.
func payloadInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
