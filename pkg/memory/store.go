package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"
)

// Scope selects which tables a search covers.
type Scope string

// Query scopes.
const (
	ScopeHybrid        Scope = "hybrid"
	ScopeFactsOnly     Scope = "facts_only"
	ScopeDocumentsOnly Scope = "documents_only"
)

// Embedder maps text to the repository-wide fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store is the two-table vector repository.
type Store struct {
	db          *gorm.DB
	embedder    Embedder
	scope       Scope
	strictMatch bool
	logger      hclog.Logger

	migrateMu sync.Mutex
	migrated  map[string]bool
}

// StoreConfig holds configuration for the memory store.
type StoreConfig struct {
	DB       *gorm.DB
	Embedder Embedder
	Scope    Scope // default: hybrid

	// StrictMatch controls the lexical guardrail's empty-result fallback.
	// nil means on: vector-only matches on unrelated content must not leak
	// into a privacy-sensitive response.
	StrictMatch *bool

	Logger hclog.Logger
}

// NewStore creates a memory store.
func NewStore(config StoreConfig) (*Store, error) {
	if config.DB == nil {
		return nil, fmt.Errorf("memory: database connection is required")
	}
	if config.Embedder == nil {
		return nil, fmt.Errorf("memory: embedder is required")
	}
	if config.Scope == "" {
		config.Scope = ScopeHybrid
	}
	if config.Logger == nil {
		config.Logger = hclog.NewNullLogger()
	}

	strict := true
	if config.StrictMatch != nil {
		strict = *config.StrictMatch
	}

	return &Store{
		db:          config.DB,
		embedder:    config.Embedder,
		scope:       config.Scope,
		strictMatch: strict,
		logger:      config.Logger.Named("memory-store"),
		migrated:    make(map[string]bool),
	}, nil
}

// SaveDocument stores one ingested chunk. The category is the source file's
// basename, which is also the key source-file deletion matches on.
func (s *Store) SaveDocument(ctx context.Context, text, sourceFile string) error {
	return s.save(ctx, TableDocuments, text, filepath.Base(sourceFile), SourceDocument)
}

// SaveUserFact stores one user-authored fact.
func (s *Store) SaveUserFact(ctx context.Context, fact, category string) error {
	return s.save(ctx, TableUserFacts, fact, category, SourceUserFact)
}

func (s *Store) save(ctx context.Context, table, text, category string, source Source) error {
	if strings.Join(strings.Fields(text), " ") == "" {
		s.logger.Debug("skipping save of empty text", "table", table)
		return nil
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("memory: failed to embed text: %w", err)
	}
	if len(vec) == 0 {
		s.logger.Debug("embedding came back empty, nothing to write", "table", table)
		return nil
	}

	if err := s.ensureTable(table); err != nil {
		return err
	}

	rec := Record{
		ID:        uuid.NewString(),
		Text:      text,
		Vector:    encodeVector(vec),
		Category:  category,
		Source:    string(source),
		CreatedAt: time.Now().UTC(),
	}

	if err := s.db.WithContext(ctx).Table(table).Create(&rec).Error; err != nil {
		return fmt.Errorf("memory: failed to write record: %w", err)
	}

	s.logger.Debug("saved record",
		"table", table,
		"id", rec.ID,
		"category", category,
		"text_length", len(text),
	)
	return nil
}

// Recent returns the most recently created records across both tables.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 10
	}

	var all []Record
	for _, table := range []string{TableDocuments, TableUserFacts} {
		if !s.tableExists(table) {
			continue
		}
		var recs []Record
		err := s.db.WithContext(ctx).Table(table).
			Order("created_at DESC").
			Limit(limit).
			Find(&recs).Error
		if err != nil {
			return nil, fmt.Errorf("memory: failed to read %s: %w", table, err)
		}
		all = append(all, recs...)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// DeleteDocumentsBySource removes document chunks whose category equals the
// source file's basename. Two ingested files with the same basename under
// different directories are jointly deleted; known collision.
func (s *Store) DeleteDocumentsBySource(ctx context.Context, sourceFile string) (int64, error) {
	if !s.tableExists(TableDocuments) {
		return 0, nil
	}

	res := s.db.WithContext(ctx).Table(TableDocuments).
		Where("category = ? AND source = ?", filepath.Base(sourceFile), string(SourceDocument)).
		Delete(&Record{})
	if res.Error != nil {
		return 0, fmt.Errorf("memory: failed to delete documents: %w", res.Error)
	}

	s.logger.Info("deleted documents by source",
		"source_file", sourceFile,
		"deleted", res.RowsAffected,
	)
	return res.RowsAffected, nil
}

// ClearDocuments removes every document record. Scoped by the source tag,
// not table truncation, so schema state is preserved.
func (s *Store) ClearDocuments(ctx context.Context) (int64, error) {
	return s.clear(ctx, TableDocuments, SourceDocument)
}

// ClearUserFacts removes every user fact.
func (s *Store) ClearUserFacts(ctx context.Context) (int64, error) {
	return s.clear(ctx, TableUserFacts, SourceUserFact)
}

func (s *Store) clear(ctx context.Context, table string, source Source) (int64, error) {
	if !s.tableExists(table) {
		return 0, nil
	}

	res := s.db.WithContext(ctx).Table(table).
		Where("source = ?", string(source)).
		Delete(&Record{})
	if res.Error != nil {
		return 0, fmt.Errorf("memory: failed to clear %s: %w", table, res.Error)
	}

	s.logger.Info("cleared table", "table", table, "deleted", res.RowsAffected)
	return res.RowsAffected, nil
}

// ensureTable creates the table from the first record written to it.
func (s *Store) ensureTable(table string) error {
	s.migrateMu.Lock()
	defer s.migrateMu.Unlock()

	if s.migrated[table] {
		return nil
	}
	if err := s.db.Table(table).AutoMigrate(&Record{}); err != nil {
		return fmt.Errorf("memory: failed to create table %s: %w", table, err)
	}
	s.migrated[table] = true
	return nil
}

func (s *Store) tableExists(table string) bool {
	s.migrateMu.Lock()
	if s.migrated[table] {
		s.migrateMu.Unlock()
		return true
	}
	s.migrateMu.Unlock()
	return s.db.Migrator().HasTable(table)
}
