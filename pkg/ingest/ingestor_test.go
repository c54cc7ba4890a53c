package ingest

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp-forge/recall/pkg/events"
)

// recordingStore captures SaveDocument calls.
type recordingStore struct {
	saved   map[string][]string // source file -> chunks
	deleted []string
	saveErr error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{saved: map[string][]string{}}
}

func (r *recordingStore) SaveDocument(_ context.Context, text, sourceFile string) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saved[sourceFile] = append(r.saved[sourceFile], text)
	return nil
}

func (r *recordingStore) DeleteDocumentsBySource(_ context.Context, sourceFile string) (int64, error) {
	r.deleted = append(r.deleted, sourceFile)
	n := int64(len(r.saved[sourceFile]))
	delete(r.saved, sourceFile)
	return n, nil
}

func newTestIngestor(t *testing.T, fs afero.Fs, store *recordingStore, bus *events.Bus) *Ingestor {
	t.Helper()
	ing, err := NewIngestor(IngestorConfig{
		Fs:       fs,
		Store:    store,
		Manifest: NewManifest(ManifestConfig{Fs: fs, Path: "/data/manifest.json"}),
		Bus:      bus,
	})
	require.NoError(t, err)
	return ing
}

func TestIngestFileWritesChunks(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := newRecordingStore()
	bus := events.NewBus(events.BusConfig{})
	ing := newTestIngestor(t, fs, store, bus)
	defer ing.manifest.Close()

	require.NoError(t, afero.WriteFile(fs, "/docs/note.txt", []byte("a short note about coffee"), 0o644))

	chunks, err := ing.IngestFile(context.Background(), "/docs/note.txt")
	require.NoError(t, err)
	assert.Equal(t, 1, chunks)
	assert.Equal(t, []string{"a short note about coffee"}, store.saved["/docs/note.txt"])

	recent := bus.Recent(0)
	require.Len(t, recent, 1)
	assert.Equal(t, events.TypeIngestSuccess, recent[0].Type)
	assert.Equal(t, 1, recent[0].Payload["chunks"])
}

func TestIngestSkipsUnchangedFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := newRecordingStore()
	bus := events.NewBus(events.BusConfig{})
	ing := newTestIngestor(t, fs, store, bus)
	defer ing.manifest.Close()

	require.NoError(t, afero.WriteFile(fs, "/docs/note.txt", []byte("stable content"), 0o644))

	first, err := ing.IngestFile(context.Background(), "/docs/note.txt")
	require.NoError(t, err)
	assert.Equal(t, 1, first)

	second, err := ing.IngestFile(context.Background(), "/docs/note.txt")
	require.NoError(t, err)
	assert.Equal(t, 0, second, "unchanged file must be skipped")
}

func TestIngestReplacesChangedFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := newRecordingStore()
	bus := events.NewBus(events.BusConfig{})
	ing := newTestIngestor(t, fs, store, bus)
	defer ing.manifest.Close()

	require.NoError(t, afero.WriteFile(fs, "/docs/note.txt", []byte("version one"), 0o644))
	_, err := ing.IngestFile(context.Background(), "/docs/note.txt")
	require.NoError(t, err)

	require.NoError(t, afero.WriteFile(fs, "/docs/note.txt", []byte("version two, now longer"), 0o644))
	require.NoError(t, fs.Chtimes("/docs/note.txt", time.Now(), time.Now().Add(time.Second)))

	chunks, err := ing.IngestFile(context.Background(), "/docs/note.txt")
	require.NoError(t, err)
	assert.Equal(t, 1, chunks)

	// Old chunks were deleted before the re-ingest.
	assert.Contains(t, store.deleted, "/docs/note.txt")
	assert.Equal(t, []string{"version two, now longer"}, store.saved["/docs/note.txt"])
}

func TestIngestRejectsUnsupportedExtension(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := newRecordingStore()
	bus := events.NewBus(events.BusConfig{})
	ing := newTestIngestor(t, fs, store, bus)
	defer ing.manifest.Close()

	require.NoError(t, afero.WriteFile(fs, "/docs/image.png", []byte("binary"), 0o644))

	_, err := ing.IngestFile(context.Background(), "/docs/image.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file extension")

	recent := bus.Recent(0)
	require.Len(t, recent, 1)
	assert.Equal(t, events.TypeIngestError, recent[0].Type)
}

func TestIngestDirWalksSupportedFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := newRecordingStore()
	bus := events.NewBus(events.BusConfig{})
	ing := newTestIngestor(t, fs, store, bus)
	defer ing.manifest.Close()

	require.NoError(t, afero.WriteFile(fs, "/docs/a.txt", []byte("alpha notes"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/docs/sub/b.md", []byte("bravo notes"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/docs/skip.pdf", []byte("ignored"), 0o644))

	files, chunks, err := ing.IngestDir(context.Background(), "/docs")
	require.NoError(t, err)
	assert.Equal(t, 2, files)
	assert.Equal(t, 2, chunks)
	assert.NotContains(t, store.saved, "/docs/skip.pdf")
}

func TestIngestSaveFailurePublishesError(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := newRecordingStore()
	store.saveErr = assert.AnError
	bus := events.NewBus(events.BusConfig{})
	ing := newTestIngestor(t, fs, store, bus)
	defer ing.manifest.Close()

	require.NoError(t, afero.WriteFile(fs, "/docs/note.txt", []byte("content"), 0o644))

	_, err := ing.IngestFile(context.Background(), "/docs/note.txt")
	require.Error(t, err)

	recent := bus.Recent(0)
	require.Len(t, recent, 1)
	assert.Equal(t, events.TypeIngestError, recent[0].Type)
}

func TestManifestPersistsAcrossInstances(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/docs/note.txt", []byte("content"), 0o644))
	info, err := fs.Stat("/docs/note.txt")
	require.NoError(t, err)

	m := NewManifest(ManifestConfig{Fs: fs, Path: "/data/manifest.json"})
	assert.True(t, m.ShouldIngest("/docs/note.txt", info))
	m.Record("/docs/note.txt", info)
	assert.False(t, m.ShouldIngest("/docs/note.txt", info))
	m.Close()

	data, err := afero.ReadFile(fs, "/data/manifest.json")
	require.NoError(t, err)
	var entries map[string]ManifestEntry
	require.NoError(t, json.Unmarshal(data, &entries))
	assert.Equal(t, info.Size(), entries["/docs/note.txt"].Size)

	// A fresh manifest over the same file restores the skip state.
	reloaded := NewManifest(ManifestConfig{Fs: fs, Path: "/data/manifest.json"})
	defer reloaded.Close()
	assert.False(t, reloaded.ShouldIngest("/docs/note.txt", info))
	assert.Equal(t, 1, reloaded.Len())
}

func TestManifestDiscardsCorruptFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/manifest.json", []byte("{oops"), 0o644))

	m := NewManifest(ManifestConfig{Fs: fs, Path: "/data/manifest.json"})
	defer m.Close()
	assert.Equal(t, 0, m.Len())
}

func TestManifestForget(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/docs/note.txt", []byte("content"), 0o644))
	info, err := fs.Stat("/docs/note.txt")
	require.NoError(t, err)

	m := NewManifest(ManifestConfig{Fs: fs, Path: ""})
	defer m.Close()

	m.Record("/docs/note.txt", info)
	require.False(t, m.ShouldIngest("/docs/note.txt", info))

	m.Forget("/docs/note.txt")
	assert.True(t, m.ShouldIngest("/docs/note.txt", info))
}

func TestUnsupportedExtensionCheckIsCaseInsensitive(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := newRecordingStore()
	bus := events.NewBus(events.BusConfig{})
	ing := newTestIngestor(t, fs, store, bus)
	defer ing.manifest.Close()

	require.NoError(t, afero.WriteFile(fs, "/docs/NOTE.TXT", []byte("shouting notes"), 0o644))

	chunks, err := ing.IngestFile(context.Background(), "/docs/NOTE.TXT")
	require.NoError(t, err)
	assert.Equal(t, 1, chunks)
	assert.True(t, strings.HasSuffix(store.deleted[0], "NOTE.TXT"))
}
