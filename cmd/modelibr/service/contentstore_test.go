package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/modelibr/modelibr/common/apperrors"
	"github.com/modelibr/modelibr/common/cache"
	"github.com/modelibr/modelibr/common/config"
	"github.com/modelibr/modelibr/common/logger"
	"github.com/modelibr/modelibr/common/models"
	"github.com/modelibr/modelibr/common/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFileStore is an in-memory FileStore with the same conflict semantics
// as the Postgres repository
type fakeFileStore struct {
	mu         sync.Mutex
	records    map[string]*models.File
	referenced map[string]bool

	// conflictOnCreate makes the next Create report a conflict after
	// inserting winner, simulating a concurrent writer winning the race
	conflictOnCreate bool
	winner           *models.File
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{
		records:    make(map[string]*models.File),
		referenced: make(map[string]bool),
	}
}

func (f *fakeFileStore) Create(_ context.Context, file *models.File) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.conflictOnCreate {
		f.conflictOnCreate = false
		f.records[f.winner.ContentHash] = f.winner
		return apperrors.Wrap(apperrors.KindConflict, "content hash already exists", errors.New("23505"))
	}

	if _, exists := f.records[file.ContentHash]; exists {
		return apperrors.Wrap(apperrors.KindConflict, "content hash already exists", errors.New("23505"))
	}
	copied := *file
	f.records[file.ContentHash] = &copied
	return nil
}

func (f *fakeFileStore) GetByHash(_ context.Context, contentHash string) (*models.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	record, ok := f.records[contentHash]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (f *fakeFileStore) Delete(_ context.Context, contentHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.records[contentHash]; !ok {
		return apperrors.Newf(apperrors.KindNotFound, "file record not found: %s", contentHash)
	}
	delete(f.records, contentHash)
	return nil
}

func (f *fakeFileStore) HasReferences(_ context.Context, contentHash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.referenced[contentHash], nil
}

// failingReader fails the test if any bytes are read
type failingReader struct {
	t *testing.T
}

func (r *failingReader) Read([]byte) (int, error) {
	r.t.Fatal("reader was consumed before validation passed")
	return 0, errors.New("unreachable")
}

func newContentStore(t *testing.T, files *fakeFileStore, maxBytes int64) (*ContentStoreService, *storage.DiskStore) {
	t.Helper()

	log := logger.New("error", "text")
	store, err := storage.NewDiskStore(t.TempDir(), log)
	require.NoError(t, err)

	policy, err := NewUploadPolicy(config.DefaultUploadPolicy, maxBytes)
	require.NoError(t, err)

	return NewContentStoreService(files, store, policy, log), store
}

func TestResolve_DeduplicatesIdenticalContent(t *testing.T) {
	files := newFakeFileStore()
	svc, store := newContentStore(t, files, 0)
	ctx := context.Background()
	content := "v nvert data"

	first, err := svc.Resolve(ctx, strings.NewReader(content), "teapot.obj", models.CategoryModel, int64(len(content)))
	require.NoError(t, err)

	// Same content under a different name resolves to the first record
	second, err := svc.Resolve(ctx, strings.NewReader(content), "kettle.obj", models.CategoryModel, int64(len(content)))
	require.NoError(t, err)

	assert.Equal(t, first.ContentHash, second.ContentHash)
	assert.Equal(t, "teapot.obj", second.OriginalName)
	assert.Len(t, files.records, 1)

	present, err := store.Exists(first.RelativePath)
	require.NoError(t, err)
	assert.True(t, present)
}

func TestResolve_DistinctContentGetsDistinctRecords(t *testing.T) {
	files := newFakeFileStore()
	svc, _ := newContentStore(t, files, 0)
	ctx := context.Background()

	a, err := svc.Resolve(ctx, strings.NewReader("content a"), "a.obj", models.CategoryModel, 9)
	require.NoError(t, err)
	b, err := svc.Resolve(ctx, strings.NewReader("content b"), "b.obj", models.CategoryModel, 9)
	require.NoError(t, err)

	assert.NotEqual(t, a.ContentHash, b.ContentHash)
	assert.Len(t, files.records, 2)
}

func TestResolve_PolicyRejectsBeforeReadingStream(t *testing.T) {
	files := newFakeFileStore()
	svc, _ := newContentStore(t, files, 100)
	ctx := context.Background()

	// Declared size exceeds the cap: the reader must never be touched
	_, err := svc.Resolve(ctx, &failingReader{t: t}, "huge.obj", models.CategoryModel, 101)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Empty(t, files.records)
}

func TestResolve_ActualSizeRevalidated(t *testing.T) {
	files := newFakeFileStore()
	svc, _ := newContentStore(t, files, 10)
	ctx := context.Background()

	// Client declared 5 bytes but sent 20
	content := strings.Repeat("x", 20)
	_, err := svc.Resolve(ctx, strings.NewReader(content), "liar.obj", models.CategoryModel, 5)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Empty(t, files.records)
}

func TestResolve_HealsOrphanedRecord(t *testing.T) {
	files := newFakeFileStore()
	svc, store := newContentStore(t, files, 0)
	ctx := context.Background()
	content := "orphan me"

	first, err := svc.Resolve(ctx, strings.NewReader(content), "teapot.obj", models.CategoryModel, int64(len(content)))
	require.NoError(t, err)

	// Lose the physical file behind the store's back
	require.NoError(t, store.Remove(first.RelativePath))

	second, err := svc.Resolve(ctx, strings.NewReader(content), "teapot.obj", models.CategoryModel, int64(len(content)))
	require.NoError(t, err)

	assert.Equal(t, first.ContentHash, second.ContentHash)
	assert.Len(t, files.records, 1)

	present, err := store.Exists(second.RelativePath)
	require.NoError(t, err)
	assert.True(t, present, "healed record must have its file back")
}

func TestResolve_RecoversFromInsertRace(t *testing.T) {
	files := newFakeFileStore()
	svc, _ := newContentStore(t, files, 0)
	ctx := context.Background()
	content := "raced content"

	// Precompute the loser's view: a concurrent writer inserts the same
	// hash between our lookup and our insert
	staged := "raced content"
	winner := &models.File{
		ContentHash:  mustDigest(t, staged),
		StoredName:   "winner.obj",
		RelativePath: "model/xx/winner.obj",
		SizeBytes:    int64(len(staged)),
		MimeType:     "application/octet-stream",
		OriginalName: "winner.obj",
		Category:     models.CategoryModel,
	}
	files.conflictOnCreate = true
	files.winner = winner

	record, err := svc.Resolve(ctx, strings.NewReader(content), "loser.obj", models.CategoryModel, int64(len(content)))
	require.NoError(t, err)

	assert.Equal(t, winner.ContentHash, record.ContentHash)
	assert.Equal(t, "winner.obj", record.OriginalName)
	assert.Len(t, files.records, 1)
}

func TestOpen_RoundTrip(t *testing.T) {
	files := newFakeFileStore()
	svc, _ := newContentStore(t, files, 0)
	ctx := context.Background()
	content := "download me"

	record, err := svc.Resolve(ctx, strings.NewReader(content), "teapot.obj", models.CategoryModel, int64(len(content)))
	require.NoError(t, err)

	got, rc, err := svc.Open(ctx, record.ContentHash)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, record.ContentHash, got.ContentHash)
}

func TestOpen_UnknownHashIsNotFound(t *testing.T) {
	svc, _ := newContentStore(t, newFakeFileStore(), 0)

	_, _, err := svc.Open(context.Background(), "deadbeef")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestOpen_PurgesOrphanedRecord(t *testing.T) {
	files := newFakeFileStore()
	svc, store := newContentStore(t, files, 0)
	ctx := context.Background()
	content := "soon gone"

	record, err := svc.Resolve(ctx, strings.NewReader(content), "teapot.obj", models.CategoryModel, int64(len(content)))
	require.NoError(t, err)

	require.NoError(t, store.Remove(record.RelativePath))

	_, _, err = svc.Open(ctx, record.ContentHash)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Empty(t, files.records, "orphaned record must be purged on open")
}

func TestPurge_RefusesWhileReferenced(t *testing.T) {
	files := newFakeFileStore()
	svc, _ := newContentStore(t, files, 0)
	ctx := context.Background()
	content := "in use"

	record, err := svc.Resolve(ctx, strings.NewReader(content), "teapot.obj", models.CategoryModel, int64(len(content)))
	require.NoError(t, err)
	files.referenced[record.ContentHash] = true

	err = svc.Purge(ctx, record.ContentHash)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	assert.Len(t, files.records, 1)
}

func TestPurge_RemovesRecordAndFile(t *testing.T) {
	files := newFakeFileStore()
	svc, store := newContentStore(t, files, 0)
	ctx := context.Background()
	content := "delete me"

	record, err := svc.Resolve(ctx, strings.NewReader(content), "teapot.obj", models.CategoryModel, int64(len(content)))
	require.NoError(t, err)

	require.NoError(t, svc.Purge(ctx, record.ContentHash))

	assert.Empty(t, files.records)
	present, err := store.Exists(record.RelativePath)
	require.NoError(t, err)
	assert.False(t, present)

	err = svc.Purge(ctx, record.ContentHash)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestOpen_CachedRecordSkipsStore(t *testing.T) {
	files := newFakeFileStore()
	svc, _ := newContentStore(t, files, 0)
	svc.EnableCache(cache.NewMemoryCache(logger.New("error", "text")), time.Minute)
	ctx := context.Background()
	content := "cache me"

	record, err := svc.Resolve(ctx, strings.NewReader(content), "teapot.obj", models.CategoryModel, int64(len(content)))
	require.NoError(t, err)

	// First open populates the cache
	_, rc, err := svc.Open(ctx, record.ContentHash)
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	// Drop the record behind the cache's back; the cached copy still serves
	require.NoError(t, files.Delete(ctx, record.ContentHash))

	got, rc, err := svc.Open(ctx, record.ContentHash)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, record.ContentHash, got.ContentHash)
}

func TestPurge_EvictsCachedRecord(t *testing.T) {
	files := newFakeFileStore()
	svc, _ := newContentStore(t, files, 0)
	svc.EnableCache(cache.NewMemoryCache(logger.New("error", "text")), time.Minute)
	ctx := context.Background()
	content := "evict me"

	record, err := svc.Resolve(ctx, strings.NewReader(content), "teapot.obj", models.CategoryModel, int64(len(content)))
	require.NoError(t, err)

	_, rc, err := svc.Open(ctx, record.ContentHash)
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	require.NoError(t, svc.Purge(ctx, record.ContentHash))

	_, _, err = svc.Open(ctx, record.ContentHash)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func mustDigest(t *testing.T, content string) string {
	t.Helper()
	store, err := storage.NewDiskStore(t.TempDir(), logger.New("error", "text"))
	require.NoError(t, err)
	staged, err := store.Stage(strings.NewReader(content))
	require.NoError(t, err)
	require.NoError(t, store.Discard(staged))
	return staged.Digest
}
