package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelibr/modelibr/common/apperrors"
	"github.com/modelibr/modelibr/common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *DiskStore {
	t.Helper()
	store, err := NewDiskStore(t.TempDir(), logger.New("error", "text"))
	require.NoError(t, err)
	return store
}

func TestStage_ComputesDigestAndSize(t *testing.T) {
	store := newTestStore(t)
	content := "not really a 3d model"

	staged, err := store.Stage(strings.NewReader(content))
	require.NoError(t, err)
	defer store.Discard(staged)

	sum := sha256.Sum256([]byte(content))
	assert.Equal(t, hex.EncodeToString(sum[:]), staged.Digest)
	assert.Equal(t, int64(len(content)), staged.SizeBytes)

	// Staged files live under .staging, never at a content path
	assert.Contains(t, staged.TempPath, ".staging")
}

func TestPublish_MovesStagedFileIntoPlace(t *testing.T) {
	store := newTestStore(t)

	staged, err := store.Stage(strings.NewReader("payload"))
	require.NoError(t, err)

	relPath := ContentPath("model", staged.Digest, "obj")
	require.NoError(t, store.Publish(staged, relPath))

	present, err := store.Exists(relPath)
	require.NoError(t, err)
	assert.True(t, present)

	// The staged temp file is gone after publish
	_, err = os.Stat(staged.TempPath)
	assert.True(t, os.IsNotExist(err))

	rc, err := store.Open(relPath)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestCreate_PublishesOnCloseOnly(t *testing.T) {
	store := newTestStore(t)
	relPath := "thumbnails/model-version/some-id.png"

	w, err := store.Create(relPath)
	require.NoError(t, err)

	_, err = w.Write([]byte("png bytes"))
	require.NoError(t, err)

	// Not visible until Close
	present, err := store.Exists(relPath)
	require.NoError(t, err)
	assert.False(t, present)

	require.NoError(t, w.Close())

	present, err = store.Exists(relPath)
	require.NoError(t, err)
	assert.True(t, present)
}

func TestOpen_MissingFileIsNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Open("model/ab/abcdef.obj")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRemove_MissingFileIsNoError(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.Remove("model/ab/gone.obj"))
}

func TestDiscard_RemovesStagedFile(t *testing.T) {
	store := newTestStore(t)

	staged, err := store.Stage(strings.NewReader("abandoned"))
	require.NoError(t, err)

	require.NoError(t, store.Discard(staged))
	_, err = os.Stat(staged.TempPath)
	assert.True(t, os.IsNotExist(err))

	// Discarding twice is harmless
	assert.NoError(t, store.Discard(staged))
}

func TestContentPath_Layout(t *testing.T) {
	digest := "ab12cd34"

	assert.Equal(t, "model/ab/ab12cd34.obj", ContentPath("model", digest, "obj"))
	assert.Equal(t, "sound/ab/ab12cd34", ContentPath("sound", digest, ""))
}

func TestAbsPath_ResolvesUnderRoot(t *testing.T) {
	store := newTestStore(t)

	abs := store.AbsPath("model/ab/abcd.obj")
	assert.Equal(t, filepath.Join(store.Root(), "model", "ab", "abcd.obj"), abs)
}
