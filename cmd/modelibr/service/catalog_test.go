package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/modelibr/modelibr/common/apperrors"
	"github.com/modelibr/modelibr/common/config"
	"github.com/modelibr/modelibr/common/events"
	"github.com/modelibr/modelibr/common/logger"
	"github.com/modelibr/modelibr/common/models"
	"github.com/modelibr/modelibr/common/queue"
	"github.com/modelibr/modelibr/common/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeModelStore is an in-memory ModelStore
type fakeModelStore struct {
	models   map[uuid.UUID]*models.Model
	versions []*models.ModelVersion
}

func newFakeModelStore() *fakeModelStore {
	return &fakeModelStore{models: make(map[uuid.UUID]*models.Model)}
}

func (f *fakeModelStore) Create(_ context.Context, model *models.Model) error {
	copied := *model
	f.models[model.ID] = &copied
	return nil
}

func (f *fakeModelStore) GetByID(_ context.Context, modelID uuid.UUID) (*models.Model, error) {
	model, ok := f.models[modelID]
	if !ok {
		return nil, apperrors.Newf(apperrors.KindNotFound, "model not found: %s", modelID)
	}
	copied := *model
	return &copied, nil
}

func (f *fakeModelStore) List(_ context.Context, search string, limit int) ([]*models.Model, error) {
	var result []*models.Model
	for _, m := range f.models {
		if search == "" || strings.Contains(strings.ToLower(m.Name), strings.ToLower(search)) {
			copied := *m
			result = append(result, &copied)
		}
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

func (f *fakeModelStore) Update(_ context.Context, model *models.Model) error {
	if _, ok := f.models[model.ID]; !ok {
		return apperrors.Newf(apperrors.KindNotFound, "model not found: %s", model.ID)
	}
	copied := *model
	copied.UpdatedAt = time.Now().UTC()
	f.models[model.ID] = &copied
	return nil
}

func (f *fakeModelStore) CreateVersion(_ context.Context, version *models.ModelVersion) error {
	if version.IsActive {
		for _, v := range f.versions {
			if v.ModelID == version.ModelID {
				v.IsActive = false
			}
		}
	}
	copied := *version
	f.versions = append(f.versions, &copied)
	return nil
}

func (f *fakeModelStore) NextVersionNumber(_ context.Context, modelID uuid.UUID) (int, error) {
	max := 0
	for _, v := range f.versions {
		if v.ModelID == modelID && v.VersionNumber > max {
			max = v.VersionNumber
		}
	}
	return max + 1, nil
}

func (f *fakeModelStore) ListVersions(_ context.Context, modelID uuid.UUID) ([]*models.ModelVersion, error) {
	var result []*models.ModelVersion
	for _, v := range f.versions {
		if v.ModelID == modelID {
			copied := *v
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (f *fakeModelStore) GetActiveVersion(_ context.Context, modelID uuid.UUID) (*models.ModelVersion, error) {
	for _, v := range f.versions {
		if v.ModelID == modelID && v.IsActive {
			copied := *v
			return &copied, nil
		}
	}
	return nil, nil
}

// memJobStore records enqueued jobs; the catalog never claims or finishes
type memJobStore struct {
	jobs []*models.ThumbnailJob
}

func (m *memJobStore) Create(_ context.Context, job *models.ThumbnailJob) error {
	copied := *job
	m.jobs = append(m.jobs, &copied)
	return nil
}

func (m *memJobStore) GetByID(context.Context, uuid.UUID) (*models.ThumbnailJob, error) {
	return nil, nil
}

func (m *memJobStore) Claim(context.Context, string, time.Duration) (*models.ThumbnailJob, error) {
	return nil, nil
}

func (m *memJobStore) Complete(context.Context, uuid.UUID, string) (*models.ThumbnailJob, error) {
	return nil, nil
}

func (m *memJobStore) Fail(context.Context, uuid.UUID, string, string, int, bool) (*models.ThumbnailJob, error) {
	return nil, nil
}

type memEventStore struct {
	events []*models.ThumbnailJobEvent
}

func (m *memEventStore) Create(_ context.Context, event *models.ThumbnailJobEvent) error {
	m.events = append(m.events, event)
	return nil
}

type memThumbnailStore struct {
	statuses map[string]models.ThumbnailStatus
}

func (m *memThumbnailStore) SetStatus(_ context.Context, kind models.TargetKind, targetID uuid.UUID, status models.ThumbnailStatus) error {
	m.statuses[string(kind)+"/"+targetID.String()] = status
	return nil
}

func (m *memThumbnailStore) SetReady(_ context.Context, kind models.TargetKind, targetID uuid.UUID, _ *models.ArtifactRef) error {
	m.statuses[string(kind)+"/"+targetID.String()] = models.ThumbnailReady
	return nil
}

type allTargetsExist struct{}

func (allTargetsExist) TargetExists(context.Context, models.TargetKind, uuid.UUID) (bool, error) {
	return true, nil
}

type catalogFixture struct {
	catalog *CatalogService
	models  *fakeModelStore
	jobs    *memJobStore
	thumbs  *memThumbnailStore
}

func newCatalogFixture(t *testing.T) *catalogFixture {
	t.Helper()

	log := logger.New("error", "text")
	store, err := storage.NewDiskStore(t.TempDir(), log)
	require.NoError(t, err)

	policy, err := NewUploadPolicy(config.DefaultUploadPolicy, 0)
	require.NoError(t, err)

	files := newFakeFileStore()
	contentStore := NewContentStoreService(files, store, policy, log)

	jobs := &memJobStore{}
	thumbs := &memThumbnailStore{statuses: make(map[string]models.ThumbnailStatus)}
	q := queue.New(jobs, &memEventStore{}, thumbs, allTargetsExist{}, events.NewDispatcher(log), log, 3, 2*time.Minute)

	modelStore := newFakeModelStore()
	return &catalogFixture{
		catalog: NewCatalogService(modelStore, contentStore, q, log),
		models:  modelStore,
		jobs:    jobs,
		thumbs:  thumbs,
	}
}

func TestCreateModel_CreatesActiveVersionAndEnqueuesJob(t *testing.T) {
	fx := newCatalogFixture(t)
	ctx := context.Background()
	content := "mesh data"

	model, version, err := fx.catalog.CreateModel(ctx, strings.NewReader(content), "teapot.obj", int64(len(content)))
	require.NoError(t, err)

	assert.Equal(t, "teapot.obj", model.Name)
	assert.Equal(t, 1, version.VersionNumber)
	assert.True(t, version.IsActive)
	assert.Equal(t, model.ID, version.ModelID)

	// One Pending job targeting the new version
	require.Len(t, fx.jobs.jobs, 1)
	job := fx.jobs.jobs[0]
	assert.Equal(t, models.TargetModelVersion, job.TargetKind)
	assert.Equal(t, version.ID, job.TargetID)
	assert.Equal(t, version.ContentHash, job.ContentHash)
	assert.Equal(t, models.JobStatusPending, job.Status)

	// Thumbnail row marked Pending
	assert.Equal(t, models.ThumbnailPending,
		fx.thumbs.statuses[string(models.TargetModelVersion)+"/"+version.ID.String()])
}

func TestAddVersion_AssignsSequentialNumbers(t *testing.T) {
	fx := newCatalogFixture(t)
	ctx := context.Background()

	model, v1, err := fx.catalog.CreateModel(ctx, strings.NewReader("rev one"), "teapot.obj", 7)
	require.NoError(t, err)

	v2, err := fx.catalog.AddVersion(ctx, model.ID, strings.NewReader("rev two"), "teapot.obj", 7, true)
	require.NoError(t, err)
	assert.Equal(t, 2, v2.VersionNumber)
	assert.True(t, v2.IsActive)

	// Activating v2 deactivated v1
	active, err := fx.catalog.GetActiveVersion(ctx, model.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, v2.ID, active.ID)
	assert.NotEqual(t, v1.ID, active.ID)

	// A non-active version leaves the active pointer alone
	v3, err := fx.catalog.AddVersion(ctx, model.ID, strings.NewReader("rev three"), "teapot.obj", 9, false)
	require.NoError(t, err)
	assert.Equal(t, 3, v3.VersionNumber)

	active, err = fx.catalog.GetActiveVersion(ctx, model.ID)
	require.NoError(t, err)
	assert.Equal(t, v2.ID, active.ID)

	// Every version got a thumbnail job
	assert.Len(t, fx.jobs.jobs, 3)
}

func TestAddVersion_UnknownModelIsNotFound(t *testing.T) {
	fx := newCatalogFixture(t)

	_, err := fx.catalog.AddVersion(context.Background(), uuid.New(), strings.NewReader("data"), "teapot.obj", 4, true)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Empty(t, fx.jobs.jobs)
}

func TestPatchModel_MergePatchSemantics(t *testing.T) {
	fx := newCatalogFixture(t)
	ctx := context.Background()

	model, _, err := fx.catalog.CreateModel(ctx, strings.NewReader("mesh"), "teapot.obj", 4)
	require.NoError(t, err)

	// Seed metadata, then patch: replace one key, add one, remove one via null
	_, err = fx.catalog.PatchModel(ctx, model.ID, []byte(`{"metadata":{"artist":"ada","polys":1200}}`))
	require.NoError(t, err)

	patched, err := fx.catalog.PatchModel(ctx, model.ID,
		[]byte(`{"name":"utah teapot","metadata":{"artist":"grace","polys":null,"format":"obj"}}`))
	require.NoError(t, err)

	assert.Equal(t, "utah teapot", patched.Name)
	assert.Equal(t, "grace", patched.Metadata["artist"])
	assert.Equal(t, "obj", patched.Metadata["format"])
	assert.NotContains(t, patched.Metadata, "polys")
}

func TestPatchModel_RejectsInvalidPatch(t *testing.T) {
	fx := newCatalogFixture(t)
	ctx := context.Background()

	model, _, err := fx.catalog.CreateModel(ctx, strings.NewReader("mesh"), "teapot.obj", 4)
	require.NoError(t, err)

	_, err = fx.catalog.PatchModel(ctx, model.ID, []byte(`{not json`))
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = fx.catalog.PatchModel(ctx, model.ID, []byte(`{"name":""}`))
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	// The model is untouched
	got, err := fx.catalog.GetModel(ctx, model.ID)
	require.NoError(t, err)
	assert.Equal(t, "teapot.obj", got.Name)
}

func TestCreateModel_RejectedUploadCreatesNothing(t *testing.T) {
	fx := newCatalogFixture(t)

	_, _, err := fx.catalog.CreateModel(context.Background(), strings.NewReader(""), "empty.obj", 0)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Empty(t, fx.models.models)
	assert.Empty(t, fx.jobs.jobs)
}
