package events

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/modelibr/modelibr/common/logger"
	"github.com/modelibr/modelibr/common/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	name     string
	received []Event
	err      error
}

func (h *recordingHandler) Name() string { return h.name }

func (h *recordingHandler) Handle(_ context.Context, event Event) error {
	h.received = append(h.received, event)
	return h.err
}

func TestDispatch_DeliversToAllHandlers(t *testing.T) {
	d := NewDispatcher(logger.New("error", "text"))

	first := &recordingHandler{name: "first"}
	second := &recordingHandler{name: "second"}
	d.Register(first)
	d.Register(second)

	job := models.NewThumbnailJob(models.TargetModelVersion, uuid.New(), "abc123")
	evts := []Event{
		NewEvent(job, models.ThumbnailReady),
		NewEvent(job, models.ThumbnailFailed),
	}

	d.Dispatch(context.Background(), evts)

	require.Len(t, first.received, 2)
	require.Len(t, second.received, 2)
	assert.Equal(t, models.ThumbnailReady, first.received[0].Status)
	assert.Equal(t, models.ThumbnailFailed, first.received[1].Status)
}

func TestDispatch_HandlerFailureDoesNotBlockOthers(t *testing.T) {
	d := NewDispatcher(logger.New("error", "text"))

	failing := &recordingHandler{name: "failing", err: errors.New("broker down")}
	healthy := &recordingHandler{name: "healthy"}
	d.Register(failing)
	d.Register(healthy)

	job := models.NewThumbnailJob(models.TargetModelVersion, uuid.New(), "abc123")
	d.Dispatch(context.Background(), []Event{NewEvent(job, models.ThumbnailReady)})

	// The failing handler ran, and the failure never reached the healthy one
	assert.Len(t, failing.received, 1)
	assert.Len(t, healthy.received, 1)
}

func TestNewEvent_CarriesJobTarget(t *testing.T) {
	job := models.NewThumbnailJob(models.TargetSound, uuid.New(), "def456")

	event := NewEvent(job, models.ThumbnailReady)

	assert.Equal(t, job.TargetKind, event.TargetKind)
	assert.Equal(t, job.TargetID, event.TargetID)
	assert.Equal(t, job.ID, event.JobID)
	assert.Equal(t, models.ThumbnailReady, event.Status)
	assert.False(t, event.OccurredAt.IsZero())
}
