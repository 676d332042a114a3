package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/modelibr/modelibr/common/logger"
	"github.com/modelibr/modelibr/common/models"
)

// Event records that a derived artifact changed status. State transitions
// return events alongside their result; they are dispatched only after the
// transition has been persisted.
type Event struct {
	TargetKind models.TargetKind      `json:"target_kind"`
	TargetID   uuid.UUID              `json:"target_id"`
	Status     models.ThumbnailStatus `json:"status"`
	JobID      uuid.UUID              `json:"job_id"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// NewEvent builds a status-changed event for a job's target
func NewEvent(job *models.ThumbnailJob, status models.ThumbnailStatus) Event {
	return Event{
		TargetKind: job.TargetKind,
		TargetID:   job.TargetID,
		Status:     status,
		JobID:      job.ID,
		OccurredAt: time.Now().UTC(),
	}
}

// Handler receives dispatched events. Handlers must tolerate redelivery and
// must not assume ordering across targets.
type Handler interface {
	Name() string
	Handle(ctx context.Context, event Event) error
}

// Dispatcher delivers events to registered handlers. A handler failure is
// logged and does not block delivery to the remaining handlers; the state
// change that produced the event has already committed.
type Dispatcher struct {
	handlers []Handler
	log      *logger.Logger
}

// NewDispatcher creates a dispatcher with no handlers registered
func NewDispatcher(log *logger.Logger) *Dispatcher {
	return &Dispatcher{log: log}
}

// Register adds a handler. Not safe for concurrent use with Dispatch;
// register everything during wiring.
func (d *Dispatcher) Register(h Handler) {
	d.handlers = append(d.handlers, h)
	d.log.Info("event handler registered", "handler", h.Name())
}

// Dispatch delivers each event to every handler in registration order
func (d *Dispatcher) Dispatch(ctx context.Context, evts []Event) {
	for _, evt := range evts {
		for _, h := range d.handlers {
			if err := h.Handle(ctx, evt); err != nil {
				d.log.Error("event handler failed",
					"handler", h.Name(),
					"target_kind", evt.TargetKind,
					"target_id", evt.TargetID,
					"status", evt.Status,
					"error", err,
				)
			}
		}
	}
}
