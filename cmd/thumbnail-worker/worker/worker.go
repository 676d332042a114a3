package worker

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/modelibr/modelibr/cmd/thumbnail-worker/client"
	"github.com/modelibr/modelibr/common/logger"
	"github.com/modelibr/modelibr/common/models"
	"github.com/modelibr/modelibr/common/storage"
)

// ThumbnailWorker polls the worker protocol for jobs, renders thumbnails and
// reports results. Workers write artifacts onto the storage volume shared
// with the API service; everything else goes over HTTP.
type ThumbnailWorker struct {
	api          *client.APIClient
	store        storage.Store
	log          *logger.Logger
	workerID     string
	pollInterval time.Duration
	edge         int
}

// NewThumbnailWorker creates a worker with a unique worker ID
func NewThumbnailWorker(api *client.APIClient, store storage.Store, log *logger.Logger, pollInterval time.Duration, edge int) *ThumbnailWorker {
	return &ThumbnailWorker{
		api:          api,
		store:        store,
		log:          log,
		workerID:     fmt.Sprintf("thumbnail_worker_%s", uuid.New().String()[:8]),
		pollInterval: pollInterval,
		edge:         edge,
	}
}

// WorkerID returns the identity used for job leases
func (w *ThumbnailWorker) WorkerID() string {
	return w.workerID
}

// Start runs the poll loop until the context is canceled
func (w *ThumbnailWorker) Start(ctx context.Context) error {
	w.log.Info("starting thumbnail worker",
		"worker_id", w.workerID,
		"poll_interval", w.pollInterval,
		"edge", w.edge,
	)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("thumbnail worker stopping")
			return nil
		default:
			claimed, err := w.processNext(ctx)
			if err != nil {
				w.log.Error("failed to process job", "error", err)
				time.Sleep(1 * time.Second) // Back off on error
				continue
			}
			if !claimed {
				time.Sleep(w.pollInterval)
			}
		}
	}
}

// processNext claims and processes one job. Returns false when the queue was
// empty.
func (w *ThumbnailWorker) processNext(ctx context.Context) (bool, error) {
	job, err := w.api.Dequeue(ctx, w.workerID)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	w.log.Info("processing job",
		"job_id", job.ID,
		"target_kind", job.TargetKind,
		"target_id", job.TargetID,
		"attempt", job.AttemptCount+1,
	)

	artifact, renderErr := w.render(ctx, job)
	if renderErr != nil {
		// The report itself may fail; that error surfaces to the poll loop
		// and the lease expiry eventually requeues the job.
		if err := w.api.Finish(ctx, job.ID, w.workerID, false, nil, renderErr.Error()); err != nil {
			return true, fmt.Errorf("failed to report job failure: %w", err)
		}
		w.log.Warn("job failed", "job_id", job.ID, "error", renderErr)
		return true, nil
	}

	if err := w.api.Finish(ctx, job.ID, w.workerID, true, artifact, ""); err != nil {
		return true, fmt.Errorf("failed to report job success: %w", err)
	}

	w.log.Info("job completed", "job_id", job.ID, "artifact", artifact.RelativePath)
	return true, nil
}

// render downloads the job's content, renders the thumbnail and publishes it
// to the shared storage volume
func (w *ThumbnailWorker) render(ctx context.Context, job *models.ThumbnailJob) (*models.ArtifactRef, error) {
	src, err := w.api.DownloadFile(ctx, job.ContentHash)
	if err != nil {
		return nil, fmt.Errorf("failed to download source content: %w", err)
	}
	defer src.Body.Close()

	renderer := SelectRenderer(src.MimeType, src.Name, job.ContentHash)
	img, err := renderer.Render(src.Body, w.edge)
	if err != nil {
		return nil, err
	}

	relPath := thumbnailPath(job)
	out, err := w.store.Create(relPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create thumbnail file: %w", err)
	}

	counter := &countingWriter{w: out}
	if err := EncodePNG(counter, img); err != nil {
		out.Close()
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("failed to publish thumbnail: %w", err)
	}

	bounds := img.Bounds()
	return &models.ArtifactRef{
		RelativePath: relPath,
		SizeBytes:    counter.n,
		Width:        bounds.Dx(),
		Height:       bounds.Dy(),
	}, nil
}

// thumbnailPath is the canonical artifact location for a job's target.
// Regenerations overwrite in place via the atomic publish.
func thumbnailPath(job *models.ThumbnailJob) string {
	return fmt.Sprintf("thumbnails/%s/%s.png", job.TargetKind, job.TargetID)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
