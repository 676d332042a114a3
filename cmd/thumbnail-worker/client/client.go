package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/modelibr/modelibr/common/logger"
	"github.com/modelibr/modelibr/common/models"
)

// APIClient talks the worker protocol to the API service. Workers carry no
// database credentials; every claim and report goes through these endpoints.
type APIClient struct {
	baseURL string
	http    *http.Client
	log     *logger.Logger
}

// NewAPIClient creates a worker protocol client
func NewAPIClient(baseURL string, log *logger.Logger) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
		log:     log,
	}
}

type dequeueRequest struct {
	WorkerID string `json:"worker_id"`
}

type finishRequest struct {
	WorkerID string              `json:"worker_id"`
	Success  bool                `json:"success"`
	Artifact *models.ArtifactRef `json:"artifact,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// Dequeue claims the oldest eligible job. Returns (nil, nil) when the queue
// is empty.
func (c *APIClient) Dequeue(ctx context.Context, workerID string) (*models.ThumbnailJob, error) {
	body, err := json.Marshal(dequeueRequest{WorkerID: workerID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dequeue request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/worker/dequeue", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build dequeue request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dequeue request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil, nil
	case http.StatusOK:
		var job models.ThumbnailJob
		if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
			return nil, fmt.Errorf("failed to decode job: %w", err)
		}
		return &job, nil
	default:
		return nil, fmt.Errorf("dequeue returned status %d", resp.StatusCode)
	}
}

// Finish reports a job result. A 409 means the claim went stale; the caller
// should drop the job without retrying the report.
func (c *APIClient) Finish(ctx context.Context, jobID uuid.UUID, workerID string, success bool, artifact *models.ArtifactRef, errMsg string) error {
	body, err := json.Marshal(finishRequest{
		WorkerID: workerID,
		Success:  success,
		Artifact: artifact,
		Error:    errMsg,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal finish request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/worker/jobs/%s/finish", c.baseURL, jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build finish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("finish request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil
	case http.StatusConflict:
		c.log.Warn("finish report was stale", "job_id", jobID, "worker_id", workerID)
		return nil
	default:
		return fmt.Errorf("finish returned status %d", resp.StatusCode)
	}
}

// SourceFile is a downloaded content stream plus the metadata the renderer
// needs to pick a strategy
type SourceFile struct {
	Body     io.ReadCloser
	MimeType string
	Name     string
}

// DownloadFile streams a file from the content store by hash
func (c *APIClient) DownloadFile(ctx context.Context, contentHash string) (*SourceFile, error) {
	url := fmt.Sprintf("%s/api/v1/files/%s", c.baseURL, contentHash)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download of %s returned status %d", contentHash, resp.StatusCode)
	}

	name := contentHash
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		if fn := params["filename"]; fn != "" {
			name = fn
		}
	}

	return &SourceFile{
		Body:     resp.Body,
		MimeType: resp.Header.Get("Content-Type"),
		Name:     name,
	}, nil
}
