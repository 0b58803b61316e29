package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/streamforge/reelpipe/internal/domain/repository"
)

// Client reports terminal job outcomes to the configured status-reporting
// endpoint with a single, non-retried POST. The pipeline treats notification
// as best-effort; this client just makes one attempt and reports what
// happened.
type Client struct {
	endpoint string
	client   *http.Client
}

var _ repository.StatusNotifier = (*Client)(nil)

// NewClient creates a status notifier for the given callback endpoint.
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// payload is the wire format of the status callback.
type payload struct {
	JobID        string          `json:"jobId"`
	Status       string          `json:"status"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	ErrorDetails *detailsPayload `json:"errorDetails,omitempty"`
}

type detailsPayload struct {
	Name  string `json:"name"`
	Stack string `json:"stack,omitempty"`
	Code  string `json:"code,omitempty"`
}

// Notify posts the terminal outcome for a job.
func (c *Client) Notify(ctx context.Context, report repository.StatusReport) error {
	p := payload{
		JobID:        report.JobID,
		Status:       report.Status,
		ErrorMessage: report.ErrorMessage,
	}
	if report.ErrorDetails != nil {
		p.ErrorDetails = &detailsPayload{
			Name:  report.ErrorDetails.Name,
			Stack: report.ErrorDetails.Stack,
			Code:  report.ErrorDetails.Code,
		}
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal status report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build status request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post status: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}

	return nil
}
