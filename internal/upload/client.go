package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/soundcheck-ai/soundcheck/internal/config"
	"github.com/soundcheck-ai/soundcheck/internal/protocol"
)

var (
	// ErrUploadFailed covers transport failures, non-2xx responses and
	// undecodable bodies.
	ErrUploadFailed = errors.New("upload failed")
	// ErrUploadInFlight is returned when Submit is called while a previous
	// submission has not finished.
	ErrUploadInFlight = errors.New("upload already in flight")
)

// Client posts recorded clips to the processing endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
	inflight   atomic.Bool
}

func NewClient(cfg config.UploadConfig, logger *slog.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("component", "uploader")),
	}
}

// Submit uploads one clip with the job description and returns the decoded
// processing result. Only one submission may be in flight at a time; the
// caller keeps its previous result on any failure.
func (c *Client) Submit(ctx context.Context, clip []byte, jobDescription string) (protocol.ProcessedResult, error) {
	if !c.inflight.CompareAndSwap(false, true) {
		return protocol.ProcessedResult{}, ErrUploadInFlight
	}
	defer c.inflight.Store(false)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("audio", "answer.wav")
	if err != nil {
		return protocol.ProcessedResult{}, fmt.Errorf("create audio part: %w", err)
	}
	if _, err := part.Write(clip); err != nil {
		return protocol.ProcessedResult{}, fmt.Errorf("write audio part: %w", err)
	}
	if err := writer.WriteField("job_description", jobDescription); err != nil {
		return protocol.ProcessedResult{}, fmt.Errorf("write job description: %w", err)
	}
	if err := writer.Close(); err != nil {
		return protocol.ProcessedResult{}, fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return protocol.ProcessedResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return protocol.ProcessedResult{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return protocol.ProcessedResult{}, fmt.Errorf("%w: status %s", ErrUploadFailed, resp.Status)
	}

	var result protocol.ProcessedResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return protocol.ProcessedResult{}, fmt.Errorf("%w: decode response: %v", ErrUploadFailed, err)
	}

	c.logger.Info("clip processed",
		slog.Int("clip_bytes", len(clip)),
		slog.Duration("latency", time.Since(start)),
		slog.Bool("success", result.Success))
	return result, nil
}
