// Package llm talks to the deployed analysis service: it uploads a workbook
// as multipart form data and returns the narrative JSON the service
// generates from it.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"time"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	maxRetries      = 3
	maxErrorBody    = 2000
)

// ErrExternalCall wraps every failure talking to the analysis service: bad
// status, unreachable host, or a non-JSON body.
var ErrExternalCall = errors.New("analysis service call failed")

// Config configures the analysis client. Zero values take defaults.
type Config struct {
	URL string
	// FileField is the multipart field name for the workbook (default "file").
	FileField string
	// Headers are added to every request (auth tokens and the like).
	Headers map[string]string
	// Timeout bounds one HTTP attempt (default 180s).
	Timeout time.Duration
}

// Client calls the analysis service. Safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient builds a client from config, applying defaults.
func NewClient(cfg Config) *Client {
	if cfg.FileField == "" {
		cfg.FileField = "file"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 180 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// Analyze uploads the workbook at path and returns the decoded response.
func (c *Client) Analyze(ctx context.Context, xlsxPath string) (map[string]any, error) {
	data, err := os.ReadFile(xlsxPath)
	if err != nil {
		return nil, fmt.Errorf("could not read workbook %s: %w", xlsxPath, err)
	}
	return c.AnalyzeBytes(ctx, filepath.Base(xlsxPath), data)
}

// AnalyzeBytes uploads workbook bytes under the given file name.
func (c *Client) AnalyzeBytes(ctx context.Context, name string, data []byte) (map[string]any, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		payload, err := c.doRequest(ctx, name, data)
		if err != nil {
			lastErr = err
			if isRetryable(err) {
				continue
			}
			return nil, err
		}
		return payload, nil
	}
	return nil, fmt.Errorf("%w: giving up after %d attempts: %v", ErrExternalCall, maxRetries, lastErr)
}

func (c *Client) doRequest(ctx context.Context, name string, data []byte) (map[string]any, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, c.cfg.FileField, name))
	header.Set("Content-Type", xlsxContentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("could not build multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("could not build multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("could not build multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, &body)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &retryableError{msg: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: could not read response: %v", ErrExternalCall, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &retryableError{msg: "rate limited by analysis service"}
	case resp.StatusCode >= 500:
		return nil, &retryableError{msg: fmt.Sprintf("server error (HTTP %d)", resp.StatusCode)}
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrExternalCall, resp.StatusCode, truncate(respBody))
	}

	var payload map[string]any
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return nil, fmt.Errorf("%w: response is not valid JSON (partial body: %s)",
			ErrExternalCall, truncate(respBody))
	}
	return payload, nil
}

// SaveResponse persists a service response as indented JSON, the format the
// offline job path reads back.
func SaveResponse(path string, payload map[string]any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("could not encode response: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("could not create response directory: %w", err)
		}
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// LoadResponse reads a persisted service response.
func LoadResponse(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read response file %s: %w", path, err)
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("response file %s is not valid JSON: %w", path, err)
	}
	return payload, nil
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "…"
	}
	return string(body)
}

type retryableError struct {
	msg string
}

func (e *retryableError) Error() string { return e.msg }

func isRetryable(err error) bool {
	var r *retryableError
	return errors.As(err, &r)
}
