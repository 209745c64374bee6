package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"cli-admin/internal/config"
)

// HTTP loads a JSON array of records from a REST endpoint. Transport errors
// and 5xx responses are retried with exponential backoff; other statuses
// fail immediately.
type HTTP struct {
	Spec    *config.Dataset
	Client  *http.Client
	Token   string
	Retries int
	Backoff time.Duration
	Logger  *zap.Logger
}

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.Code)
	}
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

func (e *StatusError) retryable() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

// Load implements Loader.
func (h *HTTP) Load(ctx context.Context) (*Dataset, error) {
	start := time.Now()
	body, err := h.fetchWithRetry(ctx)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", h.Spec.Name, err)
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("dataset %s: decode response: %w", h.Spec.Name, err)
	}
	records, err := recordsOf(doc)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", h.Spec.Name, err)
	}

	ds, err := assemble(h.Spec, records, fieldID(h.Spec.IDField), deriveColumns(records, h.Spec.IDField), h.Logger)
	if err != nil {
		return nil, err
	}
	h.Logger.Info("dataset loaded",
		zap.String("url", h.Spec.Source.URL),
		zap.Int("rows", len(ds.Rows)),
		zap.Duration("took", time.Since(start)))
	return ds, nil
}

func (h *HTTP) fetchWithRetry(ctx context.Context) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= h.Retries; attempt++ {
		if attempt > 0 {
			wait := h.Backoff << (attempt - 1)
			h.Logger.Debug("retrying", zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		body, err := h.fetch(ctx)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var se *StatusError
		if errors.As(err, &se) && !se.retryable() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", h.Retries+1, lastErr)
}

func (h *HTTP) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.Spec.Source.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if h.Token != "" {
		req.Header.Set("Authorization", "Bearer "+h.Token)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(snippet)}
	}
	return io.ReadAll(resp.Body)
}
