package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// maxResponseBytes caps how much of a model reply is read; an extraction
// for a single bill never comes close to this.
const maxResponseBytes = 4 << 20

// SendJSON posts a JSON body to url and returns the raw response bytes and
// status code. Provider specifics (paths, auth headers) stay with the caller.
func SendJSON(ctx context.Context, client *http.Client, url string, body any, headers map[string]string, logger *slog.Logger) ([]byte, int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 45 * time.Second}
	}

	requestID := uuid.New().String()

	payload, err := json.Marshal(body)
	if err != nil {
		logger.Error("llm.http.encode_error", "req_id", requestID, "error", err)
		return nil, 0, fmt.Errorf("encode json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		logger.Error("llm.http.build_request_error", "req_id", requestID, "error", err)
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	logger.Info("llm.http.request", "req_id", requestID, "url", url, "content_length", len(payload))

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		logger.Error("llm.http.send_error", "req_id", requestID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	logger.Info("llm.http.response",
		"req_id", requestID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if readErr != nil {
		return raw, resp.StatusCode, fmt.Errorf("read response: %w", readErr)
	}
	if resp.StatusCode/100 != 2 {
		return raw, resp.StatusCode, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}
	return raw, resp.StatusCode, nil
}
