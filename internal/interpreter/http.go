package interpreter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Compile-time interface check
var _ Interpreter = (*HTTP)(nil)

// HTTP delegates interpretation to a remote parse endpoint that speaks the
// Result contract, such as another liftlog server's /api/v1/parse.
type HTTP struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTP creates an HTTP interpreter.
func NewHTTP(endpoint, apiKey string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTP{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

type parseRequest struct {
	Input string `json:"input"`
}

// Interpret posts input to the endpoint. Error statuses that still carry a
// Result body are returned as that Result.
func (h *HTTP) Interpret(ctx context.Context, input string) (*Result, error) {
	body, err := json.Marshal(parseRequest{Input: input})
	if err != nil {
		return nil, fmt.Errorf("encode parse request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build parse request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http interpret: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read parse response: %w", err)
	}

	var res Result
	if err := json.Unmarshal(data, &res); err != nil || (!res.Success && res.Error == "" && resp.StatusCode >= 300) {
		return nil, fmt.Errorf("http interpret: %w: status %d: %s",
			ErrInvalidResponse, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return &res, nil
}

// Name identifies the provider.
func (h *HTTP) Name() string {
	return "http:" + h.endpoint
}
