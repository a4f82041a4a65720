package vecstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vaultpilot/vaultpilot/pkg/logger"
)

// Embedder generates embedding vectors from text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// embedBatchSize caps how many inputs go into one request, so a large
// reindex never builds a single oversized payload.
const embedBatchSize = 64

// retryBackoff is the wait schedule between failed attempts of one batch.
var retryBackoff = []time.Duration{500 * time.Millisecond, 2 * time.Second, 8 * time.Second}

// HTTPEmbedder calls an OpenAI-compatible /embeddings endpoint.
type HTTPEmbedder struct {
	apiBase string
	apiKey  string
	model   string
	client  *http.Client
}

type EmbedderOption func(*HTTPEmbedder)

// WithEmbedTimeout overrides the per-request timeout.
func WithEmbedTimeout(timeout time.Duration) EmbedderOption {
	return func(e *HTTPEmbedder) {
		if timeout > 0 {
			e.client.Timeout = timeout
		}
	}
}

// WithEmbedHTTPClient substitutes the HTTP client.
func WithEmbedHTTPClient(client *http.Client) EmbedderOption {
	return func(e *HTTPEmbedder) {
		if client != nil {
			e.client = client
		}
	}
}

func NewHTTPEmbedder(apiBase, apiKey, model string, opts ...EmbedderOption) *HTTPEmbedder {
	e := &HTTPEmbedder{
		apiBase: strings.TrimRight(apiBase, "/"),
		apiKey:  apiKey,
		model:   model,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Embed returns one vector per input text, in input order. Inputs are sent
// in batches of embedBatchSize; each batch is retried on the backoff
// schedule before the whole call fails.
func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))
		batch, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (e *HTTPEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	payload, err := json.Marshal(map[string]any{
		"model": e.model,
		"input": texts,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		vectors, err := e.request(ctx, payload, len(texts))
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if attempt >= len(retryBackoff) {
			break
		}
		logger.WarnCF("vecstore", "Embedding request failed, retrying", map[string]any{
			"attempt": attempt + 1,
			"inputs":  len(texts),
			"error":   err.Error(),
		})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryBackoff[attempt]):
		}
	}
	return nil, fmt.Errorf("embedding %d texts: %w", len(texts), lastErr)
}

func (e *HTTPEmbedder) request(ctx context.Context, payload []byte, want int) ([][]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.apiBase+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embeddings endpoint returned %d: %s", resp.StatusCode, clip(body, 200))
	}

	var parsed struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("embeddings endpoint: %s", parsed.Error.Message)
	}

	// The API may return data out of order; place each vector by index and
	// insist on full coverage so a silent hole never reaches the store.
	vectors := make([][]float32, want)
	covered := 0
	for _, d := range parsed.Data {
		if d.Index >= 0 && d.Index < want && vectors[d.Index] == nil {
			vectors[d.Index] = d.Embedding
			covered++
		}
	}
	if covered != want {
		return nil, fmt.Errorf("embeddings response covered %d of %d inputs", covered, want)
	}
	return vectors, nil
}

func clip(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
