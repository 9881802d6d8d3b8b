package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oakmontlabs/stereobench/internal/dataset"
	"github.com/oakmontlabs/stereobench/internal/predictions"
)

const (
	defaultRetryMax = 3
	retryBaseDelay  = time.Second
)

// InferenceBackend scores sentences through a masked-LM inference service.
// The service owns model loading, tokenization and attention-head pruning;
// this client only ships sentences and pruning parameters and averages the
// returned per-token log-likelihoods.
type InferenceBackend struct {
	baseURL    string
	model      string
	family     string
	pruning    *predictions.Pruning
	httpClient *http.Client
	retryMax   int
	retryBase  time.Duration
}

// InferenceOption configures an InferenceBackend.
type InferenceOption func(*InferenceBackend)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) InferenceOption {
	return func(b *InferenceBackend) {
		if b == nil || c == nil {
			return
		}
		b.httpClient = c
	}
}

// WithPruning forwards attention-head pruning parameters with every request.
func WithPruning(p *predictions.Pruning) InferenceOption {
	return func(b *InferenceBackend) {
		if b == nil {
			return
		}
		b.pruning = p
	}
}

// WithRetry sets the max retry count for retryable failures.
func WithRetry(maxRetries int) InferenceOption {
	return func(b *InferenceBackend) {
		if b == nil {
			return
		}
		if maxRetries < 0 {
			maxRetries = 0
		}
		b.retryMax = maxRetries
	}
}

// NewInferenceBackend constructs a client for the scoring service at baseURL.
func NewInferenceBackend(baseURL, model, family string, opts ...InferenceOption) (*InferenceBackend, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("scorer: inference: empty base URL")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("scorer: inference: empty model")
	}

	b := &InferenceBackend{
		baseURL:    baseURL,
		model:      model,
		family:     strings.TrimSpace(family),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		retryMax:   defaultRetryMax,
		retryBase:  retryBaseDelay,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b, nil
}

func (b *InferenceBackend) Name() string { return "inference" }

// APIError represents a non-2xx response from the inference service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return "scorer: inference error <nil>"
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("scorer: inference: status %d: %s", e.StatusCode, msg)
}

type scoreRequest struct {
	Model    string               `json:"model"`
	Family   string               `json:"family,omitempty"`
	Sentence string               `json:"sentence"`
	Prune    *predictions.Pruning `json:"prune,omitempty"`
}

type scoreResponse struct {
	TokenLogLikelihoods []float64 `json:"token_log_likelihoods"`
}

type nspRequest struct {
	Model     string               `json:"model"`
	Family    string               `json:"family,omitempty"`
	Context   string               `json:"context"`
	Candidate string               `json:"candidate"`
	Prune     *predictions.Pruning `json:"prune,omitempty"`
}

type nspResponse struct {
	Score float64 `json:"score"`
}

func (b *InferenceBackend) ScoreIntra(ctx context.Context, item *dataset.Item) (predictions.LabelScores, error) {
	var out predictions.LabelScores
	if b == nil {
		return out, errors.New("scorer: nil inference backend")
	}
	if item == nil {
		return out, errors.New("scorer: nil item")
	}

	for _, label := range dataset.Labels() {
		s, ok := item.Sentence(label)
		if !ok {
			continue
		}

		var resp scoreResponse
		req := scoreRequest{Model: b.model, Family: b.family, Sentence: s.Text, Prune: b.pruning}
		if err := b.post(ctx, "/v1/score", req, &resp); err != nil {
			return predictions.LabelScores{}, fmt.Errorf("label %s: %w", label, err)
		}
		if len(resp.TokenLogLikelihoods) == 0 {
			return predictions.LabelScores{}, fmt.Errorf("label %s: empty token likelihoods", label)
		}
		out.Set(label, mean(resp.TokenLogLikelihoods))
	}
	return out, nil
}

func (b *InferenceBackend) ScoreInter(ctx context.Context, item *dataset.Item) (predictions.LabelScores, error) {
	var out predictions.LabelScores
	if b == nil {
		return out, errors.New("scorer: nil inference backend")
	}
	if item == nil {
		return out, errors.New("scorer: nil item")
	}
	if strings.TrimSpace(item.Context) == "" {
		return out, fmt.Errorf("item %s: missing context sentence", item.ID)
	}

	for _, label := range dataset.Labels() {
		s, ok := item.Sentence(label)
		if !ok {
			continue
		}

		var resp nspResponse
		req := nspRequest{Model: b.model, Family: b.family, Context: item.Context, Candidate: s.Text, Prune: b.pruning}
		if err := b.post(ctx, "/v1/nsp", req, &resp); err != nil {
			return predictions.LabelScores{}, fmt.Errorf("label %s: %w", label, err)
		}
		out.Set(label, resp.Score)
	}
	return out, nil
}

func (b *InferenceBackend) post(ctx context.Context, path string, payload any, dst any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("scorer: inference: encode request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= b.retryMax; attempt++ {
		if attempt > 0 {
			delay := b.retryBase * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("scorer: inference: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := b.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("scorer: inference: %s: %w", path, err)
			continue
		}

		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("scorer: inference: read response: %w", readErr)
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
			if !retryable(resp.StatusCode) {
				return apiErr
			}
			lastErr = apiErr
			continue
		}

		if err := json.Unmarshal(respBody, dst); err != nil {
			return fmt.Errorf("scorer: inference: decode response: %w", err)
		}
		return nil
	}
	return lastErr
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && strings.TrimSpace(e.Error) != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
