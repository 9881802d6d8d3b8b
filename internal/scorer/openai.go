package scorer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/oakmontlabs/stereobench/internal/dataset"
	"github.com/oakmontlabs/stereobench/internal/predictions"
)

// completionAPI is the slice of the OpenAI client the backend needs; tests
// substitute a stub.
type completionAPI interface {
	CreateCompletion(ctx context.Context, req openai.CompletionRequest) (openai.CompletionResponse, error)
}

// OpenAIBackend scores sentences with a causal LM through the completions
// API: the prompt is echoed back with per-token logprobs, and the sentence
// score is the mean token log-probability. For the inter-sentence track the
// candidate is scored conditioned on the context sentence.
type OpenAIBackend struct {
	client completionAPI
	model  string
}

// NewOpenAIBackend constructs a backend for the given model. baseURL may
// point at any completions-compatible server hosting the model.
func NewOpenAIBackend(apiKey, baseURL, model string) (*OpenAIBackend, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("scorer: openai: empty model")
	}

	cfg := openai.DefaultConfig(strings.TrimSpace(apiKey))
	if v := strings.TrimSpace(baseURL); v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}

	return &OpenAIBackend{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

func (b *OpenAIBackend) Name() string { return "openai" }

func (b *OpenAIBackend) ScoreIntra(ctx context.Context, item *dataset.Item) (predictions.LabelScores, error) {
	var out predictions.LabelScores
	if b == nil || b.client == nil {
		return out, errors.New("scorer: openai: nil client")
	}
	if item == nil {
		return out, errors.New("scorer: nil item")
	}

	for _, label := range dataset.Labels() {
		s, ok := item.Sentence(label)
		if !ok {
			continue
		}
		score, err := b.meanLogprob(ctx, s.Text, 0)
		if err != nil {
			return predictions.LabelScores{}, fmt.Errorf("label %s: %w", label, err)
		}
		out.Set(label, score)
	}
	return out, nil
}

func (b *OpenAIBackend) ScoreInter(ctx context.Context, item *dataset.Item) (predictions.LabelScores, error) {
	var out predictions.LabelScores
	if b == nil || b.client == nil {
		return out, errors.New("scorer: openai: nil client")
	}
	if item == nil {
		return out, errors.New("scorer: nil item")
	}
	context_ := strings.TrimSpace(item.Context)
	if context_ == "" {
		return out, fmt.Errorf("item %s: missing context sentence", item.ID)
	}

	for _, label := range dataset.Labels() {
		s, ok := item.Sentence(label)
		if !ok {
			continue
		}
		prompt := context_ + " " + s.Text
		// conditional score: average only over the candidate's tokens.
		score, err := b.meanLogprob(ctx, prompt, len(context_))
		if err != nil {
			return predictions.LabelScores{}, fmt.Errorf("label %s: %w", label, err)
		}
		out.Set(label, score)
	}
	return out, nil
}

// meanLogprob echoes prompt through the completions API and averages the
// logprobs of echoed tokens starting at byte offset from. The first prompt
// token never has a logprob and is always excluded.
func (b *OpenAIBackend) meanLogprob(ctx context.Context, prompt string, from int) (float64, error) {
	resp, err := b.client.CreateCompletion(ctx, openai.CompletionRequest{
		Model:       b.model,
		Prompt:      prompt,
		MaxTokens:   1,
		Temperature: 0,
		Echo:        true,
		LogProbs:    1,
	})
	if err != nil {
		return 0, fmt.Errorf("scorer: openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return 0, errors.New("scorer: openai: empty choices")
	}

	lp := resp.Choices[0].LogProbs
	if len(lp.TokenLogprobs) == 0 || len(lp.TokenLogprobs) != len(lp.TextOffset) {
		return 0, errors.New("scorer: openai: missing token logprobs")
	}

	var sum float64
	var n int
	for i := 1; i < len(lp.TokenLogprobs); i++ {
		// echoed prompt tokens only, past the conditioning prefix
		if lp.TextOffset[i] >= len(prompt) {
			break
		}
		if lp.TextOffset[i] < from {
			continue
		}
		sum += float64(lp.TokenLogprobs[i])
		n++
	}
	if n == 0 {
		return 0, errors.New("scorer: openai: no scorable tokens in prompt")
	}
	return sum / float64(n), nil
}
