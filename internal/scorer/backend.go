package scorer

import (
	"context"

	"github.com/oakmontlabs/stereobench/internal/dataset"
	"github.com/oakmontlabs/stereobench/internal/predictions"
)

// Backend scores candidate sentences under a language model. ScoreIntra
// returns a pseudo-log-likelihood per labeled candidate; ScoreInter returns
// a next-sentence association score between the item's context and each
// candidate. Higher always means more likely / more strongly associated.
type Backend interface {
	Name() string
	ScoreIntra(ctx context.Context, item *dataset.Item) (predictions.LabelScores, error)
	ScoreInter(ctx context.Context, item *dataset.Item) (predictions.LabelScores, error)
}
