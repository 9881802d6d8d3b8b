package scorer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/oakmontlabs/stereobench/internal/dataset"
	"github.com/oakmontlabs/stereobench/internal/predictions"
)

// Runner drives one scoring pass over the gold dataset and collects the raw
// scores into a predictions file. The pass is sequential; a backend error on
// any item aborts the run, since the aggregator requires exactly one record
// per item.
type Runner struct {
	Backend Backend
	Model   string
	Family  string
	Pruning *predictions.Pruning

	SkipIntrasentence bool
	SkipIntersentence bool

	// Progress, when set, receives a line every progressEvery items.
	Progress io.Writer
}

const progressEvery = 100

func (r *Runner) Run(ctx context.Context, ds *dataset.Dataset) (*predictions.File, error) {
	if r == nil {
		return nil, errors.New("scorer: nil runner")
	}
	if ctx == nil {
		return nil, errors.New("scorer: nil context")
	}
	if r.Backend == nil {
		return nil, errors.New("scorer: nil backend")
	}
	if ds == nil {
		return nil, errors.New("scorer: nil dataset")
	}
	if r.SkipIntrasentence && r.SkipIntersentence {
		return nil, errors.New("scorer: both tracks skipped")
	}

	out := predictions.NewFile(r.Model, r.Backend.Name(), r.Family, r.Pruning)

	if !r.SkipIntrasentence {
		if err := r.scoreTrack(ctx, "intrasentence", ds.Intrasentence, r.Backend.ScoreIntra, out.Intrasentence); err != nil {
			return nil, err
		}
	}
	if !r.SkipIntersentence {
		if err := r.scoreTrack(ctx, "intersentence", ds.Intersentence, r.Backend.ScoreInter, out.Intersentence); err != nil {
			return nil, err
		}
	}

	if len(out.Intrasentence) == 0 && len(out.Intersentence) == 0 {
		return nil, errors.New("scorer: nothing scored (empty dataset tracks)")
	}
	return out, nil
}

func (r *Runner) scoreTrack(
	ctx context.Context,
	track string,
	items []dataset.Item,
	score func(context.Context, *dataset.Item) (predictions.LabelScores, error),
	dst map[string]predictions.LabelScores,
) error {
	for i := range items {
		it := &items[i]
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("scorer: %s interrupted at item %s: %w", track, it.ID, err)
		}

		if _, dup := dst[it.ID]; dup {
			return fmt.Errorf("scorer: %s: duplicate record for item %s", track, it.ID)
		}

		ls, err := score(ctx, it)
		if err != nil {
			return fmt.Errorf("scorer: %s item %s (%s): %w", track, it.ID, it.BiasType, err)
		}
		if ls.Empty() {
			return fmt.Errorf("scorer: %s item %s (%s): backend returned no scores", track, it.ID, it.BiasType)
		}
		dst[it.ID] = ls

		if r.Progress != nil && (i+1)%progressEvery == 0 {
			fmt.Fprintf(r.Progress, "%s: %d/%d\n", track, i+1, len(items))
		}
	}
	return nil
}
