package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oakmontlabs/stereobench/internal/config"
	"github.com/oakmontlabs/stereobench/internal/dataset"
	"github.com/oakmontlabs/stereobench/internal/predictions"
	"github.com/oakmontlabs/stereobench/internal/scorer"
)

const (
	defaultPruneLayers = 12
	defaultPruneHeads  = 12
)

type scoreOptions struct {
	model             string
	backend           string
	family            string
	input             string
	outputDir         string
	outputFile        string
	skipIntrasentence bool
	skipIntersentence bool
	prune             bool
	pruneLayer        int
	pruneHead         int
	pruneLayers       int
	pruneHeads        int
}

func newScoreCmd(st *cliState) *cobra.Command {
	var opts scoreOptions

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score the gold dataset with a language model and write predictions",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(st.configPath)
			if err != nil {
				return err
			}
			st.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.model, "model", "", "pretrained model identifier (overrides config)")
	cmd.Flags().StringVar(&opts.backend, "backend", "", "scoring backend: inference|openai (overrides config)")
	cmd.Flags().StringVar(&opts.family, "family", "", "model family hint: bert|roberta|gpt2|xlnet (overrides config)")
	cmd.Flags().StringVar(&opts.input, "input", "data/dev.json", "gold dataset path")
	cmd.Flags().StringVar(&opts.outputDir, "output-dir", "predictions", "directory for predictions files")
	cmd.Flags().StringVar(&opts.outputFile, "output-file", "", "predictions file name (default derived from model)")
	cmd.Flags().BoolVar(&opts.skipIntrasentence, "skip-intrasentence", false, "skip intra-sentence scoring")
	cmd.Flags().BoolVar(&opts.skipIntersentence, "skip-intersentence", false, "skip inter-sentence scoring")
	cmd.Flags().BoolVar(&opts.prune, "prune", false, "zero out attention heads before scoring")
	cmd.Flags().IntVar(&opts.pruneLayer, "prune-layer", -1, "single layer to prune (with --prune)")
	cmd.Flags().IntVar(&opts.pruneHead, "prune-head", -1, "single head to prune (with --prune)")
	cmd.Flags().IntVar(&opts.pruneLayers, "prune-layers", defaultPruneLayers, "layer count for a pruning sweep")
	cmd.Flags().IntVar(&opts.pruneHeads, "prune-heads", defaultPruneHeads, "head count for a pruning sweep")

	return cmd
}

func runScore(cmd *cobra.Command, st *cliState, opts *scoreOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("score: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("score: nil options")
	}
	if opts.skipIntrasentence && opts.skipIntersentence {
		return fmt.Errorf("score: cannot skip both tracks")
	}

	model := strings.TrimSpace(opts.model)
	if model == "" {
		model = strings.TrimSpace(st.cfg.Scorer.Model)
	}
	if model == "" {
		return fmt.Errorf("score: missing model (set --model or scorer.model in config)")
	}
	family := strings.TrimSpace(opts.family)
	if family == "" {
		family = strings.TrimSpace(st.cfg.Scorer.Family)
	}

	ds, err := dataset.Load(opts.input)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cells, err := pruneCells(opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, cell := range cells {
		backend, err := resolveScorerBackend(st.cfg, opts.backend, model, family, cell)
		if err != nil {
			return err
		}

		r := &scorer.Runner{
			Backend:           backend,
			Model:             model,
			Family:            family,
			Pruning:           cell,
			SkipIntrasentence: opts.skipIntrasentence,
			SkipIntersentence: opts.skipIntersentence,
			Progress:          out,
		}

		f, err := r.Run(ctx, ds)
		if err != nil {
			return err
		}

		path := filepath.Join(opts.outputDir, predictionsFileName(opts.outputFile, model, cell))
		if err := predictions.Write(path, f); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %s (intrasentence=%d intersentence=%d)\n",
			path, len(f.Intrasentence), len(f.Intersentence))
	}
	return nil
}

// pruneCells expands the pruning flags into the cells to score: one nil cell
// when pruning is off, one cell for an explicit layer/head pair, or the full
// layer-by-head sweep.
func pruneCells(opts *scoreOptions) ([]*predictions.Pruning, error) {
	if !opts.prune {
		if opts.pruneLayer >= 0 || opts.pruneHead >= 0 {
			return nil, fmt.Errorf("score: --prune-layer/--prune-head require --prune")
		}
		return []*predictions.Pruning{nil}, nil
	}

	if (opts.pruneLayer >= 0) != (opts.pruneHead >= 0) {
		return nil, fmt.Errorf("score: --prune-layer and --prune-head must be set together")
	}
	if opts.pruneLayer >= 0 {
		return []*predictions.Pruning{{Layer: opts.pruneLayer, Head: opts.pruneHead}}, nil
	}

	if opts.pruneLayers <= 0 || opts.pruneHeads <= 0 {
		return nil, fmt.Errorf("score: sweep dimensions must be > 0 (got %dx%d)", opts.pruneLayers, opts.pruneHeads)
	}
	cells := make([]*predictions.Pruning, 0, opts.pruneLayers*opts.pruneHeads)
	for layer := 0; layer < opts.pruneLayers; layer++ {
		for head := 0; head < opts.pruneHeads; head++ {
			cells = append(cells, &predictions.Pruning{Layer: layer, Head: head})
		}
	}
	return cells, nil
}

func predictionsFileName(explicit, model string, cell *predictions.Pruning) string {
	if name := strings.TrimSpace(explicit); name != "" {
		if cell == nil {
			return name
		}
		ext := filepath.Ext(name)
		return fmt.Sprintf("%s_%d_%d%s", strings.TrimSuffix(name, ext), cell.Layer, cell.Head, ext)
	}

	base := "predictions_" + strings.ReplaceAll(model, "/", "_")
	if cell != nil {
		return fmt.Sprintf("%s_%d_%d.json", base, cell.Layer, cell.Head)
	}
	return base + ".json"
}

func resolveScorerBackend(cfg *config.Config, backendFlag, model, family string, cell *predictions.Pruning) (scorer.Backend, error) {
	name := strings.ToLower(strings.TrimSpace(backendFlag))
	if name == "" {
		name = strings.ToLower(strings.TrimSpace(cfg.Scorer.Backend))
	}

	switch name {
	case "inference":
		opts := []scorer.InferenceOption{}
		if cell != nil {
			opts = append(opts, scorer.WithPruning(cell))
		}
		return scorer.NewInferenceBackend(cfg.Scorer.InferenceURL, model, family, opts...)
	case "openai":
		if cell != nil {
			return nil, fmt.Errorf("score: the openai backend does not support pruning")
		}
		return scorer.NewOpenAIBackend(cfg.Scorer.OpenAI.APIKey, cfg.Scorer.OpenAI.BaseURL, model)
	default:
		return nil, fmt.Errorf("score: unknown backend %q (expected inference|openai)", name)
	}
}
