package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oakmontlabs/stereobench/internal/config"
	"github.com/oakmontlabs/stereobench/internal/dataset"
	"github.com/oakmontlabs/stereobench/internal/metrics"
	"github.com/oakmontlabs/stereobench/internal/predictions"
	"github.com/oakmontlabs/stereobench/internal/store"
)

// errMissingRecords marks a data-integrity failure; the diagnostic has
// already been printed when it propagates out.
var errMissingRecords = errors.New("stereobench: missing score records")

type evaluateOptions struct {
	gold        string
	predictions string
	output      string
	save        bool
}

func newEvaluateCmd(st *cliState) *cobra.Command {
	var opts evaluateOptions

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Aggregate predictions into bias metrics",
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
			return runEvaluate(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.gold, "gold", "data/dev.json", "gold dataset path")
	cmd.Flags().StringVar(&opts.predictions, "predictions", "predictions", "predictions file or directory")
	cmd.Flags().StringVar(&opts.output, "output", "", "output format: table|json (overrides config)")
	cmd.Flags().BoolVar(&opts.save, "save", false, "persist the run to the history store")

	return cmd
}

func runEvaluate(cmd *cobra.Command, st *cliState, opts *evaluateOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("evaluate: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("evaluate: nil options")
	}

	format, err := resolveOutputFormat(opts.output, st.cfg.Evaluation.OutputFormat)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}

	ds, err := dataset.Load(opts.gold)
	if err != nil {
		return err
	}

	paths, err := predictionPaths(opts.predictions)
	if err != nil {
		return err
	}

	var hist *store.Store
	if opts.save {
		hist, err = store.Open(st.cfg)
		if err != nil {
			return err
		}
		defer hist.Close()
	}

	out := cmd.OutOrStdout()
	for _, path := range paths {
		f, err := predictions.Read(path)
		if err != nil {
			return err
		}

		rep, err := metrics.Compute(ds, f)
		if err != nil {
			var merr *metrics.MissingRecordsError
			if errors.As(err, &merr) {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
				return errMissingRecords
			}
			return fmt.Errorf("%s: %w", path, err)
		}

		fmt.Fprint(out, FormatReport(path, rep, format))

		if hist != nil {
			run := store.NewRun(opts.gold, path, rep)
			if err := hist.Save(cmd.Context(), run); err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved run %s\n", run.ID)
		}
	}
	return nil
}

// predictionPaths resolves the --predictions flag: a single file, or every
// .json file in a directory (a pruning sweep writes one file per cell).
func predictionPaths(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("evaluate: stat %q: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("evaluate: read dir %q: %w", path, err)
	}

	var out []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.ToLower(filepath.Ext(entry.Name())) != ".json" {
			continue
		}
		out = append(out, filepath.Join(path, entry.Name()))
	}
	sort.Strings(out)

	if len(out) == 0 {
		return nil, fmt.Errorf("evaluate: no predictions files in %q", path)
	}
	return out, nil
}
