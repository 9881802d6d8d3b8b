package main

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/oakmontlabs/stereobench/internal/config"
	"github.com/oakmontlabs/stereobench/internal/store"
)

type historyOptions struct {
	runID string
	model bool
	track string
	limit int
}

func newHistoryCmd(st *cliState) *cobra.Command {
	var opts historyOptions

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show saved evaluation runs",
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
			return runHistory(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.runID, "run", "", "show one run's metrics")
	cmd.Flags().BoolVar(&opts.model, "best", false, "show each model's best overall ICAT")
	cmd.Flags().StringVar(&opts.track, "track", "intrasentence", "track for --best: intrasentence|intersentence")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "max runs to list (0 = default)")

	return cmd
}

func runHistory(cmd *cobra.Command, st *cliState, opts *historyOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("history: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("history: nil options")
	}

	hist, err := store.Open(st.cfg)
	if err != nil {
		return err
	}
	defer hist.Close()

	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	switch {
	case strings.TrimSpace(opts.runID) != "":
		run, err := hist.GetRun(ctx, opts.runID)
		if err != nil {
			return err
		}
		fmt.Fprint(out, formatRun(run))
	case opts.model:
		best, err := hist.BestByModel(ctx, opts.track)
		if err != nil {
			return err
		}
		fmt.Fprint(out, formatBest(opts.track, best))
	default:
		runs, err := hist.ListRuns(ctx, opts.limit)
		if err != nil {
			return err
		}
		fmt.Fprint(out, formatRunList(runs))
	}
	return nil
}

func formatRunList(runs []*store.Run) string {
	if len(runs) == 0 {
		return "No saved runs.\n"
	}

	var buf bytes.Buffer
	table := newMetricsTable(&buf, []string{"RUN", "MODEL", "PREDICTIONS", "CREATED"})
	for _, r := range runs {
		_ = table.Append([]string{
			r.ID,
			r.Model,
			r.PredictionsPath,
			r.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	_ = table.Render()
	buf.WriteByte('\n')
	return buf.String()
}

func formatRun(run *store.Run) string {
	if run == nil {
		return "Run: <nil>\n"
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Run: %s\nModel: %s\nGold: %s\nPredictions: %s\nCreated: %s\n\n",
		run.ID, run.Model, run.GoldPath, run.PredictionsPath, run.CreatedAt.UTC().Format(time.RFC3339))

	table := newMetricsTable(&buf, []string{"TRACK", "CATEGORY", "ITEMS", "LMS", "SS", "ICAT", "SKIPPED"})
	for _, m := range run.Metrics {
		_ = table.Append([]string{
			m.Track,
			m.Category,
			strconv.Itoa(m.Items),
			fmt.Sprintf("%.2f", m.LMS),
			fmt.Sprintf("%.2f", m.SS),
			fmt.Sprintf("%.2f", m.ICAT),
			strconv.Itoa(m.Skipped),
		})
	}
	_ = table.Render()
	buf.WriteByte('\n')
	return buf.String()
}

func formatBest(track string, best []store.ModelBest) string {
	if len(best) == 0 {
		return "No saved runs.\n"
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Track: %s\n", track)
	table := newMetricsTable(&buf, []string{"MODEL", "LMS", "SS", "ICAT", "RUNS"})
	for _, b := range best {
		_ = table.Append([]string{
			b.Model,
			fmt.Sprintf("%.2f", b.LMS),
			fmt.Sprintf("%.2f", b.SS),
			fmt.Sprintf("%.2f", b.ICAT),
			strconv.Itoa(b.Runs),
		})
	}
	_ = table.Render()
	buf.WriteByte('\n')
	return buf.String()
}
