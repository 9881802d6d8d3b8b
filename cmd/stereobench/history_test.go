package main

import (
	"strings"
	"testing"
	"time"

	"github.com/oakmontlabs/stereobench/internal/store"
)

func TestFormatRunList(t *testing.T) {
	t.Parallel()

	if got := formatRunList(nil); got != "No saved runs.\n" {
		t.Fatalf("empty list: got %q", got)
	}

	runs := []*store.Run{{
		ID:              "run-1",
		Model:           "bert-base-cased",
		PredictionsPath: "predictions/p.json",
		CreatedAt:       time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}}
	out := formatRunList(runs)
	for _, want := range []string{"run-1", "bert-base-cased", "predictions/p.json", "2026-08-01T12:00:00Z"} {
		if !strings.Contains(out, want) {
			t.Fatalf("list missing %q:\n%s", want, out)
		}
	}
}

func TestFormatRun(t *testing.T) {
	t.Parallel()

	run := &store.Run{
		ID:              "run-1",
		Model:           "gpt2",
		GoldPath:        "data/dev.json",
		PredictionsPath: "predictions/p.json",
		CreatedAt:       time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Metrics: []store.MetricRow{
			{Track: "intrasentence", Category: "gender", Items: 10, LMS: 90, SS: 60, ICAT: 72, Skipped: 1},
			{Track: "intrasentence", Category: "overall", Items: 10, LMS: 90, SS: 60, ICAT: 72, Skipped: 1},
		},
	}

	out := formatRun(run)
	for _, want := range []string{"Run: run-1", "Model: gpt2", "gender", "overall", "90.00", "72.00"} {
		if !strings.Contains(out, want) {
			t.Fatalf("run output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatBest(t *testing.T) {
	t.Parallel()

	if got := formatBest("intrasentence", nil); got != "No saved runs.\n" {
		t.Fatalf("empty best: got %q", got)
	}

	out := formatBest("intrasentence", []store.ModelBest{
		{Model: "bert-base-cased", LMS: 85, SS: 58, ICAT: 71.4, Runs: 3},
	})
	for _, want := range []string{"Track: intrasentence", "bert-base-cased", "71.40", "3"} {
		if !strings.Contains(out, want) {
			t.Fatalf("best output missing %q:\n%s", want, out)
		}
	}
}
