package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/oakmontlabs/stereobench/internal/config"
	"github.com/oakmontlabs/stereobench/internal/metrics"
)

func memStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleReport(model string, icat float64) *metrics.Report {
	return &metrics.Report{
		Model: model,
		Intrasentence: &metrics.TrackReport{
			Track: "intrasentence",
			Categories: []metrics.CategoryMetrics{
				{Category: "gender", Items: 10, LMS: 90, SS: 60, ICAT: 72},
			},
			Overall: metrics.CategoryMetrics{Category: "overall", Items: 10, LMS: 90, SS: 60, ICAT: icat},
		},
	}
}

func TestNewRun_FlattensReport(t *testing.T) {
	run := NewRun("data/dev.json", "predictions/p.json", sampleReport("bert-base-cased", 72))
	if run.ID == "" {
		t.Fatalf("run id should be set")
	}
	if run.Model != "bert-base-cased" {
		t.Fatalf("model: got %q", run.Model)
	}
	if len(run.Metrics) != 2 {
		t.Fatalf("metric rows: got %d, want 2 (gender + overall)", len(run.Metrics))
	}
	last := run.Metrics[len(run.Metrics)-1]
	if last.Category != "overall" || last.ICAT != 72 {
		t.Fatalf("overall row: got %+v", last)
	}
}

func TestStore_SaveAndGetRun(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()

	run := NewRun("data/dev.json", "predictions/p.json", sampleReport("bert-base-cased", 72))
	if err := s.Save(ctx, run); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Model != "bert-base-cased" || got.PredictionsPath != "predictions/p.json" {
		t.Fatalf("run: got %+v", got)
	}
	if len(got.Metrics) != 2 {
		t.Fatalf("metrics: got %d rows", len(got.Metrics))
	}
}

func TestStore_GetRun_NotFound(t *testing.T) {
	s := memStore(t)
	_, err := s.GetRun(context.Background(), "nope")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("GetRun: got %v, want ErrNoRows", err)
	}
}

func TestStore_ListRuns_NewestFirst(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()

	first := NewRun("g", "p1", sampleReport("m1", 50))
	second := NewRun("g", "p2", sampleReport("m2", 60))
	second.CreatedAt = second.CreatedAt.Add(1e9) // strictly later

	if err := s.Save(ctx, first); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, second); err != nil {
		t.Fatalf("Save: %v", err)
	}

	runs, err := s.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != second.ID {
		t.Fatalf("order: got %d runs, first=%v", len(runs), runs[0])
	}
}

func TestStore_BestByModel(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()

	for _, r := range []*Run{
		NewRun("g", "p1", sampleReport("bert", 55)),
		NewRun("g", "p2", sampleReport("bert", 72)),
		NewRun("g", "p3", sampleReport("gpt2", 64)),
	} {
		if err := s.Save(ctx, r); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	best, err := s.BestByModel(ctx, "intrasentence")
	if err != nil {
		t.Fatalf("BestByModel: %v", err)
	}
	if len(best) != 2 {
		t.Fatalf("models: got %d, want 2", len(best))
	}
	if best[0].Model != "bert" || best[0].ICAT != 72 {
		t.Fatalf("best[0]: got %+v", best[0])
	}
	if best[0].Runs != 2 {
		t.Fatalf("bert run count: got %d", best[0].Runs)
	}
}

func TestStore_SaveValidation(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, nil); err == nil {
		t.Fatalf("Save: expected error for nil run")
	}
	if err := s.Save(ctx, &Run{ID: "x"}); err == nil {
		t.Fatalf("Save: expected error for run without metrics")
	}
}

func TestOpen_FromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Type = "sqlite"
	cfg.Storage.Path = filepath.Join(t.TempDir(), "nested", "runs.db")

	s, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	cfg.Storage.Type = "postgres"
	if _, err := Open(cfg); err == nil {
		t.Fatalf("Open: expected error for unsupported type")
	}
}
