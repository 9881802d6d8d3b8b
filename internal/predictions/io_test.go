package predictions

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oakmontlabs/stereobench/internal/dataset"
)

func TestWriteRead_RoundTrip(t *testing.T) {
	f := NewFile("bert-base-cased", "inference", "bert", &Pruning{Layer: 3, Head: 7})

	var ls LabelScores
	ls.Set(dataset.LabelStereotype, -2.1)
	ls.Set(dataset.LabelAntiStereotype, -3.4)
	ls.Set(dataset.LabelUnrelated, -5.0)
	f.Intrasentence["i1"] = ls

	path := filepath.Join(t.TempDir(), "out", "predictions.json")
	if err := Write(path, f); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Model != "bert-base-cased" || got.Backend != "inference" {
		t.Fatalf("provenance: got %q/%q", got.Model, got.Backend)
	}
	if got.Pruning == nil || got.Pruning.Layer != 3 || got.Pruning.Head != 7 {
		t.Fatalf("pruning: got %+v", got.Pruning)
	}

	score, ok := got.Intrasentence["i1"].Get(dataset.LabelStereotype)
	if !ok || score != -2.1 {
		t.Fatalf("stereotype score: got %v ok=%v", score, ok)
	}
	if _, ok := got.Intersentence["i1"]; ok {
		t.Fatalf("intersentence should be empty")
	}
}

func TestWrite_Deterministic(t *testing.T) {
	f := NewFile("gpt2", "openai", "", nil)
	for _, id := range []string{"b", "a", "c"} {
		var ls LabelScores
		ls.Set(dataset.LabelStereotype, -1)
		f.Intrasentence[id] = ls
	}

	dir := t.TempDir()
	p1 := filepath.Join(dir, "one.json")
	p2 := filepath.Join(dir, "two.json")
	if err := Write(p1, f); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := Write(p2, f); err != nil {
		t.Fatalf("Write: %v", err)
	}

	b1, _ := os.ReadFile(p1)
	b2, _ := os.ReadFile(p2)
	if string(b1) != string(b2) {
		t.Fatalf("identical files expected")
	}
}

func TestRead_UnknownLabelRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	body := `{"model":"m","backend":"b","created_at":"2026-01-02T03:04:05Z",
		"intrasentence":{"i1":{"stereotype":-1,"related":-2}}}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := Read(path)
	if err == nil || !strings.Contains(err.Error(), "predictions: parse") {
		t.Fatalf("Read: got %v", err)
	}
}

func TestRead_EmptyRecordRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	body := `{"model":"m","backend":"b","created_at":"2026-01-02T03:04:05Z",
		"intrasentence":{"i1":{}}}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := Read(path)
	if err == nil || !strings.Contains(err.Error(), "has no scores") {
		t.Fatalf("Read: got %v", err)
	}
}

func TestRead_MissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil || !strings.Contains(err.Error(), "predictions: read") {
		t.Fatalf("Read: got %v", err)
	}
}
