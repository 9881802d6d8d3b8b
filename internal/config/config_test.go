package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// chdir changes into dir for the duration of the test; testing.T.Chdir
// needs Go 1.24, which is newer than the toolchain building this module.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(old) })
}

func TestLoad_ReadError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("Load: expected error")
	}
	if !strings.Contains(err.Error(), "config: read") {
		t.Fatalf("error: got %q", err)
	}
}

func TestLoad_ParseError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte(":"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatalf("Load: expected error")
	}
	if !strings.Contains(err.Error(), "config: parse") {
		t.Fatalf("error: got %q", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "scorer:\n  model: roberta-base\n  family: roberta\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scorer.Model != "roberta-base" || cfg.Scorer.Family != "roberta" {
		t.Fatalf("scorer: got %+v", cfg.Scorer)
	}
	if cfg.Scorer.Backend != "inference" {
		t.Fatalf("backend default: got %q", cfg.Scorer.Backend)
	}
	if cfg.Evaluation.OutputFormat != "table" {
		t.Fatalf("output format default: got %q", cfg.Evaluation.OutputFormat)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("server addr default: got %q", cfg.Server.Addr)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("STEREOBENCH_INFERENCE_URL", "http://inference:9000")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("scorer:\n  backend: openai\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scorer.OpenAI.APIKey != "sk-test" {
		t.Fatalf("api key: got %q", cfg.Scorer.OpenAI.APIKey)
	}
	if cfg.Scorer.InferenceURL != "http://inference:9000" {
		t.Fatalf("inference url: got %q", cfg.Scorer.InferenceURL)
	}
}

func TestLoadOrDefault_MissingDefaultFile(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if cfg.Scorer.Backend != "inference" {
		t.Fatalf("defaults not applied: %+v", cfg.Scorer)
	}
}

func TestLoadOrDefault_ExplicitPathMustExist(t *testing.T) {
	_, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatalf("LoadOrDefault: expected error for explicit missing path")
	}
}
