package predictions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Read loads a predictions file. Unknown top-level or label keys are
// rejected so a malformed scorer output fails loudly instead of silently
// dropping scores.
func Read(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("predictions: read %q: %w", path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()

	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("predictions: parse %q: %w", path, err)
	}

	if len(f.Intrasentence) == 0 && len(f.Intersentence) == 0 {
		return nil, fmt.Errorf("predictions: %q: no scores in either track", path)
	}
	for id, ls := range f.Intrasentence {
		if ls.Empty() {
			return nil, fmt.Errorf("predictions: %q: intrasentence record %s has no scores", path, id)
		}
	}
	for id, ls := range f.Intersentence {
		if ls.Empty() {
			return nil, fmt.Errorf("predictions: %q: intersentence record %s has no scores", path, id)
		}
	}
	return &f, nil
}

// Write writes a predictions file as indented JSON, creating the parent
// directory if needed. Map keys serialize sorted, so identical runs produce
// byte-identical files.
func Write(path string, f *File) error {
	if f == nil {
		return fmt.Errorf("predictions: nil file")
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("predictions: create dir %q: %w", dir, err)
		}
	}

	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("predictions: encode %q: %w", path, err)
	}
	b = append(b, '\n')

	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("predictions: write %q: %w", path, err)
	}
	return nil
}
