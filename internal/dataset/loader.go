package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// goldSchema constrains the gold file shape before decoding. Structural
// problems surface as schema violations naming the offending path instead of
// zero-valued structs downstream.
const goldSchema = `{
	"type": "object",
	"required": ["data"],
	"properties": {
		"version": {"type": "string"},
		"data": {
			"type": "object",
			"properties": {
				"intrasentence": {"$ref": "#/definitions/items"},
				"intersentence": {"$ref": "#/definitions/items"}
			}
		}
	},
	"definitions": {
		"items": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "bias_type", "target", "sentences"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"bias_type": {"type": "string", "minLength": 1},
					"target": {"type": "string"},
					"context": {"type": "string"},
					"sentences": {
						"type": "array",
						"minItems": 3,
						"maxItems": 3,
						"items": {
							"type": "object",
							"required": ["sentence", "gold_label"],
							"properties": {
								"id": {"type": "string"},
								"sentence": {"type": "string", "minLength": 1},
								"gold_label": {"type": "string", "minLength": 1}
							}
						}
					}
				}
			}
		}
	}
}`

type goldFile struct {
	Version string   `json:"version"`
	Data    goldData `json:"data"`
}

type goldData struct {
	Intrasentence []goldItem `json:"intrasentence"`
	Intersentence []goldItem `json:"intersentence"`
}

type goldItem struct {
	ID        string         `json:"id"`
	BiasType  string         `json:"bias_type"`
	Target    string         `json:"target"`
	Context   string         `json:"context"`
	Sentences []goldSentence `json:"sentences"`
}

type goldSentence struct {
	ID        string `json:"id"`
	Sentence  string `json:"sentence"`
	GoldLabel string `json:"gold_label"`
}

// Load reads and validates a gold dataset file.
func Load(path string) (*Dataset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: read %q: %w", path, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(goldSchema),
		gojsonschema.NewBytesLoader(b),
	)
	if err != nil {
		return nil, fmt.Errorf("dataset: validate %q: %w", path, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("dataset: invalid gold file %q: %s", path, strings.Join(msgs, "; "))
	}

	var raw goldFile
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("dataset: parse %q: %w", path, err)
	}

	ds := &Dataset{Version: raw.Version}
	seen := make(map[string]struct{})

	ds.Intrasentence, err = convertItems("intrasentence", raw.Data.Intrasentence, seen)
	if err != nil {
		return nil, fmt.Errorf("dataset: %q: %w", path, err)
	}
	ds.Intersentence, err = convertItems("intersentence", raw.Data.Intersentence, seen)
	if err != nil {
		return nil, fmt.Errorf("dataset: %q: %w", path, err)
	}

	if len(ds.Intrasentence) == 0 && len(ds.Intersentence) == 0 {
		return nil, fmt.Errorf("dataset: %q: no items in either track", path)
	}
	return ds, nil
}

func convertItems(track string, raw []goldItem, seen map[string]struct{}) ([]Item, error) {
	out := make([]Item, 0, len(raw))
	for i, g := range raw {
		id := strings.TrimSpace(g.ID)
		if id == "" {
			return nil, fmt.Errorf("%s[%d]: missing id", track, i)
		}
		if _, ok := seen[id]; ok {
			return nil, fmt.Errorf("%s[%d] (%s): duplicate id", track, i, id)
		}
		seen[id] = struct{}{}

		it := Item{
			ID:       id,
			BiasType: strings.ToLower(strings.TrimSpace(g.BiasType)),
			Target:   strings.TrimSpace(g.Target),
			Context:  strings.TrimSpace(g.Context),
		}

		byLabel := make(map[Label]struct{}, 3)
		for j, s := range g.Sentences {
			label, err := ParseLabel(s.GoldLabel)
			if err != nil {
				return nil, fmt.Errorf("%s[%d] (%s): sentences[%d]: %w", track, i, id, j, err)
			}
			if _, dup := byLabel[label]; dup {
				return nil, fmt.Errorf("%s[%d] (%s): duplicate gold label %q", track, i, id, label)
			}
			byLabel[label] = struct{}{}

			text := strings.TrimSpace(s.Sentence)
			if text == "" {
				return nil, fmt.Errorf("%s[%d] (%s): sentences[%d]: empty sentence", track, i, id, j)
			}
			it.Sentences = append(it.Sentences, Sentence{
				ID:    strings.TrimSpace(s.ID),
				Text:  text,
				Label: label,
			})
		}
		if len(byLabel) != 3 {
			return nil, fmt.Errorf("%s[%d] (%s): expected one sentence per gold label, got %d labels", track, i, id, len(byLabel))
		}

		out = append(out, it)
	}
	return out, nil
}
