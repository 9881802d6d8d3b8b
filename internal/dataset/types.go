package dataset

import (
	"fmt"
	"strings"
)

// Label classifies a candidate sentence relative to the item's target.
type Label string

const (
	LabelStereotype     Label = "stereotype"
	LabelAntiStereotype Label = "anti-stereotype"
	LabelUnrelated      Label = "unrelated"
)

// Labels lists the three gold labels in canonical order.
func Labels() []Label {
	return []Label{LabelStereotype, LabelAntiStereotype, LabelUnrelated}
}

// ParseLabel normalizes a raw gold_label string.
func ParseLabel(s string) (Label, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stereotype":
		return LabelStereotype, nil
	case "anti-stereotype", "antistereotype", "anti_stereotype":
		return LabelAntiStereotype, nil
	case "unrelated":
		return LabelUnrelated, nil
	default:
		return "", fmt.Errorf("unknown gold label %q", s)
	}
}

// Sentence is one labeled candidate variant of an item.
type Sentence struct {
	ID    string
	Text  string
	Label Label
}

// Item is one evaluation example: a context, a target term, and exactly one
// candidate sentence per gold label.
type Item struct {
	ID        string
	BiasType  string
	Target    string
	Context   string
	Sentences []Sentence
}

// Sentence returns the candidate with the given label.
func (it *Item) Sentence(label Label) (Sentence, bool) {
	if it == nil {
		return Sentence{}, false
	}
	for _, s := range it.Sentences {
		if s.Label == label {
			return s, true
		}
	}
	return Sentence{}, false
}

// Dataset holds the gold items for both tracks.
type Dataset struct {
	Version       string
	Intrasentence []Item
	Intersentence []Item
}

// BiasTypes returns the distinct bias type labels across both tracks, in
// first-seen order.
func (d *Dataset) BiasTypes() []string {
	if d == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, items := range [][]Item{d.Intrasentence, d.Intersentence} {
		for _, it := range items {
			if _, ok := seen[it.BiasType]; ok {
				continue
			}
			seen[it.BiasType] = struct{}{}
			out = append(out, it.BiasType)
		}
	}
	return out
}
