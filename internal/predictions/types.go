package predictions

import (
	"time"

	"github.com/oakmontlabs/stereobench/internal/dataset"
)

// LabelScores holds one optional score per gold label. A nil field means the
// scorer produced no score for that label, which makes the comparisons that
// need it non-countable downstream.
type LabelScores struct {
	Stereotype     *float64 `json:"stereotype,omitempty"`
	AntiStereotype *float64 `json:"anti-stereotype,omitempty"`
	Unrelated      *float64 `json:"unrelated,omitempty"`
}

// Get returns the score for a label and whether it is present.
func (ls LabelScores) Get(label dataset.Label) (float64, bool) {
	var p *float64
	switch label {
	case dataset.LabelStereotype:
		p = ls.Stereotype
	case dataset.LabelAntiStereotype:
		p = ls.AntiStereotype
	case dataset.LabelUnrelated:
		p = ls.Unrelated
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Set assigns the score for a label. Unknown labels are ignored.
func (ls *LabelScores) Set(label dataset.Label, score float64) {
	if ls == nil {
		return
	}
	v := score
	switch label {
	case dataset.LabelStereotype:
		ls.Stereotype = &v
	case dataset.LabelAntiStereotype:
		ls.AntiStereotype = &v
	case dataset.LabelUnrelated:
		ls.Unrelated = &v
	}
}

// Empty reports whether no label has a score.
func (ls LabelScores) Empty() bool {
	return ls.Stereotype == nil && ls.AntiStereotype == nil && ls.Unrelated == nil
}

// Pruning identifies which attention head was zeroed before scoring.
type Pruning struct {
	Layer int `json:"layer"`
	Head  int `json:"head"`
}

// File is one scoring run's output: raw per-label scores keyed by item id,
// one map per track, plus run provenance.
type File struct {
	Model         string                 `json:"model"`
	Backend       string                 `json:"backend"`
	Family        string                 `json:"family,omitempty"`
	Pruning       *Pruning               `json:"pruning,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	Intrasentence map[string]LabelScores `json:"intrasentence,omitempty"`
	Intersentence map[string]LabelScores `json:"intersentence,omitempty"`
}

// NewFile returns an empty predictions file stamped with run provenance.
func NewFile(model, backend, family string, pruning *Pruning) *File {
	return &File{
		Model:         model,
		Backend:       backend,
		Family:        family,
		Pruning:       pruning,
		CreatedAt:     time.Now().UTC(),
		Intrasentence: make(map[string]LabelScores),
		Intersentence: make(map[string]LabelScores),
	}
}
