// Package judge scores baseline/revised output pairs with a panel of
// independent evaluator models. Judges fail independently: an unparseable
// or unreachable judge yields an Unparsed record instead of aborting the
// panel.
package judge

import (
	"fmt"

	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/shared/jsonx"
)

// Score is one judge's complete comparative verdict: four named dimensions
// plus an aggregate, all integers in [1,10], and a free-text comment.
type Score struct {
	Clarity        int    `json:"clarity"`
	Coherence      int    `json:"coherence"`
	ReasoningDepth int    `json:"reasoning_depth"`
	Safety         int    `json:"safety"`
	Overall        int    `json:"overall"`
	Comment        string `json:"comment"`
}

// ScoreValue is the tagged outcome of decoding a judge response: either a
// complete Score or nothing. There is no partial state; a value that fails
// validation is Unparsed. The wire form is the score object or null.
type ScoreValue struct {
	score *Score
}

// NewParsed wraps a validated score.
func NewParsed(s Score) ScoreValue {
	return ScoreValue{score: &s}
}

// NewUnparsed is the decode-failed variant.
func NewUnparsed() ScoreValue {
	return ScoreValue{}
}

// Score returns the parsed score and whether one exists.
func (v ScoreValue) Score() (Score, bool) {
	if v.score == nil {
		return Score{}, false
	}
	return *v.score, true
}

// IsParsed reports whether decoding succeeded.
func (v ScoreValue) IsParsed() bool {
	return v.score != nil
}

// MarshalJSON writes the score object, or null for the Unparsed variant.
func (v ScoreValue) MarshalJSON() ([]byte, error) {
	if v.score == nil {
		return []byte("null"), nil
	}
	return jsonx.Marshal(v.score)
}

// UnmarshalJSON reads back the wire form produced by MarshalJSON.
func (v *ScoreValue) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		v.score = nil
		return nil
	}
	var s Score
	if err := jsonx.Unmarshal(data, &s); err != nil {
		return err
	}
	v.score = &s
	return nil
}

// ScoreRecord is one judge's contribution to a record. Raw always retains
// the response text that was last decoded (or attempted), for audit.
type ScoreRecord struct {
	JudgeID   string     `json:"evaluator_model_id"`
	JudgeName string     `json:"evaluator_model_name"`
	Value     ScoreValue `json:"score_parsed"`
	Raw       string     `json:"score_raw"`
}

// looseScore distinguishes absent fields from zero values so that a
// response missing a dimension is classified as a parse failure rather
// than silently scored 0.
type looseScore struct {
	Clarity        *int    `json:"clarity"`
	Coherence      *int    `json:"coherence"`
	ReasoningDepth *int    `json:"reasoning_depth"`
	Safety         *int    `json:"safety"`
	Overall        *int    `json:"overall"`
	Comment        *string `json:"comment"`
}

// parseScore decodes and validates a judge response. Every dimension must
// be present and in [1,10] and the comment must be present; anything less
// is a parse failure, so a parsed score is never partial.
func parseScore(text string) (Score, error) {
	var loose looseScore
	if err := jsonx.DecodeLenient(text, &loose); err != nil {
		return Score{}, err
	}

	dims := []struct {
		name  string
		value *int
	}{
		{"clarity", loose.Clarity},
		{"coherence", loose.Coherence},
		{"reasoning_depth", loose.ReasoningDepth},
		{"safety", loose.Safety},
		{"overall", loose.Overall},
	}
	for _, dim := range dims {
		if dim.value == nil {
			return Score{}, fmt.Errorf("missing score field %q", dim.name)
		}
		if *dim.value < 1 || *dim.value > 10 {
			return Score{}, fmt.Errorf("score field %q = %d out of range [1,10]", dim.name, *dim.value)
		}
	}
	if loose.Comment == nil {
		return Score{}, fmt.Errorf("missing score field %q", "comment")
	}

	return Score{
		Clarity:        *loose.Clarity,
		Coherence:      *loose.Coherence,
		ReasoningDepth: *loose.ReasoningDepth,
		Safety:         *loose.Safety,
		Overall:        *loose.Overall,
		Comment:        *loose.Comment,
	}, nil
}
