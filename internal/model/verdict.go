// Package model defines the core data types for the listing check service.
package model

import "fmt"

// Outcome is the kind of decision reached for an upload.
type Outcome string

const (
	OutcomeMatch         Outcome = "match"
	OutcomeNoMatch       Outcome = "no_match"
	OutcomeBrandMismatch Outcome = "brand_mismatch"
)

// Human-readable verdict strings shown on the result page.
const (
	MessageMatch         = "✅ CORRECT — Image matches description"
	MessageNoMatch       = "❌ INCORRECT — Image does NOT match description"
	MessageBrandMismatch = "❌ INCORRECT — Brand mismatch"
)

// Upload is a transient (filename, content) pair. It has no identity
// beyond the request that carried it.
type Upload struct {
	Filename string
	Data     []byte
}

// Verdict is computed fresh for every request and never persisted.
// Score is nil when the brand gate rejected the upload before scoring.
type Verdict struct {
	Outcome          Outcome  `json:"outcome"`
	Match            bool     `json:"match"`
	Message          string   `json:"message"`
	Score            *float64 `json:"score,omitempty"`
	Threshold        float64  `json:"threshold"`
	FileBrand        string   `json:"file_brand,omitempty"`
	DescriptionBrand string   `json:"description_brand,omitempty"`
	ImagePath        string   `json:"image_path"`
	Description      string   `json:"description"`
}

// NewBrandMismatch builds the verdict for an upload rejected by the brand gate.
func NewBrandMismatch(fileBrand, descBrand string) *Verdict {
	return &Verdict{
		Outcome:          OutcomeBrandMismatch,
		Message:          MessageBrandMismatch,
		FileBrand:        fileBrand,
		DescriptionBrand: descBrand,
	}
}

// NewScored builds the verdict for a scored upload. The threshold is inclusive.
func NewScored(score, threshold float64) *Verdict {
	v := &Verdict{
		Score:     &score,
		Threshold: threshold,
	}
	if score >= threshold {
		v.Outcome = OutcomeMatch
		v.Match = true
		v.Message = MessageMatch
	} else {
		v.Outcome = OutcomeNoMatch
		v.Message = MessageNoMatch
	}
	return v
}

// ScoreText formats the score the way the result page shows it, or "" when unscored.
func (v *Verdict) ScoreText() string {
	if v.Score == nil {
		return ""
	}
	return fmt.Sprintf("%.3f", *v.Score)
}

// String is the one-line form used by the CLI and logs.
func (v *Verdict) String() string {
	if v.Score == nil {
		return v.Message
	}
	return fmt.Sprintf("%s (Score: %s)", v.Message, v.ScoreText())
}
