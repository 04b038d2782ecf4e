package job

import (
	"reflect"
	"slices"
)

// Report is the structured result of a research job.
type Report struct {
	Title                string      `json:"title" msgpack:"title"`
	ExecutiveSummary     string      `json:"executive_summary" msgpack:"executive_summary"`
	Sections             []Section   `json:"sections" msgpack:"sections"`
	KeyFactors           []KeyFactor `json:"key_factors" msgpack:"key_factors"`
	ConfidenceAssessment string      `json:"confidence_assessment" msgpack:"confidence_assessment"`
	Sources              []string    `json:"sources" msgpack:"sources"`
}

// Section is one headed block of report text.
type Section struct {
	Heading string `json:"heading" msgpack:"heading"`
	Content string `json:"content" msgpack:"content"`
}

// KeyFactor is a driver the report weighs. Impact is one of "bullish",
// "bearish", "neutral"; Confidence is "high", "medium" or "low".
type KeyFactor struct {
	Factor     string `json:"factor" msgpack:"factor"`
	Impact     string `json:"impact" msgpack:"impact"`
	Confidence string `json:"confidence" msgpack:"confidence"`
}

// Clone returns a deep copy of r. A nil report clones to nil.
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	out := *r
	out.Sections = slices.Clone(r.Sections)
	out.KeyFactors = slices.Clone(r.KeyFactors)
	out.Sources = slices.Clone(r.Sources)
	return &out
}

// Equal reports whether r and o carry the same content. Two nil reports
// are equal.
func (r *Report) Equal(o *Report) bool {
	if r == nil || o == nil {
		return r == o
	}
	return reflect.DeepEqual(*r, *o)
}
