package theme

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Complexity is the difficulty tier of a syllabus theme.
type Complexity string

const (
	ComplexityLow    Complexity = "LOW"
	ComplexityMedium Complexity = "MEDIUM"
	ComplexityHigh   Complexity = "HIGH"
)

// ParseComplexity parses a complexity tier case-insensitively.
// Unknown or empty values fall back to MEDIUM.
func ParseComplexity(s string) Complexity {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW", "BAJA":
		return ComplexityLow
	case "HIGH", "ALTA":
		return ComplexityHigh
	default:
		return ComplexityMedium
	}
}

// Rank orders tiers for rotation: HIGH first, LOW last.
func (c Complexity) Rank() int {
	switch c {
	case ComplexityHigh:
		return 0
	case ComplexityLow:
		return 2
	default:
		return 1
	}
}

// Theme is a syllabus topic as stored in the catalog.
type Theme struct {
	ID             int        `json:"id" yaml:"id"`
	Title          string     `json:"title" yaml:"title"`
	EstimatedHours float64    `json:"estimatedHours" yaml:"estimatedHours"`
	Complexity     Complexity `json:"complexity" yaml:"complexity"`
	PartCount      int        `json:"partCount" yaml:"partCount"`
	BlockID        int        `json:"blockId" yaml:"blockId"`
}

// Ref identifies a theme or one part of a multi-part theme.
// Part is 0 when the reference names the whole theme; parts are 1-based.
type Ref struct {
	BaseID int
	Part   int
}

// ParseRef parses "6" or "6-2" style references.
func ParseRef(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ref{}, fmt.Errorf("empty theme reference")
	}
	base, part, hasPart := strings.Cut(s, "-")
	id, err := strconv.Atoi(strings.TrimSpace(base))
	if err != nil || id <= 0 {
		return Ref{}, fmt.Errorf("invalid theme id %q", s)
	}
	ref := Ref{BaseID: id}
	if hasPart {
		p, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || p <= 0 {
			return Ref{}, fmt.Errorf("invalid part index in %q", s)
		}
		ref.Part = p
	}
	return ref, nil
}

// String renders the reference in its composite form.
func (r Ref) String() string {
	if r.Part > 0 {
		return fmt.Sprintf("%d-%d", r.BaseID, r.Part)
	}
	return strconv.Itoa(r.BaseID)
}

// IsPart reports whether the reference points at a single part.
func (r Ref) IsPart() bool { return r.Part > 0 }

// Less orders references by base id, then part.
func (r Ref) Less(o Ref) bool {
	if r.BaseID != o.BaseID {
		return r.BaseID < o.BaseID
	}
	return r.Part < o.Part
}

// MarshalJSON emits plain numbers for whole themes and strings for parts.
func (r Ref) MarshalJSON() ([]byte, error) {
	if r.Part > 0 {
		return json.Marshal(r.String())
	}
	return json.Marshal(r.BaseID)
}

// UnmarshalJSON accepts 6, "6" and "6-2".
func (r *Ref) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		parsed, err := ParseRef(n.String())
		if err != nil {
			return err
		}
		*r = parsed
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("theme reference must be a number or string: %w", err)
	}
	parsed, err := ParseRef(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// MarshalText lets refs be used as map keys in JSON output.
func (r Ref) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText is the inverse of MarshalText.
func (r *Ref) UnmarshalText(b []byte) error {
	parsed, err := ParseRef(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
