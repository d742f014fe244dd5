package models

import "strings"

// Severity is a coarse ordering of log levels.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityError
	SeverityCritical
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	case SeverityFatal:
		return "fatal"
	default:
		return "info"
	}
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name; unknown names map to SeverityInfo.
func (s *Severity) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "warn":
		*s = SeverityWarn
	case "error":
		*s = SeverityError
	case "critical":
		*s = SeverityCritical
	case "fatal":
		*s = SeverityFatal
	default:
		*s = SeverityInfo
	}
	return nil
}

// Pattern is a normalized signature shared by one or more lines of a chunk.
type Pattern struct {
	Signature string   `json:"signature"`
	Template  string   `json:"template"`
	Example   string   `json:"example"`
	Count     int      `json:"count"`
	Severity  Severity `json:"severity"`
}

// Context condenses a chunk's patterns into the unit handed to inference.
type Context struct {
	Dominant     []Pattern `json:"dominant"`
	Patterns     []Pattern `json:"patterns"`
	Severity     Severity  `json:"severity"`
	Description  string    `json:"description"`
	Unclassified bool      `json:"unclassified"`
	TotalLines   int       `json:"total_lines"`
}

// DominantSignature returns the signature of the strongest pattern, or "" when
// the context is unclassified.
func (c Context) DominantSignature() string {
	if len(c.Dominant) == 0 {
		return ""
	}
	return c.Dominant[0].Signature
}
