package domain

import "strings"

// Severity is the four-level client-facing ordinal.
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// Scoring weights and band thresholds. Bands are half-open: [lower, upper).
const (
	urgencyWeight     = 0.7
	credibilityWeight = 0.3

	mediumThreshold   = 25.0
	highThreshold     = 60.0
	criticalThreshold = 85.0
)

// Severities lists every level from lowest to highest.
func Severities() []Severity {
	return []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
}

// Rank orders severities: Low=1 through Critical=4. Unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// ParseSeverity matches a severity name case-insensitively.
func ParseSeverity(s string) (Severity, bool) {
	for _, sev := range Severities() {
		if strings.EqualFold(strings.TrimSpace(s), string(sev)) {
			return sev, true
		}
	}
	return "", false
}

// ScoreSeverity blends urgency and credibility (70/30) and maps the result
// to a band: <25 Low, <60 Medium, <85 High, otherwise Critical.
func ScoreSeverity(urgency, credibility float64) Severity {
	blended := urgencyWeight*urgency + credibilityWeight*credibility
	switch {
	case blended < mediumThreshold:
		return SeverityLow
	case blended < highThreshold:
		return SeverityMedium
	case blended < criticalThreshold:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// SeverityFromScores is ScoreSeverity with missing inputs treated as 0.
func SeverityFromScores(urgency, credibility *float64) Severity {
	return ScoreSeverity(floatOrZero(urgency), floatOrZero(credibility))
}

// UrgencyFor returns the urgency sent to the backend for a severity.
// Unknown severities are treated as Medium.
func UrgencyFor(s Severity) int {
	switch s {
	case SeverityLow:
		return 25
	case SeverityHigh:
		return 75
	case SeverityCritical:
		return 95
	default:
		return 55
	}
}

// CredibilityFor returns the credibility sent to the backend for a severity.
// Unknown severities are treated as Medium.
func CredibilityFor(s Severity) int {
	switch s {
	case SeverityLow:
		return 30
	case SeverityHigh:
		return 70
	case SeverityCritical:
		return 90
	default:
		return 50
	}
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
