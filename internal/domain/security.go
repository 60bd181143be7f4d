package domain

import "strings"

// RiskLevel enumerates the static risk tiers of catalog actions.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

var riskOrder = map[RiskLevel]int{
	RiskLow:    1,
	RiskMedium: 2,
	RiskHigh:   3,
}

// ParseRiskLevel reports whether value names a known risk tier.
func ParseRiskLevel(value string) (RiskLevel, bool) {
	level := RiskLevel(strings.ToLower(strings.TrimSpace(value)))
	_, ok := riskOrder[level]
	return level, ok
}

// Valid reports whether r is one of the known tiers.
func (r RiskLevel) Valid() bool {
	_, ok := riskOrder[r]
	return ok
}

// MoreSevere reports whether r ranks above other.
func (r RiskLevel) MoreSevere(other RiskLevel) bool {
	return riskOrder[r] > riskOrder[other]
}

// MaxRisk returns the most severe level in levels, RiskLow when empty.
func MaxRisk(levels ...RiskLevel) RiskLevel {
	highest := RiskLow
	for _, level := range levels {
		if level.MoreSevere(highest) {
			highest = level
		}
	}
	return highest
}

// ElevationAssessment is the outcome of keyword classification for a script
// or action name.
type ElevationAssessment struct {
	Required     bool
	Reasons      []string
	MatchedRules []string
}
