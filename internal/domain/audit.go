package domain

import "time"

// AuditRecord is one append-only entry of the audit trail.
type AuditRecord struct {
	ID        int64            `json:"id,omitempty"`
	RunID     string           `json:"run_id"`
	Index     int              `json:"index"`
	Timestamp time.Time        `json:"timestamp"`
	Action    string           `json:"action"`
	Args      string           `json:"args,omitempty"`
	Status    Status           `json:"status"`
	Error     string           `json:"error,omitempty"`
	ErrorKind ErrorKind        `json:"error_kind,omitempty"`
	RiskLevel RiskLevel        `json:"risk_level"`
	Elevated  bool             `json:"elevated"`
	Elevation ElevationOutcome `json:"elevation,omitempty"`
	Layer     Layer            `json:"layer,omitempty"`
	User      string           `json:"user,omitempty"`
	Duration  time.Duration    `json:"duration"`
}

// AuditStats summarizes the audit trail.
type AuditStats struct {
	Total      int
	Successes  int
	Errors     int
	Elevated   int
	TopActions []ActionCount
	ByRisk     map[RiskLevel]int
}

// SuccessRate returns the success percentage, 0 when empty.
func (s AuditStats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Total) * 100
}

// ActionCount pairs an action name with its frequency.
type ActionCount struct {
	Action string
	Count  int
}
