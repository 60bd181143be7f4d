package domain

import (
	"sync/atomic"
	"time"
)

// Status is the terminal state of an executed action.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ElevationOutcome records what the elevator did for a privileged action.
type ElevationOutcome string

const (
	ElevationNone         ElevationOutcome = ""
	ElevationNotRequired  ElevationOutcome = "not_required"
	ElevationAlreadyAdmin ElevationOutcome = "already_admin"
	ElevationGranted      ElevationOutcome = "granted"
	ElevationDenied       ElevationOutcome = "denied"
	ElevationFailedState  ElevationOutcome = "failed"
)

// ExecutionResult is produced exactly once per executed action.
type ExecutionResult struct {
	Index     int
	Action    string
	Args      map[string]any
	Kind      ActionKind
	Risk      RiskLevel
	Status    Status
	Output    string
	Error     *ActionError
	Layer     Layer
	Attempts  []LayerAttempt
	Elevated  bool
	Elevation ElevationOutcome
	StartedAt time.Time
	Duration  time.Duration
}

// Succeeded reports whether the action completed without error.
func (r ExecutionResult) Succeeded() bool {
	return r.Status == StatusSuccess && r.Error == nil
}

// ScriptResult captures a finished child process.
type ScriptResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// AdminStatus describes the privilege level of the current process.
type AdminStatus struct {
	IsAdmin        bool   `json:"is_admin"`
	Message        string `json:"message"`
	Recommendation string `json:"recommendation,omitempty"`
}

// StopReason explains why a run ended before the last action.
type StopReason string

const (
	StopNone        StopReason = ""
	StopCancelled   StopReason = "cancelled"
	StopPlanTimeout StopReason = "plan_timeout"
)

// RunReport is the raw output of the executor.
type RunReport struct {
	Results    []ExecutionResult
	Planned    int
	Stopped    bool
	StopReason StopReason
}

// Outcome classifies a summary.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailure Outcome = "failure"
	OutcomeEmpty   Outcome = "empty"
)

// Summary is the aggregated response for a plan run.
type Summary struct {
	RunID         string
	Digest        string
	SuccessCount  int
	TotalCount    int
	Planned       int
	Outcome       Outcome
	Stopped       bool
	StopReason    StopReason
	AuditFailures int
	Results       []ExecutionResult
}

// CancelSignal is a cooperative, one-way cancellation flag checked at action
// boundaries. The zero value is ready to use.
type CancelSignal struct {
	flag atomic.Bool
}

// Cancel raises the signal.
func (c *CancelSignal) Cancel() {
	if c != nil {
		c.flag.Store(true)
	}
}

// Cancelled reports whether Cancel has been called. A nil signal never fires.
func (c *CancelSignal) Cancelled() bool {
	return c != nil && c.flag.Load()
}
