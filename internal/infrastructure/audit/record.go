package audit

import (
	"os/user"
	"time"

	"github.com/doeshing/deskgate/internal/domain"
	"github.com/doeshing/deskgate/internal/infrastructure/policy"
)

// FromResult builds the audit entry for one execution result. Arguments are
// stored as RFC 8785 canonical JSON so equal inputs produce equal rows.
func FromResult(runID, username string, result domain.ExecutionResult) domain.AuditRecord {
	rec := domain.AuditRecord{
		RunID:     runID,
		Index:     result.Index,
		Timestamp: result.StartedAt,
		Action:    result.Action,
		Status:    result.Status,
		RiskLevel: result.Risk,
		Elevated:  result.Elevated,
		Elevation: result.Elevation,
		Layer:     result.Layer,
		User:      username,
		Duration:  result.Duration,
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	if len(result.Args) > 0 {
		if raw, err := policy.CanonicalJSON(result.Args); err == nil {
			rec.Args = string(raw)
		}
	}
	if result.Error != nil {
		rec.Error = result.Error.Error()
		rec.ErrorKind = result.Error.Kind
	}
	return rec
}

// CurrentUser returns the login name of the invoking user, or "unknown".
func CurrentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}
