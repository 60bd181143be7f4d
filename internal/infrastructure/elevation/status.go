package elevation

import (
	"sync"

	"github.com/doeshing/deskgate/internal/domain"
)

// StatusFunc returns the cached administrator status of this process.
type StatusFunc func() domain.AdminStatus

// NewStatus wraps probe so it runs at most once per process; every later
// call, from any goroutine, observes the same value.
func NewStatus(probe func() bool) StatusFunc {
	return sync.OnceValue(func() domain.AdminStatus {
		return StatusFor(probe())
	})
}

// HostStatus probes the running process.
func HostStatus() StatusFunc {
	return NewStatus(isProcessElevated)
}

// StatusFor renders the user-facing status for an elevation flag.
func StatusFor(admin bool) domain.AdminStatus {
	if admin {
		return domain.AdminStatus{IsAdmin: true, Message: domain.AdminMessageElevated}
	}
	return domain.AdminStatus{
		IsAdmin:        false,
		Message:        domain.AdminMessageStandard,
		Recommendation: domain.AdminRecommendation,
	}
}
