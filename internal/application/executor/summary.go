package executor

import "github.com/doeshing/deskgate/internal/domain"

// Summarize aggregates a run report into the user-facing summary. Results
// stay aligned with the plan prefix that actually ran.
func Summarize(report domain.RunReport) domain.Summary {
	s := domain.Summary{
		TotalCount: len(report.Results),
		Planned:    report.Planned,
		Stopped:    report.Stopped,
		StopReason: report.StopReason,
		Results:    report.Results,
	}
	for _, r := range report.Results {
		if r.Succeeded() {
			s.SuccessCount++
		}
	}
	switch {
	case report.Planned == 0:
		s.Outcome = domain.OutcomeEmpty
	case s.SuccessCount == 0:
		s.Outcome = domain.OutcomeFailure
	case s.SuccessCount == report.Planned:
		s.Outcome = domain.OutcomeSuccess
	default:
		s.Outcome = domain.OutcomePartial
	}
	return s
}
