// Package pipeline wires validation, approval, execution and auditing into a
// single plan submission.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/doeshing/deskgate/internal/application/executor"
	"github.com/doeshing/deskgate/internal/domain"
	"github.com/doeshing/deskgate/internal/ports"
)

// Counters receives plan-level events for metrics.
type Counters interface {
	RecordRejection(ctx context.Context)
	RecordAuditFailure(ctx context.Context, action string)
}

// Progress observes an approved run as it executes.
type Progress interface {
	Started(runID string, total int)
	Finished(result domain.ExecutionResult)
}

// RecordBuilder turns an execution result into an audit record.
type RecordBuilder func(runID, user string, result domain.ExecutionResult) domain.AuditRecord

// Service orchestrates a plan from validation to audit.
type Service struct {
	ConfigProvider ports.ConfigProvider
	Validator      ports.PlanValidator
	Approver       ports.ApprovalSource
	Executor       *executor.Executor
	Elevator       ports.PrivilegeElevator
	Audit          ports.AuditSink
	Logger         ports.Logger
	Counters       Counters
	BuildRecord    RecordBuilder
	User           string
	NewRunID       func() string
	Progress       Progress

	mu sync.Mutex
}

// Validate returns the verdict for plan without executing anything.
func (s *Service) Validate(ctx context.Context, plan domain.Plan) (domain.ValidationVerdict, error) {
	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		return domain.ValidationVerdict{}, fmt.Errorf("load config: %w", err)
	}
	return s.Validator.Validate(plan, cfg.PolicyConfig()), nil
}

// DryRun validates plan and describes what each action would do.
func (s *Service) DryRun(ctx context.Context, plan domain.Plan) (domain.ValidationVerdict, []string, error) {
	verdict, err := s.Validate(ctx, plan)
	if err != nil {
		return verdict, nil, err
	}
	if !verdict.Approved {
		return verdict, nil, &domain.RejectionError{Verdict: verdict}
	}
	lines := make([]string, 0, len(verdict.Validated))
	for _, va := range verdict.Validated {
		lines = append(lines, s.Executor.Registry.Describe(va.Action, va.Kind))
	}
	return verdict, lines, nil
}

// Submit runs plan end to end. Only one plan runs at a time per Service; a
// concurrent call fails fast with domain.ErrPlanInFlight. Per-action failures
// are reported in the summary, not as an error.
func (s *Service) Submit(ctx context.Context, plan domain.Plan, cancel *domain.CancelSignal) (domain.Summary, error) {
	if s.ConfigProvider == nil || s.Validator == nil || s.Executor == nil || s.Audit == nil || s.Logger == nil {
		return domain.Summary{}, errors.New("pipeline.Service dependencies not satisfied")
	}
	if !s.mu.TryLock() {
		return domain.Summary{}, domain.ErrPlanInFlight
	}
	defer s.mu.Unlock()

	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("load config: %w", err)
	}

	verdict := s.Validator.Validate(plan, cfg.PolicyConfig())
	summary := domain.Summary{Digest: verdict.Digest, Planned: plan.Len()}
	if !verdict.Approved {
		if s.Counters != nil {
			s.Counters.RecordRejection(ctx)
		}
		s.Logger.Warn("plan rejected", map[string]interface{}{"digest": verdict.Digest, "reason": verdict.Reason})
		return summary, &domain.RejectionError{Verdict: verdict}
	}

	if verdict.RequiresConfirmation {
		if s.Approver == nil {
			return summary, domain.ErrNotApproved
		}
		approved, err := s.Approver.Approve(ctx, plan, verdict)
		if err != nil {
			return summary, fmt.Errorf("approval: %w", err)
		}
		if !approved {
			s.Logger.Info("plan declined", map[string]interface{}{"digest": verdict.Digest})
			return summary, domain.ErrNotApproved
		}
	}
	s.warnIfNotElevated(verdict)

	runID := s.runID()
	runCtx, cancelRun := context.WithTimeout(ctx, cfg.Execution.PlanTimeoutDuration())
	defer cancelRun()

	s.Logger.Info("plan started", map[string]interface{}{
		"run_id":  runID,
		"digest":  verdict.Digest,
		"actions": len(verdict.Validated),
		"risk":    verdict.PlanRisk,
	})

	auditFailures := 0
	if s.Progress != nil {
		s.Progress.Started(runID, len(verdict.Validated))
	}
	observe := func(result domain.ExecutionResult) {
		if err := s.record(ctx, runID, result); err != nil {
			auditFailures++
		}
		if s.Progress != nil {
			s.Progress.Finished(result)
		}
	}
	report := s.Executor.Execute(runCtx, verdict.Validated, cancel, observe)

	summary = executor.Summarize(report)
	summary.RunID = runID
	summary.Digest = verdict.Digest
	summary.AuditFailures = auditFailures

	s.Logger.Info("plan finished", map[string]interface{}{
		"run_id":  runID,
		"outcome": summary.Outcome,
		"success": summary.SuccessCount,
		"total":   summary.TotalCount,
		"stopped": summary.StopReason,
	})
	return summary, nil
}

// record appends one audit entry. The write survives plan cancellation and
// never alters the action's result.
func (s *Service) record(ctx context.Context, runID string, result domain.ExecutionResult) error {
	build := s.BuildRecord
	if build == nil {
		build = basicRecord
	}
	rec := build(runID, s.User, result)

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), domain.DefaultAuditWriteTimeout)
	defer cancel()
	err := s.Audit.Record(wctx, rec)
	if err != nil {
		s.Logger.Error("audit write failed", err, map[string]interface{}{
			"run_id": runID,
			"index":  result.Index,
			"action": result.Action,
			"status": result.Status,
		})
		if s.Counters != nil {
			s.Counters.RecordAuditFailure(ctx, result.Action)
		}
	}
	return err
}

func (s *Service) warnIfNotElevated(verdict domain.ValidationVerdict) {
	if s.Elevator == nil {
		return
	}
	for _, va := range verdict.Validated {
		if va.Kind != domain.KindPrivileged {
			continue
		}
		if status := s.Elevator.Status(); !status.IsAdmin {
			s.Logger.Warn(status.Message, map[string]interface{}{"recommendation": status.Recommendation})
		}
		return
	}
}

func (s *Service) runID() string {
	if s.NewRunID != nil {
		return s.NewRunID()
	}
	return uuid.NewString()
}

func basicRecord(runID, user string, result domain.ExecutionResult) domain.AuditRecord {
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
		User:      user,
		Duration:  result.Duration,
	}
	if raw, err := json.Marshal(result.Args); err == nil && len(result.Args) > 0 {
		rec.Args = string(raw)
	}
	if result.Error != nil {
		rec.Error = result.Error.Error()
		rec.ErrorKind = result.Error.Kind
	}
	return rec
}
