// Package executor runs validated actions one at a time, dispatching each to
// its direct handler, the privilege elevator or the automation resolver.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/doeshing/deskgate/internal/domain"
	"github.com/doeshing/deskgate/internal/infrastructure/observability"
	"github.com/doeshing/deskgate/internal/ports"
)

const tracerName = "github.com/doeshing/deskgate/executor"

// Recorder receives one call per finished action.
type Recorder interface {
	RecordAction(ctx context.Context, result domain.ExecutionResult)
}

// Executor dispatches validated actions strictly in order.
type Executor struct {
	Registry      ports.HandlerRegistry
	Elevator      ports.PrivilegeElevator
	Resolver      ports.AutomationResolver
	Logger        ports.Logger
	Metrics       Recorder
	Tracer        trace.Tracer
	ActionTimeout time.Duration
	Now           func() time.Time
}

// Execute runs actions in order and returns one result per action started.
// Failures do not stop the run. The cancel signal and ctx are checked only
// between actions; observe, when set, sees every result as it is produced.
func (e *Executor) Execute(ctx context.Context, actions []domain.ValidatedAction, cancel *domain.CancelSignal, observe func(domain.ExecutionResult)) domain.RunReport {
	report := domain.RunReport{Planned: len(actions), Results: make([]domain.ExecutionResult, 0, len(actions))}
	for _, va := range actions {
		if reason, stop := stopReason(ctx, cancel); stop {
			report.Stopped = true
			report.StopReason = reason
			e.Logger.Warn("run stopped before action", map[string]interface{}{
				"index":  va.Index,
				"action": va.Action.Name,
				"reason": reason,
			})
			break
		}
		result := e.run(ctx, va)
		report.Results = append(report.Results, result)
		if observe != nil {
			observe(result)
		}
	}
	return report
}

func stopReason(ctx context.Context, cancel *domain.CancelSignal) (domain.StopReason, bool) {
	if cancel.Cancelled() {
		return domain.StopCancelled, true
	}
	switch err := ctx.Err(); {
	case err == nil:
		return domain.StopNone, false
	case errors.Is(err, context.DeadlineExceeded):
		return domain.StopPlanTimeout, true
	default:
		return domain.StopCancelled, true
	}
}

func (e *Executor) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Executor) tracer() trace.Tracer {
	if e.Tracer != nil {
		return e.Tracer
	}
	return otel.Tracer(tracerName)
}

func (e *Executor) run(ctx context.Context, va domain.ValidatedAction) domain.ExecutionResult {
	start := e.now()
	result := domain.ExecutionResult{
		Index:     va.Index,
		Action:    va.Action.Name,
		Args:      va.Action.Args,
		Kind:      va.Kind,
		Risk:      va.Risk,
		StartedAt: start,
	}

	ctx, span := e.tracer().Start(ctx, "deskgate.action "+va.Action.Name, trace.WithAttributes(
		observability.AttrAction.String(va.Action.Name),
		observability.AttrKind.String(string(va.Kind)),
		observability.AttrRisk.String(string(va.Risk)),
		observability.AttrIndex.Int(va.Index),
	))
	defer span.End()

	var err error
	switch va.Kind {
	case domain.KindDirect:
		result.Output, err = e.runDirect(ctx, va.Action)
	case domain.KindPrivileged:
		err = e.runPrivileged(ctx, va.Action, &result)
	case domain.KindInteractive:
		err = e.runInteractive(ctx, va.Action, &result)
	default:
		err = fmt.Errorf("unknown dispatch kind %q", va.Kind)
	}
	result.Duration = e.now().Sub(start)

	if err != nil {
		result.Status = domain.StatusError
		result.Error = toActionError(va.Action.Name, err)
		if len(result.Attempts) == 0 {
			result.Attempts = result.Error.Attempts
		}
		span.RecordError(result.Error)
		span.SetStatus(codes.Error, string(result.Error.Kind))
		e.Logger.Warn("action failed", map[string]interface{}{
			"index":  va.Index,
			"action": va.Action.Name,
			"kind":   result.Error.Kind,
			"error":  result.Error.Message,
		})
	} else {
		result.Status = domain.StatusSuccess
		span.SetStatus(codes.Ok, "")
		e.Logger.Info("action succeeded", map[string]interface{}{
			"index":    va.Index,
			"action":   va.Action.Name,
			"duration": result.Duration.String(),
		})
	}
	span.SetAttributes(observability.AttrStatus.String(string(result.Status)))
	if result.Layer != "" {
		span.SetAttributes(observability.AttrLayer.String(string(result.Layer)))
	}
	if result.Elevation != domain.ElevationNone {
		span.SetAttributes(observability.AttrElevation.String(string(result.Elevation)))
	}
	if e.Metrics != nil {
		e.Metrics.RecordAction(ctx, result)
	}
	return result
}

func (e *Executor) runDirect(ctx context.Context, action domain.Action) (string, error) {
	handler, ok := e.Registry.Direct(action.Name)
	if !ok {
		return "", fmt.Errorf("no direct handler for %s", action.Name)
	}
	timeout := e.ActionTimeout
	if timeout <= 0 {
		timeout = domain.DefaultActionTimeout
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return handler.Execute(actx, action)
}

func (e *Executor) runPrivileged(ctx context.Context, action domain.Action, result *domain.ExecutionResult) error {
	builder, ok := e.Registry.Privileged(action.Name)
	if !ok {
		return fmt.Errorf("no script builder for %s", action.Name)
	}
	script, err := builder.Script(action)
	if err != nil {
		return fmt.Errorf("build script: %w", err)
	}
	run, err := e.Elevator.Run(ctx, action, script)
	result.Elevation = run.Outcome
	result.Elevated = run.Elevated()
	result.Output = strings.TrimSpace(run.Result.Stdout)
	if err != nil {
		return err
	}
	if run.Result.ExitCode != 0 {
		msg := strings.TrimSpace(run.Result.Stderr)
		if msg == "" {
			msg = result.Output
		}
		return &domain.ActionError{
			Kind:    domain.ErrActionRuntime,
			Action:  action.Name,
			Message: fmt.Sprintf("script exited %d: %s", run.Result.ExitCode, msg),
		}
	}
	if result.Output == "" {
		result.Output = builder.Describe(action)
	}
	return nil
}

func (e *Executor) runInteractive(ctx context.Context, action domain.Action, result *domain.ExecutionResult) error {
	handler, ok := e.Registry.Interactive(action.Name)
	if !ok {
		return fmt.Errorf("no interactive handler for %s", action.Name)
	}
	target, err := handler.Prepare(ctx, action)
	if err != nil {
		return err
	}
	resolution, err := e.Resolver.Resolve(ctx, target)
	result.Layer = resolution.Layer
	result.Attempts = resolution.Attempts
	if err != nil {
		return err
	}
	result.Output = resolution.Detail
	if result.Output == "" {
		result.Output = handler.Describe(action)
	}
	return nil
}

// toActionError maps any failure onto the structured error kinds.
func toActionError(action string, err error) *domain.ActionError {
	var ae *domain.ActionError
	if errors.As(err, &ae) {
		out := *ae
		if out.Action == "" {
			out.Action = action
		}
		return &out
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewActionError(domain.ErrActionTimeout, action, err)
	}
	return domain.NewActionError(domain.ErrActionRuntime, action, err)
}
