// Package elevation reports the process privilege level, classifies which
// scripts need Administrator rights, and runs those scripts in a separate
// elevated child process. The calling process is never elevated.
package elevation

import (
	"context"
	"errors"

	"github.com/doeshing/deskgate/internal/domain"
	"github.com/doeshing/deskgate/internal/ports"
)

// Elevator implements ports.PrivilegeElevator.
type Elevator struct {
	classifier ports.ElevationClassifier
	status     StatusFunc
	launcher   ports.ElevationLauncher
	runner     ports.ProcessRunner
	logger     ports.Logger
}

// NewElevator wires the elevator. launcher may be nil when no elevation
// helper is available; elevation then fails with ElevationFailed.
func NewElevator(classifier ports.ElevationClassifier, status StatusFunc, launcher ports.ElevationLauncher, runner ports.ProcessRunner, logger ports.Logger) *Elevator {
	return &Elevator{
		classifier: classifier,
		status:     status,
		launcher:   launcher,
		runner:     runner,
		logger:     logger,
	}
}

// Status implements ports.PrivilegeElevator.
func (e *Elevator) Status() domain.AdminStatus {
	return e.status()
}

// RequiresElevation implements ports.PrivilegeElevator. The action name and
// its script payload are both matched against the keyword rules.
func (e *Elevator) RequiresElevation(action domain.Action) bool {
	return e.Assess(action).Required
}

// Assess returns the full classification for action.
func (e *Elevator) Assess(action domain.Action) domain.ElevationAssessment {
	text := action.Name
	if script, ok := action.StringArg("script"); ok {
		text += "\n" + script
	}
	return e.classifier.Classify(text)
}

// ElevateAndRun implements ports.PrivilegeElevator.
func (e *Elevator) ElevateAndRun(ctx context.Context, script string) (domain.ScriptResult, error) {
	if e.launcher == nil {
		return domain.ScriptResult{}, &domain.ActionError{
			Kind:    domain.ErrElevationFailed,
			Message: "no elevation launcher is available on this system",
		}
	}
	e.logger.Info("requesting elevation", map[string]interface{}{"launcher": e.launcher.Name()})
	return e.launcher.Launch(ctx, script)
}

// Run implements ports.PrivilegeElevator. It runs script directly when no
// elevation is needed or the process is already elevated, and otherwise
// through ElevateAndRun.
func (e *Elevator) Run(ctx context.Context, action domain.Action, script string) (domain.PrivilegedRun, error) {
	assessment := e.Assess(action)
	if !assessment.Required {
		res, err := e.runner.RunScript(ctx, script, nil)
		return domain.PrivilegedRun{Result: res, Outcome: domain.ElevationNotRequired}, err
	}

	fields := map[string]interface{}{"action": action.Name, "rules": assessment.MatchedRules}
	if e.Status().IsAdmin {
		e.logger.Debug("already elevated", fields)
		res, err := e.runner.RunScript(ctx, script, nil)
		return domain.PrivilegedRun{Result: res, Outcome: domain.ElevationAlreadyAdmin}, err
	}

	res, err := e.ElevateAndRun(ctx, script)
	if err != nil {
		outcome := domain.ElevationFailedState
		var ae *domain.ActionError
		if errors.As(err, &ae) {
			ae.Action = action.Name
			if ae.Kind == domain.ErrElevationDenied {
				outcome = domain.ElevationDenied
			}
		}
		e.logger.Warn("elevation did not complete", map[string]interface{}{"action": action.Name, "outcome": outcome, "error": err.Error()})
		return domain.PrivilegedRun{Result: res, Outcome: outcome}, err
	}
	return domain.PrivilegedRun{Result: res, Outcome: domain.ElevationGranted}, nil
}

var _ ports.PrivilegeElevator = (*Elevator)(nil)
var _ ports.ElevationLauncher = (*RunAsLauncher)(nil)
var _ ports.ElevationLauncher = (*CommandLauncher)(nil)
