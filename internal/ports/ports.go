// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// This package establishes the contract between the application core and external
// adapters (infrastructure). The pipeline, executor and resolver depend only on
// these interfaces, so the desktop, elevation and audit backends can be swapped
// for fakes in tests or for other platforms.
//
// Key architectural concepts:
//   - Ports: Interfaces defined here (e.g., PlanValidator, AuditSink)
//   - Adapters: Concrete implementations in the infrastructure layer
//   - Dependency inversion: Application depends on abstractions, not implementations
package ports

import (
	"context"
	"image"

	"github.com/doeshing/deskgate/internal/domain"
)

// ConfigProvider loads the latest configuration from persistent storage.
// Implementations typically read from ~/.deskgate/config.yaml.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// PlanValidator decides, all-or-nothing, whether a plan may run.
// Identical inputs must produce identical verdicts.
type PlanValidator interface {
	Validate(plan domain.Plan, cfg domain.PolicyConfig) domain.ValidationVerdict
}

// ApprovalSource asks a human (or a standing flag) to confirm a validated plan.
type ApprovalSource interface {
	Approve(ctx context.Context, plan domain.Plan, verdict domain.ValidationVerdict) (bool, error)
}

// ActionHandler executes a direct action in the current process.
type ActionHandler interface {
	Execute(ctx context.Context, action domain.Action) (string, error)
	Describe(action domain.Action) string
}

// ScriptBuilder renders the script a privileged action runs.
type ScriptBuilder interface {
	Script(action domain.Action) (string, error)
	Describe(action domain.Action) string
}

// InteractiveHandler turns a GUI action into a resolver target, performing any
// preparation (such as opening a Settings page) first.
type InteractiveHandler interface {
	Prepare(ctx context.Context, action domain.Action) (domain.Target, error)
	Describe(action domain.Action) string
}

// HandlerRegistry looks up handlers by action name and dispatch kind.
type HandlerRegistry interface {
	Direct(name string) (ActionHandler, bool)
	Privileged(name string) (ScriptBuilder, bool)
	Interactive(name string) (InteractiveHandler, bool)
	Describe(action domain.Action, kind domain.ActionKind) string
}

// ElevationClassifier decides whether a script or action needs administrator rights.
type ElevationClassifier interface {
	Classify(text string) domain.ElevationAssessment
}

// PrivilegeElevator reports and acquires administrator rights for child processes.
type PrivilegeElevator interface {
	Status() domain.AdminStatus
	RequiresElevation(action domain.Action) bool
	ElevateAndRun(ctx context.Context, script string) (domain.ScriptResult, error)
	Run(ctx context.Context, action domain.Action, script string) (domain.PrivilegedRun, error)
}

// ElevationLauncher starts a script in a new, elevated process and waits for it.
type ElevationLauncher interface {
	Name() string
	Launch(ctx context.Context, script string) (domain.ScriptResult, error)
}

// ProcessRunner runs child processes to completion.
// A non-zero exit status is reported in the result, not as an error.
type ProcessRunner interface {
	Run(ctx context.Context, cmd domain.Command) (domain.ScriptResult, error)
	RunScript(ctx context.Context, script string, env map[string]string) (domain.ScriptResult, error)
	Start(cmd domain.Command) (int, error)
}

// AutomationResolver drives a target through the ordered automation layers.
type AutomationResolver interface {
	Resolve(ctx context.Context, target domain.Target) (domain.Resolution, error)
}

// WindowSource enumerates top-level desktop windows.
type WindowSource interface {
	Windows(ctx context.Context) ([]domain.Window, error)
}

// AccessibilityAPI finds and operates an element through the platform's
// native accessibility patterns. Missing elements return domain.ErrNotFound.
type AccessibilityAPI interface {
	Invoke(ctx context.Context, window domain.Window, target domain.Target) (string, error)
}

// ControlTreeSource returns the control tree of a window.
type ControlTreeSource interface {
	ControlTree(ctx context.Context, window domain.Window, depth int) (*domain.Control, error)
}

// ScreenCapturer grabs a screen region.
type ScreenCapturer interface {
	Capture(ctx context.Context, region domain.Rect) (image.Image, error)
}

// InputDriver synthesizes pointer and keyboard input.
type InputDriver interface {
	Click(ctx context.Context, at domain.Point) error
	Type(ctx context.Context, text string) error
}

// TextRecognizer extracts text boxes from an image.
type TextRecognizer interface {
	Recognize(ctx context.Context, img image.Image) ([]domain.TextBox, error)
}

// AuditSink appends audit records. There is no update or delete.
type AuditSink interface {
	Record(ctx context.Context, record domain.AuditRecord) error
	Recent(ctx context.Context, n int) ([]domain.AuditRecord, error)
}

// AuditRepository adds read-side reporting to the sink.
type AuditRepository interface {
	AuditSink
	Stats(ctx context.Context) (domain.AuditStats, error)
	ExportJSON(ctx context.Context, dest string) error
	Location() string
	Close() error
}

// Logger provides structured logging abstraction for the application layer.
// Implementations can route to different backends (stderr, files, external services).
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}
