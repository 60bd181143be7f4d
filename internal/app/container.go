package app

import (
	"context"
	"errors"
	"runtime"

	appconfig "github.com/doeshing/deskgate/internal/application/config"
	"github.com/doeshing/deskgate/internal/application/doctor"
	"github.com/doeshing/deskgate/internal/application/executor"
	"github.com/doeshing/deskgate/internal/application/pipeline"
	"github.com/doeshing/deskgate/internal/domain"
	"github.com/doeshing/deskgate/internal/infrastructure/actions"
	"github.com/doeshing/deskgate/internal/infrastructure/audit"
	"github.com/doeshing/deskgate/internal/infrastructure/automation"
	"github.com/doeshing/deskgate/internal/infrastructure/config"
	"github.com/doeshing/deskgate/internal/infrastructure/desktop"
	"github.com/doeshing/deskgate/internal/infrastructure/elevation"
	"github.com/doeshing/deskgate/internal/infrastructure/observability"
	"github.com/doeshing/deskgate/internal/infrastructure/ocr"
	"github.com/doeshing/deskgate/internal/infrastructure/policy"
	"github.com/doeshing/deskgate/internal/infrastructure/process"
	"github.com/doeshing/deskgate/internal/pkg/filesystem"
	"github.com/doeshing/deskgate/internal/pkg/logger"
	"github.com/doeshing/deskgate/internal/ports"
)

// Options selects how the container is built.
type Options struct {
	ConfigPath string
	Verbose    bool
	Version    string
}

// Container wires up application services with infrastructure adapters.
type Container struct {
	Config         domain.Config
	ConfigLoader   *config.FileLoader
	ConfigProvider ports.ConfigProvider
	Logger         ports.Logger
	Pipeline       *pipeline.Service
	Validator      *policy.Validator
	Registry       *actions.Registry
	Classifier     *elevation.Classifier
	Elevator       *elevation.Elevator
	AuditStore     ports.AuditRepository
	DoctorService  *doctor.Service

	telemetry *observability.Provider
}

// BuildContainer constructs the dependency graph.
func BuildContainer(ctx context.Context, opts Options) (*Container, error) {
	cfgLoader := config.NewFileLoader(opts.ConfigPath)
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.NewStd(opts.Verbose)
	home := filesystem.UserHomeDir()

	telemetry, err := observability.New(ctx, cfg.Observability, opts.Version)
	if err != nil {
		log.Warn("telemetry disabled", map[string]interface{}{"error": err.Error()})
		telemetry = nil
	}
	metrics, err := observability.NewMetrics(observability.Meter())
	if err != nil {
		return nil, err
	}

	runner := process.NewRunner(cfg.Execution.Shell)
	registry := actions.NewRegistry(runner)

	classifier, err := elevation.NewClassifier(cfg.Elevation.RulesFile)
	if err != nil {
		log.Warn("elevation rules unreadable, using built-in rules", map[string]interface{}{
			"rules_file": cfg.Elevation.RulesFile,
			"error":      err.Error(),
		})
		classifier, err = elevation.NewClassifier("")
		if err != nil {
			return nil, err
		}
	}
	launcher, err := elevation.NewLauncher(cfg.Elevation.Launcher, runner)
	if err != nil {
		log.Warn("no elevation launcher", map[string]interface{}{"error": err.Error()})
		launcher = nil
	}
	elevator := elevation.NewElevator(classifier, elevation.HostStatus(), launcher, runner, log)

	backend := desktop.NewBackend(runtime.GOOS, runner)
	recognizer := ocr.NewTesseract(runner, cfg.Automation.OCRCommand)
	strategies := automation.DefaultStrategies(backend, recognizer, cfg.Automation)
	resolver := automation.NewResolver(backend, strategies, cfg.Automation, log, metrics)

	validator, err := policy.NewValidator(home)
	if err != nil {
		return nil, err
	}

	auditStore, err := audit.Open(ctx, cfg.Audit, home)
	if err != nil {
		fallback := audit.Fallback(home)
		log.Warn("audit store unavailable, appending to file", map[string]interface{}{
			"driver":   cfg.Audit.Driver,
			"error":    err.Error(),
			"location": fallback.Location(),
		})
		auditStore = fallback
	}

	actionExecutor := &executor.Executor{
		Registry:      registry,
		Elevator:      elevator,
		Resolver:      resolver,
		Logger:        log,
		Metrics:       metrics,
		Tracer:        observability.Tracer(),
		ActionTimeout: cfg.Execution.ActionTimeoutDuration(),
	}

	pipelineService := &pipeline.Service{
		ConfigProvider: cfgLoader,
		Validator:      validator,
		Executor:       actionExecutor,
		Elevator:       elevator,
		Audit:          auditStore,
		Logger:         log,
		Counters:       metrics,
		BuildRecord:    audit.FromResult,
		User:           audit.CurrentUser(),
	}

	doctorService := &doctor.Service{
		ConfigProvider: cfgLoader,
		Rules:          ruleChecker(validator),
		Audit:          auditStore,
		Elevator:       elevator,
		Launcher:       launcher,
		Windows:        backend,
		Shell:          runner.Shell(),
		OCRBinary:      recognizer.Binary(),
	}

	return &Container{
		Config:         cfg,
		ConfigLoader:   cfgLoader,
		ConfigProvider: cfgLoader,
		Logger:         log,
		Pipeline:       pipelineService,
		Validator:      validator,
		Registry:       registry,
		Classifier:     classifier,
		Elevator:       elevator,
		AuditStore:     auditStore,
		DoctorService:  doctorService,
		telemetry:      telemetry,
	}, nil
}

// RuleChecker returns the deny-rule compiler used by configuration checks.
func (c *Container) RuleChecker() appconfig.RuleChecker {
	return ruleChecker(c.Validator)
}

func ruleChecker(v *policy.Validator) appconfig.RuleChecker {
	return v.Rules()
}

// Close flushes telemetry and releases the audit store.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if c.AuditStore != nil {
		errs = append(errs, c.AuditStore.Close())
	}
	errs = append(errs, c.telemetry.Shutdown(ctx))
	return errors.Join(errs...)
}
