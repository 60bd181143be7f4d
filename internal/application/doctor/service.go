package doctor

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	appconfig "github.com/doeshing/deskgate/internal/application/config"
	"github.com/doeshing/deskgate/internal/domain"
	"github.com/doeshing/deskgate/internal/ports"
)

// Service runs environment diagnostics.
type Service struct {
	ConfigProvider ports.ConfigProvider
	Rules          appconfig.RuleChecker
	Audit          ports.AuditRepository
	Elevator       ports.PrivilegeElevator
	Launcher       ports.ElevationLauncher
	Windows        ports.WindowSource
	Shell          string
	OCRBinary      string
	GOOS           string
	LookPath       func(string) (string, error)
}

// Run executes checks and returns a report.
func (s *Service) Run(ctx context.Context) (domain.HealthReport, error) {
	var checks []domain.HealthCheck

	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		checks = append(checks, fail("Config file", fmt.Sprintf("load failed: %v", err)))
		return domain.HealthReport{Checks: checks}, err
	}
	if err := appconfig.Validate(cfg, s.Rules); err != nil {
		checks = append(checks, fail("Config file", err.Error()))
	} else {
		checks = append(checks, ok("Config file", fmt.Sprintf("format %s, %d allowlisted roots", cfg.ConfigFormatVersion, len(cfg.Allowlist.Roots))))
	}

	checks = append(checks, s.auditCheck(ctx))

	if s.Elevator != nil {
		status := s.Elevator.Status()
		if status.IsAdmin {
			checks = append(checks, ok("Privileges", status.Message))
		} else {
			checks = append(checks, warn("Privileges", status.Message+"; privileged actions will prompt"))
		}
	}

	if s.Launcher != nil {
		checks = append(checks, ok("Elevation launcher", s.Launcher.Name()))
	} else {
		checks = append(checks, warn("Elevation launcher", "none available; privileged actions fail unless already elevated"))
	}

	checks = append(checks, s.binaryCheck("Shell", s.Shell, fail))
	checks = append(checks, s.binaryCheck("OCR", s.OCRBinary, warn))
	checks = append(checks, s.desktopCheck(ctx))

	return domain.HealthReport{Checks: checks}, nil
}

func (s *Service) auditCheck(ctx context.Context) domain.HealthCheck {
	if s.Audit == nil {
		return fail("Audit store", "not initialized")
	}
	stats, err := s.Audit.Stats(ctx)
	if err != nil {
		return fail("Audit store", fmt.Sprintf("%s: %v", s.Audit.Location(), err))
	}
	return ok("Audit store", fmt.Sprintf("%s (%d records)", s.Audit.Location(), stats.Total))
}

func (s *Service) binaryCheck(name, binary string, missing func(string, string) domain.HealthCheck) domain.HealthCheck {
	if binary == "" {
		return missing(name, "not configured")
	}
	look := s.LookPath
	if look == nil {
		look = exec.LookPath
	}
	path, err := look(binary)
	if err != nil {
		return missing(name, fmt.Sprintf("%s not found in PATH", binary))
	}
	return ok(name, path)
}

func (s *Service) desktopCheck(ctx context.Context) domain.HealthCheck {
	goos := s.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	if s.Windows == nil {
		return warn("Desktop automation", "not initialized")
	}
	windows, err := s.Windows.Windows(ctx)
	if err != nil {
		return warn("Desktop automation", fmt.Sprintf("%s: %v", goos, err))
	}
	return ok("Desktop automation", fmt.Sprintf("%d top-level windows visible", len(windows)))
}

func ok(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthOK, Details: details}
}

func warn(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthWarn, Details: details}
}

func fail(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthError, Details: details}
}
