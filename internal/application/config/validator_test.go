package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/deskgate/internal/domain"
)

type stubRules map[string]error

func (s stubRules) Check(expr string) error { return s[expr] }

func validConfig() domain.Config {
	return domain.Config{
		ConfigFormatVersion: "1.0.0",
		Allowlist:           domain.AllowlistSettings{Roots: []string{"/home/ana/Documents"}, CaseInsensitive: "auto"},
		Policy: domain.PolicySettings{
			MaxActions: 20,
			DenyRules:  []domain.DenyRule{{Name: "no-format", Expression: `action == "run_powershell"`}},
		},
		Execution:  domain.ExecutionSettings{ActionTimeout: "30s", PlanTimeout: "5m"},
		Automation: domain.AutomationSettings{LayerTimeout: "2s", PollInterval: "250ms", ImageConfidence: 0.85},
		Audit:      domain.AuditSettings{Driver: "sqlite"},
	}
}

func TestValidateAcceptsGoodConfig(t *testing.T) {
	require.NoError(t, Validate(validConfig(), stubRules{}))
	require.NoError(t, Validate(validConfig(), nil))
}

func TestValidateFormatVersion(t *testing.T) {
	for _, tc := range []struct {
		version string
		ok      bool
	}{
		{"1.0.0", true},
		{"1.4.2", true},
		{"1", true},
		{"2.0.0", false},
		{"0.9.0", false},
		{"banana", false},
		{"", false},
	} {
		cfg := validConfig()
		cfg.ConfigFormatVersion = tc.version
		err := Validate(cfg, nil)
		assert.Equal(t, tc.ok, err == nil, "version %q: %v", tc.version, err)
	}
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.Allowlist.Roots = nil
	cfg.Execution.PlanTimeout = "soon"
	cfg.Automation.ImageConfidence = 1.5
	cfg.Audit.Driver = "mongo"
	cfg.Policy.DenyRules = append(cfg.Policy.DenyRules, domain.DenyRule{Name: "broken", Expression: "action =="})

	err := Validate(cfg, stubRules{"action ==": errors.New("Syntax error")})
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{"allowlist.roots", "execution.plan_timeout", "image_confidence", "audit.driver", "broken"} {
		assert.True(t, strings.Contains(msg, want), "missing %q in %s", want, msg)
	}
}

func TestValidatePostgresNeedsDSN(t *testing.T) {
	cfg := validConfig()
	cfg.Audit = domain.AuditSettings{Driver: "postgres"}
	require.Error(t, Validate(cfg, nil))

	cfg.Audit.DSN = "postgres://audit@db/deskgate"
	require.NoError(t, Validate(cfg, nil))
}
