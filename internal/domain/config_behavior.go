package domain

import (
	"strings"
	"time"
)

// PolicyConfig extracts the validator's view of the configuration.
func (c *Config) PolicyConfig() PolicyConfig {
	return PolicyConfig{Allowlist: c.Allowlist, Policy: c.Policy}
}

// ActionTimeoutDuration returns the per-action deadline.
func (e ExecutionSettings) ActionTimeoutDuration() time.Duration {
	return parseDurationOr(e.ActionTimeout, DefaultActionTimeout)
}

// PlanTimeoutDuration returns the whole-plan deadline.
func (e ExecutionSettings) PlanTimeoutDuration() time.Duration {
	return parseDurationOr(e.PlanTimeout, DefaultPlanTimeout)
}

// LayerTimeoutDuration returns the per-layer attempt deadline.
func (a AutomationSettings) LayerTimeoutDuration() time.Duration {
	return parseDurationOr(a.LayerTimeout, DefaultLayerTimeout)
}

// PollIntervalDuration returns the window discovery polling interval.
func (a AutomationSettings) PollIntervalDuration() time.Duration {
	return parseDurationOr(a.PollInterval, DefaultPollInterval)
}

// OwnersFor returns the process names that own windows titled title.
func (a AutomationSettings) OwnersFor(title string) []string {
	for known, owners := range a.KnownOwners {
		if strings.EqualFold(known, title) {
			return owners
		}
	}
	return nil
}

// IsCaseInsensitive resolves the allowlist comparison mode for goos.
func (a AllowlistSettings) IsCaseInsensitive(goos string) bool {
	switch strings.ToLower(a.CaseInsensitive) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	default:
		return goos == "windows" || goos == "darwin"
	}
}

// AllowsApp reports whether command names an allowlisted application.
func (a AllowlistSettings) AllowsApp(command string) bool {
	want := normalizeAppName(command)
	if want == "" {
		return false
	}
	for _, app := range a.Apps {
		if normalizeAppName(app) == want {
			return true
		}
	}
	return false
}

// MaxActionsOrDefault returns the plan length limit.
func (p PolicySettings) MaxActionsOrDefault() int {
	if p.MaxActions <= 0 {
		return DefaultMaxActions
	}
	return p.MaxActions
}

func normalizeAppName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSuffix(name, ".exe")
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
