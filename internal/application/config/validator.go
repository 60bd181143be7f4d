package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/doeshing/deskgate/internal/domain"
)

// SupportedFormat is the range of config_format_version this build reads.
const SupportedFormat = ">=1.0.0, <2.0.0"

// RuleChecker compiles deny rule expressions.
type RuleChecker interface {
	Check(expr string) error
}

// Validate ensures config structure is consistent. rules may be nil, in which
// case deny rule expressions are only checked for presence.
func Validate(cfg domain.Config, rules RuleChecker) error {
	var errs []error
	if err := validateFormat(cfg.ConfigFormatVersion); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, validateAllowlist(cfg.Allowlist)...)
	errs = append(errs, validatePolicy(cfg.Policy, rules)...)
	errs = append(errs, validateExecution(cfg.Execution)...)
	errs = append(errs, validateAutomation(cfg.Automation)...)
	if err := validateAudit(cfg.Audit); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func validateFormat(version string) error {
	if version == "" {
		return fmt.Errorf("config_format_version must be set")
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("config_format_version %q: %w", version, err)
	}
	constraint, err := semver.NewConstraint(SupportedFormat)
	if err != nil {
		return err
	}
	if !constraint.Check(v) {
		return fmt.Errorf("config_format_version %s is not supported (want %s)", version, SupportedFormat)
	}
	return nil
}

func validateAllowlist(a domain.AllowlistSettings) []error {
	var errs []error
	if len(a.Roots) == 0 {
		errs = append(errs, fmt.Errorf("allowlist.roots must list at least one directory"))
	}
	for i, root := range a.Roots {
		if strings.TrimSpace(root) == "" {
			errs = append(errs, fmt.Errorf("allowlist.roots[%d] is empty", i))
		}
	}
	switch strings.ToLower(a.CaseInsensitive) {
	case "", "auto", "true", "false", "yes", "no", "on", "off":
	default:
		errs = append(errs, fmt.Errorf("allowlist.case_insensitive must be auto|true|false, got %s", a.CaseInsensitive))
	}
	return errs
}

func validatePolicy(p domain.PolicySettings, rules RuleChecker) []error {
	var errs []error
	if p.MaxActions < 0 {
		errs = append(errs, fmt.Errorf("policy.max_actions must be >= 0"))
	}
	seen := map[string]bool{}
	for i, rule := range p.DenyRules {
		if rule.Name == "" {
			errs = append(errs, fmt.Errorf("policy.deny_rules[%d] needs a name", i))
		} else if seen[rule.Name] {
			errs = append(errs, fmt.Errorf("policy.deny_rules: duplicate name %s", rule.Name))
		}
		seen[rule.Name] = true
		if strings.TrimSpace(rule.Expression) == "" {
			errs = append(errs, fmt.Errorf("policy.deny_rules[%d] needs an expression", i))
			continue
		}
		if rules != nil {
			if err := rules.Check(rule.Expression); err != nil {
				errs = append(errs, fmt.Errorf("policy.deny_rules %s: %w", rule.Name, err))
			}
		}
	}
	return errs
}

func validateExecution(e domain.ExecutionSettings) []error {
	var errs []error
	for name, value := range map[string]string{
		"execution.action_timeout": e.ActionTimeout,
		"execution.plan_timeout":   e.PlanTimeout,
	} {
		if err := validateDuration(name, value); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func validateAutomation(a domain.AutomationSettings) []error {
	var errs []error
	if err := validateDuration("automation.layer_timeout", a.LayerTimeout); err != nil {
		errs = append(errs, err)
	}
	if err := validateDuration("automation.poll_interval", a.PollInterval); err != nil {
		errs = append(errs, err)
	}
	if a.ImageConfidence < 0 || a.ImageConfidence > 1 {
		errs = append(errs, fmt.Errorf("automation.image_confidence must be in (0,1], got %g", a.ImageConfidence))
	}
	if a.ControlTreeDepth < 0 {
		errs = append(errs, fmt.Errorf("automation.control_tree_depth must be >= 0"))
	}
	for title, owners := range a.KnownOwners {
		if len(owners) == 0 {
			errs = append(errs, fmt.Errorf("automation.known_owners[%s] lists no processes", title))
		}
	}
	return errs
}

func validateAudit(a domain.AuditSettings) error {
	switch strings.ToLower(a.Driver) {
	case "", "sqlite", "jsonl":
		return nil
	case "postgres":
		if a.DSN == "" {
			return fmt.Errorf("audit.dsn is required for the postgres driver")
		}
		return nil
	default:
		return fmt.Errorf("audit.driver must be sqlite|postgres|jsonl, got %s", a.Driver)
	}
}

// validateDuration accepts an empty value, which means the built-in default.
func validateDuration(name, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s invalid: %w", name, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive", name)
	}
	return nil
}
