// Package policy implements the plan validator: a closed-world allowlist of
// actions, per-action argument schemas, canonical path containment, operator
// deny rules and the static risk table.
package policy

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/doeshing/deskgate/internal/domain"
	"github.com/doeshing/deskgate/internal/ports"
)

// Validator implements ports.PlanValidator.
type Validator struct {
	canon   Canonicalizer
	schemas map[string]*jsonschema.Schema
	rules   *RuleEngine
	goos    string
}

// Option customizes a Validator.
type Option func(*Validator)

// WithCanonicalizer overrides the host canonicalizer.
func WithCanonicalizer(c Canonicalizer) Option {
	return func(v *Validator) { v.canon = c }
}

// WithGOOS overrides the platform used to resolve case_insensitive: auto.
func WithGOOS(goos string) Option {
	return func(v *Validator) { v.goos = goos }
}

// NewValidator compiles the catalog schemas and the rule environment.
func NewValidator(home string, opts ...Option) (*Validator, error) {
	schemas, err := compileCatalogSchemas(domain.Catalog())
	if err != nil {
		return nil, err
	}
	rules, err := NewRuleEngine()
	if err != nil {
		return nil, err
	}
	v := &Validator{
		canon:   NewHostCanonicalizer(home),
		schemas: schemas,
		rules:   rules,
		goos:    runtime.GOOS,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Rules exposes the rule engine so configuration checks can compile deny rules.
func (v *Validator) Rules() *RuleEngine {
	return v.rules
}

// Validate implements ports.PlanValidator. The verdict is all-or-nothing:
// a single failing action rejects the plan and Validated stays empty.
func (v *Validator) Validate(plan domain.Plan, cfg domain.PolicyConfig) domain.ValidationVerdict {
	verdict := domain.ValidationVerdict{PlanRisk: domain.RiskLow, RequiresConfirmation: true}
	if digest, err := Digest(plan); err == nil {
		verdict.Digest = digest
	}

	if plan.Len() == 0 {
		verdict.Reason = domain.ErrEmptyPlan.Error()
		return verdict
	}
	if limit := cfg.Policy.MaxActionsOrDefault(); plan.Len() > limit {
		verdict.Reason = fmt.Sprintf("plan has %d actions, limit is %d", plan.Len(), limit)
		return verdict
	}

	caseInsensitive := cfg.Allowlist.IsCaseInsensitive(v.goos)
	roots := v.canonicalRoots(cfg.Allowlist.Roots)

	approved := true
	validated := make([]domain.ValidatedAction, 0, plan.Len())
	risks := make([]domain.RiskLevel, 0, plan.Len())
	for i, action := range plan.Actions {
		av, va := v.validateAction(i, action, cfg, roots, caseInsensitive)
		verdict.Actions = append(verdict.Actions, av)
		if av.ComputedRisk != "" {
			risks = append(risks, av.ComputedRisk)
		}
		if !av.Approved {
			if approved {
				verdict.Reason = fmt.Sprintf("action %d (%s): %s", i, action.Name, av.Reason)
			}
			approved = false
			continue
		}
		validated = append(validated, va)
	}

	verdict.PlanRisk = domain.MaxRisk(risks...)
	verdict.RequiresConfirmation = !(cfg.Policy.AutoApproveLowRisk && verdict.PlanRisk == domain.RiskLow)
	if approved {
		verdict.Approved = true
		verdict.Validated = validated
	}
	return verdict
}

func (v *Validator) validateAction(index int, action domain.Action, cfg domain.PolicyConfig, roots []string, caseInsensitive bool) (domain.ActionVerdict, domain.ValidatedAction) {
	av := domain.ActionVerdict{Index: index, Action: action.Name, ClaimedRisk: action.RiskLevel}
	reject := func(format string, args ...any) (domain.ActionVerdict, domain.ValidatedAction) {
		av.Reason = fmt.Sprintf(format, args...)
		return av, domain.ValidatedAction{}
	}

	spec, ok := domain.LookupAction(action.Name)
	if !ok {
		return reject("unknown action %q", action.Name)
	}
	av.ComputedRisk = spec.Risk
	av.Kind = spec.Kind

	if action.RiskLevel != "" {
		if _, ok := domain.ParseRiskLevel(action.RiskLevel); !ok {
			return reject("unknown risk_level %q", action.RiskLevel)
		}
	}

	args, err := jsonArgs(action.Args)
	if err != nil {
		return reject("%v", err)
	}
	if schema := v.schemas[spec.Name]; schema != nil {
		if err := schema.Validate(args); err != nil {
			return reject("invalid args: %s", schemaMessage(err))
		}
	}

	canonical := action.Clone()
	for _, key := range spec.PathArgs {
		raw, present := action.StringArg(key)
		if !present {
			continue
		}
		path, err := v.canon.Canonicalize(raw)
		if err != nil {
			return reject("%s %q: %v", key, raw, err)
		}
		if !v.contained(path, roots, caseInsensitive) {
			return reject("%s %q resolves to %s, outside the allowed roots", key, raw, path)
		}
		if canonical.Args == nil {
			canonical.Args = map[string]any{}
		}
		canonical.Args[key] = path
		args[key] = path
	}

	if spec.Name == "launch_app" {
		command, _ := action.StringArg("command")
		if !cfg.Allowlist.AllowsApp(command) {
			return reject("application %q is not allowlisted", command)
		}
		appArgs := stringItems(action.Args["args"])
		for i, item := range appArgs {
			if !looksLikePath(item) {
				continue
			}
			path, err := v.canon.Canonicalize(item)
			if err != nil {
				return reject("args[%d] %q: %v", i, item, err)
			}
			if !v.contained(path, roots, caseInsensitive) {
				return reject("args[%d] %q resolves to %s, outside the allowed roots", i, item, path)
			}
			appArgs[i] = path
		}
		if appArgs != nil {
			canonical.Args["args"] = appArgs
			args["args"] = toAnySlice(appArgs)
		}
	}

	if len(cfg.Policy.DenyRules) > 0 {
		rule, denied, err := v.rules.Denies(cfg.Policy.DenyRules, spec.Name, args, spec.Risk)
		if err != nil {
			return reject("deny rule %s failed: %v", rule.Name, err)
		}
		if denied {
			msg := rule.Message
			if msg == "" {
				msg = "denied by rule " + rule.Name
			}
			return reject("%s", msg)
		}
	}

	av.Approved = true
	canonical.RiskLevel = string(spec.Risk)
	return av, domain.ValidatedAction{Index: index, Action: canonical, Kind: spec.Kind, Risk: spec.Risk}
}

func (v *Validator) canonicalRoots(raw []string) []string {
	roots := make([]string, 0, len(raw))
	for _, r := range raw {
		path, err := v.canon.Canonicalize(r)
		if err != nil {
			continue
		}
		roots = append(roots, path)
	}
	return roots
}

func (v *Validator) contained(path string, roots []string, caseInsensitive bool) bool {
	for _, root := range roots {
		if v.canon.Within(path, root, caseInsensitive) {
			return true
		}
	}
	return false
}

// looksLikePath reports whether a free-form launch argument could name a
// file system location. Anything that might is held to the allowed roots.
func looksLikePath(arg string) bool {
	if arg == "." || arg == ".." {
		return true
	}
	if strings.ContainsAny(arg, `/\`) {
		return true
	}
	if strings.HasPrefix(arg, "~") || strings.HasPrefix(arg, "%") || strings.HasPrefix(arg, "$") {
		return true
	}
	return len(arg) >= 2 && arg[1] == ':' && isDriveLetter(arg[0])
}

func isDriveLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// stringItems copies a JSON array of strings into a fresh slice.
func stringItems(raw any) []string {
	switch items := raw.(type) {
	case []string:
		return append([]string(nil), items...)
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func toAnySlice(items []string) []any {
	out := make([]any, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}

func schemaMessage(err error) string {
	if ve, ok := err.(*jsonschema.ValidationError); ok {
		leaf := ve
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		location := strings.TrimPrefix(leaf.InstanceLocation, "/")
		if location == "" {
			return leaf.Message
		}
		return location + ": " + leaf.Message
	}
	return err.Error()
}

var _ ports.PlanValidator = (*Validator)(nil)
