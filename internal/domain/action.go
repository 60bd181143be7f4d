package domain

import (
	"encoding/json"
	"fmt"
)

// ActionKind selects the dispatch path for an action. It is resolved once,
// during validation, and carried on ValidatedAction.
type ActionKind string

const (
	KindDirect      ActionKind = "direct"
	KindPrivileged  ActionKind = "privileged"
	KindInteractive ActionKind = "interactive"
)

// Action is one step of a plan as submitted by the planner.
// RiskLevel is advisory only and never consulted for policy.
type Action struct {
	Name        string         `json:"action" yaml:"action"`
	Args        map[string]any `json:"args,omitempty" yaml:"args,omitempty"`
	RiskLevel   string         `json:"risk_level,omitempty" yaml:"risk_level,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
}

// StringArg returns args[key] when it is a string.
func (a Action) StringArg(key string) (string, bool) {
	raw, ok := a.Args[key]
	if !ok {
		return "", false
	}
	value, ok := raw.(string)
	return value, ok
}

// BoolArg returns args[key] when it is a bool, fallback otherwise.
func (a Action) BoolArg(key string, fallback bool) bool {
	if value, ok := a.Args[key].(bool); ok {
		return value
	}
	return fallback
}

// IntArg returns args[key] as an int. JSON numbers decode as float64.
func (a Action) IntArg(key string, fallback int) int {
	switch value := a.Args[key].(type) {
	case int:
		return value
	case int64:
		return int(value)
	case float64:
		return int(value)
	case json.Number:
		if n, err := value.Int64(); err == nil {
			return int(n)
		}
	}
	return fallback
}

// Clone returns a copy of the action with its own args map.
func (a Action) Clone() Action {
	out := a
	if a.Args != nil {
		out.Args = make(map[string]any, len(a.Args))
		for k, v := range a.Args {
			out.Args[k] = v
		}
	}
	return out
}

// Plan is an ordered, non-empty list of actions.
type Plan struct {
	Actions []Action `json:"actions" yaml:"actions"`
}

// UnmarshalJSON accepts either a bare array of actions or {"actions": [...]}.
func (p *Plan) UnmarshalJSON(data []byte) error {
	var list []Action
	if err := json.Unmarshal(data, &list); err == nil {
		p.Actions = list
		return nil
	}
	type wrapped Plan
	var w wrapped
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("plan must be an array of actions or an object with an actions field: %w", err)
	}
	*p = Plan(w)
	return nil
}

// Len returns the number of actions.
func (p Plan) Len() int {
	return len(p.Actions)
}

// ValidatedAction is an approved action ready for dispatch. Path arguments
// hold their canonical form.
type ValidatedAction struct {
	Index  int
	Action Action
	Kind   ActionKind
	Risk   RiskLevel
}
