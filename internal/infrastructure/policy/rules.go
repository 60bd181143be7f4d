package policy

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/doeshing/deskgate/internal/domain"
)

// RuleEngine evaluates operator deny rules written in CEL. Compiled programs
// are cached per expression.
type RuleEngine struct {
	env   *cel.Env
	mu    sync.RWMutex
	cache map[string]cel.Program
}

// NewRuleEngine declares the variables rules can reference:
// action (string), args (map), risk (string).
func NewRuleEngine() (*RuleEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("action", cel.StringType),
		cel.Variable("args", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("risk", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	return &RuleEngine{env: env, cache: make(map[string]cel.Program)}, nil
}

// Denies returns the first rule that evaluates to true. A rule that fails to
// compile or evaluate denies as well.
func (e *RuleEngine) Denies(rules []domain.DenyRule, action string, args map[string]any, risk domain.RiskLevel) (domain.DenyRule, bool, error) {
	input := map[string]any{
		"action": action,
		"args":   args,
		"risk":   string(risk),
	}
	for _, rule := range rules {
		denied, err := e.eval(rule.Expression, input)
		if err != nil {
			return rule, true, fmt.Errorf("rule %s: %w", rule.Name, err)
		}
		if denied {
			return rule, true, nil
		}
	}
	return domain.DenyRule{}, false, nil
}

// Check compiles expr without evaluating it.
func (e *RuleEngine) Check(expr string) error {
	_, err := e.program(expr)
	return err
}

func (e *RuleEngine) eval(expr string, input map[string]any) (bool, error) {
	prg, err := e.program(expr)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(input)
	if err != nil {
		return false, fmt.Errorf("eval: %w", err)
	}
	val, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("result is %T, not bool", out.Value())
	}
	return val, nil
}

func (e *RuleEngine) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, hit := e.cache[expr]
	e.mu.RUnlock()
	if hit {
		return prg, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if prg, hit = e.cache[expr]; hit {
		return prg, nil
	}
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile: %w", issues.Err())
	}
	prg, err := e.env.Program(ast, cel.InterruptCheckFrequency(100), cel.CostLimit(10000))
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	e.cache[expr] = prg
	return prg, nil
}
