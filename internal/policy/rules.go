package policy

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// RuleSpec is a deny rule as written in the policy file. Expression is a CEL
// boolean over `employee` (id, department, violations, tenure_months,
// address) and `requested`. tenure_months is -1 when the join date is unknown.
type RuleSpec struct {
	ID         string `yaml:"id"`
	Expression string `yaml:"expression"`
	Reason     string `yaml:"reason,omitempty"`
}

// RuleInput is the evaluation context for a deny rule.
type RuleInput struct {
	EmployeeID   string
	Department   string
	Violations   int
	TenureMonths int
	Address      string
	Requested    string
}

// Rule is a compiled deny rule.
type Rule struct {
	Spec RuleSpec
	prg  cel.Program
}

func newRuleEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("employee", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("requested", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("policy: create CEL env: %w", err)
	}
	return env, nil
}

func compileRule(env *cel.Env, spec RuleSpec) (*Rule, error) {
	if spec.Expression == "" {
		return nil, fmt.Errorf("policy: deny rule %s: empty expression", spec.ID)
	}
	ast, issues := env.Compile(spec.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("policy: deny rule %s: compile: %w", spec.ID, issues.Err())
	}
	prg, err := env.Program(ast, cel.CostLimit(10000), cel.InterruptCheckFrequency(100))
	if err != nil {
		return nil, fmt.Errorf("policy: deny rule %s: program: %w", spec.ID, err)
	}
	if spec.Reason == "" {
		spec.Reason = "denied by policy rule " + spec.ID
	}
	return &Rule{Spec: spec, prg: prg}, nil
}

// Matches evaluates the rule. A non-boolean result is an error; callers
// treat errors as a match.
func (r *Rule) Matches(in RuleInput) (bool, error) {
	out, _, err := r.prg.Eval(map[string]any{
		"employee": map[string]any{
			"id":            in.EmployeeID,
			"department":    in.Department,
			"violations":    int64(in.Violations),
			"tenure_months": int64(in.TenureMonths),
			"address":       in.Address,
		},
		"requested": in.Requested,
	})
	if err != nil {
		return false, fmt.Errorf("policy: deny rule %s: eval: %w", r.Spec.ID, err)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("policy: deny rule %s: result is %T, not bool", r.Spec.ID, out.Value())
	}
	return matched, nil
}
