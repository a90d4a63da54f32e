// Package policy holds the access policy data the authorization cascade runs
// over: privileged employees, cross-department grants, thresholds and optional
// CEL deny rules. Policies load from YAML; Default mirrors the built-in tables.
package policy

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"corpgate/internal/domain"
)

// Wildcard in a target list stands for every canonical department.
const Wildcard = "*"

// Thresholds are the numeric knobs of the cascade.
type Thresholds struct {
	// ViolationVeto denies every request at or above this violation count.
	ViolationVeto int `yaml:"violation_veto"`
	// PrivilegedViolationLimit revokes privileged access at or above this count.
	PrivilegedViolationLimit int `yaml:"privileged_violation_limit"`
	// NewEmployeeMonths is the tenure below which an employee counts as new.
	NewEmployeeMonths int `yaml:"new_employee_months"`
}

// DefaultThresholds returns the stock thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{ViolationVeto: 3, PrivilegedViolationLimit: 2, NewEmployeeMonths: 3}
}

// Policy is immutable once built; share it freely between goroutines.
type Policy struct {
	Privileged      map[domain.EmployeeID][]domain.Department
	CrossDepartment map[domain.Department][]domain.Department
	Thresholds      Thresholds
	DenyRules       []*Rule
}

type file struct {
	Privileged      map[string][]string `yaml:"privileged"`
	CrossDepartment map[string][]string `yaml:"cross_department"`
	Thresholds      Thresholds          `yaml:"thresholds"`
	DenyRules       []RuleSpec          `yaml:"deny_rules"`
}

// Default returns the built-in policy: three all-department administrators,
// HR and Legal reaching everywhere, Accounting reaching the revenue
// departments and Engineering reaching Product and R&D.
func Default() *Policy {
	all := domain.Departments()
	return &Policy{
		Privileged: map[domain.EmployeeID][]domain.Department{
			"HR001":   all,
			"EXEC001": all,
			"IT001":   all,
		},
		CrossDepartment: map[domain.Department][]domain.Department{
			domain.HumanResources: all,
			domain.Legal:          all,
			domain.Accounting:     {domain.Sales, domain.Marketing, domain.BusinessDevelopment, domain.Services},
			domain.Engineering:    {domain.ProductManagement, domain.ResearchAndDevelopment},
		},
		Thresholds: DefaultThresholds(),
	}
}

// Load reads a policy from a YAML file. An empty path, a missing file or an
// empty file yields Default().
func Load(path string) (*Policy, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("policy: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a policy from YAML bytes, validating every department name and
// compiling the deny rules.
func Parse(data []byte) (*Policy, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Default(), nil
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("policy: unmarshal: %w", err)
	}

	p := &Policy{
		Privileged:      make(map[domain.EmployeeID][]domain.Department, len(f.Privileged)),
		CrossDepartment: make(map[domain.Department][]domain.Department, len(f.CrossDepartment)),
	}
	for id, targets := range f.Privileged {
		deps, err := expand(targets)
		if err != nil {
			return nil, fmt.Errorf("policy: privileged %s: %w", id, err)
		}
		p.Privileged[domain.EmployeeID(id)] = deps
	}
	for src, targets := range f.CrossDepartment {
		from := domain.Department(src)
		if !from.IsCanonical() {
			return nil, fmt.Errorf("policy: cross_department: unknown department %q", src)
		}
		deps, err := expand(targets)
		if err != nil {
			return nil, fmt.Errorf("policy: cross_department %s: %w", src, err)
		}
		p.CrossDepartment[from] = deps
	}

	th, err := withDefaults(f.Thresholds)
	if err != nil {
		return nil, err
	}
	p.Thresholds = th

	env, err := newRuleEnv()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(f.DenyRules))
	for i, spec := range f.DenyRules {
		if spec.ID == "" {
			spec.ID = fmt.Sprintf("rule-%d", i+1)
		}
		if _, dup := seen[spec.ID]; dup {
			return nil, fmt.Errorf("policy: duplicate deny rule id %q", spec.ID)
		}
		seen[spec.ID] = struct{}{}
		r, err := compileRule(env, spec)
		if err != nil {
			return nil, err
		}
		p.DenyRules = append(p.DenyRules, r)
	}
	return p, nil
}

// IsPrivileged reports whether id holds a privileged grant covering target.
func (p *Policy) IsPrivileged(id domain.EmployeeID, target domain.Department) bool {
	return includes(p.Privileged[id], target)
}

// Grants reports whether the cross-department table lets from reach to.
func (p *Policy) Grants(from, to domain.Department) bool {
	return includes(p.CrossDepartment[from], to)
}

func expand(targets []string) ([]domain.Department, error) {
	out := make([]domain.Department, 0, len(targets))
	for _, t := range targets {
		if t == Wildcard {
			return domain.Departments(), nil
		}
		d := domain.Department(t)
		if !d.IsCanonical() {
			return nil, fmt.Errorf("unknown department %q", t)
		}
		out = append(out, d)
	}
	return out, nil
}

func withDefaults(t Thresholds) (Thresholds, error) {
	if t.ViolationVeto < 0 || t.PrivilegedViolationLimit < 0 || t.NewEmployeeMonths < 0 {
		return Thresholds{}, fmt.Errorf("policy: thresholds must not be negative: %+v", t)
	}
	def := DefaultThresholds()
	if t.ViolationVeto == 0 {
		t.ViolationVeto = def.ViolationVeto
	}
	if t.PrivilegedViolationLimit == 0 {
		t.PrivilegedViolationLimit = def.PrivilegedViolationLimit
	}
	if t.NewEmployeeMonths == 0 {
		t.NewEmployeeMonths = def.NewEmployeeMonths
	}
	return t, nil
}

func includes(list []domain.Department, d domain.Department) bool {
	for _, v := range list {
		if v == d {
			return true
		}
	}
	return false
}
