// Package access decides whether an employee may see a department's data.
//
// The decision is an ordered rule cascade over the employee's behavioral
// signals and the injected policy; the first applicable rule wins and the
// default is deny.
package access

import (
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"corpgate/internal/domain"
	"corpgate/internal/policy"
)

// Rule codes identify which step of the cascade produced a decision.
const (
	RuleNoDepartment         = "no_department"
	RuleViolationVeto        = "violation_veto"
	RuleNewEmployee          = "new_employee_restricted"
	RulePolicyPrefix         = "policy_rule:"
	RuleLoopback             = "loopback"
	RuleOwnDepartment        = "own_department"
	RulePrivileged           = "privileged"
	RulePrivilegedRestricted = "privileged_restricted"
	RuleCrossDepartment      = "cross_department"
	RuleCrossRestricted      = "cross_department_restricted"
	RuleNoPath               = "no_path"
	RuleInternalError        = "internal_error"
)

const (
	joinDateLayout = "2006-01-02"
	// unknownTenure is what deny rules see when the join date is missing or bad.
	unknownTenure = -1
)

// Signals are the behavioral inputs; nil signals skip every rule that needs them.
type Signals struct {
	Violations int
	JoinDate   string
	Address    string
}

// Request is one authorization question.
type Request struct {
	EmployeeID domain.EmployeeID
	Department domain.Department
	Requested  domain.Department
	Info       *Signals
}

// Decision is the verdict. Reason is for humans, Rule for machines.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
	Rule    string `json:"rule"`
}

// SignalsFrom builds the behavioral signals carried by a directory record.
func SignalsFrom(rec domain.EmployeeRecord) *Signals {
	return &Signals{
		Violations: int(rec.PastViolations),
		JoinDate:   rec.JoinDate,
		Address:    rec.IPAddress,
	}
}

// Evaluator runs the cascade. It holds no per-call state.
type Evaluator struct {
	policy *policy.Policy
	now    func() time.Time
	logger *slog.Logger
}

// Option customizes an Evaluator.
type Option func(*Evaluator)

// WithClock overrides the time source used for tenure.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

// NewEvaluator returns an evaluator over p; a nil p selects policy.Default().
func NewEvaluator(p *policy.Policy, opts ...Option) *Evaluator {
	if p == nil {
		p = policy.Default()
	}
	e := &Evaluator{policy: p, now: time.Now, logger: slog.Default()}
	for _, o := range opts {
		o(e)
	}
	e.logger = e.logger.With("component", "access")
	return e
}

// Evaluate never fails: internal errors become denials.
func (e *Evaluator) Evaluate(req Request) (d Decision) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("authorization panicked", "employee", req.EmployeeID, "panic", r)
			d = deny(RuleInternalError, fmt.Sprintf("Authorization error: %v", r))
		}
	}()
	d = e.cascade(req)
	if d.Allowed {
		e.logger.Info("access granted", "employee", req.EmployeeID, "from", req.Department, "to", req.Requested, "rule", d.Rule)
	} else {
		e.logger.Warn("access denied", "employee", req.EmployeeID, "from", req.Department, "to", req.Requested, "rule", d.Rule, "reason", d.Reason)
	}
	return d
}

func (e *Evaluator) cascade(req Request) Decision {
	if req.Requested == "" {
		return deny(RuleNoDepartment, "No specific department detected in the query")
	}

	th := e.policy.Thresholds
	violations := 0
	if info := req.Info; info != nil {
		violations = info.Violations
		tenure, known := e.tenureMonths(info.JoinDate)

		if violations >= th.ViolationVeto {
			return deny(RuleViolationVeto, fmt.Sprintf("Access denied due to %d past security violations", violations))
		}
		isNew := known && tenure < th.NewEmployeeMonths
		if isNew && violations > 0 && req.Department != req.Requested {
			return deny(RuleNewEmployee, "New employees with past violations can only access their own department")
		}
		if !known {
			tenure = unknownTenure
		}
		if d, hit := e.denyRules(req, violations, tenure); hit {
			return d
		}
		if isLoopback(info.Address) {
			return allow(RuleLoopback, "Localhost connection with elevated access")
		}
	} else if d, hit := e.denyRules(req, 0, unknownTenure); hit {
		return d
	}

	if req.Department == req.Requested {
		return allow(RuleOwnDepartment, "Access to own department data")
	}

	if e.policy.IsPrivileged(req.EmployeeID, req.Requested) {
		if req.Info != nil && violations >= th.PrivilegedViolationLimit {
			return deny(RulePrivilegedRestricted, fmt.Sprintf("Special role restricted due to %d violations", violations))
		}
		return allow(RulePrivileged, fmt.Sprintf("Special role authorization for %s", req.Requested))
	}

	if e.policy.Grants(req.Department, req.Requested) {
		if req.Info != nil && violations > 0 {
			return deny(RuleCrossRestricted, "Cross-department access restricted due to past violations")
		}
		return allow(RuleCrossDepartment, fmt.Sprintf("Cross-department authorization from %s to %s", req.Department, req.Requested))
	}

	return deny(RuleNoPath, fmt.Sprintf("No authorization from %s to %s", req.Department, req.Requested))
}

func (e *Evaluator) denyRules(req Request, violations, tenure int) (Decision, bool) {
	address := ""
	if req.Info != nil {
		address = req.Info.Address
	}
	in := policy.RuleInput{
		EmployeeID:   string(req.EmployeeID),
		Department:   string(req.Department),
		Violations:   violations,
		TenureMonths: tenure,
		Address:      address,
		Requested:    string(req.Requested),
	}
	for _, r := range e.policy.DenyRules {
		hit, err := r.Matches(in)
		if err != nil {
			e.logger.Error("deny rule failed, denying", "rule", r.Spec.ID, "error", err)
			return deny(RulePolicyPrefix+r.Spec.ID, "Policy rule "+r.Spec.ID+" could not be evaluated"), true
		}
		if hit {
			return deny(RulePolicyPrefix+r.Spec.ID, r.Spec.Reason), true
		}
	}
	return Decision{}, false
}

// tenureMonths counts whole calendar months from the join date to now. The
// second result is false when the date is missing or does not parse.
func (e *Evaluator) tenureMonths(joinDate string) (int, bool) {
	joinDate = strings.TrimSpace(joinDate)
	if joinDate == "" {
		return 0, false
	}
	joined, err := time.Parse(joinDateLayout, joinDate)
	if err != nil {
		e.logger.Warn("unparseable join date, treating employee as not new", "join_date", joinDate, "error", err)
		return 0, false
	}
	now := e.now()
	return (now.Year()-joined.Year())*12 + int(now.Month()) - int(joined.Month()), true
}

func isLoopback(addr string) bool {
	addr = strings.TrimSpace(addr)
	if strings.EqualFold(addr, "localhost") {
		return true
	}
	ip := net.ParseIP(addr)
	return ip != nil && ip.IsLoopback()
}

func allow(rule, reason string) Decision { return Decision{Allowed: true, Reason: reason, Rule: rule} }
func deny(rule, reason string) Decision  { return Decision{Allowed: false, Reason: reason, Rule: rule} }
