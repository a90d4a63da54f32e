package access

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corpgate/internal/domain"
	"corpgate/internal/policy"
)

var fixedNow = time.Date(2026, time.October, 14, 9, 0, 0, 0, time.UTC)

func newTestEvaluator(p *policy.Policy) *Evaluator {
	return NewEvaluator(p,
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func veteran(violations int, addr string) *Signals {
	return &Signals{Violations: violations, JoinDate: "2024-10-01", Address: addr}
}

func TestEngineeringExample(t *testing.T) {
	d := newTestEvaluator(nil).Evaluate(Request{
		EmployeeID: "EMP002",
		Department: domain.Engineering,
		Requested:  domain.Engineering,
		Info:       veteran(0, "192.168.1.102"),
	})
	assert.True(t, d.Allowed)
	assert.Equal(t, RuleOwnDepartment, d.Rule)
	assert.Contains(t, d.Reason, "own department")
}

func TestNoDepartmentDenies(t *testing.T) {
	d := newTestEvaluator(nil).Evaluate(Request{EmployeeID: "HR001", Department: domain.HumanResources, Info: veteran(0, "127.0.0.1")})
	assert.False(t, d.Allowed)
	assert.Equal(t, RuleNoDepartment, d.Rule)
}

func TestViolationVetoCoversEveryDepartment(t *testing.T) {
	e := newTestEvaluator(nil)
	for _, addr := range []string{"192.168.1.105", "127.0.0.1"} {
		for _, dep := range domain.Departments() {
			d := e.Evaluate(Request{
				EmployeeID: "HR001",
				Department: domain.Engineering,
				Requested:  dep,
				Info:       veteran(3, addr),
			})
			assert.False(t, d.Allowed, "%s from %s", dep, addr)
			assert.Equal(t, RuleViolationVeto, d.Rule)
			assert.Contains(t, d.Reason, "3 past security violations")
		}
	}
}

func TestLoopbackGrantsAnyDepartment(t *testing.T) {
	e := newTestEvaluator(nil)
	for _, addr := range []string{"127.0.0.1", "127.0.0.53", "::1", "localhost"} {
		for _, dep := range domain.Departments() {
			d := e.Evaluate(Request{
				EmployeeID: "EMP003",
				Department: domain.Sales,
				Requested:  dep,
				Info:       veteran(2, addr),
			})
			assert.True(t, d.Allowed, "%s via %s", dep, addr)
			assert.Equal(t, RuleLoopback, d.Rule)
		}
	}
}

func TestOwnDepartmentAlwaysAllowedWithCleanRecord(t *testing.T) {
	e := newTestEvaluator(nil)
	for _, dep := range domain.Departments() {
		for _, info := range []*Signals{nil, veteran(0, "10.0.0.1"), {JoinDate: "2026-10-01"}} {
			d := e.Evaluate(Request{EmployeeID: "EMP009", Department: dep, Requested: dep, Info: info})
			assert.True(t, d.Allowed, dep)
			assert.Equal(t, RuleOwnDepartment, d.Rule)
		}
	}
}

func TestNewEmployeeWithViolations(t *testing.T) {
	e := newTestEvaluator(nil)
	newHire := &Signals{Violations: 1, JoinDate: "2026-09-20", Address: "127.0.0.1"}

	d := e.Evaluate(Request{EmployeeID: "EMP004", Department: domain.Marketing, Requested: domain.Sales, Info: newHire})
	assert.False(t, d.Allowed)
	assert.Equal(t, RuleNewEmployee, d.Rule, "restriction applies before the loopback grant")

	d = e.Evaluate(Request{EmployeeID: "EMP004", Department: domain.Marketing, Requested: domain.Marketing, Info: newHire})
	assert.True(t, d.Allowed)
}

func TestUnparseableJoinDateIsNotNew(t *testing.T) {
	e := newTestEvaluator(nil)
	for _, date := range []string{"15/01/2026", "soon", ""} {
		d := e.Evaluate(Request{
			EmployeeID: "EMP010",
			Department: domain.Accounting,
			Requested:  domain.Sales,
			Info:       &Signals{Violations: 1, JoinDate: date},
		})
		assert.False(t, d.Allowed)
		assert.Equal(t, RuleCrossRestricted, d.Rule, date)
	}
}

func TestTenureUsesCalendarMonths(t *testing.T) {
	e := newTestEvaluator(nil)
	cases := map[string]int{
		"2026-10-31": 0,
		"2026-08-01": 2,
		"2026-07-31": 3,
		"2024-10-01": 24,
	}
	for date, want := range cases {
		got, ok := e.tenureMonths(date)
		require.True(t, ok, date)
		assert.Equal(t, want, got, date)
	}
}

func TestPrivilegedAccess(t *testing.T) {
	e := newTestEvaluator(nil)

	d := e.Evaluate(Request{EmployeeID: "IT001", Department: domain.Support, Requested: domain.Legal, Info: veteran(0, "")})
	assert.True(t, d.Allowed)
	assert.Equal(t, RulePrivileged, d.Rule)

	d = e.Evaluate(Request{EmployeeID: "IT001", Department: domain.Support, Requested: domain.Legal, Info: veteran(1, "")})
	assert.True(t, d.Allowed, "one violation keeps the privilege")

	d = e.Evaluate(Request{EmployeeID: "IT001", Department: domain.Support, Requested: domain.Legal, Info: veteran(2, "")})
	assert.False(t, d.Allowed)
	assert.Equal(t, RulePrivilegedRestricted, d.Rule)

	d = e.Evaluate(Request{EmployeeID: "EXEC001", Department: domain.Sales, Requested: domain.Training})
	assert.True(t, d.Allowed)
}

func TestCrossDepartment(t *testing.T) {
	e := newTestEvaluator(nil)

	d := e.Evaluate(Request{EmployeeID: "EMP020", Department: domain.Accounting, Requested: domain.Sales, Info: veteran(0, "")})
	assert.True(t, d.Allowed)
	assert.Equal(t, RuleCrossDepartment, d.Rule)

	d = e.Evaluate(Request{EmployeeID: "EMP020", Department: domain.Accounting, Requested: domain.Sales, Info: veteran(1, "")})
	assert.False(t, d.Allowed)
	assert.Equal(t, RuleCrossRestricted, d.Rule)

	d = e.Evaluate(Request{EmployeeID: "EMP020", Department: domain.Accounting, Requested: domain.Legal, Info: veteran(0, "")})
	assert.False(t, d.Allowed)
	assert.Equal(t, RuleNoPath, d.Rule)
	assert.Equal(t, "No authorization from Accounting to Legal", d.Reason)

	d = e.Evaluate(Request{EmployeeID: "EMP021", Department: domain.HumanResources, Requested: domain.Engineering})
	assert.True(t, d.Allowed, "no signals, no violation restriction")
}

func TestDenyRules(t *testing.T) {
	p, err := policy.Parse([]byte(`
cross_department:
  Engineering: [Product Management]
deny_rules:
  - id: no-remote-legal
    expression: 'requested == "Legal" && !employee.address.startsWith("10.")'
    reason: Legal data is only reachable from the office network
  - id: broken
    expression: 'employee.missing_field > 0'
`))
	require.NoError(t, err)
	e := newTestEvaluator(p)

	d := e.Evaluate(Request{EmployeeID: "EMP030", Department: domain.Legal, Requested: domain.Legal, Info: veteran(0, "127.0.0.1")})
	assert.False(t, d.Allowed, "deny rules sit above the loopback and own-department grants")
	assert.Equal(t, RulePolicyPrefix+"no-remote-legal", d.Rule)
	assert.Equal(t, "Legal data is only reachable from the office network", d.Reason)

	// The second rule errors on every input: fail closed.
	d = e.Evaluate(Request{EmployeeID: "EMP031", Department: domain.Engineering, Requested: domain.Engineering, Info: veteran(0, "10.1.1.1")})
	assert.False(t, d.Allowed)
	assert.Equal(t, RulePolicyPrefix+"broken", d.Rule)
}

func TestViolationVetoThresholdFromPolicy(t *testing.T) {
	p, err := policy.Parse([]byte("thresholds:\n  violation_veto: 5\n  privileged_violation_limit: 4\n"))
	require.NoError(t, err)
	e := newTestEvaluator(p)

	d := e.Evaluate(Request{EmployeeID: "EMP040", Department: domain.Sales, Requested: domain.Sales, Info: veteran(4, "")})
	assert.True(t, d.Allowed)

	d = e.Evaluate(Request{EmployeeID: "EMP040", Department: domain.Sales, Requested: domain.Sales, Info: veteran(5, "")})
	assert.False(t, d.Allowed)
}
