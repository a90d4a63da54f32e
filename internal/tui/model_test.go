package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corpgate/internal/domain"
	"corpgate/internal/service"
)

type fakeGate struct {
	requests []service.QueryRequest
	err      error
}

func (f *fakeGate) ProcessUserQuery(_ context.Context, req service.QueryRequest, conv *domain.Conversation) (service.QueryResult, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return service.QueryResult{}, f.err
	}
	conv.Append(domain.Turn{Query: req.Query})
	return service.QueryResult{
		RequestID:      "id-" + req.Query,
		Status:         service.StatusAuthorized,
		Query:          req.Query,
		Classification: domain.Classification{IsCorporate: true, Label: "financial data", Confidence: 0.8, Scores: domain.Scores{"financial data": 0.8}},
		RequestedDept:  domain.Sales,
		AuthReason:     "Access to own department data",
		AuthRule:       "own_department",
	}, nil
}

func submit(t *testing.T, m Model, text string) Model {
	t.Helper()
	m.input.SetValue(text)
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model)
}

func press(m Model, k tea.KeyType) Model {
	next, _ := m.Update(tea.KeyMsg{Type: k})
	return next.(Model)
}

func TestSubmitAndCycleHistory(t *testing.T) {
	gate := &fakeGate{}
	var m tea.Model = New(gate, "EMP003", "10.0.0.7")
	m, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	model := m.(Model)

	model = submit(t, model, "sales pipeline")
	model = submit(t, model, "sales forecast")
	require.Len(t, gate.requests, 2)
	assert.Equal(t, service.QueryRequest{UserID: "EMP003", Query: "sales forecast", Origin: "10.0.0.7"}, gate.requests[1])
	assert.Equal(t, 2, model.Conversation().Len())
	assert.Equal(t, 1, model.cursor)
	assert.Empty(t, model.input.Value())

	model = press(model, tea.KeyUp)
	assert.Equal(t, 0, model.cursor)
	assert.Contains(t, model.renderCurrentResult(), "sales pipeline")
	model = press(model, tea.KeyUp)
	assert.Equal(t, 1, model.cursor)
	model = press(model, tea.KeyDown)
	assert.Equal(t, 0, model.cursor)

	view := model.View()
	assert.Contains(t, view, "Corporate Query Gate")
	assert.Contains(t, view, "EMP003 @ 10.0.0.7")
}

func TestSwitchEmployee(t *testing.T) {
	gate := &fakeGate{}
	model := submit(t, New(gate, "EMP001", ""), ":user HR001")
	assert.Equal(t, domain.EmployeeID("HR001"), model.employee)
	assert.Empty(t, gate.requests)

	submit(t, model, "payroll")
	require.Len(t, gate.requests, 1)
	assert.Equal(t, domain.EmployeeID("HR001"), gate.requests[0].UserID)
}

func TestSwitchEmployeeNeedsID(t *testing.T) {
	gate := &fakeGate{}
	for _, in := range []string{":user", ":user ", "  :user   "} {
		model := submit(t, New(gate, "EMP001", ""), in)
		assert.Equal(t, domain.EmployeeID("EMP001"), model.employee, "%q", in)
		assert.Equal(t, "Usage: :user ID", model.status, "%q", in)
		assert.Empty(t, model.input.Value())
	}
	assert.Empty(t, gate.requests)

	// Only the bare command word switches; anything else is a query.
	model := submit(t, New(gate, "EMP001", ""), ":username")
	assert.Equal(t, domain.EmployeeID("EMP001"), model.employee)
	require.Len(t, gate.requests, 1)
	assert.Equal(t, ":username", gate.requests[0].Query)
}

func TestErrorShownInStatus(t *testing.T) {
	model := submit(t, New(&fakeGate{err: errors.New("employee not found")}, "X", ""), "sales")
	assert.Contains(t, model.status, "employee not found")
	assert.Empty(t, model.results)
	assert.Equal(t, "Loading...", model.View())
}

func TestRenderRejected(t *testing.T) {
	out := renderResult(service.QueryResult{
		Status:         service.StatusRejected,
		Message:        "query is not related to corporate data",
		Classification: domain.Classification{Label: "weather question", Confidence: 1},
	}, 1, 1)
	assert.Contains(t, out, "weather question")
	assert.Contains(t, out, "not related to corporate data")
	assert.NotContains(t, out, "Department:")
}

func TestTopLabels(t *testing.T) {
	got := topLabels(domain.Scores{"a": 0.1, "b": 0.9, "c": 0.5, "d": 0.5}, 3)
	assert.Equal(t, []string{"b", "c", "d"}, got)
}
