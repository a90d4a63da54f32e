package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"corpgate/internal/domain"
	"corpgate/internal/service"
)

// GatePort is the TUI-facing subset of the gate service.
type GatePort interface {
	ProcessUserQuery(ctx context.Context, req service.QueryRequest, conv *domain.Conversation) (service.QueryResult, error)
}

const userCommand = ":user"

// Model is the Bubble Tea model for the query console.
type Model struct {
	service  GatePort
	input    textinput.Model
	viewport viewport.Model
	employee domain.EmployeeID
	origin   string
	conv     *domain.Conversation
	results  []service.QueryResult
	status   string
	cursor   int
	ready    bool
}

// New creates a console acting as employee, optionally from origin.
func New(svc GatePort, employee domain.EmployeeID, origin string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about company data and press Enter (:user ID switches employee)"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		service:  svc,
		input:    ti,
		viewport: vp,
		employee: employee,
		origin:   origin,
		conv:     &domain.Conversation{},
		status:   fmt.Sprintf("Signed in as %s.", employee),
	}
}

// Conversation returns the history collected so far.
func (m Model) Conversation() *domain.Conversation { return m.conv }

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, employee line, status, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				break
			}
			m.input.SetValue("")
			if q == userCommand || strings.HasPrefix(q, userCommand+" ") {
				id := strings.TrimSpace(strings.TrimPrefix(q, userCommand))
				if id == "" {
					m.status = "Usage: :user ID"
					return m, nil
				}
				m.employee = domain.EmployeeID(id)
				m.status = fmt.Sprintf("Signed in as %s.", m.employee)
				return m, nil
			}
			res, err := m.service.ProcessUserQuery(context.Background(),
				service.QueryRequest{UserID: m.employee, Query: q, Origin: m.origin}, m.conv)
			if err != nil {
				m.status = "Error: " + err.Error()
			} else {
				m.results = append(m.results, res)
				m.cursor = len(m.results) - 1
				m.status = fmt.Sprintf("%s (%d in history)", res.Status, len(m.results))
			}
			m.viewport.SetContent(m.renderCurrentResult())
			return m, nil
		case "down":
			if len(m.results) > 0 {
				m.cursor = (m.cursor + 1) % len(m.results)
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		case "up":
			if len(m.results) > 0 {
				m.cursor = (m.cursor - 1 + len(m.results)) % len(m.results)
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout and current result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Corporate Query Gate")
	who := string(m.employee)
	if m.origin != "" {
		who += " @ " + m.origin
	}
	employee := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(who)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + employee + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrentResult() string {
	if len(m.results) == 0 {
		return "No queries yet."
	}
	return renderResult(m.results[m.cursor], m.cursor+1, len(m.results))
}

func renderResult(r service.QueryResult, pos, total int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query %d/%d  %s\n", pos, total, r.RequestID)
	fmt.Fprintf(&b, "%q\n\n", r.Query)
	fmt.Fprintf(&b, "Status:     %s\n", statusStyle(r.Status).Render(r.Status))
	fmt.Fprintf(&b, "Topic:      %s (%.2f)\n", r.Classification.Label, r.Classification.Confidence)
	if r.Status != service.StatusRejected {
		dept := string(r.RequestedDept)
		if dept == "" {
			dept = "none detected"
		}
		fmt.Fprintf(&b, "Department: %s\n", dept)
		fmt.Fprintf(&b, "Decision:   %s [%s]\n", r.AuthReason, r.AuthRule)
	} else {
		b.WriteString(r.Message + "\n")
	}
	if len(r.Classification.Scores) > 0 {
		b.WriteString("\nScores:\n")
		for _, l := range topLabels(r.Classification.Scores, 5) {
			fmt.Fprintf(&b, "  %-28s %.3f\n", l, r.Classification.Scores[l])
		}
	}
	return b.String()
}

func topLabels(scores domain.Scores, n int) []string {
	labels := make([]string, 0, len(scores))
	for l := range scores {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		if scores[labels[i]] != scores[labels[j]] {
			return scores[labels[i]] > scores[labels[j]]
		}
		return labels[i] < labels[j]
	})
	if len(labels) > n {
		labels = labels[:n]
	}
	return labels
}

func statusStyle(status string) lipgloss.Style {
	switch status {
	case service.StatusAuthorized:
		return allowStyle
	case service.StatusUnauthorized:
		return denyStyle
	}
	return rejectStyle
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	allowStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	denyStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	rejectStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)
