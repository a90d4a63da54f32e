package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Department is one of the canonical organizational units used as the
// authorization granularity.
type Department string

const (
	ProductManagement      Department = "Product Management"
	Support                Department = "Support"
	Marketing              Department = "Marketing"
	Engineering            Department = "Engineering"
	Training               Department = "Training"
	ResearchAndDevelopment Department = "Research and Development"
	Services               Department = "Services"
	HumanResources         Department = "Human Resources"
	Accounting             Department = "Accounting"
	Legal                  Department = "Legal"
	BusinessDevelopment    Department = "Business Development"
	Sales                  Department = "Sales"
)

var canonicalDepartments = []Department{
	ProductManagement, Support, Marketing, Engineering, Training,
	ResearchAndDevelopment, Services, HumanResources, Accounting,
	Legal, BusinessDevelopment, Sales,
}

// Departments returns the canonical departments in their fixed order.
// The returned slice is a copy.
func Departments() []Department {
	out := make([]Department, len(canonicalDepartments))
	copy(out, canonicalDepartments)
	return out
}

// IsCanonical reports whether d is one of the canonical departments.
func (d Department) IsCanonical() bool {
	for _, c := range canonicalDepartments {
		if c == d {
			return true
		}
	}
	return false
}

// Scores maps a candidate label to its confidence in [0,1].
type Scores map[string]float64

// Classification is the Topic Classifier verdict for one query.
type Classification struct {
	IsCorporate bool    `json:"is_corporate"`
	Label       string  `json:"label"`
	Confidence  float64 `json:"confidence"`
	Scores      Scores  `json:"scores"`
}

// EmployeeID identifies an employee. JSON input may carry it as a string or a number.
type EmployeeID string

func (id *EmployeeID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = EmployeeID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = EmployeeID(n.String())
	return nil
}

// ViolationCount is a past security violation tally. Decoding never fails:
// values that do not coerce to an integer become zero.
type ViolationCount int

func (v *ViolationCount) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		*v = 0
		return nil
	}
	*v = ViolationCount(ParseViolations(raw))
	return nil
}

// ParseViolations coerces an arbitrary decoded value to a violation count.
func ParseViolations(raw any) int {
	switch x := raw.(type) {
	case int:
		return x
	case int64:
		return int(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0
		}
		return int(x)
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0
		}
		return n
	case json.Number:
		n, err := strconv.Atoi(x.String())
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// EmployeeRecord is read-only reference data about one employee. The role,
// status and resource fields only feed the model-based assessor.
type EmployeeRecord struct {
	ID                  EmployeeID     `json:"id"`
	Name                string         `json:"name,omitempty"`
	Department          Department     `json:"department"`
	JoinDate            string         `json:"join_date,omitempty"`
	PastViolations      ViolationCount `json:"past_violations"`
	IPAddress           string         `json:"ip_address,omitempty"`
	UserRole            string         `json:"user_role,omitempty"`
	EmployeeStatus      string         `json:"employee_status,omitempty"`
	ResourceType        string         `json:"resource_type,omitempty"`
	ResourceSensitivity string         `json:"resource_sensitivity,omitempty"`
}

// UnmarshalJSON also accepts employee_join_date when join_date is absent.
func (r *EmployeeRecord) UnmarshalJSON(data []byte) error {
	type plain EmployeeRecord
	var aux struct {
		plain
		EmployeeJoinDate string `json:"employee_join_date"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = EmployeeRecord(aux.plain)
	if r.JoinDate == "" {
		r.JoinDate = aux.EmployeeJoinDate
	}
	return nil
}

// Turn is one exchange in a conversation.
type Turn struct {
	RequestID string    `json:"request_id"`
	Query     string    `json:"query"`
	Status    string    `json:"status"`
	Summary   string    `json:"summary"`
	At        time.Time `json:"at"`
}

// Conversation is caller-owned history. Nothing in the core retains it
// between calls; callers pass it in explicitly.
type Conversation struct {
	Turns []Turn `json:"turns"`
}

// Append records a new turn.
func (c *Conversation) Append(t Turn) {
	c.Turns = append(c.Turns, t)
}

// Len returns the number of recorded turns.
func (c *Conversation) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Turns)
}
