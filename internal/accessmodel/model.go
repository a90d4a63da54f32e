// Package accessmodel is the model-based access assessor. It scores an access
// request with an exported tree ensemble and label encoders, independently
// of the rule cascade in package access.
package accessmodel

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"
)

var (
	// ErrMissingField is returned when a required request field is absent.
	ErrMissingField = errors.New("accessmodel: missing required field")
	// ErrUnknownCategory is returned when a categorical value was not seen in training.
	ErrUnknownCategory = errors.New("accessmodel: unknown category")
	// ErrInvalidField is returned when a present field cannot be interpreted.
	ErrInvalidField = errors.New("accessmodel: invalid field")
)

// Feature names understood by the assessor.
const (
	FeatureUserRole            = "user_role"
	FeatureDepartment          = "department"
	FeatureEmployeeStatus      = "employee_status"
	FeatureResourceType        = "resource_type"
	FeatureResourceSensitivity = "resource_sensitivity"
	FeaturePastViolations      = "past_violations"
	FeatureTimeSpentMonths     = "time_spent_months"
)

const (
	LabelApproved    = "Approved"
	LabelNotApproved = "Not Approved"

	approvedClass = 1
	leaf          = -1
)

var joinDateLayouts = []string{"2006-01-02", "01-02-2006", "01/02/2006"}

// AccessRequest carries the employee and resource attributes the model scores.
type AccessRequest struct {
	UserRole            string `json:"user_role"`
	Department          string `json:"department"`
	EmployeeStatus      string `json:"employee_status"`
	ResourceType        string `json:"resource_type"`
	ResourceSensitivity string `json:"resource_sensitivity"`
	EmployeeJoinDate    string `json:"employee_join_date"`
	PastViolations      *int   `json:"past_violations"`
}

// Verdict is the model's answer for one request.
type Verdict struct {
	Prediction      int       `json:"prediction"`
	PredictionLabel string    `json:"prediction_label"`
	Probability     []float64 `json:"probability"`
}

// Approved reports whether the predicted class is the approving one.
func (v Verdict) Approved() bool { return v.Prediction == approvedClass }

// Node is one tree node. Leaves have Left == -1 and carry Value.
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value,omitempty"`
}

// Tree is a flat array of nodes rooted at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Artifact is the serialized ensemble.
type Artifact struct {
	Name     string              `json:"name"`
	Classes  []int               `json:"classes"`
	Features []string            `json:"features"`
	Encoders map[string][]string `json:"encoders"`
	Trees    []Tree              `json:"trees"`
}

// Model is a validated artifact ready for scoring. Safe for concurrent use.
type Model struct {
	art      Artifact
	encoders map[string]map[string]int
	now      func() time.Time
}

// Option customizes a Model.
type Option func(*Model)

// WithClock overrides the time source used for tenure.
func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// Load reads and validates an artifact file.
func Load(path string, opts ...Option) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("accessmodel: read %s: %w", path, err)
	}
	return Parse(data, opts...)
}

// Parse validates an artifact held in memory.
func Parse(data []byte, opts ...Option) (*Model, error) {
	var art Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("accessmodel: decode artifact: %w", err)
	}
	if err := validate(art); err != nil {
		return nil, err
	}

	m := &Model{art: art, encoders: make(map[string]map[string]int, len(art.Encoders)), now: time.Now}
	for name, classes := range art.Encoders {
		idx := make(map[string]int, len(classes))
		for i, c := range classes {
			idx[c] = i
		}
		m.encoders[name] = idx
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

func validate(art Artifact) error {
	if len(art.Classes) == 0 {
		return errors.New("accessmodel: artifact has no classes")
	}
	if len(art.Features) == 0 {
		return errors.New("accessmodel: artifact has no features")
	}
	if len(art.Trees) == 0 {
		return errors.New("accessmodel: artifact has no trees")
	}
	for _, f := range art.Features {
		switch f {
		case FeatureUserRole, FeatureDepartment, FeatureEmployeeStatus, FeatureResourceType, FeatureResourceSensitivity:
			if len(art.Encoders[f]) == 0 {
				return fmt.Errorf("accessmodel: no encoder for categorical feature %q", f)
			}
		case FeaturePastViolations, FeatureTimeSpentMonths:
		default:
			return fmt.Errorf("accessmodel: unsupported feature %q", f)
		}
	}
	for ti, t := range art.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("accessmodel: tree %d is empty", ti)
		}
		for ni, n := range t.Nodes {
			if n.Left == leaf {
				if len(n.Value) != len(art.Classes) {
					return fmt.Errorf("accessmodel: tree %d node %d: value has %d entries, want %d", ti, ni, len(n.Value), len(art.Classes))
				}
				continue
			}
			if n.Feature < 0 || n.Feature >= len(art.Features) {
				return fmt.Errorf("accessmodel: tree %d node %d: feature %d out of range", ti, ni, n.Feature)
			}
			// Children must point forward so traversal always terminates.
			if n.Left <= ni || n.Left >= len(t.Nodes) || n.Right <= ni || n.Right >= len(t.Nodes) {
				return fmt.Errorf("accessmodel: tree %d node %d: child index out of range", ti, ni)
			}
		}
	}
	return nil
}

// Name is the artifact's declared name.
func (m *Model) Name() string { return m.art.Name }

// Assess scores req.
func (m *Model) Assess(req AccessRequest) (Verdict, error) {
	if err := checkRequired(req); err != nil {
		return Verdict{}, err
	}
	x, err := m.features(req)
	if err != nil {
		return Verdict{}, err
	}

	proba := make([]float64, len(m.art.Classes))
	for _, t := range m.art.Trees {
		dist := t.leafValue(x)
		var total float64
		for _, v := range dist {
			total += v
		}
		if total <= 0 {
			continue
		}
		for i, v := range dist {
			proba[i] += v / total
		}
	}
	n := float64(len(m.art.Trees))
	best := 0
	for i := range proba {
		proba[i] /= n
		if proba[i] > proba[best] {
			best = i
		}
	}

	v := Verdict{Prediction: m.art.Classes[best], Probability: proba}
	v.PredictionLabel = LabelNotApproved
	if v.Approved() {
		v.PredictionLabel = LabelApproved
	}
	return v, nil
}

func (t Tree) leafValue(x []float64) []float64 {
	i := 0
	for t.Nodes[i].Left != leaf {
		n := t.Nodes[i]
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return t.Nodes[i].Value
}

func checkRequired(req AccessRequest) error {
	fields := []struct {
		name    string
		present bool
	}{
		{FeatureUserRole, req.UserRole != ""},
		{FeatureDepartment, req.Department != ""},
		{FeatureEmployeeStatus, req.EmployeeStatus != ""},
		{FeatureResourceType, req.ResourceType != ""},
		{FeatureResourceSensitivity, req.ResourceSensitivity != ""},
		{"employee_join_date", req.EmployeeJoinDate != ""},
		{FeaturePastViolations, req.PastViolations != nil},
	}
	for _, f := range fields {
		if !f.present {
			return fmt.Errorf("%w: %s", ErrMissingField, f.name)
		}
	}
	return nil
}

func (m *Model) features(req AccessRequest) ([]float64, error) {
	x := make([]float64, len(m.art.Features))
	for i, name := range m.art.Features {
		switch name {
		case FeaturePastViolations:
			x[i] = float64(*req.PastViolations)
		case FeatureTimeSpentMonths:
			months, err := m.monthsSince(req.EmployeeJoinDate)
			if err != nil {
				return nil, err
			}
			x[i] = float64(months)
		default:
			code, err := m.encode(name, categorical(req, name))
			if err != nil {
				return nil, err
			}
			x[i] = float64(code)
		}
	}
	return x, nil
}

func categorical(req AccessRequest, name string) string {
	switch name {
	case FeatureUserRole:
		return req.UserRole
	case FeatureDepartment:
		return req.Department
	case FeatureEmployeeStatus:
		return req.EmployeeStatus
	case FeatureResourceType:
		return req.ResourceType
	default:
		return req.ResourceSensitivity
	}
}

func (m *Model) encode(feature, value string) (int, error) {
	code, ok := m.encoders[feature][value]
	if !ok {
		return 0, fmt.Errorf("%w: %q in column %q", ErrUnknownCategory, value, feature)
	}
	return code, nil
}

// monthsSince is whole days since the join date divided by 30, floored.
func (m *Model) monthsSince(date string) (int, error) {
	date = strings.TrimSpace(date)
	for _, layout := range joinDateLayouts {
		joined, err := time.Parse(layout, date)
		if err != nil {
			continue
		}
		days := math.Floor(m.now().Sub(joined).Hours() / 24)
		return int(math.Floor(days / 30)), nil
	}
	return 0, fmt.Errorf("%w: employee_join_date %q", ErrInvalidField, date)
}
