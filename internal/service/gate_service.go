// Package service wires the gate pipeline: classify the query, extract the
// requested department, then authorize the employee against it.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"corpgate/internal/access"
	"corpgate/internal/accessmodel"
	"corpgate/internal/domain"
	"corpgate/internal/textnorm"
)

// Result statuses.
const (
	StatusRejected     = "rejected"
	StatusAuthorized   = "authorized"
	StatusUnauthorized = "unauthorized"
)

// Actions returned by AssessEmployee.
const (
	ActionDenied  = "denied"
	ActionShow    = "show"
	ActionGranted = "granted"
)

const msgNotCorporate = "query is not related to corporate data"

var showPattern = regexp.MustCompile(`\b(show|display)`)

// ErrNoModel is returned by AssessAccess when no model artifact is loaded.
var ErrNoModel = errors.New("no access model loaded")

// TopicClassifier decides whether a query is about corporate data.
type TopicClassifier interface {
	Classify(ctx context.Context, query string) (domain.Classification, error)
}

// DepartmentExtractor finds the department a query asks about.
type DepartmentExtractor interface {
	Extract(query string) (domain.Department, bool)
}

// Authorizer runs the rule cascade.
type Authorizer interface {
	Evaluate(req access.Request) access.Decision
}

// Assessor runs the model-based access path.
type Assessor interface {
	Assess(req accessmodel.AccessRequest) (accessmodel.Verdict, error)
}

// QueryRequest is one user query. Origin, when set, overrides the address on
// the employee record.
type QueryRequest struct {
	UserID domain.EmployeeID `json:"user_id"`
	Query  string            `json:"query"`
	Origin string            `json:"origin,omitempty"`
}

// QueryResult is what the caller sees for one query.
type QueryResult struct {
	RequestID      string                `json:"request_id"`
	Status         string                `json:"status"`
	Message        string                `json:"message"`
	UserID         domain.EmployeeID     `json:"user_id"`
	Query          string                `json:"query"`
	Classification domain.Classification `json:"classification"`
	RequestedDept  domain.Department     `json:"requested_dept,omitempty"`
	IsAuthorized   bool                  `json:"is_authorized"`
	AuthReason     string                `json:"auth_reason,omitempty"`
	AuthRule       string                `json:"auth_rule,omitempty"`
}

// EmployeeAssessment is the model path's answer for a stored employee.
type EmployeeAssessment struct {
	UserID  domain.EmployeeID   `json:"user_id"`
	Query   string              `json:"query"`
	Action  string              `json:"action"`
	Message string              `json:"message"`
	Verdict accessmodel.Verdict `json:"verdict"`
}

type GateService struct {
	directory  domain.EmployeeDirectory
	classifier TopicClassifier
	extractor  DepartmentExtractor
	authorizer Authorizer
	assessor   Assessor
	logger     *slog.Logger
	now        func() time.Time
}

// Option customizes a GateService.
type Option func(*GateService)

// WithAssessor enables AssessAccess.
func WithAssessor(a Assessor) Option { return func(s *GateService) { s.assessor = a } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *GateService) { s.logger = l } }

// WithClock overrides the time source used to stamp conversation turns.
func WithClock(now func() time.Time) Option { return func(s *GateService) { s.now = now } }

func NewGateService(dir domain.EmployeeDirectory, classifier TopicClassifier, extractor DepartmentExtractor, authorizer Authorizer, opts ...Option) *GateService {
	s := &GateService{
		directory:  dir,
		classifier: classifier,
		extractor:  extractor,
		authorizer: authorizer,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("component", "service")
	return s
}

// ProcessUserQuery runs the full pipeline. An unknown employee or a
// classifier failure is returned as an error; every other outcome is a
// result. When conv is non-nil the exchange is appended to it.
func (s *GateService) ProcessUserQuery(ctx context.Context, req QueryRequest, conv *domain.Conversation) (QueryResult, error) {
	res := QueryResult{RequestID: uuid.NewString(), UserID: req.UserID, Query: req.Query}
	log := s.logger.With("request_id", res.RequestID, "employee", req.UserID)

	rec, err := s.directory.Lookup(ctx, req.UserID)
	if err != nil {
		return QueryResult{}, fmt.Errorf("lookup employee %s: %w", req.UserID, err)
	}

	cls, err := s.classifier.Classify(ctx, req.Query)
	if err != nil {
		log.ErrorContext(ctx, "classification failed", "error", err)
		return QueryResult{}, fmt.Errorf("classify query: %w", err)
	}
	res.Classification = cls

	if !cls.IsCorporate {
		res.Status = StatusRejected
		res.Message = msgNotCorporate
		log.InfoContext(ctx, "query rejected", "label", cls.Label)
		s.record(conv, res, fmt.Sprintf("rejected: %s", cls.Label))
		return res, nil
	}

	dept, _ := s.extractor.Extract(req.Query)
	info := access.SignalsFrom(rec)
	if req.Origin != "" {
		info.Address = req.Origin
	}
	d := s.authorizer.Evaluate(access.Request{
		EmployeeID: rec.ID,
		Department: rec.Department,
		Requested:  dept,
		Info:       info,
	})

	res.RequestedDept = dept
	res.IsAuthorized = d.Allowed
	res.AuthReason = d.Reason
	res.AuthRule = d.Rule
	if d.Allowed {
		res.Status = StatusAuthorized
		res.Message = fmt.Sprintf("access granted to %s data", dept)
	} else {
		res.Status = StatusUnauthorized
		res.Message = d.Reason
	}
	log.InfoContext(ctx, "query processed", "status", res.Status, "label", cls.Label, "department", dept, "rule", d.Rule)
	s.record(conv, res, fmt.Sprintf("%s: %s (%s)", res.Status, orNone(dept), d.Rule))
	return res, nil
}

// ClassifyQuery runs only the topic classifier.
func (s *GateService) ClassifyQuery(ctx context.Context, query string) (domain.Classification, error) {
	return s.classifier.Classify(ctx, query)
}

// AssessAccess runs the model-based path. It shares nothing with the rule
// cascade.
func (s *GateService) AssessAccess(req accessmodel.AccessRequest) (accessmodel.Verdict, error) {
	if s.assessor == nil {
		return accessmodel.Verdict{}, ErrNoModel
	}
	v, err := s.assessor.Assess(req)
	if err != nil {
		return accessmodel.Verdict{}, err
	}
	s.logger.Info("model assessment", "department", req.Department, "prediction", v.PredictionLabel)
	return v, nil
}

// AssessEmployee looks the employee up, scores the stored record with the
// model and maps the verdict to an action. An approved query that asks to
// show or display something yields ActionShow.
func (s *GateService) AssessEmployee(ctx context.Context, id domain.EmployeeID, query string) (EmployeeAssessment, error) {
	if s.assessor == nil {
		return EmployeeAssessment{}, ErrNoModel
	}
	rec, err := s.directory.Lookup(ctx, id)
	if err != nil {
		return EmployeeAssessment{}, fmt.Errorf("lookup employee %s: %w", id, err)
	}

	v, err := s.AssessAccess(RequestFromRecord(rec))
	if err != nil {
		return EmployeeAssessment{}, err
	}
	out := EmployeeAssessment{UserID: rec.ID, Query: query, Verdict: v}
	switch {
	case !v.Approved():
		out.Action, out.Message = ActionDenied, "access denied"
	case showPattern.MatchString(textnorm.ForMatching(query)):
		out.Action, out.Message = ActionShow, "access granted: show action"
	default:
		out.Action, out.Message = ActionGranted, "access granted"
	}
	s.logger.InfoContext(ctx, "employee assessment", "employee", rec.ID, "action", out.Action)
	return out, nil
}

// RequestFromRecord builds the model request from a directory record.
func RequestFromRecord(rec domain.EmployeeRecord) accessmodel.AccessRequest {
	violations := int(rec.PastViolations)
	return accessmodel.AccessRequest{
		UserRole:            rec.UserRole,
		Department:          string(rec.Department),
		EmployeeStatus:      rec.EmployeeStatus,
		ResourceType:        rec.ResourceType,
		ResourceSensitivity: rec.ResourceSensitivity,
		EmployeeJoinDate:    rec.JoinDate,
		PastViolations:      &violations,
	}
}

func (s *GateService) record(conv *domain.Conversation, res QueryResult, summary string) {
	if conv == nil {
		return
	}
	conv.Append(domain.Turn{
		RequestID: res.RequestID,
		Query:     res.Query,
		Status:    res.Status,
		Summary:   summary,
		At:        s.now(),
	})
}

func orNone(d domain.Department) string {
	if d == "" {
		return "no department"
	}
	return string(d)
}
