package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corpgate/internal/access"
	"corpgate/internal/accessmodel"
	"corpgate/internal/department"
	"corpgate/internal/directory"
	"corpgate/internal/directory/memory"
	"corpgate/internal/domain"
)

var fixedNow = time.Date(2026, time.October, 14, 9, 0, 0, 0, time.UTC)

type stubClassifier struct {
	result domain.Classification
	err    error
	calls  int
}

func (s *stubClassifier) Classify(context.Context, string) (domain.Classification, error) {
	s.calls++
	return s.result, s.err
}

type stubAssessor struct{ err error }

func (s stubAssessor) Assess(accessmodel.AccessRequest) (accessmodel.Verdict, error) {
	if s.err != nil {
		return accessmodel.Verdict{}, s.err
	}
	return accessmodel.Verdict{Prediction: 1, PredictionLabel: accessmodel.LabelApproved, Probability: []float64{0.2, 0.8}}, nil
}

var corporate = domain.Classification{IsCorporate: true, Label: "financial data", Confidence: 0.9}

func newTestService(cls *stubClassifier, opts ...Option) *GateService {
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := memory.NewStore(
		domain.EmployeeRecord{ID: "EMP002", Name: "Jane Smith", Department: domain.Engineering, JoinDate: "2019-05-20", PastViolations: 0, IPAddress: "192.168.1.102"},
		domain.EmployeeRecord{ID: "EMP005", Name: "Charlie Wilson", Department: domain.Engineering, JoinDate: "2022-12-01", PastViolations: 3, IPAddress: "192.168.1.105"},
	)
	eval := access.NewEvaluator(nil, access.WithClock(func() time.Time { return fixedNow }), access.WithLogger(discard))
	opts = append([]Option{WithLogger(discard), WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewGateService(dir, cls, department.NewExtractor(discard), eval, opts...)
}

func TestProcessUserQueryAuthorized(t *testing.T) {
	svc := newTestService(&stubClassifier{result: corporate})
	var conv domain.Conversation

	res, err := svc.ProcessUserQuery(context.Background(),
		QueryRequest{UserID: "EMP002", Query: "Show me the engineering team's budget"}, &conv)
	require.NoError(t, err)

	assert.Equal(t, StatusAuthorized, res.Status)
	assert.True(t, res.IsAuthorized)
	assert.Equal(t, domain.Engineering, res.RequestedDept)
	assert.Equal(t, access.RuleOwnDepartment, res.AuthRule)
	assert.Contains(t, res.AuthReason, "own department")
	_, err = uuid.Parse(res.RequestID)
	assert.NoError(t, err)

	require.Equal(t, 1, conv.Len())
	turn := conv.Turns[0]
	assert.Equal(t, res.RequestID, turn.RequestID)
	assert.Equal(t, StatusAuthorized, turn.Status)
	assert.Equal(t, fixedNow, turn.At)
}

func TestProcessUserQueryUnauthorized(t *testing.T) {
	svc := newTestService(&stubClassifier{result: corporate})

	res, err := svc.ProcessUserQuery(context.Background(),
		QueryRequest{UserID: "EMP005", Query: "Show me engineering deployment costs"}, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusUnauthorized, res.Status)
	assert.False(t, res.IsAuthorized)
	assert.Equal(t, access.RuleViolationVeto, res.AuthRule)
	assert.Equal(t, res.AuthReason, res.Message)

	res, err = svc.ProcessUserQuery(context.Background(),
		QueryRequest{UserID: "EMP002", Query: "What is our revenue this quarter?"}, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusUnauthorized, res.Status)
	assert.Equal(t, access.RuleNoDepartment, res.AuthRule)
	assert.Empty(t, res.RequestedDept)
}

func TestOriginOverridesRecordAddress(t *testing.T) {
	svc := newTestService(&stubClassifier{result: corporate})
	req := QueryRequest{UserID: "EMP002", Query: "Show me the legal contracts"}

	res, err := svc.ProcessUserQuery(context.Background(), req, nil)
	require.NoError(t, err)
	assert.False(t, res.IsAuthorized)

	req.Origin = "127.0.0.1"
	res, err = svc.ProcessUserQuery(context.Background(), req, nil)
	require.NoError(t, err)
	assert.True(t, res.IsAuthorized)
	assert.Equal(t, access.RuleLoopback, res.AuthRule)
}

func TestProcessUserQueryRejected(t *testing.T) {
	cls := &stubClassifier{result: domain.Classification{Label: "weather question", Confidence: 1}}
	svc := newTestService(cls)
	var conv domain.Conversation

	res, err := svc.ProcessUserQuery(context.Background(), QueryRequest{UserID: "EMP002", Query: "Will it rain?"}, &conv)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, res.Status)
	assert.Equal(t, "query is not related to corporate data", res.Message)
	assert.False(t, res.IsAuthorized)
	assert.Empty(t, res.AuthRule)
	assert.Equal(t, 1, conv.Len())
}

func TestProcessUserQueryErrors(t *testing.T) {
	cls := &stubClassifier{result: corporate}
	svc := newTestService(cls)
	var conv domain.Conversation

	_, err := svc.ProcessUserQuery(context.Background(), QueryRequest{UserID: "GHOST", Query: "sales"}, &conv)
	assert.ErrorIs(t, err, directory.ErrNotFound)
	assert.Zero(t, cls.calls, "classifier is not called for unknown employees")

	boom := errors.New("backend down")
	svc = newTestService(&stubClassifier{err: boom})
	_, err = svc.ProcessUserQuery(context.Background(), QueryRequest{UserID: "EMP002", Query: "sales"}, &conv)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, conv.Len())
}

func TestRequestIDsAreUnique(t *testing.T) {
	svc := newTestService(&stubClassifier{result: corporate})
	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		res, err := svc.ProcessUserQuery(context.Background(), QueryRequest{UserID: "EMP002", Query: "engineering"}, nil)
		require.NoError(t, err)
		assert.False(t, seen[res.RequestID])
		seen[res.RequestID] = true
	}
}

func TestClassifyQuery(t *testing.T) {
	cls := &stubClassifier{result: corporate}
	got, err := newTestService(cls).ClassifyQuery(context.Background(), "budget")
	require.NoError(t, err)
	assert.Equal(t, corporate, got)
	assert.Equal(t, 1, cls.calls)
}

func TestAssessAccess(t *testing.T) {
	_, err := newTestService(&stubClassifier{}).AssessAccess(accessmodel.AccessRequest{})
	assert.ErrorIs(t, err, ErrNoModel)

	v, err := newTestService(&stubClassifier{}, WithAssessor(stubAssessor{})).AssessAccess(accessmodel.AccessRequest{Department: "HR"})
	require.NoError(t, err)
	assert.True(t, v.Approved())

	_, err = newTestService(&stubClassifier{}, WithAssessor(stubAssessor{err: accessmodel.ErrUnknownCategory})).AssessAccess(accessmodel.AccessRequest{})
	assert.ErrorIs(t, err, accessmodel.ErrUnknownCategory)
}
