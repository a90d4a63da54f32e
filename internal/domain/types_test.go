package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmployeeRecordDecodesLenientFields(t *testing.T) {
	cases := []struct {
		name       string
		input      string
		wantID     EmployeeID
		violations ViolationCount
	}{
		{"numeric id and count", `{"id": 7, "department": "Sales", "past_violations": 2}`, "7", 2},
		{"string id and string count", `{"id": "EMP001", "department": "Sales", "past_violations": "3"}`, "EMP001", 3},
		{"garbage count", `{"id": "EMP002", "department": "Sales", "past_violations": "many"}`, "EMP002", 0},
		{"null count", `{"id": "EMP003", "department": "Sales", "past_violations": null}`, "EMP003", 0},
		{"object count", `{"id": "EMP004", "department": "Sales", "past_violations": {"n": 1}}`, "EMP004", 0},
		{"missing count", `{"id": "EMP005", "department": "Sales"}`, "EMP005", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var rec EmployeeRecord
			require.NoError(t, json.Unmarshal([]byte(tc.input), &rec))
			assert.Equal(t, tc.wantID, rec.ID)
			assert.Equal(t, tc.violations, rec.PastViolations)
		})
	}
}

func TestEmployeeRecordJoinDateNames(t *testing.T) {
	var rec EmployeeRecord
	require.NoError(t, json.Unmarshal([]byte(`{"id": "EMP006", "department": "Sales", "employee_join_date": "2021-04-01",
		"user_role": "Manager", "employee_status": "Active", "resource_type": "report", "resource_sensitivity": "High"}`), &rec))
	assert.Equal(t, "2021-04-01", rec.JoinDate)
	assert.Equal(t, "Manager", rec.UserRole)
	assert.Equal(t, "Active", rec.EmployeeStatus)
	assert.Equal(t, "report", rec.ResourceType)
	assert.Equal(t, "High", rec.ResourceSensitivity)

	rec = EmployeeRecord{}
	require.NoError(t, json.Unmarshal([]byte(`{"id": "EMP007", "join_date": "2020-01-01", "employee_join_date": "1999-01-01"}`), &rec))
	assert.Equal(t, "2020-01-01", rec.JoinDate)

	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "employee_join_date")
}

func TestDepartmentsAreCanonical(t *testing.T) {
	deps := Departments()
	require.Len(t, deps, 12)
	for _, d := range deps {
		assert.True(t, d.IsCanonical(), d)
	}
	assert.False(t, Department("Finance").IsCanonical())

	deps[0] = "mutated"
	assert.Equal(t, ProductManagement, Departments()[0])
}

func TestConversationAppend(t *testing.T) {
	var nilConv *Conversation
	assert.Equal(t, 0, nilConv.Len())

	conv := &Conversation{}
	conv.Append(Turn{Query: "a"})
	conv.Append(Turn{Query: "b"})
	assert.Equal(t, 2, conv.Len())
	assert.Equal(t, "b", conv.Turns[1].Query)
}
