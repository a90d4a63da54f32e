package department

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corpgate/internal/domain"
)

func newTestExtractor() *Extractor {
	return NewExtractor(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestExtractEngineeringExample(t *testing.T) {
	got, ok := newTestExtractor().Extract("Show me the Engineering team's project status")
	require.True(t, ok)
	assert.Equal(t, domain.Engineering, got)
}

func TestSynonymsMatchCanonicalNames(t *testing.T) {
	e := newTestExtractor()
	pairs := [][2]string{
		{"How many people work in R&D?", "How many people work in Research and Development?"},
		{"Show hr records", "Show Human Resources records"},
		{"List eng headcount", "List Engineering headcount"},
		{"Show the law filings", "Show the Legal filings"},
		{"What is the finance budget", "What is the Accounting budget"},
	}
	for _, p := range pairs {
		short, ok := e.Extract(p[0])
		require.True(t, ok, p[0])
		full, ok := e.Extract(p[1])
		require.True(t, ok, p[1])
		assert.Equal(t, full, short, p[0])
	}
}

func TestEveryCanonicalNameResolves(t *testing.T) {
	e := newTestExtractor()
	for _, d := range domain.Departments() {
		got, ok := e.Extract("Show me " + string(d) + " numbers")
		require.True(t, ok, d)
		assert.Equal(t, d, got)
	}
}

func TestTableOrderIsSignificant(t *testing.T) {
	got, ok := newTestExtractor().Extract("ask business dev about it")
	require.True(t, ok)
	assert.Equal(t, domain.Engineering, got, "dev precedes business dev in the table")
}

func TestPhraseFallback(t *testing.T) {
	got, ok := newTestExtractor().Extract("Give me access to lawyers")
	require.True(t, ok)
	assert.Equal(t, domain.Legal, got)
}

func TestNoDepartment(t *testing.T) {
	_, ok := newTestExtractor().Extract("What is the weather today")
	assert.False(t, ok)
}

func TestResolve(t *testing.T) {
	d, ok := Resolve("the engineering")
	require.True(t, ok)
	assert.Equal(t, domain.Engineering, d)

	d, ok = Resolve("Customer Support")
	require.True(t, ok)
	assert.Equal(t, domain.Support, d)

	_, ok = Resolve("   ")
	assert.False(t, ok)

	_, ok = Resolve("xyz")
	assert.False(t, ok)
}
