// Package department resolves the department a query asks about.
package department

import (
	"log/slog"
	"regexp"
	"strings"

	"corpgate/internal/domain"
	"corpgate/internal/textnorm"
)

type synonym struct {
	term      string
	canonical domain.Department
	pattern   *regexp.Regexp
}

// Order matters: the first whole-word hit wins, so "dev" shadows "business dev".
// The full canonical name "business development" has to come before
// "development" or it would resolve to Engineering.
var synonyms = buildSynonyms([][2]string{
	{"hr", "Human Resources"},
	{"human resources", "Human Resources"},
	{"r&d", "Research and Development"},
	{"research", "Research and Development"},
	{"research & development", "Research and Development"},
	{"research and development", "Research and Development"},
	{"eng", "Engineering"},
	{"business development", "Business Development"},
	{"dev", "Engineering"},
	{"development", "Engineering"},
	{"product", "Product Management"},
	{"product mgmt", "Product Management"},
	{"pm", "Product Management"},
	{"sales", "Sales"},
	{"marketing", "Marketing"},
	{"legal", "Legal"},
	{"law", "Legal"},
	{"accounting", "Accounting"},
	{"finance", "Accounting"},
	{"business", "Business Development"},
	{"business dev", "Business Development"},
	{"bd", "Business Development"},
	{"support", "Support"},
	{"customer support", "Support"},
	{"services", "Services"},
	{"training", "Training"},
	{"engineering", "Engineering"},
	{"product management", "Product Management"},
})

// Each pattern captures a department-like phrase in group 1.
var indicators = []*regexp.Regexp{
	regexp.MustCompile(`\bdata\s+from\s+(\w+\s*\w*)\b`),
	regexp.MustCompile(`\bget\s+(\w+\s*\w*)\s+information\b`),
	regexp.MustCompile(`\baccess\s+to\s+(\w+\s*\w*)\b`),
	regexp.MustCompile(`\b(\w+\s*\w*)\s+department\b`),
	regexp.MustCompile(`\b(\w+\s*\w*)\s+team\b`),
	regexp.MustCompile(`\bfrom\s+(\w+\s*\w*)\s+department\b`),
	regexp.MustCompile(`\bfor\s+(\w+\s*\w*)\s+department\b`),
}

func buildSynonyms(pairs [][2]string) []synonym {
	out := make([]synonym, len(pairs))
	for i, p := range pairs {
		out[i] = synonym{
			term:      p[0],
			canonical: domain.Department(p[1]),
			pattern:   regexp.MustCompile(`\b` + regexp.QuoteMeta(p[0]) + `\b`),
		}
	}
	return out
}

// Extractor maps free text to at most one canonical department.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor returns an Extractor; a nil logger selects slog.Default().
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger.With("component", "department")}
}

// Extract returns the requested department, or false when none is found.
func (e *Extractor) Extract(query string) (domain.Department, bool) {
	q := textnorm.ForMatching(query)

	for _, s := range synonyms {
		if s.pattern.MatchString(q) {
			e.logger.Info("department mention found", "term", s.term, "department", s.canonical)
			return s.canonical, true
		}
	}

	for _, re := range indicators {
		for _, m := range re.FindAllStringSubmatch(q, -1) {
			candidate := strings.TrimSpace(m[1])
			if candidate == "" {
				continue
			}
			if d, ok := Resolve(candidate); ok {
				e.logger.Info("department inferred from phrase", "phrase", candidate, "department", d)
				return d, true
			}
		}
	}
	return "", false
}

// Resolve looks a single term up in the synonym table: an exact match first,
// then a substring match in either direction, in table order.
func Resolve(term string) (domain.Department, bool) {
	term = textnorm.ForMatching(term)
	if term == "" {
		return "", false
	}
	for _, s := range synonyms {
		if s.term == term {
			return s.canonical, true
		}
	}
	for _, s := range synonyms {
		if strings.Contains(s.term, term) || strings.Contains(term, s.term) {
			return s.canonical, true
		}
	}
	return "", false
}
