// Package topic decides whether a query concerns corporate data.
//
// The decision layers a keyword veto, a coarse two-label zero-shot call and a
// fine-grained multi-label call. Only the two calls touch the backend; the
// veto short-circuits both.
package topic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"corpgate/internal/domain"
	"corpgate/internal/textnorm"
)

// ErrMalformedResult is returned when the backend answer cannot be interpreted.
var ErrMalformedResult = errors.New("topic: malformed classifier result")

const (
	DefaultConfidenceThreshold = 0.45

	coarseCorporate    = "corporate business query"
	coarseNonCorporate = "non-corporate personal query"
	coarseTemplate     = "This is a {}"
	fineTemplate       = "This query is about {}"

	coarseRejectScore  = 0.70
	coarseRescueScore  = 0.80
	keywordMinScore    = 0.35
	corporateLeadScore = 0.15

	nonCorporateLabel = "non-corporate query"
	fallbackLabel     = "business operations"
)

var corporateLabels = []string{
	"employee data request",
	"hr question",
	"corporate policy",
	"business operations",
	"performance metrics",
	"company data",
}

var nonCorporateLabels = []string{
	"personal question",
	"entertainment topic",
	"food and recipes",
	"general knowledge",
	"lifestyle question",
	"inappropriate content",
}

// labelHints describe each fine label for backends that score by term
// overlap. The coarse labels take the union of their side.
var labelHints = map[string][]string{
	"employee data request": {"employee", "staff", "personnel", "people", "worker", "headcount", "hire", "hiring", "join", "list", "roster", "directory", "member", "work", "department"},
	"hr question":           {"hr", "human resources", "benefit", "leave", "payroll", "salary", "onboarding", "complaint", "timesheet", "holiday", "training", "grievance"},
	"corporate policy":      {"policy", "compliance", "rule", "guideline", "procedure", "conduct", "security", "violation", "regulation", "office hours"},
	"business operations":   {"operation", "process", "meeting", "schedule", "office", "vendor", "client", "customer", "contract", "deadline", "workflow"},
	"performance metrics":   {"performance", "metric", "kpi", "target", "goal", "progress", "status", "project", "result", "review", "productivity", "quarter", "team"},
	"company data":          {"company", "data", "budget", "revenue", "profit", "margin", "cost", "expense", "finance", "sales", "marketing", "engineering", "research", "r&d", "legal", "accounting", "support", "product", "report", "number"},

	"personal question":     {"personal", "life", "love", "feeling", "friend", "family", "birthday", "relationship", "advice"},
	"entertainment topic":   {"movie", "film", "tv", "music", "song", "game", "sport", "celebrity", "joke", "fun", "weekend", "concert", "series"},
	"food and recipes":      {"food", "recipe", "cook", "bake", "pancake", "meal", "dinner", "lunch", "breakfast", "restaurant", "dish", "eat"},
	"general knowledge":     {"weather", "news", "history", "science", "capital", "country", "planet", "fact", "trivia", "world", "meaning", "universe", "population", "president"},
	"lifestyle question":    {"lifestyle", "vacation", "travel", "hobby", "garden", "pet", "fitness", "exercise", "diet", "fashion", "home", "sleep"},
	"inappropriate content": {"sex", "porn", "nude", "dating", "explicit", "violence", "drug"},
}

var coarseHints = map[string][]string{
	coarseCorporate:    unionHints(corporateLabels),
	coarseNonCorporate: unionHints(nonCorporateLabels),
}

func unionHints(labels []string) []string {
	var out []string
	for _, l := range labels {
		out = append(out, labelHints[l]...)
	}
	return out
}

// Substring matches, not whole words: "team" also fires for "teams".
var corporateKeywords = []string{
	"employee", "staff", "personnel", "department", "hr", "company",
	"corporate", "business", "organization", "management", "team",
	"performance", "review", "salary", "policy", "finance", "budget",
}

type keywordGroup struct {
	name     string
	keywords []string
	patterns []*regexp.Regexp
}

var vetoGroups = []keywordGroup{
	newGroup("inappropriate", "sex", "porn", "nude", "tinder", "girlfriend", "boyfriend", "marry"),
	newGroup("entertainment", "joke", "movie", "game", "play", "music", "song", "concert", "netflix"),
	newGroup("food", "pancake", "recipe", "food", "cook", "restaurant", "meal", "dinner", "lunch", "breakfast"),
	newGroup("lifestyle", "vacation", "hobby", "garden", "pet", "dog", "cat"),
}

func newGroup(name string, keywords ...string) keywordGroup {
	g := keywordGroup{name: name, keywords: keywords, patterns: make([]*regexp.Regexp, len(keywords))}
	for i, kw := range keywords {
		g.patterns[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`)
	}
	return g
}

// CorporateLabels returns the fine-grained corporate labels in declaration order.
func CorporateLabels() []string { return append([]string(nil), corporateLabels...) }

// NonCorporateLabels returns the fine-grained non-corporate labels in declaration order.
func NonCorporateLabels() []string { return append([]string(nil), nonCorporateLabels...) }

// Classifier is the layered corporate-topic decision procedure.
type Classifier struct {
	backend   domain.ZeroShotClassifier
	threshold float64
	logger    *slog.Logger
}

// NewClassifier wires a classifier over the given backend. A threshold <= 0
// selects DefaultConfidenceThreshold; a nil logger selects slog.Default().
func NewClassifier(backend domain.ZeroShotClassifier, threshold float64, logger *slog.Logger) *Classifier {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{backend: backend, threshold: threshold, logger: logger.With("component", "topic")}
}

// Classify runs the full decision for one query. Backend failures are
// returned as-is (wrapped); there is no retry or fallback.
func (c *Classifier) Classify(ctx context.Context, query string) (domain.Classification, error) {
	text := textnorm.Clean(query)
	lowered := textnorm.ForMatching(query)

	if group, kw, ok := vetoed(lowered); ok {
		label := group + " question"
		c.logger.InfoContext(ctx, "query rejected by keyword", "keyword", kw, "group", group)
		return domain.Classification{
			Label:      label,
			Confidence: 1.0,
			Scores:     domain.Scores{label: 1.0},
		}, nil
	}

	coarse, err := c.call(ctx, text, []string{coarseCorporate, coarseNonCorporate},
		domain.ZeroShotOptions{HypothesisTemplate: coarseTemplate, LabelHints: coarseHints})
	if err != nil {
		return domain.Classification{}, err
	}
	coarseLabel, coarseScore := coarse.Labels[0], coarse.Scores[0]
	if coarseLabel == coarseNonCorporate && coarseScore >= coarseRejectScore {
		c.logger.InfoContext(ctx, "query rejected as non-corporate", "confidence", coarseScore)
		return domain.Classification{
			Label:      nonCorporateLabel,
			Confidence: coarseScore,
			Scores:     domain.Scores{nonCorporateLabel: coarseScore},
		}, nil
	}

	all := make([]string, 0, len(corporateLabels)+len(nonCorporateLabels))
	all = append(all, corporateLabels...)
	all = append(all, nonCorporateLabels...)
	fine, err := c.call(ctx, text, all,
		domain.ZeroShotOptions{HypothesisTemplate: fineTemplate, MultiLabel: true, LabelHints: labelHints})
	if err != nil {
		return domain.Classification{}, err
	}

	scores := make(domain.Scores, len(fine.Labels))
	for i, l := range fine.Labels {
		scores[l] = fine.Scores[i]
	}
	result := decide(lowered, fine, scores, c.threshold)

	if !result.IsCorporate && coarseLabel == coarseCorporate && coarseScore >= coarseRescueScore {
		result.IsCorporate = true
		result.Label = fallbackLabel
		result.Confidence = coarseScore
	}

	c.logger.InfoContext(ctx, "classification result",
		"corporate", result.IsCorporate, "label", result.Label, "confidence", result.Confidence)
	c.logger.DebugContext(ctx, "classification scores", "scores", scores)
	return result, nil
}

func decide(lowered string, fine domain.ZeroShotResult, scores domain.Scores, threshold float64) domain.Classification {
	bestCorporate := maxScore(scores, corporateLabels)
	bestOther := maxScore(scores, nonCorporateLabels)

	out := domain.Classification{
		Label:      fine.Labels[0],
		Confidence: fine.Scores[0],
		Scores:     scores,
	}
	switch {
	case hasCorporateKeyword(lowered) && bestCorporate >= keywordMinScore,
		bestCorporate > bestOther+corporateLeadScore:
		out.IsCorporate = true
		out.Label = firstWithScore(scores, corporateLabels, bestCorporate)
		out.Confidence = bestCorporate
	case contains(corporateLabels, out.Label) && out.Confidence >= threshold:
		out.IsCorporate = true
	}
	return out
}

func (c *Classifier) call(ctx context.Context, text string, labels []string, opts domain.ZeroShotOptions) (domain.ZeroShotResult, error) {
	res, err := c.backend.Classify(ctx, text, labels, opts)
	if err != nil {
		c.logger.ErrorContext(ctx, "zero-shot call failed", "backend", c.backend.Name(), "error", err)
		return domain.ZeroShotResult{}, fmt.Errorf("topic: %s classify: %w", c.backend.Name(), err)
	}
	if len(res.Labels) == 0 || len(res.Labels) != len(res.Scores) {
		return domain.ZeroShotResult{}, fmt.Errorf("%w: %d labels, %d scores", ErrMalformedResult, len(res.Labels), len(res.Scores))
	}
	return res, nil
}

func vetoed(lowered string) (group, keyword string, ok bool) {
	for _, g := range vetoGroups {
		for i, p := range g.patterns {
			if p.MatchString(lowered) {
				return g.name, g.keywords[i], true
			}
		}
	}
	return "", "", false
}

func hasCorporateKeyword(lowered string) bool {
	for _, kw := range corporateKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

func maxScore(scores domain.Scores, labels []string) float64 {
	best := 0.0
	for _, l := range labels {
		if s := scores[l]; s > best {
			best = s
		}
	}
	return best
}

func firstWithScore(scores domain.Scores, labels []string, target float64) string {
	for _, l := range labels {
		if scores[l] == target {
			return l
		}
	}
	return labels[0]
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
