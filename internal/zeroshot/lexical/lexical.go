// Package lexical is an offline zero-shot classifier. Each call fits a
// TF-IDF vectorizer over the text and one hypothesis per label, where a
// hypothesis is the filled template plus any label hints. A label scores the
// share of the text's TF-IDF weight its hypothesis covers. Tokens are lightly
// stemmed so plurals and verb forms meet. Useful without network access and
// in tests.
package lexical

import (
	"context"
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"

	"corpgate/internal/domain"
	"corpgate/internal/textnorm"
)

const (
	defaultTemplate = "This example is {}."
	// temperature sharpens the softmax; raw coverage sits in [0,1].
	temperature = 10.0
)

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

// Classifier implements domain.ZeroShotClassifier. It keeps no state between
// calls.
type Classifier struct {
	stopwords map[string]struct{}
}

// New returns a classifier with the default English stopword list.
func New() *Classifier {
	return &Classifier{stopwords: defaultStopwords()}
}

// Name returns the identifier of this classifier implementation.
func (c *Classifier) Name() string { return "lexical" }

// Classify scores text against labels. Multi-label mode returns the raw
// coverage; otherwise the scores are a softmax and sum to 1.
func (c *Classifier) Classify(ctx context.Context, text string, labels []string, opts domain.ZeroShotOptions) (domain.ZeroShotResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ZeroShotResult{}, err
	}
	if len(labels) == 0 {
		return domain.ZeroShotResult{}, errors.New("lexical: no candidate labels")
	}
	tmpl := opts.HypothesisTemplate
	if tmpl == "" {
		tmpl = defaultTemplate
	}

	docs := make([][]string, 0, len(labels)+1)
	docs = append(docs, c.tokenize(text))
	for _, l := range labels {
		hyp := c.tokenize(strings.ReplaceAll(tmpl, "{}", l))
		for _, h := range opts.LabelHints[l] {
			hyp = append(hyp, c.tokenize(h)...)
		}
		docs = append(docs, hyp)
	}
	vecs := vectorize(docs)

	scores := make([]float64, len(labels))
	for i := range labels {
		scores[i] = coverage(vecs[0], vecs[i+1])
	}
	if !opts.MultiLabel {
		softmax(scores)
	}
	return rank(labels, scores), nil
}

// vectorize returns L2-normalized dense TF-IDF vectors with smoothed IDF
// over a sorted vocabulary, so results do not depend on map order.
func vectorize(docs [][]string) [][]float64 {
	df := make(map[string]int)
	for _, toks := range docs {
		seen := make(map[string]struct{}, len(toks))
		for _, t := range toks {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			df[t]++
		}
	}
	terms := make([]string, 0, len(df))
	for t := range df {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	vocab := make(map[string]int, len(terms))
	idf := make([]float64, len(terms))
	n := float64(len(docs))
	for i, t := range terms {
		vocab[t] = i
		idf[i] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}

	out := make([][]float64, len(docs))
	for i, toks := range docs {
		vec := make([]float64, len(terms))
		for _, t := range toks {
			vec[vocab[t]]++
		}
		var norm float64
		for j := range vec {
			if vec[j] == 0 {
				continue
			}
			vec[j] = vec[j] / float64(len(toks)) * idf[j]
			norm += vec[j] * vec[j]
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for j := range vec {
				vec[j] /= norm
			}
		}
		out[i] = vec
	}
	return out
}

// coverage is the squared weight of the unit vector q on the terms present
// in h. It is 1 when h contains every term of q and 0 when they share none.
func coverage(q, h []float64) float64 {
	var s float64
	for i := range q {
		if h[i] > 0 {
			s += q[i] * q[i]
		}
	}
	return math.Min(s, 1)
}

func softmax(xs []float64) {
	var sum float64
	for i, x := range xs {
		xs[i] = math.Exp(x * temperature)
		sum += xs[i]
	}
	for i := range xs {
		xs[i] /= sum
	}
}

func rank(labels []string, scores []float64) domain.ZeroShotResult {
	idx := make([]int, len(labels))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })
	res := domain.ZeroShotResult{Labels: make([]string, len(idx)), Scores: make([]float64, len(idx))}
	for i, j := range idx {
		res.Labels[i], res.Scores[i] = labels[j], scores[j]
	}
	return res
}

func (c *Classifier) tokenize(text string) []string {
	raw := tokenPattern.FindAllString(textnorm.ForMatching(text), -1)
	out := raw[:0]
	for _, t := range raw {
		t = strings.TrimSuffix(strings.TrimSuffix(t, "'s"), "’s")
		if _, isStop := c.stopwords[t]; isStop {
			continue
		}
		out = append(out, stem(t))
	}
	return out
}

// stem strips one common English suffix. It only has to map the forms of a
// word onto the same token, not produce a dictionary word.
func stem(t string) string {
	n := len(t)
	switch {
	case n > 4 && strings.HasSuffix(t, "ies"):
		return t[:n-3] + "y"
	case n > 5 && strings.HasSuffix(t, "ing"):
		return t[:n-3]
	case n > 4 && strings.HasSuffix(t, "ed"):
		return t[:n-2]
	case n > 3 && strings.HasSuffix(t, "s") &&
		!strings.HasSuffix(t, "ss") && !strings.HasSuffix(t, "us") && !strings.HasSuffix(t, "is"):
		return t[:n-1]
	}
	return t
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"me", "my", "i", "you", "your", "we", "our", "what", "how", "show", "give", "tell", "please", "example", "query",
		"all", "any", "who", "which", "when", "where", "do", "does", "did", "have", "has", "many", "much", "most", "there", "their", "they", "its", "get",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
