// Package hfapi is a client for a hosted zero-shot classification endpoint
// speaking the Hugging Face inference API contract.
package hfapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	"corpgate/internal/domain"
)

const (
	DefaultBaseURL = "https://api-inference.huggingface.co/models"
	DefaultModel   = "facebook/bart-large-mnli"
)

// Client implements domain.ZeroShotClassifier over HTTP. Failures are
// returned as-is; callers decide whether to retry.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// Config configures the client.
type Config struct {
	BaseURL string
	// APIKeyEnv names the env var holding the bearer token. Empty disables auth.
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
	// HTTPClient overrides the transport; Timeout is ignored when set.
	HTTPClient *http.Client
}

// NewClient creates a client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	var key string
	if cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
		}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	hc := cfg.HTTPClient
	if hc == nil {
		t := cfg.Timeout
		if t == 0 {
			t = 30 * time.Second
		}
		hc = &http.Client{Timeout: t}
	}
	return &Client{baseURL: cfg.BaseURL, apiKey: key, model: cfg.Model, client: hc}, nil
}

// Name returns the identifier of this classifier implementation.
func (c *Client) Name() string { return "hfapi" }

type request struct {
	Inputs     string     `json:"inputs"`
	Parameters parameters `json:"parameters"`
}

type parameters struct {
	CandidateLabels    []string `json:"candidate_labels"`
	HypothesisTemplate string   `json:"hypothesis_template,omitempty"`
	MultiLabel         bool     `json:"multi_label"`
}

// Classify scores text against labels.
func (c *Client) Classify(ctx context.Context, text string, labels []string, opts domain.ZeroShotOptions) (domain.ZeroShotResult, error) {
	if len(labels) == 0 {
		return domain.ZeroShotResult{}, errors.New("hfapi: no candidate labels")
	}
	data, err := json.Marshal(request{
		Inputs: text,
		Parameters: parameters{
			CandidateLabels:    labels,
			HypothesisTemplate: opts.HypothesisTemplate,
			MultiLabel:         opts.MultiLabel,
		},
	})
	if err != nil {
		return domain.ZeroShotResult{}, fmt.Errorf("hfapi: encode request: %w", err)
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return domain.ZeroShotResult{}, fmt.Errorf("hfapi: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.ZeroShotResult{}, fmt.Errorf("hfapi: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.ZeroShotResult{}, fmt.Errorf("hfapi: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return domain.ZeroShotResult{}, fmt.Errorf("hfapi: zero-shot classification failed: %s: %s", resp.Status, bytes.TrimSpace(payload))
	}
	return decode(payload)
}

// decode accepts the pipeline shape {labels, scores} and the list shape
// [{label, score}].
func decode(payload []byte) (domain.ZeroShotResult, error) {
	var pipeline struct {
		Labels []string  `json:"labels"`
		Scores []float64 `json:"scores"`
	}
	if err := json.Unmarshal(payload, &pipeline); err == nil && len(pipeline.Labels) > 0 {
		if len(pipeline.Labels) != len(pipeline.Scores) {
			return domain.ZeroShotResult{}, fmt.Errorf("hfapi: %d labels but %d scores", len(pipeline.Labels), len(pipeline.Scores))
		}
		return sorted(pipeline.Labels, pipeline.Scores), nil
	}

	var list []struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal(payload, &list); err == nil && len(list) > 0 {
		labels := make([]string, len(list))
		scores := make([]float64, len(list))
		for i, e := range list {
			labels[i], scores[i] = e.Label, e.Score
		}
		return sorted(labels, scores), nil
	}
	return domain.ZeroShotResult{}, errors.New("hfapi: no classification returned")
}

func sorted(labels []string, scores []float64) domain.ZeroShotResult {
	idx := make([]int, len(labels))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })
	out := domain.ZeroShotResult{Labels: make([]string, len(idx)), Scores: make([]float64, len(idx))}
	for i, j := range idx {
		out.Labels[i], out.Scores[i] = labels[j], scores[j]
	}
	return out
}
