// Package summary writes a short narrative about a ranked selection using Gemini.
package summary

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/huangsam/reposcout/core/algo"
	"github.com/huangsam/reposcout/internal/contract"
	"github.com/huangsam/reposcout/internal/logger"
	"github.com/huangsam/reposcout/schema"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// systemInstruction frames every request.
const systemInstruction = "You write concise portfolio summaries for software developers. " +
	"Use only the facts provided. Write one paragraph of at most four sentences in plain prose."

const defaultMaxRetries = 2

// contentGenerator is the subset of the genai models API that the summarizer needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiSummarizer implements contract.Summarizer on the Gemini API.
type GeminiSummarizer struct {
	models     contentGenerator
	model      string
	maxRetries uint64
	retryWait  time.Duration
	logger     *zap.Logger
}

var _ contract.Summarizer = (*GeminiSummarizer)(nil)

// NewGeminiSummarizer creates a summarizer for the Gemini API backend.
func NewGeminiSummarizer(ctx context.Context, apiKey, model string, log *zap.Logger) (*GeminiSummarizer, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newSummarizer(client.Models, model, log), nil
}

func newSummarizer(models contentGenerator, model string, log *zap.Logger) *GeminiSummarizer {
	if model = strings.TrimSpace(model); model == "" {
		model = contract.DefaultGeminiModel
	}
	return &GeminiSummarizer{
		models:     models,
		model:      model,
		maxRetries: defaultMaxRetries,
		retryWait:  time.Second,
		logger:     logger.OrNop(log),
	}
}

// Model returns the configured model name.
func (g *GeminiSummarizer) Model() string {
	return g.model
}

// Summarize describes the selected repositories of owner in one paragraph.
func (g *GeminiSummarizer) Summarize(ctx context.Context, owner string, selected []schema.RankedRepository) (string, error) {
	if len(selected) == 0 {
		return "", errors.New("nothing to summarize")
	}
	prompt := BuildPrompt(owner, selected)
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(g.retryWait), g.maxRetries), ctx)
	resp, err := backoff.RetryNotifyWithData(func() (*genai.GenerateContentResponse, error) {
		resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
		if err != nil && !isTemporary(err) {
			return nil, backoff.Permanent(err)
		}
		return resp, err
	}, b, func(err error, wait time.Duration) {
		g.logger.Debug("Retrying summary", zap.String(logger.FieldOwner, owner), zap.Duration("wait", wait), zap.Error(err))
	})
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}

	text := extractText(resp)
	if text == "" {
		return "", errors.New("gemini api returned empty response")
	}
	return text, nil
}

// BuildPrompt lists the facts of each selected repository in rank order.
func BuildPrompt(owner string, selected []schema.RankedRepository) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Summarize the strongest public work of GitHub user %s based on these repositories:\n", owner)
	for i, r := range selected {
		m := r.Metadata
		fmt.Fprintf(&sb, "%d. %s", i+1, m.Name)
		if m.Language != "" {
			fmt.Fprintf(&sb, " (%s)", m.Language)
		}
		if m.Description != "" {
			fmt.Fprintf(&sb, ": %s", contract.TruncateText(strings.TrimSpace(m.Description), 200))
		}
		fmt.Fprintf(&sb, " [score %.1f/%.0f", r.Total, schema.MaxTotalScore)
		if badges := algo.BadgeLabels(r.Badges); badges != "" {
			fmt.Fprintf(&sb, "; %s", badges)
		}
		sb.WriteString("]\n")
	}
	return sb.String()
}

// isTemporary reports whether a Gemini error is worth retrying.
func isTemporary(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code >= http.StatusInternalServerError
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code >= http.StatusInternalServerError
	}
	return false
}

// extractText joins the non-empty text parts of every candidate.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var parts []string
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			if text := strings.TrimSpace(part.Text); text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.Join(parts, "\n")
}
