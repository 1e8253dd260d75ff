package summary

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/huangsam/reposcout/internal/contract"
	"github.com/huangsam/reposcout/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

type fakeGenerator struct {
	mu      sync.Mutex
	queue   []fakeResponse
	models  []string
	prompts []string
	configs []*genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.models = append(f.models, model)
	f.configs = append(f.configs, config)
	for _, c := range contents {
		for _, p := range c.Parts {
			f.prompts = append(f.prompts, p.Text)
		}
	}
	if len(f.queue) == 0 {
		return nil, errors.New("unexpected call")
	}
	next := f.queue[0]
	f.queue = f.queue[1:]
	return next.resp, next.err
}

func textResponse(texts ...string) *genai.GenerateContentResponse {
	parts := make([]*genai.Part, 0, len(texts))
	for _, t := range texts {
		parts = append(parts, &genai.Part{Text: t})
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: parts}}}}
}

func selection() []schema.RankedRepository {
	return []schema.RankedRepository{
		{
			Metadata: schema.RepositoryMetadata{Name: "api-server", Language: "Go", Description: "REST API for invoices"},
			Total:    72.5,
			Badges:   []schema.Badge{{Kind: schema.BadgeStars, Label: "★ 40"}, {Kind: schema.BadgeCI, Label: "CI"}},
		},
		{
			Metadata: schema.RepositoryMetadata{Name: "notes"},
			Total:    41,
		},
	}
}

func newTestSummarizer(gen *fakeGenerator) *GeminiSummarizer {
	s := newSummarizer(gen, "", nil)
	s.retryWait = time.Millisecond
	return s
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("octocat", selection())
	assert.Contains(t, prompt, "GitHub user octocat")
	assert.Contains(t, prompt, "1. api-server (Go): REST API for invoices [score 72.5/100; ★ 40, CI]")
	assert.Contains(t, prompt, "2. notes [score 41.0/100]")
}

func TestSummarize(t *testing.T) {
	gen := &fakeGenerator{queue: []fakeResponse{{resp: textResponse("  Builds APIs.  ", "", "Ships often.")}}}
	s := newTestSummarizer(gen)

	text, err := s.Summarize(context.Background(), "octocat", selection())
	require.NoError(t, err)
	assert.Equal(t, "Builds APIs.\nShips often.", text)
	assert.Equal(t, []string{contract.DefaultGeminiModel}, gen.models)
	require.Len(t, gen.configs, 1)
	assert.Equal(t, systemInstruction, gen.configs[0].SystemInstruction.Parts[0].Text)
	assert.Contains(t, gen.prompts[0], "api-server")
}

func TestSummarizeRetriesServerErrors(t *testing.T) {
	gen := &fakeGenerator{queue: []fakeResponse{
		{err: genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}},
		{resp: textResponse("retry ok")},
	}}
	text, err := newTestSummarizer(gen).Summarize(context.Background(), "octocat", selection())
	require.NoError(t, err)
	assert.Equal(t, "retry ok", text)
	assert.Len(t, gen.models, 2)
}

func TestSummarizeStopsAfterRetries(t *testing.T) {
	tempErr := genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"}
	gen := &fakeGenerator{queue: []fakeResponse{{err: tempErr}, {err: tempErr}, {err: tempErr}}}
	_, err := newTestSummarizer(gen).Summarize(context.Background(), "octocat", selection())
	require.Error(t, err)
	assert.Len(t, gen.models, defaultMaxRetries+1)
}

func TestSummarizeDoesNotRetryClientErrors(t *testing.T) {
	gen := &fakeGenerator{queue: []fakeResponse{
		{err: genai.APIError{Code: http.StatusTooManyRequests, Status: "RESOURCE_EXHAUSTED"}},
	}}
	_, err := newTestSummarizer(gen).Summarize(context.Background(), "octocat", selection())
	require.Error(t, err)
	assert.Len(t, gen.models, 1)
}

func TestSummarizeEmptyInputs(t *testing.T) {
	gen := &fakeGenerator{queue: []fakeResponse{{resp: textResponse("   ")}}}
	s := newTestSummarizer(gen)

	_, err := s.Summarize(context.Background(), "octocat", nil)
	require.Error(t, err)
	assert.Empty(t, gen.models)

	_, err = s.Summarize(context.Background(), "octocat", selection())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty response")
}

func TestNewGeminiSummarizerRequiresKey(t *testing.T) {
	_, err := NewGeminiSummarizer(context.Background(), "  ", "", nil)
	assert.Error(t, err)
}

func TestExtractTextNil(t *testing.T) {
	assert.Empty(t, extractText(nil))
	assert.Empty(t, extractText(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{nil, {}}}))
}
