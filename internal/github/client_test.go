package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/huangsam/reposcout/internal/contract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.Handler, mutate ...func(*contract.Config)) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &contract.Config{
		APIURL:       srv.URL,
		GitHubToken:  "ghp_test",
		FetchTimeout: 2 * time.Second,
		MaxRetries:   2,
	}
	for _, m := range mutate {
		m(cfg)
	}
	return NewClient(cfg, zap.NewNop(), WithRetryWait(time.Millisecond))
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestGetRepositoryMetadata(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/api", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer ghp_test", r.Header.Get("Authorization"))
		assert.Equal(t, jsonAccept, r.Header.Get("Accept"))
		writeJSON(t, w, map[string]any{
			"name": "api", "full_name": "octo/api", "default_branch": "main",
			"stargazers_count": 42, "forks_count": 3, "size": 512,
			"archived": false, "fork": true, "pushed_at": "2026-05-20T10:00:00Z",
			"topics": []string{"go", "cli"},
		})
	})
	client := newTestClient(t, mux)

	meta, err := client.GetRepositoryMetadata(context.Background(), "octo", "api")
	require.NoError(t, err)
	assert.Equal(t, "api", meta.Name)
	assert.Equal(t, 42, meta.Stars)
	assert.Equal(t, int64(512), meta.SizeKB)
	assert.True(t, meta.IsFork)
	assert.Equal(t, time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC), meta.PushedAt)
	assert.Equal(t, []string{"go", "cli"}, meta.Topics)
}

func TestNotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.NotFound(w, nil)
	}))

	_, err := client.GetRepositoryMetadata(context.Background(), "octo", "gone")
	require.Error(t, err)
	assert.ErrorIs(t, err, contract.ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRateLimitSurfacesImmediately(t *testing.T) {
	for _, status := range []int{http.StatusForbidden, http.StatusTooManyRequests} {
		var calls atomic.Int32
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.Header().Set("X-RateLimit-Reset", "1780000000")
			w.WriteHeader(status)
		}))

		_, err := client.GetLanguageBytes(context.Background(), "octo", "api")
		require.Error(t, err)
		assert.ErrorIs(t, err, contract.ErrRateLimited)
		assert.True(t, contract.IsRetryable(err))
		assert.Contains(t, err.Error(), "resets at")
		assert.Equal(t, int32(1), calls.Load(), "status %d", status)
	}
}

func TestServerErrorsAreRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(t, w, map[string]int64{"Go": 1000})
	}))

	langs, err := client.GetLanguageBytes(context.Background(), "octo", "api")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), langs["Go"])
	assert.Equal(t, int32(3), calls.Load())
}

func TestServerErrorsExhaustRetries(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}), func(cfg *contract.Config) { cfg.MaxRetries = 1 })

	_, err := client.GetLanguageBytes(context.Background(), "octo", "api")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
	assert.Equal(t, int32(2), calls.Load(), "one try plus one retry")
}

func TestTimeoutIsRetryable(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}), func(cfg *contract.Config) {
		cfg.FetchTimeout = 20 * time.Millisecond
		cfg.MaxRetries = 0
	})

	_, err := client.GetReadme(context.Background(), "octo", "api")
	require.Error(t, err)
	assert.ErrorIs(t, err, contract.ErrFetchTimeout)
	assert.True(t, contract.IsRetryable(err))
}

func TestCanceledContextStops(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.GetTree(ctx, "octo", "api")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetTree(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/api/git/trees/HEAD", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("recursive"))
		writeJSON(t, w, map[string]any{
			"tree": []map[string]any{
				{"path": "cmd", "type": "tree", "sha": "d1"},
				{"path": "cmd/main.go", "type": "blob", "size": 120, "sha": "b1"},
			},
			"truncated": false,
		})
	})
	client := newTestClient(t, mux)

	entries, err := client.GetTree(context.Background(), "octo", "api")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.False(t, entries[0].IsBlob())
	assert.Equal(t, "cmd/main.go", entries[1].Path)
	assert.Equal(t, int64(120), entries[1].Size)
	assert.Equal(t, "b1", entries[1].SHA)
}

func TestGetFileContentRaw(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octo/api/contents/docs/my file.md", r.URL.Path)
		assert.Equal(t, rawAccept, r.Header.Get("Accept"))
		_, _ = w.Write([]byte("# hello"))
	}))

	data, err := client.GetFileContent(context.Background(), "octo", "api", "docs/my file.md")
	require.NoError(t, err)
	assert.Equal(t, "# hello", string(data))
}

func TestCountsFromLinkHeader(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/api/releases", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("per_page"))
		w.Header().Set("Link", `<https://api.github.com/repositories/1/releases?per_page=1&page=2>; rel="next", <https://api.github.com/repositories/1/releases?per_page=1&page=17>; rel="last"`)
		writeJSON(t, w, []map[string]any{{"id": 1}})
	})
	mux.HandleFunc("/repos/octo/api/pulls", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "open", r.URL.Query().Get("state"))
		writeJSON(t, w, []map[string]any{{"id": 9}})
	})
	mux.HandleFunc("/repos/octo/empty/releases", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, []map[string]any{})
	})
	client := newTestClient(t, mux)

	n, err := client.CountReleases(context.Background(), "octo", "api")
	require.NoError(t, err)
	assert.Equal(t, 17, n)

	n, err = client.CountOpenPulls(context.Background(), "octo", "api")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = client.CountReleases(context.Background(), "octo", "empty")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListRecentCommits(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/api/commits", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("per_page"))
		writeJSON(t, w, []map[string]any{{
			"sha": "abc",
			"commit": map[string]any{
				"message": "Fix parser\n\nLong body",
				"author":  map[string]any{"name": "Dev", "date": "2026-05-30T08:00:00Z"},
			},
		}})
	})
	mux.HandleFunc("/repos/octo/empty/commits", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})
	client := newTestClient(t, mux)

	commits, err := client.ListRecentCommits(context.Background(), "octo", "api", 5)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, "Fix parser", commits[0].Message)
	assert.Equal(t, "Dev", commits[0].Author)

	commits, err = client.ListRecentCommits(context.Background(), "octo", "empty", 5)
	require.NoError(t, err)
	assert.Empty(t, commits)
}

func TestListUserRepositoriesPaginates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/octo/repos", func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		var batch []map[string]any
		count := reposPerPage
		if page == "2" {
			count = 3
		}
		for i := range count {
			batch = append(batch, map[string]any{"name": page + "-" + string(rune('a'+i%26))})
		}
		writeJSON(t, w, batch)
	})
	client := newTestClient(t, mux)

	repos, err := client.ListUserRepositories(context.Background(), "octo")
	require.NoError(t, err)
	assert.Len(t, repos, reposPerPage+3)
}

func TestUnexpectedStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Bad credentials"}`))
	}))

	_, err := client.GetLanguageBytes(context.Background(), "octo", "api")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Bad credentials")
	assert.False(t, contract.IsRetryable(err))
}

func TestRateLimitReset(t *testing.T) {
	h := http.Header{}
	assert.Empty(t, rateLimitReset(h))
	h.Set("Retry-After", "60")
	assert.Equal(t, ", retry after 60s", rateLimitReset(h))
}

func TestEscapePath(t *testing.T) {
	assert.Equal(t, "a%20b/c%23d.go", escapePath("/a b/c#d.go"))
}
