// internal/github/client_test.go
package github

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github-sync-service/internal/model"
)

// setupTestClient creates a httptest server and a client pointing at it.
func setupTestClient(t *testing.T, handler http.Handler, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := NewClient("", logger, opts...)
	client.retry.BaseDelay = time.Millisecond
	client.retry.MaxDelay = time.Millisecond

	gh := github.NewClient(server.Client())
	baseURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	gh.BaseURL = baseURL
	client.gh = gh

	return client, server
}

// commitPage renders a JSON page of n commit objects with distinct SHAs.
func commitPage(page, n int) string {
	items := make([]string, n)
	for i := range items {
		items[i] = fmt.Sprintf(`{"sha": "sha-%d-%d", "commit": {"author": {"name": "dev", "email": "d@d.com", "date": "2024-01-01T12:00:00Z"}, "message": "m"}}`, page, i)
	}
	return "[" + strings.Join(items, ",") + "]"
}

func linkNext(w http.ResponseWriter, r *http.Request, page int) {
	w.Header().Set("Link", fmt.Sprintf(`<http://%s%s?page=%d>; rel="next"`, r.Host, r.URL.Path, page))
}

func TestClient_ListCommits_EnforcesItemCeiling(t *testing.T) {
	var requests int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		page := 1
		fmt.Sscanf(r.URL.Query().Get("page"), "%d", &page)
		// Pretend the history is endless: every page is full and links on.
		linkNext(w, r, page+1)
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, commitPage(page, pageSize))
	})
	client, _ := setupTestClient(t, handler)

	commits, err := client.ListCommits(context.Background(), "o", "r", time.Time{})

	require.NoError(t, err)
	assert.Len(t, commits, maxCommitItems)
	assert.Equal(t, int32(maxCommitItems/pageSize), atomic.LoadInt32(&requests))
}

func TestClient_ListCommits_ShortPageEndsPagination(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, commitPage(1, 3))
	})
	client, _ := setupTestClient(t, handler)

	commits, err := client.ListCommits(context.Background(), "o", "r", time.Time{})

	require.NoError(t, err)
	assert.Len(t, commits, 3)
	assert.Equal(t, "sha-1-0", commits[0].SHA)
	assert.Equal(t, "dev", commits[0].AuthorName)
}

func TestClient_ListIssues_FiltersPullRequests(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `[
			{"number": 1, "state": "open", "title": "real issue", "user": {"login": "alice"}},
			{"number": 2, "state": "open", "title": "really a PR", "pull_request": {"url": "http://example.com/pr/2"}},
			{"number": 3, "state": "closed", "title": "another issue", "user": {"login": "bob"}, "labels": [{"name": "bug"}]}
		]`)
	})
	client, _ := setupTestClient(t, handler)

	issues, err := client.ListIssues(context.Background(), "o", "r")

	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, 1, issues[0].Number)
	assert.Equal(t, 3, issues[1].Number)
	assert.Equal(t, []string{"bug"}, issues[1].Labels)
}

func TestClient_ListIssueTimeline_PageCeiling(t *testing.T) {
	var requests int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		page := 1
		fmt.Sscanf(r.URL.Query().Get("page"), "%d", &page)
		linkNext(w, r, page+1)
		items := make([]string, pageSize)
		for i := range items {
			items[i] = fmt.Sprintf(`{"id": %d, "event": "labeled", "created_at": "2024-01-01T00:00:00Z"}`, page*1000+i)
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "["+strings.Join(items, ",")+"]")
	})
	client, _ := setupTestClient(t, handler)

	events, err := client.ListIssueTimeline(context.Background(), "o", "r", 1)

	require.NoError(t, err)
	assert.Len(t, events, maxTimelinePages*pageSize)
	assert.Equal(t, int32(maxTimelinePages), atomic.LoadInt32(&requests))
}

func TestClient_Listing_RetriesTransientErrors(t *testing.T) {
	var requests int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `[{"id": 7, "login": "acme"}]`)
	})
	client, _ := setupTestClient(t, handler)

	orgs, err := client.ListOrganizations(context.Background())

	require.NoError(t, err)
	require.Len(t, orgs, 1)
	assert.Equal(t, int64(7), orgs[0].GithubOrgID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
}

func TestClient_Listing_DoesNotRetryAuthErrors(t *testing.T) {
	var requests int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message": "Bad credentials"}`)
	})
	client, _ := setupTestClient(t, handler)

	_, err := client.ListOrganizations(context.Background())

	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

func TestClient_RecordsRateLimitHeaders(t *testing.T) {
	reset := time.Now().Add(20 * time.Minute).Unix()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Limit", "5000")
		w.Header().Set("X-RateLimit-Remaining", "4321")
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", reset))
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"id": 1, "login": "me"}`)
	})

	var recorded []model.RateLimit
	client, _ := setupTestClient(t, handler, WithRateLimitRecorder(func(rl model.RateLimit) {
		recorded = append(recorded, rl)
	}))

	_, err := client.AuthenticatedUser(context.Background())

	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, 5000, recorded[0].Limit)
	assert.Equal(t, 4321, recorded[0].Remaining)
	assert.Equal(t, 5000-4321, recorded[0].Used)
	assert.Equal(t, reset, recorded[0].Reset.Unix())
}

func TestRetryable_Classification(t *testing.T) {
	respErr := func(code int) error {
		return &github.ErrorResponse{Response: &http.Response{StatusCode: code, Request: &http.Request{}}}
	}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"401 unauthorized", respErr(http.StatusUnauthorized), false},
		{"403 forbidden", respErr(http.StatusForbidden), false},
		{"404 not found", respErr(http.StatusNotFound), false},
		{"408 request timeout", respErr(http.StatusRequestTimeout), true},
		{"429 too many requests", respErr(http.StatusTooManyRequests), true},
		{"500 internal", respErr(http.StatusInternalServerError), true},
		{"502 bad gateway", respErr(http.StatusBadGateway), true},
		{"503 unavailable", respErr(http.StatusServiceUnavailable), true},
		{"504 gateway timeout", respErr(http.StatusGatewayTimeout), true},
		{"connection reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"unexpected EOF", io.ErrUnexpectedEOF, true},
		{"context canceled", context.Canceled, false},
		{"primary rate limit", &github.RateLimitError{Response: &http.Response{StatusCode: http.StatusForbidden, Request: &http.Request{}}}, false},
		{"secondary rate limit", &github.AbuseRateLimitError{Response: &http.Response{StatusCode: http.StatusTooManyRequests, Request: &http.Request{}}}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Retryable(tc.err))
		})
	}
}
