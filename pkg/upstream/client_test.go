package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/meetsync/credentials"
	mserrors "github.com/otherjamesbrown/meetsync/pkg/errors"
	"github.com/otherjamesbrown/meetsync/pkg/logging"
)

// fakeTokens is a TokenSource that counts refreshes.
type fakeTokens struct {
	refreshes int64
	value     string
	valid     atomic.Bool
}

func newFakeTokens() *fakeTokens {
	f := &fakeTokens{value: "tok-1"}
	return f
}

func (f *fakeTokens) GetToken(ctx context.Context) (credentials.Token, error) {
	if !f.valid.Load() {
		atomic.AddInt64(&f.refreshes, 1)
		f.valid.Store(true)
	}
	return credentials.Token{Value: f.value, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakeTokens) Invalidate() {
	f.valid.Store(false)
}

func newTestClient(srv *httptest.Server, tokens TokenSource) *Client {
	c := NewClient(ClientOptions{
		BaseURL:       srv.URL,
		PageSize:      300,
		MaxWindowSpan: 30 * 24 * time.Hour,
		Retry: RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     time.Millisecond,
			BackoffFactor:  1.0,
		},
		HTTPClient: srv.Client(),
	}, tokens, logging.NewNopLogger())
	c.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return c
}

func TestListRecordings_FollowsPagination(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&calls, 1)
		assert.Equal(t, "/users/me/recordings", r.URL.Path)
		assert.Equal(t, "300", r.URL.Query().Get("page_size"))

		w.Header().Set("Content-Type", "application/json")
		if n == 1 {
			assert.Empty(t, r.URL.Query().Get("next_page_token"))
			w.Write([]byte(`{"next_page_token":"p2","meetings":[
				{"uuid":"u1","id":1,"topic":"Standup","start_time":"2025-01-02T10:00:00Z","duration":30,
				 "recording_files":[{"id":"f1","file_type":"TRANSCRIPT","download_url":"https://dl/f1"}]}]}`))
			return
		}
		assert.Equal(t, "p2", r.URL.Query().Get("next_page_token"))
		w.Write([]byte(`{"meetings":[
			{"uuid":"u2","id":2,"topic":"Retro","start_time":"2025-01-03T10:00:00Z","duration":45,
			 "recording_files":[]}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv, newFakeTokens())
	recs, err := c.ListRecordings(context.Background(), "me", DateWindow{From: day(0), To: day(10)})
	require.NoError(t, err)

	require.Len(t, recs, 2)
	assert.Equal(t, "u1", recs[0].Ref.UUID)
	assert.Equal(t, 1800, recs[0].Ref.DurationSeconds)
	tf, ok := recs[0].TranscriptFile()
	require.True(t, ok)
	assert.Equal(t, "https://dl/f1", tf.DownloadURL)
	assert.Equal(t, "u2", recs[1].Ref.UUID)
	assert.Equal(t, int64(2), atomic.LoadInt64(&calls))
}

func TestListRecordings_EmptyWindowResult(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.Write([]byte(`{"meetings":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv, newFakeTokens())
	recs, err := c.ListRecordings(context.Background(), "me", DateWindow{From: day(0), To: day(1)})
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestListMeetingReports_ChunksLongWindows(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		assert.Equal(t, "/report/users/me/meetings", r.URL.Path)
		w.Write([]byte(`{"meetings":[{"uuid":"u` + r.URL.Query().Get("from") +
			`","id":1,"topic":"t","start_time":"2025-01-02T10:00:00Z","duration":30}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv, newFakeTokens())

	// 90 days with a 30-day cap: three chunked queries, results concatenated
	// in discovery order.
	refs, err := c.ListMeetingReports(context.Background(), "me", DateWindow{From: day(0), To: day(90)})
	require.NoError(t, err)
	assert.Len(t, refs, 3)
	assert.Equal(t, int64(3), atomic.LoadInt64(&calls))
}

func TestListMeetingReports_DefaultsWindowSpan(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.Write([]byte(`{"meetings":[]}`))
	}))
	defer srv.Close()

	// No MaxWindowSpan configured: the client must fall back to the
	// upstream's 30-day cap rather than degenerate chunking.
	c := NewClient(ClientOptions{
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	}, newFakeTokens(), logging.NewNopLogger())
	c.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	refs, err := c.ListMeetingReports(context.Background(), "me", DateWindow{From: day(0), To: day(90)})
	require.NoError(t, err)
	assert.Empty(t, refs)
	assert.Equal(t, int64(3), atomic.LoadInt64(&calls))
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) < 3 {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"meetings":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv, newFakeTokens())
	_, err := c.ListRecordings(context.Background(), "me", DateWindow{From: day(0), To: day(1)})
	require.NoError(t, err)
	assert.Equal(t, int64(3), atomic.LoadInt64(&calls))
}

func TestGet_ExhaustsRetryBudget(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv, newFakeTokens())
	_, err := c.ListRecordings(context.Background(), "me", DateWindow{From: day(0), To: day(1)})
	require.Error(t, err)

	ue, ok := mserrors.AsUpstream(err)
	require.True(t, ok)
	assert.True(t, ue.Retryable)
	assert.Equal(t, http.StatusInternalServerError, ue.Status)
	assert.Equal(t, int64(3), atomic.LoadInt64(&calls))
}

func TestGet_ExhaustedNetworkFailureKeepsCause(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := newTestClient(srv, newFakeTokens())
	_, err := c.ListRecordings(context.Background(), "me", DateWindow{From: day(0), To: day(1)})
	require.Error(t, err)

	// Network-level exhaustion keeps the transport error as the cause
	// instead of reporting a fabricated HTTP status.
	_, ok := mserrors.AsUpstream(err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "retries exhausted")
	assert.NotContains(t, err.Error(), "status 0")
}

func TestGet_DoesNotRetryClientErrors(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(srv, newFakeTokens())
	_, err := c.GetMeetingSummary(context.Background(), "uuid-1")
	require.Error(t, err)

	ue, ok := mserrors.AsUpstream(err)
	require.True(t, ok)
	assert.False(t, ue.Retryable)
	assert.Equal(t, http.StatusNotFound, ue.Status)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestGet_HonorsRetryAfter(t *testing.T) {
	var calls int64
	var sleeps []time.Duration
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "7")
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"meetings":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv, newFakeTokens())
	c.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}

	_, err := c.ListRecordings(context.Background(), "me", DateWindow{From: day(0), To: day(1)})
	require.NoError(t, err)
	require.NotEmpty(t, sleeps)
	assert.Equal(t, 7*time.Second, sleeps[0])
}

func TestDownload_RecoversFromSingle401(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) == 1 {
			http.Error(w, "expired", http.StatusUnauthorized)
			return
		}
		w.Write([]byte("WEBVTT\n"))
	}))
	defer srv.Close()

	tokens := newFakeTokens()
	c := newTestClient(srv, tokens)

	// Prime the token so the 401 forces exactly one extra refresh.
	_, err := tokens.GetToken(context.Background())
	require.NoError(t, err)

	body, err := c.Download(context.Background(), srv.URL+"/file")
	require.NoError(t, err)
	assert.Equal(t, "WEBVTT\n", string(body))
	assert.Equal(t, int64(2), atomic.LoadInt64(&calls))
	assert.Equal(t, int64(2), atomic.LoadInt64(&tokens.refreshes))
}

func TestDownload_SecondUnauthorizedIsAuthError(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		http.Error(w, "expired", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(srv, newFakeTokens())
	_, err := c.Download(context.Background(), srv.URL+"/file")
	require.Error(t, err)
	assert.True(t, mserrors.IsAuth(err))
	assert.Equal(t, int64(2), atomic.LoadInt64(&calls))
}
