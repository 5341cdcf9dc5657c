package credentials

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mserrors "github.com/otherjamesbrown/meetsync/pkg/errors"
)

func newAuthServer(t *testing.T, calls *int64, expiresIn int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(calls, 1)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "client-1", user)
		assert.Equal(t, "s3cret", pass)
		assert.Equal(t, "account_credentials", r.URL.Query().Get("grant_type"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok-abc","token_type":"bearer","expires_in":` +
			strconv.Itoa(expiresIn) + `}`))
	}))
}

func newManagerForServer(srv *httptest.Server, now func() time.Time) *Manager {
	return NewManager(ManagerConfig{
		AuthURL:      srv.URL,
		AccountID:    "acct-1",
		ClientID:     "client-1",
		ClientSecret: "s3cret",
		HTTPClient:   srv.Client(),
		Now:          now,
	})
}

func TestGetToken_ReusesCachedToken(t *testing.T) {
	var calls int64
	srv := newAuthServer(t, &calls, 3600)
	defer srv.Close()

	m := newManagerForServer(srv, nil)

	tok1, err := m.GetToken(context.Background())
	require.NoError(t, err)
	tok2, err := m.GetToken(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "tok-abc", tok1.Value)
	assert.Equal(t, tok1, tok2)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestGetToken_RefreshesAfterExpiry(t *testing.T) {
	var calls int64
	// 61s lifetime minus the 60s margin leaves a 1s usable window.
	srv := newAuthServer(t, &calls, 61)
	defer srv.Close()

	clock := time.Now()
	m := newManagerForServer(srv, func() time.Time { return clock })

	_, err := m.GetToken(context.Background())
	require.NoError(t, err)
	_, err = m.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))

	clock = clock.Add(2 * time.Second)
	_, err = m.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&calls))
}

func TestInvalidate_ForcesRefresh(t *testing.T) {
	var calls int64
	srv := newAuthServer(t, &calls, 3600)
	defer srv.Close()

	m := newManagerForServer(srv, nil)

	_, err := m.GetToken(context.Background())
	require.NoError(t, err)

	m.Invalidate()

	_, err = m.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&calls))
}

func TestGetToken_SingleFlightUnderConcurrency(t *testing.T) {
	var calls int64
	srv := newAuthServer(t, &calls, 3600)
	defer srv.Close()

	m := newManagerForServer(srv, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := m.GetToken(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "tok-abc", tok.Value)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestGetToken_RejectedCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"reason":"invalid client"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	m := NewManager(ManagerConfig{
		AuthURL:      srv.URL,
		AccountID:    "acct-1",
		ClientID:     "client-1",
		ClientSecret: "wrong",
		HTTPClient:   srv.Client(),
	})

	_, err := m.GetToken(context.Background())
	require.Error(t, err)
	assert.True(t, mserrors.IsAuth(err))
}

func TestTokenValid(t *testing.T) {
	now := time.Now()
	assert.False(t, Token{}.Valid(now))
	assert.True(t, Token{Value: "t", ExpiresAt: now.Add(time.Minute)}.Valid(now))
	assert.False(t, Token{Value: "t", ExpiresAt: now.Add(-time.Second)}.Valid(now))
}
