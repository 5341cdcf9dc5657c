package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/otherjamesbrown/meetsync/credentials"
	mserrors "github.com/otherjamesbrown/meetsync/pkg/errors"
	"github.com/otherjamesbrown/meetsync/pkg/logging"
)

// TokenSource supplies bearer tokens for upstream requests and supports
// explicit invalidation after the upstream rejects one.
type TokenSource interface {
	GetToken(ctx context.Context) (credentials.Token, error)
	Invalidate()
}

// ClientOptions configures the upstream Client.
type ClientOptions struct {
	// BaseURL is the REST API base URL, without a trailing slash.
	BaseURL string

	// PageSize caps the page size for paginated listings.
	PageSize int

	// MaxWindowSpan is the maximum date span the upstream accepts for a
	// single report query.
	MaxWindowSpan time.Duration

	// PageDelay is the pause between successive pages of one listing.
	PageDelay time.Duration

	// Retry is the policy applied to every outbound call.
	Retry RetryPolicy

	// HTTPClient is the transport. Defaults to a client with a 60s timeout.
	HTTPClient *http.Client
}

// Client is the authenticated fetch engine for the meeting platform API.
type Client struct {
	opts   ClientOptions
	tokens TokenSource
	http   *http.Client
	logger logging.Logger

	// sleep is replaceable in tests so backoff and page delays don't slow
	// the suite down.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates an upstream Client.
func NewClient(opts ClientOptions, tokens TokenSource, logger logging.Logger) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 300
	}
	if opts.MaxWindowSpan <= 0 {
		opts.MaxWindowSpan = 30 * 24 * time.Hour
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Client{
		opts:   opts,
		tokens: tokens,
		http:   opts.HTTPClient,
		logger: logger.With(logging.F("component", "upstream")),
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// get performs one authenticated GET with the retry policy applied:
// transient failures (5xx, 429, network) retry with exponential backoff up to
// the policy budget; a 401 invalidates the token and retries once with a
// fresh one, outside that budget; other 4xx surface immediately.
func (c *Client) get(ctx context.Context, op, rawURL string) ([]byte, error) {
	var lastStatus int
	var lastErr error
	reauthed := false

	for attempt := 0; attempt < c.opts.Retry.MaxAttempts; {
		tok, err := c.tokens.GetToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("%s: building request: %w", op, err)
		}
		req.Header.Set("Authorization", "Bearer "+tok.Value)

		resp, err := c.http.Do(req)
		if err != nil {
			c.logger.Warn("request failed, retrying",
				logging.F("op", op), logging.F("attempt", attempt), logging.Err(err))
			attempt++
			lastStatus = 0
			lastErr = err
			if attempt < c.opts.Retry.MaxAttempts {
				if err := c.sleep(ctx, c.opts.Retry.Backoff(attempt-1)); err != nil {
					return nil, err
				}
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if readErr != nil {
				return nil, fmt.Errorf("%s: reading response: %w", op, readErr)
			}
			return body, nil

		case resp.StatusCode == http.StatusUnauthorized:
			if reauthed {
				return nil, fmt.Errorf("%s: token rejected twice: %w", op, mserrors.ErrAuth)
			}
			reauthed = true
			c.tokens.Invalidate()
			c.logger.Debug("token rejected, re-authenticating", logging.F("op", op))
			continue

		case resp.StatusCode == http.StatusTooManyRequests:
			delay := c.opts.Retry.Backoff(attempt)
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					delay = time.Duration(secs) * time.Second
				}
			}
			attempt++
			lastStatus = resp.StatusCode
			if attempt < c.opts.Retry.MaxAttempts {
				c.logger.Warn("rate limited", logging.F("op", op), logging.F("delay", delay))
				if err := c.sleep(ctx, delay); err != nil {
					return nil, err
				}
			}
			continue

		case resp.StatusCode >= 500:
			attempt++
			lastStatus = resp.StatusCode
			if attempt < c.opts.Retry.MaxAttempts {
				c.logger.Warn("server error, retrying",
					logging.F("op", op), logging.F("status", resp.StatusCode))
				if err := c.sleep(ctx, c.opts.Retry.Backoff(attempt-1)); err != nil {
					return nil, err
				}
			}
			continue

		default:
			return nil, mserrors.NewUpstreamError(op, resp.StatusCode, false)
		}
	}

	if lastStatus == 0 {
		return nil, fmt.Errorf("%s: retries exhausted: %w", op, lastErr)
	}
	return nil, mserrors.NewUpstreamError(op, lastStatus, true)
}

// ListRecordings returns all cloud recordings for the user within the window,
// following the pagination cursor until the upstream stops returning one.
func (c *Client) ListRecordings(ctx context.Context, userID string, window DateWindow) ([]Recording, error) {
	from, to := window.queryDates()

	var out []Recording
	pageToken := ""
	for {
		q := url.Values{}
		q.Set("from", from)
		q.Set("to", to)
		q.Set("page_size", strconv.Itoa(c.opts.PageSize))
		if pageToken != "" {
			q.Set("next_page_token", pageToken)
		}

		rawURL := fmt.Sprintf("%s/users/%s/recordings?%s",
			c.opts.BaseURL, url.PathEscape(userID), q.Encode())

		body, err := c.get(ctx, "list recordings", rawURL)
		if err != nil {
			return nil, err
		}

		var page recordingsPage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("list recordings: decoding page: %w", err)
		}

		for _, m := range page.Meetings {
			out = append(out, m.toRecording())
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
		if err := c.sleep(ctx, c.opts.PageDelay); err != nil {
			return nil, err
		}
	}

	c.logger.Debug("recordings listed",
		logging.F("from", from), logging.F("to", to), logging.F("count", len(out)))
	return out, nil
}

// ListMeetingReports returns past-meeting report entries for the user within
// the window. The upstream limits a single report query to MaxWindowSpan, so
// the window is split into contiguous sub-windows first; each is paginated
// independently and results are concatenated in discovery order.
func (c *Client) ListMeetingReports(ctx context.Context, userID string, window DateWindow) ([]MeetingRef, error) {
	var out []MeetingRef
	for _, chunk := range window.Chunks(c.opts.MaxWindowSpan) {
		if chunk.IsEmpty() {
			continue
		}
		refs, err := c.listReportChunk(ctx, userID, chunk)
		if err != nil {
			return nil, err
		}
		out = append(out, refs...)
	}
	return out, nil
}

func (c *Client) listReportChunk(ctx context.Context, userID string, window DateWindow) ([]MeetingRef, error) {
	from, to := window.queryDates()

	var out []MeetingRef
	pageToken := ""
	for {
		q := url.Values{}
		q.Set("from", from)
		q.Set("to", to)
		q.Set("page_size", strconv.Itoa(c.opts.PageSize))
		if pageToken != "" {
			q.Set("next_page_token", pageToken)
		}

		rawURL := fmt.Sprintf("%s/report/users/%s/meetings?%s",
			c.opts.BaseURL, url.PathEscape(userID), q.Encode())

		body, err := c.get(ctx, "list meeting reports", rawURL)
		if err != nil {
			return nil, err
		}

		var page reportPage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("list meeting reports: decoding page: %w", err)
		}

		for _, m := range page.Meetings {
			out = append(out, m.toRef())
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
		if err := c.sleep(ctx, c.opts.PageDelay); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// GetMeetingSummary fetches the AI-generated summary for a meeting.
// A 404 means no summary exists; it surfaces as a non-retryable UpstreamError
// with that status, which callers treat as "use the transcript path".
func (c *Client) GetMeetingSummary(ctx context.Context, meetingUUID string) (*MeetingSummary, error) {
	rawURL := fmt.Sprintf("%s/meetings/%s/meeting_summary",
		c.opts.BaseURL, url.PathEscape(meetingUUID))

	body, err := c.get(ctx, "get meeting summary", rawURL)
	if err != nil {
		return nil, err
	}

	var sum MeetingSummary
	if err := json.Unmarshal(body, &sum); err != nil {
		return nil, fmt.Errorf("get meeting summary: decoding: %w", err)
	}
	return &sum, nil
}

// Download retrieves a recording artifact by its absolute URL.
// On a 401 it invalidates the token, re-acquires one, and retries the request
// exactly once; a second 401 propagates as an auth failure.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	body, err := c.downloadOnce(ctx, rawURL)
	if err == nil {
		return body, nil
	}

	if ue, ok := mserrors.AsUpstream(err); !ok || ue.Status != http.StatusUnauthorized {
		return nil, err
	}

	c.tokens.Invalidate()
	body, err = c.downloadOnce(ctx, rawURL)
	if err != nil {
		if ue, ok := mserrors.AsUpstream(err); ok && ue.Status == http.StatusUnauthorized {
			return nil, fmt.Errorf("download: token rejected twice: %w", mserrors.ErrAuth)
		}
		return nil, err
	}
	return body, nil
}

func (c *Client) downloadOnce(ctx context.Context, rawURL string) ([]byte, error) {
	tok, err := c.tokens.GetToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("download: building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok.Value)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, mserrors.NewUpstreamError("download", resp.StatusCode, resp.StatusCode >= 500)
	}

	return io.ReadAll(resp.Body)
}
