package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/meetsync/pkg/archive"
	mserrors "github.com/otherjamesbrown/meetsync/pkg/errors"
	"github.com/otherjamesbrown/meetsync/pkg/state"
	"github.com/otherjamesbrown/meetsync/pkg/transcript"
	"github.com/otherjamesbrown/meetsync/pkg/upstream"
)

type fakeFetcher struct {
	recordings []upstream.Recording
	listErr    error

	summaries   map[string]*upstream.MeetingSummary
	summaryErrs map[string]error

	downloads    map[string]string
	downloadErrs map[string]error
}

func (f *fakeFetcher) ListRecordings(ctx context.Context, userID string, window upstream.DateWindow) ([]upstream.Recording, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.recordings, nil
}

func (f *fakeFetcher) GetMeetingSummary(ctx context.Context, meetingUUID string) (*upstream.MeetingSummary, error) {
	if err, ok := f.summaryErrs[meetingUUID]; ok {
		return nil, err
	}
	if sum, ok := f.summaries[meetingUUID]; ok {
		return sum, nil
	}
	return nil, mserrors.NewUpstreamError("get meeting summary", http.StatusNotFound, false)
}

func (f *fakeFetcher) Download(ctx context.Context, rawURL string) ([]byte, error) {
	if err, ok := f.downloadErrs[rawURL]; ok {
		return nil, err
	}
	if body, ok := f.downloads[rawURL]; ok {
		return []byte(body), nil
	}
	return nil, mserrors.NewUpstreamError("download", http.StatusNotFound, false)
}

func meetingWithTranscript(uuid, topic, url string) upstream.Recording {
	return upstream.Recording{
		Ref: upstream.MeetingRef{
			UUID:      uuid,
			ID:        1000,
			Topic:     topic,
			StartTime: time.Date(2025, 6, 3, 10, 0, 0, 0, time.UTC),
		},
		Files: []upstream.RecordingFile{
			{ID: "f-" + uuid, FileType: upstream.FileTypeTranscript, DownloadURL: url},
		},
	}
}

const sampleCaptions = "1\n00:00:01.000 --> 00:00:03.000\nAlice: I will send the notes by Friday\n\n"

func newTestPipeline(t *testing.T, fetcher Fetcher, opts Options) (*Pipeline, *state.Store, *archive.Writer) {
	t.Helper()

	store := state.NewStore(filepath.Join(t.TempDir(), "state.json"), 28*24*time.Hour, nil)
	require.NoError(t, store.Load())
	writer := archive.NewWriter(t.TempDir(), nil)

	if opts.UserID == "" {
		opts.UserID = "me"
	}
	return New(opts, fetcher, writer, store, nil, nil, nil), store, writer
}

func TestRunOnce_TranscriptPath(t *testing.T) {
	fetcher := &fakeFetcher{
		recordings: []upstream.Recording{meetingWithTranscript("u1", "Standup", "https://dl/u1")},
		downloads:  map[string]string{"https://dl/u1": sampleCaptions},
	}
	p, store, _ := newTestPipeline(t, fetcher, Options{ExtractActionItems: true})

	res, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, 0, res.Errored)
	assert.Equal(t, state.StatusSuccess, res.Status)

	assert.True(t, store.IsProcessed("u1"))
	snap := store.Snapshot()
	entry := snap.ProcessedEntries["u1"]
	assert.NotEmpty(t, entry.OutputLocation)
	assert.NotEmpty(t, entry.ContentHash)
}

func TestRunOnce_SummaryPathPreferred(t *testing.T) {
	fetcher := &fakeFetcher{
		recordings: []upstream.Recording{meetingWithTranscript("u1", "Planning", "https://dl/u1")},
		summaries: map[string]*upstream.MeetingSummary{
			"u1": {
				MeetingUUID: "u1",
				Overview:    "Planned the quarter",
				Details:     []upstream.SummarySection{{Label: "Roadmap", Summary: "Q3 agreed"}},
				NextSteps:   []string{"Alice to publish the plan"},
			},
		},
	}
	p, store, _ := newTestPipeline(t, fetcher, Options{})

	res, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.True(t, store.IsProcessed("u1"))
}

func TestRunOnce_SecondRunIsIdempotent(t *testing.T) {
	fetcher := &fakeFetcher{
		recordings: []upstream.Recording{meetingWithTranscript("u1", "Standup", "https://dl/u1")},
		downloads:  map[string]string{"https://dl/u1": sampleCaptions},
	}
	p, store, _ := newTestPipeline(t, fetcher, Options{})

	first, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, first.Processed)
	sizeAfterFirst := len(store.Snapshot().ProcessedEntries)

	second, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Processed)
	assert.Equal(t, 1, second.Skipped)
	assert.Equal(t, state.StatusSuccess, second.Status)
	assert.Equal(t, sizeAfterFirst, len(store.Snapshot().ProcessedEntries))
}

func TestRunOnce_MonotonicBoundary(t *testing.T) {
	fetcher := &fakeFetcher{}
	p, store, _ := newTestPipeline(t, fetcher, Options{})

	_, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	afterFirst := store.LastFetchTimestamp()

	_, err = p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, store.LastFetchTimestamp().Before(afterFirst))
}

func TestRunOnce_WriterAlreadyExistsCountsAsSkip(t *testing.T) {
	rec := meetingWithTranscript("u1", "Standup", "https://dl/u1")
	fetcher := &fakeFetcher{
		recordings: []upstream.Recording{rec},
		downloads:  map[string]string{"https://dl/u1": sampleCaptions},
	}
	p, store, writer := newTestPipeline(t, fetcher, Options{})

	// The file exists from an earlier overlapping run, but the ledger has no
	// entry for it.
	_, wErr := writer.Write(transcript.MeetingRecord{Ref: rec.Ref})
	require.NoError(t, wErr)

	res, runErr := p.RunOnce(context.Background())
	require.NoError(t, runErr)

	assert.Equal(t, 0, res.Processed)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 0, res.Errored)
	assert.False(t, store.IsProcessed("u1"))
}

func TestRunOnce_PerMeetingErrorsAreIsolated(t *testing.T) {
	fetcher := &fakeFetcher{
		recordings: []upstream.Recording{
			meetingWithTranscript("good", "Standup", "https://dl/good"),
			meetingWithTranscript("bad", "Retro", "https://dl/bad"),
		},
		downloads: map[string]string{"https://dl/good": sampleCaptions},
		downloadErrs: map[string]error{
			"https://dl/bad": mserrors.NewUpstreamError("download", http.StatusForbidden, false),
		},
	}
	p, store, _ := newTestPipeline(t, fetcher, Options{})

	res, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.Errored)
	assert.Equal(t, state.StatusPartial, res.Status)

	// Boundary still advances on partial so the good meeting is not
	// re-fetched next run.
	assert.True(t, store.IsProcessed("good"))
	assert.False(t, store.IsProcessed("bad"))
	assert.False(t, store.LastFetchTimestamp().IsZero())
	assert.Equal(t, state.StatusPartial, store.Snapshot().Statistics.LastRunStatus)
}

func TestRunOnce_ErrorsDominateIsFailure(t *testing.T) {
	fetcher := &fakeFetcher{
		recordings: []upstream.Recording{meetingWithTranscript("bad", "Retro", "https://dl/bad")},
		downloadErrs: map[string]error{
			"https://dl/bad": mserrors.NewUpstreamError("download", http.StatusForbidden, false),
		},
	}
	p, store, _ := newTestPipeline(t, fetcher, Options{})
	before := store.LastFetchTimestamp()

	res, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, state.StatusFailure, res.Status)
	assert.True(t, before.Equal(store.LastFetchTimestamp()))
}

func TestRunOnce_AuthFailureAborts(t *testing.T) {
	fetcher := &fakeFetcher{listErr: fmt.Errorf("exchanging token: %w", mserrors.ErrAuth)}
	p, store, _ := newTestPipeline(t, fetcher, Options{})

	res, err := p.RunOnce(context.Background())
	require.Error(t, err)
	assert.True(t, mserrors.IsAuth(err))
	assert.Equal(t, state.StatusFailure, res.Status)
	assert.Equal(t, 1, store.Snapshot().Statistics.ConsecutiveFailures)
}

func TestRunOnce_MaxPerRunCap(t *testing.T) {
	fetcher := &fakeFetcher{
		recordings: []upstream.Recording{
			meetingWithTranscript("u1", "A", "https://dl/u1"),
			meetingWithTranscript("u2", "B", "https://dl/u2"),
			meetingWithTranscript("u3", "C", "https://dl/u3"),
		},
		downloads: map[string]string{
			"https://dl/u1": sampleCaptions,
			"https://dl/u2": sampleCaptions,
			"https://dl/u3": sampleCaptions,
		},
	}
	p, _, _ := newTestPipeline(t, fetcher, Options{MaxPerRun: 2})

	res, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
}

func TestRunOnce_MeetingWithoutContentIsSkipped(t *testing.T) {
	rec := upstream.Recording{
		Ref: upstream.MeetingRef{UUID: "u1", Topic: "No captions", StartTime: time.Now().UTC()},
	}
	fetcher := &fakeFetcher{recordings: []upstream.Recording{rec}}
	p, store, _ := newTestPipeline(t, fetcher, Options{})

	res, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.False(t, store.IsProcessed("u1"))
}
