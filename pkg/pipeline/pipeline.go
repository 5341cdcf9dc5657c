// Package pipeline orchestrates one ingestion run: list meetings for the
// window since the last run, normalize each unprocessed one, extract action
// items, write it to the archive, and advance the idempotency ledger.
package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/otherjamesbrown/meetsync/pkg/actions"
	"github.com/otherjamesbrown/meetsync/pkg/archive"
	mserrors "github.com/otherjamesbrown/meetsync/pkg/errors"
	"github.com/otherjamesbrown/meetsync/pkg/events"
	"github.com/otherjamesbrown/meetsync/pkg/logging"
	"github.com/otherjamesbrown/meetsync/pkg/state"
	"github.com/otherjamesbrown/meetsync/pkg/transcript"
	"github.com/otherjamesbrown/meetsync/pkg/upstream"
)

// Fetcher is the slice of the upstream client the pipeline uses.
type Fetcher interface {
	ListRecordings(ctx context.Context, userID string, window upstream.DateWindow) ([]upstream.Recording, error)
	GetMeetingSummary(ctx context.Context, meetingUUID string) (*upstream.MeetingSummary, error)
	Download(ctx context.Context, rawURL string) ([]byte, error)
}

// RecordWriter persists one rendered meeting record.
type RecordWriter interface {
	Write(rec transcript.MeetingRecord) (archive.Result, error)
}

// Options configures one Pipeline.
type Options struct {
	// UserID is the upstream user whose recordings are archived.
	UserID string

	// ExtractActionItems toggles heuristic extraction on transcript-derived
	// content. Summary-provided next steps are always kept.
	ExtractActionItems bool

	// MaxPerRun caps how many meetings one run will process. Zero means
	// no cap.
	MaxPerRun int

	// Concurrency bounds parallel meeting processing. Values below 1 run
	// sequentially.
	Concurrency int
}

// Pipeline wires the fetch engine, normalizers, writer, and state store into
// the single idempotent RunOnce operation.
type Pipeline struct {
	opts    Options
	fetcher Fetcher
	writer  RecordWriter
	store   *state.Store
	pub     *events.Publisher
	logger  logging.Logger
	metrics *Metrics
	tracer  *tracer
	now     func() time.Time
}

// New creates a Pipeline. pub and metrics may be nil.
func New(opts Options, fetcher Fetcher, writer RecordWriter, store *state.Store,
	pub *events.Publisher, metrics *Metrics, logger logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Pipeline{
		opts:    opts,
		fetcher: fetcher,
		writer:  writer,
		store:   store,
		pub:     pub,
		logger:  logger.With(logging.F("component", "pipeline")),
		metrics: metrics,
		tracer:  newTracer(),
		now:     time.Now,
	}
}

// RunResult reports the outcome of one run.
type RunResult struct {
	RunID     string
	Processed int
	Skipped   int
	Errored   int
	Status    state.RunStatus
}

// Per-meeting outcomes, also used as the metric label.
const (
	outcomeProcessed = "processed"
	outcomeSkipped   = "skipped"
	outcomeErrored   = "errored"
)

// RunOnce executes one full ingestion run. Per-meeting failures are isolated
// and counted; authentication and state-persistence failures abort the run.
// The fetch boundary advances on success and partial runs so already-archived
// meetings are never fetched again.
func (p *Pipeline) RunOnce(ctx context.Context) (RunResult, error) {
	started := p.now()
	res := RunResult{RunID: uuid.NewString()}

	ctx, span := p.tracer.startRun(ctx, res.RunID)
	logger := p.logger.With(logging.F("run_id", res.RunID))

	window := upstream.DateWindow{From: p.store.LastFetchTimestamp(), To: started}
	if window.IsEmpty() {
		res.Status = state.StatusSuccess
		endSpan(span, string(res.Status), nil)
		return res, nil
	}

	logger.Info("run started",
		logging.F("from", window.From), logging.F("to", window.To))

	recordings, err := p.fetcher.ListRecordings(ctx, p.opts.UserID, window)
	if err != nil {
		return p.abortRun(res, span, logger, started, fmt.Errorf("listing recordings: %w", err))
	}

	if p.opts.MaxPerRun > 0 && len(recordings) > p.opts.MaxPerRun {
		logger.Warn("capping run size",
			logging.F("found", len(recordings)), logging.F("cap", p.opts.MaxPerRun))
		recordings = recordings[:p.opts.MaxPerRun]
	}

	concurrency := p.opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, rec := range recordings {
		rec := rec
		g.Go(func() error {
			outcome, err := p.processMeeting(gctx, rec)
			if err != nil && (mserrors.IsAuth(err) || mserrors.IsDuplicateKey(err)) {
				return err
			}
			if err != nil {
				logger.Error("meeting failed",
					logging.F("uuid", rec.Ref.UUID),
					logging.F("topic", rec.Ref.Topic),
					logging.Err(err))
			}

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case outcomeProcessed:
				res.Processed++
			case outcomeSkipped:
				res.Skipped++
			default:
				res.Errored++
			}
			p.metrics.observeMeeting(outcome)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return p.abortRun(res, span, logger, started, err)
	}

	res.Status = runStatus(res)
	if res.Status != state.StatusFailure {
		p.store.AdvanceFetchBoundary(window.To)
	}
	p.store.RecordRunOutcome(res.Status)

	if err := p.store.Save(); err != nil {
		res.Status = state.StatusFailure
		endSpan(span, string(res.Status), err)
		return res, err
	}

	completed := p.now()
	snap := p.store.Snapshot()
	p.metrics.observeRun(string(res.Status), completed.Sub(started).Seconds(), len(snap.ProcessedEntries))

	if err := p.pub.PublishRunCompleted(ctx, events.RunCompletedEvent{
		RunID:       res.RunID,
		Processed:   res.Processed,
		Skipped:     res.Skipped,
		Errored:     res.Errored,
		Status:      string(res.Status),
		StartedAt:   started,
		CompletedAt: completed,
	}); err != nil {
		logger.Warn("run event not published", logging.Err(err))
	}

	logger.Info("run finished",
		logging.F("status", res.Status),
		logging.F("processed", res.Processed),
		logging.F("skipped", res.Skipped),
		logging.F("errored", res.Errored))

	endSpan(span, string(res.Status), nil)
	return res, nil
}

// abortRun handles run-level failures: the outcome is recorded and the state
// saved best-effort, but the original error always propagates.
func (p *Pipeline) abortRun(res RunResult, span trace.Span, logger logging.Logger, started time.Time, err error) (RunResult, error) {
	res.Status = state.StatusFailure
	p.store.RecordRunOutcome(res.Status)
	if saveErr := p.store.Save(); saveErr != nil {
		logger.Error("state not saved after failed run", logging.Err(saveErr))
	}
	snap := p.store.Snapshot()
	p.metrics.observeRun(string(res.Status), p.now().Sub(started).Seconds(), len(snap.ProcessedEntries))
	logger.Error("run aborted", logging.Err(err))
	endSpan(span, string(res.Status), err)
	return res, err
}

// runStatus classifies a finished run: no errors is success, errors matched
// by at least as many successes is partial, anything worse is failure.
func runStatus(res RunResult) state.RunStatus {
	switch {
	case res.Errored == 0:
		return state.StatusSuccess
	case res.Processed >= res.Errored:
		return state.StatusPartial
	default:
		return state.StatusFailure
	}
}

// processMeeting takes one meeting from listing to archived file. The
// returned outcome feeds run counts; only auth and duplicate-key errors are
// escalated by the caller.
func (p *Pipeline) processMeeting(ctx context.Context, rec upstream.Recording) (string, error) {
	ctx, span := p.tracer.startMeeting(ctx, rec.Ref.UUID, rec.Ref.Topic)

	outcome, err := p.processMeetingInner(ctx, rec)
	endSpan(span, outcome, err)
	return outcome, err
}

func (p *Pipeline) processMeetingInner(ctx context.Context, rec upstream.Recording) (string, error) {
	if p.store.IsProcessed(rec.Ref.UUID) {
		return outcomeSkipped, nil
	}

	out, ok, err := p.normalize(ctx, rec)
	if err != nil {
		return outcomeErrored, err
	}
	if !ok {
		// No summary and no transcript file: nothing to archive.
		p.logger.Debug("meeting has no content", logging.F("uuid", rec.Ref.UUID))
		return outcomeSkipped, nil
	}

	record := transcript.MeetingRecord{
		Ref:         rec.Ref,
		Transcript:  out.Transcript,
		ActionItems: out.ActionItems,
		KeyPoints:   out.KeyPoints,
	}
	if !out.FromSummary && p.opts.ExtractActionItems {
		record.ActionItems = actions.Extract(out.Transcript)
	}

	wres, err := p.writer.Write(record)
	if err != nil {
		return outcomeErrored, err
	}
	if wres.AlreadyExists {
		// Output from an earlier (possibly overlapping) run; leave the
		// ledger untouched.
		return outcomeSkipped, nil
	}

	if err := p.store.RecordProcessed(state.ProcessedEntry{
		UUID:           rec.Ref.UUID,
		NumericID:      rec.Ref.ID,
		ProcessedAt:    p.now(),
		OutputLocation: wres.Path,
		ContentHash:    wres.ContentHash,
	}); err != nil {
		return outcomeErrored, err
	}

	if err := p.pub.PublishMeetingArchived(ctx, events.MeetingArchivedEvent{
		MeetingUUID:     rec.Ref.UUID,
		MeetingID:       rec.Ref.ID,
		Topic:           rec.Ref.Topic,
		StartTime:       rec.Ref.StartTime,
		OutputLocation:  wres.Path,
		ContentHash:     wres.ContentHash,
		ActionItemCount: len(record.ActionItems),
		FromSummary:     out.FromSummary,
	}); err != nil {
		p.logger.Warn("archive event not published",
			logging.F("uuid", rec.Ref.UUID), logging.Err(err))
	}

	return outcomeProcessed, nil
}

// normalize picks the content path for a meeting: the structured summary when
// the upstream has one, else the downloaded transcript file. The second
// return is false when the meeting has neither.
func (p *Pipeline) normalize(ctx context.Context, rec upstream.Recording) (transcript.Output, bool, error) {
	sum, err := p.fetcher.GetMeetingSummary(ctx, rec.Ref.UUID)
	if err == nil {
		out, err := transcript.Normalize(transcript.Input{Summary: sum})
		return out, true, err
	}
	if !summaryAbsent(err) {
		return transcript.Output{}, false, fmt.Errorf("fetching summary: %w", err)
	}

	file, ok := rec.TranscriptFile()
	if !ok {
		return transcript.Output{}, false, nil
	}

	raw, err := p.fetcher.Download(ctx, file.DownloadURL)
	if err != nil {
		return transcript.Output{}, false, fmt.Errorf("downloading transcript: %w", err)
	}

	out, err := transcript.Normalize(transcript.Input{Captions: string(raw), Format: transcript.FormatAuto})
	if err != nil {
		return transcript.Output{}, false, err
	}
	return out, true, nil
}

// summaryAbsent reports whether a summary fetch failed only because the
// meeting has no AI summary, which routes processing to the transcript path.
func summaryAbsent(err error) bool {
	ue, ok := mserrors.AsUpstream(err)
	return ok && ue.Status == http.StatusNotFound
}
