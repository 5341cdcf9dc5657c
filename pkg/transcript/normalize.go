package transcript

import (
	"strings"

	"github.com/otherjamesbrown/meetsync/pkg/upstream"
)

// Format identifies a caption file format.
type Format string

const (
	// FormatAuto sniffs the format from the file contents.
	FormatAuto Format = ""
	// FormatVTT is WebVTT: one text line per cue, WEBVTT header.
	FormatVTT Format = "vtt"
	// FormatSRT is SubRip: numbered cues, possibly multi-line text.
	FormatSRT Format = "srt"
)

// Input is the tagged normalization input: either raw caption text or a
// structured summary payload. When Summary is non-nil it takes precedence.
type Input struct {
	Captions string
	Format   Format
	Summary  *upstream.MeetingSummary
}

// Output is the common result shape for both input variants. ActionItems is
// populated only on the summary path; transcript-derived input goes through
// heuristic extraction separately. FromSummary records which path produced
// the output.
type Output struct {
	Transcript  NormalizedTranscript
	KeyPoints   []string
	ActionItems []ActionItem
	FromSummary bool
}

// Normalize dispatches the tagged input to the matching normalizer.
func Normalize(in Input) (Output, error) {
	if in.Summary != nil {
		t, keyPoints, items := NormalizeSummary(in.Summary)
		return Output{
			Transcript:  t,
			KeyPoints:   keyPoints,
			ActionItems: items,
			FromSummary: true,
		}, nil
	}

	t, err := Parse(in.Captions, in.Format)
	if err != nil {
		return Output{}, err
	}
	return Output{Transcript: t}, nil
}

// DetectFormat sniffs a caption file's format. A leading WEBVTT marker
// selects WebVTT; everything else is treated as SubRip.
func DetectFormat(raw string) Format {
	if strings.HasPrefix(strings.TrimLeft(raw, "\uFEFF \t\r\n"), vttMarker) {
		return FormatVTT
	}
	return FormatSRT
}

// Parse normalizes raw caption text, sniffing the format when not declared.
func Parse(raw string, format Format) (NormalizedTranscript, error) {
	if format == FormatAuto {
		format = DetectFormat(raw)
	}
	if format == FormatVTT {
		return ParseVTT(raw)
	}
	return ParseSRT(raw)
}
