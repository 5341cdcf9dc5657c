package transcript

import (
	"bufio"
	"fmt"
	"strings"

	mserrors "github.com/otherjamesbrown/meetsync/pkg/errors"
)

// vttMarker is the mandatory first-line header of a WebVTT caption file and
// the discriminator used by format auto-detection.
const vttMarker = "WEBVTT"

// ParseVTT parses a WebVTT caption file into normalized segments.
// Each cue carries its text on the single non-empty line following the
// timestamp; later lines before the next cue are ignored.
func ParseVTT(raw string) (NormalizedTranscript, error) {
	scanner := bufio.NewScanner(strings.NewReader(raw))

	var segments []Segment
	var pendingTS string

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, vttMarker) {
			continue
		}

		if matches := cueTimestampRegex.FindStringSubmatch(line); matches != nil {
			pendingTS = matches[1]
			continue
		}

		// Sequence numbers between cues are optional in WebVTT.
		if cueSequenceRegex.MatchString(line) {
			continue
		}

		if pendingTS != "" {
			segments = append(segments, newSegment(pendingTS, line))
			pendingTS = ""
		}
	}

	if err := scanner.Err(); err != nil {
		return NormalizedTranscript{}, fmt.Errorf("scanning captions: %w", err)
	}
	if len(segments) == 0 {
		return NormalizedTranscript{}, fmt.Errorf("no cues found: %w", mserrors.ErrParse)
	}

	return NormalizedTranscript{
		Segments: segments,
		RawText:  joinRawText(segments),
	}, nil
}
