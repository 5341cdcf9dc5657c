package transcript

import (
	"bufio"
	"fmt"
	"strings"

	mserrors "github.com/otherjamesbrown/meetsync/pkg/errors"
)

// ParseSRT parses a SubRip caption file into normalized segments.
// Cues may span multiple text lines; they are joined with a single space.
// A blank line, the next sequence number, or the next timestamp finalizes
// the cue, as does end of input for a truncated trailing cue.
func ParseSRT(raw string) (NormalizedTranscript, error) {
	scanner := bufio.NewScanner(strings.NewReader(raw))

	var segments []Segment
	var pendingTS string
	var textParts []string

	finalize := func() {
		if pendingTS != "" && len(textParts) > 0 {
			segments = append(segments, newSegment(pendingTS, strings.Join(textParts, " ")))
		}
		pendingTS = ""
		textParts = nil
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			finalize()
			continue
		}

		if matches := cueTimestampRegex.FindStringSubmatch(line); matches != nil {
			finalize()
			pendingTS = matches[1]
			continue
		}

		if cueSequenceRegex.MatchString(line) {
			finalize()
			continue
		}

		if pendingTS != "" {
			textParts = append(textParts, line)
		}
	}
	finalize()

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
