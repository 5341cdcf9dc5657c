package transcript

import (
	"regexp"
	"strings"
)

// Cue parsing regular expressions shared by both caption formats.
var (
	// Matches a cue timestamp line: 00:00:05.579 --> 00:00:06.858
	// (SRT uses a comma before the milliseconds, WebVTT a dot).
	cueTimestampRegex = regexp.MustCompile(`^(\d{2}:\d{2}:\d{2})[.,]\d{1,3}\s+-->\s+\d{2}:\d{2}:\d{2}[.,]\d{1,3}`)

	// Matches a bare cue sequence number: 1
	cueSequenceRegex = regexp.MustCompile(`^\d+$`)
)

// maxSpeakerColon bounds how far into a cue a speaker-separating colon may
// appear. A colon at or beyond this offset is part of the spoken text.
const maxSpeakerColon = 49

// normalizeTimestamp keeps only the whole-seconds HH:MM:SS prefix of a cue
// timestamp, dropping sub-second precision regardless of separator.
func normalizeTimestamp(ts string) string {
	if len(ts) > 8 {
		return ts[:8]
	}
	return ts
}

// splitSpeaker splits a finalized cue text into speaker and spoken text.
// The speaker is everything left of a colon appearing within the first
// maxSpeakerColon characters; cues without one get the Unknown sentinel.
func splitSpeaker(text string) (string, string) {
	if idx := strings.Index(text, ":"); idx >= 1 && idx < maxSpeakerColon {
		return strings.TrimSpace(text[:idx]), strings.TrimSpace(text[idx+1:])
	}
	return UnknownSpeaker, text
}

// newSegment converts a finalized cue into a Segment.
func newSegment(startTS, text string) Segment {
	speaker, spoken := splitSpeaker(strings.TrimSpace(text))
	return Segment{
		Speaker:   speaker,
		Timestamp: normalizeTimestamp(startTS),
		Text:      spoken,
	}
}

// joinRawText builds the whole-document search text from ordered segments.
func joinRawText(segments []Segment) string {
	var b strings.Builder
	for i, s := range segments {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(s.Text)
	}
	return b.String()
}
