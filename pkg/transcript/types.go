// Package transcript normalizes meeting content into a uniform segment model.
// Raw caption files in either supported format and structured AI-summary
// payloads both reduce to the same ordered, speaker-attributed segments.
package transcript

import "github.com/otherjamesbrown/meetsync/pkg/upstream"

// UnknownSpeaker is the sentinel used when a cue carries no speaker prefix.
const UnknownSpeaker = "Unknown"

// Segment is one speaker-attributed, timestamped unit of meeting content.
// Timestamp is the offset from the start of the meeting as "HH:MM:SS".
type Segment struct {
	Speaker   string `json:"speaker"`
	Timestamp string `json:"timestamp"`
	Text      string `json:"text"`
}

// NormalizedTranscript is the normalizer's output: segments in chronological
// order plus RawText, the space-joined concatenation of all segment texts,
// used for whole-document pattern search.
type NormalizedTranscript struct {
	Segments []Segment `json:"segments"`
	RawText  string    `json:"raw_text"`
}

// ActionItem is one actionable statement found in meeting content.
// Confidence is a heuristic score in [0,1], not a calibrated probability.
type ActionItem struct {
	Text       string  `json:"text"`
	Assignee   string  `json:"assignee,omitempty"`
	DueDate    string  `json:"due_date,omitempty"`
	Confidence float64 `json:"confidence"`
}

// MeetingRecord is the fully normalized output for one meeting, ready for
// rendering into the archive.
type MeetingRecord struct {
	Ref         upstream.MeetingRef  `json:"ref"`
	Transcript  NormalizedTranscript `json:"transcript"`
	ActionItems []ActionItem         `json:"action_items,omitempty"`
	KeyPoints   []string             `json:"key_points,omitempty"`
}
