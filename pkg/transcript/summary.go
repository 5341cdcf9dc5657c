package transcript

import (
	"fmt"
	"strings"

	"github.com/otherjamesbrown/meetsync/pkg/upstream"
)

// Summary sections have no real timeline, so each one gets a synthetic
// timestamp this far apart, in section order.
const summarySectionSpacing = 60 // seconds

// summaryItemConfidence is assigned to next-step items lifted straight from
// an AI summary, which the upstream already curated.
const summaryItemConfidence = 0.9

// NormalizeSummary converts a structured AI-summary payload into the same
// segment model as a parsed caption file. Section labels become speakers and
// the ordered key points; the summary's next-steps list becomes action items
// directly, bypassing heuristic extraction.
func NormalizeSummary(sum *upstream.MeetingSummary) (NormalizedTranscript, []string, []ActionItem) {
	var segments []Segment
	var keyPoints []string

	if overview := strings.TrimSpace(sum.Overview); overview != "" {
		segments = append(segments, Segment{
			Speaker:   "Overview",
			Timestamp: formatOffset(0),
			Text:      overview,
		})
	}

	for _, section := range sum.Details {
		label := strings.TrimSpace(section.Label)
		body := strings.TrimSpace(section.Summary)
		if label == "" && body == "" {
			continue
		}
		if label == "" {
			label = UnknownSpeaker
		}
		segments = append(segments, Segment{
			Speaker:   label,
			Timestamp: formatOffset(len(segments) * summarySectionSpacing),
			Text:      body,
		})
		keyPoints = append(keyPoints, label)
	}

	var items []ActionItem
	for _, step := range sum.NextSteps {
		step = strings.TrimSpace(step)
		if step == "" {
			continue
		}
		items = append(items, ActionItem{
			Text:       step,
			Confidence: summaryItemConfidence,
		})
	}

	return NormalizedTranscript{
		Segments: segments,
		RawText:  joinRawText(segments),
	}, keyPoints, items
}

// formatOffset renders a second offset as HH:MM:SS.
func formatOffset(seconds int) string {
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, seconds%3600/60, seconds%60)
}
