// Package actions heuristically extracts action items from normalized
// transcript segments. Everything here is pure text matching; accuracy is
// best-effort and the confidence score is not a calibrated probability.
package actions

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/otherjamesbrown/meetsync/pkg/transcript"
)

// Trigger patterns: a segment becomes an action-item candidate when at least
// two distinct patterns match its text.
var triggerPatterns = []*regexp.Regexp{
	// Obligation phrasing
	regexp.MustCompile(`(?i)\b(will|going to|needs? to|must|should|have to|has to)\b`),
	// Explicit markers
	regexp.MustCompile(`(?i)\b(action item|todo|to-do|follow[ -]?up)\b`),
	// Due-date phrasing
	regexp.MustCompile(`(?i)\b(by|before|until|due)\s+(next\s+week|tomorrow|today|monday|tuesday|wednesday|thursday|friday|saturday|sunday|end of|\d)`),
	// Assignment/ownership phrasing
	regexp.MustCompile(`(?i)\b(assigned to|owner|responsible for|takes? ownership|take the lead)\b`),
	// Deadline phrasing
	regexp.MustCompile(`(?i)\b(deadline|due date|eod|eow|asap|end of (day|week|month|sprint))\b`),
}

// Assignee extraction patterns, tried in order.
var (
	assigneeNameRegex     = regexp.MustCompile(`\b([A-Z][a-z]+)\s+(?:will|should|is going to|needs to|has to)\b`)
	assigneeExplicitRegex = regexp.MustCompile(`(?i)\b(?:assigned to|owner:?)\s+([A-Z][a-z]+|\w+)`)
	firstPersonRegex      = regexp.MustCompile(`(?i)\b(i will|i'll|i can|i need to|i should|let me)\b`)
)

// dueDateRegex captures the date phrase following a deadline anchor.
var dueDateRegex = regexp.MustCompile(`(?i)\b(?:by|before|until|due)\s+((?:next\s+|this\s+)?(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday|tomorrow|today|week|month|end of (?:day|week|month)|(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2}|\d{1,2}[/-]\d{1,2}(?:[/-]\d{2,4})?))`)

// explicitSectionRegex locates an "action items:" header in the full text.
var explicitSectionRegex = regexp.MustCompile(`(?i)\baction items?:\s*`)

// listItemConfidence is assigned to entries found under an explicit
// "action items:" header; their phrasing carries no trigger signal to score.
const listItemConfidence = 0.8

const (
	baseConfidence     = 0.3
	perMatchBonus      = 0.15
	maxMatchBonus      = 0.45
	assigneeBonus      = 0.15
	dueDateBonus       = 0.1
	minFragmentLength  = 10
	maxSectionSentence = 3
)

// Extract scans transcript-derived segments for actionable statements and
// the full text for an explicit action-item list. Both sources are
// concatenated; entries are not deduplicated across them.
func Extract(t transcript.NormalizedTranscript) []transcript.ActionItem {
	items := extractFromSegments(t.Segments)
	return append(items, extractFromExplicitSection(t.RawText)...)
}

func extractFromSegments(segments []transcript.Segment) []transcript.ActionItem {
	var items []transcript.ActionItem
	for _, seg := range segments {
		matches := 0
		for _, p := range triggerPatterns {
			if p.MatchString(seg.Text) {
				matches++
			}
		}
		if matches < 2 {
			continue
		}

		assignee := extractAssignee(seg.Text, seg.Speaker)
		dueDate := extractDueDate(seg.Text)

		items = append(items, transcript.ActionItem{
			Text:       seg.Text,
			Assignee:   assignee,
			DueDate:    dueDate,
			Confidence: confidence(matches, assignee != "", dueDate != ""),
		})
	}
	return items
}

func confidence(matchCount int, hasAssignee, hasDueDate bool) float64 {
	c := baseConfidence + math.Min(float64(matchCount)*perMatchBonus, maxMatchBonus)
	if hasAssignee {
		c += assigneeBonus
	}
	if hasDueDate {
		c += dueDateBonus
	}
	return math.Min(c, 1.0)
}

// extractAssignee finds who owns the statement: a named subject before an
// obligation verb, an explicit assignment phrase, or the segment's own
// speaker when the phrasing is first-person.
func extractAssignee(text, speaker string) string {
	if m := assigneeNameRegex.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := assigneeExplicitRegex.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if firstPersonRegex.MatchString(text) && speaker != transcript.UnknownSpeaker {
		return speaker
	}
	return ""
}

// extractDueDate finds a date phrase anchored to by/before/until/due.
func extractDueDate(text string) string {
	if m := dueDateRegex.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// extractFromExplicitSection pulls individually listed items out of an
// "action items:" section, bounded to the next few sentences.
func extractFromExplicitSection(rawText string) []transcript.ActionItem {
	loc := explicitSectionRegex.FindStringIndex(rawText)
	if loc == nil {
		return nil
	}

	trailing := sectionContent(rawText[loc[1]:])

	var items []transcript.ActionItem
	for _, fragment := range splitFragments(trailing) {
		fragment = strings.TrimSpace(strings.TrimRight(fragment, "."))
		if len(fragment) <= minFragmentLength {
			continue
		}
		items = append(items, transcript.ActionItem{
			Text:       fragment,
			Confidence: listItemConfidence,
		})
	}
	return items
}

// sectionContent bounds the explicit list to its first few sentences.
func sectionContent(s string) string {
	count := 0
	for i, r := range s {
		if r == '.' || r == '!' || r == '?' {
			count++
			if count >= maxSectionSentence {
				return s[:i+1]
			}
		}
	}
	return s
}

var fragmentSeparatorRegex = regexp.MustCompile(`(?i)[,;]|\band\b`)

func splitFragments(s string) []string {
	return fragmentSeparatorRegex.Split(s, -1)
}

// SortByConfidence orders items for presentation, highest confidence first.
// The sort is stable so equal-confidence items keep their discovery order.
func SortByConfidence(items []transcript.ActionItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Confidence > items[j].Confidence
	})
}
