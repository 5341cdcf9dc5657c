package transcript

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mserrors "github.com/otherjamesbrown/meetsync/pkg/errors"
	"github.com/otherjamesbrown/meetsync/pkg/upstream"
)

func TestParse_SingleCueRoundTrip(t *testing.T) {
	got, err := Parse("1\n00:00:01.000 --> 00:00:03.000\nAlice: Hello team\n\n", FormatAuto)
	require.NoError(t, err)

	require.Len(t, got.Segments, 1)
	assert.Equal(t, Segment{
		Speaker:   "Alice",
		Timestamp: "00:00:01",
		Text:      "Hello team",
	}, got.Segments[0])
	assert.Equal(t, "Hello team", got.RawText)
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatVTT, DetectFormat("WEBVTT\n\n1\n00:00:01.000 --> 00:00:02.000\nhi\n"))
	assert.Equal(t, FormatSRT, DetectFormat("1\n00:00:01,000 --> 00:00:02,000\nhi\n"))
}

func TestParseVTT_SingleLineCues(t *testing.T) {
	raw := strings.Join([]string{
		"WEBVTT",
		"",
		"1",
		"00:00:01.000 --> 00:00:03.500",
		"Alice Smith: Let's review the roadmap",
		"",
		"2",
		"00:01:10.250 --> 00:01:12.000",
		"Bob: Sounds good",
		"",
	}, "\n")

	got, err := ParseVTT(raw)
	require.NoError(t, err)

	require.Len(t, got.Segments, 2)
	assert.Equal(t, "Alice Smith", got.Segments[0].Speaker)
	assert.Equal(t, "00:00:01", got.Segments[0].Timestamp)
	assert.Equal(t, "Let's review the roadmap", got.Segments[0].Text)
	assert.Equal(t, "00:01:10", got.Segments[1].Timestamp)
	assert.Equal(t, "Let's review the roadmap Sounds good", got.RawText)
}

func TestParseSRT_MultiLineCueJoined(t *testing.T) {
	raw := strings.Join([]string{
		"1",
		"00:00:05,000 --> 00:00:09,000",
		"Carol: I'll draft the proposal",
		"and circulate it tomorrow",
		"",
		"2",
		"00:00:10,000 --> 00:00:12,000",
		"Dave: Thanks",
		"",
	}, "\n")

	got, err := ParseSRT(raw)
	require.NoError(t, err)

	require.Len(t, got.Segments, 2)
	assert.Equal(t, "Carol", got.Segments[0].Speaker)
	assert.Equal(t, "I'll draft the proposal and circulate it tomorrow", got.Segments[0].Text)
}

func TestParseSRT_TruncatedTrailingCue(t *testing.T) {
	raw := "1\n00:00:01,000 --> 00:00:02,000\nAlice: no trailing blank line"

	got, err := ParseSRT(raw)
	require.NoError(t, err)
	require.Len(t, got.Segments, 1)
	assert.Equal(t, "no trailing blank line", got.Segments[0].Text)
}

func TestParse_UnknownSpeakerFallback(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
	}{
		{"no colon", "everyone agreed to move on", "everyone agreed to move on"},
		{"colon too deep", strings.Repeat("a", 60) + ": rest", strings.Repeat("a", 60) + ": rest"},
		{"leading colon", ": odd caption", ": odd caption"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseSRT("1\n00:00:01,000 --> 00:00:02,000\n" + tc.text + "\n\n")
			require.NoError(t, err)
			require.Len(t, got.Segments, 1)
			assert.Equal(t, UnknownSpeaker, got.Segments[0].Speaker)
			assert.Equal(t, tc.want, got.Segments[0].Text)
		})
	}
}

func TestParse_NoCuesIsParseError(t *testing.T) {
	_, err := Parse("this is not a caption file\n", FormatAuto)
	require.Error(t, err)
	assert.True(t, mserrors.IsParse(err))
}

func TestNormalize_SummaryPath(t *testing.T) {
	out, err := Normalize(Input{Summary: &upstream.MeetingSummary{
		MeetingUUID: "u1",
		Overview:    "Quarterly planning recap",
		Details: []upstream.SummarySection{
			{Label: "Roadmap", Summary: "Agreed on Q3 priorities"},
			{Label: "Hiring", Summary: "Two open roles remain"},
		},
		NextSteps: []string{"Alice to post the roadmap doc", ""},
	}})
	require.NoError(t, err)

	assert.True(t, out.FromSummary)
	require.Len(t, out.Transcript.Segments, 3)
	assert.Equal(t, "Overview", out.Transcript.Segments[0].Speaker)
	assert.Equal(t, "00:00:00", out.Transcript.Segments[0].Timestamp)
	assert.Equal(t, "Roadmap", out.Transcript.Segments[1].Speaker)
	assert.Equal(t, "00:01:00", out.Transcript.Segments[1].Timestamp)
	assert.Equal(t, "00:02:00", out.Transcript.Segments[2].Timestamp)

	assert.Equal(t, []string{"Roadmap", "Hiring"}, out.KeyPoints)

	require.Len(t, out.ActionItems, 1)
	assert.Equal(t, "Alice to post the roadmap doc", out.ActionItems[0].Text)
	assert.InDelta(t, summaryItemConfidence, out.ActionItems[0].Confidence, 1e-9)
}

func TestNormalize_CaptionPathLeavesActionItemsEmpty(t *testing.T) {
	out, err := Normalize(Input{Captions: "1\n00:00:01,000 --> 00:00:02,000\nAlice: hi\n\n"})
	require.NoError(t, err)
	assert.False(t, out.FromSummary)
	assert.Empty(t, out.ActionItems)
	assert.Empty(t, out.KeyPoints)
	require.Len(t, out.Transcript.Segments, 1)
}
