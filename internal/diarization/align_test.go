package diarization

import (
	"strings"
	"testing"
)

func TestAlignCoalescesConsecutiveWords(t *testing.T) {
	words := []Word{
		{Text: "good", Start: 0.0, End: 0.4},
		{Text: "morning", Start: 0.5, End: 1.0},
		{Text: "everyone", Start: 1.1, End: 1.6},
		{Text: "thanks", Start: 5.0, End: 5.4},
		{Text: "for", Start: 5.5, End: 5.7},
		{Text: "joining", Start: 5.8, End: 6.3},
	}
	segments := []Segment{
		{Speaker: "A", Start: 0.0, End: 4.0},
		{Speaker: "B", Start: 4.5, End: 8.0},
	}

	got := Align(words, segments, "good morning everyone thanks for joining")
	want := "[Speaker A]: good morning everyone\n\n[Speaker B]: thanks for joining"
	if got != want {
		t.Errorf("Align() = %q, want %q", got, want)
	}
}

func TestAlignUnknownSpeakerForUncoveredWord(t *testing.T) {
	words := []Word{
		{Text: "hello", Start: 0.0, End: 0.5},
		{Text: "stray", Start: 10.0, End: 10.5},
	}
	segments := []Segment{
		{Speaker: "A", Start: 0.0, End: 2.0},
		{Speaker: "B", Start: 2.0, End: 4.0},
	}

	got := Align(words, segments, "hello stray")
	want := "[Speaker A]: hello\n\n[Speaker Unknown]: stray"
	if got != want {
		t.Errorf("Align() = %q, want %q", got, want)
	}
}

func TestAlignFirstContainingSegmentWins(t *testing.T) {
	words := []Word{{Text: "overlap", Start: 1.0, End: 1.5}}
	segments := []Segment{
		{Speaker: "A", Start: 0.0, End: 2.0},
		{Speaker: "B", Start: 0.5, End: 3.0},
	}

	got := Align(words, segments, "overlap")
	if !strings.HasPrefix(got, "[Speaker A]:") {
		t.Errorf("Align() = %q, want attribution to first containing segment", got)
	}
}

func TestAlignSingleSpeakerWithoutSegments(t *testing.T) {
	got := Align(nil, nil, "  just one voice here  ")
	want := "[Speaker A]: just one voice here"
	if got != want {
		t.Errorf("Align() = %q, want %q", got, want)
	}
}

func TestAlignSingleDistinctSpeakerDegrades(t *testing.T) {
	words := []Word{
		{Text: "hello", Start: 0.0, End: 0.5},
		{Text: "world", Start: 0.6, End: 1.0},
	}
	segments := []Segment{
		{Speaker: "X", Start: 0.0, End: 2.0},
		{Speaker: "X", Start: 2.0, End: 4.0},
	}

	got := Align(words, segments, "hello world")
	want := "[Speaker A]: hello world"
	if got != want {
		t.Errorf("Align() = %q, want %q", got, want)
	}
}

func TestAlignEmptyTranscript(t *testing.T) {
	if got := Align(nil, nil, "   "); got != "" {
		t.Errorf("Align() = %q, want empty string", got)
	}
}

func TestAlignProportionalSplit(t *testing.T) {
	text := "w1 w2 w3 w4 w5 w6 w7 w8 w9 w10"
	segments := []Segment{
		{Speaker: "A", Start: 0.0, End: 7.0},
		{Speaker: "B", Start: 7.0, End: 10.0},
	}

	got := Align(nil, segments, text)
	want := "[Speaker A]: w1 w2 w3 w4 w5 w6 w7\n\n[Speaker B]: w8 w9 w10"
	if got != want {
		t.Errorf("Align() = %q, want %q", got, want)
	}
}

func TestAlignProportionalRemainderGoesToLastSegment(t *testing.T) {
	text := "a b c d e f g"
	segments := []Segment{
		{Speaker: "A", Start: 0.0, End: 1.0},
		{Speaker: "B", Start: 1.0, End: 2.0},
		{Speaker: "C", Start: 2.0, End: 3.0},
	}

	got := Align(nil, segments, text)
	// 7 words over 3 equal segments: floor gives 2 each, last takes the rest.
	want := "[Speaker A]: a b\n\n[Speaker B]: c d\n\n[Speaker C]: e f g"
	if got != want {
		t.Errorf("Align() = %q, want %q", got, want)
	}
}

func TestAlignProportionalZeroDurationSegmentGetsAWord(t *testing.T) {
	text := "one two three four five six seven eight nine ten"
	segments := []Segment{
		{Speaker: "A", Start: 0.0, End: 0.0},
		{Speaker: "B", Start: 0.0, End: 10.0},
	}

	got := Align(nil, segments, text)
	if !strings.HasPrefix(got, "[Speaker A]: one") {
		t.Errorf("Align() = %q, want zero-duration segment to receive at least one word", got)
	}
	if !strings.Contains(got, "[Speaker B]:") {
		t.Errorf("Align() = %q, want remaining words attributed to speaker B", got)
	}
}

func TestAlignSkipsBlankWordTokens(t *testing.T) {
	words := []Word{
		{Text: " ", Start: 0.0, End: 0.1},
		{Text: "real", Start: 0.2, End: 0.5},
	}
	segments := []Segment{
		{Speaker: "A", Start: 0.0, End: 1.0},
		{Speaker: "B", Start: 1.0, End: 2.0},
	}

	got := Align(words, segments, "real")
	want := "[Speaker A]: real"
	if got != want {
		t.Errorf("Align() = %q, want %q", got, want)
	}
}
