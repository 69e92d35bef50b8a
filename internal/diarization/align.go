package diarization

import (
	"fmt"
	"math"
	"strings"
)

// Word is a transcribed token with its timing in seconds.
type Word struct {
	Text  string
	Start float64
	End   float64
}

// Segment is a diarization interval attributed to one speaker.
type Segment struct {
	Speaker string
	Start   float64
	End     float64
}

const unknownSpeaker = "Unknown"

// Align merges word timings with speaker intervals into a readable
// speaker-attributed transcript. Consecutive words from the same speaker are
// coalesced into one block; blocks are separated by blank lines.
//
// When no speaker segments exist the whole transcript is attributed to a
// single speaker. When segments exist but word timings are unavailable, words
// are distributed across segments proportionally to segment duration.
func Align(words []Word, segments []Segment, fullText string) string {
	text := strings.TrimSpace(fullText)

	if len(segments) == 0 || distinctSpeakers(segments) <= 1 {
		if text == "" {
			return ""
		}
		return fmt.Sprintf("[Speaker A]: %s", text)
	}

	if len(words) == 0 {
		return alignProportionally(text, segments)
	}

	type block struct {
		speaker string
		words   []string
	}

	var blocks []block
	for _, w := range words {
		token := strings.TrimSpace(w.Text)
		if token == "" {
			continue
		}
		speaker := speakerFor(w, segments)
		if len(blocks) > 0 && blocks[len(blocks)-1].speaker == speaker {
			last := &blocks[len(blocks)-1]
			last.words = append(last.words, token)
			continue
		}
		blocks = append(blocks, block{speaker: speaker, words: []string{token}})
	}

	if len(blocks) == 0 {
		if text == "" {
			return ""
		}
		return fmt.Sprintf("[Speaker A]: %s", text)
	}

	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		parts = append(parts, fmt.Sprintf("[Speaker %s]: %s", b.speaker, strings.Join(b.words, " ")))
	}
	return strings.Join(parts, "\n\n")
}

// distinctSpeakers counts unique speaker ids. One distinct speaker means
// diarization produced nothing worth aligning against.
func distinctSpeakers(segments []Segment) int {
	seen := make(map[string]struct{}, len(segments))
	for _, seg := range segments {
		seen[seg.Speaker] = struct{}{}
	}
	return len(seen)
}

// speakerFor returns the speaker of the first segment containing the word's
// start time, or Unknown when no segment covers it.
func speakerFor(w Word, segments []Segment) string {
	for _, seg := range segments {
		if w.Start >= seg.Start && w.Start <= seg.End {
			return seg.Speaker
		}
	}
	return unknownSpeaker
}

// alignProportionally splits the transcript's words across segments by
// duration share. Every segment receives at least one word so short or
// zero-length intervals still surface; leftover words go to the last segment.
func alignProportionally(text string, segments []Segment) string {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return ""
	}

	totalDuration := 0.0
	for _, seg := range segments {
		if d := seg.End - seg.Start; d > 0 {
			totalDuration += d
		}
	}

	counts := make([]int, len(segments))
	for i, seg := range segments {
		if totalDuration <= 0 {
			counts[i] = max(1, len(tokens)/len(segments))
			continue
		}
		d := seg.End - seg.Start
		if d < 0 {
			d = 0
		}
		counts[i] = max(1, int(math.Floor(float64(len(tokens))*d/totalDuration)))
	}

	var parts []string
	idx := 0
	for i, seg := range segments {
		if idx >= len(tokens) {
			break
		}
		n := counts[i]
		if i == len(segments)-1 {
			n = len(tokens) - idx
		} else if idx+n > len(tokens) {
			n = len(tokens) - idx
		}
		chunk := tokens[idx : idx+n]
		idx += n
		parts = append(parts, fmt.Sprintf("[Speaker %s]: %s", seg.Speaker, strings.Join(chunk, " ")))
	}

	return strings.Join(parts, "\n\n")
}
