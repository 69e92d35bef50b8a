package transcription

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/kirki-ai/kirki-backend/internal/diarization"
	pkgerrors "github.com/kirki-ai/kirki-backend/pkg/errors"
	"github.com/kirki-ai/kirki-backend/pkg/logger"
	"github.com/kirki-ai/kirki-backend/pkg/openai"
)

type fakeSpeech struct {
	resp  *openai.Transcription
	err   error
	calls int
}

func (f *fakeSpeech) Transcribe(ctx context.Context, filename string, content []byte) (*openai.Transcription, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type fakeDiarizer struct {
	segments []diarization.Segment
	err      error
	lastPath string
}

func (f *fakeDiarizer) Diarize(ctx context.Context, mediaPath string) ([]diarization.Segment, error) {
	f.lastPath = mediaPath
	if f.err != nil {
		return nil, f.err
	}
	return f.segments, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestTranscribeRejectsEmptyContent(t *testing.T) {
	svc, err := NewService(&fakeSpeech{}, nil, testLogger())
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}

	_, err = svc.Transcribe(context.Background(), "standup.mp3", nil)
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTranscribeWrapsSpeechFailure(t *testing.T) {
	speech := &fakeSpeech{err: errors.New("upstream 500")}
	svc, _ := NewService(speech, nil, testLogger())

	_, err := svc.Transcribe(context.Background(), "standup.mp3", []byte("riff"))
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestTranscribeWithoutDiarizerDegradesToSingleSpeaker(t *testing.T) {
	speech := &fakeSpeech{resp: &openai.Transcription{
		Text:     "hello world",
		Duration: 2.5,
		Words: []openai.Word{
			{Word: "hello", Start: 0, End: 1},
			{Word: "world", Start: 1, End: 2},
		},
	}}
	svc, _ := NewService(speech, nil, testLogger())

	result, err := svc.Transcribe(context.Background(), "standup.mp3", []byte("riff"))
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if result.Text != "hello world" {
		t.Fatalf("unexpected transcript: %q", result.Text)
	}
	if result.SpeakerText != "[Speaker A]: hello world" {
		t.Fatalf("expected single-speaker degrade, got %q", result.SpeakerText)
	}
	if result.Duration != 2.5 {
		t.Fatalf("duration not carried: %v", result.Duration)
	}
}

func TestTranscribeAlignsDiarizedSpeakers(t *testing.T) {
	speech := &fakeSpeech{resp: &openai.Transcription{
		Text: "hi there ok",
		Words: []openai.Word{
			{Word: "hi", Start: 0, End: 0.5},
			{Word: "there", Start: 0.6, End: 1},
			{Word: "ok", Start: 2, End: 2.5},
		},
	}}
	diarizer := &fakeDiarizer{segments: []diarization.Segment{
		{Speaker: "A", Start: 0, End: 1.5},
		{Speaker: "B", Start: 1.5, End: 3},
	}}
	svc, _ := NewService(speech, diarizer, testLogger())

	result, err := svc.Transcribe(context.Background(), "standup.mp3", []byte("riff"))
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if !strings.Contains(result.SpeakerText, "[Speaker A]: hi there") {
		t.Fatalf("speaker A block missing: %q", result.SpeakerText)
	}
	if !strings.Contains(result.SpeakerText, "[Speaker B]: ok") {
		t.Fatalf("speaker B block missing: %q", result.SpeakerText)
	}
	if diarizer.lastPath == "" {
		t.Fatal("diarizer never received a media path")
	}
	if _, statErr := os.Stat(diarizer.lastPath); !os.IsNotExist(statErr) {
		t.Fatalf("temp media file was not cleaned up: %s", diarizer.lastPath)
	}
}

func TestTranscribeSurvivesDiarizerFailure(t *testing.T) {
	speech := &fakeSpeech{resp: &openai.Transcription{
		Text:  "hello world",
		Words: []openai.Word{{Word: "hello", Start: 0, End: 1}},
	}}
	diarizer := &fakeDiarizer{err: errors.New("model crashed")}
	svc, _ := NewService(speech, diarizer, testLogger())

	result, err := svc.Transcribe(context.Background(), "standup.mp3", []byte("riff"))
	if err != nil {
		t.Fatalf("diarizer failure must not fail transcription: %v", err)
	}
	if result.SpeakerText != "[Speaker A]: hello world" {
		t.Fatalf("expected degraded speaker text, got %q", result.SpeakerText)
	}
}
