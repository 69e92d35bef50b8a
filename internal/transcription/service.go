package transcription

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kirki-ai/kirki-backend/internal/diarization"
	pkgerrors "github.com/kirki-ai/kirki-backend/pkg/errors"
	"github.com/kirki-ai/kirki-backend/pkg/logger"
	"github.com/kirki-ai/kirki-backend/pkg/openai"
)

// Result is the output of one transcription run.
type Result struct {
	Text        string
	SpeakerText string
	Duration    float64
}

type speechClient interface {
	Transcribe(ctx context.Context, filename string, content []byte) (*openai.Transcription, error)
}

// Diarizer produces speaker intervals for a local media file. A nil Diarizer
// means diarization is unavailable and alignment degrades gracefully.
type Diarizer interface {
	Diarize(ctx context.Context, mediaPath string) ([]diarization.Segment, error)
}

// Service converts media bytes into a transcript and a speaker-labeled
// transcript.
type Service interface {
	Transcribe(ctx context.Context, filename string, content []byte) (*Result, error)
}

type service struct {
	speech   speechClient
	diarizer Diarizer
	logg     *logger.Logger
}

// NewService builds the transcription service. The diarizer is optional.
func NewService(speech speechClient, diarizer Diarizer, logg *logger.Logger) (Service, error) {
	if speech == nil {
		return nil, fmt.Errorf("speech client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{speech: speech, diarizer: diarizer, logg: logg}, nil
}

func (s *service) Transcribe(ctx context.Context, filename string, content []byte) (*Result, error) {
	if len(content) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "media content is empty")
	}

	resp, err := s.speech.Transcribe(ctx, filename, content)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transcription failed")
	}

	words := make([]diarization.Word, 0, len(resp.Words))
	for _, w := range resp.Words {
		words = append(words, diarization.Word{Text: w.Word, Start: w.Start, End: w.End})
	}

	segments := s.diarize(ctx, filename, content)
	speakerText := diarization.Align(words, segments, resp.Text)

	return &Result{
		Text:        resp.Text,
		SpeakerText: speakerText,
		Duration:    resp.Duration,
	}, nil
}

// diarize materializes the media into a scoped temp file for the diarizer.
// Diarization failure never fails the transcription stage.
func (s *service) diarize(ctx context.Context, filename string, content []byte) []diarization.Segment {
	if s.diarizer == nil {
		return nil
	}

	suffix := filepath.Ext(filename)
	if suffix == "" {
		suffix = ".mp4"
	}

	tmp, err := os.CreateTemp("", "kirki-media-*"+suffix)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "temp file for diarization failed")
		return nil
	}
	tmpPath := tmp.Name()
	defer func() {
		if removeErr := os.Remove(tmpPath); removeErr != nil && !os.IsNotExist(removeErr) {
			s.logg.Warn(s.logg.WithField(ctx, "error", removeErr.Error()), "temp file cleanup failed")
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "writing media for diarization failed")
		return nil
	}
	if err := tmp.Close(); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "closing media temp file failed")
		return nil
	}

	segments, err := s.diarizer.Diarize(ctx, tmpPath)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "diarization failed, continuing without speakers")
		return nil
	}
	return segments
}
