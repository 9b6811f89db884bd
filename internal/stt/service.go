package stt

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"audioreport/internal/logging"
	"audioreport/internal/metrics"
	"audioreport/internal/model"
	"audioreport/internal/storage"
)

// Cleaner removes disfluencies from a raw transcript.
type Cleaner func(string) string

// Service turns uploaded audio into a transcript record. Each call holds the
// model only for its own inference.
type Service struct {
	ctrl    *Controller
	tier    Tier
	tempDir string
	clean   Cleaner
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewService creates a transcription service. clean may be nil, in which
// case cleaning requests return the raw text.
func NewService(ctrl *Controller, tier Tier, tempDir string, clean Cleaner, m *metrics.Metrics) *Service {
	return &Service{
		ctrl:    ctrl,
		tier:    tier,
		tempDir: tempDir,
		clean:   clean,
		metrics: m,
		log:     logging.Component("stt"),
	}
}

// Transcribe persists audio to a temp file, runs it through the model and
// optionally cleans the text. The temp file and the model are released
// before it returns, on every path.
func (s *Service) Transcribe(ctx context.Context, audio io.Reader, filename string, wantCleaning bool) (*model.TranscriptRecord, error) {
	start := time.Now()
	s.metrics.RecordTranscriptionRequest()

	res, err := s.run(ctx, audio, filename)
	if err != nil {
		s.metrics.RecordTranscriptionFailure(time.Since(start).Seconds())
		return nil, err
	}
	s.metrics.RecordTranscriptionSuccess(time.Since(start).Seconds())

	rec := &model.TranscriptRecord{RawText: res.Text, CleanedText: res.Text}
	if wantCleaning && s.clean != nil {
		rec.CleanedText = s.clean(res.Text)
		rec.CleaningApplied = true
	}

	s.log.Info().
		Str("tier", res.Tier.String()).
		Str("device", string(res.Device)).
		Dur("inference", res.Duration).
		Int("chars", len(res.Text)).
		Bool("cleaned", rec.CleaningApplied).
		Msg("transcription complete")
	return rec, nil
}

func (s *Service) run(ctx context.Context, audio io.Reader, filename string) (*Result, error) {
	path, cleanup, err := storage.SaveTemp(s.tempDir, audio, filename)
	if err != nil {
		return nil, &TranscriptionError{Err: err}
	}
	defer cleanup()

	if d, ok, err := storage.AudioDuration(path); err != nil {
		return nil, model.NewValidationError("file", "unreadable audio: "+err.Error())
	} else if ok {
		s.log.Debug().Dur("audio_duration", d).Str("file", filename).Msg("audio received")
	}

	h, err := s.ctrl.Acquire(ctx, s.tier)
	if err != nil {
		return nil, err
	}
	defer s.ctrl.Release(h)

	start := time.Now()
	text, err := h.Transcribe(ctx, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.log.Error().Err(err).Str("handle", h.ID.String()).Msg("inference failed")
		return nil, &TranscriptionError{Err: err}
	}

	return &Result{
		Text:     strings.TrimSpace(text),
		Tier:     h.Tier,
		Device:   h.Device,
		Backend:  s.ctrl.loader.Name(),
		Duration: time.Since(start),
	}, nil
}
