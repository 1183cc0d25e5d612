package pipeline

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"parkvision-service/internal/mjpeg"
	"parkvision-service/internal/observability"
)

// Supervisor owns the connect/extract/reconnect loop around the frame
// extractor. It runs until the context is cancelled; cancellation is checked
// between frames, never mid-flight.
type Supervisor struct {
	source  mjpeg.Source
	backoff time.Duration
	handle  func(ctx context.Context, frameJPEG []byte)
	metrics *observability.Metrics
	log     zerolog.Logger
}

func NewSupervisor(source mjpeg.Source, backoff time.Duration, handle func(context.Context, []byte), metrics *observability.Metrics, log zerolog.Logger) *Supervisor {
	return &Supervisor{
		source:  source,
		backoff: backoff,
		handle:  handle,
		metrics: metrics,
		log:     log,
	}
}

// Run connects to the source and feeds frames to the handler. On source loss
// or connect failure it waits one backoff interval and reconnects with a
// fresh extractor, discarding any in-flight partial frame.
func (s *Supervisor) Run(ctx context.Context) {
	for ctx.Err() == nil {
		s.metrics.StreamReconnects.Inc()
		body, err := s.source.Open(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Warn().Err(err).Dur("backoff", s.backoff).Msg("stream connect failed")
			if !s.wait(ctx) {
				return
			}
			continue
		}

		s.log.Info().Msg("connected to camera stream")
		s.consume(ctx, body)
		body.Close()

		if !s.wait(ctx) {
			return
		}
	}
}

func (s *Supervisor) consume(ctx context.Context, r io.Reader) {
	extractor := mjpeg.NewExtractor(r)
	for ctx.Err() == nil {
		frame, err := extractor.Next()
		if err != nil {
			if ctx.Err() == nil && errors.Is(err, mjpeg.ErrSourceLost) {
				s.log.Warn().Err(err).Msg("stream lost")
			}
			return
		}
		s.handle(ctx, frame)
	}
}

func (s *Supervisor) wait(ctx context.Context) bool {
	timer := time.NewTimer(s.backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
