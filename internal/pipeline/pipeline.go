// Package pipeline implements the ingestion-and-occupancy pipeline: frame
// dispatch, zone resolution, change tracking and publication of shared state.
// A single goroutine owns the whole cycle; concurrency exists only between
// the pipeline and the publisher's readers.
package pipeline

import (
	"bytes"
	"context"
	"image/jpeg"
	"time"

	"github.com/rs/zerolog"

	"parkvision-service/internal/detect"
	"parkvision-service/internal/domain/occupancy"
	"parkvision-service/internal/mjpeg"
	"parkvision-service/internal/observability"
)

type Options struct {
	Zones               []occupancy.Zone
	Source              mjpeg.Source
	Detector            detect.Detector
	Sink                occupancy.EventSink
	ConfidenceThreshold float64
	ProcessEveryN       int
	VehicleClasses      map[string]struct{}
	ReconnectBackoff    time.Duration
	Metrics             *observability.Metrics
	Log                 zerolog.Logger
}

type Pipeline struct {
	zones      []occupancy.Zone
	dispatcher *Dispatcher
	resolver   *Resolver
	tracker    *Tracker
	publisher  *Publisher
	annotator  *Annotator
	supervisor *Supervisor
	metrics    *observability.Metrics
	log        zerolog.Logger
}

func New(opts Options) *Pipeline {
	p := &Pipeline{
		zones:      opts.Zones,
		dispatcher: NewDispatcher(opts.Detector, opts.ProcessEveryN, opts.ConfidenceThreshold, opts.Metrics, opts.Log),
		resolver:   NewResolver(opts.ConfidenceThreshold, opts.VehicleClasses),
		tracker:    NewTracker(opts.Zones, opts.Sink, opts.Metrics, opts.Log),
		publisher:  NewPublisher(opts.Zones),
		annotator:  NewAnnotator(opts.Zones),
		metrics:    opts.Metrics,
		log:        opts.Log,
	}
	p.supervisor = NewSupervisor(opts.Source, opts.ReconnectBackoff, p.handleFrame, opts.Metrics, opts.Log)
	return p
}

// Publisher exposes the shared-state boundary that viewers read from.
func (p *Pipeline) Publisher() *Publisher {
	return p.publisher
}

// Run drives the pipeline until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	p.supervisor.Run(ctx)
}

// handleFrame processes one extracted frame payload end to end. Cycles run
// strictly in frame-arrival order.
func (p *Pipeline) handleFrame(ctx context.Context, frameJPEG []byte) {
	img, err := jpeg.Decode(bytes.NewReader(frameJPEG))
	if err != nil {
		// Corrupt payload between valid markers: drop and move on.
		p.metrics.FramesDropped.Inc()
		p.log.Debug().Err(err).Msg("dropping undecodable frame")
		return
	}
	p.metrics.FramesProcessed.Inc()

	detections, _ := p.dispatcher.Dispatch(ctx, frameJPEG)
	snap := p.resolver.Resolve(detections, p.zones)
	p.tracker.Update(ctx, snap)

	annotated, err := p.annotator.Annotate(img, detections, snap)
	if err != nil {
		p.log.Warn().Err(err).Msg("frame annotation failed")
		return
	}
	p.publisher.Publish(annotated, snap)
}
