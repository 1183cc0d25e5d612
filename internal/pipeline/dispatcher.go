package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"parkvision-service/internal/detect"
	"parkvision-service/internal/domain/occupancy"
	"parkvision-service/internal/observability"
)

// Dispatcher throttles detector invocations to every Nth frame. Skip cycles
// reuse the detection set from the most recent run cycle unmodified, so a
// skip is never mistaken for "no detections".
type Dispatcher struct {
	detector  detect.Detector
	everyN    uint64
	threshold float64
	metrics   *observability.Metrics
	log       zerolog.Logger

	frameCount uint64
	cached     []occupancy.Detection
}

func NewDispatcher(detector detect.Detector, processEveryN int, confidenceThreshold float64, metrics *observability.Metrics, log zerolog.Logger) *Dispatcher {
	if processEveryN < 1 {
		processEveryN = 1
	}
	return &Dispatcher{
		detector:  detector,
		everyN:    uint64(processEveryN),
		threshold: confidenceThreshold,
		metrics:   metrics,
		log:       log,
	}
}

// Dispatch advances the frame counter and returns the detection set for this
// cycle plus whether the detector actually ran. A failed detector call
// degrades the run cycle to zero detections and never stops ingestion.
func (d *Dispatcher) Dispatch(ctx context.Context, frameJPEG []byte) ([]occupancy.Detection, bool) {
	d.frameCount++
	if d.frameCount%d.everyN != 0 {
		return d.cached, false
	}

	start := time.Now()
	detections, err := d.detector.Detect(ctx, frameJPEG, d.threshold)
	elapsed := time.Since(start)

	d.metrics.DetectorCalls.Inc()
	d.metrics.DetectorLatency.Observe(elapsed.Seconds())

	if err != nil {
		d.metrics.DetectorFailures.Inc()
		d.log.Warn().Err(err).Uint64("frame", d.frameCount).Msg("detector call failed, using zero detections for this cycle")
		detections = nil
	} else {
		d.log.Debug().
			Uint64("frame", d.frameCount).
			Int("detections", len(detections)).
			Dur("latency", elapsed).
			Msg("detector ran")
	}

	d.cached = detections
	return detections, true
}
