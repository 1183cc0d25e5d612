package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's prometheus collectors. Detector latency is
// recorded for observability only and never drives control flow.
type Metrics struct {
	FramesProcessed  prometheus.Counter
	FramesDropped    prometheus.Counter
	DetectorCalls    prometheus.Counter
	DetectorFailures prometheus.Counter
	DetectorLatency  prometheus.Histogram
	EventsEmitted    prometheus.Counter
	SinkFailures     prometheus.Counter
	StreamReconnects prometheus.Counter
	ConnectedViewers prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parkvision_frames_processed_total",
			Help: "Decoded frames run through the pipeline.",
		}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parkvision_frames_dropped_total",
			Help: "Frame payloads dropped because they failed to decode.",
		}),
		DetectorCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parkvision_detector_calls_total",
			Help: "Invocations of the external object detector.",
		}),
		DetectorFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parkvision_detector_failures_total",
			Help: "Detector calls that failed and degraded to zero detections.",
		}),
		DetectorLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "parkvision_detector_latency_seconds",
			Help:    "Wall-clock latency of detector invocations.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		EventsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parkvision_occupancy_events_total",
			Help: "Zone status transitions emitted.",
		}),
		SinkFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parkvision_event_sink_failures_total",
			Help: "Event writes that failed at a sink.",
		}),
		StreamReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parkvision_stream_reconnects_total",
			Help: "Reconnection attempts to the camera stream.",
		}),
		ConnectedViewers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "parkvision_connected_viewers",
			Help: "Currently connected MJPEG viewers.",
		}),
	}

	reg.MustRegister(
		m.FramesProcessed,
		m.FramesDropped,
		m.DetectorCalls,
		m.DetectorFailures,
		m.DetectorLatency,
		m.EventsEmitted,
		m.SinkFailures,
		m.StreamReconnects,
		m.ConnectedViewers,
	)
	return m
}
