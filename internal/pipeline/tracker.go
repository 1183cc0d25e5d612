package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"parkvision-service/internal/domain/occupancy"
	"parkvision-service/internal/observability"
)

// Tracker diffs each cycle's snapshot against the previous one and emits one
// event per zone whose status changed. Sink failures are logged and the
// event dropped; the stored snapshot always advances to the latest resolved
// truth regardless.
type Tracker struct {
	zones   []occupancy.Zone
	sink    occupancy.EventSink
	metrics *observability.Metrics
	log     zerolog.Logger
	now     func() time.Time

	prev occupancy.Snapshot
}

func NewTracker(zones []occupancy.Zone, sink occupancy.EventSink, metrics *observability.Metrics, log zerolog.Logger) *Tracker {
	return &Tracker{
		zones:   zones,
		sink:    sink,
		metrics: metrics,
		log:     log,
		now:     time.Now,
		prev:    occupancy.AllAvailable(zones),
	}
}

// Update compares the new snapshot against the stored one, zone by zone in
// configured order, writes one event per transition, and stores the new
// snapshot. Self-transitions never produce events.
func (t *Tracker) Update(ctx context.Context, snap occupancy.Snapshot) []occupancy.Event {
	var events []occupancy.Event
	for _, zone := range t.zones {
		cur := snap[zone.ID]

		prevStatus := occupancy.StatusAvailable
		if p, ok := t.prev[zone.ID]; ok {
			prevStatus = p.Status
		}
		if cur.Status == prevStatus {
			continue
		}

		ev := occupancy.Event{
			ZoneID:     zone.ID,
			Previous:   prevStatus,
			New:        cur.Status,
			IsVehicle:  isVehicle(cur.Status),
			Confidence: cur.Confidence,
			Label:      cur.Label,
			EventTime:  t.now(),
		}
		events = append(events, ev)
		t.metrics.EventsEmitted.Inc()

		if err := t.sink.WriteEvent(ctx, ev); err != nil {
			t.metrics.SinkFailures.Inc()
			t.log.Warn().
				Err(err).
				Str("zone", zone.ID).
				Str("previous", string(ev.Previous)).
				Str("new", string(ev.New)).
				Msg("event write failed, event dropped")
		} else {
			t.log.Info().
				Str("zone", zone.ID).
				Str("previous", string(ev.Previous)).
				Str("new", string(ev.New)).
				Msg("zone status changed")
		}
	}

	t.prev = snap
	return events
}

// Snapshot returns the tracker's current stored snapshot.
func (t *Tracker) Snapshot() occupancy.Snapshot {
	return t.prev
}

func isVehicle(s occupancy.Status) *bool {
	switch s {
	case occupancy.StatusOccupied:
		v := true
		return &v
	case occupancy.StatusObstacle:
		v := false
		return &v
	default:
		return nil
	}
}

// MultiSink fans one event out to several sinks. Every sink is attempted;
// failures are joined so the tracker logs them as one.
type MultiSink []occupancy.EventSink

func (m MultiSink) WriteEvent(ctx context.Context, ev occupancy.Event) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteEvent(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
