package occupancy

import (
	"context"
	"time"

	"github.com/paulmach/orb"
)

// Status is a zone's derived occupancy classification.
type Status string

const (
	StatusAvailable Status = "available"
	StatusOccupied  Status = "occupied"
	StatusObstacle  Status = "obstacle"
)

// Zone is a statically configured rectangular region of the camera frame,
// loaded once at startup and never mutated.
type Zone struct {
	ID   string
	Rect orb.Bound
}

func NewZone(id string, x1, y1, x2, y2 float64) Zone {
	return Zone{
		ID:   id,
		Rect: orb.Bound{Min: orb.Point{x1, y1}, Max: orb.Point{x2, y2}},
	}
}

// Detection is one object-detector output, valid for a single dispatch cycle.
type Detection struct {
	Box        orb.Bound `json:"box"`
	Confidence float64   `json:"confidence"`
	Class      string    `json:"class"`
}

// Center returns the midpoint of the detection's bounding box.
func (d Detection) Center() orb.Point {
	return orb.Point{
		(d.Box.Min[0] + d.Box.Max[0]) / 2,
		(d.Box.Min[1] + d.Box.Max[1]) / 2,
	}
}

// ZoneStatus is the resolved occupancy of one zone for one cycle.
// Confidence is 0 and Label empty when the zone is available.
type ZoneStatus struct {
	Status     Status  `json:"status"`
	Confidence float64 `json:"confidence"`
	Label      string  `json:"label,omitempty"`
}

// Snapshot maps zone ID to its current status. Exactly one entry exists per
// configured zone; a snapshot is never mutated after it leaves the resolver.
type Snapshot map[string]ZoneStatus

// AllAvailable builds the initial snapshot: every zone available.
func AllAvailable(zones []Zone) Snapshot {
	snap := make(Snapshot, len(zones))
	for _, z := range zones {
		snap[z.ID] = ZoneStatus{Status: StatusAvailable}
	}
	return snap
}

// Counts tallies the snapshot by status.
func (s Snapshot) Counts() (available, occupied, obstacle int) {
	for _, zs := range s {
		switch zs.Status {
		case StatusOccupied:
			occupied++
		case StatusObstacle:
			obstacle++
		default:
			available++
		}
	}
	return
}

// Event records one status transition for one zone. IsVehicle is true for a
// transition into occupied, false for obstacle, nil for available.
type Event struct {
	ZoneID     string    `json:"zone_id"`
	Previous   Status    `json:"previous_status"`
	New        Status    `json:"new_status"`
	IsVehicle  *bool     `json:"is_vehicle,omitempty"`
	Confidence float64   `json:"confidence"`
	Label      string    `json:"label,omitempty"`
	EventTime  time.Time `json:"event_time"`
}

// EventSink receives transition events. Implementations decide delivery
// semantics; the change tracker treats a returned error as non-fatal.
type EventSink interface {
	WriteEvent(ctx context.Context, ev Event) error
}
