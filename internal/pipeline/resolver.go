package pipeline

import (
	"strings"

	"parkvision-service/internal/domain/occupancy"
)

// Resolver maps a detection set onto configured zones by center-point
// containment. Resolve is pure: no I/O, no stored state.
type Resolver struct {
	threshold      float64
	vehicleClasses map[string]struct{}
}

func NewResolver(confidenceThreshold float64, vehicleClasses map[string]struct{}) *Resolver {
	return &Resolver{
		threshold:      confidenceThreshold,
		vehicleClasses: vehicleClasses,
	}
}

// Resolve produces one ZoneStatus per zone, each zone judged independently.
// Repeated calls with identical inputs yield identical snapshots.
func (r *Resolver) Resolve(detections []occupancy.Detection, zones []occupancy.Zone) occupancy.Snapshot {
	snap := make(occupancy.Snapshot, len(zones))
	for _, zone := range zones {
		snap[zone.ID] = r.resolveZone(detections, zone)
	}
	return snap
}

// resolveZone keeps the strictly-highest-confidence detection whose center
// lies within the zone rectangle (bounds inclusive). An exact confidence tie
// keeps the first detection encountered.
func (r *Resolver) resolveZone(detections []occupancy.Detection, zone occupancy.Zone) occupancy.ZoneStatus {
	var best *occupancy.Detection
	for i := range detections {
		if !zone.Rect.Contains(detections[i].Center()) {
			continue
		}
		if best == nil || detections[i].Confidence > best.Confidence {
			best = &detections[i]
		}
	}

	if best == nil || best.Confidence <= r.threshold {
		return occupancy.ZoneStatus{Status: occupancy.StatusAvailable}
	}

	status := occupancy.StatusObstacle
	if _, ok := r.vehicleClasses[strings.ToLower(best.Class)]; ok {
		status = occupancy.StatusOccupied
	}
	return occupancy.ZoneStatus{
		Status:     status,
		Confidence: best.Confidence,
		Label:      best.Class,
	}
}
