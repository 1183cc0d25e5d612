package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"parkvision-service/internal/domain/occupancy"
	"parkvision-service/internal/repository"
)

var ErrInvalidInput = errors.New("invalid input")

// StateReader is the publisher-side view the service reads live state from.
type StateReader interface {
	Read() (frameJPEG []byte, snap occupancy.Snapshot, seq uint64)
}

// OccupancyService is the read side behind the JSON API: live state from the
// publisher, history from the event store.
type OccupancyService struct {
	repo  *repository.OccupancyRepository
	state StateReader
	log   zerolog.Logger
}

func NewOccupancyService(repo *repository.OccupancyRepository, state StateReader, log zerolog.Logger) *OccupancyService {
	return &OccupancyService{
		repo:  repo,
		state: state,
		log:   log,
	}
}

type ZoneInfo struct {
	ID         string  `json:"id"`
	Status     string  `json:"status"`
	Confidence float64 `json:"confidence"`
	Label      string  `json:"label,omitempty"`
}

type EventInfo struct {
	ID             int64     `json:"id"`
	ZoneID         string    `json:"zone_id"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	IsVehicle      *bool     `json:"is_vehicle,omitempty"`
	EventTime      time.Time `json:"event_time"`
}

type StatsInfo struct {
	Available   int   `json:"available"`
	Occupied    int   `json:"occupied"`
	Obstacle    int   `json:"obstacle"`
	EventsToday int64 `json:"events_today"`
}

// CurrentZones returns the latest published snapshot, sorted by zone ID.
func (s *OccupancyService) CurrentZones() []ZoneInfo {
	_, snap, _ := s.state.Read()

	zones := make([]ZoneInfo, 0, len(snap))
	for id, zs := range snap {
		zones = append(zones, ZoneInfo{
			ID:         id,
			Status:     string(zs.Status),
			Confidence: zs.Confidence,
			Label:      zs.Label,
		})
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i].ID < zones[j].ID })
	return zones
}

// LatestFrame returns the newest annotated JPEG and its publish sequence.
func (s *OccupancyService) LatestFrame() ([]byte, uint64) {
	frame, _, seq := s.state.Read()
	return frame, seq
}

func (s *OccupancyService) FindEvents(ctx context.Context, zone *string, from, to *string, limit, offset int) ([]EventInfo, error) {
	var fromTime, toTime *time.Time
	if from != nil && *from != "" {
		t, err := time.Parse(time.RFC3339, *from)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid from time format", ErrInvalidInput)
		}
		fromTime = &t
	}
	if to != nil && *to != "" {
		t, err := time.Parse(time.RFC3339, *to)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid to time format", ErrInvalidInput)
		}
		toTime = &t
	}

	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	events, err := s.repo.FindEvents(ctx, zone, fromTime, toTime, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to find events: %w", err)
	}

	result := make([]EventInfo, 0, len(events))
	for _, e := range events {
		result = append(result, EventInfo{
			ID:             e.ID,
			ZoneID:         e.SpaceID,
			PreviousStatus: e.PreviousStatus,
			NewStatus:      e.NewStatus,
			IsVehicle:      e.IsVehicle,
			EventTime:      e.EventTime,
		})
	}
	return result, nil
}

// Stats combines the live snapshot tallies with today's event count. A store
// failure degrades the count to zero rather than failing the whole response.
func (s *OccupancyService) Stats(ctx context.Context) StatsInfo {
	_, snap, _ := s.state.Read()
	available, occupied, obstacle := snap.Counts()

	midnight := time.Now().Truncate(24 * time.Hour)
	eventsToday, err := s.repo.CountEventsSince(ctx, midnight)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to count today's events")
	}

	return StatsInfo{
		Available:   available,
		Occupied:    occupied,
		Obstacle:    obstacle,
		EventsToday: eventsToday,
	}
}
