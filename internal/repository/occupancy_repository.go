package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"parkvision-service/internal/domain/occupancy"
)

type OccupancyRepository struct {
	db *gorm.DB
}

func NewOccupancyRepository(db *gorm.DB) *OccupancyRepository {
	return &OccupancyRepository{db: db}
}

type ParkingSpace struct {
	ID                 string `gorm:"primaryKey"`
	Status             string `gorm:"not null"`
	CurrentOccupancyID *string
	UpdatedAt          time.Time
}

type OccupancyHistory struct {
	ID              string    `gorm:"primaryKey"`
	SpaceID         string    `gorm:"not null"`
	TimeOfEntry     time.Time `gorm:"not null"`
	TimeOfDeparture *time.Time
	IsVehicle       *bool
	DurationMinutes *int
}

func (OccupancyHistory) TableName() string { return "occupancy_history" }

type OccupancyEvent struct {
	ID             int64  `gorm:"primaryKey"`
	SpaceID        string `gorm:"not null"`
	PreviousStatus string `gorm:"not null"`
	NewStatus      string `gorm:"not null"`
	IsVehicle      *bool
	Detail         datatypes.JSON `gorm:"type:jsonb"`
	EventTime      time.Time      `gorm:"not null"`
	CreatedAt      time.Time
}

// EnsureZones guarantees one parking_spaces row per configured zone, created
// as available. Existing rows keep their current status.
func (r *OccupancyRepository) EnsureZones(ctx context.Context, zoneIDs []string) error {
	for _, id := range zoneIDs {
		space := ParkingSpace{
			ID:        id,
			Status:    string(occupancy.StatusAvailable),
			UpdatedAt: time.Now(),
		}
		if err := r.db.WithContext(ctx).Where("id = ?", id).FirstOrCreate(&space).Error; err != nil {
			return fmt.Errorf("ensure zone %s: %w", id, err)
		}
	}
	return nil
}

type eventDetail struct {
	Confidence float64 `json:"confidence"`
	Label      string  `json:"label,omitempty"`
}

// WriteEvent persists one status transition: an event row always, plus the
// occupancy bookkeeping the transition implies. An object entering an
// available space opens an occupancy record; a space becoming available
// closes the open record with its duration; occupied<->obstacle changes only
// update the space status. Implements occupancy.EventSink.
func (r *OccupancyRepository) WriteEvent(ctx context.Context, ev occupancy.Event) error {
	detail, err := json.Marshal(eventDetail{Confidence: ev.Confidence, Label: ev.Label})
	if err != nil {
		return fmt.Errorf("marshal event detail: %w", err)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := OccupancyEvent{
			SpaceID:        ev.ZoneID,
			PreviousStatus: string(ev.Previous),
			NewStatus:      string(ev.New),
			IsVehicle:      ev.IsVehicle,
			Detail:         datatypes.JSON(detail),
			EventTime:      ev.EventTime,
			CreatedAt:      time.Now(),
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert event: %w", err)
		}

		switch {
		case ev.Previous == occupancy.StatusAvailable && ev.New != occupancy.StatusAvailable:
			return openOccupancy(tx, ev)
		case ev.New == occupancy.StatusAvailable:
			return closeOccupancy(tx, ev)
		default:
			// occupied <-> obstacle: same object, reclassified.
			return updateSpaceStatus(tx, ev.ZoneID, ev.New, nil, false)
		}
	})
}

func openOccupancy(tx *gorm.DB, ev occupancy.Event) error {
	occID := uuid.NewString()
	history := OccupancyHistory{
		ID:          occID,
		SpaceID:     ev.ZoneID,
		TimeOfEntry: ev.EventTime,
		IsVehicle:   ev.IsVehicle,
	}
	if err := tx.Create(&history).Error; err != nil {
		return fmt.Errorf("open occupancy: %w", err)
	}
	return updateSpaceStatus(tx, ev.ZoneID, ev.New, &occID, true)
}

func closeOccupancy(tx *gorm.DB, ev occupancy.Event) error {
	var space ParkingSpace
	err := tx.Where("id = ?", ev.ZoneID).First(&space).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("load space: %w", err)
	}

	if err == nil && space.CurrentOccupancyID != nil {
		var history OccupancyHistory
		if err := tx.Where("id = ?", *space.CurrentOccupancyID).First(&history).Error; err == nil {
			minutes := int(ev.EventTime.Sub(history.TimeOfEntry).Minutes())
			updates := map[string]interface{}{
				"time_of_departure": ev.EventTime,
				"duration_minutes":  minutes,
			}
			if err := tx.Model(&OccupancyHistory{}).Where("id = ?", history.ID).Updates(updates).Error; err != nil {
				return fmt.Errorf("close occupancy: %w", err)
			}
		}
	}

	return updateSpaceStatus(tx, ev.ZoneID, ev.New, nil, true)
}

func updateSpaceStatus(tx *gorm.DB, spaceID string, status occupancy.Status, occupancyID *string, clearOccupancy bool) error {
	updates := map[string]interface{}{
		"status":     string(status),
		"updated_at": time.Now(),
	}
	if occupancyID != nil || clearOccupancy {
		updates["current_occupancy_id"] = occupancyID
	}
	if err := tx.Model(&ParkingSpace{}).Where("id = ?", spaceID).Updates(updates).Error; err != nil {
		return fmt.Errorf("update space %s: %w", spaceID, err)
	}
	return nil
}

func (r *OccupancyRepository) FindEvents(ctx context.Context, spaceID *string, from, to *time.Time, limit, offset int) ([]OccupancyEvent, error) {
	query := r.db.WithContext(ctx).Model(&OccupancyEvent{})

	if spaceID != nil {
		query = query.Where("space_id = ?", *spaceID)
	}
	if from != nil {
		query = query.Where("event_time >= ?", *from)
	}
	if to != nil {
		query = query.Where("event_time <= ?", *to)
	}

	query = query.Order("event_time DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var events []OccupancyEvent
	err := query.Find(&events).Error
	return events, err
}

func (r *OccupancyRepository) CountEventsSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&OccupancyEvent{}).
		Where("event_time >= ?", since).
		Count(&count).Error
	return count, err
}
