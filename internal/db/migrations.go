package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`CREATE TABLE IF NOT EXISTS parking_spaces (
		id                   TEXT PRIMARY KEY,
		status               TEXT NOT NULL DEFAULT 'available',
		current_occupancy_id UUID,
		updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE TABLE IF NOT EXISTS occupancy_history (
		id                UUID PRIMARY KEY,
		space_id          TEXT NOT NULL REFERENCES parking_spaces(id),
		time_of_entry     TIMESTAMPTZ NOT NULL,
		time_of_departure TIMESTAMPTZ,
		is_vehicle        BOOLEAN,
		duration_minutes  INT
	);`,
	`CREATE INDEX IF NOT EXISTS idx_occupancy_history_space_id ON occupancy_history(space_id);`,
	`CREATE INDEX IF NOT EXISTS idx_occupancy_history_time_of_entry ON occupancy_history(time_of_entry);`,
	`CREATE TABLE IF NOT EXISTS occupancy_events (
		id              BIGSERIAL PRIMARY KEY,
		space_id        TEXT NOT NULL REFERENCES parking_spaces(id),
		previous_status TEXT NOT NULL,
		new_status      TEXT NOT NULL,
		is_vehicle      BOOLEAN,
		detail          JSONB,
		event_time      TIMESTAMPTZ NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_occupancy_events_space_id ON occupancy_events(space_id);`,
	`CREATE INDEX IF NOT EXISTS idx_occupancy_events_event_time ON occupancy_events(event_time);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
