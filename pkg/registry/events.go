package registry

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChangeEvent is the minimal payload emitted after every successful
// authoritative write. Downstream collaborators (search indexer, DOI
// publisher) consume it.
type ChangeEvent struct {
	Identifier        string    `json:"identifier"`
	VersionKey        string    `json:"versionKey"`
	OwnerProvenanceID string    `json:"ownerProvenanceId"`
	ChangedByOwner    bool      `json:"changedByOwner"`
	OccurredAt        time.Time `json:"occurredAt"`
}

// Emitter delivers change events. Emission happens only after the
// authoritative write has succeeded; delivery failures are logged, never
// surfaced, since the write is already durable.
type Emitter interface {
	Emit(event ChangeEvent) error
}

// LogEmitter writes change events to the structured log. Suitable for
// embedded deployments with no downstream consumers.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter creates a LogEmitter. A nil logger uses slog.Default.
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger}
}

// Emit implements Emitter.
func (e *LogEmitter) Emit(event ChangeEvent) error {
	e.logger.Info("record changed",
		"identifier", event.Identifier,
		"versionKey", event.VersionKey,
		"ownerProvenanceId", event.OwnerProvenanceID,
		"changedByOwner", event.ChangedByOwner)
	return nil
}

// ChangeEventRecord is an immutable persisted change event.
type ChangeEventRecord struct {
	ID                string    `json:"id" gorm:"primaryKey;column:id;type:varchar(36)"`
	Identifier        string    `json:"identifier" gorm:"column:identifier;index:idx_events_id_time,priority:1;not null"`
	VersionKey        string    `json:"versionKey" gorm:"column:version_key;not null"`
	OwnerProvenanceID string    `json:"ownerProvenanceId" gorm:"column:owner_provenance_id;not null"`
	ChangedByOwner    bool      `json:"changedByOwner" gorm:"column:changed_by_owner;not null"`
	OccurredAt        time.Time `json:"occurredAt" gorm:"column:occurred_at;index:idx_events_id_time,priority:2;not null"`
}

// TableName returns the GORM table name.
func (ChangeEventRecord) TableName() string { return "change_events" }

// EventStore persists change events for downstream consumers to poll.
type EventStore struct {
	db *gorm.DB
}

// NewEventStore creates a new EventStore.
func NewEventStore(db *gorm.DB) *EventStore {
	return &EventStore{db: db}
}

// AutoMigrate creates or updates the change_events table.
func (s *EventStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&ChangeEventRecord{}); err != nil {
		return fmt.Errorf("auto-migrate change_events: %w", err)
	}
	return nil
}

// Emit implements Emitter by appending an event row.
func (s *EventStore) Emit(event ChangeEvent) error {
	row := ChangeEventRecord{
		ID:                uuid.New().String(),
		Identifier:        event.Identifier,
		VersionKey:        event.VersionKey,
		OwnerProvenanceID: event.OwnerProvenanceID,
		ChangedByOwner:    event.ChangedByOwner,
		OccurredAt:        event.OccurredAt,
	}
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("append change event: %w", err)
	}
	return nil
}

// ListByIdentifier returns events for one record, oldest first.
func (s *EventStore) ListByIdentifier(identifier string, limit int) ([]ChangeEventRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []ChangeEventRecord
	err := s.db.
		Where("identifier = ?", identifier).
		Order("occurred_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list change events: %w", err)
	}
	return rows, nil
}

// Prune deletes events older than the retention horizon. Returns the number
// of rows removed.
func (s *EventStore) Prune(olderThan time.Time) (int64, error) {
	res := s.db.Where("occurred_at < ?", olderThan).Delete(&ChangeEventRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune change events: %w", res.Error)
	}
	return res.RowsAffected, nil
}
