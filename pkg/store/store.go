// Package store persists registry items in a key-value layout over GORM:
// one row per (partition key, version key), with the entity body serialized
// as JSON. Records and provenance actors share the table, distinguished by
// key namespace prefix, so a scan over one record key yields exactly its
// version history plus its latest and tombstone states.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/dmphub/dmphub/pkg/dmp"
)

// ErrKeyExists is returned by conditional writes when the (key, version)
// pair is already present. Snapshot writers rely on this to detect benign
// races instead of overwriting history.
var ErrKeyExists = errors.New("store: key already exists")

// itemRow is the persisted form of any registry item.
type itemRow struct {
	ItemKey    string    `gorm:"primaryKey;column:item_key;type:varchar(512);not null"`
	VersionKey string    `gorm:"primaryKey;column:version_key;type:varchar(128);not null"`
	Body       string    `gorm:"column:body;type:text;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (itemRow) TableName() string { return "registry_items" }

// RecordStore provides point lookup, conditional write, and version scans
// for DMP records.
type RecordStore struct {
	db *gorm.DB
}

// NewRecordStore creates a new RecordStore.
func NewRecordStore(db *gorm.DB) *RecordStore {
	return &RecordStore{db: db}
}

// AutoMigrate creates or updates the registry_items table.
func (s *RecordStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&itemRow{}); err != nil {
		return fmt.Errorf("auto-migrate registry_items: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for stores sharing the table.
func (s *RecordStore) DB() *gorm.DB { return s.db }

// Get retrieves one record version. Returns nil, nil if no row exists.
func (s *RecordStore) Get(identifier, versionKey string) (*dmp.Record, error) {
	var row itemRow
	err := s.db.
		Where("item_key = ? AND version_key = ?", dmp.RecordKey(identifier), versionKey).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get record %s@%s: %w", identifier, versionKey, err)
	}
	var rec dmp.Record
	if err := json.Unmarshal([]byte(row.Body), &rec); err != nil {
		return nil, fmt.Errorf("decode record %s@%s: %w", identifier, versionKey, err)
	}
	return &rec, nil
}

// Put writes a record version unconditionally (insert or replace).
func (s *RecordStore) Put(identifier, versionKey string, rec dmp.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", identifier, err)
	}
	row := itemRow{
		ItemKey:    dmp.RecordKey(identifier),
		VersionKey: versionKey,
		Body:       string(body),
	}
	err = s.db.Save(&row).Error
	if err != nil {
		return fmt.Errorf("put record %s@%s: %w", identifier, versionKey, err)
	}
	return nil
}

// PutIfAbsent writes a record version only when the (key, version) pair
// does not already exist. Returns ErrKeyExists on collision.
func (s *RecordStore) PutIfAbsent(identifier, versionKey string, rec dmp.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", identifier, err)
	}
	row := itemRow{
		ItemKey:    dmp.RecordKey(identifier),
		VersionKey: versionKey,
		Body:       string(body),
	}
	err = s.db.Create(&row).Error
	if err != nil {
		if isDuplicateKey(err) {
			return ErrKeyExists
		}
		return fmt.Errorf("put-if-absent record %s@%s: %w", identifier, versionKey, err)
	}
	return nil
}

// ListLatestByOwner returns the latest version of every record owned by
// the provenance. The owner lives inside the serialized body, so the scan
// filters after decoding.
func (s *RecordStore) ListLatestByOwner(ownerProvenanceID string) ([]dmp.Record, error) {
	var rows []itemRow
	err := s.db.
		Where("item_key LIKE ? AND version_key = ?", dmp.RecordKeyPrefix+"%", dmp.VersionLatest).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list latest by owner %s: %w", ownerProvenanceID, err)
	}
	out := make([]dmp.Record, 0, len(rows))
	for _, row := range rows {
		var rec dmp.Record
		if err := json.Unmarshal([]byte(row.Body), &rec); err != nil {
			return nil, fmt.Errorf("decode record %s@%s: %w", dmp.StripRecordKey(row.ItemKey), row.VersionKey, err)
		}
		if rec.OwnerProvenanceID != ownerProvenanceID {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Delete removes one record version. Deleting a missing row is a no-op.
func (s *RecordStore) Delete(identifier, versionKey string) error {
	err := s.db.
		Where("item_key = ? AND version_key = ?", dmp.RecordKey(identifier), versionKey).
		Delete(&itemRow{}).Error
	if err != nil {
		return fmt.Errorf("delete record %s@%s: %w", identifier, versionKey, err)
	}
	return nil
}

// Exists reports whether any version of the identifier is present.
func (s *RecordStore) Exists(identifier string) (bool, error) {
	var count int64
	err := s.db.Model(&itemRow{}).
		Where("item_key = ?", dmp.RecordKey(identifier)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", identifier, err)
	}
	return count > 0, nil
}

// ListVersionKeys returns every version key stored for the identifier,
// sorted with latest first, then snapshots newest to oldest, then the
// tombstone.
func (s *RecordStore) ListVersionKeys(identifier string) ([]string, error) {
	var keys []string
	err := s.db.Model(&itemRow{}).
		Where("item_key = ?", dmp.RecordKey(identifier)).
		Pluck("version_key", &keys).Error
	if err != nil {
		return nil, fmt.Errorf("list versions %s: %w", identifier, err)
	}
	sort.Slice(keys, func(i, j int) bool {
		return versionRank(keys[i]) < versionRank(keys[j])
	})
	return keys, nil
}

// versionRank orders latest < snapshots (newest first) < tombstone.
func versionRank(key string) string {
	switch key {
	case dmp.VersionLatest:
		return "0"
	case dmp.VersionTombstone:
		return "2"
	}
	if ts, ok := dmp.VersionTimestamp(key); ok {
		// Invert so newer snapshots sort first.
		return "1" + fmt.Sprintf("%020d", int64(1)<<62-ts.UnixNano())
	}
	return "1" + key
}

// isDuplicateKey recognizes unique-constraint violations across the
// supported dialects.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "Duplicate entry")
}
