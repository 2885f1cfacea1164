package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/dmphub/dmphub/pkg/dmp"
)

// ProvenanceStore persists provenance actors in the same table as records,
// under the PROVENANCE key namespace. Provenance entries are unversioned;
// they are stored under the latest version key only.
type ProvenanceStore struct {
	db *gorm.DB
}

// NewProvenanceStore creates a new ProvenanceStore.
func NewProvenanceStore(db *gorm.DB) *ProvenanceStore {
	return &ProvenanceStore{db: db}
}

// AutoMigrate creates or updates the shared registry_items table.
func (s *ProvenanceStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&itemRow{}); err != nil {
		return fmt.Errorf("auto-migrate registry_items: %w", err)
	}
	return nil
}

// Get retrieves a provenance actor by key. Returns nil, nil if unknown.
func (s *ProvenanceStore) Get(key string) (*dmp.Provenance, error) {
	var row itemRow
	err := s.db.
		Where("item_key = ? AND version_key = ?", dmp.ProvenanceKey(key), dmp.VersionLatest).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get provenance %s: %w", key, err)
	}
	var p dmp.Provenance
	if err := json.Unmarshal([]byte(row.Body), &p); err != nil {
		return nil, fmt.Errorf("decode provenance %s: %w", key, err)
	}
	return &p, nil
}

// Put inserts or replaces a provenance actor.
func (s *ProvenanceStore) Put(p dmp.Provenance) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode provenance %s: %w", p.Key, err)
	}
	row := itemRow{
		ItemKey:    dmp.ProvenanceKey(p.Key),
		VersionKey: dmp.VersionLatest,
		Body:       string(body),
	}
	if err := s.db.Save(&row).Error; err != nil {
		return fmt.Errorf("put provenance %s: %w", p.Key, err)
	}
	return nil
}

// Delete removes a provenance actor. Records owned by it are untouched.
func (s *ProvenanceStore) Delete(key string) error {
	err := s.db.
		Where("item_key = ? AND version_key = ?", dmp.ProvenanceKey(key), dmp.VersionLatest).
		Delete(&itemRow{}).Error
	if err != nil {
		return fmt.Errorf("delete provenance %s: %w", key, err)
	}
	return nil
}
