package registry

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmphub/dmphub/pkg/dmp"
	"github.com/dmphub/dmphub/pkg/store"
)

// RecordStore is the persistence surface the registry needs: point lookup
// and conditional write by (identifier, version key), plus a version scan.
type RecordStore interface {
	Get(identifier, versionKey string) (*dmp.Record, error)
	Put(identifier, versionKey string, rec dmp.Record) error
	PutIfAbsent(identifier, versionKey string, rec dmp.Record) error
	Delete(identifier, versionKey string) error
	Exists(identifier string) (bool, error)
	ListVersionKeys(identifier string) ([]string, error)
	ListLatestByOwner(ownerProvenanceID string) ([]dmp.Record, error)
}

// ProvenanceLookup resolves provenance actors.
type ProvenanceLookup interface {
	Get(key string) (*dmp.Provenance, error)
}

// VersionRef locates one stored version of a record.
type VersionRef struct {
	VersionKey string     `json:"versionKey"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
	Locator    string     `json:"locator"`
}

// Service is the update-flow entry point. It loads the latest version,
// consults the versioner, routes the merge by the updater's role, persists
// the result, and emits a change notification. The service holds no
// per-identifier state; calls for different identifiers are safe to run in
// parallel. Calls for the same identifier are assumed serialized by the
// caller's queuing layer.
type Service struct {
	records    RecordStore
	provenance ProvenanceLookup
	versioner  *Versioner
	asserter   *Asserter
	emitter    Emitter
	cfg        *Config
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a Service. A nil emitter logs events; a nil logger
// uses slog.Default.
func NewService(records RecordStore, provenance ProvenanceLookup, emitter Emitter, cfg *Config, logger *slog.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if emitter == nil {
		emitter = NewLogEmitter(logger)
	}
	return &Service{
		records:    records,
		provenance: provenance,
		versioner:  NewVersioner(records, cfg),
		asserter:   NewAsserter(),
		emitter:    emitter,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Asserter exposes the ledger component for the augment pipeline.
func (s *Service) Asserter() *Asserter { return s.asserter }

// Create registers a new record owned by the given provenance. The owner
// id is fixed for the life of the record. Provenance systems allowed to
// pre-register may propose their own identifier; anyone else gets a minted
// one. Returns Conflict when the identifier already exists or when the
// owner already holds a record with an equivalent body.
func (s *Service) Create(ownerProvenanceID string, body dmp.Record) (*dmp.Record, error) {
	prov, err := s.lookupProvenance(ownerProvenanceID)
	if err != nil {
		return nil, err
	}
	if !prov.IsOwnerCapable {
		return nil, Forbidden("provenance %s may not create records", ownerProvenanceID)
	}
	if strings.TrimSpace(body.Title) == "" {
		return nil, ValidationFailed("record title is required")
	}

	rec := body.Clone()
	if rec.Identifier != "" {
		if prov.SeedingMode != "prereg" {
			return nil, Forbidden("provenance %s may not pre-register identifiers", ownerProvenanceID)
		}
		if !validIdentifier(rec.Identifier) {
			return nil, ValidationFailed("identifier %q is not DOI-shaped", rec.Identifier)
		}
		exists, err := s.records.Exists(rec.Identifier)
		if err != nil {
			return nil, StoreUnavailable(err, "existence check for %s failed", rec.Identifier)
		}
		if exists {
			return nil, Conflict("record %s already exists", rec.Identifier)
		}
	} else {
		rec.Identifier = s.mintIdentifier()
	}

	// An owner re-submitting an equivalent body is a duplicate of an
	// existing record, not a new one.
	owned, err := s.records.ListLatestByOwner(ownerProvenanceID)
	if err != nil {
		return nil, StoreUnavailable(err, "owner scan for %s failed", ownerProvenanceID)
	}
	for _, prior := range owned {
		if dmp.Equivalent(rec, prior) {
			return nil, Conflict("record %s already holds an equivalent plan", prior.Identifier)
		}
	}

	now := s.now()
	rec.OwnerProvenanceID = ownerProvenanceID
	rec.Created = now
	rec.Modified = now
	rec.ModificationsLog = nil

	if err := s.records.PutIfAbsent(rec.Identifier, dmp.VersionLatest, rec); err != nil {
		if errors.Is(err, store.ErrKeyExists) {
			return nil, Conflict("record %s already exists", rec.Identifier)
		}
		return nil, StoreUnavailable(err, "create %s failed", rec.Identifier)
	}

	s.emit(ChangeEvent{
		Identifier:        rec.Identifier,
		VersionKey:        dmp.VersionLatest,
		OwnerProvenanceID: ownerProvenanceID,
		ChangedByOwner:    true,
		OccurredAt:        now,
	})
	return &rec, nil
}

// Update applies a change to the latest version of a record. The merge path
// depends on the updater's role, computed once here:
//
//   - the owner's body is spliced in as the new authoritative state,
//     preserving other systems' contributions and reconciling ledgers;
//   - a non-owner body only completes funding and replaces the updater's
//     own related-identifier contributions, unless a note is supplied, in
//     which case the whole payload is recorded as a reviewable assertion.
//
// Returns Unchanged when the merge produced no difference, so callers can
// skip notification.
func (s *Service) Update(updaterProvenanceID, identifier string, body dmp.Record, note string) (*dmp.Record, error) {
	if _, err := s.lookupProvenance(updaterProvenanceID); err != nil {
		return nil, err
	}
	latest, err := s.loadLatest(identifier)
	if err != nil {
		return nil, err
	}

	role := dmp.RoleFor(updaterProvenanceID, *latest)
	now := s.now()

	var merged dmp.Record
	switch {
	case role == dmp.RoleOwner:
		merged = SpliceForOwner(*latest, body)
		merged.ModificationsLog = s.asserter.SpliceLogs(latest.ModificationsLog, body.ModificationsLog)
	case note != "":
		merged = s.asserter.Add(updaterProvenanceID, *latest, body, note)
	default:
		merged = SpliceForOther(*latest, body, updaterProvenanceID, now)
	}

	if dmp.Equivalent(*latest, merged) && sameLog(latest.ModificationsLog, merged.ModificationsLog) {
		return nil, Unchanged(identifier)
	}

	if err := s.versioner.MaybeSnapshot(*latest, role); err != nil {
		return nil, err
	}

	merged.Modified = now
	if err := s.records.Put(identifier, dmp.VersionLatest, merged); err != nil {
		return nil, StoreUnavailable(err, "update %s failed", identifier)
	}

	s.emit(ChangeEvent{
		Identifier:        identifier,
		VersionKey:        dmp.VersionLatest,
		OwnerProvenanceID: merged.OwnerProvenanceID,
		ChangedByOwner:    role == dmp.RoleOwner,
		OccurredAt:        now,
	})
	return &merged, nil
}

// ApplyLedger persists a ledger-only change produced outside the update
// flow, such as an augmenter run. The mutate function receives the current
// latest state and returns the amended record plus the number of entries it
// added; zero added is a no-op with no write and no event. The snapshot
// rule for non-owner changes applies.
func (s *Service) ApplyLedger(identifier string, mutate func(dmp.Record) (dmp.Record, int)) (int, error) {
	latest, err := s.loadLatest(identifier)
	if err != nil {
		return 0, err
	}

	merged, added := mutate(*latest)
	if added == 0 {
		return 0, nil
	}

	if err := s.versioner.MaybeSnapshot(*latest, dmp.RoleNonOwner); err != nil {
		return 0, err
	}

	now := s.now()
	merged.Modified = now
	if err := s.records.Put(identifier, dmp.VersionLatest, merged); err != nil {
		return 0, StoreUnavailable(err, "augment %s failed", identifier)
	}

	s.emit(ChangeEvent{
		Identifier:        identifier,
		VersionKey:        dmp.VersionLatest,
		OwnerProvenanceID: merged.OwnerProvenanceID,
		ChangedByOwner:    false,
		OccurredAt:        now,
	})
	return added, nil
}

// Tombstone retires a record. Owner-only. The final body moves to the
// terminal version key with its title marked obsolete, and the latest
// version is removed; no further writes are accepted afterwards.
func (s *Service) Tombstone(ownerProvenanceID, identifier string) (*dmp.Record, error) {
	if _, err := s.lookupProvenance(ownerProvenanceID); err != nil {
		return nil, err
	}
	latest, err := s.loadLatest(identifier)
	if err != nil {
		return nil, err
	}
	if dmp.RoleFor(ownerProvenanceID, *latest) != dmp.RoleOwner {
		return nil, Forbidden("provenance %s does not own record %s", ownerProvenanceID, identifier)
	}

	now := s.now()
	final := latest.Clone()
	if !strings.HasPrefix(final.Title, obsoletePrefix) {
		final.Title = obsoletePrefix + final.Title
	}
	final.Modified = now

	if err := s.records.PutIfAbsent(identifier, dmp.VersionTombstone, final); err != nil {
		if errors.Is(err, store.ErrKeyExists) {
			return nil, Forbidden("record %s is already tombstoned", identifier)
		}
		return nil, StoreUnavailable(err, "tombstone %s failed", identifier)
	}
	if err := s.records.Delete(identifier, dmp.VersionLatest); err != nil {
		return nil, StoreUnavailable(err, "remove latest for %s failed", identifier)
	}

	s.emit(ChangeEvent{
		Identifier:        identifier,
		VersionKey:        dmp.VersionTombstone,
		OwnerProvenanceID: final.OwnerProvenanceID,
		ChangedByOwner:    true,
		OccurredAt:        now,
	})
	return &final, nil
}

// Get retrieves a record at a version selector: empty or "latest",
// "tombstone", or a snapshot timestamp.
func (s *Service) Get(identifier, version string) (*dmp.Record, error) {
	rec, err := s.records.Get(identifier, dmp.NormalizeVersionKey(version))
	if err != nil {
		return nil, StoreUnavailable(err, "get %s failed", identifier)
	}
	if rec == nil {
		return nil, NotFound("no record %s at version %q", identifier, dmp.NormalizeVersionKey(version))
	}
	return rec, nil
}

// ListVersions returns locators for every stored version of a record.
func (s *Service) ListVersions(identifier string) ([]VersionRef, error) {
	keys, err := s.records.ListVersionKeys(identifier)
	if err != nil {
		return nil, StoreUnavailable(err, "list versions for %s failed", identifier)
	}
	if len(keys) == 0 {
		return nil, NotFound("no record %s", identifier)
	}
	refs := make([]VersionRef, 0, len(keys))
	for _, key := range keys {
		ref := VersionRef{VersionKey: key, Locator: locator(identifier, key)}
		if ts, ok := dmp.VersionTimestamp(key); ok {
			t := ts
			ref.Timestamp = &t
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

const obsoletePrefix = "OBSOLETE: "

func (s *Service) lookupProvenance(key string) (*dmp.Provenance, error) {
	if key == "" {
		return nil, Forbidden("a provenance id is required")
	}
	prov, err := s.provenance.Get(key)
	if err != nil {
		return nil, StoreUnavailable(err, "provenance lookup for %s failed", key)
	}
	if prov == nil {
		return nil, Forbidden("unknown provenance %s", key)
	}
	return prov, nil
}

// loadLatest fetches the mutable state, distinguishing a missing record
// from a tombstoned one.
func (s *Service) loadLatest(identifier string) (*dmp.Record, error) {
	latest, err := s.records.Get(identifier, dmp.VersionLatest)
	if err != nil {
		return nil, StoreUnavailable(err, "load %s failed", identifier)
	}
	if latest != nil {
		return latest, nil
	}
	stone, err := s.records.Get(identifier, dmp.VersionTombstone)
	if err != nil {
		return nil, StoreUnavailable(err, "load %s failed", identifier)
	}
	if stone != nil {
		return nil, Forbidden("record %s is tombstoned", identifier)
	}
	return nil, NotFound("no record %s", identifier)
}

// emit delivers the change notification. The write is already durable;
// delivery failures are logged and retried by the messaging substrate, not
// here.
func (s *Service) emit(event ChangeEvent) {
	if err := s.emitter.Emit(event); err != nil {
		s.logger.Warn("change event emission failed",
			"identifier", event.Identifier,
			"versionKey", event.VersionKey,
			"error", err)
	}
}

func (s *Service) mintIdentifier() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:8]
	return s.cfg.IdentifierPrefix + suffix
}

// validIdentifier accepts DOI-shaped strings: a "10." prefix followed by a
// registrant code, a slash, and a suffix.
func validIdentifier(id string) bool {
	if !strings.HasPrefix(id, "10.") {
		return false
	}
	slash := strings.Index(id, "/")
	return slash > len("10.") && slash < len(id)-1
}

func sameLog(a, b []dmp.Assertion) bool {
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	return string(ja) == string(jb)
}

func locator(identifier, versionKey string) string {
	base := "/dmps/" + url.PathEscape(identifier)
	switch versionKey {
	case dmp.VersionLatest:
		return base
	case dmp.VersionTombstone:
		return base + "?version=tombstone"
	}
	ts, _ := dmp.VersionTimestamp(versionKey)
	return base + "?version=" + url.QueryEscape(ts.UTC().Format(dmp.TimestampLayout))
}
