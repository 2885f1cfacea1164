package dmp

import (
	"strings"
	"time"
)

// Key namespaces. Record and provenance entries share one store; the
// partition prefix distinguishes them. Version keys carry their own prefix
// so a scan over one identifier yields exactly its full version history
// plus its current and terminal states.
const (
	RecordKeyPrefix     = "DMP#"
	ProvenanceKeyPrefix = "PROVENANCE#"
	VersionKeyPrefix    = "VERSION#"

	VersionLatest    = VersionKeyPrefix + "latest"
	VersionTombstone = VersionKeyPrefix + "tombstone"
)

// TimestampLayout is the wire form of snapshot version keys and of the
// record modified timestamp. Nanosecond precision keeps snapshot keys
// for distinct states distinct even within the same second.
const TimestampLayout = time.RFC3339Nano

// RecordKey returns the namespaced partition key for a record identifier.
func RecordKey(identifier string) string {
	if strings.HasPrefix(identifier, RecordKeyPrefix) {
		return identifier
	}
	return RecordKeyPrefix + identifier
}

// ProvenanceKey returns the namespaced partition key for a provenance key.
func ProvenanceKey(key string) string {
	if strings.HasPrefix(key, ProvenanceKeyPrefix) {
		return key
	}
	return ProvenanceKeyPrefix + key
}

// StripRecordKey removes the record namespace prefix, if present.
func StripRecordKey(key string) string {
	return strings.TrimPrefix(key, RecordKeyPrefix)
}

// SnapshotVersionKey returns the immutable version key for a snapshot of a
// state last modified at t.
func SnapshotVersionKey(t time.Time) string {
	return VersionKeyPrefix + t.UTC().Format(TimestampLayout)
}

// VersionTimestamp parses the timestamp out of a snapshot version key.
// Returns the zero time and false for the latest and tombstone keys.
func VersionTimestamp(versionKey string) (time.Time, bool) {
	if versionKey == VersionLatest || versionKey == VersionTombstone {
		return time.Time{}, false
	}
	raw := strings.TrimPrefix(versionKey, VersionKeyPrefix)
	t, err := time.Parse(TimestampLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// NormalizeVersionKey maps caller-supplied version selectors ("latest",
// "tombstone", or an RFC3339 timestamp, with or without the namespace
// prefix) to the stored key form.
func NormalizeVersionKey(version string) string {
	switch version {
	case "", "latest":
		return VersionLatest
	case "tombstone":
		return VersionTombstone
	}
	if strings.HasPrefix(version, VersionKeyPrefix) {
		return version
	}
	return VersionKeyPrefix + version
}
