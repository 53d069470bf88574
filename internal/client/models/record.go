// Package models defines the record envelope shared by every synchronizable
// farm entity, the entity types themselves and the pure functions that stamp
// sync metadata onto records.
package models

import (
	"database/sql/driver"
	"fmt"
	"maps"
	"time"
)

// SyncState is the persisted _synced flag. Storage keeps it numeric:
// NULL for unknown, 0 for dirty and 1 for synced.
type SyncState int8

const (
	SyncUnknown SyncState = iota
	SyncDirty
	SyncSynced
)

// IsDirty reports whether the record still has to be pushed. A record whose
// state is unknown is treated as dirty.
func (s SyncState) IsDirty() bool { return s != SyncSynced }

func (s SyncState) String() string {
	switch s {
	case SyncDirty:
		return "dirty"
	case SyncSynced:
		return "synced"
	default:
		return "unknown"
	}
}

// Value implements driver.Valuer.
func (s SyncState) Value() (driver.Value, error) {
	switch s {
	case SyncDirty:
		return int64(0), nil
	case SyncSynced:
		return int64(1), nil
	default:
		return nil, nil
	}
}

// Scan implements sql.Scanner.
func (s *SyncState) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s = SyncUnknown
	case int64:
		*s = syncStateFromInt(v)
	case int:
		*s = syncStateFromInt(int64(v))
	case bool:
		if v {
			*s = SyncSynced
		} else {
			*s = SyncDirty
		}
	default:
		return fmt.Errorf("cannot scan %T into SyncState", src)
	}
	return nil
}

func syncStateFromInt(v int64) SyncState {
	switch v {
	case 0:
		return SyncDirty
	case 1:
		return SyncSynced
	default:
		return SyncUnknown
	}
}

// Fields carries the entity-specific part of a record.
type Fields map[string]any

// Clone returns a shallow copy. A nil receiver yields an empty map.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	maps.Copy(out, f)
	return out
}

// String returns the field as a string, or "" when it is missing or not a string.
func (f Fields) String(key string) string {
	s, _ := f[key].(string)
	return s
}

// Envelope keys. They may not appear inside Fields.
const (
	KeyID           = "id"
	KeyIsDeleted    = "is_deleted"
	KeyDeletedAt    = "deleted_at"
	KeyCreatedAt    = "created_at"
	KeyUpdatedAt    = "updated_at"
	KeyLastModified = "_last_modified"
	KeySynced       = "_synced"
)

var envelopeKeys = map[string]struct{}{
	KeyID: {}, KeyIsDeleted: {}, KeyDeletedAt: {}, KeyCreatedAt: {},
	KeyUpdatedAt: {}, KeyLastModified: {}, KeySynced: {},
}

// IsEnvelopeKey reports whether key names an envelope column.
func IsEnvelopeKey(key string) bool {
	_, ok := envelopeKeys[key]
	return ok
}

// Record is one stored row of any entity table.
type Record struct {
	ID           string     `json:"id"`
	Fields       Fields     `json:"fields"`
	IsDeleted    bool       `json:"is_deleted"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastModified int64      `json:"_last_modified"`
	Synced       SyncState  `json:"-"`
}

// Clone deep-copies the envelope and shallow-copies Fields.
func (r Record) Clone() Record {
	out := r
	out.Fields = r.Fields.Clone()
	if r.DeletedAt != nil {
		t := *r.DeletedAt
		out.DeletedAt = &t
	}
	return out
}
