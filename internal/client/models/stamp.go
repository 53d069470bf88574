package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/farmsync/internal/common"
)

// NextModified returns the _last_modified value for a mutation at now of a
// record last modified at prev. The result is always greater than prev, even
// if the wall clock went backwards.
func NextModified(prev int64, now time.Time) int64 {
	ms := now.UnixMilli()
	if ms <= prev {
		return prev + 1
	}
	return ms
}

func checkNoEnvelopeKeys(f Fields) error {
	for k := range f {
		if IsEnvelopeKey(k) {
			return fmt.Errorf("%w: field %q is managed by the store", common.ErrConstraint, k)
		}
	}
	return nil
}

// StampForCreate builds a new dirty record from user input.
func StampForCreate(input Fields, now time.Time, id string) (Record, error) {
	if id == "" {
		return Record{}, fmt.Errorf("%w: record id is required", common.ErrConstraint)
	}
	if err := checkNoEnvelopeKeys(input); err != nil {
		return Record{}, err
	}

	now = now.UTC()
	fields := input.Clone()
	dropNil(fields)

	return Record{
		ID:           id,
		Fields:       fields,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastModified: now.UnixMilli(),
		Synced:       SyncDirty,
	}, nil
}

// StampForUpdate merges patch into existing. A nil value in patch removes the
// field. The result is dirty and carries a strictly larger _last_modified.
func StampForUpdate(existing Record, patch Fields, now time.Time) (Record, error) {
	if err := checkNoEnvelopeKeys(patch); err != nil {
		return Record{}, err
	}

	now = now.UTC()
	out := existing.Clone()
	for k, v := range patch {
		out.Fields[k] = v
	}
	dropNil(out.Fields)

	out.UpdatedAt = now
	out.LastModified = NextModified(existing.LastModified, now)
	out.Synced = SyncDirty
	return out, nil
}

// StampForDelete tombstones existing. extra lets callers record why, e.g.
// {"deleted_reason": "sold"}.
func StampForDelete(existing Record, extra Fields, now time.Time) (Record, error) {
	out, err := StampForUpdate(existing, extra, now)
	if err != nil {
		return Record{}, err
	}
	deletedAt := out.UpdatedAt
	out.IsDeleted = true
	out.DeletedAt = &deletedAt
	return out, nil
}

func dropNil(f Fields) {
	for k, v := range f {
		if v == nil {
			delete(f, k)
		}
	}
}
