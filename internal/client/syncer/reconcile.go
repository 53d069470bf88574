package syncer

import "github.com/dmitrijs2005/farmsync/internal/client/models"

// Decision is the outcome of merging one remote record into the store.
type Decision int

const (
	// Insert stores a record that did not exist locally.
	Insert Decision = iota + 1
	// Overwrite replaces a synced local record.
	Overwrite
	// OverwriteConflict replaces a dirty local record that lost to a
	// strictly later remote version.
	OverwriteConflict
	// KeepLocal leaves a dirty local record that is as new as or newer
	// than the remote one.
	KeepLocal
)

func (d Decision) String() string {
	switch d {
	case Insert:
		return "insert"
	case Overwrite:
		return "overwrite"
	case OverwriteConflict:
		return "overwrite-conflict"
	case KeepLocal:
		return "keep-local"
	default:
		return "unknown"
	}
}

// Conflict reports whether both sides had diverged.
func (d Decision) Conflict() bool {
	return d == OverwriteConflict || d == KeepLocal
}

// Reconcile decides how remote is merged with local, which is nil when the
// record does not exist locally. Equal timestamps keep the local version.
func Reconcile(local *models.Record, remote models.RemoteRecord) Decision {
	if local == nil {
		return Insert
	}
	if !local.Synced.IsDirty() {
		return Overwrite
	}
	if remoteMillis(remote) > local.LastModified {
		return OverwriteConflict
	}
	return KeepLocal
}

func remoteMillis(r models.RemoteRecord) int64 {
	if r.RemoteModified > 0 {
		return r.RemoteModified
	}
	return r.Record.LastModified
}

// asLocal is the row stored for a remote record that won.
func asLocal(r models.RemoteRecord) models.Record {
	rec := r.Record.Clone()
	if rec.Fields == nil {
		rec.Fields = models.Fields{}
	}
	rec.LastModified = remoteMillis(r)
	rec.Synced = models.SyncSynced
	return rec
}
