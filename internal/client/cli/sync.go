package cli

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/farmsync/internal/client/backup"
	"github.com/dmitrijs2005/farmsync/internal/client/services"
	"github.com/dmitrijs2005/farmsync/internal/client/syncer"
)

// Sync runs one push-then-pull cycle in the foreground.
func (a *App) Sync(ctx context.Context) error {
	if !a.isLoggedIn() {
		a.printf("Login first\n")
		return services.ErrNotLoggedIn
	}

	err := a.syncService.SyncNow(ctx)
	st := a.syncService.Status()
	a.printReports(st.LastPush, st.LastPull)
	if err != nil {
		return a.fail(err)
	}
	return nil
}

func (a *App) printReports(push syncer.PushReport, pull syncer.PullReport) {
	a.printf("Pushed %d (acked %d, rejected %d, edited meanwhile %d)\n",
		push.Pushed, push.Acked, push.Rejected, push.Raced)
	a.printf("Pulled %d (new %d, updated %d, kept local %d, conflicts %d)\n",
		pull.Received, pull.Inserted, pull.Overwritten, pull.KeptLocal, len(pull.Conflicts))
}

// Status prints connectivity, background sync state and pending counts.
func (a *App) Status(ctx context.Context) error {
	mode := a.Mode()
	if mode == ModeUnknown {
		mode = "unknown"
	}
	a.printf("Server: %s\n", mode)

	st := a.syncService.Status()
	a.printf("Sync: %s\n", st.State)
	if !st.LastSuccess.IsZero() {
		a.printf("Last success: %s\n", st.LastSuccess.Format(time.DateTime))
	}
	if st.LastError != nil {
		a.printf("Last error: %v (%d in a row)\n", st.LastError, st.ConsecutiveFailures)
	}
	if st.State == syncer.StateBackoff {
		a.printf("Next retry: %s\n", st.NextRetryAt.Format(time.DateTime))
	}

	pending, err := a.recordService.PendingCounts(ctx)
	if err != nil {
		return a.fail(err)
	}
	total := 0
	for _, n := range pending {
		total += n
	}
	a.printf("Pending changes: %d\n", total)
	return nil
}

// Backup uploads a compressed snapshot of the local store.
func (a *App) Backup(ctx context.Context) error {
	res, err := a.backupService.Backup(ctx)
	if errors.Is(err, backup.ErrNotConfigured) {
		a.printf("Backup bucket is not configured\n")
		return err
	}
	if err != nil {
		return a.fail(err)
	}
	a.printf("Uploaded %s (%d bytes, %d compressed)\n", res.Key, res.RawBytes, res.CompressedBytes)
	return nil
}
