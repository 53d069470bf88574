package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/farmsync/internal/client/backup"
	"github.com/dmitrijs2005/farmsync/internal/client/config"
	"github.com/dmitrijs2005/farmsync/internal/client/models"
	"github.com/dmitrijs2005/farmsync/internal/client/services"
	"github.com/dmitrijs2005/farmsync/internal/client/store"
	"github.com/dmitrijs2005/farmsync/internal/client/syncer"
	"github.com/dmitrijs2005/farmsync/internal/client/tracker"
	"github.com/dmitrijs2005/farmsync/internal/common"
	"github.com/dmitrijs2005/farmsync/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	restoreName string
	restoreErr  error
	loginErr    error
	pingErr     error
	logins      []string
	loggedOut   bool
}

func (f *fakeAuth) Register(ctx context.Context, userName, password string) error { return nil }

func (f *fakeAuth) Login(ctx context.Context, userName, password string) error {
	if f.loginErr != nil {
		return f.loginErr
	}
	f.logins = append(f.logins, userName+":"+password)
	return nil
}

func (f *fakeAuth) Restore(ctx context.Context) (string, error) {
	if f.restoreErr != nil {
		return "", f.restoreErr
	}
	return f.restoreName, nil
}

func (f *fakeAuth) Logout(ctx context.Context) error {
	f.loggedOut = true
	return nil
}

func (f *fakeAuth) Ping(ctx context.Context) error { return f.pingErr }

type fakeSync struct {
	requests atomic.Int32
	syncErr  error
	status   syncer.Status
}

func (f *fakeSync) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (f *fakeSync) SyncNow(ctx context.Context) error { return f.syncErr }

func (f *fakeSync) RequestPushChanges() { f.requests.Add(1) }

func (f *fakeSync) Status() syncer.Status { return f.status }

type fakeBackup struct {
	res *backup.Result
	err error
}

func (f *fakeBackup) Backup(ctx context.Context) (*backup.Result, error) { return f.res, f.err }

type fixture struct {
	app    *App
	auth   *fakeAuth
	sync   *fakeSync
	backup *fakeBackup
	out    *bytes.Buffer
}

func newFixture(t *testing.T, input string) *fixture {
	t.Helper()

	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "farm.db"), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	f := &fixture{
		auth:   &fakeAuth{restoreErr: services.ErrNotLoggedIn},
		sync:   &fakeSync{},
		backup: &fakeBackup{},
		out:    &bytes.Buffer{},
	}
	tr := tracker.New(st, logging.Discard(), tracker.WithOnChange(func(models.Table) {
		f.sync.RequestPushChanges()
	}))
	f.app = &App{
		logger:        logging.Discard(),
		authService:   f.auth,
		recordService: services.NewRecordService(st, tr),
		syncService:   f.sync,
		backupService: f.backup,
		reader:        bufio.NewReader(strings.NewReader(input)),
		out:           f.out,
	}
	return f
}

func stubCredentials(t *testing.T, user, password string) {
	t.Helper()
	oldText, oldPw := getSimpleText, getPassword
	t.Cleanup(func() { getSimpleText, getPassword = oldText, oldPw })

	getSimpleText = func(*bufio.Reader, string, io.Writer) (string, error) { return user, nil }
	getPassword = func(io.Writer) ([]byte, error) { return []byte(password), nil }
}

func TestAddListShowEditDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	a := f.app

	require.NoError(t, a.Add(ctx, []string{"plots", `name="North Field"`, "area_sqm=120"}))
	assert.Contains(t, f.out.String(), "Added plots/")
	assert.EqualValues(t, 1, f.sync.requests.Load())

	recs, err := a.recordService.List(ctx, models.TablePlots)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	id := recs[0].ID

	f.out.Reset()
	require.NoError(t, a.List(ctx, []string{"plots"}))
	assert.Contains(t, f.out.String(), id)
	assert.Contains(t, f.out.String(), "North Field")
	assert.Contains(t, f.out.String(), "dirty")

	f.out.Reset()
	require.NoError(t, a.Edit(ctx, []string{"plots", id, `name="North Field East"`}))
	require.NoError(t, a.Show(ctx, []string{"plots", id}))
	assert.Contains(t, f.out.String(), "North Field East")
	assert.Contains(t, f.out.String(), "120")

	require.NoError(t, a.Delete(ctx, []string{"plots", id}))
	f.out.Reset()
	err = a.Show(ctx, []string{"plots", id})
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Contains(t, f.out.String(), "error:")

	f.out.Reset()
	require.NoError(t, a.List(ctx, []string{"plots"}))
	assert.Contains(t, f.out.String(), "No plots yet")
	assert.EqualValues(t, 3, f.sync.requests.Load())
}

func TestAdd_ReadsFieldsInteractively(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "name=Tomato\nvariety=Roma\n\n")

	require.NoError(t, f.app.Add(ctx, []string{"crops"}))

	recs, err := f.app.recordService.List(ctx, models.TableCrops)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Tomato", recs[0].Fields.String("name"))
	assert.Equal(t, "Roma", recs[0].Fields.String("variety"))
}

func TestRecordCommands_BadInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	a := f.app

	assert.NoError(t, a.Add(ctx, nil))
	assert.NoError(t, a.Edit(ctx, []string{"plots", "x"}))
	assert.NoError(t, a.Delete(ctx, []string{"plots"}))
	assert.NoError(t, a.List(ctx, nil))
	assert.NoError(t, a.Show(ctx, []string{"plots"}))
	assert.Equal(t, 5, strings.Count(f.out.String(), "Usage:"))

	assert.ErrorIs(t, a.List(ctx, []string{"tractors"}), common.ErrConstraint)
	assert.ErrorIs(t, a.Add(ctx, []string{"plots", "novalue"}), common.ErrConstraint)
	assert.ErrorIs(t, a.Edit(ctx, []string{"plots", "missing", "name=x"}), common.ErrNotFound)
	assert.EqualValues(t, 0, f.sync.requests.Load())
}

func TestTables_ShowsPendingCounts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")

	require.NoError(t, f.app.Add(ctx, []string{"seasons", "name=2026"}))
	f.out.Reset()
	require.NoError(t, f.app.Tables(ctx))

	assert.Regexp(t, `(?m)^seasons\s+1\s+0$`, f.out.String())
	assert.Regexp(t, `(?m)^plots\s+0\s+0$`, f.out.String())
}

func TestPlans_ResolvesNames(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	rs := f.app.recordService

	require.NoError(t, f.app.Plans(ctx))
	assert.Contains(t, f.out.String(), "No crop plans yet")

	crop, err := rs.Add(ctx, models.TableCrops, models.Fields{"name": "Maize"})
	require.NoError(t, err)
	_, err = rs.Add(ctx, models.TableCropPlans, models.Fields{
		"name": "Long rains maize", "crop_id": crop.ID, "plot_id": "gone", "status": "planned",
	})
	require.NoError(t, err)

	f.out.Reset()
	require.NoError(t, f.app.Plans(ctx))
	assert.Regexp(t, `Long rains maize\s+planned\s+Maize\s+N/A\s+N/A`, f.out.String())
}

func TestLoginLogout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	stubCredentials(t, "alice", "pw")

	require.NoError(t, f.app.Login(ctx))
	assert.Equal(t, []string{"alice:pw"}, f.auth.logins)
	assert.True(t, f.app.isLoggedIn())
	assert.Equal(t, ModeOnline, f.app.Mode())
	assert.Equal(t, "(alice online)", f.app.getStatus())
	assert.EqualValues(t, 1, f.sync.requests.Load())

	require.NoError(t, f.app.Logout(ctx))
	assert.True(t, f.auth.loggedOut)
	assert.False(t, f.app.isLoggedIn())
	assert.Equal(t, "(online)", f.app.getStatus())
}

func TestWatchPending_UpdatesPrompt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := newFixture(t, "")
	f.app.setUserName("alice")

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.app.watchPending(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.NoError(t, f.app.Add(ctx, []string{"plots", "name=North Field"}))
	require.Eventually(t, func() bool {
		return f.app.getStatus() == "(alice, 1 pending)"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestLogin_ServerUnavailable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	f.auth.loginErr = fmt.Errorf("login error: %w", common.ErrUnavailable)
	stubCredentials(t, "alice", "pw")

	err := f.app.Login(ctx)
	assert.ErrorIs(t, err, common.ErrUnavailable)
	assert.False(t, f.app.isLoggedIn())
	assert.Equal(t, ModeOffline, f.app.Mode())
	assert.Contains(t, f.out.String(), "offline")
}

func TestLogin_OtherAccountHasPendingChanges(t *testing.T) {
	f := newFixture(t, "")
	f.auth.loginErr = fmt.Errorf("%w: 2 pending for alice", services.ErrForeignChanges)
	stubCredentials(t, "bob", "pw")

	assert.ErrorIs(t, f.app.Login(context.Background()), services.ErrForeignChanges)
	assert.False(t, f.app.isLoggedIn())
	assert.Contains(t, f.out.String(), "another account")
	assert.Zero(t, f.sync.requests.Load())
}

func TestLogin_BadCredentials(t *testing.T) {
	f := newFixture(t, "")
	f.auth.loginErr = common.ErrUnauthorized
	stubCredentials(t, "alice", "wrong")

	assert.ErrorIs(t, f.app.Login(context.Background()), common.ErrUnauthorized)
	assert.Equal(t, ModeUnknown, f.app.Mode())
	assert.Equal(t, "", f.app.getStatus())
}

func TestRegister_InputError(t *testing.T) {
	f := newFixture(t, "")
	stubCredentials(t, "alice", "")
	getPassword = func(io.Writer) ([]byte, error) { return nil, errors.New("no tty") }

	assert.Error(t, f.app.Register(context.Background()))
	assert.Contains(t, f.out.String(), "no tty")
}

func TestSync(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")

	assert.ErrorIs(t, f.app.Sync(ctx), services.ErrNotLoggedIn)

	f.app.setUserName("alice")
	f.sync.status = syncer.Status{
		LastPush: syncer.PushReport{Pushed: 2, Acked: 1, Rejected: 1},
		LastPull: syncer.PullReport{Received: 3, Inserted: 3},
	}
	require.NoError(t, f.app.Sync(ctx))
	assert.Contains(t, f.out.String(), "Pushed 2 (acked 1, rejected 1")
	assert.Contains(t, f.out.String(), "Pulled 3 (new 3")

	f.sync.syncErr = common.ErrUnavailable
	assert.ErrorIs(t, f.app.Sync(ctx), common.ErrUnavailable)
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	require.NoError(t, f.app.Add(ctx, []string{"plots", "name=A"}))
	f.sync.status = syncer.Status{
		State:               syncer.StateBackoff,
		LastError:           common.ErrUnavailable,
		ConsecutiveFailures: 2,
	}

	f.out.Reset()
	require.NoError(t, f.app.Status(ctx))
	s := f.out.String()
	assert.Contains(t, s, "Server: unknown")
	assert.Contains(t, s, "Sync: backoff")
	assert.Contains(t, s, "(2 in a row)")
	assert.Contains(t, s, "Next retry:")
	assert.Contains(t, s, "Pending changes: 1")
}

func TestBackup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")

	f.backup.err = backup.ErrNotConfigured
	assert.ErrorIs(t, f.app.Backup(ctx), backup.ErrNotConfigured)
	assert.Contains(t, f.out.String(), "not configured")

	f.backup.err = nil
	f.backup.res = &backup.Result{Key: "backups/2026/10/18/x.db.sz", RawBytes: 4096, CompressedBytes: 512}
	require.NoError(t, f.app.Backup(ctx))
	assert.Contains(t, f.out.String(), "Uploaded backups/2026/10/18/x.db.sz")
}

func TestCheckOnline_TogglesModeAndRequestsSync(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	f.app.setUserName("alice")

	f.app.checkOnline(ctx)
	assert.Equal(t, ModeOnline, f.app.Mode())
	assert.EqualValues(t, 1, f.sync.requests.Load())

	f.app.checkOnline(ctx)
	assert.EqualValues(t, 1, f.sync.requests.Load(), "staying online does not trigger")

	f.auth.pingErr = common.ErrUnavailable
	f.app.checkOnline(ctx)
	assert.Equal(t, ModeOffline, f.app.Mode())

	f.auth.pingErr = nil
	f.app.checkOnline(ctx)
	assert.Equal(t, ModeOnline, f.app.Mode())
	assert.EqualValues(t, 2, f.sync.requests.Load())
}

func TestCheckOnline_LoggedOutDoesNotSync(t *testing.T) {
	f := newFixture(t, "")
	f.app.checkOnline(context.Background())
	assert.Equal(t, ModeOnline, f.app.Mode())
	assert.EqualValues(t, 0, f.sync.requests.Load())
}

func TestRun_RestoresSessionAndExits(t *testing.T) {
	f := newFixture(t, "help\nexit\n")
	f.auth.restoreErr = nil
	f.auth.restoreName = "alice"

	require.NoError(t, f.app.Run(context.Background()))

	s := f.out.String()
	assert.Contains(t, s, "Welcome back, alice")
	assert.Contains(t, s, "farm (alice)> ")
	assert.Contains(t, s, "logout, exit")
	assert.Contains(t, s, "Bye!")
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t, "")
	done := make(chan struct{})
	t.Cleanup(func() { close(done) })
	f.app.reader = bufio.NewReader(blockingReader{done: done})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, f.app.Run(ctx))
}

type blockingReader struct{ done chan struct{} }

func (r blockingReader) Read([]byte) (int, error) {
	<-r.done
	return 0, io.EOF
}

func TestNewApp(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DatabasePath = filepath.Join(dir, "data", "farm.db")
	cfg.LogFile = filepath.Join(dir, "farm.log")

	a, err := NewApp(context.Background(), cfg)
	require.NoError(t, err)
	assert.Len(t, a.closers, 2)
	assert.NoError(t, a.Close())
	assert.FileExists(t, cfg.DatabasePath)

	cfg.LogLevel = "loud"
	_, err = NewApp(context.Background(), cfg)
	assert.Error(t, err)
}
