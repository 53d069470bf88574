package cli

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/farmsync/internal/client/services"
	"github.com/dmitrijs2005/farmsync/internal/common"
)

// getSimpleText and getPassword are swapped in tests.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
)

func (a *App) credentials() (string, string, error) {
	userName, err := getSimpleText(a.reader, "Enter user name", a.out)
	if err != nil {
		return "", "", err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return "", "", err
	}
	defer common.WipeByteArray(password)
	return userName, string(password), nil
}

// Register creates an account on the server. It does not log in.
func (a *App) Register(ctx context.Context) error {
	userName, password, err := a.credentials()
	if err != nil {
		return a.fail(err)
	}
	if err := a.authService.Register(ctx, userName, password); err != nil {
		return a.fail(err)
	}
	a.printf("Registered %s, you can login now\n", userName)
	return nil
}

// Login authenticates against the server. Records edited before the first
// login are pushed by the sync cycle that follows.
func (a *App) Login(ctx context.Context) error {
	userName, password, err := a.credentials()
	if err != nil {
		return a.fail(err)
	}

	if err := a.authService.Login(ctx, userName, password); err != nil {
		if errors.Is(err, common.ErrUnavailable) {
			a.setMode(ctx, ModeOffline)
			a.printf("Server unavailable, keep working offline and login later\n")
			return err
		}
		if errors.Is(err, services.ErrForeignChanges) {
			a.printf("This device has changes of another account that are not synced yet. Log in as that account and sync first\n")
			return err
		}
		return a.fail(err)
	}

	a.setUserName(userName)
	a.setMode(ctx, ModeOnline)
	a.printf("Logged in as %s\n", userName)
	a.syncService.RequestPushChanges()
	return nil
}

// Logout forgets the session. Local data stays on the device.
func (a *App) Logout(ctx context.Context) error {
	if err := a.authService.Logout(ctx); err != nil {
		return a.fail(err)
	}
	a.setUserName("")
	a.printf("Logged out\n")
	return nil
}

// fail prints err for the user and returns it.
func (a *App) fail(err error) error {
	a.printf("error: %v\n", err)
	return err
}
