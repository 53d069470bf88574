// Package services contains the application services behind the client
// shell: account handling in AuthService and record editing and views in
// RecordService.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/farmsync/internal/client/models"
	"github.com/dmitrijs2005/farmsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/farmsync/internal/client/store"
	"github.com/dmitrijs2005/farmsync/internal/common"
)

// Authenticator is the account side of the remote service.
type Authenticator interface {
	Register(ctx context.Context, userName, password string) error
	Login(ctx context.Context, userName, password string) (string, error)
	Ping(ctx context.Context) error
	SetAccessToken(token string)
}

var (
	ErrNotLoggedIn    = errors.New("not logged in")
	// ErrForeignChanges means the store still holds unsynced changes of the
	// account that used this device before.
	ErrForeignChanges = errors.New("unsynced changes of another account")
)

// AuthService logs the user in against the server and keeps the access
// token in the local store so that a restarted client can sync offline
// edits without asking for the password again.
type AuthService struct {
	remote Authenticator
	store  *store.Store
}

func NewAuthService(remote Authenticator, s *store.Store) *AuthService {
	return &AuthService{remote: remote, store: s}
}

func (a *AuthService) Register(ctx context.Context, userName, password string) error {
	return a.remote.Register(ctx, userName, password)
}

// Login authenticates and persists the token and user name. Server versions
// are counted per account, so when another account owned the local data its
// records and pull positions are dropped first. Login is refused while that
// data still has changes to push.
func (a *AuthService) Login(ctx context.Context, userName, password string) error {
	token, err := a.remote.Login(ctx, userName, password)
	if err != nil {
		return fmt.Errorf("login error: %w", err)
	}

	err = a.store.RunInTransaction(ctx, models.TableNames(), func(ctx context.Context, tx *store.Tx) error {
		meta := tx.Metadata()

		owner, err := meta.Get(ctx, metadata.KeyOwner)
		if err != nil {
			return err
		}
		if len(owner) > 0 && string(owner) != userName {
			if err := dropAccountData(ctx, tx, string(owner)); err != nil {
				return err
			}
		}

		if err := meta.Set(ctx, metadata.KeyOwner, []byte(userName)); err != nil {
			return fmt.Errorf("save owner: %w", err)
		}
		if err := meta.Set(ctx, metadata.KeyAccessToken, []byte(token)); err != nil {
			return fmt.Errorf("save token: %w", err)
		}
		if err := meta.Set(ctx, metadata.KeyUserName, []byte(userName)); err != nil {
			return fmt.Errorf("save user name: %w", err)
		}
		return nil
	})
	if err != nil {
		a.remote.SetAccessToken("")
		return err
	}
	return nil
}

func dropAccountData(ctx context.Context, tx *store.Tx, owner string) error {
	pending := 0
	for _, t := range models.TableNames() {
		n, err := tx.CountDirty(ctx, t)
		if err != nil {
			return err
		}
		pending += n
	}
	if pending > 0 {
		return fmt.Errorf("%w: %d pending for %s", ErrForeignChanges, pending, owner)
	}

	for _, t := range models.TableNames() {
		if err := tx.Clear(ctx, t); err != nil {
			return err
		}
	}
	return tx.Metadata().DeletePrefix(ctx, metadata.WatermarkPrefix)
}

// Restore re-applies a saved token to the remote. It returns ErrNotLoggedIn
// when there is none.
func (a *AuthService) Restore(ctx context.Context) (string, error) {
	meta := a.store.Metadata()

	token, err := meta.Get(ctx, metadata.KeyAccessToken)
	if err != nil {
		return "", err
	}
	if len(token) == 0 {
		return "", ErrNotLoggedIn
	}
	name, err := meta.Get(ctx, metadata.KeyUserName)
	if err != nil {
		return "", err
	}

	a.remote.SetAccessToken(string(token))
	return string(name), nil
}

// Logout forgets the token. Local records, pull positions and the owner
// are kept, so logging back in as the same account resumes where it stopped.
func (a *AuthService) Logout(ctx context.Context) error {
	meta := a.store.Metadata()
	if err := meta.Delete(ctx, metadata.KeyAccessToken); err != nil {
		return err
	}
	if err := meta.Delete(ctx, metadata.KeyUserName); err != nil {
		return err
	}
	a.remote.SetAccessToken("")
	return nil
}

// Ping proxies a liveness check to the remote.
func (a *AuthService) Ping(ctx context.Context) error {
	return a.remote.Ping(ctx)
}

// DeviceID returns the id of this installation, generating and saving one
// on first use. It survives logout.
func DeviceID(ctx context.Context, s *store.Store) (string, error) {
	meta := s.Metadata()

	v, err := meta.Get(ctx, metadata.KeyDeviceID)
	if err != nil {
		return "", err
	}
	if len(v) > 0 {
		return string(v), nil
	}

	id, err := common.MakeRandHexString(8)
	if err != nil {
		return "", fmt.Errorf("device id: %w", err)
	}
	if err := meta.Set(ctx, metadata.KeyDeviceID, []byte(id)); err != nil {
		return "", err
	}
	return id, nil
}
