package users

import (
	"context"

	"github.com/dmitrijs2005/farmsync/internal/server/models"
)

type Repository interface {
	// Create stores a new user and fills in its ID. A taken username yields
	// common.ErrAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	// IncrementCurrentVersion bumps the user's change counter and returns
	// the new value.
	IncrementCurrentVersion(ctx context.Context, userID string) (int64, error)
}
