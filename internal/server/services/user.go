// Package services contains server-side business logic: account
// registration and login in UserService, record exchange in SyncService.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/farmsync/internal/common"
	"github.com/dmitrijs2005/farmsync/internal/server/auth"
	"github.com/dmitrijs2005/farmsync/internal/server/config"
	"github.com/dmitrijs2005/farmsync/internal/server/models"
	"github.com/dmitrijs2005/farmsync/internal/server/repositories/repomanager"
)

// UserService registers accounts and mints access tokens.
type UserService struct {
	repomanager                 repomanager.RepositoryManager
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	hashParams                  auth.Params
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	return &UserService{
		repomanager:                 m,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		hashParams:                  auth.DefaultParams,
	}
}

// Register creates a user. A taken name yields common.ErrAlreadyExists.
func (s *UserService) Register(ctx context.Context, userName, password string) (*models.User, error) {
	userName = strings.TrimSpace(userName)
	if userName == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", common.ErrConstraint)
	}

	user := &models.User{
		UserName:     userName,
		PasswordHash: auth.HashPassword(password, s.hashParams),
	}

	u, err := s.repomanager.Users().Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return u, nil
}

// Login checks the credentials and returns a signed access token. Unknown
// users and wrong passwords both yield common.ErrUnauthorized.
func (s *UserService) Login(ctx context.Context, userName, password string) (string, error) {
	user, err := s.repomanager.Users().GetUserByLogin(ctx, strings.TrimSpace(userName))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", common.ErrUnauthorized
		}
		return "", common.ErrInternal
	}

	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return "", common.ErrInternal
	}
	if !ok {
		return "", common.ErrUnauthorized
	}

	token, err := auth.GenerateToken(user.ID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return "", common.ErrInternal
	}
	return token, nil
}
