// Package repomanager hands out repositories that share one storage backend
// and, inside WithTx, one transaction.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/farmsync/internal/server/repositories/records"
	"github.com/dmitrijs2005/farmsync/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Users() users.Repository
	Records() records.Repository
	// WithTx runs fn with a manager whose repositories all act inside one
	// transaction. The transaction commits if fn returns nil.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx RepositoryManager) error) error
	Close() error
}
