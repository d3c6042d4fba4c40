package repomanager

import (
	"context"
	"database/sql"

	"github.com/distrofy/backend/internal/dbx"
	"github.com/distrofy/backend/internal/server/repositories/products"
	"github.com/distrofy/backend/internal/server/repositories/purchases"
	"github.com/distrofy/backend/internal/server/repositories/users"
)

// RepositoryManager vends repository implementations bound to a DBTX, so
// services can run the same repository over the pool or inside a
// transaction, and exposes a schema migration hook.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Products(db dbx.DBTX) products.Repository
	Purchases(db dbx.DBTX) purchases.Repository
}
