// Package products provides a PostgreSQL-backed repository for sellable
// items. The downloads counter only ever moves forward, via
// IncrementDownloads on successful token redemption.
package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/distrofy/backend/internal/common"
	"github.com/distrofy/backend/internal/dbx"
	"github.com/distrofy/backend/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, product *models.Product) (*models.Product, error) {

	query :=
		`INSERT INTO products (seller_id, title, description, price, category, file_key, thumbnail_key, active)
         VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		product.SellerID, product.Title, product.Description, product.Price,
		product.Category, product.FileKey, product.ThumbnailKey).
		Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	product.Active = true
	return product, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	query :=
		`SELECT id, seller_id, title, description, price, category, file_key, thumbnail_key, downloads, active, created_at, updated_at
		 FROM products
		 WHERE id = $1
		 `

	product := &models.Product{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&product.ID, &product.SellerID, &product.Title, &product.Description,
		&product.Price, &product.Category, &product.FileKey, &product.ThumbnailKey,
		&product.Downloads, &product.Active, &product.CreatedAt, &product.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return product, nil
}

// IncrementDownloads bumps the download counter by one and returns the new
// value. The single UPDATE keeps concurrent redemptions consistent.
func (r *PostgresRepository) IncrementDownloads(ctx context.Context, id string) (int64, error) {
	query :=
		`UPDATE products SET downloads = downloads + 1, updated_at = now()
		 WHERE id = $1
		 RETURNING downloads
		 `

	var downloads int64
	err := r.db.QueryRowContext(ctx, query, id).Scan(&downloads)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}

	return downloads, nil
}
