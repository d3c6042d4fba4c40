package products

import (
	"context"

	"github.com/distrofy/backend/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, product *models.Product) (*models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	IncrementDownloads(ctx context.Context, id string) (int64, error)
}
