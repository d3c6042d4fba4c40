package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/distrofy/backend/internal/common"
	"github.com/distrofy/backend/internal/server/models"
	"github.com/distrofy/backend/internal/server/repositories/repomanager"
)

// ProductService handles listing creation for sellers. Catalog browsing and
// search are served elsewhere; this service only covers what the purchase
// lifecycle needs.
type ProductService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewProductService(db *sql.DB, m repomanager.RepositoryManager) *ProductService {
	return &ProductService{db: db, repomanager: m}
}

// Create adds a product owned by the calling seller. Only sellers and
// admins may list products.
func (s *ProductService) Create(ctx context.Context, sellerID, role string, product *models.Product) (*models.Product, error) {
	if role != models.RoleSeller && role != models.RoleAdmin {
		return nil, common.ErrorForbidden
	}
	if product.Title == "" || product.FileKey == "" || product.Price < 0 {
		return nil, common.ErrorValidation
	}

	product.SellerID = sellerID

	repo := s.repomanager.Products(s.db)
	created, err := repo.Create(ctx, product)
	if err != nil {
		return nil, fmt.Errorf("error creating product: %w", err)
	}

	return created, nil
}

// GetByID returns a product record.
func (s *ProductService) GetByID(ctx context.Context, id string) (*models.Product, error) {
	repo := s.repomanager.Products(s.db)
	product, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error getting product: %w", err)
	}
	return product, nil
}
