package purchases

import (
	"context"
	"time"

	"github.com/distrofy/backend/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, purchase *models.Purchase) (*models.Purchase, error)
	GetByID(ctx context.Context, id string) (*models.Purchase, error)
	GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.Purchase, error)
	GetByDownloadToken(ctx context.Context, token string) (*models.Purchase, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Purchase, error)

	// MarkPaid flips paid to true for the given payment intent, only if it is
	// not paid yet. When the conditional update matches no row it returns
	// common.ErrorNotFound; the caller decides whether that means "unknown
	// intent" or "already paid".
	MarkPaid(ctx context.Context, paymentIntentID string) (*models.Purchase, error)

	// SetDownloadToken stores token/expiry for a paid purchase, only if no
	// unexpired token is present. When the conditional update matches no row
	// it returns common.ErrorNotFound; the caller re-reads to find the token
	// that won.
	SetDownloadToken(ctx context.Context, id, token string, expiry time.Time) (*models.Purchase, error)
}
