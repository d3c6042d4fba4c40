package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// OfflineProvider mints locally-generated intent references. It stands in
// for a real provider in development and tests; confirmation still arrives
// through the webhook endpoint, so the full lifecycle is exercised.
type OfflineProvider struct{}

func NewOfflineProvider() *OfflineProvider {
	return &OfflineProvider{}
}

func (p *OfflineProvider) CreateIntent(ctx context.Context, amount float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if amount < 0 {
		return "", fmt.Errorf("negative amount %.2f", amount)
	}
	return "pi_" + uuid.NewString(), nil
}
