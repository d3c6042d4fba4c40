package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/distrofy/backend/internal/common"
	"github.com/distrofy/backend/internal/server/config"
	"github.com/distrofy/backend/internal/server/models"
	"github.com/distrofy/backend/internal/server/payments"
	"github.com/distrofy/backend/internal/server/repositories/repomanager"
	"github.com/sethvargo/go-retry"
)

// PurchaseService is the entitlement ledger: it records purchase attempts,
// links them to payment intents, and owns the one-way unpaid→paid
// transition.
type PurchaseService struct {
	db              *sql.DB
	repomanager     repomanager.RepositoryManager
	provider        payments.Provider
	providerTimeout time.Duration
}

func NewPurchaseService(db *sql.DB, m repomanager.RepositoryManager, provider payments.Provider, cfg *config.Config) *PurchaseService {
	return &PurchaseService{
		db:              db,
		repomanager:     m,
		provider:        provider,
		providerTimeout: cfg.PaymentProviderTimeout,
	}
}

// Initiate creates an unpaid purchase for the buyer, snapshotting the
// product price and obtaining a payment intent reference from the provider.
// Inactive or unknown products are not purchasable. Provider failures are
// retried with backoff and surface as common.ErrorUpstream, which the
// caller may retry.
func (s *PurchaseService) Initiate(ctx context.Context, buyerID, productID string) (*models.Purchase, error) {
	productRepo := s.repomanager.Products(s.db)

	product, err := productRepo.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error getting product: %w", err)
	}
	if !product.Active {
		return nil, common.ErrorNotFound
	}

	intentID, err := s.createIntent(ctx, product.Price)
	if err != nil {
		return nil, common.ErrorUpstream
	}

	purchase := &models.Purchase{
		UserID:          buyerID,
		ProductID:       product.ID,
		PaymentIntentID: intentID,
		Amount:          product.Price,
	}

	purchaseRepo := s.repomanager.Purchases(s.db)
	purchase, err = purchaseRepo.Create(ctx, purchase)
	if err != nil {
		return nil, fmt.Errorf("error creating purchase: %w", err)
	}

	return purchase, nil
}

// Confirm marks the purchase for the given payment intent as paid. Repeated
// confirmations are a no-op success returning the already-paid record, so
// at-least-once webhook delivery is safe. Unknown intents yield
// common.ErrorNotFound.
func (s *PurchaseService) Confirm(ctx context.Context, paymentIntentID string) (*models.Purchase, error) {
	repo := s.repomanager.Purchases(s.db)

	purchase, err := repo.MarkPaid(ctx, paymentIntentID)
	if err == nil {
		return purchase, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error confirming payment: %w", err)
	}

	// The conditional update matched nothing: either the intent is unknown
	// or the record is already paid (idempotent redelivery).
	purchase, err = repo.GetByPaymentIntentID(ctx, paymentIntentID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error confirming payment: %w", err)
	}
	if !purchase.Paid {
		return nil, common.ErrorInternal
	}

	return purchase, nil
}

// ListForBuyer returns the buyer's purchase history, newest first.
func (s *PurchaseService) ListForBuyer(ctx context.Context, buyerID string) ([]*models.Purchase, error) {
	repo := s.repomanager.Purchases(s.db)

	list, err := repo.ListByUser(ctx, buyerID)
	if err != nil {
		return nil, fmt.Errorf("error listing purchases: %w", err)
	}

	return list, nil
}

func (s *PurchaseService) createIntent(ctx context.Context, amount float64) (string, error) {
	var intentID string

	backoff := retry.WithMaxRetries(3, retry.NewExponential(100*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
		defer cancel()

		id, err := s.provider.CreateIntent(callCtx, amount)
		if err != nil {
			return retry.RetryableError(err)
		}
		intentID = id
		return nil
	})
	if err != nil {
		return "", err
	}

	return intentID, nil
}
