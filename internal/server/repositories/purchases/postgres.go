// Package purchases provides a PostgreSQL-backed repository for the
// entitlement ledger. The paid flag and the download token are both written
// through single conditional UPDATE statements, so concurrent confirmations
// or issuances collapse to one winner and every caller observes the same
// row afterwards.
package purchases

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/distrofy/backend/internal/common"
	"github.com/distrofy/backend/internal/dbx"
	"github.com/distrofy/backend/internal/server/models"
)

const purchaseColumns = `id, user_id, product_id, payment_intent_id, amount, paid, download_token, download_expiry, purchased_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPurchase(row rowScanner) (*models.Purchase, error) {
	p := &models.Purchase{}
	var token sql.NullString
	var expiry sql.NullTime

	err := row.Scan(&p.ID, &p.UserID, &p.ProductID, &p.PaymentIntentID,
		&p.Amount, &p.Paid, &token, &expiry, &p.PurchasedAt)
	if err != nil {
		return nil, err
	}

	p.DownloadToken = token.String
	p.DownloadExpiry = expiry.Time
	return p, nil
}

func (r *PostgresRepository) Create(ctx context.Context, purchase *models.Purchase) (*models.Purchase, error) {

	query :=
		`INSERT INTO purchases (user_id, product_id, payment_intent_id, amount, paid)
         VALUES ($1, $2, $3, $4, FALSE)
		 RETURNING id, purchased_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		purchase.UserID, purchase.ProductID, purchase.PaymentIntentID, purchase.Amount).
		Scan(&purchase.ID, &purchase.PurchasedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	purchase.Paid = false
	return purchase, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE id = $1`

	p, err := scanPurchase(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE payment_intent_id = $1`

	p, err := scanPurchase(r.db.QueryRowContext(ctx, query, paymentIntentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) GetByDownloadToken(ctx context.Context, token string) (*models.Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE download_token = $1`

	p, err := scanPurchase(r.db.QueryRowContext(ctx, query, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE user_id = $1 ORDER BY purchased_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

// MarkPaid is the only write path for the paid flag. The NOT paid predicate
// makes the false→true transition one-way and idempotency-safe under
// concurrent webhook deliveries.
func (r *PostgresRepository) MarkPaid(ctx context.Context, paymentIntentID string) (*models.Purchase, error) {
	query :=
		`UPDATE purchases SET paid = TRUE
		 WHERE payment_intent_id = $1 AND NOT paid
		 RETURNING ` + purchaseColumns

	p, err := scanPurchase(r.db.QueryRowContext(ctx, query, paymentIntentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

// SetDownloadToken installs a fresh token only when the purchase is paid and
// carries no unexpired token. Two racing issuers hit the predicate once; the
// loser re-reads and returns the winner's token.
func (r *PostgresRepository) SetDownloadToken(ctx context.Context, id, token string, expiry time.Time) (*models.Purchase, error) {
	query :=
		`UPDATE purchases SET download_token = $2, download_expiry = $3
		 WHERE id = $1 AND paid AND (download_token IS NULL OR download_expiry <= now())
		 RETURNING ` + purchaseColumns

	p, err := scanPurchase(r.db.QueryRowContext(ctx, query, id, token, expiry))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}
