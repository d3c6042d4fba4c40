package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/distrofy/backend/internal/common"
	"github.com/distrofy/backend/internal/dbx"
	"github.com/distrofy/backend/internal/server/auth"
	"github.com/distrofy/backend/internal/server/config"
	"github.com/distrofy/backend/internal/server/models"
	"github.com/distrofy/backend/internal/server/repositories/repomanager"
)

// downloadTokenBytes sets token entropy: 32 random bytes (64 hex chars) make
// brute force infeasible within any realistic validity window.
const downloadTokenBytes = 32

// DownloadService issues and redeems the time-bounded download tokens that
// gate access to purchased assets, and is the single chokepoint every
// download authorization passes through.
type DownloadService struct {
	db                            *sql.DB
	repomanager                   repomanager.RepositoryManager
	downloadTokenValidityDuration time.Duration
	now                           func() time.Time
}

func NewDownloadService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *DownloadService {
	return &DownloadService{
		db:                            db,
		repomanager:                   m,
		downloadTokenValidityDuration: cfg.DownloadTokenValidityDuration,
		now:                           time.Now,
	}
}

// Authorize answers "may this principal download this purchase" and, if so,
// returns a download token. The purchase must belong to the principal
// (admins excepted), must be paid, and only then is a token issued.
func (s *DownloadService) Authorize(ctx context.Context, principal *auth.Claims, purchaseID string) (string, time.Time, error) {
	repo := s.repomanager.Purchases(s.db)

	purchase, err := repo.GetByID(ctx, purchaseID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", time.Time{}, common.ErrorNotFound
		}
		return "", time.Time{}, fmt.Errorf("error getting purchase: %w", err)
	}

	if purchase.UserID != principal.UserID && principal.Role != models.RoleAdmin {
		return "", time.Time{}, common.ErrorForbidden
	}

	if !purchase.Paid {
		return "", time.Time{}, common.ErrorNotPaid
	}

	return s.Issue(ctx, purchase)
}

// Issue returns the purchase's download token, minting one only when no
// unexpired token exists. Reissue before expiry returns the identical token;
// after expiry a distinct token replaces it. Fails closed on unpaid
// purchases.
func (s *DownloadService) Issue(ctx context.Context, purchase *models.Purchase) (string, time.Time, error) {
	if !purchase.Paid {
		return "", time.Time{}, common.ErrorNotPaid
	}

	now := s.now()
	if purchase.HasValidDownloadToken(now) {
		return purchase.DownloadToken, purchase.DownloadExpiry, nil
	}

	token, err := common.MakeRandHexString(downloadTokenBytes)
	if err != nil {
		return "", time.Time{}, common.ErrorInternal
	}
	expiry := now.Add(s.downloadTokenValidityDuration)

	repo := s.repomanager.Purchases(s.db)

	updated, err := repo.SetDownloadToken(ctx, purchase.ID, token, expiry)
	if err == nil {
		return updated.DownloadToken, updated.DownloadExpiry, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return "", time.Time{}, fmt.Errorf("error storing download token: %w", err)
	}

	// Conditional update matched nothing: a concurrent caller installed a
	// token first, or the paid state changed under us. Re-read and settle.
	current, err := repo.GetByID(ctx, purchase.ID)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("error re-reading purchase: %w", err)
	}
	if !current.Paid {
		return "", time.Time{}, common.ErrorNotPaid
	}
	if current.HasValidDownloadToken(s.now()) {
		return current.DownloadToken, current.DownloadExpiry, nil
	}

	return "", time.Time{}, common.ErrorInternal
}

// Redeem exchanges a presented download token for the purchased product and
// bumps its download counter. Tokens are bearer credentials: possession is
// sufficient, no ownership check here. The stored token is compared in
// constant time to avoid timing side-channels. Tokens stay valid until
// expiry (multi-use window); the lookup and the counter increment run in
// one transaction so a redemption never half-applies.
func (s *DownloadService) Redeem(ctx context.Context, token string) (*models.Product, error) {
	if token == "" {
		return nil, common.ErrorNotFound
	}

	var product *models.Product

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		purchaseRepo := s.repomanager.Purchases(tx)

		purchase, err := purchaseRepo.GetByDownloadToken(ctx, token)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrorNotFound
			}
			return fmt.Errorf("error looking up token: %w", err)
		}

		if subtle.ConstantTimeCompare([]byte(purchase.DownloadToken), []byte(token)) != 1 {
			return common.ErrorNotFound
		}

		if !purchase.DownloadExpiry.After(s.now()) {
			return common.ErrTokenExpired
		}

		productRepo := s.repomanager.Products(tx)

		p, err := productRepo.GetByID(ctx, purchase.ProductID)
		if err != nil {
			return fmt.Errorf("error getting product: %w", err)
		}

		downloads, err := productRepo.IncrementDownloads(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("error incrementing downloads: %w", err)
		}
		p.Downloads = downloads

		product = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	return product, nil
}
