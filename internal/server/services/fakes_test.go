package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/distrofy/backend/internal/common"
	"github.com/distrofy/backend/internal/dbx"
	"github.com/distrofy/backend/internal/server/models"
	productsrepo "github.com/distrofy/backend/internal/server/repositories/products"
	purchasesrepo "github.com/distrofy/backend/internal/server/repositories/purchases"
	usersrepo "github.com/distrofy/backend/internal/server/repositories/users"
)

// In-memory repository fakes shared by the service tests. They reproduce
// the conditional-update semantics of the Postgres repositories so the
// services can be exercised without a database.

type fakeUsersRepo struct {
	seq     int
	byEmail map[string]*models.User
	byID    map[string]*models.User

	createErr error
	getErr    error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byEmail: map[string]*models.User{}, byID: map[string]*models.User{}}
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.byEmail[u.Email]; ok {
		return nil, common.ErrorAlreadyExists
	}
	f.seq++
	u.ID = fmt.Sprintf("u-%d", f.seq)
	u.Active = true
	u.CreatedAt = time.Now()
	f.byEmail[u.Email] = u
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

type fakeProductsRepo struct {
	seq  int
	byID map[string]*models.Product

	createErr error
	incErr    error
}

func newFakeProductsRepo() *fakeProductsRepo {
	return &fakeProductsRepo{byID: map[string]*models.Product{}}
}

func (f *fakeProductsRepo) Create(ctx context.Context, p *models.Product) (*models.Product, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.seq++
	p.ID = fmt.Sprintf("p-%d", f.seq)
	p.Active = true
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	f.byID[p.ID] = p
	return p, nil
}

func (f *fakeProductsRepo) GetByID(ctx context.Context, id string) (*models.Product, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProductsRepo) IncrementDownloads(ctx context.Context, id string) (int64, error) {
	if f.incErr != nil {
		return 0, f.incErr
	}
	p, ok := f.byID[id]
	if !ok {
		return 0, common.ErrorNotFound
	}
	p.Downloads++
	return p.Downloads, nil
}

type fakePurchasesRepo struct {
	seq  int
	byID map[string]*models.Purchase

	createErr error
	now       func() time.Time
}

func newFakePurchasesRepo() *fakePurchasesRepo {
	return &fakePurchasesRepo{byID: map[string]*models.Purchase{}, now: time.Now}
}

func (f *fakePurchasesRepo) Create(ctx context.Context, p *models.Purchase) (*models.Purchase, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.seq++
	p.ID = fmt.Sprintf("pur-%d", f.seq)
	p.Paid = false
	p.PurchasedAt = time.Now()
	f.byID[p.ID] = p
	return p, nil
}

func (f *fakePurchasesRepo) GetByID(ctx context.Context, id string) (*models.Purchase, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePurchasesRepo) GetByPaymentIntentID(ctx context.Context, intentID string) (*models.Purchase, error) {
	for _, p := range f.byID {
		if p.PaymentIntentID == intentID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakePurchasesRepo) GetByDownloadToken(ctx context.Context, token string) (*models.Purchase, error) {
	for _, p := range f.byID {
		if p.DownloadToken != "" && p.DownloadToken == token {
			cp := *p
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakePurchasesRepo) ListByUser(ctx context.Context, userID string) ([]*models.Purchase, error) {
	var result []*models.Purchase
	for _, p := range f.byID {
		if p.UserID == userID {
			cp := *p
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (f *fakePurchasesRepo) MarkPaid(ctx context.Context, intentID string) (*models.Purchase, error) {
	for _, p := range f.byID {
		if p.PaymentIntentID == intentID && !p.Paid {
			p.Paid = true
			cp := *p
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakePurchasesRepo) SetDownloadToken(ctx context.Context, id, token string, expiry time.Time) (*models.Purchase, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if !p.Paid {
		return nil, common.ErrorNotFound
	}
	if p.DownloadToken != "" && p.DownloadExpiry.After(f.now()) {
		return nil, common.ErrorNotFound
	}
	p.DownloadToken = token
	p.DownloadExpiry = expiry
	cp := *p
	return &cp, nil
}

type fakeRepoManager struct {
	users     *fakeUsersRepo
	products  *fakeProductsRepo
	purchases *fakePurchasesRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		users:     newFakeUsersRepo(),
		products:  newFakeProductsRepo(),
		purchases: newFakePurchasesRepo(),
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error   { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository         { return m.users }
func (m *fakeRepoManager) Products(db dbx.DBTX) productsrepo.Repository   { return m.products }
func (m *fakeRepoManager) Purchases(db dbx.DBTX) purchasesrepo.Repository { return m.purchases }

type fakePaymentProvider struct {
	seq     int
	failFor int // first failFor calls return an error
	err     error
}

func (f *fakePaymentProvider) CreateIntent(ctx context.Context, amount float64) (string, error) {
	f.seq++
	if f.failFor >= f.seq {
		if f.err != nil {
			return "", f.err
		}
		return "", fmt.Errorf("provider unavailable")
	}
	return fmt.Sprintf("pi_fake_%d", f.seq), nil
}
