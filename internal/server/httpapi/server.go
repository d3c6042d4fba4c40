// Package httpapi exposes the marketplace over HTTP: account endpoints,
// product listing, checkout, the payment webhook and the download
// redemption redirect.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/distrofy/backend/internal/logging"
	"github.com/distrofy/backend/internal/server/auth"
	"github.com/distrofy/backend/internal/server/models"
)

// UserRegistry covers registration and login.
type UserRegistry interface {
	Register(ctx context.Context, name, email, password, role string) (*models.User, string, error)
	Login(ctx context.Context, email, password string) (*models.User, string, error)
}

// ProductCatalog covers the listing operations the purchase flow needs.
type ProductCatalog interface {
	Create(ctx context.Context, sellerID, role string, product *models.Product) (*models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
}

// PurchaseLedger records checkouts and payment confirmations.
type PurchaseLedger interface {
	Initiate(ctx context.Context, buyerID, productID string) (*models.Purchase, error)
	Confirm(ctx context.Context, paymentIntentID string) (*models.Purchase, error)
	ListForBuyer(ctx context.Context, buyerID string) ([]*models.Purchase, error)
}

// DownloadGate issues and redeems download tokens.
type DownloadGate interface {
	Authorize(ctx context.Context, principal *auth.Claims, purchaseID string) (string, time.Time, error)
	Redeem(ctx context.Context, token string) (*models.Product, error)
}

// FileStore hands out presigned object-store URLs.
type FileStore interface {
	GetPresignedPutURL(ctx context.Context) (string, string, error)
	GetPresignedGetURL(ctx context.Context, key string) (string, error)
}

// Server wires the services to the HTTP routes.
type Server struct {
	address   string
	logger    logging.Logger
	users     UserRegistry
	products  ProductCatalog
	purchases PurchaseLedger
	downloads DownloadGate
	files     FileStore
	jwtSecret []byte
}

func NewServer(address string, l logging.Logger, users UserRegistry, products ProductCatalog,
	purchases PurchaseLedger, downloads DownloadGate, files FileStore, secretKey string) *Server {
	return &Server{
		address:   address,
		logger:    l.With("module", "http_server"),
		users:     users,
		products:  products,
		purchases: purchases,
		downloads: downloads,
		files:     files,
		jwtSecret: []byte(secretKey),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.address,
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "error shutting down HTTP server", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}
