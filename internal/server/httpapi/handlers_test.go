package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/distrofy/backend/internal/common"
	"github.com/distrofy/backend/internal/logging"
	"github.com/distrofy/backend/internal/server/auth"
	"github.com/distrofy/backend/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

// Function-field stubs so each test plugs in exactly the behavior it needs.

type stubUsers struct {
	registerFn func(ctx context.Context, name, email, password, role string) (*models.User, string, error)
	loginFn    func(ctx context.Context, email, password string) (*models.User, string, error)
}

func (s *stubUsers) Register(ctx context.Context, name, email, password, role string) (*models.User, string, error) {
	return s.registerFn(ctx, name, email, password, role)
}

func (s *stubUsers) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	return s.loginFn(ctx, email, password)
}

type stubProducts struct {
	createFn func(ctx context.Context, sellerID, role string, p *models.Product) (*models.Product, error)
	getFn    func(ctx context.Context, id string) (*models.Product, error)
}

func (s *stubProducts) Create(ctx context.Context, sellerID, role string, p *models.Product) (*models.Product, error) {
	return s.createFn(ctx, sellerID, role, p)
}

func (s *stubProducts) GetByID(ctx context.Context, id string) (*models.Product, error) {
	return s.getFn(ctx, id)
}

type stubPurchases struct {
	initiateFn func(ctx context.Context, buyerID, productID string) (*models.Purchase, error)
	confirmFn  func(ctx context.Context, paymentIntentID string) (*models.Purchase, error)
	listFn     func(ctx context.Context, buyerID string) ([]*models.Purchase, error)
}

func (s *stubPurchases) Initiate(ctx context.Context, buyerID, productID string) (*models.Purchase, error) {
	return s.initiateFn(ctx, buyerID, productID)
}

func (s *stubPurchases) Confirm(ctx context.Context, paymentIntentID string) (*models.Purchase, error) {
	return s.confirmFn(ctx, paymentIntentID)
}

func (s *stubPurchases) ListForBuyer(ctx context.Context, buyerID string) ([]*models.Purchase, error) {
	return s.listFn(ctx, buyerID)
}

type stubDownloads struct {
	authorizeFn func(ctx context.Context, principal *auth.Claims, purchaseID string) (string, time.Time, error)
	redeemFn    func(ctx context.Context, token string) (*models.Product, error)
}

func (s *stubDownloads) Authorize(ctx context.Context, principal *auth.Claims, purchaseID string) (string, time.Time, error) {
	return s.authorizeFn(ctx, principal, purchaseID)
}

func (s *stubDownloads) Redeem(ctx context.Context, token string) (*models.Product, error) {
	return s.redeemFn(ctx, token)
}

type stubFiles struct {
	putFn func(ctx context.Context) (string, string, error)
	getFn func(ctx context.Context, key string) (string, error)
}

func (s *stubFiles) GetPresignedPutURL(ctx context.Context) (string, string, error) {
	return s.putFn(ctx)
}

func (s *stubFiles) GetPresignedGetURL(ctx context.Context, key string) (string, error) {
	return s.getFn(ctx, key)
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func newTestServer(users UserRegistry, products ProductCatalog, purchases PurchaseLedger,
	downloads DownloadGate, files FileStore) *Server {
	return NewServer(":0", testLogger(), users, products, purchases, downloads, files, testSecret)
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func mintToken(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := auth.GenerateToken(userID, userID+"@example.com", role, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	return token
}

func TestRegisterEndpoint(t *testing.T) {
	users := &stubUsers{
		registerFn: func(ctx context.Context, name, email, password, role string) (*models.User, string, error) {
			return &models.User{ID: "u-1", Name: name, Email: email, Role: role}, "signed-token", nil
		},
	}
	srv := newTestServer(users, nil, nil, nil, nil)

	w := doJSON(t, srv.Router(), http.MethodPost, "/register", "", map[string]string{
		"name": "Alice", "email": "alice@example.com", "password": "password123", "role": "buyer",
	})

	require.Equal(t, http.StatusCreated, w.Code)

	var resp sessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "signed-token", resp.Token)
	assert.Equal(t, "alice@example.com", resp.Email)
	assert.Equal(t, "buyer", resp.Role)
	assert.Equal(t, "Alice", resp.Name)
}

func TestRegisterEndpointDuplicate(t *testing.T) {
	users := &stubUsers{
		registerFn: func(ctx context.Context, name, email, password, role string) (*models.User, string, error) {
			return nil, "", common.ErrorAlreadyExists
		},
	}
	srv := newTestServer(users, nil, nil, nil, nil)

	w := doJSON(t, srv.Router(), http.MethodPost, "/register", "", map[string]string{
		"name": "Alice", "email": "alice@example.com", "password": "password123", "role": "buyer",
	})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRegisterEndpointBadBody(t *testing.T) {
	srv := newTestServer(&stubUsers{}, nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginEndpointBadCredentials(t *testing.T) {
	users := &stubUsers{
		loginFn: func(ctx context.Context, email, password string) (*models.User, string, error) {
			return nil, "", common.ErrorUnauthorized
		},
	}
	srv := newTestServer(users, nil, nil, nil, nil)

	w := doJSON(t, srv.Router(), http.MethodPost, "/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong",
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware(t *testing.T) {
	purchases := &stubPurchases{
		listFn: func(ctx context.Context, buyerID string) ([]*models.Purchase, error) {
			return nil, nil
		},
	}
	srv := newTestServer(nil, nil, purchases, nil, nil)
	router := srv.Router()

	t.Run("missing token", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/purchases", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/purchases", "not-a-jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		expired, err := auth.GenerateToken("u-1", "a@b.com", models.RoleBuyer, []byte(testSecret), -time.Minute)
		require.NoError(t, err)
		w := doJSON(t, router, http.MethodGet, "/purchases", expired, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/purchases", mintToken(t, "u-1", models.RoleBuyer), nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestCreateProductEndpoint(t *testing.T) {
	products := &stubProducts{
		createFn: func(ctx context.Context, sellerID, role string, p *models.Product) (*models.Product, error) {
			if role != models.RoleSeller {
				return nil, common.ErrorForbidden
			}
			p.ID = "p-1"
			p.SellerID = sellerID
			return p, nil
		},
	}
	srv := newTestServer(nil, products, nil, nil, nil)
	router := srv.Router()

	body := map[string]any{"title": "Pack", "price": 9.99, "file_key": "assets/pack"}

	t.Run("seller", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/products", mintToken(t, "seller-1", models.RoleSeller), body)
		require.Equal(t, http.StatusCreated, w.Code)

		var resp productResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "p-1", resp.ID)
		assert.Equal(t, "seller-1", resp.SellerID)
	})

	t.Run("buyer forbidden", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/products", mintToken(t, "buyer-1", models.RoleBuyer), body)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestCreateUploadEndpoint(t *testing.T) {
	files := &stubFiles{
		putFn: func(ctx context.Context) (string, string, error) {
			return "assets/2026/8/31/key", "http://signed/put", nil
		},
	}
	srv := newTestServer(nil, nil, nil, nil, files)
	router := srv.Router()

	t.Run("seller", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/uploads", mintToken(t, "seller-1", models.RoleSeller), nil)
		require.Equal(t, http.StatusCreated, w.Code)

		var resp uploadResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "assets/2026/8/31/key", resp.Key)
		assert.Equal(t, "http://signed/put", resp.URL)
	})

	t.Run("buyer forbidden", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/uploads", mintToken(t, "buyer-1", models.RoleBuyer), nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestCreatePurchaseEndpoint(t *testing.T) {
	purchases := &stubPurchases{
		initiateFn: func(ctx context.Context, buyerID, productID string) (*models.Purchase, error) {
			if productID == "missing" {
				return nil, common.ErrorNotFound
			}
			if productID == "flaky" {
				return nil, common.ErrorUpstream
			}
			return &models.Purchase{
				ID: "pur-1", UserID: buyerID, ProductID: productID,
				PaymentIntentID: "pi_1", Amount: 9.99,
			}, nil
		},
	}
	srv := newTestServer(nil, nil, purchases, nil, nil)
	router := srv.Router()
	token := mintToken(t, "buyer-1", models.RoleBuyer)

	t.Run("created", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/purchases", token, map[string]string{"product_id": "p-1"})
		require.Equal(t, http.StatusCreated, w.Code)

		var resp purchaseResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "pur-1", resp.ID)
		assert.False(t, resp.Paid)
	})

	t.Run("missing product id", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/purchases", token, map[string]string{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown product", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/purchases", token, map[string]string{"product_id": "missing"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("provider down", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/purchases", token, map[string]string{"product_id": "flaky"})
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestAuthorizeDownloadEndpoint(t *testing.T) {
	expiry := time.Now().Add(24 * time.Hour).UTC()
	downloads := &stubDownloads{
		authorizeFn: func(ctx context.Context, principal *auth.Claims, purchaseID string) (string, time.Time, error) {
			switch purchaseID {
			case "unpaid":
				return "", time.Time{}, common.ErrorNotPaid
			case "foreign":
				return "", time.Time{}, common.ErrorForbidden
			case "missing":
				return "", time.Time{}, common.ErrorNotFound
			}
			return "tok-abc", expiry, nil
		},
	}
	srv := newTestServer(nil, nil, nil, downloads, nil)
	router := srv.Router()
	token := mintToken(t, "buyer-1", models.RoleBuyer)

	t.Run("issued", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/purchases/pur-1/download", token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp downloadTokenResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "tok-abc", resp.Token)
		assert.WithinDuration(t, expiry, resp.Expiry, time.Second)
	})

	t.Run("unpaid", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/purchases/unpaid/download", token, nil)
		assert.Equal(t, http.StatusPaymentRequired, w.Code)
	})

	t.Run("wrong owner", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/purchases/foreign/download", token, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("unknown purchase", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/purchases/missing/download", token, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestRedeemDownloadEndpoint(t *testing.T) {
	downloads := &stubDownloads{
		redeemFn: func(ctx context.Context, token string) (*models.Product, error) {
			switch token {
			case "expired":
				return nil, common.ErrTokenExpired
			case "unknown":
				return nil, common.ErrorNotFound
			}
			return &models.Product{ID: "p-1", FileKey: "assets/pack"}, nil
		},
	}
	files := &stubFiles{
		getFn: func(ctx context.Context, key string) (string, error) {
			assert.Equal(t, "assets/pack", key)
			return "http://signed/get", nil
		},
	}
	srv := newTestServer(nil, nil, nil, downloads, files)
	router := srv.Router()

	t.Run("redirects", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/download/tok-abc", "", nil)
		require.Equal(t, http.StatusTemporaryRedirect, w.Code)
		assert.Equal(t, "http://signed/get", w.Header().Get("Location"))
	})

	t.Run("expired token", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/download/expired", "", nil)
		assert.Equal(t, http.StatusGone, w.Code)
	})

	t.Run("unknown token", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/download/unknown", "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestPaymentWebhookEndpoint(t *testing.T) {
	confirmed := 0
	purchases := &stubPurchases{
		confirmFn: func(ctx context.Context, paymentIntentID string) (*models.Purchase, error) {
			if paymentIntentID == "pi_unknown" {
				return nil, common.ErrorNotFound
			}
			confirmed++
			return &models.Purchase{ID: "pur-1", PaymentIntentID: paymentIntentID, Paid: true}, nil
		},
	}
	srv := newTestServer(nil, nil, purchases, nil, nil)
	router := srv.Router()

	t.Run("succeeded", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/webhooks/payment", "",
			map[string]string{"payment_intent_id": "pi_1", "status": "succeeded"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, confirmed)
	})

	t.Run("other status ignored", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/webhooks/payment", "",
			map[string]string{"payment_intent_id": "pi_1", "status": "failed"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, confirmed)
	})

	t.Run("unknown intent", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/webhooks/payment", "",
			map[string]string{"payment_intent_id": "pi_unknown", "status": "succeeded"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing intent id", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/webhooks/payment", "",
			map[string]string{"status": "succeeded"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(nil, nil, nil, nil, nil)

	w := doJSON(t, srv.Router(), http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(nil, nil, nil, nil, nil)
	router := srv.Router()

	w := doJSON(t, router, http.MethodGet, "/healthz", "", nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-Id"))
}
