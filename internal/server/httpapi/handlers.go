package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/distrofy/backend/internal/common"
	"github.com/distrofy/backend/internal/server/models"
	"github.com/go-chi/chi/v5"
)

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Name  string `json:"name"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, token, err := s.users.Register(r.Context(), req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	s.logger.Info(r.Context(), "user registered", "email", user.Email, "role", user.Role)

	writeJSON(w, http.StatusCreated, sessionResponse{
		Token: token,
		Email: user.Email,
		Role:  user.Role,
		Name:  user.Name,
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, token, err := s.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		Token: token,
		Email: user.Email,
		Role:  user.Role,
		Name:  user.Name,
	})
}

type productRequest struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Price        float64 `json:"price"`
	Category     string  `json:"category"`
	FileKey      string  `json:"file_key"`
	ThumbnailKey string  `json:"thumbnail_key"`
}

type productResponse struct {
	ID           string    `json:"id"`
	SellerID     string    `json:"seller_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Price        float64   `json:"price"`
	Category     string    `json:"category"`
	FileKey      string    `json:"file_key"`
	ThumbnailKey string    `json:"thumbnail_key"`
	Downloads    int64     `json:"downloads"`
	CreatedAt    time.Time `json:"created_at"`
}

func toProductResponse(p *models.Product) productResponse {
	return productResponse{
		ID:           p.ID,
		SellerID:     p.SellerID,
		Title:        p.Title,
		Description:  p.Description,
		Price:        p.Price,
		Category:     p.Category,
		FileKey:      p.FileKey,
		ThumbnailKey: p.ThumbnailKey,
		Downloads:    p.Downloads,
		CreatedAt:    p.CreatedAt,
	}
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req productRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := s.products.Create(r.Context(), claims.UserID, claims.Role, &models.Product{
		Title:        req.Title,
		Description:  req.Description,
		Price:        req.Price,
		Category:     req.Category,
		FileKey:      req.FileKey,
		ThumbnailKey: req.ThumbnailKey,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	s.logger.Info(r.Context(), "product listed", "product_id", product.ID, "seller_id", product.SellerID)

	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

type uploadResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// createUpload hands a seller a presigned PUT URL for a new asset. The
// returned key becomes the product's file_key once listed.
func (s *Server) createUpload(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if claims.Role != models.RoleSeller && claims.Role != models.RoleAdmin {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	key, url, err := s.files.GetPresignedPutURL(r.Context())
	if err != nil {
		s.logger.Error(r.Context(), "error presigning upload", "error", err)
		writeError(w, http.StatusBadGateway, "object store unavailable")
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{Key: key, URL: url})
}

type purchaseRequest struct {
	ProductID string `json:"product_id"`
}

type purchaseResponse struct {
	ID              string    `json:"id"`
	ProductID       string    `json:"product_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
	Amount          float64   `json:"amount"`
	Paid            bool      `json:"paid"`
	PurchasedAt     time.Time `json:"purchased_at"`
}

func toPurchaseResponse(p *models.Purchase) purchaseResponse {
	return purchaseResponse{
		ID:              p.ID,
		ProductID:       p.ProductID,
		PaymentIntentID: p.PaymentIntentID,
		Amount:          p.Amount,
		Paid:            p.Paid,
		PurchasedAt:     p.PurchasedAt,
	}
}

func (s *Server) createPurchase(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req purchaseRequest
	if err := decodeBody(r, &req); err != nil || req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	purchase, err := s.purchases.Initiate(r.Context(), claims.UserID, req.ProductID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	s.logger.Info(r.Context(), "purchase initiated",
		"purchase_id", purchase.ID, "product_id", purchase.ProductID, "user_id", purchase.UserID)

	writeJSON(w, http.StatusCreated, toPurchaseResponse(purchase))
}

func (s *Server) listPurchases(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	purchases, err := s.purchases.ListForBuyer(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	result := make([]purchaseResponse, 0, len(purchases))
	for _, p := range purchases {
		result = append(result, toPurchaseResponse(p))
	}

	writeJSON(w, http.StatusOK, result)
}

type downloadTokenResponse struct {
	Token  string    `json:"token"`
	Expiry time.Time `json:"expiry"`
}

func (s *Server) authorizeDownload(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	purchaseID := chi.URLParam(r, "id")

	token, expiry, err := s.downloads.Authorize(r.Context(), claims, purchaseID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	s.logger.Info(r.Context(), "download token issued", "purchase_id", purchaseID)

	writeJSON(w, http.StatusOK, downloadTokenResponse{Token: token, Expiry: expiry})
}

// redeemDownload exchanges a download token for a short-lived presigned URL
// and redirects the client to it. The token is the only credential here.
func (s *Server) redeemDownload(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	product, err := s.downloads.Redeem(r.Context(), token)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	url, err := s.files.GetPresignedGetURL(r.Context(), product.FileKey)
	if err != nil {
		s.logger.Error(r.Context(), "error presigning download", "error", err)
		writeError(w, http.StatusBadGateway, "object store unavailable")
		return
	}

	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

type paymentWebhookRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
	Status          string `json:"status"`
}

// paymentWebhook processes provider notifications. Delivery is
// at-least-once, so re-confirming an already paid intent is a success.
func (s *Server) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	var req paymentWebhookRequest
	if err := decodeBody(r, &req); err != nil || req.PaymentIntentID == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Status != "succeeded" {
		s.logger.Info(r.Context(), "webhook ignored", "status", req.Status)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	purchase, err := s.purchases.Confirm(r.Context(), req.PaymentIntentID)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			s.logger.Error(r.Context(), "error confirming payment", "error", err)
		}
		writeServiceError(w, err)
		return
	}

	s.logger.Info(r.Context(), "payment confirmed", "purchase_id", purchase.ID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
}

func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	return dec.Decode(dst)
}
