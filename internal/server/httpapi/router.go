package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Router builds the route tree. Registration, login, the webhook and token
// redemption are public; everything else requires a bearer token.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(s.loggingMiddleware)

	r.Get("/healthz", s.healthz)

	r.Post("/register", s.register)
	r.Post("/login", s.login)
	r.Post("/webhooks/payment", s.paymentWebhook)
	r.Get("/download/{token}", s.redeemDownload)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/products", s.createProduct)
		r.Post("/uploads", s.createUpload)
		r.Post("/purchases", s.createPurchase)
		r.Get("/purchases", s.listPurchases)
		r.Get("/purchases/{id}/download", s.authorizeDownload)
	})

	return r
}
