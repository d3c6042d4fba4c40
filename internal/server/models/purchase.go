package models

import "time"

// Purchase ties a buyer to a product at a point in time. Amount snapshots
// the product price at checkout. Paid transitions false→true exactly once,
// driven by the payment webhook, and never reverses. DownloadToken and
// DownloadExpiry are set only once the purchase is paid. Purchase rows are
// an append-only audit trail and are never deleted.
type Purchase struct {
	ID              string
	UserID          string
	ProductID       string
	PaymentIntentID string
	Amount          float64
	Paid            bool
	DownloadToken   string
	DownloadExpiry  time.Time
	PurchasedAt     time.Time
}

// HasValidDownloadToken reports whether the purchase already carries a
// download token that has not yet expired at the given instant.
func (p *Purchase) HasValidDownloadToken(now time.Time) bool {
	return p.DownloadToken != "" && p.DownloadExpiry.After(now)
}
