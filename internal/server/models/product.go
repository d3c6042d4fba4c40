package models

import "time"

// Product is a sellable digital item owned by one seller. FileKey and
// ThumbnailKey are opaque object-storage references resolved by the file
// collaborator; this service only stores and forwards them. Downloads is
// incremented only on successful download-token redemption.
type Product struct {
	ID           string
	SellerID     string
	Title        string
	Description  string
	Price        float64
	Category     string
	FileKey      string
	ThumbnailKey string
	Downloads    int64
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
