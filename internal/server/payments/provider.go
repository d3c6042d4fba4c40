// Package payments defines the port to the external payment authority. The
// marketplace stores the payment intent reference opaquely and treats the
// provider's confirmation webhook as ground truth; the mechanics of charging
// are the provider's business.
package payments

import "context"

// Provider creates payment intents for checkout. Implementations must honor
// the context deadline; callers wrap every call in a timeout.
type Provider interface {
	// CreateIntent registers a pending payment for the given amount and
	// returns the provider's opaque intent reference.
	CreateIntent(ctx context.Context, amount float64) (string, error)
}
