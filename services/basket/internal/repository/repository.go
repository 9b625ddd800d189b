package repository

import (
	"context"
	"errors"

	"github.com/andrewbyteforge/pricecomparison/services/basket/internal/domain"
)

// ErrBasketFull is returned by Add when the basket already holds the maximum
// number of items.
var ErrBasketFull = errors.New("basket is full")

// BasketRepository defines basket persistence. Implementations must make Add
// atomic with respect to the item limit.
type BasketRepository interface {
	// List returns the user's items ordered by the time they were added.
	// An unknown user has an empty basket.
	List(ctx context.Context, userID string) ([]domain.Item, error)

	// Add stores item unless the basket already holds maxItems items.
	Add(ctx context.Context, userID string, item domain.Item, maxItems int) error

	// Remove deletes one item. It returns apperrors.NotFound if the user has
	// no item with that ID.
	Remove(ctx context.Context, userID, itemID string) error

	// Clear deletes every item and returns how many there were.
	Clear(ctx context.Context, userID string) (int, error)
}
