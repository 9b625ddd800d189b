// Package cache persists the client-side copy of the basket. Every driver
// stores one JSON array of items under the fixed key "basket", scoped to a
// single shopper profile.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/andrewbyteforge/pricecomparison/services/shopper/internal/domain"
)

// Key is the name the basket is stored under.
const Key = "basket"

// ErrCorrupt is returned by Load when the stored value is not a valid item
// array.
var ErrCorrupt = errors.New("basket cache corrupt")

// Store persists the cached basket.
type Store interface {
	// Load returns the cached items, or an empty slice when nothing is stored.
	Load(ctx context.Context) ([]domain.BasketItem, error)
	// Save replaces the cached items.
	Save(ctx context.Context, items []domain.BasketItem) error
	// Clear removes the cached basket.
	Clear(ctx context.Context) error
}

func encode(items []domain.BasketItem) ([]byte, error) {
	if items == nil {
		items = []domain.BasketItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal basket cache: %w", err)
	}
	return data, nil
}

func decode(data []byte) ([]domain.BasketItem, error) {
	var items []domain.BasketItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, dup := seen[it.ItemID]; dup {
			return nil, fmt.Errorf("%w: duplicate itemId %q", ErrCorrupt, it.ItemID)
		}
		seen[it.ItemID] = struct{}{}
	}

	if items == nil {
		items = []domain.BasketItem{}
	}
	return items, nil
}
