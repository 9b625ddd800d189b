package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Store is a supermarket whose products can be put in the basket.
type Store string

const (
	StoreTesco      Store = "Tesco"
	StoreAsda       Store = "Asda"
	StoreSainsburys Store = "Sainsburys"
)

// Stores lists every supported store in display order.
var Stores = []Store{StoreTesco, StoreAsda, StoreSainsburys}

var (
	ErrUnknownStore = errors.New("unknown store")
	ErrInvalidPrice = errors.New("invalid price")
)

// MaxPrice is the largest price a basket item may carry (six digits, two of
// them decimal places).
var MaxPrice = decimal.RequireFromString("9999.99")

// ParseStore resolves a store name case-insensitively.
func ParseStore(s string) (Store, error) {
	name := strings.TrimSpace(s)
	for _, st := range Stores {
		if strings.EqualFold(name, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStore, s)
}

// ParsePrice parses a decimal price string. It must be positive, have at most
// two decimal places and not exceed MaxPrice.
func ParsePrice(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrInvalidPrice, s)
	}
	switch {
	case !d.IsPositive():
		return decimal.Zero, fmt.Errorf("%w: must be greater than zero", ErrInvalidPrice)
	case !d.Equal(d.Round(2)):
		return decimal.Zero, fmt.Errorf("%w: at most two decimal places", ErrInvalidPrice)
	case d.GreaterThan(MaxPrice):
		return decimal.Zero, fmt.Errorf("%w: must not exceed %s", ErrInvalidPrice, MaxPrice.StringFixed(2))
	}
	return d, nil
}

// Item is one product in a user's basket. ID is assigned by the server.
type Item struct {
	ID      string          `json:"id"`
	Store   Store           `json:"store"`
	Name    string          `json:"name"`
	Price   decimal.Decimal `json:"price"`
	AddedAt time.Time       `json:"added_at"`
}

// Basket is the authoritative record of a user's items across all stores.
type Basket struct {
	UserID string
	Items  []Item
}

// TotalFor sums the prices of the items bought from store.
func (b *Basket) TotalFor(store Store) decimal.Decimal {
	total := decimal.Zero
	for _, it := range b.Items {
		if it.Store == store {
			total = total.Add(it.Price)
		}
	}
	return total
}

// ItemsFor returns the items bought from store, in basket order.
func (b *Basket) ItemsFor(store Store) []Item {
	var out []Item
	for _, it := range b.Items {
		if it.Store == store {
			out = append(out, it)
		}
	}
	return out
}
