package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Store is one of the supermarkets compared on the page.
type Store string

const (
	StoreTesco      Store = "Tesco"
	StoreAsda       Store = "Asda"
	StoreSainsburys Store = "Sainsburys"
)

// Stores lists every store in display order.
var Stores = []Store{StoreTesco, StoreAsda, StoreSainsburys}

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

// ParsePrice parses a non-negative decimal price with at most two decimal
// places.
func ParsePrice(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidPrice, s)
	}
	if d.IsNegative() || !d.Equal(d.Round(2)) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidPrice, s)
	}
	return d, nil
}

// FormatPrice renders a price for display, e.g. "£2.50".
func FormatPrice(d decimal.Decimal) string {
	return "£" + d.StringFixed(2)
}

// BasketItem is one product in the basket. ItemID is issued by the server.
type BasketItem struct {
	ItemID string
	Store  Store
	Name   string
	Price  decimal.Decimal
}

type itemJSON struct {
	ItemID string      `json:"itemId"`
	Store  string      `json:"store"`
	Name   string      `json:"name"`
	Price  json.Number `json:"price"`
}

// MarshalJSON writes the cache representation, with the price as a
// two-decimal string.
func (it BasketItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ItemID string `json:"itemId"`
		Store  Store  `json:"store"`
		Name   string `json:"name"`
		Price  string `json:"price"`
	}{it.ItemID, it.Store, it.Name, it.Price.StringFixed(2)})
}

// UnmarshalJSON reads an item and validates every field. The price may be a
// JSON number or a numeric string.
func (it *BasketItem) UnmarshalJSON(data []byte) error {
	var raw itemJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	item, err := raw.toItem()
	if err != nil {
		return err
	}
	*it = item
	return nil
}

func (raw itemJSON) toItem() (BasketItem, error) {
	switch {
	case raw.ItemID == "":
		return BasketItem{}, fmt.Errorf("%w: missing itemId", ErrMalformedResponse)
	case raw.Store == "":
		return BasketItem{}, fmt.Errorf("%w: missing store", ErrMalformedResponse)
	case strings.TrimSpace(raw.Name) == "":
		return BasketItem{}, fmt.Errorf("%w: missing name", ErrMalformedResponse)
	case raw.Price == "":
		return BasketItem{}, fmt.Errorf("%w: missing price", ErrMalformedResponse)
	}

	store, err := ParseStore(raw.Store)
	if err != nil {
		return BasketItem{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	price, err := ParsePrice(raw.Price.String())
	if err != nil {
		return BasketItem{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	return BasketItem{ItemID: raw.ItemID, Store: store, Name: raw.Name, Price: price}, nil
}

// TotalFor sums the prices of the items from store.
func TotalFor(items []BasketItem, store Store) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		if it.Store == store {
			total = total.Add(it.Price)
		}
	}
	return total
}
