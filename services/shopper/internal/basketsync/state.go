// Package basketsync keeps the server basket, the persisted cache and the
// rendered view in step.
package basketsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/andrewbyteforge/pricecomparison/services/shopper/internal/cache"
	"github.com/andrewbyteforge/pricecomparison/services/shopper/internal/domain"
	"github.com/andrewbyteforge/pricecomparison/services/shopper/internal/view"
)

// Server is the authoritative basket. *api.Client implements it.
type Server interface {
	Add(ctx context.Context, store domain.Store, name string, price decimal.Decimal) (domain.BasketItem, error)
	Remove(ctx context.Context, itemID string) error
	Total(ctx context.Context, store domain.Store) (decimal.Decimal, error)
	List(ctx context.Context) ([]domain.BasketItem, error)
	Empty(ctx context.Context) error
}

// BasketState owns the client copy of the basket. Network calls run without
// the lock held; each completion is applied to the cache and the view under
// one lock, so completions may arrive in any order.
//
// Totals are always the local sum of the rendered rows. The server total is
// only consulted by Verify.
type BasketState struct {
	server Server
	store  cache.Store
	logger *slog.Logger

	mu      sync.Mutex
	items   []domain.BasketItem
	view    *view.View
	removed mapset.Set[string]

	removes singleflight.Group
}

// New creates an empty basket state. Call Load to restore the cache.
func New(server Server, store cache.Store, logger *slog.Logger) *BasketState {
	return &BasketState{
		server:  server,
		store:   store,
		logger:  logger,
		items:   []domain.BasketItem{},
		view:    view.New(),
		removed: mapset.NewThreadUnsafeSet[string](),
	}
}

// Load restores the basket from the cache and re-renders the view. A corrupt
// cache is reported, and the state stays empty.
func (s *BasketState) Load(ctx context.Context) error {
	items, err := s.store.Load(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load basket cache", slog.String("error", err.Error()))
		observe("load", err)
		return fmt.Errorf("load basket cache: %w", err)
	}

	s.mu.Lock()
	s.items = items
	s.view.Render(items)
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "basket cache loaded", slog.Int("items", len(items)))
	observe("load", nil)
	return nil
}

// Add validates the input, asks the server to add the item and, on success,
// appends it to the cache and the store's table. An itemId already present
// is not added twice. Nothing changes locally on failure.
func (s *BasketState) Add(ctx context.Context, storeName, name, price string) (domain.BasketItem, error) {
	item, err := s.add(ctx, storeName, name, price)
	observe("add", err)
	if err != nil {
		s.logFailure(ctx, "add item failed", err,
			slog.String("store", storeName),
			slog.String("name", name),
			slog.String("price", price),
		)
		return domain.BasketItem{}, err
	}
	return item, nil
}

func (s *BasketState) add(ctx context.Context, storeName, name, price string) (domain.BasketItem, error) {
	store, err := domain.ParseStore(storeName)
	if err != nil {
		return domain.BasketItem{}, err
	}
	amount, err := domain.ParsePrice(price)
	if err != nil {
		return domain.BasketItem{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.BasketItem{}, fmt.Errorf("%w: name is required", domain.ErrInvalidName)
	}

	item, err := s.server.Add(ctx, store, name, amount)
	if err != nil {
		return domain.BasketItem{}, fmt.Errorf("add %s to %s basket: %w", name, store, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.removed.Contains(item.ItemID) {
		s.logger.WarnContext(ctx, "ignoring add acknowledged after removal", slog.String("item_id", item.ItemID))
		return item, nil
	}
	if s.indexOf(item.ItemID) >= 0 {
		return item, nil
	}

	next := append(slices.Clip(s.items), item)
	if err := s.store.Save(ctx, next); err != nil {
		return domain.BasketItem{}, fmt.Errorf("save basket cache: %w", err)
	}
	s.items = next
	s.view.InsertRow(item)

	s.logger.InfoContext(ctx, "item added",
		slog.String("item_id", item.ItemID),
		slog.String("store", string(item.Store)),
		slog.String("price", item.Price.StringFixed(2)),
	)
	return item, nil
}

// Remove asks the server to remove an item and, once it confirms, drops it
// from the cache and the view. Removing an item that is not cached is a
// no-op locally. Concurrent removes of the same item share one request.
func (s *BasketState) Remove(ctx context.Context, itemID string) error {
	err := s.remove(ctx, itemID)
	observe("remove", err)
	if err != nil {
		s.logFailure(ctx, "remove item failed", err, slog.String("item_id", itemID))
	}
	return err
}

func (s *BasketState) remove(ctx context.Context, itemID string) error {
	if itemID == "" {
		return errors.New("remove item: item id is required")
	}

	// The shared request outlives any one caller's context.
	shared := context.WithoutCancel(ctx)
	_, err, _ := s.removes.Do(itemID, func() (any, error) {
		return nil, s.server.Remove(shared, itemID)
	})
	if err != nil {
		return fmt.Errorf("remove item %s: %w", itemID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.removed.Add(itemID)

	i := s.indexOf(itemID)
	if i < 0 {
		return nil
	}
	next := slices.Delete(slices.Clone(s.items), i, i+1)
	if err := s.store.Save(ctx, next); err != nil {
		return fmt.Errorf("save basket cache: %w", err)
	}
	s.items = next
	s.view.RemoveRow(itemID)

	s.logger.InfoContext(ctx, "item removed", slog.String("item_id", itemID))
	return nil
}

// Empty asks the server to clear the basket, then clears the cache and every
// table.
func (s *BasketState) Empty(ctx context.Context) error {
	err := s.empty(ctx)
	observe("empty", err)
	if err != nil {
		s.logFailure(ctx, "empty basket failed", err)
	}
	return err
}

func (s *BasketState) empty(ctx context.Context) error {
	if err := s.server.Empty(ctx); err != nil {
		return fmt.Errorf("empty basket: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear basket cache: %w", err)
	}
	for _, it := range s.items {
		s.removed.Add(it.ItemID)
	}
	s.items = []domain.BasketItem{}
	s.view.Clear()

	s.logger.InfoContext(ctx, "basket emptied")
	return nil
}

// Sync replaces the cache and the view with the server's item list.
func (s *BasketState) Sync(ctx context.Context) error {
	err := s.sync(ctx)
	observe("sync", err)
	if err != nil {
		s.logFailure(ctx, "sync basket failed", err)
	}
	return err
}

func (s *BasketState) sync(ctx context.Context) error {
	items, err := s.server.List(ctx)
	if err != nil {
		return fmt.Errorf("list basket: %w", err)
	}

	seen := mapset.NewThreadUnsafeSetWithSize[string](len(items))
	unique := make([]domain.BasketItem, 0, len(items))
	for _, it := range items {
		if seen.Add(it.ItemID) {
			unique = append(unique, it)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Save(ctx, unique); err != nil {
		return fmt.Errorf("save basket cache: %w", err)
	}
	s.items = unique
	s.view.Render(unique)

	s.logger.InfoContext(ctx, "basket synced", slog.Int("items", len(unique)))
	return nil
}

// Verify compares the server's total for store with the local one. A
// difference is returned as a *domain.TotalMismatchError; nothing is changed.
func (s *BasketState) Verify(ctx context.Context, storeName string) error {
	err := s.verify(ctx, storeName)
	observe("verify", err)
	if err != nil {
		s.logFailure(ctx, "verify total failed", err, slog.String("store", storeName))
	}
	return err
}

func (s *BasketState) verify(ctx context.Context, storeName string) error {
	store, err := domain.ParseStore(storeName)
	if err != nil {
		return err
	}

	remote, err := s.server.Total(ctx, store)
	if err != nil {
		return fmt.Errorf("fetch %s total: %w", store, err)
	}

	local := s.Total(store)
	if !local.Equal(remote) {
		return &domain.TotalMismatchError{
			Store:  store,
			Local:  local.StringFixed(2),
			Remote: remote.StringFixed(2),
		}
	}
	return nil
}

// Total is the sum of the prices of the rows rendered for store.
func (s *BasketState) Total(store domain.Store) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.Table(store).Total
}

// Table returns a snapshot of one store's rendered table.
func (s *BasketState) Table(store domain.Store) view.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.Table(store)
}

// Items returns a copy of the cached items in order.
func (s *BasketState) Items() []domain.BasketItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

// Render returns the rendered tables for every store.
func (s *BasketState) Render() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.String()
}

// RenderStore returns the rendered table for one store.
func (s *BasketState) RenderStore(store domain.Store) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.RenderStore(store)
}

func (s *BasketState) indexOf(itemID string) int {
	return slices.IndexFunc(s.items, func(it domain.BasketItem) bool { return it.ItemID == itemID })
}

// logFailure logs rejections and mismatches as warnings and everything else
// as errors.
func (s *BasketState) logFailure(ctx context.Context, msg string, err error, attrs ...any) {
	attrs = append(attrs, slog.String("error", err.Error()))
	if errors.Is(err, domain.ErrServerRejected) || errors.Is(err, domain.ErrTotalMismatch) {
		s.logger.WarnContext(ctx, msg, attrs...)
		return
	}
	s.logger.ErrorContext(ctx, msg, attrs...)
}
