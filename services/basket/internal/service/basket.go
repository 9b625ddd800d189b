package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/andrewbyteforge/pricecomparison/pkg/errors"
	"github.com/andrewbyteforge/pricecomparison/services/basket/internal/domain"
	"github.com/andrewbyteforge/pricecomparison/services/basket/internal/event"
	"github.com/andrewbyteforge/pricecomparison/services/basket/internal/repository"
)

// DefaultMaxItems is the default limit on items in one basket.
const DefaultMaxItems = 100

// MaxNameLength bounds the product name stored with an item.
const MaxNameLength = 255

// AddItemInput holds the parameters for adding an item to the basket.
type AddItemInput struct {
	Store string
	Name  string
	Price string
}

// BasketService implements the business logic for basket operations.
type BasketService struct {
	repo     repository.BasketRepository
	producer *event.Producer
	logger   *slog.Logger
	maxItems int
	now      func() time.Time
}

// NewBasketService creates a new basket service.
func NewBasketService(repo repository.BasketRepository, producer *event.Producer, logger *slog.Logger, maxItems int) *BasketService {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &BasketService{
		repo:     repo,
		producer: producer,
		logger:   logger,
		maxItems: maxItems,
		now:      time.Now,
	}
}

// AddItem validates the input, assigns a new item ID and stores the item.
func (s *BasketService) AddItem(ctx context.Context, userID string, input AddItemInput) (*domain.Item, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}

	store, err := domain.ParseStore(input.Store)
	if err != nil {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown store %q: want Tesco, Asda or Sainsburys", input.Store))
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.InvalidInput("name is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return nil, apperrors.InvalidInput(fmt.Sprintf("name must not exceed %d characters", MaxNameLength))
	}

	price, err := domain.ParsePrice(input.Price)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	item := domain.Item{
		ID:      uuid.New().String(),
		Store:   store,
		Name:    name,
		Price:   price,
		AddedAt: s.now().UTC(),
	}

	if err := s.repo.Add(ctx, userID, item, s.maxItems); err != nil {
		if errors.Is(err, repository.ErrBasketFull) {
			return nil, apperrors.Conflict(fmt.Sprintf("basket already holds the maximum of %d items", s.maxItems))
		}
		return nil, fmt.Errorf("add basket item: %w", err)
	}

	if err := s.producer.PublishItemAdded(ctx, userID, item); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish basket.item_added event",
			slog.String("user_id", userID),
			slog.String("item_id", item.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "item added to basket",
		slog.String("user_id", userID),
		slog.String("item_id", item.ID),
		slog.String("store", string(item.Store)),
		slog.String("price", item.Price.StringFixed(2)),
	)

	return &item, nil
}

// RemoveItem deletes one item. It returns a NotFound error when the basket
// has no item with that ID.
func (s *BasketService) RemoveItem(ctx context.Context, userID, itemID string) error {
	if userID == "" {
		return apperrors.InvalidInput("user id is required")
	}
	if itemID == "" {
		return apperrors.InvalidInput("item id is required")
	}

	if err := s.repo.Remove(ctx, userID, itemID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		return fmt.Errorf("remove basket item: %w", err)
	}

	if err := s.producer.PublishItemRemoved(ctx, userID, itemID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish basket.item_removed event",
			slog.String("user_id", userID),
			slog.String("item_id", itemID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "item removed from basket",
		slog.String("user_id", userID),
		slog.String("item_id", itemID),
	)
	return nil
}

// Basket returns the user's basket. A user with no items gets an empty basket.
func (s *BasketService) Basket(ctx context.Context, userID string) (*domain.Basket, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}

	items, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list basket items: %w", err)
	}
	return &domain.Basket{UserID: userID, Items: items}, nil
}

// Total sums the prices of the user's items from one store.
func (s *BasketService) Total(ctx context.Context, userID, storeName string) (domain.Store, decimal.Decimal, error) {
	store, err := domain.ParseStore(storeName)
	if err != nil {
		return "", decimal.Zero, apperrors.InvalidInput(fmt.Sprintf("unknown store %q: want Tesco, Asda or Sainsburys", storeName))
	}

	basket, err := s.Basket(ctx, userID)
	if err != nil {
		return "", decimal.Zero, err
	}
	return store, basket.TotalFor(store), nil
}

// Empty deletes every item in the user's basket and reports how many were
// removed.
func (s *BasketService) Empty(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, apperrors.InvalidInput("user id is required")
	}

	n, err := s.repo.Clear(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("clear basket: %w", err)
	}

	if err := s.producer.PublishEmptied(ctx, userID, n); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish basket.emptied event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "basket emptied",
		slog.String("user_id", userID),
		slog.Int("removed", n),
	)
	return n, nil
}
