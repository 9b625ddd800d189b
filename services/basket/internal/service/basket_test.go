package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/andrewbyteforge/pricecomparison/pkg/errors"
	"github.com/andrewbyteforge/pricecomparison/services/basket/internal/domain"
	"github.com/andrewbyteforge/pricecomparison/services/basket/internal/event"
	"github.com/andrewbyteforge/pricecomparison/services/basket/internal/repository"
)

// --- Mock Repository ---

type mockBasketRepository struct {
	mock.Mock
}

func (m *mockBasketRepository) List(ctx context.Context, userID string) ([]domain.Item, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Item), args.Error(1)
}

func (m *mockBasketRepository) Add(ctx context.Context, userID string, item domain.Item, maxItems int) error {
	args := m.Called(ctx, userID, item, maxItems)
	return args.Error(0)
}

func (m *mockBasketRepository) Remove(ctx context.Context, userID, itemID string) error {
	args := m.Called(ctx, userID, itemID)
	return args.Error(0)
}

func (m *mockBasketRepository) Clear(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestService(repo *mockBasketRepository) *BasketService {
	logger := newTestLogger()
	svc := NewBasketService(repo, event.NewProducer(nil, logger), logger, 0)
	svc.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return svc
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// ---------------------------------------------------------------------------
// AddItem
// ---------------------------------------------------------------------------

func TestAddItem_Success(t *testing.T) {
	repo := new(mockBasketRepository)
	svc := newTestService(repo)

	repo.On("Add", mock.Anything, "user-1", mock.MatchedBy(func(it domain.Item) bool {
		_, err := uuid.Parse(it.ID)
		return err == nil && it.Store == domain.StoreAsda && it.Name == "Tea" && it.Price.Equal(dec("2.50"))
	}), DefaultMaxItems).Return(nil)

	item, err := svc.AddItem(context.Background(), "user-1", AddItemInput{Store: "asda", Name: " Tea ", Price: "2.50"})

	require.NoError(t, err)
	assert.Equal(t, domain.StoreAsda, item.Store)
	assert.Equal(t, "Tea", item.Name)
	assert.Equal(t, "2.50", item.Price.StringFixed(2))
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), item.AddedAt)
	repo.AssertExpectations(t)
}

func TestAddItem_AssignsDistinctIDs(t *testing.T) {
	repo := new(mockBasketRepository)
	svc := newTestService(repo)
	repo.On("Add", mock.Anything, "user-1", mock.Anything, DefaultMaxItems).Return(nil)

	a, err := svc.AddItem(context.Background(), "user-1", AddItemInput{Store: "Tesco", Name: "Milk", Price: "1.10"})
	require.NoError(t, err)
	b, err := svc.AddItem(context.Background(), "user-1", AddItemInput{Store: "Tesco", Name: "Milk", Price: "1.10"})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}

func TestAddItem_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		input  AddItemInput
		msg    string
	}{
		{"missing user", "", AddItemInput{Store: "Asda", Name: "Tea", Price: "1"}, "user id is required"},
		{"unknown store", "u", AddItemInput{Store: "Lidl", Name: "Tea", Price: "1"}, "unknown store"},
		{"blank name", "u", AddItemInput{Store: "Asda", Name: "  ", Price: "1"}, "name is required"},
		{"zero price", "u", AddItemInput{Store: "Asda", Name: "Tea", Price: "0"}, "greater than zero"},
		{"three decimals", "u", AddItemInput{Store: "Asda", Name: "Tea", Price: "1.005"}, "two decimal places"},
		{"too expensive", "u", AddItemInput{Store: "Asda", Name: "Tea", Price: "10000"}, "must not exceed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mockBasketRepository)
			svc := newTestService(repo)

			_, err := svc.AddItem(context.Background(), tt.userID, tt.input)

			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.msg)
			repo.AssertNotCalled(t, "Add")
		})
	}
}

func TestAddItem_NameLengthCountsCharacters(t *testing.T) {
	repo := new(mockBasketRepository)
	svc := newTestService(repo)
	repo.On("Add", mock.Anything, "user-1", mock.Anything, DefaultMaxItems).Return(nil)

	name := strings.Repeat("é", MaxNameLength)
	item, err := svc.AddItem(context.Background(), "user-1", AddItemInput{Store: "Asda", Name: name, Price: "1.00"})
	require.NoError(t, err)
	assert.Equal(t, name, item.Name)

	_, err = svc.AddItem(context.Background(), "user-1", AddItemInput{Store: "Asda", Name: name + "é", Price: "1.00"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	repo.AssertNumberOfCalls(t, "Add", 1)
}

func TestAddItem_BasketFull(t *testing.T) {
	repo := new(mockBasketRepository)
	svc := newTestService(repo)
	repo.On("Add", mock.Anything, "user-1", mock.Anything, DefaultMaxItems).Return(repository.ErrBasketFull)

	_, err := svc.AddItem(context.Background(), "user-1", AddItemInput{Store: "Asda", Name: "Tea", Price: "2.50"})

	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestAddItem_RepoError(t *testing.T) {
	repo := new(mockBasketRepository)
	svc := newTestService(repo)
	repo.On("Add", mock.Anything, "user-1", mock.Anything, DefaultMaxItems).Return(errors.New("redis down"))

	_, err := svc.AddItem(context.Background(), "user-1", AddItemInput{Store: "Asda", Name: "Tea", Price: "2.50"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "add basket item")
}

// ---------------------------------------------------------------------------
// RemoveItem
// ---------------------------------------------------------------------------

func TestRemoveItem_Success(t *testing.T) {
	repo := new(mockBasketRepository)
	svc := newTestService(repo)
	repo.On("Remove", mock.Anything, "user-1", "item-1").Return(nil)

	assert.NoError(t, svc.RemoveItem(context.Background(), "user-1", "item-1"))
	repo.AssertExpectations(t)
}

func TestRemoveItem_NotFound(t *testing.T) {
	repo := new(mockBasketRepository)
	svc := newTestService(repo)
	repo.On("Remove", mock.Anything, "user-1", "missing").Return(apperrors.NotFound("basket item", "missing"))

	err := svc.RemoveItem(context.Background(), "user-1", "missing")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRemoveItem_MissingID(t *testing.T) {
	svc := newTestService(new(mockBasketRepository))

	err := svc.RemoveItem(context.Background(), "user-1", "")

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

// ---------------------------------------------------------------------------
// Basket / Total / Empty
// ---------------------------------------------------------------------------

func TestTotal(t *testing.T) {
	repo := new(mockBasketRepository)
	svc := newTestService(repo)
	repo.On("List", mock.Anything, "user-1").Return([]domain.Item{
		{ID: "a", Store: domain.StoreAsda, Price: dec("2.50")},
		{ID: "b", Store: domain.StoreAsda, Price: dec("0.99")},
		{ID: "c", Store: domain.StoreTesco, Price: dec("5.00")},
	}, nil)

	store, total, err := svc.Total(context.Background(), "user-1", "ASDA")

	require.NoError(t, err)
	assert.Equal(t, domain.StoreAsda, store)
	assert.Equal(t, "3.49", total.StringFixed(2))
}

func TestTotal_EmptyBasket(t *testing.T) {
	repo := new(mockBasketRepository)
	svc := newTestService(repo)
	repo.On("List", mock.Anything, "user-1").Return([]domain.Item{}, nil)

	_, total, err := svc.Total(context.Background(), "user-1", "Sainsburys")

	require.NoError(t, err)
	assert.True(t, total.IsZero())
}

func TestTotal_UnknownStore(t *testing.T) {
	svc := newTestService(new(mockBasketRepository))

	_, _, err := svc.Total(context.Background(), "user-1", "Waitrose")

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestBasket_RepoError(t *testing.T) {
	repo := new(mockBasketRepository)
	svc := newTestService(repo)
	repo.On("List", mock.Anything, "user-1").Return(nil, errors.New("timeout"))

	_, err := svc.Basket(context.Background(), "user-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "list basket items")
}

func TestEmpty(t *testing.T) {
	repo := new(mockBasketRepository)
	svc := newTestService(repo)
	repo.On("Clear", mock.Anything, "user-1").Return(3, nil)

	n, err := svc.Empty(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
