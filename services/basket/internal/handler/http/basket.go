package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/andrewbyteforge/pricecomparison/pkg/errors"
	"github.com/andrewbyteforge/pricecomparison/pkg/httputil"
	"github.com/andrewbyteforge/pricecomparison/pkg/middleware"
	"github.com/andrewbyteforge/pricecomparison/pkg/validator"
	"github.com/andrewbyteforge/pricecomparison/services/basket/internal/domain"
	"github.com/andrewbyteforge/pricecomparison/services/basket/internal/service"
)

// maxBodyBytes caps request bodies; basket payloads are a few hundred bytes.
const maxBodyBytes = 64 << 10

// BasketHandler handles HTTP requests for basket endpoints.
type BasketHandler struct {
	service *service.BasketService
	csrf    middleware.CSRFConfig
	logger  *slog.Logger
}

// NewBasketHandler creates a new basket HTTP handler.
func NewBasketHandler(svc *service.BasketService, csrf middleware.CSRFConfig, logger *slog.Logger) *BasketHandler {
	return &BasketHandler{
		service: svc,
		csrf:    csrf,
		logger:  logger,
	}
}

// --- Request DTOs ---

// AddItemRequest is the JSON request body for adding an item. Price accepts
// either a JSON number or a numeric string.
type AddItemRequest struct {
	Store string      `json:"store" validate:"required"`
	Name  string      `json:"name" validate:"required,max=255"`
	Price json.Number `json:"price" validate:"required,money"`
}

// RemoveItemRequest is the JSON request body for removing an item.
type RemoveItemRequest struct {
	ItemID string `json:"item_id" validate:"required"`
}

// --- Response DTOs ---

type addItemResponse struct {
	Success bool   `json:"success"`
	Store   string `json:"store"`
	Name    string `json:"name"`
	Price   string `json:"price"`
	ItemID  string `json:"itemId"`
}

type removeItemResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type totalResponse struct {
	TotalPrice json.Number `json:"total_price"`
	Store      string      `json:"store"`
}

type itemResponse struct {
	ItemID  string    `json:"itemId"`
	Store   string    `json:"store"`
	Name    string    `json:"name"`
	Price   string    `json:"price"`
	AddedAt time.Time `json:"added_at"`
}

type listResponse struct {
	Items []itemResponse `json:"items"`
}

type emptyResponse struct {
	Success bool `json:"success"`
	Removed int  `json:"removed"`
}

type csrfResponse struct {
	CSRFToken string `json:"csrf_token"`
}

// --- Handlers ---

// CSRFToken handles GET /api/v1/basket/csrf
func (h *BasketHandler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	token := middleware.IssueCSRFToken(w, r, h.csrf)
	httputil.WriteJSON(w, http.StatusOK, csrfResponse{CSRFToken: token})
}

// AddItem handles POST /api/v1/basket/add
func (h *BasketHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req AddItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	item, err := h.service.AddItem(r.Context(), middleware.UserIDFromContext(r.Context()), service.AddItemInput{
		Store: req.Store,
		Name:  req.Name,
		Price: req.Price.String(),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, addItemResponse{
		Success: true,
		Store:   string(item.Store),
		Name:    item.Name,
		Price:   item.Price.StringFixed(2),
		ItemID:  item.ID,
	})
}

// RemoveItem handles POST /api/v1/basket/remove
func (h *BasketHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req RemoveItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	err := h.service.RemoveItem(r.Context(), middleware.UserIDFromContext(r.Context()), req.ItemID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{
				Error: "Item not found",
				Code:  "NOT_FOUND",
			})
			return
		}
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, removeItemResponse{
		Success: true,
		Message: "Item removed from basket",
	})
}

// Total handles GET /api/v1/basket/total?store=Asda
func (h *BasketHandler) Total(w http.ResponseWriter, r *http.Request) {
	store, total, err := h.service.Total(r.Context(), middleware.UserIDFromContext(r.Context()), r.URL.Query().Get("store"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, totalResponse{
		TotalPrice: json.Number(total.StringFixed(2)),
		Store:      string(store),
	})
}

// List handles GET /api/v1/basket
func (h *BasketHandler) List(w http.ResponseWriter, r *http.Request) {
	basket, err := h.service.Basket(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, listResponse{Items: toItemResponses(basket.Items)})
}

// Empty handles DELETE /api/v1/basket
func (h *BasketHandler) Empty(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.Empty(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, emptyResponse{Success: true, Removed: n})
}

func toItemResponses(items []domain.Item) []itemResponse {
	out := make([]itemResponse, len(items))
	for i, it := range items {
		out[i] = itemResponse{
			ItemID:  it.ID,
			Store:   string(it.Store),
			Name:    it.Name,
			Price:   it.Price.StringFixed(2),
			AddedAt: it.AddedAt,
		}
	}
	return out
}
