package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/go_inventory/internal/service"
	"github.com/go-chi/chi/v5"
)

// InventoryService is the slice of the service layer the handlers call.
type InventoryService interface {
	AddProduct(ctx context.Context, name string, initialStock int) (*service.ProductResult, error)
	AddStock(ctx context.Context, productID string, delta int) (*service.StockUpdateResult, error)
	Reserve(ctx context.Context, productID string, quantity int) (*service.ReservationResult, error)
	ConfirmOrder(ctx context.Context, orderID string) (*service.OrderResult, error)
	GetAvailableStock(ctx context.Context, productID string) (*service.StockResult, error)
}

type InventoryHandler struct {
	svc     InventoryService
	timeout time.Duration
}

func NewInventoryHandler(svc InventoryService, timeout time.Duration) *InventoryHandler {
	return &InventoryHandler{
		svc:     svc,
		timeout: timeout,
	}
}

type AddProductRequestDTO struct {
	Name  string `json:"name"`
	Stock *int   `json:"stock"`
}

type AddStockRequestDTO struct {
	Stock *int `json:"stock"`
}

type ReserveRequestDTO struct {
	ProductID string `json:"productId"`
	Quantity  *int   `json:"quantity"`
}

type ConfirmOrderRequestDTO struct {
	OrderID string `json:"orderId"`
}

type ProductResponse struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
}

type StockUpdateResponse struct {
	ProductID string `json:"productId"`
	Message   string `json:"message"`
	Delta     int    `json:"delta"`
	NewTotal  int    `json:"newTotal"`
}

type ReservationResponse struct {
	ReservationID string `json:"reservationId"`
	OrderID       string `json:"orderId"`
	ProductID     string `json:"productId"`
	Quantity      int    `json:"quantity"`
	ExpiresAt     string `json:"expiresAt"`
	Status        string `json:"status"`
}

type OrderResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

type StockResponse struct {
	ProductID      string `json:"productId"`
	Name           string `json:"name"`
	AvailableStock int    `json:"availableStock"`
}

func (h *InventoryHandler) AddProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddProductRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body", false)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "invalid_name", "name is required", false)
		return
	}
	if req.Stock == nil || *req.Stock < 0 {
		respondError(w, http.StatusBadRequest, "invalid_stock", "stock must be zero or positive", false)
		return
	}

	result, err := h.svc.AddProduct(ctx, req.Name, *req.Stock)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, &ProductResponse{
		ProductID: result.ProductID,
		Name:      result.Name,
	})
}

func (h *InventoryHandler) AddStock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "productId")

	var req AddStockRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body", false)
		return
	}
	if req.Stock == nil || *req.Stock <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_stock", "stock must be positive", false)
		return
	}

	result, err := h.svc.AddStock(ctx, productID, *req.Stock)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, &StockUpdateResponse{
		ProductID: result.ProductID,
		Message:   result.Message,
		Delta:     result.Delta,
		NewTotal:  result.NewTotal,
	})
}

func (h *InventoryHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ReserveRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body", false)
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "productId is required", false)
		return
	}
	if req.Quantity == nil || *req.Quantity <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be positive", false)
		return
	}

	result, err := h.svc.Reserve(ctx, req.ProductID, *req.Quantity)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, &ReservationResponse{
		ReservationID: result.ReservationID,
		OrderID:       result.OrderID,
		ProductID:     result.ProductID,
		Quantity:      result.Quantity,
		ExpiresAt:     result.ExpiresAt.Format(time.RFC3339),
		Status:        result.Status,
	})
}

func (h *InventoryHandler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ConfirmOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body", false)
		return
	}
	if req.OrderID == "" {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "orderId is required", false)
		return
	}

	result, err := h.svc.ConfirmOrder(ctx, req.OrderID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, &OrderResponse{
		OrderID: result.OrderID,
		Status:  result.Status,
	})
}

func (h *InventoryHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "productId")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "productId is required", false)
		return
	}

	result, err := h.svc.GetAvailableStock(ctx, productID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, &StockResponse{
		ProductID:      result.ProductID,
		Name:           result.Name,
		AvailableStock: result.AvailableStock,
	})
}
