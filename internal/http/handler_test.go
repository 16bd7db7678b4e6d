package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fjod/go_inventory/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ServiceMock struct {
	productResult     *service.ProductResult
	stockUpdateResult *service.StockUpdateResult
	reservationResult *service.ReservationResult
	orderResult       *service.OrderResult
	stockResult       *service.StockResult
	err               error
}

func (m *ServiceMock) AddProduct(context.Context, string, int) (*service.ProductResult, error) {
	return m.productResult, m.err
}

func (m *ServiceMock) AddStock(context.Context, string, int) (*service.StockUpdateResult, error) {
	return m.stockUpdateResult, m.err
}

func (m *ServiceMock) Reserve(context.Context, string, int) (*service.ReservationResult, error) {
	return m.reservationResult, m.err
}

func (m *ServiceMock) ConfirmOrder(context.Context, string) (*service.OrderResult, error) {
	return m.orderResult, m.err
}

func (m *ServiceMock) GetAvailableStock(context.Context, string) (*service.StockResult, error) {
	return m.stockResult, m.err
}

func newRouter(mock *ServiceMock) chi.Router {
	handler := NewInventoryHandler(mock, 5*time.Second)
	r := chi.NewRouter()
	r.Route("/products", func(r chi.Router) {
		r.Post("/", handler.AddProduct)
		r.Put("/stock/{productId}", handler.AddStock)
		r.Get("/stock/{productId}", handler.GetStock)
		r.Post("/reservation", handler.Reserve)
		r.Post("/order", handler.ConfirmOrder)
	})
	return r
}

func doJSON(t *testing.T, r chi.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	request := httptest.NewRequest(method, path, &buf)
	recorder := httptest.NewRecorder()
	r.ServeHTTP(recorder, request)
	return recorder
}

func intPtr(v int) *int { return &v }

func TestAddProduct_Created(t *testing.T) {
	mock := &ServiceMock{productResult: &service.ProductResult{ProductID: "p1", Name: "Widget"}}
	r := newRouter(mock)

	recorder := doJSON(t, r, "POST", "/products", AddProductRequestDTO{Name: "Widget", Stock: intPtr(10)})

	require.Equal(t, http.StatusCreated, recorder.Code)
	var response ProductResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, "p1", response.ProductID)
	assert.Equal(t, "Widget", response.Name)
}

func TestAddProduct_MissingName(t *testing.T) {
	r := newRouter(&ServiceMock{})

	recorder := doJSON(t, r, "POST", "/products", AddProductRequestDTO{Stock: intPtr(10)})

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestAddProduct_MissingStock(t *testing.T) {
	r := newRouter(&ServiceMock{})

	recorder := doJSON(t, r, "POST", "/products", AddProductRequestDTO{Name: "Widget"})

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestAddProduct_DuplicateMapsToConflict(t *testing.T) {
	mock := &ServiceMock{err: &service.Error{Kind: service.KindConflict, Message: "product exists"}}
	r := newRouter(mock)

	recorder := doJSON(t, r, "POST", "/products", AddProductRequestDTO{Name: "Widget", Stock: intPtr(10)})

	require.Equal(t, http.StatusConflict, recorder.Code)
	var response ErrorResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, "conflict", response.Code)
	assert.False(t, response.Retryable)
}

func TestAddStock_OK(t *testing.T) {
	mock := &ServiceMock{stockUpdateResult: &service.StockUpdateResult{
		ProductID: "p1", Message: "Stock updated successfully", Delta: 5, NewTotal: 15,
	}}
	r := newRouter(mock)

	recorder := doJSON(t, r, "PUT", "/products/stock/p1", AddStockRequestDTO{Stock: intPtr(5)})

	require.Equal(t, http.StatusOK, recorder.Code)
	var response StockUpdateResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, 15, response.NewTotal)
}

func TestAddStock_NonPositiveDelta(t *testing.T) {
	r := newRouter(&ServiceMock{})

	recorder := doJSON(t, r, "PUT", "/products/stock/p1", AddStockRequestDTO{Stock: intPtr(0)})

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestReserve_Created(t *testing.T) {
	expiresAt := time.Now().Add(10 * time.Minute)
	mock := &ServiceMock{reservationResult: &service.ReservationResult{
		ReservationID: "r1",
		OrderID:       "abc12345",
		ProductID:     "p1",
		Quantity:      7,
		ExpiresAt:     expiresAt,
		Status:        "RESERVED",
	}}
	r := newRouter(mock)

	recorder := doJSON(t, r, "POST", "/products/reservation", ReserveRequestDTO{ProductID: "p1", Quantity: intPtr(7)})

	require.Equal(t, http.StatusCreated, recorder.Code)
	var response ReservationResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, "abc12345", response.OrderID)
	assert.Equal(t, "RESERVED", response.Status)
	assert.Equal(t, expiresAt.Format(time.RFC3339), response.ExpiresAt)
}

func TestReserve_InsufficientStockMapsToConflict(t *testing.T) {
	mock := &ServiceMock{err: &service.Error{
		Kind:    service.KindInsufficientStock,
		Message: "insufficient stock for product p1: requested 5, available 3",
	}}
	r := newRouter(mock)

	recorder := doJSON(t, r, "POST", "/products/reservation", ReserveRequestDTO{ProductID: "p1", Quantity: intPtr(5)})

	require.Equal(t, http.StatusConflict, recorder.Code)
	var response ErrorResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, "insufficient_stock", response.Code)
	assert.False(t, response.Retryable)
	assert.Contains(t, response.Error, "requested 5")
}

func TestReserve_ConcurrentConflictIsRetryable(t *testing.T) {
	mock := &ServiceMock{err: &service.Error{
		Kind:      service.KindConcurrentConflict,
		Message:   "stock update failed due to concurrent modification, please retry",
		Retryable: true,
	}}
	r := newRouter(mock)

	recorder := doJSON(t, r, "POST", "/products/reservation", ReserveRequestDTO{ProductID: "p1", Quantity: intPtr(1)})

	require.Equal(t, http.StatusInternalServerError, recorder.Code)
	var response ErrorResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, "concurrent_conflict", response.Code)
	assert.True(t, response.Retryable)
}

func TestReserve_InvalidBody(t *testing.T) {
	r := newRouter(&ServiceMock{})

	request := httptest.NewRequest("POST", "/products/reservation", bytes.NewBufferString("{not json"))
	recorder := httptest.NewRecorder()
	r.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestConfirmOrder_OK(t *testing.T) {
	mock := &ServiceMock{orderResult: &service.OrderResult{OrderID: "abc12345", Status: "CONFIRMED"}}
	r := newRouter(mock)

	recorder := doJSON(t, r, "POST", "/products/order", ConfirmOrderRequestDTO{OrderID: "abc12345"})

	require.Equal(t, http.StatusOK, recorder.Code)
	var response OrderResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, "CONFIRMED", response.Status)
}

func TestConfirmOrder_ExpiredMapsToConflict(t *testing.T) {
	mock := &ServiceMock{err: &service.Error{
		Kind:    service.KindExpiredReservation,
		Message: "reservation for order abc12345 has expired, a new reservation is required",
	}}
	r := newRouter(mock)

	recorder := doJSON(t, r, "POST", "/products/order", ConfirmOrderRequestDTO{OrderID: "abc12345"})

	require.Equal(t, http.StatusConflict, recorder.Code)
	var response ErrorResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, "reservation_expired", response.Code)
	assert.False(t, response.Retryable)
}

func TestGetStock_OK(t *testing.T) {
	mock := &ServiceMock{stockResult: &service.StockResult{ProductID: "p1", Name: "Widget", AvailableStock: 3}}
	r := newRouter(mock)

	recorder := doJSON(t, r, "GET", "/products/stock/p1", nil)

	require.Equal(t, http.StatusOK, recorder.Code)
	var response StockResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, "Widget", response.Name)
	assert.Equal(t, 3, response.AvailableStock)
}

func TestGetStock_NotFound(t *testing.T) {
	mock := &ServiceMock{err: &service.Error{Kind: service.KindNotFound, Message: "product not found"}}
	r := newRouter(mock)

	recorder := doJSON(t, r, "GET", "/products/stock/missing", nil)

	require.Equal(t, http.StatusNotFound, recorder.Code)
	var response ErrorResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, "not_found", response.Code)
}
