package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/fjod/go_inventory/internal/cache"
	"github.com/fjod/go_inventory/internal/domain"
	"github.com/fjod/go_inventory/internal/ledger"
	"github.com/fjod/go_inventory/internal/store"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	// ReservationHold is how long a reservation keeps stock before the
	// sweep may expire it.
	ReservationHold = 10 * time.Minute

	// maxConflictRetries bounds re-read-and-retry attempts after a
	// version conflict before the operation surfaces as retryable.
	maxConflictRetries = 3

	conflictBackoff = 20 * time.Millisecond
)

// InventoryService orchestrates the reserve → confirm → (expire) lifecycle on
// top of the ledger and the reservation store. Every public operation sweeps
// expired reservations first, then performs its own mutation under a bounded
// conflict-retry loop.
type InventoryService struct {
	store  store.Store
	ledger *ledger.Ledger
	cache  cache.ProductCache // optional, nil disables caching
	sfg    singleflight.Group // collapses concurrent sweeps
	now    func() time.Time
}

func NewInventoryService(st store.Store, productCache cache.ProductCache) *InventoryService {
	return &InventoryService{
		store:  st,
		ledger: ledger.New(st),
		cache:  productCache,
		now:    time.Now,
	}
}

type ProductResult struct {
	ProductID string
	Name      string
}

type StockUpdateResult struct {
	ProductID string
	Message   string
	Delta     int
	NewTotal  int
}

type ReservationResult struct {
	ReservationID string
	OrderID       string
	ProductID     string
	Quantity      int
	ExpiresAt     time.Time
	Status        string
}

type OrderResult struct {
	OrderID string
	Status  string
}

type StockResult struct {
	ProductID      string
	Name           string
	AvailableStock int
}

// AddProduct creates a product with its initial stock row.
func (s *InventoryService) AddProduct(ctx context.Context, name string, initialStock int) (*ProductResult, error) {
	if name == "" {
		return nil, validationError("product name is required")
	}
	if initialStock < 0 {
		return nil, validationError("initial stock must not be negative")
	}

	product := &domain.Product{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateProduct(ctx, product); err != nil {
		if errors.Is(err, store.ErrDuplicateProduct) {
			return nil, conflictError("product with name '" + name + "' already exists")
		}
		return nil, internalError("failed to create product", err)
	}

	if err := s.ledger.CreateInventory(ctx, product.ID, initialStock); err != nil {
		return nil, internalError("failed to create inventory", err)
	}

	return &ProductResult{ProductID: product.ID, Name: product.Name}, nil
}

// AddStock adds delta units to a product's total and available stock.
func (s *InventoryService) AddStock(ctx context.Context, productID string, delta int) (*StockUpdateResult, error) {
	if productID == "" {
		return nil, validationError("product id is required")
	}
	if delta <= 0 {
		return nil, validationError("stock delta must be positive")
	}

	if err := s.sweep(ctx); err != nil {
		return nil, err
	}

	if _, err := s.getProduct(ctx, productID); err != nil {
		return nil, err
	}

	var newTotal int
	err := s.withConflictRetry(func() error {
		var tryErr error
		newTotal, tryErr = s.ledger.IncreaseTotal(ctx, productID, delta)
		return tryErr
	})
	if err != nil {
		if errors.Is(err, store.ErrInventoryNotFound) {
			return nil, notFoundError("inventory not found for product")
		}
		return nil, err
	}

	return &StockUpdateResult{
		ProductID: productID,
		Message:   "Stock updated successfully",
		Delta:     delta,
		NewTotal:  newTotal,
	}, nil
}

// Reserve holds quantity units of a product's stock for ReservationHold.
// Version conflicts are retried against freshly read state; insufficient
// stock is a terminal rejection and is not retried.
func (s *InventoryService) Reserve(ctx context.Context, productID string, quantity int) (*ReservationResult, error) {
	if productID == "" {
		return nil, validationError("product id is required")
	}
	if quantity <= 0 {
		return nil, validationError("quantity must be positive")
	}

	if err := s.sweep(ctx); err != nil {
		return nil, err
	}

	err := s.withConflictRetry(func() error {
		return s.ledger.TryReserve(ctx, productID, quantity)
	})
	if err != nil {
		var insufficient *ledger.InsufficientStockError
		if errors.As(err, &insufficient) {
			return nil, insufficientStockError(insufficient)
		}
		if errors.Is(err, store.ErrInventoryNotFound) {
			return nil, notFoundError("product not found")
		}
		return nil, err
	}

	now := s.now()
	reservation := &domain.Reservation{
		ID:        uuid.New().String(),
		OrderID:   newOrderID(),
		ProductID: productID,
		Quantity:  quantity,
		Status:    domain.StatusReserved,
		ExpiresAt: now.Add(ReservationHold),
		CreatedAt: now,
	}
	if err := s.store.InsertReservation(ctx, reservation); err != nil {
		// The decrement already committed. Without a reservation row the
		// sweep can never return these units, so give them back now.
		s.releaseWithRetry(ctx, reservation)
		return nil, internalError("failed to create reservation", err)
	}

	return &ReservationResult{
		ReservationID: reservation.ID,
		OrderID:       reservation.OrderID,
		ProductID:     productID,
		Quantity:      quantity,
		ExpiresAt:     reservation.ExpiresAt,
		Status:        string(domain.StatusReserved),
	}, nil
}

// ConfirmOrder turns a live reservation into a committed order. Stock was
// already decremented at reserve time, so confirm only moves bookkeeping.
func (s *InventoryService) ConfirmOrder(ctx context.Context, orderID string) (*OrderResult, error) {
	if orderID == "" {
		return nil, validationError("order id is required")
	}

	if err := s.sweep(ctx); err != nil {
		return nil, err
	}

	reservation, err := s.store.GetReservationByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrReservationNotFound) {
			return nil, notFoundError("no reservation found for order")
		}
		return nil, internalError("failed to look up reservation", err)
	}

	switch reservation.Status {
	case domain.StatusExpired:
		return nil, expiredReservationError(orderID)
	case domain.StatusConfirmed:
		return nil, conflictError("order " + orderID + " is already confirmed")
	}

	order := &domain.Order{
		ID:        orderID,
		ProductID: reservation.ProductID,
		Quantity:  reservation.Quantity,
		CreatedAt: s.now(),
	}
	event, err := orderConfirmedEvent(order)
	if err != nil {
		return nil, internalError("failed to build order event", err)
	}

	err = s.store.TransitionReservation(ctx, reservation.ID, domain.StatusReserved, domain.StatusConfirmed)
	if err != nil {
		if errors.Is(err, store.ErrStaleStatus) {
			// Another path won the race between the read and the
			// transition: a sweep expired it, or a second confirm
			// got there first.
			current, readErr := s.store.GetReservationByOrderID(ctx, orderID)
			if readErr == nil && current.Status == domain.StatusConfirmed {
				return nil, conflictError("order " + orderID + " is already confirmed")
			}
			return nil, expiredReservationError(orderID)
		}
		return nil, internalError("failed to confirm reservation", err)
	}

	if err := s.store.CreateOrder(ctx, order, event); err != nil {
		// The status already flipped to CONFIRMED. Roll it back so a
		// retry of the confirm can run the whole transition again;
		// otherwise the sale is confirmed on paper with no order row.
		rbErr := s.store.TransitionReservation(ctx, reservation.ID, domain.StatusConfirmed, domain.StatusReserved)
		if rbErr != nil {
			log.Printf("confirm: failed to roll back reservation %s for order %s: %v", reservation.ID, orderID, rbErr)
		}
		return nil, internalError("failed to create order", err)
	}

	return &OrderResult{OrderID: orderID, Status: string(domain.StatusConfirmed)}, nil
}

// GetAvailableStock returns the product name and its current available stock.
func (s *InventoryService) GetAvailableStock(ctx context.Context, productID string) (*StockResult, error) {
	if productID == "" {
		return nil, validationError("product id is required")
	}

	if err := s.sweep(ctx); err != nil {
		return nil, err
	}

	product, err := s.getProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	available, err := s.ledger.GetAvailable(ctx, productID)
	if err != nil {
		if errors.Is(err, store.ErrInventoryNotFound) {
			return nil, notFoundError("inventory not found for product")
		}
		return nil, internalError("failed to read available stock", err)
	}

	return &StockResult{
		ProductID:      productID,
		Name:           product.Name,
		AvailableStock: available,
	}, nil
}

// getProduct reads a product through the cache when one is configured.
// Products are immutable, so a cached copy never goes stale.
func (s *InventoryService) getProduct(ctx context.Context, productID string) (*domain.Product, error) {
	if s.cache != nil {
		product, err := s.cache.Get(ctx, productID)
		if err == nil {
			return product, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("product cache get error: %v", err)
		}
	}

	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			return nil, notFoundError("product not found")
		}
		return nil, internalError("failed to look up product", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, product); err != nil {
			log.Printf("product cache set error: %v", err)
		}
	}
	return product, nil
}

// withConflictRetry runs fn up to maxConflictRetries times, backing off
// briefly after each version conflict. Exhausting the budget surfaces a
// retryable concurrent-conflict error; every other failure returns as-is.
func (s *InventoryService) withConflictRetry(fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		lastErr = fn()
		if !errors.Is(lastErr, store.ErrVersionConflict) {
			return lastErr
		}
		time.Sleep(conflictBackoff)
	}
	return concurrentConflictError(lastErr)
}

// newOrderID mirrors the historic order id format: the first segment of a
// UUID, short enough to read back to a customer.
func newOrderID() string {
	return strings.Split(uuid.New().String(), "-")[0]
}

func orderConfirmedEvent(order *domain.Order) (*store.OutboxEvent, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"order_id":     order.ID,
		"product_id":   order.ProductID,
		"quantity":     order.Quantity,
		"confirmed_at": order.CreatedAt,
	})
	if err != nil {
		return nil, err
	}
	return &store.OutboxEvent{
		AggregateID: order.ID,
		EventType:   "order.confirmed",
		Payload:     payload,
	}, nil
}
