package store

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_inventory/internal/domain"
)

// Common errors returned by the store
var (
	ErrDuplicateProduct    = errors.New("product with this name already exists")
	ErrProductNotFound     = errors.New("product not found")
	ErrInventoryExists     = errors.New("inventory row already exists for product")
	ErrInventoryNotFound   = errors.New("inventory not found for product")
	ErrVersionConflict     = errors.New("inventory row was modified concurrently")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrStaleStatus         = errors.New("reservation is not in the expected status")
	ErrDuplicateOrder      = errors.New("order already exists")
	ErrOrderNotFound       = errors.New("order not found")
)

// OutboxEvent is a pending domain event written in the same transaction as
// the state change it describes, published asynchronously by the poller.
type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	Processed   bool
	CreatedAt   time.Time
}

// Store defines the persistence contract for products, inventory rows,
// reservations and orders. Inventory writes are conditional on the version
// read by the caller; a mismatch fails with ErrVersionConflict and must be
// retried by the caller against freshly read state.
type Store interface {
	// CreateProduct inserts a new product.
	// Returns ErrDuplicateProduct if the name is already taken.
	CreateProduct(ctx context.Context, product *domain.Product) error

	// GetProduct returns the product with the given id.
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)

	// InsertInventory creates the stock row for a product with version 0.
	// Returns ErrInventoryExists if a row already exists.
	InsertInventory(ctx context.Context, inv *domain.Inventory) error

	// GetInventory returns the current stock row for a product.
	GetInventory(ctx context.Context, productID string) (*domain.Inventory, error)

	// UpdateInventory writes the given stock values conditioned on the row
	// still being at expectedVersion. On success the stored version is
	// incremented; on a mismatch it returns ErrVersionConflict.
	UpdateInventory(ctx context.Context, inv *domain.Inventory, expectedVersion int64) error

	// InsertReservation creates a new reservation row.
	InsertReservation(ctx context.Context, res *domain.Reservation) error

	// GetReservationByOrderID returns the reservation carrying the given
	// order id, or ErrReservationNotFound.
	GetReservationByOrderID(ctx context.Context, orderID string) (*domain.Reservation, error)

	// TransitionReservation updates the reservation's status only if its
	// current status equals from. Returns ErrStaleStatus if another path
	// already moved it.
	TransitionReservation(ctx context.Context, reservationID string, from, to domain.ReservationStatus) error

	// FindDueReservations returns all reservations still RESERVED whose
	// expiry deadline has passed.
	FindDueReservations(ctx context.Context, now time.Time) ([]domain.Reservation, error)

	// CreateOrder inserts the confirmed order and its outbox event in one
	// atomic write. Returns ErrDuplicateOrder on an id collision.
	CreateOrder(ctx context.Context, order *domain.Order, event *OutboxEvent) error

	// GetOrder returns the order with the given id.
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// GetUnprocessedEvents returns up to limit unpublished outbox events.
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)

	// MarkEventAsProcessed flags an outbox event as published.
	MarkEventAsProcessed(ctx context.Context, eventID int64) error

	// Close shuts down the store
	Close() error
}
