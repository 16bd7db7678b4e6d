// Package ledger owns the available/total stock counters for every product.
// All stock mutation goes through it as a single read-check-conditional-write
// attempt; version conflicts surface to the caller, which owns the retry.
package ledger

import (
	"context"
	"fmt"

	"github.com/fjod/go_inventory/internal/domain"
	"github.com/fjod/go_inventory/internal/store"
)

// InsufficientStockError is a terminal business rejection: the requested
// quantity exceeded the available stock at the time of the attempt. It is
// never retried.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Ledger applies bounded stock deltas on top of the store's conditional
// writes. No other component touches availableStock/totalStock directly.
type Ledger struct {
	store store.Store
}

func New(st store.Store) *Ledger {
	return &Ledger{store: st}
}

// CreateInventory inserts the stock row for a new product with
// totalStock = availableStock = initialStock and version 0.
func (l *Ledger) CreateInventory(ctx context.Context, productID string, initialStock int) error {
	inv := &domain.Inventory{
		ProductID:      productID,
		TotalStock:     initialStock,
		AvailableStock: initialStock,
	}
	return l.store.InsertInventory(ctx, inv)
}

// IncreaseTotal adds delta to both total and available stock. Returns the new
// total on success, store.ErrVersionConflict if the row moved underneath the
// read and the caller must retry.
func (l *Ledger) IncreaseTotal(ctx context.Context, productID string, delta int) (int, error) {
	inv, err := l.store.GetInventory(ctx, productID)
	if err != nil {
		return 0, err
	}

	readVersion := inv.Version
	inv.TotalStock += delta
	inv.AvailableStock += delta

	if err := l.store.UpdateInventory(ctx, inv, readVersion); err != nil {
		return 0, err
	}
	return inv.TotalStock, nil
}

// TryReserve decrements available stock by quantity. Fails with
// *InsufficientStockError when the full quantity is not available (no partial
// reservation), or store.ErrVersionConflict when the conditional write loses
// the race.
func (l *Ledger) TryReserve(ctx context.Context, productID string, quantity int) error {
	inv, err := l.store.GetInventory(ctx, productID)
	if err != nil {
		return err
	}

	if inv.AvailableStock < quantity {
		return &InsufficientStockError{
			ProductID: productID,
			Requested: quantity,
			Available: inv.AvailableStock,
		}
	}

	readVersion := inv.Version
	inv.AvailableStock -= quantity
	return l.store.UpdateInventory(ctx, inv, readVersion)
}

// Release returns quantity units to the available pool. Callers must retry on
// store.ErrVersionConflict; dropping a failed release would leak the stock
// held by an expired reservation.
func (l *Ledger) Release(ctx context.Context, productID string, quantity int) error {
	inv, err := l.store.GetInventory(ctx, productID)
	if err != nil {
		return err
	}

	readVersion := inv.Version
	inv.AvailableStock += quantity
	return l.store.UpdateInventory(ctx, inv, readVersion)
}

// GetAvailable is a point read of the available stock, no version check.
func (l *Ledger) GetAvailable(ctx context.Context, productID string) (int, error) {
	inv, err := l.store.GetInventory(ctx, productID)
	if err != nil {
		return 0, err
	}
	return inv.AvailableStock, nil
}
