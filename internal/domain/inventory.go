package domain

import "time"

// Product is catalog identity only: an opaque id and a unique name.
// Products are created once and never mutated or deleted.
type Product struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Inventory is the stock row for a product. AvailableStock never exceeds
// TotalStock and never goes negative; Version is the optimistic-concurrency
// stamp checked on every conditional write.
type Inventory struct {
	ProductID      string
	TotalStock     int
	AvailableStock int
	Version        int64
	UpdatedAt      time.Time
}

// ReservationStatus represents the state of a stock reservation
type ReservationStatus string

const (
	StatusReserved  ReservationStatus = "RESERVED"
	StatusConfirmed ReservationStatus = "CONFIRMED"
	StatusExpired   ReservationStatus = "EXPIRED"
)

// Reservation is a time-bounded hold on a quantity of a product's available
// stock. It starts RESERVED and reaches exactly one terminal state:
// CONFIRMED via an explicit confirm, or EXPIRED via the sweep.
type Reservation struct {
	ID        string
	OrderID   string
	ProductID string
	Quantity  int
	Status    ReservationStatus
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired reports whether the reservation's hold has lapsed at the given
// instant.
func (r *Reservation) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Order is the committed sale produced by confirming a reservation. Its ID is
// the originating reservation's order id.
type Order struct {
	ID        string
	ProductID string
	Quantity  int
	CreatedAt time.Time
}
