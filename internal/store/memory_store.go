package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fjod/go_inventory/internal/domain"
)

// MemoryStore implements Store with in-memory maps. It keeps the same
// conditional-write semantics as the Postgres store (version check on every
// inventory write), so the retry paths behave identically in tests.
type MemoryStore struct {
	mu           sync.RWMutex
	products     map[string]*domain.Product     // productID -> product
	productNames map[string]string              // name -> productID
	inventories  map[string]*domain.Inventory   // productID -> stock row
	reservations map[string]*domain.Reservation // reservationID -> reservation
	orders       map[string]*domain.Order       // orderID -> order
	outbox       []*OutboxEvent
	nextEventID  int64
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:     make(map[string]*domain.Product),
		productNames: make(map[string]string),
		inventories:  make(map[string]*domain.Inventory),
		reservations: make(map[string]*domain.Reservation),
		orders:       make(map[string]*domain.Order),
		nextEventID:  1,
	}
}

func (s *MemoryStore) CreateProduct(_ context.Context, product *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.productNames[product.Name]; taken {
		return ErrDuplicateProduct
	}

	p := *product
	s.products[p.ID] = &p
	s.productNames[p.Name] = p.ID
	return nil
}

func (s *MemoryStore) GetProduct(_ context.Context, productID string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[productID]
	if !exists {
		return nil, ErrProductNotFound
	}
	p := *product
	return &p, nil
}

func (s *MemoryStore) InsertInventory(_ context.Context, inv *domain.Inventory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.inventories[inv.ProductID]; exists {
		return ErrInventoryExists
	}

	row := *inv
	row.Version = 0
	row.UpdatedAt = time.Now()
	s.inventories[row.ProductID] = &row
	return nil
}

func (s *MemoryStore) GetInventory(_ context.Context, productID string) (*domain.Inventory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, exists := s.inventories[productID]
	if !exists {
		return nil, ErrInventoryNotFound
	}
	inv := *row
	return &inv, nil
}

func (s *MemoryStore) UpdateInventory(_ context.Context, inv *domain.Inventory, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, exists := s.inventories[inv.ProductID]
	if !exists {
		return ErrInventoryNotFound
	}
	if row.Version != expectedVersion {
		return ErrVersionConflict
	}

	row.TotalStock = inv.TotalStock
	row.AvailableStock = inv.AvailableStock
	row.Version = expectedVersion + 1
	row.UpdatedAt = time.Now()
	inv.Version = row.Version
	return nil
}

func (s *MemoryStore) InsertReservation(_ context.Context, res *domain.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := *res
	s.reservations[r.ID] = &r
	return nil
}

func (s *MemoryStore) GetReservationByOrderID(_ context.Context, orderID string) (*domain.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, res := range s.reservations {
		if res.OrderID == orderID {
			r := *res
			return &r, nil
		}
	}
	return nil, ErrReservationNotFound
}

func (s *MemoryStore) TransitionReservation(_ context.Context, reservationID string, from, to domain.ReservationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, exists := s.reservations[reservationID]
	if !exists {
		return ErrReservationNotFound
	}
	if res.Status != from {
		return ErrStaleStatus
	}

	res.Status = to
	return nil
}

func (s *MemoryStore) FindDueReservations(_ context.Context, now time.Time) ([]domain.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []domain.Reservation
	for _, res := range s.reservations {
		if res.Status == domain.StatusReserved && res.IsExpired(now) {
			due = append(due, *res)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ExpiresAt.Before(due[j].ExpiresAt) })
	return due, nil
}

func (s *MemoryStore) CreateOrder(_ context.Context, order *domain.Order, event *OutboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.ID]; exists {
		return ErrDuplicateOrder
	}

	o := *order
	s.orders[o.ID] = &o

	if event != nil {
		ev := *event
		ev.ID = s.nextEventID
		ev.CreatedAt = time.Now()
		s.nextEventID++
		s.outbox = append(s.outbox, &ev)
	}
	return nil
}

func (s *MemoryStore) GetOrder(_ context.Context, orderID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, exists := s.orders[orderID]
	if !exists {
		return nil, ErrOrderNotFound
	}
	o := *order
	return &o, nil
}

func (s *MemoryStore) GetUnprocessedEvents(_ context.Context, limit int) ([]*OutboxEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []*OutboxEvent
	for _, ev := range s.outbox {
		if ev.Processed {
			continue
		}
		e := *ev
		events = append(events, &e)
		if len(events) == limit {
			break
		}
	}
	return events, nil
}

func (s *MemoryStore) MarkEventAsProcessed(_ context.Context, eventID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range s.outbox {
		if ev.ID == eventID {
			ev.Processed = true
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
