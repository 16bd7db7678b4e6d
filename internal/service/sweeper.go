package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/fjod/go_inventory/internal/domain"
	"github.com/fjod/go_inventory/internal/store"
)

// sweep expires every reservation past its deadline and releases the held
// stock back to the ledger. It runs as the first step of every public
// operation, so staleness is bounded by request frequency rather than a
// background timer. Concurrent callers share a single pass via singleflight.
func (s *InventoryService) sweep(ctx context.Context) error {
	_, err, _ := s.sfg.Do("sweep", func() (interface{}, error) {
		return nil, s.sweepOnce(ctx)
	})
	if err != nil {
		return internalError("expiry sweep failed", err)
	}
	return nil
}

func (s *InventoryService) sweepOnce(ctx context.Context) error {
	due, err := s.store.FindDueReservations(ctx, s.now())
	if err != nil {
		return err
	}

	for i := range due {
		reservation := &due[i]

		err := s.store.TransitionReservation(ctx, reservation.ID, domain.StatusReserved, domain.StatusExpired)
		if errors.Is(err, store.ErrStaleStatus) {
			// Another path (a racing confirm) already moved it;
			// that path owns the stock, nothing to release.
			continue
		}
		if err != nil {
			log.Printf("sweep: failed to expire reservation %s: %v", reservation.ID, err)
			continue
		}

		s.releaseWithRetry(ctx, reservation)
	}
	return nil
}

// releaseWithRetry returns a reservation's quantity to the available pool.
// It serves the sweep and the reserve compensation path: the release must
// not be dropped on a version conflict or the stock leaks, so it retries up
// to the budget and logs loudly when it gives up.
func (s *InventoryService) releaseWithRetry(ctx context.Context, reservation *domain.Reservation) {
	var lastErr error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		lastErr = s.ledger.Release(ctx, reservation.ProductID, reservation.Quantity)
		if lastErr == nil {
			return
		}
		if !errors.Is(lastErr, store.ErrVersionConflict) {
			break
		}
		time.Sleep(conflictBackoff)
	}
	log.Printf("release: STOCK LEAK RISK: failed to release %d units of product %s for reservation %s: %v",
		reservation.Quantity, reservation.ProductID, reservation.ID, lastErr)
}
