package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReservationIsExpired(t *testing.T) {
	deadline := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	res := &Reservation{ExpiresAt: deadline}

	assert.False(t, res.IsExpired(deadline.Add(-time.Second)))
	// A hold is still live at its exact deadline.
	assert.False(t, res.IsExpired(deadline))
	assert.True(t, res.IsExpired(deadline.Add(time.Second)))
}
