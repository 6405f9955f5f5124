package app

import (
	"errors"
	"sync"
	"testing"
	"time"

	"classroom-competition/internal/clock"
	"classroom-competition/internal/domain"
)

func TestExtendStoppedCountdown(t *testing.T) {
	var mu sync.Mutex
	cd := newCountdown(&mu, clock.NewManual(time.Unix(0, 0)), nil)
	if _, err := cd.extendLocked(5); !errors.Is(err, domain.ErrSessionNotRunning) {
		t.Fatalf("expected ErrSessionNotRunning, got %v", err)
	}
}
