package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/seat-locker-kiosk/internal/model"
)

// RetryPolicy bounds how often an operation that lost a compare-and-swap
// race is re-run from the top.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration // doubled after every failed attempt
}

// DefaultRetry is three attempts waiting 100ms then 200ms between them.
var DefaultRetry = RetryPolicy{Attempts: 3, BaseDelay: 100 * time.Millisecond}

// do runs fn until it succeeds, fails with anything other than
// model.ErrVersionConflict, or the attempts are used up.
func (p RetryPolicy) do(ctx context.Context, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(); !errors.Is(err, model.ErrVersionConflict) {
			return err
		}
		if attempt == attempts-1 {
			break
		}
		t := time.NewTimer(p.BaseDelay << attempt)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return err
}
