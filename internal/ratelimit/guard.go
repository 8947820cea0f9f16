package ratelimit

import (
	"fmt"
	"time"
)

// Default submission caps per raw client address.
const (
	DefaultPerMinute = 3
	DefaultPerDay    = 25
)

// SubmissionCounter counts prior submissions from a raw address in a
// trailing window. Backed by the row store.
type SubmissionCounter interface {
	CountByIPSince(ip string, since time.Time) (int64, error)
}

// LimitError reports an exceeded submission window.
type LimitError struct {
	Window     time.Duration
	RetryAfter time.Duration
	Message    string
}

func (e *LimitError) Error() string { return e.Message }

// Guard enforces per-minute and per-day submission caps by counting
// existing rows. The check-then-act sequence is not atomic: two
// concurrent submissions from one address can both pass. That bounded
// over-admission is accepted; this is abuse mitigation, not a security
// boundary, so no locking is used.
type Guard struct {
	counter   SubmissionCounter
	perMinute int
	perDay    int
}

// NewGuard builds a guard, applying defaults for non-positive caps.
func NewGuard(counter SubmissionCounter, perMinute, perDay int) *Guard {
	if perMinute <= 0 {
		perMinute = DefaultPerMinute
	}
	if perDay <= 0 {
		perDay = DefaultPerDay
	}
	return &Guard{counter: counter, perMinute: perMinute, perDay: perDay}
}

// Check returns nil when the address is within both windows, a *LimitError
// when a cap is reached, or a wrapped store error. Both windows are
// evaluated before any mutation happens.
func (g *Guard) Check(rawIP string, now time.Time) error {
	minuteCount, err := g.counter.CountByIPSince(rawIP, now.Add(-time.Minute))
	if err != nil {
		return fmt.Errorf("count minute window: %w", err)
	}
	if minuteCount >= int64(g.perMinute) {
		return &LimitError{
			Window:     time.Minute,
			RetryAfter: time.Minute,
			Message:    "Too many requests. Try again in a minute.",
		}
	}
	dayCount, err := g.counter.CountByIPSince(rawIP, now.Add(-24*time.Hour))
	if err != nil {
		return fmt.Errorf("count day window: %w", err)
	}
	if dayCount >= int64(g.perDay) {
		return &LimitError{
			Window:     24 * time.Hour,
			RetryAfter: 24 * time.Hour,
			Message:    "Daily limit reached.",
		}
	}
	return nil
}
