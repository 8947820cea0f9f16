package store

import (
	"time"

	"wishwall/pkg/domain"
)

// Store defines persistence operations for wish submissions.
//
// InsertWish assigns the row identifier and creation timestamp and echoes
// the generated id back so insert failures surface with detail. The count
// query backs the rate-limit guard; it is advisory, a race between two
// concurrent submissions from the same address is accepted.
type Store interface {
	InsertWish(w domain.Wish) (string, error)
	CountByIPSince(ip string, since time.Time) (int64, error)
	ListRecent(limit int) ([]domain.Wish, error)
}
