package storage

import (
	"errors"
	"fmt"
	"time"

	"querytool-macros/server/internal/macros"
)

var (
	// ErrNotFound is returned when an update names a key with no macro
	// stored under it and does not carry enough fields to create one.
	ErrNotFound = errors.New("macro not found")
	// ErrUnknownKey is returned when a macro is bound to a key outside the
	// shortcut catalogue.
	ErrUnknownKey = errors.New("unknown key")
	// ErrNoFreeKey is returned when a create without a key finds every
	// catalogue key taken.
	ErrNoFreeKey = errors.New("no free key")
	// ErrIncomplete is returned when a create lacks a name or sql.
	ErrIncomplete = errors.New("macro requires name and sql")
)

// ViolationError reports that applying ops would leave the collection with
// duplicate keys or names. Nothing is written when it is returned.
type ViolationError struct {
	Violation macros.Violation
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("uniqueness violation: %s", e.Violation.Message())
}

// HistoryEntry is one executed query in a user's history.
type HistoryEntry struct {
	ID         string    `json:"id"`
	Query      string    `json:"query" validate:"required"`
	Status     string    `json:"status" validate:"omitempty,oneof=success error cancelled"`
	Message    string    `json:"message,omitempty"`
	Rows       int64     `json:"rows" validate:"gte=0"`
	DurationMS int64     `json:"durationMs" validate:"gte=0"`
	ExecutedAt time.Time `json:"executedAt"`
}
