package storage

import (
	"context"

	"querytool-macros/server/internal/macros"
)

// Store defines the persistence contract for user macros and query history.
//
// HTTP handlers express editor behavior against this interface and never see
// SQL. Every method is scoped to one user.
type Store interface {
	// Init prepares schema/connection state needed before serving requests.
	Init(ctx context.Context) error

	// Close releases resources held by the storage backend.
	Close() error

	// ListMacros returns the user's macros ordered by id.
	ListMacros(ctx context.Context, userID string) ([]macros.Macro, error)

	// ApplyMacroOps applies ops inside one transaction and returns the
	// resulting collection.
	//
	// A macro's id is the catalogue key it is bound to. Tombstones delete,
	// updates upsert by id and may move a macro to another key, creates take
	// their key or the first free one. If the result has duplicate keys or
	// names the transaction is rolled back and a *ViolationError is returned.
	ApplyMacroOps(ctx context.Context, userID string, ops []macros.Op) ([]macros.Macro, error)

	// ListHistory returns the user's query history oldest first.
	ListHistory(ctx context.Context, userID string) ([]HistoryEntry, error)

	// AppendHistory stores one history entry at the end of the user's history.
	AppendHistory(ctx context.Context, userID string, entry HistoryEntry) error

	// ClearHistory drops the user's whole history.
	ClearHistory(ctx context.Context, userID string) error
}
