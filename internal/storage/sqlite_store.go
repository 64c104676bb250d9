package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"querytool-macros/server/internal/macros"
)

// A macro is stored under the catalogue key it is bound to, so id is always
// a key and doubles as mid.
const schema = `
CREATE TABLE IF NOT EXISTS macros (
	user_id TEXT NOT NULL,
	id INTEGER NOT NULL,
	name TEXT NOT NULL,
	sql TEXT NOT NULL,
	PRIMARY KEY (user_id, id)
);

CREATE TABLE IF NOT EXISTS history (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	entry_id TEXT NOT NULL,
	query TEXT NOT NULL,
	status TEXT NOT NULL,
	message TEXT NOT NULL,
	rows INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	executed_at INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_history_entry
ON history(user_id, entry_id);
`

// SQLiteStore is a SQLite-backed implementation of Store.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("enable wal: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *SQLiteStore) ListMacros(ctx context.Context, userID string) ([]macros.Macro, error) {
	if userID == "" {
		return nil, errors.New("userId is required")
	}
	return listMacros(ctx, s.db, userID)
}

func listMacros(ctx context.Context, q querier, userID string) ([]macros.Macro, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, sql
		FROM macros
		WHERE user_id = ?
		ORDER BY id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query macros: %w", err)
	}
	defer rows.Close()

	list := make([]macros.Macro, 0)
	for rows.Next() {
		var m macros.Macro
		if err := rows.Scan(&m.ID, &m.Name, &m.SQL); err != nil {
			return nil, fmt.Errorf("scan macro: %w", err)
		}
		key := m.ID
		m.MID = &key
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate macros: %w", err)
	}
	return list, nil
}

// ApplyMacroOps applies ops in three passes: tombstones, updates that move a
// macro to another key, then the remaining updates and creates. Each pass
// keeps input order. Moves park the row under the negated target key until
// every op has run, so keys can be swapped within one batch.
func (s *SQLiteStore) ApplyMacroOps(ctx context.Context, userID string, ops []macros.Op) ([]macros.Macro, error) {
	if userID == "" {
		return nil, errors.New("userId is required")
	}
	for i, op := range ops {
		if op.MID != nil && *op.MID != 0 && !macros.KnownKey(*op.MID) {
			return nil, fmt.Errorf("op %d: %w: %d", i, ErrUnknownKey, *op.MID)
		}
	}

	transaction, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = transaction.Rollback() }()

	for pass := 0; pass < 3; pass++ {
		for i, op := range ops {
			if applyPass(op) != pass {
				continue
			}
			switch op.Kind() {
			case macros.OpDelete:
				err = deleteMacro(ctx, transaction, userID, op)
			case macros.OpUpdate:
				err = updateMacro(ctx, transaction, userID, op)
			case macros.OpCreate:
				err = createMacro(ctx, transaction, userID, op)
			}
			if err != nil {
				return nil, fmt.Errorf("op %d (%s): %w", i, op.Kind(), err)
			}
		}
	}
	if err := settleMoves(ctx, transaction, userID); err != nil {
		return nil, err
	}

	list, err := listMacros(ctx, transaction, userID)
	if err != nil {
		return nil, err
	}
	if v := macros.Validate(macros.Rows(list)); v != macros.NoViolation {
		return nil, &ViolationError{Violation: v}
	}
	if err := transaction.Commit(); err != nil {
		return nil, fmt.Errorf("commit macros: %w", err)
	}
	return list, nil
}

func applyPass(op macros.Op) int {
	switch op.Kind() {
	case macros.OpDelete:
		return 0
	case macros.OpUpdate:
		if movesKey(op) {
			return 1
		}
	}
	return 2
}

func movesKey(op macros.Op) bool {
	return op.ID != nil && op.MID != nil && *op.MID != 0 && *op.MID != *op.ID
}

func deleteMacro(ctx context.Context, tx *sql.Tx, userID string, op macros.Op) error {
	if op.ID == nil || *op.ID <= 0 {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM macros WHERE user_id = ? AND id = ?`, userID, *op.ID); err != nil {
		return fmt.Errorf("delete macro: %w", err)
	}
	return nil
}

// updateMacro edits the macro stored under op.ID. When none is stored and
// the op carries both name and sql, the macro is created under its key.
func updateMacro(ctx context.Context, tx *sql.Tx, userID string, op macros.Op) error {
	id := *op.ID
	exists := false
	if id > 0 {
		var err error
		if exists, err = keyTaken(ctx, tx, userID, id, false); err != nil {
			return err
		}
	}
	if !exists {
		if op.Name == nil || op.SQL == nil {
			return fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		key := id
		if op.MID != nil && *op.MID != 0 {
			key = *op.MID
		}
		return insertMacro(ctx, tx, userID, key, op)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE macros SET
			name = COALESCE(?, name),
			sql = COALESCE(?, sql)
		WHERE user_id = ? AND id = ?
	`, nullableString(op.Name), nullableString(op.SQL), userID, id); err != nil {
		return fmt.Errorf("update macro: %w", err)
	}
	if !movesKey(op) {
		return nil
	}
	parked, err := keyTaken(ctx, tx, userID, -*op.MID, false)
	if err != nil {
		return err
	}
	if parked {
		return &ViolationError{Violation: macros.DuplicateKey}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE macros SET id = ? WHERE user_id = ? AND id = ?`, -*op.MID, userID, id); err != nil {
		return fmt.Errorf("move macro: %w", err)
	}
	return nil
}

// createMacro stores op under its key, or under the first free key when it
// has none.
func createMacro(ctx context.Context, tx *sql.Tx, userID string, op macros.Op) error {
	if op.MID != nil && *op.MID != 0 {
		return insertMacro(ctx, tx, userID, *op.MID, op)
	}
	key, err := freeKey(ctx, tx, userID)
	if err != nil {
		return err
	}
	return insertMacro(ctx, tx, userID, key, op)
}

func insertMacro(ctx context.Context, tx *sql.Tx, userID string, key int64, op macros.Op) error {
	if op.Name == nil || *op.Name == "" || op.SQL == nil || *op.SQL == "" {
		return ErrIncomplete
	}
	if !macros.KnownKey(key) {
		return fmt.Errorf("%w: %d", ErrUnknownKey, key)
	}
	taken, err := keyTaken(ctx, tx, userID, key, true)
	if err != nil {
		return err
	}
	if taken {
		return &ViolationError{Violation: macros.DuplicateKey}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO macros (user_id, id, name, sql)
		VALUES (?, ?, ?, ?)
	`, userID, key, *op.Name, *op.SQL)
	if err != nil {
		return fmt.Errorf("insert macro: %w", err)
	}
	return nil
}

// keyTaken reports whether a row is stored under id. With parked set, a row
// waiting to move onto id counts too.
func keyTaken(ctx context.Context, tx *sql.Tx, userID string, id int64, parked bool) (bool, error) {
	query := `SELECT COUNT(*) FROM macros WHERE user_id = ? AND id = ?`
	args := []any{userID, id}
	if parked {
		query = `SELECT COUNT(*) FROM macros WHERE user_id = ? AND id IN (?, ?)`
		args = append(args, -id)
	}
	var count int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("check macro key: %w", err)
	}
	return count > 0, nil
}

func freeKey(ctx context.Context, tx *sql.Tx, userID string) (int64, error) {
	rows, err := tx.QueryContext(ctx, `SELECT ABS(id) FROM macros WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("query macro keys: %w", err)
	}
	defer rows.Close()
	used := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("scan macro key: %w", err)
		}
		used[id] = true
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate macro keys: %w", err)
	}
	for _, key := range macros.Keys() {
		if !used[key.ID] {
			return key.ID, nil
		}
	}
	return 0, ErrNoFreeKey
}

// settleMoves lands parked rows on their target keys.
func settleMoves(ctx context.Context, tx *sql.Tx, userID string) error {
	var clashes int
	row := tx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM macros moved
		JOIN macros held ON held.user_id = moved.user_id AND held.id = -moved.id
		WHERE moved.user_id = ? AND moved.id < 0
	`, userID)
	if err := row.Scan(&clashes); err != nil {
		return fmt.Errorf("check moved macros: %w", err)
	}
	if clashes > 0 {
		return &ViolationError{Violation: macros.DuplicateKey}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE macros SET id = -id WHERE user_id = ? AND id < 0`, userID); err != nil {
		return fmt.Errorf("settle moved macros: %w", err)
	}
	return nil
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func (s *SQLiteStore) ListHistory(ctx context.Context, userID string) ([]HistoryEntry, error) {
	if userID == "" {
		return nil, errors.New("userId is required")
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_id, query, status, message, rows, duration_ms, executed_at
		FROM history
		WHERE user_id = ?
		ORDER BY seq ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0)
	for rows.Next() {
		var entry HistoryEntry
		var executedAt int64
		if err := rows.Scan(&entry.ID, &entry.Query, &entry.Status, &entry.Message, &entry.Rows, &entry.DurationMS, &executedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		entry.ExecutedAt = time.UnixMilli(executedAt).UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

func (s *SQLiteStore) AppendHistory(ctx context.Context, userID string, entry HistoryEntry) error {
	if userID == "" {
		return errors.New("userId is required")
	}
	if entry.ID == "" {
		return errors.New("history entry id is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO history (user_id, entry_id, query, status, message, rows, duration_ms, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, userID, entry.ID, entry.Query, entry.Status, entry.Message, entry.Rows, entry.DurationMS, entry.ExecutedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ClearHistory(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("userId is required")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}
