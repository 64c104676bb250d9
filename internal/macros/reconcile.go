// Package macros turns a macros editing session into backend operations.
package macros

import (
	"errors"
	"fmt"
)

// ErrUnknownMacro is returned when a changed row names an id the baseline
// does not contain.
var ErrUnknownMacro = errors.New("unknown macro")

// Reconcile flattens a changeset against the stored baseline into the ops
// the backend applies: changed rows, then tombstones, then added rows, each
// group in input order.
//
// A changed row with an id is backfilled from its baseline macro. An empty
// name or sql, or a missing or zero key, keeps the baseline value, so an edit
// cannot clear those fields. A changed row without an id was added in this
// session and is sent under its key. An added row with a client id sends
// that id as its key and drops the id.
func Reconcile(baseline []Macro, cs Changeset) ([]Op, error) {
	ops := make([]Op, 0, len(cs.Changed)+len(cs.Deleted)+len(cs.Added))

	for _, m := range cs.Changed {
		if m.ID == nil {
			ops = append(ops, Op{
				ID:   cloneInt64(m.MID),
				MID:  cloneInt64(m.MID),
				Name: cloneString(m.Name),
				SQL:  cloneString(m.SQL),
			})
			continue
		}
		base, ok := findMacro(baseline, *m.ID)
		if !ok {
			return nil, fmt.Errorf("%w: id %d", ErrUnknownMacro, *m.ID)
		}
		ops = append(ops, backfill(base, m))
	}

	for _, m := range cs.Deleted {
		ops = append(ops, Op{ID: cloneInt64(m.ID), Tombstone: true})
	}

	for _, m := range cs.Added {
		op := Op{
			ID:   cloneInt64(m.ID),
			MID:  cloneInt64(m.MID),
			Name: cloneString(m.Name),
			SQL:  cloneString(m.SQL),
		}
		if op.ID != nil && *op.ID != 0 {
			op.MID = op.ID
			op.ID = nil
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func backfill(base Macro, m Row) Op {
	op := Op{
		ID:   int64p(base.ID),
		MID:  cloneInt64(base.MID),
		Name: stringp(base.Name),
		SQL:  stringp(base.SQL),
	}
	if m.Name != nil && *m.Name != "" {
		op.Name = stringp(*m.Name)
	}
	if m.SQL != nil && *m.SQL != "" {
		op.SQL = stringp(*m.SQL)
	}
	if m.MID != nil && *m.MID != 0 {
		op.MID = int64p(*m.MID)
	}
	return op
}

func findMacro(baseline []Macro, id int64) (Macro, bool) {
	for _, b := range baseline {
		if b.ID == id {
			return b, true
		}
	}
	return Macro{}, false
}

// Working returns the rows the editor shows once cs is applied to baseline:
// surviving baseline macros with their edits, then rows created in the
// session, then added rows keyed the way Reconcile will send them.
func Working(baseline []Macro, cs Changeset) []Row {
	deleted := make(map[int64]bool, len(cs.Deleted))
	for _, m := range cs.Deleted {
		if m.ID != nil {
			deleted[*m.ID] = true
		}
	}
	edits := make(map[int64]Row, len(cs.Changed))
	var created []Row
	for _, m := range cs.Changed {
		if m.ID == nil {
			created = append(created, m)
			continue
		}
		edits[*m.ID] = m
	}

	rows := make([]Row, 0, len(baseline)+len(created)+len(cs.Added))
	for _, b := range baseline {
		if deleted[b.ID] {
			continue
		}
		row := Row{
			ID:   int64p(b.ID),
			MID:  cloneInt64(b.MID),
			Name: stringp(b.Name),
			SQL:  stringp(b.SQL),
		}
		if edit, ok := edits[b.ID]; ok {
			if edit.MID != nil {
				row.MID = cloneInt64(edit.MID)
			}
			if edit.Name != nil {
				row.Name = cloneString(edit.Name)
			}
			if edit.SQL != nil {
				row.SQL = cloneString(edit.SQL)
			}
		}
		rows = append(rows, row)
	}
	rows = append(rows, created...)
	for _, m := range cs.Added {
		row := Row{MID: cloneInt64(m.MID), Name: cloneString(m.Name), SQL: cloneString(m.SQL)}
		if m.ID != nil && *m.ID != 0 {
			row.MID = int64p(*m.ID)
		}
		rows = append(rows, row)
	}
	return rows
}
