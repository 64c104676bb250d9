package macros

import (
	"fmt"
	"strings"
)

// Violation is the reason a working set cannot be saved.
type Violation int

const (
	NoViolation Violation = iota
	DuplicateKey
	DuplicateName
)

// Message is the text shown to the user for v.
func (v Violation) Message() string {
	switch v {
	case NoViolation:
		return ""
	case DuplicateKey:
		return "Key must be unique."
	case DuplicateName:
		return "Name must be unique."
	default:
		return fmt.Sprintf("Violation(%d)", int(v))
	}
}

func (v Violation) String() string {
	switch v {
	case NoViolation:
		return "none"
	case DuplicateKey:
		return "duplicate_key"
	case DuplicateName:
		return "duplicate_name"
	default:
		return fmt.Sprintf("Violation(%d)", int(v))
	}
}

// Validate checks that no two rows share a key and no two rows share a name,
// ignoring case. Rows without a key are not compared by key. Rows without a
// name count as sharing the same empty name. Duplicate keys win when both
// checks fail.
func Validate(rows []Row) Violation {
	keys := make(map[int64]struct{}, len(rows))
	for _, r := range rows {
		if r.MID == nil || *r.MID == 0 {
			continue
		}
		if _, seen := keys[*r.MID]; seen {
			return DuplicateKey
		}
		keys[*r.MID] = struct{}{}
	}

	names := make(map[string]struct{}, len(rows))
	unnamed := false
	for _, r := range rows {
		if r.Name == nil || *r.Name == "" {
			if unnamed {
				return DuplicateName
			}
			unnamed = true
			continue
		}
		name := strings.ToLower(*r.Name)
		if _, seen := names[name]; seen {
			return DuplicateName
		}
		names[name] = struct{}{}
	}
	return NoViolation
}

// Rows converts stored macros into editor rows.
func Rows(list []Macro) []Row {
	rows := make([]Row, 0, len(list))
	for _, m := range list {
		rows = append(rows, Row{
			ID:   int64p(m.ID),
			MID:  cloneInt64(m.MID),
			Name: stringp(m.Name),
			SQL:  stringp(m.SQL),
		})
	}
	return rows
}
