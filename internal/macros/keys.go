package macros

import (
	"fmt"
	"strings"
)

// Key is a keyboard shortcut a macro can be bound to.
type Key struct {
	ID    int64  `json:"id"`
	Label string `json:"key_label"`
}

var keys = buildKeys()

// buildKeys lays out Alt+Shift+F1..F12 as ids 1-12 and Ctrl+Shift+1..0 as
// ids 13-22.
func buildKeys() []Key {
	out := make([]Key, 0, 22)
	for i := 1; i <= 12; i++ {
		out = append(out, Key{ID: int64(i), Label: fmt.Sprintf("Alt + Shift + F%d", i)})
	}
	for i := 1; i <= 10; i++ {
		out = append(out, Key{ID: int64(12 + i), Label: fmt.Sprintf("Ctrl + Shift + %d", i%10)})
	}
	return out
}

// Keys returns the shortcut catalogue in id order.
func Keys() []Key {
	out := make([]Key, len(keys))
	copy(out, keys)
	return out
}

func KnownKey(id int64) bool {
	return id >= 1 && id <= int64(len(keys))
}

const defaultName = "New Macro"

// NewName returns a name for a freshly added row that differs, ignoring case,
// from every name in existing.
func NewName(existing []string) string {
	taken := make(map[string]struct{}, len(existing))
	for _, name := range existing {
		taken[strings.ToLower(name)] = struct{}{}
	}
	candidate := defaultName
	for n := 2; ; n++ {
		if _, ok := taken[strings.ToLower(candidate)]; !ok {
			return candidate
		}
		candidate = fmt.Sprintf("%s %d", defaultName, n)
	}
}
