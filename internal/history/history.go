// Package history holds an ordered, observable append-only log.
package history

// Log is an append-only list of entries with a single change listener.
//
// A Log has one owner. It does no locking; callers that share a Log across
// goroutines must serialize access themselves.
type Log[T any] struct {
	entries  []T
	listener func([]T)
}

// New returns a Log holding a copy of initial. A nil slice yields an empty log.
func New[T any](initial []T) *Log[T] {
	entries := make([]T, len(initial))
	copy(entries, initial)
	return &Log[T]{entries: entries}
}

// Add appends entry and notifies the listener with the full entry list.
func (l *Log[T]) Add(entry T) {
	l.entries = append(l.entries, entry)
	l.notify()
}

// Reset drops every entry and notifies the listener with an empty list.
func (l *Log[T]) Reset() {
	l.entries = make([]T, 0)
	l.notify()
}

func (l *Log[T]) Len() int {
	return len(l.entries)
}

// Entries returns a copy of the entries in insertion order.
func (l *Log[T]) Entries() []T {
	out := make([]T, len(l.entries))
	copy(out, l.entries)
	return out
}

// OnChange registers fn as the only listener, replacing any earlier one.
// Passing nil removes the listener.
func (l *Log[T]) OnChange(fn func([]T)) {
	l.listener = fn
}

func (l *Log[T]) notify() {
	if l.listener == nil {
		return
	}
	l.listener(l.Entries())
}
