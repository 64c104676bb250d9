package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"querytool-macros/server/internal/history"
	"querytool-macros/server/internal/log"
	"querytool-macros/server/internal/metrics"
	"querytool-macros/server/internal/storage"
)

// historySession is one user's query history. mu guards log and snapshot;
// snapshot is refreshed by the log's change listener.
type historySession struct {
	mu       sync.Mutex
	log      *history.Log[storage.HistoryEntry]
	snapshot []storage.HistoryEntry
}

func newHistorySession(user string, entries []storage.HistoryEntry) *historySession {
	session := &historySession{
		log:      history.New(entries),
		snapshot: entries,
	}
	metrics.HistoryEntries.Add(float64(len(entries)))
	session.log.OnChange(func(entries []storage.HistoryEntry) {
		operation := "add"
		if len(entries) == 0 {
			operation = "reset"
		}
		metrics.HistoryEntries.Add(float64(len(entries) - len(session.snapshot)))
		session.snapshot = entries
		metrics.HistoryChanges.WithLabelValues(operation).Inc()
		log.Debugf("history %s user=%s entries=%d", operation, user, len(entries))
	})
	return session
}

// historyFor returns the user's session, loading it from the store on first use.
func (s *Server) historyFor(ctx context.Context, user string) (*historySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.histories[user]; ok {
		return session, nil
	}
	entries, err := s.store.ListHistory(ctx, user)
	if err != nil {
		return nil, err
	}
	session := newHistorySession(user, entries)
	s.histories[user] = session
	return session, nil
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	session, err := s.historyFor(r.Context(), user)
	if err != nil {
		log.WithFields(log.Fields{"user": user}).WithError(err).Error("load history")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	switch r.Method {
	case http.MethodGet:
		session.mu.Lock()
		entries, count := session.snapshot, session.log.Len()
		session.mu.Unlock()
		writeJSON(w, http.StatusOK, jsonResponse{"history": entries, "count": count})
	case http.MethodPost:
		s.addHistory(w, r, user, session)
	case http.MethodDelete:
		s.resetHistory(w, r, user, session)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) addHistory(w http.ResponseWriter, r *http.Request, user string, session *historySession) {
	var entry storage.HistoryEntry
	if err := decodeJSON(r, &entry); err != nil {
		log.Debugf("history add decode error: %v", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.validate.Struct(entry); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	entry.ID = uuid.NewString()
	if entry.Status == "" {
		entry.Status = "success"
	}
	if entry.ExecutedAt.IsZero() {
		entry.ExecutedAt = time.Now().UTC()
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	if err := s.store.AppendHistory(r.Context(), user, entry); err != nil {
		log.WithFields(log.Fields{"user": user}).WithError(err).Error("append history")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	session.log.Add(entry)
	writeJSON(w, http.StatusCreated, jsonResponse{"entry": entry, "count": session.log.Len()})
}

func (s *Server) resetHistory(w http.ResponseWriter, r *http.Request, user string, session *historySession) {
	session.mu.Lock()
	defer session.mu.Unlock()
	if err := s.store.ClearHistory(r.Context(), user); err != nil {
		log.WithFields(log.Fields{"user": user}).WithError(err).Error("clear history")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	session.log.Reset()
	writeJSON(w, http.StatusOK, jsonResponse{"count": session.log.Len()})
}
