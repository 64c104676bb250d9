package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"querytool-macros/server/internal/auth"
	"querytool-macros/server/internal/log"
	"querytool-macros/server/internal/macros"
	"querytool-macros/server/internal/metrics"
	"querytool-macros/server/internal/storage"
)

type jsonResponse map[string]any

type errorResponse struct {
	Error string `json:"error"`
}

type Server struct {
	store    storage.Store
	validate *validator.Validate

	mu        sync.Mutex
	histories map[string]*historySession
}

func NewServer(store storage.Store) *Server {
	return &Server{
		store:     store,
		validate:  validator.New(),
		histories: make(map[string]*historySession),
	}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/macros", auth.RequireUser(http.HandlerFunc(s.handleMacros)))
	mux.Handle("/macros/keys", auth.RequireUser(http.HandlerFunc(s.handleKeys)))
	mux.Handle("/macros/save", auth.RequireUser(http.HandlerFunc(s.handleSave)))
	mux.Handle("/history", auth.RequireUser(http.HandlerFunc(s.handleHistory)))
	mux.HandleFunc("/healthz", handleHealthz)
	mux.Handle("/metrics", metrics.Handler())
}

// Public reports the paths served without authentication.
func Public(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/metrics":
		return true
	}
	return false
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// LogRequests tags each request with an X-Request-ID and logs its outcome.
func LogRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()
		next.ServeHTTP(recorder, r)
		log.WithFields(log.Fields{
			"request_id": requestID,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     recorder.status,
			"duration":   time.Since(started).Round(time.Microsecond),
		}).Debug("request")
	})
}

// userID is only called behind auth.RequireUser.
func userID(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	var violation *storage.ViolationError
	switch {
	case errors.As(err, &violation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, macros.ErrUnknownMacro), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrUnknownKey), errors.Is(err, storage.ErrNoFreeKey):
		return http.StatusConflict
	case errors.Is(err, storage.ErrIncomplete):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(payload); err != nil {
		log.WithError(err).Warn("write response")
	}
}
