package httpapi

import (
	"errors"
	"net/http"

	"querytool-macros/server/internal/log"
	"querytool-macros/server/internal/macros"
	"querytool-macros/server/internal/metrics"
	"querytool-macros/server/internal/storage"
)

func (s *Server) handleMacros(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listMacros(w, r)
	case http.MethodPut:
		s.putMacros(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) listMacros(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListMacros(r.Context(), userID(r))
	if err != nil {
		log.WithFields(log.Fields{"user": userID(r)}).WithError(err).Error("list macros")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"macro": named(list)})
}

// putMacros applies an already reconciled op list.
func (s *Server) putMacros(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Changed []macros.Op `json:"changed"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		log.Debugf("macros put decode error: %v", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.apply(w, r, payload.Changed)
}

// handleSave runs the editor's save: uniqueness gate, reconcile against the
// stored collection, apply.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var payload struct {
		Rows    []macros.Row     `json:"rows" validate:"dive"`
		Changes macros.Changeset `json:"changes"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		log.Debugf("macros save decode error: %v", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.validate.Struct(payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	user := userID(r)
	baseline, err := s.store.ListMacros(r.Context(), user)
	if err != nil {
		log.WithFields(log.Fields{"user": user}).WithError(err).Error("load macros baseline")
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	rows := payload.Rows
	if rows == nil {
		rows = macros.Working(baseline, payload.Changes)
	}
	if v := macros.Validate(rows); v != macros.NoViolation {
		writeViolation(w, v)
		return
	}

	ops, err := macros.Reconcile(baseline, payload.Changes)
	if err != nil {
		log.WithFields(log.Fields{"user": user}).WithError(err).Warn("reconcile macros")
		writeError(w, statusFor(err), err)
		return
	}
	s.apply(w, r, ops)
}

func (s *Server) apply(w http.ResponseWriter, r *http.Request, ops []macros.Op) {
	user := userID(r)
	list, err := s.store.ApplyMacroOps(r.Context(), user, ops)
	var violation *storage.ViolationError
	if errors.As(err, &violation) {
		writeViolation(w, violation.Violation)
		return
	}
	if err != nil {
		status := statusFor(err)
		entry := log.WithFields(log.Fields{"user": user, "ops": len(ops)}).WithError(err)
		if status == http.StatusInternalServerError {
			entry.Error("apply macro ops")
		} else {
			entry.Warn("apply macro ops rejected")
		}
		writeError(w, status, err)
		return
	}
	for _, op := range ops {
		metrics.MacroOps.WithLabelValues(op.Kind().String()).Inc()
	}
	log.WithFields(log.Fields{"user": user, "ops": len(ops), "macros": len(list)}).Info("macros saved")
	writeJSON(w, http.StatusOK, jsonResponse{"macro": named(list)})
}

func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	list, err := s.store.ListMacros(r.Context(), userID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	names := make([]string, 0, len(list))
	for _, m := range list {
		names = append(names, m.Name)
	}
	writeJSON(w, http.StatusOK, jsonResponse{
		"keys":    macros.Keys(),
		"newName": macros.NewName(names),
	})
}

func writeViolation(w http.ResponseWriter, v macros.Violation) {
	metrics.SaveRejections.WithLabelValues(v.String()).Inc()
	writeJSON(w, http.StatusUnprocessableEntity, jsonResponse{
		"error":     v.Message(),
		"violation": v.String(),
	})
}

// named drops macros without a name, which the editor never shows.
func named(list []macros.Macro) []macros.Macro {
	out := make([]macros.Macro, 0, len(list))
	for _, m := range list {
		if m.Name != "" {
			out = append(out, m)
		}
	}
	return out
}
