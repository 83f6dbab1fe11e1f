package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/streamify/internal/apperr"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Success       bool     `json:"success"`
	Message       string   `json:"message"`
	MissingFields []string `json:"missingFields,omitempty"`
}

type userResponse struct {
	Success bool `json:"success"`
	User    any  `json:"user"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status and writes {success:false, message}.
// Unclassified errors are logged and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, logger *logrus.Logger, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind == apperr.Internal {
		logger.WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path}).Errorf("internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "Internal Server Error"})
		return
	}
	resp := errorResponse{Message: ae.Message}
	if ae.Kind == apperr.Validation {
		resp.MissingFields = ae.Fields
	}
	writeJSON(w, ae.Kind.Status(), resp)
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Wrap(apperr.Validation, "Invalid request body", err)
	}
	return nil
}
