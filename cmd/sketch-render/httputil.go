package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fpang/sketch-render/internal/filehandler"
	"github.com/fpang/sketch-render/internal/session"
)

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func httpError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps session and input errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, session.ErrInvalidInput), errors.Is(err, filehandler.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, filehandler.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
