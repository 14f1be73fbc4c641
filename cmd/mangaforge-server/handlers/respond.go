// Package handlers provides HTTP handlers for the mangaforge API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mangaforge/mangaforge/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message, detail string) {
	resp := map[string]string{
		"error":   message,
		"message": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps a domain error to its HTTP status.
func writeDomainError(w http.ResponseWriter, err error) {
	var derr *domain.DomainError
	if !errors.As(err, &derr) {
		writeError(w, http.StatusInternalServerError, "internal error", err.Error())
		return
	}

	status := http.StatusInternalServerError
	switch derr.Type {
	case domain.ErrorTypeValidation:
		status = http.StatusBadRequest
	case domain.ErrorTypeNotFound:
		status = http.StatusNotFound
	case domain.ErrorTypeDecode:
		status = http.StatusUnprocessableEntity
	case domain.ErrorTypeAdapter:
		status = http.StatusBadGateway
	}
	writeError(w, status, derr.Message, detailOf(derr))
}

func detailOf(derr *domain.DomainError) string {
	if derr.Err != nil {
		return derr.Err.Error()
	}
	return ""
}
