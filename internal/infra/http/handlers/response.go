package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/xavierca1/eva-followup/internal/usecase"
)

type ErrorResponse struct {
	Status  string               `json:"status"`
	Message string               `json:"message"`
	Errors  []usecase.FieldError `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Status: "error", Message: message})
}
