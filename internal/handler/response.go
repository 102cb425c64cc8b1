// Package handler holds the HTTP plumbing shared by the controllers:
// the JSON envelope, request logging and the health endpoint.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/unclebandit/squdy-backend/internal/errors"
)

type errorBody struct {
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

// WriteJSON encodes v with the given status
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError answers with {"error":{"message","statusCode"}}. Internal errors
// are not echoed to the client.
func WriteError(w http.ResponseWriter, err error) {
	status := appErrors.StatusCode(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "Internal server error"
	}
	WriteJSON(w, status, map[string]interface{}{
		"error": errorBody{Message: msg, StatusCode: status},
	})
}

// MaxBodyBytes bounds every JSON request body
const MaxBodyBytes = 1 << 20

// DecodeJSON reads at most MaxBodyBytes of the request body into v
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &appErrors.AppError{Code: http.StatusRequestEntityTooLarge, Message: "Request body too large"}
		}
		return appErrors.NewValidation("invalid request body: %v", err)
	}
	return nil
}

// CampaignID parses the {id} route parameter
func CampaignID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		return 0, appErrors.NewValidation("invalid campaign id")
	}
	return id, nil
}
