// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrCampaignNotFound is returned when no campaign matches the given ID
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// AppError carries the HTTP status code the API answers with.
type AppError struct {
	Code    int
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

func NewValidation(format string, args ...any) error {
	return &AppError{Code: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

func NewUnauthorized(msg string) error {
	return &AppError{Code: http.StatusUnauthorized, Message: msg}
}

func NewForbidden(msg string) error {
	return &AppError{Code: http.StatusForbidden, Message: msg}
}

func NewNotFound(format string, args ...any) error {
	return &AppError{Code: http.StatusNotFound, Message: fmt.Sprintf(format, args...)}
}

func NewConflict(format string, args ...any) error {
	return &AppError{Code: http.StatusConflict, Message: fmt.Sprintf(format, args...)}
}

// StatusCode maps err to the HTTP status the API should answer with.
func StatusCode(err error) int {
	var nf *ErrCampaignNotFound
	if errors.As(err, &nf) {
		return http.StatusNotFound
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return http.StatusInternalServerError
}

// IsNotFound reports whether err maps to a 404.
func IsNotFound(err error) bool {
	return err != nil && StatusCode(err) == http.StatusNotFound
}
