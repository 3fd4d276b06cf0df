// Package httputil provides HTTP handler utilities for consistent JSON
// responses and for presenting link resolution errors with their
// remediation metadata.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/turner-mzeller/GitHubPortal/pkg/observability"
	"github.com/turner-mzeller/GitHubPortal/pkg/usercontext"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// ErrorResponse is the error envelope returned to the presentation
// layer, carrying the machine-checkable flags and any remediation
// action alongside the message.
type ErrorResponse struct {
	Error        string                 `json:"error"`
	Detailed     string                 `json:"detailed,omitempty"`
	TooManyLinks bool                   `json:"tooManyLinks,omitempty"`
	AnotherAccount bool                 `json:"anotherAccount,omitempty"`
	LinkCount    int                    `json:"linkCount,omitempty"`
	FancyLink    *usercontext.FancyLink `json:"fancyLink,omitempty"`
}

// WriteResolutionError presents a link resolution failure. Expected
// user-driven conditions are not logged; everything else is.
func WriteResolutionError(ctx context.Context, w http.ResponseWriter, err error) {
	log := observability.FromContext(ctx)

	var tooMany *usercontext.TooManyLinksError
	if errors.As(err, &tooMany) {
		log.WithError(err).Warn("account has multiple linked accounts")
		WriteJSON(w, http.StatusConflict, ErrorResponse{
			Error:        err.Error(),
			TooManyLinks: true,
			LinkCount:    len(tooMany.Links),
		})
		return
	}

	var conflict *usercontext.ConflictingIdentityError
	if errors.As(err, &conflict) {
		if !conflict.SkipLog {
			log.WithError(err).Warn("conflicting platform identity")
		}
		remediation := conflict.Remediation
		WriteJSON(w, http.StatusConflict, ErrorResponse{
			Error:          err.Error(),
			Detailed:       conflict.Detailed(),
			AnotherAccount: true,
			FancyLink:      &remediation,
		})
		return
	}

	switch {
	case errors.Is(err, usercontext.ErrInvalidInput), errors.Is(err, usercontext.ErrNotInitialized):
		log.WithError(err).Error("user context could not be constructed")
		WriteErrorMessage(w, http.StatusBadRequest, err.Error())
	case usercontext.IsLogicError(err):
		log.WithError(err).Error("user context resolution invariant violated")
		WriteErrorMessage(w, http.StatusInternalServerError, err.Error())
	default:
		log.WithError(err).Error("user context resolution failed")
		WriteErrorMessage(w, http.StatusInternalServerError, err.Error())
	}
}
