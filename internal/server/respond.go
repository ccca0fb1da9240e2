package server

import (
	"errors"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/SayWess/Musicarr/internal/shared"
)

// respondJSON writes v as a JSON response with the given status code
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respondError maps the domain's sentinel errors onto HTTP status codes
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, shared.ErrNotFound),
		errors.Is(err, shared.ErrPlaylistNotFound),
		errors.Is(err, shared.ErrVideoNotFound),
		errors.Is(err, shared.ErrUploaderNotFound),
		errors.Is(err, shared.ErrMembershipNotFound):
		status = http.StatusNotFound
	case errors.Is(err, shared.ErrAlreadyExists),
		errors.Is(err, shared.ErrAlreadyInProgress):
		status = http.StatusConflict
	case errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrUnknownField),
		errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrInvalidPath):
		status = http.StatusBadRequest
	case errors.Is(err, shared.ErrVideoUnavailable),
		errors.Is(err, shared.ErrNoRootFolder):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, shared.ErrUpstreamFetch),
		errors.Is(err, shared.ErrMissingAPIKey):
		status = http.StatusBadGateway
	}

	respondJSON(w, status, map[string]string{"error": err.Error()})
}

// decodeBody decodes a JSON request body into v
func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return shared.ErrInvalidInput
	}
	return nil
}
