package handlers

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/meridianchat/presenced/internal/errors"
	"github.com/meridianchat/presenced/internal/logging"
)

// errorBody is the JSON error envelope returned to clients.
type errorBody struct {
	ErrCode string `json:"errcode"`
	Error   string `json:"error"`
}

// writeError maps an error to an HTTP status and a machine-readable body.
// Internal failures get a generic message so storage detail never leaks.
func writeError(w http.ResponseWriter, err error) {
	code := apperrors.Code(err)

	var status int
	message := err.Error()

	switch code {
	case apperrors.ErrUnknownToken:
		status = http.StatusUnauthorized
	case apperrors.ErrForbidden:
		status = http.StatusForbidden
	case apperrors.ErrNotFound:
		status = http.StatusNotFound
	case apperrors.ErrInvalid:
		status = http.StatusBadRequest
	case apperrors.ErrUnknownUsers:
		status = http.StatusUnprocessableEntity
	case apperrors.ErrConflict:
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
		message = "internal server error"
		logging.Error("request failed", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{
		ErrCode: string(code),
		Error:   message,
	})
}

// writeJSON writes a 200 response with a JSON body.
func writeJSON(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}
