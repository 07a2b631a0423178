// Package httputil translates domain errors and payloads to HTTP responses.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "portrait/pkg/domain-errors"
)

type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// statusOf maps a domain error code to an HTTP status.
func statusOf(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest,
		dErrors.CodeInvalidAddress,
		dErrors.CodeInvalidArrayLength:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized,
		dErrors.CodeInvalidSignature,
		dErrors.CodeExpiredSignature:
		return http.StatusUnauthorized
	case dErrors.CodeControlledRegistration:
		return http.StatusForbidden
	case dErrors.CodeNotFound,
		dErrors.CodeNonExistentPortraitID:
		return http.StatusNotFound
	case dErrors.CodeInvalidAction,
		dErrors.CodeInvalidPlan,
		dErrors.CodeNoTeamRole,
		dErrors.CodeAsNFT,
		dErrors.CodeDuplicateState,
		dErrors.CodeDuplicateReservation,
		dErrors.CodeMaxDelegatesReached:
		return http.StatusConflict
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders a domain error as a JSON response. Internal errors omit
// the description so infrastructure details never leak to clients.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := errorBody{Error: string(code)}
	if code != dErrors.CodeInternal {
		var domainErr *dErrors.Error
		if errors.As(err, &domainErr) {
			body.Description = domainErr.Message
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusOf(code))
	_ = json.NewEncoder(w).Encode(body)
}

// WriteJSON renders payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
