// Package dErrors provides code-carrying domain errors. Every precondition
// violation in the registries maps to exactly one code; callers branch on
// codes, never on message text.
package dErrors

import (
	"errors"
	"fmt"
)

// Code names a failure class. Codes are stable identifiers surfaced to
// transports and event consumers.
type Code string

const (
	// Authorization
	CodeUnauthorized Code = "unauthorized"

	// Signature
	CodeInvalidSignature Code = "invalid_signature"
	CodeExpiredSignature Code = "expired_signature"

	// Capacity
	CodeMaxDelegatesReached Code = "max_delegates_reached"

	// State conflict
	CodeInvalidAction          Code = "invalid_action"
	CodeInvalidPlan            Code = "invalid_plan"
	CodeNoTeamRole             Code = "no_team_role"
	CodeAsNFT                  Code = "as_nft"
	CodeDuplicateState         Code = "duplicate_state"
	CodeDuplicateReservation   Code = "duplicate_reservation"
	CodeControlledRegistration Code = "controlled_registration_period"

	// Input
	CodeInvalidAddress        Code = "invalid_address"
	CodeInvalidArrayLength    Code = "invalid_array_length"
	CodeNonExistentPortraitID Code = "non_existent_portrait_id"

	// Transport / infrastructure
	CodeBadRequest Code = "bad_request"
	CodeNotFound   Code = "not_found"
	CodeTimeout    Code = "timeout"
	CodeInternal   Code = "internal"
)

// Error is a domain error with a machine-readable code and optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a domain error with the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates an underlying error with a domain code and message.
// A nil err returns nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	for errors.As(err, &domainErr) {
		if domainErr.Code == code {
			return true
		}
		err = domainErr.Err
		domainErr = nil
	}
	return false
}

// CodeOf extracts the outermost domain code, or CodeInternal when err is not
// a domain error.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}
