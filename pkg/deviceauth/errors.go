package deviceauth

import (
	"errors"
	"fmt"
)

// FlowError is a terminal error reported by the authorization server.
type FlowError struct {
	Code        string
	Description string
}

func (e *FlowError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("device authorization failed: %s", e.Code)
	}
	return fmt.Sprintf("device authorization failed: %s: %s", e.Code, e.Description)
}

// Is matches FlowErrors by code so sentinel comparisons ignore the description.
func (e *FlowError) Is(target error) bool {
	var other *FlowError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

var (
	// ErrAccessDenied is returned when the user rejects the request.
	ErrAccessDenied = &FlowError{Code: "access_denied", Description: "the authorization request was denied"}
	// ErrExpiredToken is returned when the device code expires before approval.
	ErrExpiredToken = &FlowError{Code: "expired_token", Description: "the device code has expired, run login again"}
)

// NetworkError wraps a transport failure talking to the authorization server.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
