package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ValidationError reports malformed input with a field-level reason.
// Never retried automatically.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ForbiddenError reports an authorization failure. UserIDs names the
// offending identities when the failure is about ineligible recipients.
type ForbiddenError struct {
	Reason  string
	UserIDs []int
}

func (e *ForbiddenError) Error() string {
	if len(e.UserIDs) == 0 {
		return e.Reason
	}
	ids := make([]string, 0, len(e.UserIDs))
	for _, id := range e.UserIDs {
		ids = append(ids, strconv.Itoa(id))
	}
	return fmt.Sprintf("%s: %s", e.Reason, strings.Join(ids, ", "))
}

// NotFoundError covers both "does not exist" and "exists but not
// visible to the caller"; the two are deliberately not distinguished.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

// StoreError wraps a durable-store failure. Core mutations are
// idempotent, so callers may retry.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
