// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backend

import (
	"errors"
	"fmt"
)

// ErrMissingCapability marks a 404 from the files endpoint: the backend
// does not expose file listing for this index. Unlike transient errors
// it is permanent for the index session, and callers stop automatic
// refreshing when they see it.
var ErrMissingCapability = errors.New("files endpoint not available for this index")

// StatusError is a non-2xx response from the service.
type StatusError struct {
	// Code is the HTTP status code.
	Code int

	// Detail is the service's error message, when the body carried one.
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("service returned HTTP %d: %s", e.Code, e.Detail)
	}
	return fmt.Sprintf("service returned HTTP %d", e.Code)
}

// IsStatus reports whether err wraps a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
