// Package repository holds the MongoDB-backed stores.  Sentinel values here
// let higher layers such as services and handlers distinguish failure modes
// without depending on the driver.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no document.  Handlers
// translate it into 404 or 400 depending on the endpoint.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a conditional update lost against a
// concurrent writer, e.g. a verification token redeemed twice at once.
var ErrConflict = errors.New("conflict")
