// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package claims

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidState       = errors.New("listing is not in the expected state")
	ErrPreconditionFailed = errors.New("recipient has no phone number on file")
	ErrExpired            = errors.New("confirmation window elapsed")
	ErrCodeMismatch       = errors.New("confirmation code does not match")
	ErrForbidden          = errors.New("claim belongs to another recipient")
	ErrTooManyAttempts    = errors.New("too many wrong confirmation codes")

	// ErrEntryExists is returned by Registry.Insert while an unexpired entry
	// is held for the listing.
	ErrEntryExists = errors.New("pending confirmation already exists")
)
