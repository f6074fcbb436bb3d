// Copyright (c) 2015-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package headerchain

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a kind of header chain error.
type ErrorCode int

// These constants are used to identify a specific HeaderError.
const (
	// ErrDatabase indicates an error with the underlying header store.
	// When this error code is set, the Err field of the HeaderError will
	// be set to the underlying error returned from the store.
	ErrDatabase ErrorCode = iota

	// ErrMissingHeader indicates a header needed for linkage or for the
	// retarget window is not known.
	ErrMissingHeader

	// ErrHashMismatch indicates a header whose hash differs from the one
	// already stored at its height.
	ErrHashMismatch

	// ErrPrevHashMismatch indicates a header that does not link to the
	// header below it.
	ErrPrevHashMismatch

	// ErrBadGenesis indicates a header at height zero that is not the
	// network genesis block.
	ErrBadGenesis

	// ErrBitsMismatch indicates a header whose difficulty bits differ from
	// the retarget result.
	ErrBitsMismatch

	// ErrInsufficientWork indicates a header whose hash is above its
	// target.
	ErrInsufficientWork

	// ErrInvalidBits indicates compact difficulty bits outside the range
	// the network accepts.
	ErrInvalidBits

	// ErrBadHeight indicates a header or chunk placed at a height that
	// cannot follow the local chain.
	ErrBadHeight

	// ErrBadChunk indicates a chunk whose length is not a multiple of the
	// header size.
	ErrBadChunk
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrDatabase:         "ErrDatabase",
	ErrMissingHeader:    "ErrMissingHeader",
	ErrHashMismatch:     "ErrHashMismatch",
	ErrPrevHashMismatch: "ErrPrevHashMismatch",
	ErrBadGenesis:       "ErrBadGenesis",
	ErrBitsMismatch:     "ErrBitsMismatch",
	ErrInsufficientWork: "ErrInsufficientWork",
	ErrInvalidBits:      "ErrInvalidBits",
	ErrBadHeight:        "ErrBadHeight",
	ErrBadChunk:         "ErrBadChunk",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// HeaderError provides a single type for errors that can happen while
// validating or storing headers.
type HeaderError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error
}

// Error satisfies the error interface and prints human-readable errors.
func (e HeaderError) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// Unwrap returns the underlying error, if any.
func (e HeaderError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a HeaderError carrying the same code.
func (e HeaderError) Is(target error) bool {
	var t HeaderError
	if !errors.As(target, &t) {
		return false
	}
	return t.ErrorCode == e.ErrorCode
}

// headerError creates a HeaderError given a set of arguments.
func headerError(c ErrorCode, desc string, err error) HeaderError {
	return HeaderError{ErrorCode: c, Description: desc, Err: err}
}

// IsErrorCode returns whether err is a HeaderError with the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	var e HeaderError
	return errors.As(err, &e) && e.ErrorCode == code
}
