// Copyright (c) 2015-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txcodec

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a kind of decoding error.
type ErrorCode int

// These constants are used to identify a specific SerializationError.
const (
	// ErrShortRead indicates the input ended in the middle of a field.
	ErrShortRead ErrorCode = iota

	// ErrExtraJunk indicates bytes were left over after the lock time or
	// the extra payload.
	ErrExtraJunk

	// ErrUnknownPartialFormat indicates a partial transaction whose format
	// version byte is not understood.
	ErrUnknownPartialFormat

	// ErrInvalidOutputValue indicates an output value that is negative or
	// above the total coin supply.
	ErrInvalidOutputValue

	// ErrOversizedField indicates a compact size count or length larger
	// than the remaining input could ever satisfy.
	ErrOversizedField

	// ErrPayloadMismatch indicates a special transaction payload whose
	// decoded fields do not consume exactly the declared payload size.
	ErrPayloadMismatch
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrShortRead:            "ErrShortRead",
	ErrExtraJunk:            "ErrExtraJunk",
	ErrUnknownPartialFormat: "ErrUnknownPartialFormat",
	ErrInvalidOutputValue:   "ErrInvalidOutputValue",
	ErrOversizedField:       "ErrOversizedField",
	ErrPayloadMismatch:      "ErrPayloadMismatch",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// SerializationError describes a transaction that could not be decoded.
type SerializationError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error
}

// Error satisfies the error interface and prints human-readable errors.
func (e SerializationError) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// Unwrap returns the underlying error, if any.
func (e SerializationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a SerializationError carrying the same code.
// This lets callers match on the exported code sentinels below.
func (e SerializationError) Is(target error) bool {
	var t SerializationError
	if !errors.As(target, &t) {
		return false
	}
	return t.ErrorCode == e.ErrorCode
}

// serError creates a SerializationError given a set of arguments.
func serError(c ErrorCode, desc string, err error) SerializationError {
	return SerializationError{ErrorCode: c, Description: desc, Err: err}
}

// Code sentinels usable with errors.Is.
var (
	ErrExtraJunkAtEnd = SerializationError{
		ErrorCode: ErrExtraJunk, Description: "extra junk at the end",
	}
	ErrPartialFormat = SerializationError{
		ErrorCode:   ErrUnknownPartialFormat,
		Description: "unknown tx partial serialization format",
	}
	ErrOutputValue = SerializationError{
		ErrorCode:   ErrInvalidOutputValue,
		Description: "invalid output amount",
	}
)

var (
	// ErrIncomplete is returned when an operation needs every input to be
	// fully signed.
	ErrIncomplete = errors.New("transaction is not complete")

	// ErrMaxValueOutput is returned when serializing a transaction that
	// still carries an output with the spend-maximum sentinel value.
	ErrMaxValueOutput = errors.New("output value not finalized")

	// ErrSignatureCount is returned by UpdateSignatures when the number of
	// signatures does not match the number of inputs.
	ErrSignatureCount = errors.New("signature count does not match " +
		"input count")

	// ErrNotLegacy is returned when a legacy-only export is attempted on a
	// special transaction.
	ErrNotLegacy = errors.New("special transactions cannot be exported")
)
