// Copyright (c) 2015-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific Error.
const (
	// ErrDatabase indicates an error with the underlying store.  When
	// this error code is set, the Err field of the Error will be set to
	// the underlying error returned from the store.
	ErrDatabase ErrorCode = iota

	// ErrData describes an error where data stored in the ledger is
	// incorrect.  This may be due to missing values, values of wrong
	// sizes, or data from different buckets that is inconsistent with
	// itself.
	ErrData

	// ErrInvariant indicates that the indexes of the ledger no longer
	// agree with each other, for example a spent outpoint that refers to
	// a transaction the ledger does not have.  Errors with this code are
	// raised with panic.
	ErrInvariant

	// ErrIncompleteTx indicates an attempt to add a transaction that
	// still misses signatures.
	ErrIncompleteTx

	// ErrNotWatched indicates a request about an address the ledger
	// does not track.
	ErrNotWatched

	// ErrVerifiedConflict indicates an attempt to verify a transaction
	// at a different block than the one it is already verified in.  The
	// old verification has to be undone first.
	ErrVerifiedConflict
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrDatabase:         "ErrDatabase",
	ErrData:             "ErrData",
	ErrInvariant:        "ErrInvariant",
	ErrIncompleteTx:     "ErrIncompleteTx",
	ErrNotWatched:       "ErrNotWatched",
	ErrVerifiedConflict: "ErrVerifiedConflict",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error provides a single type for errors that can happen during ledger
// operation.
type Error struct {
	Code ErrorCode // Describes the kind of error
	Desc string    // Human readable description of the issue
	Err  error     // Underlying error, optional
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	if e.Err != nil {
		return e.Desc + ": " + e.Err.Error()
	}
	return e.Desc
}

// Unwrap returns the underlying error, if any.
func (e Error) Unwrap() error {
	return e.Err
}

func storeError(c ErrorCode, desc string, err error) Error {
	return Error{Code: c, Desc: desc, Err: err}
}

// IsError returns whether the error is an Error with a matching error code.
func IsError(err error, code ErrorCode) bool {
	var e Error
	return errors.As(err, &e) && e.Code == code
}

var (
	// ErrUnrelatedTransaction is returned when a transaction neither
	// spends from nor pays to a watched address and unrelated
	// transactions are not allowed.
	ErrUnrelatedTransaction = errors.New("transaction is unrelated to " +
		"this wallet")

	// ErrInconsistentHistory is logged when the running balance of a
	// history does not reconcile with the current balance.  The history
	// is returned empty in that case.
	ErrInconsistentHistory = errors.New("history not synchronized")
)

// invariant panics with an ErrInvariant error.  The ledger cannot continue
// safely once its indexes disagree.
func invariant(format string, args ...interface{}) {
	panic(Error{Code: ErrInvariant, Desc: fmt.Sprintf(format, args...)})
}
