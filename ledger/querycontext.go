// Copyright (c) 2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

// QueryContext carries values that stay fixed for the duration of one ledger
// call tree.  The local height is looked up on first use and then reused by
// every nested call that is handed the same context.
//
// A QueryContext is not safe for concurrent use.
type QueryContext struct {
	source func() int32

	height int32
	cached bool
}

// NewQueryContext returns a context that reads the local height from the
// ledger's chain source.
func (l *Ledger) NewQueryContext() *QueryContext {
	return &QueryContext{source: l.localHeight}
}

// QueryContextAt returns a context pinned to height.
func QueryContextAt(height int32) *QueryContext {
	return &QueryContext{height: height, cached: true}
}

// LocalHeight returns the memoized local height.
func (qc *QueryContext) LocalHeight() int32 {
	if !qc.cached {
		qc.height = qc.source()
		qc.cached = true
	}
	return qc.height
}

// queryContext returns qc, or a fresh context when qc is nil.
func (l *Ledger) queryContext(qc *QueryContext) *QueryContext {
	if qc == nil {
		return l.NewQueryContext()
	}
	return qc
}
