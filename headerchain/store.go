// Copyright (c) 2015-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package headerchain

import (
	"context"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/wire"
)

// HeaderStore is the persistence layer of a Chain.  Headers are kept as one
// contiguous run starting at height zero.
type HeaderStore interface {
	// Height returns the height of the highest stored header, or -1 when
	// the store is empty.
	Height(ctx context.Context) (int32, error)

	// FetchHeader returns the header stored at height.  A HeaderError
	// with code ErrMissingHeader is returned when there is none.
	FetchHeader(ctx context.Context, height int32) (*wire.BlockHeader,
		error)

	// PutHeaders removes every header at or above start and writes
	// headers in their place.  start must not be above Height()+1.
	PutHeaders(ctx context.Context, start int32,
		headers []wire.BlockHeader) error
}

func missingHeader(height int32) HeaderError {
	str := fmt.Sprintf("no header at height %d", height)
	return headerError(ErrMissingHeader, str, nil)
}

func checkPutHeight(start, tip int32) error {
	if start < 0 || start > tip+1 {
		str := fmt.Sprintf("cannot write headers at height %d above "+
			"tip %d", start, tip)
		return headerError(ErrBadHeight, str, nil)
	}
	return nil
}

// MemStore is a HeaderStore kept entirely in memory.
type MemStore struct {
	mu      sync.RWMutex
	headers []wire.BlockHeader
}

// A compile-time assertion to ensure MemStore meets the HeaderStore
// interface.
var _ HeaderStore = (*MemStore)(nil)

// NewMemStore returns an empty in-memory header store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Height returns the height of the highest stored header.
func (s *MemStore) Height(context.Context) (int32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int32(len(s.headers)) - 1, nil
}

// FetchHeader returns the header stored at height.
func (s *MemStore) FetchHeader(_ context.Context,
	height int32) (*wire.BlockHeader, error) {

	s.mu.RLock()
	defer s.mu.RUnlock()

	if height < 0 || int(height) >= len(s.headers) {
		return nil, missingHeader(height)
	}
	h := s.headers[height]
	return &h, nil
}

// PutHeaders truncates the store at start and appends headers.
func (s *MemStore) PutHeaders(_ context.Context, start int32,
	headers []wire.BlockHeader) error {

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := checkPutHeight(start, int32(len(s.headers))-1); err != nil {
		return err
	}
	s.headers = append(s.headers[:start:start], headers...)
	return nil
}
