// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/axerunners/axewallet/headerchain"
	"github.com/axerunners/axewallet/internal/cfgutil"
	"github.com/axerunners/axewallet/netparams"

	// Register the pgx driver under name "pgx".
	_ "github.com/jackc/pgx/v5/stdlib"

	// Register SQLite driver under name "sqlite".
	_ "modernc.org/sqlite"
)

// openHeaderStore returns the header store selected by the flags and a
// function releasing it.
func openHeaderStore(ctx context.Context) (headerchain.HeaderStore,
	func(), error) {

	if opts.HeaderDB == "" {
		return headerchain.NewMemStore(), func() {}, nil
	}

	dialect, err := headerchain.DialectForDriver(opts.HeaderDriver)
	if err != nil {
		return nil, nil, err
	}
	db, err := sql.Open(opts.HeaderDriver, opts.HeaderDB)
	if err != nil {
		return nil, nil, errContext(err, "cannot open header database")
	}
	store, err := headerchain.NewSQLStore(ctx, db, dialect)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return store, func() { db.Close() }, nil
}

// verifyHeaders checks a file of raw headers against the rules of the
// selected network, a chunk at a time, and stores the ones that connect.
func verifyHeaders(ctx context.Context, args []string) error {
	data, err := os.ReadFile(cfgutil.CleanAndExpandPath(args[0]))
	if err != nil {
		return errContext(err, "cannot read header file")
	}
	if len(data)%netparams.HeaderSize != 0 {
		return fmt.Errorf("header file size %d is not a multiple of %d",
			len(data), netparams.HeaderSize)
	}

	store, closeStore, err := openHeaderStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	chain, err := headerchain.New(ctx, headerchain.Config{
		Params: activeNet,
		Store:  store,
	})
	if err != nil {
		return err
	}

	const chunkBytes = netparams.ChunkSize * netparams.HeaderSize
	height := opts.StartHeight
	for len(data) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := min(len(data), chunkBytes)
		tip, err := chain.ConnectChunk(ctx, height, data[:n])
		if err != nil {
			return errContext(err, fmt.Sprintf("headers at height %d "+
				"rejected", height))
		}
		log.Infof("Verified %d %s from height %d, tip %d",
			n/netparams.HeaderSize, pickNoun(n/netparams.HeaderSize,
				"header", "headers"), height, tip)

		height += int32(n / netparams.HeaderSize)
		data = data[n:]
	}

	tip := chain.Height()
	hash, ok := chain.HeaderHash(tip)
	if !ok {
		return fmt.Errorf("no header at tip %d", tip)
	}
	fmt.Printf("%d %v\n", tip, hash)
	return nil
}
