// Copyright (c) 2015-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package headerchain

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/wire"
)

// Dialect selects the SQL flavour spoken by a SQLStore.
type Dialect uint8

const (
	// DialectSQLite is used with the modernc.org/sqlite driver.
	DialectSQLite Dialect = iota

	// DialectPostgres is used with the pgx stdlib driver.
	DialectPostgres
)

// DialectForDriver maps a database/sql driver name to its dialect.
func DialectForDriver(driver string) (Dialect, error) {
	switch driver {
	case "sqlite":
		return DialectSQLite, nil
	case "pgx", "postgres":
		return DialectPostgres, nil
	default:
		return 0, fmt.Errorf("unsupported header database driver %q",
			driver)
	}
}

func (d Dialect) createTableSQL() string {
	blob := "BLOB"
	if d == DialectPostgres {
		blob = "BYTEA"
	}
	return `CREATE TABLE IF NOT EXISTS block_headers (
		height INTEGER PRIMARY KEY,
		header ` + blob + ` NOT NULL
	)`
}

// Statements shared by both dialects.
const (
	selectTipSQL     = `SELECT COALESCE(MAX(height), -1) FROM block_headers`
	selectHeaderSQL  = `SELECT header FROM block_headers WHERE height = $1`
	deleteHeadersSQL = `DELETE FROM block_headers WHERE height >= $1`
	insertHeaderSQL  = `INSERT INTO block_headers (height, header) ` +
		`VALUES ($1, $2)`
)

// SQLStore is a HeaderStore backed by a database/sql connection.  Each
// header is stored as its raw 80-byte encoding keyed by height.
type SQLStore struct {
	db *sql.DB
}

// A compile-time assertion to ensure SQLStore meets the HeaderStore
// interface.
var _ HeaderStore = (*SQLStore)(nil)

// NewSQLStore creates the header table if needed and returns a store using
// it.
func NewSQLStore(ctx context.Context, db *sql.DB,
	dialect Dialect) (*SQLStore, error) {

	if _, err := db.ExecContext(ctx, dialect.createTableSQL()); err != nil {
		return nil, headerError(ErrDatabase, "cannot create header "+
			"table", err)
	}
	return &SQLStore{db: db}, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string,
		args ...any) *sql.Row
}

func selectTip(ctx context.Context, q queryRower) (int32, error) {
	var tip int64
	if err := q.QueryRowContext(ctx, selectTipSQL).Scan(&tip); err != nil {
		return 0, headerError(ErrDatabase, "cannot read header tip",
			err)
	}
	return int32(tip), nil
}

// Height returns the height of the highest stored header.
func (s *SQLStore) Height(ctx context.Context) (int32, error) {
	return selectTip(ctx, s.db)
}

// FetchHeader returns the header stored at height.
func (s *SQLStore) FetchHeader(ctx context.Context,
	height int32) (*wire.BlockHeader, error) {

	var raw []byte
	err := s.db.QueryRowContext(ctx, selectHeaderSQL, height).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, missingHeader(height)

	case err != nil:
		str := fmt.Sprintf("cannot read header %d", height)
		return nil, headerError(ErrDatabase, str, err)
	}

	var h wire.BlockHeader
	if err := h.Deserialize(bytes.NewReader(raw)); err != nil {
		str := fmt.Sprintf("corrupt header at height %d", height)
		return nil, headerError(ErrDatabase, str, err)
	}
	return &h, nil
}

// PutHeaders truncates the table at start and inserts headers in a single
// database transaction.
func (s *SQLStore) PutHeaders(ctx context.Context, start int32,
	headers []wire.BlockHeader) (err error) {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return headerError(ErrDatabase, "cannot begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	tip, err := selectTip(ctx, tx)
	if err != nil {
		return err
	}
	if err := checkPutHeight(start, tip); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, deleteHeadersSQL, start); err != nil {
		return headerError(ErrDatabase, "cannot truncate headers", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertHeaderSQL)
	if err != nil {
		return headerError(ErrDatabase, "cannot prepare insert", err)
	}
	defer stmt.Close()

	for i := range headers {
		height := start + int32(i)
		raw := serializeHeader(&headers[i])
		if _, err := stmt.ExecContext(ctx, height, raw); err != nil {
			str := fmt.Sprintf("cannot insert header %d", height)
			return headerError(ErrDatabase, str, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return headerError(ErrDatabase, "cannot commit headers", err)
	}
	return nil
}
