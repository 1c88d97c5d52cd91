// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package fenix

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
)

var ErrNoRows = sql.ErrNoRows
var ErrTXDone = sql.ErrTxDone

// DB runs built SQL on a database/sql database. The driver must accept
// sql.NamedArg values bound to ":name" placeholders.
type DB struct {
	sqldb  *sql.DB
	engine *Engine
}

// NewDB creates a new [DB] building with engine, or with the default engine
// when engine is nil.
func NewDB(sqldb *sql.DB, engine *Engine) *DB {
	if sqldb == nil {
		return nil
	}
	if engine == nil {
		engine = Default()
	}
	return &DB{sqldb: sqldb, engine: engine}
}

// PlainDB returns the underlying database object.
func (db *DB) PlainDB() *sql.DB {
	return db.sqldb
}

// Engine returns the engine building the queries of db.
func (db *DB) Engine() *Engine {
	return db.engine
}

// runner is implemented by both *sql.DB and *sql.Tx.
type runner interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Query represents a query on a database. It is designed to be run once.
type Query struct {
	r    runner
	ctx  context.Context
	err  error
	info *SQLInfo
	// done reports a finished transaction.
	done func() bool
}

// Query builds the template addressed by fenixID against c. The query is
// run when one of [Query.Exec], [Query.Get], [Query.GetMaps] or
// [Query.Iter] is called.
func (db *DB) Query(ctx context.Context, fenixID string, c any) *Query {
	info, err := db.engine.Build(fenixID, c)
	return newQuery(ctx, db.sqldb, info, err)
}

// QueryInfo returns a query running an SQLInfo built beforehand, for
// instance by a [Builder].
func (db *DB) QueryInfo(ctx context.Context, info *SQLInfo) *Query {
	return newQuery(ctx, db.sqldb, info, nil)
}

func newQuery(ctx context.Context, r runner, info *SQLInfo, err error) *Query {
	if ctx == nil {
		ctx = context.Background()
	}
	if err == nil && info == nil {
		err = fmt.Errorf("cannot run query: nil SQLInfo")
	}
	return &Query{r: r, ctx: ctx, err: err, info: info}
}

// SQLInfo returns what the query runs, nil when the build failed.
func (q *Query) SQLInfo() *SQLInfo {
	return q.info
}

func (q *Query) check() error {
	if q.err != nil {
		return q.err
	}
	if q.done != nil && q.done() {
		return ErrTXDone
	}
	return nil
}

// Exec runs a statement returning no rows.
func (q *Query) Exec() (sql.Result, error) {
	if err := q.check(); err != nil {
		return nil, err
	}
	return q.r.ExecContext(q.ctx, q.info.SQL(), q.info.Args()...)
}

// Get runs the query and scans the first row returned into dest. It returns
// [ErrNoRows] if no rows were found.
func (q *Query) Get(dest ...any) error {
	iter := q.Iter()
	var err error
	if iter.Next() {
		err = iter.Get(dest...)
	} else if err = iter.Close(); err == nil {
		err = ErrNoRows
	}
	if cerr := iter.Close(); err == nil {
		err = cerr
	}
	return err
}

// GetMaps runs the query and returns every row as a map keyed by column
// name. It returns [ErrNoRows] if no rows were found.
func (q *Query) GetMaps() ([]M, error) {
	iter := q.Iter()
	var out []M
	for iter.Next() {
		m := M{}
		if err := iter.Get(m); err != nil {
			iter.Close()
			return nil, err
		}
		out = append(out, m)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNoRows
	}
	return out, nil
}

// Iterator is used to iterate over the results of the query.
type Iterator struct {
	rows    *sql.Rows
	cols    []string
	err     error
	started bool
}

// Iter runs the query and returns an [Iterator] over its rows.
// [Iterator.Close] must be run once iteration is finished.
func (q *Query) Iter() *Iterator {
	if err := q.check(); err != nil {
		return &Iterator{err: err}
	}
	rows, err := q.r.QueryContext(q.ctx, q.info.SQL(), q.info.Args()...)
	if err != nil {
		return &Iterator{err: err}
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return &Iterator{err: err}
	}
	return &Iterator{rows: rows, cols: cols}
}

// Next prepares the next row for [Iterator.Get]. If an error occurs during
// iteration it will be returned with [Iterator.Close].
func (iter *Iterator) Next() bool {
	iter.started = true
	if iter.err != nil || iter.rows == nil {
		return false
	}
	return iter.rows.Next()
}

// Get scans the row prepared by [Iterator.Next] into dest. A single map
// with string keys receives every column by name; anything else is handed
// to [sql.Rows.Scan].
func (iter *Iterator) Get(dest ...any) (err error) {
	if iter.err != nil {
		return iter.err
	}
	defer func() {
		if err != nil {
			err = fmt.Errorf("cannot get result: %s", err)
		}
	}()

	if !iter.started {
		return fmt.Errorf("cannot call Get before Next")
	}
	if iter.rows == nil {
		return fmt.Errorf("iteration ended")
	}

	if len(dest) == 1 {
		if m, ok := asMap(dest[0]); ok {
			vals := make([]any, len(iter.cols))
			ptrs := make([]any, len(iter.cols))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			if err := iter.rows.Scan(ptrs...); err != nil {
				return err
			}
			for i, col := range iter.cols {
				if b, ok := vals[i].([]byte); ok {
					vals[i] = string(b)
				}
				m[col] = vals[i]
			}
			return nil
		}
	}
	return iter.rows.Scan(dest...)
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case M:
		return m, m != nil
	case map[string]any:
		return m, m != nil
	}
	return nil, false
}

// Close finishes the iteration and returns any errors encountered. Close can
// be called multiple times on the [Iterator] and the same error will be
// returned.
func (iter *Iterator) Close() error {
	iter.started = true
	if iter.rows == nil {
		return iter.err
	}
	err := iter.rows.Close()
	if err == nil {
		err = iter.rows.Err()
	}
	iter.rows = nil
	if iter.err == nil {
		iter.err = err
	}
	return iter.err
}

// TX represents a transaction on the database.
type TX struct {
	sqltx *sql.Tx
	db    *DB
	done  int32
}

func (tx *TX) isDone() bool {
	return atomic.LoadInt32(&tx.done) == 1
}

func (tx *TX) setDone() error {
	if !atomic.CompareAndSwapInt32(&tx.done, 0, 1) {
		return ErrTXDone
	}
	return nil
}

// Begin starts a transaction. A transaction must be ended
// with a [TX.Commit] or [TX.Rollback].
func (db *DB) Begin(ctx context.Context, opts *TXOptions) (*TX, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	sqltx, err := db.sqldb.BeginTx(ctx, opts.plainTXOptions())
	if err != nil {
		return nil, err
	}
	return &TX{sqltx: sqltx, db: db}, nil
}

// Commit commits the transaction.
func (tx *TX) Commit() error {
	err := tx.setDone()
	if err == nil {
		err = tx.sqltx.Commit()
	}
	return err
}

// Rollback aborts the transaction.
func (tx *TX) Rollback() error {
	err := tx.setDone()
	if err == nil {
		err = tx.sqltx.Rollback()
	}
	return err
}

// TXOptions holds the transaction options to be used in [DB.Begin].
type TXOptions struct {
	// Isolation is the transaction isolation level.
	// If zero, the driver or database's default level is used.
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

func (txopts *TXOptions) plainTXOptions() *sql.TxOptions {
	if txopts == nil {
		return nil
	}
	return &sql.TxOptions{Isolation: txopts.Isolation, ReadOnly: txopts.ReadOnly}
}

// Query is [DB.Query] within the transaction.
func (tx *TX) Query(ctx context.Context, fenixID string, c any) *Query {
	info, err := tx.db.engine.Build(fenixID, c)
	return tx.query(ctx, info, err)
}

// QueryInfo is [DB.QueryInfo] within the transaction.
func (tx *TX) QueryInfo(ctx context.Context, info *SQLInfo) *Query {
	return tx.query(ctx, info, nil)
}

func (tx *TX) query(ctx context.Context, info *SQLInfo, err error) *Query {
	if tx.isDone() {
		err = ErrTXDone
	}
	q := newQuery(ctx, tx.sqltx, info, err)
	q.done = tx.isDone
	return q
}
