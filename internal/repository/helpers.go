package repository

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
)

// execOr returns exec when a transaction is supplied, otherwise the pool.
func execOr(db *sqlx.DB, exec sqlx.ExtContext) sqlx.ExtContext {
	if exec == nil {
		return db
	}
	return exec
}

// errNoRowsAffected lets callers treat a missing row on write like a missing row on read.
var errNoRowsAffected = sql.ErrNoRows

// QueryObserver receives the duration of labelled queries.
type QueryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

func observe(o QueryObserver, label string, start time.Time) {
	if o != nil {
		o.ObserveDBQuery(label, time.Since(start))
	}
}
