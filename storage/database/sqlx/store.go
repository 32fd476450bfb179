// Package sqlxrepos implements the repositories on top of jmoiron/sqlx. Queries are written with `?`
// placeholders and rebound for the driver in use (postgres in production, sqlite3 in tests).
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/pensamiento/core"
)

const pqUniqueViolation = "23505"

type Store struct {
	db *sqlx.DB
}

var _ core.Transactor = (*Store)(nil)

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// InTx runs fn inside a database transaction; fn's executor is the *sqlx.Tx.
func (s *Store) InTx(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			// the connection state is unknown: stop serving
			return errors.Wrap(core.NewShutdownError("rolling back: "+rbErr.Error()), err.Error())
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// getExec returns the transaction passed down by the service, or db.
func getExec(db *sqlx.DB, exec []core.DBExecutor) sqlx.ExtContext {
	if len(exec) > 0 && exec[0] != nil {
		if e, ok := exec[0].(sqlx.ExtContext); ok {
			return e
		}
	}
	return db
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		return pqErr.Code == pqUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed") // sqlite3
}

// whereClause joins conds with AND.
func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// orderByClause maps the API orderings to columns, skipping unknown fields.
func orderByClause(ordering []core.DBOrdering, columns map[string]string, fallback string) string {
	parts := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		col, ok := columns[ord.Field]
		if !ok {
			continue
		}
		parts = append(parts, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	parts = append(parts, fallback)
	return " ORDER BY " + strings.Join(parts, ", ")
}

func trapNoRowsErr(err, notFound error) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return err
}

func checkRowsAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
