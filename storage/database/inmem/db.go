// Package inmemdb is a storage engine keeping every table in memory.
package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/pensamiento/core"
	"github.com/trezcool/pensamiento/core/award"
	"github.com/trezcool/pensamiento/core/catalog"
	"github.com/trezcool/pensamiento/core/performance"
	"github.com/trezcool/pensamiento/core/user"
)

type (
	DB struct {
		txMu sync.Mutex   // serializes transactions
		mu   sync.RWMutex // guards the tables

		users        table[user.User]
		activities   table[catalog.Activity]
		exercises    table[catalog.Exercise]
		awards       table[award.Award]
		performances map[int]performance.Performance // {studentID: Performance}
	}

	table[T any] struct {
		rows  map[int]T
		pkSeq int
	}
)

var _ core.Transactor = (*DB)(nil)

func newTable[T any]() table[T] {
	return table[T]{rows: make(map[int]T)}
}

func (t *table[T]) nextPK() int {
	t.pkSeq++
	return t.pkSeq
}

func (t table[T]) clone() table[T] {
	rows := make(map[int]T, len(t.rows))
	for k, v := range t.rows {
		rows[k] = v
	}
	return table[T]{rows: rows, pkSeq: t.pkSeq}
}

func Open() *DB {
	return &DB{
		users:        newTable[user.User](),
		activities:   newTable[catalog.Activity](),
		exercises:    newTable[catalog.Exercise](),
		awards:       newTable[award.Award](),
		performances: make(map[int]performance.Performance),
	}
}

// InTx runs fn while holding the transaction lock. The award and performance tables are restored
// when fn fails. fn receives a nil executor.
func (db *DB) InTx(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.RLock()
	awards := db.awards.clone()
	perfs := make(map[int]performance.Performance, len(db.performances))
	for k, v := range db.performances {
		perfs[k] = v
	}
	db.mu.RUnlock()

	if err := fn(nil); err != nil {
		db.mu.Lock()
		db.awards = awards
		db.performances = perfs
		db.mu.Unlock()
		return err
	}
	return nil
}

// Reset empties every table.
func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users = newTable[user.User]()
	db.activities = newTable[catalog.Activity]()
	db.exercises = newTable[catalog.Exercise]()
	db.awards = newTable[award.Award]()
	db.performances = make(map[int]performance.Performance)
}
