package main

import (
	"errors"

	"github.com/trezcool/pensamiento/storage/database"
)

var migrateFunc = database.RunMigrations // mockable

var errNoSQLDatabase = errors.New("migrations need the postgres database engine")

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoSQLDatabase
	}
	return migrateFunc(args[0], cli.db, args[1:]...)
}
