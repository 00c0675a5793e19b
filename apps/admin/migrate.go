package main

import (
	"github.com/trezcool/shule/storage/database"
)

var migrateRunFunc = database.RunMigrationCommand // mockable

func (cli *commandLine) migrate(args []string) error {
	command := args[0]
	var arguments []string
	if len(args) > 1 {
		arguments = args[1:]
	}
	return migrateRunFunc(command, cli.db.DB, arguments...)
}
