package main

import (
	"context"

	"github.com/trezcool/darasa/storage/database"
)

var gooseRunFunc = database.RunMigration // mockable

func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	return gooseRunFunc(ctx, cli.db, cli.logger, args[0], args[1:]...)
}
