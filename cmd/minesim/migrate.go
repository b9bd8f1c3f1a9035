package main

import (
	"github.com/minesim/minesim/pkg/database"
)

const (
	docMigrate = `Apply database migrations and exit`
)

type optsMigrate struct {
	optsGeneral
	optsDatabase
}

func (c *optsMigrate) Execute(args []string) error {
	log := buildLogger(c.Debug)
	defer log.Sync()

	err := database.Migrate(c.DatabaseURL)
	if err != nil {
		return err
	}
	log.Sugar().Infow("migrations applied")
	return nil
}
