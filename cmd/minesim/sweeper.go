package main

import (
	"os"
	"os/signal"

	"github.com/minesim/minesim/pkg/api"
)

const (
	docSweeper = `Run background expiry & reconciliation sweeps`
)

type optsSweeper struct {
	optsGeneral
	optsDatabase
	optsQueue
	optsStore
	optsLifecycle
	optsSweeps
}

func (c *optsSweeper) Execute(args []string) error {
	// Runs the background routines that reap expired discoveries and
	// recover stuck ones. Exactly one of these should run per deployment;
	// the sweeps are safe to run alongside themselves but it's wasted work.
	log := buildLogger(c.Debug)
	defer log.Sync()

	db, st, qu, err := buildComponents(&c.optsDatabase, &c.optsStore, &c.optsQueue, 0)
	if err != nil {
		return err
	}

	opts := c.optsSweeps.apply(c.optsLifecycle.apply(api.OptionsServerDefault()))
	svc, err := api.NewAPI(db, st, qu, opts, log)
	if err != nil {
		return err
	}
	defer svc.Close()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt)
	<-exit
	return nil
}
