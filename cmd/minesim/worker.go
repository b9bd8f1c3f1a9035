package main

import (
	"github.com/minesim/minesim/internal/worker"
	"github.com/minesim/minesim/pkg/api"
)

const (
	docWorker = `Run a discovery worker`
)

type optsWorker struct {
	optsGeneral
	optsDatabase
	optsQueue
	optsStore
	optsLifecycle

	EngineCmd   string `long:"engine-cmd" env:"ENGINE_CMD" required:"true" description:"Command line that runs one discovery: <cmd> [args...] <log> <config> <outdir>"`
	Concurrency int    `long:"concurrency" env:"CONCURRENCY" default:"1" description:"Discoveries to run at once"`
}

func (c *optsWorker) Execute(args []string) error {
	// Pulls discovery tasks off the queue and runs them through the external
	// engine. No background sweeps here; the sweeper owns recovery.
	log := buildLogger(c.Debug)
	defer log.Sync()

	db, st, qu, err := buildComponents(&c.optsDatabase, &c.optsStore, &c.optsQueue, c.Concurrency)
	if err != nil {
		return err
	}

	svc, err := api.NewAPI(db, st, qu, c.apply(api.OptionsClientDefault()), log)
	if err != nil {
		return err
	}
	defer svc.Close()

	eng, err := worker.NewSubprocessEngine(c.EngineCmd)
	if err != nil {
		return err
	}

	exe := worker.NewExecutor(svc, st, eng, log)
	err = qu.Register(exe.Handle)
	if err != nil {
		return err
	}
	return qu.Run()
}
