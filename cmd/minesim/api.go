package main

import (
	"github.com/minesim/minesim/pkg/api"
	"github.com/minesim/minesim/pkg/api/http/server"
)

const (
	docApi = `Run the discovery API server`
)

type optsAPI struct {
	optsGeneral
	optsDatabase
	optsQueue
	optsStore
	optsLifecycle

	Addr string `long:"addr" env:"ADDR" description:"Address to bind to" default:"localhost:8100"`
}

func (c *optsAPI) Execute(args []string) error {
	// Serves the discovery API over HTTP. Background sweeps are left to the
	// sweeper process; this serves requests and enqueues work, nothing more.
	log := buildLogger(c.Debug)
	defer log.Sync()

	db, st, qu, err := buildComponents(&c.optsDatabase, &c.optsStore, &c.optsQueue, 0)
	if err != nil {
		return err
	}

	svc, err := api.NewAPI(db, st, qu, c.apply(api.OptionsClientDefault()), log)
	if err != nil {
		return err
	}
	defer svc.Close()

	s := server.NewServer(c.Addr, c.Debug, log)
	return s.ServeForever(svc)
}
