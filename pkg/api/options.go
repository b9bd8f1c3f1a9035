package api

import (
	"time"

	"github.com/minesim/minesim/pkg/structs"
)

const (
	defRetention     = 7 * 24 * time.Hour
	defMaxJobRuntime = 24 * time.Hour
)

// OptionsClientDefault runs a service with no background sweep routines.
// Intended for worker processes and clients that only need the lifecycle
// calls, leaving expiry & reconciliation to a dedicated server.
func OptionsClientDefault() *structs.Options {
	return &structs.Options{
		Retention:     defRetention,
		MaxJobRuntime: defMaxJobRuntime,
	}
}

// OptionsServerDefault runs a service with background sweeps enabled, for
// processes responsible for expiring old jobs and recovering stuck ones.
func OptionsServerDefault() *structs.Options {
	return &structs.Options{
		Retention:           defRetention,
		MaxJobRuntime:       defMaxJobRuntime,
		SweepFrequency:      time.Minute,
		ReconcileFrequency:  2 * time.Minute,
		DispatchGrace:       30 * time.Second,
		MaxDispatchAttempts: 3,
		OrphanAge:           24 * time.Hour,
	}
}
