package api

import (
	"go.uber.org/zap"

	"github.com/minesim/minesim/internal/core"
	"github.com/minesim/minesim/pkg/database"
	"github.com/minesim/minesim/pkg/queue"
	"github.com/minesim/minesim/pkg/store"
	"github.com/minesim/minesim/pkg/structs"
)

func NewAPI(db database.Database, st store.Store, qu queue.Queue, opts *structs.Options, log *zap.Logger) (API, error) {
	return core.NewService(db, st, qu, opts, log)
}
