package worker

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/minesim/minesim/pkg/errors"
	"github.com/minesim/minesim/pkg/queue"
	"github.com/minesim/minesim/pkg/store"
	"github.com/minesim/minesim/pkg/structs"
)

// Lifecycle is the slice of the job lifecycle manager a worker needs.
type Lifecycle interface {
	Start(ctx context.Context, id string) error
	ReportOutcome(ctx context.Context, id string, out *structs.Outcome) error
}

// Executor processes one discovery task at a time: stage inputs locally,
// mark the job RUNNING, run the engine, store the result archive, report
// the outcome. The task is acked (handler returns nil) only once a durable
// outcome exists, or once we know the task can never produce one.
type Executor struct {
	svc Lifecycle
	st  store.Store
	eng Engine
	log *zap.SugaredLogger

	workDir string
}

func NewExecutor(svc Lifecycle, st store.Store, eng Engine, log *zap.Logger) *Executor {
	return &Executor{
		svc:     svc,
		st:      st,
		eng:     eng,
		log:     log.Sugar(),
		workDir: os.TempDir(),
	}
}

// Handle is the queue handler for discovery tasks.
func (e *Executor) Handle(ctx context.Context, t *queue.Task) error {
	err := e.svc.Start(ctx, t.JobID)
	if stderrors.Is(err, errors.ErrInvalidState) {
		// duplicate delivery, or the job was reaped before we got to it
		e.log.Infow("skipping task for job not in pending", "job", t.JobID)
		return nil
	}
	if err != nil {
		return err
	}
	e.log.Infow("job started", "job", t.JobID)

	resultPath, err := e.run(ctx, t)
	if err != nil {
		// engine failure is a terminal, unretried outcome
		e.log.Warnw("discovery failed", "job", t.JobID, "err", err)
		return e.svc.ReportOutcome(ctx, t.JobID, &structs.Outcome{
			Status:      structs.FAILED,
			ErrorDetail: err.Error(),
		})
	}

	err = e.svc.ReportOutcome(ctx, t.JobID, &structs.Outcome{
		Status:     structs.SUCCEEDED,
		OutputPath: resultPath,
	})
	if err != nil {
		return err
	}
	e.log.Infow("job succeeded", "job", t.JobID, "result", resultPath)
	return nil
}

// run stages inputs, invokes the engine and uploads the result archive,
// returning the archive's store path.
func (e *Executor) run(ctx context.Context, t *queue.Task) (string, error) {
	dir, err := os.MkdirTemp(e.workDir, "discovery-"+t.JobID+"-")
	if err != nil {
		return "", fmt.Errorf("%w %v", errors.ErrStorage, err)
	}
	defer os.RemoveAll(dir)

	logPath, err := e.fetch(ctx, t.LogPath, filepath.Join(dir, filepath.Base(t.LogPath)))
	if err != nil {
		return "", err
	}
	configPath := ""
	if t.ConfigPath != "" {
		configPath, err = e.fetch(ctx, t.ConfigPath, filepath.Join(dir, "configuration.yaml"))
		if err != nil {
			return "", err
		}
	}

	outDir := filepath.Join(dir, "out")
	err = os.Mkdir(outDir, 0750)
	if err != nil {
		return "", fmt.Errorf("%w %v", errors.ErrStorage, err)
	}

	archive, err := e.eng.Discover(ctx, logPath, configPath, outDir)
	if err != nil {
		return "", err
	}

	return e.upload(ctx, t.JobID, archive)
}

// fetch copies one artifact out of the store onto local disk.
func (e *Executor) fetch(ctx context.Context, storePath, localPath string) (string, error) {
	src, err := e.st.Get(ctx, storePath)
	if err != nil {
		return "", fmt.Errorf("%w failed to fetch %s: %v", errors.ErrStorage, storePath, err)
	}
	defer src.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("%w %v", errors.ErrStorage, err)
	}
	defer dst.Close()

	_, err = dst.ReadFrom(src)
	if err != nil {
		return "", fmt.Errorf("%w %v", errors.ErrStorage, err)
	}
	return localPath, nil
}

// upload pushes the local result archive into the store under the job's
// prefix and returns the store path.
func (e *Executor) upload(ctx context.Context, jobID, archive string) (string, error) {
	f, err := os.Open(archive)
	if err != nil {
		return "", fmt.Errorf("%w %v", errors.ErrStorage, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("%w %v", errors.ErrStorage, err)
	}

	path := store.JobPrefix(jobID) + "/" + resultArchiveName
	err = e.st.Put(ctx, path, f, info.Size())
	if err != nil {
		return "", fmt.Errorf("%w %v", errors.ErrStorage, err)
	}
	return path, nil
}
