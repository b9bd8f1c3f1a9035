package worker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	gomock "go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/minesim/minesim/internal/mocks/pkg/store_mock"
	"github.com/minesim/minesim/pkg/errors"
	"github.com/minesim/minesim/pkg/queue"
	"github.com/minesim/minesim/pkg/structs"
)

// stubLifecycle records lifecycle calls made by the executor.
type stubLifecycle struct {
	startErr error

	started  []string
	outcomes map[string]*structs.Outcome
}

func newStubLifecycle() *stubLifecycle {
	return &stubLifecycle{outcomes: map[string]*structs.Outcome{}}
}

func (s *stubLifecycle) Start(ctx context.Context, id string) error {
	s.started = append(s.started, id)
	return s.startErr
}

func (s *stubLifecycle) ReportOutcome(ctx context.Context, id string, out *structs.Outcome) error {
	s.outcomes[id] = out
	return nil
}

// stubEngine writes a fake archive next to outDir, or fails.
type stubEngine struct {
	err error

	gotLog    string
	gotConfig string
}

func (s *stubEngine) Discover(ctx context.Context, logPath, configPath, outDir string) (string, error) {
	s.gotLog = logPath
	s.gotConfig = configPath
	if s.err != nil {
		return "", s.err
	}
	archive := filepath.Join(filepath.Dir(outDir), "results.tar.gz")
	return archive, os.WriteFile(archive, []byte("tarball"), 0640)
}

func newTestExecutor(t *testing.T, svc *stubLifecycle, eng *stubEngine) (*Executor, *store_mock.MockStore) {
	st := store_mock.NewMockStore(gomock.NewController(t))
	exe := NewExecutor(svc, st, eng, zap.NewNop())
	exe.workDir = t.TempDir()
	return exe, st
}

func TestHandleSuccess(t *testing.T) {
	svc := newStubLifecycle()
	eng := &stubEngine{}
	exe, st := newTestExecutor(t, svc, eng)

	task := &queue.Task{
		JobID:      "job-1",
		LogPath:    "jobs/job-1/input/log.csv",
		ConfigPath: "jobs/job-1/input/configuration.yaml",
	}

	st.EXPECT().Get(gomock.Any(), task.LogPath).Return(io.NopCloser(strings.NewReader("a,b,c")), nil)
	st.EXPECT().Get(gomock.Any(), task.ConfigPath).Return(io.NopCloser(strings.NewReader("version: 5")), nil)
	st.EXPECT().Put(gomock.Any(), "jobs/job-1/results.tar.gz", gomock.Any(), int64(7)).Return(nil)

	err := exe.Handle(context.Background(), task)

	assert.Nil(t, err)
	assert.Equal(t, []string{"job-1"}, svc.started)
	assert.Equal(t, structs.SUCCEEDED, svc.outcomes["job-1"].Status)
	assert.Equal(t, "jobs/job-1/results.tar.gz", svc.outcomes["job-1"].OutputPath)

	// engine was handed the staged local copies, not store paths
	assert.True(t, strings.HasSuffix(eng.gotLog, "log.csv"))
	assert.True(t, strings.HasSuffix(eng.gotConfig, "configuration.yaml"))
}

func TestHandleNoConfig(t *testing.T) {
	svc := newStubLifecycle()
	eng := &stubEngine{}
	exe, st := newTestExecutor(t, svc, eng)

	task := &queue.Task{JobID: "job-1", LogPath: "jobs/job-1/input/log.csv"}

	st.EXPECT().Get(gomock.Any(), task.LogPath).Return(io.NopCloser(strings.NewReader("a,b,c")), nil)
	st.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	err := exe.Handle(context.Background(), task)

	assert.Nil(t, err)
	assert.Equal(t, "", eng.gotConfig)
}

func TestHandleEngineFailureReportsFailed(t *testing.T) {
	svc := newStubLifecycle()
	eng := &stubEngine{err: fmt.Errorf("%w discovery blew up", errors.ErrEngine)}
	exe, st := newTestExecutor(t, svc, eng)

	task := &queue.Task{JobID: "job-1", LogPath: "jobs/job-1/input/log.csv"}

	st.EXPECT().Get(gomock.Any(), task.LogPath).Return(io.NopCloser(strings.NewReader("a,b,c")), nil)
	// no Put; there is nothing to store

	err := exe.Handle(context.Background(), task)

	assert.Nil(t, err)
	assert.Equal(t, structs.FAILED, svc.outcomes["job-1"].Status)
	assert.Contains(t, svc.outcomes["job-1"].ErrorDetail, "discovery blew up")
}

func TestHandleMissingInputReportsFailed(t *testing.T) {
	svc := newStubLifecycle()
	eng := &stubEngine{}
	exe, st := newTestExecutor(t, svc, eng)

	task := &queue.Task{JobID: "job-1", LogPath: "jobs/job-1/input/log.csv"}

	st.EXPECT().Get(gomock.Any(), task.LogPath).Return(nil, fmt.Errorf("%w artifact", errors.ErrNotFound))

	err := exe.Handle(context.Background(), task)

	assert.Nil(t, err)
	assert.Equal(t, structs.FAILED, svc.outcomes["job-1"].Status)
}

func TestHandleSkipsNonPendingJob(t *testing.T) {
	svc := newStubLifecycle()
	svc.startErr = fmt.Errorf("%w job is not pending", errors.ErrInvalidState)
	eng := &stubEngine{}
	exe, _ := newTestExecutor(t, svc, eng)

	err := exe.Handle(context.Background(), &queue.Task{JobID: "job-1", LogPath: "x"})

	// acked without compute; the job moved on without us
	assert.Nil(t, err)
	assert.Empty(t, svc.outcomes)
	assert.Equal(t, "", eng.gotLog)
}

func TestHandleStartFailurePropagates(t *testing.T) {
	svc := newStubLifecycle()
	svc.startErr = fmt.Errorf("%w db unreachable", errors.ErrStorage)
	exe, _ := newTestExecutor(t, svc, &stubEngine{})

	err := exe.Handle(context.Background(), &queue.Task{JobID: "job-1", LogPath: "x"})

	assert.ErrorIs(t, err, errors.ErrStorage)
}
