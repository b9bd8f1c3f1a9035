package core

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	gomock "go.uber.org/mock/gomock"

	"github.com/minesim/minesim/internal/mocks/pkg/database_mock"
	"github.com/minesim/minesim/internal/mocks/pkg/queue_mock"
	"github.com/minesim/minesim/internal/mocks/pkg/store_mock"
	"github.com/minesim/minesim/pkg/database"
	"github.com/minesim/minesim/pkg/store"
	"github.com/minesim/minesim/pkg/structs"
)

func TestSweepExpired(t *testing.T) {
	id0 := "0d2f4f15-9dc8-4f92-a48c-6f7bcb9c1d3a"
	id1 := "1d2f4f15-9dc8-4f92-a48c-6f7bcb9c1d3b"

	db := database_mock.NewMockDatabase(gomock.NewController(t))
	st := store_mock.NewMockStore(gomock.NewController(t))
	svc := newTestService(db, st, nil)

	db.EXPECT().Jobs(gomock.Any(), &structs.Query{Limit: 500, ExpiresBefore: testNow}).Return(
		[]*structs.Job{{ID: id0}, {ID: id1}}, nil)
	for _, id := range []string{id0, id1} {
		db.EXPECT().TransitionJob(gomock.Any(), id, nil, gomock.Any(), gomock.Any()).Return(int64(1), nil)
		st.EXPECT().DeletePrefix(gomock.Any(), "jobs/"+id).Return(nil)
		db.EXPECT().DeleteJobs(gomock.Any(), []string{id}).Return(int64(1), nil)
	}

	svc.SweepExpired(context.Background())
}

func TestSweepExpiredContinuesPastFailures(t *testing.T) {
	id0 := "0d2f4f15-9dc8-4f92-a48c-6f7bcb9c1d3a"
	id1 := "1d2f4f15-9dc8-4f92-a48c-6f7bcb9c1d3b"

	db := database_mock.NewMockDatabase(gomock.NewController(t))
	st := store_mock.NewMockStore(gomock.NewController(t))
	svc := newTestService(db, st, nil)

	db.EXPECT().Jobs(gomock.Any(), gomock.Any()).Return([]*structs.Job{{ID: id0}, {ID: id1}}, nil)

	// first job's artifact delete blows up; the second is still swept
	db.EXPECT().TransitionJob(gomock.Any(), id0, nil, gomock.Any(), gomock.Any()).Return(int64(1), nil)
	st.EXPECT().DeletePrefix(gomock.Any(), "jobs/"+id0).Return(fmt.Errorf("store down"))

	db.EXPECT().TransitionJob(gomock.Any(), id1, nil, gomock.Any(), gomock.Any()).Return(int64(1), nil)
	st.EXPECT().DeletePrefix(gomock.Any(), "jobs/"+id1).Return(nil)
	db.EXPECT().DeleteJobs(gomock.Any(), []string{id1}).Return(int64(1), nil)

	svc.SweepExpired(context.Background())
}

func TestSweepOrphans(t *testing.T) {
	orphan := "0d2f4f15-9dc8-4f92-a48c-6f7bcb9c1d3a"
	known := "1d2f4f15-9dc8-4f92-a48c-6f7bcb9c1d3b"
	fresh := "2d2f4f15-9dc8-4f92-a48c-6f7bcb9c1d3c"

	old := time.Unix(testNow, 0).Add(-2 * time.Hour)
	recent := time.Unix(testNow, 0).Add(-time.Minute)

	db := database_mock.NewMockDatabase(gomock.NewController(t))
	st := store_mock.NewMockStore(gomock.NewController(t))
	svc := newTestService(db, st, nil)

	st.EXPECT().List(gomock.Any(), "jobs/").Return([]*store.ObjectInfo{
		{Path: "jobs/" + orphan + "/input/log.csv", ModTime: old},
		{Path: "jobs/" + known + "/input/log.csv", ModTime: old},
		{Path: "jobs/" + fresh + "/input/log.csv", ModTime: recent},
	}, nil)
	db.EXPECT().Jobs(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, q *structs.Query) ([]*structs.Job, error) {
			assert.ElementsMatch(t, []string{orphan, known}, q.JobIDs)
			return []*structs.Job{{ID: known}}, nil
		})

	// only the old prefix with no record is removed
	st.EXPECT().DeletePrefix(gomock.Any(), "jobs/"+orphan).Return(nil)

	svc.SweepOrphans(context.Background())
}

func TestReconcilePendingRedispatches(t *testing.T) {
	id := "0d2f4f15-9dc8-4f92-a48c-6f7bcb9c1d3a"
	job := &structs.Job{ID: id, Status: structs.PENDING, ETag: "e1", Attempts: 1, QueueTaskID: "task-1"}

	db := database_mock.NewMockDatabase(gomock.NewController(t))
	qu := queue_mock.NewMockQueue(gomock.NewController(t))
	svc := newTestService(db, nil, qu)

	db.EXPECT().Jobs(gomock.Any(), &structs.Query{
		Limit:         500,
		Statuses:      []structs.Status{structs.PENDING},
		UpdatedBefore: testNow - 30,
	}).Return([]*structs.Job{job}, nil)
	db.EXPECT().Jobs(gomock.Any(), &structs.Query{
		Limit:    500,
		Statuses: []structs.Status{structs.RUNNING},
	}).Return([]*structs.Job{}, nil)

	qu.EXPECT().InFlight("task-1").Return(false, nil)
	qu.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return("task-2", nil)
	db.EXPECT().UpdateJob(gomock.Any(), &database.IDTag{ID: id, ETag: "e1"}, gomock.Any(), gomock.Any()).Return(int64(1), nil)

	svc.Reconcile(context.Background())
}

func TestReconcilePendingLeavesInFlightAlone(t *testing.T) {
	id := "0d2f4f15-9dc8-4f92-a48c-6f7bcb9c1d3a"
	job := &structs.Job{ID: id, Status: structs.PENDING, Attempts: 1, QueueTaskID: "task-1"}

	db := database_mock.NewMockDatabase(gomock.NewController(t))
	qu := queue_mock.NewMockQueue(gomock.NewController(t))
	svc := newTestService(db, nil, qu)

	db.EXPECT().Jobs(gomock.Any(), gomock.Any()).Return([]*structs.Job{job}, nil)

	qu.EXPECT().InFlight("task-1").Return(true, nil)
	// no enqueue, no update

	svc.reconcilePending(context.Background())
}

func TestReconcilePendingGivesUpAfterMaxAttempts(t *testing.T) {
	id := "0d2f4f15-9dc8-4f92-a48c-6f7bcb9c1d3a"
	job := &structs.Job{ID: id, Status: structs.PENDING, Attempts: 3, QueueTaskID: "task-1"}

	db := database_mock.NewMockDatabase(gomock.NewController(t))
	qu := queue_mock.NewMockQueue(gomock.NewController(t))
	svc := newTestService(db, nil, qu)

	db.EXPECT().Jobs(gomock.Any(), gomock.Any()).Return([]*structs.Job{job}, nil)
	qu.EXPECT().InFlight("task-1").Return(false, nil)

	db.EXPECT().TransitionJob(gomock.Any(), id, nonTerminalStates, gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, id string, from []structs.Status, tag string, upd *database.JobUpdate) (int64, error) {
			assert.Equal(t, structs.FAILED, *upd.Status)
			assert.Contains(t, *upd.ErrorDetail, "3 dispatch attempts")
			return 1, nil
		})
	db.EXPECT().Jobs(gomock.Any(), &structs.Query{JobIDs: []string{id}, Limit: 1}).Return(
		[]*structs.Job{{ID: id, Status: structs.FAILED}}, nil)

	svc.reconcilePending(context.Background())
}

func TestReconcileRunningTimesOutOverrunners(t *testing.T) {
	id := "0d2f4f15-9dc8-4f92-a48c-6f7bcb9c1d3a"
	job := &structs.Job{
		ID:          id,
		Status:      structs.RUNNING,
		StartedAt:   testNow - 7200, // MaxJobRuntime is 1h in tests
		QueueTaskID: "task-1",
	}

	db := database_mock.NewMockDatabase(gomock.NewController(t))
	qu := queue_mock.NewMockQueue(gomock.NewController(t))
	svc := newTestService(db, nil, qu)

	db.EXPECT().Jobs(gomock.Any(), gomock.Any()).Return([]*structs.Job{job}, nil)

	qu.EXPECT().Kill("task-1").Return(nil)
	db.EXPECT().TransitionJob(gomock.Any(), id, nonTerminalStates, gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, id string, from []structs.Status, tag string, upd *database.JobUpdate) (int64, error) {
			assert.Equal(t, structs.FAILED, *upd.Status)
			assert.Contains(t, *upd.ErrorDetail, "maximum processing duration")
			return 1, nil
		})
	db.EXPECT().Jobs(gomock.Any(), &structs.Query{JobIDs: []string{id}, Limit: 1}).Return(
		[]*structs.Job{{ID: id, Status: structs.FAILED}}, nil)

	svc.reconcileRunning(context.Background())
}

func TestReconcileRunningRequeuesLostWorker(t *testing.T) {
	id := "0d2f4f15-9dc8-4f92-a48c-6f7bcb9c1d3a"
	job := &structs.Job{
		ID:          id,
		Status:      structs.RUNNING,
		StartedAt:   testNow - 600,
		UpdatedAt:   testNow - 600,
		Attempts:    1,
		QueueTaskID: "task-1",
	}

	db := database_mock.NewMockDatabase(gomock.NewController(t))
	qu := queue_mock.NewMockQueue(gomock.NewController(t))
	svc := newTestService(db, nil, qu)

	db.EXPECT().Jobs(gomock.Any(), gomock.Any()).Return([]*structs.Job{job}, nil)
	qu.EXPECT().InFlight("task-1").Return(false, nil)

	db.EXPECT().TransitionJob(gomock.Any(), id, []structs.Status{structs.RUNNING}, gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, id string, from []structs.Status, tag string, upd *database.JobUpdate) (int64, error) {
			assert.Equal(t, structs.PENDING, *upd.Status)
			assert.Equal(t, int64(0), *upd.StartedAt)
			return 1, nil
		})

	svc.reconcileRunning(context.Background())
}

func TestReconcileRunningLeavesActiveAlone(t *testing.T) {
	id := "0d2f4f15-9dc8-4f92-a48c-6f7bcb9c1d3a"
	job := &structs.Job{
		ID:          id,
		Status:      structs.RUNNING,
		StartedAt:   testNow - 600,
		UpdatedAt:   testNow - 600,
		QueueTaskID: "task-1",
	}

	db := database_mock.NewMockDatabase(gomock.NewController(t))
	qu := queue_mock.NewMockQueue(gomock.NewController(t))
	svc := newTestService(db, nil, qu)

	db.EXPECT().Jobs(gomock.Any(), gomock.Any()).Return([]*structs.Job{job}, nil)
	qu.EXPECT().InFlight("task-1").Return(true, nil)

	svc.reconcileRunning(context.Background())
}
