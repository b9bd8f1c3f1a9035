package queue

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/hibiken/asynq"

	"github.com/minesim/minesim/pkg/errors"
)

const (
	workQueue        = "minesim:discoveries"
	taskTypeDiscover = "discovery:run"
)

// Asynq is a redis backed Queue implementation using hibiken/asynq.
type Asynq struct {
	opts   *Options
	rediss asynq.RedisClientOpt

	// the asynq client & inspector
	ins *asynq.Inspector
	cli *asynq.Client

	// if Register is called we're intended to start a server
	lock sync.Mutex
	mux  *asynq.ServeMux
	srv  *asynq.Server
}

// NewAsynqQueue returns a Queue speaking to redis at opts.URL.
func NewAsynqQueue(opts *Options) (*Asynq, error) {
	opts.setDefaults()
	rediss, err := opts.redisOpt()
	if err != nil {
		return nil, err
	}
	return &Asynq{
		opts:   opts,
		rediss: rediss,
		ins:    asynq.NewInspector(rediss),
		cli:    asynq.NewClient(rediss),
	}, nil
}

func (a *Asynq) Register(h Handler) error {
	if a.mux == nil {
		a.buildServer()
	}
	a.mux.HandleFunc(taskTypeDiscover, func(ctx context.Context, t *asynq.Task) error {
		task, err := UnmarshalTask(t.Payload())
		if err != nil {
			// a payload we can't parse will never parse; don't redeliver
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return h(ctx, task)
	})
	return nil
}

func (a *Asynq) Run() error {
	if a.srv == nil {
		return fmt.Errorf("%w no handler registered", errors.ErrInvalidState)
	}
	return a.srv.Run(a.mux)
}

func (a *Asynq) Enqueue(ctx context.Context, t *Task) (string, error) {
	payload, err := t.Marshal()
	if err != nil {
		return "", err
	}
	info, err := a.cli.EnqueueContext(
		ctx,
		asynq.NewTask(taskTypeDiscover, payload),
		asynq.Queue(workQueue),
		// the queue layer never retries on its own; stuck jobs are
		// re-dispatched by the reconciliation sweep
		asynq.MaxRetry(0),
	)
	if err != nil {
		return "", fmt.Errorf("%w %v", errors.ErrDispatch, err)
	}
	return info.ID, nil
}

func (a *Asynq) Kill(queueTaskID string) error {
	// Best effort cancel; asynq can't guarantee this will kill it
	return a.ins.CancelProcessing(queueTaskID)
}

func (a *Asynq) InFlight(queueTaskID string) (bool, error) {
	info, err := a.ins.GetTaskInfo(workQueue, queueTaskID)
	if err != nil {
		if stderrors.Is(err, asynq.ErrTaskNotFound) || stderrors.Is(err, asynq.ErrQueueNotFound) {
			return false, nil
		}
		return false, err
	}
	switch info.State {
	case asynq.TaskStateActive, asynq.TaskStatePending, asynq.TaskStateScheduled, asynq.TaskStateRetry:
		return true, nil
	default:
		return false, nil
	}
}

func (a *Asynq) Close() error {
	if a.srv != nil {
		a.srv.Stop()
		a.srv.Shutdown()
	}
	return a.cli.Close()
}

func (a *Asynq) buildServer() {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.mux != nil {
		// someone locked and set this first
		return
	}
	a.srv = asynq.NewServer(
		a.rediss,
		asynq.Config{
			Queues:      map[string]int{workQueue: 1},
			Concurrency: a.opts.Concurrency,
		},
	)
	a.mux = asynq.NewServeMux()
}
