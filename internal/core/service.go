package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/minesim/minesim/internal/utils"
	"github.com/minesim/minesim/pkg/database"
	"github.com/minesim/minesim/pkg/errors"
	"github.com/minesim/minesim/pkg/queue"
	"github.com/minesim/minesim/pkg/store"
	"github.com/minesim/minesim/pkg/structs"
)

const (
	// defaults, overridable via structs.Options
	defRetention           = 7 * 24 * time.Hour
	defSweepFrequency      = time.Minute
	defReconcileFrequency  = 2 * time.Minute
	defDispatchGrace       = 30 * time.Second
	defMaxJobRuntime       = 24 * time.Hour
	defMaxDispatchAttempts = 3
	defOrphanAge           = 24 * time.Hour

	configArtifact = "input/configuration.yaml"
	resultArtifact = "results.tar.gz"
)

// timeNow returns unix seconds; a var so tests can pin the clock.
var timeNow = func() int64 { return time.Now().Unix() }

var nonTerminalStates = []structs.Status{structs.PENDING, structs.RUNNING}

// Service owns the discovery job lifecycle: it is the only code that moves a
// job between states, and it mediates between the HTTP surface, the queue,
// the repository and the artifact store.
type Service struct {
	db       database.Database
	st       store.Store
	qu       queue.Queue
	opts     *structs.Options
	notifier Notifier
	log      *zap.SugaredLogger

	stop chan struct{}
}

// NewService builds a Service and, if the given options enable them, starts
// the expiry & reconciliation sweep loops.
func NewService(db database.Database, st store.Store, qu queue.Queue, opts *structs.Options, log *zap.Logger) (*Service, error) {
	if opts == nil {
		opts = &structs.Options{}
	}
	setOptionDefaults(opts)

	me := &Service{
		db:       db,
		st:       st,
		qu:       qu,
		opts:     opts,
		notifier: NewRestyNotifier(),
		log:      log.Sugar(),
		stop:     make(chan struct{}),
	}

	if opts.SweepFrequency > 0 {
		go me.runExpiryLoop()
	}
	if opts.ReconcileFrequency > 0 {
		go me.runReconcileLoop()
	}

	return me, nil
}

func setOptionDefaults(opts *structs.Options) {
	if opts.Retention <= 0 {
		opts.Retention = defRetention
	}
	if opts.DispatchGrace <= 0 {
		opts.DispatchGrace = defDispatchGrace
	}
	if opts.MaxJobRuntime <= 0 {
		opts.MaxJobRuntime = defMaxJobRuntime
	}
	if opts.MaxDispatchAttempts <= 0 {
		opts.MaxDispatchAttempts = defMaxDispatchAttempts
	}
	if opts.OrphanAge <= 0 {
		opts.OrphanAge = defOrphanAge
	}
}

func (c *Service) Close() error {
	close(c.stop)
	c.qu.Close()
	c.db.Close()
	return c.st.Close()
}

// Submit validates a submission, persists its artifacts, creates the job in
// PENDING and hands it to the queue. All-or-nothing up to the queue handoff:
// if artifacts or the record can't be persisted, nothing is left behind. A
// failed enqueue is NOT an error here; the job stays PENDING and the
// reconciliation sweep re-dispatches it.
func (c *Service) Submit(ctx context.Context, req *structs.SubmitRequest) (*structs.Job, error) {
	err := validateSubmit(req, c.opts.StrictConfig)
	if err != nil {
		return nil, err
	}

	id := utils.NewRandomID()
	prefix := store.JobPrefix(id)
	logPath := prefix + "/input/" + sanitizeFilename(req.LogName)

	err = c.st.Put(ctx, logPath, bytes.NewReader(req.Log), int64(len(req.Log)))
	if err != nil {
		return nil, err
	}

	configPath := ""
	if len(req.Config) > 0 {
		// point the configuration at the stored log; the uploaded one
		// references a path on the client's machine
		rewritten, err := structs.RewriteConfig(req.Config, logPath)
		if err != nil {
			c.discardArtifacts(ctx, prefix)
			return nil, err
		}
		configPath = prefix + "/" + configArtifact
		err = c.st.Put(ctx, configPath, bytes.NewReader(rewritten), int64(len(rewritten)))
		if err != nil {
			c.discardArtifacts(ctx, prefix)
			return nil, err
		}
	}

	now := timeNow()
	job := &structs.Job{
		ID:              id,
		Status:          structs.PENDING,
		ETag:            utils.NewRandomID(),
		SubmittedAt:     now,
		UpdatedAt:       now,
		ExpiresAt:       now + int64(c.opts.Retention.Seconds()),
		InputLogPath:    logPath,
		InputConfigPath: configPath,
		CallbackURL:     req.CallbackURL,
	}

	err = c.db.InsertJob(ctx, job)
	if err != nil {
		c.discardArtifacts(ctx, prefix)
		return nil, fmt.Errorf("%w %v", errors.ErrStorage, err)
	}

	// enqueue strictly after the PENDING record is durable, so a worker can
	// never report on a job the repository hasn't seen
	err = c.dispatch(ctx, job)
	if err != nil {
		c.log.Warnw("enqueue failed, leaving job pending for reconciliation", "job", job.ID, "err", err)
	}
	return job, nil
}

// dispatch enqueues the job's task and records the queue's task id & the
// attempt count against the job record.
func (c *Service) dispatch(ctx context.Context, job *structs.Job) error {
	queueTaskID, err := c.qu.Enqueue(ctx, &queue.Task{
		JobID:      job.ID,
		LogPath:    job.InputLogPath,
		ConfigPath: job.InputConfigPath,
	})
	if err != nil {
		return fmt.Errorf("%w %v", errors.ErrDispatch, err)
	}

	newTag := utils.NewRandomID()
	attempts := job.Attempts + 1
	altered, err := c.db.UpdateJob(ctx, &database.IDTag{ID: job.ID, ETag: job.ETag}, newTag, &database.JobUpdate{
		QueueTaskID: &queueTaskID,
		Attempts:    &attempts,
	})
	if err != nil {
		return err
	}
	if altered == 0 {
		// someone else moved the job first; their version wins
		return fmt.Errorf("%w job %s changed during dispatch", errors.ErrETagMismatch, job.ID)
	}
	job.ETag = newTag
	job.QueueTaskID = queueTaskID
	job.Attempts = attempts
	return nil
}

// Get returns the job, or ErrNotFound if it doesn't exist or its retention
// window has passed (an expired-but-unswept job is invisible).
func (c *Service) Get(ctx context.Context, id string) (*structs.Job, error) {
	if !utils.IsValidID(id) {
		return nil, fmt.Errorf("%w %s is not a valid job id", errors.ErrNotFound, id)
	}
	jobs, err := c.db.Jobs(ctx, &structs.Query{JobIDs: []string{id}, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("%w %v", errors.ErrStorage, err)
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("%w job %s", errors.ErrNotFound, id)
	}
	job := jobs[0]
	if job.ExpiresAt <= timeNow() || job.Status == structs.EXPIRED {
		return nil, fmt.Errorf("%w job %s expired", errors.ErrNotFound, id)
	}
	return job, nil
}

// Jobs returns jobs matching the given query.
func (c *Service) Jobs(ctx context.Context, q *structs.Query) ([]*structs.Job, error) {
	q.Sanitize()
	return c.db.Jobs(ctx, q)
}

// Result returns the produced artifact bytes for a SUCCEEDED job.
// ErrNotReady while the job is still in flight; ErrNotFound for everything
// that will never have a result.
func (c *Service) Result(ctx context.Context, id string) (io.ReadCloser, error) {
	job, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch job.Status {
	case structs.PENDING, structs.RUNNING:
		return nil, fmt.Errorf("%w job %s is %s", errors.ErrNotReady, id, job.Status)
	case structs.SUCCEEDED:
		return c.st.Get(ctx, job.OutputPath)
	default:
		return nil, fmt.Errorf("%w job %s has no result", errors.ErrNotFound, id)
	}
}

// Configuration returns the stored configuration file for a job.
func (c *Service) Configuration(ctx context.Context, id string) (io.ReadCloser, error) {
	job, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.InputConfigPath == "" {
		return nil, fmt.Errorf("%w job %s has no configuration", errors.ErrNotFound, id)
	}
	return c.st.Get(ctx, job.InputConfigPath)
}

// Start moves a job PENDING -> RUNNING on worker pickup. ErrInvalidState if
// the job isn't PENDING anymore (duplicate delivery, or already reaped).
func (c *Service) Start(ctx context.Context, id string) error {
	now := timeNow()
	running := structs.RUNNING
	altered, err := c.db.TransitionJob(ctx, id, []structs.Status{structs.PENDING}, utils.NewRandomID(), &database.JobUpdate{
		Status:    &running,
		StartedAt: &now,
	})
	if err != nil {
		return fmt.Errorf("%w %v", errors.ErrStorage, err)
	}
	if altered == 0 {
		return fmt.Errorf("%w job %s is not pending", errors.ErrInvalidState, id)
	}
	return nil
}

// ReportOutcome moves a job to SUCCEEDED or FAILED, recomputes its expiry
// and fires the (at most one) callback. Idempotent: reporting on a job that
// is already terminal is a no-op, which is what absorbs the queue layer's
// at-least-once delivery.
func (c *Service) ReportOutcome(ctx context.Context, id string, out *structs.Outcome) error {
	err := validateOutcome(out)
	if err != nil {
		return err
	}

	now := timeNow()
	expires := now + int64(c.opts.Retention.Seconds())
	upd := &database.JobUpdate{
		Status:      &out.Status,
		CompletedAt: &now,
		ExpiresAt:   &expires,
	}
	if out.Status == structs.SUCCEEDED {
		upd.OutputPath = &out.OutputPath
	} else {
		upd.ErrorDetail = &out.ErrorDetail
	}

	altered, err := c.db.TransitionJob(ctx, id, nonTerminalStates, utils.NewRandomID(), upd)
	if err != nil {
		return fmt.Errorf("%w %v", errors.ErrStorage, err)
	}
	if altered == 0 {
		// duplicate report or unknown job; a no-op for the former
		jobs, err := c.db.Jobs(ctx, &structs.Query{JobIDs: []string{id}, Limit: 1})
		if err != nil {
			return fmt.Errorf("%w %v", errors.ErrStorage, err)
		}
		if len(jobs) == 0 {
			return fmt.Errorf("%w job %s", errors.ErrNotFound, id)
		}
		return nil
	}

	jobs, err := c.db.Jobs(ctx, &structs.Query{JobIDs: []string{id}, Limit: 1})
	if err != nil || len(jobs) == 0 {
		// transition committed; the callback is best-effort anyway
		c.log.Warnw("job vanished after outcome transition", "job", id, "err", err)
		return nil
	}
	if jobs[0].CallbackURL != "" && !jobs[0].Notified {
		go c.notifyTerminal(jobs[0])
	}
	return nil
}

// notifyTerminal delivers the single best-effort callback for a job that
// just went terminal. Failures are logged, never retried, and never touch
// the job's status.
func (c *Service) notifyTerminal(job *structs.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// mark attempted first; at most once beats exactly once here
	notified := true
	_, err := c.db.UpdateJob(ctx, &database.IDTag{ID: job.ID, ETag: job.ETag}, utils.NewRandomID(), &database.JobUpdate{
		Notified: &notified,
	})
	if err != nil {
		c.log.Warnw("failed to mark job notified", "job", job.ID, "err", err)
	}

	err = c.notifier.Notify(ctx, job)
	if err != nil {
		c.log.Warnw("callback delivery failed", "job", job.ID, "url", job.CallbackURL, "err", err)
	}
}

// Delete removes a job and its artifacts: artifacts first, then the record,
// so no observer ever holds a record pointing at deleted artifacts.
func (c *Service) Delete(ctx context.Context, id string) error {
	if !utils.IsValidID(id) {
		return fmt.Errorf("%w %s is not a valid job id", errors.ErrNotFound, id)
	}
	jobs, err := c.db.Jobs(ctx, &structs.Query{JobIDs: []string{id}, Limit: 1})
	if err != nil {
		return fmt.Errorf("%w %v", errors.ErrStorage, err)
	}
	if len(jobs) == 0 {
		return fmt.Errorf("%w job %s", errors.ErrNotFound, id)
	}
	return c.remove(ctx, jobs[0])
}

// DeleteAll removes every job & its artifacts, returning how many went.
func (c *Service) DeleteAll(ctx context.Context) (int64, error) {
	var count int64
	q := &structs.Query{Limit: 500}
	for {
		jobs, err := c.db.Jobs(ctx, q)
		if err != nil {
			return count, fmt.Errorf("%w %v", errors.ErrStorage, err)
		}
		for _, j := range jobs {
			err = c.remove(ctx, j)
			if err != nil {
				c.log.Warnw("failed to remove job", "job", j.ID, "err", err)
				continue
			}
			count++
		}
		if len(jobs) < q.Limit {
			return count, nil
		}
		// deletions shift the pages under us; always re-read from the top
	}
}

// remove deletes one job's artifacts, then its record. Marking the record
// EXPIRED first makes it invisible to Get before artifacts start vanishing.
func (c *Service) remove(ctx context.Context, job *structs.Job) error {
	expired := structs.EXPIRED
	_, err := c.db.TransitionJob(ctx, job.ID, nil, utils.NewRandomID(), &database.JobUpdate{Status: &expired})
	if err != nil {
		return err
	}
	err = c.st.DeletePrefix(ctx, store.JobPrefix(job.ID))
	if err != nil {
		return err
	}
	_, err = c.db.DeleteJobs(ctx, []string{job.ID})
	return err
}

func (c *Service) discardArtifacts(ctx context.Context, prefix string) {
	// cleanup after a failed submission; the orphan sweep catches leftovers
	err := c.st.DeletePrefix(ctx, prefix)
	if err != nil {
		c.log.Warnw("failed to discard artifacts", "prefix", prefix, "err", err)
	}
}
