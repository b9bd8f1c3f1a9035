package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minesim/minesim/internal/utils"
	"github.com/minesim/minesim/pkg/database"
	"github.com/minesim/minesim/pkg/errors"
	"github.com/minesim/minesim/pkg/structs"
)

// runExpiryLoop drives the expiry sweeper on its configured interval.
func (c *Service) runExpiryLoop() {
	tick := time.NewTicker(c.opts.SweepFrequency)
	defer tick.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-tick.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.opts.SweepFrequency)
			c.SweepExpired(ctx)
			c.SweepOrphans(ctx)
			cancel()
		}
	}
}

// runReconcileLoop drives the reconciliation sweep on its configured interval.
func (c *Service) runReconcileLoop() {
	tick := time.NewTicker(c.opts.ReconcileFrequency)
	defer tick.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-tick.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.opts.ReconcileFrequency)
			c.Reconcile(ctx)
			cancel()
		}
	}
}

// SweepExpired runs one expiry cycle: every job past its retention window is
// removed, artifacts first, then the record. One job's failure never aborts
// the cycle; it is logged and the job is retried next cycle.
func (c *Service) SweepExpired(ctx context.Context) {
	q := &structs.Query{Limit: 500, ExpiresBefore: timeNow()}
	for {
		jobs, err := c.db.Jobs(ctx, q)
		if err != nil {
			c.log.Warnw("expiry sweep query failed", "err", err)
			return
		}
		for _, j := range jobs {
			err = c.remove(ctx, j)
			if err != nil {
				// the record may have been deleted under us; that just
				// means someone else cleaned it
				c.log.Warnw("expiry sweep failed for job", "job", j.ID, "err", err)
			}
		}
		if len(jobs) < q.Limit {
			return
		}
	}
}

// SweepOrphans removes artifacts whose job record no longer exists. The
// artifacts-before-record delete ordering means a crash mid-sweep can leave
// these behind; mtime keeps us from racing an insert-in-progress.
func (c *Service) SweepOrphans(ctx context.Context) {
	objs, err := c.st.List(ctx, "jobs/")
	if err != nil {
		c.log.Warnw("orphan sweep list failed", "err", err)
		return
	}

	cutoff := time.Unix(timeNow(), 0).Add(-c.opts.OrphanAge)
	byJob := map[string]bool{} // job id -> any object new enough to keep
	for _, o := range objs {
		parts := strings.SplitN(o.Path, "/", 3)
		if len(parts) < 3 || parts[0] != "jobs" {
			continue
		}
		if o.ModTime.After(cutoff) {
			byJob[parts[1]] = true
		} else if _, ok := byJob[parts[1]]; !ok {
			byJob[parts[1]] = false
		}
	}

	ids := []string{}
	for id, fresh := range byJob {
		if !fresh {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return
	}

	known, err := c.db.Jobs(ctx, &structs.Query{JobIDs: ids, Limit: len(ids)})
	if err != nil {
		c.log.Warnw("orphan sweep job lookup failed", "err", err)
		return
	}
	hasRecord := map[string]bool{}
	for _, j := range known {
		hasRecord[j.ID] = true
	}

	for _, id := range ids {
		if hasRecord[id] {
			continue
		}
		err = c.st.DeletePrefix(ctx, "jobs/"+id)
		if err != nil {
			c.log.Warnw("orphan sweep delete failed", "job", id, "err", err)
			continue
		}
		c.log.Infow("removed orphaned artifacts", "job", id)
	}
}

// Reconcile runs one recovery pass: re-dispatches PENDING jobs whose task
// never made it to (or vanished from) the queue, and force-fails RUNNING
// jobs whose worker died or overran the runtime limit.
func (c *Service) Reconcile(ctx context.Context) {
	c.reconcilePending(ctx)
	c.reconcileRunning(ctx)
}

func (c *Service) reconcilePending(ctx context.Context) {
	q := &structs.Query{
		Limit:         500,
		Statuses:      []structs.Status{structs.PENDING},
		UpdatedBefore: timeNow() - int64(c.opts.DispatchGrace.Seconds()),
	}
	jobs, err := c.db.Jobs(ctx, q)
	if err != nil {
		c.log.Warnw("reconcile pending query failed", "err", err)
		return
	}
	for _, j := range jobs {
		if j.QueueTaskID != "" {
			inFlight, err := c.qu.InFlight(j.QueueTaskID)
			if err != nil {
				c.log.Warnw("reconcile could not inspect queue task", "job", j.ID, "err", err)
				continue
			}
			if inFlight {
				continue // dispatched & waiting, just slow
			}
		}
		c.redispatch(ctx, j)
	}
}

func (c *Service) reconcileRunning(ctx context.Context) {
	jobs, err := c.db.Jobs(ctx, &structs.Query{
		Limit:    500,
		Statuses: []structs.Status{structs.RUNNING},
	})
	if err != nil {
		c.log.Warnw("reconcile running query failed", "err", err)
		return
	}

	now := timeNow()
	grace := int64(c.opts.DispatchGrace.Seconds())
	for _, j := range jobs {
		if now > j.StartedAt+int64(c.opts.MaxJobRuntime.Seconds()) {
			// overran the runtime limit; murder it
			if j.QueueTaskID != "" {
				c.qu.Kill(j.QueueTaskID)
			}
			c.forceFail(ctx, j, fmt.Sprintf("exceeded maximum processing duration %s", c.opts.MaxJobRuntime))
			continue
		}
		if j.UpdatedAt > now-grace || j.QueueTaskID == "" {
			continue
		}
		inFlight, err := c.qu.InFlight(j.QueueTaskID)
		if err != nil {
			c.log.Warnw("reconcile could not inspect queue task", "job", j.ID, "err", err)
			continue
		}
		if inFlight {
			continue
		}
		// the queue no longer holds the task but no outcome arrived: the
		// worker died mid-run. Requeue (bounded) so another worker retries.
		c.requeueRunning(ctx, j)
	}
}

// redispatch re-enqueues a PENDING job, or fails it once the attempt bound
// is spent.
func (c *Service) redispatch(ctx context.Context, job *structs.Job) {
	if job.Attempts >= c.opts.MaxDispatchAttempts {
		c.forceFail(ctx, job, fmt.Sprintf("gave up after %d dispatch attempts", job.Attempts))
		return
	}
	err := c.dispatch(ctx, job)
	if err != nil {
		c.log.Warnw("reconcile re-dispatch failed", "job", job.ID, "err", err)
		return
	}
	c.log.Infow("reconcile re-dispatched job", "job", job.ID, "attempts", job.Attempts)
}

// requeueRunning pushes a lost RUNNING job back to PENDING for another
// dispatch, or fails it once the attempt bound is spent.
func (c *Service) requeueRunning(ctx context.Context, job *structs.Job) {
	if job.Attempts >= c.opts.MaxDispatchAttempts {
		c.forceFail(ctx, job, fmt.Sprintf("worker lost, gave up after %d attempts", job.Attempts))
		return
	}
	pending := structs.PENDING
	started := int64(0)
	altered, err := c.db.TransitionJob(ctx, job.ID, []structs.Status{structs.RUNNING}, utils.NewRandomID(), &database.JobUpdate{
		Status:    &pending,
		StartedAt: &started,
	})
	if err != nil || altered == 0 {
		// an outcome beat us to it; last writer wins and that's fine
		return
	}
	c.log.Infow("reconcile requeued lost job", "job", job.ID, "attempts", job.Attempts)
}

// forceFail reports a FAILED outcome on behalf of a worker that can't.
func (c *Service) forceFail(ctx context.Context, job *structs.Job, detail string) {
	err := c.ReportOutcome(ctx, job.ID, &structs.Outcome{
		Status:      structs.FAILED,
		ErrorDetail: fmt.Sprintf("%v: %s", errors.ErrEngine, detail),
	})
	if err != nil {
		c.log.Warnw("reconcile force-fail failed", "job", job.ID, "err", err)
		return
	}
	c.log.Infow("reconcile failed stuck job", "job", job.ID, "detail", detail)
}
