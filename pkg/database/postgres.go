package database

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minesim/minesim/pkg/structs"
)

const jobTable = "job"

const jobColumns = `id, status, etag, attempts, submitted_at, started_at, completed_at, expires_at, updated_at,
input_log_path, input_config_path, output_path, error_detail, callback_url, queue_task_id, notified`

// Postgres is a job repository implementation that uses postgres.
type Postgres struct {
	opts *Options
	pool *pgxpool.Pool
}

// NewPostgres returns a new Postgres database connection.
func NewPostgres(opts *Options) (*Postgres, error) {
	opts.setDefaults()
	opts.URL = strings.Replace(opts.URL, "$"+opts.UsernameEnvVar, os.Getenv(opts.UsernameEnvVar), 1)
	opts.URL = strings.Replace(opts.URL, "$"+opts.PasswordEnvVar, os.Getenv(opts.PasswordEnvVar), 1)
	pool, err := pgxpool.New(context.Background(), opts.URL)
	return &Postgres{pool: pool, opts: opts}, err
}

// Close shuts down the database connection.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// InsertJob inserts a single job record.
func (p *Postgres) InsertJob(ctx context.Context, j *structs.Job) error {
	qstr, args := toJobSqlArgs(1, j)
	qstr = fmt.Sprintf(`INSERT INTO %s (%s) VALUES %s;`, jobTable, jobColumns, qstr)

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, qstr, args...)
	return err
}

// Jobs returns jobs matching the given query.
func (p *Postgres) Jobs(ctx context.Context, q *structs.Query) ([]*structs.Job, error) {
	where, args := toSqlQuery(map[string][]string{
		"id":     q.JobIDs,
		"status": statusToStrings(q.Statuses),
	}, q.ExpiresBefore, q.UpdatedBefore)
	args = append(args, q.Limit, q.Offset)

	qstr := fmt.Sprintf(`SELECT %s FROM %s %s ORDER BY submitted_at DESC LIMIT $%d OFFSET $%d;`,
		jobColumns, jobTable, where, len(args)-1, len(args),
	)

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, qstr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []*structs.Job{}
	for rows.Next() {
		j := structs.Job{}
		err = rows.Scan(
			&j.ID,
			&j.Status,
			&j.ETag,
			&j.Attempts,
			&j.SubmittedAt,
			&j.StartedAt,
			&j.CompletedAt,
			&j.ExpiresAt,
			&j.UpdatedAt,
			&j.InputLogPath,
			&j.InputConfigPath,
			&j.OutputPath,
			&j.ErrorDetail,
			&j.CallbackURL,
			&j.QueueTaskID,
			&j.Notified,
		)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, &j)
	}

	return jobs, rows.Err()
}

// UpdateJob applies upd iff the record's etag still matches.
func (p *Postgres) UpdateJob(ctx context.Context, tag *IDTag, newTag string, upd *JobUpdate) (int64, error) {
	set, args := toUpdateSql(newTag, upd)
	args = append(args, tag.ID, tag.ETag)
	qstr := fmt.Sprintf(`UPDATE %s SET %s WHERE id=$%d AND etag=$%d;`,
		jobTable, set, len(args)-1, len(args),
	)
	return p.exec(ctx, qstr, args)
}

// TransitionJob applies upd iff the record's current status is one of from.
func (p *Postgres) TransitionJob(ctx context.Context, id string, from []structs.Status, newTag string, upd *JobUpdate) (int64, error) {
	set, args := toUpdateSql(newTag, upd)

	args = append(args, id)
	where := fmt.Sprintf("id=$%d", len(args))
	if len(from) > 0 {
		in, inArgs := toSqlIn(len(args)+1, "status", statusToStrings(from))
		where = fmt.Sprintf("%s AND %s", where, in)
		args = append(args, inArgs...)
	}

	qstr := fmt.Sprintf(`UPDATE %s SET %s WHERE %s;`, jobTable, set, where)
	return p.exec(ctx, qstr, args)
}

// DeleteJobs removes the given job records.
func (p *Postgres) DeleteJobs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	in, args := toSqlIn(1, "id", ids)
	qstr := fmt.Sprintf(`DELETE FROM %s WHERE %s;`, jobTable, in)
	return p.exec(ctx, qstr, args)
}

func (p *Postgres) exec(ctx context.Context, qstr string, args []interface{}) (int64, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	info, err := conn.Exec(ctx, qstr, args...)
	if err != nil {
		return 0, err
	}
	return info.RowsAffected(), nil
}

// toUpdateSql converts a JobUpdate into a SET clause & args, always also
// bumping etag & updated_at.
func toUpdateSql(newTag string, upd *JobUpdate) (string, []interface{}) {
	set := []string{"etag=$1", "updated_at=$2"}
	args := []interface{}{newTag, timeNow()}

	add := func(col string, v interface{}) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.Attempts != nil {
		add("attempts", *upd.Attempts)
	}
	if upd.StartedAt != nil {
		add("started_at", *upd.StartedAt)
	}
	if upd.CompletedAt != nil {
		add("completed_at", *upd.CompletedAt)
	}
	if upd.ExpiresAt != nil {
		add("expires_at", *upd.ExpiresAt)
	}
	if upd.OutputPath != nil {
		add("output_path", *upd.OutputPath)
	}
	if upd.ErrorDetail != nil {
		add("error_detail", *upd.ErrorDetail)
	}
	if upd.QueueTaskID != nil {
		add("queue_task_id", *upd.QueueTaskID)
	}
	if upd.Notified != nil {
		add("notified", *upd.Notified)
	}

	return strings.Join(set, ", "), args
}

// toSqlQuery converts query data into a SQL where clause & args.
func toSqlQuery(in map[string][]string, expB, updB int64) (string, []interface{}) {
	and := []string{}
	args := []interface{}{}
	for _, k := range []string{"id", "status"} {
		v := in[k]
		if len(v) == 0 {
			continue
		}
		s, a := toSqlIn(len(args)+1, k, v)
		and = append(and, s)
		args = append(args, a...)
	}
	if expB > 0 { // expires before
		args = append(args, expB)
		and = append(and, fmt.Sprintf("expires_at <= $%d", len(args)))
	}
	if updB > 0 { // updated before
		args = append(args, updB)
		and = append(and, fmt.Sprintf("updated_at <= $%d", len(args)))
	}
	if len(and) == 0 {
		return "", args
	}
	return fmt.Sprintf("WHERE %s", strings.Join(and, " AND ")), args
}

// toSqlIn converts a list of strings into a SQL IN clause.
func toSqlIn(offset int, field string, args []string) (string, []interface{}) {
	if len(args) == 0 {
		return "", []interface{}{}
	}
	vals := []string{}
	ifargs := []interface{}{}
	for i, a := range args {
		vals = append(vals, fmt.Sprintf("$%d", i+offset))
		ifargs = append(ifargs, a)
	}
	return fmt.Sprintf("%s IN (%s)", field, strings.Join(vals, ", ")), ifargs
}

// toJobSqlArgs converts a job into a SQL values string & args (for an insert).
func toJobSqlArgs(offset int, j *structs.Job) (string, []interface{}) {
	vals := []string{}
	for i := offset; i < 16+offset; i++ {
		vals = append(vals, fmt.Sprintf("$%d", i))
	}
	if j.SubmittedAt == 0 {
		j.SubmittedAt = timeNow()
	}
	if j.UpdatedAt == 0 {
		j.UpdatedAt = j.SubmittedAt
	}
	return fmt.Sprintf("(%s)", strings.Join(vals, ", ")), []interface{}{
		j.ID,
		j.Status,
		j.ETag,
		j.Attempts,
		j.SubmittedAt,
		j.StartedAt,
		j.CompletedAt,
		j.ExpiresAt,
		j.UpdatedAt,
		j.InputLogPath,
		j.InputConfigPath,
		j.OutputPath,
		j.ErrorDetail,
		j.CallbackURL,
		j.QueueTaskID,
		j.Notified,
	}
}

// statusToStrings converts a list of statuses into a list of strings.
func statusToStrings(in []structs.Status) []string {
	if len(in) == 0 {
		return nil
	}
	out := []string{}
	for _, s := range in {
		out = append(out, string(s))
	}
	return out
}

// timeNow returns the current time in unix seconds.
var timeNow = func() int64 {
	return time.Now().Unix()
}
