package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidewire/newsharvest/internal/pipeline"
)

// JobStore persists scheduler jobs. One row per job; the last cycle result is
// kept as jsonb.
type JobStore struct {
	pool  querier
	table string
}

// NewJobStore constructs a store over an existing pool.
func NewJobStore(pool querier, table string) (*JobStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := checkTable(table, "jobs")
	if err != nil {
		return nil, err
	}
	return &JobStore{pool: pool, table: table}, nil
}

// UpsertJob inserts the job or replaces the existing row wholesale.
func (s *JobStore) UpsertJob(ctx context.Context, job pipeline.Job) error {
	if job.ID == "" {
		return fmt.Errorf("job id is required")
	}
	resultJSON, err := marshalResult(job.LastResult)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id, source, kind, trigger_spec, next_run_at, misfire_grace_seconds,
	coalesce_fires, max_instances, state, paused, last_result, last_error, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
) ON CONFLICT (id) DO UPDATE SET
	source = EXCLUDED.source,
	kind = EXCLUDED.kind,
	trigger_spec = EXCLUDED.trigger_spec,
	next_run_at = EXCLUDED.next_run_at,
	misfire_grace_seconds = EXCLUDED.misfire_grace_seconds,
	coalesce_fires = EXCLUDED.coalesce_fires,
	max_instances = EXCLUDED.max_instances,
	state = EXCLUDED.state,
	paused = EXCLUDED.paused,
	last_result = EXCLUDED.last_result,
	last_error = EXCLUDED.last_error,
	updated_at = EXCLUDED.updated_at`, s.table)

	if _, err := s.pool.Exec(ctx, query, s.args(job, resultJSON)...); err != nil {
		return fmt.Errorf("upsert job: %w", err)
	}
	return nil
}

// UpdateJob replaces an existing row; updating an unknown job is an error.
func (s *JobStore) UpdateJob(ctx context.Context, job pipeline.Job) error {
	resultJSON, err := marshalResult(job.LastResult)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
UPDATE %s SET
	source = $2,
	kind = $3,
	trigger_spec = $4,
	next_run_at = $5,
	misfire_grace_seconds = $6,
	coalesce_fires = $7,
	max_instances = $8,
	state = $9,
	paused = $10,
	last_result = $11,
	last_error = $12,
	updated_at = $13
WHERE id = $1`, s.table)

	tag, err := s.pool.Exec(ctx, query, s.args(job, resultJSON)...)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s not found", job.ID)
	}
	return nil
}

func (s *JobStore) args(job pipeline.Job, resultJSON []byte) []any {
	return []any{
		job.ID,
		job.Source,
		string(job.Kind),
		job.TriggerSpec,
		job.NextRunAt,
		job.MisfireGrace,
		job.Coalesce,
		job.MaxInstances,
		string(job.State),
		job.Paused,
		resultJSON,
		job.LastError,
		job.UpdatedAt,
	}
}

const jobColumns = `id, source, kind, trigger_spec, next_run_at, misfire_grace_seconds,
	coalesce_fires, max_instances, state, paused, last_result, last_error, updated_at`

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(ctx context.Context, jobID string) (pipeline.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, jobColumns, s.table)
	row := s.pool.QueryRow(ctx, query, jobID)
	job, err := scanJob(row)
	if err != nil {
		return pipeline.Job{}, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return job, nil
}

// ListJobs returns all jobs sorted by ID.
func (s *JobStore) ListJobs(ctx context.Context) ([]pipeline.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY id`, jobColumns, s.table)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []pipeline.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// Health verifies the connection, the table and the row count.
func (s *JobStore) Health(ctx context.Context) pipeline.HealthReport {
	report := pipeline.HealthReport{}
	if err := s.pool.Ping(ctx); err != nil {
		report.Error = err.Error()
		return report
	}
	report.ConnectionValid = true

	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT to_regclass($1) IS NOT NULL`, s.table,
	).Scan(&exists); err != nil {
		report.Error = err.Error()
		return report
	}
	report.TableExists = exists
	if !exists {
		return report
	}

	var count int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)
	if err := s.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		report.Error = err.Error()
		return report
	}
	report.JobCount = count
	return report
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (pipeline.Job, error) {
	var (
		job        pipeline.Job
		kind       string
		state      string
		resultJSON []byte
	)
	if err := row.Scan(
		&job.ID,
		&job.Source,
		&kind,
		&job.TriggerSpec,
		&job.NextRunAt,
		&job.MisfireGrace,
		&job.Coalesce,
		&job.MaxInstances,
		&state,
		&job.Paused,
		&resultJSON,
		&job.LastError,
		&job.UpdatedAt,
	); err != nil {
		return pipeline.Job{}, err
	}
	job.Kind = pipeline.JobKind(kind)
	job.State = pipeline.JobState(state)
	if len(resultJSON) > 0 {
		var result pipeline.CycleResult
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return pipeline.Job{}, fmt.Errorf("unmarshal last_result: %w", err)
		}
		job.LastResult = &result
	}
	return job, nil
}

func marshalResult(result *pipeline.CycleResult) ([]byte, error) {
	if result == nil {
		return nil, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal last_result: %w", err)
	}
	return data, nil
}
