package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chefshef/courtsched/internal/internaltypes"
	"github.com/chefshef/courtsched/internal/model"
)

// Postgres persists state in a Postgres database. The schedule is a singleton
// row; last_run and logs ride along as JSONB.
type Postgres struct {
	pool *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.MaxConnLifetime = 5 * time.Minute
	cfg.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Pool exposes the underlying pool for migrations.
func (s *Postgres) Pool() *pgxpool.Pool { return s.pool }

func (s *Postgres) LoadSchedule(ctx context.Context) (model.ScheduleRecord, error) {
	var (
		rec         model.ScheduleRecord
		runTime     *time.Time
		targetTime  *time.Time
		lastRunJSON []byte
		logsJSON    []byte
	)
	err := s.pool.QueryRow(ctx, `
SELECT run_time, target_time, retry_count, max_retries, last_run, logs
FROM schedule WHERE id = 1`).
		Scan(&runTime, &targetTime, &rec.RetryCount, &rec.MaxRetries, &lastRunJSON, &logsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return emptySchedule(), nil
	}
	if err != nil {
		return model.ScheduleRecord{}, fmt.Errorf("load schedule: %w", err)
	}
	if runTime != nil {
		rec.RunTime = *runTime
	}
	if targetTime != nil {
		rec.TargetTime = *targetTime
	}
	if len(lastRunJSON) > 0 {
		var lr model.LastRun
		if err := json.Unmarshal(lastRunJSON, &lr); err == nil {
			rec.LastRun = &lr
		}
	}
	if len(logsJSON) > 0 {
		_ = json.Unmarshal(logsJSON, &rec.Logs)
	}
	return rec, nil
}

func (s *Postgres) SaveSchedule(ctx context.Context, rec model.ScheduleRecord) error {
	var runTime, targetTime *time.Time
	if !rec.RunTime.IsZero() {
		runTime = &rec.RunTime
	}
	if !rec.TargetTime.IsZero() {
		targetTime = &rec.TargetTime
	}
	var lastRunJSON []byte
	if rec.LastRun != nil {
		b, err := json.Marshal(rec.LastRun)
		if err != nil {
			return err
		}
		lastRunJSON = b
	}
	logsJSON, err := json.Marshal(rec.Logs)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO schedule (id, run_time, target_time, retry_count, max_retries, last_run, logs, updated_at)
VALUES (1, $1, $2, $3, $4, $5, $6, now())
ON CONFLICT (id) DO UPDATE
SET run_time=$1, target_time=$2, retry_count=$3, max_retries=$4, last_run=$5, logs=$6, updated_at=now()`,
		runTime, targetTime, rec.RetryCount, rec.MaxRetries, lastRunJSON, logsJSON)
	if err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}
	return nil
}

func (s *Postgres) SaveTrigger(ctx context.Context, tr model.DeferredTrigger) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO triggers (id, target_date, target_time, trigger_at, external_job_ref, fired, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE
SET target_date=$2, target_time=$3, trigger_at=$4, external_job_ref=$5, fired=$6`,
		tr.ID, tr.TargetDate, tr.TargetTime, tr.TriggerAt, tr.ExternalJobRef, tr.Fired, tr.CreatedAt)
	if err != nil {
		return fmt.Errorf("save trigger: %w", err)
	}
	return nil
}

func (s *Postgres) GetTrigger(ctx context.Context, id string) (model.DeferredTrigger, error) {
	var tr model.DeferredTrigger
	err := s.pool.QueryRow(ctx, `
SELECT id, target_date, target_time, trigger_at, external_job_ref, fired, created_at
FROM triggers WHERE id=$1`, id).
		Scan(&tr.ID, &tr.TargetDate, &tr.TargetTime, &tr.TriggerAt, &tr.ExternalJobRef, &tr.Fired, &tr.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.DeferredTrigger{}, internaltypes.ErrNotFound
	}
	if err != nil {
		return model.DeferredTrigger{}, fmt.Errorf("get trigger: %w", err)
	}
	return tr, nil
}

func (s *Postgres) DeleteTrigger(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM triggers WHERE id=$1`, id)
	return err
}

func (s *Postgres) ListTriggers(ctx context.Context) ([]model.DeferredTrigger, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, target_date, target_time, trigger_at, external_job_ref, fired, created_at
FROM triggers WHERE NOT fired ORDER BY trigger_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list triggers: %w", err)
	}
	defer rows.Close()

	var out []model.DeferredTrigger
	for rows.Next() {
		var tr model.DeferredTrigger
		if err := rows.Scan(&tr.ID, &tr.TargetDate, &tr.TargetTime, &tr.TriggerAt, &tr.ExternalJobRef, &tr.Fired, &tr.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

func (s *Postgres) MarkTriggerFired(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE triggers SET fired=true WHERE id=$1 AND NOT fired`, id)
	if err != nil {
		return false, fmt.Errorf("mark fired: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}
