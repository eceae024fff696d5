package sqlite

import (
	"context"
	"database/sql"

	"github.com/botfleet/registry/internal/domain"
	"github.com/google/uuid"
)

const runColumns = `id, bot_id, run_time, processed, posted, duration, status, error_message`

type RunStore struct {
	db *sql.DB
}

func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

func appendRun(ctx context.Context, q execer, r *domain.Run) error {
	r.ID = uuid.New()
	_, err := q.ExecContext(ctx,
		`INSERT INTO bot_runs (id, bot_id, run_time, processed, posted, duration, status, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.BotID.String(), formatTime(r.RunTime), r.Processed, r.Posted, r.Duration,
		string(r.Status), nullableString(r.ErrorMessage),
	)
	return err
}

func (s *RunStore) Append(ctx context.Context, r *domain.Run) error {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM bots WHERE id = ?)`, r.BotID.String(),
	).Scan(&exists); err != nil {
		return wrapErr("append run", err)
	}
	if !exists {
		return ErrNotFound
	}
	return wrapErr("append run", appendRun(ctx, s.db, r))
}

func (s *RunStore) ListForBot(ctx context.Context, botID uuid.UUID, limit int) ([]domain.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM bot_runs
		 WHERE bot_id = ?
		 ORDER BY run_time DESC, rowid DESC
		 LIMIT ?`,
		botID.String(), limit,
	)
	if err != nil {
		return nil, wrapErr("list runs", err)
	}
	return collectRuns(rows)
}

func (s *RunStore) AllForBot(ctx context.Context, botID uuid.UUID) ([]domain.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM bot_runs WHERE bot_id = ?`, botID.String())
	if err != nil {
		return nil, wrapErr("list all runs", err)
	}
	return collectRuns(rows)
}

func collectRuns(rows *sql.Rows) ([]domain.Run, error) {
	defer rows.Close()
	runs := []domain.Run{}
	for rows.Next() {
		var (
			r       domain.Run
			runTime string
			status  string
			errMsg  sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.BotID, &runTime, &r.Processed, &r.Posted, &r.Duration, &status, &errMsg); err != nil {
			return nil, wrapErr("scan run", err)
		}
		t, err := parseTime(runTime)
		if err != nil {
			return nil, wrapErr("parse run time", err)
		}
		r.RunTime = t
		r.Status = domain.RunStatus(status)
		r.ErrorMessage = nullString(errMsg)
		runs = append(runs, r)
	}
	return runs, wrapErr("read runs", rows.Err())
}

func (s *RunStore) AggregateByBot(ctx context.Context) ([]domain.RunAggregate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT bot_id, COUNT(*), SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END)
		 FROM bot_runs
		 GROUP BY bot_id`)
	if err != nil {
		return nil, wrapErr("aggregate runs", err)
	}
	defer rows.Close()

	aggs := []domain.RunAggregate{}
	for rows.Next() {
		var a domain.RunAggregate
		if err := rows.Scan(&a.BotID, &a.TotalRuns, &a.SuccessfulRuns); err != nil {
			return nil, wrapErr("scan run aggregate", err)
		}
		aggs = append(aggs, a)
	}
	return aggs, wrapErr("aggregate runs", rows.Err())
}
