package store

import (
	"context"

	"github.com/botfleet/registry/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const runColumns = `id, bot_id, run_time, processed, posted, duration, status, error_message`

type RunStore struct {
	db *pgxpool.Pool
}

func NewRunStore(db *pgxpool.Pool) *RunStore {
	return &RunStore{db: db}
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func appendRun(ctx context.Context, q querier, r *domain.Run) error {
	return q.QueryRow(ctx,
		`INSERT INTO bot_runs (bot_id, run_time, processed, posted, duration, status, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		r.BotID, r.RunTime, r.Processed, r.Posted, r.Duration, string(r.Status), r.ErrorMessage,
	).Scan(&r.ID)
}

func scanRun(row pgx.Row) (domain.Run, error) {
	var r domain.Run
	var status string
	err := row.Scan(&r.ID, &r.BotID, &r.RunTime, &r.Processed, &r.Posted, &r.Duration, &status, &r.ErrorMessage)
	r.Status = domain.RunStatus(status)
	return r, err
}

func (s *RunStore) Append(ctx context.Context, r *domain.Run) error {
	if err := appendRun(ctx, s.db, r); err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return wrapErr("append run", err)
	}
	return nil
}

func (s *RunStore) ListForBot(ctx context.Context, botID uuid.UUID, limit int) ([]domain.Run, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+runColumns+` FROM bot_runs
		 WHERE bot_id = $1
		 ORDER BY run_time DESC, id DESC
		 LIMIT $2`,
		botID, limit,
	)
	if err != nil {
		return nil, wrapErr("list runs", err)
	}
	return collectRuns(rows)
}

func (s *RunStore) AllForBot(ctx context.Context, botID uuid.UUID) ([]domain.Run, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+runColumns+` FROM bot_runs WHERE bot_id = $1`, botID)
	if err != nil {
		return nil, wrapErr("list all runs", err)
	}
	return collectRuns(rows)
}

func collectRuns(rows pgx.Rows) ([]domain.Run, error) {
	defer rows.Close()
	runs := []domain.Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, wrapErr("scan run", err)
		}
		runs = append(runs, r)
	}
	return runs, wrapErr("read runs", rows.Err())
}

func (s *RunStore) AggregateByBot(ctx context.Context) ([]domain.RunAggregate, error) {
	rows, err := s.db.Query(ctx,
		`SELECT bot_id, COUNT(*), COUNT(*) FILTER (WHERE status = 'success')
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
