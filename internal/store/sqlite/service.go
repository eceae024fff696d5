package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/botfleet/registry/internal/domain"
	"github.com/google/uuid"
)

type ServiceStore struct {
	db *sql.DB
}

func NewServiceStore(db *sql.DB) *ServiceStore {
	return &ServiceStore{db: db}
}

func (s *ServiceStore) Create(ctx context.Context, svc *domain.Service) error {
	svc.ID = uuid.New()
	svc.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO services (id, name, url, description, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		svc.ID.String(), svc.Name, svc.URL, nullableString(svc.Description), string(svc.Status), formatTime(svc.CreatedAt),
	)
	return wrapErr("create service", err)
}

func (s *ServiceStore) List(ctx context.Context) ([]domain.Service, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, url, description, status, last_ping, created_at
		 FROM services ORDER BY created_at, rowid`)
	if err != nil {
		return nil, wrapErr("list services", err)
	}
	defer rows.Close()

	services := []domain.Service{}
	for rows.Next() {
		var (
			svc               domain.Service
			description       sql.NullString
			status, createdAt string
			lastPing          sql.NullString
		)
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.URL, &description, &status, &lastPing, &createdAt); err != nil {
			return nil, wrapErr("scan service", err)
		}
		svc.Description = nullString(description)
		svc.Status = domain.ServiceStatus(status)
		if svc.LastPing, err = parseNullTime(lastPing); err != nil {
			return nil, wrapErr("parse last ping", err)
		}
		if svc.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, wrapErr("parse created at", err)
		}
		services = append(services, svc)
	}
	return services, wrapErr("list services", rows.Err())
}

func (s *ServiceStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM services`).Scan(&n)
	return n, wrapErr("count services", err)
}

func (s *ServiceStore) Heartbeat(ctx context.Context, id uuid.UUID, status domain.ServiceStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE services SET status = ?, last_ping = ? WHERE id = ?`,
		string(status), formatTime(time.Now()), id.String(),
	)
	return affectedOne(res, err, "service heartbeat")
}
