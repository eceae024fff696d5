package store

import (
	"context"

	"github.com/botfleet/registry/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ServiceStore struct {
	db *pgxpool.Pool
}

func NewServiceStore(db *pgxpool.Pool) *ServiceStore {
	return &ServiceStore{db: db}
}

func (s *ServiceStore) Create(ctx context.Context, svc *domain.Service) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO services (name, url, description, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		svc.Name, svc.URL, svc.Description, string(svc.Status),
	).Scan(&svc.ID, &svc.CreatedAt)
	return wrapErr("create service", err)
}

func (s *ServiceStore) List(ctx context.Context) ([]domain.Service, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, url, description, status, last_ping, created_at
		 FROM services ORDER BY created_at, id`)
	if err != nil {
		return nil, wrapErr("list services", err)
	}
	defer rows.Close()

	services := []domain.Service{}
	for rows.Next() {
		var svc domain.Service
		var status string
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.URL, &svc.Description, &status, &svc.LastPing, &svc.CreatedAt); err != nil {
			return nil, wrapErr("scan service", err)
		}
		svc.Status = domain.ServiceStatus(status)
		services = append(services, svc)
	}
	return services, wrapErr("list services", rows.Err())
}

func (s *ServiceStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM services`).Scan(&n)
	return n, wrapErr("count services", err)
}

func (s *ServiceStore) Heartbeat(ctx context.Context, id uuid.UUID, status domain.ServiceStatus) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE services SET status = $2, last_ping = NOW() WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return wrapErr("service heartbeat", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
