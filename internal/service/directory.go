package service

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/botfleet/registry/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrServiceNotFound = domain.NotFoundError("service not found")

// DirectoryService tracks external collaborating services and their heartbeats.
type DirectoryService struct {
	store  domain.ServiceStore
	logger *zap.Logger
}

func NewDirectoryService(s domain.ServiceStore, logger *zap.Logger) *DirectoryService {
	return &DirectoryService{store: s, logger: logger}
}

func (s *DirectoryService) Register(ctx context.Context, name, rawURL, description string) (*domain.Service, error) {
	name = strings.TrimSpace(name)
	rawURL = strings.TrimSpace(rawURL)

	var problems []string
	if name == "" {
		problems = append(problems, "name is required")
	}
	if rawURL == "" {
		problems = append(problems, "url is required")
	} else if u, err := url.Parse(rawURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		problems = append(problems, "url must be an absolute http(s) URL")
	}
	if len(problems) > 0 {
		return nil, domain.NewValidationError(problems...)
	}

	svc := &domain.Service{
		Name:   name,
		URL:    rawURL,
		Status: domain.ServiceStatusActive,
	}
	if d := strings.TrimSpace(description); d != "" {
		svc.Description = &d
	}
	if err := s.store.Create(ctx, svc); err != nil {
		return nil, err
	}
	s.logger.Info("service registered", zap.String("service_id", svc.ID.String()), zap.String("name", name))
	return svc, nil
}

func (s *DirectoryService) List(ctx context.Context) ([]domain.Service, error) {
	return s.store.List(ctx)
}

// Heartbeat records a liveness ping. An empty status means active.
func (s *DirectoryService) Heartbeat(ctx context.Context, id uuid.UUID, status string) error {
	if status == "" {
		status = string(domain.ServiceStatusActive)
	}
	if !domain.ValidServiceStatus(status) {
		return domain.NewValidationError("status must be one of active, inactive")
	}
	if err := s.store.Heartbeat(ctx, id, domain.ServiceStatus(status)); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrServiceNotFound
		}
		return err
	}
	return nil
}
