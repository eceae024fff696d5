package service

import (
	"context"
	"testing"

	"github.com/botfleet/registry/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDirectoryService_Register(t *testing.T) {
	s := NewDirectoryService(newMockServiceStore(), zap.NewNop())
	ctx := context.Background()

	svc, err := s.Register(ctx, " scraper ", "https://scraper.internal/api", "pulls feeds")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, svc.ID)
	assert.Equal(t, "scraper", svc.Name)
	assert.Equal(t, domain.ServiceStatusActive, svc.Status)
	assert.Nil(t, svc.LastPing)
	require.NotNil(t, svc.Description)
	assert.Equal(t, "pulls feeds", *svc.Description)

	svc, err = s.Register(ctx, "translator", "http://translator:8080", "")
	require.NoError(t, err)
	assert.Nil(t, svc.Description)

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestDirectoryService_RegisterValidation(t *testing.T) {
	s := NewDirectoryService(newMockServiceStore(), zap.NewNop())

	tests := []struct {
		name, svcName, url string
	}{
		{"missing name", "", "http://a"},
		{"missing url", "a", ""},
		{"relative url", "a", "/health"},
		{"unsupported scheme", "a", "ftp://files.example.com"},
		{"no host", "a", "http://"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Register(context.Background(), tt.svcName, tt.url, "")
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestDirectoryService_Heartbeat(t *testing.T) {
	store := newMockServiceStore()
	s := NewDirectoryService(store, zap.NewNop())
	ctx := context.Background()

	svc, err := s.Register(ctx, "scraper", "https://scraper.internal", "")
	require.NoError(t, err)

	require.NoError(t, s.Heartbeat(ctx, svc.ID, ""))
	got := store.services[svc.ID]
	assert.Equal(t, domain.ServiceStatusActive, got.Status)
	require.NotNil(t, got.LastPing)

	require.NoError(t, s.Heartbeat(ctx, svc.ID, "inactive"))
	assert.Equal(t, domain.ServiceStatusInactive, store.services[svc.ID].Status)

	assert.ErrorIs(t, s.Heartbeat(ctx, svc.ID, "degraded"), domain.ErrValidation)
	assert.ErrorIs(t, s.Heartbeat(ctx, uuid.New(), ""), ErrServiceNotFound)
}
