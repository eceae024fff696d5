package service

import (
	"context"
	"testing"
	"time"

	"github.com/botfleet/registry/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"", false},
		{"@every 5m", false},
		{"*/10 * * * *", false},
		{"90s", false},
		{"-1s", true},
		{"whenever", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := ParseSchedule(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewReaperService_RejectsNonPositiveThreshold(t *testing.T) {
	bs, _ := newMockStores()
	_, err := NewReaperService(bs, 0, "", zap.NewNop())
	assert.Error(t, err)
}

func TestReaperService_Sweep(t *testing.T) {
	bs, rs := newMockStores()
	bots := NewBotService(bs, rs, NewStatsService(bs, rs, newMockServiceStore()), zap.NewNop())
	ctx := context.Background()

	stuck, err := bots.Create(ctx, testConfig("stuck", "Rome"))
	require.NoError(t, err)
	fresh, err := bots.Create(ctx, testConfig("fresh", "Milan"))
	require.NoError(t, err)
	idle, err := bots.Create(ctx, testConfig("idle", "Turin"))
	require.NoError(t, err)

	_, err = bots.TriggerRun(ctx, stuck.ID)
	require.NoError(t, err)
	_, err = bots.TriggerRun(ctx, fresh.ID)
	require.NoError(t, err)

	now := time.Now()
	longAgo := now.Add(-2 * time.Hour)
	bs.bots[stuck.ID].RunStartedAt = &longAgo
	bs.bots[fresh.ID].RunStartedAt = &now
	bs.bots[idle.ID].UpdatedAt = longAgo

	// editing the config of a stuck bot does not restart its clock
	_, err = bots.Update(ctx, stuck.ID, testConfig("stuck", "Naples"))
	require.NoError(t, err)

	r, err := NewReaperService(bs, time.Hour, "@every 1m", zap.NewNop())
	require.NoError(t, err)
	r.now = func() time.Time { return now }

	ids, err := r.Sweep(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, stuck.ID, ids[0])

	got, err := bots.Get(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BotStatusError, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, StaleRunMessage, *got.ErrorMessage)

	got, err = bots.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BotStatusRunning, got.Status)

	// a reaped bot accepts a new trigger
	_, err = bots.TriggerRun(ctx, stuck.ID)
	assert.NoError(t, err)
}

func TestReaperService_StartStop(t *testing.T) {
	bs, _ := newMockStores()
	r, err := NewReaperService(bs, time.Minute, "@every 1h", zap.NewNop())
	require.NoError(t, err)

	r.Start()
	r.Start()
	r.Stop()
	r.Stop()
}
