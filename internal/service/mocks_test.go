package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/botfleet/registry/internal/domain"
	"github.com/botfleet/registry/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// mockBotStore implements domain.BotStore with the same conditional update
// semantics as the SQL stores. It shares its mutex with the run store so
// CompleteRun stays atomic.
type mockBotStore struct {
	mu   *sync.Mutex
	bots map[uuid.UUID]*domain.Bot
	runs *mockRunStore
	seq  int
}

func newMockStores() (*mockBotStore, *mockRunStore) {
	mu := &sync.Mutex{}
	rs := &mockRunStore{mu: mu, runs: make(map[uuid.UUID][]domain.Run)}
	bs := &mockBotStore{mu: mu, bots: make(map[uuid.UUID]*domain.Bot), runs: rs}
	rs.bots = bs
	return bs, rs
}

func (m *mockBotStore) Create(ctx context.Context, b *domain.Bot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	b.ID = uuid.New()
	b.CreatedAt = time.Unix(int64(m.seq), 0).UTC()
	b.UpdatedAt = b.CreatedAt
	cp := *b
	m.bots[b.ID] = &cp
	return nil
}

func (m *mockBotStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Bot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bots[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *mockBotStore) List(ctx context.Context, activeOnly bool) ([]domain.Bot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Bot{}
	for _, b := range m.bots {
		if activeOnly && !b.Config.IsActive {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *mockBotStore) UpdateConfig(ctx context.Context, id uuid.UUID, cfg domain.BotConfig) (*domain.Bot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bots[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	b.Config = cfg
	b.UpdatedAt = time.Now().UTC()
	cp := *b
	return &cp, nil
}

func (m *mockBotStore) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bots[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.bots, id)
	delete(m.runs.runs, id)
	return nil
}

func (m *mockBotStore) SetStatus(ctx context.Context, id uuid.UUID, status domain.BotStatus, errMsg *string) (*domain.Bot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bots[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if status == domain.BotStatusRunning && b.RunStartedAt == nil {
		now := time.Now().UTC()
		b.RunStartedAt = &now
	}
	if status != domain.BotStatusRunning {
		b.RunStartedAt = nil
	}
	b.Status = status
	b.ErrorMessage = errMsg
	if status != domain.BotStatusError {
		b.ErrorMessage = nil
	}
	cp := *b
	return &cp, nil
}

func (m *mockBotStore) TryStartRun(ctx context.Context, id uuid.UUID) (*domain.Bot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bots[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if b.Status == domain.BotStatusRunning {
		return nil, store.ErrConflict
	}
	now := time.Now().UTC()
	b.Status = domain.BotStatusRunning
	b.ErrorMessage = nil
	b.RunStartedAt = &now
	cp := *b
	return &cp, nil
}

func (m *mockBotStore) CompleteRun(ctx context.Context, run *domain.Run) (*domain.Bot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bots[run.BotID]
	if !ok {
		return nil, store.ErrNotFound
	}
	b.Status = run.Status.NextBotStatus()
	b.RunStartedAt = nil
	b.ErrorMessage = nil
	if b.Status == domain.BotStatusError {
		b.ErrorMessage = run.ErrorMessage
	}
	at := run.RunTime
	b.LastRun = &at
	b.TotalPosts += int64(run.Posted)
	run.ID = uuid.New()
	m.runs.runs[run.BotID] = append(m.runs.runs[run.BotID], *run)
	cp := *b
	return &cp, nil
}

func (m *mockBotStore) MarkStale(ctx context.Context, cutoff time.Time, message string) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id, b := range m.bots {
		if b.Status == domain.BotStatusRunning && b.RunStartedAt != nil && b.RunStartedAt.Before(cutoff) {
			b.Status = domain.BotStatusError
			b.RunStartedAt = nil
			msg := message
			b.ErrorMessage = &msg
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// mockRunStore keeps runs in insertion order per bot.
type mockRunStore struct {
	mu   *sync.Mutex
	runs map[uuid.UUID][]domain.Run
	bots *mockBotStore
}

func (m *mockRunStore) Append(ctx context.Context, r *domain.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bots.bots[r.BotID]; !ok {
		return store.ErrNotFound
	}
	r.ID = uuid.New()
	m.runs[r.BotID] = append(m.runs[r.BotID], *r)
	return nil
}

func (m *mockRunStore) ListForBot(ctx context.Context, botID uuid.UUID, limit int) ([]domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.runs[botID]
	out := []domain.Run{}
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (m *mockRunStore) AllForBot(ctx context.Context, botID uuid.UUID) ([]domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Run{}, m.runs[botID]...), nil
}

func (m *mockRunStore) AggregateByBot(ctx context.Context) ([]domain.RunAggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RunAggregate
	for id, runs := range m.runs {
		a := domain.RunAggregate{BotID: id, TotalRuns: len(runs)}
		for _, r := range runs {
			if r.Status == domain.RunStatusSuccess {
				a.SuccessfulRuns++
			}
		}
		out = append(out, a)
	}
	return out, nil
}

type mockServiceStore struct {
	services map[uuid.UUID]*domain.Service
}

func newMockServiceStore() *mockServiceStore {
	return &mockServiceStore{services: make(map[uuid.UUID]*domain.Service)}
}

func (m *mockServiceStore) Create(ctx context.Context, s *domain.Service) error {
	s.ID = uuid.New()
	s.CreatedAt = time.Now().UTC()
	cp := *s
	m.services[s.ID] = &cp
	return nil
}

func (m *mockServiceStore) List(ctx context.Context) ([]domain.Service, error) {
	out := []domain.Service{}
	for _, s := range m.services {
		out = append(out, *s)
	}
	return out, nil
}

func (m *mockServiceStore) Count(ctx context.Context) (int, error) {
	return len(m.services), nil
}

func (m *mockServiceStore) Heartbeat(ctx context.Context, id uuid.UUID, status domain.ServiceStatus) error {
	s, ok := m.services[id]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now().UTC()
	s.Status = status
	s.LastPing = &now
	return nil
}

// MockMessenger is a testify mock for domain.Messenger.
type MockMessenger struct {
	mock.Mock
}

func (m *MockMessenger) Send(ctx context.Context, msg domain.OutboundMessage) (*domain.Delivery, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Delivery), args.Error(1)
}

func (m *MockMessenger) Name() string {
	return "mock"
}
