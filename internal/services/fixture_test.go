package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"nva-backoffice/internal/models"
	"nva-backoffice/internal/repository"
	"nva-backoffice/internal/repository/memory"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *repository.Store
	clock Clock
	log   *logrus.Logger
	hook  *test.Hook
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := func() time.Time { return testNow }
	log, hook := test.NewNullLogger()
	return &fixture{
		t:     t,
		ctx:   context.Background(),
		store: memory.NewStore(now),
		clock: Clock{Loc: time.UTC, Now: now},
		log:   log,
		hook:  hook,
	}
}

func (f *fixture) agent(username string, opts ...func(*models.Agent)) *models.Agent {
	f.t.Helper()
	a := &models.Agent{Username: username, FirstName: username, IsActive: true, TotalPayments: decimal.Zero}
	for _, opt := range opts {
		opt(a)
	}
	require.NoError(f.t, f.store.Agents.Create(f.ctx, a))
	return a
}

func admin(a *models.Agent)    { a.IsAdmin = true }
func inactive(a *models.Agent) { a.IsActive = false }

func day(month time.Month, d int) time.Time {
	return time.Date(2024, month, d, 9, 0, 0, 0, time.UTC)
}

func (f *fixture) event(code, company string, start time.Time, agentIDs ...uint) *models.Event {
	f.t.Helper()
	e := &models.Event{
		Location:    "Addis Ababa",
		CompanyName: company,
		EventCode:   code,
		StartDate:   start,
		EndDate:     start.Add(8 * time.Hour),
	}
	require.NoError(f.t, f.store.Events.Create(f.ctx, e, agentIDs))
	return e
}

func (f *fixture) performance(eventID uint, revenue string, products, satisfaction int) {
	f.t.Helper()
	p := &models.EventPerformance{
		EventID:            eventID,
		Revenue:            decimal.RequireFromString(revenue),
		ProductsSold:       products,
		ClientSatisfaction: satisfaction,
	}
	require.NoError(f.t, f.store.Performances.Create(f.ctx, p))
}

func (f *fixture) presences(agentID uint, at time.Time, status string, n int) {
	f.t.Helper()
	for i := 0; i < n; i++ {
		p := &models.Presence{AgentID: agentID, Timestamp: at.Add(time.Duration(i) * time.Minute)}
		require.NoError(f.t, f.store.Presences.Create(f.ctx, p))
		if status != models.PresencePending {
			require.NoError(f.t, f.store.Presences.UpdateStatus(f.ctx, p.ID, status))
		}
	}
}

func (f *fixture) performanceService() *PerformanceService {
	return NewPerformanceService(f.store, f.clock, f.log)
}

// fakeStorage keeps uploaded objects in memory.
type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}}
}

func (s *fakeStorage) Upload(_ context.Context, key string, body io.Reader, _ int64, _ string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return fmt.Sprintf("https://cdn.test/%s", key), nil
}

func (s *fakeStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

var (
	pngHeader  = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}
	jpegHeader = []byte{0xff, 0xd8, 0xff, 0xe0, 0, 0x10, 'J', 'F', 'I', 'F', 0}
)

func upload(name string, data []byte) Upload {
	return Upload{Filename: name, Size: int64(len(data)), Body: bytes.NewReader(data)}
}
