// Package memory is a map-backed implementation of the repository contracts.
// It mirrors the ordering and error semantics of the postgres package and is
// used by service and handler tests.
package memory

import (
	"sort"
	"sync"
	"time"

	"nva-backoffice/internal/models"
	"nva-backoffice/internal/repository"
)

type state struct {
	mu     sync.Mutex
	nextID uint
	now    func() time.Time

	agents         map[uint]models.Agent
	photos         map[uint]models.AgentPhoto
	events         map[uint]models.Event
	eventAgents    map[uint][]uint
	performances   map[uint]models.EventPerformance
	presences      map[uint]models.Presence
	presencePhotos map[uint]models.PresencePhoto
	payments       map[uint]models.Payment
	notifications  map[uint]models.Notification
	receipts       map[[2]uint]time.Time
	conversations  map[uint]models.Conversation
	participants   map[uint][]uint
	messages       map[uint]models.Message
	rankings       map[string][]models.MonthlyRanking
	analyses       map[string]models.AIAnalysis
	availability   map[uint]models.AgentAvailability
	preferences    map[uint]models.AgentPreference
}

// NewStore returns an empty store. now stamps created/updated times; nil
// means time.Now.
func NewStore(now func() time.Time) *repository.Store {
	if now == nil {
		now = time.Now
	}
	s := &state{
		now:            now,
		agents:         map[uint]models.Agent{},
		photos:         map[uint]models.AgentPhoto{},
		events:         map[uint]models.Event{},
		eventAgents:    map[uint][]uint{},
		performances:   map[uint]models.EventPerformance{},
		presences:      map[uint]models.Presence{},
		presencePhotos: map[uint]models.PresencePhoto{},
		payments:       map[uint]models.Payment{},
		notifications:  map[uint]models.Notification{},
		receipts:       map[[2]uint]time.Time{},
		conversations:  map[uint]models.Conversation{},
		participants:   map[uint][]uint{},
		messages:       map[uint]models.Message{},
		rankings:       map[string][]models.MonthlyRanking{},
		analyses:       map[string]models.AIAnalysis{},
		availability:   map[uint]models.AgentAvailability{},
		preferences:    map[uint]models.AgentPreference{},
	}
	return &repository.Store{
		Agents:        &agentRepo{s},
		Photos:        &photoRepo{s},
		Events:        &eventRepo{s},
		Performances:  &performanceRepo{s},
		Presences:     &presenceRepo{s},
		Payments:      &paymentRepo{s},
		Notifications: &notificationRepo{s},
		Conversations: &conversationRepo{s},
		Rankings:      &rankingRepo{s},
		Analyses:      &analysisRepo{s},
		Agenda:        &agendaRepo{s},
	}
}

func (s *state) id() uint {
	s.nextID++
	return s.nextID
}

func (s *state) stamp(created *time.Time, updated *time.Time) {
	now := s.now()
	if created != nil && created.IsZero() {
		*created = now
	}
	if updated != nil {
		*updated = now
	}
}

func sortedKeys[V any](m map[uint]V) []uint {
	keys := make([]uint, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func contains(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func remove(ids []uint, id uint) []uint {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// agentWithPhotos must be called with the lock held.
func (s *state) agentWithPhotos(id uint) (models.Agent, bool) {
	a, ok := s.agents[id]
	if !ok {
		return models.Agent{}, false
	}
	a.Photos = []models.AgentPhoto{}
	for _, pid := range sortedKeys(s.photos) {
		if p := s.photos[pid]; p.AgentID == id {
			a.Photos = append(a.Photos, p)
		}
	}
	return a, true
}

func (s *state) agentPtr(id uint) *models.Agent {
	a, ok := s.agentWithPhotos(id)
	if !ok {
		return nil
	}
	return &a
}
