package memory

import (
	"context"
	"sort"
	"time"

	"nva-backoffice/internal/models"
	"nva-backoffice/internal/repository"
)

type eventRepo struct{ s *state }

// hydrateEvent must be called with the lock held.
func (s *state) hydrateEvent(e models.Event) models.Event {
	e.Agents = []models.Agent{}
	for _, id := range s.eventAgents[e.ID] {
		if a, ok := s.agentWithPhotos(id); ok {
			e.Agents = append(e.Agents, a)
		}
	}
	e.Performance = nil
	for _, p := range s.performances {
		if p.EventID == e.ID {
			p := p
			p.Event = nil
			e.Performance = &p
		}
	}
	return e
}

func matchEvent(s *state, e models.Event, f repository.EventFilter) bool {
	switch {
	case f.AgentID != 0 && !contains(s.eventAgents[e.ID], f.AgentID):
		return false
	case !f.StartFrom.IsZero() && e.StartDate.Before(f.StartFrom):
		return false
	case !f.StartTo.IsZero() && !e.StartDate.Before(f.StartTo):
		return false
	case !f.OngoingAt.IsZero() && (e.StartDate.After(f.OngoingAt) || e.EndDate.Before(f.OngoingAt)):
		return false
	}
	return true
}

func (r *eventRepo) setAgents(eventID uint, agentIDs []uint) {
	ids := make([]uint, 0, len(agentIDs))
	for _, id := range agentIDs {
		if _, ok := r.s.agents[id]; ok && !contains(ids, id) {
			ids = append(ids, id)
		}
	}
	r.s.eventAgents[eventID] = ids
}

func (r *eventRepo) Create(_ context.Context, event *models.Event, agentIDs []uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, e := range r.s.events {
		if e.EventCode == event.EventCode {
			return repository.ErrDuplicate
		}
	}
	event.ID = r.s.id()
	r.s.stamp(&event.CreatedAt, &event.UpdatedAt)
	stored := *event
	stored.Agents, stored.Performance = nil, nil
	r.s.events[event.ID] = stored
	r.setAgents(event.ID, agentIDs)
	*event = r.s.hydrateEvent(stored)
	return nil
}

func (r *eventRepo) GetByID(_ context.Context, id uint) (*models.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	e = r.s.hydrateEvent(e)
	return &e, nil
}

func (r *eventRepo) filtered(filter repository.EventFilter) []models.Event {
	out := make([]models.Event, 0)
	for _, id := range sortedKeys(r.s.events) {
		if e := r.s.events[id]; matchEvent(r.s, e, filter) {
			out = append(out, r.s.hydrateEvent(e))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if filter.NewestFirst {
			return out[i].StartDate.After(out[j].StartDate)
		}
		return out[i].StartDate.Before(out[j].StartDate)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

func (r *eventRepo) List(_ context.Context, filter repository.EventFilter) ([]models.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.filtered(filter), nil
}

func (r *eventRepo) Count(_ context.Context, filter repository.EventFilter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	filter.Limit = 0
	return int64(len(r.filtered(filter))), nil
}

func (r *eventRepo) Update(_ context.Context, event *models.Event, agentIDs []uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.events[event.ID]; !ok {
		return repository.ErrNotFound
	}
	for id, e := range r.s.events {
		if id != event.ID && e.EventCode == event.EventCode {
			return repository.ErrDuplicate
		}
	}
	r.s.stamp(nil, &event.UpdatedAt)
	stored := *event
	stored.Agents, stored.Performance = nil, nil
	r.s.events[event.ID] = stored
	if agentIDs != nil {
		r.setAgents(event.ID, agentIDs)
	}
	*event = r.s.hydrateEvent(stored)
	return nil
}

func (r *eventRepo) Delete(_ context.Context, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.events[id]; !ok {
		return repository.ErrNotFound
	}
	for pid, p := range r.s.performances {
		if p.EventID == id {
			delete(r.s.performances, pid)
		}
	}
	delete(r.s.eventAgents, id)
	delete(r.s.events, id)
	return nil
}

func (r *eventRepo) BusyAgentIDs(_ context.Context, start, end time.Time) ([]uint, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]uint, 0)
	for _, e := range r.s.events {
		if !e.Overlaps(start, end) {
			continue
		}
		for _, id := range r.s.eventAgents[e.ID] {
			if !contains(out, id) {
				out = append(out, id)
			}
		}
	}
	return out, nil
}

func (r *eventRepo) DistinctAgentIDs(_ context.Context, filter repository.EventFilter) ([]uint, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]uint, 0)
	for _, e := range r.s.events {
		if !matchEvent(r.s, e, filter) {
			continue
		}
		for _, id := range r.s.eventAgents[e.ID] {
			if !contains(out, id) {
				out = append(out, id)
			}
		}
	}
	return out, nil
}

type performanceRepo struct{ s *state }

func (r *performanceRepo) withEvent(p models.EventPerformance) models.EventPerformance {
	if e, ok := r.s.events[p.EventID]; ok {
		e.Agents, e.Performance = nil, nil
		p.Event = &e
	}
	return p
}

func (r *performanceRepo) Create(_ context.Context, perf *models.EventPerformance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.events[perf.EventID]; !ok {
		return repository.ErrNotFound
	}
	for _, p := range r.s.performances {
		if p.EventID == perf.EventID {
			return repository.ErrDuplicate
		}
	}
	perf.ID = r.s.id()
	r.s.stamp(&perf.CreatedAt, &perf.UpdatedAt)
	stored := *perf
	stored.Event = nil
	r.s.performances[perf.ID] = stored
	return nil
}

func (r *performanceRepo) GetByID(_ context.Context, id uint) (*models.EventPerformance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.performances[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p = r.withEvent(p)
	return &p, nil
}

func (r *performanceRepo) List(_ context.Context, filter repository.PerformanceFilter) ([]models.EventPerformance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]models.EventPerformance, 0)
	for _, id := range sortedKeys(r.s.performances) {
		p := r.s.performances[id]
		e, ok := r.s.events[p.EventID]
		switch {
		case !ok:
			continue
		case filter.EventID != 0 && p.EventID != filter.EventID:
			continue
		case !filter.StartFrom.IsZero() && e.StartDate.Before(filter.StartFrom):
			continue
		case !filter.StartTo.IsZero() && !e.StartDate.Before(filter.StartTo):
			continue
		}
		out = append(out, r.withEvent(p))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Event.StartDate.After(out[j].Event.StartDate)
	})
	return out, nil
}

func (r *performanceRepo) Update(_ context.Context, perf *models.EventPerformance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.performances[perf.ID]; !ok {
		return repository.ErrNotFound
	}
	for id, p := range r.s.performances {
		if id != perf.ID && p.EventID == perf.EventID {
			return repository.ErrDuplicate
		}
	}
	r.s.stamp(nil, &perf.UpdatedAt)
	stored := *perf
	stored.Event = nil
	r.s.performances[perf.ID] = stored
	return nil
}

func (r *performanceRepo) Delete(_ context.Context, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.performances[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.performances, id)
	return nil
}
