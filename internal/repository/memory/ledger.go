package memory

import (
	"context"
	"sort"
	"time"

	"nva-backoffice/internal/models"
	"nva-backoffice/internal/repository"

	"github.com/shopspring/decimal"
)

type presenceRepo struct{ s *state }

func (r *presenceRepo) hydrate(p models.Presence) models.Presence {
	p.Agent = r.s.agentPtr(p.AgentID)
	p.Photos = []models.PresencePhoto{}
	for _, id := range sortedKeys(r.s.presencePhotos) {
		if ph := r.s.presencePhotos[id]; ph.PresenceID == p.ID {
			p.Photos = append(p.Photos, ph)
		}
	}
	return p
}

func matchPresence(p models.Presence, f repository.PresenceFilter) bool {
	switch {
	case f.AgentID != 0 && p.AgentID != f.AgentID:
		return false
	case !f.From.IsZero() && p.Timestamp.Before(f.From):
		return false
	case !f.To.IsZero() && !p.Timestamp.Before(f.To):
		return false
	case f.Status != "" && p.Status != f.Status:
		return false
	}
	return true
}

func (r *presenceRepo) Create(_ context.Context, presence *models.Presence) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.agents[presence.AgentID]; !ok {
		return repository.ErrNotFound
	}
	presence.ID = r.s.id()
	r.s.stamp(&presence.CreatedAt, &presence.UpdatedAt)
	if presence.Timestamp.IsZero() {
		presence.Timestamp = presence.CreatedAt
	}
	if presence.Status == "" {
		presence.Status = models.PresencePending
	}
	stored := *presence
	stored.Agent, stored.Photos = nil, nil
	r.s.presences[presence.ID] = stored
	return nil
}

func (r *presenceRepo) GetByID(_ context.Context, id uint) (*models.Presence, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.presences[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p = r.hydrate(p)
	return &p, nil
}

func (r *presenceRepo) List(_ context.Context, filter repository.PresenceFilter) ([]models.Presence, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]models.Presence, 0)
	for _, id := range sortedKeys(r.s.presences) {
		if p := r.s.presences[id]; matchPresence(p, filter) {
			out = append(out, r.hydrate(p))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (r *presenceRepo) UpdateStatus(_ context.Context, id uint, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.presences[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Status = status
	r.s.stamp(nil, &p.UpdatedAt)
	r.s.presences[id] = p
	return nil
}

func (r *presenceRepo) AddPhoto(_ context.Context, photo *models.PresencePhoto) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.presences[photo.PresenceID]; !ok {
		return repository.ErrNotFound
	}
	photo.ID = r.s.id()
	r.s.stamp(&photo.CreatedAt, nil)
	r.s.presencePhotos[photo.ID] = *photo
	return nil
}

func (r *presenceRepo) CountByStatus(_ context.Context, filter repository.PresenceFilter) (map[string]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	counts := map[string]int64{}
	for _, p := range r.s.presences {
		if matchPresence(p, filter) {
			counts[p.Status]++
		}
	}
	return counts, nil
}

func (r *presenceRepo) CountByAgentAndStatus(_ context.Context, filter repository.PresenceFilter) ([]repository.AgentStatusCount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	type key struct {
		agent  uint
		status string
	}
	counts := map[key]int64{}
	for _, p := range r.s.presences {
		if matchPresence(p, filter) {
			counts[key{p.AgentID, p.Status}]++
		}
	}
	out := make([]repository.AgentStatusCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, repository.AgentStatusCount{AgentID: k.agent, Status: k.status, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AgentID != out[j].AgentID {
			return out[i].AgentID < out[j].AgentID
		}
		return out[i].Status < out[j].Status
	})
	return out, nil
}

type paymentRepo struct{ s *state }

func (r *paymentRepo) CreateWithRunningTotal(_ context.Context, payment *models.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	agent, ok := r.s.agents[payment.AgentID]
	if !ok {
		return repository.ErrNotFound
	}
	prior := decimal.Zero
	for _, p := range r.s.payments {
		if p.AgentID == payment.AgentID {
			prior = prior.Add(p.Amount)
		}
	}

	payment.ID = r.s.id()
	r.s.stamp(&payment.CreatedAt, &payment.UpdatedAt)
	payment.TotalPayment = prior.Add(payment.Amount)
	stored := *payment
	stored.Agent = nil
	r.s.payments[payment.ID] = stored

	agent.TotalPayments = payment.TotalPayment
	r.s.stamp(nil, &agent.UpdatedAt)
	r.s.agents[agent.ID] = agent
	return nil
}

func (r *paymentRepo) GetByID(_ context.Context, id uint) (*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p.Agent = r.s.agentPtr(p.AgentID)
	return &p, nil
}

// newestFirst orders by created_at then id, both descending.
func newestFirst(list []models.Payment) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
}

func (r *paymentRepo) List(_ context.Context, filter repository.PaymentFilter) ([]models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]models.Payment, 0)
	for _, p := range r.s.payments {
		if filter.AgentID != 0 && p.AgentID != filter.AgentID {
			continue
		}
		if !filter.Since.IsZero() && p.CreatedAt.Before(filter.Since) {
			continue
		}
		p.Agent = r.s.agentPtr(p.AgentID)
		out = append(out, p)
	}
	newestFirst(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *paymentRepo) Latest(ctx context.Context, agentID uint) (*models.Payment, error) {
	list, _ := r.List(ctx, repository.PaymentFilter{AgentID: agentID, Limit: 1})
	if len(list) == 0 {
		return nil, repository.ErrNotFound
	}
	return &list[0], nil
}

func (r *paymentRepo) CountBySign(_ context.Context, agentID uint) (int64, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var credits, debits int64
	for _, p := range r.s.payments {
		if p.AgentID != agentID {
			continue
		}
		switch {
		case p.Amount.IsPositive():
			credits++
		case p.Amount.IsNegative():
			debits++
		}
	}
	return credits, debits, nil
}

func (r *paymentRepo) SumPositive(_ context.Context) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sum := decimal.Zero
	for _, p := range r.s.payments {
		if p.Amount.IsPositive() {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

func (r *paymentRepo) DistinctAgentIDs(_ context.Context, since time.Time) ([]uint, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]uint, 0)
	for _, id := range sortedKeys(r.s.payments) {
		p := r.s.payments[id]
		if !p.CreatedAt.Before(since) && !contains(out, p.AgentID) {
			out = append(out, p.AgentID)
		}
	}
	return out, nil
}
