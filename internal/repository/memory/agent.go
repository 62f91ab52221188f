package memory

import (
	"context"

	"nva-backoffice/internal/models"
	"nva-backoffice/internal/repository"
)

type agentRepo struct{ s *state }

func (r *agentRepo) Create(_ context.Context, agent *models.Agent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, a := range r.s.agents {
		if a.Username == agent.Username {
			return repository.ErrDuplicate
		}
	}
	agent.ID = r.s.id()
	r.s.stamp(&agent.CreatedAt, &agent.UpdatedAt)
	stored := *agent
	stored.Photos = nil
	r.s.agents[agent.ID] = stored
	return nil
}

func (r *agentRepo) GetByID(_ context.Context, id uint) (*models.Agent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if a := r.s.agentPtr(id); a != nil {
		return a, nil
	}
	return nil, repository.ErrNotFound
}

func (r *agentRepo) GetByUsername(_ context.Context, username string) (*models.Agent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, a := range r.s.agents {
		if a.Username == username {
			return r.s.agentPtr(id), nil
		}
	}
	return nil, repository.ErrNotFound
}

func matchAgent(a models.Agent, f repository.AgentFilter) bool {
	switch {
	case f.AdminsOnly && !a.IsAdmin:
		return false
	case !f.AdminsOnly && !f.IncludeAdmins && a.IsAdmin:
		return false
	case f.ActiveOnly && !a.IsActive:
		return false
	case len(f.IDs) > 0 && !contains(f.IDs, a.ID):
		return false
	}
	return true
}

func (r *agentRepo) List(_ context.Context, filter repository.AgentFilter) ([]models.Agent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]models.Agent, 0)
	for _, id := range sortedKeys(r.s.agents) {
		if matchAgent(r.s.agents[id], filter) {
			a, _ := r.s.agentWithPhotos(id)
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *agentRepo) Count(ctx context.Context, filter repository.AgentFilter) (int64, error) {
	list, err := r.List(ctx, filter)
	return int64(len(list)), err
}

func (r *agentRepo) Update(_ context.Context, agent *models.Agent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	prev, ok := r.s.agents[agent.ID]
	if !ok {
		return repository.ErrNotFound
	}
	for id, a := range r.s.agents {
		if id != agent.ID && a.Username == agent.Username {
			return repository.ErrDuplicate
		}
	}
	// total_payments only moves through the payment ledger
	agent.TotalPayments = prev.TotalPayments
	agent.CreatedAt = prev.CreatedAt
	r.s.stamp(nil, &agent.UpdatedAt)
	stored := *agent
	stored.Photos = nil
	r.s.agents[agent.ID] = stored
	return nil
}

func (r *agentRepo) Delete(_ context.Context, id uint) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.agents[id]; !ok {
		return repository.ErrNotFound
	}

	for pid, p := range s.presences {
		if p.AgentID == id {
			for phid, ph := range s.presencePhotos {
				if ph.PresenceID == pid {
					delete(s.presencePhotos, phid)
				}
			}
			delete(s.presences, pid)
		}
	}
	for pid, p := range s.photos {
		if p.AgentID == id {
			delete(s.photos, pid)
		}
	}
	for pid, p := range s.payments {
		if p.AgentID == id {
			delete(s.payments, pid)
		}
	}
	for nid, n := range s.notifications {
		if n.RecipientID != nil && *n.RecipientID == id {
			delete(s.notifications, nid)
			continue
		}
		if n.SenderID != nil && *n.SenderID == id {
			n.SenderID = nil
			s.notifications[nid] = n
		}
	}
	for key := range s.receipts {
		if key[1] == id {
			delete(s.receipts, key)
		}
	}
	for mid, m := range s.messages {
		if m.SenderID == id {
			delete(s.messages, mid)
		}
	}
	for cid, ids := range s.participants {
		s.participants[cid] = remove(ids, id)
	}
	for eid, ids := range s.eventAgents {
		s.eventAgents[eid] = remove(ids, id)
	}
	for month, rows := range s.rankings {
		kept := rows[:0:0]
		for _, row := range rows {
			if row.AgentID != id {
				kept = append(kept, row)
			}
		}
		s.rankings[month] = kept
	}
	for aid, a := range s.availability {
		if a.AgentID == id {
			delete(s.availability, aid)
		}
	}
	delete(s.preferences, id)
	delete(s.agents, id)
	return nil
}

func (r *agentRepo) ExistingIDs(_ context.Context, ids []uint) ([]uint, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := r.s.agents[id]; ok && !contains(out, id) {
			out = append(out, id)
		}
	}
	return out, nil
}

type photoRepo struct{ s *state }

func (r *photoRepo) GetByID(_ context.Context, id uint) (*models.AgentPhoto, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.photos[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *photoRepo) GetByType(_ context.Context, agentID uint, photoType string) (*models.AgentPhoto, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, p := range r.s.photos {
		if p.AgentID == agentID && p.PhotoType == photoType {
			p := p
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *photoRepo) Save(_ context.Context, photo *models.AgentPhoto) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, p := range r.s.photos {
		if p.AgentID == photo.AgentID && p.PhotoType == photo.PhotoType {
			photo.ID = id
			photo.CreatedAt = p.CreatedAt
		}
	}
	if photo.ID == 0 {
		photo.ID = r.s.id()
	}
	r.s.stamp(&photo.CreatedAt, &photo.UpdatedAt)
	r.s.photos[photo.ID] = *photo
	return nil
}

func (r *photoRepo) Delete(_ context.Context, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.photos[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.photos, id)
	return nil
}
