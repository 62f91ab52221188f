package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"nva-backoffice/internal/models"
	"nva-backoffice/internal/repository"
)

type notificationRepo struct{ s *state }

func (r *notificationRepo) hydrate(n models.Notification) models.Notification {
	n.Recipient = nil
	if n.RecipientID != nil {
		n.Recipient = r.s.agentPtr(*n.RecipientID)
	}
	return n
}

func (r *notificationRepo) Create(_ context.Context, notifications ...*models.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, n := range notifications {
		n.ID = r.s.id()
		r.s.stamp(&n.CreatedAt, &n.UpdatedAt)
		if n.Title == "" {
			n.Title = models.DefaultNotificationTitle
		}
		stored := *n
		stored.Recipient = nil
		r.s.notifications[n.ID] = stored
	}
	return nil
}

func (r *notificationRepo) GetByID(_ context.Context, id uint) (*models.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n, ok := r.s.notifications[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	n = r.hydrate(n)
	return &n, nil
}

func (r *notificationRepo) List(_ context.Context, filter repository.NotificationFilter) ([]models.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]models.Notification, 0)
	for _, id := range sortedKeys(r.s.notifications) {
		n := r.s.notifications[id]
		if filter.All || n.VisibleTo(filter.RecipientID) {
			out = append(out, r.hydrate(n))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *notificationRepo) Delete(_ context.Context, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.notifications[id]; !ok {
		return repository.ErrNotFound
	}
	for key := range r.s.receipts {
		if key[0] == id {
			delete(r.s.receipts, key)
		}
	}
	delete(r.s.notifications, id)
	return nil
}

func (r *notificationRepo) MarkRead(_ context.Context, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n, ok := r.s.notifications[id]
	if !ok {
		return repository.ErrNotFound
	}
	n.IsRead = true
	r.s.stamp(nil, &n.UpdatedAt)
	r.s.notifications[id] = n
	return nil
}

func (r *notificationRepo) AddReadReceipt(_ context.Context, notificationID, agentID uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := [2]uint{notificationID, agentID}
	if _, ok := r.s.receipts[key]; !ok {
		r.s.receipts[key] = r.s.now()
	}
	return nil
}

func (r *notificationRepo) ReadGlobalIDs(_ context.Context, agentID uint) (map[uint]bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	read := map[uint]bool{}
	for key := range r.s.receipts {
		if key[1] == agentID {
			read[key[0]] = true
		}
	}
	return read, nil
}

func (r *notificationRepo) CountUnread(_ context.Context, agentID uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for _, note := range r.s.notifications {
		switch {
		case agentID == 0:
			if !note.IsRead {
				n++
			}
		case note.RecipientID != nil && *note.RecipientID == agentID:
			if !note.IsRead {
				n++
			}
		case note.IsGlobal:
			if _, ok := r.s.receipts[[2]uint{note.ID, agentID}]; !ok {
				n++
			}
		}
	}
	return n, nil
}

type conversationRepo struct{ s *state }

func (r *conversationRepo) hydrate(c models.Conversation) models.Conversation {
	c.Participants = []models.Agent{}
	for _, id := range r.s.participants[c.ID] {
		if a, ok := r.s.agentWithPhotos(id); ok {
			c.Participants = append(c.Participants, a)
		}
	}
	c.Messages = nil
	return c
}

func (r *conversationRepo) Create(_ context.Context, conversation *models.Conversation, participantIDs []uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	conversation.ID = r.s.id()
	r.s.stamp(&conversation.CreatedAt, &conversation.UpdatedAt)
	ids := make([]uint, 0, len(participantIDs))
	for _, id := range participantIDs {
		if _, ok := r.s.agents[id]; ok && !contains(ids, id) {
			ids = append(ids, id)
		}
	}
	r.s.participants[conversation.ID] = ids
	stored := *conversation
	stored.Participants, stored.Messages = nil, nil
	r.s.conversations[conversation.ID] = stored
	*conversation = r.hydrate(stored)
	return nil
}

func (r *conversationRepo) GetByID(_ context.Context, id uint) (*models.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.conversations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c = r.hydrate(c)
	return &c, nil
}

func (r *conversationRepo) ListForAgent(_ context.Context, agentID uint, query string) ([]models.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]models.Conversation, 0)
	for _, id := range sortedKeys(r.s.conversations) {
		if !contains(r.s.participants[id], agentID) {
			continue
		}
		c := r.hydrate(r.s.conversations[id])
		if query != "" && !anyUsernameContains(c.Participants, query) {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func anyUsernameContains(agents []models.Agent, q string) bool {
	for _, a := range agents {
		if strings.Contains(strings.ToLower(a.Username), q) {
			return true
		}
	}
	return false
}

func (r *conversationRepo) IsParticipant(_ context.Context, conversationID, agentID uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return contains(r.s.participants[conversationID], agentID), nil
}

func (r *conversationRepo) AddMessage(_ context.Context, message *models.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.conversations[message.ConversationID]
	if !ok {
		return repository.ErrNotFound
	}
	message.ID = r.s.id()
	r.s.stamp(&message.CreatedAt, nil)
	stored := *message
	stored.Sender = nil
	r.s.messages[message.ID] = stored

	c.UpdatedAt = message.CreatedAt
	r.s.conversations[c.ID] = c
	return nil
}

func (r *conversationRepo) GetMessage(_ context.Context, id uint) (*models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.messages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	m.Sender = r.s.agentPtr(m.SenderID)
	return &m, nil
}

func (r *conversationRepo) DeleteMessage(_ context.Context, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.messages[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.messages, id)
	return nil
}

func (r *conversationRepo) messagesOf(conversationID uint) []models.Message {
	out := make([]models.Message, 0)
	for _, id := range sortedKeys(r.s.messages) {
		if m := r.s.messages[id]; m.ConversationID == conversationID {
			m.Sender = r.s.agentPtr(m.SenderID)
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *conversationRepo) ListMessages(_ context.Context, conversationID uint) ([]models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.messagesOf(conversationID), nil
}

func (r *conversationRepo) LastMessage(_ context.Context, conversationID uint) (*models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	msgs := r.messagesOf(conversationID)
	if len(msgs) == 0 {
		return nil, repository.ErrNotFound
	}
	return &msgs[len(msgs)-1], nil
}

func (r *conversationRepo) MarkRead(_ context.Context, conversationID, readerID uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, m := range r.s.messages {
		if m.ConversationID == conversationID && m.SenderID != readerID && !m.IsRead {
			m.IsRead = true
			r.s.messages[id] = m
		}
	}
	return nil
}

func (r *conversationRepo) CountUnread(_ context.Context, conversationID, readerID uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for _, m := range r.s.messages {
		switch {
		case m.IsRead:
		case conversationID != 0 && m.ConversationID != conversationID:
		case readerID != 0 && (m.SenderID == readerID || !contains(r.s.participants[m.ConversationID], readerID)):
		default:
			n++
		}
	}
	return n, nil
}

type rankingRepo struct{ s *state }

func (r *rankingRepo) ReplaceMonth(_ context.Context, month string, rows []models.MonthlyRanking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing := map[uint]models.MonthlyRanking{}
	for _, row := range r.s.rankings[month] {
		existing[row.AgentID] = row
	}
	stored := make([]models.MonthlyRanking, 0, len(rows))
	for i := range rows {
		row := rows[i]
		row.Month = month
		if prev, ok := existing[row.AgentID]; ok {
			row.ID = prev.ID
		} else {
			row.ID = r.s.id()
		}
		row.Agent = nil
		rows[i].ID = row.ID
		stored = append(stored, row)
	}
	r.s.rankings[month] = stored
	return nil
}

func (r *rankingRepo) ListByMonth(_ context.Context, month string) ([]models.MonthlyRanking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]models.MonthlyRanking, 0, len(r.s.rankings[month]))
	for _, row := range r.s.rankings[month] {
		row.Agent = r.s.agentPtr(row.AgentID)
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].AgentID < out[j].AgentID
	})
	return out, nil
}

type analysisRepo struct{ s *state }

func (r *analysisRepo) GetByMonth(_ context.Context, month string) (*models.AIAnalysis, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.analyses[month]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r *analysisRepo) Upsert(_ context.Context, analysis *models.AIAnalysis) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if prev, ok := r.s.analyses[analysis.Month]; ok {
		analysis.ID = prev.ID
		analysis.CreatedAt = prev.CreatedAt
	} else {
		analysis.ID = r.s.id()
	}
	r.s.stamp(&analysis.CreatedAt, &analysis.UpdatedAt)
	r.s.analyses[analysis.Month] = *analysis
	return nil
}

type agendaRepo struct{ s *state }

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (r *agendaRepo) SaveAvailability(_ context.Context, a *models.AgentAvailability) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, existing := range r.s.availability {
		if existing.AgentID == a.AgentID && sameDay(existing.Date, a.Date) {
			a.ID = id
			a.CreatedAt = existing.CreatedAt
		}
	}
	if a.ID == 0 {
		a.ID = r.s.id()
	}
	r.s.stamp(&a.CreatedAt, &a.UpdatedAt)
	r.s.availability[a.ID] = *a
	return nil
}

func (r *agendaRepo) GetAvailability(_ context.Context, id uint) (*models.AgentAvailability, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.availability[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r *agendaRepo) ListAvailability(_ context.Context, agentID uint, from, to time.Time) ([]models.AgentAvailability, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]models.AgentAvailability, 0)
	for _, a := range r.s.availability {
		switch {
		case a.AgentID != agentID:
		case !from.IsZero() && a.Date.Before(from):
		case !to.IsZero() && !a.Date.Before(to):
		default:
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r *agendaRepo) DeleteAvailability(_ context.Context, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.availability[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.availability, id)
	return nil
}

func (r *agendaRepo) GetPreference(_ context.Context, agentID uint) (*models.AgentPreference, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.preferences[agentID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *agendaRepo) SavePreference(_ context.Context, p *models.AgentPreference) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if prev, ok := r.s.preferences[p.AgentID]; ok {
		p.ID = prev.ID
		p.CreatedAt = prev.CreatedAt
	} else {
		p.ID = r.s.id()
	}
	r.s.stamp(&p.CreatedAt, &p.UpdatedAt)
	r.s.preferences[p.AgentID] = *p
	return nil
}
