package postgres

import (
	"context"

	"nva-backoffice/internal/models"
	"nva-backoffice/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AgentStore struct {
	db *gorm.DB
}

func (s *AgentStore) Create(ctx context.Context, agent *models.Agent) error {
	return translate("create agent", s.db.WithContext(ctx).Omit(clause.Associations).Create(agent).Error)
}

func (s *AgentStore) GetByID(ctx context.Context, id uint) (*models.Agent, error) {
	var agent models.Agent
	if err := s.db.WithContext(ctx).Preload("Photos").First(&agent, id).Error; err != nil {
		return nil, translate("get agent", err)
	}
	return &agent, nil
}

func (s *AgentStore) GetByUsername(ctx context.Context, username string) (*models.Agent, error) {
	var agent models.Agent
	if err := s.db.WithContext(ctx).Preload("Photos").Where("username = ?", username).First(&agent).Error; err != nil {
		return nil, translate("get agent by username", err)
	}
	return &agent, nil
}

func applyAgentFilter(q *gorm.DB, f repository.AgentFilter) *gorm.DB {
	switch {
	case f.AdminsOnly:
		q = q.Where("is_admin = ?", true)
	case !f.IncludeAdmins:
		q = q.Where("is_admin = ?", false)
	}
	if f.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	if len(f.IDs) > 0 {
		q = q.Where("id IN ?", f.IDs)
	}
	return q
}

func (s *AgentStore) List(ctx context.Context, filter repository.AgentFilter) ([]models.Agent, error) {
	agents := make([]models.Agent, 0)
	q := applyAgentFilter(s.db.WithContext(ctx).Model(&models.Agent{}), filter)
	if err := q.Preload("Photos").Order("id ASC").Find(&agents).Error; err != nil {
		return nil, translate("list agents", err)
	}
	return agents, nil
}

func (s *AgentStore) Count(ctx context.Context, filter repository.AgentFilter) (int64, error) {
	var n int64
	q := applyAgentFilter(s.db.WithContext(ctx).Model(&models.Agent{}), filter)
	if err := q.Count(&n).Error; err != nil {
		return 0, translate("count agents", err)
	}
	return n, nil
}

// Update writes the profile, flag and login columns. total_payments is owned
// by PaymentStore.CreateWithRunningTotal and is never written from here.
func (s *AgentStore) Update(ctx context.Context, agent *models.Agent) error {
	res := s.db.WithContext(ctx).Model(agent).
		Select("*").
		Omit("id", "created_at", "total_payments", clause.Associations).
		Updates(agent)
	if res.Error != nil {
		return translate("update agent", res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *AgentStore) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var presenceIDs []uint
		if err := tx.Model(&models.Presence{}).Where("agent_id = ?", id).Pluck("id", &presenceIDs).Error; err != nil {
			return translate("list agent presences", err)
		}
		if len(presenceIDs) > 0 {
			if err := tx.Where("presence_id IN ?", presenceIDs).Delete(&models.PresencePhoto{}).Error; err != nil {
				return translate("delete presence photos", err)
			}
		}

		owned := []struct {
			model any
			where string
		}{
			{&models.Presence{}, "agent_id = ?"},
			{&models.AgentPhoto{}, "agent_id = ?"},
			{&models.Payment{}, "agent_id = ?"},
			{&models.Notification{}, "recipient_id = ?"},
			{&models.NotificationRead{}, "agent_id = ?"},
			{&models.Message{}, "sender_id = ?"},
			{&models.MonthlyRanking{}, "agent_id = ?"},
			{&models.AgentAvailability{}, "agent_id = ?"},
			{&models.AgentPreference{}, "agent_id = ?"},
		}
		for _, o := range owned {
			if err := tx.Where(o.where, id).Delete(o.model).Error; err != nil {
				return translate("delete agent data", err)
			}
		}

		if err := tx.Model(&models.Notification{}).Where("sender_id = ?", id).Update("sender_id", nil).Error; err != nil {
			return translate("detach sent notifications", err)
		}
		if err := tx.Exec("DELETE FROM conversation_participants WHERE agent_id = ?", id).Error; err != nil {
			return translate("delete conversation memberships", err)
		}
		if err := tx.Exec("DELETE FROM event_agents WHERE agent_id = ?", id).Error; err != nil {
			return translate("delete event assignments", err)
		}

		res := tx.Delete(&models.Agent{}, id)
		if res.Error != nil {
			return translate("delete agent", res.Error)
		}
		if res.RowsAffected == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
}

func (s *AgentStore) ExistingIDs(ctx context.Context, ids []uint) ([]uint, error) {
	if len(ids) == 0 {
		return []uint{}, nil
	}
	var found []uint
	if err := s.db.WithContext(ctx).Model(&models.Agent{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return nil, translate("check agent ids", err)
	}
	return keepOrder(ids, found), nil
}

// keepOrder returns the unique members of want that appear in have, in the
// order of want.
func keepOrder(want, have []uint) []uint {
	present := make(map[uint]bool, len(have))
	for _, id := range have {
		present[id] = true
	}
	out := make([]uint, 0, len(have))
	for _, id := range want {
		if present[id] {
			out = append(out, id)
			present[id] = false
		}
	}
	return out
}

type PhotoStore struct {
	db *gorm.DB
}

func (s *PhotoStore) GetByID(ctx context.Context, id uint) (*models.AgentPhoto, error) {
	var photo models.AgentPhoto
	if err := s.db.WithContext(ctx).First(&photo, id).Error; err != nil {
		return nil, translate("get photo", err)
	}
	return &photo, nil
}

func (s *PhotoStore) GetByType(ctx context.Context, agentID uint, photoType string) (*models.AgentPhoto, error) {
	var photo models.AgentPhoto
	err := s.db.WithContext(ctx).Where("agent_id = ? AND photo_type = ?", agentID, photoType).First(&photo).Error
	if err != nil {
		return nil, translate("get photo by type", err)
	}
	return &photo, nil
}

func (s *PhotoStore) Save(ctx context.Context, photo *models.AgentPhoto) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "agent_id"}, {Name: "photo_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"url", "object_key", "updated_at"}),
	}).Create(photo).Error
	return translate("save photo", err)
}

func (s *PhotoStore) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.AgentPhoto{}, id)
	if res.Error != nil {
		return translate("delete photo", res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
