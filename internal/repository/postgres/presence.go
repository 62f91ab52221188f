package postgres

import (
	"context"

	"nva-backoffice/internal/models"
	"nva-backoffice/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PresenceStore struct {
	db *gorm.DB
}

func applyPresenceFilter(q *gorm.DB, f repository.PresenceFilter) *gorm.DB {
	if f.AgentID != 0 {
		q = q.Where("agent_id = ?", f.AgentID)
	}
	if !f.From.IsZero() {
		q = q.Where("timestamp >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("timestamp < ?", f.To)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return q
}

func (s *PresenceStore) Create(ctx context.Context, presence *models.Presence) error {
	return translate("create presence", s.db.WithContext(ctx).Omit(clause.Associations).Create(presence).Error)
}

func (s *PresenceStore) GetByID(ctx context.Context, id uint) (*models.Presence, error) {
	var presence models.Presence
	if err := s.db.WithContext(ctx).Preload("Agent").Preload("Photos").First(&presence, id).Error; err != nil {
		return nil, translate("get presence", err)
	}
	return &presence, nil
}

func (s *PresenceStore) List(ctx context.Context, filter repository.PresenceFilter) ([]models.Presence, error) {
	presences := make([]models.Presence, 0)
	q := applyPresenceFilter(s.db.WithContext(ctx).Model(&models.Presence{}), filter)
	if err := q.Preload("Agent").Preload("Photos").Order("timestamp DESC").Find(&presences).Error; err != nil {
		return nil, translate("list presences", err)
	}
	return presences, nil
}

func (s *PresenceStore) UpdateStatus(ctx context.Context, id uint, status string) error {
	res := s.db.WithContext(ctx).Model(&models.Presence{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return translate("update presence status", res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *PresenceStore) AddPhoto(ctx context.Context, photo *models.PresencePhoto) error {
	return translate("add presence photo", s.db.WithContext(ctx).Create(photo).Error)
}

func (s *PresenceStore) CountByStatus(ctx context.Context, filter repository.PresenceFilter) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	q := applyPresenceFilter(s.db.WithContext(ctx).Model(&models.Presence{}), filter)
	if err := q.Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, translate("count presences", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

func (s *PresenceStore) CountByAgentAndStatus(ctx context.Context, filter repository.PresenceFilter) ([]repository.AgentStatusCount, error) {
	rows := make([]repository.AgentStatusCount, 0)
	q := applyPresenceFilter(s.db.WithContext(ctx).Model(&models.Presence{}), filter)
	err := q.Select("agent_id, status, COUNT(*) AS count").
		Group("agent_id, status").
		Order("agent_id").
		Scan(&rows).Error
	if err != nil {
		return nil, translate("count presences by agent", err)
	}
	return rows, nil
}
