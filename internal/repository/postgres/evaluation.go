package postgres

import (
	"context"
	"time"

	"nva-backoffice/internal/models"
	"nva-backoffice/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RankingStore struct {
	db *gorm.DB
}

func (s *RankingStore) ReplaceMonth(ctx context.Context, month string, rows []models.MonthlyRanking) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		keep := make([]uint, 0, len(rows))
		for _, r := range rows {
			keep = append(keep, r.AgentID)
		}

		stale := tx.Where("month = ?", month)
		if len(keep) > 0 {
			stale = stale.Where("agent_id NOT IN ?", keep)
		}
		if err := stale.Delete(&models.MonthlyRanking{}).Error; err != nil {
			return translate("delete stale rankings", err)
		}
		if len(rows) == 0 {
			return nil
		}

		err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "agent_id"}, {Name: "month"}},
			DoUpdates: clause.AssignmentColumns([]string{"score", "rank", "calculated_at"}),
		}).Create(&rows).Error
		return translate("upsert rankings", err)
	})
}

func (s *RankingStore) ListByMonth(ctx context.Context, month string) ([]models.MonthlyRanking, error) {
	rows := make([]models.MonthlyRanking, 0)
	err := s.db.WithContext(ctx).Where("month = ?", month).
		Preload("Agent").
		Order("rank ASC, agent_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, translate("list rankings", err)
	}
	return rows, nil
}

type AnalysisStore struct {
	db *gorm.DB
}

func (s *AnalysisStore) GetByMonth(ctx context.Context, month string) (*models.AIAnalysis, error) {
	var a models.AIAnalysis
	if err := s.db.WithContext(ctx).Where("month = ?", month).First(&a).Error; err != nil {
		return nil, translate("get analysis", err)
	}
	return &a, nil
}

func (s *AnalysisStore) Upsert(ctx context.Context, analysis *models.AIAnalysis) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "month"}},
		DoUpdates: clause.AssignmentColumns([]string{"analysis", "updated_at"}),
	}).Create(analysis).Error
	return translate("upsert analysis", err)
}

type AgendaStore struct {
	db *gorm.DB
}

func (s *AgendaStore) SaveAvailability(ctx context.Context, a *models.AgentAvailability) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "agent_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_available", "note", "updated_at"}),
	}).Create(a).Error
	return translate("save availability", err)
}

func (s *AgendaStore) GetAvailability(ctx context.Context, id uint) (*models.AgentAvailability, error) {
	var a models.AgentAvailability
	if err := s.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, translate("get availability", err)
	}
	return &a, nil
}

func (s *AgendaStore) ListAvailability(ctx context.Context, agentID uint, from, to time.Time) ([]models.AgentAvailability, error) {
	list := make([]models.AgentAvailability, 0)
	q := s.db.WithContext(ctx).Where("agent_id = ?", agentID)
	if !from.IsZero() {
		q = q.Where("date >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("date < ?", to)
	}
	if err := q.Order("date ASC").Find(&list).Error; err != nil {
		return nil, translate("list availability", err)
	}
	return list, nil
}

func (s *AgendaStore) DeleteAvailability(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.AgentAvailability{}, id)
	if res.Error != nil {
		return translate("delete availability", res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *AgendaStore) GetPreference(ctx context.Context, agentID uint) (*models.AgentPreference, error) {
	var p models.AgentPreference
	if err := s.db.WithContext(ctx).Where("agent_id = ?", agentID).First(&p).Error; err != nil {
		return nil, translate("get preference", err)
	}
	return &p, nil
}

func (s *AgendaStore) SavePreference(ctx context.Context, p *models.AgentPreference) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "agent_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"preferred_locations", "preferred_event_types",
			"max_events_per_week", "max_events_per_month", "updated_at",
		}),
	}).Create(p).Error
	return translate("save preference", err)
}
