package postgres

import (
	"context"
	"time"

	"nva-backoffice/internal/models"
	"nva-backoffice/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EventStore struct {
	db *gorm.DB
}

func applyEventFilter(q *gorm.DB, f repository.EventFilter) *gorm.DB {
	if f.AgentID != 0 {
		q = q.Where("events.id IN (SELECT event_id FROM event_agents WHERE agent_id = ?)", f.AgentID)
	}
	if !f.StartFrom.IsZero() {
		q = q.Where("events.start_date >= ?", f.StartFrom)
	}
	if !f.StartTo.IsZero() {
		q = q.Where("events.start_date < ?", f.StartTo)
	}
	if !f.OngoingAt.IsZero() {
		q = q.Where("events.start_date <= ? AND events.end_date >= ?", f.OngoingAt, f.OngoingAt)
	}
	return q
}

func (s *EventStore) Create(ctx context.Context, event *models.Event, agentIDs []uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(event).Error; err != nil {
			return translate("create event", err)
		}
		return replaceEventAgents(tx, event, agentIDs)
	})
}

func replaceEventAgents(tx *gorm.DB, event *models.Event, agentIDs []uint) error {
	agents, err := loadAgents(tx, agentIDs)
	if err != nil {
		return translate("load event agents", err)
	}
	if err := tx.Model(event).Association("Agents").Replace(agents); err != nil {
		return translate("assign event agents", err)
	}
	event.Agents = agents
	return nil
}

func (s *EventStore) GetByID(ctx context.Context, id uint) (*models.Event, error) {
	var event models.Event
	err := s.db.WithContext(ctx).Preload("Agents.Photos").Preload("Performance").First(&event, id).Error
	if err != nil {
		return nil, translate("get event", err)
	}
	return &event, nil
}

func (s *EventStore) List(ctx context.Context, filter repository.EventFilter) ([]models.Event, error) {
	events := make([]models.Event, 0)
	q := applyEventFilter(s.db.WithContext(ctx).Model(&models.Event{}), filter)
	if filter.NewestFirst {
		q = q.Order("events.start_date DESC")
	} else {
		q = q.Order("events.start_date ASC")
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.Preload("Agents").Preload("Performance").Find(&events).Error; err != nil {
		return nil, translate("list events", err)
	}
	return events, nil
}

func (s *EventStore) Count(ctx context.Context, filter repository.EventFilter) (int64, error) {
	var n int64
	q := applyEventFilter(s.db.WithContext(ctx).Model(&models.Event{}), filter)
	if err := q.Count(&n).Error; err != nil {
		return 0, translate("count events", err)
	}
	return n, nil
}

func (s *EventStore) Update(ctx context.Context, event *models.Event, agentIDs []uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(event).Error; err != nil {
			return translate("update event", err)
		}
		if agentIDs == nil {
			return nil
		}
		return replaceEventAgents(tx, event, agentIDs)
	})
}

func (s *EventStore) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", id).Delete(&models.EventPerformance{}).Error; err != nil {
			return translate("delete event performance", err)
		}
		if err := tx.Exec("DELETE FROM event_agents WHERE event_id = ?", id).Error; err != nil {
			return translate("delete event assignments", err)
		}
		res := tx.Delete(&models.Event{}, id)
		if res.Error != nil {
			return translate("delete event", res.Error)
		}
		if res.RowsAffected == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
}

func (s *EventStore) BusyAgentIDs(ctx context.Context, start, end time.Time) ([]uint, error) {
	ids := make([]uint, 0)
	err := s.db.WithContext(ctx).Table("event_agents").
		Joins("JOIN events ON events.id = event_agents.event_id").
		Where("events.start_date <= ? AND events.end_date >= ?", end, start).
		Distinct("event_agents.agent_id").
		Pluck("event_agents.agent_id", &ids).Error
	if err != nil {
		return nil, translate("busy agents", err)
	}
	return ids, nil
}

func (s *EventStore) DistinctAgentIDs(ctx context.Context, filter repository.EventFilter) ([]uint, error) {
	ids := make([]uint, 0)
	q := s.db.WithContext(ctx).Table("event_agents").
		Joins("JOIN events ON events.id = event_agents.event_id")
	err := applyEventFilter(q, filter).
		Distinct("event_agents.agent_id").
		Pluck("event_agents.agent_id", &ids).Error
	if err != nil {
		return nil, translate("distinct event agents", err)
	}
	return ids, nil
}

type PerformanceStore struct {
	db *gorm.DB
}

func (s *PerformanceStore) Create(ctx context.Context, perf *models.EventPerformance) error {
	return translate("create performance", s.db.WithContext(ctx).Omit(clause.Associations).Create(perf).Error)
}

func (s *PerformanceStore) GetByID(ctx context.Context, id uint) (*models.EventPerformance, error) {
	var perf models.EventPerformance
	if err := s.db.WithContext(ctx).Preload("Event").First(&perf, id).Error; err != nil {
		return nil, translate("get performance", err)
	}
	return &perf, nil
}

func (s *PerformanceStore) List(ctx context.Context, filter repository.PerformanceFilter) ([]models.EventPerformance, error) {
	perfs := make([]models.EventPerformance, 0)
	q := s.db.WithContext(ctx).Model(&models.EventPerformance{}).
		Joins("JOIN events ON events.id = event_performances.event_id")
	if filter.EventID != 0 {
		q = q.Where("event_performances.event_id = ?", filter.EventID)
	}
	if !filter.StartFrom.IsZero() {
		q = q.Where("events.start_date >= ?", filter.StartFrom)
	}
	if !filter.StartTo.IsZero() {
		q = q.Where("events.start_date < ?", filter.StartTo)
	}
	if err := q.Preload("Event").Order("events.start_date DESC").Find(&perfs).Error; err != nil {
		return nil, translate("list performances", err)
	}
	return perfs, nil
}

func (s *PerformanceStore) Update(ctx context.Context, perf *models.EventPerformance) error {
	return translate("update performance", s.db.WithContext(ctx).Omit(clause.Associations).Save(perf).Error)
}

func (s *PerformanceStore) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.EventPerformance{}, id)
	if res.Error != nil {
		return translate("delete performance", res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
