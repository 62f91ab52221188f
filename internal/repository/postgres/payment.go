package postgres

import (
	"context"
	"time"

	"nva-backoffice/internal/models"
	"nva-backoffice/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentStore struct {
	db *gorm.DB
}

func (s *PaymentStore) CreateWithRunningTotal(ctx context.Context, payment *models.Payment) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var agent models.Agent
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&agent, payment.AgentID).Error
		if err != nil {
			return translate("lock agent", err)
		}

		var prior decimal.Decimal
		row := tx.Model(&models.Payment{}).
			Select("COALESCE(SUM(amount), 0)").
			Where("agent_id = ?", payment.AgentID).
			Row()
		if err := row.Scan(&prior); err != nil {
			return translate("sum payments", err)
		}

		payment.TotalPayment = prior.Add(payment.Amount)
		if err := tx.Omit(clause.Associations).Create(payment).Error; err != nil {
			return translate("create payment", err)
		}
		err = tx.Model(&models.Agent{}).Where("id = ?", payment.AgentID).
			Update("total_payments", payment.TotalPayment).Error
		return translate("update agent total", err)
	})
}

func (s *PaymentStore) GetByID(ctx context.Context, id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.WithContext(ctx).Preload("Agent").First(&payment, id).Error; err != nil {
		return nil, translate("get payment", err)
	}
	return &payment, nil
}

func (s *PaymentStore) List(ctx context.Context, filter repository.PaymentFilter) ([]models.Payment, error) {
	payments := make([]models.Payment, 0)
	q := s.db.WithContext(ctx).Model(&models.Payment{})
	if filter.AgentID != 0 {
		q = q.Where("agent_id = ?", filter.AgentID)
	}
	if !filter.Since.IsZero() {
		q = q.Where("created_at >= ?", filter.Since)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.Preload("Agent").Order("created_at DESC, id DESC").Find(&payments).Error; err != nil {
		return nil, translate("list payments", err)
	}
	return payments, nil
}

func (s *PaymentStore) Latest(ctx context.Context, agentID uint) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.WithContext(ctx).Where("agent_id = ?", agentID).Order("created_at DESC, id DESC").First(&payment).Error
	if err != nil {
		return nil, translate("latest payment", err)
	}
	return &payment, nil
}

func (s *PaymentStore) CountBySign(ctx context.Context, agentID uint) (int64, int64, error) {
	var credits, debits int64
	base := s.db.WithContext(ctx).Model(&models.Payment{}).Where("agent_id = ?", agentID)
	if err := base.Session(&gorm.Session{}).Where("amount > 0").Count(&credits).Error; err != nil {
		return 0, 0, translate("count credits", err)
	}
	if err := base.Session(&gorm.Session{}).Where("amount < 0").Count(&debits).Error; err != nil {
		return 0, 0, translate("count debits", err)
	}
	return credits, debits, nil
}

func (s *PaymentStore) SumPositive(ctx context.Context) (decimal.Decimal, error) {
	var sum decimal.Decimal
	row := s.db.WithContext(ctx).Model(&models.Payment{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("amount > 0").
		Row()
	if err := row.Scan(&sum); err != nil {
		return decimal.Zero, translate("sum payments", err)
	}
	return sum, nil
}

func (s *PaymentStore) DistinctAgentIDs(ctx context.Context, since time.Time) ([]uint, error) {
	ids := make([]uint, 0)
	err := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("created_at >= ?", since).
		Distinct("agent_id").
		Pluck("agent_id", &ids).Error
	if err != nil {
		return nil, translate("distinct payment agents", err)
	}
	return ids, nil
}
