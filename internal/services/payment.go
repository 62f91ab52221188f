package services

import (
	"context"
	"errors"
	"fmt"

	"nva-backoffice/internal/models"
	"nva-backoffice/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type CreatePaymentInput struct {
	AgentID     uint
	Amount      decimal.Decimal
	WorkDays    int
	Description string
}

type PaymentTotal struct {
	AgentID      uint            `json:"agent_id"`
	TotalPayment decimal.Decimal `json:"total_payment"`
	Credits      int64           `json:"credits"`
	Debits       int64           `json:"debits"`
}

type PaymentService struct {
	store *repository.Store
	log   logrus.FieldLogger
}

func NewPaymentService(store *repository.Store, log logrus.FieldLogger) *PaymentService {
	return &PaymentService{store: store, log: log}
}

// validatePayment checks the amount as it will be stored, in cents.
func validatePayment(in CreatePaymentInput) error {
	fields := map[string]string{}
	amount := in.Amount.Round(2)
	switch {
	case !amount.Equal(in.Amount):
		fields["amount"] = "must have at most 2 decimal places"
	case amount.IsZero():
		fields["amount"] = "must not be zero"
	}
	switch {
	case in.WorkDays < 0:
		fields["work_days"] = "must not be negative"
	case amount.IsPositive() && in.WorkDays == 0:
		fields["work_days"] = "must be greater than zero for a credit"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Create posts a ledger line. The stored running total and the agent's
// total_payments both come from the same transactional ledger sum.
func (s *PaymentService) Create(ctx context.Context, in CreatePaymentInput) (*models.Payment, error) {
	if err := validatePayment(in); err != nil {
		return nil, err
	}

	// Validated above, so rounding only normalises the exponent.
	payment := &models.Payment{
		AgentID:     in.AgentID,
		Amount:      in.Amount.Round(2),
		WorkDays:    in.WorkDays,
		Description: in.Description,
	}
	if err := s.store.Payments.CreateWithRunningTotal(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("agent %w", ErrNotFound)
		}
		return nil, fmt.Errorf("create payment: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"agent_id": payment.AgentID,
		"amount":   payment.Amount.String(),
		"total":    payment.TotalPayment.String(),
	}).Info("payment posted")

	return s.Get(ctx, payment.ID)
}

func (s *PaymentService) Get(ctx context.Context, id uint) (*models.Payment, error) {
	p, err := s.store.Payments.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("payment", err)
	}
	return p, nil
}

func (s *PaymentService) List(ctx context.Context) ([]models.Payment, error) {
	return s.store.Payments.List(ctx, repository.PaymentFilter{})
}

func (s *PaymentService) ListForAgent(ctx context.Context, agentID uint) ([]models.Payment, error) {
	if _, err := s.store.Agents.GetByID(ctx, agentID); err != nil {
		return nil, notFound("agent", err)
	}
	return s.store.Payments.List(ctx, repository.PaymentFilter{AgentID: agentID})
}

// Total reports the running total of the agent's latest ledger line.
func (s *PaymentService) Total(ctx context.Context, agentID uint) (*PaymentTotal, error) {
	if _, err := s.store.Agents.GetByID(ctx, agentID); err != nil {
		return nil, notFound("agent", err)
	}

	total := &PaymentTotal{AgentID: agentID, TotalPayment: decimal.Zero}
	latest, err := s.store.Payments.Latest(ctx, agentID)
	switch {
	case err == nil:
		total.TotalPayment = latest.TotalPayment
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("latest payment: %w", err)
	}

	total.Credits, total.Debits, err = s.store.Payments.CountBySign(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("count payments: %w", err)
	}
	return total, nil
}
