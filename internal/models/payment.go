package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// Payment is one signed ledger line. TotalPayment is the agent's running
// total at the time the line was written and never changes afterwards.
type Payment struct {
	ID           uint            `json:"id" gorm:"primaryKey"`
	AgentID      uint            `json:"agent_id" gorm:"not null;index"`
	Agent        *Agent          `json:"agent,omitempty" gorm:"foreignKey:AgentID"`
	Amount       decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	WorkDays     int             `json:"work_days" gorm:"not null;default:0"`
	TotalPayment decimal.Decimal `json:"total_payment" gorm:"type:decimal(12,2);not null"`
	Description  string          `json:"description"`
	CreatedAt    time.Time       `json:"created_at" gorm:"index"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (p *Payment) Type() string {
	if p.Amount.IsNegative() {
		return "debit"
	}
	return "credit"
}
