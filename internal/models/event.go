package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventStatusUpcoming  = "upcoming"
	EventStatusOngoing   = "ongoing"
	EventStatusCompleted = "completed"
)

type Event struct {
	ID          uint              `json:"id" gorm:"primaryKey"`
	Location    string            `json:"location" gorm:"size:255;not null"`
	CompanyName string            `json:"company_name" gorm:"size:255;not null;index"`
	EventCode   string            `json:"event_code" gorm:"size:50;uniqueIndex;not null"`
	StartDate   time.Time         `json:"start_date" gorm:"not null;index"`
	EndDate     time.Time         `json:"end_date" gorm:"not null"`
	Agents      []Agent           `json:"agents,omitempty" gorm:"many2many:event_agents;"`
	Performance *EventPerformance `json:"performance,omitempty" gorm:"foreignKey:EventID"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (e *Event) Status(now time.Time) string {
	switch {
	case e.StartDate.After(now):
		return EventStatusUpcoming
	case e.EndDate.Before(now):
		return EventStatusCompleted
	}
	return EventStatusOngoing
}

// Overlaps reports whether the event intersects the closed range [start, end].
func (e *Event) Overlaps(start, end time.Time) bool {
	return !e.StartDate.After(end) && !e.EndDate.Before(start)
}

func (e *Event) HasAgent(agentID uint) bool {
	for _, a := range e.Agents {
		if a.ID == agentID {
			return true
		}
	}
	return false
}

type EventPerformance struct {
	ID                 uint            `json:"id" gorm:"primaryKey"`
	EventID            uint            `json:"event_id" gorm:"uniqueIndex;not null"`
	Revenue            decimal.Decimal `json:"revenue" gorm:"type:decimal(12,2);not null;default:0"`
	ProductsSold       int             `json:"products_sold" gorm:"not null;default:0"`
	ClientSatisfaction int             `json:"client_satisfaction" gorm:"not null;default:0"` // 0 means not rated
	Notes              string          `json:"notes"`
	Event              *Event          `json:"event,omitempty" gorm:"foreignKey:EventID"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}
