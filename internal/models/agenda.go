package models

import (
	"strings"
	"time"
)

const (
	DefaultMaxEventsPerWeek  = 5
	DefaultMaxEventsPerMonth = 20
)

type AgentAvailability struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	AgentID     uint      `json:"agent_id" gorm:"not null;uniqueIndex:idx_availability_agent_date,priority:1"`
	Date        time.Time `json:"date" gorm:"type:date;not null;uniqueIndex:idx_availability_agent_date,priority:2"`
	IsAvailable bool      `json:"is_available" gorm:"not null;default:true"`
	Note        string    `json:"note" gorm:"size:255"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type AgentPreference struct {
	ID                  uint      `json:"id" gorm:"primaryKey"`
	AgentID             uint      `json:"agent_id" gorm:"uniqueIndex;not null"`
	PreferredLocations  string    `json:"preferred_locations"`
	PreferredEventTypes string    `json:"preferred_event_types"`
	MaxEventsPerWeek    int       `json:"max_events_per_week" gorm:"not null;default:5"`
	MaxEventsPerMonth   int       `json:"max_events_per_month" gorm:"not null;default:20"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// SplitList turns a comma separated preference field into trimmed values.
func SplitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
