package models

import "time"

const (
	PresencePending  = "pending"
	PresenceApproved = "approved"
	PresenceRejected = "rejected"
)

var PresenceStatuses = []string{PresencePending, PresenceApproved, PresenceRejected}

type Presence struct {
	ID           uint            `json:"id" gorm:"primaryKey"`
	AgentID      uint            `json:"agent_id" gorm:"not null;index"`
	Agent        *Agent          `json:"agent,omitempty" gorm:"foreignKey:AgentID"`
	Timestamp    time.Time       `json:"timestamp" gorm:"not null;index"`
	Status       string          `json:"status" gorm:"size:10;not null;default:pending"`
	Latitude     *float64        `json:"latitude,omitempty"`
	Longitude    *float64        `json:"longitude,omitempty"`
	LocationName string          `json:"location_name" gorm:"size:255"`
	Notes        string          `json:"notes"`
	Photos       []PresencePhoto `json:"photos" gorm:"foreignKey:PresenceID"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type PresencePhoto struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	PresenceID uint      `json:"presence_id" gorm:"not null;index"`
	URL        string    `json:"url" gorm:"not null"`
	ObjectKey  string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}
