package models

import "time"

const DefaultNotificationTitle = "Notification"

type Notification struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	RecipientID *uint     `json:"recipient_id,omitempty" gorm:"index"`
	Recipient   *Agent    `json:"recipient,omitempty" gorm:"foreignKey:RecipientID"`
	SenderID    *uint     `json:"sender_id,omitempty"`
	IsGlobal    bool      `json:"is_global" gorm:"not null;default:false;index"`
	Title       string    `json:"title" gorm:"size:255;not null;default:Notification"`
	Message     string    `json:"message" gorm:"not null"`
	Date        time.Time `json:"date" gorm:"type:date;not null"`
	IsRead      bool      `json:"is_read" gorm:"not null;default:false"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// VisibleTo reports whether a non-admin agent may read the notification.
func (n *Notification) VisibleTo(agentID uint) bool {
	return n.IsGlobal || (n.RecipientID != nil && *n.RecipientID == agentID)
}

// NotificationRead records that an agent read a global notification.
type NotificationRead struct {
	NotificationID uint      `json:"notification_id" gorm:"primaryKey"`
	AgentID        uint      `json:"agent_id" gorm:"primaryKey"`
	ReadAt         time.Time `json:"read_at"`
}
