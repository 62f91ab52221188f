package models

import "time"

type Conversation struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Participants []Agent   `json:"participants" gorm:"many2many:conversation_participants;"`
	Messages     []Message `json:"messages,omitempty" gorm:"foreignKey:ConversationID"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (c *Conversation) HasParticipant(agentID uint) bool {
	for _, p := range c.Participants {
		if p.ID == agentID {
			return true
		}
	}
	return false
}

func (c *Conversation) ParticipantIDs() []uint {
	ids := make([]uint, 0, len(c.Participants))
	for _, p := range c.Participants {
		ids = append(ids, p.ID)
	}
	return ids
}

type Message struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	ConversationID uint      `json:"conversation_id" gorm:"not null;index"`
	SenderID       uint      `json:"sender_id" gorm:"not null;index"`
	Sender         *Agent    `json:"sender,omitempty" gorm:"foreignKey:SenderID"`
	Content        string    `json:"content" gorm:"not null"`
	IsRead         bool      `json:"is_read" gorm:"not null;default:false"`
	CreatedAt      time.Time `json:"created_at" gorm:"index"`
}
