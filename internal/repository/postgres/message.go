package postgres

import (
	"context"
	"strings"
	"time"

	"nva-backoffice/internal/models"
	"nva-backoffice/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NotificationStore struct {
	db *gorm.DB
}

func (s *NotificationStore) Create(ctx context.Context, notifications ...*models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Omit(clause.Associations).Create(notifications).Error
	return translate("create notifications", err)
}

func (s *NotificationStore) GetByID(ctx context.Context, id uint) (*models.Notification, error) {
	var n models.Notification
	if err := s.db.WithContext(ctx).Preload("Recipient").First(&n, id).Error; err != nil {
		return nil, translate("get notification", err)
	}
	return &n, nil
}

func (s *NotificationStore) List(ctx context.Context, filter repository.NotificationFilter) ([]models.Notification, error) {
	list := make([]models.Notification, 0)
	q := s.db.WithContext(ctx).Model(&models.Notification{})
	if !filter.All {
		q = q.Where("recipient_id = ? OR is_global = ?", filter.RecipientID, true)
	}
	if err := q.Preload("Recipient").Order("created_at DESC, id DESC").Find(&list).Error; err != nil {
		return nil, translate("list notifications", err)
	}
	return list, nil
}

func (s *NotificationStore) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("notification_id = ?", id).Delete(&models.NotificationRead{}).Error; err != nil {
			return translate("delete read receipts", err)
		}
		res := tx.Delete(&models.Notification{}, id)
		if res.Error != nil {
			return translate("delete notification", res.Error)
		}
		if res.RowsAffected == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
}

func (s *NotificationStore) MarkRead(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).Where("id = ?", id).Update("is_read", true)
	if res.Error != nil {
		return translate("mark notification read", res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *NotificationStore) AddReadReceipt(ctx context.Context, notificationID, agentID uint) error {
	receipt := models.NotificationRead{NotificationID: notificationID, AgentID: agentID, ReadAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&receipt).Error
	return translate("add read receipt", err)
}

func (s *NotificationStore) ReadGlobalIDs(ctx context.Context, agentID uint) (map[uint]bool, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.NotificationRead{}).
		Where("agent_id = ?", agentID).
		Pluck("notification_id", &ids).Error
	if err != nil {
		return nil, translate("list read receipts", err)
	}
	read := make(map[uint]bool, len(ids))
	for _, id := range ids {
		read[id] = true
	}
	return read, nil
}

func (s *NotificationStore) CountUnread(ctx context.Context, agentID uint) (int64, error) {
	var n int64
	q := s.db.WithContext(ctx).Model(&models.Notification{})
	if agentID == 0 {
		q = q.Where("is_read = ?", false)
	} else {
		q = q.Where(
			"(recipient_id = ? AND is_read = ?) OR (is_global = ? AND NOT EXISTS (SELECT 1 FROM notification_reads nr WHERE nr.notification_id = notifications.id AND nr.agent_id = ?))",
			agentID, false, true, agentID,
		)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, translate("count unread notifications", err)
	}
	return n, nil
}

type ConversationStore struct {
	db *gorm.DB
}

func (s *ConversationStore) Create(ctx context.Context, conversation *models.Conversation, participantIDs []uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(conversation).Error; err != nil {
			return translate("create conversation", err)
		}
		agents, err := loadAgents(tx, participantIDs)
		if err != nil {
			return translate("load participants", err)
		}
		if err := tx.Model(conversation).Association("Participants").Append(agents); err != nil {
			return translate("add participants", err)
		}
		conversation.Participants = agents
		return nil
	})
}

func (s *ConversationStore) GetByID(ctx context.Context, id uint) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.db.WithContext(ctx).Preload("Participants.Photos").First(&conv, id).Error; err != nil {
		return nil, translate("get conversation", err)
	}
	return &conv, nil
}

func (s *ConversationStore) ListForAgent(ctx context.Context, agentID uint, query string) ([]models.Conversation, error) {
	list := make([]models.Conversation, 0)
	q := s.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("conversations.id IN (SELECT conversation_id FROM conversation_participants WHERE agent_id = ?)", agentID)
	if query = strings.TrimSpace(query); query != "" {
		q = q.Where(`conversations.id IN (
			SELECT cp.conversation_id FROM conversation_participants cp
			JOIN agents a ON a.id = cp.agent_id
			WHERE a.username ILIKE ?)`, "%"+escapeLike(query)+"%")
	}
	if err := q.Preload("Participants.Photos").Order("conversations.updated_at DESC").Find(&list).Error; err != nil {
		return nil, translate("list conversations", err)
	}
	return list, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (s *ConversationStore) IsParticipant(ctx context.Context, conversationID, agentID uint) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Table("conversation_participants").
		Where("conversation_id = ? AND agent_id = ?", conversationID, agentID).
		Count(&n).Error
	if err != nil {
		return false, translate("check participant", err)
	}
	return n > 0, nil
}

func (s *ConversationStore) AddMessage(ctx context.Context, message *models.Message) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(message).Error; err != nil {
			return translate("create message", err)
		}
		res := tx.Model(&models.Conversation{}).Where("id = ?", message.ConversationID).
			Update("updated_at", message.CreatedAt)
		if res.Error != nil {
			return translate("touch conversation", res.Error)
		}
		if res.RowsAffected == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
}

func (s *ConversationStore) GetMessage(ctx context.Context, id uint) (*models.Message, error) {
	var msg models.Message
	if err := s.db.WithContext(ctx).Preload("Sender").First(&msg, id).Error; err != nil {
		return nil, translate("get message", err)
	}
	return &msg, nil
}

func (s *ConversationStore) DeleteMessage(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Message{}, id)
	if res.Error != nil {
		return translate("delete message", res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *ConversationStore) ListMessages(ctx context.Context, conversationID uint) ([]models.Message, error) {
	msgs := make([]models.Message, 0)
	err := s.db.WithContext(ctx).Where("conversation_id = ?", conversationID).
		Preload("Sender").
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, translate("list messages", err)
	}
	return msgs, nil
}

func (s *ConversationStore) LastMessage(ctx context.Context, conversationID uint) (*models.Message, error) {
	var msg models.Message
	err := s.db.WithContext(ctx).Where("conversation_id = ?", conversationID).
		Preload("Sender").
		Order("created_at DESC, id DESC").
		First(&msg).Error
	if err != nil {
		return nil, translate("last message", err)
	}
	return &msg, nil
}

func (s *ConversationStore) MarkRead(ctx context.Context, conversationID, readerID uint) error {
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conversationID, readerID, false).
		Update("is_read", true).Error
	return translate("mark messages read", err)
}

func (s *ConversationStore) CountUnread(ctx context.Context, conversationID, readerID uint) (int64, error) {
	var n int64
	q := s.db.WithContext(ctx).Model(&models.Message{}).Where("is_read = ?", false)
	if conversationID != 0 {
		q = q.Where("conversation_id = ?", conversationID)
	}
	if readerID != 0 {
		q = q.Where("sender_id <> ?", readerID).
			Where("conversation_id IN (SELECT conversation_id FROM conversation_participants WHERE agent_id = ?)", readerID)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, translate("count unread messages", err)
	}
	return n, nil
}
