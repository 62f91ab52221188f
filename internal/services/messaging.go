package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nva-backoffice/internal/models"
	"nva-backoffice/internal/repository"
)

type ConversationSummary struct {
	ID           uint            `json:"id"`
	Participants []models.Agent  `json:"participants"`
	LastMessage  *models.Message `json:"last_message"`
	UnreadCount  int64           `json:"unread_count"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type MessagingService struct {
	store *repository.Store
}

func NewMessagingService(store *repository.Store) *MessagingService {
	return &MessagingService{store: store}
}

func (s *MessagingService) summarize(ctx context.Context, c models.Conversation, readerID uint) (ConversationSummary, error) {
	sum := ConversationSummary{ID: c.ID, Participants: c.Participants, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
	if sum.Participants == nil {
		sum.Participants = []models.Agent{}
	}
	last, err := s.store.Conversations.LastMessage(ctx, c.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return sum, fmt.Errorf("load last message: %w", err)
	}
	sum.LastMessage = last
	if sum.UnreadCount, err = s.store.Conversations.CountUnread(ctx, c.ID, readerID); err != nil {
		return sum, fmt.Errorf("count unread messages: %w", err)
	}
	return sum, nil
}

func (s *MessagingService) summaries(ctx context.Context, list []models.Conversation, readerID uint) ([]ConversationSummary, error) {
	out := make([]ConversationSummary, 0, len(list))
	for _, c := range list {
		sum, err := s.summarize(ctx, c, readerID)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, nil
}

// Conversations lists the agent's conversations, latest activity first.
func (s *MessagingService) Conversations(ctx context.Context, agentID uint) ([]ConversationSummary, error) {
	list, err := s.store.Conversations.ListForAgent(ctx, agentID, "")
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return s.summaries(ctx, list, agentID)
}

func (s *MessagingService) Search(ctx context.Context, agentID uint, query string) ([]ConversationSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, invalid("q", "is required")
	}
	list, err := s.store.Conversations.ListForAgent(ctx, agentID, query)
	if err != nil {
		return nil, fmt.Errorf("search conversations: %w", err)
	}
	return s.summaries(ctx, list, agentID)
}

// CreateConversation always includes the requester; duplicate IDs collapse.
func (s *MessagingService) CreateConversation(ctx context.Context, requesterID uint, participantIDs []uint) (*ConversationSummary, error) {
	if len(participantIDs) == 0 {
		return nil, invalid("participant_ids", "is required")
	}
	ids := []uint{requesterID}
	for _, id := range participantIDs {
		if id != requesterID && !containsID(ids, id) {
			ids = append(ids, id)
		}
	}
	existing, err := s.store.Agents.ExistingIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve participants: %w", err)
	}
	if len(existing) != len(ids) {
		var missing []string
		for _, id := range ids {
			if !containsID(existing, id) {
				missing = append(missing, fmt.Sprint(id))
			}
		}
		return nil, invalid("participant_ids", "unknown agents: "+strings.Join(missing, ", "))
	}

	c := &models.Conversation{}
	if err := s.store.Conversations.Create(ctx, c, ids); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	created, err := s.store.Conversations.GetByID(ctx, c.ID)
	if err != nil {
		return nil, notFound("conversation", err)
	}
	sum, err := s.summarize(ctx, *created, requesterID)
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

func containsID(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// conversation hides conversations the agent is not part of.
func (s *MessagingService) conversation(ctx context.Context, agentID, id uint) (*models.Conversation, error) {
	c, err := s.store.Conversations.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("conversation", err)
	}
	if !c.HasParticipant(agentID) {
		return nil, fmt.Errorf("conversation %w", ErrNotFound)
	}
	return c, nil
}

func (s *MessagingService) Conversation(ctx context.Context, agentID, id uint) (*ConversationSummary, error) {
	c, err := s.conversation(ctx, agentID, id)
	if err != nil {
		return nil, err
	}
	sum, err := s.summarize(ctx, *c, agentID)
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

// Messages returns the conversation history and marks the messages the
// reader received as read.
func (s *MessagingService) Messages(ctx context.Context, agentID, conversationID uint) ([]models.Message, error) {
	if _, err := s.conversation(ctx, agentID, conversationID); err != nil {
		return nil, err
	}
	if err := s.store.Conversations.MarkRead(ctx, conversationID, agentID); err != nil {
		return nil, fmt.Errorf("mark messages read: %w", err)
	}
	list, err := s.store.Conversations.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return list, nil
}

// Send posts a message; a sender outside the conversation is a validation
// error.
func (s *MessagingService) Send(ctx context.Context, senderID, conversationID uint, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalid("content", "is required")
	}
	if conversationID == 0 {
		return nil, invalid("conversation", "is required")
	}
	ok, err := s.store.Conversations.IsParticipant(ctx, conversationID, senderID)
	if err != nil {
		return nil, fmt.Errorf("check participant: %w", err)
	}
	if !ok {
		return nil, invalid("conversation", "sender is not a participant")
	}

	msg := &models.Message{ConversationID: conversationID, SenderID: senderID, Content: content}
	if err := s.store.Conversations.AddMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("add message: %w", err)
	}
	return s.store.Conversations.GetMessage(ctx, msg.ID)
}

func (s *MessagingService) Message(ctx context.Context, agentID, id uint) (*models.Message, error) {
	msg, err := s.store.Conversations.GetMessage(ctx, id)
	if err != nil {
		return nil, notFound("message", err)
	}
	ok, err := s.store.Conversations.IsParticipant(ctx, msg.ConversationID, agentID)
	if err != nil {
		return nil, fmt.Errorf("check participant: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("message %w", ErrNotFound)
	}
	return msg, nil
}

// DeleteMessage is reserved to the message's sender.
func (s *MessagingService) DeleteMessage(ctx context.Context, agentID, id uint) error {
	msg, err := s.store.Conversations.GetMessage(ctx, id)
	if err != nil {
		return notFound("message", err)
	}
	if msg.SenderID != agentID {
		return ErrForbidden
	}
	if err := s.store.Conversations.DeleteMessage(ctx, id); err != nil {
		return notFound("message", err)
	}
	return nil
}

func (s *MessagingService) UnreadCount(ctx context.Context, agentID uint) (int64, error) {
	n, err := s.store.Conversations.CountUnread(ctx, 0, agentID)
	if err != nil {
		return 0, fmt.Errorf("count unread messages: %w", err)
	}
	return n, nil
}
