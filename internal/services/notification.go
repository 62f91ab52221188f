package services

import (
	"context"
	"fmt"
	"strings"

	"nva-backoffice/internal/models"
	"nva-backoffice/internal/repository"

	"github.com/sirupsen/logrus"
)

type SendNotificationInput struct {
	SenderID    uint
	Title       string
	Message     string
	Date        string
	IsGlobal    bool
	RecipientID *uint
	Recipients  []uint
}

type SendResult struct {
	Notifications []models.Notification `json:"notifications"`
	SkippedIDs    []uint                `json:"skipped_ids"`
}

type NotificationService struct {
	store  *repository.Store
	pusher Pusher
	clock  Clock
	log    logrus.FieldLogger
}

func NewNotificationService(store *repository.Store, pusher Pusher, clock Clock, log logrus.FieldLogger) *NotificationService {
	if pusher == nil {
		pusher = NoopPusher{}
	}
	return &NotificationService{store: store, pusher: pusher, clock: clock, log: log}
}

// targets returns the requested recipient IDs, or nil for a global notice.
func targets(in SendNotificationInput) ([]uint, error) {
	modes := 0
	if in.IsGlobal {
		modes++
	}
	if in.RecipientID != nil {
		modes++
	}
	if len(in.Recipients) > 0 {
		modes++
	}
	if modes != 1 {
		return nil, invalid("recipients", "exactly one of is_global, recipient_id or recipients is required")
	}

	switch {
	case in.IsGlobal:
		return nil, nil
	case in.RecipientID != nil:
		return []uint{*in.RecipientID}, nil
	}
	seen := make(map[uint]bool, len(in.Recipients))
	ids := make([]uint, 0, len(in.Recipients))
	for _, id := range in.Recipients {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Send creates one global notice or one notice per resolvable recipient.
// Unknown recipients are skipped and reported; when none resolve nothing is
// created.
func (s *NotificationService) Send(ctx context.Context, in SendNotificationInput) (*SendResult, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return nil, invalid("message", "is required")
	}
	requested, err := targets(in)
	if err != nil {
		return nil, err
	}

	date := s.clock.Today()
	if in.Date != "" {
		if date, err = s.clock.Date("date", in.Date); err != nil {
			return nil, err
		}
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = models.DefaultNotificationTitle
	}
	var sender *uint
	if in.SenderID != 0 {
		id := in.SenderID
		sender = &id
	}

	result := &SendResult{SkippedIDs: []uint{}}
	var batch []*models.Notification
	if in.IsGlobal {
		batch = append(batch, &models.Notification{IsGlobal: true, Title: title, Message: message, Date: date, SenderID: sender})
	} else {
		found, err := s.store.Agents.ExistingIDs(ctx, requested)
		if err != nil {
			return nil, fmt.Errorf("resolve recipients: %w", err)
		}
		exists := make(map[uint]bool, len(found))
		for _, id := range found {
			exists[id] = true
		}
		for _, id := range requested {
			if !exists[id] {
				result.SkippedIDs = append(result.SkippedIDs, id)
				continue
			}
			recipient := id
			batch = append(batch, &models.Notification{RecipientID: &recipient, Title: title, Message: message, Date: date, SenderID: sender})
		}
		if len(batch) == 0 {
			return nil, fmt.Errorf("recipients %w", ErrNotFound)
		}
	}

	if err := s.store.Notifications.Create(ctx, batch...); err != nil {
		return nil, fmt.Errorf("create notifications: %w", err)
	}

	result.Notifications = make([]models.Notification, 0, len(batch))
	for _, n := range batch {
		if err := s.pusher.Push(ctx, n); err != nil {
			s.log.WithError(err).WithField("notification_id", n.ID).Warn("push notification failed")
		}
		result.Notifications = append(result.Notifications, *n)
	}
	s.log.WithFields(logrus.Fields{
		"global":  in.IsGlobal,
		"created": len(batch),
		"skipped": len(result.SkippedIDs),
	}).Info("notifications sent")
	return result, nil
}

// List returns everything for admins; agents get their own and global
// notices, with global read state taken from their receipts.
func (s *NotificationService) List(ctx context.Context, actor Actor) ([]models.Notification, error) {
	if actor.IsAdmin {
		return s.store.Notifications.List(ctx, repository.NotificationFilter{All: true})
	}
	list, err := s.store.Notifications.List(ctx, repository.NotificationFilter{RecipientID: actor.ID})
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	read, err := s.store.Notifications.ReadGlobalIDs(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("load read receipts: %w", err)
	}
	for i := range list {
		if list[i].IsGlobal {
			list[i].IsRead = read[list[i].ID]
		}
	}
	return list, nil
}

func (s *NotificationService) Get(ctx context.Context, actor Actor, id uint) (*models.Notification, error) {
	n, err := s.store.Notifications.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("notification", err)
	}
	if actor.IsAdmin {
		return n, nil
	}
	if !n.VisibleTo(actor.ID) {
		return nil, ErrForbidden
	}
	if n.IsGlobal {
		read, err := s.store.Notifications.ReadGlobalIDs(ctx, actor.ID)
		if err != nil {
			return nil, fmt.Errorf("load read receipts: %w", err)
		}
		n.IsRead = read[n.ID]
	}
	return n, nil
}

// Delete is allowed to admins and to the recipient of a targeted notice.
func (s *NotificationService) Delete(ctx context.Context, actor Actor, id uint) error {
	n, err := s.store.Notifications.GetByID(ctx, id)
	if err != nil {
		return notFound("notification", err)
	}
	if !actor.IsAdmin && (n.RecipientID == nil || *n.RecipientID != actor.ID) {
		return ErrForbidden
	}
	if err := s.store.Notifications.Delete(ctx, id); err != nil {
		return notFound("notification", err)
	}
	return nil
}

func (s *NotificationService) MarkRead(ctx context.Context, actor Actor, id uint) (*models.Notification, error) {
	n, err := s.store.Notifications.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("notification", err)
	}

	switch {
	case n.IsGlobal && !actor.IsAdmin:
		if err := s.store.Notifications.AddReadReceipt(ctx, id, actor.ID); err != nil {
			return nil, fmt.Errorf("record read receipt: %w", err)
		}
		n.IsRead = true
		return n, nil
	case actor.IsAdmin || (n.RecipientID != nil && *n.RecipientID == actor.ID):
		if err := s.store.Notifications.MarkRead(ctx, id); err != nil {
			return nil, notFound("notification", err)
		}
		n.IsRead = true
		return n, nil
	}
	return nil, ErrForbidden
}

func (s *NotificationService) UnreadCount(ctx context.Context, agentID uint) (int64, error) {
	n, err := s.store.Notifications.CountUnread(ctx, agentID)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}
