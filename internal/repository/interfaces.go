package repository

import (
	"context"
	"errors"
	"time"

	"nva-backoffice/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Store bundles every repository the services need. The postgres and memory
// packages each provide a constructor that fills all fields.
type Store struct {
	Agents        AgentRepository
	Photos        AgentPhotoRepository
	Events        EventRepository
	Performances  PerformanceRepository
	Presences     PresenceRepository
	Payments      PaymentRepository
	Notifications NotificationRepository
	Conversations ConversationRepository
	Rankings      RankingRepository
	Analyses      AnalysisRepository
	Agenda        AgendaRepository
}

type AgentFilter struct {
	AdminsOnly    bool
	IncludeAdmins bool
	ActiveOnly    bool
	IDs           []uint
}

type AgentRepository interface {
	// Create returns ErrDuplicate when the username is taken.
	Create(ctx context.Context, agent *models.Agent) error
	// GetByID and GetByUsername preload photos.
	GetByID(ctx context.Context, id uint) (*models.Agent, error)
	GetByUsername(ctx context.Context, username string) (*models.Agent, error)
	// List orders by ID and preloads photos.
	List(ctx context.Context, filter AgentFilter) ([]models.Agent, error)
	Count(ctx context.Context, filter AgentFilter) (int64, error)
	Update(ctx context.Context, agent *models.Agent) error
	// Delete removes the agent and everything it owns in one transaction.
	Delete(ctx context.Context, id uint) error
	// ExistingIDs returns the subset of ids that belong to agents, in input order.
	ExistingIDs(ctx context.Context, ids []uint) ([]uint, error)
}

type AgentPhotoRepository interface {
	GetByID(ctx context.Context, id uint) (*models.AgentPhoto, error)
	GetByType(ctx context.Context, agentID uint, photoType string) (*models.AgentPhoto, error)
	// Save inserts the photo or replaces the row for the same (agent, type).
	Save(ctx context.Context, photo *models.AgentPhoto) error
	Delete(ctx context.Context, id uint) error
}

type EventFilter struct {
	AgentID uint
	// StartFrom is inclusive and StartTo exclusive. Zero values are unbounded.
	StartFrom time.Time
	StartTo   time.Time
	// OngoingAt selects events with start <= t <= end.
	OngoingAt   time.Time
	NewestFirst bool
	Limit       int
}

type EventRepository interface {
	// Create returns ErrDuplicate when the event code is taken.
	Create(ctx context.Context, event *models.Event, agentIDs []uint) error
	// GetByID preloads agents (with photos) and performance.
	GetByID(ctx context.Context, id uint) (*models.Event, error)
	// List preloads agents and performance.
	List(ctx context.Context, filter EventFilter) ([]models.Event, error)
	Count(ctx context.Context, filter EventFilter) (int64, error)
	// Update replaces the agent assignments when agentIDs is non-nil.
	Update(ctx context.Context, event *models.Event, agentIDs []uint) error
	Delete(ctx context.Context, id uint) error
	// BusyAgentIDs returns agents assigned to an event intersecting [start, end].
	BusyAgentIDs(ctx context.Context, start, end time.Time) ([]uint, error)
	DistinctAgentIDs(ctx context.Context, filter EventFilter) ([]uint, error)
}

type PerformanceFilter struct {
	EventID   uint
	StartFrom time.Time
	StartTo   time.Time
}

type PerformanceRepository interface {
	// Create returns ErrDuplicate when the event already has a performance.
	Create(ctx context.Context, perf *models.EventPerformance) error
	GetByID(ctx context.Context, id uint) (*models.EventPerformance, error)
	// List filters on the owning event's start date and preloads the event.
	List(ctx context.Context, filter PerformanceFilter) ([]models.EventPerformance, error)
	Update(ctx context.Context, perf *models.EventPerformance) error
	Delete(ctx context.Context, id uint) error
}

type PresenceFilter struct {
	AgentID uint
	From    time.Time
	To      time.Time
	Status  string
}

type AgentStatusCount struct {
	AgentID uint
	Status  string
	Count   int64
}

type PresenceRepository interface {
	Create(ctx context.Context, presence *models.Presence) error
	// GetByID preloads the agent and photos.
	GetByID(ctx context.Context, id uint) (*models.Presence, error)
	// List orders newest first and preloads the agent and photos.
	List(ctx context.Context, filter PresenceFilter) ([]models.Presence, error)
	UpdateStatus(ctx context.Context, id uint, status string) error
	AddPhoto(ctx context.Context, photo *models.PresencePhoto) error
	CountByStatus(ctx context.Context, filter PresenceFilter) (map[string]int64, error)
	CountByAgentAndStatus(ctx context.Context, filter PresenceFilter) ([]AgentStatusCount, error)
}

type PaymentFilter struct {
	AgentID uint
	Since   time.Time
	Limit   int
}

type PaymentRepository interface {
	// CreateWithRunningTotal locks the agent, sets payment.TotalPayment to the
	// ledger sum including this payment and stores the same value on the
	// agent. Returns ErrNotFound when the agent does not exist.
	CreateWithRunningTotal(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id uint) (*models.Payment, error)
	// List orders newest first and preloads the agent.
	List(ctx context.Context, filter PaymentFilter) ([]models.Payment, error)
	Latest(ctx context.Context, agentID uint) (*models.Payment, error)
	CountBySign(ctx context.Context, agentID uint) (credits, debits int64, err error)
	SumPositive(ctx context.Context) (decimal.Decimal, error)
	DistinctAgentIDs(ctx context.Context, since time.Time) ([]uint, error)
}

type NotificationFilter struct {
	// All ignores RecipientID and returns every notification.
	All         bool
	RecipientID uint
}

type NotificationRepository interface {
	Create(ctx context.Context, notifications ...*models.Notification) error
	GetByID(ctx context.Context, id uint) (*models.Notification, error)
	// List returns the recipient's own and global notifications, newest first.
	List(ctx context.Context, filter NotificationFilter) ([]models.Notification, error)
	Delete(ctx context.Context, id uint) error
	MarkRead(ctx context.Context, id uint) error
	// AddReadReceipt is idempotent.
	AddReadReceipt(ctx context.Context, notificationID, agentID uint) error
	ReadGlobalIDs(ctx context.Context, agentID uint) (map[uint]bool, error)
	// CountUnread counts the agent's unread notices plus global ones without a
	// receipt. agentID 0 counts every unread notification.
	CountUnread(ctx context.Context, agentID uint) (int64, error)
}

type ConversationRepository interface {
	Create(ctx context.Context, conversation *models.Conversation, participantIDs []uint) error
	// GetByID preloads participants.
	GetByID(ctx context.Context, id uint) (*models.Conversation, error)
	// ListForAgent orders by latest activity. A non-empty query keeps only
	// conversations with a participant whose username contains it.
	ListForAgent(ctx context.Context, agentID uint, query string) ([]models.Conversation, error)
	IsParticipant(ctx context.Context, conversationID, agentID uint) (bool, error)
	// AddMessage stores the message and bumps the conversation's updated_at.
	AddMessage(ctx context.Context, message *models.Message) error
	GetMessage(ctx context.Context, id uint) (*models.Message, error)
	DeleteMessage(ctx context.Context, id uint) error
	// ListMessages orders oldest first and preloads senders.
	ListMessages(ctx context.Context, conversationID uint) ([]models.Message, error)
	LastMessage(ctx context.Context, conversationID uint) (*models.Message, error)
	// MarkRead flags messages not sent by reader as read.
	MarkRead(ctx context.Context, conversationID, readerID uint) error
	// CountUnread counts unread messages addressed to reader in one
	// conversation, or in all of the reader's conversations when
	// conversationID is 0. readerID 0 counts every unread message.
	CountUnread(ctx context.Context, conversationID, readerID uint) (int64, error)
}

type RankingRepository interface {
	// ReplaceMonth makes the stored rows for month equal rows, atomically.
	ReplaceMonth(ctx context.Context, month string, rows []models.MonthlyRanking) error
	// ListByMonth orders by rank and preloads agents.
	ListByMonth(ctx context.Context, month string) ([]models.MonthlyRanking, error)
}

type AnalysisRepository interface {
	GetByMonth(ctx context.Context, month string) (*models.AIAnalysis, error)
	// Upsert creates or overwrites the row for analysis.Month.
	Upsert(ctx context.Context, analysis *models.AIAnalysis) error
}

type AgendaRepository interface {
	// SaveAvailability creates or updates the row for (agent, date).
	SaveAvailability(ctx context.Context, availability *models.AgentAvailability) error
	GetAvailability(ctx context.Context, id uint) (*models.AgentAvailability, error)
	ListAvailability(ctx context.Context, agentID uint, from, to time.Time) ([]models.AgentAvailability, error)
	DeleteAvailability(ctx context.Context, id uint) error
	GetPreference(ctx context.Context, agentID uint) (*models.AgentPreference, error)
	SavePreference(ctx context.Context, preference *models.AgentPreference) error
}
