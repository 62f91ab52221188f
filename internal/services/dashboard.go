package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"nva-backoffice/internal/models"
	"nva-backoffice/internal/repository"
	"nva-backoffice/internal/utils"

	"github.com/shopspring/decimal"
)

const (
	recentLimit   = 5
	activeWindow  = 30 * 24 * time.Hour
	chartMinMonth = 8
)

type DashboardStats struct {
	TotalAgents         int64           `json:"total_agents"`
	ActiveAgents        int64           `json:"active_agents"`
	TotalEvents         int64           `json:"total_events"`
	OngoingEvents       int64           `json:"ongoing_events"`
	UpcomingEvents      int64           `json:"upcoming_events"`
	TotalPayments       decimal.Decimal `json:"total_payments"`
	PresenceRate        float64         `json:"presence_rate"`
	UnreadNotifications int64           `json:"unread_notifications"`
	UnreadMessages      int64           `json:"unread_messages"`
}

type RecentPayment struct {
	ID        uint            `json:"id"`
	AgentID   uint            `json:"agent_id"`
	Agent     string          `json:"agent"`
	Amount    decimal.Decimal `json:"amount"`
	WorkDays  int             `json:"work_days"`
	Type      string          `json:"type"`
	CreatedAt time.Time       `json:"created_at"`
}

type ChartPoint struct {
	Month  string          `json:"month"`
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

type DashboardService struct {
	store  *repository.Store
	events *EventService
	clock  Clock
}

func NewDashboardService(store *repository.Store, events *EventService, clock Clock) *DashboardService {
	return &DashboardService{store: store, events: events, clock: clock}
}

// activeAgents counts agents with an event starting in the last 30 days,
// falling back to agents paid in that window, then to every agent.
func (s *DashboardService) activeAgents(ctx context.Context, total int64) (int64, error) {
	since := s.clock.now().Add(-activeWindow)
	withEvents, err := s.store.Events.DistinctAgentIDs(ctx, repository.EventFilter{StartFrom: since})
	if err != nil {
		return 0, fmt.Errorf("agents with recent events: %w", err)
	}
	if len(withEvents) > 0 {
		return int64(len(withEvents)), nil
	}
	paid, err := s.store.Payments.DistinctAgentIDs(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("agents with recent payments: %w", err)
	}
	if len(paid) > 0 {
		return int64(len(paid)), nil
	}
	return total, nil
}

func (s *DashboardService) Stats(ctx context.Context) (*DashboardStats, error) {
	var (
		stats DashboardStats
		err   error
	)
	now := s.clock.now()

	if stats.TotalAgents, err = s.store.Agents.Count(ctx, repository.AgentFilter{}); err != nil {
		return nil, fmt.Errorf("count agents: %w", err)
	}
	if stats.ActiveAgents, err = s.activeAgents(ctx, stats.TotalAgents); err != nil {
		return nil, err
	}
	if stats.TotalEvents, err = s.store.Events.Count(ctx, repository.EventFilter{}); err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	if stats.OngoingEvents, err = s.store.Events.Count(ctx, repository.EventFilter{OngoingAt: now}); err != nil {
		return nil, fmt.Errorf("count ongoing events: %w", err)
	}
	if stats.UpcomingEvents, err = s.store.Events.Count(ctx, repository.EventFilter{StartFrom: now.Add(time.Nanosecond)}); err != nil {
		return nil, fmt.Errorf("count upcoming events: %w", err)
	}
	if stats.TotalPayments, err = s.store.Payments.SumPositive(ctx); err != nil {
		return nil, fmt.Errorf("sum payments: %w", err)
	}

	counts, err := s.store.Presences.CountByStatus(ctx, repository.PresenceFilter{})
	if err != nil {
		return nil, fmt.Errorf("count presences: %w", err)
	}
	stats.PresenceRate = presenceRate(counts[models.PresenceApproved], counts[models.PresenceRejected])

	if stats.UnreadNotifications, err = s.store.Notifications.CountUnread(ctx, 0); err != nil {
		return nil, fmt.Errorf("count unread notifications: %w", err)
	}
	if stats.UnreadMessages, err = s.store.Conversations.CountUnread(ctx, 0, 0); err != nil {
		return nil, fmt.Errorf("count unread messages: %w", err)
	}
	return &stats, nil
}

// RecentEvents returns the five latest events by start date.
func (s *DashboardService) RecentEvents(ctx context.Context) ([]EventView, error) {
	events, err := s.store.Events.List(ctx, repository.EventFilter{NewestFirst: true, Limit: recentLimit})
	if err != nil {
		return nil, fmt.Errorf("list recent events: %w", err)
	}
	return s.events.views(events), nil
}

func (s *DashboardService) RecentPayments(ctx context.Context) ([]RecentPayment, error) {
	payments, err := s.store.Payments.List(ctx, repository.PaymentFilter{Limit: recentLimit})
	if err != nil {
		return nil, fmt.Errorf("list recent payments: %w", err)
	}
	out := make([]RecentPayment, 0, len(payments))
	for _, p := range payments {
		rp := RecentPayment{
			ID:        p.ID,
			AgentID:   p.AgentID,
			Agent:     "unknown agent",
			Amount:    p.Amount,
			WorkDays:  p.WorkDays,
			Type:      p.Type(),
			CreatedAt: p.CreatedAt,
		}
		if p.Agent != nil {
			rp.Agent = p.Agent.Username
		}
		out = append(out, rp)
	}
	return out, nil
}

// PaymentChart returns the absolute net amount paid per month. With fewer
// than eight months of data the series is the eight months ending at the
// current month, zero-filled.
func (s *DashboardService) PaymentChart(ctx context.Context) ([]ChartPoint, error) {
	payments, err := s.store.Payments.List(ctx, repository.PaymentFilter{})
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return paymentChart(payments, utils.MonthOf(s.clock.now(), s.clock.location()), s.clock.location()), nil
}

func paymentChart(payments []models.Payment, current utils.Month, loc *time.Location) []ChartPoint {
	sums := map[utils.Month]decimal.Decimal{}
	for _, p := range payments {
		m := utils.MonthOf(p.CreatedAt, loc)
		sums[m] = sums[m].Add(p.Amount)
	}

	var months []utils.Month
	if len(sums) >= chartMinMonth {
		for m := range sums {
			months = append(months, m)
		}
		sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })
	} else {
		m := current
		for i := 1; i < chartMinMonth; i++ {
			m = m.Prev()
		}
		for i := 0; i < chartMinMonth; i++ {
			months = append(months, m)
			m = m.Next()
		}
	}

	points := make([]ChartPoint, 0, len(months))
	for _, m := range months {
		points = append(points, ChartPoint{
			Month:  m.String(),
			Label:  m.Month.String()[:3],
			Amount: sums[m].Abs(),
		})
	}
	return points
}
