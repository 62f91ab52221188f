package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nva-backoffice/internal/models"
	"nva-backoffice/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// EventView is an event with its status resolved against the clock.
type EventView struct {
	models.Event
	Status     string `json:"status"`
	AgentCount int    `json:"agent_count"`
}

type EventInput struct {
	Location    *string
	CompanyName *string
	EventCode   *string
	StartDate   *time.Time
	EndDate     *time.Time
	AgentIDs    []uint
}

type PerformanceInput struct {
	EventID            *uint
	Revenue            *decimal.Decimal
	ProductsSold       *int
	ClientSatisfaction *int
	Notes              *string
}

type EventService struct {
	store *repository.Store
	clock Clock
	log   logrus.FieldLogger
}

func NewEventService(store *repository.Store, clock Clock, log logrus.FieldLogger) *EventService {
	return &EventService{store: store, clock: clock, log: log}
}

func (s *EventService) view(e models.Event) EventView {
	return EventView{Event: e, Status: e.Status(s.clock.now()), AgentCount: len(e.Agents)}
}

func (s *EventService) views(events []models.Event) []EventView {
	out := make([]EventView, 0, len(events))
	for _, e := range events {
		out = append(out, s.view(e))
	}
	return out
}

func (s *EventService) List(ctx context.Context) ([]EventView, error) {
	events, err := s.store.Events.List(ctx, repository.EventFilter{NewestFirst: true})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return s.views(events), nil
}

// Mine lists the events the agent is assigned to.
func (s *EventService) Mine(ctx context.Context, agentID uint) ([]EventView, error) {
	events, err := s.store.Events.List(ctx, repository.EventFilter{AgentID: agentID, NewestFirst: true})
	if err != nil {
		return nil, fmt.Errorf("list agent events: %w", err)
	}
	return s.views(events), nil
}

func (s *EventService) Get(ctx context.Context, id uint) (*EventView, error) {
	e, err := s.store.Events.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("event", err)
	}
	v := s.view(*e)
	return &v, nil
}

func (s *EventService) resolveAgents(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	existing, err := s.store.Agents.ExistingIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("resolve agents: %w", err)
	}
	found := make(map[uint]bool, len(existing))
	for _, id := range existing {
		found[id] = true
	}
	var missing []string
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, fmt.Sprint(id))
		}
	}
	if len(missing) > 0 {
		return invalid("agent_ids", "unknown agents: "+strings.Join(missing, ", "))
	}
	return nil
}

func applyEvent(e *models.Event, in EventInput) error {
	if in.Location != nil {
		e.Location = strings.TrimSpace(*in.Location)
	}
	if in.CompanyName != nil {
		e.CompanyName = strings.TrimSpace(*in.CompanyName)
	}
	if in.EventCode != nil {
		e.EventCode = strings.TrimSpace(*in.EventCode)
	}
	if in.StartDate != nil {
		e.StartDate = *in.StartDate
	}
	if in.EndDate != nil {
		e.EndDate = *in.EndDate
	}

	fields := map[string]string{}
	if e.Location == "" {
		fields["location"] = "is required"
	}
	if e.CompanyName == "" {
		fields["company_name"] = "is required"
	}
	if e.EventCode == "" {
		fields["event_code"] = "is required"
	}
	switch {
	case e.StartDate.IsZero():
		fields["start_date"] = "is required"
	case e.EndDate.IsZero():
		fields["end_date"] = "is required"
	case !e.EndDate.After(e.StartDate):
		fields["end_date"] = "must be after start_date"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func eventWriteError(err error) error {
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return fmt.Errorf("event code already exists: %w", ErrConflict)
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("event %w", ErrNotFound)
	}
	return fmt.Errorf("save event: %w", err)
}

func (s *EventService) Create(ctx context.Context, in EventInput) (*EventView, error) {
	event := &models.Event{}
	if err := applyEvent(event, in); err != nil {
		return nil, err
	}
	if err := s.resolveAgents(ctx, in.AgentIDs); err != nil {
		return nil, err
	}
	if err := s.store.Events.Create(ctx, event, in.AgentIDs); err != nil {
		return nil, eventWriteError(err)
	}
	s.log.WithFields(logrus.Fields{"event_id": event.ID, "event_code": event.EventCode}).Info("event created")
	return s.Get(ctx, event.ID)
}

// Update applies the given fields; AgentIDs replaces the assignments when
// non-nil.
func (s *EventService) Update(ctx context.Context, id uint, in EventInput) (*EventView, error) {
	event, err := s.store.Events.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("event", err)
	}
	if err := applyEvent(event, in); err != nil {
		return nil, err
	}
	if err := s.resolveAgents(ctx, in.AgentIDs); err != nil {
		return nil, err
	}
	if err := s.store.Events.Update(ctx, event, in.AgentIDs); err != nil {
		return nil, eventWriteError(err)
	}
	return s.Get(ctx, id)
}

func (s *EventService) Delete(ctx context.Context, id uint) error {
	if err := s.store.Events.Delete(ctx, id); err != nil {
		return notFound("event", err)
	}
	return nil
}

// AvailableAgents returns active agents with no assigned event
// intersecting the days [startDate, endDate].
func (s *EventService) AvailableAgents(ctx context.Context, rawStart, rawEnd string) ([]models.Agent, error) {
	fields := map[string]string{}
	if rawStart == "" {
		fields["start_date"] = "is required"
	}
	if rawEnd == "" {
		fields["end_date"] = "is required"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	start, err := s.clock.Date("start_date", rawStart)
	if err != nil {
		return nil, err
	}
	endDay, err := s.clock.Date("end_date", rawEnd)
	if err != nil {
		return nil, err
	}
	if endDay.Before(start) {
		return nil, invalid("end_date", "must not be before start_date")
	}
	end := endDay.AddDate(0, 0, 1).Add(-time.Nanosecond)

	busy, err := s.store.Events.BusyAgentIDs(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("find busy agents: %w", err)
	}
	taken := make(map[uint]bool, len(busy))
	for _, id := range busy {
		taken[id] = true
	}

	agents, err := s.store.Agents.List(ctx, repository.AgentFilter{ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	free := make([]models.Agent, 0, len(agents))
	for _, a := range agents {
		if !taken[a.ID] {
			free = append(free, a)
		}
	}
	return free, nil
}

func applyPerformance(p *models.EventPerformance, in PerformanceInput) error {
	if in.Revenue != nil {
		p.Revenue = in.Revenue.Round(2)
	}
	if in.ProductsSold != nil {
		p.ProductsSold = *in.ProductsSold
	}
	if in.ClientSatisfaction != nil {
		p.ClientSatisfaction = *in.ClientSatisfaction
	}
	if in.Notes != nil {
		p.Notes = *in.Notes
	}

	fields := map[string]string{}
	if p.Revenue.IsNegative() {
		fields["revenue"] = "must not be negative"
	}
	if p.ProductsSold < 0 {
		fields["products_sold"] = "must not be negative"
	}
	if p.ClientSatisfaction < 0 || p.ClientSatisfaction > 5 {
		fields["client_satisfaction"] = "must be between 0 and 5"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Performances lists event performances, optionally for one event or for
// events starting in a month.
func (s *EventService) Performances(ctx context.Context, eventID uint, rawMonth string) ([]models.EventPerformance, error) {
	filter := repository.PerformanceFilter{EventID: eventID}
	if rawMonth != "" {
		month, err := s.clock.Month(rawMonth)
		if err != nil {
			return nil, err
		}
		filter.StartFrom, filter.StartTo = month.Start(s.clock.location()), month.End(s.clock.location())
	}
	perfs, err := s.store.Performances.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list performances: %w", err)
	}
	return perfs, nil
}

func (s *EventService) Performance(ctx context.Context, id uint) (*models.EventPerformance, error) {
	p, err := s.store.Performances.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("performance", err)
	}
	return p, nil
}

func (s *EventService) CreatePerformance(ctx context.Context, in PerformanceInput) (*models.EventPerformance, error) {
	if in.EventID == nil || *in.EventID == 0 {
		return nil, invalid("event_id", "is required")
	}
	if _, err := s.store.Events.GetByID(ctx, *in.EventID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalid("event_id", "unknown event")
		}
		return nil, err
	}

	perf := &models.EventPerformance{EventID: *in.EventID, Revenue: decimal.Zero}
	if err := applyPerformance(perf, in); err != nil {
		return nil, err
	}
	if err := s.store.Performances.Create(ctx, perf); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("event already has a performance: %w", ErrConflict)
		}
		return nil, fmt.Errorf("create performance: %w", err)
	}
	return s.Performance(ctx, perf.ID)
}

// UpdatePerformance never moves a performance to another event.
func (s *EventService) UpdatePerformance(ctx context.Context, id uint, in PerformanceInput) (*models.EventPerformance, error) {
	perf, err := s.Performance(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.EventID != nil && *in.EventID != perf.EventID {
		return nil, invalid("event_id", "cannot be changed")
	}
	if err := applyPerformance(perf, in); err != nil {
		return nil, err
	}
	perf.Event = nil
	if err := s.store.Performances.Update(ctx, perf); err != nil {
		return nil, notFound("performance", err)
	}
	return s.Performance(ctx, id)
}

func (s *EventService) DeletePerformance(ctx context.Context, id uint) error {
	if err := s.store.Performances.Delete(ctx, id); err != nil {
		return notFound("performance", err)
	}
	return nil
}
