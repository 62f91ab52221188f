package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nva-backoffice/internal/models"
	"nva-backoffice/internal/repository"
	"nva-backoffice/internal/utils"
)

type AgendaEvent struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	Location  string    `json:"location"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

type AgendaDay struct {
	Date        string        `json:"date"`
	Day         int           `json:"day"`
	Events      []AgendaEvent `json:"events"`
	IsAvailable bool          `json:"is_available"`
	Note        *string       `json:"note"`
	IsWeekend   bool          `json:"is_weekend"`
	IsToday     bool          `json:"is_today"`
}

type AgendaMonth struct {
	Year  int         `json:"year"`
	Month int         `json:"month"`
	Days  []AgendaDay `json:"days"`
}

type AvailabilityInput struct {
	Date        string
	IsAvailable *bool
	Note        string
}

type PreferenceInput struct {
	PreferredLocations  []string
	PreferredEventTypes []string
	MaxEventsPerWeek    *int
	MaxEventsPerMonth   *int
}

// PreferenceView exposes the stored comma separated lists as arrays.
type PreferenceView struct {
	AgentID             uint     `json:"agent_id"`
	PreferredLocations  []string `json:"preferred_locations"`
	PreferredEventTypes []string `json:"preferred_event_types"`
	MaxEventsPerWeek    int      `json:"max_events_per_week"`
	MaxEventsPerMonth   int      `json:"max_events_per_month"`
}

type AgendaService struct {
	store *repository.Store
	clock Clock
}

func NewAgendaService(store *repository.Store, clock Clock) *AgendaService {
	return &AgendaService{store: store, clock: clock}
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// Month lays out one calendar month for the agent: the events touching
// each day and the agent's declared availability. Days without a
// declaration count as available.
func (s *AgendaService) Month(ctx context.Context, agentID uint, year, month int) (*AgendaMonth, error) {
	if month < 1 || month > 12 {
		return nil, invalid("month", "must be between 1 and 12")
	}
	if year < 1 {
		return nil, invalid("year", "must be a positive integer")
	}
	loc := s.clock.location()
	m := utils.Month{Year: year, Month: time.Month(month)}
	first, next := m.Start(loc), m.End(loc)

	events, err := s.store.Events.List(ctx, repository.EventFilter{AgentID: agentID})
	if err != nil {
		return nil, fmt.Errorf("list agenda events: %w", err)
	}
	visible := make([]models.Event, 0, len(events))
	for _, e := range events {
		if e.Overlaps(first, next.Add(-time.Nanosecond)) {
			visible = append(visible, e)
		}
	}

	declared, err := s.store.Agenda.ListAvailability(ctx, agentID, first, next)
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	byDate := make(map[string]models.AgentAvailability, len(declared))
	for _, a := range declared {
		byDate[dayOf(a.Date, loc).Format(utils.DateLayout)] = a
	}

	today := s.clock.Today()
	out := &AgendaMonth{Year: year, Month: month, Days: []AgendaDay{}}
	for day := first; day.Before(next); day = day.AddDate(0, 0, 1) {
		key := day.Format(utils.DateLayout)
		d := AgendaDay{
			Date:        key,
			Day:         day.Day(),
			Events:      []AgendaEvent{},
			IsAvailable: true,
			IsWeekend:   day.Weekday() == time.Saturday || day.Weekday() == time.Sunday,
			IsToday:     day.Equal(today),
		}
		for _, e := range visible {
			if !dayOf(e.StartDate, loc).After(day) && !dayOf(e.EndDate, loc).Before(day) {
				d.Events = append(d.Events, AgendaEvent{
					ID:        e.ID,
					Title:     e.CompanyName + " - " + e.EventCode,
					Location:  e.Location,
					StartDate: e.StartDate,
					EndDate:   e.EndDate,
				})
			}
		}
		if a, ok := byDate[key]; ok {
			d.IsAvailable = a.IsAvailable
			if a.Note != "" {
				note := a.Note
				d.Note = &note
			}
		}
		out.Days = append(out.Days, d)
	}
	return out, nil
}

func (s *AgendaService) Availabilities(ctx context.Context, agentID uint) ([]models.AgentAvailability, error) {
	list, err := s.store.Agenda.ListAvailability(ctx, agentID, time.Time{}, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	return list, nil
}

// SaveAvailability creates or replaces the declaration for the date and
// reports whether a new row was created.
func (s *AgendaService) SaveAvailability(ctx context.Context, agentID uint, in AvailabilityInput) (*models.AgentAvailability, bool, error) {
	if in.Date == "" {
		return nil, false, invalid("date", "is required")
	}
	if in.IsAvailable == nil {
		return nil, false, invalid("is_available", "is required")
	}
	date, err := s.clock.Date("date", in.Date)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.store.Agenda.ListAvailability(ctx, agentID, date, date.AddDate(0, 0, 1))
	if err != nil {
		return nil, false, fmt.Errorf("look up availability: %w", err)
	}

	a := &models.AgentAvailability{AgentID: agentID, Date: date, IsAvailable: *in.IsAvailable, Note: in.Note}
	if err := s.store.Agenda.SaveAvailability(ctx, a); err != nil {
		return nil, false, fmt.Errorf("save availability: %w", err)
	}
	return a, len(existing) == 0, nil
}

// owned hides other agents' rows behind ErrNotFound.
func (s *AgendaService) owned(ctx context.Context, agentID, id uint) (*models.AgentAvailability, error) {
	a, err := s.store.Agenda.GetAvailability(ctx, id)
	if err != nil {
		return nil, notFound("availability", err)
	}
	if a.AgentID != agentID {
		return nil, fmt.Errorf("availability %w", ErrNotFound)
	}
	return a, nil
}

func (s *AgendaService) Availability(ctx context.Context, agentID, id uint) (*models.AgentAvailability, error) {
	return s.owned(ctx, agentID, id)
}

func (s *AgendaService) UpdateAvailability(ctx context.Context, agentID, id uint, in AvailabilityInput) (*models.AgentAvailability, error) {
	a, err := s.owned(ctx, agentID, id)
	if err != nil {
		return nil, err
	}
	if in.Date != "" {
		date, err := s.clock.Date("date", in.Date)
		if err != nil {
			return nil, err
		}
		if !date.Equal(dayOf(a.Date, s.clock.location())) {
			return nil, invalid("date", "cannot be changed")
		}
	}
	if in.IsAvailable != nil {
		a.IsAvailable = *in.IsAvailable
	}
	a.Note = in.Note
	if err := s.store.Agenda.SaveAvailability(ctx, a); err != nil {
		return nil, fmt.Errorf("save availability: %w", err)
	}
	return a, nil
}

func (s *AgendaService) DeleteAvailability(ctx context.Context, agentID, id uint) error {
	if _, err := s.owned(ctx, agentID, id); err != nil {
		return err
	}
	if err := s.store.Agenda.DeleteAvailability(ctx, id); err != nil {
		return notFound("availability", err)
	}
	return nil
}

func preferenceView(p *models.AgentPreference) *PreferenceView {
	return &PreferenceView{
		AgentID:             p.AgentID,
		PreferredLocations:  models.SplitList(p.PreferredLocations),
		PreferredEventTypes: models.SplitList(p.PreferredEventTypes),
		MaxEventsPerWeek:    p.MaxEventsPerWeek,
		MaxEventsPerMonth:   p.MaxEventsPerMonth,
	}
}

func (s *AgendaService) preference(ctx context.Context, agentID uint) (*models.AgentPreference, error) {
	p, err := s.store.Agenda.GetPreference(ctx, agentID)
	if errors.Is(err, repository.ErrNotFound) {
		return &models.AgentPreference{
			AgentID:           agentID,
			MaxEventsPerWeek:  models.DefaultMaxEventsPerWeek,
			MaxEventsPerMonth: models.DefaultMaxEventsPerMonth,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get preference: %w", err)
	}
	return p, nil
}

// Preference returns the stored preference or the defaults.
func (s *AgendaService) Preference(ctx context.Context, agentID uint) (*PreferenceView, error) {
	p, err := s.preference(ctx, agentID)
	if err != nil {
		return nil, err
	}
	return preferenceView(p), nil
}

func (s *AgendaService) SavePreference(ctx context.Context, agentID uint, in PreferenceInput) (*PreferenceView, error) {
	p, err := s.preference(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if in.PreferredLocations != nil {
		p.PreferredLocations = strings.Join(models.SplitList(strings.Join(in.PreferredLocations, ",")), ",")
	}
	if in.PreferredEventTypes != nil {
		p.PreferredEventTypes = strings.Join(models.SplitList(strings.Join(in.PreferredEventTypes, ",")), ",")
	}
	if in.MaxEventsPerWeek != nil {
		p.MaxEventsPerWeek = *in.MaxEventsPerWeek
	}
	if in.MaxEventsPerMonth != nil {
		p.MaxEventsPerMonth = *in.MaxEventsPerMonth
	}

	fields := map[string]string{}
	if p.MaxEventsPerWeek < 0 {
		fields["max_events_per_week"] = "must not be negative"
	}
	if p.MaxEventsPerMonth < 0 {
		fields["max_events_per_month"] = "must not be negative"
	}
	if p.MaxEventsPerWeek > p.MaxEventsPerMonth {
		fields["max_events_per_week"] = "must not exceed max_events_per_month"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	if err := s.store.Agenda.SavePreference(ctx, p); err != nil {
		return nil, fmt.Errorf("save preference: %w", err)
	}
	return preferenceView(p), nil
}
