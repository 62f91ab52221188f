package services

import (
	"context"
	"fmt"
	"strings"

	"nva-backoffice/internal/models"
	"nva-backoffice/internal/repository"

	"github.com/sirupsen/logrus"
)

// presencePhotoTypes are the content types accepted for check-in photos.
var presencePhotoTypes = []string{"image/jpeg", "image/png"}

type PresenceInput struct {
	Latitude     *float64
	Longitude    *float64
	LocationName string
	Notes        string
}

type AgentPresenceTotals struct {
	AgentID  uint             `json:"agent_id"`
	Username string           `json:"username"`
	Name     string           `json:"name"`
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"by_status"`
}

type PresenceDashboard struct {
	Month    string                `json:"month,omitempty"`
	Total    int64                 `json:"total"`
	ByStatus map[string]int64      `json:"by_status"`
	Agents   []AgentPresenceTotals `json:"agents"`
}

type PresenceService struct {
	store       *repository.Store
	storage     ObjectStorage
	maxFileSize int64
	clock       Clock
	log         logrus.FieldLogger
}

func NewPresenceService(store *repository.Store, storage ObjectStorage, maxFileSize int64, clock Clock, log logrus.FieldLogger) *PresenceService {
	return &PresenceService{store: store, storage: storage, maxFileSize: maxFileSize, clock: clock, log: log}
}

func validatePresence(in PresenceInput) error {
	fields := map[string]string{}
	if in.Latitude != nil && (*in.Latitude < -90 || *in.Latitude > 90) {
		fields["latitude"] = "must be between -90 and 90"
	}
	if in.Longitude != nil && (*in.Longitude < -180 || *in.Longitude > 180) {
		fields["longitude"] = "must be between -180 and 180"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Create records a pending check-in for the agent at the current time.
func (s *PresenceService) Create(ctx context.Context, agentID uint, in PresenceInput) (*models.Presence, error) {
	if err := validatePresence(in); err != nil {
		return nil, err
	}
	p := &models.Presence{
		AgentID:      agentID,
		Timestamp:    s.clock.now(),
		Status:       models.PresencePending,
		Latitude:     in.Latitude,
		Longitude:    in.Longitude,
		LocationName: strings.TrimSpace(in.LocationName),
		Notes:        in.Notes,
	}
	if err := s.store.Presences.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create presence: %w", err)
	}
	return s.store.Presences.GetByID(ctx, p.ID)
}

// List returns every presence for admins and only the caller's otherwise.
func (s *PresenceService) List(ctx context.Context, actor Actor) ([]models.Presence, error) {
	filter := repository.PresenceFilter{}
	if !actor.IsAdmin {
		filter.AgentID = actor.ID
	}
	list, err := s.store.Presences.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list presences: %w", err)
	}
	return list, nil
}

func (s *PresenceService) Mine(ctx context.Context, agentID uint) ([]models.Presence, error) {
	return s.List(ctx, Actor{ID: agentID})
}

func (s *PresenceService) Get(ctx context.Context, actor Actor, id uint) (*models.Presence, error) {
	p, err := s.store.Presences.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("presence", err)
	}
	if !actor.CanManage(p.AgentID) {
		return nil, ErrForbidden
	}
	return p, nil
}

// AddPhoto attaches a jpeg or png photo; only the presence owner may do so.
func (s *PresenceService) AddPhoto(ctx context.Context, agentID, presenceID uint, u Upload) (*models.PresencePhoto, error) {
	p, err := s.store.Presences.GetByID(ctx, presenceID)
	if err != nil {
		return nil, notFound("presence", err)
	}
	if p.AgentID != agentID {
		return nil, ErrForbidden
	}
	if u.Size > s.maxFileSize {
		return nil, invalid("photo", fmt.Sprintf("must not exceed %d bytes", s.maxFileSize))
	}
	contentType, body, err := sniff(u)
	if err != nil {
		return nil, err
	}
	accepted := false
	for _, t := range presencePhotoTypes {
		accepted = accepted || t == contentType
	}
	if !accepted {
		return nil, invalid("photo", "must be a jpg, jpeg or png image")
	}

	if s.storage == nil {
		return nil, ErrNoStorage
	}
	key := objectKey("presence_photos", presenceID, u.Filename)
	url, err := s.storage.Upload(ctx, key, body, u.Size, contentType)
	if err != nil {
		return nil, fmt.Errorf("upload presence photo: %w", err)
	}
	photo := &models.PresencePhoto{PresenceID: presenceID, URL: url, ObjectKey: key}
	if err := s.store.Presences.AddPhoto(ctx, photo); err != nil {
		if derr := s.storage.Delete(ctx, key); derr != nil {
			s.log.WithError(derr).WithField("key", key).Warn("failed to delete orphaned presence photo")
		}
		return nil, fmt.Errorf("save presence photo: %w", err)
	}
	return photo, nil
}

// UpdateStatus accepts only the decided statuses.
func (s *PresenceService) UpdateStatus(ctx context.Context, id uint, status string) (*models.Presence, error) {
	if status != models.PresenceApproved && status != models.PresenceRejected {
		return nil, invalid("status", "must be approved or rejected")
	}
	if err := s.store.Presences.UpdateStatus(ctx, id, status); err != nil {
		return nil, notFound("presence", err)
	}
	s.log.WithFields(logrus.Fields{"presence_id": id, "status": status}).Info("presence reviewed")
	return s.store.Presences.GetByID(ctx, id)
}

// Dashboard aggregates presences by status, globally and per agent,
// optionally restricted to one month.
func (s *PresenceService) Dashboard(ctx context.Context, rawMonth string) (*PresenceDashboard, error) {
	filter := repository.PresenceFilter{}
	out := &PresenceDashboard{ByStatus: map[string]int64{}, Agents: []AgentPresenceTotals{}}
	if rawMonth != "" {
		month, err := s.clock.Month(rawMonth)
		if err != nil {
			return nil, err
		}
		filter.From, filter.To = month.Start(s.clock.location()), month.End(s.clock.location())
		out.Month = month.String()
	}

	counts, err := s.store.Presences.CountByStatus(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count presences: %w", err)
	}
	for _, st := range models.PresenceStatuses {
		out.ByStatus[st] = counts[st]
		out.Total += counts[st]
	}

	rows, err := s.store.Presences.CountByAgentAndStatus(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count presences per agent: %w", err)
	}
	index := map[uint]int{}
	ids := []uint{}
	for _, r := range rows {
		i, ok := index[r.AgentID]
		if !ok {
			i = len(out.Agents)
			index[r.AgentID] = i
			ids = append(ids, r.AgentID)
			byStatus := make(map[string]int64, len(models.PresenceStatuses))
			for _, st := range models.PresenceStatuses {
				byStatus[st] = 0
			}
			out.Agents = append(out.Agents, AgentPresenceTotals{AgentID: r.AgentID, ByStatus: byStatus})
		}
		out.Agents[i].ByStatus[r.Status] += r.Count
		out.Agents[i].Total += r.Count
	}

	if len(ids) > 0 {
		agents, err := s.store.Agents.List(ctx, repository.AgentFilter{IncludeAdmins: true, IDs: ids})
		if err != nil {
			return nil, fmt.Errorf("list agents: %w", err)
		}
		for _, a := range agents {
			if i, ok := index[a.ID]; ok {
				out.Agents[i].Username = a.Username
				out.Agents[i].Name = a.FullName()
			}
		}
	}
	return out, nil
}
