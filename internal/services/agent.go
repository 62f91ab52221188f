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

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Actor is the authenticated caller.
type Actor struct {
	ID      uint
	IsAdmin bool
}

func (a Actor) CanManage(agentID uint) bool {
	return a.IsAdmin || a.ID == agentID
}

// Profile is the serialized agent. Optional fields resolve to typed
// defaults instead of being omitted.
type Profile struct {
	ID            uint                          `json:"id"`
	Username      string                        `json:"username"`
	Email         string                        `json:"email"`
	FirstName     string                        `json:"first_name"`
	LastName      string                        `json:"last_name"`
	FullName      string                        `json:"full_name"`
	Age           int                           `json:"age"`
	Gender        string                        `json:"gender"`
	Location      string                        `json:"location"`
	PhoneNumber   string                        `json:"phone_number"`
	Measurements  string                        `json:"measurements"`
	TotalPayments decimal.Decimal               `json:"total_payments"`
	IsAdmin       bool                          `json:"is_admin"`
	IsActive      bool                          `json:"is_active"`
	LastLogin     *time.Time                    `json:"last_login"`
	Photos        []models.AgentPhoto           `json:"photos"`
	PhotosByType  map[string]*models.AgentPhoto `json:"photos_by_type"`
	CreatedAt     time.Time                     `json:"created_at"`
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func NewProfile(a *models.Agent) Profile {
	p := Profile{
		ID:            a.ID,
		Username:      a.Username,
		Email:         a.Email,
		FirstName:     a.FirstName,
		LastName:      a.LastName,
		FullName:      a.FullName(),
		Gender:        str(a.Gender),
		Location:      str(a.Location),
		PhoneNumber:   str(a.PhoneNumber),
		Measurements:  str(a.Measurements),
		TotalPayments: a.TotalPayments,
		IsAdmin:       a.IsAdmin,
		IsActive:      a.IsActive,
		LastLogin:     a.LastLogin,
		Photos:        a.Photos,
		PhotosByType:  make(map[string]*models.AgentPhoto, len(models.PhotoTypes)),
		CreatedAt:     a.CreatedAt,
	}
	if a.Age != nil {
		p.Age = *a.Age
	}
	if p.Photos == nil {
		p.Photos = []models.AgentPhoto{}
	}
	for _, t := range models.PhotoTypes {
		p.PhotosByType[t] = nil
	}
	for i := range a.Photos {
		p.PhotosByType[a.Photos[i].PhotoType] = &a.Photos[i]
	}
	return p
}

func NewProfiles(agents []models.Agent) []Profile {
	out := make([]Profile, 0, len(agents))
	for i := range agents {
		out = append(out, NewProfile(&agents[i]))
	}
	return out
}

type AgentFields struct {
	Email        *string
	FirstName    *string
	LastName     *string
	Age          *int
	Gender       *string
	Location     *string
	PhoneNumber  *string
	Measurements *string
}

type CreateAgentInput struct {
	Username string
	IsAdmin  bool
	AgentFields
}

type RegisterInput struct {
	Username  string
	Password  string
	Email     string
	FirstName string
	LastName  string
}

type UpdateAgentInput struct {
	AgentFields
	IsActive *bool
	IsAdmin  *bool
}

type PhotoUpload struct {
	PhotoType string
	Upload
}

type AgentService struct {
	store        *repository.Store
	storage      ObjectStorage
	maxFileSize  int64
	allowedTypes []string
	log          logrus.FieldLogger
}

func NewAgentService(store *repository.Store, storage ObjectStorage, maxFileSize int64, allowedTypes []string, log logrus.FieldLogger) *AgentService {
	return &AgentService{store: store, storage: storage, maxFileSize: maxFileSize, allowedTypes: allowedTypes, log: log}
}

func validGender(g string) bool {
	switch g {
	case "Male", "Female", "Other":
		return true
	}
	return false
}

func applyFields(a *models.Agent, f AgentFields) error {
	fields := map[string]string{}
	if f.Age != nil && (*f.Age < 0 || *f.Age > 120) {
		fields["age"] = "must be between 0 and 120"
	}
	if f.Gender != nil && *f.Gender != "" && !validGender(*f.Gender) {
		fields["gender"] = "must be one of Male, Female, Other"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}

	if f.Email != nil {
		a.Email = strings.TrimSpace(*f.Email)
	}
	if f.FirstName != nil {
		a.FirstName = *f.FirstName
	}
	if f.LastName != nil {
		a.LastName = *f.LastName
	}
	if f.Age != nil {
		a.Age = f.Age
	}
	if f.Gender != nil {
		a.Gender = f.Gender
	}
	if f.Location != nil {
		a.Location = f.Location
	}
	if f.PhoneNumber != nil {
		a.PhoneNumber = f.PhoneNumber
	}
	if f.Measurements != nil {
		a.Measurements = f.Measurements
	}
	return nil
}

func (s *AgentService) create(ctx context.Context, agent *models.Agent) error {
	if err := s.store.Agents.Create(ctx, agent); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return invalid("username", "already taken")
		}
		return fmt.Errorf("create agent: %w", err)
	}
	return nil
}

// Create registers an agent with a generated password, returned once.
func (s *AgentService) Create(ctx context.Context, in CreateAgentInput) (*models.Agent, string, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, "", invalid("username", "is required")
	}

	agent := &models.Agent{Username: username, IsAdmin: in.IsAdmin, IsActive: true, TotalPayments: decimal.Zero}
	if err := applyFields(agent, in.AgentFields); err != nil {
		return nil, "", err
	}

	password, err := utils.GeneratePassword()
	if err != nil {
		return nil, "", err
	}
	if agent.PasswordHash, err = utils.HashPassword(password); err != nil {
		return nil, "", err
	}
	if err := s.create(ctx, agent); err != nil {
		return nil, "", err
	}

	s.log.WithFields(logrus.Fields{"agent_id": agent.ID, "username": agent.Username}).Info("agent created")
	return agent, password, nil
}

func (s *AgentService) Register(ctx context.Context, in RegisterInput) (*models.Agent, error) {
	fields := map[string]string{}
	if strings.TrimSpace(in.Username) == "" {
		fields["username"] = "is required"
	}
	if len(in.Password) < 8 {
		fields["password"] = "must be at least 8 characters"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	agent := &models.Agent{
		Username:      strings.TrimSpace(in.Username),
		Email:         strings.TrimSpace(in.Email),
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		PasswordHash:  hash,
		IsActive:      true,
		TotalPayments: decimal.Zero,
	}
	if err := s.create(ctx, agent); err != nil {
		return nil, err
	}
	return agent, nil
}

// EnsureAdmin creates the bootstrap administrator when it does not exist.
func (s *AgentService) EnsureAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	_, err := s.store.Agents.GetByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("look up admin: %w", err)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	admin := &models.Agent{Username: username, PasswordHash: hash, IsAdmin: true, IsActive: true, TotalPayments: decimal.Zero}
	if err := s.create(ctx, admin); err != nil {
		return err
	}
	s.log.WithField("username", username).Info("bootstrap admin created")
	return nil
}

func (s *AgentService) Get(ctx context.Context, id uint) (*models.Agent, error) {
	agent, err := s.store.Agents.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("agent", err)
	}
	return agent, nil
}

// List returns non-admin agents.
func (s *AgentService) List(ctx context.Context) ([]models.Agent, error) {
	return s.store.Agents.List(ctx, repository.AgentFilter{})
}

// Directory lists users for the messaging screens: everyone, only agents or
// only admins.
func (s *AgentService) Directory(ctx context.Context, kind string) ([]models.Agent, error) {
	switch kind {
	case "agents":
		return s.store.Agents.List(ctx, repository.AgentFilter{})
	case "admins":
		return s.store.Agents.List(ctx, repository.AgentFilter{AdminsOnly: true})
	}
	return s.store.Agents.List(ctx, repository.AgentFilter{IncludeAdmins: true})
}

func (s *AgentService) Update(ctx context.Context, actor Actor, id uint, in UpdateAgentInput) (*models.Agent, error) {
	if !actor.CanManage(id) {
		return nil, ErrForbidden
	}
	agent, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyFields(agent, in.AgentFields); err != nil {
		return nil, err
	}
	if actor.IsAdmin {
		if in.IsActive != nil {
			agent.IsActive = *in.IsActive
		}
		if in.IsAdmin != nil {
			agent.IsAdmin = *in.IsAdmin
		}
	}
	if err := s.store.Agents.Update(ctx, agent); err != nil {
		return nil, fmt.Errorf("update agent: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *AgentService) Delete(ctx context.Context, actor Actor, id uint) error {
	if !actor.CanManage(id) {
		return ErrForbidden
	}
	agent, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Agents.Delete(ctx, id); err != nil {
		return notFound("agent", err)
	}
	for _, p := range agent.Photos {
		s.removeObject(ctx, p.ObjectKey)
	}
	s.log.WithField("agent_id", id).Info("agent deleted")
	return nil
}

func (s *AgentService) RegeneratePassword(ctx context.Context, id uint) (string, error) {
	agent, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	password, err := utils.GeneratePassword()
	if err != nil {
		return "", err
	}
	if agent.PasswordHash, err = utils.HashPassword(password); err != nil {
		return "", err
	}
	if err := s.store.Agents.Update(ctx, agent); err != nil {
		return "", fmt.Errorf("update password: %w", err)
	}
	return password, nil
}

func (s *AgentService) checkImage(u Upload, allowed []string) (string, Upload, error) {
	if u.Size > s.maxFileSize {
		return "", u, invalid("photo", fmt.Sprintf("must not exceed %d bytes", s.maxFileSize))
	}
	contentType, body, err := sniff(u)
	if err != nil {
		return "", u, err
	}
	for _, t := range allowed {
		if t == contentType {
			u.Body = body
			return contentType, u, nil
		}
	}
	return "", u, invalid("photo", fmt.Sprintf("unsupported file type %s", contentType))
}

func validPhotoType(t string) bool {
	for _, pt := range models.PhotoTypes {
		if pt == t {
			return true
		}
	}
	return false
}

// UploadPhoto stores the photo and replaces any previous photo of the same type.
func (s *AgentService) UploadPhoto(ctx context.Context, agentID uint, in PhotoUpload) (*models.AgentPhoto, error) {
	if !validPhotoType(in.PhotoType) {
		return nil, invalid("photo_type", "must be one of profile, cover, animation")
	}
	contentType, upload, err := s.checkImage(in.Upload, s.allowedTypes)
	if err != nil {
		return nil, err
	}

	previous, err := s.store.Photos.GetByType(ctx, agentID, in.PhotoType)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("look up photo: %w", err)
	}

	if s.storage == nil {
		return nil, ErrNoStorage
	}
	key := objectKey("agent_photos", agentID, upload.Filename)
	url, err := s.storage.Upload(ctx, key, upload.Body, upload.Size, contentType)
	if err != nil {
		return nil, fmt.Errorf("upload photo: %w", err)
	}

	photo := &models.AgentPhoto{AgentID: agentID, PhotoType: in.PhotoType, URL: url, ObjectKey: key}
	if err := s.store.Photos.Save(ctx, photo); err != nil {
		s.removeObject(ctx, key)
		return nil, fmt.Errorf("save photo: %w", err)
	}
	if previous != nil && previous.ObjectKey != key {
		s.removeObject(ctx, previous.ObjectKey)
	}
	return photo, nil
}

func (s *AgentService) DeletePhoto(ctx context.Context, agentID, photoID uint) error {
	photo, err := s.store.Photos.GetByID(ctx, photoID)
	if err != nil {
		return notFound("photo", err)
	}
	if photo.AgentID != agentID {
		return fmt.Errorf("photo %w", ErrNotFound)
	}
	if err := s.store.Photos.Delete(ctx, photoID); err != nil {
		return notFound("photo", err)
	}
	s.removeObject(ctx, photo.ObjectKey)
	return nil
}

// removeObject deletes a stored file; failures are logged only.
func (s *AgentService) removeObject(ctx context.Context, key string) {
	if key == "" || s.storage == nil {
		return
	}
	if err := s.storage.Delete(ctx, key); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("failed to delete photo from storage")
	}
}
