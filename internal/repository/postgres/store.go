package postgres

import (
	"errors"
	"fmt"

	"nva-backoffice/internal/models"
	"nva-backoffice/internal/repository"

	"gorm.io/gorm"
)

func NewStore(db *gorm.DB) *repository.Store {
	return &repository.Store{
		Agents:        &AgentStore{db: db},
		Photos:        &PhotoStore{db: db},
		Events:        &EventStore{db: db},
		Performances:  &PerformanceStore{db: db},
		Presences:     &PresenceStore{db: db},
		Payments:      &PaymentStore{db: db},
		Notifications: &NotificationStore{db: db},
		Conversations: &ConversationStore{db: db},
		Rankings:      &RankingStore{db: db},
		Analyses:      &AnalysisStore{db: db},
		Agenda:        &AgendaStore{db: db},
	}
}

// translate maps gorm errors onto the repository sentinels. The connection
// must be opened with TranslateError so duplicate keys surface as
// gorm.ErrDuplicatedKey.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return repository.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, repository.ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func loadAgents(tx *gorm.DB, ids []uint) ([]models.Agent, error) {
	agents := make([]models.Agent, 0, len(ids))
	if len(ids) == 0 {
		return agents, nil
	}
	if err := tx.Where("id IN ?", ids).Find(&agents).Error; err != nil {
		return nil, err
	}
	return agents, nil
}
