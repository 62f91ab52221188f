package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nva-backoffice/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const slowQuery = 200 * time.Millisecond

func Initialize(databaseURL string, log *logrus.Logger) (*gorm.DB, error) {
	config := &gorm.Config{
		Logger:         NewLogger(log),
		TranslateError: true,
	}

	db, err := gorm.Open(postgres.Open(databaseURL), config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Info("database connected and migrated")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Agent{},
		&models.AgentPhoto{},
		&models.Event{},
		&models.EventPerformance{},
		&models.Presence{},
		&models.PresencePhoto{},
		&models.Payment{},
		&models.Notification{},
		&models.NotificationRead{},
		&models.Conversation{},
		&models.Message{},
		&models.MonthlyRanking{},
		&models.AIAnalysis{},
		&models.AgentAvailability{},
		&models.AgentPreference{},
	)
}

// Logger routes gorm's SQL logging through logrus. Statements are traced at
// debug level; slow ones and failures are raised to warn and error.
type Logger struct {
	log   logrus.FieldLogger
	level logger.LogLevel
}

func NewLogger(log logrus.FieldLogger) *Logger {
	return &Logger{log: log, level: logger.Warn}
}

func (l *Logger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *Logger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Info {
		l.log.Infof(msg, args...)
	}
}

func (l *Logger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Warn {
		l.log.Warnf(msg, args...)
	}
}

func (l *Logger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Error {
		l.log.Errorf(msg, args...)
	}
}

func (l *Logger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	entry := l.log.WithFields(logrus.Fields{"elapsed": elapsed.String(), "rows": rows, "sql": sql})

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= logger.Error:
		entry.WithError(err).Error("query failed")
	case elapsed > slowQuery && l.level >= logger.Warn:
		entry.Warn("slow query")
	case l.level >= logger.Info:
		entry.Debug("query")
	}
}
