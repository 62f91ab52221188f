package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestLoggerTrace(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	l := NewLogger(log)
	ctx := context.Background()
	sql := func() (string, int64) { return "SELECT 1", 1 }

	l.Trace(ctx, time.Now(), sql, nil)
	assert.Empty(t, hook.AllEntries(), "fast queries are not traced at warn level")

	l.Trace(ctx, time.Now(), sql, gorm.ErrRecordNotFound)
	assert.Empty(t, hook.AllEntries(), "misses are not errors")

	l.Trace(ctx, time.Now(), sql, errors.New("boom"))
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "SELECT 1", hook.LastEntry().Data["sql"])

	l.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "slow query", hook.LastEntry().Message)

	hook.Reset()
	verbose := l.LogMode(logger.Info)
	verbose.Trace(ctx, time.Now(), sql, nil)
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)

	l.LogMode(logger.Silent).Trace(ctx, time.Now(), sql, errors.New("boom"))
	assert.Len(t, hook.AllEntries(), 1)
}
