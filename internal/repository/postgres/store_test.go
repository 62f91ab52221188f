package postgres_test

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"nva-backoffice/internal/database"
	"nva-backoffice/internal/models"
	"nva-backoffice/internal/repository"
	"nva-backoffice/internal/repository/memory"
	"nva-backoffice/internal/repository/postgres"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withSearchPath points every pooled connection at schema.
func withSearchPath(databaseURL, schema string) (string, error) {
	if !strings.Contains(databaseURL, "://") {
		return databaseURL + " search_path=" + schema, nil
	}
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func setupPostgres(t *testing.T) *repository.Store {
	t.Helper()
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set")
	}
	log, _ := test.NewNullLogger()

	admin, err := database.Initialize(databaseURL, log)
	require.NoError(t, err)
	schema := fmt.Sprintf("test_%d", time.Now().UnixNano())
	require.NoError(t, admin.Exec("CREATE SCHEMA "+schema).Error)

	scoped, err := withSearchPath(databaseURL, schema)
	require.NoError(t, err)
	db, err := database.Initialize(scoped, log)
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		_ = admin.Exec("DROP SCHEMA " + schema + " CASCADE").Error
		if sqlDB, err := admin.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return postgres.NewStore(db)
}

// eachBackend runs fn against the in-memory store and, when a database is
// configured, against Postgres, so both implementations answer alike.
func eachBackend(t *testing.T, fn func(t *testing.T, store *repository.Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, memory.NewStore(nil))
	})
	t.Run("postgres", func(t *testing.T) {
		fn(t, setupPostgres(t))
	})
}

func newAgent(t *testing.T, store *repository.Store, username string) *models.Agent {
	t.Helper()
	agent := &models.Agent{Username: username, PasswordHash: "x", IsActive: true}
	require.NoError(t, store.Agents.Create(context.Background(), agent))
	return agent
}

func TestReplaceMonthIsIdempotent(t *testing.T) {
	eachBackend(t, func(t *testing.T, store *repository.Store) {
		ctx := context.Background()
		alice := newAgent(t, store, "alice")
		bob := newAgent(t, store, "bob")
		at := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

		require.NoError(t, store.Rankings.ReplaceMonth(ctx, "2024-02", []models.MonthlyRanking{
			{AgentID: alice.ID, Month: "2024-02", Score: 10, Rank: 1, CalculatedAt: at},
		}))
		require.NoError(t, store.Rankings.ReplaceMonth(ctx, "2024-03", []models.MonthlyRanking{
			{AgentID: alice.ID, Month: "2024-03", Score: 87.5, Rank: 1, CalculatedAt: at},
			{AgentID: bob.ID, Month: "2024-03", Score: 12, Rank: 2, CalculatedAt: at},
		}))

		for i := 0; i < 2; i++ {
			rows := []models.MonthlyRanking{{AgentID: bob.ID, Month: "2024-03", Score: 40, Rank: 1, CalculatedAt: at}}
			require.NoError(t, store.Rankings.ReplaceMonth(ctx, "2024-03", rows))

			march, err := store.Rankings.ListByMonth(ctx, "2024-03")
			require.NoError(t, err)
			require.Len(t, march, 1, "rows for agents no longer ranked are removed")
			assert.Equal(t, bob.ID, march[0].AgentID)
			assert.Equal(t, 40.0, march[0].Score)
			assert.Equal(t, 1, march[0].Rank)
			require.NotNil(t, march[0].Agent)
			assert.Equal(t, "bob", march[0].Agent.Username)
		}

		feb, err := store.Rankings.ListByMonth(ctx, "2024-02")
		require.NoError(t, err)
		assert.Len(t, feb, 1, "other months are untouched")

		require.NoError(t, store.Rankings.ReplaceMonth(ctx, "2024-03", nil))
		march, err := store.Rankings.ListByMonth(ctx, "2024-03")
		require.NoError(t, err)
		assert.Empty(t, march)
	})
}

func TestCreateWithRunningTotal(t *testing.T) {
	eachBackend(t, func(t *testing.T, store *repository.Store) {
		ctx := context.Background()
		alice := newAgent(t, store, "alice")
		bob := newAgent(t, store, "bob")

		credit := &models.Payment{AgentID: alice.ID, Amount: decimal.NewFromInt(200), WorkDays: 4}
		require.NoError(t, store.Payments.CreateWithRunningTotal(ctx, credit))
		assert.True(t, credit.TotalPayment.Equal(decimal.NewFromInt(200)))

		debit := &models.Payment{AgentID: alice.ID, Amount: decimal.NewFromInt(-50)}
		require.NoError(t, store.Payments.CreateWithRunningTotal(ctx, debit))
		assert.True(t, debit.TotalPayment.Equal(decimal.NewFromInt(150)), debit.TotalPayment.String())

		other := &models.Payment{AgentID: bob.ID, Amount: decimal.RequireFromString("12.50"), WorkDays: 1}
		require.NoError(t, store.Payments.CreateWithRunningTotal(ctx, other))
		assert.True(t, other.TotalPayment.Equal(decimal.RequireFromString("12.5")))

		agent, err := store.Agents.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.True(t, agent.TotalPayments.Equal(decimal.NewFromInt(150)), agent.TotalPayments.String())

		latest, err := store.Payments.Latest(ctx, alice.ID)
		require.NoError(t, err)
		assert.True(t, latest.TotalPayment.Equal(agent.TotalPayments))

		credits, debits, err := store.Payments.CountBySign(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), credits)
		assert.Equal(t, int64(1), debits)

		err = store.Payments.CreateWithRunningTotal(ctx, &models.Payment{AgentID: 9999, Amount: decimal.NewFromInt(1)})
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestAgentUpdateLeavesTotalPayments(t *testing.T) {
	eachBackend(t, func(t *testing.T, store *repository.Store) {
		ctx := context.Background()
		alice := newAgent(t, store, "alice")

		stale, err := store.Agents.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		require.NoError(t, store.Payments.CreateWithRunningTotal(ctx, &models.Payment{AgentID: alice.ID, Amount: decimal.NewFromInt(200), WorkDays: 1}))

		login := time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)
		stale.LastLogin = &login
		stale.IsActive = false
		require.NoError(t, store.Agents.Update(ctx, stale))

		agent, err := store.Agents.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.True(t, agent.TotalPayments.Equal(decimal.NewFromInt(200)), agent.TotalPayments.String())
		assert.False(t, agent.IsActive, "false flags are written")
		require.NotNil(t, agent.LastLogin)
		assert.True(t, agent.LastLogin.Equal(login))

		stale.ID = 9999
		assert.ErrorIs(t, store.Agents.Update(ctx, stale), repository.ErrNotFound)
	})
}

func TestCountByStatusWindow(t *testing.T) {
	eachBackend(t, func(t *testing.T, store *repository.Store) {
		ctx := context.Background()
		alice := newAgent(t, store, "alice")
		bob := newAgent(t, store, "bob")

		add := func(agentID uint, at time.Time, status string) {
			require.NoError(t, store.Presences.Create(ctx, &models.Presence{AgentID: agentID, Timestamp: at, Status: status}))
		}
		add(alice.ID, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), models.PresenceApproved)
		add(alice.ID, time.Date(2024, 3, 31, 23, 59, 0, 0, time.UTC), models.PresenceApproved)
		add(alice.ID, time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC), models.PresenceRejected)
		add(alice.ID, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), models.PresenceApproved)
		add(alice.ID, time.Date(2024, 2, 29, 23, 59, 0, 0, time.UTC), models.PresencePending)
		add(bob.ID, time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC), models.PresencePending)

		march := repository.PresenceFilter{
			From: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		}
		all, err := store.Presences.CountByStatus(ctx, march)
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{models.PresenceApproved: 2, models.PresenceRejected: 1, models.PresencePending: 1}, all)

		march.AgentID = alice.ID
		mine, err := store.Presences.CountByStatus(ctx, march)
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{models.PresenceApproved: 2, models.PresenceRejected: 1}, mine)
	})
}

func TestNotificationCountUnread(t *testing.T) {
	eachBackend(t, func(t *testing.T, store *repository.Store) {
		ctx := context.Background()
		alice := newAgent(t, store, "alice")
		bob := newAgent(t, store, "bob")
		day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

		direct := &models.Notification{RecipientID: &alice.ID, Title: "Shift", Message: "see you", Date: day}
		global := &models.Notification{IsGlobal: true, Title: "News", Message: "hello all", Date: day}
		forBob := &models.Notification{RecipientID: &bob.ID, Title: "Shift", Message: "see you", Date: day}
		require.NoError(t, store.Notifications.Create(ctx, direct, global, forBob))

		n, err := store.Notifications.CountUnread(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		require.NoError(t, store.Notifications.AddReadReceipt(ctx, global.ID, alice.ID))
		require.NoError(t, store.Notifications.AddReadReceipt(ctx, global.ID, alice.ID))
		require.NoError(t, store.Notifications.MarkRead(ctx, direct.ID))

		n, err = store.Notifications.CountUnread(ctx, alice.ID)
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = store.Notifications.CountUnread(ctx, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n, "a receipt only counts for its reader")
	})
}

func TestConversationSearchTreatsWildcardsLiterally(t *testing.T) {
	eachBackend(t, func(t *testing.T, store *repository.Store) {
		ctx := context.Background()
		root := newAgent(t, store, "root")
		snake := newAgent(t, store, "Hana_B")
		plain := newAgent(t, store, "hanaxb")

		require.NoError(t, store.Conversations.Create(ctx, &models.Conversation{}, []uint{root.ID, snake.ID}))
		require.NoError(t, store.Conversations.Create(ctx, &models.Conversation{}, []uint{root.ID, plain.ID}))

		found, err := store.Conversations.ListForAgent(ctx, root.ID, "a_b")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.True(t, found[0].HasParticipant(snake.ID))

		found, err = store.Conversations.ListForAgent(ctx, root.ID, "HANA")
		require.NoError(t, err)
		assert.Len(t, found, 2)

		found, err = store.Conversations.ListForAgent(ctx, root.ID, "%")
		require.NoError(t, err)
		assert.Empty(t, found)
	})
}

func TestDeleteAgentCascades(t *testing.T) {
	eachBackend(t, func(t *testing.T, store *repository.Store) {
		ctx := context.Background()
		alice := newAgent(t, store, "alice")
		bob := newAgent(t, store, "bob")

		require.NoError(t, store.Payments.CreateWithRunningTotal(ctx, &models.Payment{AgentID: alice.ID, Amount: decimal.NewFromInt(10), WorkDays: 1}))
		require.NoError(t, store.Presences.Create(ctx, &models.Presence{AgentID: alice.ID, Timestamp: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), Status: models.PresencePending}))
		conv := &models.Conversation{}
		require.NoError(t, store.Conversations.Create(ctx, conv, []uint{alice.ID, bob.ID}))

		require.NoError(t, store.Agents.Delete(ctx, alice.ID))

		_, err := store.Agents.GetByID(ctx, alice.ID)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		payments, err := store.Payments.List(ctx, repository.PaymentFilter{AgentID: alice.ID})
		require.NoError(t, err)
		assert.Empty(t, payments)
		presences, err := store.Presences.List(ctx, repository.PresenceFilter{AgentID: alice.ID})
		require.NoError(t, err)
		assert.Empty(t, presences)
		member, err := store.Conversations.IsParticipant(ctx, conv.ID, alice.ID)
		require.NoError(t, err)
		assert.False(t, member)

		assert.ErrorIs(t, store.Agents.Delete(ctx, alice.ID), repository.ErrNotFound)
	})
}
