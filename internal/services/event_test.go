package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string         { return &s }
func timePtr(t time.Time) *time.Time  { return &t }
func intPtr(v int) *int               { return &v }
func decPtr(s string) *decimal.Decimal { d := decimal.RequireFromString(s); return &d }

func eventInput(code string, start, end time.Time, agents ...uint) EventInput {
	return EventInput{
		Location:    strPtr("Bole"),
		CompanyName: strPtr("Acme"),
		EventCode:   strPtr(code),
		StartDate:   timePtr(start),
		EndDate:     timePtr(end),
		AgentIDs:    agents,
	}
}

func TestCreateEventRejectsBadRange(t *testing.T) {
	f := newFixture(t)
	svc := NewEventService(f.store, f.clock, f.log)
	start := day(time.March, 20)

	for _, end := range []time.Time{start, start.Add(-time.Hour)} {
		_, err := svc.Create(f.ctx, eventInput("E-1", start, end))
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "end_date")
	}

	created, err := svc.Create(f.ctx, eventInput("E-1", start, start.Add(time.Hour)))
	require.NoError(t, err)

	_, err = svc.Update(f.ctx, created.ID, EventInput{EndDate: timePtr(start.Add(-time.Hour))})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestCreateEventDuplicateCodeConflicts(t *testing.T) {
	f := newFixture(t)
	svc := NewEventService(f.store, f.clock, f.log)
	start := day(time.March, 20)

	_, err := svc.Create(f.ctx, eventInput("DUP", start, start.Add(time.Hour)))
	require.NoError(t, err)
	_, err = svc.Create(f.ctx, eventInput("DUP", start, start.Add(time.Hour)))
	assert.ErrorIs(t, err, ErrConflict)
}

func TestEventAssignments(t *testing.T) {
	f := newFixture(t)
	alice := f.agent("alice")
	bob := f.agent("bob")
	svc := NewEventService(f.store, f.clock, f.log)
	start := day(time.March, 20)

	_, err := svc.Create(f.ctx, eventInput("E-1", start, start.Add(time.Hour), alice.ID, 99))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "agent_ids")

	created, err := svc.Create(f.ctx, eventInput("E-1", start, start.Add(time.Hour), alice.ID))
	require.NoError(t, err)
	assert.Equal(t, 1, created.AgentCount)
	assert.Equal(t, "upcoming", created.Status)

	updated, err := svc.Update(f.ctx, created.ID, EventInput{AgentIDs: []uint{alice.ID, bob.ID}})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.AgentCount)

	kept, err := svc.Update(f.ctx, created.ID, EventInput{Location: strPtr("Piassa")})
	require.NoError(t, err)
	assert.Equal(t, 2, kept.AgentCount, "nil agent IDs keep the assignments")
	assert.Equal(t, "Piassa", kept.Location)

	mine, err := svc.Mine(f.ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	require.NoError(t, svc.Delete(f.ctx, created.ID))
	_, err = svc.Get(f.ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAvailableAgents(t *testing.T) {
	f := newFixture(t)
	alice := f.agent("alice")
	bob := f.agent("bob")
	carol := f.agent("carol")
	f.agent("root", admin)
	svc := NewEventService(f.store, f.clock, f.log)

	f.event("A", "Acme", day(time.March, 20), alice.ID)
	f.event("B", "Acme", day(time.March, 25), bob.ID)

	free, err := svc.AvailableAgents(f.ctx, "2024-03-19", "2024-03-20")
	require.NoError(t, err)
	ids := []uint{}
	for _, a := range free {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []uint{bob.ID, carol.ID}, ids)

	free, err = svc.AvailableAgents(f.ctx, "2024-03-21", "2024-03-24")
	require.NoError(t, err)
	assert.Len(t, free, 3)

	for _, q := range [][2]string{{"", "2024-03-20"}, {"2024-03-20", ""}, {"20/03/2024", "2024-03-21"}, {"2024-03-22", "2024-03-21"}} {
		_, err := svc.AvailableAgents(f.ctx, q[0], q[1])
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr, q)
	}
}

func TestEventPerformanceCRUD(t *testing.T) {
	f := newFixture(t)
	svc := NewEventService(f.store, f.clock, f.log)
	march := f.event("MAR", "Acme", day(time.March, 3))
	april := f.event("APR", "Acme", day(time.April, 3))

	perf, err := svc.CreatePerformance(f.ctx, PerformanceInput{EventID: &march.ID, Revenue: decPtr("120.456"), ProductsSold: intPtr(3), ClientSatisfaction: intPtr(4)})
	require.NoError(t, err)
	assert.True(t, perf.Revenue.Equal(decimal.RequireFromString("120.46")))

	_, err = svc.CreatePerformance(f.ctx, PerformanceInput{EventID: &march.ID})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.CreatePerformance(f.ctx, PerformanceInput{EventID: &april.ID, ClientSatisfaction: intPtr(6)})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "client_satisfaction")

	_, err = svc.CreatePerformance(f.ctx, PerformanceInput{EventID: &april.ID, ProductsSold: intPtr(1)})
	require.NoError(t, err)

	inMarch, err := svc.Performances(f.ctx, 0, "2024-03")
	require.NoError(t, err)
	require.Len(t, inMarch, 1)
	assert.Equal(t, march.ID, inMarch[0].EventID)

	byEvent, err := svc.Performances(f.ctx, april.ID, "")
	require.NoError(t, err)
	require.Len(t, byEvent, 1)

	updated, err := svc.UpdatePerformance(f.ctx, perf.ID, PerformanceInput{Notes: strPtr("great crowd")})
	require.NoError(t, err)
	assert.Equal(t, "great crowd", updated.Notes)
	assert.Equal(t, 3, updated.ProductsSold)

	_, err = svc.UpdatePerformance(f.ctx, perf.ID, PerformanceInput{EventID: &april.ID})
	assert.ErrorAs(t, err, &verr)

	require.NoError(t, svc.DeletePerformance(f.ctx, perf.ID))
	assert.ErrorIs(t, svc.DeletePerformance(f.ctx, perf.ID), ErrNotFound)
}
