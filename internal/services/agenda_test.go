package services

import (
	"testing"
	"time"

	"nva-backoffice/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(v bool) *bool { return &v }

func TestAgendaMonthLayout(t *testing.T) {
	f := newFixture(t)
	alice := f.agent("alice")
	bob := f.agent("bob")
	svc := NewAgendaService(f.store, f.clock)

	f.event("GALA", "Acme", day(time.March, 20), alice.ID)
	f.event("OTHER", "Acme", day(time.March, 21), bob.ID)
	spanning := &models.Event{Location: "Hawassa", CompanyName: "Globex", EventCode: "TOUR", StartDate: day(time.March, 30), EndDate: day(time.April, 2)}
	require.NoError(t, f.store.Events.Create(f.ctx, spanning, []uint{alice.ID}))

	_, _, err := svc.SaveAvailability(f.ctx, alice.ID, AvailabilityInput{Date: "2024-03-10", IsAvailable: boolPtr(false), Note: "family visit"})
	require.NoError(t, err)

	agenda, err := svc.Month(f.ctx, alice.ID, 2024, 3)
	require.NoError(t, err)
	require.Len(t, agenda.Days, 31)
	assert.Equal(t, "2024-03-01", agenda.Days[0].Date)

	assert.False(t, agenda.Days[0].IsWeekend, "March 1st 2024 is a Friday")
	assert.True(t, agenda.Days[1].IsWeekend)
	assert.True(t, agenda.Days[14].IsToday)
	assert.False(t, agenda.Days[13].IsToday)

	require.Len(t, agenda.Days[19].Events, 1)
	assert.Equal(t, "Acme - GALA", agenda.Days[19].Events[0].Title)
	assert.Empty(t, agenda.Days[20].Events, "bob's event is not on alice's agenda")
	assert.Len(t, agenda.Days[29].Events, 1)
	assert.Len(t, agenda.Days[30].Events, 1)

	assert.False(t, agenda.Days[9].IsAvailable)
	require.NotNil(t, agenda.Days[9].Note)
	assert.Equal(t, "family visit", *agenda.Days[9].Note)
	assert.True(t, agenda.Days[10].IsAvailable)
	assert.Nil(t, agenda.Days[10].Note)

	april, err := svc.Month(f.ctx, alice.ID, 2024, 4)
	require.NoError(t, err)
	require.Len(t, april.Days, 30)
	assert.Len(t, april.Days[1].Events, 1)
	assert.Empty(t, april.Days[2].Events)

	_, err = svc.Month(f.ctx, alice.ID, 2024, 13)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSaveAvailabilityUpserts(t *testing.T) {
	f := newFixture(t)
	alice := f.agent("alice")
	bob := f.agent("bob")
	svc := NewAgendaService(f.store, f.clock)

	first, created, err := svc.SaveAvailability(f.ctx, alice.ID, AvailabilityInput{Date: "2024-03-18", IsAvailable: boolPtr(false)})
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := svc.SaveAvailability(f.ctx, alice.ID, AvailabilityInput{Date: "2024-03-18", IsAvailable: boolPtr(true), Note: "freed up"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	list, err := svc.Availabilities(f.ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsAvailable)
	assert.Equal(t, "freed up", list[0].Note)

	_, err = svc.Availability(f.ctx, bob.ID, first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.DeleteAvailability(f.ctx, bob.ID, first.ID), ErrNotFound)

	_, err = svc.UpdateAvailability(f.ctx, alice.ID, first.ID, AvailabilityInput{Date: "2024-03-19"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "date")

	updated, err := svc.UpdateAvailability(f.ctx, alice.ID, first.ID, AvailabilityInput{Date: "2024-03-18", IsAvailable: boolPtr(false)})
	require.NoError(t, err)
	assert.False(t, updated.IsAvailable)
	assert.Empty(t, updated.Note)

	require.NoError(t, svc.DeleteAvailability(f.ctx, alice.ID, first.ID))
	list, err = svc.Availabilities(f.ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSaveAvailabilityValidation(t *testing.T) {
	f := newFixture(t)
	alice := f.agent("alice")
	svc := NewAgendaService(f.store, f.clock)

	cases := map[string]AvailabilityInput{
		"date":         {IsAvailable: boolPtr(true)},
		"is_available": {Date: "2024-03-18"},
	}
	for field, in := range cases {
		_, _, err := svc.SaveAvailability(f.ctx, alice.ID, in)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, field)
		assert.Contains(t, verr.Fields, field)
	}

	_, _, err := svc.SaveAvailability(f.ctx, alice.ID, AvailabilityInput{Date: "18/03/2024", IsAvailable: boolPtr(true)})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestPreferences(t *testing.T) {
	f := newFixture(t)
	alice := f.agent("alice")
	svc := NewAgendaService(f.store, f.clock)

	defaults, err := svc.Preference(f.ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultMaxEventsPerWeek, defaults.MaxEventsPerWeek)
	assert.Equal(t, models.DefaultMaxEventsPerMonth, defaults.MaxEventsPerMonth)
	assert.Equal(t, []string{}, defaults.PreferredLocations)

	saved, err := svc.SavePreference(f.ctx, alice.ID, PreferenceInput{
		PreferredLocations: []string{" Bole ", "", "Piassa"},
		MaxEventsPerWeek:   intPtr(3),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bole", "Piassa"}, saved.PreferredLocations)
	assert.Equal(t, 3, saved.MaxEventsPerWeek)
	assert.Equal(t, models.DefaultMaxEventsPerMonth, saved.MaxEventsPerMonth)

	reloaded, err := svc.Preference(f.ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, saved, reloaded)

	_, err = svc.SavePreference(f.ctx, alice.ID, PreferenceInput{MaxEventsPerWeek: intPtr(30)})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "max_events_per_week")

	_, err = svc.SavePreference(f.ctx, alice.ID, PreferenceInput{MaxEventsPerMonth: intPtr(-1)})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "max_events_per_month")
}
