package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/event-calendar-api/internal/models"
)

func strPtr(v string) *string { return &v }

func statusPtr(v models.EventStatus) *models.EventStatus { return &v }

func timePtr(v time.Time) *time.Time { return &v }

func weeklySeries(loc *time.Location) *models.EventSeries {
	start := time.Date(2024, time.January, 9, 19, 0, 0, 0, loc)
	return &models.EventSeries{
		ID:            "evt-1",
		SpaceID:       "space-1",
		EventTypeID:   "type-1",
		Summary:       "Jam session",
		DTStart:       start,
		DTEnd:         timePtr(start.Add(time.Hour)),
		RRule:         strPtr(weeklyTuesday),
		Status:        models.EventStatusConfirmed,
		Sequence:      3,
		SpaceLocation: strPtr("Main hall"),
	}
}

func monthWindow(loc *time.Location, month time.Month) Window {
	start := time.Date(2024, month, 1, 0, 0, 0, 0, loc)
	return Window{Start: start, End: start.AddDate(0, 1, 0).Add(-time.Second)}
}

func dateKeys(occs []models.Occurrence) []string {
	keys := make([]string, 0, len(occs))
	for _, occ := range occs {
		keys = append(keys, occ.OccurrenceDate)
	}
	return keys
}

func TestMaterializeOverridePrecedence(t *testing.T) {
	berlin := mustLocation(t, "Europe/Berlin")
	series := weeklySeries(berlin)
	overrides := []models.OccurrenceOverride{{
		ID:             "ov-1",
		EventID:        series.ID,
		OccurrenceDate: "2024-06-11",
		Summary:        strPtr("Jam session with guests"),
		Location:       strPtr("Rooftop"),
		Status:         statusPtr(models.EventStatusCancelled),
		Notes:          strPtr("moved outside"),
	}}

	res, err := Materialize(series, overrides, monthWindow(berlin, time.June), Options{Location: berlin})
	require.NoError(t, err)
	require.Len(t, res.Occurrences, 4)
	assert.False(t, res.Truncated)
	assert.Equal(t, []string{"2024-06-04", "2024-06-11", "2024-06-18", "2024-06-25"}, dateKeys(res.Occurrences))

	for _, occ := range res.Occurrences {
		assert.Equal(t, models.OccurrenceID("evt-1", occ.OccurrenceDate), occ.ID)
		assert.Equal(t, time.Hour, occ.End.Sub(occ.Start))
		assert.True(t, occ.IsRecurring)
		assert.Equal(t, 3, occ.Sequence)
		if occ.OccurrenceDate == "2024-06-11" {
			assert.True(t, occ.IsOverridden)
			assert.Equal(t, "Jam session with guests", occ.Summary)
			assert.Equal(t, "Rooftop", *occ.Location)
			assert.Equal(t, models.EventStatusCancelled, occ.Status)
			assert.Equal(t, "moved outside", *occ.Notes)
			assert.Equal(t, 19, occ.Start.In(berlin).Hour())
			continue
		}
		assert.False(t, occ.IsOverridden)
		assert.Equal(t, "Jam session", occ.Summary)
		assert.Equal(t, "Main hall", *occ.Location)
		assert.Equal(t, models.EventStatusConfirmed, occ.Status)
		assert.Nil(t, occ.Notes)
	}
}

func TestMaterializeSkipsExcludedDates(t *testing.T) {
	berlin := mustLocation(t, "Europe/Berlin")
	series := weeklySeries(berlin)
	series.ExDates = strPtr("2024-06-18")

	res, err := Materialize(series, nil, monthWindow(berlin, time.June), Options{Location: berlin})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-06-04", "2024-06-11", "2024-06-25"}, dateKeys(res.Occurrences))

	raw, err := Materialize(series, nil, monthWindow(berlin, time.June), Options{Location: berlin, IncludeExcluded: true})
	require.NoError(t, err)
	require.Len(t, raw.Occurrences, 4)
	assert.True(t, raw.Occurrences[2].IsExcluded)
	assert.False(t, raw.Occurrences[1].IsExcluded)
}

func TestMaterializeMovedOccurrenceFollowsNewStart(t *testing.T) {
	berlin := mustLocation(t, "Europe/Berlin")
	series := weeklySeries(berlin)
	moved := time.Date(2024, time.July, 10, 10, 0, 0, 0, berlin)
	overrides := []models.OccurrenceOverride{{
		EventID:        series.ID,
		OccurrenceDate: "2024-06-11",
		DTStart:        &moved,
		DTEnd:          timePtr(moved.Add(2 * time.Hour)),
	}}

	june, err := Materialize(series, overrides, monthWindow(berlin, time.June), Options{Location: berlin})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-06-04", "2024-06-18", "2024-06-25"}, dateKeys(june.Occurrences))

	july, err := Materialize(series, overrides, monthWindow(berlin, time.July), Options{Location: berlin})
	require.NoError(t, err)
	require.Len(t, july.Occurrences, 6)
	assert.Equal(t, []string{"2024-07-02", "2024-07-09", "2024-06-11", "2024-07-16", "2024-07-23", "2024-07-30"}, dateKeys(july.Occurrences))

	occ := july.Occurrences[2]
	assert.True(t, occ.Start.Equal(moved))
	assert.Equal(t, 2*time.Hour, occ.End.Sub(occ.Start))
	assert.Equal(t, "evt-1:2024-06-11", occ.ID)
}

func TestMaterializeOrphanOverrideNeedsRealSlot(t *testing.T) {
	berlin := mustLocation(t, "Europe/Berlin")
	series := weeklySeries(berlin)
	series.ExDates = strPtr("2024-08-13")
	into := time.Date(2024, time.July, 31, 12, 0, 0, 0, berlin)
	overrides := []models.OccurrenceOverride{
		// Wednesday: not a slot of the rule.
		{EventID: series.ID, OccurrenceDate: "2024-08-07", DTStart: &into},
		// Excluded slot.
		{EventID: series.ID, OccurrenceDate: "2024-08-13", DTStart: &into},
	}

	july, err := Materialize(series, overrides, monthWindow(berlin, time.July), Options{Location: berlin})
	require.NoError(t, err)
	assert.Len(t, july.Occurrences, 5)

	overrides[0].OccurrenceDate = "2024-08-06"
	july, err = Materialize(series, overrides, monthWindow(berlin, time.July), Options{Location: berlin})
	require.NoError(t, err)
	require.Len(t, july.Occurrences, 6)
	assert.Equal(t, "2024-08-06", july.Occurrences[5].OccurrenceDate)
}

func TestMaterializeSingleEvent(t *testing.T) {
	berlin := mustLocation(t, "Europe/Berlin")
	series := &models.EventSeries{
		ID:                         "evt-2",
		Summary:                    "Open day",
		DTStart:                    time.Date(2024, time.June, 15, 10, 0, 0, 0, berlin),
		Status:                     models.EventStatusTentative,
		TypeDefaultDurationMinutes: 90,
	}

	june, err := Materialize(series, nil, monthWindow(berlin, time.June), Options{Location: berlin})
	require.NoError(t, err)
	require.Len(t, june.Occurrences, 1)
	occ := june.Occurrences[0]
	assert.Equal(t, "evt-2:2024-06-15", occ.ID)
	assert.False(t, occ.IsRecurring)
	assert.Equal(t, 90*time.Minute, occ.End.Sub(occ.Start))

	july, err := Materialize(series, nil, monthWindow(berlin, time.July), Options{Location: berlin})
	require.NoError(t, err)
	assert.Empty(t, july.Occurrences)

	confirmed := []models.OccurrenceOverride{{OccurrenceDate: "2024-06-15", Status: statusPtr(models.EventStatusConfirmed)}}
	june, err = Materialize(series, confirmed, monthWindow(berlin, time.June), Options{Location: berlin})
	require.NoError(t, err)
	require.Len(t, june.Occurrences, 1)
	assert.Equal(t, models.EventStatusConfirmed, june.Occurrences[0].Status)
}

func TestMaterializeVisibility(t *testing.T) {
	berlin := mustLocation(t, "Europe/Berlin")
	w := monthWindow(berlin, time.June)

	draft := weeklySeries(berlin)
	draft.Draft = true
	internal := weeklySeries(berlin)
	internal.TypeInternal = true
	public := weeklySeries(berlin)
	public.TypeInternal = true
	public.Internal = new(bool)

	for name, series := range map[string]*models.EventSeries{"draft": draft, "internal": internal} {
		t.Run(name, func(t *testing.T) {
			anon, err := Materialize(series, nil, w, Options{Location: berlin})
			require.NoError(t, err)
			assert.Empty(t, anon.Occurrences)

			authed, err := Materialize(series, nil, w, Options{Location: berlin, ViewerAuthenticated: true})
			require.NoError(t, err)
			assert.Len(t, authed.Occurrences, 4)
		})
	}

	res, err := Materialize(public, nil, w, Options{Location: berlin})
	require.NoError(t, err)
	assert.Len(t, res.Occurrences, 4)
	assert.False(t, res.Occurrences[0].Internal)
}

func TestMaterializeRecurrenceEndIsExclusive(t *testing.T) {
	berlin := mustLocation(t, "Europe/Berlin")
	series := weeklySeries(berlin)
	series.RecurrenceEndDate = timePtr(time.Date(2024, time.June, 19, 0, 0, 0, 0, berlin))

	res, err := Materialize(series, nil, monthWindow(berlin, time.June), Options{Location: berlin})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-06-04", "2024-06-11", "2024-06-18"}, dateKeys(res.Occurrences))

	series.RecurrenceEndDate = timePtr(time.Date(2024, time.June, 18, 19, 0, 0, 0, berlin))
	res, err = Materialize(series, nil, monthWindow(berlin, time.June), Options{Location: berlin})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-06-04", "2024-06-11"}, dateKeys(res.Occurrences))
}

func TestMaterializeSeriesTimezone(t *testing.T) {
	berlin := mustLocation(t, "Europe/Berlin")
	ny := mustLocation(t, "America/New_York")
	series := weeklySeries(ny)
	series.Timezone = strPtr("America/New_York")

	res, err := Materialize(series, nil, monthWindow(berlin, time.June), Options{Location: berlin})
	require.NoError(t, err)
	require.NotEmpty(t, res.Occurrences)
	for _, occ := range res.Occurrences {
		assert.Equal(t, 19, occ.Start.In(ny).Hour())
		// 19:00 in New York is already the next calendar day in Berlin.
		assert.Equal(t, time.Wednesday, occ.Start.In(berlin).Weekday())
		assert.Equal(t, DateKey(occ.Start, berlin), occ.OccurrenceDate)
	}
}

func TestMaterializeErrors(t *testing.T) {
	berlin := mustLocation(t, "Europe/Berlin")
	series := weeklySeries(berlin)

	_, err := Materialize(series, nil, Window{Start: series.DTStart}, Options{Location: berlin})
	assert.ErrorIs(t, err, ErrUnboundedWindow)

	series.RRule = strPtr("FREQ=NEVER")
	res, err := Materialize(series, nil, monthWindow(berlin, time.June), Options{Location: berlin})
	assert.ErrorIs(t, err, ErrInvalidRule)
	assert.Empty(t, res.Occurrences)
}

func TestSortOccurrencesAcrossSeries(t *testing.T) {
	base := time.Date(2024, time.June, 4, 17, 0, 0, 0, time.UTC)
	occs := []models.Occurrence{
		{ID: "b:2024-06-05", Start: base.Add(24 * time.Hour)},
		{ID: "a:2024-06-04", Start: base},
		{ID: "c:2024-06-04", Start: base},
	}
	SortOccurrences(occs)
	assert.Equal(t, "a:2024-06-04", occs[0].ID)
	assert.Equal(t, "c:2024-06-04", occs[1].ID)
	assert.Equal(t, "b:2024-06-05", occs[2].ID)
}

func TestSlotOn(t *testing.T) {
	berlin := mustLocation(t, "Europe/Berlin")
	series := weeklySeries(berlin)
	opts := Options{Location: berlin}

	slot, ok, err := SlotOn(series, "2024-06-11", opts)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, slot.Equal(time.Date(2024, time.June, 11, 19, 0, 0, 0, berlin)))

	_, ok, err = SlotOn(series, "2024-06-12", opts)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = SlotOn(series, "2024-6-12", opts)
	assert.ErrorIs(t, err, ErrInvalidDateKey)

	series.RecurrenceEndDate = timePtr(time.Date(2024, time.June, 11, 0, 0, 0, 0, berlin))
	_, ok, err = SlotOn(series, "2024-06-11", opts)
	require.NoError(t, err)
	assert.False(t, ok)

	single := weeklySeries(berlin)
	single.RRule = nil
	slot, ok, err = SlotOn(single, "2024-01-09", opts)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, slot.Equal(single.DTStart))
}
