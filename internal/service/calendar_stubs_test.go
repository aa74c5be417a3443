package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/noah-isme/event-calendar-api/internal/models"
	"github.com/noah-isme/event-calendar-api/internal/repository"
	appErrors "github.com/noah-isme/event-calendar-api/pkg/errors"
)

var berlin = mustLocation("Europe/Berlin")

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func strPtrOf(v string) *string { return &v }

func statusPtr(v models.EventStatus) *models.EventStatus { return &v }

func editorClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-1", Role: models.RoleEditor}
}

func viewerClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-2", Role: models.RoleViewer}
}

// weeklyJam is a Tuesday 19:00 Berlin series anchored on 2024-01-09.
func weeklyJam() *models.EventSeries {
	end := time.Date(2024, 1, 9, 20, 0, 0, 0, berlin)
	return &models.EventSeries{
		ID:          "evt-1",
		SpaceID:     "space-1",
		EventTypeID: "type-1",
		Summary:     "Jam session",
		DTStart:     time.Date(2024, 1, 9, 19, 0, 0, 0, berlin),
		DTEnd:       &end,
		RRule:       strPtrOf("FREQ=WEEKLY;BYDAY=TU"),
		Status:      models.EventStatusConfirmed,
		Sequence:    3,
	}
}

func singleLecture() *models.EventSeries {
	end := time.Date(2024, 6, 14, 11, 0, 0, 0, berlin)
	return &models.EventSeries{
		ID:          "evt-2",
		SpaceID:     "space-1",
		EventTypeID: "type-2",
		Summary:     "Guest lecture",
		DTStart:     time.Date(2024, 6, 14, 10, 0, 0, 0, berlin),
		DTEnd:       &end,
		Status:      models.EventStatusConfirmed,
		Sequence:    1,
	}
}

type overrideKey struct {
	eventID string
	date    string
}

// memorySeriesStore is an in-memory stand-in for EventRepository. WithTx
// restores the previous state when fn fails.
type memorySeriesStore struct {
	series    map[string]models.EventSeries
	overrides map[overrideKey]models.OccurrenceOverride
	listErr   error
	nextID    int

	listCalls     int
	overrideCalls int
	commits       int
	rollbacks     int
}

func newMemorySeriesStore(series ...*models.EventSeries) *memorySeriesStore {
	store := &memorySeriesStore{
		series:    make(map[string]models.EventSeries),
		overrides: make(map[overrideKey]models.OccurrenceOverride),
	}
	for _, s := range series {
		store.series[s.ID] = *s
	}
	return store
}

func (m *memorySeriesStore) addOverride(ov models.OccurrenceOverride) {
	if ov.ID == "" {
		ov.ID = "ovr-" + ov.EventID + "-" + ov.OccurrenceDate
	}
	m.overrides[overrideKey{ov.EventID, ov.OccurrenceDate}] = ov
}

func (m *memorySeriesStore) override(eventID, date string) (models.OccurrenceOverride, bool) {
	ov, ok := m.overrides[overrideKey{eventID, date}]
	return ov, ok
}

func (m *memorySeriesStore) List(ctx context.Context, filter models.SeriesFilter) ([]models.EventSeries, error) {
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]models.EventSeries, 0, len(m.series))
	for _, s := range m.series {
		if !matches(filter.IDs, s.ID) || !matches(filter.SpaceIDs, s.SpaceID) || !matches(filter.EventTypeIDs, s.EventTypeID) {
			continue
		}
		if s.Draft && !filter.IncludeDrafts {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DTStart.Equal(out[j].DTStart) {
			return out[i].DTStart.Before(out[j].DTStart)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func matches(allowed []string, value string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, v := range allowed {
		if v == value {
			return true
		}
	}
	return false
}

func (m *memorySeriesStore) FindByID(ctx context.Context, id string) (*models.EventSeries, error) {
	s, ok := m.series[id]
	if !ok {
		return nil, fmt.Errorf("find event series: %w", sql.ErrNoRows)
	}
	return &s, nil
}

func (m *memorySeriesStore) ListOverrides(ctx context.Context, eventIDs []string) ([]models.OccurrenceOverride, error) {
	m.overrideCalls++
	var out []models.OccurrenceOverride
	for _, ov := range m.overrides {
		if matches(eventIDs, ov.EventID) {
			out = append(out, ov)
		}
	}
	sortOverrides(out)
	return out, nil
}

func (m *memorySeriesStore) Create(ctx context.Context, series *models.EventSeries) error {
	if series.ID == "" {
		m.nextID++
		series.ID = fmt.Sprintf("evt-new-%d", m.nextID)
	}
	series.Sequence = 1
	m.series[series.ID] = *series
	return nil
}

func (m *memorySeriesStore) WithTx(ctx context.Context, fn func(tx repository.SeriesTx) error) error {
	seriesSnapshot := make(map[string]models.EventSeries, len(m.series))
	for k, v := range m.series {
		seriesSnapshot[k] = v
	}
	overrideSnapshot := make(map[overrideKey]models.OccurrenceOverride, len(m.overrides))
	for k, v := range m.overrides {
		overrideSnapshot[k] = v
	}
	if err := fn(&memorySeriesTx{store: m}); err != nil {
		m.series, m.overrides = seriesSnapshot, overrideSnapshot
		m.rollbacks++
		return err
	}
	m.commits++
	return nil
}

type memorySeriesTx struct {
	store *memorySeriesStore
}

func (t *memorySeriesTx) LockSeries(ctx context.Context, id string) (*models.EventSeries, error) {
	return t.store.FindByID(ctx, id)
}

func (t *memorySeriesTx) ListOverrides(ctx context.Context, eventID string) ([]models.OccurrenceOverride, error) {
	return t.store.ListOverrides(ctx, []string{eventID})
}

func (t *memorySeriesTx) GetOverride(ctx context.Context, eventID, occurrenceDate string) (*models.OccurrenceOverride, error) {
	ov, ok := t.store.override(eventID, occurrenceDate)
	if !ok {
		return nil, nil
	}
	return &ov, nil
}

func (t *memorySeriesTx) UpsertOverride(ctx context.Context, override *models.OccurrenceOverride) error {
	t.store.addOverride(*override)
	stored, _ := t.store.override(override.EventID, override.OccurrenceDate)
	override.ID = stored.ID
	return nil
}

func (t *memorySeriesTx) DeleteOverride(ctx context.Context, eventID, occurrenceDate string) (bool, error) {
	key := overrideKey{eventID, occurrenceDate}
	_, ok := t.store.overrides[key]
	delete(t.store.overrides, key)
	return ok, nil
}

func (t *memorySeriesTx) DeleteOverridesFrom(ctx context.Context, eventID, fromDate string) (int64, error) {
	var n int64
	for key := range t.store.overrides {
		if key.eventID == eventID && key.date >= fromDate {
			delete(t.store.overrides, key)
			n++
		}
	}
	return n, nil
}

func (t *memorySeriesTx) InsertSeries(ctx context.Context, series *models.EventSeries) error {
	if _, exists := t.store.series[series.ID]; exists {
		return fmt.Errorf("insert event series: duplicate id %s", series.ID)
	}
	if series.Sequence == 0 {
		series.Sequence = 1
	}
	t.store.series[series.ID] = *series
	return nil
}

func (t *memorySeriesTx) UpdateSeries(ctx context.Context, series *models.EventSeries) error {
	stored, ok := t.store.series[series.ID]
	if !ok {
		return fmt.Errorf("update event series: %w", sql.ErrNoRows)
	}
	series.Sequence = stored.Sequence + 1
	t.store.series[series.ID] = *series
	return nil
}

func (t *memorySeriesTx) DeleteSeries(ctx context.Context, id string) error {
	if _, ok := t.store.series[id]; !ok {
		return fmt.Errorf("delete event series: %w", sql.ErrNoRows)
	}
	delete(t.store.series, id)
	for key := range t.store.overrides {
		if key.eventID == id {
			delete(t.store.overrides, key)
		}
	}
	return nil
}

func sortOverrides(items []models.OccurrenceOverride) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].EventID != items[j].EventID {
			return items[i].EventID < items[j].EventID
		}
		return items[i].OccurrenceDate < items[j].OccurrenceDate
	})
}

// memoryCacheRepository mirrors the redis repository by storing JSON payloads.
type memoryCacheRepository struct {
	entries  map[string][]byte
	patterns []string
	setErr   error
}

func newMemoryCacheRepository() *memoryCacheRepository {
	return &memoryCacheRepository{entries: make(map[string][]byte)}
}

func (m *memoryCacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

// DeleteByPattern understands the trailing-star patterns the cache service uses.
func (m *memoryCacheRepository) DeleteByPattern(ctx context.Context, pattern string) error {
	m.patterns = append(m.patterns, pattern)
	prefix := pattern
	if n := len(prefix); n > 0 && prefix[n-1] == '*' {
		prefix = prefix[:n-1]
	}
	for key := range m.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(m.entries, key)
		}
	}
	return nil
}

type invalidatorStub struct {
	ids []string
}

func (s *invalidatorStub) InvalidateSeries(ctx context.Context, seriesID string) error {
	s.ids = append(s.ids, seriesID)
	return nil
}

type auditStub struct {
	logs []*models.AuditLog
	err  error
}

func (s *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.logs = append(s.logs, log)
	return s.err
}

func (s *auditStub) actions() []string {
	out := make([]string, 0, len(s.logs))
	for _, l := range s.logs {
		out = append(out, l.Action)
	}
	return out
}

func errorCode(err error) string {
	if typed := appErrors.FromError(err); typed != nil {
		return typed.Code
	}
	return ""
}
