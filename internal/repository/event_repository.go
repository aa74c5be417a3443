package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/event-calendar-api/internal/models"
)

const seriesColumns = `e.id, e.space_id, e.event_type_id, e.summary, e.description, e.url, e.location,
       e.dtstart, e.dtend, e.all_day, e.timezone, e.rrule, e.recurrence_end_date, e.exdates,
       e.status, e.draft, e.internal, e.sequence, e.created_at, e.updated_at,
       COALESCE(t.default_duration_minutes, 0) AS type_default_duration_minutes,
       COALESCE(t.internal, FALSE) AS type_internal,
       s.location AS space_location`

const seriesFrom = `
FROM event_series e
LEFT JOIN event_types t ON t.id = e.event_type_id
LEFT JOIN spaces s ON s.id = e.space_id`

const overrideColumns = `id, event_id, occurrence_date, summary, description, url, location, dtstart, dtend, status, notes, created_at, updated_at`

// SeriesTx is the set of writes a series mutation performs atomically.
type SeriesTx interface {
	LockSeries(ctx context.Context, id string) (*models.EventSeries, error)
	ListOverrides(ctx context.Context, eventID string) ([]models.OccurrenceOverride, error)
	GetOverride(ctx context.Context, eventID, occurrenceDate string) (*models.OccurrenceOverride, error)
	UpsertOverride(ctx context.Context, override *models.OccurrenceOverride) error
	DeleteOverride(ctx context.Context, eventID, occurrenceDate string) (bool, error)
	DeleteOverridesFrom(ctx context.Context, eventID, fromDate string) (int64, error)
	InsertSeries(ctx context.Context, series *models.EventSeries) error
	UpdateSeries(ctx context.Context, series *models.EventSeries) error
	DeleteSeries(ctx context.Context, id string) error
}

// EventRepository persists event series and their occurrence overrides.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// List returns the series that may produce occurrences inside the filter window,
// ordered by anchor then id.
func (r *EventRepository) List(ctx context.Context, filter models.SeriesFilter) ([]models.EventSeries, error) {
	var (
		conditions []string
		args       []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.IDs) > 0 {
		conditions = append(conditions, "e.id = ANY("+arg(pq.Array(filter.IDs))+")")
	}
	if len(filter.SpaceIDs) > 0 {
		conditions = append(conditions, "e.space_id = ANY("+arg(pq.Array(filter.SpaceIDs))+")")
	}
	if len(filter.EventTypeIDs) > 0 {
		conditions = append(conditions, "e.event_type_id = ANY("+arg(pq.Array(filter.EventTypeIDs))+")")
	}
	if !filter.IncludeDrafts {
		conditions = append(conditions, "e.draft = FALSE")
	}
	if !filter.WindowStart.IsZero() && !filter.WindowEnd.IsZero() {
		start, end := arg(filter.WindowStart), arg(filter.WindowEnd)
		conditions = append(conditions, fmt.Sprintf(`(
	(e.rrule IS NULL AND e.dtstart BETWEEN %[1]s AND %[2]s)
	OR (e.rrule IS NOT NULL AND e.dtstart <= %[2]s AND (e.recurrence_end_date IS NULL OR e.recurrence_end_date > %[1]s))
	OR EXISTS (SELECT 1 FROM occurrence_overrides o WHERE o.event_id = e.id AND o.dtstart BETWEEN %[1]s AND %[2]s)
)`, start, end))
	}

	query := "SELECT " + seriesColumns + seriesFrom
	if len(conditions) > 0 {
		query += "\nWHERE " + strings.Join(conditions, "\n  AND ")
	}
	query += "\nORDER BY e.dtstart ASC, e.id ASC"

	var series []models.EventSeries
	if err := r.db.SelectContext(ctx, &series, query, args...); err != nil {
		return nil, fmt.Errorf("list event series: %w", err)
	}
	return series, nil
}

// FindByID returns a single series; sql.ErrNoRows when it does not exist.
func (r *EventRepository) FindByID(ctx context.Context, id string) (*models.EventSeries, error) {
	query := "SELECT " + seriesColumns + seriesFrom + "\nWHERE e.id = $1"
	var series models.EventSeries
	if err := r.db.GetContext(ctx, &series, query, id); err != nil {
		return nil, fmt.Errorf("find event series %s: %w", id, err)
	}
	return &series, nil
}

// ListOverrides returns the overrides of the given series ordered by date key.
func (r *EventRepository) ListOverrides(ctx context.Context, eventIDs []string) ([]models.OccurrenceOverride, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT ` + overrideColumns + `
FROM occurrence_overrides
WHERE event_id = ANY($1)
ORDER BY event_id ASC, occurrence_date ASC`
	var overrides []models.OccurrenceOverride
	if err := r.db.SelectContext(ctx, &overrides, query, pq.Array(eventIDs)); err != nil {
		return nil, fmt.Errorf("list occurrence overrides: %w", err)
	}
	return overrides, nil
}

// Create inserts a new series.
func (r *EventRepository) Create(ctx context.Context, series *models.EventSeries) error {
	return insertSeries(ctx, r.db, series)
}

// WithTx runs fn inside one transaction. The transaction is committed when fn
// returns nil and rolled back otherwise.
func (r *EventRepository) WithTx(ctx context.Context, fn func(tx SeriesTx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin series tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&eventTx{tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit series tx: %w", err)
	}
	return nil
}

type eventTx struct {
	tx *sqlx.Tx
}

// LockSeries loads a series and holds its row lock until the transaction ends.
func (t *eventTx) LockSeries(ctx context.Context, id string) (*models.EventSeries, error) {
	query := "SELECT " + seriesColumns + seriesFrom + "\nWHERE e.id = $1\nFOR UPDATE OF e"
	var series models.EventSeries
	if err := t.tx.GetContext(ctx, &series, query, id); err != nil {
		return nil, fmt.Errorf("lock event series %s: %w", id, err)
	}
	return &series, nil
}

func (t *eventTx) ListOverrides(ctx context.Context, eventID string) ([]models.OccurrenceOverride, error) {
	const query = `SELECT ` + overrideColumns + `
FROM occurrence_overrides
WHERE event_id = $1
ORDER BY occurrence_date ASC`
	var overrides []models.OccurrenceOverride
	if err := t.tx.SelectContext(ctx, &overrides, query, eventID); err != nil {
		return nil, fmt.Errorf("list occurrence overrides: %w", err)
	}
	return overrides, nil
}

// GetOverride returns nil without error when no override exists for the key.
func (t *eventTx) GetOverride(ctx context.Context, eventID, occurrenceDate string) (*models.OccurrenceOverride, error) {
	const query = `SELECT ` + overrideColumns + `
FROM occurrence_overrides
WHERE event_id = $1 AND occurrence_date = $2`
	var override models.OccurrenceOverride
	if err := t.tx.GetContext(ctx, &override, query, eventID, occurrenceDate); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get occurrence override: %w", err)
	}
	return &override, nil
}

// UpsertOverride writes the full override row keyed by (event_id, occurrence_date).
func (t *eventTx) UpsertOverride(ctx context.Context, override *models.OccurrenceOverride) error {
	if override.ID == "" {
		override.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if override.CreatedAt.IsZero() {
		override.CreatedAt = now
	}
	override.UpdatedAt = now

	const query = `INSERT INTO occurrence_overrides (id, event_id, occurrence_date, summary, description, url, location, dtstart, dtend, status, notes, created_at, updated_at)
VALUES (:id, :event_id, :occurrence_date, :summary, :description, :url, :location, :dtstart, :dtend, :status, :notes, :created_at, :updated_at)
ON CONFLICT (event_id, occurrence_date)
DO UPDATE SET summary = EXCLUDED.summary, description = EXCLUDED.description, url = EXCLUDED.url,
              location = EXCLUDED.location, dtstart = EXCLUDED.dtstart, dtend = EXCLUDED.dtend,
              status = EXCLUDED.status, notes = EXCLUDED.notes, updated_at = EXCLUDED.updated_at`
	if _, err := t.tx.NamedExecContext(ctx, query, override); err != nil {
		return fmt.Errorf("upsert occurrence override: %w", err)
	}
	return nil
}

// DeleteOverride reports whether a row was removed.
func (t *eventTx) DeleteOverride(ctx context.Context, eventID, occurrenceDate string) (bool, error) {
	const query = `DELETE FROM occurrence_overrides WHERE event_id = $1 AND occurrence_date = $2`
	result, err := t.tx.ExecContext(ctx, query, eventID, occurrenceDate)
	if err != nil {
		return false, fmt.Errorf("delete occurrence override: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check deleted override rows: %w", err)
	}
	return affected > 0, nil
}

// DeleteOverridesFrom removes the overrides dated fromDate or later.
func (t *eventTx) DeleteOverridesFrom(ctx context.Context, eventID, fromDate string) (int64, error) {
	const query = `DELETE FROM occurrence_overrides WHERE event_id = $1 AND occurrence_date >= $2`
	result, err := t.tx.ExecContext(ctx, query, eventID, fromDate)
	if err != nil {
		return 0, fmt.Errorf("delete future occurrence overrides: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check deleted override rows: %w", err)
	}
	return affected, nil
}

func (t *eventTx) InsertSeries(ctx context.Context, series *models.EventSeries) error {
	return insertSeries(ctx, t.tx, series)
}

// UpdateSeries writes the mutable columns and bumps sequence; the stored
// sequence and updated_at are copied back onto series.
func (t *eventTx) UpdateSeries(ctx context.Context, series *models.EventSeries) error {
	const query = `UPDATE event_series
SET summary = $2, description = $3, url = $4, location = $5, dtstart = $6, dtend = $7, all_day = $8,
    timezone = $9, rrule = $10, recurrence_end_date = $11, exdates = $12, status = $13, draft = $14,
    internal = $15, sequence = sequence + 1, updated_at = $16
WHERE id = $1
RETURNING sequence, updated_at`
	row := t.tx.QueryRowxContext(ctx, query,
		series.ID, series.Summary, series.Description, series.URL, series.Location, series.DTStart, series.DTEnd,
		series.AllDay, series.Timezone, series.RRule, series.RecurrenceEndDate, series.ExDates, series.Status,
		series.Draft, series.Internal, time.Now().UTC(),
	)
	if err := row.Scan(&series.Sequence, &series.UpdatedAt); err != nil {
		return fmt.Errorf("update event series %s: %w", series.ID, err)
	}
	return nil
}

// DeleteSeries removes a series; its overrides cascade.
func (t *eventTx) DeleteSeries(ctx context.Context, id string) error {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM event_series WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event series: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deleted series rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func insertSeries(ctx context.Context, exec sqlx.ExtContext, series *models.EventSeries) error {
	if series.ID == "" {
		series.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if series.CreatedAt.IsZero() {
		series.CreatedAt = now
	}
	series.UpdatedAt = now
	if series.Sequence == 0 {
		series.Sequence = 1
	}

	const query = `INSERT INTO event_series (id, space_id, event_type_id, summary, description, url, location, dtstart, dtend, all_day,
    timezone, rrule, recurrence_end_date, exdates, status, draft, internal, sequence, created_at, updated_at)
VALUES (:id, :space_id, :event_type_id, :summary, :description, :url, :location, :dtstart, :dtend, :all_day,
    :timezone, :rrule, :recurrence_end_date, :exdates, :status, :draft, :internal, :sequence, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, series); err != nil {
		return fmt.Errorf("create event series: %w", err)
	}
	return nil
}
