package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/event-calendar-api/internal/dto"
	"github.com/noah-isme/event-calendar-api/internal/models"
	"github.com/noah-isme/event-calendar-api/internal/recurrence"
	appErrors "github.com/noah-isme/event-calendar-api/pkg/errors"
)

type occurrenceReader interface {
	List(ctx context.Context, filter models.SeriesFilter) ([]models.EventSeries, error)
	FindByID(ctx context.Context, id string) (*models.EventSeries, error)
	ListOverrides(ctx context.Context, eventIDs []string) ([]models.OccurrenceOverride, error)
}

type occurrenceCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// OccurrenceServiceConfig carries the calendar limits.
type OccurrenceServiceConfig struct {
	Location       *time.Location
	MaxWindow      time.Duration
	MaxOccurrences int
	CacheTTL       time.Duration
	// UpcomingHorizon bounds the search for the next occurrence of a series.
	UpcomingHorizon time.Duration
}

// OccurrenceService materializes series into the occurrences of a window.
type OccurrenceService struct {
	repo    occurrenceReader
	cache   occurrenceCache
	metrics *MetricsService
	logger  *zap.Logger
	cfg     OccurrenceServiceConfig
	now     func() time.Time
}

// NewOccurrenceService constructs the service with defaults.
func NewOccurrenceService(repo occurrenceReader, cache occurrenceCache, metrics *MetricsService, logger *zap.Logger, cfg OccurrenceServiceConfig) *OccurrenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxWindow <= 0 {
		cfg.MaxWindow = 3 * 366 * 24 * time.Hour
	}
	if cfg.MaxOccurrences <= 0 {
		cfg.MaxOccurrences = recurrence.DefaultMaxOccurrences
	}
	if cfg.UpcomingHorizon <= 0 {
		cfg.UpcomingHorizon = 2 * 366 * 24 * time.Hour
	}
	return &OccurrenceService{repo: repo, cache: cache, metrics: metrics, logger: logger, cfg: cfg, now: time.Now}
}

// ListOccurrences returns the visible occurrences of every matching series in
// the window, ordered by start. viewer is nil for anonymous requests.
func (s *OccurrenceService) ListOccurrences(ctx context.Context, q dto.OccurrenceQuery, viewer *models.JWTClaims) (*dto.OccurrenceList, error) {
	if err := s.checkWindow(q.Start, q.End); err != nil {
		return nil, err
	}
	if q.IncludeExcluded && (viewer == nil || viewer.Role == models.RoleViewer) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "excluded occurrences are visible to editors only")
	}

	series, err := s.repo.List(ctx, models.SeriesFilter{
		IDs:           q.EventIDs,
		SpaceIDs:      q.SpaceIDs,
		EventTypeIDs:  q.EventTypeIDs,
		WindowStart:   q.Start,
		WindowEnd:     q.End,
		IncludeDrafts: viewer != nil,
	})
	if err != nil {
		return nil, mapCalendarError(err, "failed to list events")
	}

	window := recurrence.Window{Start: q.Start, End: q.End}
	opts := s.options(viewer != nil, q.IncludeExcluded)
	results, hits, err := s.materializeAll(ctx, series, window, opts)
	if err != nil {
		return nil, err
	}

	list := &dto.OccurrenceList{Items: make([]models.Occurrence, 0), CacheHit: len(series) > 0 && hits == len(series)}
	for _, res := range results {
		list.Items = append(list.Items, res.Occurrences...)
		list.Truncated = list.Truncated || res.Truncated
	}
	recurrence.SortOccurrences(list.Items)
	return list, nil
}

// NextOccurrence returns the first occurrence of a series that has not ended,
// skipping cancelled ones.
func (s *OccurrenceService) NextOccurrence(ctx context.Context, eventID string, viewer *models.JWTClaims) (*models.Occurrence, error) {
	series, err := s.repo.FindByID(ctx, eventID)
	if err != nil {
		return nil, mapCalendarError(err, "failed to load event")
	}
	if viewer == nil && (series.Draft || series.IsInternal()) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
	}

	now := s.now()
	// Hour aligned so repeated lookups share a cache entry. Occurrences that
	// started up to a day ago may still be running.
	from := now.Truncate(time.Hour).Add(-24 * time.Hour)
	window := recurrence.Window{Start: from, End: from.Add(s.cfg.UpcomingHorizon)}
	results, _, err := s.materializeAll(ctx, []models.EventSeries{*series}, window, s.options(viewer != nil, false))
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "event has no usable recurrence")
	}
	next := recurrence.NextUpcoming(results[0].Occurrences, now)
	if next == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no upcoming occurrence")
	}
	return next, nil
}

// Materialize expands already loaded series; used by the feed and export paths.
func (s *OccurrenceService) Materialize(ctx context.Context, series []models.EventSeries, window recurrence.Window, authenticated bool) ([]models.Occurrence, error) {
	results, _, err := s.materializeAll(ctx, series, window, s.options(authenticated, false))
	if err != nil {
		return nil, err
	}
	var out []models.Occurrence
	for _, res := range results {
		out = append(out, res.Occurrences...)
	}
	recurrence.SortOccurrences(out)
	return out, nil
}

func (s *OccurrenceService) checkWindow(start, end time.Time) error {
	if end.IsZero() {
		return appErrors.Clone(appErrors.ErrUnbounded, "end is required")
	}
	if start.IsZero() {
		return validationError(nil, "start is required")
	}
	if end.Before(start) {
		return validationError(nil, "end must not be before start")
	}
	if end.Sub(start) > s.cfg.MaxWindow {
		return appErrors.Clone(appErrors.ErrUnbounded, "query window exceeds "+s.cfg.MaxWindow.String())
	}
	return nil
}

func (s *OccurrenceService) options(authenticated, includeExcluded bool) recurrence.Options {
	return recurrence.Options{
		Location:            s.cfg.Location,
		ViewerAuthenticated: authenticated,
		IncludeExcluded:     includeExcluded,
		Expander:            recurrence.Expander{MaxOccurrences: s.cfg.MaxOccurrences},
	}
}

// materializeAll expands each series, reading through the cache. Series whose
// rule or timezone is invalid are logged and skipped. It returns the results in
// series order and the number of cache hits.
func (s *OccurrenceService) materializeAll(ctx context.Context, series []models.EventSeries, window recurrence.Window, opts recurrence.Options) ([]recurrence.Result, int, error) {
	results := make([]recurrence.Result, len(series))
	found := make([]bool, len(series))
	keys := make([]string, len(series))
	var (
		hits    int
		missing []string
	)
	for i := range series {
		keys[i] = OccurrenceKey(&series[i], window.Start, window.End, opts.ViewerAuthenticated, opts.IncludeExcluded)
		if s.cache != nil {
			var cached recurrence.Result
			hit, err := s.cache.Get(ctx, keys[i], &cached)
			if err == nil && hit {
				results[i], found[i] = cached, true
				hits++
				continue
			}
		}
		missing = append(missing, series[i].ID)
	}

	overrides := make(map[string][]models.OccurrenceOverride)
	if len(missing) > 0 {
		rows, err := s.repo.ListOverrides(ctx, missing)
		if err != nil {
			return nil, 0, mapCalendarError(err, "failed to load overrides")
		}
		for _, ov := range rows {
			overrides[ov.EventID] = append(overrides[ov.EventID], ov)
		}
	}

	out := make([]recurrence.Result, 0, len(series))
	for i := range series {
		if found[i] {
			out = append(out, results[i])
			continue
		}
		started := time.Now()
		res, err := recurrence.Materialize(&series[i], overrides[series[i].ID], window, opts)
		if err != nil {
			if errors.Is(err, recurrence.ErrInvalidRule) || errors.Is(err, recurrence.ErrUnknownTimezone) {
				s.metrics.RecordInvalidRule()
				s.logger.Warn("skipping series with invalid recurrence",
					zap.String("series_id", series[i].ID),
					zap.Stringp("rrule", series[i].RRule),
					zap.Stringp("timezone", series[i].Timezone),
					zap.Error(err))
				continue
			}
			return nil, 0, mapCalendarError(err, "failed to materialize occurrences")
		}
		s.metrics.ObserveMaterialize(len(res.Occurrences), res.Truncated, time.Since(started))
		if res.Truncated {
			s.logger.Warn("occurrence expansion truncated",
				zap.String("series_id", series[i].ID),
				zap.Int("limit", s.cfg.MaxOccurrences))
		}
		if s.cache != nil {
			_ = s.cache.Set(ctx, keys[i], res, s.cfg.CacheTTL)
		}
		out = append(out, res)
	}
	return out, hits, nil
}
