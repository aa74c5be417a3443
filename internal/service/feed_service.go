package service

import (
	"context"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"github.com/noah-isme/event-calendar-api/internal/models"
	"github.com/noah-isme/event-calendar-api/internal/recurrence"
)

type feedSeriesLister interface {
	List(ctx context.Context, filter models.SeriesFilter) ([]models.EventSeries, error)
}

type occurrenceMaterializer interface {
	Materialize(ctx context.Context, series []models.EventSeries, window recurrence.Window, authenticated bool) ([]models.Occurrence, error)
}

// FeedServiceConfig bounds the published window around now.
type FeedServiceConfig struct {
	Location *time.Location
	Lookback time.Duration
	Horizon  time.Duration
	// ProductID is the PRODID service name.
	ProductID string
}

// FeedService renders the public iCalendar subscription feed of a space. Each
// occurrence becomes its own VEVENT; SEQUENCE carries the series sequence so
// subscribed clients notice edits.
type FeedService struct {
	series feedSeriesLister
	occ    occurrenceMaterializer
	logger *zap.Logger
	cfg    FeedServiceConfig
	now    func() time.Time
}

// NewFeedService constructs the service with defaults.
func NewFeedService(series feedSeriesLister, occ occurrenceMaterializer, logger *zap.Logger, cfg FeedServiceConfig) *FeedService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = 30 * 24 * time.Hour
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = 2 * 366 * 24 * time.Hour
	}
	if cfg.ProductID == "" {
		cfg.ProductID = "event-calendar-api"
	}
	return &FeedService{series: series, occ: occ, logger: logger, cfg: cfg, now: time.Now}
}

// SpaceFeed returns the serialized calendar of the public occurrences of spaceID.
func (s *FeedService) SpaceFeed(ctx context.Context, spaceID string) (string, error) {
	now := s.now()
	today := recurrence.StartOfDay(now, s.cfg.Location)
	window := recurrence.Window{Start: today.Add(-s.cfg.Lookback), End: today.Add(s.cfg.Horizon)}

	series, err := s.series.List(ctx, models.SeriesFilter{
		SpaceIDs:    []string{spaceID},
		WindowStart: window.Start,
		WindowEnd:   window.End,
	})
	if err != nil {
		return "", mapCalendarError(err, "failed to list events")
	}
	occurrences, err := s.occ.Materialize(ctx, series, window, false)
	if err != nil {
		return "", err
	}

	cal := ics.NewCalendarFor(s.cfg.ProductID)
	cal.SetMethod(ics.MethodPublish)
	cal.SetXWRCalName(spaceID)
	cal.SetXWRTimezone(s.cfg.Location.String())
	cal.SetRefreshInterval("PT1H")
	for i := range occurrences {
		addFeedEvent(cal, &occurrences[i], now, s.cfg.Location)
	}

	s.logger.Debug("rendered space feed",
		zap.String("space_id", spaceID),
		zap.Int("series", len(series)),
		zap.Int("occurrences", len(occurrences)))
	return cal.Serialize(), nil
}

func addFeedEvent(cal *ics.Calendar, occ *models.Occurrence, stamp time.Time, loc *time.Location) {
	ev := cal.AddEvent(occ.ID)
	ev.SetDtStampTime(stamp)
	if occ.AllDay {
		ev.SetAllDayStartAt(occ.Start.In(loc))
		end := occ.End
		if !end.After(occ.Start) {
			end = recurrence.NextDay(occ.Start, loc)
		}
		ev.SetAllDayEndAt(end.In(loc))
	} else {
		ev.SetStartAt(occ.Start)
		ev.SetEndAt(occ.End)
	}
	ev.SetSummary(occ.Summary)
	if occ.Description != nil {
		ev.SetDescription(*occ.Description)
	}
	if occ.Location != nil {
		ev.SetLocation(*occ.Location)
	}
	if occ.URL != nil {
		ev.SetURL(*occ.URL)
	}
	if occ.Notes != nil {
		ev.AddComment(*occ.Notes)
	}
	ev.SetStatus(feedStatus(occ.Status))
	ev.SetSequence(occ.Sequence)
}

func feedStatus(status models.EventStatus) ics.ObjectStatus {
	switch status {
	case models.EventStatusTentative:
		return ics.ObjectStatusTentative
	case models.EventStatusCancelled:
		return ics.ObjectStatusCancelled
	default:
		return ics.ObjectStatusConfirmed
	}
}
