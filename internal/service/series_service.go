package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/event-calendar-api/internal/dto"
	"github.com/noah-isme/event-calendar-api/internal/models"
	"github.com/noah-isme/event-calendar-api/internal/recurrence"
	"github.com/noah-isme/event-calendar-api/internal/repository"
	appErrors "github.com/noah-isme/event-calendar-api/pkg/errors"
)

type seriesStore interface {
	seriesTransactor
	FindByID(ctx context.Context, id string) (*models.EventSeries, error)
	Create(ctx context.Context, series *models.EventSeries) error
}

// SeriesService creates, edits and splits event series.
type SeriesService struct {
	repo      seriesStore
	cache     seriesInvalidator
	metrics   *MetricsService
	audit     auditTrail
	validator *validator.Validate
	logger    *zap.Logger
	location  *time.Location
	expander  recurrence.Expander
}

// NewSeriesService constructs the service.
func NewSeriesService(repo seriesStore, cache seriesInvalidator, audit auditLogger, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, location *time.Location, maxOccurrences int) *SeriesService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if location == nil {
		location = time.UTC
	}
	return &SeriesService{
		repo:      repo,
		cache:     cache,
		metrics:   metrics,
		audit:     auditTrail{repo: audit, logger: logger},
		validator: validate,
		logger:    logger,
		location:  location,
		expander:  recurrence.Expander{MaxOccurrences: maxOccurrences},
	}
}

// Get returns a series; drafts and internal series are hidden from anonymous viewers.
func (s *SeriesService) Get(ctx context.Context, id string, viewer *models.JWTClaims) (*models.EventSeries, error) {
	series, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapCalendarError(err, "failed to load event")
	}
	if viewer == nil && (series.Draft || series.IsInternal()) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
	}
	return series, nil
}

// Create validates and stores a new series.
func (s *SeriesService) Create(ctx context.Context, req dto.CreateSeriesRequest, actor *models.JWTClaims) (*models.EventSeries, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid event payload")
	}
	if err := requireEditor(actor, req.SpaceID); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = models.EventStatusConfirmed
	}
	exdates := recurrence.ExDateSet{}
	for _, key := range req.ExDates {
		exdates.Add(key)
	}
	series := &models.EventSeries{
		SpaceID:           req.SpaceID,
		EventTypeID:       req.EventTypeID,
		Summary:           strings.TrimSpace(req.Summary),
		Description:       req.Description,
		URL:               req.URL,
		Location:          req.Location,
		DTStart:           req.DTStart,
		DTEnd:             req.DTEnd,
		AllDay:            req.AllDay,
		Timezone:          emptyToNil(req.Timezone),
		RRule:             emptyToNil(req.RRule),
		RecurrenceEndDate: req.RecurrenceEndDate,
		ExDates:           exdates.Value(),
		Status:            status,
		Draft:             req.Draft,
		Internal:          req.Internal,
	}
	if err := validateSeries(series); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, series); err != nil {
		return nil, mapCalendarError(err, "failed to create event")
	}
	s.audit.record(ctx, actor, models.AuditActionSeriesCreate, series.ID, nil, series)
	return series, nil
}

// Update patches the whole series in place and bumps its sequence. Overrides
// stay keyed by their date, so a rule change never reassigns them.
func (s *SeriesService) Update(ctx context.Context, id string, req dto.UpdateSeriesRequest, actor *models.JWTClaims) (*models.EventSeries, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid event payload")
	}

	var before, after *models.EventSeries
	err := s.repo.WithTx(ctx, func(tx repository.SeriesTx) error {
		series, err := tx.LockSeries(ctx, id)
		if err != nil {
			return err
		}
		if err := requireEditor(actor, series.SpaceID); err != nil {
			return err
		}
		snapshot := *series
		before = &snapshot

		applySeriesUpdate(series, req)
		if err := validateSeries(series); err != nil {
			return err
		}
		if err := tx.UpdateSeries(ctx, series); err != nil {
			return err
		}
		after = series
		return nil
	})
	if err != nil {
		return nil, mapCalendarError(err, "failed to update event")
	}

	s.invalidate(ctx, id)
	s.audit.record(ctx, actor, models.AuditActionSeriesUpdate, id, before, after)
	return after, nil
}

// SplitSeriesFrom applies a "this and following" edit at req.SplitAt. The
// original keeps its history; the future part moves to a new series together
// with its exclusions and overrides.
func (s *SeriesService) SplitSeriesFrom(ctx context.Context, id string, req dto.SplitRequest, actor *models.JWTClaims) (*models.SplitResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid split payload")
	}

	var result models.SplitResult
	err := s.repo.WithTx(ctx, func(tx repository.SeriesTx) error {
		series, err := tx.LockSeries(ctx, id)
		if err != nil {
			return err
		}
		if err := requireEditor(actor, series.SpaceID); err != nil {
			return err
		}
		overrides, err := tx.ListOverrides(ctx, id)
		if err != nil {
			return err
		}

		plan, err := recurrence.PlanSplit(series, overrides, req.SplitAt, req.Patch(), recurrence.SplitOptions{
			Location: s.location,
			Expander: s.expander,
		})
		if err != nil {
			return err
		}
		result = models.SplitResult{Outcome: plan.Outcome, Original: plan.Original}

		switch plan.Outcome {
		case models.SplitOutcomeNoFuture:
			return nil
		case models.SplitOutcomeUpdatedWhole:
			return tx.UpdateSeries(ctx, plan.Original)
		}

		if err := tx.UpdateSeries(ctx, plan.Original); err != nil {
			return err
		}
		if err := tx.InsertSeries(ctx, plan.Created); err != nil {
			return err
		}
		if _, err := tx.DeleteOverridesFrom(ctx, id, plan.SplitDateKey); err != nil {
			return err
		}
		for i := range plan.Migrated {
			if err := tx.UpsertOverride(ctx, &plan.Migrated[i]); err != nil {
				return err
			}
		}
		result.Created = plan.Created
		result.SplitDateKey = plan.SplitDateKey
		result.MigratedOverrides = len(plan.Migrated)
		return nil
	})
	if err != nil {
		return nil, mapCalendarError(err, "failed to split event")
	}

	s.metrics.RecordSplit(result.Outcome)
	if result.Outcome != models.SplitOutcomeNoFuture {
		s.invalidate(ctx, id)
		s.audit.record(ctx, actor, models.AuditActionSeriesSplit, id, nil, result)
	}
	s.logger.Info("series split",
		zap.String("event_id", id),
		zap.String("outcome", string(result.Outcome)),
		zap.String("split_date", result.SplitDateKey),
		zap.Int("migrated_overrides", result.MigratedOverrides))
	return &result, nil
}

func (s *SeriesService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateSeries(ctx, id); err != nil {
		s.logger.Warn("failed to purge occurrence cache", zap.String("event_id", id), zap.Error(err))
	}
}

func applySeriesUpdate(series *models.EventSeries, req dto.UpdateSeriesRequest) {
	if req.Summary != nil {
		series.Summary = strings.TrimSpace(*req.Summary)
	}
	if req.Description != nil {
		series.Description = req.Description
	}
	if req.URL != nil {
		series.URL = req.URL
	}
	if req.Location != nil {
		series.Location = req.Location
	}
	if req.DTStart != nil {
		series.DTStart = *req.DTStart
	}
	if req.DTEnd != nil {
		series.DTEnd = req.DTEnd
	}
	if req.AllDay != nil {
		series.AllDay = *req.AllDay
	}
	if req.Timezone != nil {
		series.Timezone = emptyToNil(req.Timezone)
	}
	if req.RRule != nil {
		series.RRule = emptyToNil(req.RRule)
	}
	if req.RecurrenceEndDate != nil {
		series.RecurrenceEndDate = req.RecurrenceEndDate
	}
	if req.Status != nil {
		series.Status = *req.Status
	}
	if req.Draft != nil {
		series.Draft = *req.Draft
	}
	if req.Internal != nil {
		series.Internal = req.Internal
	}
}

// validateSeries rejects values the materializer could not expand. A bad rule
// is refused at write time rather than degraded at read time.
func validateSeries(series *models.EventSeries) error {
	if !series.Status.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "status must be tentative, confirmed or cancelled")
	}
	if series.DTEnd != nil && series.DTEnd.Before(series.DTStart) {
		return appErrors.Clone(appErrors.ErrValidation, "dtend must not be before dtstart")
	}
	if series.Timezone != nil {
		if _, err := recurrence.LoadLocation(*series.Timezone); err != nil {
			return mapCalendarError(err, "")
		}
	}
	if series.RRule != nil {
		if err := recurrence.ValidateRule(*series.RRule); err != nil {
			return mapCalendarError(err, "")
		}
	}
	if series.RecurrenceEndDate != nil && !series.RecurrenceEndDate.After(series.DTStart) {
		return appErrors.Clone(appErrors.ErrValidation, "recurrence_end_date must be after dtstart")
	}
	return nil
}

func emptyToNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
