package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/event-calendar-api/internal/dto"
	"github.com/noah-isme/event-calendar-api/internal/models"
	"github.com/noah-isme/event-calendar-api/internal/recurrence"
	"github.com/noah-isme/event-calendar-api/internal/repository"
	appErrors "github.com/noah-isme/event-calendar-api/pkg/errors"
)

type seriesTransactor interface {
	WithTx(ctx context.Context, fn func(tx repository.SeriesTx) error) error
}

type seriesInvalidator interface {
	InvalidateSeries(ctx context.Context, seriesID string) error
}

// OverrideService manages per-occurrence exceptions of a series. Every
// mutation bumps the series sequence in the same transaction.
type OverrideService struct {
	repo      seriesTransactor
	cache     seriesInvalidator
	metrics   *MetricsService
	audit     auditTrail
	validator *validator.Validate
	logger    *zap.Logger
	location  *time.Location
}

// NewOverrideService constructs the service.
func NewOverrideService(repo seriesTransactor, cache seriesInvalidator, audit auditLogger, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, location *time.Location) *OverrideService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if location == nil {
		location = time.UTC
	}
	return &OverrideService{
		repo:      repo,
		cache:     cache,
		metrics:   metrics,
		audit:     auditTrail{repo: audit, logger: logger},
		validator: validate,
		logger:    logger,
		location:  location,
	}
}

// UpsertOverride creates the override for (eventID, occurrenceDate) or patches
// the supplied fields of the existing one.
func (s *OverrideService) UpsertOverride(ctx context.Context, eventID, occurrenceDate string, req dto.OverrideRequest, actor *models.JWTClaims) (*models.OccurrenceOverride, error) {
	if err := recurrence.ValidateDateKey(occurrenceDate); err != nil {
		return nil, mapCalendarError(err, "")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid override payload")
	}

	var before, after *models.OccurrenceOverride
	err := s.repo.WithTx(ctx, func(tx repository.SeriesTx) error {
		series, err := s.lockEditable(ctx, tx, eventID, actor)
		if err != nil {
			return err
		}
		slot, err := s.requireSlot(series, occurrenceDate)
		if err != nil {
			return err
		}

		current, err := tx.GetOverride(ctx, eventID, occurrenceDate)
		if err != nil {
			return err
		}
		override := &models.OccurrenceOverride{EventID: eventID, OccurrenceDate: occurrenceDate}
		if current != nil {
			prev := *current
			before = &prev
			*override = *current
		}
		req.Patch().Apply(override)

		start := slot
		if override.DTStart != nil {
			start = *override.DTStart
		}
		if override.DTEnd != nil && override.DTEnd.Before(start) {
			return appErrors.Clone(appErrors.ErrValidation, "dtend must not be before the occurrence start")
		}

		if err := tx.UpsertOverride(ctx, override); err != nil {
			return err
		}
		after = override
		return tx.UpdateSeries(ctx, series)
	})
	if err != nil {
		return nil, mapCalendarError(err, "failed to save override")
	}

	s.afterMutation(ctx, actor, models.AuditActionOverrideUpsert, eventID, before, after)
	return after, nil
}

// DeleteOccurrence removes one occurrence. A single event is deleted as a whole;
// a recurring series gets the date excluded and loses any override for it.
func (s *OverrideService) DeleteOccurrence(ctx context.Context, eventID, occurrenceDate string, actor *models.JWTClaims) (models.DeletedKind, error) {
	if err := recurrence.ValidateDateKey(occurrenceDate); err != nil {
		return "", mapCalendarError(err, "")
	}

	var (
		kind models.DeletedKind
		old  *models.EventSeries
	)
	err := s.repo.WithTx(ctx, func(tx repository.SeriesTx) error {
		series, err := s.lockEditable(ctx, tx, eventID, actor)
		if err != nil {
			return err
		}
		snapshot := *series
		old = &snapshot

		if !series.IsRecurring() {
			if recurrence.DateKey(series.DTStart, s.location) != occurrenceDate {
				return appErrors.Clone(appErrors.ErrNotFound, "event has no occurrence on "+occurrenceDate)
			}
			kind = models.DeletedKindEvent
			return tx.DeleteSeries(ctx, eventID)
		}

		kind = models.DeletedKindOccurrence
		if _, ok, err := recurrence.SlotOn(series, occurrenceDate, recurrence.Options{Location: s.location}); err != nil {
			return err
		} else if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "event has no occurrence on "+occurrenceDate)
		}
		// Adding an already excluded date is a no-op on the set.
		exdates := recurrence.ParseExDates(series.ExDates)
		exdates.Add(occurrenceDate)
		if _, err := tx.DeleteOverride(ctx, eventID, occurrenceDate); err != nil {
			return err
		}
		series.ExDates = exdates.Value()
		return tx.UpdateSeries(ctx, series)
	})
	if err != nil {
		return "", mapCalendarError(err, "failed to delete occurrence")
	}

	s.afterMutation(ctx, actor, models.AuditActionOccurrenceDelete, eventID, old, map[string]interface{}{
		"occurrence_date": occurrenceDate,
		"deleted_kind":    kind,
	})
	return kind, nil
}

// RemoveOverride deletes the override row only; the occurrence reverts to the
// series values and stays visible.
func (s *OverrideService) RemoveOverride(ctx context.Context, eventID, occurrenceDate string, actor *models.JWTClaims) error {
	if err := recurrence.ValidateDateKey(occurrenceDate); err != nil {
		return mapCalendarError(err, "")
	}

	var removedOverride *models.OccurrenceOverride
	err := s.repo.WithTx(ctx, func(tx repository.SeriesTx) error {
		series, err := s.lockEditable(ctx, tx, eventID, actor)
		if err != nil {
			return err
		}
		current, err := tx.GetOverride(ctx, eventID, occurrenceDate)
		if err != nil {
			return err
		}
		if current == nil {
			return appErrors.Clone(appErrors.ErrNotFound, "override not found")
		}
		if _, err := tx.DeleteOverride(ctx, eventID, occurrenceDate); err != nil {
			return err
		}
		removedOverride = current
		return tx.UpdateSeries(ctx, series)
	})
	if err != nil {
		return mapCalendarError(err, "failed to remove override")
	}

	s.afterMutation(ctx, actor, models.AuditActionOverrideRemove, eventID, removedOverride, nil)
	return nil
}

func (s *OverrideService) lockEditable(ctx context.Context, tx repository.SeriesTx, eventID string, actor *models.JWTClaims) (*models.EventSeries, error) {
	series, err := tx.LockSeries(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := requireEditor(actor, series.SpaceID); err != nil {
		return nil, err
	}
	return series, nil
}

// requireSlot checks that occurrenceDate names a real, non-excluded occurrence
// and returns its rule-computed start.
func (s *OverrideService) requireSlot(series *models.EventSeries, occurrenceDate string) (time.Time, error) {
	if series.IsRecurring() && recurrence.ParseExDates(series.ExDates).Contains(occurrenceDate) {
		return time.Time{}, appErrors.Clone(appErrors.ErrConflict, "occurrence "+occurrenceDate+" is excluded")
	}
	slot, ok, err := recurrence.SlotOn(series, occurrenceDate, recurrence.Options{Location: s.location})
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Time{}, appErrors.Clone(appErrors.ErrNotFound, "event has no occurrence on "+occurrenceDate)
	}
	return slot, nil
}

func (s *OverrideService) afterMutation(ctx context.Context, actor *models.JWTClaims, action, eventID string, oldValues, newValues interface{}) {
	if s.cache != nil {
		if err := s.cache.InvalidateSeries(ctx, eventID); err != nil {
			s.logger.Warn("failed to purge occurrence cache", zap.String("event_id", eventID), zap.Error(err))
		}
	}
	s.metrics.RecordMutation(action)
	s.audit.record(ctx, actor, action, eventID, oldValues, newValues)
}
