package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/event-calendar-api/internal/models"
	"github.com/noah-isme/event-calendar-api/internal/recurrence"
	appErrors "github.com/noah-isme/event-calendar-api/pkg/errors"
)

// NewValidator returns a validator with the calendar specific tags registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("datekey", func(fl validator.FieldLevel) bool {
		return recurrence.ValidateDateKey(fl.Field().String()) == nil
	})
	return v
}

// mapCalendarError converts recurrence and persistence failures into typed API
// errors. message describes the failed operation for the internal case.
func mapCalendarError(err error, message string) error {
	if err == nil {
		return nil
	}
	var typed *appErrors.Error
	switch {
	case errors.As(err, &typed):
		return typed
	case errors.Is(err, recurrence.ErrInvalidRule):
		return appErrors.WrapAs(err, appErrors.ErrInvalidRule, "")
	case errors.Is(err, recurrence.ErrInvalidDateKey):
		return appErrors.WrapAs(err, appErrors.ErrInvalidDateKey, "")
	case errors.Is(err, recurrence.ErrUnboundedWindow):
		return appErrors.WrapAs(err, appErrors.ErrUnbounded, "")
	case errors.Is(err, recurrence.ErrUnknownTimezone):
		return appErrors.WrapAs(err, appErrors.ErrValidation, "unknown timezone")
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.WrapAs(err, appErrors.ErrNotFound, "event not found")
	default:
		return appErrors.WrapAs(err, appErrors.ErrInternal, message)
	}
}

func validationError(err error, message string) error {
	return appErrors.WrapAs(err, appErrors.ErrValidation, message)
}

func requireEditor(actor *models.JWTClaims, spaceID string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin && actor.Role != models.RoleEditor {
		return appErrors.ErrForbidden
	}
	if !actor.CanEditSpace(spaceID) {
		return appErrors.Clone(appErrors.ErrForbidden, "no write access to this space")
	}
	return nil
}

func actorID(actor *models.JWTClaims) *string {
	if actor == nil || actor.UserID == "" {
		return nil
	}
	id := actor.UserID
	return &id
}

func auditPayload(v interface{}) []byte {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// auditTrail records calendar mutations; failures are logged, never returned.
type auditTrail struct {
	repo   auditLogger
	logger *zap.Logger
}

func (a auditTrail) record(ctx context.Context, actor *models.JWTClaims, action, resourceID string, oldValues, newValues interface{}) {
	if a.repo == nil {
		return
	}
	id := resourceID
	log := &models.AuditLog{
		UserID:     actorID(actor),
		Action:     action,
		Resource:   "event_series",
		ResourceID: &id,
		OldValues:  auditPayload(oldValues),
		NewValues:  auditPayload(newValues),
		IPAddress:  "system",
		UserAgent:  "calendar-service",
	}
	if err := a.repo.CreateAuditLog(ctx, log); err != nil && a.logger != nil {
		a.logger.Warn("failed to record calendar audit", zap.String("action", action), zap.String("event_id", resourceID), zap.Error(err))
	}
}
