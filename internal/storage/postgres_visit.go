package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/apperrors"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/model"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/observer"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/tenant"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/validator"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/pkg/logger"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/pkg/utils"
)

// --- Visit Repository Methods ---

// SaveVisit inserts a visit record.
func (r *PostgresRepo) SaveVisit(ctx context.Context, visit model.Visit) error {
	ownerID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get owner ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if ownerID != visit.OwnerID {
		return fmt.Errorf("%w: visit OwnerID %s does not match owner %s", apperrors.ErrBadRequest, visit.OwnerID, ownerID)
	}
	if err := validator.Validate(visit); err != nil {
		logger.FromContext(ctx).Error("Visit validation failed",
			zap.String("visit_id", visit.ID),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", apperrors.ErrBadRequest, err)
	}

	operation := func() error {
		result := r.db.WithContext(ctx).Create(&visit)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveVisit", operation)
	observer.ObserveDbOperationDuration("save", "visit", ownerID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save visit after retries", zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// FindVisitsByContact lists visits scheduled for a contact, soonest first.
func (r *PostgresRepo) FindVisitsByContact(ctx context.Context, contactID string) ([]model.Visit, error) {
	ownerID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get owner ID: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	var visits []model.Visit
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("contact_id = ? AND owner_id = ?", contactID, ownerID).
			Order("date ASC").
			Find(&visits)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindVisitsByContact", operation)
	observer.ObserveDbOperationDuration("find_by_contact", "visit", ownerID, time.Since(startTime), findErr)

	if findErr != nil {
		loggerCtx.Error("Failed to find visits by contact after retries",
			zap.String("contact_id", contactID),
			zap.String("owner_id", ownerID),
			zap.Error(findErr))
		return nil, findErr
	}
	if visits == nil {
		return []model.Visit{}, nil
	}
	return visits, nil
}
