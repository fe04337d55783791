package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/apperrors"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/model"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/observer"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/tenant"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/validator"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/pkg/logger"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/pkg/utils"
)

// --- Campaign Repository Methods ---

// SaveCampaign inserts or updates a campaign record.
func (r *PostgresRepo) SaveCampaign(ctx context.Context, campaign model.Campaign) error {
	ownerID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get owner ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if ownerID != campaign.OwnerID {
		return fmt.Errorf("%w: campaign OwnerID %s does not match owner %s", apperrors.ErrBadRequest, campaign.OwnerID, ownerID)
	}
	if err := validator.Validate(campaign); err != nil {
		logger.FromContext(ctx).Error("Campaign validation failed",
			zap.String("campaign_id", campaign.ID),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", apperrors.ErrBadRequest, err)
	}
	campaign.UpdatedAt = utils.Now()

	operation := func() error {
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(model.CampaignUpdateColumns()),
		}).Create(&campaign)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveCampaign", operation)
	observer.ObserveDbOperationDuration("save", "campaign", ownerID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save campaign after retries", zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// FindCampaignByID finds a campaign by its ID.
func (r *PostgresRepo) FindCampaignByID(ctx context.Context, id string) (*model.Campaign, error) {
	ownerID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get owner ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	var campaign model.Campaign
	operation := func() error {
		result := r.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).First(&campaign)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: campaign_id %s: %w", apperrors.ErrNotFound, id, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindCampaignByID", operation)
	observer.ObserveDbOperationDuration("find_by_id", "campaign", ownerID, time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		loggerCtx.Error("Failed to find campaign by ID after retries",
			zap.String("campaign_id", id),
			zap.String("owner_id", ownerID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &campaign, nil
}

// FindCampaignsByOwner lists all campaigns for the owner in the context,
// newest first.
func (r *PostgresRepo) FindCampaignsByOwner(ctx context.Context) ([]model.Campaign, error) {
	ownerID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get owner ID: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	var campaigns []model.Campaign
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("owner_id = ?", ownerID).
			Order("created_at DESC").
			Find(&campaigns)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindCampaignsByOwner", operation)
	observer.ObserveDbOperationDuration("find_by_owner", "campaign", ownerID, time.Since(startTime), findErr)

	if findErr != nil {
		loggerCtx.Error("Failed to find campaigns by owner after retries",
			zap.String("owner_id", ownerID),
			zap.Error(findErr))
		return nil, findErr
	}
	if campaigns == nil {
		return []model.Campaign{}, nil
	}
	return campaigns, nil
}

// UpdateCampaignStatus sets the status and progress counter of a campaign.
func (r *PostgresRepo) UpdateCampaignStatus(ctx context.Context, id string, status string, progress int) error {
	ownerID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get owner ID: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	operation := func() error {
		result := r.db.WithContext(ctx).
			Model(&model.Campaign{}).
			Where("id = ? AND owner_id = ?", id, ownerID).
			Updates(map[string]interface{}{
				"status":     status,
				"progress":   progress,
				"updated_at": utils.Now(),
			})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return backoff.Permanent(fmt.Errorf("%w: campaign_id %s", apperrors.ErrNotFound, id))
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "UpdateCampaignStatus", operation)
	observer.ObserveDbOperationDuration("update_status", "campaign", ownerID, time.Since(startTime), commitErr)
	if commitErr != nil {
		if errors.Is(commitErr, apperrors.ErrNotFound) {
			return commitErr
		}
		loggerCtx.Error("Failed to update campaign status after retries",
			zap.String("campaign_id", id),
			zap.String("status", status),
			zap.Error(commitErr))
		return commitErr
	}
	return nil
}
