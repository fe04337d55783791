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

// --- Contact Repository Methods ---

// SaveContact inserts or updates a contact record. The contact ID is the
// WhatsApp chat id, so conflicts upsert in place.
func (r *PostgresRepo) SaveContact(ctx context.Context, contact model.Contact) error {
	ownerID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get owner ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if ownerID != contact.OwnerID {
		return fmt.Errorf("%w: contact OwnerID %s does not match owner %s", apperrors.ErrBadRequest, contact.OwnerID, ownerID)
	}
	if err := validator.Validate(contact); err != nil {
		logger.FromContext(ctx).Error("Contact validation failed",
			zap.String("contact_id", contact.ID),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", apperrors.ErrBadRequest, err)
	}
	contact.UpdatedAt = utils.Now()

	operation := func() error {
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(model.ContactUpdateColumns()),
		}).Create(&contact)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveContact", operation)
	observer.ObserveDbOperationDuration("save", "contact", ownerID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save contact after retries", zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// UpdateContact updates an existing contact record under a row lock.
func (r *PostgresRepo) UpdateContact(ctx context.Context, contact model.Contact) error {
	ownerID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get owner ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if ownerID != contact.OwnerID {
		return fmt.Errorf("%w: contact OwnerID %s does not match owner %s", apperrors.ErrBadRequest, contact.OwnerID, ownerID)
	}
	contact.UpdatedAt = utils.Now()

	operation := func() error {
		tx := r.db.WithContext(ctx).Begin()
		if tx.Error != nil {
			return fmt.Errorf("%w: failed to begin transaction: %w", apperrors.ErrDatabase, tx.Error)
		}
		var txErr error
		defer func() {
			if r := recover(); r != nil {
				tx.Rollback()
				panic(r)
			} else if txErr != nil {
				if rbErr := tx.Rollback().Error; rbErr != nil {
					logger.FromContext(ctx).Error("Failed to rollback transaction after error", zap.Error(rbErr), zap.NamedError("originalTxError", txErr))
				}
			}
		}()

		var existing model.Contact
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND owner_id = ?", contact.ID, ownerID).
			First(&existing)
		findErr := result.Error

		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				txErr = fmt.Errorf("%w: contact not found for update (ID: %s, OwnerID: %s): %w", apperrors.ErrNotFound, contact.ID, ownerID, findErr)
				return backoff.Permanent(txErr)
			}
			txErr = fmt.Errorf("%w: failed to lock contact row for update: %w", apperrors.ErrDatabase, findErr)
			return txErr
		}

		updateResult := tx.Model(&existing).Updates(contact)
		if updateResult.Error != nil {
			txErr = checkConstraintViolation(updateResult.Error)
			return txErr
		}
		if updateResult.RowsAffected == 0 {
			logger.FromContext(ctx).Warn("UpdateContact resulted in 0 rows affected, potentially no change", zap.String("contact_id", contact.ID))
		}
		if commitErr := tx.Commit().Error; commitErr != nil {
			txErr = fmt.Errorf("%w: failed to commit update transaction: %w", apperrors.ErrDatabase, commitErr)
			return txErr
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "UpdateContact Commit", operation)
	observer.ObserveDbOperationDuration("update", "contact", ownerID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to update contact after retries", zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// FindContactByID finds a contact by its chat id.
func (r *PostgresRepo) FindContactByID(ctx context.Context, id string) (*model.Contact, error) {
	ownerID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get owner ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	var contact model.Contact
	operation := func() error {
		result := r.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).First(&contact)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: contact_id %s: %w", apperrors.ErrNotFound, id, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindContactByID", operation)
	observer.ObserveDbOperationDuration("find_by_id", "contact", ownerID, time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		loggerCtx.Error("Failed to find contact by ID after retries",
			zap.String("contact_id", id),
			zap.String("owner_id", ownerID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &contact, nil
}

// FindContactsByOwner lists all contacts for the owner in the context.
func (r *PostgresRepo) FindContactsByOwner(ctx context.Context) ([]model.Contact, error) {
	ownerID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get owner ID: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	var contacts []model.Contact
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("owner_id = ?", ownerID).
			Order("created_at ASC").
			Find(&contacts)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindContactsByOwner", operation)
	observer.ObserveDbOperationDuration("find_by_owner", "contact", ownerID, time.Since(startTime), findErr)

	if findErr != nil {
		loggerCtx.Error("Failed to find contacts by owner after retries",
			zap.String("owner_id", ownerID),
			zap.Error(findErr))
		return nil, findErr
	}
	if contacts == nil {
		return []model.Contact{}, nil
	}
	return contacts, nil
}

// FindAutoReplyEnabledContacts lists contacts eligible for the autonomous
// bot: auto-reply on and linked to a campaign.
func (r *PostgresRepo) FindAutoReplyEnabledContacts(ctx context.Context) ([]model.Contact, error) {
	ownerID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get owner ID: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	var contacts []model.Contact
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("owner_id = ? AND auto_reply_enabled = ? AND linked_campaign_id <> ''", ownerID, true).
			Order("created_at ASC").
			Find(&contacts)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindAutoReplyEnabledContacts", operation)
	observer.ObserveDbOperationDuration("find_auto_reply", "contact", ownerID, time.Since(startTime), findErr)

	if findErr != nil {
		loggerCtx.Error("Failed to find auto-reply contacts after retries",
			zap.String("owner_id", ownerID),
			zap.Error(findErr))
		return nil, findErr
	}
	if contacts == nil {
		return []model.Contact{}, nil
	}
	return contacts, nil
}

// DeleteContact removes a contact by id.
func (r *PostgresRepo) DeleteContact(ctx context.Context, id string) error {
	ownerID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get owner ID: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("id = ? AND owner_id = ?", id, ownerID).
			Delete(&model.Contact{})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return backoff.Permanent(fmt.Errorf("%w: contact_id %s", apperrors.ErrNotFound, id))
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	delErr := retryableOperation(ctx, commitPolicy, "DeleteContact", operation)
	observer.ObserveDbOperationDuration("delete", "contact", ownerID, time.Since(startTime), delErr)
	if delErr != nil {
		if errors.Is(delErr, apperrors.ErrNotFound) {
			return delErr
		}
		loggerCtx.Error("Failed to delete contact after retries",
			zap.String("contact_id", id),
			zap.String("owner_id", ownerID),
			zap.Error(delErr))
		return delErr
	}
	return nil
}
