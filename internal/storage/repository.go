package storage

import (
	"context"

	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/model"
)

// ContactRepo defines contact storage operations. All operations are
// scoped by the owner ID carried in the context.
type ContactRepo interface {
	Save(ctx context.Context, contact model.Contact) error
	Update(ctx context.Context, contact model.Contact) error
	FindByID(ctx context.Context, id string) (*model.Contact, error)
	FindByOwner(ctx context.Context) ([]model.Contact, error)
	FindAutoReplyEnabled(ctx context.Context) ([]model.Contact, error)
	Delete(ctx context.Context, id string) error
	Close(ctx context.Context) error
}

// CampaignRepo defines campaign storage operations
type CampaignRepo interface {
	Save(ctx context.Context, campaign model.Campaign) error
	FindByID(ctx context.Context, id string) (*model.Campaign, error)
	FindByOwner(ctx context.Context) ([]model.Campaign, error)
	UpdateStatus(ctx context.Context, id string, status string, progress int) error
	Close(ctx context.Context) error
}

// VisitRepo defines visit storage operations
type VisitRepo interface {
	Save(ctx context.Context, visit model.Visit) error
	FindByContact(ctx context.Context, contactID string) ([]model.Visit, error)
	Close(ctx context.Context) error
}
