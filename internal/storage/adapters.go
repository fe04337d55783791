package storage

import (
	"context"

	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/model"
)

// ContactRepoAdapter adapts the PostgresRepo to the ContactRepo interface
type ContactRepoAdapter struct {
	postgres *PostgresRepo
}

// NewContactRepoAdapter creates a new contact repository adapter
func NewContactRepoAdapter(postgres *PostgresRepo) ContactRepo {
	return &ContactRepoAdapter{postgres: postgres}
}

// Save saves a contact
func (a *ContactRepoAdapter) Save(ctx context.Context, contact model.Contact) error {
	return a.postgres.SaveContact(ctx, contact)
}

// Update updates a contact
func (a *ContactRepoAdapter) Update(ctx context.Context, contact model.Contact) error {
	return a.postgres.UpdateContact(ctx, contact)
}

// FindByID finds a contact by chat id
func (a *ContactRepoAdapter) FindByID(ctx context.Context, id string) (*model.Contact, error) {
	return a.postgres.FindContactByID(ctx, id)
}

// FindByOwner lists the owner's contacts
func (a *ContactRepoAdapter) FindByOwner(ctx context.Context) ([]model.Contact, error) {
	return a.postgres.FindContactsByOwner(ctx)
}

// FindAutoReplyEnabled lists contacts eligible for the autonomous bot
func (a *ContactRepoAdapter) FindAutoReplyEnabled(ctx context.Context) ([]model.Contact, error) {
	return a.postgres.FindAutoReplyEnabledContacts(ctx)
}

// Delete removes a contact
func (a *ContactRepoAdapter) Delete(ctx context.Context, id string) error {
	return a.postgres.DeleteContact(ctx, id)
}

func (a *ContactRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// CampaignRepoAdapter adapts the PostgresRepo to the CampaignRepo interface
type CampaignRepoAdapter struct {
	postgres *PostgresRepo
}

// NewCampaignRepoAdapter creates a new campaign repository adapter
func NewCampaignRepoAdapter(postgres *PostgresRepo) CampaignRepo {
	return &CampaignRepoAdapter{postgres: postgres}
}

// Save saves a campaign
func (a *CampaignRepoAdapter) Save(ctx context.Context, campaign model.Campaign) error {
	return a.postgres.SaveCampaign(ctx, campaign)
}

// FindByID finds a campaign by ID
func (a *CampaignRepoAdapter) FindByID(ctx context.Context, id string) (*model.Campaign, error) {
	return a.postgres.FindCampaignByID(ctx, id)
}

// FindByOwner lists the owner's campaigns
func (a *CampaignRepoAdapter) FindByOwner(ctx context.Context) ([]model.Campaign, error) {
	return a.postgres.FindCampaignsByOwner(ctx)
}

// UpdateStatus updates a campaign's status and progress
func (a *CampaignRepoAdapter) UpdateStatus(ctx context.Context, id string, status string, progress int) error {
	return a.postgres.UpdateCampaignStatus(ctx, id, status, progress)
}

func (a *CampaignRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// VisitRepoAdapter adapts the PostgresRepo to the VisitRepo interface
type VisitRepoAdapter struct {
	postgres *PostgresRepo
}

// NewVisitRepoAdapter creates a new visit repository adapter
func NewVisitRepoAdapter(postgres *PostgresRepo) VisitRepo {
	return &VisitRepoAdapter{postgres: postgres}
}

// Save saves a visit
func (a *VisitRepoAdapter) Save(ctx context.Context, visit model.Visit) error {
	return a.postgres.SaveVisit(ctx, visit)
}

// FindByContact lists visits for a contact
func (a *VisitRepoAdapter) FindByContact(ctx context.Context, contactID string) ([]model.Visit, error) {
	return a.postgres.FindVisitsByContact(ctx, contactID)
}

func (a *VisitRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// Ensure adapters implement the interfaces
var _ ContactRepo = (*ContactRepoAdapter)(nil)
var _ CampaignRepo = (*CampaignRepoAdapter)(nil)
var _ VisitRepo = (*VisitRepoAdapter)(nil)
