package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/model"
)

// --- ContactRepo Mock ---

// ContactRepoMock mocks the ContactRepo interface
type ContactRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *ContactRepoMock) Save(ctx context.Context, contact model.Contact) error {
	args := m.Called(ctx, contact)
	return args.Error(0)
}

// Update mocks the Update method
func (m *ContactRepoMock) Update(ctx context.Context, contact model.Contact) error {
	args := m.Called(ctx, contact)
	return args.Error(0)
}

// FindByID mocks the FindByID method
func (m *ContactRepoMock) FindByID(ctx context.Context, id string) (*model.Contact, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

// FindByOwner mocks the FindByOwner method
func (m *ContactRepoMock) FindByOwner(ctx context.Context) ([]model.Contact, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Contact), args.Error(1)
}

// FindAutoReplyEnabled mocks the FindAutoReplyEnabled method
func (m *ContactRepoMock) FindAutoReplyEnabled(ctx context.Context) ([]model.Contact, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Contact), args.Error(1)
}

// Delete mocks the Delete method
func (m *ContactRepoMock) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Close mocks the Close method
func (m *ContactRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- CampaignRepo Mock ---

// CampaignRepoMock mocks the CampaignRepo interface
type CampaignRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *CampaignRepoMock) Save(ctx context.Context, campaign model.Campaign) error {
	args := m.Called(ctx, campaign)
	return args.Error(0)
}

// FindByID mocks the FindByID method
func (m *CampaignRepoMock) FindByID(ctx context.Context, id string) (*model.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

// FindByOwner mocks the FindByOwner method
func (m *CampaignRepoMock) FindByOwner(ctx context.Context) ([]model.Campaign, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Campaign), args.Error(1)
}

// UpdateStatus mocks the UpdateStatus method
func (m *CampaignRepoMock) UpdateStatus(ctx context.Context, id string, status string, progress int) error {
	args := m.Called(ctx, id, status, progress)
	return args.Error(0)
}

// Close mocks the Close method
func (m *CampaignRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- VisitRepo Mock ---

// VisitRepoMock mocks the VisitRepo interface
type VisitRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *VisitRepoMock) Save(ctx context.Context, visit model.Visit) error {
	args := m.Called(ctx, visit)
	return args.Error(0)
}

// FindByContact mocks the FindByContact method
func (m *VisitRepoMock) FindByContact(ctx context.Context, contactID string) ([]model.Visit, error) {
	args := m.Called(ctx, contactID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Visit), args.Error(1)
}

// Close mocks the Close method
func (m *VisitRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
