package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/gateway"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/model"
)

// GatewayMock mocks the gateway.Gateway interface
type GatewayMock struct {
	mock.Mock
}

// SendMessage mocks the SendMessage method
func (m *GatewayMock) SendMessage(ctx context.Context, chatID, text string) (*gateway.SendResult, error) {
	args := m.Called(ctx, chatID, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.SendResult), args.Error(1)
}

// SendFileByURL mocks the SendFileByURL method
func (m *GatewayMock) SendFileByURL(ctx context.Context, chatID, fileURL, fileName, caption string) (*gateway.SendResult, error) {
	args := m.Called(ctx, chatID, fileURL, fileName, caption)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.SendResult), args.Error(1)
}

// FetchRecentHistory mocks the FetchRecentHistory method
func (m *GatewayMock) FetchRecentHistory(ctx context.Context, chatID string, limit int) ([]model.InboundMessage, error) {
	args := m.Called(ctx, chatID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.InboundMessage), args.Error(1)
}

// CheckConnectionHealth mocks the CheckConnectionHealth method
func (m *GatewayMock) CheckConnectionHealth(ctx context.Context) (*gateway.Health, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Health), args.Error(1)
}
