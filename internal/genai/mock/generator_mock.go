package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/model"
)

// GeneratorMock mocks the genai.Generator interface
type GeneratorMock struct {
	mock.Mock
}

// GenerateMarketingCopy mocks the GenerateMarketingCopy method
func (m *GeneratorMock) GenerateMarketingCopy(ctx context.Context, dossier model.PropertyDossier) (string, error) {
	args := m.Called(ctx, dossier)
	return args.String(0), args.Error(1)
}

// GenerateReply mocks the GenerateReply method
func (m *GeneratorMock) GenerateReply(ctx context.Context, turns []model.ChatTurn, dossier model.PropertyDossier) (string, error) {
	args := m.Called(ctx, turns, dossier)
	return args.String(0), args.Error(1)
}

// ClassifyIntent mocks the ClassifyIntent method
func (m *GeneratorMock) ClassifyIntent(ctx context.Context, text string) (model.IntentResult, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(model.IntentResult), args.Error(1)
}
