package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/apperrors"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/model"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/pkg/logger"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/pkg/utils"
)

// Simulator is an in-memory Gateway used when no gateway credentials
// are configured. Sends are recorded locally and never leave the
// process. FailureRate injects random send failures for exercising
// dispatch error paths.
type Simulator struct {
	mu          sync.Mutex
	rng         *rand.Rand
	failureRate float64
	histories   map[string][]model.InboundMessage
}

// NewSimulator creates a Simulator. The rand source is injected so
// tests can make failures deterministic.
func NewSimulator(rng *rand.Rand, failureRate float64) *Simulator {
	return &Simulator{
		rng:         rng,
		failureRate: failureRate,
		histories:   make(map[string][]model.InboundMessage),
	}
}

// SeedHistory preloads a chat's history in chronological order.
func (s *Simulator) SeedHistory(chatID string, history []model.InboundMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories[chatID] = history
}

// SendMessage records an outbound text message.
func (s *Simulator) SendMessage(ctx context.Context, chatID, text string) (*SendResult, error) {
	if chatID == "" {
		return nil, fmt.Errorf("%w: chatID is required", apperrors.ErrBadRequest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failureRate > 0 && s.rng.Float64() < s.failureRate {
		return nil, apperrors.NewRetryable(apperrors.ErrGateway, "simulated send failure for chat %s", chatID)
	}

	msg := model.InboundMessage{
		ID:        uuid.New().String(),
		ChatID:    chatID,
		SenderID:  "simulator",
		Text:      text,
		Timestamp: utils.Now().Unix(),
		FromMe:    true,
		Type:      model.MessageTypeText,
	}
	s.histories[chatID] = append(s.histories[chatID], msg)

	logger.FromContext(ctx).Info("Simulated gateway send",
		zap.String("chat_id", chatID),
		zap.String("message_id", msg.ID),
	)
	return &SendResult{MessageID: msg.ID}, nil
}

// SendFileByURL records an outbound media message.
func (s *Simulator) SendFileByURL(ctx context.Context, chatID, fileURL, fileName, caption string) (*SendResult, error) {
	if chatID == "" || fileURL == "" {
		return nil, fmt.Errorf("%w: chatID and fileURL are required", apperrors.ErrBadRequest)
	}
	return s.SendMessage(ctx, chatID, caption)
}

// FetchRecentHistory returns the recorded chat history, oldest first.
func (s *Simulator) FetchRecentHistory(ctx context.Context, chatID string, limit int) ([]model.InboundMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.histories[chatID]
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	out := make([]model.InboundMessage, len(history))
	copy(out, history)
	return out, nil
}

// CheckConnectionHealth always reports an authorized instance.
func (s *Simulator) CheckConnectionHealth(ctx context.Context) (*Health, error) {
	return &Health{State: stateAuthorized, Authorized: true}, nil
}

var _ Gateway = (*Simulator)(nil)
