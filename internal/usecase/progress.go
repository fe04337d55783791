package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/pkg/logger"
)

// Progress event stages emitted by the dispatcher.
const (
	ProgressStarting  = "starting"
	ProgressSent      = "sent"
	ProgressFailed    = "failed"
	ProgressCompleted = "completed"
)

// ProgressEvent is one step of a running campaign dispatch.
type ProgressEvent struct {
	CampaignID string    `json:"campaign_id"`
	OwnerID    string    `json:"owner_id"`
	ContactID  string    `json:"contact_id,omitempty"`
	Stage      string    `json:"stage"`
	Percent    int       `json:"percent"`
	Message    string    `json:"message,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ProgressSink receives dispatch progress events. Publishing must not
// block the dispatch loop; slow sinks drop rather than stall.
type ProgressSink interface {
	Publish(ctx context.Context, event ProgressEvent) error
}

// ChannelSink delivers progress events over a buffered channel. When
// the buffer is full the event is dropped, keeping the dispatcher's
// pacing intact.
type ChannelSink struct {
	events chan ProgressEvent
}

// NewChannelSink creates a ChannelSink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelSink{events: make(chan ProgressEvent, buffer)}
}

// Events exposes the receive side of the sink.
func (s *ChannelSink) Events() <-chan ProgressEvent {
	return s.events
}

// Publish delivers the event or drops it when the buffer is full.
func (s *ChannelSink) Publish(ctx context.Context, event ProgressEvent) error {
	select {
	case s.events <- event:
	default:
		logger.FromContext(ctx).Warn("Progress sink buffer full, dropping event",
			zap.String("campaign_id", event.CampaignID),
			zap.String("stage", event.Stage),
		)
	}
	return nil
}

// NopSink discards all progress events.
type NopSink struct{}

// Publish discards the event.
func (NopSink) Publish(ctx context.Context, event ProgressEvent) error { return nil }

var (
	_ ProgressSink = (*ChannelSink)(nil)
	_ ProgressSink = NopSink{}
)
