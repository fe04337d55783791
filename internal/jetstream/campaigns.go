package jetstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/apperrors"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/storage"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/tenant"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/usecase"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/pkg/logger"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/pkg/utils"
)

// Campaign stream naming.
const (
	CampaignStreamName   = "campaigns"
	campaignSubjectRoot  = "v1.campaigns"
	launchConsumerPrefix = "campaign_launch"
)

// CampaignStreamConfig returns the stream configuration covering all
// campaign subjects.
func CampaignStreamConfig() *nats.StreamConfig {
	return &nats.StreamConfig{
		Name:      CampaignStreamName,
		Subjects:  []string{campaignSubjectRoot + ".>"},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
	}
}

// LaunchSubject is the subject a launch command for the owner arrives on.
func LaunchSubject(ownerID string) string {
	return fmt.Sprintf("%s.launch.%s", campaignSubjectRoot, ownerID)
}

// ProgressSubject is the per-campaign subject progress events go out on.
func ProgressSubject(ownerID, campaignID string) string {
	return fmt.Sprintf("%s.progress.%s.%s", campaignSubjectRoot, ownerID, campaignID)
}

// ProgressPublisher forwards dispatch progress events to JetStream.
type ProgressPublisher struct {
	client ClientInterface
}

// NewProgressPublisher creates a ProgressPublisher.
func NewProgressPublisher(client ClientInterface) *ProgressPublisher {
	return &ProgressPublisher{client: client}
}

var _ usecase.ProgressSink = (*ProgressPublisher)(nil)

// Publish sends the event on its campaign progress subject. A publish
// failure is reported but must never stall the dispatch loop, so the
// caller only logs it.
func (p *ProgressPublisher) Publish(ctx context.Context, event usecase.ProgressEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal progress event: %w", err)
	}
	subject := ProgressSubject(event.OwnerID, event.CampaignID)
	headers := map[string]string{
		"Nats-Msg-Id": uuid.NewString(),
	}
	if err := p.client.Publish(subject, payload, headers); err != nil {
		return fmt.Errorf("failed to publish progress to '%s': %w", subject, err)
	}
	return nil
}

// LaunchCommand is the payload of a campaign launch message.
type LaunchCommand struct {
	CampaignID string `json:"campaign_id"`
}

// LaunchConsumer subscribes to launch commands for one owner and runs
// the dispatcher for each. Runs are sequential per owner; a command
// arriving mid-run waits on the subscription until the current campaign
// finishes.
type LaunchConsumer struct {
	client     ClientInterface
	dispatcher *usecase.Dispatcher
	campaigns  storage.CampaignRepo
	ownerID    string

	sub *nats.Subscription
}

// NewLaunchConsumer creates a LaunchConsumer for the owner.
func NewLaunchConsumer(client ClientInterface, dispatcher *usecase.Dispatcher, campaigns storage.CampaignRepo, ownerID string) *LaunchConsumer {
	return &LaunchConsumer{
		client:     client,
		dispatcher: dispatcher,
		campaigns:  campaigns,
		ownerID:    ownerID,
	}
}

// Start subscribes to the owner's launch subject.
func (c *LaunchConsumer) Start(ctx context.Context) error {
	consumer := fmt.Sprintf("%s_%s", launchConsumerPrefix, sanitizeToken(c.ownerID))
	sub, err := c.client.Subscribe(LaunchSubject(c.ownerID), consumer, consumer, func(msg *nats.Msg) {
		c.handle(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to launch subject: %w", err)
	}
	c.sub = sub

	logger.FromContext(ctx).Info("Campaign launch consumer started",
		zap.String("subject", LaunchSubject(c.ownerID)),
		zap.String("consumer", consumer),
	)
	return nil
}

// Stop drains the subscription.
func (c *LaunchConsumer) Stop() error {
	if c.sub == nil {
		return nil
	}
	return c.sub.Drain()
}

func (c *LaunchConsumer) handle(ctx context.Context, msg *nats.Msg) {
	ctx = tenant.WithOwnerID(ctx, c.ownerID)
	ctx = logger.WithLogger(ctx, logger.FromContext(ctx).With(zap.String("owner_id", c.ownerID)))
	log := logger.FromContext(ctx)
	defer utils.RecoverWithLog(ctx, "campaign launch handler")

	var cmd LaunchCommand
	if err := json.Unmarshal(msg.Data, &cmd); err != nil || cmd.CampaignID == "" {
		log.Error("Discarding malformed launch command",
			zap.ByteString("payload", msg.Data),
			zap.Error(err),
		)
		c.ack(ctx, msg)
		return
	}

	campaign, err := c.campaigns.FindByID(ctx, cmd.CampaignID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			log.Error("Discarding launch for unknown campaign", zap.String("campaign_id", cmd.CampaignID))
			c.ack(ctx, msg)
			return
		}
		log.Error("Failed to load campaign, requesting redelivery",
			zap.String("campaign_id", cmd.CampaignID),
			zap.Error(err),
		)
		c.nak(ctx, msg)
		return
	}

	result, err := c.dispatcher.RunCampaign(ctx, campaign)
	if err != nil {
		// Bad input and misconfiguration never heal on redelivery.
		if errors.Is(err, apperrors.ErrBadRequest) || errors.Is(err, apperrors.ErrUnconfigured) {
			log.Error("Discarding undispatchable campaign",
				zap.String("campaign_id", cmd.CampaignID),
				zap.Error(err),
			)
			c.ack(ctx, msg)
			return
		}
		log.Warn("Campaign dispatch interrupted, requesting redelivery",
			zap.String("campaign_id", cmd.CampaignID),
			zap.Int("dispatched", result.Success+result.Failure),
			zap.Error(err),
		)
		c.nak(ctx, msg)
		return
	}

	log.Info("Campaign launch processed",
		zap.String("campaign_id", result.CampaignID),
		zap.Int("success", result.Success),
		zap.Int("failure", result.Failure),
	)
	c.ack(ctx, msg)
}

func (c *LaunchConsumer) ack(ctx context.Context, msg *nats.Msg) {
	if err := msg.Ack(); err != nil {
		logger.FromContext(ctx).Warn("Failed to ack launch message", zap.Error(err))
	}
}

func (c *LaunchConsumer) nak(ctx context.Context, msg *nats.Msg) {
	if err := msg.NakWithDelay(30 * time.Second); err != nil {
		logger.FromContext(ctx).Warn("Failed to nak launch message", zap.Error(err))
	}
}

// sanitizeToken makes an owner id safe to embed in a durable name.
func sanitizeToken(s string) string {
	return strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(s)
}
