package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/apperrors"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/gateway"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/genai"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/model"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/observer"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/storage"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/pkg/logger"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/pkg/utils"
)

// Pacing defaults. The random delay between consecutive sends is the
// anti-throttling contract of the dispatch loop.
const (
	DefaultMinSendDelay = 15 * time.Second
	DefaultMaxSendDelay = 45 * time.Second
	DefaultLogLines     = 5
)

// DispatchConfig carries the dispatcher pacing settings.
type DispatchConfig struct {
	MinSendDelay time.Duration
	MaxSendDelay time.Duration
	LogLines     int
}

func (c *DispatchConfig) applyDefaults() {
	if c.MinSendDelay <= 0 {
		c.MinSendDelay = DefaultMinSendDelay
	}
	if c.MaxSendDelay < c.MinSendDelay {
		c.MaxSendDelay = c.MinSendDelay
	}
	if c.LogLines <= 0 {
		c.LogLines = DefaultLogLines
	}
}

// CampaignResult is the outcome of one full dispatch run.
type CampaignResult struct {
	CampaignID string
	Total      int
	Success    int
	Failure    int
}

// sleepFunc waits for the duration or until the context is cancelled.
type sleepFunc func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Dispatcher runs campaigns sequentially: one send in flight, a random
// pacing delay between targets, per-target outcome recorded on the
// contact, progress emitted to the sink.
type Dispatcher struct {
	gw        gateway.Gateway
	contacts  storage.ContactRepo
	campaigns storage.CampaignRepo
	sink      ProgressSink
	copygen   genai.Generator
	cfg       DispatchConfig
	rng       *rand.Rand
	sleep     sleepFunc

	mu        sync.Mutex
	recentLog []string
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithRand injects the pacing rand source. Used by tests.
func WithRand(rng *rand.Rand) DispatcherOption {
	return func(d *Dispatcher) { d.rng = rng }
}

// WithSleep injects the pacing sleep function. Used by tests.
func WithSleep(sleep sleepFunc) DispatcherOption {
	return func(d *Dispatcher) { d.sleep = sleep }
}

// WithCopyGenerator injects a generator used to write the outreach
// opener for campaigns launched without a message body.
func WithCopyGenerator(gen genai.Generator) DispatcherOption {
	return func(d *Dispatcher) { d.copygen = gen }
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(gw gateway.Gateway, contacts storage.ContactRepo, campaigns storage.CampaignRepo, sink ProgressSink, cfg DispatchConfig, opts ...DispatcherOption) *Dispatcher {
	cfg.applyDefaults()
	if sink == nil {
		sink = NopSink{}
	}
	d := &Dispatcher{
		gw:        gw,
		contacts:  contacts,
		campaigns: campaigns,
		sink:      sink,
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:     defaultSleep,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RecentLog returns the last few dispatch log lines, oldest first.
func (d *Dispatcher) RecentLog() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.recentLog))
	copy(out, d.recentLog)
	return out
}

func (d *Dispatcher) appendLog(line string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recentLog = append(d.recentLog, line)
	if len(d.recentLog) > d.cfg.LogLines {
		d.recentLog = d.recentLog[len(d.recentLog)-d.cfg.LogLines:]
	}
}

// pacingDelay draws the next inter-send delay from [min, max].
func (d *Dispatcher) pacingDelay() time.Duration {
	window := d.cfg.MaxSendDelay - d.cfg.MinSendDelay
	if window <= 0 {
		return d.cfg.MinSendDelay
	}
	return d.cfg.MinSendDelay + time.Duration(d.rng.Int63n(int64(window)+1))
}

func (d *Dispatcher) emit(ctx context.Context, event ProgressEvent) {
	event.Timestamp = utils.Now()
	if err := d.sink.Publish(ctx, event); err != nil {
		logger.FromContext(ctx).Warn("Failed to publish progress event", zap.Error(err))
	}
}

// RunCampaign dispatches the campaign to its target snapshot in order.
// The run completes regardless of individual send failures; only an
// empty target list, an unusable gateway or cancellation abort it.
// A cancelled run returns partial counts and leaves the campaign in
// running status so a relaunch can pick it up.
func (d *Dispatcher) RunCampaign(ctx context.Context, campaign *model.Campaign) (CampaignResult, error) {
	log := logger.FromContext(ctx)
	result := CampaignResult{CampaignID: campaign.ID}

	targets, err := campaign.DecodeTargets()
	if err != nil {
		return result, fmt.Errorf("%w: invalid campaign target snapshot: %w", apperrors.ErrBadRequest, err)
	}
	if len(targets) == 0 {
		return result, fmt.Errorf("%w: campaign %s has no targets", apperrors.ErrBadRequest, campaign.ID)
	}
	result.Total = len(targets)

	health, err := d.gw.CheckConnectionHealth(ctx)
	if err != nil {
		return result, fmt.Errorf("%w: gateway health check failed: %w", apperrors.ErrGateway, err)
	}
	if !health.Authorized {
		return result, fmt.Errorf("%w: gateway instance not authorized (state %s)", apperrors.ErrUnconfigured, health.State)
	}

	attachments, err := campaign.DecodeAttachments()
	if err != nil {
		return result, fmt.Errorf("%w: invalid campaign attachments: %w", apperrors.ErrBadRequest, err)
	}
	if len(attachments) > 1 {
		log.Warn("Campaign has multiple attachments, only the first is sent",
			zap.String("campaign_id", campaign.ID),
			zap.Int("attachments", len(attachments)),
		)
	}

	body := campaign.MessageBody
	if body == "" && d.copygen != nil {
		if dossier, derr := campaign.DecodeDossier(); derr == nil && !dossier.Empty() {
			if copyText, gerr := d.copygen.GenerateMarketingCopy(ctx, dossier); gerr == nil && copyText != "" {
				body = copyText
				log.Info("Generated campaign opener from dossier", zap.String("campaign_id", campaign.ID))
			}
		}
	}
	if err := d.campaigns.UpdateStatus(ctx, campaign.ID, model.CampaignRunning, 0); err != nil {
		log.Error("Failed to mark campaign running", zap.String("campaign_id", campaign.ID), zap.Error(err))
	}

	log.Info("Campaign dispatch started",
		zap.String("campaign_id", campaign.ID),
		zap.Int("targets", len(targets)),
	)

	for i, contactID := range targets {
		if i > 0 {
			if err := d.sleep(ctx, d.pacingDelay()); err != nil {
				log.Warn("Campaign dispatch cancelled",
					zap.String("campaign_id", campaign.ID),
					zap.Int("dispatched", i),
				)
				return result, err
			}
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		d.emit(ctx, ProgressEvent{
			CampaignID: campaign.ID,
			OwnerID:    campaign.OwnerID,
			ContactID:  contactID,
			Stage:      ProgressStarting,
			Percent:    progressPercent(i, len(targets)),
		})

		outcome := d.dispatchOne(ctx, campaign, contactID, body, attachments)
		percent := progressPercent(i+1, len(targets))
		if outcome.err == nil {
			result.Success++
			observer.IncSend(campaign.OwnerID, "sent")
			d.appendLog(fmt.Sprintf("Enviado para %s", outcome.contactLabel))
			d.emit(ctx, ProgressEvent{
				CampaignID: campaign.ID,
				OwnerID:    campaign.OwnerID,
				ContactID:  contactID,
				Stage:      ProgressSent,
				Percent:    percent,
			})
		} else {
			result.Failure++
			observer.IncSend(campaign.OwnerID, "failed")
			d.appendLog(fmt.Sprintf("Falha ao enviar para %s: %v", outcome.contactLabel, outcome.err))
			d.emit(ctx, ProgressEvent{
				CampaignID: campaign.ID,
				OwnerID:    campaign.OwnerID,
				ContactID:  contactID,
				Stage:      ProgressFailed,
				Percent:    percent,
				Message:    outcome.err.Error(),
			})
		}
	}

	if err := d.campaigns.UpdateStatus(ctx, campaign.ID, model.CampaignCompleted, 100); err != nil {
		log.Error("Failed to mark campaign completed", zap.String("campaign_id", campaign.ID), zap.Error(err))
	}
	observer.IncCampaignCompleted(campaign.OwnerID)
	d.emit(ctx, ProgressEvent{
		CampaignID: campaign.ID,
		OwnerID:    campaign.OwnerID,
		Stage:      ProgressCompleted,
		Percent:    100,
	})

	log.Info("Campaign dispatch completed",
		zap.String("campaign_id", campaign.ID),
		zap.Int("success", result.Success),
		zap.Int("failure", result.Failure),
	)
	return result, nil
}

type sendOutcome struct {
	contactLabel string
	err          error
}

// progressPercent reports done out of total as a rounded percentage.
func progressPercent(done, total int) int {
	return (done*100 + total/2) / total
}

// dispatchOne sends the campaign payload to one target and records the
// outcome on the contact. Persistence failures are logged but never
// fail the target.
func (d *Dispatcher) dispatchOne(ctx context.Context, campaign *model.Campaign, contactID, body string, attachments []model.Attachment) sendOutcome {
	log := logger.FromContext(ctx)

	contact, err := d.contacts.FindByID(ctx, contactID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return sendOutcome{contactLabel: contactID, err: fmt.Errorf("contact no longer exists")}
		}
		return sendOutcome{contactLabel: contactID, err: err}
	}
	label := contact.Name
	if label == "" {
		label = contact.ID
	}

	start := utils.Now()
	var sendErr error
	if len(attachments) > 0 {
		first := attachments[0]
		_, sendErr = d.gw.SendFileByURL(ctx, contact.ID, first.URL, first.Name, body)
	} else {
		_, sendErr = d.gw.SendMessage(ctx, contact.ID, body)
	}
	observer.ObserveSendDuration(campaign.OwnerID, time.Since(start))

	now := utils.Now()
	if sendErr != nil {
		contact.DeliveryStatus = model.DeliveryFailed
		if err := d.contacts.Update(ctx, *contact); err != nil {
			log.Error("Failed to record send failure on contact",
				zap.String("contact_id", contact.ID),
				zap.Error(err),
			)
		}
		log.Warn("Campaign send failed",
			zap.String("campaign_id", campaign.ID),
			zap.String("contact_id", contact.ID),
			zap.Error(sendErr),
		)
		return sendOutcome{contactLabel: label, err: sendErr}
	}

	contact.DeliveryStatus = model.DeliverySent
	// A send only ever moves the funnel forward; a scheduled or closed
	// contact keeps its stage.
	contact.AdvanceStage(model.StageContacted)
	contact.LastInteraction = &now
	if err := d.contacts.Update(ctx, *contact); err != nil {
		log.Error("Failed to record send success on contact",
			zap.String("contact_id", contact.ID),
			zap.Error(err),
		)
	}
	return sendOutcome{contactLabel: label}
}
