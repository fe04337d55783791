package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/apperrors"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/cache"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/gateway"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/genai"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/model"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/observer"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/storage"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/tenant"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/pkg/logger"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/pkg/utils"
)

// Poller defaults.
const (
	DefaultPollInterval = 15 * time.Second
	DefaultHistoryLimit = 20
	DefaultPoolSize     = 1
)

// visitConfirmation is sent after the bot pre-books a visit.
const visitConfirmation = "Perfeito! Deixei pré-agendado aqui na minha agenda. Um consultor humano vai apenas confirmar o horário exato com você em breve. Obrigado!"

// PollerConfig carries the autonomous bot settings.
type PollerConfig struct {
	Interval     time.Duration
	HistoryLimit int
	// PoolSize bounds how many contacts one cycle handles concurrently.
	// The default of 1 keeps cycles strictly sequential.
	PoolSize int
}

func (c *PollerConfig) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultPollInterval
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = DefaultHistoryLimit
	}
	if c.PoolSize <= 0 {
		c.PoolSize = DefaultPoolSize
	}
}

// CycleResult summarizes one poller cycle.
type CycleResult struct {
	Scanned int
	Handled int
	Actions []string
}

// Poller is the autonomous conversation bot: a recurring cycle over
// auto-reply contacts that classifies the latest visitor message and
// performs at most one action per contact per cycle.
type Poller struct {
	gw        gateway.Gateway
	gen       genai.Generator
	contacts  storage.ContactRepo
	campaigns storage.CampaignRepo
	visits    storage.VisitRepo
	seen      *cache.SeenCache
	cfg       PollerConfig
	pool      *ants.Pool
	enabled   atomic.Bool
}

// NewPoller creates a Poller with its worker pool. Call Close to
// release the pool.
func NewPoller(gw gateway.Gateway, gen genai.Generator, contacts storage.ContactRepo, campaigns storage.CampaignRepo, visits storage.VisitRepo, seen *cache.SeenCache, cfg PollerConfig) (*Poller, error) {
	cfg.applyDefaults()
	pool, err := ants.NewPool(cfg.PoolSize, ants.WithNonblocking(false))
	if err != nil {
		return nil, fmt.Errorf("failed to create poller worker pool: %w", err)
	}
	p := &Poller{
		gw:        gw,
		gen:       gen,
		contacts:  contacts,
		campaigns: campaigns,
		visits:    visits,
		seen:      seen,
		cfg:       cfg,
		pool:      pool,
	}
	p.enabled.Store(true)
	return p, nil
}

// SetEnabled flips the master switch. Disabling stops new cycles from
// being scheduled; an in-flight cycle finishes.
func (p *Poller) SetEnabled(on bool) {
	p.enabled.Store(on)
}

// Enabled reports the master switch state.
func (p *Poller) Enabled() bool {
	return p.enabled.Load()
}

// Close releases the worker pool.
func (p *Poller) Close() {
	p.pool.Release()
}

// Run executes cycles at the configured interval until the context is
// cancelled. A new cycle only starts after the previous one returns.
func (p *Poller) Run(ctx context.Context) {
	log := logger.FromContext(ctx)
	log.Info("Autonomous bot poller started",
		zap.Duration("interval", p.cfg.Interval),
		zap.Int("pool_size", p.cfg.PoolSize),
	)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Autonomous bot poller stopped")
			return
		case <-ticker.C:
			if !p.Enabled() {
				continue
			}
			if _, err := p.RunCycle(ctx); err != nil {
				log.Error("Bot cycle failed", zap.Error(err))
			}
		}
	}
}

// RunCycle processes every eligible contact once. Errors on individual
// contacts are logged and do not stop the cycle.
func (p *Poller) RunCycle(ctx context.Context) (CycleResult, error) {
	log := logger.FromContext(ctx)
	ownerID, err := tenantOwner(ctx)
	if err != nil {
		return CycleResult{}, err
	}
	start := utils.Now()

	eligible, err := p.contacts.FindAutoReplyEnabled(ctx)
	if err != nil {
		return CycleResult{}, fmt.Errorf("failed to list auto-reply contacts: %w", err)
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		result = CycleResult{Scanned: len(eligible)}
	)

	for i := range eligible {
		contact := eligible[i]
		if !contact.Pollable() {
			// FindAutoReplyEnabled already filters, but the invariant is
			// cheap to hold here too.
			continue
		}
		wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer wg.Done()
			defer utils.RecoverWithLog(ctx, fmt.Sprintf("bot contact handler %s", contact.ID))

			action, handled := p.processContact(ctx, contact)
			if action == "" {
				return
			}
			mu.Lock()
			result.Actions = append(result.Actions, action)
			if handled {
				result.Handled++
			}
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			log.Error("Failed to submit contact to worker pool",
				zap.String("contact_id", contact.ID),
				zap.Error(submitErr),
			)
		}
	}
	wg.Wait()

	observer.IncBotCycle(ownerID)
	observer.ObserveBotCycleDuration(ownerID, time.Since(start))

	log.Debug("Bot cycle finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("handled", result.Handled),
	)
	return result, nil
}

// processContact handles one contact: at most one action per cycle.
// Returns a human-readable action line (empty when nothing was done)
// and whether the action counts as a handled conversation.
func (p *Poller) processContact(ctx context.Context, contact model.Contact) (string, bool) {
	log := logger.FromContext(ctx).With(zap.String("contact_id", contact.ID))

	history, err := p.gw.FetchRecentHistory(ctx, contact.ID, p.cfg.HistoryLimit)
	if err != nil {
		log.Warn("Failed to fetch chat history", zap.Error(err))
		return "", false
	}
	if len(history) == 0 {
		return "", false
	}

	last := history[len(history)-1]
	if last.FromMe {
		return "", false
	}
	// Mark before acting: a crash mid-action must not replay the
	// message next cycle.
	if !p.seen.MarkSeen(last.ID) {
		return "", false
	}

	intent, err := p.gen.ClassifyIntent(ctx, last.Text)
	if err != nil {
		// An unclassified message gets no action this cycle; replying
		// blind would over-act on it.
		log.Warn("Intent classification errored, skipping contact", zap.Error(err))
		return "", false
	}

	switch intent.Intent {
	case model.IntentStopBot:
		return p.handleStopBot(ctx, contact, last)
	case model.IntentScheduleVisit:
		return p.handleScheduleVisit(ctx, contact, last, intent)
	default:
		return p.handleNegotiation(ctx, contact, history, last)
	}
}

func (p *Poller) handleStopBot(ctx context.Context, contact model.Contact, last model.InboundMessage) (string, bool) {
	log := logger.FromContext(ctx).With(zap.String("contact_id", contact.ID))

	contact.AutoReplyEnabled = false
	contact.DeliveryStatus = model.DeliveryFailed
	contact.LastMessageID = last.ID
	if err := p.contacts.Update(ctx, contact); err != nil {
		log.Error("Failed to persist bot opt-out", zap.Error(err))
		return "", false
	}
	observer.IncBotAction(contact.OwnerID, string(model.IntentStopBot))
	log.Info("Bot disabled for contact on visitor request")
	return fmt.Sprintf("Bot desligado para %s (solicitado pelo cliente)", contactLabel(contact)), false
}

func (p *Poller) handleScheduleVisit(ctx context.Context, contact model.Contact, last model.InboundMessage, intent model.IntentResult) (string, bool) {
	log := logger.FromContext(ctx).With(zap.String("contact_id", contact.ID))

	notes := fmt.Sprintf("Agendado via IA: %q", last.Text)
	if intent.ExtractedDate != "" {
		notes = fmt.Sprintf("%s (horário sugerido: %s)", notes, intent.ExtractedDate)
	}
	visit := model.Visit{
		ID:        uuid.New().String(),
		OwnerID:   contact.OwnerID,
		ContactID: contact.ID,
		Date:      visitDate(intent.ExtractedDate),
		Notes:     notes,
		Completed: false,
	}
	if err := p.visits.Save(ctx, visit); err != nil {
		log.Error("Failed to save visit", zap.Error(err))
		return "", false
	}

	contact.AdvanceStage(model.StageScheduled)
	// Hand the conversation to a human once a visit is on the books.
	contact.AutoReplyEnabled = false
	contact.LastMessageID = last.ID
	if err := p.contacts.Update(ctx, contact); err != nil {
		log.Error("Failed to persist scheduled contact", zap.Error(err))
	}

	if _, err := p.gw.SendMessage(ctx, contact.ID, visitConfirmation); err != nil {
		log.Warn("Failed to send visit confirmation", zap.Error(err))
	}

	observer.IncBotAction(contact.OwnerID, string(model.IntentScheduleVisit))
	log.Info("Visit scheduled by bot", zap.String("visit_id", visit.ID))
	return fmt.Sprintf("Visita agendada para %s", contactLabel(contact)), true
}

func (p *Poller) handleNegotiation(ctx context.Context, contact model.Contact, history []model.InboundMessage, last model.InboundMessage) (string, bool) {
	log := logger.FromContext(ctx).With(zap.String("contact_id", contact.ID))

	campaign, err := p.campaigns.FindByID(ctx, contact.LinkedCampaignID)
	if err != nil {
		log.Warn("Linked campaign not found, skipping reply",
			zap.String("campaign_id", contact.LinkedCampaignID),
			zap.Error(err),
		)
		return "", false
	}
	dossier, err := campaign.DecodeDossier()
	if err != nil || dossier.Empty() {
		// No dossier means no grounding for a negotiation reply.
		log.Debug("Campaign has no usable dossier, skipping reply",
			zap.String("campaign_id", campaign.ID),
		)
		return "", false
	}

	reply, err := p.gen.GenerateReply(ctx, model.HistoryToTurns(history), dossier)
	if err != nil {
		log.Warn("Reply generation errored", zap.Error(err))
		return "", false
	}

	if _, err := p.gw.SendMessage(ctx, contact.ID, reply); err != nil {
		log.Warn("Failed to send bot reply", zap.Error(err))
		return "", false
	}

	now := utils.Now()
	contact.LastInteraction = &now
	contact.LastMessageID = last.ID
	if err := p.contacts.Update(ctx, contact); err != nil {
		log.Error("Failed to persist bot interaction", zap.Error(err))
	}

	observer.IncBotAction(contact.OwnerID, string(model.IntentInfoRequest))
	return fmt.Sprintf("Respondido para %s: %q", contactLabel(contact), truncate(reply, 40)), true
}

func contactLabel(contact model.Contact) string {
	if contact.Name != "" {
		return contact.Name
	}
	return contact.ID
}

// visitDate parses an RFC3339 extracted date, falling back to now.
// Free-form phrases ("terça às 15h") stay in the visit notes.
func visitDate(extracted string) time.Time {
	if extracted != "" {
		if t, err := time.Parse(time.RFC3339, extracted); err == nil {
			return t
		}
	}
	return utils.Now()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func tenantOwner(ctx context.Context) (string, error) {
	ownerID, err := tenant.FromContext(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, err)
	}
	return ownerID, nil
}
