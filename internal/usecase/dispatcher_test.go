package usecase

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/apperrors"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/gateway"
	gatewaymock "github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/gateway/mock"
	genaimock "github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/genai/mock"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/model"
	storagemock "github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/storage/mock"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/tenant"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/pkg/logger"
)

const dispatchOwnerID = "owner-dispatch-test"

type dispatchFixture struct {
	gw        *gatewaymock.GatewayMock
	contacts  *storagemock.ContactRepoMock
	campaigns *storagemock.CampaignRepoMock
	sink      *ChannelSink
	sleeps    []time.Duration
}

func newDispatchFixture(t *testing.T) *dispatchFixture {
	logger.Log = zaptest.NewLogger(t).Named("test")
	return &dispatchFixture{
		gw:        new(gatewaymock.GatewayMock),
		contacts:  new(storagemock.ContactRepoMock),
		campaigns: new(storagemock.CampaignRepoMock),
		sink:      NewChannelSink(128),
	}
}

func (f *dispatchFixture) dispatcher(cfg DispatchConfig) *Dispatcher {
	return NewDispatcher(f.gw, f.contacts, f.campaigns, f.sink, cfg,
		WithRand(rand.New(rand.NewSource(1))),
		WithSleep(func(ctx context.Context, d time.Duration) error {
			f.sleeps = append(f.sleeps, d)
			return ctx.Err()
		}),
	)
}

func (f *dispatchFixture) authorizeGateway() {
	f.gw.On("CheckConnectionHealth", mock.Anything).
		Return(&gateway.Health{State: "authorized", Authorized: true}, nil)
}

func (f *dispatchFixture) expectContacts(ids ...string) {
	for _, id := range ids {
		contact := model.NewContact(&model.Contact{ID: id, OwnerID: dispatchOwnerID, PipelineStage: model.StageNew})
		f.contacts.On("FindByID", mock.Anything, id).Return(contact, nil)
	}
}

func dispatchContext() context.Context {
	return tenant.WithOwnerID(context.Background(), dispatchOwnerID)
}

func testCampaign(targets []string) *model.Campaign {
	c := model.NewCampaign(dispatchOwnerID, targets)
	c.Attachments = nil
	return c
}

// Scenario: every target succeeds; the campaign reaches completed with
// all contacts marked sent and advanced to contacted.
func TestDispatcher_RunCampaign_AllSucceed(t *testing.T) {
	f := newDispatchFixture(t)
	targets := []string{"a@c.us", "b@c.us", "c@c.us"}
	campaign := testCampaign(targets)

	f.authorizeGateway()
	f.expectContacts(targets...)
	f.campaigns.On("UpdateStatus", mock.Anything, campaign.ID, model.CampaignRunning, 0).Return(nil)
	f.campaigns.On("UpdateStatus", mock.Anything, campaign.ID, model.CampaignCompleted, 100).Return(nil)
	f.gw.On("SendMessage", mock.Anything, mock.Anything, campaign.MessageBody).
		Return(&gateway.SendResult{MessageID: "sent"}, nil).Times(3)

	var updated []model.Contact
	f.contacts.On("Update", mock.Anything, mock.AnythingOfType("model.Contact")).
		Run(func(args mock.Arguments) {
			updated = append(updated, args.Get(1).(model.Contact))
		}).
		Return(nil)

	d := f.dispatcher(DispatchConfig{MinSendDelay: time.Millisecond, MaxSendDelay: 2 * time.Millisecond})
	result, err := d.RunCampaign(dispatchContext(), campaign)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 3, result.Success)
	assert.Equal(t, 0, result.Failure)
	assert.Equal(t, result.Total, result.Success+result.Failure)

	require.Len(t, updated, 3)
	for _, c := range updated {
		assert.Equal(t, model.DeliverySent, c.DeliveryStatus)
		assert.Equal(t, model.StageContacted, c.PipelineStage)
		assert.NotNil(t, c.LastInteraction)
	}

	f.gw.AssertExpectations(t)
	f.campaigns.AssertExpectations(t)
}

// Scenario: the second of three sends fails; the run continues, records
// the failure on that contact and still completes the campaign.
func TestDispatcher_RunCampaign_MidListFailureContinues(t *testing.T) {
	f := newDispatchFixture(t)
	targets := []string{"a@c.us", "b@c.us", "c@c.us"}
	campaign := testCampaign(targets)

	f.authorizeGateway()
	f.expectContacts(targets...)
	f.campaigns.On("UpdateStatus", mock.Anything, campaign.ID, model.CampaignRunning, 0).Return(nil)
	f.campaigns.On("UpdateStatus", mock.Anything, campaign.ID, model.CampaignCompleted, 100).Return(nil)

	f.gw.On("SendMessage", mock.Anything, "a@c.us", mock.Anything).
		Return(&gateway.SendResult{MessageID: "m1"}, nil)
	f.gw.On("SendMessage", mock.Anything, "b@c.us", mock.Anything).
		Return(nil, errors.New("number not on whatsapp"))
	f.gw.On("SendMessage", mock.Anything, "c@c.us", mock.Anything).
		Return(&gateway.SendResult{MessageID: "m3"}, nil)

	statusByContact := map[string]string{}
	f.contacts.On("Update", mock.Anything, mock.AnythingOfType("model.Contact")).
		Run(func(args mock.Arguments) {
			c := args.Get(1).(model.Contact)
			statusByContact[c.ID] = c.DeliveryStatus
		}).
		Return(nil)

	d := f.dispatcher(DispatchConfig{MinSendDelay: time.Millisecond, MaxSendDelay: 2 * time.Millisecond})
	result, err := d.RunCampaign(dispatchContext(), campaign)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Success)
	assert.Equal(t, 1, result.Failure)
	assert.Equal(t, model.DeliverySent, statusByContact["a@c.us"])
	assert.Equal(t, model.DeliveryFailed, statusByContact["b@c.us"])
	assert.Equal(t, model.DeliverySent, statusByContact["c@c.us"])

	f.campaigns.AssertCalled(t, "UpdateStatus", mock.Anything, campaign.ID, model.CampaignCompleted, 100)
}

// Pacing: no delay before the first send, one delay between each pair,
// every delay inside the configured window.
func TestDispatcher_RunCampaign_PacingWindow(t *testing.T) {
	f := newDispatchFixture(t)
	targets := []string{"a@c.us", "b@c.us", "c@c.us", "d@c.us"}
	campaign := testCampaign(targets)

	f.authorizeGateway()
	f.expectContacts(targets...)
	f.campaigns.On("UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.gw.On("SendMessage", mock.Anything, mock.Anything, mock.Anything).
		Return(&gateway.SendResult{MessageID: "m"}, nil)
	f.contacts.On("Update", mock.Anything, mock.Anything).Return(nil)

	minDelay, maxDelay := 15*time.Second, 45*time.Second
	d := f.dispatcher(DispatchConfig{MinSendDelay: minDelay, MaxSendDelay: maxDelay})
	_, err := d.RunCampaign(dispatchContext(), campaign)
	require.NoError(t, err)

	require.Len(t, f.sleeps, len(targets)-1, "one pacing delay between each consecutive pair")
	for _, delay := range f.sleeps {
		assert.GreaterOrEqual(t, delay, minDelay)
		assert.LessOrEqual(t, delay, maxDelay)
	}
}

// Stage invariant: a send never moves a contact backwards in the funnel.
func TestDispatcher_RunCampaign_NeverRegressesStage(t *testing.T) {
	f := newDispatchFixture(t)
	campaign := testCampaign([]string{"vip@c.us"})

	f.authorizeGateway()
	scheduled := model.NewContact(&model.Contact{
		ID:            "vip@c.us",
		OwnerID:       dispatchOwnerID,
		PipelineStage: model.StageScheduled,
	})
	f.contacts.On("FindByID", mock.Anything, "vip@c.us").Return(scheduled, nil)
	f.campaigns.On("UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.gw.On("SendMessage", mock.Anything, mock.Anything, mock.Anything).
		Return(&gateway.SendResult{MessageID: "m"}, nil)

	var got model.Contact
	f.contacts.On("Update", mock.Anything, mock.AnythingOfType("model.Contact")).
		Run(func(args mock.Arguments) { got = args.Get(1).(model.Contact) }).
		Return(nil)

	d := f.dispatcher(DispatchConfig{MinSendDelay: time.Millisecond, MaxSendDelay: time.Millisecond})
	_, err := d.RunCampaign(dispatchContext(), campaign)
	require.NoError(t, err)

	assert.Equal(t, model.StageScheduled, got.PipelineStage, "scheduled contact keeps its stage")
	assert.Equal(t, model.DeliverySent, got.DeliveryStatus)
}

func TestDispatcher_RunCampaign_EmptyTargets(t *testing.T) {
	f := newDispatchFixture(t)
	campaign := testCampaign(nil)

	d := f.dispatcher(DispatchConfig{})
	_, err := d.RunCampaign(dispatchContext(), campaign)
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
	f.gw.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatcher_RunCampaign_GatewayNotAuthorized(t *testing.T) {
	f := newDispatchFixture(t)
	campaign := testCampaign([]string{"a@c.us"})

	f.gw.On("CheckConnectionHealth", mock.Anything).
		Return(&gateway.Health{State: "notAuthorized", Authorized: false}, nil)

	d := f.dispatcher(DispatchConfig{})
	_, err := d.RunCampaign(dispatchContext(), campaign)
	assert.ErrorIs(t, err, apperrors.ErrUnconfigured)
	f.gw.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything)
}

// Cancellation mid-run returns partial counts and leaves the campaign
// running; completion status is never written.
func TestDispatcher_RunCampaign_CancelledMidRun(t *testing.T) {
	f := newDispatchFixture(t)
	targets := []string{"a@c.us", "b@c.us", "c@c.us"}
	campaign := testCampaign(targets)

	f.authorizeGateway()
	f.expectContacts(targets...)
	f.campaigns.On("UpdateStatus", mock.Anything, campaign.ID, model.CampaignRunning, 0).Return(nil)
	f.gw.On("SendMessage", mock.Anything, mock.Anything, mock.Anything).
		Return(&gateway.SendResult{MessageID: "m"}, nil)
	f.contacts.On("Update", mock.Anything, mock.Anything).Return(nil)

	ctx, cancel := context.WithCancel(dispatchContext())
	d := NewDispatcher(f.gw, f.contacts, f.campaigns, f.sink, DispatchConfig{MinSendDelay: time.Millisecond, MaxSendDelay: time.Millisecond},
		WithSleep(func(ctx context.Context, delay time.Duration) error {
			cancel()
			return ctx.Err()
		}),
	)

	result, err := d.RunCampaign(ctx, campaign)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, result.Success, "first target dispatched before cancellation")
	f.campaigns.AssertNotCalled(t, "UpdateStatus", mock.Anything, campaign.ID, model.CampaignCompleted, 100)
}

// Only the first attachment is transmitted; the campaign body rides as
// its caption.
func TestDispatcher_RunCampaign_FirstAttachmentOnly(t *testing.T) {
	f := newDispatchFixture(t)
	campaign := testCampaign([]string{"a@c.us"})
	campaign.Attachments = model.MustJSON([]model.Attachment{
		{Name: "fachada.jpg", URL: "https://cdn.example.com/fachada.jpg", Kind: "image"},
		{Name: "planta.pdf", URL: "https://cdn.example.com/planta.pdf", Kind: "document"},
	})

	f.authorizeGateway()
	f.expectContacts("a@c.us")
	f.campaigns.On("UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.contacts.On("Update", mock.Anything, mock.Anything).Return(nil)
	f.gw.On("SendFileByURL", mock.Anything, "a@c.us", "https://cdn.example.com/fachada.jpg", "fachada.jpg", campaign.MessageBody).
		Return(&gateway.SendResult{MessageID: "m"}, nil).Once()

	d := f.dispatcher(DispatchConfig{MinSendDelay: time.Millisecond, MaxSendDelay: time.Millisecond})
	result, err := d.RunCampaign(dispatchContext(), campaign)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Success)

	f.gw.AssertExpectations(t)
	f.gw.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatcher_RunCampaign_EmitsProgressEvents(t *testing.T) {
	f := newDispatchFixture(t)
	targets := []string{"a@c.us", "b@c.us"}
	campaign := testCampaign(targets)

	f.authorizeGateway()
	f.expectContacts(targets...)
	f.campaigns.On("UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.gw.On("SendMessage", mock.Anything, mock.Anything, mock.Anything).
		Return(&gateway.SendResult{MessageID: "m"}, nil)
	f.contacts.On("Update", mock.Anything, mock.Anything).Return(nil)

	d := f.dispatcher(DispatchConfig{MinSendDelay: time.Millisecond, MaxSendDelay: time.Millisecond})
	_, err := d.RunCampaign(dispatchContext(), campaign)
	require.NoError(t, err)

	var events []ProgressEvent
	for {
		select {
		case e := <-f.sink.Events():
			events = append(events, e)
			continue
		default:
		}
		break
	}

	require.NotEmpty(t, events)
	stages := make([]string, 0, len(events))
	for _, e := range events {
		stages = append(stages, e.Stage)
		assert.Equal(t, campaign.ID, e.CampaignID)
	}
	assert.Equal(t, []string{ProgressStarting, ProgressSent, ProgressStarting, ProgressSent, ProgressCompleted}, stages)

	last := events[len(events)-1]
	assert.Equal(t, 100, last.Percent)
}

func TestDispatcher_RecentLog_Rolls(t *testing.T) {
	f := newDispatchFixture(t)
	targets := []string{"a@c.us", "b@c.us", "c@c.us", "d@c.us", "e@c.us", "f@c.us", "g@c.us"}
	campaign := testCampaign(targets)

	f.authorizeGateway()
	f.expectContacts(targets...)
	f.campaigns.On("UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.gw.On("SendMessage", mock.Anything, mock.Anything, mock.Anything).
		Return(&gateway.SendResult{MessageID: "m"}, nil)
	f.contacts.On("Update", mock.Anything, mock.Anything).Return(nil)

	d := f.dispatcher(DispatchConfig{MinSendDelay: time.Millisecond, MaxSendDelay: time.Millisecond, LogLines: 5})
	_, err := d.RunCampaign(dispatchContext(), campaign)
	require.NoError(t, err)

	lines := d.RecentLog()
	assert.Len(t, lines, 5, "log keeps only the last five lines")
}

// Progress percentages are rounded, not floored: two of three targets
// reports 67, not 66.
func TestDispatcher_RunCampaign_ProgressPercentRounds(t *testing.T) {
	f := newDispatchFixture(t)
	targets := []string{"a@c.us", "b@c.us", "c@c.us"}
	campaign := testCampaign(targets)

	f.authorizeGateway()
	f.expectContacts(targets...)
	f.campaigns.On("UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.gw.On("SendMessage", mock.Anything, mock.Anything, mock.Anything).
		Return(&gateway.SendResult{MessageID: "m"}, nil)
	f.contacts.On("Update", mock.Anything, mock.Anything).Return(nil)

	d := f.dispatcher(DispatchConfig{MinSendDelay: time.Millisecond, MaxSendDelay: time.Millisecond})
	_, err := d.RunCampaign(dispatchContext(), campaign)
	require.NoError(t, err)

	var sentPercents []int
	for {
		select {
		case e := <-f.sink.Events():
			if e.Stage == ProgressSent {
				sentPercents = append(sentPercents, e.Percent)
			}
			continue
		default:
		}
		break
	}
	assert.Equal(t, []int{33, 67, 100}, sentPercents)
}

// A campaign launched without a message body gets its opener written
// from the dossier.
func TestDispatcher_RunCampaign_GeneratesOpenerWhenBodyEmpty(t *testing.T) {
	f := newDispatchFixture(t)
	targets := []string{"a@c.us"}
	campaign := testCampaign(targets)
	campaign.MessageBody = ""

	gen := new(genaimock.GeneratorMock)
	gen.On("GenerateMarketingCopy", mock.Anything, mock.AnythingOfType("model.PropertyDossier")).
		Return("Oportunidade única no Centro. Posso te mandar as fotos?", nil)

	f.authorizeGateway()
	f.expectContacts(targets...)
	f.campaigns.On("UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.gw.On("SendMessage", mock.Anything, "a@c.us", "Oportunidade única no Centro. Posso te mandar as fotos?").
		Return(&gateway.SendResult{MessageID: "m"}, nil).Once()
	f.contacts.On("Update", mock.Anything, mock.Anything).Return(nil)

	d := NewDispatcher(f.gw, f.contacts, f.campaigns, f.sink,
		DispatchConfig{MinSendDelay: time.Millisecond, MaxSendDelay: time.Millisecond},
		WithCopyGenerator(gen),
		WithSleep(func(ctx context.Context, d time.Duration) error { return ctx.Err() }),
	)
	result, err := d.RunCampaign(dispatchContext(), campaign)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Success)

	f.gw.AssertExpectations(t)
	gen.AssertExpectations(t)
}

// A contact deleted between snapshot and dispatch counts as a failure
// without aborting the run.
func TestDispatcher_RunCampaign_MissingContactCountsAsFailure(t *testing.T) {
	f := newDispatchFixture(t)
	targets := []string{"gone@c.us", "here@c.us"}
	campaign := testCampaign(targets)

	f.authorizeGateway()
	f.contacts.On("FindByID", mock.Anything, "gone@c.us").Return(nil, apperrors.ErrNotFound)
	f.expectContacts("here@c.us")
	f.campaigns.On("UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.gw.On("SendMessage", mock.Anything, "here@c.us", mock.Anything).
		Return(&gateway.SendResult{MessageID: "m"}, nil)
	f.contacts.On("Update", mock.Anything, mock.Anything).Return(nil)

	d := f.dispatcher(DispatchConfig{MinSendDelay: time.Millisecond, MaxSendDelay: time.Millisecond})
	result, err := d.RunCampaign(dispatchContext(), campaign)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Success)
	assert.Equal(t, 1, result.Failure)
}
