package jetstream_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/apperrors"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/gateway"
	gatewaymock "github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/gateway/mock"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/jetstream"
	jsmock "github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/jetstream/mock"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/model"
	storagemock "github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/storage/mock"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/usecase"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/pkg/logger"
)

func TestSubjects(t *testing.T) {
	assert.Equal(t, "v1.campaigns.launch.owner-1", jetstream.LaunchSubject("owner-1"))
	assert.Equal(t, "v1.campaigns.progress.owner-1.camp-1", jetstream.ProgressSubject("owner-1", "camp-1"))
}

func TestCampaignStreamConfig(t *testing.T) {
	cfg := jetstream.CampaignStreamConfig()
	assert.Equal(t, jetstream.CampaignStreamName, cfg.Name)
	assert.Equal(t, []string{"v1.campaigns.>"}, cfg.Subjects)
	assert.Equal(t, nats.FileStorage, cfg.Storage)
}

func TestProgressPublisher_Publish(t *testing.T) {
	logger.Log = zaptest.NewLogger(t).Named("test")
	client := new(jsmock.ClientMock)

	var published []byte
	client.On("Publish", "v1.campaigns.progress.owner-1.camp-1", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(1).([]byte) }).
		Return(nil)

	pub := jetstream.NewProgressPublisher(client)
	event := usecase.ProgressEvent{
		CampaignID: "camp-1",
		OwnerID:    "owner-1",
		ContactID:  "lead@c.us",
		Stage:      usecase.ProgressSent,
		Percent:    50,
		Timestamp:  time.Now(),
	}
	require.NoError(t, pub.Publish(context.Background(), event))

	var decoded usecase.ProgressEvent
	require.NoError(t, json.Unmarshal(published, &decoded))
	assert.Equal(t, "camp-1", decoded.CampaignID)
	assert.Equal(t, usecase.ProgressSent, decoded.Stage)
	assert.Equal(t, 50, decoded.Percent)

	// Publish carries a deduplication id header.
	headers := client.Calls[0].Arguments.Get(2).(map[string]string)
	assert.NotEmpty(t, headers["Nats-Msg-Id"])
}

func TestProgressPublisher_PublishError(t *testing.T) {
	logger.Log = zaptest.NewLogger(t).Named("test")
	client := new(jsmock.ClientMock)
	client.On("Publish", mock.Anything, mock.Anything, mock.Anything).
		Return(assert.AnError)

	pub := jetstream.NewProgressPublisher(client)
	err := pub.Publish(context.Background(), usecase.ProgressEvent{CampaignID: "c", OwnerID: "o"})
	assert.Error(t, err)
}

type launchFixture struct {
	client    *jsmock.ClientMock
	gw        *gatewaymock.GatewayMock
	contacts  *storagemock.ContactRepoMock
	campaigns *storagemock.CampaignRepoMock
	handler   nats.MsgHandler
}

func newLaunchFixture(t *testing.T) *launchFixture {
	logger.Log = zaptest.NewLogger(t).Named("test")
	f := &launchFixture{
		client:    new(jsmock.ClientMock),
		gw:        new(gatewaymock.GatewayMock),
		contacts:  new(storagemock.ContactRepoMock),
		campaigns: new(storagemock.CampaignRepoMock),
	}

	f.client.On("Subscribe", "v1.campaigns.launch.owner-1", "campaign_launch_owner-1", "campaign_launch_owner-1", mock.Anything).
		Run(func(args mock.Arguments) { f.handler = args.Get(3).(nats.MsgHandler) }).
		Return(&nats.Subscription{}, nil)

	dispatcher := usecase.NewDispatcher(f.gw, f.contacts, f.campaigns, usecase.NopSink{}, usecase.DispatchConfig{},
		usecase.WithSleep(func(ctx context.Context, d time.Duration) error { return ctx.Err() }),
	)
	consumer := jetstream.NewLaunchConsumer(f.client, dispatcher, f.campaigns, "owner-1")
	require.NoError(t, consumer.Start(context.Background()))
	require.NotNil(t, f.handler)
	return f
}

func launchMsg(t *testing.T, campaignID string) *nats.Msg {
	payload, err := json.Marshal(jetstream.LaunchCommand{CampaignID: campaignID})
	require.NoError(t, err)
	return &nats.Msg{Subject: "v1.campaigns.launch.owner-1", Data: payload}
}

func TestLaunchConsumer_RunsCampaign(t *testing.T) {
	f := newLaunchFixture(t)

	contact := model.NewContact(&model.Contact{ID: "lead@c.us", OwnerID: "owner-1"})
	campaign := model.NewCampaign("owner-1", []string{contact.ID})

	f.campaigns.On("FindByID", mock.Anything, campaign.ID).Return(campaign, nil)
	f.gw.On("CheckConnectionHealth", mock.Anything).
		Return(&gateway.Health{State: "authorized", Authorized: true}, nil)
	f.campaigns.On("UpdateStatus", mock.Anything, campaign.ID, mock.Anything, mock.Anything).Return(nil)
	f.contacts.On("FindByID", mock.Anything, contact.ID).Return(contact, nil)
	f.gw.On("SendMessage", mock.Anything, contact.ID, campaign.MessageBody).
		Return(&gateway.SendResult{MessageID: "m1"}, nil)
	f.contacts.On("Update", mock.Anything, mock.Anything).Return(nil)

	f.handler(launchMsg(t, campaign.ID))

	f.gw.AssertCalled(t, "SendMessage", mock.Anything, contact.ID, campaign.MessageBody)
	f.campaigns.AssertCalled(t, "UpdateStatus", mock.Anything, campaign.ID, model.CampaignCompleted, 100)
}

func TestLaunchConsumer_MalformedPayloadDiscarded(t *testing.T) {
	f := newLaunchFixture(t)

	f.handler(&nats.Msg{Subject: "v1.campaigns.launch.owner-1", Data: []byte("not json")})

	f.campaigns.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestLaunchConsumer_UnknownCampaignDiscarded(t *testing.T) {
	f := newLaunchFixture(t)

	f.campaigns.On("FindByID", mock.Anything, "ghost").Return(nil, apperrors.ErrNotFound)

	f.handler(launchMsg(t, "ghost"))

	f.gw.AssertNotCalled(t, "CheckConnectionHealth", mock.Anything)
}
