package gateway

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/apperrors"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/model"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/pkg/logger"
)

const (
	testInstanceID = "1101000001"
	testAPIToken   = "token-abc"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	logger.Log = zaptest.NewLogger(t).Named("test")
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(testInstanceID, testAPIToken,
		WithBaseURL(server.URL),
		WithHTTPClient(server.Client()),
	)
	require.NoError(t, err)
	return client, server
}

func TestNewClient_Unconfigured(t *testing.T) {
	_, err := NewClient("", "")
	assert.ErrorIs(t, err, apperrors.ErrUnconfigured)

	_, err = NewClient(testInstanceID, "")
	assert.ErrorIs(t, err, apperrors.ErrUnconfigured)
}

func TestClient_SendMessage_Success(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/waInstance"+testInstanceID+"/sendMessage/"+testAPIToken, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "5511999990001@c.us", payload["chatId"])
		assert.Equal(t, "Olá! Tudo bem?", payload["message"])

		json.NewEncoder(w).Encode(map[string]string{"idMessage": "MSG-1"})
	}))

	result, err := client.SendMessage(context.Background(), "5511999990001@c.us", "Olá! Tudo bem?")
	require.NoError(t, err)
	assert.Equal(t, "MSG-1", result.MessageID)
}

func TestClient_SendMessage_MissingChatID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))

	_, err := client.SendMessage(context.Background(), "", "hello")
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestClient_SendMessage_RateLimited(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.SendMessage(context.Background(), "a@c.us", "hello")
	assert.ErrorIs(t, err, apperrors.ErrRateLimited)
	assert.True(t, apperrors.IsRetryable(err))
}

func TestClient_SendMessage_ServerError_Retryable(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.SendMessage(context.Background(), "a@c.us", "hello")
	assert.ErrorIs(t, err, apperrors.ErrGateway)
	assert.True(t, apperrors.IsRetryable(err))
}

func TestClient_SendMessage_Unauthorized(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.SendMessage(context.Background(), "a@c.us", "hello")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.False(t, apperrors.IsRetryable(err))
}

func TestClient_SendFileByURL_Success(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/waInstance"+testInstanceID+"/sendFileByUrl/"+testAPIToken, r.URL.Path)

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "https://cdn.example.com/apt.jpg", payload["urlFile"])
		assert.Equal(t, "apt.jpg", payload["fileName"])

		json.NewEncoder(w).Encode(map[string]string{"idMessage": "FILE-1"})
	}))

	result, err := client.SendFileByURL(context.Background(), "a@c.us", "https://cdn.example.com/apt.jpg", "apt.jpg", "Fotos do imóvel")
	require.NoError(t, err)
	assert.Equal(t, "FILE-1", result.MessageID)
}

func TestClient_FetchRecentHistory_MapsEntries(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/waInstance"+testInstanceID+"/getChatHistory/"+testAPIToken, r.URL.Path)

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, float64(20), payload["count"])

		json.NewEncoder(w).Encode([]map[string]interface{}{
			{
				"idMessage":   "in-2",
				"type":        "incoming",
				"timestamp":   1700000200,
				"senderId":    "a@c.us",
				"typeMessage": "textMessage",
				"textMessage": "Tenho interesse",
			},
			{
				"idMessage":           "out-1",
				"type":                "outgoing",
				"timestamp":           1700000100,
				"typeMessage":         "extendedTextMessage",
				"extendedTextMessage": map[string]string{"text": "Olá!"},
			},
			{
				"idMessage":   "in-1",
				"type":        "incoming",
				"timestamp":   1700000000,
				"senderId":    "a@c.us",
				"typeMessage": "imageMessage",
				"caption":     "foto",
			},
		})
	}))

	history, err := client.FetchRecentHistory(context.Background(), "a@c.us", 0)
	require.NoError(t, err)
	require.Len(t, history, 3)

	// API reports newest first; the client returns chronological order.
	assert.Equal(t, model.MessageTypeImage, history[0].Type)
	assert.Equal(t, "foto", history[0].Text)

	assert.True(t, history[1].FromMe)
	assert.Equal(t, "Olá!", history[1].Text)

	assert.Equal(t, "in-2", history[2].ID)
	assert.False(t, history[2].FromMe)
	assert.Equal(t, "Tenho interesse", history[2].Text)
	assert.Equal(t, model.MessageTypeText, history[2].Type)
}

func TestClient_CheckConnectionHealth(t *testing.T) {
	tests := []struct {
		name       string
		state      string
		authorized bool
	}{
		{"authorized", "authorized", true},
		{"not authorized", "notAuthorized", false},
		{"starting", "starting", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				json.NewEncoder(w).Encode(map[string]string{"stateInstance": tc.state})
			}))

			health, err := client.CheckConnectionHealth(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.state, health.State)
			assert.Equal(t, tc.authorized, health.Authorized)
		})
	}
}

func TestSimulator_SendAndHistory(t *testing.T) {
	logger.Log = zaptest.NewLogger(t).Named("test")
	sim := NewSimulator(rand.New(rand.NewSource(1)), 0)

	result, err := sim.SendMessage(context.Background(), "a@c.us", "primeira")
	require.NoError(t, err)
	assert.NotEmpty(t, result.MessageID)

	_, err = sim.SendMessage(context.Background(), "a@c.us", "segunda")
	require.NoError(t, err)

	history, err := sim.FetchRecentHistory(context.Background(), "a@c.us", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "segunda", history[1].Text, "history is chronological")
	assert.True(t, history[1].FromMe)

	health, err := sim.CheckConnectionHealth(context.Background())
	require.NoError(t, err)
	assert.True(t, health.Authorized)
}

func TestSimulator_FailureRate(t *testing.T) {
	logger.Log = zaptest.NewLogger(t).Named("test")
	sim := NewSimulator(rand.New(rand.NewSource(7)), 1.0)

	_, err := sim.SendMessage(context.Background(), "a@c.us", "oi")
	assert.ErrorIs(t, err, apperrors.ErrGateway)
	assert.True(t, apperrors.IsRetryable(err))
}
