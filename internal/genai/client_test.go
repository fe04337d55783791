package genai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/model"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/pkg/logger"
)

func newTestGenClient(t *testing.T, handler http.Handler) *Client {
	logger.Log = zaptest.NewLogger(t).Named("test")
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient("test-key",
		WithBaseURL(server.URL),
		WithHTTPClient(server.Client()),
	)
}

func generateReplyJSON(text string) map[string]interface{} {
	return map[string]interface{}{
		"candidates": []map[string]interface{}{
			{"content": map[string]interface{}{"parts": []map[string]string{{"text": text}}}},
		},
	}
}

func TestClient_Unconfigured_Fallbacks(t *testing.T) {
	logger.Log = zaptest.NewLogger(t).Named("test")
	client := NewClient("")
	ctx := context.Background()
	dossier := model.PropertyDossier{Title: "Cobertura Centro", Price: "R$ 900.000", Location: "Centro"}

	copyText, err := client.GenerateMarketingCopy(ctx, dossier)
	require.NoError(t, err)
	assert.Contains(t, copyText, "Cobertura Centro")
	assert.Contains(t, copyText, "R$ 900.000")

	reply, err := client.GenerateReply(ctx, []model.ChatTurn{{Role: "user", Text: "oi"}}, dossier)
	require.NoError(t, err)
	assert.Equal(t, fallbackReply, reply)

	result, err := client.ClassifyIntent(ctx, "quero agendar uma visita")
	require.NoError(t, err)
	assert.Equal(t, model.IntentScheduleVisit, result.Intent)
}

func TestClient_GenerateMarketingCopy_Success(t *testing.T) {
	client := newTestGenClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-2.5-flash:generateContent")
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		json.NewEncoder(w).Encode(generateReplyJSON("Já pensou em morar no Centro? Posso te mandar as fotos?"))
	}))

	text, err := client.GenerateMarketingCopy(context.Background(), model.PropertyDossier{Title: "Apto Centro"})
	require.NoError(t, err)
	assert.Equal(t, "Já pensou em morar no Centro? Posso te mandar as fotos?", text)
}

func TestClient_Generate_RetriesOnOverload(t *testing.T) {
	var calls int32
	client := newTestGenClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(generateReplyJSON("resposta"))
	}))
	// Short retry intervals keep the test fast.
	text, err := client.generateWithInterval(context.Background(), "prompt", false, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "resposta", text)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_GenerateReply_FallsBackOnServerError(t *testing.T) {
	client := newTestGenClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	reply, err := client.GenerateReply(context.Background(),
		[]model.ChatTurn{{Role: "user", Text: "qual o valor?"}},
		model.PropertyDossier{Title: "Apto"})
	require.NoError(t, err, "reply generation degrades, never errors")
	assert.Equal(t, fallbackReply, reply)
}

func TestClient_ClassifyIntent_ParsesModelJSON(t *testing.T) {
	client := newTestGenClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := `{"intent":"SCHEDULE_VISIT","extractedDate":"terça às 15h"}`
		json.NewEncoder(w).Encode(generateReplyJSON(body))
	}))

	result, err := client.ClassifyIntent(context.Background(), "Podemos marcar terça às 15h?")
	require.NoError(t, err)
	assert.Equal(t, model.IntentScheduleVisit, result.Intent)
	assert.Equal(t, "terça às 15h", result.ExtractedDate)
}

func TestClient_ClassifyIntent_UnknownCategoryFallsBack(t *testing.T) {
	client := newTestGenClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateReplyJSON(`{"intent":"SOMETHING_ELSE"}`))
	}))

	result, err := client.ClassifyIntent(context.Background(), "pare de me mandar mensagem")
	require.NoError(t, err)
	assert.Equal(t, model.IntentStopBot, result.Intent)
}

func TestClient_ClassifyIntent_InvalidJSONFallsBack(t *testing.T) {
	client := newTestGenClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateReplyJSON("not json at all"))
	}))

	result, err := client.ClassifyIntent(context.Background(), "quanto custa?")
	require.NoError(t, err)
	assert.Equal(t, model.IntentInfoRequest, result.Intent)
}

func TestClassifyByKeywords(t *testing.T) {
	tests := []struct {
		text string
		want model.Intent
	}{
		{"PARE de me mandar mensagem", model.IntentStopBot},
		{"não tenho interesse, obrigado", model.IntentStopBot},
		{"quero agendar uma visita amanhã", model.IntentScheduleVisit},
		{"posso visitar o imóvel?", model.IntentScheduleVisit},
		{"qual o valor?", model.IntentInfoRequest},
		{"me manda as fotos", model.IntentInfoRequest},
		{"bom dia", model.IntentNone},
		// stop wins over schedule when both match
		{"pare, não quero visitar nada", model.IntentStopBot},
	}

	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			got := classifyByKeywords(tc.text)
			assert.Equal(t, tc.want, got.Intent)
			assert.Empty(t, got.ExtractedDate)
		})
	}
}

func TestFallbackMarketingCopy_EmptyDossier(t *testing.T) {
	assert.Equal(t, fallbackOpener, fallbackMarketingCopy(model.PropertyDossier{}))
}

func TestClient_GenerateOwnerUpdate_Fallback(t *testing.T) {
	logger.Log = zaptest.NewLogger(t).Named("test")
	client := NewClient("")

	text, err := client.GenerateOwnerUpdate(context.Background(), model.PropertyDossier{
		OwnerName: "Dona Maria",
		Title:     "Casa na Praia",
	})
	require.NoError(t, err)
	assert.Contains(t, text, "Dona Maria")
	assert.Contains(t, text, "Casa na Praia")
}
