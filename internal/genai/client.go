package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/apperrors"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/model"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/pkg/logger"
)

// DefaultBaseURL is the public Gemini REST endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// DefaultModel is the generation model used for all prompts.
const DefaultModel = "gemini-2.5-flash"

const (
	defaultRequestTimeout = 60 * time.Second
	maxGenerateRetries    = 3
	retryInitialInterval  = 2 * time.Second
)

// Client calls the Gemini generateContent API. A Client built without
// an API key is still usable: every method serves its static fallback.
type Client struct {
	baseURL    string
	apiKey     string
	modelName  string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client. Used by tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the API base URL. Used by tests.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithModel overrides the generation model.
func WithModel(name string) Option {
	return func(c *Client) { c.modelName = name }
}

// NewClient creates a Gemini client. An empty apiKey is allowed and
// puts the client in fallback-only mode.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		modelName:  DefaultModel,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (r generateResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return strings.TrimSpace(sb.String())
}

// generate runs one prompt through the model with retry on throttling
// and overload responses.
func (c *Client) generate(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	return c.generateWithInterval(ctx, prompt, jsonMode, retryInitialInterval)
}

func (c *Client) generateWithInterval(ctx context.Context, prompt string, jsonMode bool, interval time.Duration) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("%w: generative model API key missing", apperrors.ErrUnconfigured)
	}

	reqBody := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	}
	if jsonMode {
		reqBody.GenerationConfig = &generationConfig{ResponseMimeType: "application/json"}
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: failed to marshal generate payload: %w", apperrors.ErrBadRequest, err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.modelName, c.apiKey)

	operation := func() (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", backoff.Permanent(fmt.Errorf("failed to build generate request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("generate request failed: %w", err)
		}
		defer resp.Body.Close()

		// 429 and 503 indicate a busy model and are worth retrying.
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
			return "", fmt.Errorf("%w: model busy, status %d", apperrors.ErrRateLimited, resp.StatusCode)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return "", backoff.Permanent(fmt.Errorf("generate returned status %d", resp.StatusCode))
		}

		var decoded generateResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return "", backoff.Permanent(fmt.Errorf("failed to decode generate response: %w", err))
		}
		text := decoded.text()
		if text == "" {
			return "", backoff.Permanent(fmt.Errorf("generate returned no candidates"))
		}
		return text, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = interval
	b.Multiplier = 2
	b.MaxElapsedTime = 0

	notify := func(err error, d time.Duration) {
		logger.FromContext(ctx).Warn("Generative model busy, retrying",
			zap.Error(err),
			zap.Duration("after", d),
		)
	}

	text, err := backoff.RetryNotifyWithData(operation,
		backoff.WithContext(backoff.WithMaxRetries(b, maxGenerateRetries), ctx),
		notify,
	)
	if err != nil {
		return "", err
	}
	return text, nil
}

// GenerateMarketingCopy writes the cold-outreach opener for a dossier.
func (c *Client) GenerateMarketingCopy(ctx context.Context, dossier model.PropertyDossier) (string, error) {
	if !c.Configured() {
		return fallbackMarketingCopy(dossier), nil
	}

	prompt := fmt.Sprintf(`Atue como um Corretor de Elite.
Escreva uma mensagem de WhatsApp (máx 300 caracteres) para um lead frio.

IMÓVEL: %s
LOCAL: %s
PREÇO: %s
DETALHES: %s

Técnica: AIDA (Atenção, Interesse, Desejo, Ação).
NÃO coloque "Olá nome". Comece direto com uma pergunta ou afirmação impactante sobre o imóvel.
Use gatilhos de exclusividade.
Finalize com uma pergunta fechada (ex: "Posso te mandar as fotos?").`,
		dossier.Title, dossier.Location, dossier.Price, dossier.Details)

	text, err := c.generate(ctx, prompt, false)
	if err != nil {
		logger.FromContext(ctx).Warn("Marketing copy generation failed, using fallback", zap.Error(err))
		return fallbackOpener, nil
	}
	return text, nil
}

// GenerateReply writes the next negotiation turn.
func (c *Client) GenerateReply(ctx context.Context, turns []model.ChatTurn, dossier model.PropertyDossier) (string, error) {
	if !c.Configured() {
		return fallbackReply, nil
	}
	if len(turns) == 0 {
		return fallbackReply, nil
	}

	var historyLines []string
	for _, turn := range turns {
		speaker := "CLIENTE"
		if turn.Role == "model" {
			speaker = "VOCÊ"
		}
		historyLines = append(historyLines, fmt.Sprintf("%s: %s", speaker, turn.Text))
	}
	lastMessage := turns[len(turns)-1].Text

	prompt := fmt.Sprintf(`IDENTIDADE: Você é um Corretor de Imóveis Sênior, especialista em negociação de alto padrão.
OBJETIVO: Agendar uma visita. Não venda o imóvel pelo chat, venda a VISITA.

DADOS DO IMÓVEL (DOSSIÊ):
- Título: %s
- Preço: %s
- Local: %s
- Detalhes: %s

TÉCNICAS OBRIGATÓRIAS:
1. SPIN SELLING: Se o cliente der abertura, faça perguntas de situação ("Hoje você mora de aluguel ou próprio?").
2. ANCORAGEM: Se perguntarem o preço, fale 2 qualidades do imóvel ANTES de falar o valor.
3. DOUBLE BIND (Duplo Vínculo): Nunca pergunte "quer visitar?". Pergunte "Prefere visitar terça pela manhã ou quinta à tarde?".
4. ESCASSEZ: Sutilmente mencione que a agenda de visitas está cheia.

HISTÓRICO DA CONVERSA:
%s

CLIENTE DISSE POR ÚLTIMO: "%s"

Responda como o Corretor (curto, direto, estilo WhatsApp, use emojis moderados).`,
		dossier.Title, dossier.Price, dossier.Location, dossier.Details,
		strings.Join(historyLines, "\n"), lastMessage)

	text, err := c.generate(ctx, prompt, false)
	if err != nil {
		logger.FromContext(ctx).Warn("Reply generation failed, using fallback", zap.Error(err))
		return fallbackReply, nil
	}
	return text, nil
}

type intentResponse struct {
	Intent        string `json:"intent"`
	ExtractedDate string `json:"extractedDate"`
}

// ClassifyIntent categorizes a visitor's message. On any model failure
// the deterministic keyword classifier answers instead.
func (c *Client) ClassifyIntent(ctx context.Context, text string) (model.IntentResult, error) {
	if !c.Configured() {
		return classifyByKeywords(text), nil
	}

	prompt := fmt.Sprintf(`Analise a mensagem de um cliente interessado em um imóvel.
Mensagem: "%s"

Classifique a intenção em exatamente uma das categorias:
- STOP_BOT (pediu para parar de receber mensagens, quer falar com humano, irritado)
- SCHEDULE_VISIT (quer agendar ou marcar uma visita ao imóvel)
- INFO_REQUEST (pergunta sobre preço, fotos, detalhes ou disponibilidade)
- NONE (nenhuma das anteriores)

Se a intenção for SCHEDULE_VISIT e a mensagem citar dia ou horário, extraia a expressão de data como texto.

Retorne JSON: { "intent": "...", "extractedDate": "..." }`, text)

	raw, err := c.generate(ctx, prompt, true)
	if err != nil {
		logger.FromContext(ctx).Warn("Intent classification failed, using keyword fallback", zap.Error(err))
		return classifyByKeywords(text), nil
	}

	var decoded intentResponse
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		logger.FromContext(ctx).Warn("Intent classification returned invalid JSON, using keyword fallback", zap.Error(err))
		return classifyByKeywords(text), nil
	}

	switch model.Intent(decoded.Intent) {
	case model.IntentStopBot, model.IntentScheduleVisit, model.IntentInfoRequest, model.IntentNone:
		return model.IntentResult{
			Intent:        model.Intent(decoded.Intent),
			ExtractedDate: decoded.ExtractedDate,
		}, nil
	default:
		logger.FromContext(ctx).Warn("Intent classification returned unknown category, using keyword fallback",
			zap.String("intent", decoded.Intent))
		return classifyByKeywords(text), nil
	}
}

// GenerateOwnerUpdate writes the monthly availability check-in for the
// property owner named in the dossier.
func (c *Client) GenerateOwnerUpdate(ctx context.Context, dossier model.PropertyDossier) (string, error) {
	if !c.Configured() {
		return fallbackOwnerUpdate(dossier), nil
	}

	prompt := fmt.Sprintf(`Escreva uma mensagem de WhatsApp educada e profissional para o proprietário de um imóvel.
Nome do Proprietário: %s
Imóvel: %s

Objetivo: Atualização Mensal de Portfólio.
Pergunte:
1. Se o imóvel ainda está disponível para venda.
2. Se houve alteração no valor (Valor atual cadastrado: %s).
3. Informe que estamos trabalhando forte na divulgação este mês.

Tom: Parceiro, profissional, confiante. Curto.`,
		dossier.OwnerName, dossier.Title, dossier.Price)

	text, err := c.generate(ctx, prompt, false)
	if err != nil {
		logger.FromContext(ctx).Warn("Owner update generation failed, using fallback", zap.Error(err))
		return fallbackOwnerPing, nil
	}
	return text, nil
}

var _ Generator = (*Client)(nil)
