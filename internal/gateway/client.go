package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/apperrors"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/model"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/pkg/logger"
)

// DefaultBaseURL is the public Green API endpoint.
const DefaultBaseURL = "https://api.green-api.com"

const defaultRequestTimeout = 30 * time.Second

// stateAuthorized is the only instance state that permits sending.
const stateAuthorized = "authorized"

// Client is a Green API WhatsApp gateway client. Requests follow the
// instance URL scheme: {base}/waInstance{id}/{method}/{token}.
type Client struct {
	baseURL    string
	instanceID string
	apiToken   string
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

// NewClient creates a gateway client. Both the instance ID and token
// are required; without them every call would fail at the transport, so
// the constructor rejects the configuration up front.
func NewClient(instanceID, apiToken string, opts ...Option) (*Client, error) {
	if instanceID == "" || apiToken == "" {
		return nil, fmt.Errorf("%w: gateway instance ID and API token are required", apperrors.ErrUnconfigured)
	}

	c := &Client{
		baseURL:    DefaultBaseURL,
		instanceID: instanceID,
		apiToken:   apiToken,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) endpoint(method string) string {
	return fmt.Sprintf("%s/waInstance%s/%s/%s", c.baseURL, c.instanceID, method, c.apiToken)
}

// doPost executes a JSON POST against one API method and decodes the
// response into out when it is non-nil.
func (c *Client) doPost(ctx context.Context, method string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal %s payload: %w", apperrors.ErrBadRequest, method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(method), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: failed to build %s request: %w", apperrors.ErrGateway, method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.NewRetryable(fmt.Errorf("%w: %w", apperrors.ErrGateway, err), "%s request failed", method)
	}
	defer resp.Body.Close()

	if err := checkStatus(method, resp); err != nil {
		return err
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode %s response: %w", apperrors.ErrGateway, method, err)
	}
	return nil
}

func (c *Client) doGet(ctx context.Context, method string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(method), nil)
	if err != nil {
		return fmt.Errorf("%w: failed to build %s request: %w", apperrors.ErrGateway, method, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.NewRetryable(fmt.Errorf("%w: %w", apperrors.ErrGateway, err), "%s request failed", method)
	}
	defer resp.Body.Close()

	if err := checkStatus(method, resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode %s response: %w", apperrors.ErrGateway, method, err)
	}
	return nil
}

func checkStatus(method string, resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s returned status %d", apperrors.ErrUnauthorized, method, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return apperrors.NewRetryable(apperrors.ErrRateLimited, "%s throttled by gateway", method)
	case resp.StatusCode >= 500:
		return apperrors.NewRetryable(fmt.Errorf("%w: %s returned status %d", apperrors.ErrGateway, method, resp.StatusCode), "gateway server error")
	default:
		return fmt.Errorf("%w: %s returned status %d", apperrors.ErrGateway, method, resp.StatusCode)
	}
}

type sendMessageRequest struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

type sendFileRequest struct {
	ChatID   string `json:"chatId"`
	URLFile  string `json:"urlFile"`
	FileName string `json:"fileName"`
	Caption  string `json:"caption,omitempty"`
}

type sendResponse struct {
	IDMessage string `json:"idMessage"`
}

// SendMessage sends a plain text message to the chat.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) (*SendResult, error) {
	if chatID == "" {
		return nil, fmt.Errorf("%w: chatID is required", apperrors.ErrBadRequest)
	}

	var resp sendResponse
	err := c.doPost(ctx, "sendMessage", sendMessageRequest{ChatID: chatID, Message: text}, &resp)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Debug("Gateway message sent",
		zap.String("chat_id", chatID),
		zap.String("message_id", resp.IDMessage),
	)
	return &SendResult{MessageID: resp.IDMessage}, nil
}

// SendFileByURL sends a media attachment by public URL.
func (c *Client) SendFileByURL(ctx context.Context, chatID, fileURL, fileName, caption string) (*SendResult, error) {
	if chatID == "" || fileURL == "" {
		return nil, fmt.Errorf("%w: chatID and fileURL are required", apperrors.ErrBadRequest)
	}

	var resp sendResponse
	err := c.doPost(ctx, "sendFileByUrl", sendFileRequest{
		ChatID:   chatID,
		URLFile:  fileURL,
		FileName: fileName,
		Caption:  caption,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &SendResult{MessageID: resp.IDMessage}, nil
}

type chatHistoryRequest struct {
	ChatID string `json:"chatId"`
	Count  int    `json:"count"`
}

type chatHistoryEntry struct {
	IDMessage           string `json:"idMessage"`
	Type                string `json:"type"` // incoming or outgoing
	Timestamp           int64  `json:"timestamp"`
	ChatID              string `json:"chatId"`
	SenderID            string `json:"senderId"`
	TypeMessage         string `json:"typeMessage"`
	TextMessage         string `json:"textMessage"`
	Caption             string `json:"caption"`
	ExtendedTextMessage struct {
		Text string `json:"text"`
	} `json:"extendedTextMessage"`
}

func (e chatHistoryEntry) text() string {
	if e.TextMessage != "" {
		return e.TextMessage
	}
	if e.ExtendedTextMessage.Text != "" {
		return e.ExtendedTextMessage.Text
	}
	return e.Caption
}

func (e chatHistoryEntry) messageType() string {
	switch e.TypeMessage {
	case "imageMessage":
		return model.MessageTypeImage
	case "documentMessage":
		return model.MessageTypeDocument
	case "audioMessage":
		return model.MessageTypeAudio
	default:
		return model.MessageTypeText
	}
}

// FetchRecentHistory returns up to limit messages of the chat in
// chronological order, oldest first. The API reports newest first, so
// entries are reversed here.
func (c *Client) FetchRecentHistory(ctx context.Context, chatID string, limit int) ([]model.InboundMessage, error) {
	if chatID == "" {
		return nil, fmt.Errorf("%w: chatID is required", apperrors.ErrBadRequest)
	}
	if limit <= 0 {
		limit = 20
	}

	var entries []chatHistoryEntry
	err := c.doPost(ctx, "getChatHistory", chatHistoryRequest{ChatID: chatID, Count: limit}, &entries)
	if err != nil {
		return nil, err
	}

	history := make([]model.InboundMessage, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		history = append(history, model.InboundMessage{
			ID:        e.IDMessage,
			ChatID:    chatID,
			SenderID:  e.SenderID,
			Text:      e.text(),
			Timestamp: e.Timestamp,
			FromMe:    e.Type == "outgoing",
			Type:      e.messageType(),
		})
	}
	return history, nil
}

type stateInstanceResponse struct {
	StateInstance string `json:"stateInstance"`
}

// CheckConnectionHealth reports whether the instance is authorized.
func (c *Client) CheckConnectionHealth(ctx context.Context) (*Health, error) {
	var resp stateInstanceResponse
	if err := c.doGet(ctx, "getStateInstance", &resp); err != nil {
		return nil, err
	}
	return &Health{
		State:      resp.StateInstance,
		Authorized: resp.StateInstance == stateAuthorized,
	}, nil
}

var _ Gateway = (*Client)(nil)
