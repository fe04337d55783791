package model

// Inbound message types as reported by the gateway.
const (
	MessageTypeText     = "text"
	MessageTypeImage    = "image"
	MessageTypeDocument = "document"
	MessageTypeAudio    = "audio"
)

// InboundMessage is one entry of a chat history fetched from the
// messaging gateway. It is read-only input for the poller and is never
// persisted by this service.
type InboundMessage struct {
	ID        string `json:"id"`
	ChatID    string `json:"chat_id"`
	SenderID  string `json:"sender_id"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
	FromMe    bool   `json:"from_me"`
	Type      string `json:"type"`
}

// Intent categories produced by classifying a visitor's latest message.
// Exactly one applies per message; when several plausibly match, the
// priority is StopBot > ScheduleVisit > InfoRequest > None.
type Intent string

const (
	IntentScheduleVisit Intent = "SCHEDULE_VISIT"
	IntentStopBot       Intent = "STOP_BOT"
	IntentInfoRequest   Intent = "INFO_REQUEST"
	IntentNone          Intent = "NONE"
)

// IntentResult is the outcome of intent classification. ExtractedDate is
// the raw date/time phrase pulled from the message when the intent is
// SCHEDULE_VISIT; it may be empty when no phrase was recognizable.
type IntentResult struct {
	Intent        Intent `json:"intent"`
	ExtractedDate string `json:"extracted_date,omitempty"`
}

// ChatTurn is one conversation turn passed to the reply generator.
type ChatTurn struct {
	Role string `json:"role"` // "user" (visitor) or "model" (bot)
	Text string `json:"text"`
}

// HistoryToTurns converts gateway history into generator turns, mapping
// the bot's own messages to the model role.
func HistoryToTurns(history []InboundMessage) []ChatTurn {
	turns := make([]ChatTurn, 0, len(history))
	for _, m := range history {
		role := "user"
		if m.FromMe {
			role = "model"
		}
		turns = append(turns, ChatTurn{Role: role, Text: m.Text})
	}
	return turns
}
