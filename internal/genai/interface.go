package genai

import (
	"context"

	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/model"
)

// Generator produces marketing copy, negotiation replies and intent
// classifications. Implementations degrade gracefully: when the model
// is unreachable or unconfigured they return a deterministic fallback
// instead of an error, so outreach never stalls on the AI layer.
type Generator interface {
	// GenerateMarketingCopy writes the cold-outreach opener for a
	// campaign dossier.
	GenerateMarketingCopy(ctx context.Context, dossier model.PropertyDossier) (string, error)
	// GenerateReply writes the next negotiation turn given the chat
	// history and the campaign dossier.
	GenerateReply(ctx context.Context, turns []model.ChatTurn, dossier model.PropertyDossier) (string, error)
	// ClassifyIntent categorizes a visitor's message, extracting a raw
	// date phrase for scheduling intents.
	ClassifyIntent(ctx context.Context, text string) (model.IntentResult, error)
}
