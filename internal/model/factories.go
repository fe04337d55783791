package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/datatypes"

	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/pkg/utils"
)

// init ensures gofakeit is seeded.
func init() {
	gofakeit.Seed(time.Now().UnixNano())
}

// MustJSON marshals v into datatypes.JSON for fixtures.
func MustJSON(v interface{}) datatypes.JSON {
	bytes, err := json.Marshal(v)
	if err != nil {
		panic("factory: failed to marshal JSON: " + err.Error())
	}
	return datatypes.JSON(bytes)
}

// NewContact creates a Contact with default fake data, optionally
// overridden field by field.
func NewContact(overrideDefaults ...*Contact) *Contact {
	phone := fmt.Sprintf("55%d", gofakeit.Number(11900000000, 11999999999))
	base := &Contact{
		ID:             phone + "@c.us",
		Name:           gofakeit.Name(),
		Phone:          phone,
		OwnerID:        "owner_" + gofakeit.LetterN(10),
		PipelineStage:  StageNew,
		DeliveryStatus: DeliveryPending,
		Source:         gofakeit.RandomString([]string{"manual", "import", "gateway sync"}),
		CreatedAt:      utils.Now().Add(-time.Duration(gofakeit.Number(1, 100)) * time.Hour),
		UpdatedAt:      utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.Name != "" {
			base.Name = ovr.Name
		}
		if ovr.Phone != "" {
			base.Phone = ovr.Phone
		}
		if ovr.OwnerID != "" {
			base.OwnerID = ovr.OwnerID
		}
		if ovr.PipelineStage != "" {
			base.PipelineStage = ovr.PipelineStage
		}
		if ovr.DeliveryStatus != "" {
			base.DeliveryStatus = ovr.DeliveryStatus
		}
		if ovr.LinkedCampaignID != "" {
			base.LinkedCampaignID = ovr.LinkedCampaignID
		}
		if ovr.LastMessageID != "" {
			base.LastMessageID = ovr.LastMessageID
		}
		base.AutoReplyEnabled = ovr.AutoReplyEnabled
		if ovr.LastInteraction != nil {
			base.LastInteraction = ovr.LastInteraction
		}
	}

	return base
}

// NewDossier creates a PropertyDossier with default fake data.
func NewDossier() PropertyDossier {
	return PropertyDossier{
		Title:       fmt.Sprintf("Apartamento %d quartos - %s", gofakeit.Number(1, 4), gofakeit.City()),
		Price:       fmt.Sprintf("R$ %d.000", gofakeit.Number(200, 2000)),
		Location:    gofakeit.City(),
		Details:     gofakeit.Sentence(8),
		OwnerName:   gofakeit.Name(),
		OwnerPhone:  fmt.Sprintf("55%d", gofakeit.Number(11900000000, 11999999999)),
		IsAvailable: true,
	}
}

// NewCampaign creates a Campaign with default fake data, a dossier and a
// target snapshot of the given contact ids.
func NewCampaign(ownerID string, targetIDs []string) *Campaign {
	dossier := NewDossier()
	return &Campaign{
		ID:             gofakeit.UUID(),
		OwnerID:        ownerID,
		Name:           dossier.Title,
		Dossier:        MustJSON(dossier),
		MessageBody:    gofakeit.Sentence(12),
		TargetContacts: MustJSON(targetIDs),
		Status:         CampaignDraft,
		CreatedAt:      utils.Now(),
		UpdatedAt:      utils.Now(),
	}
}

// NewInboundMessage creates a visitor-sent InboundMessage for the chat.
func NewInboundMessage(chatID string, overrideDefaults ...*InboundMessage) *InboundMessage {
	base := &InboundMessage{
		ID:        gofakeit.UUID(),
		ChatID:    chatID,
		SenderID:  chatID,
		Text:      gofakeit.Sentence(6),
		Timestamp: utils.Now().Unix(),
		FromMe:    false,
		Type:      MessageTypeText,
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.Text != "" {
			base.Text = ovr.Text
		}
		if ovr.Timestamp != 0 {
			base.Timestamp = ovr.Timestamp
		}
		if ovr.Type != "" {
			base.Type = ovr.Type
		}
		base.FromMe = ovr.FromMe
	}

	return base
}
