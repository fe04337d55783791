package model

import (
	"time"

	"gorm.io/gorm/schema"
)

// Pipeline stages, in funnel order. The dispatcher only ever advances a
// contact forward; a later stage is never reverted by a send.
const (
	StageNew        = "new"
	StageContacted  = "contacted"
	StageInterested = "interested"
	StageScheduled  = "scheduled"
	StageClosed     = "closed"
)

// Delivery statuses for the last outbound attempt to a contact.
const (
	DeliveryPending = "pending"
	DeliverySent    = "sent"
	DeliveryFailed  = "failed"
	DeliveryVisited = "visited"
)

var stageRank = map[string]int{
	StageNew:        0,
	StageContacted:  1,
	StageInterested: 2,
	StageScheduled:  3,
	StageClosed:     4,
}

// StageRank returns the funnel position of a pipeline stage. Unknown
// stages rank lowest so they can always be advanced.
func StageRank(stage string) int {
	return stageRank[stage]
}

// Contact represents a messaging target in the PostgreSQL database.
// The ID is the gateway chat identifier derived from the phone number
// (e.g. "5511999999999@c.us").
type Contact struct {
	ID               string     `json:"id" gorm:"primaryKey;type:text" validate:"required"`
	Name             string     `json:"name" gorm:"type:text"`
	Phone            string     `json:"phone" gorm:"type:text" validate:"required"`
	OwnerID          string     `json:"owner_id" gorm:"column:owner_id;index;type:text" validate:"required"`
	PipelineStage    string     `json:"pipeline_stage,omitempty" gorm:"type:text;default:new"`
	DeliveryStatus   string     `json:"delivery_status,omitempty" gorm:"type:text;default:pending"`
	AutoReplyEnabled bool       `json:"auto_reply_enabled" gorm:"column:auto_reply_enabled"`
	LinkedCampaignID string     `json:"linked_campaign_id,omitempty" gorm:"column:linked_campaign_id;type:text"`
	LastMessageID    string     `json:"last_message_id,omitempty" gorm:"column:last_message_id;type:text"` // last inbound message the bot acted on
	LastInteraction  *time.Time `json:"last_interaction,omitempty"`
	Source           string     `json:"source,omitempty" gorm:"type:text"` // manual, import, gateway sync
	CreatedAt        time.Time  `json:"created_at,omitempty" gorm:"autoCreateTime"`
	UpdatedAt        time.Time  `json:"updated_at,omitempty" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the Contact model, respecting the Namer.
func (Contact) TableName(namer schema.Namer) string {
	return namer.TableName("contacts")
}

// ContactUpdateColumns returns the column names that are allowed to be
// updated during an upsert. Excludes the primary key, owner_id and
// created_at.
func ContactUpdateColumns() []string {
	return []string{
		"name",
		"phone",
		"pipeline_stage",
		"delivery_status",
		"auto_reply_enabled",
		"linked_campaign_id",
		"last_message_id",
		"last_interaction",
		"source",
		"updated_at",
	}
}

// Pollable reports whether the autonomous poller may process this
// contact: auto-reply must be on AND a campaign must be linked, since
// the bot cannot negotiate without a dossier for context.
func (c *Contact) Pollable() bool {
	return c.AutoReplyEnabled && c.LinkedCampaignID != ""
}

// AdvanceStage moves the contact to the given stage only if it is
// further along the funnel than the current one.
func (c *Contact) AdvanceStage(stage string) {
	if StageRank(stage) > StageRank(c.PipelineStage) {
		c.PipelineStage = stage
	}
}
