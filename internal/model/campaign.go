package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm/schema"
)

// Campaign statuses.
const (
	CampaignDraft     = "draft"
	CampaignRunning   = "running"
	CampaignCompleted = "completed"
	CampaignArchived  = "archived"
)

// PropertyDossier is the structured business context attached to a
// campaign. It grounds the generated marketing copy and the bot's
// negotiation replies.
type PropertyDossier struct {
	Title       string `json:"title"`
	Price       string `json:"price"`
	Location    string `json:"location"`
	Details     string `json:"details"`
	OwnerName   string `json:"owner_name,omitempty"`
	OwnerPhone  string `json:"owner_phone,omitempty"`
	IsAvailable bool   `json:"is_available"`
}

// Empty reports whether the dossier carries no usable context.
func (d PropertyDossier) Empty() bool {
	return d.Title == "" && d.Details == "" && d.Location == ""
}

// Attachment is a media reference included with a campaign send.
// Only the first attachment of a campaign is actually transmitted.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Kind string `json:"kind"` // image or document
}

// Campaign represents one bulk-send with its payload and target snapshot.
type Campaign struct {
	ID             string         `json:"id" gorm:"primaryKey;type:text" validate:"required"`
	OwnerID        string         `json:"owner_id" gorm:"column:owner_id;index;type:text" validate:"required"`
	Name           string         `json:"name" gorm:"type:text"`
	Dossier        datatypes.JSON `json:"dossier,omitempty" gorm:"type:jsonb"`
	MessageBody    string         `json:"message_body" gorm:"type:text"`
	Attachments    datatypes.JSON `json:"attachments,omitempty" gorm:"type:jsonb"`
	TargetContacts datatypes.JSON `json:"target_contacts,omitempty" gorm:"column:target_contacts;type:jsonb"` // snapshot of contact ids, fixed at launch
	Status         string         `json:"status" gorm:"type:text;default:draft"`
	Progress       int            `json:"progress" gorm:"default:0"`
	CreatedAt      time.Time      `json:"created_at,omitempty" gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `json:"updated_at,omitempty" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the Campaign model, respecting the Namer.
func (Campaign) TableName(namer schema.Namer) string {
	return namer.TableName("campaigns")
}

// CampaignUpdateColumns returns the column names that are allowed to be
// updated during an upsert. Excludes the primary key, owner_id and
// created_at.
func CampaignUpdateColumns() []string {
	return []string{
		"name",
		"dossier",
		"message_body",
		"attachments",
		"target_contacts",
		"status",
		"progress",
		"updated_at",
	}
}

// DecodeDossier unmarshals the stored dossier. A missing dossier decodes
// to the zero value, which reports Empty.
func (c *Campaign) DecodeDossier() (PropertyDossier, error) {
	var d PropertyDossier
	if len(c.Dossier) == 0 {
		return d, nil
	}
	err := json.Unmarshal(c.Dossier, &d)
	return d, err
}

// DecodeAttachments unmarshals the stored attachment list.
func (c *Campaign) DecodeAttachments() ([]Attachment, error) {
	if len(c.Attachments) == 0 {
		return nil, nil
	}
	var list []Attachment
	err := json.Unmarshal(c.Attachments, &list)
	return list, err
}

// DecodeTargets unmarshals the snapshot of target contact ids.
func (c *Campaign) DecodeTargets() ([]string, error) {
	if len(c.TargetContacts) == 0 {
		return nil, nil
	}
	var ids []string
	err := json.Unmarshal(c.TargetContacts, &ids)
	return ids, err
}
