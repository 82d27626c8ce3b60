package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// GeneratedDocument records one completed generation and owns its output
// file.
type GeneratedDocument struct {
	Base
	DocumentTypeID string    `gorm:"size:36;not null;index" json:"document_type_id"`
	ActorID        string    `gorm:"size:36;not null" json:"actor_id"`
	EntityID       *string   `gorm:"size:36;index" json:"entity_id,omitempty"`
	FilePath       string    `gorm:"size:2048;not null" json:"file_path"`
	GeneratedAt    time.Time `gorm:"not null;index" json:"generated_at"`
	// InputValues is a flat JSON object of field key to resolved value,
	// captured before formatting.
	InputValues datatypes.JSON `json:"input_values"`
}

// Values decodes InputValues.
func (g *GeneratedDocument) Values() (map[string]string, error) {
	out := map[string]string{}
	if len(g.InputValues) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(g.InputValues, &out); err != nil {
		return nil, fmt.Errorf("decode input values of %s: %w", g.ID, err)
	}
	return out, nil
}

// ActivityLog is one audit event.
type ActivityLog struct {
	Base
	ActorID    string         `gorm:"size:36;index" json:"actor_id"`
	ActionType string         `gorm:"size:50;not null;index" json:"action_type"`
	EntityType string         `gorm:"size:50" json:"entity_type"`
	EntityID   *string        `gorm:"size:36" json:"entity_id,omitempty"`
	Metadata   datatypes.JSON `json:"metadata,omitempty"`
}
