// Package models holds the gorm models persisted by the generation pipeline.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base carries the string primary key and timestamps shared by every model.
type Base struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID when the caller did not choose an id.
func (b *Base) BeforeCreate(_ *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{
		&User{},
		&Category{},
		&DocumentType{},
		&FieldDefinition{},
		&EntityTypeSchema{},
		&AttributeDefinition{},
		&Entity{},
		&AttributeValue{},
		&GeneratedDocument{},
		&ActivityLog{},
	}
}
