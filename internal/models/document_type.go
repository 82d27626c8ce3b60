package models

// DocumentType is a reusable generation recipe: one template file plus an
// ordered set of fields.
type DocumentType struct {
	Base
	Name         string  `gorm:"size:255;not null" json:"name"`
	TemplatePath string  `gorm:"size:1024;not null" json:"template_path"`
	CategoryID   *string `gorm:"size:36;index" json:"category_id,omitempty"`
	IsDeleted    bool    `gorm:"not null;default:false;index" json:"is_deleted"`

	Fields []FieldDefinition `gorm:"foreignKey:DocumentTypeID" json:"fields,omitempty"`
}

// FieldDefinition describes one input of a document type and, through
// Placeholder, which template token it fills.
type FieldDefinition struct {
	Base
	DocumentTypeID string `gorm:"size:36;not null;uniqueIndex:idx_field_key;uniqueIndex:idx_field_placeholder" json:"document_type_id"`
	Label          string `gorm:"size:255;not null" json:"label"`
	Key            string `gorm:"column:field_key;size:100;not null;uniqueIndex:idx_field_key" json:"field_key"`
	DataType       string `gorm:"size:20;not null;default:'text'" json:"data_type"`
	Required       bool   `gorm:"not null;default:false" json:"required"`
	// Placeholder is the template token without braces. Nil means the field
	// is collected but not rendered.
	Placeholder *string `gorm:"size:255;uniqueIndex:idx_field_placeholder" json:"placeholder,omitempty"`
	// FormatRule is stored verbatim; decoding failures are tolerated.
	FormatRule string `gorm:"type:text" json:"format_rule,omitempty"`
	Position   int    `gorm:"not null;default:0" json:"position"`
}
