package models

// EntityTypeSchema is a user-defined client type owning a set of attribute
// definitions.
type EntityTypeSchema struct {
	Base
	Name string `gorm:"size:255;not null" json:"name"`
	// NameKey is the lower-cased name, unique across schemas.
	NameKey string `gorm:"size:255;not null;uniqueIndex" json:"-"`

	Attributes []AttributeDefinition `gorm:"foreignKey:SchemaID" json:"attributes,omitempty"`
}

// AttributeDefinition is one dynamic attribute of a schema. Key is immutable
// and stays reserved after a soft delete.
type AttributeDefinition struct {
	Base
	SchemaID  string `gorm:"size:36;not null;uniqueIndex:idx_attr_schema_key" json:"schema_id"`
	Label     string `gorm:"size:255;not null" json:"label"`
	Key       string `gorm:"column:attr_key;size:100;not null;uniqueIndex:idx_attr_schema_key" json:"key"`
	DataType  string `gorm:"size:20;not null;default:'text'" json:"data_type"`
	Required  bool   `gorm:"not null;default:false" json:"required"`
	IsDeleted bool   `gorm:"not null;default:false;index" json:"is_deleted"`
}

// Entity is a client whose attributes live in AttributeValue rows.
type Entity struct {
	Base
	Name       string  `gorm:"size:255;not null" json:"name"`
	SchemaID   string  `gorm:"size:36;not null;index" json:"schema_id"`
	CategoryID *string `gorm:"size:36;index" json:"category_id,omitempty"`
	IsDeleted  bool    `gorm:"not null;default:false;index" json:"is_deleted"`

	Values []AttributeValue `gorm:"foreignKey:EntityID" json:"values,omitempty"`
}

// AttributeValue holds one trimmed, non-empty value of an entity.
type AttributeValue struct {
	Base
	EntityID    string `gorm:"size:36;not null;uniqueIndex:idx_value_entity_attr" json:"entity_id"`
	AttributeID string `gorm:"size:36;not null;uniqueIndex:idx_value_entity_attr;index" json:"attribute_id"`
	Value       string `gorm:"type:text;not null" json:"value"`
}
