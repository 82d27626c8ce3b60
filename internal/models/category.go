package models

// Category groups document types and entities. Only its id is used by the
// pipeline.
type Category struct {
	Base
	Name     string  `gorm:"size:255;not null" json:"name"`
	ParentID *string `gorm:"size:36;index" json:"parent_id,omitempty"`
}
