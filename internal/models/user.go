package models

// User is an operator known to the system. Role "ADMIN" is elevated.
type User struct {
	Base
	Name string `gorm:"size:255" json:"name"`
	Role string `gorm:"size:20;not null;default:'USER'" json:"role"`
}
