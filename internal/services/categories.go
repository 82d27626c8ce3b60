package services

import (
	"context"
	"strings"

	"github.com/diewo77/docbatch/internal/apperr"
	"github.com/diewo77/docbatch/internal/models"
	"gorm.io/gorm"
)

// CategoryChecker validates category references.
type CategoryChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// CategoryRegistry stores categories in the categories table.
type CategoryRegistry struct{ DB *gorm.DB }

func NewCategoryRegistry(db *gorm.DB) *CategoryRegistry { return &CategoryRegistry{DB: db} }

func (r *CategoryRegistry) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.Category{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create adds a category, optionally below parentID.
func (r *CategoryRegistry) Create(ctx context.Context, name string, parentID *string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("Category name is required")
	}
	if parentID != nil {
		ok, err := r.Exists(ctx, *parentID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.NotFound("category %q not found", *parentID)
		}
	}
	c := models.Category{Name: name, ParentID: parentID}
	if err := r.DB.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// checkCategory returns a VALIDATION error when id is set but unknown.
func checkCategory(ctx context.Context, c CategoryChecker, id *string) error {
	if id == nil || *id == "" || c == nil {
		return nil
	}
	ok, err := c.Exists(ctx, *id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Validation("Unknown category %q", *id)
	}
	return nil
}
