package services

import (
	"context"
	"errors"

	"github.com/diewo77/docbatch/internal/apperr"
	"github.com/diewo77/docbatch/internal/gate"
	"github.com/diewo77/docbatch/internal/models"
	"gorm.io/gorm"
)

// ActorCache drops cached actors after their record changes.
type ActorCache interface {
	Invalidate(id string)
}

// UserDirectory resolves actors from the users table.
type UserDirectory struct {
	DB    *gorm.DB
	Gate  *gate.Gate[*gate.Actor]
	Cache ActorCache
}

func NewUserDirectory(db *gorm.DB) *UserDirectory {
	return &UserDirectory{DB: db, Gate: gate.Default()}
}

// Resolve implements gate.ActorResolver.
func (d *UserDirectory) Resolve(ctx context.Context, id string) (*gate.Actor, error) {
	var u models.User
	err := d.DB.WithContext(ctx).First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, gate.ErrUnknownActor
	}
	if err != nil {
		return nil, err
	}
	return &gate.Actor{ID: u.ID, Name: u.Name, Role: u.Role}, nil
}

// SetRole changes a user's role and evicts the user from Cache so the next
// authorization sees the new role.
func (d *UserDirectory) SetRole(ctx context.Context, actor *gate.Actor, id, role string) error {
	if err := authorize(ctx, d.Gate, actor, gate.ActionUpdate, gate.ResourceUser); err != nil {
		return err
	}
	if role != gate.RoleElevated && role != gate.RoleUser {
		return apperr.Validation("Unknown role %q", role)
	}
	res := d.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("role", role)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user %q not found", id)
	}
	if d.Cache != nil {
		d.Cache.Invalidate(id)
	}
	return nil
}
