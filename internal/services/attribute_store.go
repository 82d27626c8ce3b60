package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/diewo77/docbatch/internal/activity"
	"github.com/diewo77/docbatch/internal/apperr"
	"github.com/diewo77/docbatch/internal/format"
	"github.com/diewo77/docbatch/internal/gate"
	"github.com/diewo77/docbatch/internal/models"
	"github.com/diewo77/docbatch/internal/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AttributeInput describes a new attribute definition.
type AttributeInput struct {
	Label    string
	Key      string
	DataType string
	Required bool
}

// EntityInput describes a new entity. Values are keyed by attribute key.
type EntityInput struct {
	Name       string
	SchemaID   string
	CategoryID *string
	Values     map[string]string
}

// EntityUpdate is a partial update. Nil fields are left unchanged; an empty
// CategoryID clears the category. A blank value removes the stored value.
type EntityUpdate struct {
	Name       *string
	CategoryID *string
	Values     map[string]string
}

// EntityView is an entity with its attribute values keyed by attribute key.
type EntityView struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	SchemaID   string            `json:"schema_id"`
	CategoryID *string           `json:"category_id,omitempty"`
	Attributes map[string]string `json:"attributes"`
}

// AttributeStore manages client types, their dynamic attributes and the
// clients holding values for them.
//
// Entity writes are serialised by writeMu so the duplicate check and the
// insert that follows it cannot interleave within the process.
type AttributeStore struct {
	DB         *gorm.DB
	Gate       *gate.Gate[*gate.Actor]
	Categories CategoryChecker
	Notifier   activity.Notifier
	Log        *zap.Logger

	uniqueKeys map[string]bool
	writeMu    sync.Mutex
}

// NewAttributeStore builds a store enforcing uniqueness for uniqueKeys.
func NewAttributeStore(db *gorm.DB, uniqueKeys []string) *AttributeStore {
	keys := make(map[string]bool, len(uniqueKeys))
	for _, k := range uniqueKeys {
		keys[strings.ToLower(strings.TrimSpace(k))] = true
	}
	return &AttributeStore{
		DB:         db,
		Gate:       gate.Default(),
		Categories: NewCategoryRegistry(db),
		Notifier:   activity.NopNotifier{},
		Log:        zap.NewNop(),
		uniqueKeys: keys,
	}
}

// IsUniqueKey reports whether values of key must be unique per schema.
func (s *AttributeStore) IsUniqueKey(key string) bool { return s.uniqueKeys[key] }

// CreateEntityTypeSchema adds a client type. Names are unique ignoring case.
func (s *AttributeStore) CreateEntityTypeSchema(ctx context.Context, actor *gate.Actor, name string) (*models.EntityTypeSchema, error) {
	if err := authorize(ctx, s.Gate, actor, gate.ActionCreate, gate.ResourceEntityType); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("Client type name is required")
	}
	nameKey := strings.ToLower(name)

	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.EntityTypeSchema{}).Where("name_key = ?", nameKey).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, apperr.Duplicate("Client type %q already exists", name)
	}
	schema := models.EntityTypeSchema{Name: name, NameKey: nameKey}
	if err := s.DB.WithContext(ctx).Create(&schema).Error; err != nil {
		return nil, err
	}
	s.Notifier.Notify(ctx, activity.Event{
		ActorID: actor.ID, ActionType: activity.ClientTypeCreate,
		EntityType: "client_type", EntityID: schema.ID,
		Metadata: map[string]any{"name": name},
	})
	return &schema, nil
}

// ListEntityTypeSchemas returns every client type ordered by name.
func (s *AttributeStore) ListEntityTypeSchemas(ctx context.Context, actor *gate.Actor) ([]models.EntityTypeSchema, error) {
	if err := authorize(ctx, s.Gate, actor, gate.ActionList, gate.ResourceEntityType); err != nil {
		return nil, err
	}
	var out []models.EntityTypeSchema
	err := s.DB.WithContext(ctx).Order("name").Find(&out).Error
	return out, err
}

// GetEntityTypeSchema returns a client type with its active attributes.
func (s *AttributeStore) GetEntityTypeSchema(ctx context.Context, actor *gate.Actor, id string) (*models.EntityTypeSchema, error) {
	if err := authorize(ctx, s.Gate, actor, gate.ActionView, gate.ResourceEntityType); err != nil {
		return nil, err
	}
	var schema models.EntityTypeSchema
	err := s.DB.WithContext(ctx).
		Preload("Attributes", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_deleted = ?", false).Order("created_at")
		}).
		First(&schema, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "client type", id)
	}
	return &schema, nil
}

// AddAttributeDefinition adds an attribute to a schema. Keys stay reserved
// after the definition is soft-deleted.
func (s *AttributeStore) AddAttributeDefinition(ctx context.Context, actor *gate.Actor, schemaID string, in AttributeInput) (*models.AttributeDefinition, error) {
	if err := authorize(ctx, s.Gate, actor, gate.ActionCreate, gate.ResourceAttribute); err != nil {
		return nil, err
	}
	key := strings.TrimSpace(in.Key)
	label := strings.TrimSpace(in.Label)
	v := validation.Violations{}
	validation.Key("key", key, v)
	validation.Required("label", label, v)
	switch {
	case v["key"] != "":
		return nil, apperr.Validation("Attribute key %q must contain only lowercase letters, digits and underscores", key)
	case v["label"] != "":
		return nil, apperr.Validation("Attribute label is required")
	}
	dt, err := format.ParseDataType(in.DataType)
	if err != nil {
		return nil, apperr.Validation("Attribute %q: %v", key, err)
	}

	var def models.AttributeDefinition
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var schema models.EntityTypeSchema
		if err := tx.Select("id").First(&schema, "id = ?", schemaID).Error; err != nil {
			return notFound(err, "client type", schemaID)
		}
		var count int64
		if err := tx.Model(&models.AttributeDefinition{}).
			Where("schema_id = ? AND attr_key = ?", schemaID, key).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperr.Duplicate("Attribute key %q already exists for this client type", key)
		}
		def = models.AttributeDefinition{
			SchemaID: schemaID,
			Label:    label,
			Key:      key,
			DataType: string(dt),
			Required: in.Required,
		}
		return tx.Create(&def).Error
	})
	if err != nil {
		return nil, err
	}
	s.Notifier.Notify(ctx, activity.Event{
		ActorID: actor.ID, ActionType: activity.AttributeCreate,
		EntityType: "attribute", EntityID: def.ID,
		Metadata: map[string]any{"schema_id": schemaID, "key": key},
	})
	return &def, nil
}

// ListActiveAttributeDefinitions returns a schema's live definitions in
// creation order.
func (s *AttributeStore) ListActiveAttributeDefinitions(ctx context.Context, actor *gate.Actor, schemaID string) ([]models.AttributeDefinition, error) {
	if err := authorize(ctx, s.Gate, actor, gate.ActionList, gate.ResourceAttribute); err != nil {
		return nil, err
	}
	return activeDefinitions(s.DB.WithContext(ctx), schemaID)
}

func activeDefinitions(db *gorm.DB, schemaID string) ([]models.AttributeDefinition, error) {
	var defs []models.AttributeDefinition
	err := db.Where("schema_id = ? AND is_deleted = ?", schemaID, false).
		Order("created_at").
		Find(&defs).Error
	return defs, err
}

// RenameAttributeLabel changes a definition's label. The key never changes.
func (s *AttributeStore) RenameAttributeLabel(ctx context.Context, actor *gate.Actor, id, label string) error {
	if err := authorize(ctx, s.Gate, actor, gate.ActionUpdate, gate.ResourceAttribute); err != nil {
		return err
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return apperr.Validation("Attribute label is required")
	}
	res := s.DB.WithContext(ctx).Model(&models.AttributeDefinition{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Update("label", label)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("attribute %q not found", id)
	}
	s.Notifier.Notify(ctx, activity.Event{
		ActorID: actor.ID, ActionType: activity.AttributeUpdate,
		EntityType: "attribute", EntityID: id,
		Metadata: map[string]any{"label": label},
	})
	return nil
}

// SoftDeleteAttributeDefinition hides a definition from reads. Stored values
// referencing it are kept.
func (s *AttributeStore) SoftDeleteAttributeDefinition(ctx context.Context, actor *gate.Actor, id string) error {
	if err := authorize(ctx, s.Gate, actor, gate.ActionDelete, gate.ResourceAttribute); err != nil {
		return err
	}
	var def models.AttributeDefinition
	if err := s.DB.WithContext(ctx).First(&def, "id = ?", id).Error; err != nil {
		return notFound(err, "attribute", id)
	}
	if def.IsDeleted {
		return nil
	}
	if err := s.DB.WithContext(ctx).Model(&def).Update("is_deleted", true).Error; err != nil {
		return err
	}
	s.Notifier.Notify(ctx, activity.Event{
		ActorID: actor.ID, ActionType: activity.AttributeDelete,
		EntityType: "attribute", EntityID: id,
		Metadata: map[string]any{"key": def.Key},
	})
	return nil
}

// CreateEntity validates and stores a new client with its attribute values.
func (s *AttributeStore) CreateEntity(ctx context.Context, actor *gate.Actor, in EntityInput) (*EntityView, error) {
	if err := authorize(ctx, s.Gate, actor, gate.ActionCreate, gate.ResourceEntity); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("Client name is required")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	db := s.DB.WithContext(ctx)
	var schema models.EntityTypeSchema
	if err := db.Select("id").First(&schema, "id = ?", in.SchemaID).Error; err != nil {
		return nil, notFound(err, "client type", in.SchemaID)
	}
	if err := checkCategory(ctx, s.Categories, in.CategoryID); err != nil {
		return nil, err
	}
	defs, err := activeDefinitions(db, in.SchemaID)
	if err != nil {
		return nil, err
	}
	supplied, err := bindValues(defs, in.Values)
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		if def.Required && supplied[def.ID] == "" {
			return nil, apperr.Validation("Required field %q is missing", def.Key)
		}
	}
	if err := s.checkValues(db, in.SchemaID, "", defs, supplied); err != nil {
		return nil, err
	}

	entity := models.Entity{Name: name, SchemaID: in.SchemaID, CategoryID: nonEmpty(in.CategoryID)}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entity).Error; err != nil {
			return err
		}
		for _, def := range defs {
			v, ok := supplied[def.ID]
			if !ok || v == "" {
				continue
			}
			row := models.AttributeValue{EntityID: entity.ID, AttributeID: def.ID, Value: v}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Notifier.Notify(ctx, activity.Event{
		ActorID: actor.ID, ActionType: activity.ClientCreate,
		EntityType: "client", EntityID: entity.ID,
		Metadata: map[string]any{"name": name, "schema_id": in.SchemaID},
	})
	return s.view(db, &entity)
}

// UpdateEntity applies a partial update. Uniqueness is checked against
// other clients only.
func (s *AttributeStore) UpdateEntity(ctx context.Context, actor *gate.Actor, id string, upd EntityUpdate) (*EntityView, error) {
	if err := authorize(ctx, s.Gate, actor, gate.ActionUpdate, gate.ResourceEntity); err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	db := s.DB.WithContext(ctx)
	var entity models.Entity
	if err := db.First(&entity, "id = ? AND is_deleted = ?", id, false).Error; err != nil {
		return nil, notFound(err, "client", id)
	}

	changes := map[string]any{}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, apperr.Validation("Client name is required")
		}
		changes["name"] = name
	}
	if upd.CategoryID != nil {
		if err := checkCategory(ctx, s.Categories, upd.CategoryID); err != nil {
			return nil, err
		}
		changes["category_id"] = nonEmpty(upd.CategoryID)
	}

	defs, err := activeDefinitions(db, entity.SchemaID)
	if err != nil {
		return nil, err
	}
	supplied, err := bindValues(defs, upd.Values)
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		if v, ok := supplied[def.ID]; ok && v == "" && def.Required {
			return nil, apperr.Validation("Required field %q is missing", def.Key)
		}
	}
	if err := s.checkValues(db, entity.SchemaID, entity.ID, defs, supplied); err != nil {
		return nil, err
	}

	var existing []models.AttributeValue
	if err := db.Where("entity_id = ?", entity.ID).Find(&existing).Error; err != nil {
		return nil, err
	}
	byAttr := make(map[string]models.AttributeValue, len(existing))
	for _, v := range existing {
		byAttr[v.AttributeID] = v
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if len(changes) > 0 {
			if err := tx.Model(&entity).Updates(changes).Error; err != nil {
				return err
			}
		}
		for _, def := range defs {
			v, ok := supplied[def.ID]
			if !ok {
				continue
			}
			row, has := byAttr[def.ID]
			switch {
			case v == "" && has:
				if err := tx.Delete(&models.AttributeValue{}, "id = ?", row.ID).Error; err != nil {
					return err
				}
			case v == "":
			case has:
				if err := tx.Model(&models.AttributeValue{}).Where("id = ?", row.ID).Update("value", v).Error; err != nil {
					return err
				}
			default:
				nv := models.AttributeValue{EntityID: entity.ID, AttributeID: def.ID, Value: v}
				if err := tx.Create(&nv).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Notifier.Notify(ctx, activity.Event{
		ActorID: actor.ID, ActionType: activity.ClientUpdate,
		EntityType: "client", EntityID: entity.ID,
	})
	if err := db.First(&entity, "id = ?", entity.ID).Error; err != nil {
		return nil, err
	}
	return s.view(db, &entity)
}

// SoftDeleteEntity marks a client deleted. Deleting an already deleted
// client is a no-op; values are never removed.
func (s *AttributeStore) SoftDeleteEntity(ctx context.Context, actor *gate.Actor, id string) error {
	if err := authorize(ctx, s.Gate, actor, gate.ActionDelete, gate.ResourceEntity); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var entity models.Entity
	if err := s.DB.WithContext(ctx).First(&entity, "id = ?", id).Error; err != nil {
		return notFound(err, "client", id)
	}
	if entity.IsDeleted {
		return nil
	}
	if err := s.DB.WithContext(ctx).Model(&entity).Update("is_deleted", true).Error; err != nil {
		return err
	}
	s.Notifier.Notify(ctx, activity.Event{
		ActorID: actor.ID, ActionType: activity.ClientDelete,
		EntityType: "client", EntityID: id,
		Metadata: map[string]any{"soft": true},
	})
	return nil
}

// DeleteEntity removes a client and its values for good. Generated documents
// referencing it block the delete unless detachReports is set, in which case
// they lose their client reference.
func (s *AttributeStore) DeleteEntity(ctx context.Context, actor *gate.Actor, id string, detachReports bool) error {
	if err := authorize(ctx, s.Gate, actor, gate.ActionDelete, gate.ResourceEntity); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	db := s.DB.WithContext(ctx)
	var entity models.Entity
	if err := db.First(&entity, "id = ?", id).Error; err != nil {
		return notFound(err, "client", id)
	}
	var reports int64
	if err := db.Model(&models.GeneratedDocument{}).Where("entity_id = ?", id).Count(&reports).Error; err != nil {
		return err
	}
	if reports > 0 && !detachReports {
		return apperr.Validation("Client %q has %d generated documents", entity.Name, reports)
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if reports > 0 {
			if err := tx.Model(&models.GeneratedDocument{}).Where("entity_id = ?", id).
				Update("entity_id", nil).Error; err != nil {
				return err
			}
		}
		if err := tx.Delete(&models.AttributeValue{}, "entity_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Entity{}, "id = ?", id).Error
	})
	if err != nil {
		return err
	}
	s.Notifier.Notify(ctx, activity.Event{
		ActorID: actor.ID, ActionType: activity.ClientDelete,
		EntityType: "client", EntityID: id,
		Metadata: map[string]any{"soft": false, "detached_reports": reports},
	})
	return nil
}

// GetEntityByID returns nil, nil for unknown or soft-deleted clients.
func (s *AttributeStore) GetEntityByID(ctx context.Context, actor *gate.Actor, id string) (*EntityView, error) {
	if err := authorize(ctx, s.Gate, actor, gate.ActionView, gate.ResourceEntity); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)
	var entity models.Entity
	err := db.First(&entity, "id = ? AND is_deleted = ?", id, false).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.view(db, &entity)
}

// ListEntities returns live clients ordered by name. An empty schemaID lists
// every schema.
func (s *AttributeStore) ListEntities(ctx context.Context, actor *gate.Actor, schemaID string) ([]models.Entity, error) {
	if err := authorize(ctx, s.Gate, actor, gate.ActionList, gate.ResourceEntity); err != nil {
		return nil, err
	}
	q := s.DB.WithContext(ctx).Where("is_deleted = ?", false)
	if schemaID != "" {
		q = q.Where("schema_id = ?", schemaID)
	}
	var out []models.Entity
	err := q.Order("name").Find(&out).Error
	return out, err
}

// view loads attribute values keyed by their definition's key, including
// definitions that were soft-deleted since.
func (s *AttributeStore) view(db *gorm.DB, e *models.Entity) (*EntityView, error) {
	type row struct {
		AttrKey string
		Value   string
	}
	var rows []row
	err := db.Table("attribute_values").
		Select("attribute_definitions.attr_key AS attr_key, attribute_values.value AS value").
		Joins("JOIN attribute_definitions ON attribute_definitions.id = attribute_values.attribute_id").
		Where("attribute_values.entity_id = ?", e.ID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	attrs := make(map[string]string, len(rows))
	for _, r := range rows {
		attrs[r.AttrKey] = r.Value
	}
	return &EntityView{
		ID:         e.ID,
		Name:       e.Name,
		SchemaID:   e.SchemaID,
		CategoryID: e.CategoryID,
		Attributes: attrs,
	}, nil
}

// bindValues maps supplied key/value pairs onto definition ids, trimming
// values. Blank values are kept as "" so callers can tell "cleared" from
// "not supplied".
func bindValues(defs []models.AttributeDefinition, values map[string]string) (map[string]string, error) {
	byKey := make(map[string]string, len(defs))
	for _, d := range defs {
		byKey[d.Key] = d.ID
	}
	out := make(map[string]string, len(values))
	for key, v := range values {
		id, ok := byKey[key]
		if !ok {
			return nil, apperr.Validation("Unknown field %q", key)
		}
		out[id] = strings.TrimSpace(v)
	}
	return out, nil
}

// checkValues type-checks non-blank values and enforces uniqueness among the
// live clients of the schema, ignoring excludeID.
func (s *AttributeStore) checkValues(db *gorm.DB, schemaID, excludeID string, defs []models.AttributeDefinition, supplied map[string]string) error {
	for _, def := range defs {
		v, ok := supplied[def.ID]
		if !ok || v == "" {
			continue
		}
		dt, _ := format.ParseDataType(def.DataType)
		if !validation.Matches(dt, v) {
			return apperr.Validation("Field %q expects a %s value", def.Key, dt)
		}
	}
	for _, def := range defs {
		v, ok := supplied[def.ID]
		if !ok || v == "" || !s.uniqueKeys[def.Key] {
			continue
		}
		q := db.Model(&models.AttributeValue{}).
			Joins("JOIN entities ON entities.id = attribute_values.entity_id").
			Where("attribute_values.attribute_id = ?", def.ID).
			Where("LOWER(attribute_values.value) = LOWER(?)", v).
			Where("entities.schema_id = ? AND entities.is_deleted = ?", schemaID, false)
		if excludeID != "" {
			q = q.Where("entities.id <> ?", excludeID)
		}
		var count int64
		if err := q.Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperr.Validation("Duplicate value for %s: %s", strings.ToUpper(def.Key), v)
		}
	}
	return nil
}

func nonEmpty(p *string) *string {
	if p == nil || strings.TrimSpace(*p) == "" {
		return nil
	}
	return strPtr(strings.TrimSpace(*p))
}
