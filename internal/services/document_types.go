package services

import (
	"context"
	"database/sql"
	"strings"

	"github.com/diewo77/docbatch/internal/activity"
	"github.com/diewo77/docbatch/internal/apperr"
	"github.com/diewo77/docbatch/internal/format"
	"github.com/diewo77/docbatch/internal/gate"
	"github.com/diewo77/docbatch/internal/models"
	"github.com/diewo77/docbatch/internal/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DocumentTypeInput describes a new document type.
type DocumentTypeInput struct {
	Name         string
	TemplatePath string
	CategoryID   *string
}

// FieldInput describes a field of a document type. Placeholder may be given
// with or without braces. Position 0 appends the field at the end.
type FieldInput struct {
	Label       string
	Key         string
	DataType    string
	Required    bool
	Placeholder string
	FormatRule  string
	Position    int
}

// DocumentTypeService owns document types and their field definitions.
type DocumentTypeService struct {
	DB         *gorm.DB
	Gate       *gate.Gate[*gate.Actor]
	Categories CategoryChecker
	Notifier   activity.Notifier
	Log        *zap.Logger
}

func NewDocumentTypeService(db *gorm.DB) *DocumentTypeService {
	return &DocumentTypeService{
		DB:         db,
		Gate:       gate.Default(),
		Categories: NewCategoryRegistry(db),
		Notifier:   activity.NopNotifier{},
		Log:        zap.NewNop(),
	}
}

func (s *DocumentTypeService) CreateDocumentType(ctx context.Context, actor *gate.Actor, in DocumentTypeInput) (*models.DocumentType, error) {
	if err := authorize(ctx, s.Gate, actor, gate.ActionCreate, gate.ResourceDocumentType); err != nil {
		return nil, err
	}
	v := validation.Violations{}
	validation.Required("name", in.Name, v)
	validation.Required("template_path", in.TemplatePath, v)
	if !v.Empty() {
		return nil, apperr.Validation("Document type %s is required", strings.Join(v.Fields(), " and "))
	}
	if err := checkCategory(ctx, s.Categories, in.CategoryID); err != nil {
		return nil, err
	}
	dt := models.DocumentType{
		Name:         strings.TrimSpace(in.Name),
		TemplatePath: strings.TrimSpace(in.TemplatePath),
		CategoryID:   nonEmpty(in.CategoryID),
	}
	if err := s.DB.WithContext(ctx).Create(&dt).Error; err != nil {
		return nil, err
	}
	s.Notifier.Notify(ctx, activity.Event{
		ActorID: actor.ID, ActionType: activity.FormCreate,
		EntityType: "form", EntityID: dt.ID,
		Metadata: map[string]any{"name": dt.Name},
	})
	return &dt, nil
}

// AddField appends a field. Keys and placeholders are unique per document
// type. The format rule is stored as given; a rule that does not decode is
// logged and later ignored at generation time.
func (s *DocumentTypeService) AddField(ctx context.Context, actor *gate.Actor, documentTypeID string, in FieldInput) (*models.FieldDefinition, error) {
	if err := authorize(ctx, s.Gate, actor, gate.ActionUpdate, gate.ResourceDocumentType); err != nil {
		return nil, err
	}
	key := strings.TrimSpace(in.Key)
	v := validation.Violations{}
	validation.Key("key", key, v)
	if !v.Empty() {
		return nil, apperr.Validation("Field key %q must contain only lowercase letters, digits and underscores", key)
	}
	label := strings.TrimSpace(in.Label)
	if label == "" {
		label = key
	}
	dt, err := format.ParseDataType(in.DataType)
	if err != nil {
		return nil, apperr.Validation("Field %q: %v", key, err)
	}
	placeholder := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(in.Placeholder), "{"), "}"))
	if strings.ContainsAny(placeholder, "{}") {
		return nil, apperr.Validation("Placeholder %q is not a valid token", in.Placeholder)
	}
	if _, err := format.DecodeRule(in.FormatRule); err != nil {
		s.Log.Warn("storing undecodable format rule", zap.String("field", key), zap.Error(err))
	}

	var field models.FieldDefinition
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc models.DocumentType
		if err := tx.Select("id").First(&doc, "id = ? AND is_deleted = ?", documentTypeID, false).Error; err != nil {
			return notFound(err, "document type", documentTypeID)
		}
		var count int64
		if err := tx.Model(&models.FieldDefinition{}).
			Where("document_type_id = ? AND field_key = ?", documentTypeID, key).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperr.Duplicate("Field key %q already exists for this document type", key)
		}
		if placeholder != "" {
			if err := tx.Model(&models.FieldDefinition{}).
				Where("document_type_id = ? AND placeholder = ?", documentTypeID, placeholder).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return apperr.Duplicate("Placeholder %q is already mapped in this document type", placeholder)
			}
		}
		pos := in.Position
		if pos == 0 {
			var maxPos sql.NullInt64
			if err := tx.Model(&models.FieldDefinition{}).
				Where("document_type_id = ?", documentTypeID).
				Select("MAX(position)").Row().Scan(&maxPos); err != nil {
				return err
			}
			pos = int(maxPos.Int64) + 1
		}
		field = models.FieldDefinition{
			DocumentTypeID: documentTypeID,
			Label:          label,
			Key:            key,
			DataType:       string(dt),
			Required:       in.Required,
			FormatRule:     strings.TrimSpace(in.FormatRule),
			Position:       pos,
		}
		if placeholder != "" {
			field.Placeholder = strPtr(placeholder)
		}
		return tx.Create(&field).Error
	})
	if err != nil {
		return nil, err
	}
	s.Notifier.Notify(ctx, activity.Event{
		ActorID: actor.ID, ActionType: activity.FormUpdate,
		EntityType: "form", EntityID: documentTypeID,
		Metadata: map[string]any{"field": key},
	})
	return &field, nil
}

// GetDocumentType returns a live document type with its fields ordered by
// position. Soft-deleted types are NOT_FOUND.
func (s *DocumentTypeService) GetDocumentType(ctx context.Context, actor *gate.Actor, id string) (*models.DocumentType, error) {
	if err := authorize(ctx, s.Gate, actor, gate.ActionView, gate.ResourceDocumentType); err != nil {
		return nil, err
	}
	var dt models.DocumentType
	err := s.DB.WithContext(ctx).
		Preload("Fields", func(db *gorm.DB) *gorm.DB { return db.Order("position").Order("created_at") }).
		First(&dt, "id = ? AND is_deleted = ?", id, false).Error
	if err != nil {
		return nil, notFound(err, "document type", id)
	}
	return &dt, nil
}

// ListDocumentTypes returns live document types ordered by name.
func (s *DocumentTypeService) ListDocumentTypes(ctx context.Context, actor *gate.Actor) ([]models.DocumentType, error) {
	if err := authorize(ctx, s.Gate, actor, gate.ActionList, gate.ResourceDocumentType); err != nil {
		return nil, err
	}
	var out []models.DocumentType
	err := s.DB.WithContext(ctx).Where("is_deleted = ?", false).Order("name").Find(&out).Error
	return out, err
}

// DeleteDocumentType removes a document type. Unused types are deleted with
// their fields. Used types are soft-deleted unless withReports is set, in
// which case their generated documents and files go too. The returned bool
// reports whether the row was removed.
func (s *DocumentTypeService) DeleteDocumentType(ctx context.Context, actor *gate.Actor, id string, withReports bool) (bool, error) {
	if err := authorize(ctx, s.Gate, actor, gate.ActionDelete, gate.ResourceDocumentType); err != nil {
		return false, err
	}
	db := s.DB.WithContext(ctx)
	var dt models.DocumentType
	if err := db.First(&dt, "id = ?", id).Error; err != nil {
		return false, notFound(err, "document type", id)
	}
	var reports []models.GeneratedDocument
	if err := db.Where("document_type_id = ?", id).Find(&reports).Error; err != nil {
		return false, err
	}

	if len(reports) > 0 && !withReports {
		if err := db.Model(&dt).Update("is_deleted", true).Error; err != nil {
			return false, err
		}
		s.Notifier.Notify(ctx, activity.Event{
			ActorID: actor.ID, ActionType: activity.FormDelete,
			EntityType: "form", EntityID: id,
			Metadata: map[string]any{"soft": true, "reports": len(reports)},
		})
		return false, nil
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.GeneratedDocument{}, "document_type_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.FieldDefinition{}, "document_type_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.DocumentType{}, "id = ?", id).Error
	})
	if err != nil {
		return false, err
	}
	for _, r := range reports {
		removeFile(s.Log, r.FilePath)
	}
	s.Notifier.Notify(ctx, activity.Event{
		ActorID: actor.ID, ActionType: activity.FormDelete,
		EntityType: "form", EntityID: id,
		Metadata: map[string]any{"soft": false, "reports": len(reports)},
	})
	return true, nil
}
