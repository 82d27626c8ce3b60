package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/diewo77/docbatch/internal/activity"
	"github.com/diewo77/docbatch/internal/apperr"
	"github.com/diewo77/docbatch/internal/format"
	"github.com/diewo77/docbatch/internal/gate"
	"github.com/diewo77/docbatch/internal/models"
	"github.com/diewo77/docbatch/internal/outpath"
	"github.com/diewo77/docbatch/internal/render"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TemplateSource supplies a document type with its ordered fields.
type TemplateSource interface {
	GetDocumentType(ctx context.Context, actor *gate.Actor, id string) (*models.DocumentType, error)
}

// EntitySource supplies a client's attribute values. A nil view means the
// client is unknown or deleted.
type EntitySource interface {
	GetEntityByID(ctx context.Context, actor *gate.Actor, id string) (*EntityView, error)
}

// GenerateRequest asks for one document. ManualValues are keyed by field key
// and win over the client's stored attributes.
type GenerateRequest struct {
	DocumentTypeID string
	EntityID       string
	ManualValues   map[string]string
}

// DraftOutput is a generated document at the generator's own location,
// before any batch publish step.
type DraftOutput struct {
	RecordID         string
	DocumentTypeID   string
	DocumentTypeName string
	EntityID         string
	Path             string
	Ext              string
	// Values are the resolved values before formatting, keyed by field key.
	Values map[string]string
	// Tokens are the formatted strings handed to the template engine.
	Tokens map[string]string
}

// Generator fills one document type for one optional client.
type Generator struct {
	DB        *gorm.DB
	Gate      *gate.Gate[*gate.Actor]
	Templates TemplateSource
	Entities  EntitySource
	Engines   *render.Registry
	Notifier  activity.Notifier
	Log       *zap.Logger
	OutputDir string

	now func() time.Time
}

func NewGenerator(db *gorm.DB, templates TemplateSource, entities EntitySource, outputDir string) *Generator {
	return &Generator{
		DB:        db,
		Gate:      gate.Default(),
		Templates: templates,
		Entities:  entities,
		Engines:   render.NewRegistry(),
		Notifier:  activity.NopNotifier{},
		Log:       zap.NewNop(),
		OutputDir: outputDir,
		now:       time.Now,
	}
}

// Generate resolves, formats, renders and records one document. Validation
// happens before any file is read or written.
func (g *Generator) Generate(ctx context.Context, actor *gate.Actor, req GenerateRequest) (*DraftOutput, error) {
	if err := authorize(ctx, g.Gate, actor, gate.ActionGenerate, gate.ResourceDocumentType); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.DocumentTypeID) == "" {
		return nil, apperr.Validation("documentTypeId is required")
	}
	dt, err := g.Templates.GetDocumentType(ctx, actor, req.DocumentTypeID)
	if err != nil {
		return nil, err
	}
	log := g.Log.With(zap.String("document_type_id", dt.ID))

	entity := g.resolveEntity(ctx, actor, req.EntityID, log)
	values := ResolveValues(dt.Fields, req.ManualValues, entity)
	for _, f := range dt.Fields {
		if f.Required && values[f.Key] == "" {
			return nil, apperr.Validation("Required field %q is missing", f.Key)
		}
	}
	tokens := g.formatTokens(dt.Fields, values, log)

	tpl, err := os.ReadFile(dt.TemplatePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.Wrap(apperr.KindTemplateMissing, err, "Template file not found: %s", dt.TemplatePath)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIOFailure, err, "read template %s", dt.TemplatePath)
	}
	engine, err := g.Engines.For(dt.TemplatePath)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindRenderFailure, err, "%v", err)
	}
	out, err := engine.Render(tpl, tokens)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindRenderFailure, err, "%v", err)
	}

	now := g.clock()
	ext := strings.ToLower(filepath.Ext(dt.TemplatePath))
	base := outpath.Sanitize(dt.Name)
	path, err := outpath.CreateExclusive(
		filepath.Join(g.OutputDir, base),
		fmt.Sprintf("%s_%s%s", base, now.Format("20060102_150405"), ext),
		out,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIOFailure, err, "write output: %v", err)
	}

	snapshot, err := json.Marshal(values)
	if err != nil {
		removeFile(log, path)
		return nil, apperr.Wrap(apperr.KindIOFailure, err, "encode input values")
	}
	rec := models.GeneratedDocument{
		DocumentTypeID: dt.ID,
		ActorID:        actor.ID,
		FilePath:       path,
		GeneratedAt:    now,
		InputValues:    datatypes.JSON(snapshot),
	}
	if entity != nil {
		rec.EntityID = strPtr(entity.ID)
	}
	if err := g.DB.WithContext(ctx).Create(&rec).Error; err != nil {
		removeFile(log, path)
		return nil, apperr.Wrap(apperr.KindIOFailure, err, "record generated document: %v", err)
	}

	g.Notifier.Notify(ctx, activity.Event{
		ActorID: actor.ID, ActionType: activity.ReportGenerate,
		EntityType: "report", EntityID: rec.ID,
		Metadata: map[string]any{"document_type_id": dt.ID, "entity_id": req.EntityID, "path": path},
	})
	log.Debug("document generated", zap.String("path", path), zap.String("record_id", rec.ID))

	draft := &DraftOutput{
		RecordID:         rec.ID,
		DocumentTypeID:   dt.ID,
		DocumentTypeName: dt.Name,
		Path:             path,
		Ext:              ext,
		Values:           values,
		Tokens:           tokens,
	}
	if entity != nil {
		draft.EntityID = entity.ID
	}
	return draft, nil
}

// resolveEntity loads the client for prefill. Lookup problems degrade to
// manual values only.
func (g *Generator) resolveEntity(ctx context.Context, actor *gate.Actor, id string, log *zap.Logger) *EntityView {
	if id == "" || g.Entities == nil {
		return nil
	}
	e, err := g.Entities.GetEntityByID(ctx, actor, id)
	if err != nil {
		log.Warn("client lookup failed, using manual values only", zap.String("entity_id", id), zap.Error(err))
		return nil
	}
	if e == nil {
		log.Info("client not found, using manual values only", zap.String("entity_id", id))
	}
	return e
}

// ResolveValues merges manual input with a client's attributes for every
// field: a non-blank manual value wins, then the client's value, then "".
func ResolveValues(fields []models.FieldDefinition, manual map[string]string, entity *EntityView) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		v := manual[f.Key]
		if strings.TrimSpace(v) == "" {
			v = ""
			if entity != nil {
				v = entity.Attributes[f.Key]
			}
		}
		out[f.Key] = v
	}
	return out
}

// formatTokens formats the value of every placeholder-mapped field.
func (g *Generator) formatTokens(fields []models.FieldDefinition, values map[string]string, log *zap.Logger) map[string]string {
	tokens := make(map[string]string, len(fields))
	for _, f := range fields {
		if f.Placeholder == nil || *f.Placeholder == "" {
			continue
		}
		rule, err := format.DecodeRule(f.FormatRule)
		if err != nil {
			log.Warn("ignoring malformed format rule", zap.String("field", f.Key), zap.Error(err))
			rule = nil
		}
		dt, err := format.ParseDataType(f.DataType)
		if err != nil {
			dt = format.Text
		}
		var raw any
		if v := values[f.Key]; v != "" {
			raw = v
		}
		tokens[*f.Placeholder] = format.Format(raw, dt, rule)
	}
	return tokens
}

func (g *Generator) clock() time.Time {
	if g.now == nil {
		return time.Now()
	}
	return g.now()
}
