package services

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/diewo77/docbatch/internal/activity"
	"github.com/diewo77/docbatch/internal/config"
	"github.com/diewo77/docbatch/internal/db"
	"github.com/diewo77/docbatch/internal/gate"
	"github.com/diewo77/docbatch/internal/models"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

var (
	admin    = &gate.Actor{ID: "admin", Name: "Admin", Role: gate.RoleElevated}
	operator = &gate.Actor{ID: "clerk", Name: "Clerk", Role: gate.RoleUser}
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := db.Open(config.DatabaseConfig{Driver: "sqlite", DSN: dsn}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

// fixture wires the services against one database and output directory.
type fixture struct {
	db        *gorm.DB
	store     *AttributeStore
	docTypes  *DocumentTypeService
	reports   *ReportService
	generator *Generator
	batch     *Orchestrator
	events    *activity.Recorder
	outDir    string
	tplDir    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := setupTestDB(t)
	log := zaptest.NewLogger(t)
	events := &activity.Recorder{}
	out := filepath.Join(t.TempDir(), "out")

	store := NewAttributeStore(conn, config.DefaultUniqueKeys)
	store.Notifier, store.Log = events, log
	docTypes := NewDocumentTypeService(conn)
	docTypes.Notifier, docTypes.Log = events, log
	reports := NewReportService(conn)
	reports.Notifier, reports.Log = events, log
	gen := NewGenerator(conn, docTypes, store, out)
	gen.Notifier, gen.Log = events, log
	batch := NewOrchestrator(conn, gen, out)
	batch.Notifier, batch.Log = events, log

	return &fixture{
		db:        conn,
		store:     store,
		docTypes:  docTypes,
		reports:   reports,
		generator: gen,
		batch:     batch,
		events:    events,
		outDir:    out,
		tplDir:    t.TempDir(),
	}
}

// template writes a template file and returns its path.
func (f *fixture) template(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(f.tplDir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
	return p
}

// docType inserts a document type with a fixed id and the given fields.
func (f *fixture) docType(t *testing.T, id, name, tplPath string, fields ...models.FieldDefinition) *models.DocumentType {
	t.Helper()
	dt := models.DocumentType{Base: models.Base{ID: id}, Name: name, TemplatePath: tplPath}
	if err := f.db.Create(&dt).Error; err != nil {
		t.Fatalf("create document type: %v", err)
	}
	for i := range fields {
		fields[i].DocumentTypeID = id
		if fields[i].Position == 0 {
			fields[i].Position = i + 1
		}
		if err := f.db.Create(&fields[i]).Error; err != nil {
			t.Fatalf("create field: %v", err)
		}
	}
	return &dt
}

// schemaWith creates a client type with the given attribute definitions.
func (f *fixture) schemaWith(t *testing.T, name string, attrs ...AttributeInput) *models.EntityTypeSchema {
	t.Helper()
	schema, err := f.store.CreateEntityTypeSchema(t.Context(), admin, name)
	if err != nil {
		t.Fatalf("create schema: %v", err)
	}
	for _, a := range attrs {
		if _, err := f.store.AddAttributeDefinition(t.Context(), admin, schema.ID, a); err != nil {
			t.Fatalf("add attribute %s: %v", a.Key, err)
		}
	}
	return schema
}

// entityWithID inserts a client with a fixed id, bypassing validation.
func (f *fixture) entityWithID(t *testing.T, id, name, schemaID string) {
	t.Helper()
	e := models.Entity{Base: models.Base{ID: id}, Name: name, SchemaID: schemaID}
	if err := f.db.Create(&e).Error; err != nil {
		t.Fatalf("create entity: %v", err)
	}
}

func field(key, dataType, placeholder, rule string) models.FieldDefinition {
	fd := models.FieldDefinition{Label: key, Key: key, DataType: dataType, FormatRule: rule}
	if placeholder != "" {
		fd.Placeholder = strPtr(placeholder)
	}
	return fd
}
