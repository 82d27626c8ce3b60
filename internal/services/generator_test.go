package services

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/diewo77/docbatch/internal/activity"
	"github.com/diewo77/docbatch/internal/apperr"
	"github.com/diewo77/docbatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 31, 14, 5, 9, 0, time.UTC)

func TestGenerate_FormatsCurrencyAndRecordsSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.generator.now = func() time.Time { return fixedNow }
	tpl := f.template(t, "invoice.txt", "Total: {TOTAL}\nNote: {NOTE}")
	f.docType(t, "dt1", "Tax Invoice", tpl,
		field("amount", "number", "TOTAL", `{"currencySymbol":"₹","decimals":2}`),
		field("note", "text", "NOTE", ""),
		field("internal_ref", "text", "", ""),
	)

	draft, err := f.generator.Generate(ctx, operator, GenerateRequest{
		DocumentTypeID: "dt1",
		ManualValues:   map[string]string{"amount": "1234.5", "internal_ref": "R-7"},
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(f.outDir, "Tax_Invoice", "Tax_Invoice_20250331_140509.txt"), draft.Path)
	body, err := os.ReadFile(draft.Path)
	require.NoError(t, err)
	assert.Equal(t, "Total: ₹1234.50\nNote: ", string(body))
	assert.Equal(t, ".txt", draft.Ext)
	assert.Empty(t, draft.EntityID)

	var rec models.GeneratedDocument
	require.NoError(t, f.db.First(&rec, "id = ?", draft.RecordID).Error)
	assert.Equal(t, "dt1", rec.DocumentTypeID)
	assert.Equal(t, operator.ID, rec.ActorID)
	assert.Nil(t, rec.EntityID)
	assert.Equal(t, draft.Path, rec.FilePath)
	values, err := rec.Values()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"amount": "1234.5", "note": "", "internal_ref": "R-7"}, values, "snapshot holds unformatted values")

	events := f.events.Of(activity.ReportGenerate)
	require.Len(t, events, 1)
	assert.Equal(t, draft.RecordID, events[0].EntityID)
	assert.Equal(t, operator.ID, events[0].ActorID)
}

func TestGenerate_SameSecondDoesNotOverwrite(t *testing.T) {
	f := newFixture(t)
	f.generator.now = func() time.Time { return fixedNow }
	tpl := f.template(t, "memo.txt", "{X}")
	f.docType(t, "memo", "Memo", tpl, field("x", "text", "X", ""))

	a, err := f.generator.Generate(t.Context(), operator, GenerateRequest{DocumentTypeID: "memo", ManualValues: map[string]string{"x": "one"}})
	require.NoError(t, err)
	b, err := f.generator.Generate(t.Context(), operator, GenerateRequest{DocumentTypeID: "memo", ManualValues: map[string]string{"x": "two"}})
	require.NoError(t, err)

	assert.NotEqual(t, a.Path, b.Path)
	assert.Equal(t, "Memo_20250331_140509(1).txt", filepath.Base(b.Path))
	first, _ := os.ReadFile(a.Path)
	assert.Equal(t, "one", string(first))
}

func TestResolveValues(t *testing.T) {
	fields := []models.FieldDefinition{
		field("pan", "text", "PAN", ""),
		field("name", "text", "NAME", ""),
		field("city", "text", "CITY", ""),
	}
	entity := &EntityView{ID: "c1", Attributes: map[string]string{"pan": "ABCDE1234F", "name": "Acme", "unrelated": "x"}}

	tests := []struct {
		name   string
		manual map[string]string
		entity *EntityView
		want   map[string]string
	}{
		{"entity only", nil, entity, map[string]string{"pan": "ABCDE1234F", "name": "Acme", "city": ""}},
		{"manual wins", map[string]string{"name": "Acme Override"}, entity, map[string]string{"pan": "ABCDE1234F", "name": "Acme Override", "city": ""}},
		{"blank manual falls back", map[string]string{"name": "  "}, entity, map[string]string{"pan": "ABCDE1234F", "name": "Acme", "city": ""}},
		{"no entity", map[string]string{"city": "Pune"}, nil, map[string]string{"pan": "", "name": "", "city": "Pune"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveValues(fields, tt.manual, tt.entity))
		})
	}
}

func TestGenerate_PrefillsFromClientWithManualOverride(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	schema := f.schemaWith(t, "Company",
		AttributeInput{Label: "PAN", Key: "pan", Required: true},
		AttributeInput{Label: "City", Key: "city"},
		AttributeInput{Label: "Since", Key: "since", DataType: "date"},
	)
	client, err := f.store.CreateEntity(ctx, admin, EntityInput{
		Name: "Acme", SchemaID: schema.ID,
		Values: map[string]string{"pan": "abcde1234f", "city": "Mumbai", "since": "2020-04-01"},
	})
	require.NoError(t, err)

	tpl := f.template(t, "letter.md", "{PAN} / {CITY} / {SINCE}")
	f.docType(t, "letter", "Letter", tpl,
		field("pan", "text", "PAN", `{"case":"uppercase"}`),
		field("city", "text", "CITY", ""),
		field("since", "date", "SINCE", `{"dateFormat":"DD-MM-YYYY"}`),
	)

	draft, err := f.generator.Generate(ctx, operator, GenerateRequest{
		DocumentTypeID: "letter",
		EntityID:       client.ID,
		ManualValues:   map[string]string{"city": "Pune"},
	})
	require.NoError(t, err)
	body, err := os.ReadFile(draft.Path)
	require.NoError(t, err)
	assert.Equal(t, "ABCDE1234F / Pune / 01-04-2020", string(body))
	assert.Equal(t, client.ID, draft.EntityID)

	var rec models.GeneratedDocument
	require.NoError(t, f.db.First(&rec, "id = ?", draft.RecordID).Error)
	require.NotNil(t, rec.EntityID)
	assert.Equal(t, client.ID, *rec.EntityID)
}

func TestGenerate_UnknownClientUsesManualValues(t *testing.T) {
	f := newFixture(t)
	tpl := f.template(t, "note.txt", "Dear {NAME}")
	f.docType(t, "note", "Note", tpl, field("name", "text", "NAME", ""))

	draft, err := f.generator.Generate(t.Context(), operator, GenerateRequest{
		DocumentTypeID: "note",
		EntityID:       "ghost",
		ManualValues:   map[string]string{"name": "Ravi"},
	})
	require.NoError(t, err)
	body, _ := os.ReadFile(draft.Path)
	assert.Equal(t, "Dear Ravi", string(body))
	assert.Empty(t, draft.EntityID)
}

func TestGenerate_RequiredFieldFailsBeforeIO(t *testing.T) {
	f := newFixture(t)
	required := field("gstin", "text", "GSTIN", "")
	required.Required = true
	f.docType(t, "gst", "GST Return", filepath.Join(f.tplDir, "does-not-exist.txt"), required)

	_, err := f.generator.Generate(t.Context(), operator, GenerateRequest{DocumentTypeID: "gst"})
	require.Error(t, err)
	assert.Equal(t, `VALIDATION: Required field "gstin" is missing`, err.Error())
	assert.NoDirExists(t, f.outDir)
}

func TestGenerate_TemplateMissing(t *testing.T) {
	f := newFixture(t)
	missing := filepath.Join(f.tplDir, "gone.docx")
	f.docType(t, "gone", "Gone", missing, field("a", "text", "A", ""))

	_, err := f.generator.Generate(t.Context(), operator, GenerateRequest{DocumentTypeID: "gone"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrTemplateMissing), "got %v", err)
	assert.Equal(t, "TEMPLATE_MISSING: Template file not found: "+missing, err.Error())

	var count int64
	f.db.Model(&models.GeneratedDocument{}).Count(&count)
	assert.Zero(t, count)
}

func TestGenerate_RenderFailures(t *testing.T) {
	f := newFixture(t)
	broken := f.template(t, "broken.txt", "Hello {NAME")
	f.docType(t, "broken", "Broken", broken, field("name", "text", "NAME", ""))
	odd := f.template(t, "scan.pdf", "%PDF")
	f.docType(t, "pdf", "Scan", odd)

	_, err := f.generator.Generate(t.Context(), operator, GenerateRequest{DocumentTypeID: "broken"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrRenderFailure), "got %v", err)
	assert.Contains(t, err.Error(), "Unclosed tag")

	_, err = f.generator.Generate(t.Context(), operator, GenerateRequest{DocumentTypeID: "pdf"})
	assert.True(t, errors.Is(err, apperr.ErrRenderFailure), "got %v", err)

	assert.NoDirExists(t, f.outDir)
}

func TestGenerate_MalformedRuleIsIgnored(t *testing.T) {
	f := newFixture(t)
	tpl := f.template(t, "amt.txt", "{AMT}")
	f.docType(t, "amt", "Amount", tpl, field("amt", "number", "AMT", `{"decimals":`))

	draft, err := f.generator.Generate(t.Context(), operator, GenerateRequest{DocumentTypeID: "amt", ManualValues: map[string]string{"amt": "12.5"}})
	require.NoError(t, err)
	body, _ := os.ReadFile(draft.Path)
	assert.Equal(t, "12.5", string(body))
}

func TestGenerate_LookupErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.generator.Generate(t.Context(), operator, GenerateRequest{DocumentTypeID: " "})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION: documentTypeId is required", err.Error())

	_, err = f.generator.Generate(t.Context(), operator, GenerateRequest{DocumentTypeID: "nope"})
	assert.True(t, errors.Is(err, apperr.ErrNotFound), "got %v", err)

	_, err = f.generator.Generate(t.Context(), nil, GenerateRequest{DocumentTypeID: "nope"})
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized), "got %v", err)
}
