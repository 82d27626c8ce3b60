package services

import (
	"context"

	"github.com/diewo77/docbatch/internal/activity"
	"github.com/diewo77/docbatch/internal/gate"
	"github.com/diewo77/docbatch/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReportFilter narrows ListReports. Empty fields match everything.
type ReportFilter struct {
	DocumentTypeID string
	EntityID       string
	Limit          int
}

// ReportService reads and deletes generated document records.
type ReportService struct {
	DB       *gorm.DB
	Gate     *gate.Gate[*gate.Actor]
	Notifier activity.Notifier
	Log      *zap.Logger
}

func NewReportService(db *gorm.DB) *ReportService {
	return &ReportService{DB: db, Gate: gate.Default(), Notifier: activity.NopNotifier{}, Log: zap.NewNop()}
}

// ListReports returns records newest first.
func (s *ReportService) ListReports(ctx context.Context, actor *gate.Actor, f ReportFilter) ([]models.GeneratedDocument, error) {
	if err := authorize(ctx, s.Gate, actor, gate.ActionList, gate.ResourceReport); err != nil {
		return nil, err
	}
	q := s.DB.WithContext(ctx).Model(&models.GeneratedDocument{})
	if f.DocumentTypeID != "" {
		q = q.Where("document_type_id = ?", f.DocumentTypeID)
	}
	if f.EntityID != "" {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var out []models.GeneratedDocument
	err := q.Order("generated_at DESC").Find(&out).Error
	return out, err
}

func (s *ReportService) GetReport(ctx context.Context, actor *gate.Actor, id string) (*models.GeneratedDocument, error) {
	if err := authorize(ctx, s.Gate, actor, gate.ActionView, gate.ResourceReport); err != nil {
		return nil, err
	}
	var r models.GeneratedDocument
	if err := s.DB.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "report", id)
	}
	return &r, nil
}

// DeleteReport removes the record, then its file. File removal failures are
// logged only.
func (s *ReportService) DeleteReport(ctx context.Context, actor *gate.Actor, id string) error {
	if err := authorize(ctx, s.Gate, actor, gate.ActionDelete, gate.ResourceReport); err != nil {
		return err
	}
	var r models.GeneratedDocument
	if err := s.DB.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return notFound(err, "report", id)
	}
	if err := s.DB.WithContext(ctx).Delete(&models.GeneratedDocument{}, "id = ?", id).Error; err != nil {
		return err
	}
	removeFile(s.Log, r.FilePath)
	s.Notifier.Notify(ctx, activity.Event{
		ActorID: actor.ID, ActionType: activity.ReportDelete,
		EntityType: "report", EntityID: id,
		Metadata: map[string]any{"path": r.FilePath},
	})
	return nil
}
