package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/diewo77/docbatch/internal/activity"
	"github.com/diewo77/docbatch/internal/apperr"
	"github.com/diewo77/docbatch/internal/gate"
	"github.com/diewo77/docbatch/internal/models"
	"github.com/diewo77/docbatch/internal/outpath"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// DefaultWorkers is the number of jobs a batch runs at once.
const DefaultWorkers = 5

// ItemGenerator produces one draft document.
type ItemGenerator interface {
	Generate(ctx context.Context, actor *gate.Actor, req GenerateRequest) (*DraftOutput, error)
}

// BatchRequest selects the clients and document types to combine. Every
// client is paired with every document type.
type BatchRequest struct {
	EntityIDs       []string
	DocumentTypeIDs []string
	ManualValues    map[string]string
	// FinancialYear, when set, is added to published file names.
	FinancialYear string
}

// Progress is reported before each job starts and once when the batch is
// done. Counts never decrease.
type Progress struct {
	Total      int    `json:"total"`
	Completed  int    `json:"completed"`
	Successful int    `json:"successful"`
	Failed     int    `json:"failed"`
	Current    string `json:"current,omitempty"`
	IsComplete bool   `json:"is_complete"`
}

// ProgressFunc receives progress updates. Calls are serialised.
type ProgressFunc func(Progress)

// BatchResult is the outcome of one job.
type BatchResult struct {
	EntityID         string `json:"entity_id"`
	EntityName       string `json:"entity_name"`
	DocumentTypeID   string `json:"document_type_id"`
	DocumentTypeName string `json:"document_type_name"`
	Success          bool   `json:"success"`
	RecordID         string `json:"record_id,omitempty"`
	Path             string `json:"path,omitempty"`
	Error            string `json:"error,omitempty"`
}

// BatchSummary aggregates a run. Reports are in completion order.
type BatchSummary struct {
	Success    bool          `json:"success"`
	Total      int           `json:"total"`
	Successful int           `json:"successful"`
	Failed     int           `json:"failed"`
	Reports    []BatchResult `json:"reports"`
}

// PublishedOutput is a draft moved to its batch file name.
type PublishedOutput struct {
	RecordID  string
	Path      string
	DraftPath string
	// Moved is false when publishing failed and the draft path was kept.
	Moved bool
}

type batchJob struct {
	entityID, entityName string
	docTypeID, docName   string
}

func (j batchJob) label() string {
	return fmt.Sprintf("%s - %s", j.entityName, j.docName)
}

// Orchestrator runs batches of generations through a bounded worker pool.
type Orchestrator struct {
	DB            *gorm.DB
	Gate          *gate.Gate[*gate.Actor]
	Generator     ItemGenerator
	Notifier      activity.Notifier
	Revealer      activity.Revealer
	Log           *zap.Logger
	OutputDir     string
	Workers       int
	DispatchDelay time.Duration

	now       func() time.Time
	publishMu sync.Mutex
}

func NewOrchestrator(db *gorm.DB, gen ItemGenerator, outputDir string) *Orchestrator {
	return &Orchestrator{
		DB:        db,
		Gate:      gate.Default(),
		Generator: gen,
		Notifier:  activity.NopNotifier{},
		Log:       zap.NewNop(),
		OutputDir: outputDir,
		Workers:   DefaultWorkers,
		now:       time.Now,
	}
}

// Run generates every (client, document type) pair. A failing job is
// recorded in its own result and never stops the others. Jobs that have not
// started when ctx is cancelled are recorded as failed.
func (o *Orchestrator) Run(ctx context.Context, actor *gate.Actor, req BatchRequest, onProgress ProgressFunc) (*BatchSummary, error) {
	if err := authorize(ctx, o.Gate, actor, gate.ActionBatch, gate.ResourceBatch); err != nil {
		return nil, err
	}
	if len(req.EntityIDs) == 0 {
		return nil, apperr.Validation("No clients selected: entityIds is empty")
	}
	if len(req.DocumentTypeIDs) == 0 {
		return nil, apperr.Validation("No document types selected: documentTypeIds is empty")
	}

	jobs, err := o.expand(ctx, req)
	if err != nil {
		return nil, err
	}
	log := o.Log.With(zap.Int("total", len(jobs)))
	log.Info("batch started")

	var (
		mu      sync.Mutex
		summary = &BatchSummary{Total: len(jobs), Reports: make([]BatchResult, 0, len(jobs))}
	)
	report := func(p Progress) {
		if onProgress != nil {
			onProgress(p)
		}
	}
	progress := func(current string, complete bool) Progress {
		return Progress{
			Total:      summary.Total,
			Completed:  summary.Successful + summary.Failed,
			Successful: summary.Successful,
			Failed:     summary.Failed,
			Current:    current,
			IsComplete: complete,
		}
	}
	record := func(res BatchResult) {
		mu.Lock()
		defer mu.Unlock()
		if res.Success {
			summary.Successful++
		} else {
			summary.Failed++
		}
		summary.Reports = append(summary.Reports, res)
	}

	workers := o.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	var eg errgroup.Group
	eg.SetLimit(workers)

	for _, job := range jobs {
		if o.DispatchDelay > 0 {
			select {
			case <-time.After(o.DispatchDelay):
			case <-ctx.Done():
			}
		}
		eg.Go(func() error {
			mu.Lock()
			report(progress(job.label(), false))
			mu.Unlock()

			record(o.runJob(ctx, actor, req, job, log))
			return nil
		})
	}
	_ = eg.Wait()

	mu.Lock()
	summary.Success = summary.Failed == 0
	report(progress("", true))
	mu.Unlock()

	o.Notifier.Notify(ctx, activity.Event{
		ActorID: actor.ID, ActionType: activity.ReportBatchGenerate,
		EntityType: "report",
		Metadata: map[string]any{
			"total":             summary.Total,
			"successful":        summary.Successful,
			"failed":            summary.Failed,
			"entity_ids":        req.EntityIDs,
			"document_type_ids": req.DocumentTypeIDs,
		},
	})
	if summary.Successful > 0 && o.Revealer != nil {
		o.Revealer.Reveal(o.OutputDir)
	}
	log.Info("batch finished", zap.Int("successful", summary.Successful), zap.Int("failed", summary.Failed))
	return summary, nil
}

// runJob generates and publishes one pair. Panics are turned into failures
// so one job cannot take the batch down.
func (o *Orchestrator) runJob(ctx context.Context, actor *gate.Actor, req BatchRequest, job batchJob, log *zap.Logger) (res BatchResult) {
	res = BatchResult{
		EntityID:         job.entityID,
		EntityName:       job.entityName,
		DocumentTypeID:   job.docTypeID,
		DocumentTypeName: job.docName,
	}
	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			res.Error = fmt.Sprintf("%s: job panicked: %v", apperr.KindRenderFailure, r)
			log.Error("batch job panicked", zap.String("job", job.label()), zap.Any("panic", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		res.Error = fmt.Sprintf("cancelled: %v", err)
		return res
	}
	draft, err := o.Generator.Generate(ctx, actor, GenerateRequest{
		DocumentTypeID: job.docTypeID,
		EntityID:       job.entityID,
		ManualValues:   req.ManualValues,
	})
	if err != nil {
		log.Warn("batch job failed", zap.String("job", job.label()), zap.Error(err))
		res.Error = err.Error()
		return res
	}
	pub := o.publish(ctx, draft, job, req.FinancialYear, log)
	res.Success = true
	res.RecordID = pub.RecordID
	res.Path = pub.Path
	return res
}

// publish renames a draft to its batch name and points the record at it.
// Failures keep the draft in place and are only logged.
func (o *Orchestrator) publish(ctx context.Context, draft *DraftOutput, job batchJob, fy string, log *zap.Logger) PublishedOutput {
	o.publishMu.Lock()
	defer o.publishMu.Unlock()

	pub := PublishedOutput{RecordID: draft.RecordID, Path: draft.Path, DraftPath: draft.Path}
	parts := []string{outpath.Sanitize(job.entityName), outpath.Sanitize(job.docName)}
	if strings.TrimSpace(fy) != "" {
		parts = append(parts, outpath.Sanitize(fy))
	}
	parts = append(parts, o.clock().Format("20060102_150405"))
	name := strings.Join(parts, "_") + draft.Ext

	target, err := outpath.EnsureUniquePath(filepath.Dir(draft.Path), name)
	if err != nil {
		log.Warn("could not allocate batch file name", zap.String("draft", draft.Path), zap.Error(err))
		return pub
	}
	if err := os.Rename(draft.Path, target); err != nil {
		log.Warn("could not rename generated document", zap.String("draft", draft.Path), zap.Error(err))
		return pub
	}
	err = o.DB.WithContext(ctx).Model(&models.GeneratedDocument{}).
		Where("id = ?", draft.RecordID).
		Update("file_path", target).Error
	if err != nil {
		log.Warn("could not update generated document path", zap.String("record_id", draft.RecordID), zap.Error(err))
		if rerr := os.Rename(target, draft.Path); rerr != nil {
			log.Error("could not restore draft after failed path update", zap.String("path", target), zap.Error(rerr))
			pub.Path = target
			pub.Moved = true
		}
		return pub
	}
	pub.Path = target
	pub.Moved = true
	return pub
}

// expand builds the job list, looking names up once for labels and file
// names. Unknown ids keep their id as label; generation reports them.
func (o *Orchestrator) expand(ctx context.Context, req BatchRequest) ([]batchJob, error) {
	var entities []models.Entity
	if err := o.DB.WithContext(ctx).Select("id", "name").Where("id IN ?", req.EntityIDs).Find(&entities).Error; err != nil {
		return nil, err
	}
	var docTypes []models.DocumentType
	if err := o.DB.WithContext(ctx).Select("id", "name").Where("id IN ?", req.DocumentTypeIDs).Find(&docTypes).Error; err != nil {
		return nil, err
	}
	entityNames := make(map[string]string, len(entities))
	for _, e := range entities {
		entityNames[e.ID] = e.Name
	}
	docNames := make(map[string]string, len(docTypes))
	for _, d := range docTypes {
		docNames[d.ID] = d.Name
	}
	nameOr := func(names map[string]string, id string) string {
		if n, ok := names[id]; ok {
			return n
		}
		return id
	}

	jobs := make([]batchJob, 0, len(req.EntityIDs)*len(req.DocumentTypeIDs))
	for _, eid := range req.EntityIDs {
		for _, did := range req.DocumentTypeIDs {
			jobs = append(jobs, batchJob{
				entityID:   eid,
				entityName: nameOr(entityNames, eid),
				docTypeID:  did,
				docName:    nameOr(docNames, did),
			})
		}
	}
	return jobs, nil
}

func (o *Orchestrator) clock() time.Time {
	if o.now == nil {
		return time.Now()
	}
	return o.now()
}
