// Package activity records audit events and reveals output folders. Both are
// side effects: implementations log their own failures and never return
// them to the caller.
package activity

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/diewo77/docbatch/internal/models"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Action types emitted by the services.
const (
	ReportGenerate      = "REPORT_GENERATE"
	ReportBatchGenerate = "REPORT_BATCH_GENERATE"
	ReportDelete        = "REPORT_DELETE"
	ClientCreate        = "CLIENT_CREATE"
	ClientUpdate        = "CLIENT_UPDATE"
	ClientDelete        = "CLIENT_DELETE"
	ClientTypeCreate    = "CLIENT_TYPE_CREATE"
	AttributeCreate     = "ATTRIBUTE_CREATE"
	AttributeUpdate     = "ATTRIBUTE_UPDATE"
	AttributeDelete     = "ATTRIBUTE_DELETE"
	FormCreate          = "FORM_CREATE"
	FormUpdate          = "FORM_UPDATE"
	FormDelete          = "FORM_DELETE"
)

// Event is one audit entry.
type Event struct {
	ActorID    string
	ActionType string
	EntityType string
	EntityID   string
	Metadata   map[string]any
}

// Notifier accepts fire-and-forget events. Notify must not block on, or
// report, its own failures.
type Notifier interface {
	Notify(ctx context.Context, e Event)
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) {}

// DBNotifier writes events to the activity_logs table.
type DBNotifier struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewDBNotifier(db *gorm.DB, log *zap.Logger) *DBNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &DBNotifier{db: db, log: log}
}

func (n *DBNotifier) Notify(ctx context.Context, e Event) {
	row := models.ActivityLog{
		ActorID:    e.ActorID,
		ActionType: e.ActionType,
		EntityType: e.EntityType,
	}
	if e.EntityID != "" {
		id := e.EntityID
		row.EntityID = &id
	}
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			n.log.Warn("activity metadata not encodable", zap.String("action", e.ActionType), zap.Error(err))
		} else {
			row.Metadata = datatypes.JSON(b)
		}
	}
	if err := n.db.WithContext(ctx).Create(&row).Error; err != nil {
		n.log.Warn("failed to record activity", zap.String("action", e.ActionType), zap.Error(err))
	}
}

// Recorder keeps events in memory. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Notify(_ context.Context, e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Of returns the recorded events with the given action type.
func (r *Recorder) Of(actionType string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.ActionType == actionType {
			out = append(out, e)
		}
	}
	return out
}
