package gate

import "context"

// Policy defines authorization rules for a resource type.
type Policy[U any] interface {
	// Can returns true if user is authorized to perform action on resource.
	// resource may be nil for list/create checks.
	Can(ctx context.Context, user U, action Action, resource any) bool
}

// ElevatedPolicy lets any known actor read and generate, and reserves every
// other action for elevated actors.
type ElevatedPolicy struct{}

func (ElevatedPolicy) Can(_ context.Context, a *Actor, action Action, _ any) bool {
	if a == nil || a.ID == "" {
		return false
	}
	if action.ReadOnly() {
		return true
	}
	return a.Elevated()
}

// Resource types guarded by the default gate.
const (
	ResourceEntityType   = "entity_type"
	ResourceAttribute    = "attribute"
	ResourceEntity       = "entity"
	ResourceDocumentType = "document_type"
	ResourceReport       = "report"
	ResourceBatch        = "batch"
	ResourceCategory     = "category"
	ResourceUser         = "user"
)

// Default returns a gate with ElevatedPolicy registered for every resource.
func Default() *Gate[*Actor] {
	g := NewGate[*Actor]()
	for _, r := range []string{
		ResourceEntityType, ResourceAttribute, ResourceEntity,
		ResourceDocumentType, ResourceReport, ResourceBatch, ResourceCategory,
		ResourceUser,
	} {
		g.Register(r, ElevatedPolicy{})
	}
	return g
}
