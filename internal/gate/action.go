package gate

// Action describes the kind of operation an actor wants to perform.
type Action string

const (
	ActionView     Action = "view"
	ActionList     Action = "list"
	ActionGenerate Action = "generate"
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionBatch    Action = "batch"
)

// ReadOnly reports whether the action leaves stored data untouched, apart
// from recording a generated document.
func (a Action) ReadOnly() bool {
	return a == ActionView || a == ActionList || a == ActionGenerate
}
