package gate

import "context"

// Roles understood by ElevatedPolicy.
const (
	RoleElevated = "ADMIN"
	RoleUser     = "USER"
)

// Actor is the operator performing a call.
type Actor struct {
	ID   string
	Name string
	Role string
}

// Elevated reports whether the actor holds the elevated role.
func (a *Actor) Elevated() bool { return a != nil && a.Role == RoleElevated }

// ActorResolver resolves an actor id to an Actor.
type ActorResolver interface {
	Resolve(ctx context.Context, id string) (*Actor, error)
}

// StaticResolver is an in-memory resolver, handy for tests and for a fixed
// operator configured at start-up.
type StaticResolver struct {
	actors map[string]*Actor
}

func NewStaticResolver(actors ...*Actor) *StaticResolver {
	r := &StaticResolver{actors: make(map[string]*Actor)}
	for _, a := range actors {
		r.Set(a)
	}
	return r
}

// Set registers or replaces an actor.
func (r *StaticResolver) Set(a *Actor) { r.actors[a.ID] = a }

// Resolve returns ErrUnknownActor when id is not registered.
func (r *StaticResolver) Resolve(_ context.Context, id string) (*Actor, error) {
	if a, ok := r.actors[id]; ok {
		return a, nil
	}
	return nil, ErrUnknownActor
}
