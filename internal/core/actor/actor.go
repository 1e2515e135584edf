// Package actor carries the acting user through context for audit and logging.
package actor

import "context"

// Actor identifies who performs an operation. The core does not authenticate;
// callers supply an opaque, already-authenticated identity.
type Actor struct {
	ID   string
	Name string
}

type actorKey struct{}

// WithActor stores the actor in context.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// FromContext returns the actor from context, or a zero Actor.
func FromContext(ctx context.Context) Actor {
	if a, ok := ctx.Value(actorKey{}).(Actor); ok {
		return a
	}
	return Actor{}
}

// System is the actor recorded for internally initiated operations
// (seeding, maintenance jobs).
var System = Actor{ID: "system", Name: "system"}
