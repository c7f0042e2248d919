package domain

import "fmt"

// ActorKind discriminates the ActorRef variants
type ActorKind string

const (
	ActorSystem        ActorKind = "system"
	ActorNamed         ActorKind = "named"
	ActorAuthenticated ActorKind = "authenticated"
)

// ActorRef identifies who performed a state change. The engine itself acts as
// the system actor; review actions carry a named or authenticated user.
type ActorRef struct {
	Kind ActorKind `json:"kind"`
	Name string    `json:"name,omitempty"`
	ID   string    `json:"id,omitempty"`
}

// SystemActor returns the actor used for automated engine mutations.
func SystemActor() ActorRef {
	return ActorRef{Kind: ActorSystem}
}

// NamedActor returns an actor for a free-text user name.
func NamedActor(name string) ActorRef {
	return ActorRef{Kind: ActorNamed, Name: name}
}

// AuthenticatedActor returns an actor for an authenticated user id.
func AuthenticatedActor(id string) ActorRef {
	return ActorRef{Kind: ActorAuthenticated, ID: id}
}

// String renders the actor for audit note storage.
func (a ActorRef) String() string {
	switch a.Kind {
	case ActorNamed:
		return a.Name
	case ActorAuthenticated:
		return fmt.Sprintf("user:%s", a.ID)
	default:
		return "system"
	}
}
