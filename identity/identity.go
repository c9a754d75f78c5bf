// Package identity resolves the principal under which tasks are created.
// The identity provider itself is an external collaborator; this package
// only knows "returns an identity or fails".
package identity

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Principal is the opaque, stable identifier of the submitting identity.
type Principal struct {
	ID string
}

type Provider interface {
	Resolve(ctx context.Context) (Principal, error)
}

// Anonymous issues a process-stable anonymous principal, resolved once and
// cached, mirroring an anonymous sign-in.
type Anonymous struct {
	once      sync.Once
	principal Principal
}

func NewAnonymous() *Anonymous {
	return &Anonymous{}
}

func (a *Anonymous) Resolve(ctx context.Context) (Principal, error) {
	a.once.Do(func() {
		a.principal = Principal{ID: uuid.New().String()}
	})
	return a.principal, nil
}

// Static returns a fixed principal; used for wiring a pre-authenticated
// identity or tests.
type Static struct {
	Principal Principal
}

func (s Static) Resolve(ctx context.Context) (Principal, error) {
	return s.Principal, nil
}
