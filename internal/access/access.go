// Package access resolves who is calling and decides what they may do.
package access

import (
	"context"
	"strings"

	"littlelemon/internal/apperr"
	"littlelemon/internal/models"
)

// Capability is a set of permissions granted by group membership or the admin flag.
type Capability uint8

const (
	CapManager Capability = 1 << iota
	CapDeliveryCrew
	CapAdmin
)

func (c Capability) String() string {
	var names []string
	if c&CapAdmin != 0 {
		names = append(names, "admin")
	}
	if c&CapManager != 0 {
		names = append(names, models.GroupManager)
	}
	if c&CapDeliveryCrew != 0 {
		names = append(names, models.GroupDeliveryCrew)
	}
	if len(names) == 0 {
		return "customer"
	}
	return strings.Join(names, ",")
}

// CapabilitiesFor derives capabilities from the admin flag and group names.
func CapabilitiesFor(isAdmin bool, groups []string) Capability {
	var caps Capability
	if isAdmin {
		caps |= CapAdmin
	}
	for _, g := range groups {
		switch g {
		case models.GroupManager:
			caps |= CapManager
		case models.GroupDeliveryCrew:
			caps |= CapDeliveryCrew
		}
	}
	return caps
}

// Actor is the caller of a request. The zero Actor is anonymous.
type Actor struct {
	UserID   int64
	Username string
	Caps     Capability
}

func (a Actor) Authenticated() bool {
	return a.UserID != 0
}

// Has reports whether the actor holds c. Admin holds every capability.
func (a Actor) Has(c Capability) bool {
	if a.Caps&CapAdmin != 0 {
		return true
	}
	return a.Caps&c == c
}

func (a Actor) IsManager() bool {
	return a.Has(CapManager)
}

func (a Actor) IsDeliveryCrew() bool {
	return a.Has(CapDeliveryCrew)
}

// Name is used in logs and events.
func (a Actor) Name() string {
	if !a.Authenticated() {
		return "anonymous"
	}
	return a.Username
}

// Scope limits which orders and carts an actor can see.
type Scope int

const (
	ScopeOwn Scope = iota
	ScopeAssigned
	ScopeAll
)

// OrderScope: Manager and admin see all orders, delivery crew see orders assigned
// to them, everyone else sees their own.
func OrderScope(a Actor) Scope {
	switch {
	case a.IsManager():
		return ScopeAll
	case a.Caps&CapDeliveryCrew != 0:
		return ScopeAssigned
	default:
		return ScopeOwn
	}
}

// CanSeeUser reports whether a may read data owned by userID.
func CanSeeUser(a Actor, userID int64) bool {
	return a.IsManager() || (a.Authenticated() && a.UserID == userID)
}

type ctxKey struct{}

// WithActor stores a in ctx.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// FromContext returns the actor stored in ctx, or the anonymous actor.
func FromContext(ctx context.Context) Actor {
	a, _ := ctx.Value(ctxKey{}).(Actor)
	return a
}

// RequireAuthenticated fails with Unauthenticated for anonymous actors.
func RequireAuthenticated(a Actor) error {
	if !a.Authenticated() {
		return apperr.Unauthenticated("Authentication credentials were not provided.")
	}
	return nil
}
