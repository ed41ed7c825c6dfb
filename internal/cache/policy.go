// Package cache memoizes subtask results by exact subtask text.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ShayCichocki/quoteflow/pkg/models"
)

// Scope selects how long cached quotes live.
type Scope string

const (
	// ScopeTurn keeps entries until Reset is called at the end of a turn.
	ScopeTurn Scope = "turn"
	// ScopeSession keeps entries across turns, bounded by capacity and TTL.
	ScopeSession Scope = "session"
	// ScopePersistent reads through and writes through a Store.
	ScopePersistent Scope = "persistent"
)

// Valid returns true if the scope is a known value.
func (s Scope) Valid() bool {
	switch s {
	case ScopeTurn, ScopeSession, ScopePersistent:
		return true
	default:
		return false
	}
}

// ParseScope converts a config string to a Scope. Empty means turn.
func ParseScope(s string) (Scope, error) {
	if s == "" {
		return ScopeTurn, nil
	}
	scope := Scope(s)
	if !scope.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidScope, s)
	}
	return scope, nil
}

// Policy describes the lifetime of cached entries.
type Policy struct {
	Scope Scope
	// Capacity bounds session-scoped entries. Zero means unbounded.
	Capacity int
	// TTL expires session-scoped entries. Zero means no expiry.
	TTL time.Duration
}

// TurnPolicy returns the default single-turn policy.
func TurnPolicy() Policy {
	return Policy{Scope: ScopeTurn}
}

// Store is durable quote storage used by the persistent scope.
type Store interface {
	GetQuote(ctx context.Context, subtask string) (models.TaskResult, bool, error)
	SaveQuote(ctx context.Context, result models.TaskResult) error
}

var (
	// ErrInvalidScope is returned for unknown scope names.
	ErrInvalidScope = errors.New("invalid cache scope")
	// ErrStoreRequired is returned when the persistent scope has no Store.
	ErrStoreRequired = errors.New("persistent cache scope requires a store")
	// ErrInvalidPolicy is returned for negative capacity or TTL.
	ErrInvalidPolicy = errors.New("invalid cache policy")
)

// Validate checks the policy.
func (p Policy) Validate() error {
	if !p.Scope.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidScope, p.Scope)
	}
	if p.Capacity < 0 {
		return fmt.Errorf("%w: negative capacity %d", ErrInvalidPolicy, p.Capacity)
	}
	if p.TTL < 0 {
		return fmt.Errorf("%w: negative ttl %s", ErrInvalidPolicy, p.TTL)
	}
	return nil
}
