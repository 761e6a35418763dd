package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/avolkhov/mxchat-server/internal/coordstore"
)

// ErrAliasInUse is returned when an alias is already reserved for another
// room. Callers must pick a different alias or omit one; the existing
// reservation is never overwritten.
var ErrAliasInUse = errors.New("room alias already taken")

// AliasAllocator reserves human-readable aliases for rooms. The conditional
// set on the coordination store is what makes reservation race-free across
// concurrent creations, including across processes.
type AliasAllocator struct {
	store coordstore.Store
}

// NewAliasAllocator creates an allocator over the given store.
func NewAliasAllocator(st coordstore.Store) *AliasAllocator {
	return &AliasAllocator{store: st}
}

// Reserve maps alias to roomID if the alias is free. There is no unreserve:
// an alias left behind by a failed creation is reclaimed by reconciliation,
// not by this allocator.
func (a *AliasAllocator) Reserve(ctx context.Context, alias, roomID string) error {
	ok, err := a.store.SetNX(ctx, coordstore.AliasKey(alias), roomID)
	if err != nil {
		return fmt.Errorf("reserve alias %s: %w", alias, err)
	}
	if !ok {
		return ErrAliasInUse
	}
	return nil
}

// Resolve returns the room id an alias points at, if any.
func (a *AliasAllocator) Resolve(ctx context.Context, alias string) (string, bool, error) {
	roomID, found, err := a.store.Get(ctx, coordstore.AliasKey(alias))
	if err != nil {
		return "", false, fmt.Errorf("resolve alias %s: %w", alias, err)
	}
	return roomID, found, nil
}
