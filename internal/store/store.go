package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// User represents an account row.
type User struct {
	ID           int64
	UserID       string // fully-qualified, e.g. "@alice:example.org"
	PasswordHash string
	CreatedAt    time.Time
}

// Room represents the relational side of a room: the descriptive row kept
// next to the room's event log. The log itself lives in the coordination
// store and is the ordering authority.
type Room struct {
	ID        int64
	RoomID    string // fully-qualified, e.g. "!abc:example.org"
	Alias     string // fully-qualified alias or empty
	Creator   string
	CreatedAt time.Time
}

// UserStore handles account persistence.
type UserStore interface {
	// CreateUser inserts a new user row.
	CreateUser(ctx context.Context, userID, passwordHash string) (*User, error)

	// GetUserByUserID retrieves a user by its fully-qualified id.
	GetUserByUserID(ctx context.Context, userID string) (*User, error)
}

// RoomStore handles room row persistence.
type RoomStore interface {
	// InsertRoom records a newly created room.
	InsertRoom(ctx context.Context, room *Room) error

	// GetRoomByRoomID retrieves a room row by its fully-qualified id.
	GetRoomByRoomID(ctx context.Context, roomID string) (*Room, error)

	// ListRooms returns all room rows.
	ListRooms(ctx context.Context) ([]*Room, error)
}

// Store aggregates the relational interfaces.
type Store interface {
	UserStore
	RoomStore

	// Close closes the underlying database connection.
	Close() error
}
