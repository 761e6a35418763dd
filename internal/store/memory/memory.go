// Package memory is a map-backed store.Store used in tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avolkhov/mxchat-server/internal/store"
)

// Store keeps users and room rows in process memory.
type Store struct {
	mu     sync.Mutex
	nextID int64
	users  map[string]*store.User
	rooms  map[string]*store.Room
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users: make(map[string]*store.User),
		rooms: make(map[string]*store.Room),
	}
}

// CreateUser inserts a new user row.
func (s *Store) CreateUser(_ context.Context, userID, passwordHash string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; ok {
		return nil, fmt.Errorf("user %s already exists", userID)
	}
	s.nextID++
	user := &store.User{
		ID:           s.nextID,
		UserID:       userID,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	s.users[userID] = user
	copied := *user
	return &copied, nil
}

// GetUserByUserID retrieves a user by its fully-qualified id.
func (s *Store) GetUserByUserID(_ context.Context, userID string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

// InsertRoom records a newly created room.
func (s *Store) InsertRoom(_ context.Context, room *store.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.RoomID]; ok {
		return fmt.Errorf("room %s already exists", room.RoomID)
	}
	s.nextID++
	copied := *room
	copied.ID = s.nextID
	s.rooms[room.RoomID] = &copied
	return nil
}

// GetRoomByRoomID retrieves a room row by its fully-qualified id.
func (s *Store) GetRoomByRoomID(_ context.Context, roomID string) (*store.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *room
	return &copied, nil
}

// ListRooms returns all room rows.
func (s *Store) ListRooms(_ context.Context) ([]*store.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms := make([]*store.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		copied := *room
		rooms = append(rooms, &copied)
	}
	return rooms, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
