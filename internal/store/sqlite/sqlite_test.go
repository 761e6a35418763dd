package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/avolkhov/mxchat-server/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestCreateUser_AndGet(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	user, err := st.CreateUser(ctx, "@alice:example.org", "hashed")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.ID == 0 || user.UserID != "@alice:example.org" || user.PasswordHash != "hashed" {
		t.Fatalf("unexpected user: %+v", user)
	}

	got, err := st.GetUserByUserID(ctx, "@alice:example.org")
	if err != nil {
		t.Fatalf("GetUserByUserID: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("ids differ: %d vs %d", got.ID, user.ID)
	}
}

func TestCreateUser_DuplicateFails(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if _, err := st.CreateUser(ctx, "@alice:example.org", "h1"); err != nil {
		t.Fatalf("first CreateUser: %v", err)
	}
	if _, err := st.CreateUser(ctx, "@alice:example.org", "h2"); err == nil {
		t.Fatalf("duplicate user id must fail")
	}
}

func TestGetUserByUserID_NotFound(t *testing.T) {
	st := newTestStore(t)
	if _, err := st.GetUserByUserID(context.Background(), "@nobody:example.org"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInsertRoom_AndGet(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	room := &store.Room{
		RoomID:    "!abc:example.org",
		Alias:     "#lounge:example.org",
		Creator:   "@alice:example.org",
		CreatedAt: time.Now().UTC(),
	}
	if err := st.InsertRoom(ctx, room); err != nil {
		t.Fatalf("InsertRoom: %v", err)
	}

	got, err := st.GetRoomByRoomID(ctx, "!abc:example.org")
	if err != nil {
		t.Fatalf("GetRoomByRoomID: %v", err)
	}
	if got.Alias != room.Alias || got.Creator != room.Creator {
		t.Fatalf("unexpected room: %+v", got)
	}
}

func TestInsertRoom_DuplicateRoomIDFails(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	room := &store.Room{RoomID: "!abc:example.org", Creator: "@alice:example.org", CreatedAt: time.Now()}
	if err := st.InsertRoom(ctx, room); err != nil {
		t.Fatalf("first InsertRoom: %v", err)
	}
	if err := st.InsertRoom(ctx, room); err == nil {
		t.Fatalf("duplicate room id must fail")
	}
}

func TestGetRoomByRoomID_NotFound(t *testing.T) {
	st := newTestStore(t)
	if _, err := st.GetRoomByRoomID(context.Background(), "!nope:example.org"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListRooms_NewestFirst(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"!a:x", "!b:x", "!c:x"} {
		if err := st.InsertRoom(ctx, &store.Room{RoomID: id, Creator: "@alice:x", CreatedAt: time.Now()}); err != nil {
			t.Fatalf("InsertRoom %s: %v", id, err)
		}
	}

	rooms, err := st.ListRooms(ctx)
	if err != nil {
		t.Fatalf("ListRooms: %v", err)
	}
	if len(rooms) != 3 {
		t.Fatalf("expected 3 rooms, got %d", len(rooms))
	}
	if rooms[0].RoomID != "!c:x" || rooms[2].RoomID != "!a:x" {
		t.Fatalf("unexpected order: %s ... %s", rooms[0].RoomID, rooms[2].RoomID)
	}
}
