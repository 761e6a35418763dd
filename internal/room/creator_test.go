package room

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/avolkhov/mxchat-server/internal/coordstore"
	coordmem "github.com/avolkhov/mxchat-server/internal/coordstore/memory"
	"github.com/avolkhov/mxchat-server/internal/event"
	"github.com/avolkhov/mxchat-server/internal/log"
	storemem "github.com/avolkhov/mxchat-server/internal/store/memory"
)

type fixture struct {
	coord   *coordmem.Store
	rooms   *storemem.Store
	creator *Creator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	coord := coordmem.New()
	rooms := storemem.New()
	return &fixture{
		coord:   coord,
		rooms:   rooms,
		creator: NewCreator("example.org", coord, rooms, log.Nop()),
	}
}

func decodeLoggedEvent(t *testing.T, entry coordstore.Entry) event.Event {
	t.Helper()
	var ev event.Event
	if err := json.Unmarshal([]byte(entry.Fields[event.FieldEvent]), &ev); err != nil {
		t.Fatalf("decode logged event: %v", err)
	}
	return ev
}

func TestCreateRoom_WithAlias(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	raw := json.RawMessage(`{"room_alias_name":"lounge"}`)
	roomID, err := f.creator.CreateRoom(ctx, CreateRequest{
		Sender:    "@alice:example.org",
		AliasName: "lounge",
		Raw:       raw,
	})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if !strings.HasPrefix(roomID, "!") || !strings.HasSuffix(roomID, ":example.org") {
		t.Fatalf("malformed room id %q", roomID)
	}

	// Alias maps to the new room.
	target, found, err := f.coord.Get(ctx, coordstore.AliasKey("#lounge:example.org"))
	if err != nil || !found {
		t.Fatalf("alias lookup: found=%v err=%v", found, err)
	}
	if target != roomID {
		t.Fatalf("alias points at %q, want %q", target, roomID)
	}

	// Request body staged under the pending key.
	pending, found, err := f.coord.Get(ctx, coordstore.PendingKey(roomID))
	if err != nil || !found {
		t.Fatalf("pending lookup: found=%v err=%v", found, err)
	}
	if pending != string(raw) {
		t.Fatalf("pending body %q, want %q", pending, raw)
	}

	// Log holds create then join, in that order.
	entries, err := f.coord.ReadRange(ctx, coordstore.StateLogKey(roomID), 1)
	if err != nil {
		t.Fatalf("ReadRange: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 events, got %d", len(entries))
	}

	createEv := decodeLoggedEvent(t, entries[0])
	if createEv.Type != event.TypeCreate {
		t.Fatalf("first event type %q", createEv.Type)
	}
	if *createEv.StateKey != "" {
		t.Fatalf("create state_key %q", *createEv.StateKey)
	}
	var content event.CreateContent
	if err := json.Unmarshal(createEv.Content, &content); err != nil {
		t.Fatalf("create content: %v", err)
	}
	if content.Creator != "@alice:example.org" {
		t.Fatalf("creator %q", content.Creator)
	}

	joinEv := decodeLoggedEvent(t, entries[1])
	if joinEv.Type != event.TypeMember {
		t.Fatalf("second event type %q", joinEv.Type)
	}
	if *joinEv.StateKey != "@alice:example.org" {
		t.Fatalf("join state_key must be the joining user, got %q", *joinEv.StateKey)
	}
	var member event.MemberContent
	if err := json.Unmarshal(joinEv.Content, &member); err != nil {
		t.Fatalf("member content: %v", err)
	}
	if member.Membership != event.MembershipJoin {
		t.Fatalf("membership %q", member.Membership)
	}

	// Dual-written room row.
	row, err := f.rooms.GetRoomByRoomID(ctx, roomID)
	if err != nil {
		t.Fatalf("room row: %v", err)
	}
	if row.Alias != "#lounge:example.org" || row.Creator != "@alice:example.org" {
		t.Fatalf("room row: %+v", row)
	}
}

func TestCreateRoom_WithoutAlias(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	roomID, err := f.creator.CreateRoom(ctx, CreateRequest{Sender: "@bob:example.org"})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	entries, err := f.coord.ReadRange(ctx, coordstore.StateLogKey(roomID), 1)
	if err != nil {
		t.Fatalf("ReadRange: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 events, got %d", len(entries))
	}

	// Empty body still gets staged.
	pending, found, err := f.coord.Get(ctx, coordstore.PendingKey(roomID))
	if err != nil || !found {
		t.Fatalf("pending lookup: found=%v err=%v", found, err)
	}
	if pending != "{}" {
		t.Fatalf("pending body %q", pending)
	}

	row, err := f.rooms.GetRoomByRoomID(ctx, roomID)
	if err != nil {
		t.Fatalf("room row: %v", err)
	}
	if row.Alias != "" {
		t.Fatalf("alias should be empty, got %q", row.Alias)
	}
}

func TestCreateRoom_DuplicateAliasRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.creator.CreateRoom(ctx, CreateRequest{Sender: "@alice:example.org", AliasName: "lounge"})
	if err != nil {
		t.Fatalf("first CreateRoom: %v", err)
	}

	_, err = f.creator.CreateRoom(ctx, CreateRequest{Sender: "@bob:example.org", AliasName: "lounge"})
	if !errors.Is(err, ErrAliasInUse) {
		t.Fatalf("expected ErrAliasInUse, got %v", err)
	}

	// The original mapping is untouched.
	target, found, err := f.coord.Get(ctx, coordstore.AliasKey("#lounge:example.org"))
	if err != nil || !found {
		t.Fatalf("alias lookup: found=%v err=%v", found, err)
	}
	if target != first {
		t.Fatalf("alias rebound to %q, want %q", target, first)
	}
}

func TestCreateRoom_ConcurrentSameAliasOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const racers = 8
	var wg sync.WaitGroup
	results := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.creator.CreateRoom(ctx, CreateRequest{Sender: "@alice:example.org", AliasName: "contested"})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var won, lost int
	for err := range results {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrAliasInUse):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 || lost != racers-1 {
		t.Fatalf("won=%d lost=%d", won, lost)
	}
}

func TestCreateRoom_DistinctRoomIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		roomID, err := f.creator.CreateRoom(ctx, CreateRequest{Sender: "@alice:example.org"})
		if err != nil {
			t.Fatalf("CreateRoom: %v", err)
		}
		if seen[roomID] {
			t.Fatalf("duplicate room id %q", roomID)
		}
		seen[roomID] = true
	}
}

func TestAliasAllocator_Resolve(t *testing.T) {
	coord := coordmem.New()
	alloc := NewAliasAllocator(coord)
	ctx := context.Background()

	if _, found, err := alloc.Resolve(ctx, "#nowhere:example.org"); err != nil || found {
		t.Fatalf("resolve unknown: found=%v err=%v", found, err)
	}

	if err := alloc.Reserve(ctx, "#lounge:example.org", "!room:example.org"); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	roomID, found, err := alloc.Resolve(ctx, "#lounge:example.org")
	if err != nil || !found {
		t.Fatalf("resolve: found=%v err=%v", found, err)
	}
	if roomID != "!room:example.org" {
		t.Fatalf("resolved %q", roomID)
	}
}
