package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/avolkhov/mxchat-server/internal/coordstore"
	"github.com/avolkhov/mxchat-server/internal/coordstore/memory"
	"github.com/avolkhov/mxchat-server/internal/log"
)

func TestAppender_WritesEntryWithEventJSON(t *testing.T) {
	st := memory.New()
	app := NewAppender(st, log.Nop())
	synth := Synthesizer{Server: "example.org"}
	ctx := context.Background()

	ev := synth.NewCreateEvent("!room:example.org", "@alice:example.org", time.Now())
	entryID, err := app.Process(ctx, ev)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if entryID != 1 {
		t.Fatalf("first entry id = %d", entryID)
	}

	entries, err := st.ReadRange(ctx, coordstore.StateLogKey("!room:example.org"), 1)
	if err != nil {
		t.Fatalf("ReadRange: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Fields[FieldType] != TypeCreate {
		t.Fatalf("type field = %q", entries[0].Fields[FieldType])
	}

	var stored Event
	if err := json.Unmarshal([]byte(entries[0].Fields[FieldEvent]), &stored); err != nil {
		t.Fatalf("unmarshal stored event: %v", err)
	}
	if stored.EventID != ev.EventID || stored.RoomID != ev.RoomID {
		t.Fatalf("stored event differs: %+v", stored)
	}
}

func TestAppender_RejectsIncompleteEvents(t *testing.T) {
	st := memory.New()
	app := NewAppender(st, log.Nop())
	ctx := context.Background()

	base := Event{
		EventID: "$e:example.org",
		RoomID:  "!room:example.org",
		Sender:  "@alice:example.org",
		Type:    TypeMessage,
		Content: json.RawMessage(`{}`),
	}

	cases := []struct {
		name   string
		mutate func(*Event)
	}{
		{"missing event_id", func(e *Event) { e.EventID = "" }},
		{"missing room_id", func(e *Event) { e.RoomID = "" }},
		{"missing sender", func(e *Event) { e.Sender = "" }},
		{"missing type", func(e *Event) { e.Type = "" }},
	}
	for _, tc := range cases {
		ev := base
		tc.mutate(&ev)
		if _, err := app.Process(ctx, ev); !errors.Is(err, ErrInvalidEvent) {
			t.Fatalf("%s: expected ErrInvalidEvent, got %v", tc.name, err)
		}
	}

	// Nothing may have reached the log.
	entries, err := st.ReadRange(ctx, coordstore.StateLogKey("!room:example.org"), 1)
	if err != nil {
		t.Fatalf("ReadRange: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("rejected events leaked into the log: %+v", entries)
	}
}

func TestAppender_SequentialEventsGetSequentialIDs(t *testing.T) {
	st := memory.New()
	app := NewAppender(st, log.Nop())
	synth := Synthesizer{Server: "example.org"}
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		ev := synth.NewTimelineEvent("!room:example.org", "@alice:example.org", TypeMessage, json.RawMessage(`{}`), time.Now())
		entryID, err := app.Process(ctx, ev)
		if err != nil {
			t.Fatalf("Process %d: %v", i, err)
		}
		if entryID != coordstore.EntryID(i) {
			t.Fatalf("entry %d got id %d", i, entryID)
		}
	}
}
