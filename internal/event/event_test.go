package event

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNewCreateEvent_Shape(t *testing.T) {
	synth := Synthesizer{Server: "example.org"}
	ts := time.UnixMilli(1700000000000)

	ev := synth.NewCreateEvent("!room:example.org", "@alice:example.org", ts)

	if ev.Type != TypeCreate {
		t.Fatalf("type = %q", ev.Type)
	}
	if !strings.HasPrefix(ev.EventID, "$") || !strings.HasSuffix(ev.EventID, ":example.org") {
		t.Fatalf("malformed event id %q", ev.EventID)
	}
	if ev.RoomID != "!room:example.org" || ev.Sender != "@alice:example.org" {
		t.Fatalf("room/sender: %q %q", ev.RoomID, ev.Sender)
	}
	if !ev.IsState() || *ev.StateKey != "" {
		t.Fatalf("create event must be state with empty state_key, got %v", ev.StateKey)
	}
	if ev.OriginServerTS != 1700000000000 {
		t.Fatalf("origin_server_ts = %d", ev.OriginServerTS)
	}

	var content CreateContent
	if err := json.Unmarshal(ev.Content, &content); err != nil {
		t.Fatalf("unmarshal content: %v", err)
	}
	if content.Creator != "@alice:example.org" || !content.Federate {
		t.Fatalf("content: %+v", content)
	}
}

func TestNewMemberEvent_StateKeyIsTargetUser(t *testing.T) {
	synth := Synthesizer{Server: "example.org"}

	ev := synth.NewMemberEvent("!room:example.org", "@alice:example.org", "@bob:example.org", MembershipInvite, time.Now())

	if ev.Type != TypeMember {
		t.Fatalf("type = %q", ev.Type)
	}
	if !ev.IsState() || *ev.StateKey != "@bob:example.org" {
		t.Fatalf("state_key must be the target user, got %v", ev.StateKey)
	}

	var content MemberContent
	if err := json.Unmarshal(ev.Content, &content); err != nil {
		t.Fatalf("unmarshal content: %v", err)
	}
	if content.Membership != MembershipInvite {
		t.Fatalf("membership = %q", content.Membership)
	}
}

func TestNewMemberEvent_SelfJoinKeysOnSender(t *testing.T) {
	synth := Synthesizer{Server: "example.org"}

	ev := synth.NewMemberEvent("!room:example.org", "@alice:example.org", "@alice:example.org", MembershipJoin, time.Now())

	if *ev.StateKey != "@alice:example.org" {
		t.Fatalf("self-join state_key = %q", *ev.StateKey)
	}
	if *ev.StateKey == ev.RoomID {
		t.Fatalf("state_key must never be the room id")
	}
}

func TestNewTimelineEvent_NotState(t *testing.T) {
	synth := Synthesizer{Server: "example.org"}
	content := json.RawMessage(`{"msgtype":"m.text","body":"hi"}`)

	ev := synth.NewTimelineEvent("!room:example.org", "@alice:example.org", TypeMessage, content, time.Now())

	if ev.IsState() {
		t.Fatalf("timeline event must not carry a state key")
	}
	if string(ev.Content) != string(content) {
		t.Fatalf("content altered: %s", ev.Content)
	}
}

func TestEvent_JSONOmitsStateKeyForTimeline(t *testing.T) {
	synth := Synthesizer{Server: "example.org"}
	ev := synth.NewTimelineEvent("!room:example.org", "@alice:example.org", TypeMessage, json.RawMessage(`{}`), time.Now())

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "state_key") {
		t.Fatalf("state_key serialized for timeline event: %s", data)
	}
}
