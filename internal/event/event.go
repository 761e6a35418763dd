// Package event holds the room event model, the synthesizer that builds
// well-formed bootstrap events, and the appender that writes events into
// their room's ordered log.
package event

import (
	"encoding/json"
	"time"

	"github.com/avolkhov/mxchat-server/internal/id"
)

// Event types understood by this server.
const (
	TypeCreate  = "m.room.create"
	TypeMember  = "m.room.member"
	TypeMessage = "m.room.message"
)

// Membership states carried by m.room.member events.
const (
	MembershipJoin   = "join"
	MembershipInvite = "invite"
	MembershipLeave  = "leave"
)

// Event is an immutable room event. Once appended it is never mutated or
// deleted; corrections are modeled as new events. StateKey is non-nil
// exactly for state events (it may point at an empty string).
type Event struct {
	EventID        string          `json:"event_id"`
	RoomID         string          `json:"room_id"`
	Sender         string          `json:"sender"`
	Type           string          `json:"type"`
	StateKey       *string         `json:"state_key,omitempty"`
	Content        json.RawMessage `json:"content"`
	OriginServerTS int64           `json:"origin_server_ts"`
}

// IsState reports whether the event carries room state.
func (e *Event) IsState() bool {
	return e.StateKey != nil
}

// CreateContent is the payload of an m.room.create event.
type CreateContent struct {
	Creator  string `json:"creator"`
	Federate bool   `json:"m.federate"`
}

// MemberContent is the payload of an m.room.member event.
type MemberContent struct {
	Membership string `json:"membership"`
}

// Synthesizer builds events for a given homeserver. It does no I/O; event
// ids are assigned at synthesis time so the same event value serves both
// staging and the eventual log entry.
type Synthesizer struct {
	Server string
}

// NewCreateEvent builds the m.room.create state event that bootstraps a
// room. Federation is allowed by default.
func (s Synthesizer) NewCreateEvent(roomID, creator string, ts time.Time) Event {
	content, _ := json.Marshal(CreateContent{Creator: creator, Federate: true})
	stateKey := ""
	return Event{
		EventID:        id.NewEventID(s.Server),
		RoomID:         roomID,
		Sender:         creator,
		Type:           TypeCreate,
		StateKey:       &stateKey,
		Content:        content,
		OriginServerTS: ts.UnixMilli(),
	}
}

// NewMemberEvent builds an m.room.member state event describing target's
// membership. The state key is the target user id, which is what partitions
// membership state per user.
func (s Synthesizer) NewMemberEvent(roomID, sender, target, membership string, ts time.Time) Event {
	content, _ := json.Marshal(MemberContent{Membership: membership})
	stateKey := target
	return Event{
		EventID:        id.NewEventID(s.Server),
		RoomID:         roomID,
		Sender:         sender,
		Type:           TypeMember,
		StateKey:       &stateKey,
		Content:        content,
		OriginServerTS: ts.UnixMilli(),
	}
}

// NewTimelineEvent builds a non-state event (typically m.room.message) with
// a caller-supplied content payload.
func (s Synthesizer) NewTimelineEvent(roomID, sender, evType string, content json.RawMessage, ts time.Time) Event {
	return Event{
		EventID:        id.NewEventID(s.Server),
		RoomID:         roomID,
		Sender:         sender,
		Type:           evType,
		Content:        content,
		OriginServerTS: ts.UnixMilli(),
	}
}
