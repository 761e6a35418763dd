// Package room implements alias allocation and the room-creation pipeline:
// reserve the alias, stage the request, then append the bootstrap events to
// the room's ordered log.
package room

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/avolkhov/mxchat-server/internal/coordstore"
	"github.com/avolkhov/mxchat-server/internal/event"
	"github.com/avolkhov/mxchat-server/internal/id"
	"github.com/avolkhov/mxchat-server/internal/store"
)

// CreateRequest is a room-creation request as handed over by the transport
// layer. Raw carries the original request body verbatim; it is staged
// durably before any event is emitted so a half-completed creation can be
// diagnosed.
type CreateRequest struct {
	// Sender is the fully-qualified id of the creating user.
	Sender string

	// AliasName is the requested alias localpart, empty for none.
	AliasName string

	// Raw is the original request body.
	Raw json.RawMessage
}

// Creator orchestrates room creation. Each call runs the five steps in
// strict order and stops at the first failure; nothing is retried here.
type Creator struct {
	server   string
	store    coordstore.Store
	rooms    store.RoomStore
	aliases  *AliasAllocator
	synth    event.Synthesizer
	appender *event.Appender
	log      *zerolog.Logger
	now      func() time.Time
}

// NewCreator wires a creator for the given homeserver name.
func NewCreator(server string, cs coordstore.Store, rooms store.RoomStore, logger *zerolog.Logger) *Creator {
	return &Creator{
		server:   server,
		store:    cs,
		rooms:    rooms,
		aliases:  NewAliasAllocator(cs),
		synth:    event.Synthesizer{Server: server},
		appender: event.NewAppender(cs, logger),
		log:      logger,
		now:      time.Now,
	}
}

// CreateRoom allocates a room id, reserves the alias when one was
// requested, stages the request body, and appends the m.room.create event
// followed by the creator's join event. The create event is in the log
// before the join event is written; readers never observe the reverse.
func (c *Creator) CreateRoom(ctx context.Context, req CreateRequest) (string, error) {
	roomID := id.NewRoomID(c.server)

	alias := ""
	if req.AliasName != "" {
		alias = id.NormalizeAlias(req.AliasName, c.server)
		if err := c.aliases.Reserve(ctx, alias, roomID); err != nil {
			return "", err
		}
	}

	raw := req.Raw
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := c.store.Put(ctx, coordstore.PendingKey(roomID), string(raw)); err != nil {
		return "", fmt.Errorf("stage pending request: %w", err)
	}

	ts := c.now()
	createEv := c.synth.NewCreateEvent(roomID, req.Sender, ts)
	if _, err := c.appender.Process(ctx, createEv); err != nil {
		return "", fmt.Errorf("append create event: %w", err)
	}

	joinEv := c.synth.NewMemberEvent(roomID, req.Sender, req.Sender, event.MembershipJoin, c.now())
	if _, err := c.appender.Process(ctx, joinEv); err != nil {
		return "", fmt.Errorf("append join event: %w", err)
	}

	// Dual write: the descriptive room row. The event log above is already
	// durable, so a failure here is an orphaned row, not a lost room; the
	// pending key stays behind as the reconciliation record.
	if err := c.rooms.InsertRoom(ctx, &store.Room{
		RoomID:    roomID,
		Alias:     alias,
		Creator:   req.Sender,
		CreatedAt: ts,
	}); err != nil {
		c.log.Warn().Err(err).Str("room_id", roomID).Msg("room row insert failed, pending key kept for reconciliation")
	}

	c.log.Info().
		Str("room_id", roomID).
		Str("creator", req.Sender).
		Str("alias", alias).
		Msg("room created")

	return roomID, nil
}
