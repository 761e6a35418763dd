package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/avolkhov/mxchat-server/internal/config"
	"github.com/avolkhov/mxchat-server/internal/coordstore"
	"github.com/avolkhov/mxchat-server/internal/event"
)

// EventHandlers provides the generic event entry points: send, invite, and
// the long-poll event stream. All of them funnel through the same appender
// and the same per-room log.
type EventHandlers struct {
	store    coordstore.Store
	synth    event.Synthesizer
	appender *event.Appender
	cfg      *config.Config
	log      *zerolog.Logger
}

// NewEventHandlers creates a new event handlers instance.
func NewEventHandlers(st coordstore.Store, synth event.Synthesizer, appender *event.Appender, cfg *config.Config, logger *zerolog.Logger) *EventHandlers {
	return &EventHandlers{
		store:    st,
		synth:    synth,
		appender: appender,
		cfg:      cfg,
		log:      logger,
	}
}

// SendResponse carries the id of a freshly appended event.
type SendResponse struct {
	EventID string `json:"event_id"`
}

// SendEvent appends a timeline event with a caller-supplied content payload.
// The transaction id in the path is accepted but not used for deduplication.
// PUT /_matrix/client/r0/rooms/:roomId/send/:eventType/:txnId
func (h *EventHandlers) SendEvent(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, errcodeMissingToken, "unauthorized")
		return
	}

	roomID := c.Param("roomId")
	evType := c.Param("eventType")

	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxEventBytes))
	if err != nil {
		writeError(c, http.StatusBadRequest, errcodeNotJSON, "unreadable request body")
		return
	}
	if !json.Valid(raw) {
		writeError(c, http.StatusBadRequest, errcodeNotJSON, "content is not valid JSON")
		return
	}

	ev := h.synth.NewTimelineEvent(roomID, userID, evType, raw, time.Now())
	if _, err := h.appender.Process(c.Request.Context(), ev); err != nil {
		h.writeAppendError(c, err)
		return
	}

	c.JSON(http.StatusOK, SendResponse{EventID: ev.EventID})
}

// InviteRequest names the user being invited.
type InviteRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// Invite appends an m.room.member invite event for the named user.
// POST /_matrix/client/r0/rooms/:roomId/invite
func (h *EventHandlers) Invite(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, errcodeMissingToken, "unauthorized")
		return
	}

	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, errcodeBadJSON, "user_id is required")
		return
	}

	roomID := c.Param("roomId")
	ev := h.synth.NewMemberEvent(roomID, userID, req.UserID, event.MembershipInvite, time.Now())
	if _, err := h.appender.Process(c.Request.Context(), ev); err != nil {
		h.writeAppendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}

func (h *EventHandlers) writeAppendError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, event.ErrInvalidEvent):
		writeError(c, http.StatusBadRequest, errcodeBadJSON, err.Error())
	case errors.Is(err, coordstore.ErrUnavailable):
		h.log.Error().Err(err).Msg("coordination store unavailable")
		writeError(c, http.StatusBadGateway, errcodeUnknown, "storage unavailable")
	default:
		h.log.Error().Err(err).Msg("failed to append event")
		writeError(c, http.StatusInternalServerError, errcodeUnknown, "internal server error")
	}
}

// EventsResponse is the long-poll chunk: events after the start token.
type EventsResponse struct {
	Start string            `json:"start"`
	End   string            `json:"end"`
	Chunk []json.RawMessage `json:"chunk"`
}

// Events is the long-poll stream. It returns every event after the
// client's cursor, waiting up to the timeout for one to arrive; a timeout
// produces an empty chunk, not an error.
// GET /_matrix/client/r0/events?room_id=&from=&timeout=
func (h *EventHandlers) Events(c *gin.Context) {
	roomID := c.Query("room_id")
	if roomID == "" {
		writeError(c, http.StatusBadRequest, errcodeMissingParam, "room_id query parameter is required")
		return
	}

	from, err := parseStreamToken(c.Query("from"))
	if err != nil {
		writeError(c, http.StatusBadRequest, errcodeInvalidParam, "bad pagination from parameter")
		return
	}

	timeout := h.cfg.EventsTimeout
	if raw := c.Query("timeout"); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ms < 0 {
			writeError(c, http.StatusBadRequest, errcodeInvalidParam, "bad timeout parameter")
			return
		}
		if d := time.Duration(ms) * time.Millisecond; d < timeout {
			timeout = d
		}
	}

	logKey := coordstore.StateLogKey(roomID)
	ctx := c.Request.Context()

	entries, err := h.store.ReadRange(ctx, logKey, from+1)
	if err != nil {
		h.log.Error().Err(err).Str("room_id", roomID).Msg("read events")
		writeError(c, http.StatusBadGateway, errcodeUnknown, "storage unavailable")
		return
	}

	if len(entries) == 0 && timeout > 0 {
		tailed, err := h.store.Tail(ctx, map[string]coordstore.EntryID{logKey: from}, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return // client went away
			}
			h.log.Error().Err(err).Str("room_id", roomID).Msg("tail events")
			writeError(c, http.StatusBadGateway, errcodeUnknown, "storage unavailable")
			return
		}
		for _, te := range tailed {
			entries = append(entries, te.Entry)
		}
	}

	resp := EventsResponse{
		Start: streamToken(from),
		End:   streamToken(from),
		Chunk: make([]json.RawMessage, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Chunk = append(resp.Chunk, json.RawMessage(e.Fields[event.FieldEvent]))
		resp.End = streamToken(e.ID)
	}

	c.JSON(http.StatusOK, resp)
}

// streamToken renders a log position as an opaque client cursor.
func streamToken(id coordstore.EntryID) string {
	return fmt.Sprintf("s%d", uint64(id))
}

// parseStreamToken parses a cursor. The empty token means "from the
// beginning of the log".
func parseStreamToken(token string) (coordstore.EntryID, error) {
	if token == "" {
		return 0, nil
	}
	rest, ok := strings.CutPrefix(token, "s")
	if !ok {
		return 0, fmt.Errorf("malformed stream token %q", token)
	}
	n, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed stream token %q: %w", token, err)
	}
	return coordstore.EntryID(n), nil
}
