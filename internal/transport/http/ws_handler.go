package http

import (
	"encoding/json"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/avolkhov/mxchat-server/internal/auth"
	"github.com/avolkhov/mxchat-server/internal/coordstore"
	"github.com/avolkhov/mxchat-server/internal/event"
	"github.com/avolkhov/mxchat-server/internal/proto"
)

// StreamHandler upgrades connections and pushes a room's timeline over the
// socket as it grows. It is a read-only view: clients send events through
// the HTTP entry points, and the room log is the only source feeding the
// stream.
type StreamHandler struct {
	authService *auth.Service
	store       coordstore.Store
	timeout     time.Duration
	log         *zerolog.Logger
}

// NewStreamHandler builds a new websocket stream handler.
func NewStreamHandler(authService *auth.Service, st coordstore.Store, timeout time.Duration, logger *zerolog.Logger) stdhttp.Handler {
	return &StreamHandler{
		authService: authService,
		store:       st,
		timeout:     timeout,
		log:         logger,
	}
}

// ServeHTTP handles GET /ws?access_token=&room_id=&from=.
func (h *StreamHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	session, err := h.authService.ValidateToken(r.URL.Query().Get("access_token"))
	if err != nil {
		stdhttp.Error(w, "invalid access token", stdhttp.StatusUnauthorized)
		return
	}

	roomID := r.URL.Query().Get("room_id")
	if roomID == "" {
		stdhttp.Error(w, "room_id is required", stdhttp.StatusBadRequest)
		return
	}

	cursor, err := parseStreamToken(r.URL.Query().Get("from"))
	if err != nil {
		stdhttp.Error(w, "bad from parameter", stdhttp.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	h.log.Debug().Str("user_id", session.UserID).Str("room_id", roomID).Msg("stream opened")

	ctx := r.Context()
	logKey := coordstore.StateLogKey(roomID)

	for {
		entries, err := h.store.Tail(ctx, map[string]coordstore.EntryID{logKey: cursor}, h.timeout)
		if err != nil {
			if ctx.Err() != nil {
				conn.Close(websocket.StatusNormalClosure, "closing")
				return
			}
			h.log.Warn().Err(err).Str("room_id", roomID).Msg("stream tail failed")
			_ = wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: &proto.Error{Code: "storage_unavailable", Msg: "storage unavailable"},
			})
			return
		}

		for _, te := range entries {
			out := proto.Outbound{
				Type:  proto.OutboundTypeEvent,
				Event: json.RawMessage(te.Entry.Fields[event.FieldEvent]),
			}
			if err := wsjson.Write(ctx, conn, out); err != nil {
				if ctx.Err() == nil && !isClientClose(err) {
					h.log.Warn().Err(err).Str("room_id", roomID).Msg("write stream event")
				}
				return
			}
			cursor = te.Entry.ID
		}
	}
}

func isClientClose(err error) bool {
	s := websocket.CloseStatus(err)
	return s == websocket.StatusNormalClosure || s == websocket.StatusGoingAway
}
