package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/avolkhov/mxchat-server/internal/coordstore"
	"github.com/avolkhov/mxchat-server/internal/room"
)

// RoomHandlers provides the room-creation endpoint.
type RoomHandlers struct {
	creator  *room.Creator
	maxBytes int64
	log      *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(creator *room.Creator, maxBytes int64, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		creator:  creator,
		maxBytes: maxBytes,
		log:      logger,
	}
}

// CreateRoomResponse carries the new room identifier.
type CreateRoomResponse struct {
	RoomID string `json:"room_id"`
}

// CreateRoom runs the creation pipeline. The request body is staged
// verbatim; only room_alias_name is interpreted here.
// POST /_matrix/client/r0/createRoom
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, errcodeMissingToken, "unauthorized")
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes))
	if err != nil {
		writeError(c, http.StatusBadRequest, errcodeNotJSON, "unreadable request body")
		return
	}

	var body struct {
		RoomAliasName string `json:"room_alias_name"`
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			h.log.Debug().Err(err).Msg("invalid create room request")
			writeError(c, http.StatusBadRequest, errcodeNotJSON, "request body is not valid JSON")
			return
		}
	}

	roomID, err := h.creator.CreateRoom(c.Request.Context(), room.CreateRequest{
		Sender:    userID,
		AliasName: body.RoomAliasName,
		Raw:       raw,
	})
	if err != nil {
		switch {
		case errors.Is(err, room.ErrAliasInUse):
			writeError(c, http.StatusBadRequest, errcodeRoomInUse, "room alias already in use")
		case errors.Is(err, coordstore.ErrUnavailable):
			h.log.Error().Err(err).Msg("coordination store unavailable")
			writeError(c, http.StatusBadGateway, errcodeUnknown, "storage unavailable")
		default:
			h.log.Error().Err(err).Str("sender", userID).Msg("failed to create room")
			writeError(c, http.StatusInternalServerError, errcodeUnknown, "internal server error")
		}
		return
	}

	c.JSON(http.StatusOK, CreateRoomResponse{RoomID: roomID})
}
