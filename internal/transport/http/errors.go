package http

import "github.com/gin-gonic/gin"

// Matrix error codes surfaced by this server.
const (
	errcodeForbidden    = "M_FORBIDDEN"
	errcodeUnknownToken = "M_UNKNOWN_TOKEN"
	errcodeMissingToken = "M_MISSING_TOKEN"
	errcodeMissingParam = "M_MISSING_PARAM"
	errcodeInvalidParam = "M_INVALID_PARAM"
	errcodeNotJSON      = "M_NOT_JSON"
	errcodeBadJSON      = "M_BAD_JSON"
	errcodeRoomInUse    = "M_ROOM_IN_USE"
	errcodeUserInUse    = "M_USER_IN_USE"
	errcodeUnknown      = "M_UNKNOWN"
)

// ErrorResponse is the protocol error body: {"errcode": ..., "error": ...}.
type ErrorResponse struct {
	ErrCode string `json:"errcode"`
	Error   string `json:"error"`
}

func writeError(c *gin.Context, status int, errcode, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{ErrCode: errcode, Error: msg})
}
