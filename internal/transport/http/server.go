package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/avolkhov/mxchat-server/internal/auth"
	"github.com/avolkhov/mxchat-server/internal/config"
	"github.com/avolkhov/mxchat-server/internal/coordstore"
	"github.com/avolkhov/mxchat-server/internal/event"
	"github.com/avolkhov/mxchat-server/internal/room"
)

// NewServer builds the HTTP server carrying the client-server API.
func NewServer(creator *room.Creator, authService *auth.Service, cs coordstore.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), LoggerMiddleware(logger))

	r.GET("/health", healthHandler)
	r.GET("/ws", gin.WrapH(NewStreamHandler(authService, cs, cfg.EventsTimeout, logger)))

	authH := NewAuthHandlers(authService, logger)
	roomH := NewRoomHandlers(creator, cfg.MaxEventBytes, logger)
	synth := event.Synthesizer{Server: cfg.ServerName}
	eventH := NewEventHandlers(cs, synth, event.NewAppender(cs, logger), cfg, logger)

	api := r.Group("/_matrix/client/r0")
	api.POST("/login", authH.Login)
	api.POST("/register", authH.Register)

	protected := api.Group("", AuthMiddleware(authService, logger))
	protected.GET("/account/whoami", authH.Whoami)
	protected.POST("/createRoom", roomH.CreateRoom)
	protected.PUT("/rooms/:roomId/send/:eventType/:txnId", eventH.SendEvent)
	protected.POST("/rooms/:roomId/invite", eventH.Invite)
	protected.GET("/events", eventH.Events)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
