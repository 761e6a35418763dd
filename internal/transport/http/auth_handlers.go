package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/avolkhov/mxchat-server/internal/auth"
)

// loginTypePassword is the only login flow this server implements.
const loginTypePassword = "m.login.password"

// AuthHandlers provides HTTP handlers for login and registration.
type AuthHandlers struct {
	authService *auth.Service
	log         *zerolog.Logger
}

// NewAuthHandlers creates a new auth handlers instance.
func NewAuthHandlers(authService *auth.Service, logger *zerolog.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		log:         logger,
	}
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Type     string `json:"type" binding:"required"`
	User     string `json:"user" binding:"required"`
	Password string `json:"password" binding:"required"`
	DeviceID string `json:"device_id"`
}

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
	DeviceID string `json:"device_id"`
}

// AuthResponse represents the authentication response body.
type AuthResponse struct {
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
	HomeServer  string `json:"home_server"`
	DeviceID    string `json:"device_id,omitempty"`
}

// Login handles password login.
// POST /_matrix/client/r0/login
func (h *AuthHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid login request")
		writeError(c, http.StatusBadRequest, errcodeBadJSON, "invalid request body")
		return
	}

	if req.Type != loginTypePassword {
		writeError(c, http.StatusNotImplemented, errcodeUnknown, "unsupported login type")
		return
	}

	userID, token, err := h.authService.Login(c.Request.Context(), req.User, req.Password, req.DeviceID)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(c, http.StatusForbidden, errcodeForbidden, "invalid username or password")
			return
		}
		h.log.Error().Err(err).Msg("login failed")
		writeError(c, http.StatusInternalServerError, errcodeUnknown, "internal server error")
		return
	}

	c.JSON(http.StatusOK, AuthResponse{
		UserID:      userID,
		AccessToken: token,
		HomeServer:  h.authService.Server(),
		DeviceID:    req.DeviceID,
	})
}

// Register handles user registration.
// POST /_matrix/client/r0/register
func (h *AuthHandlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid register request")
		writeError(c, http.StatusBadRequest, errcodeBadJSON, "invalid request body")
		return
	}

	userID, token, err := h.authService.Register(c.Request.Context(), req.Username, req.Password, req.DeviceID)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			writeError(c, http.StatusBadRequest, errcodeUserInUse, "user id already taken")
		case errors.Is(err, auth.ErrInvalidUsername):
			writeError(c, http.StatusBadRequest, errcodeInvalidParam, "invalid username")
		case errors.Is(err, auth.ErrInvalidPassword):
			writeError(c, http.StatusBadRequest, errcodeInvalidParam, "password too weak")
		default:
			h.log.Error().Err(err).Str("username", req.Username).Msg("failed to register user")
			writeError(c, http.StatusInternalServerError, errcodeUnknown, "internal server error")
		}
		return
	}

	h.log.Info().Str("user_id", userID).Msg("user registered")
	c.JSON(http.StatusOK, AuthResponse{
		UserID:      userID,
		AccessToken: token,
		HomeServer:  h.authService.Server(),
		DeviceID:    req.DeviceID,
	})
}

// Whoami returns the user id bound to the access token.
// GET /_matrix/client/r0/account/whoami
func (h *AuthHandlers) Whoami(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, errcodeMissingToken, "unauthorized")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID})
}
