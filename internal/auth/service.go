package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/avolkhov/mxchat-server/internal/id"
	"github.com/avolkhov/mxchat-server/internal/store"
)

var (
	// ErrInvalidCredentials is returned when user id and password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when registering an existing localpart.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidUsername is returned when the localpart doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword is returned when the password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
)

var localpartRe = regexp.MustCompile(`^[a-z0-9._=/-]+$`)

// Session describes an authenticated request.
type Session struct {
	UserID   string
	DeviceID string
}

// Service provides registration, login and token validation for one
// homeserver.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
	server    string
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig, server string) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
		server:    server,
	}
}

// Register creates a new user and returns its fully-qualified id plus an
// access token bound to deviceID.
func (s *Service) Register(ctx context.Context, username, password, deviceID string) (userID, token string, err error) {
	local := strings.ToLower(strings.TrimSpace(username))
	local = strings.TrimPrefix(local, "@")
	if i := strings.IndexByte(local, ':'); i >= 0 {
		local = local[:i]
	}
	if len(local) < 1 || len(local) > 255 || !localpartRe.MatchString(local) {
		return "", "", ErrInvalidUsername
	}
	if len(password) < 6 {
		return "", "", ErrInvalidPassword
	}

	userID = id.NormalizeUser(local, s.server)
	if existing, err := s.store.GetUserByUserID(ctx, userID); err == nil && existing != nil {
		return "", "", ErrUserExists
	}

	hashed, err := HashPassword(password)
	if err != nil {
		return "", "", fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, userID, hashed)
	if err != nil {
		return "", "", fmt.Errorf("create user: %w", err)
	}

	if deviceID == "" {
		deviceID = id.NewDeviceID()
	}
	token, err = GenerateToken(s.jwtConfig, user.UserID, deviceID)
	if err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}

	return user.UserID, token, nil
}

// Login validates credentials and returns the user id plus a fresh access
// token. The username may be a bare localpart or a fully-qualified id.
func (s *Service) Login(ctx context.Context, username, password, deviceID string) (userID, token string, err error) {
	userID = id.NormalizeUser(username, s.server)

	user, err := s.store.GetUserByUserID(ctx, userID)
	if err != nil {
		return "", "", ErrInvalidCredentials
	}

	if errPwd := ComparePassword(user.PasswordHash, password); errPwd != nil {
		return "", "", ErrInvalidCredentials
	}

	if deviceID == "" {
		deviceID = id.NewDeviceID()
	}
	token, err = GenerateToken(s.jwtConfig, user.UserID, deviceID)
	if err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}

	return user.UserID, token, nil
}

// ValidateToken checks an access token and returns the session it carries.
func (s *Service) ValidateToken(token string) (*Session, error) {
	claims, err := ValidateToken(s.jwtConfig, token)
	if err != nil {
		return nil, err
	}
	return &Session{UserID: claims.UserID, DeviceID: claims.DeviceID}, nil
}

// Server returns the homeserver name tokens are issued for.
func (s *Service) Server() string {
	return s.server
}
