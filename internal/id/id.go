package id

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// NewLocalpart returns a fresh 128-bit random identifier rendered as a
// 32-character hex string. Callers must not assume any ordering between
// generated values.
func NewLocalpart() string {
	u, err := uuid.NewRandom()
	if err == nil {
		return strings.ReplaceAll(u.String(), "-", "")
	}

	// uuid only fails when the platform entropy source does; fall back to
	// reading it directly.
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// NewRoomID returns a fully-qualified room identifier, e.g.
// "!3b241101e2964b91a4f0...:example.org".
func NewRoomID(server string) string {
	return "!" + NewLocalpart() + ":" + server
}

// NewEventID returns a fully-qualified event identifier.
func NewEventID(server string) string {
	return "$" + NewLocalpart() + ":" + server
}

// NewDeviceID returns a short random device identifier.
func NewDeviceID() string {
	return strings.ToUpper(NewLocalpart()[:10])
}

// NormalizeAlias turns a bare alias name into its fully-qualified form
// "#name:server". Already-qualified aliases pass through unchanged.
func NormalizeAlias(name, server string) string {
	if strings.HasPrefix(name, "#") && strings.Contains(name, ":") {
		return name
	}
	return "#" + strings.TrimPrefix(name, "#") + ":" + server
}

// NormalizeUser turns a bare localpart into a fully-qualified user
// identifier "@local:server". Already-qualified user ids pass through.
func NormalizeUser(name, server string) string {
	if strings.HasPrefix(name, "@") && strings.Contains(name, ":") {
		return name
	}
	return "@" + strings.ToLower(strings.TrimPrefix(name, "@")) + ":" + server
}

// Localpart extracts the local part of a qualified identifier, dropping the
// sigil and the server name.
func Localpart(fqid string) string {
	s := fqid
	if len(s) > 0 && (s[0] == '@' || s[0] == '!' || s[0] == '#' || s[0] == '$') {
		s = s[1:]
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	return s
}
