package coordstore

// Key namespaces of the persisted-state boundary. Everything the pipeline
// writes to the coordination store lives under one of these prefixes.
const (
	aliasPrefix   = "alias:"
	pendingPrefix = "room:pending:"
	statePrefix   = "room:state:"
)

// AliasKey is the reservation key for a fully-qualified room alias. Its
// value is the room id that owns the alias.
func AliasKey(alias string) string {
	return aliasPrefix + alias
}

// PendingKey stores the original creation request body for a room until its
// bootstrap completes.
func PendingKey(roomID string) string {
	return pendingPrefix + roomID
}

// StateLogKey is the append-only log carrying a room's events.
func StateLogKey(roomID string) string {
	return statePrefix + roomID
}
