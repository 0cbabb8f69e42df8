package domain

// DisconnectReason is the canonical cause of a dropped connection. Each
// adapter maps its transport's native codes onto this set before emitting
// a disconnect event.
type DisconnectReason int

const (
	ReasonUnknown DisconnectReason = iota
	ReasonLoggedOut
	ReasonBannedOrConflict
	ReasonUnpaired
	ReasonConnectionLost
	ReasonConnectionClosed
	ReasonTimeout
	ReasonRestartRequired
)

func (r DisconnectReason) String() string {
	switch r {
	case ReasonLoggedOut:
		return "LOGGED_OUT"
	case ReasonBannedOrConflict:
		return "BANNED_OR_CONFLICT"
	case ReasonUnpaired:
		return "UNPAIRED"
	case ReasonConnectionLost:
		return "CONNECTION_LOST"
	case ReasonConnectionClosed:
		return "CONNECTION_CLOSED"
	case ReasonTimeout:
		return "TIMEOUT"
	case ReasonRestartRequired:
		return "RESTART_REQUIRED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether automatic reconnection must not occur. After a
// terminal disconnect the session's persisted credentials are invalid and
// the tenant has to pair again explicitly.
func (r DisconnectReason) Terminal() bool {
	switch r {
	case ReasonLoggedOut, ReasonBannedOrConflict, ReasonUnpaired:
		return true
	default:
		return false
	}
}
