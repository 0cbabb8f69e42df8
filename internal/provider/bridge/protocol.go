package bridge

import (
	"github.com/chasqui-io/chasqui/internal/domain"
)

// Wire types for the transport-gateway WebSocket protocol. The gateway
// process owns the actual chat-network connection; this adapter only speaks
// the envelope protocol below.

// envelope is a single frame in either direction. Type selects which
// fields are meaningful; ID correlates a command with its result frame.
type envelope struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`

	// gateway -> adapter lifecycle events
	QR     string `json:"qr,omitempty"`
	Phone  string `json:"phone,omitempty"`
	Reason string `json:"reason,omitempty"`

	// gateway -> adapter inbound message
	Message *wireMessage `json:"message,omitempty"`

	// adapter -> gateway commands
	To      string  `json:"to,omitempty"`
	Body    string  `json:"body,omitempty"`
	Address string  `json:"address,omitempty"`
	Media   *Media  `json:"media,omitempty"`
	Payload *Sendv  `json:"payload,omitempty"`

	// gateway -> adapter command results
	Resolved   string `json:"resolved,omitempty"`
	Registered bool   `json:"registered,omitempty"`
	MessageID  string `json:"message_id,omitempty"`
	Timestamp  int64  `json:"timestamp,omitempty"`
	Ack        int    `json:"ack,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Frame types.
const (
	frameQR            = "qr"
	frameAuthenticated = "authenticated"
	frameConnected     = "connected"
	frameDisconnected  = "disconnected"
	frameMessage       = "message"
	frameResult        = "result"

	frameSendText  = "send_text"
	frameSendMedia = "send_media"
	frameSendTyped = "send_typed"
	frameResolve   = "resolve"
)

// Media mirrors provider.Media on the wire.
type Media struct {
	Base64   string `json:"base64,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Filename string `json:"filename,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// Sendv mirrors provider.TypedPayload on the wire.
type Sendv struct {
	Type      string  `json:"type"`
	Link      string  `json:"link,omitempty"`
	Text      string  `json:"text,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	Filename  string  `json:"filename,omitempty"`
}

// wireMessage is the gateway's raw inbound event, already flattened to the
// fields identity resolution needs.
type wireMessage struct {
	ID          string `json:"id"`
	From        string `json:"from"`
	Participant string `json:"participant,omitempty"`
	AltAddress  string `json:"alt_address,omitempty"`
	PushName    string `json:"push_name,omitempty"`
	RawType     string `json:"raw_type"`
	Body        string `json:"body,omitempty"`
	Caption     string `json:"caption,omitempty"`
	FromMe      bool   `json:"from_me,omitempty"`
	Group       bool   `json:"group,omitempty"`

	MediaBase64 string `json:"media_base64,omitempty"`
	MediaMime   string `json:"media_mime,omitempty"`
	MediaName   string `json:"media_name,omitempty"`

	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	Place     string  `json:"place,omitempty"`

	Timestamp int64 `json:"timestamp"`
}

// mapReason translates a gateway reason code onto the canonical enum.
func mapReason(code string) domain.DisconnectReason {
	switch code {
	case "LOGGED_OUT", "LOGOUT":
		return domain.ReasonLoggedOut
	case "BANNED", "CONFLICT", "CONNECTION_REPLACED", "MULTIDEVICE_MISMATCH":
		return domain.ReasonBannedOrConflict
	case "UNPAIRED", "BAD_SESSION":
		return domain.ReasonUnpaired
	case "CONNECTION_LOST":
		return domain.ReasonConnectionLost
	case "CONNECTION_CLOSED":
		return domain.ReasonConnectionClosed
	case "TIMEOUT":
		return domain.ReasonTimeout
	case "RESTART_REQUIRED":
		return domain.ReasonRestartRequired
	default:
		return domain.ReasonUnknown
	}
}
