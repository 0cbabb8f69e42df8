// Package normalize converts raw provider-agnostic inbound events into
// canonical messages and forwards them to the webhook dispatcher.
package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chasqui-io/chasqui/internal/domain"
	"github.com/chasqui-io/chasqui/internal/provider"
)

// DefaultIgnoredTypes are transport noise types that never become
// canonical messages.
var DefaultIgnoredTypes = []string{
	"e2e_notification",
	"notification_template",
	"gp2",
	"broadcast_notification",
	"call_log",
}

// Forwarder delivers one canonical message; satisfied by the webhook
// dispatcher.
type Forwarder interface {
	Forward(ctx context.Context, msg *domain.CanonicalMessage) error
}

// SenderLookup resolves the receiving tenant's own number; satisfied by
// the adapter.
type SenderLookup interface {
	PhoneNumber(sessionID string) string
}

type Normalizer struct {
	forwarder Forwarder
	lookup    SenderLookup
	ignored   map[string]struct{}
	log       *slog.Logger
}

func New(forwarder Forwarder, lookup SenderLookup, ignoredTypes []string, log *slog.Logger) *Normalizer {
	if ignoredTypes == nil {
		ignoredTypes = DefaultIgnoredTypes
	}
	if log == nil {
		log = slog.Default()
	}
	ignored := make(map[string]struct{}, len(ignoredTypes))
	for _, t := range ignoredTypes {
		ignored[t] = struct{}{}
	}
	return &Normalizer{forwarder: forwarder, lookup: lookup, ignored: ignored, log: log}
}

// HandleInbound normalizes one raw event and forwards it. Own messages,
// group messages, and ignore-listed types are dropped; forwarding failures
// are logged, never propagated.
func (n *Normalizer) HandleInbound(ctx context.Context, sessionID string, raw *domain.InboundMessage) {
	msg := n.Normalize(sessionID, raw)
	if msg == nil {
		return
	}
	if err := n.forwarder.Forward(ctx, msg); err != nil {
		n.log.Error("webhook delivery failed", "session", sessionID, "message", msg.ID, "error", err)
	}
}

// Normalize builds the canonical message, or nil when the event must be
// dropped.
func (n *Normalizer) Normalize(sessionID string, raw *domain.InboundMessage) *domain.CanonicalMessage {
	if raw == nil || raw.FromMe {
		return nil
	}
	if raw.Group || provider.IsGroup(raw.From) {
		n.log.Debug("ignoring group message", "session", sessionID)
		return nil
	}
	if _, ok := n.ignored[raw.RawType]; ok {
		n.log.Debug("ignoring message type", "session", sessionID, "type", raw.RawType)
		return nil
	}

	sender := ResolveSenderIdentity(raw)
	name := raw.PushName
	if name == "" {
		name = sender
	}

	msg := &domain.CanonicalMessage{
		ID:               raw.ID,
		SessionID:        sessionID,
		SenderIdentity:   sender,
		DisplayName:      name,
		ReceiverIdentity: n.receiver(sessionID),
		Body:             bodyFor(raw),
		MessageType:      domain.CanonicalMessageType(raw.RawType),
		Timestamp:        raw.Timestamp,
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if raw.Media != nil && raw.Media.Base64 != "" {
		msg.MediaBase64 = raw.Media.Base64
		msg.MediaMimeType = raw.Media.MimeType
		msg.MediaFileName = raw.Media.Filename
		msg.HasMedia = true
	}
	return msg
}

func (n *Normalizer) receiver(sessionID string) string {
	if n.lookup == nil {
		return ""
	}
	return n.lookup.PhoneNumber(sessionID)
}

// ResolveSenderIdentity finds the real-world contact address for an event
// whose top-level address may be an internal linking identifier. Each
// source is tried independently because the two transports populate
// different fields for the same logical event.
func ResolveSenderIdentity(raw *domain.InboundMessage) string {
	// 1. An explicit resolved address accompanying the event wins.
	if raw.AltAddress != "" {
		return provider.LocalPart(raw.AltAddress)
	}
	// 2. The participant field, when it is not itself a linking id.
	if raw.Participant != "" && !provider.IsLinkID(raw.Participant) {
		return provider.LocalPart(raw.Participant)
	}
	// 3. The top-level address, when already canonical.
	if provider.IsCanonical(raw.From) {
		return provider.LocalPart(raw.From)
	}
	// 4. Best effort: the linking identifier's local part.
	return provider.LocalPart(raw.From)
}

// bodyFor picks the text body, falling back to a type placeholder when the
// event carries no text.
func bodyFor(raw *domain.InboundMessage) string {
	if raw.Caption != "" {
		return raw.Caption
	}
	if raw.Body != "" {
		return raw.Body
	}
	switch domain.CanonicalMessageType(raw.RawType) {
	case domain.MessageTypeLocation:
		body := fmt.Sprintf("[Location: %g, %g]", raw.Latitude, raw.Longitude)
		if raw.Place != "" {
			body += " - " + raw.Place
		}
		return body
	case domain.MessageTypeContactCard:
		return "[Shared contact]"
	case domain.MessageTypeSticker:
		return "[Sticker]"
	case domain.MessageTypeAudio:
		return "[Audio]"
	case domain.MessageTypeVoiceNote:
		return "[Voice note]"
	case domain.MessageTypeDocument:
		return "[Document]"
	default:
		return ""
	}
}
