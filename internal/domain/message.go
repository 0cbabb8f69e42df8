package domain

import "time"

// MessageType is the canonical classification of an inbound message.
type MessageType string

const (
	MessageTypeText        MessageType = "text"
	MessageTypeImage       MessageType = "image"
	MessageTypeVideo       MessageType = "video"
	MessageTypeAudio       MessageType = "audio"
	MessageTypeVoiceNote   MessageType = "voice-note"
	MessageTypeDocument    MessageType = "document"
	MessageTypeSticker     MessageType = "sticker"
	MessageTypeLocation    MessageType = "location"
	MessageTypeContactCard MessageType = "contact-card"
	MessageTypeReaction    MessageType = "reaction"
	MessageTypeUnknown     MessageType = "unknown"
)

// CanonicalMessageType maps a transport-native type string onto the
// canonical enum.
func CanonicalMessageType(rawType string) MessageType {
	switch rawType {
	case "chat", "text":
		return MessageTypeText
	case "image":
		return MessageTypeImage
	case "video":
		return MessageTypeVideo
	case "audio":
		return MessageTypeAudio
	case "ptt":
		return MessageTypeVoiceNote
	case "document":
		return MessageTypeDocument
	case "sticker":
		return MessageTypeSticker
	case "location":
		return MessageTypeLocation
	case "vcard":
		return MessageTypeContactCard
	case "reaction":
		return MessageTypeReaction
	default:
		return MessageTypeUnknown
	}
}

// CanonicalMessage is the provider-agnostic inbound event delivered to the
// webhook. It is never built for the tenant's own messages, group-chat
// messages, or ignore-listed types.
type CanonicalMessage struct {
	ID               string      `json:"id"`
	SessionID        string      `json:"sessionId"`
	SenderIdentity   string      `json:"senderNumber"`
	DisplayName      string      `json:"name"`
	ReceiverIdentity string      `json:"receiverNumber"`
	Body             string      `json:"description"`
	MessageType      MessageType `json:"messageType"`
	MediaBase64      string      `json:"mediaDataBase64,omitempty"`
	MediaMimeType    string      `json:"mediaMimeType,omitempty"`
	MediaFileName    string      `json:"mediaFileName,omitempty"`
	HasMedia         bool        `json:"hasMediaContent"`
	Timestamp        time.Time   `json:"timestamp"`
}
