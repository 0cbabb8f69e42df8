package lifecycle

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/chasqui-io/chasqui/internal/domain"
	"github.com/chasqui-io/chasqui/internal/provider"
)

// AckName translates a transport delivery ack into a human-readable label.
func AckName(ack int) string {
	switch ack {
	case 0:
		return "error"
	case 1:
		return "sent"
	case 2:
		return "received by server"
	case 3:
		return "received by recipient"
	case 4:
		return "read"
	case 5:
		return "played"
	default:
		return "unknown"
	}
}

type TextRequest struct {
	Number   string
	Message  string
	FileName string
	Caption  string
	// Optional inline attachment; when set the text becomes the caption.
	PDFBase64   string
	ImageBase64 string
}

type MediaRequest struct {
	Number   string
	Base64   string
	MimeType string
	FileName string
	Caption  string
}

// UniversalMediaRequest addresses a recipient that may already be in
// fully-qualified form (including a linking identifier), bypassing number
// normalization.
type UniversalMediaRequest struct {
	Number    string
	Type      string
	Link      string
	Text      string
	Latitude  float64
	Longitude float64
	FileName  string
}

type SendResult struct {
	MessageID         string    `json:"messageId"`
	Timestamp         time.Time `json:"timestamp"`
	SenderIdentity    string    `json:"senderNumber"`
	RecipientIdentity string    `json:"recipientNumber"`
	Ack               int       `json:"ack"`
	AckName           string    `json:"ackName"`
}

// sendLayer implements the outbound use cases: connectivity check, number
// normalization, registration lookup (cached), then adapter delegation.
type sendLayer struct {
	m *Manager
	// numberIDs caches positive registration lookups so bursts to the
	// same recipient don't re-query the network.
	numberIDs *gocache.Cache
}

func newSendLayer(m *Manager) *sendLayer {
	return &sendLayer{
		m:         m,
		numberIDs: gocache.New(5*time.Minute, 10*time.Minute),
	}
}

// resolveRecipient checks the destination is registered on the network and
// returns its resolved chat id. A negative answer is
// ErrUnregisteredRecipient and never reaches the send primitive.
func (sl *sendLayer) resolveRecipient(ctx context.Context, sessionID, address string) (string, error) {
	cacheKey := sessionID + "|" + address
	if cached, ok := sl.numberIDs.Get(cacheKey); ok {
		return cached.(string), nil
	}

	resolved, registered, err := sl.m.adapter.NumberID(ctx, sessionID, address)
	if err != nil {
		return "", err
	}
	if !registered {
		return "", domain.NewUnregisteredRecipientError(address)
	}
	sl.numberIDs.SetDefault(cacheKey, resolved)
	return resolved, nil
}

func (sl *sendLayer) SendText(ctx context.Context, sessionID string, req TextRequest) (*SendResult, error) {
	if !sl.m.adapter.IsConnected(sessionID) {
		return nil, domain.NewNotConnectedError(sessionID, sl.m.adapter.State(sessionID))
	}

	formatted, err := provider.FormatPhoneNumber(req.Number, sl.m.countryCode)
	if err != nil {
		return nil, err
	}

	chatID, err := sl.resolveRecipient(ctx, sessionID, formatted)
	if err != nil {
		return nil, err
	}

	var receipt *provider.SendReceipt
	switch {
	case req.PDFBase64 != "":
		receipt, err = sl.m.adapter.SendMedia(ctx, sessionID, chatID, provider.Media{
			Base64:   req.PDFBase64,
			MimeType: "application/pdf",
			Filename: orDefault(req.FileName, "document.pdf"),
			Caption:  orDefault(req.Caption, req.Message),
		})
	case req.ImageBase64 != "":
		receipt, err = sl.m.adapter.SendMedia(ctx, sessionID, chatID, provider.Media{
			Base64:   req.ImageBase64,
			MimeType: "image/jpeg",
			Filename: orDefault(req.FileName, "image.jpg"),
			Caption:  orDefault(req.Caption, req.Message),
		})
	default:
		receipt, err = sl.m.adapter.SendText(ctx, sessionID, chatID, req.Message)
	}
	if err != nil {
		return nil, err
	}

	sl.m.log.Info("message sent", "session", sessionID, "to", formatted, "id", receipt.MessageID)
	return sl.result(sessionID, formatted, receipt), nil
}

func (sl *sendLayer) SendMedia(ctx context.Context, sessionID string, req MediaRequest) (*SendResult, error) {
	if !sl.m.adapter.IsConnected(sessionID) {
		return nil, domain.NewNotConnectedError(sessionID, sl.m.adapter.State(sessionID))
	}

	formatted, err := provider.FormatPhoneNumber(req.Number, sl.m.countryCode)
	if err != nil {
		return nil, err
	}

	chatID, err := sl.resolveRecipient(ctx, sessionID, formatted)
	if err != nil {
		return nil, err
	}

	receipt, err := sl.m.adapter.SendMedia(ctx, sessionID, chatID, provider.Media{
		Base64:   req.Base64,
		MimeType: req.MimeType,
		Filename: req.FileName,
		Caption:  req.Caption,
	})
	if err != nil {
		return nil, err
	}

	sl.m.log.Info("media sent", "session", sessionID, "to", formatted, "id", receipt.MessageID)
	return sl.result(sessionID, formatted, receipt), nil
}

func (sl *sendLayer) SendMediaUniversal(ctx context.Context, sessionID string, req UniversalMediaRequest) (*SendResult, error) {
	if !sl.m.adapter.IsConnected(sessionID) {
		return nil, domain.NewNotConnectedError(sessionID, sl.m.adapter.State(sessionID))
	}

	// Fully-qualified addresses (linking ids included) skip normalization
	// so callers can address a contact by the identifier they hold.
	var address string
	if strings.Contains(req.Number, "@") {
		address = req.Number
	} else {
		formatted, err := provider.FormatPhoneNumber(req.Number, sl.m.countryCode)
		if err != nil {
			return nil, err
		}
		address = provider.FormatChatID(formatted)
	}

	chatID, err := sl.resolveRecipient(ctx, sessionID, address)
	if err != nil {
		return nil, err
	}

	receipt, err := sl.m.adapter.SendByType(ctx, sessionID, chatID, provider.TypedPayload{
		Type:      req.Type,
		Link:      req.Link,
		Text:      req.Text,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Filename:  req.FileName,
	})
	if err != nil {
		return nil, err
	}

	sl.m.log.Info("typed media sent", "session", sessionID, "to", chatID, "type", req.Type, "id", receipt.MessageID)
	return sl.result(sessionID, chatID, receipt), nil
}

func (sl *sendLayer) result(sessionID, recipient string, receipt *provider.SendReceipt) *SendResult {
	return &SendResult{
		MessageID:         receipt.MessageID,
		Timestamp:         receipt.Timestamp,
		SenderIdentity:    sl.m.adapter.PhoneNumber(sessionID),
		RecipientIdentity: recipient,
		Ack:               receipt.Ack,
		AckName:           AckName(receipt.Ack),
	}
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
