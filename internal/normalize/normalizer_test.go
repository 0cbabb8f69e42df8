package normalize

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chasqui-io/chasqui/internal/domain"
)

type captureForwarder struct {
	msgs []*domain.CanonicalMessage
	err  error
}

func (f *captureForwarder) Forward(_ context.Context, msg *domain.CanonicalMessage) error {
	f.msgs = append(f.msgs, msg)
	return f.err
}

type staticLookup string

func (l staticLookup) PhoneNumber(string) string { return string(l) }

func newTestNormalizer(fwd *captureForwarder) *Normalizer {
	return New(fwd, staticLookup("5939900001"), nil, nil)
}

func TestNormalizeTextMessage(t *testing.T) {
	n := newTestNormalizer(&captureForwarder{})

	ts := time.Now().Add(-time.Minute)
	msg := n.Normalize("t1", &domain.InboundMessage{
		ID:        "m1",
		From:      "593991234567@c.us",
		PushName:  "Ana",
		RawType:   "chat",
		Body:      "hola",
		Timestamp: ts,
	})
	if msg == nil {
		t.Fatal("text message was dropped")
	}
	if msg.SenderIdentity != "593991234567" {
		t.Errorf("sender = %q", msg.SenderIdentity)
	}
	if msg.DisplayName != "Ana" {
		t.Errorf("name = %q", msg.DisplayName)
	}
	if msg.ReceiverIdentity != "5939900001" {
		t.Errorf("receiver = %q", msg.ReceiverIdentity)
	}
	if msg.Body != "hola" || msg.MessageType != domain.MessageTypeText {
		t.Errorf("body/type = %q/%s", msg.Body, msg.MessageType)
	}
	if !msg.Timestamp.Equal(ts) {
		t.Errorf("timestamp rewritten: %v", msg.Timestamp)
	}
}

func TestNormalizeDrops(t *testing.T) {
	n := newTestNormalizer(&captureForwarder{})

	cases := []struct {
		name string
		raw  *domain.InboundMessage
	}{
		{"own message", &domain.InboundMessage{From: "x@c.us", RawType: "chat", FromMe: true}},
		{"group flag", &domain.InboundMessage{From: "x@c.us", RawType: "chat", Group: true}},
		{"group address", &domain.InboundMessage{From: "12036304@g.us", RawType: "chat"}},
		{"e2e notification", &domain.InboundMessage{From: "x@c.us", RawType: "e2e_notification"}},
		{"notification template", &domain.InboundMessage{From: "x@c.us", RawType: "notification_template"}},
		{"gp2", &domain.InboundMessage{From: "x@c.us", RawType: "gp2"}},
		{"broadcast", &domain.InboundMessage{From: "x@c.us", RawType: "broadcast_notification"}},
		{"call log", &domain.InboundMessage{From: "x@c.us", RawType: "call_log"}},
		{"nil", nil},
	}
	for _, tc := range cases {
		if got := n.Normalize("t1", tc.raw); got != nil {
			t.Errorf("%s: expected drop, got %+v", tc.name, got)
		}
	}
}

func TestResolveSenderIdentity(t *testing.T) {
	cases := []struct {
		name string
		raw  *domain.InboundMessage
		want string
	}{
		{
			"alt address wins",
			&domain.InboundMessage{
				From:        "opaque123@lid",
				AltAddress:  "593991234567@s.whatsapp.net",
				Participant: "599000000@c.us",
			},
			"593991234567",
		},
		{
			"participant when no alt",
			&domain.InboundMessage{
				From:        "opaque123@lid",
				Participant: "593991234567@c.us",
			},
			"593991234567",
		},
		{
			"participant that is a link id is skipped",
			&domain.InboundMessage{
				From:        "593991234567@s.whatsapp.net",
				Participant: "opaque123@lid",
			},
			"593991234567",
		},
		{
			"canonical from",
			&domain.InboundMessage{From: "593991234567@c.us"},
			"593991234567",
		},
		{
			"link id local part as last resort",
			&domain.InboundMessage{From: "opaque123:7@lid"},
			"opaque123",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ResolveSenderIdentity(tc.raw); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBodyPlaceholders(t *testing.T) {
	cases := []struct {
		raw  *domain.InboundMessage
		want string
	}{
		{&domain.InboundMessage{RawType: "location", Latitude: -0.18, Longitude: -78.47}, "[Location: -0.18, -78.47]"},
		{&domain.InboundMessage{RawType: "location", Latitude: 1, Longitude: 2, Place: "Quito"}, "[Location: 1, 2] - Quito"},
		{&domain.InboundMessage{RawType: "vcard"}, "[Shared contact]"},
		{&domain.InboundMessage{RawType: "sticker"}, "[Sticker]"},
		{&domain.InboundMessage{RawType: "audio"}, "[Audio]"},
		{&domain.InboundMessage{RawType: "ptt"}, "[Voice note]"},
		{&domain.InboundMessage{RawType: "document"}, "[Document]"},
		{&domain.InboundMessage{RawType: "image", Caption: "look"}, "look"},
	}
	for _, tc := range cases {
		if got := bodyFor(tc.raw); got != tc.want {
			t.Errorf("bodyFor(%s) = %q, want %q", tc.raw.RawType, got, tc.want)
		}
	}
}

func TestNormalizeMedia(t *testing.T) {
	n := newTestNormalizer(&captureForwarder{})

	msg := n.Normalize("t1", &domain.InboundMessage{
		ID:      "m2",
		From:    "593991234567@c.us",
		RawType: "image",
		Media:   &domain.MediaBlob{Base64: "aGk=", MimeType: "image/jpeg", Filename: "photo.jpg"},
	})
	if msg == nil {
		t.Fatal("media message dropped")
	}
	if !msg.HasMedia || msg.MediaBase64 != "aGk=" || msg.MediaMimeType != "image/jpeg" {
		t.Fatalf("media not carried: %+v", msg)
	}
}

func TestHandleInboundSwallowsForwardErrors(t *testing.T) {
	fwd := &captureForwarder{err: errors.New("endpoint down")}
	n := newTestNormalizer(fwd)

	// Must not panic or propagate.
	n.HandleInbound(context.Background(), "t1", &domain.InboundMessage{
		From:    "593991234567@c.us",
		RawType: "chat",
		Body:    "hola",
	})
	if len(fwd.msgs) != 1 {
		t.Fatalf("message not forwarded: %d", len(fwd.msgs))
	}
}
