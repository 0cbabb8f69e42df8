package webhook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chasqui-io/chasqui/internal/domain"
)

func canonical(id string) *domain.CanonicalMessage {
	return &domain.CanonicalMessage{
		ID:             id,
		SessionID:      "t1",
		SenderIdentity: "593991234567",
		Body:           "hola",
		MessageType:    domain.MessageTypeText,
		Timestamp:      time.Now(),
	}
}

func TestForwardPostsJSON(t *testing.T) {
	var gotBody []byte
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(srv.URL, time.Second, nil)
	if err := d.Forward(context.Background(), canonical("m1")); err != nil {
		t.Fatalf("Forward: %v", err)
	}

	if gotContentType != "application/json" {
		t.Errorf("content type = %q", gotContentType)
	}
	var decoded map[string]any
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if decoded["id"] != "m1" || decoded["sessionId"] != "t1" {
		t.Errorf("unexpected payload: %v", decoded)
	}
	if decoded["description"] != "hola" {
		t.Errorf("body field missing: %v", decoded)
	}
}

func TestForwardNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d := NewDispatcher(srv.URL, time.Second, nil)
	if err := d.Forward(context.Background(), canonical("m2")); err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestForwardNoURLConfigured(t *testing.T) {
	d := NewDispatcher("", time.Second, nil)
	if err := d.Forward(context.Background(), canonical("m3")); err != nil {
		t.Fatalf("unconfigured webhook should be a silent drop, got %v", err)
	}
}

func TestForwardTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	d := NewDispatcher(srv.URL, 50*time.Millisecond, nil)
	if err := d.Forward(context.Background(), canonical("m4")); err == nil {
		t.Fatal("expected timeout error")
	}
}
