package domain

import (
	"testing"
	"time"
)

func TestStateString(t *testing.T) {
	cases := map[ConnState]string{
		StateInit:           "INIT",
		StateConnecting:     "CONNECTING",
		StateQRPending:      "QR_PENDING",
		StateAuthenticating: "AUTHENTICATING",
		StateConnected:      "CONNECTED",
		StateDisconnected:   "DISCONNECTED",
		StateReconnecting:   "RECONNECTING",
		StateTerminated:     "TERMINATED",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("state %d: got %q, want %q", state, got, want)
		}
	}
}

func TestValidTransitions(t *testing.T) {
	allowed := []struct {
		from, to ConnState
	}{
		{StateInit, StateConnecting},
		{StateConnecting, StateQRPending},
		{StateConnecting, StateConnected},
		{StateQRPending, StateQRPending}, // QR rotation
		{StateQRPending, StateAuthenticating},
		{StateAuthenticating, StateConnected},
		{StateConnected, StateDisconnected},
		{StateDisconnected, StateReconnecting},
		{StateDisconnected, StateTerminated},
		{StateReconnecting, StateConnecting},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	denied := []struct {
		from, to ConnState
	}{
		{StateInit, StateConnected},
		{StateConnected, StateQRPending},
		{StateTerminated, StateConnecting},
		{StateQRPending, StateConnecting},
	}
	for _, tc := range denied {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}
}

func TestSessionStatus(t *testing.T) {
	s := NewSession("tenant-1", "loopback", true)
	if s.State != StateInit {
		t.Fatalf("new session state = %s, want INIT", s.State)
	}

	status := s.Status()
	if status.Connected || status.QRAvailable {
		t.Fatalf("fresh session should be neither connected nor have a QR: %+v", status)
	}

	now := time.Now()
	s.State = StateConnected
	s.ConnectedAt = &now
	status = s.Status()
	if !status.Connected {
		t.Fatal("connected session not reported connected")
	}
	if status.ConnectedAt == nil || !status.ConnectedAt.Equal(now) {
		t.Fatalf("connectedAt not surfaced: %+v", status)
	}

	s.State = StateQRPending
	s.QRCode = "qr-payload"
	status = s.Status()
	if status.Connected {
		t.Fatal("QR_PENDING session reported connected")
	}
	if !status.QRAvailable {
		t.Fatal("pending QR not surfaced in status")
	}
}

func TestReasonTerminal(t *testing.T) {
	terminal := []DisconnectReason{ReasonLoggedOut, ReasonBannedOrConflict, ReasonUnpaired}
	for _, r := range terminal {
		if !r.Terminal() {
			t.Errorf("%s should be terminal", r)
		}
	}
	transient := []DisconnectReason{ReasonConnectionLost, ReasonConnectionClosed, ReasonTimeout, ReasonRestartRequired, ReasonUnknown}
	for _, r := range transient {
		if r.Terminal() {
			t.Errorf("%s should not be terminal", r)
		}
	}
}
