package registry

import (
	"testing"

	"github.com/chasqui-io/chasqui/internal/domain"
)

func TestUpsertCreatesAndMutates(t *testing.T) {
	r := New()

	snap := r.Upsert("t1", func(s *domain.Session) {
		s.ProviderType = "loopback"
		s.State = domain.StateConnecting
	})
	if snap.ID != "t1" || snap.State != domain.StateConnecting {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", r.Len())
	}

	snap = r.Upsert("t1", func(s *domain.Session) {
		s.State = domain.StateConnected
	})
	if snap.State != domain.StateConnected {
		t.Fatalf("mutation lost: %+v", snap)
	}
	if r.Len() != 1 {
		t.Fatalf("upsert duplicated the session: %d", r.Len())
	}
}

func TestGetReturnsCopy(t *testing.T) {
	r := New()
	r.Upsert("t1", func(s *domain.Session) {
		s.State = domain.StateConnected
	})

	got, ok := r.Get("t1")
	if !ok {
		t.Fatal("session missing")
	}
	got.State = domain.StateTerminated

	again, _ := r.Get("t1")
	if again.State != domain.StateConnected {
		t.Fatal("mutating a returned snapshot leaked into the registry")
	}
}

func TestRemove(t *testing.T) {
	r := New()
	r.Upsert("t1", func(s *domain.Session) {})

	r.Remove("t1")
	if _, ok := r.Get("t1"); ok {
		t.Fatal("removed session still present")
	}
	// Removing twice is a no-op.
	r.Remove("t1")
}

func TestListAllSorted(t *testing.T) {
	r := New()
	for _, id := range []string{"charlie", "alpha", "bravo"} {
		r.Upsert(id, func(s *domain.Session) {})
	}

	all := r.ListAll()
	if len(all) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(all))
	}
	want := []string{"alpha", "bravo", "charlie"}
	for i, s := range all {
		if s.ID != want[i] {
			t.Fatalf("order mismatch at %d: got %s, want %s", i, s.ID, want[i])
		}
	}
}
