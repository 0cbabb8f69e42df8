package storage

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
)

func newTestRepo(t *testing.T) *TenantRepository {
	t.Helper()
	repo, err := NewTenantRepository(filepath.Join(t.TempDir(), "tenants.db"))
	if err != nil {
		t.Fatalf("failed to open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestCreateAndFind(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, Tenant{ExternalID: "acme", Name: "Acme Corp", ReceiveMessages: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Status != StatusDisconnected {
		t.Fatalf("new tenant status = %q, want disconnected", created.Status)
	}
	if created.CreatedAt.IsZero() {
		t.Fatal("createdAt not stamped")
	}

	got, err := repo.FindByExternalID(ctx, "acme")
	if err != nil {
		t.Fatalf("FindByExternalID: %v", err)
	}
	if got.Name != "Acme Corp" || !got.ReceiveMessages {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestCreateDuplicate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.Create(ctx, Tenant{ExternalID: "acme"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := repo.Create(ctx, Tenant{ExternalID: "acme"}); !errors.Is(err, ErrTenantExists) {
		t.Fatalf("expected ErrTenantExists, got %v", err)
	}
}

func TestFindMissing(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.FindByExternalID(context.Background(), "ghost"); !errors.Is(err, ErrTenantNotFound) {
		t.Fatalf("expected ErrTenantNotFound, got %v", err)
	}
}

func TestInvalidID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, id := range []string{"", "has space", "a/b", "x'; DROP TABLE tenants;--"} {
		if _, err := repo.Create(ctx, Tenant{ExternalID: id}); !errors.Is(err, ErrInvalidTenantID) {
			t.Errorf("Create(%q): expected ErrInvalidTenantID, got %v", id, err)
		}
	}
}

func TestUpdate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, Tenant{ExternalID: "acme", Name: "Old"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	created.Name = "New"
	created.ReceiveMessages = true

	updated, err := repo.Update(ctx, *created)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != "New" || !updated.ReceiveMessages {
		t.Fatalf("update lost: %+v", updated)
	}

	if _, err := repo.Update(ctx, Tenant{ExternalID: "ghost"}); !errors.Is(err, ErrTenantNotFound) {
		t.Fatalf("update of missing tenant: %v", err)
	}
}

func TestUpdateStatusAndFindAll(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, id := range []string{"bravo", "alpha"} {
		if _, err := repo.Create(ctx, Tenant{ExternalID: id}); err != nil {
			t.Fatalf("Create(%s): %v", id, err)
		}
	}

	if err := repo.UpdateStatus(ctx, "alpha", StatusConnected); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	all, err := repo.FindAll(ctx)
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d tenants, want 2", len(all))
	}
	if all[0].ExternalID != "alpha" || all[1].ExternalID != "bravo" {
		t.Fatalf("ordering wrong: %+v", all)
	}
	if all[0].Status != StatusConnected {
		t.Fatalf("status not persisted: %+v", all[0])
	}
}

func TestDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.Create(ctx, Tenant{ExternalID: "acme"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Delete(ctx, "acme"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(ctx, "acme"); !errors.Is(err, ErrTenantNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestStatusRecorderSwallowsMissing(t *testing.T) {
	repo := newTestRepo(t)
	rec := NewStatusRecorder(repo, slog.Default())

	// Unknown session must not panic or error out of the callback.
	rec.SessionConnected(context.Background(), "ghost")
	rec.SessionDisconnected(context.Background(), "ghost")
	rec.SessionTerminated(context.Background(), "ghost")
}

func TestStatusRecorderUpdates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	rec := NewStatusRecorder(repo, slog.Default())

	if _, err := repo.Create(ctx, Tenant{ExternalID: "acme"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	rec.SessionConnected(ctx, "acme")
	got, _ := repo.FindByExternalID(ctx, "acme")
	if got.Status != StatusConnected {
		t.Fatalf("status = %q after connect", got.Status)
	}

	rec.SessionTerminated(ctx, "acme")
	got, _ = repo.FindByExternalID(ctx, "acme")
	if got.Status != StatusDisconnected {
		t.Fatalf("status = %q after termination", got.Status)
	}
}
