package storage

import (
	"context"
	"errors"
	"log/slog"
)

// StatusRecorder mirrors live session state onto the tenant table. It is
// best effort: a tenant deleted mid-flight or a write failure must never
// block a lifecycle transition, so errors are logged and swallowed.
type StatusRecorder struct {
	repo *TenantRepository
	log  *slog.Logger
}

func NewStatusRecorder(repo *TenantRepository, log *slog.Logger) *StatusRecorder {
	return &StatusRecorder{repo: repo, log: log}
}

func (s *StatusRecorder) SessionConnected(ctx context.Context, sessionID string) {
	s.record(ctx, sessionID, StatusConnected)
}

func (s *StatusRecorder) SessionDisconnected(ctx context.Context, sessionID string) {
	s.record(ctx, sessionID, StatusDisconnected)
}

// SessionTerminated marks the tenant disconnected. The tenant row itself
// survives termination so the account can pair again later.
func (s *StatusRecorder) SessionTerminated(ctx context.Context, sessionID string) {
	s.record(ctx, sessionID, StatusDisconnected)
}

func (s *StatusRecorder) record(ctx context.Context, sessionID, status string) {
	err := s.repo.UpdateStatus(ctx, sessionID, status)
	if err == nil || errors.Is(err, ErrTenantNotFound) {
		return
	}
	s.log.Error("failed to record tenant status",
		"session_id", sessionID, "status", status, "error", err)
}
