package usecase

import (
	"context"
	"errors"

	"anonword-relay/internal/domain"
	"anonword-relay/internal/integrations/backend"
	"anonword-relay/internal/integrations/telegram"
)

// EnsureUser is the first guard in the pre-routing chain: it registers the
// sender on first contact and enforces the ban. The returned bool reports
// whether processing may continue; a banned sender is dropped silently.
func (s *Service) EnsureUser(ctx context.Context, senderID int64) (*domain.User, bool, error) {
	user, err := s.directory.GetUserByTelegramID(ctx, senderID)
	if errors.Is(err, backend.ErrNotFound) {
		user, err = s.directory.CreateUser(ctx, senderID)
	}
	if err != nil {
		return nil, false, newError(ErrorUpstream, "auth_lookup_failed", err)
	}

	if user.Roles.Has(domain.RoleBanned) {
		s.log.Info("dropping update from banned sender", "sender", senderID)
		return user, false, nil
	}
	return user, true, nil
}

// IsAdmin is the gate for privileged commands.
func IsAdmin(user *domain.User) bool {
	return user != nil && user.Roles.Has(domain.RoleAdmin)
}

// ReportFailure exposes the containment boundary to the dispatcher for
// failures raised by command handlers and guards.
func (s *Service) ReportFailure(ctx context.Context, msg *telegram.Message, err error) {
	s.containFailure(ctx, msg, err)
}
