package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"anonword-relay/internal/domain"
)

func TestEnsureUserExisting(t *testing.T) {
	existing := registeredUser(42, "my_link")
	directory := &mockDirectory{users: map[int64]*domain.User{42: existing}}
	svc := newTestService(t, &mockSessions{}, directory, &mockTransport{})

	user, ok, err := svc.EnsureUser(context.Background(), 42)

	require.NoError(t, err)
	require.True(t, ok)
	require.Same(t, existing, user)
	require.Empty(t, directory.createdUsers)
}

func TestEnsureUserRegistersOnFirstContact(t *testing.T) {
	directory := &mockDirectory{}
	svc := newTestService(t, &mockSessions{}, directory, &mockTransport{})

	user, ok, err := svc.EnsureUser(context.Background(), 42)

	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(42), user.TelegramID)
	require.Equal(t, []int64{42}, directory.createdUsers)
}

func TestEnsureUserDropsBannedSender(t *testing.T) {
	banned := &domain.User{ID: 42, TelegramID: 42, Roles: domain.NewRoleSet(domain.RoleNormal, domain.RoleBanned)}
	directory := &mockDirectory{users: map[int64]*domain.User{42: banned}}
	svc := newTestService(t, &mockSessions{}, directory, &mockTransport{})

	user, ok, err := svc.EnsureUser(context.Background(), 42)

	require.NoError(t, err)
	require.False(t, ok)
	require.Same(t, banned, user)
}

func TestEnsureUserLookupFailure(t *testing.T) {
	directory := &mockDirectory{userErr: errors.New("backend down")}
	svc := newTestService(t, &mockSessions{}, directory, &mockTransport{})

	_, _, err := svc.EnsureUser(context.Background(), 42)

	var uerr *Error
	require.ErrorAs(t, err, &uerr)
	require.Equal(t, ErrorUpstream, uerr.Code)
}

func TestEnsureUserRegistrationFailure(t *testing.T) {
	directory := &mockDirectory{createErr: errors.New("backend down")}
	svc := newTestService(t, &mockSessions{}, directory, &mockTransport{})

	_, _, err := svc.EnsureUser(context.Background(), 42)

	var uerr *Error
	require.ErrorAs(t, err, &uerr)
	require.Equal(t, ErrorUpstream, uerr.Code)
}

func TestIsAdmin(t *testing.T) {
	admin := &domain.User{Roles: domain.NewRoleSet(domain.RoleNormal, domain.RoleAdmin)}
	normal := &domain.User{Roles: domain.NewRoleSet(domain.RoleNormal)}

	require.True(t, IsAdmin(admin))
	require.False(t, IsAdmin(normal))
	require.False(t, IsAdmin(nil))
}
