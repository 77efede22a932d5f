package assignment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

func user(id string, skills ...string) domain.User {
	return domain.User{ID: id, Name: id, Role: domain.UserRoleModerator, Skills: skills}
}

func TestResolveHighestMatchWins(t *testing.T) {
	pool := []domain.User{
		user("A", "React"),
		user("B", "Node.js", "Database_SQL"),
	}

	got := Resolve([]string{"Node.js", "SQL"}, pool)
	require.NotNil(t, got)
	assert.Equal(t, "B", got.ID)
}

func TestResolveTieKeepsFirst(t *testing.T) {
	pool := []domain.User{
		user("A", "networking"),
		user("B", "network"),
	}

	got := Resolve([]string{"network"}, pool)
	require.NotNil(t, got)
	assert.Equal(t, "A", got.ID)
}

func TestResolveSubstringEitherDirection(t *testing.T) {
	pool := []domain.User{
		user("A", "React"),
		user("B", "auth"),
	}

	got := Resolve([]string{"Authentication", "Backend"}, pool)
	require.NotNil(t, got)
	assert.Equal(t, "B", got.ID)
}

func TestResolveIgnoresBlankCandidateSkills(t *testing.T) {
	pool := []domain.User{
		user("A", "", "  ", "React"),
		user("B", "auth"),
	}

	got := Resolve([]string{"Authentication"}, pool)
	require.NotNil(t, got)
	assert.Equal(t, "B", got.ID)

	assert.Zero(t, matchCount([]string{"", " "}, lowerAll([]string{"authentication"})))
	assert.Equal(t, 1, matchCount([]string{"", "Auth"}, lowerAll([]string{"Authentication", ""})))
}

func TestResolveNoMatchFallsBackToFirst(t *testing.T) {
	pool := []domain.User{user("X"), user("Y", "Go")}

	got := Resolve(nil, pool)
	require.NotNil(t, got)
	assert.Equal(t, "X", got.ID)

	got = Resolve([]string{"cobol"}, pool)
	require.NotNil(t, got)
	assert.Equal(t, "X", got.ID)
}

func TestResolveEmptyPool(t *testing.T) {
	assert.Nil(t, Resolve([]string{"anything"}, nil))
}

func TestResolveReturnsCopy(t *testing.T) {
	pool := []domain.User{user("A", "go")}
	got := Resolve([]string{"go"}, pool)
	got.Name = "changed"
	assert.Equal(t, "A", pool[0].Name)
}

func TestResolverAssign(t *testing.T) {
	calls := 0
	r := NewResolver(func(context.Context) ([]domain.User, error) {
		calls++
		return []domain.User{user("A", "css"), user("B", "sql")}, nil
	})

	got, err := r.Assign(context.Background(), []string{"SQL"})
	require.NoError(t, err)
	assert.Equal(t, "B", got.ID)

	_, err = r.Assign(context.Background(), []string{"css"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "pool is read on every call")
}

func TestResolverAssignPoolError(t *testing.T) {
	r := NewResolver(func(context.Context) ([]domain.User, error) {
		return nil, errors.New("db down")
	})

	_, err := r.Assign(context.Background(), []string{"x"})
	assert.ErrorContains(t, err, "db down")
}

type stubUsers struct {
	roles []domain.UserRole
	users []domain.User
}

func (s *stubUsers) ListByRoles(_ context.Context, roles ...domain.UserRole) ([]domain.User, error) {
	s.roles = roles
	return s.users, nil
}

func TestRepositoryPoolAsksForAssignableRoles(t *testing.T) {
	users := &stubUsers{users: []domain.User{user("A", "auth")}}

	got, err := NewResolver(RepositoryPool(users)).Assign(context.Background(), []string{"Authentication"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "A", got.ID)
	assert.Equal(t, domain.AssignableRoles, users.roles)
}
