package assignment

import (
	"context"
	"fmt"
	"strings"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/repository"
)

// PoolFunc loads the current assignee pool, in creation order.
type PoolFunc func(ctx context.Context) ([]domain.User, error)

// RepositoryPool reads moderators and admins from users on every call.
func RepositoryPool(users repository.UserRepository) PoolFunc {
	return func(ctx context.Context) ([]domain.User, error) {
		return users.ListByRoles(ctx, domain.AssignableRoles...)
	}
}

// Resolver picks an assignee for a set of suggested skills.
type Resolver struct {
	pool PoolFunc
}

// NewResolver creates a resolver backed by pool.
func NewResolver(pool PoolFunc) *Resolver {
	return &Resolver{pool: pool}
}

// Assign loads the pool and resolves against it. A nil user with a nil error means
// the pool is empty.
func (r *Resolver) Assign(ctx context.Context, suggestedSkills []string) (*domain.User, error) {
	pool, err := r.pool(ctx)
	if err != nil {
		return nil, fmt.Errorf("load assignee pool: %w", err)
	}
	return Resolve(suggestedSkills, pool), nil
}

// Resolve returns the first candidate with the strictly highest skill match count,
// pool[0] when nobody matches, or nil for an empty pool.
func Resolve(suggestedSkills []string, pool []domain.User) *domain.User {
	if len(pool) == 0 {
		return nil
	}

	suggested := lowerAll(suggestedSkills)
	best, bestCount := -1, 0
	for i := range pool {
		if count := matchCount(pool[i].Skills, suggested); count > bestCount {
			best, bestCount = i, count
		}
	}
	if best < 0 {
		best = 0
	}

	chosen := pool[best]
	return &chosen
}

// matchCount counts candidate skills that contain, or are contained in, any suggested skill.
func matchCount(candidateSkills, suggested []string) int {
	count := 0
	for _, skill := range candidateSkills {
		skill = strings.ToLower(strings.TrimSpace(skill))
		if skill == "" {
			continue
		}
		for _, s := range suggested {
			if strings.Contains(skill, s) || strings.Contains(s, skill) {
				count++
				break
			}
		}
	}
	return count
}

func lowerAll(skills []string) []string {
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
