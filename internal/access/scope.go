package access

import (
	"context"
	"fmt"
	"strings"

	"treasura.org/internal/hierarchy"
)

// ScopeStore resolves users and business-unit entities for scope computation.
type ScopeStore interface {
	UserBusinessUnit(ctx context.Context, userID int64) (*string, error)
	EntityByName(ctx context.Context, name string) (hierarchy.Entity, error)
}

// Walker yields the approved descendant name closure of an entity.
// *hierarchy.Service satisfies it.
type Walker interface {
	ScopeNames(ctx context.Context, rootID string) ([]string, error)
}

// ScopeResolver computes a caller's authorized business-unit set: the
// approved, not-deleted descendant closure of the entity their business unit
// names. Every downstream list (users, exposures, hedging) filters on it.
type ScopeResolver struct {
	store ScopeStore
	walk  Walker
}

func NewScopeResolver(store ScopeStore, walk Walker) (*ScopeResolver, error) {
	if store == nil || walk == nil {
		return nil, fmt.Errorf("%w: store and walker are required", ErrInvalidInput)
	}
	return &ScopeResolver{store: store, walk: walk}, nil
}

// Scope returns the entity-name set the user may see. Every failure mode is
// NotFound with a descriptive message; a misconfigured user never gets a
// silent empty scope.
func (r *ScopeResolver) Scope(ctx context.Context, userID int64) ([]string, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: no session for caller", ErrNotFound)
	}
	bu, err := r.store.UserBusinessUnit(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: user %d not found", ErrNotFound, userID)
	}
	if bu == nil || strings.TrimSpace(*bu) == "" {
		return nil, fmt.Errorf("%w: no business unit assigned to user %d", ErrNotFound, userID)
	}
	name := strings.TrimSpace(*bu)

	root, err := r.store.EntityByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: business unit %q not found", ErrNotFound, name)
	}
	if !root.ApprovalStatus.IsApproved() || root.IsDeleted {
		return nil, fmt.Errorf("%w: business unit %q is not an approved entity", ErrNotFound, name)
	}

	names, err := r.walk.ScopeNames(ctx, root.EntityID)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no accessible business units for user %d", ErrNotFound, userID)
	}
	return names, nil
}

// InScope reports whether a business-unit name belongs to the given scope,
// case-insensitively.
func InScope(scope []string, name string) bool {
	for _, s := range scope {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}
