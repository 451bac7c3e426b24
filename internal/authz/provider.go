package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fabtrack/fabtrack/internal/platform/db"
	"github.com/fabtrack/fabtrack/internal/shared"
)

// Provider resolves the actor for a user. Implementations must not cache across calls.
type Provider interface {
	Resolve(ctx context.Context, userID int64) (Actor, error)
}

// PGProvider reads roles, capabilities and workforce binding from Postgres.
type PGProvider struct {
	db db.Querier
}

// NewPGProvider constructs the provider.
func NewPGProvider(q db.Querier) *PGProvider {
	return &PGProvider{db: q}
}

// Resolve loads the actor for userID.
func (p *PGProvider) Resolve(ctx context.Context, userID int64) (Actor, error) {
	if userID <= 0 {
		return Actor{}, fmt.Errorf("%w: missing user id", shared.ErrUnauthenticated)
	}

	var active bool
	if err := p.db.QueryRow(ctx, `SELECT is_active FROM users WHERE id = $1`, userID).Scan(&active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Actor{}, fmt.Errorf("%w: unknown user %d", shared.ErrUnauthenticated, userID)
		}
		return Actor{}, fmt.Errorf("authz: load user: %w", err)
	}
	if !active {
		return Actor{}, fmt.Errorf("%w: user %d is inactive", shared.ErrUnauthenticated, userID)
	}

	rows, err := p.db.Query(ctx, `
		SELECT r.role_class, COALESCE(rc.capability, '')
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		LEFT JOIN role_capabilities rc ON rc.role_id = r.id
		WHERE ur.user_id = $1
	`, userID)
	if err != nil {
		return Actor{}, fmt.Errorf("authz: load roles: %w", err)
	}
	defer rows.Close()

	seenRole := make(map[RoleClass]struct{})
	var roles []RoleClass
	var caps []string
	for rows.Next() {
		var role, capability string
		if err := rows.Scan(&role, &capability); err != nil {
			return Actor{}, err
		}
		rc := RoleClass(role)
		if _, ok := seenRole[rc]; !ok {
			seenRole[rc] = struct{}{}
			roles = append(roles, rc)
		}
		if capability != "" {
			caps = append(caps, capability)
		}
	}
	if err := rows.Err(); err != nil {
		return Actor{}, err
	}

	var workforceID *int64
	var wid int64
	err = p.db.QueryRow(ctx, `SELECT id FROM workforce_members WHERE user_id = $1 AND is_active`, userID).Scan(&wid)
	switch {
	case err == nil:
		workforceID = &wid
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return Actor{}, fmt.Errorf("authz: load workforce binding: %w", err)
	}

	return NewActor(userID, roles, caps, workforceID), nil
}
