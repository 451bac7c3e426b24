// Package directory reads the customers and workforce members that orders and
// quotations reference. Their management lives outside this service.
package directory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/fabtrack/fabtrack/internal/platform/db"
	"github.com/fabtrack/fabtrack/internal/shared"
)

// MemberKind is the relation a workforce member can occupy.
type MemberKind string

const (
	KindFabricator  MemberKind = "FABRICATOR"
	KindInstaller   MemberKind = "INSTALLER"
	KindSalesperson MemberKind = "SALESPERSON"
)

// Customer is a billed party.
type Customer struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	TaxID   string `json:"tax_id"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Active  bool   `json:"active"`
}

// Member is a fabricator, installer or salesperson.
type Member struct {
	ID       int64      `json:"id"`
	UserID   *int64     `json:"user_id,omitempty"`
	FullName string     `json:"full_name"`
	Email    string     `json:"email"`
	Phone    string     `json:"phone"`
	Kind     MemberKind `json:"kind"`
	Active   bool       `json:"active"`
}

// Repository reads directory entries.
type Repository interface {
	GetCustomer(ctx context.Context, id int64) (Customer, error)
	GetMember(ctx context.Context, id int64) (Member, error)
}

type repository struct {
	db db.Querier
}

// NewRepository returns a pgx backed Repository.
func NewRepository(q db.Querier) Repository {
	return &repository{db: q}
}

func (r *repository) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	var c Customer
	err := r.db.QueryRow(ctx, `
		SELECT id, name, tax_id, email, phone, address, is_active
		FROM customers WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.TaxID, &c.Email, &c.Phone, &c.Address, &c.Active)
	if err != nil {
		return Customer{}, db.MapError(err, fmt.Sprintf("customer %d", id))
	}
	return c, nil
}

func (r *repository) GetMember(ctx context.Context, id int64) (Member, error) {
	var m Member
	var userID pgtype.Int8
	var kind string
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, full_name, email, phone, kind, is_active
		FROM workforce_members WHERE id = $1
	`, id).Scan(&m.ID, &userID, &m.FullName, &m.Email, &m.Phone, &kind, &m.Active)
	if err != nil {
		return Member{}, db.MapError(err, fmt.Sprintf("workforce member %d", id))
	}
	if userID.Valid {
		v := userID.Int64
		m.UserID = &v
	}
	m.Kind = MemberKind(kind)
	return m, nil
}

// RequireMember loads id and checks it can occupy the kind relation.
func RequireMember(ctx context.Context, repo Repository, id int64, kind MemberKind) (Member, error) {
	m, err := repo.GetMember(ctx, id)
	if err != nil {
		return Member{}, err
	}
	if m.Kind != kind {
		return Member{}, fmt.Errorf("%w: workforce member %d is a %s, not a %s", shared.ErrValidation, id, m.Kind, kind)
	}
	if !m.Active {
		return Member{}, fmt.Errorf("%w: workforce member %d is inactive", shared.ErrValidation, id)
	}
	return m, nil
}

// RequireCustomer loads id and checks it is active.
func RequireCustomer(ctx context.Context, repo Repository, id int64) (Customer, error) {
	c, err := repo.GetCustomer(ctx, id)
	if err != nil {
		return Customer{}, err
	}
	if !c.Active {
		return Customer{}, fmt.Errorf("%w: customer %d is inactive", shared.ErrValidation, id)
	}
	return c, nil
}
