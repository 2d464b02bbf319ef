package memstore

import (
	"cmp"
	"context"
	"fmt"
	"strings"

	"github.com/odyssey-erp/supplyops/internal/party"
	"github.com/odyssey-erp/supplyops/internal/rbac"
	"github.com/odyssey-erp/supplyops/internal/shared"
)

// PartyRepo implements party.RepositoryPort.
type PartyRepo struct{ s *Store }

// Party returns the customer and staff repository.
func (s *Store) Party() *PartyRepo { return &PartyRepo{s: s} }

func (r *PartyRepo) CreateCustomer(ctx context.Context, c party.Customer) (party.Customer, error) {
	err := r.s.tx(ctx, func(st *state) error {
		c.ID = st.next("customers")
		c.CreatedAt = r.s.stamp()
		st.customers[c.ID] = c
		return nil
	})
	return c, err
}

func (r *PartyRepo) GetCustomer(ctx context.Context, id int64) (party.Customer, error) {
	var (
		c  party.Customer
		ok bool
	)
	r.s.read(func(st *state) { c, ok = st.customers[id] })
	if !ok {
		return party.Customer{}, fmt.Errorf("%w: customer %d", shared.ErrNotFound, id)
	}
	return c, nil
}

func (r *PartyRepo) ListCustomers(ctx context.Context) ([]party.Customer, error) {
	var out []party.Customer
	r.s.read(func(st *state) {
		out = sortedValues(st.customers, func(a, b party.Customer) int {
			return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
		})
	})
	return out, nil
}

func (r *PartyRepo) CreateStaff(ctx context.Context, s party.Staff) (party.Staff, error) {
	err := r.s.tx(ctx, func(st *state) error {
		for _, existing := range st.staff {
			if strings.EqualFold(existing.Email, s.Email) {
				return fmt.Errorf("%w: %w", shared.ErrConflict, party.ErrDuplicateEmail)
			}
		}
		s.ID = st.next("staff")
		s.CreatedAt = r.s.stamp()
		s.UpdatedAt = s.CreatedAt
		st.staff[s.ID] = s
		return nil
	})
	if err != nil {
		return party.Staff{}, err
	}
	return s, nil
}

func (r *PartyRepo) GetStaff(ctx context.Context, id int64) (party.Staff, error) {
	var (
		s  party.Staff
		ok bool
	)
	r.s.read(func(st *state) { s, ok = st.staff[id] })
	if !ok {
		return party.Staff{}, fmt.Errorf("%w: staff %d", shared.ErrNotFound, id)
	}
	return s, nil
}

func (r *PartyRepo) FindStaffByEmail(ctx context.Context, email string) (party.Staff, error) {
	var (
		found party.Staff
		ok    bool
	)
	r.s.read(func(st *state) {
		for _, s := range st.staff {
			if strings.EqualFold(s.Email, email) {
				found, ok = s, true
				return
			}
		}
	})
	if !ok {
		return party.Staff{}, fmt.Errorf("%w: staff email", shared.ErrNotFound)
	}
	return found, nil
}

func (r *PartyRepo) ListStaff(ctx context.Context) ([]party.Staff, error) {
	var out []party.Staff
	r.s.read(func(st *state) {
		out = sortedValues(st.staff, func(a, b party.Staff) int {
			return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
		})
	})
	return out, nil
}

func (r *PartyRepo) SetStaffRole(ctx context.Context, id int64, role rbac.Role) (party.Staff, error) {
	return r.updateStaff(ctx, id, func(s *party.Staff) { s.Role = role })
}

func (r *PartyRepo) SetStaffActive(ctx context.Context, id int64, active bool) (party.Staff, error) {
	return r.updateStaff(ctx, id, func(s *party.Staff) { s.Active = active })
}

func (r *PartyRepo) updateStaff(ctx context.Context, id int64, mutate func(*party.Staff)) (party.Staff, error) {
	var updated party.Staff
	err := r.s.tx(ctx, func(st *state) error {
		s, ok := st.staff[id]
		if !ok {
			return fmt.Errorf("%w: staff %d", shared.ErrNotFound, id)
		}
		mutate(&s)
		s.UpdatedAt = r.s.stamp()
		st.staff[id] = s
		updated = s
		return nil
	})
	return updated, err
}
