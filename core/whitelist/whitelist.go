// Package whitelist decides whether a unit may serve in a department and
// maintains the unit's whitelist-status record accordingly.
package whitelist

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kilianp07/cad/core/model"
	"github.com/kilianp07/cad/core/store"
)

var (
	// ErrDepartmentNotFound is returned when the target department is absent.
	ErrDepartmentNotFound = fmt.Errorf("department %w", store.ErrNotFound)
	// ErrNotWhitelistable is returned when a combined unit enters a whitelisted
	// department while one of its officers is not accepted there.
	ErrNotWhitelistable = errors.New("combined unit member not whitelisted for department")
)

// Result is the outcome of ApplyDepartment. The caller writes the unit's
// department from it in the same transaction.
type Result struct {
	WhitelistStatusID *string
	DefaultDepartment *model.DepartmentValue
	Department        model.DepartmentValue
	State             model.WhitelistState
}

// Gated reports whether the unit still awaits approval for Department.
func (r Result) Gated() bool {
	return r.WhitelistStatusID != nil && r.State != model.WhitelistAccepted
}

// DepartmentToWrite returns the department the unit record should point at:
// the target when the unit is not gated, otherwise the default department
// when one exists.
func (r Result) DepartmentToWrite() string {
	if r.Gated() && r.DefaultDepartment != nil {
		return r.DefaultDepartment.ID
	}
	return r.Department.ID
}

// Manager applies department changes to whitelist records.
type Manager struct {
	newID func() string
}

// New returns a Manager generating random record ids.
func New() *Manager {
	return &Manager{newID: uuid.NewString}
}

// ApplyDepartment evaluates moving unit into departmentID. It never writes the
// unit's department field.
func (m *Manager) ApplyDepartment(ctx context.Context, tx store.Tx, unit model.Unit, departmentID string) (Result, error) {
	dept, err := tx.Department(ctx, departmentID)
	if errors.Is(err, store.ErrNotFound) {
		return Result{}, fmt.Errorf("%w: %s", ErrDepartmentNotFound, departmentID)
	}
	if err != nil {
		return Result{}, fmt.Errorf("load department %s: %w", departmentID, err)
	}

	wl, ok := unit.(model.Whitelistable)
	if !ok {
		return m.applyCombined(ctx, tx, unit, dept)
	}

	if !dept.Whitelisted {
		if id := wl.WhitelistStatus(); id != nil {
			if err := tx.DeleteWhitelistStatus(ctx, *id); err != nil && !errors.Is(err, store.ErrNotFound) {
				return Result{}, fmt.Errorf("delete whitelist status %s: %w", *id, err)
			}
		}
		return Result{Department: dept}, nil
	}

	rec, err := m.reconcile(ctx, tx, wl, dept.ID)
	if err != nil {
		return Result{}, err
	}
	res := Result{WhitelistStatusID: &rec.ID, Department: dept, State: rec.State}
	def, err := tx.DefaultDepartment(ctx)
	switch {
	case err == nil:
		res.DefaultDepartment = &def
	case !errors.Is(err, store.ErrNotFound):
		return Result{}, fmt.Errorf("load default department: %w", err)
	}
	return res, nil
}

// reconcile returns the unit's record for a whitelisted target, creating or
// resetting it when needed. A DECLINED record is compared with the unit's
// previous department, any other record with its stored department.
func (m *Manager) reconcile(ctx context.Context, tx store.Tx, unit model.Whitelistable, target string) (model.LeoWhitelistStatus, error) {
	if id := unit.WhitelistStatus(); id != nil {
		rec, err := tx.WhitelistStatus(ctx, *id)
		switch {
		case err == nil:
			compare := rec.DepartmentID
			if rec.State == model.WhitelistDeclined {
				compare = unit.DepartmentID()
			}
			if compare != target {
				rec.State = model.WhitelistPending
				rec.DepartmentID = target
				if err := tx.UpdateWhitelistStatus(ctx, rec); err != nil {
					return rec, fmt.Errorf("reset whitelist status %s: %w", rec.ID, err)
				}
			}
			return rec, nil
		case !errors.Is(err, store.ErrNotFound):
			return rec, fmt.Errorf("load whitelist status %s: %w", *id, err)
		}
	}
	rec := model.LeoWhitelistStatus{ID: m.newID(), State: model.WhitelistPending, DepartmentID: target}
	if err := tx.InsertWhitelistStatus(ctx, rec); err != nil {
		return rec, fmt.Errorf("create whitelist status: %w", err)
	}
	return rec, nil
}

func (m *Manager) applyCombined(ctx context.Context, tx store.Tx, unit model.Unit, dept model.DepartmentValue) (Result, error) {
	c, ok := unit.(*model.CombinedUnit)
	if !ok {
		return Result{}, fmt.Errorf("unit %s: unsupported variant %T", unit.Ref(), unit)
	}
	if !dept.Whitelisted {
		return Result{Department: dept}, nil
	}
	for _, oid := range c.OfficerIDs {
		u, err := tx.FindUnit(ctx, oid)
		if err != nil {
			return Result{}, fmt.Errorf("load member %s of %s: %w", oid, c.ID, err)
		}
		wl, ok := u.(model.Whitelistable)
		if !ok || wl.WhitelistStatus() == nil {
			return Result{}, fmt.Errorf("%w: %s", ErrNotWhitelistable, oid)
		}
		rec, err := tx.WhitelistStatus(ctx, *wl.WhitelistStatus())
		if err != nil {
			return Result{}, fmt.Errorf("load whitelist status of %s: %w", oid, err)
		}
		if rec.State != model.WhitelistAccepted || rec.DepartmentID != dept.ID {
			return Result{}, fmt.Errorf("%w: %s", ErrNotWhitelistable, oid)
		}
	}
	return Result{Department: dept, State: model.WhitelistAccepted}, nil
}
