// Package assignment links units to calls under a per-unit capacity limit and
// detaches them again on unassignment or when a call ends.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/cad/core/directory"
	"github.com/kilianp07/cad/core/model"
	"github.com/kilianp07/cad/core/store"
)

var (
	// ErrCallNotFound is returned when the call does not exist.
	ErrCallNotFound = fmt.Errorf("call %w", store.ErrNotFound)
	// ErrCallEnded is returned when units are attached to an ended call.
	ErrCallEnded = errors.New("call ended")
	// ErrUnitOffDuty is returned for units that are off duty or unknown.
	ErrUnitOffDuty = errors.New("unit off duty")
	// ErrNotAssigned is returned when unassigning a unit that is not linked.
	ErrNotAssigned = fmt.Errorf("assignment %w", store.ErrNotFound)
)

// Outcome describes what AssignUnit did for one unit.
type Outcome struct {
	Unit model.Unit
	// AlreadyAssigned is set when the unit was linked to the call before.
	AlreadyAssigned bool
	// Skipped is set when the unit reached its capacity.
	Skipped bool
	// StatusChanged is set when the unit's status was written.
	StatusChanged bool
	// From is the directive the unit held before the write.
	From model.ShouldDo
}

// Assigned reports whether the unit ends up linked to the call.
func (o Outcome) Assigned() bool { return !o.Skipped }

// Detached describes a unit removed from a call.
type Detached struct {
	Unit          model.Unit
	StatusChanged bool
}

// Engine performs assignment operations inside a caller-owned transaction.
type Engine struct {
	now   func() time.Time
	newID func() string
}

// New returns an Engine using the wall clock and random ids.
func New() *Engine {
	return &Engine{now: time.Now, newID: uuid.NewString}
}

// OpenCall loads a call that units may still be attached to.
func (e *Engine) OpenCall(ctx context.Context, tx store.Calls, callID string) (model.Call911, error) {
	c, err := tx.Call(ctx, callID)
	if errors.Is(err, store.ErrNotFound) {
		return c, fmt.Errorf("%w: %s", ErrCallNotFound, callID)
	}
	if err != nil {
		return c, fmt.Errorf("load call %s: %w", callID, err)
	}
	if c.Ended {
		return c, fmt.Errorf("%w: %s", ErrCallEnded, callID)
	}
	return c, nil
}

// AssignUnit links unitID to call. maxAssignments bounds the number of open
// calls a unit may be linked to; zero or less means unlimited. The capacity
// check and the insert must run under the unit's lock in one transaction.
func (e *Engine) AssignUnit(ctx context.Context, tx store.Tx, call model.Call911, unitID string, maxAssignments int) (Outcome, error) {
	u, err := directory.FindUnit(ctx, tx, unitID, directory.NotOffDuty)
	if errors.Is(err, directory.ErrNotFound) {
		return Outcome{}, fmt.Errorf("%w: %w", ErrUnitOffDuty, err)
	}
	if err != nil {
		return Outcome{}, err
	}
	ref := u.Ref()
	out := Outcome{Unit: u}
	if call.HasUnit(ref) {
		out.AlreadyAssigned = true
		return out, nil
	}

	if maxAssignments > 0 {
		n, err := tx.CountOpenAssignments(ctx, ref)
		if err != nil {
			return Outcome{}, fmt.Errorf("count assignments of %s: %w", ref, err)
		}
		if n >= maxAssignments {
			out.Skipped = true
			return out, nil
		}
	}

	if prev := u.Status(); prev != nil {
		out.From = prev.ShouldDo
	}
	// A unit in panic keeps its panic status; only the link is added.
	if !model.InPanic(u) {
		st, err := tx.StatusByShouldDo(ctx, model.ShouldDoSetAssigned)
		switch {
		case err == nil:
			if err := tx.SetUnitStatus(ctx, ref, &st.ID); err != nil {
				return Outcome{}, fmt.Errorf("set assigned status of %s: %w", ref, err)
			}
			u.SetStatus(&st)
			out.StatusChanged = true
		case !errors.Is(err, store.ErrNotFound):
			return Outcome{}, fmt.Errorf("load assigned status: %w", err)
		}
	}

	if ct, ok := u.(model.CallTracker); ok {
		id := call.ID
		if err := tx.SetActiveCall(ctx, ref, &id); err != nil {
			return Outcome{}, fmt.Errorf("set active call of %s: %w", ref, err)
		}
		ct.SetActiveCall(&id)
	}

	au := model.AssignedUnit{ID: e.newID(), CallID: call.ID, Unit: ref, CreatedAt: e.now().UTC()}
	if err := tx.InsertAssignedUnit(ctx, au); err != nil {
		return Outcome{}, fmt.Errorf("link %s to call %s: %w", ref, call.ID, err)
	}
	return out, nil
}

// Unassign removes the link between unitID and callID and returns the call's
// updated assignment list.
func (e *Engine) Unassign(ctx context.Context, tx store.Tx, callID, unitID string) (model.Call911, Detached, error) {
	call, err := tx.Call(ctx, callID)
	if errors.Is(err, store.ErrNotFound) {
		return call, Detached{}, fmt.Errorf("%w: %s", ErrCallNotFound, callID)
	}
	if err != nil {
		return call, Detached{}, fmt.Errorf("load call %s: %w", callID, err)
	}
	u, err := directory.FindUnit(ctx, tx, unitID)
	if err != nil {
		return call, Detached{}, err
	}
	if err := tx.DeleteAssignedUnit(ctx, callID, u.Ref()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return call, Detached{}, fmt.Errorf("%w: %s on %s", ErrNotAssigned, u.Ref(), callID)
		}
		return call, Detached{}, fmt.Errorf("unlink %s from %s: %w", u.Ref(), callID, err)
	}
	d, err := e.afterDetach(ctx, tx, callID, u)
	if err != nil {
		return call, Detached{}, err
	}
	call, err = tx.Call(ctx, callID)
	if err != nil {
		return call, Detached{}, fmt.Errorf("reload call %s: %w", callID, err)
	}
	return call, d, nil
}

// EndCall marks the call ended and detaches every unit linked to it.
func (e *Engine) EndCall(ctx context.Context, tx store.Tx, callID string) (model.Call911, []Detached, error) {
	call, err := e.OpenCall(ctx, tx, callID)
	if err != nil {
		return call, nil, err
	}
	if err := tx.EndCall(ctx, callID); err != nil {
		return call, nil, fmt.Errorf("end call %s: %w", callID, err)
	}
	var detached []Detached
	for _, au := range call.AssignedUnits {
		u, err := directory.FindUnit(ctx, tx, au.Unit.ID)
		if err != nil {
			return call, nil, err
		}
		if err := tx.DeleteAssignedUnit(ctx, callID, au.Unit); err != nil {
			return call, nil, fmt.Errorf("unlink %s from %s: %w", au.Unit, callID, err)
		}
		d, err := e.afterDetach(ctx, tx, callID, u)
		if err != nil {
			return call, nil, err
		}
		detached = append(detached, d)
	}
	call, err = tx.Call(ctx, callID)
	if err != nil {
		return call, nil, fmt.Errorf("reload call %s: %w", callID, err)
	}
	return call, detached, nil
}

// afterDetach clears the active-call shorthand when it pointed at callID and
// puts an assigned unit back on duty once it has no open call left.
func (e *Engine) afterDetach(ctx context.Context, tx store.Tx, callID string, u model.Unit) (Detached, error) {
	ref := u.Ref()
	d := Detached{Unit: u}
	if ct, ok := u.(model.CallTracker); ok {
		if ac := ct.ActiveCall(); ac != nil && *ac == callID {
			if err := tx.SetActiveCall(ctx, ref, nil); err != nil {
				return d, fmt.Errorf("clear active call of %s: %w", ref, err)
			}
			ct.SetActiveCall(nil)
		}
	}
	st := u.Status()
	if st == nil || st.ShouldDo != model.ShouldDoSetAssigned {
		return d, nil
	}
	n, err := tx.CountOpenAssignments(ctx, ref)
	if err != nil {
		return d, fmt.Errorf("count assignments of %s: %w", ref, err)
	}
	if n > 0 {
		return d, nil
	}
	on, err := tx.StatusByShouldDo(ctx, model.ShouldDoSetOnDuty)
	if errors.Is(err, store.ErrNotFound) {
		return d, nil
	}
	if err != nil {
		return d, fmt.Errorf("load on-duty status: %w", err)
	}
	if err := tx.SetUnitStatus(ctx, ref, &on.ID); err != nil {
		return d, fmt.Errorf("revert status of %s: %w", ref, err)
	}
	u.SetStatus(&on)
	d.StatusChanged = true
	return d, nil
}
