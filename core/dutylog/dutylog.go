// Package dutylog opens and closes shift logs on duty transitions and runs
// the off-duty cascade that detaches a unit from its calls.
package dutylog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/cad/core/events"
	"github.com/kilianp07/cad/core/model"
	"github.com/kilianp07/cad/core/store"
)

// Transition reports what OnDutyTransition changed.
type Transition struct {
	Opened *model.OfficerLog
	Closed *model.OfficerLog
	// CallChanges holds one entry per open call the unit was detached from.
	CallChanges []events.CallUnitsChanged
	// Detached counts every assignment row removed, ended calls included.
	Detached int64
}

// Tracker implements the per-unit shift state machine.
type Tracker struct {
	now   func() time.Time
	newID func() string
}

// New returns a Tracker using the wall clock.
func New() *Tracker {
	return &Tracker{now: time.Now, newID: uuid.NewString}
}

// NewWithClock returns a Tracker reading time from now.
func NewWithClock(now func() time.Time) *Tracker {
	return &Tracker{now: now, newID: uuid.NewString}
}

// OnDutyTransition applies the log side effects of directive for unit. It must
// run inside the transaction that writes the unit's new status.
func (t *Tracker) OnDutyTransition(ctx context.Context, tx store.Tx, unit model.Unit, directive model.ShouldDo, actingUserID string) (Transition, error) {
	switch directive {
	case model.ShouldDoSetOnDuty:
		return t.open(ctx, tx, unit, actingUserID)
	case model.ShouldDoSetOffDuty:
		return t.close(ctx, tx, unit)
	default:
		return Transition{}, nil
	}
}

func (t *Tracker) open(ctx context.Context, tx store.Tx, unit model.Unit, actingUserID string) (Transition, error) {
	ref := unit.Ref()
	_, err := tx.OpenDutyLog(ctx, ref)
	if err == nil {
		return Transition{}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return Transition{}, fmt.Errorf("load open log of %s: %w", ref, err)
	}
	if actingUserID == "" {
		if m, ok := unit.(model.Owned); ok {
			actingUserID = m.Owner()
		}
	}
	l := model.OfficerLog{ID: t.newID(), Unit: ref, UserID: actingUserID, StartedAt: t.now().UTC()}
	if err := tx.InsertDutyLog(ctx, l); err != nil {
		return Transition{}, fmt.Errorf("open log of %s: %w", ref, err)
	}
	return Transition{Opened: &l}, nil
}

func (t *Tracker) close(ctx context.Context, tx store.Tx, unit model.Unit) (Transition, error) {
	ref := unit.Ref()
	var tr Transition
	l, err := tx.OpenDutyLog(ctx, ref)
	switch {
	case err == nil:
		end := t.now().UTC()
		if err := tx.CloseDutyLog(ctx, l.ID, end); err != nil {
			return Transition{}, fmt.Errorf("close log of %s: %w", ref, err)
		}
		l.EndedAt = &end
		tr.Closed = &l
	case !errors.Is(err, store.ErrNotFound):
		return Transition{}, fmt.Errorf("load open log of %s: %w", ref, err)
	}

	calls, err := tx.OpenCallsForUnit(ctx, ref)
	if err != nil {
		return Transition{}, fmt.Errorf("list calls of %s: %w", ref, err)
	}
	for _, c := range calls {
		if err := tx.DeleteAssignedUnit(ctx, c.ID, ref); err != nil {
			return Transition{}, fmt.Errorf("detach %s from call %s: %w", ref, c.ID, err)
		}
		updated, err := tx.Call(ctx, c.ID)
		if err != nil {
			return Transition{}, fmt.Errorf("reload call %s: %w", c.ID, err)
		}
		tr.CallChanges = append(tr.CallChanges, events.CallUnitsChanged{CallID: c.ID, AssignedUnits: updated.AssignedUnits})
	}
	if ct, ok := unit.(model.CallTracker); ok && ct.ActiveCall() != nil {
		if err := tx.SetActiveCall(ctx, ref, nil); err != nil {
			return Transition{}, fmt.Errorf("clear active call of %s: %w", ref, err)
		}
		ct.SetActiveCall(nil)
	}
	n, err := tx.DeleteAssignmentsForUnit(ctx, ref)
	if err != nil {
		return Transition{}, fmt.Errorf("delete assignments of %s: %w", ref, err)
	}
	tr.Detached = n + int64(len(tr.CallChanges))
	return tr, nil
}

// Logs returns the unit's shift history, newest first.
func (t *Tracker) Logs(ctx context.Context, tx store.DutyLogs, ref model.Ref) ([]model.OfficerLog, error) {
	return tx.DutyLogs(ctx, ref)
}
