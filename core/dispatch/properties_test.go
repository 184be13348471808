package dispatch_test

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/cad/core/dispatch"
	"github.com/kilianp07/cad/infra/store/sqlite/sqlitetest"
)

var propertyUnits = []string{"off-1", "off-2", "off-3", "off-4", "ems-1", "comb-1"}

// expectedErr reports whether err is one of the classified rejections a random
// sequence may legitimately produce.
func expectedErr(err error) bool {
	return err == nil || dispatch.IsNotFound(err) || dispatch.IsInvalidTransition(err)
}

func TestRandomTransitionsKeepInvariants(t *testing.T) {
	const maxPerUnit = 2
	e := newEnv(t, withCalls(6), dispatch.Config{MaxAssignmentsPerUnit: maxPerUnit})
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	statuses := []string{
		sqlitetest.StatusOnDuty, sqlitetest.StatusOffDuty, sqlitetest.StatusEnRoute,
		sqlitetest.StatusPanic, sqlitetest.StatusBusy, sqlitetest.StatusCode4,
	}
	call := func() string { return fmt.Sprintf("call-%d", 1+rng.Intn(6)) }
	unit := func() string { return propertyUnits[rng.Intn(len(propertyUnits))] }

	for step := 0; step < 300; step++ {
		var err error
		switch op := rng.Intn(10); {
		case op < 4:
			_, err = e.mgr.SetUnitStatus(ctx, dispatch.SetUnitStatus{UnitID: unit(), StatusID: statuses[rng.Intn(len(statuses))]})
		case op < 7:
			var res dispatch.AssignResult
			res, err = e.mgr.AssignUnitsToCall(ctx, dispatch.AssignUnitsToCall{CallID: call(), UnitIDs: []string{unit(), unit(), unit()}})
			for id, uerr := range res.Errors {
				require.True(t, expectedErr(uerr), "step %d unit %s: %v", step, id, uerr)
			}
		case op < 8:
			_, err = e.mgr.UnassignUnitFromCall(ctx, dispatch.UnassignUnitFromCall{CallID: call(), UnitID: unit()})
		case op < 9:
			if rng.Intn(2) == 0 {
				_, err = e.mgr.TogglePanic(ctx, dispatch.TogglePanic{UnitID: unit(), On: rng.Intn(2) == 0})
			} else {
				_, err = e.mgr.PanicSignal(ctx, dispatch.PanicSignal{UnitID: unit(), On: rng.Intn(2) == 0})
			}
		default:
			if rng.Intn(4) == 0 {
				_, err = e.mgr.EndCall(ctx, dispatch.EndCall{CallID: call()})
			}
		}
		require.True(t, expectedErr(err), "step %d: %v", step, err)

		for _, id := range propertyUnits {
			assert.LessOrEqual(t, e.openLogs(t, id), 1, "step %d unit %s", step, id)
			assert.LessOrEqual(t, e.openAssignments(t, id), maxPerUnit, "step %d unit %s", step, id)
		}
	}
	e.panics.Wait()
}

func TestConcurrentAssignmentsRespectCapacity(t *testing.T) {
	e := newEnv(t, withCalls(8), dispatch.Config{MaxAssignmentsPerUnit: 1})
	ctx := context.Background()
	units := []string{"off-1", "off-2", "ems-1", "comb-1"}

	var wg sync.WaitGroup
	results := make([]dispatch.AssignResult, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Rotate the order so that requests interleave on different units.
			ordered := append(append([]string{}, units[i%len(units):]...), units[:i%len(units)]...)
			res, err := e.mgr.AssignUnitsToCall(ctx, dispatch.AssignUnitsToCall{CallID: fmt.Sprintf("call-%d", i+1), UnitIDs: ordered})
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	assigned := map[string]int{}
	for _, res := range results {
		assert.Empty(t, res.Errors)
		for _, id := range res.Assigned {
			assigned[id]++
		}
	}
	for _, id := range units {
		assert.Equal(t, 1, e.openAssignments(t, id), id)
		assert.Equal(t, 1, assigned[id], id)
	}
}

func TestConcurrentDutyTogglesKeepOneOpenLog(t *testing.T) {
	e := newEnv(t, sqlitetest.Default(), dispatch.Config{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			st := sqlitetest.StatusOnDuty
			if i%3 == 0 {
				st = sqlitetest.StatusOffDuty
			}
			_, err := e.mgr.SetUnitStatus(ctx, dispatch.SetUnitStatus{UnitID: "ems-1", StatusID: st})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, e.openLogs(t, "ems-1"), 1)
	u, err := e.mgr.Unit(ctx, "ems-1")
	require.NoError(t, err)
	if u.Status().ID == sqlitetest.StatusOnDuty {
		assert.Equal(t, 1, e.openLogs(t, "ems-1"))
	} else {
		assert.Equal(t, 0, e.openLogs(t, "ems-1"))
	}
}
