package dutylog_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/cad/core/dutylog"
	"github.com/kilianp07/cad/core/model"
	"github.com/kilianp07/cad/core/store"
	"github.com/kilianp07/cad/infra/store/sqlite"
	"github.com/kilianp07/cad/infra/store/sqlite/sqlitetest"
)

var off1 = model.Ref{Kind: model.KindOfficer, ID: "off-1"}

type clock struct{ t time.Time }

func (c *clock) now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

func transition(t *testing.T, s store.Store, tr *dutylog.Tracker, unitID string, d model.ShouldDo) dutylog.Transition {
	t.Helper()
	ctx := context.Background()
	var out dutylog.Transition
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		u, err := tx.FindUnit(ctx, unitID)
		if err != nil {
			return err
		}
		out, err = tr.OnDutyTransition(ctx, tx, u, d, "")
		return err
	}))
	return out
}

func logs(t *testing.T, s store.Store, ref model.Ref) []model.OfficerLog {
	t.Helper()
	ctx := context.Background()
	var out []model.OfficerLog
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = dutylog.New().Logs(ctx, tx, ref)
		return err
	}))
	return out
}

func TestOnDutyIsIdempotent(t *testing.T) {
	s := sqlitetest.New(t, sqlitetest.Default())
	tr := dutylog.New()

	first := transition(t, s, tr, "off-1", model.ShouldDoSetOnDuty)
	require.NotNil(t, first.Opened)
	assert.Equal(t, "user-1", first.Opened.UserID)
	second := transition(t, s, tr, "off-1", model.ShouldDoSetOnDuty)
	assert.Nil(t, second.Opened)

	l := logs(t, s, off1)
	require.Len(t, l, 1)
	assert.True(t, l[0].Open())
}

func TestShiftCycle(t *testing.T) {
	s := sqlitetest.New(t, sqlitetest.Default())
	c := &clock{t: time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)}
	tr := dutylog.NewWithClock(c.now)

	transition(t, s, tr, "off-1", model.ShouldDoSetOnDuty)
	out := transition(t, s, tr, "off-1", model.ShouldDoSetOffDuty)
	require.NotNil(t, out.Closed)
	assert.Equal(t, time.Minute, out.Closed.Duration(time.Now()))
	transition(t, s, tr, "off-1", model.ShouldDoSetOnDuty)

	l := logs(t, s, off1)
	require.Len(t, l, 2)
	assert.True(t, l[0].Open())
	assert.False(t, l[1].Open())
}

func TestOtherDirectivesLeaveLogAlone(t *testing.T) {
	s := sqlitetest.New(t, sqlitetest.Default())
	tr := dutylog.New()
	for _, d := range []model.ShouldDo{model.ShouldDoSetAssigned, model.ShouldDoPanicButton, model.ShouldDoSetStatus} {
		out := transition(t, s, tr, "off-1", d)
		assert.Equal(t, dutylog.Transition{}, out)
	}
	assert.Empty(t, logs(t, s, off1))
}

func TestOffDutyCascade(t *testing.T) {
	f := sqlitetest.Default()
	f.Calls = append(f.Calls, sqlite.CallFixture{ID: "call-3", CaseNumber: 4, Name: "Shots fired"})
	f.Officers[0].ActiveCallID = "call-3"
	s := sqlitetest.New(t, f)
	ctx := context.Background()
	tr := dutylog.New()
	transition(t, s, tr, "off-1", model.ShouldDoSetOnDuty)

	off2 := model.Ref{Kind: model.KindOfficer, ID: "off-2"}
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		now := time.Now()
		for i, call := range []string{"call-1", "call-2", "call-3", "call-ended"} {
			require.NoError(t, tx.InsertAssignedUnit(ctx, model.AssignedUnit{ID: "a" + call, CallID: call, Unit: off1, CreatedAt: now.Add(time.Duration(i) * time.Second)}))
		}
		return tx.InsertAssignedUnit(ctx, model.AssignedUnit{ID: "b1", CallID: "call-1", Unit: off2, CreatedAt: now})
	}))

	out := transition(t, s, tr, "off-1", model.ShouldDoSetOffDuty)
	require.NotNil(t, out.Closed)
	require.Len(t, out.CallChanges, 3)
	assert.Equal(t, int64(4), out.Detached)
	seen := map[string]bool{}
	for _, ch := range out.CallChanges {
		assert.False(t, seen[ch.CallID], "one change per call")
		seen[ch.CallID] = true
		for _, au := range ch.AssignedUnits {
			assert.NotEqual(t, off1, au.Unit)
		}
	}
	assert.Len(t, out.CallChanges[0].AssignedUnits, 1)

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		n, err := tx.CountOpenAssignments(ctx, off1)
		require.NoError(t, err)
		assert.Zero(t, n)
		ended, err := tx.Call(ctx, "call-ended")
		require.NoError(t, err)
		assert.False(t, ended.HasUnit(off1))
		u, err := tx.FindUnit(ctx, "off-1")
		require.NoError(t, err)
		assert.Nil(t, u.(model.CallTracker).ActiveCall())
		_, err = tx.OpenDutyLog(ctx, off1)
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	}))
}

func TestOffDutyWithoutOpenLog(t *testing.T) {
	s := sqlitetest.New(t, sqlitetest.Default())
	out := transition(t, s, dutylog.New(), "comb-1", model.ShouldDoSetOffDuty)
	assert.Nil(t, out.Closed)
	assert.Empty(t, out.CallChanges)
}
