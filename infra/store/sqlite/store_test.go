package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/cad/core/model"
	"github.com/kilianp07/cad/core/store"
	"github.com/kilianp07/cad/infra/store/sqlite"
	"github.com/kilianp07/cad/infra/store/sqlite/sqlitetest"
)

func TestOpenMigratesTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cad.db")
	s, err := sqlite.Open(sqlite.Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = sqlite.Open(sqlite.Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestFindUnitVariants(t *testing.T) {
	s := sqlitetest.New(t, sqlitetest.Default())
	ctx := context.Background()
	err := s.WithTx(ctx, func(tx store.Tx) error {
		u, err := tx.FindUnit(ctx, "off-1")
		require.NoError(t, err)
		off, ok := u.(*model.Officer)
		require.True(t, ok)
		assert.Equal(t, "1-A-1", off.Callsign())
		require.NotNil(t, off.Status())
		assert.Equal(t, model.ShouldDoSetOnDuty, off.Status().ShouldDo)

		u, err = tx.FindUnit(ctx, "ems-1")
		require.NoError(t, err)
		assert.Equal(t, model.KindEmsFdDeputy, u.Ref().Kind)

		u, err = tx.FindUnit(ctx, "comb-1")
		require.NoError(t, err)
		c, ok := u.(*model.CombinedUnit)
		require.True(t, ok)
		assert.Equal(t, []string{"off-1", "off-2"}, c.OfficerIDs)

		u, err = tx.FindUnit(ctx, "off-4")
		require.NoError(t, err)
		assert.Nil(t, u.Status())

		_, err = tx.FindUnit(ctx, "nobody")
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestAssignmentLinks(t *testing.T) {
	s := sqlitetest.New(t, sqlitetest.Default())
	ctx := context.Background()
	ref := model.Ref{Kind: model.KindOfficer, ID: "off-1"}
	err := s.WithTx(ctx, func(tx store.Tx) error {
		now := time.Now()
		require.NoError(t, tx.InsertAssignedUnit(ctx, model.AssignedUnit{ID: "a1", CallID: "call-1", Unit: ref, CreatedAt: now}))
		require.NoError(t, tx.InsertAssignedUnit(ctx, model.AssignedUnit{ID: "a2", CallID: "call-ended", Unit: ref, CreatedAt: now}))
		// one link per call and unit
		assert.Error(t, tx.InsertAssignedUnit(ctx, model.AssignedUnit{ID: "a3", CallID: "call-1", Unit: ref, CreatedAt: now}))

		n, err := tx.CountOpenAssignments(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		calls, err := tx.OpenCallsForUnit(ctx, ref)
		require.NoError(t, err)
		require.Len(t, calls, 1)
		assert.Equal(t, "call-1", calls[0].ID)
		assert.True(t, calls[0].HasUnit(ref))

		assert.ErrorIs(t, tx.DeleteAssignedUnit(ctx, "call-2", ref), store.ErrNotFound)
		deleted, err := tx.DeleteAssignmentsForUnit(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, int64(2), deleted)
		return nil
	})
	require.NoError(t, err)
}

func TestWithTxRollsBack(t *testing.T) {
	s := sqlitetest.New(t, sqlitetest.Default())
	ctx := context.Background()
	ref := model.Ref{Kind: model.KindOfficer, ID: "off-1"}
	off := sqlitetest.StatusOffDuty
	err := s.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.SetUnitStatus(ctx, ref, &off))
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		u, err := tx.FindUnit(ctx, "off-1")
		require.NoError(t, err)
		assert.Equal(t, sqlitetest.StatusOnDuty, u.Status().ID)
		return nil
	}))
}

func TestDutyLogOneOpenPerUnit(t *testing.T) {
	s := sqlitetest.New(t, sqlitetest.Default())
	ctx := context.Background()
	ref := model.Ref{Kind: model.KindOfficer, ID: "off-1"}
	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.OpenDutyLog(ctx, ref)
		assert.ErrorIs(t, err, store.ErrNotFound)

		require.NoError(t, tx.InsertDutyLog(ctx, model.OfficerLog{ID: "l1", Unit: ref, UserID: "user-1", StartedAt: start}))
		assert.Error(t, tx.InsertDutyLog(ctx, model.OfficerLog{ID: "l2", Unit: ref, StartedAt: start}))

		open, err := tx.OpenDutyLog(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, "l1", open.ID)
		assert.True(t, open.StartedAt.Equal(start))

		require.NoError(t, tx.CloseDutyLog(ctx, "l1", start.Add(time.Hour)))
		assert.ErrorIs(t, tx.CloseDutyLog(ctx, "l1", start.Add(2*time.Hour)), store.ErrNotFound)

		logs, err := tx.DutyLogs(ctx, ref)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, time.Hour, logs[0].Duration(time.Now()))
		return nil
	}))
}

func TestTimestampsSortWithinOneSecond(t *testing.T) {
	s := sqlitetest.New(t, sqlitetest.Default())
	ctx := context.Background()
	ref := model.Ref{Kind: model.KindOfficer, ID: "off-1"}
	older := time.Date(2024, 5, 1, 8, 0, 5, 120_000_000, time.UTC)
	newer := time.Date(2024, 5, 1, 8, 0, 5, 123_000_000, time.UTC)
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.InsertDutyLog(ctx, model.OfficerLog{ID: "a-older", Unit: ref, StartedAt: older}))
		require.NoError(t, tx.CloseDutyLog(ctx, "a-older", older.Add(time.Millisecond)))
		require.NoError(t, tx.InsertDutyLog(ctx, model.OfficerLog{ID: "b-newer", Unit: ref, StartedAt: newer}))

		logs, err := tx.DutyLogs(ctx, ref)
		require.NoError(t, err)
		require.Len(t, logs, 2)
		assert.Equal(t, "b-newer", logs[0].ID)
		assert.True(t, logs[0].StartedAt.Equal(newer))
		assert.True(t, logs[1].StartedAt.Equal(older))

		// ids sort the other way round so only created_at decides
		require.NoError(t, tx.InsertAssignedUnit(ctx, model.AssignedUnit{ID: "z-first", CallID: "call-1", Unit: ref, CreatedAt: older}))
		require.NoError(t, tx.InsertAssignedUnit(ctx, model.AssignedUnit{ID: "a-second", CallID: "call-1",
			Unit: model.Ref{Kind: model.KindOfficer, ID: "off-2"}, CreatedAt: newer}))
		c, err := tx.Call(ctx, "call-1")
		require.NoError(t, err)
		require.Len(t, c.AssignedUnits, 2)
		assert.Equal(t, "z-first", c.AssignedUnits[0].ID)
		assert.True(t, c.AssignedUnits[0].CreatedAt.Equal(older))
		return nil
	}))
}

func TestWhitelistRecordLifecycle(t *testing.T) {
	s := sqlitetest.New(t, sqlitetest.Default())
	ctx := context.Background()
	ref := model.Ref{Kind: model.KindOfficer, ID: "off-1"}
	wsID := "ws-1"
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.InsertWhitelistStatus(ctx, model.LeoWhitelistStatus{ID: wsID, State: model.WhitelistPending, DepartmentID: sqlitetest.DeptGated}))
		return tx.SetUnitDepartment(ctx, ref, sqlitetest.DeptGated, &wsID)
	}))
	require.NoError(t, s.SetWhitelistState(ctx, wsID, model.WhitelistAccepted))

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		ws, err := tx.WhitelistStatus(ctx, wsID)
		require.NoError(t, err)
		assert.Equal(t, model.WhitelistAccepted, ws.State)

		require.NoError(t, tx.DeleteWhitelistStatus(ctx, wsID))
		u, err := tx.FindUnit(ctx, "off-1")
		require.NoError(t, err)
		assert.Nil(t, u.(model.Whitelistable).WhitelistStatus())
		assert.Equal(t, sqlitetest.DeptGated, u.DepartmentID())
		return nil
	}))
}

func TestActiveCallRejectedForCombined(t *testing.T) {
	s := sqlitetest.New(t, sqlitetest.Default())
	ctx := context.Background()
	call := "call-1"
	err := s.WithTx(ctx, func(tx store.Tx) error {
		return tx.SetActiveCall(ctx, model.Ref{Kind: model.KindCombined, ID: "comb-1"}, &call)
	})
	assert.ErrorIs(t, err, sqlite.ErrNoActiveCall)
}

func TestDefaultDepartment(t *testing.T) {
	f := sqlitetest.Default()
	f.Departments[0].IsDefaultDepartment = false
	s := sqlitetest.New(t, f)
	ctx := context.Background()
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.DefaultDepartment(ctx)
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	}))
}
