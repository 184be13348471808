package whitelist_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/cad/core/model"
	"github.com/kilianp07/cad/core/store"
	"github.com/kilianp07/cad/core/whitelist"
	"github.com/kilianp07/cad/infra/store/sqlite"
	"github.com/kilianp07/cad/infra/store/sqlite/sqlitetest"
)

const (
	gated = sqlitetest.DeptGated
	other = sqlitetest.DeptGatedOther
	def   = sqlitetest.DeptDefault
)

// fixtureWith gives off-1 an existing record in the given state.
func fixtureWith(state model.WhitelistState, recordDept, unitDept string) sqlite.Fixtures {
	f := sqlitetest.Default()
	f.Whitelists = []model.LeoWhitelistStatus{{ID: "ws-1", State: state, DepartmentID: recordDept}}
	f.Officers[0].Department = unitDept
	f.Officers[0].WhitelistStatusID = "ws-1"
	return f
}

func apply(t *testing.T, s store.Store, unitID, dept string) (whitelist.Result, error) {
	t.Helper()
	ctx := context.Background()
	var (
		res    whitelist.Result
		resErr error
	)
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		u, err := tx.FindUnit(ctx, unitID)
		require.NoError(t, err)
		res, resErr = whitelist.New().ApplyDepartment(ctx, tx, u, dept)
		return nil
	}))
	return res, resErr
}

func record(t *testing.T, s store.Store, id string) model.LeoWhitelistStatus {
	t.Helper()
	ctx := context.Background()
	var rec model.LeoWhitelistStatus
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		var err error
		rec, err = tx.WhitelistStatus(ctx, id)
		return err
	}))
	return rec
}

func TestApplyDepartmentMatrix(t *testing.T) {
	tests := []struct {
		name       string
		state      model.WhitelistState
		recordDept string
		unitDept   string
		wantState  model.WhitelistState
		wantGated  bool
	}{
		{"pending same department", model.WhitelistPending, gated, def, model.WhitelistPending, true},
		{"pending different department", model.WhitelistPending, other, def, model.WhitelistPending, true},
		{"accepted same department", model.WhitelistAccepted, gated, gated, model.WhitelistAccepted, false},
		{"accepted different department", model.WhitelistAccepted, other, other, model.WhitelistPending, true},
		{"declined same department", model.WhitelistDeclined, gated, gated, model.WhitelistDeclined, true},
		{"declined different department", model.WhitelistDeclined, other, other, model.WhitelistPending, true},
		// A declined record is compared with the unit's previous department,
		// not with the department stored on the record.
		{"declined record matches but unit moved", model.WhitelistDeclined, gated, def, model.WhitelistPending, true},
		{"declined record differs but unit stayed", model.WhitelistDeclined, other, gated, model.WhitelistDeclined, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sqlitetest.New(t, fixtureWith(tt.state, tt.recordDept, tt.unitDept))
			res, err := apply(t, s, "off-1", gated)
			require.NoError(t, err)
			require.NotNil(t, res.WhitelistStatusID)
			assert.Equal(t, "ws-1", *res.WhitelistStatusID)
			assert.Equal(t, tt.wantState, res.State)
			assert.Equal(t, tt.wantGated, res.Gated())
			require.NotNil(t, res.DefaultDepartment)
			assert.Equal(t, def, res.DefaultDepartment.ID)

			rec := record(t, s, "ws-1")
			assert.Equal(t, tt.wantState, rec.State)
			if tt.wantState == model.WhitelistPending && tt.state != model.WhitelistPending {
				assert.Equal(t, gated, rec.DepartmentID)
			}
			if tt.wantGated {
				assert.Equal(t, def, res.DepartmentToWrite())
			} else {
				assert.Equal(t, gated, res.DepartmentToWrite())
			}
		})
	}
}

func TestApplyDepartmentCreatesPendingRecord(t *testing.T) {
	s := sqlitetest.New(t, sqlitetest.Default())
	res, err := apply(t, s, "off-1", gated)
	require.NoError(t, err)
	require.NotNil(t, res.WhitelistStatusID)
	assert.Equal(t, model.WhitelistPending, res.State)
	assert.Equal(t, gated, res.Department.ID)

	rec := record(t, s, *res.WhitelistStatusID)
	assert.Equal(t, model.WhitelistPending, rec.State)
	assert.Equal(t, gated, rec.DepartmentID)
}

func TestApplyDepartmentNotWhitelistedDeletesRecord(t *testing.T) {
	s := sqlitetest.New(t, fixtureWith(model.WhitelistAccepted, gated, gated))
	res, err := apply(t, s, "off-1", sqlitetest.DeptOpen)
	require.NoError(t, err)
	assert.Nil(t, res.WhitelistStatusID)
	assert.False(t, res.Gated())
	assert.Equal(t, sqlitetest.DeptOpen, res.DepartmentToWrite())

	ctx := context.Background()
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.WhitelistStatus(ctx, "ws-1")
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	}))
}

func TestApplyDepartmentWithoutDefault(t *testing.T) {
	f := sqlitetest.Default()
	f.Departments[0].IsDefaultDepartment = false
	s := sqlitetest.New(t, f)
	res, err := apply(t, s, "off-1", gated)
	require.NoError(t, err)
	assert.Nil(t, res.DefaultDepartment)
	assert.True(t, res.Gated())
	assert.Equal(t, gated, res.DepartmentToWrite())
}

func TestApplyDepartmentUnknown(t *testing.T) {
	s := sqlitetest.New(t, sqlitetest.Default())
	_, err := apply(t, s, "off-1", "dept-ghost")
	assert.ErrorIs(t, err, whitelist.ErrDepartmentNotFound)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestApplyDepartmentCombined(t *testing.T) {
	f := sqlitetest.Default()
	f.Whitelists = []model.LeoWhitelistStatus{
		{ID: "ws-1", State: model.WhitelistAccepted, DepartmentID: gated},
		{ID: "ws-2", State: model.WhitelistPending, DepartmentID: gated},
	}
	f.Officers[0].WhitelistStatusID = "ws-1"
	f.Officers[1].WhitelistStatusID = "ws-2"
	s := sqlitetest.New(t, f)

	res, err := apply(t, s, "comb-1", sqlitetest.DeptOpen)
	require.NoError(t, err)
	assert.Nil(t, res.WhitelistStatusID)

	_, err = apply(t, s, "comb-1", gated)
	assert.ErrorIs(t, err, whitelist.ErrNotWhitelistable)

	require.NoError(t, s.SetWhitelistState(context.Background(), "ws-2", model.WhitelistAccepted))
	res, err = apply(t, s, "comb-1", gated)
	require.NoError(t, err)
	assert.False(t, res.Gated())
	assert.Equal(t, gated, res.DepartmentToWrite())
}
