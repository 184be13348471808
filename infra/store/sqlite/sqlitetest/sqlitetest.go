// Package sqlitetest opens throwaway SQLite stores preloaded with fixtures.
package sqlitetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kilianp07/cad/core/model"
	"github.com/kilianp07/cad/infra/store/sqlite"
)

// Status ids of the default fixtures.
const (
	StatusOnDuty   = "st-on"
	StatusOffDuty  = "st-off"
	StatusEnRoute  = "st-enroute"
	StatusPanic    = "st-panic"
	StatusCode4    = "st-code4"
	StatusBusy     = "st-busy"
	DeptDefault    = "dept-cadet"
	DeptOpen       = "dept-lspd"
	DeptGated      = "dept-swat"
	DeptGatedOther = "dept-k9"
)

// Default returns a small directory: two on-duty officers, one off-duty
// officer, one officer without status, one on-duty deputy, a combined unit and
// three calls, one of them ended.
func Default() sqlite.Fixtures {
	return sqlite.Fixtures{
		Statuses: []model.StatusValue{
			{ID: StatusOnDuty, Value: "10-8", ShouldDo: model.ShouldDoSetOnDuty, Color: "#22c55e"},
			{ID: StatusOffDuty, Value: "10-7", ShouldDo: model.ShouldDoSetOffDuty, Color: "#6b7280"},
			{ID: StatusEnRoute, Value: "En route", ShouldDo: model.ShouldDoSetAssigned, Color: "#3b82f6"},
			{ID: StatusPanic, Value: "Panic", ShouldDo: model.ShouldDoPanicButton, Color: "#ef4444"},
			{ID: StatusCode4, Value: "Code 4", ShouldDo: model.ShouldDoSituationCode},
			{ID: StatusBusy, Value: "10-6", ShouldDo: model.ShouldDoSetStatus},
		},
		Departments: []model.DepartmentValue{
			{ID: DeptDefault, Value: "Cadets", IsDefaultDepartment: true},
			{ID: DeptOpen, Value: "LSPD", Callsign: "L"},
			{ID: DeptGated, Value: "SWAT", Callsign: "S", Whitelisted: true},
			{ID: DeptGatedOther, Value: "K9", Callsign: "K", Whitelisted: true},
		},
		Officers: []sqlite.MemberFixture{
			{ID: "off-1", UserID: "user-1", Callsign: "1-A-1", Department: DeptOpen, StatusID: StatusOnDuty},
			{ID: "off-2", UserID: "user-2", Callsign: "1-A-2", Department: DeptOpen, StatusID: StatusOnDuty},
			{ID: "off-3", UserID: "user-3", Callsign: "1-A-3", Department: DeptOpen, StatusID: StatusOffDuty},
			{ID: "off-4", UserID: "user-4", Callsign: "1-A-4", Department: DeptOpen},
		},
		Deputies: []sqlite.MemberFixture{
			{ID: "ems-1", UserID: "user-5", Callsign: "M-1", Department: DeptOpen, StatusID: StatusOnDuty},
		},
		Combined: []sqlite.CombinedFixture{
			{ID: "comb-1", Callsign: "1-ADAM-12", Department: DeptOpen, StatusID: StatusOnDuty, OfficerIDs: []string{"off-1", "off-2"}},
		},
		Calls: []sqlite.CallFixture{
			{ID: "call-1", CaseNumber: 1, Name: "Robbery", Location: "Vinewood Blvd"},
			{ID: "call-2", CaseNumber: 2, Name: "Traffic stop", Location: "Route 68"},
			{ID: "call-ended", CaseNumber: 3, Name: "Noise complaint", Location: "Grove St", Ended: true},
		},
	}
}

// New opens a store in t.TempDir and loads f. The store is closed on cleanup.
func New(t testing.TB, f sqlite.Fixtures) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(sqlite.Config{Path: filepath.Join(t.TempDir(), "cad.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Seed(context.Background(), f); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return s
}
