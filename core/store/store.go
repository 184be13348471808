// Package store defines the persistence collaborator used by the dispatch
// core. Every mutation runs inside a transaction obtained from Store.WithTx;
// implementations must make the whole callback atomic.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/cad/core/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store opens transactions.
type Store interface {
	// WithTx runs fn in a transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(Tx) error) error
	Close() error
}

// Tx is the set of reads and writes the core performs atomically.
type Tx interface {
	Units
	Statuses
	Departments
	Whitelists
	Calls
	Assignments
	DutyLogs
}

// Units reads and mutates the unit directory.
type Units interface {
	// FindUnit resolves id against officers, deputies and combined units.
	FindUnit(ctx context.Context, id string) (model.Unit, error)
	SetUnitStatus(ctx context.Context, ref model.Ref, statusID *string) error
	SetActiveCall(ctx context.Context, ref model.Ref, callID *string) error
	SetUnitDepartment(ctx context.Context, ref model.Ref, departmentID string, whitelistStatusID *string) error
}

// Statuses reads status values.
type Statuses interface {
	StatusValue(ctx context.Context, id string) (model.StatusValue, error)
	// StatusByShouldDo returns the first status carrying the directive.
	StatusByShouldDo(ctx context.Context, d model.ShouldDo) (model.StatusValue, error)
}

// Departments reads department values.
type Departments interface {
	Department(ctx context.Context, id string) (model.DepartmentValue, error)
	DefaultDepartment(ctx context.Context) (model.DepartmentValue, error)
}

// Whitelists manages whitelist-status records.
type Whitelists interface {
	WhitelistStatus(ctx context.Context, id string) (model.LeoWhitelistStatus, error)
	InsertWhitelistStatus(ctx context.Context, ws model.LeoWhitelistStatus) error
	UpdateWhitelistStatus(ctx context.Context, ws model.LeoWhitelistStatus) error
	DeleteWhitelistStatus(ctx context.Context, id string) error
}

// Calls reads and ends calls.
type Calls interface {
	// Call returns the call with its assigned units.
	Call(ctx context.Context, id string) (model.Call911, error)
	EndCall(ctx context.Context, id string) error
	// OpenCallsForUnit lists the open calls the unit is linked to.
	OpenCallsForUnit(ctx context.Context, ref model.Ref) ([]model.Call911, error)
}

// Assignments manages AssignedUnit rows.
type Assignments interface {
	// CountOpenAssignments counts the unit's links to calls that are not ended.
	CountOpenAssignments(ctx context.Context, ref model.Ref) (int, error)
	InsertAssignedUnit(ctx context.Context, au model.AssignedUnit) error
	// DeleteAssignedUnit removes the link between the unit and the call.
	// It returns ErrNotFound when no such link exists.
	DeleteAssignedUnit(ctx context.Context, callID string, ref model.Ref) error
	DeleteAssignmentsForUnit(ctx context.Context, ref model.Ref) (int64, error)
}

// DutyLogs manages OfficerLog rows.
type DutyLogs interface {
	OpenDutyLog(ctx context.Context, ref model.Ref) (model.OfficerLog, error)
	InsertDutyLog(ctx context.Context, l model.OfficerLog) error
	CloseDutyLog(ctx context.Context, id string, endedAt time.Time) error
	DutyLogs(ctx context.Context, ref model.Ref) ([]model.OfficerLog, error)
}
