package api

import (
	"time"

	"github.com/kilianp07/cad/core/model"
)

// UnitResponse is the wire form of any unit variant.
type UnitResponse struct {
	Kind              string             `json:"kind" enum:"officer,ems-fd,combined"`
	ID                string             `json:"id"`
	Callsign          string             `json:"callsign"`
	DepartmentID      string             `json:"departmentId"`
	Status            *model.StatusValue `json:"status,omitempty"`
	InPanic           bool               `json:"inPanic"`
	UserID            string             `json:"userId,omitempty"`
	WhitelistStatusID *string            `json:"whitelistStatusId,omitempty"`
	ActiveCallID      *string            `json:"activeCallId,omitempty"`
	OfficerIDs        []string           `json:"officerIds,omitempty"`
}

func unitResponse(u model.Unit) UnitResponse {
	ref := u.Ref()
	out := UnitResponse{
		Kind:         ref.Kind.String(),
		ID:           ref.ID,
		Callsign:     u.Callsign(),
		DepartmentID: u.DepartmentID(),
		Status:       u.Status(),
		InPanic:      model.InPanic(u),
	}
	if o, ok := u.(model.Owned); ok {
		out.UserID = o.Owner()
	}
	if w, ok := u.(model.Whitelistable); ok {
		out.WhitelistStatusID = w.WhitelistStatus()
	}
	if c, ok := u.(model.CallTracker); ok {
		out.ActiveCallID = c.ActiveCall()
	}
	if c, ok := u.(*model.CombinedUnit); ok {
		out.OfficerIDs = c.OfficerIDs
	}
	return out
}

// AssignedUnitResponse is one link of a call.
type AssignedUnitResponse struct {
	ID        string    `json:"id"`
	UnitKind  string    `json:"unitKind"`
	UnitID    string    `json:"unitId"`
	CreatedAt time.Time `json:"createdAt"`
}

// CallResponse is a call with its assigned units.
type CallResponse struct {
	ID            string                 `json:"id"`
	CaseNumber    int64                  `json:"caseNumber"`
	Name          string                 `json:"name"`
	Location      string                 `json:"location"`
	Ended         bool                   `json:"ended"`
	AssignedUnits []AssignedUnitResponse `json:"assignedUnits"`
}

func callResponse(c model.Call911) CallResponse {
	out := CallResponse{
		ID:            c.ID,
		CaseNumber:    c.CaseNumber,
		Name:          c.Name,
		Location:      c.Location,
		Ended:         c.Ended,
		AssignedUnits: make([]AssignedUnitResponse, 0, len(c.AssignedUnits)),
	}
	for _, au := range c.AssignedUnits {
		out.AssignedUnits = append(out.AssignedUnits, AssignedUnitResponse{
			ID:        au.ID,
			UnitKind:  au.Unit.Kind.String(),
			UnitID:    au.Unit.ID,
			CreatedAt: au.CreatedAt,
		})
	}
	return out
}

// UnitError describes why one unit of a batch was rejected.
type UnitError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AssignResponse reports the per-unit outcome of an assignment request.
type AssignResponse struct {
	CallID   string               `json:"callId"`
	Assigned []string             `json:"assigned"`
	Skipped  []string             `json:"skipped"`
	Errors   map[string]UnitError `json:"errors"`
}

// WhitelistResponse reports the gate evaluation of a department change.
type WhitelistResponse struct {
	StatusID     *string `json:"statusId,omitempty"`
	State        string  `json:"state,omitempty"`
	Pending      bool    `json:"pending"`
	DepartmentID string  `json:"departmentId"`
}

// DepartmentResponse is the result of a department change.
type DepartmentResponse struct {
	Unit      UnitResponse      `json:"unit"`
	Whitelist WhitelistResponse `json:"whitelist"`
}

// LogResponse is one shift of a unit.
type LogResponse struct {
	ID              string     `json:"id"`
	UserID          string     `json:"userId,omitempty"`
	StartedAt       time.Time  `json:"startedAt"`
	EndedAt         *time.Time `json:"endedAt,omitempty"`
	DurationSeconds float64    `json:"durationSeconds"`
}

func logResponses(logs []model.OfficerLog, now time.Time) []LogResponse {
	out := make([]LogResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, LogResponse{
			ID:              l.ID,
			UserID:          l.UserID,
			StartedAt:       l.StartedAt,
			EndedAt:         l.EndedAt,
			DurationSeconds: l.Duration(now).Seconds(),
		})
	}
	return out
}
