package model

import "time"

// Call911 is an incident units can be assigned to.
type Call911 struct {
	ID            string         `json:"id"`
	CaseNumber    int64          `json:"caseNumber"`
	Name          string         `json:"name"`
	Location      string         `json:"location"`
	Ended         bool           `json:"ended"`
	CreatedAt     time.Time      `json:"createdAt"`
	AssignedUnits []AssignedUnit `json:"assignedUnits"`
}

// Open reports whether units may still be attached.
func (c Call911) Open() bool { return !c.Ended }

// HasUnit reports whether ref is linked to the call.
func (c Call911) HasUnit(ref Ref) bool {
	for _, au := range c.AssignedUnits {
		if au.Unit == ref {
			return true
		}
	}
	return false
}

// AssignedUnit links exactly one unit to one call.
type AssignedUnit struct {
	ID        string    `json:"id"`
	CallID    string    `json:"callId"`
	Unit      Ref       `json:"unit"`
	CreatedAt time.Time `json:"createdAt"`
}
