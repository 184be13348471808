package model

import "fmt"

// Kind discriminates the unit variants.
type Kind int

const (
	KindOfficer Kind = iota
	KindEmsFdDeputy
	KindCombined
)

// String returns the identifier used in storage and on the wire.
func (k Kind) String() string {
	switch k {
	case KindOfficer:
		return "officer"
	case KindEmsFdDeputy:
		return "ems-fd"
	case KindCombined:
		return "combined"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "officer":
		return KindOfficer, nil
	case "ems-fd":
		return KindEmsFdDeputy, nil
	case "combined":
		return KindCombined, nil
	}
	return 0, fmt.Errorf("unknown unit kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Ref identifies exactly one unit across the variant tables.
type Ref struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

func (r Ref) String() string { return r.Kind.String() + ":" + r.ID }

// Unit is a dispatchable actor. The concrete type is one of *Officer,
// *EmsFdDeputy or *CombinedUnit.
type Unit interface {
	Ref() Ref
	Callsign() string
	DepartmentID() string
	Status() *StatusValue
	// SetStatus replaces the in-memory status after a committed write.
	SetStatus(*StatusValue)
}

// Whitelistable is implemented by units that carry their own whitelist gate.
// Combined units are evaluated per member and do not implement it.
type Whitelistable interface {
	Unit
	WhitelistStatus() *string
}

// CallTracker is implemented by units that keep the active-call shorthand.
type CallTracker interface {
	Unit
	ActiveCall() *string
	SetActiveCall(*string)
}

// Owned is implemented by units that belong to a single user.
type Owned interface {
	Owner() string
}

// Member holds the fields shared by single-person units.
type Member struct {
	ID                string       `json:"id"`
	UserID            string       `json:"userId"`
	CallsignText      string       `json:"callsign"`
	Department        string       `json:"departmentId"`
	CurrentStatus     *StatusValue `json:"status,omitempty"`
	WhitelistStatusID *string      `json:"whitelistStatusId,omitempty"`
	ActiveCallID      *string      `json:"activeCallId,omitempty"`
}

func (m *Member) Callsign() string         { return m.CallsignText }
func (m *Member) DepartmentID() string     { return m.Department }
func (m *Member) Status() *StatusValue     { return m.CurrentStatus }
func (m *Member) SetStatus(s *StatusValue) { m.CurrentStatus = s }
func (m *Member) WhitelistStatus() *string { return m.WhitelistStatusID }
func (m *Member) ActiveCall() *string      { return m.ActiveCallID }
func (m *Member) SetActiveCall(id *string) { m.ActiveCallID = id }
func (m *Member) Owner() string            { return m.UserID }

// Officer is a law-enforcement unit.
type Officer struct {
	Member
}

func (o *Officer) Ref() Ref { return Ref{Kind: KindOfficer, ID: o.ID} }

// EmsFdDeputy is an EMS or fire department unit.
type EmsFdDeputy struct {
	Member
}

func (d *EmsFdDeputy) Ref() Ref { return Ref{Kind: KindEmsFdDeputy, ID: d.ID} }

// CombinedUnit groups several officers under one callsign.
type CombinedUnit struct {
	ID            string       `json:"id"`
	CallsignText  string       `json:"callsign"`
	Department    string       `json:"departmentId"`
	CurrentStatus *StatusValue `json:"status,omitempty"`
	OfficerIDs    []string     `json:"officerIds"`
}

func (c *CombinedUnit) Ref() Ref                 { return Ref{Kind: KindCombined, ID: c.ID} }
func (c *CombinedUnit) Callsign() string         { return c.CallsignText }
func (c *CombinedUnit) DepartmentID() string     { return c.Department }
func (c *CombinedUnit) Status() *StatusValue     { return c.CurrentStatus }
func (c *CombinedUnit) SetStatus(s *StatusValue) { c.CurrentStatus = s }

// InPanic reports whether the unit's current status is the panic status.
func InPanic(u Unit) bool {
	s := u.Status()
	return s != nil && s.ShouldDo == ShouldDoPanicButton
}

// OffDuty reports whether the unit is off duty. A unit without status is
// considered off duty.
func OffDuty(u Unit) bool {
	s := u.Status()
	return s == nil || s.ShouldDo == ShouldDoSetOffDuty
}
