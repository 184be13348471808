package model

// WhitelistState is the approval state of a whitelist request.
type WhitelistState string

const (
	WhitelistPending  WhitelistState = "PENDING"
	WhitelistAccepted WhitelistState = "ACCEPTED"
	WhitelistDeclined WhitelistState = "DECLINED"
)

// LeoWhitelistStatus gates a unit's membership of a whitelisted department.
type LeoWhitelistStatus struct {
	ID           string         `json:"id"`
	State        WhitelistState `json:"status"`
	DepartmentID string         `json:"departmentId"`
}

// DepartmentValue describes a department.
type DepartmentValue struct {
	ID                  string `json:"id"`
	Value               string `json:"value"`
	Callsign            string `json:"callsign,omitempty"`
	Whitelisted         bool   `json:"whitelisted"`
	IsDefaultDepartment bool   `json:"isDefaultDepartment"`
}
