// Package events defines the outbound events emitted after a dispatch
// transaction commits.
//
// Available event types:
//   - UnitStatusChanged: a unit's status was written
//   - CallUnitsChanged: the set of units attached to a call changed
//   - PanicToggled: a unit entered or left panic mode
//   - DispatcherPresenceChanged: a dispatcher connected or disconnected
package events
