package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kilianp07/cad/core/model"
)

// Fixtures are the records owned by collaborators outside the dispatch core
// (values admin, unit management, call intake). They are loaded by the seed
// command and by tests.
type Fixtures struct {
	Statuses    []model.StatusValue        `json:"statuses"`
	Departments []model.DepartmentValue    `json:"departments"`
	Whitelists  []model.LeoWhitelistStatus `json:"whitelists"`
	Officers    []MemberFixture            `json:"officers"`
	Deputies    []MemberFixture            `json:"deputies"`
	Combined    []CombinedFixture          `json:"combined"`
	Calls       []CallFixture              `json:"calls"`
}

// MemberFixture describes an officer or an EMS/FD deputy.
type MemberFixture struct {
	ID                string `json:"id"`
	UserID            string `json:"userId"`
	Callsign          string `json:"callsign"`
	Department        string `json:"departmentId"`
	StatusID          string `json:"statusId"`
	WhitelistStatusID string `json:"whitelistStatusId"`
	ActiveCallID      string `json:"activeCallId"`
}

// CombinedFixture describes a combined unit by its member officers.
type CombinedFixture struct {
	ID         string   `json:"id"`
	Callsign   string   `json:"callsign"`
	Department string   `json:"departmentId"`
	StatusID   string   `json:"statusId"`
	OfficerIDs []string `json:"officerIds"`
}

// CallFixture describes an incoming call.
type CallFixture struct {
	ID         string `json:"id"`
	CaseNumber int64  `json:"caseNumber"`
	Name       string `json:"name"`
	Location   string `json:"location"`
	Ended      bool   `json:"ended"`
}

// Seed inserts the fixtures in one transaction.
func (s *Store) Seed(ctx context.Context, f Fixtures) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, st := range f.Statuses {
		if !st.ShouldDo.Valid() {
			return fmt.Errorf("status %s: unknown shouldDo %q", st.ID, st.ShouldDo)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO status_values(id, value, should_do, color) VALUES (?, ?, ?, ?)`,
			st.ID, st.Value, string(st.ShouldDo), st.Color); err != nil {
			return fmt.Errorf("insert status %s: %w", st.ID, err)
		}
	}
	for _, d := range f.Departments {
		if _, err := tx.ExecContext(ctx, `INSERT INTO departments(id, value, callsign, whitelisted, is_default) VALUES (?, ?, ?, ?, ?)`,
			d.ID, d.Value, d.Callsign, d.Whitelisted, d.IsDefaultDepartment); err != nil {
			return fmt.Errorf("insert department %s: %w", d.ID, err)
		}
	}
	for _, w := range f.Whitelists {
		if _, err := tx.ExecContext(ctx, `INSERT INTO whitelist_statuses(id, status, department_id) VALUES (?, ?, ?)`,
			w.ID, string(w.State), w.DepartmentID); err != nil {
			return fmt.Errorf("insert whitelist status %s: %w", w.ID, err)
		}
	}
	for _, c := range f.Calls {
		if _, err := tx.ExecContext(ctx, `INSERT INTO calls(id, case_number, name, location, ended, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			c.ID, c.CaseNumber, c.Name, c.Location, c.Ended, formatTime(time.Now())); err != nil {
			return fmt.Errorf("insert call %s: %w", c.ID, err)
		}
	}
	for _, m := range f.Officers {
		if err := insertMember(ctx, tx, "officers", m); err != nil {
			return err
		}
	}
	for _, m := range f.Deputies {
		if err := insertMember(ctx, tx, "ems_fd_deputies", m); err != nil {
			return err
		}
	}
	for _, c := range f.Combined {
		if _, err := tx.ExecContext(ctx, `INSERT INTO combined_units(id, callsign, department_id, status_id) VALUES (?, ?, ?, ?)`,
			c.ID, c.Callsign, emptyNull(c.Department), emptyNull(c.StatusID)); err != nil {
			return fmt.Errorf("insert combined unit %s: %w", c.ID, err)
		}
		for _, oid := range c.OfficerIDs {
			if _, err := tx.ExecContext(ctx, `INSERT INTO combined_unit_officers(combined_unit_id, officer_id) VALUES (?, ?)`, c.ID, oid); err != nil {
				return fmt.Errorf("insert combined member %s/%s: %w", c.ID, oid, err)
			}
		}
	}
	return tx.Commit()
}

func insertMember(ctx context.Context, tx *sql.Tx, table string, m MemberFixture) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO `+table+`(id, user_id, callsign, department_id, status_id, whitelist_status_id, active_call_id)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, emptyNull(m.UserID), m.Callsign, emptyNull(m.Department), emptyNull(m.StatusID),
		emptyNull(m.WhitelistStatusID), emptyNull(m.ActiveCallID))
	if err != nil {
		return fmt.Errorf("insert %s %s: %w", table, m.ID, err)
	}
	return nil
}

// SetWhitelistState records a review decision on a whitelist request. Reviews
// happen outside the dispatch core.
func (s *Store) SetWhitelistState(ctx context.Context, id string, state model.WhitelistState) error {
	res, err := s.db.ExecContext(ctx, `UPDATE whitelist_statuses SET status = ? WHERE id = ?`, string(state), id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func emptyNull(v string) any {
	if v == "" {
		return nil
	}
	return v
}
