package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/cad/core/model"
	"github.com/kilianp07/cad/core/store"
)

// timeLayout is fixed width so that TEXT timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Tx implements store.Tx on a database transaction.
type Tx struct {
	tx *sql.Tx
}

var _ store.Tx = (*Tx)(nil)

// ErrNoActiveCall is returned when the active-call shorthand is written for a
// combined unit.
var ErrNoActiveCall = errors.New("combined units do not track an active call")

func unitTable(k model.Kind) (string, error) {
	switch k {
	case model.KindOfficer:
		return "officers", nil
	case model.KindEmsFdDeputy:
		return "ems_fd_deputies", nil
	case model.KindCombined:
		return "combined_units", nil
	}
	return "", fmt.Errorf("unknown unit kind %d", k)
}

func assignColumn(k model.Kind) (string, error) {
	switch k {
	case model.KindOfficer:
		return "officer_id", nil
	case model.KindEmsFdDeputy:
		return "ems_fd_deputy_id", nil
	case model.KindCombined:
		return "combined_unit_id", nil
	}
	return "", fmt.Errorf("unknown unit kind %d", k)
}

func nullable(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func ptr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

type statusCols struct {
	id, value, shouldDo, color sql.NullString
}

func (c statusCols) status() *model.StatusValue {
	if !c.id.Valid {
		return nil
	}
	return &model.StatusValue{
		ID:       c.id.String,
		Value:    c.value.String,
		ShouldDo: model.ShouldDo(c.shouldDo.String),
		Color:    c.color.String,
	}
}

// FindUnit resolves id against every unit table.
func (t *Tx) FindUnit(ctx context.Context, id string) (model.Unit, error) {
	for _, k := range []model.Kind{model.KindOfficer, model.KindEmsFdDeputy} {
		m, err := t.member(ctx, k, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if k == model.KindOfficer {
			return &model.Officer{Member: m}, nil
		}
		return &model.EmsFdDeputy{Member: m}, nil
	}
	return t.combined(ctx, id)
}

func (t *Tx) member(ctx context.Context, k model.Kind, id string) (model.Member, error) {
	table, err := unitTable(k)
	if err != nil {
		return model.Member{}, err
	}
	var (
		m                 model.Member
		userID, dept      sql.NullString
		whitelist, active sql.NullString
		st                statusCols
	)
	err = t.tx.QueryRowContext(ctx, `SELECT u.id, u.user_id, u.callsign, u.department_id, u.whitelist_status_id, u.active_call_id,
       s.id, s.value, s.should_do, s.color
FROM `+table+` u LEFT JOIN status_values s ON s.id = u.status_id
WHERE u.id = ?`, id).Scan(&m.ID, &userID, &m.CallsignText, &dept, &whitelist, &active,
		&st.id, &st.value, &st.shouldDo, &st.color)
	if err == sql.ErrNoRows {
		return m, store.ErrNotFound
	}
	if err != nil {
		return m, err
	}
	m.UserID = userID.String
	m.Department = dept.String
	m.WhitelistStatusID = ptr(whitelist)
	m.ActiveCallID = ptr(active)
	m.CurrentStatus = st.status()
	return m, nil
}

func (t *Tx) combined(ctx context.Context, id string) (model.Unit, error) {
	var (
		c    model.CombinedUnit
		dept sql.NullString
		st   statusCols
	)
	err := t.tx.QueryRowContext(ctx, `SELECT u.id, u.callsign, u.department_id, s.id, s.value, s.should_do, s.color
FROM combined_units u LEFT JOIN status_values s ON s.id = u.status_id
WHERE u.id = ?`, id).Scan(&c.ID, &c.CallsignText, &dept, &st.id, &st.value, &st.shouldDo, &st.color)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Department = dept.String
	c.CurrentStatus = st.status()
	rows, err := t.tx.QueryContext(ctx, `SELECT officer_id FROM combined_unit_officers WHERE combined_unit_id = ? ORDER BY officer_id`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var oid string
		if err := rows.Scan(&oid); err != nil {
			return nil, err
		}
		c.OfficerIDs = append(c.OfficerIDs, oid)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &c, nil
}

// SetUnitStatus points the unit at a status value; nil clears it.
func (t *Tx) SetUnitStatus(ctx context.Context, ref model.Ref, statusID *string) error {
	table, err := unitTable(ref.Kind)
	if err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, `UPDATE `+table+` SET status_id = ? WHERE id = ?`, nullable(statusID), ref.ID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// SetActiveCall writes the active-call shorthand of an officer or deputy.
func (t *Tx) SetActiveCall(ctx context.Context, ref model.Ref, callID *string) error {
	if ref.Kind == model.KindCombined {
		return ErrNoActiveCall
	}
	table, err := unitTable(ref.Kind)
	if err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, `UPDATE `+table+` SET active_call_id = ? WHERE id = ?`, nullable(callID), ref.ID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// SetUnitDepartment writes the department and, for officers and deputies, the
// whitelist reference.
func (t *Tx) SetUnitDepartment(ctx context.Context, ref model.Ref, departmentID string, whitelistStatusID *string) error {
	table, err := unitTable(ref.Kind)
	if err != nil {
		return err
	}
	var res sql.Result
	if ref.Kind == model.KindCombined {
		if whitelistStatusID != nil {
			return fmt.Errorf("combined unit %s: whitelist status is evaluated per member", ref.ID)
		}
		res, err = t.tx.ExecContext(ctx, `UPDATE combined_units SET department_id = ? WHERE id = ?`, departmentID, ref.ID)
	} else {
		res, err = t.tx.ExecContext(ctx, `UPDATE `+table+` SET department_id = ?, whitelist_status_id = ? WHERE id = ?`,
			departmentID, nullable(whitelistStatusID), ref.ID)
	}
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// StatusValue returns the status with the given id.
func (t *Tx) StatusValue(ctx context.Context, id string) (model.StatusValue, error) {
	return t.scanStatus(t.tx.QueryRowContext(ctx, `SELECT id, value, should_do, color FROM status_values WHERE id = ?`, id))
}

// StatusByShouldDo returns the oldest status carrying the directive.
func (t *Tx) StatusByShouldDo(ctx context.Context, d model.ShouldDo) (model.StatusValue, error) {
	return t.scanStatus(t.tx.QueryRowContext(ctx, `SELECT id, value, should_do, color FROM status_values WHERE should_do = ? ORDER BY rowid LIMIT 1`, string(d)))
}

func (t *Tx) scanStatus(row *sql.Row) (model.StatusValue, error) {
	var (
		s     model.StatusValue
		do    string
		color sql.NullString
	)
	err := row.Scan(&s.ID, &s.Value, &do, &color)
	if err == sql.ErrNoRows {
		return s, store.ErrNotFound
	}
	if err != nil {
		return s, err
	}
	s.ShouldDo = model.ShouldDo(do)
	s.Color = color.String
	return s, nil
}

// Department returns the department with the given id.
func (t *Tx) Department(ctx context.Context, id string) (model.DepartmentValue, error) {
	return scanDepartment(t.tx.QueryRowContext(ctx, `SELECT id, value, callsign, whitelisted, is_default FROM departments WHERE id = ?`, id))
}

// DefaultDepartment returns the department flagged as default.
func (t *Tx) DefaultDepartment(ctx context.Context) (model.DepartmentValue, error) {
	return scanDepartment(t.tx.QueryRowContext(ctx, `SELECT id, value, callsign, whitelisted, is_default FROM departments WHERE is_default = 1 ORDER BY rowid LIMIT 1`))
}

func scanDepartment(row *sql.Row) (model.DepartmentValue, error) {
	var (
		d        model.DepartmentValue
		callsign sql.NullString
	)
	err := row.Scan(&d.ID, &d.Value, &callsign, &d.Whitelisted, &d.IsDefaultDepartment)
	if err == sql.ErrNoRows {
		return d, store.ErrNotFound
	}
	if err != nil {
		return d, err
	}
	d.Callsign = callsign.String
	return d, nil
}

// WhitelistStatus returns the whitelist record with the given id.
func (t *Tx) WhitelistStatus(ctx context.Context, id string) (model.LeoWhitelistStatus, error) {
	var (
		ws    model.LeoWhitelistStatus
		state string
	)
	err := t.tx.QueryRowContext(ctx, `SELECT id, status, department_id FROM whitelist_statuses WHERE id = ?`, id).
		Scan(&ws.ID, &state, &ws.DepartmentID)
	if err == sql.ErrNoRows {
		return ws, store.ErrNotFound
	}
	if err != nil {
		return ws, err
	}
	ws.State = model.WhitelistState(state)
	return ws, nil
}

// InsertWhitelistStatus creates a whitelist record.
func (t *Tx) InsertWhitelistStatus(ctx context.Context, ws model.LeoWhitelistStatus) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO whitelist_statuses(id, status, department_id) VALUES (?, ?, ?)`,
		ws.ID, string(ws.State), ws.DepartmentID)
	return err
}

// UpdateWhitelistStatus overwrites state and department of a record.
func (t *Tx) UpdateWhitelistStatus(ctx context.Context, ws model.LeoWhitelistStatus) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE whitelist_statuses SET status = ?, department_id = ? WHERE id = ?`,
		string(ws.State), ws.DepartmentID, ws.ID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// DeleteWhitelistStatus removes a record. Unit references are nulled by the
// foreign key.
func (t *Tx) DeleteWhitelistStatus(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM whitelist_statuses WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// Call returns the call and its assigned units ordered by assignment time.
func (t *Tx) Call(ctx context.Context, id string) (model.Call911, error) {
	var (
		c       model.Call911
		created string
	)
	err := t.tx.QueryRowContext(ctx, `SELECT id, case_number, name, location, ended, created_at FROM calls WHERE id = ?`, id).
		Scan(&c.ID, &c.CaseNumber, &c.Name, &c.Location, &c.Ended, &created)
	if err == sql.ErrNoRows {
		return c, store.ErrNotFound
	}
	if err != nil {
		return c, err
	}
	if c.CreatedAt, err = parseTime(created); err != nil {
		return c, fmt.Errorf("call %s created_at: %w", id, err)
	}
	c.AssignedUnits, err = t.assignedUnits(ctx, id)
	return c, err
}

func (t *Tx) assignedUnits(ctx context.Context, callID string) ([]model.AssignedUnit, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT id, officer_id, ems_fd_deputy_id, combined_unit_id, created_at
FROM assigned_units WHERE call_id = ? ORDER BY created_at, id`, callID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	res := []model.AssignedUnit{}
	for rows.Next() {
		var (
			au             model.AssignedUnit
			off, dep, comb sql.NullString
			created        string
		)
		if err := rows.Scan(&au.ID, &off, &dep, &comb, &created); err != nil {
			return nil, err
		}
		au.CallID = callID
		switch {
		case off.Valid:
			au.Unit = model.Ref{Kind: model.KindOfficer, ID: off.String}
		case dep.Valid:
			au.Unit = model.Ref{Kind: model.KindEmsFdDeputy, ID: dep.String}
		default:
			au.Unit = model.Ref{Kind: model.KindCombined, ID: comb.String}
		}
		if au.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		res = append(res, au)
	}
	return res, rows.Err()
}

// EndCall marks the call as ended.
func (t *Tx) EndCall(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE calls SET ended = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// OpenCallsForUnit lists the open calls the unit is linked to.
func (t *Tx) OpenCallsForUnit(ctx context.Context, ref model.Ref) ([]model.Call911, error) {
	col, err := assignColumn(ref.Kind)
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.QueryContext(ctx, `SELECT c.id FROM calls c JOIN assigned_units a ON a.call_id = c.id
WHERE a.`+col+` = ? AND c.ended = 0 ORDER BY a.created_at, c.id`, ref.ID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()
	calls := make([]model.Call911, 0, len(ids))
	for _, id := range ids {
		c, err := t.Call(ctx, id)
		if err != nil {
			return nil, err
		}
		calls = append(calls, c)
	}
	return calls, nil
}

// CountOpenAssignments counts links to calls that are not ended.
func (t *Tx) CountOpenAssignments(ctx context.Context, ref model.Ref) (int, error) {
	col, err := assignColumn(ref.Kind)
	if err != nil {
		return 0, err
	}
	var n int
	err = t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM assigned_units a JOIN calls c ON c.id = a.call_id
WHERE a.`+col+` = ? AND c.ended = 0`, ref.ID).Scan(&n)
	return n, err
}

// InsertAssignedUnit links a unit to a call.
func (t *Tx) InsertAssignedUnit(ctx context.Context, au model.AssignedUnit) error {
	col, err := assignColumn(au.Unit.Kind)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `INSERT INTO assigned_units(id, call_id, `+col+`, created_at) VALUES (?, ?, ?, ?)`,
		au.ID, au.CallID, au.Unit.ID, formatTime(au.CreatedAt))
	return err
}

// DeleteAssignedUnit removes one link.
func (t *Tx) DeleteAssignedUnit(ctx context.Context, callID string, ref model.Ref) error {
	col, err := assignColumn(ref.Kind)
	if err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, `DELETE FROM assigned_units WHERE call_id = ? AND `+col+` = ?`, callID, ref.ID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// DeleteAssignmentsForUnit removes every link of the unit, open calls or not.
func (t *Tx) DeleteAssignmentsForUnit(ctx context.Context, ref model.Ref) (int64, error) {
	col, err := assignColumn(ref.Kind)
	if err != nil {
		return 0, err
	}
	res, err := t.tx.ExecContext(ctx, `DELETE FROM assigned_units WHERE `+col+` = ?`, ref.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// OpenDutyLog returns the unit's log without end timestamp.
func (t *Tx) OpenDutyLog(ctx context.Context, ref model.Ref) (model.OfficerLog, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT id, user_id, started_at, ended_at FROM officer_logs
WHERE unit_kind = ? AND unit_id = ? AND ended_at IS NULL`, ref.Kind.String(), ref.ID)
	if err != nil {
		return model.OfficerLog{}, err
	}
	logs, err := scanLogs(rows, ref)
	if err != nil {
		return model.OfficerLog{}, err
	}
	if len(logs) == 0 {
		return model.OfficerLog{}, store.ErrNotFound
	}
	return logs[0], nil
}

// InsertDutyLog creates a log row.
func (t *Tx) InsertDutyLog(ctx context.Context, l model.OfficerLog) error {
	var ended any
	if l.EndedAt != nil {
		ended = formatTime(*l.EndedAt)
	}
	var user any
	if l.UserID != "" {
		user = l.UserID
	}
	_, err := t.tx.ExecContext(ctx, `INSERT INTO officer_logs(id, unit_kind, unit_id, user_id, started_at, ended_at) VALUES (?, ?, ?, ?, ?, ?)`,
		l.ID, l.Unit.Kind.String(), l.Unit.ID, user, formatTime(l.StartedAt), ended)
	return err
}

// CloseDutyLog sets the end timestamp of an open log.
func (t *Tx) CloseDutyLog(ctx context.Context, id string, endedAt time.Time) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE officer_logs SET ended_at = ? WHERE id = ? AND ended_at IS NULL`,
		formatTime(endedAt), id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// DutyLogs returns the unit's logs, newest first.
func (t *Tx) DutyLogs(ctx context.Context, ref model.Ref) ([]model.OfficerLog, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT id, user_id, started_at, ended_at FROM officer_logs
WHERE unit_kind = ? AND unit_id = ? ORDER BY started_at DESC, id`, ref.Kind.String(), ref.ID)
	if err != nil {
		return nil, err
	}
	return scanLogs(rows, ref)
}

func scanLogs(rows *sql.Rows, ref model.Ref) ([]model.OfficerLog, error) {
	defer func() { _ = rows.Close() }()
	var res []model.OfficerLog
	for rows.Next() {
		var (
			l           model.OfficerLog
			user, ended sql.NullString
			started     string
		)
		if err := rows.Scan(&l.ID, &user, &started, &ended); err != nil {
			return nil, err
		}
		l.Unit = ref
		l.UserID = user.String
		var err error
		if l.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if ended.Valid {
			e, err := parseTime(ended.String)
			if err != nil {
				return nil, err
			}
			l.EndedAt = &e
		}
		res = append(res, l)
	}
	return res, rows.Err()
}
