package dispatch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/cad/core/alert"
	"github.com/kilianp07/cad/core/assignment"
	"github.com/kilianp07/cad/core/directory"
	"github.com/kilianp07/cad/core/dispatch/logging"
	"github.com/kilianp07/cad/core/dutylog"
	"github.com/kilianp07/cad/core/events"
	"github.com/kilianp07/cad/core/logger"
	"github.com/kilianp07/cad/core/metrics"
	"github.com/kilianp07/cad/core/model"
	"github.com/kilianp07/cad/core/monitoring"
	"github.com/kilianp07/cad/core/panicmode"
	"github.com/kilianp07/cad/core/store"
	"github.com/kilianp07/cad/core/whitelist"
	"github.com/kilianp07/cad/internal/keylock"
)

// Publisher receives committed events.
type Publisher interface {
	Publish(events.Event)
}

// Manager executes inbound commands. Every command touching a unit holds that
// unit's lock across its transaction and the publication of its events.
// Events are published only after commit.
type Manager struct {
	store     store.Store
	publisher Publisher
	locks     *keylock.Locker
	whitelist *whitelist.Manager
	duty      *dutylog.Tracker
	engine    *assignment.Engine
	panics    *panicmode.Controller
	metrics   metrics.MetricsSink
	logger    logger.Logger
	cfg       Config

	mu      sync.Mutex
	journal logging.LogStore
}

// NewManager creates a new manager. A nil panic controller is replaced by one
// without external alerting and a nil sink by metrics.NopSink.
func NewManager(st store.Store, pub Publisher, pc *panicmode.Controller, sink metrics.MetricsSink, log logger.Logger, cfg Config) (*Manager, error) {
	if st == nil || pub == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewManager")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log = logger.OrNop(log)
	if pc == nil {
		pc = panicmode.New(pub, nil, alert.NewLocale(""), log, panicmode.Config{})
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Manager{
		store:     st,
		publisher: pub,
		locks:     keylock.New(),
		whitelist: whitelist.New(),
		duty:      dutylog.New(),
		engine:    assignment.New(),
		panics:    pc,
		metrics:   sink,
		logger:    log,
		cfg:       cfg,
	}, nil
}

// SetLogStore configures the journal receiving every committed command.
func (m *Manager) SetLogStore(s logging.LogStore) {
	m.mu.Lock()
	m.journal = s
	m.mu.Unlock()
}

// Close waits for in-flight alerts and closes the journal.
func (m *Manager) Close() error {
	m.panics.Wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.journal != nil {
		return m.journal.Close()
	}
	return nil
}

func unitKey(id string) string { return "unit:" + id }
func callKey(id string) string { return "call:" + id }

// lockUnits locks the given units in a stable order. Unit locks are always
// taken before a call lock.
func (m *Manager) lockUnits(ids ...string) (unlock func()) {
	ids = slices.Clone(ids)
	sort.Strings(ids)
	ids = slices.Compact(ids)
	unlocks := make([]func(), 0, len(ids))
	for _, id := range ids {
		unlocks = append(unlocks, m.locks.Lock(unitKey(id)))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

// AssignUnitsToCall links each unit to the call independently. A missing or
// ended call fails the whole request; every other failure is reported per
// unit in AssignResult.Errors.
func (m *Manager) AssignUnitsToCall(ctx context.Context, cmd AssignUnitsToCall) (AssignResult, error) {
	ctx = context.WithoutCancel(ctx)
	defer m.observe(cmdAssign, time.Now())
	res := AssignResult{CallID: cmd.CallID, Errors: make(map[string]error)}
	err := m.store.WithTx(ctx, func(tx store.Tx) error {
		_, err := m.engine.OpenCall(ctx, tx, cmd.CallID)
		return err
	})
	if err != nil {
		m.fail(cmdAssign, err)
		return res, err
	}

	linked := false
	var unitIDs []string
	for _, id := range dedupe(cmd.UnitIDs) {
		out, err := m.assignOne(ctx, cmd.CallID, id)
		if err != nil {
			res.Errors[id] = err
			unitAssignments.WithLabelValues(metrics.OutcomeFailed).Inc()
			m.logger.Debugf("assign %s to %s: %v", id, cmd.CallID, err)
			continue
		}
		unitIDs = append(unitIDs, id)
		outcome := metrics.OutcomeAssigned
		switch {
		case out.Skipped:
			outcome = metrics.OutcomeSkipped
			res.Skipped = append(res.Skipped, id)
		case out.AlreadyAssigned:
			outcome = metrics.OutcomeAlready
			res.Assigned = append(res.Assigned, id)
		default:
			linked = true
			res.Assigned = append(res.Assigned, id)
		}
		unitAssignments.WithLabelValues(outcome).Inc()
		if r, ok := m.metrics.(metrics.AssignmentRecorder); ok {
			if err := r.RecordAssignment(metrics.AssignmentEvent{CallID: cmd.CallID, Unit: out.Unit.Ref(), Outcome: outcome, Time: time.Now()}); err != nil {
				m.logger.Errorf("assignment metrics error: %v", err)
			}
		}
	}
	if linked {
		m.publishCall(ctx, cmd.CallID)
	}
	m.logger.Infof("call %s: %d assigned, %d skipped, %d failed", cmd.CallID, len(res.Assigned), len(res.Skipped), len(res.Errors))
	m.record(logging.LogRecord{
		Command: cmdAssign,
		CallID:  cmd.CallID,
		UnitIDs: unitIDs,
		Response: logging.Result{
			Assigned: res.Assigned,
			Skipped:  res.Skipped,
			Errors:   errorStrings(res.Errors),
		},
	})
	return res, nil
}

func (m *Manager) assignOne(ctx context.Context, callID, unitID string) (assignment.Outcome, error) {
	unlock := m.lockUnits(unitID)
	defer unlock()
	var out assignment.Outcome
	err := m.store.WithTx(ctx, func(tx store.Tx) error {
		call, err := m.engine.OpenCall(ctx, tx, callID)
		if err != nil {
			return err
		}
		out, err = m.engine.AssignUnit(ctx, tx, call, unitID, m.cfg.MaxAssignmentsPerUnit)
		return err
	})
	if err != nil {
		return out, err
	}
	if out.StatusChanged && out.From != model.ShouldDoSetAssigned {
		statusTransitions.WithLabelValues(directiveLabel(out.From), string(model.ShouldDoSetAssigned)).Inc()
	}
	if out.Assigned() && !out.AlreadyAssigned {
		m.publisher.Publish(events.NewUnitStatusChanged(out.Unit))
	}
	return out, nil
}

// UnassignUnitFromCall detaches one unit from a call and returns the call with
// its remaining units.
func (m *Manager) UnassignUnitFromCall(ctx context.Context, cmd UnassignUnitFromCall) (model.Call911, error) {
	ctx = context.WithoutCancel(ctx)
	defer m.observe(cmdUnassign, time.Now())
	unlock := m.lockUnits(cmd.UnitID)
	defer unlock()

	var (
		call model.Call911
		det  assignment.Detached
	)
	err := m.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		call, det, err = m.engine.Unassign(ctx, tx, cmd.CallID, cmd.UnitID)
		return err
	})
	if err != nil {
		m.fail(cmdUnassign, err)
		return call, err
	}
	if det.StatusChanged {
		statusTransitions.WithLabelValues(string(model.ShouldDoSetAssigned), string(model.ShouldDoSetOnDuty)).Inc()
	}
	m.publisher.Publish(events.NewUnitStatusChanged(det.Unit))
	m.publishCall(ctx, cmd.CallID)
	m.record(logging.LogRecord{Command: cmdUnassign, CallID: cmd.CallID, UnitIDs: []string{cmd.UnitID}})
	return call, nil
}

// EndCall ends the call and detaches every unit linked to it.
func (m *Manager) EndCall(ctx context.Context, cmd EndCall) (model.Call911, error) {
	ctx = context.WithoutCancel(ctx)
	defer m.observe(cmdEndCall, time.Now())
	for attempt := 0; attempt < m.cfg.EndCallRetries; attempt++ {
		call, err := m.endCall(ctx, cmd.CallID)
		if errors.Is(err, errUnitsChanged) {
			m.logger.Debugf("end call %s: units changed, retrying", cmd.CallID)
			continue
		}
		if err != nil {
			m.fail(cmdEndCall, err)
			return call, err
		}
		return call, nil
	}
	err := fmt.Errorf("end call %s: %w", cmd.CallID, errUnitsChanged)
	m.fail(cmdEndCall, err)
	return model.Call911{}, err
}

func (m *Manager) endCall(ctx context.Context, callID string) (model.Call911, error) {
	var ids []string
	err := m.store.WithTx(ctx, func(tx store.Tx) error {
		call, err := m.engine.OpenCall(ctx, tx, callID)
		for _, au := range call.AssignedUnits {
			ids = append(ids, au.Unit.ID)
		}
		return err
	})
	if err != nil {
		return model.Call911{}, err
	}

	unlock := m.lockUnits(ids...)
	defer unlock()
	var (
		call     model.Call911
		detached []assignment.Detached
	)
	err = m.store.WithTx(ctx, func(tx store.Tx) error {
		current, err := tx.Call(ctx, callID)
		if err != nil {
			return err
		}
		if !sameUnits(current, ids) {
			return errUnitsChanged
		}
		call, detached, err = m.engine.EndCall(ctx, tx, callID)
		return err
	})
	if err != nil {
		return call, err
	}
	for _, d := range detached {
		if d.StatusChanged {
			statusTransitions.WithLabelValues(string(model.ShouldDoSetAssigned), string(model.ShouldDoSetOnDuty)).Inc()
		}
		m.publisher.Publish(events.NewUnitStatusChanged(d.Unit))
	}
	m.publishCall(ctx, callID)
	m.logger.Infof("call %s ended, %d units detached", callID, len(detached))
	m.record(logging.LogRecord{Command: cmdEndCall, CallID: callID, UnitIDs: ids})
	return call, nil
}

func sameUnits(c model.Call911, ids []string) bool {
	if len(c.AssignedUnits) != len(ids) {
		return false
	}
	for _, au := range c.AssignedUnits {
		if !slices.Contains(ids, au.Unit.ID) {
			return false
		}
	}
	return true
}

// statusChange collects what a status write did inside its transaction.
type statusChange struct {
	unit       model.Unit
	from       model.ShouldDo
	edge       panicmode.Edge
	duty       dutylog.Transition
	department string
}

// SetUnitStatus moves a unit to a status and applies the duty log and panic
// side effects of its directive.
func (m *Manager) SetUnitStatus(ctx context.Context, cmd SetUnitStatus) (model.Unit, error) {
	ctx = context.WithoutCancel(ctx)
	defer m.observe(cmdSetStatus, time.Now())
	unlock := m.lockUnits(cmd.UnitID)
	defer unlock()

	var ch statusChange
	err := m.store.WithTx(ctx, func(tx store.Tx) error {
		u, err := directory.FindUnit(ctx, tx, cmd.UnitID)
		if err != nil {
			return err
		}
		st, err := tx.StatusValue(ctx, cmd.StatusID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: unknown status %s", ErrInvalidTransition, cmd.StatusID)
		}
		if err != nil {
			return fmt.Errorf("load status %s: %w", cmd.StatusID, err)
		}
		if !st.IsDutyState() {
			return fmt.Errorf("%w: %s is a situation code", ErrInvalidTransition, st.ID)
		}
		ch, err = m.applyStatus(ctx, tx, u, st, nil, cmd.UserID)
		return err
	})
	if err != nil {
		m.fail(cmdSetStatus, err)
		return nil, err
	}
	m.publishStatus(ctx, ch)
	m.record(logging.LogRecord{
		Command:  cmdSetStatus,
		UnitIDs:  []string{cmd.UnitID},
		UserID:   cmd.UserID,
		Response: logging.Result{StatusID: cmd.StatusID, Panic: edgeLabel(ch.edge)},
	})
	return ch.unit, nil
}

// TogglePanic forces the panic indicator. On moves the unit to the panic
// status and always fires, even when the unit already is in panic. Off moves a
// unit in panic back to the on-duty status and leaves other units untouched.
// Off-duty units cannot be put in panic.
func (m *Manager) TogglePanic(ctx context.Context, cmd TogglePanic) (model.Unit, error) {
	return m.setPanic(ctx, cmdTogglePanic, cmd.UnitID, cmd.On, true)
}

// PanicSignal applies a unit's own panic button without force: entering panic
// fires only when the unit is not in panic yet.
func (m *Manager) PanicSignal(ctx context.Context, cmd PanicSignal) (model.Unit, error) {
	return m.setPanic(ctx, cmdPanicSignal, cmd.UnitID, cmd.On, false)
}

func (m *Manager) setPanic(ctx context.Context, name, unitID string, on, forced bool) (model.Unit, error) {
	ctx = context.WithoutCancel(ctx)
	defer m.observe(name, time.Now())
	unlock := m.lockUnits(unitID)
	defer unlock()

	var (
		ch   statusChange
		noop bool
	)
	err := m.store.WithTx(ctx, func(tx store.Tx) error {
		u, err := directory.FindUnit(ctx, tx, unitID)
		if err != nil {
			return err
		}
		if model.InPanic(u) == on && !(on && forced) {
			ch.unit, noop = u, true
			return nil
		}
		if on && model.OffDuty(u) {
			return fmt.Errorf("%w: %s is off duty", ErrInvalidTransition, unitID)
		}
		directive := model.ShouldDoSetOnDuty
		if on {
			directive = model.ShouldDoPanicButton
		}
		st, err := tx.StatusByShouldDo(ctx, directive)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: no %s status configured", ErrInvalidTransition, directive)
		}
		if err != nil {
			return fmt.Errorf("load %s status: %w", directive, err)
		}
		var force *bool
		if forced {
			force = &on
		}
		ch, err = m.applyStatus(ctx, tx, u, st, force, "")
		return err
	})
	if err != nil {
		m.fail(name, err)
		return nil, err
	}
	if noop {
		return ch.unit, nil
	}
	m.publishStatus(ctx, ch)
	m.record(logging.LogRecord{
		Command:  name,
		UnitIDs:  []string{unitID},
		Response: logging.Result{StatusID: ch.unit.Status().ID, Panic: edgeLabel(ch.edge)},
	})
	return ch.unit, nil
}

// applyStatus writes st for u and runs the duty log tracker. The panic edge is
// evaluated against the status u held before the write.
func (m *Manager) applyStatus(ctx context.Context, tx store.Tx, u model.Unit, st model.StatusValue, force *bool, userID string) (statusChange, error) {
	ch := statusChange{unit: u, edge: panicmode.Evaluate(u, st, force)}
	if prev := u.Status(); prev != nil {
		ch.from = prev.ShouldDo
	}
	ref := u.Ref()
	if err := tx.SetUnitStatus(ctx, ref, &st.ID); err != nil {
		return ch, fmt.Errorf("set status of %s: %w", ref, err)
	}
	u.SetStatus(&st)
	tr, err := m.duty.OnDutyTransition(ctx, tx, u, st.ShouldDo, userID)
	if err != nil {
		return ch, err
	}
	ch.duty = tr
	if ch.edge == panicmode.EdgeOn && u.DepartmentID() != "" {
		d, err := tx.Department(ctx, u.DepartmentID())
		switch {
		case err == nil:
			ch.department = d.Value
		case !errors.Is(err, store.ErrNotFound):
			return ch, fmt.Errorf("load department of %s: %w", ref, err)
		}
	}
	return ch, nil
}

// publishStatus emits the events of a committed status change: the unit, then
// every call it was detached from, then the panic edge.
func (m *Manager) publishStatus(ctx context.Context, ch statusChange) {
	to := model.ShouldDo("")
	if st := ch.unit.Status(); st != nil {
		to = st.ShouldDo
	}
	if ch.from != to {
		statusTransitions.WithLabelValues(directiveLabel(ch.from), directiveLabel(to)).Inc()
	}
	m.publisher.Publish(events.NewUnitStatusChanged(ch.unit))
	for _, cc := range ch.duty.CallChanges {
		m.publishCall(ctx, cc.CallID)
	}
	if ch.duty.Detached > 0 {
		linksDetached.Add(float64(ch.duty.Detached))
		m.logger.Infof("%s went off duty, %d assignments removed", ch.unit.Ref(), ch.duty.Detached)
	}
	m.recordShift(ch.duty)
	m.panics.Apply(ch.unit, ch.department, ch.edge)
}

func (m *Manager) recordShift(tr dutylog.Transition) {
	r, ok := m.metrics.(metrics.ShiftRecorder)
	if !ok {
		return
	}
	var ev metrics.ShiftEvent
	switch {
	case tr.Opened != nil:
		ev = metrics.ShiftEvent{Unit: tr.Opened.Unit, UserID: tr.Opened.UserID, Opened: true, Time: tr.Opened.StartedAt}
	case tr.Closed != nil && tr.Closed.EndedAt != nil:
		ev = metrics.ShiftEvent{
			Unit:     tr.Closed.Unit,
			UserID:   tr.Closed.UserID,
			Duration: tr.Closed.EndedAt.Sub(tr.Closed.StartedAt),
			Time:     *tr.Closed.EndedAt,
		}
	default:
		return
	}
	if err := r.RecordShift(ev); err != nil {
		m.logger.Errorf("shift metrics error: %v", err)
	}
}

// SetDepartment moves a unit into a department, gated by its whitelist
// status. It returns the committed unit and the whitelist evaluation.
func (m *Manager) SetDepartment(ctx context.Context, cmd SetDepartment) (model.Unit, whitelist.Result, error) {
	ctx = context.WithoutCancel(ctx)
	defer m.observe(cmdSetDepartment, time.Now())
	unlock := m.lockUnits(cmd.UnitID)
	defer unlock()

	var (
		u   model.Unit
		res whitelist.Result
	)
	err := m.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		u, err = directory.FindUnit(ctx, tx, cmd.UnitID)
		if err != nil {
			return err
		}
		res, err = m.whitelist.ApplyDepartment(ctx, tx, u, cmd.DepartmentID)
		if err != nil {
			return err
		}
		if err := tx.SetUnitDepartment(ctx, u.Ref(), res.DepartmentToWrite(), res.WhitelistStatusID); err != nil {
			return fmt.Errorf("set department of %s: %w", u.Ref(), err)
		}
		u, err = tx.FindUnit(ctx, cmd.UnitID)
		return err
	})
	if err != nil {
		m.fail(cmdSetDepartment, err)
		return nil, whitelist.Result{}, err
	}
	m.publisher.Publish(events.NewUnitStatusChanged(u))
	if res.Gated() {
		m.logger.Infof("%s awaits whitelist approval for %s", u.Ref(), res.Department.ID)
	}
	m.record(logging.LogRecord{
		Command:  cmdSetDepartment,
		UnitIDs:  []string{cmd.UnitID},
		Response: logging.Result{DepartmentID: res.DepartmentToWrite()},
	})
	return u, res, nil
}

// Unit returns the unit with the given id.
func (m *Manager) Unit(ctx context.Context, id string) (model.Unit, error) {
	var u model.Unit
	err := m.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		u, err = directory.FindUnit(ctx, tx, id)
		return err
	})
	return u, err
}

// Call returns the call with its assigned units.
func (m *Manager) Call(ctx context.Context, id string) (model.Call911, error) {
	var c model.Call911
	err := m.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		c, err = tx.Call(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", assignment.ErrCallNotFound, id)
		}
		return err
	})
	return c, err
}

// UnitLogs returns the unit's shift history, newest first.
func (m *Manager) UnitLogs(ctx context.Context, id string) ([]model.OfficerLog, error) {
	var logs []model.OfficerLog
	err := m.store.WithTx(ctx, func(tx store.Tx) error {
		u, err := directory.FindUnit(ctx, tx, id)
		if err != nil {
			return err
		}
		logs, err = m.duty.Logs(ctx, tx, u.Ref())
		return err
	})
	return logs, err
}

// Journal returns the journaled commands matching q. Without a configured log
// store it returns nothing.
func (m *Manager) Journal(ctx context.Context, q logging.LogQuery) ([]logging.LogRecord, error) {
	m.mu.Lock()
	j := m.journal
	m.mu.Unlock()
	if j == nil {
		return nil, nil
	}
	return j.Query(ctx, q)
}

// publishCall publishes the call's committed unit list. Call publications are
// serialized so that the last one carries the latest state.
func (m *Manager) publishCall(ctx context.Context, callID string) {
	unlock := m.locks.Lock(callKey(callID))
	defer unlock()
	var c model.Call911
	err := m.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		c, err = tx.Call(ctx, callID)
		return err
	})
	if err != nil {
		m.logger.Errorf("reload call %s for broadcast: %v", callID, err)
		return
	}
	units := c.AssignedUnits
	if units == nil {
		units = []model.AssignedUnit{}
	}
	m.publisher.Publish(events.CallUnitsChanged{CallID: c.ID, AssignedUnits: units})
}

func (m *Manager) record(rec logging.LogRecord) {
	m.mu.Lock()
	j := m.journal
	m.mu.Unlock()
	if j == nil {
		return
	}
	rec.Timestamp = time.Now().UTC()
	if err := j.Append(context.Background(), rec); err != nil {
		m.logger.Errorf("journal %s: %v", rec.Command, err)
	}
}

func (m *Manager) observe(cmd string, start time.Time) {
	commandDuration.WithLabelValues(cmd).Observe(time.Since(start).Seconds())
}

// fail counts err and reports unexpected failures to the monitor.
func (m *Manager) fail(cmd string, err error) {
	r := reason(err)
	commandFailures.WithLabelValues(cmd, r).Inc()
	if r != "internal" {
		m.logger.Debugf("%s rejected: %v", cmd, err)
		return
	}
	m.logger.Errorf("%s failed: %v", cmd, err)
	monitoring.CaptureException(err, map[string]string{"component": "dispatch", "command": cmd})
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func errorStrings(errs map[string]error) map[string]string {
	if len(errs) == 0 {
		return nil
	}
	out := make(map[string]string, len(errs))
	for id, err := range errs {
		out[id] = err.Error()
	}
	return out
}

func directiveLabel(d model.ShouldDo) string {
	if d == "" {
		return "none"
	}
	return string(d)
}

func edgeLabel(e panicmode.Edge) string {
	if e == panicmode.EdgeNone {
		return ""
	}
	return e.String()
}
