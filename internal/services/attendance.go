package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gatehouse-hq/apiserver/internal/apperr"
	"github.com/gatehouse-hq/apiserver/internal/mq"
	"github.com/gatehouse-hq/apiserver/internal/store"
	"github.com/gatehouse-hq/apiserver/types"
)

// ClockEventPublisher emits attendance transitions to the event bus.
type ClockEventPublisher interface {
	PublishClockEvent(ctx context.Context, event mq.ClockEvent) (string, error)
}

// DecideAction computes the legal next clock action for an actor from its
// most recent record.
//
// With an explicit action the transition is validated: IN cannot follow
// IN, OUT needs a current IN. With no explicit action (kiosk toggle mode)
// the action alternates: IN when there is no record or the last one was
// OUT, otherwise OUT.
func DecideAction(explicit types.ClockAction, last *types.AttendanceRecord) (types.ClockAction, error) {
	if explicit == "" {
		if last == nil || last.Action == types.ActionOut {
			return types.ActionIn, nil
		}
		return types.ActionOut, nil
	}

	switch explicit {
	case types.ActionIn:
		if last != nil && last.Action == types.ActionIn {
			return "", apperr.Validation("Already clocked in. Please clock out first.")
		}
	case types.ActionOut:
		if last == nil || last.Action != types.ActionIn {
			return "", apperr.Validation("You are not clocked in. Please clock in first.")
		}
	default:
		return "", apperr.Validation("invalid action")
	}
	return explicit, nil
}

// AttendanceService decides and persists clock transitions and serves the
// derived read-side views.
type AttendanceService struct {
	records   AttendanceRepository
	employees EmployeeRepository
	visitors  VisitorRepository
	accounts  AccountRepository
	events    ClockEventPublisher
	logger    *slog.Logger
}

func NewAttendanceService(
	records AttendanceRepository,
	employees EmployeeRepository,
	visitors VisitorRepository,
	accounts AccountRepository,
	events ClockEventPublisher,
	logger *slog.Logger,
) *AttendanceService {
	return &AttendanceService{
		records:   records,
		employees: employees,
		visitors:  visitors,
		accounts:  accounts,
		events:    events,
		logger:    logger,
	}
}

func (s *AttendanceService) append(ctx context.Context, record types.AttendanceRecord, explicit types.ClockAction) (types.AttendanceRecord, error) {
	created, err := s.records.AppendDecided(ctx, record, func(last *types.AttendanceRecord) (types.ClockAction, error) {
		return DecideAction(explicit, last)
	})
	if err != nil {
		return types.AttendanceRecord{}, err
	}
	s.publishEvent(ctx, created)
	return created, nil
}

// publishEvent is fire-and-forget: a broker outage must not fail a clock.
func (s *AttendanceService) publishEvent(ctx context.Context, record types.AttendanceRecord) {
	if s.events == nil {
		return
	}
	_, err := s.events.PublishClockEvent(ctx, mq.ClockEvent{
		ActorType: string(record.ActorType),
		ActorID:   record.ActorID,
		Action:    string(record.Action),
		VisitType: string(record.VisitType),
		At:        record.RecordedAt,
	})
	if err != nil {
		s.logger.Error("publish clock event", "actorId", record.ActorID, "error", err)
	}
}

// ClockEmployee records a transition for an employee profile. An empty
// action toggles.
func (s *AttendanceService) ClockEmployee(ctx context.Context, employee types.Employee, explicit types.ClockAction) (types.AttendanceRecord, error) {
	return s.append(ctx, types.AttendanceRecord{
		ActorType: types.ActorEmployee,
		ActorID:   employee.ID,
		VisitType: types.VisitRegular,
	}, explicit)
}

// ClockEmployeeByBadge resolves the kiosk badge identifier first, then
// clocks. No session is involved.
func (s *AttendanceService) ClockEmployeeByBadge(ctx context.Context, employeeID string, explicit types.ClockAction) (types.AttendanceRecord, error) {
	if strings.TrimSpace(employeeID) == "" {
		return types.AttendanceRecord{}, apperr.Validation("employeeId is required")
	}
	employee, err := s.employees.GetByEmployeeID(ctx, strings.TrimSpace(employeeID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.AttendanceRecord{}, apperr.Validation("Employee not found")
		}
		return types.AttendanceRecord{}, err
	}
	return s.ClockEmployee(ctx, employee, explicit)
}

// ClockVisitor records a transition for a visitor. Regular visits need a
// host employee; inspection visits do not, and the two visit types track
// independent open visits for the same visitor.
func (s *AttendanceService) ClockVisitor(ctx context.Context, visitor types.Visitor, explicit types.ClockAction, visitType types.VisitType, hostEmployeeID string) (types.AttendanceRecord, error) {
	if explicit == "" {
		return types.AttendanceRecord{}, apperr.Validation("action is required")
	}
	if visitType == "" {
		visitType = types.VisitRegular
	}

	record := types.AttendanceRecord{
		ActorType: types.ActorVisitor,
		ActorID:   visitor.ID,
		VisitType: visitType,
	}

	if visitType == types.VisitRegular {
		if strings.TrimSpace(hostEmployeeID) == "" {
			return types.AttendanceRecord{}, apperr.Validation("Host employee is required for regular visits")
		}
		host, err := s.employees.GetByID(ctx, strings.TrimSpace(hostEmployeeID))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return types.AttendanceRecord{}, apperr.Validation("Host employee not found")
			}
			return types.AttendanceRecord{}, err
		}
		record.HostEmployeeID = host.ID
	}

	return s.append(ctx, record, explicit)
}

// ForceVisitorClockOut is the administrative override: the same OUT
// transition with the same legality check, just triggered by an admin
// instead of the visitor. The visitor is addressed by profile ID or by
// account email.
func (s *AttendanceService) ForceVisitorClockOut(ctx context.Context, actorID, email string, visitType types.VisitType) (types.AttendanceRecord, error) {
	if visitType == "" {
		visitType = types.VisitRegular
	}

	visitor, err := s.resolveVisitor(ctx, actorID, email)
	if err != nil {
		return types.AttendanceRecord{}, err
	}

	return s.append(ctx, types.AttendanceRecord{
		ActorType: types.ActorVisitor,
		ActorID:   visitor.ID,
		VisitType: visitType,
	}, types.ActionOut)
}

func (s *AttendanceService) resolveVisitor(ctx context.Context, actorID, email string) (types.Visitor, error) {
	if strings.TrimSpace(actorID) != "" {
		visitor, err := s.visitors.GetByID(ctx, strings.TrimSpace(actorID))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return types.Visitor{}, apperr.Validation("Visitor not found")
			}
			return types.Visitor{}, err
		}
		return visitor, nil
	}
	if strings.TrimSpace(email) == "" {
		return types.Visitor{}, apperr.Validation("actorId or email is required")
	}

	account, err := s.accounts.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Visitor{}, apperr.Validation("Visitor not found")
		}
		return types.Visitor{}, err
	}
	visitor, err := s.visitors.GetByAccountID(ctx, account.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Visitor{}, apperr.Validation("Visitor not found")
		}
		return types.Visitor{}, err
	}
	return visitor, nil
}

// Status derives the current clock state of an actor from its recent
// records. records[0].Action == IN means currently clocked in; the state
// is never stored.
func (s *AttendanceService) Status(ctx context.Context, actorType types.ActorType, actorID string, visitType types.VisitType, limit int) (types.AttendanceStatus, error) {
	if visitType == "" {
		visitType = types.VisitRegular
	}
	if limit == 0 {
		limit = 20
	}

	records, err := s.records.ListRecent(ctx, actorType, actorID, visitType, limit)
	if err != nil {
		return types.AttendanceStatus{}, err
	}

	status := types.AttendanceStatus{RecentRecords: records}
	if len(records) > 0 && records[0].Action == types.ActionIn {
		status.CurrentlyClockedIn = true
		at := records[0].RecordedAt
		status.LastInAt = &at
	}
	return status, nil
}

// AdminRecord is an attendance record enriched with its actor and host
// profiles for the admin views.
type AdminRecord struct {
	types.AttendanceRecord
	Actor any             `json:"actor,omitempty"`
	Host  *types.Employee `json:"host,omitempty"`
}

// AdminRecords returns filtered records with actor and host profiles
// attached.
func (s *AttendanceService) AdminRecords(ctx context.Context, filter types.AttendanceFilter) ([]AdminRecord, error) {
	records, err := s.records.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	employeeCache := map[string]*types.Employee{}
	visitorCache := map[string]*types.Visitor{}

	lookupEmployee := func(id string) *types.Employee {
		if cached, ok := employeeCache[id]; ok {
			return cached
		}
		employee, err := s.employees.GetByID(ctx, id)
		if err != nil {
			employeeCache[id] = nil
			return nil
		}
		employeeCache[id] = &employee
		return &employee
	}
	lookupVisitor := func(id string) *types.Visitor {
		if cached, ok := visitorCache[id]; ok {
			return cached
		}
		visitor, err := s.visitors.GetByID(ctx, id)
		if err != nil {
			visitorCache[id] = nil
			return nil
		}
		visitorCache[id] = &visitor
		return &visitor
	}

	enriched := make([]AdminRecord, 0, len(records))
	for _, record := range records {
		row := AdminRecord{AttendanceRecord: record}
		switch record.ActorType {
		case types.ActorEmployee:
			if e := lookupEmployee(record.ActorID); e != nil {
				row.Actor = e
			}
		case types.ActorVisitor:
			if v := lookupVisitor(record.ActorID); v != nil {
				row.Actor = v
			}
		}
		if record.HostEmployeeID != "" {
			row.Host = lookupEmployee(record.HostEmployeeID)
		}
		enriched = append(enriched, row)
	}
	return enriched, nil
}

// DailySummary groups one day's records by (actor type, action).
func (s *AttendanceService) DailySummary(ctx context.Context, day time.Time) ([]types.DailySummaryRow, error) {
	return s.records.DailySummary(ctx, day)
}

// EmployeeTotals counts IN/OUT events for one employee over a range.
func (s *AttendanceService) EmployeeTotals(ctx context.Context, employeeID string, from, to time.Time) (types.ActionTotals, error) {
	employee, err := s.employees.GetByID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.ActionTotals{}, apperr.NotFound("Employee not found")
		}
		return types.ActionTotals{}, err
	}
	return s.records.TotalsForActor(ctx, types.ActorEmployee, employee.ID, from, to)
}
