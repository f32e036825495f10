package types

import "time"

// ClockAction is an attendance transition direction.
type ClockAction string

const (
	ActionIn  ClockAction = "IN"
	ActionOut ClockAction = "OUT"
)

// ParseClockAction validates a raw action string. The empty string is
// allowed and means "toggle from the last record".
func ParseClockAction(raw string) (ClockAction, bool) {
	switch ClockAction(raw) {
	case ActionIn, ActionOut, "":
		return ClockAction(raw), true
	default:
		return "", false
	}
}

// ActorType distinguishes the subject of an attendance record.
type ActorType string

const (
	ActorEmployee ActorType = "employee"
	ActorVisitor  ActorType = "visitor"
)

// ParseActorType validates a raw actor type. Empty means unfiltered.
func ParseActorType(raw string) (ActorType, bool) {
	switch ActorType(raw) {
	case ActorEmployee, ActorVisitor, "":
		return ActorType(raw), true
	default:
		return "", false
	}
}

// VisitType scopes visitor records so a visitor can hold one regular and
// one inspection visit open at the same time. Employee records always use
// VisitRegular.
type VisitType string

const (
	VisitRegular    VisitType = "regular"
	VisitInspection VisitType = "inspection"
)

// ParseVisitType validates a raw visit type. Empty defaults to regular
// downstream.
func ParseVisitType(raw string) (VisitType, bool) {
	switch VisitType(raw) {
	case VisitRegular, VisitInspection, "":
		return VisitType(raw), true
	default:
		return "", false
	}
}

// AttendanceRecord is one immutable clock event. Records are append-only;
// an actor's current clock state is always derived from its latest record,
// never stored.
type AttendanceRecord struct {
	ID             string      `json:"id" db:"id"`
	ActorType      ActorType   `json:"actorType" db:"actor_type"`
	ActorID        string      `json:"actorId" db:"actor_id"`
	Action         ClockAction `json:"action" db:"action"`
	VisitType      VisitType   `json:"visitType" db:"visit_type"`
	HostEmployeeID string      `json:"hostEmployeeId,omitempty" db:"host_employee_id"`
	RecordedAt     time.Time   `json:"timestamp" db:"recorded_at"`
}

// AttendanceFilter narrows admin record queries.
type AttendanceFilter struct {
	ActorType ActorType
	ActorID   string
	From      time.Time
	To        time.Time
}

// AttendanceStatus is the derived read-side view of an actor.
type AttendanceStatus struct {
	CurrentlyClockedIn bool               `json:"currentlyClockedIn"`
	LastInAt           *time.Time         `json:"lastInAt"`
	RecentRecords      []AttendanceRecord `json:"recentRecords"`
}

// DailySummaryRow is one (actorType, action) count bucket for a day.
type DailySummaryRow struct {
	ActorType ActorType   `json:"actorType"`
	Action    ClockAction `json:"action"`
	Count     int         `json:"count"`
}

// ActionTotals counts IN and OUT events for one actor over a range.
type ActionTotals struct {
	In  int `json:"in"`
	Out int `json:"out"`
}
