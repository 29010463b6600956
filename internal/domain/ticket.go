package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets. The lifecycle is
// strictly linear: OPEN -> IN_PROGRESS -> RESOLVED -> CLOSED.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
)

// RequestType enumerates the kind of work a ticket asks for.
type RequestType string

const (
	RequestTypeIncident       RequestType = "INCIDENT"
	RequestTypeServiceRequest RequestType = "SERVICE_REQUEST"
	RequestTypeMaintenance    RequestType = "MAINTENANCE"
)

// SupportLevel enumerates the support tiers a ticket can be assigned to.
type SupportLevel string

const (
	SupportLevelL1 SupportLevel = "L1"
	SupportLevelL2 SupportLevel = "L2"
	SupportLevelL3 SupportLevel = "L3"
	SupportLevelL4 SupportLevel = "L4"
)

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID                string
	Title             string
	Description       string
	RequestType       RequestType
	Building          string
	Room              string
	RequesterID       string
	Status            TicketStatus
	Priority          TicketPriority
	AssignedLevel     SupportLevel
	EscalationCount   int
	ResolutionSummary *string
	IsDeleted         bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ClosedAt          *time.Time
}

// nextStatus maps each status to its unique legal successor. CLOSED is
// terminal and has no entry.
var nextStatus = map[TicketStatus]TicketStatus{
	TicketStatusOpen:       TicketStatusInProgress,
	TicketStatusInProgress: TicketStatusResolved,
	TicketStatusResolved:   TicketStatusClosed,
}

// CanTransition reports whether next is the legal successor of current.
func CanTransition(current, next TicketStatus) bool {
	successor, ok := nextStatus[current]
	return ok && successor == next
}

// IsTerminal reports whether the status admits no further transition.
func (s TicketStatus) IsTerminal() bool {
	_, ok := nextStatus[s]
	return !ok
}

// ValidStatus reports whether s is a known status value.
func ValidStatus(s TicketStatus) bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// ValidRequestType reports whether t is a known request type.
func ValidRequestType(t RequestType) bool {
	switch t {
	case RequestTypeIncident, RequestTypeServiceRequest, RequestTypeMaintenance:
		return true
	}
	return false
}

// ValidSupportLevel reports whether l is a known support level.
func ValidSupportLevel(l SupportLevel) bool {
	switch l {
	case SupportLevelL1, SupportLevelL2, SupportLevelL3, SupportLevelL4:
		return true
	}
	return false
}
