package domain

import "time"

// TicketEscalation is an immutable audit record of a support-level
// reassignment. Rows are appended by Escalate and never updated or deleted
// independently of their ticket.
type TicketEscalation struct {
	ID        string
	TicketID  string
	FromLevel SupportLevel
	ToLevel   SupportLevel
	Reason    string
	CreatedAt time.Time
}
