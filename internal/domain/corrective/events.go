package corrective

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicaleng/cmms/internal/domain/equipment"
)

const (
	EventOpened   = "corrective.opened"
	EventResolved = "corrective.resolved"
)

// Resolved is published inside the resolving transaction. A failing required
// subscriber aborts the resolution.
type Resolved struct {
	TenantID    string
	TicketID    uuid.UUID
	EquipmentID uuid.UUID
	ResolvedAt  time.Time
}

func (Resolved) EventName() string { return EventResolved }

// Opened is published after the opening transaction commits.
type Opened struct {
	TenantID      string
	TicketID      uuid.UUID
	EquipmentID   uuid.UUID
	EquipmentName string
	Criticality   equipment.Criticality
	Urgency       Urgency
	SLADeadline   time.Time
	Public        bool
}

func (Opened) EventName() string { return EventOpened }
