package equipment

import "time"

// Criticality ranks how much harm an outage of the equipment causes.
type Criticality string

const (
	CriticalityA Criticality = "A"
	CriticalityB Criticality = "B"
	CriticalityC Criticality = "C"
)

var slaByCriticality = map[Criticality]time.Duration{
	CriticalityA: 10 * time.Minute,
	CriticalityB: 2 * time.Hour,
	CriticalityC: 24 * time.Hour,
}

func (c Criticality) Valid() bool {
	_, ok := slaByCriticality[c]
	return ok
}

// SLA is the maximum time a corrective ticket on equipment of this
// criticality may wait for acceptance.
func (c Criticality) SLA() time.Duration {
	return slaByCriticality[c]
}

// RequiresContingencyPlan reports whether equipment of this criticality must
// document what to do while it is out of service.
func (c Criticality) RequiresContingencyPlan() bool {
	return c == CriticalityA
}

// SLADeadline is openedAt plus the SLA for c.
func SLADeadline(c Criticality, openedAt time.Time) time.Time {
	return openedAt.Add(c.SLA())
}
