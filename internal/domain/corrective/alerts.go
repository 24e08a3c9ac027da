package corrective

import (
	"context"
	"fmt"
	"time"

	"github.com/clinicaleng/cmms/internal/domain/equipment"
	"github.com/clinicaleng/cmms/internal/platform/events"
	"github.com/clinicaleng/cmms/internal/platform/notification"
)

type Notifier interface {
	Notify(ctx context.Context, tenantID, templateID string, data map[string]string, recipients ...string) ([]*notification.Notification, error)
}

// Alerter notifies the on-call recipients when a ticket is opened on
// criticality A equipment or with CRITICA urgency.
type Alerter struct {
	notifier   Notifier
	recipients []string
}

func NewAlerter(n Notifier, recipients []string) *Alerter {
	return &Alerter{notifier: n, recipients: recipients}
}

// Observe registers the alerter as a best-effort observer of openings.
func (a *Alerter) Observe(bus *events.Bus) {
	bus.Observe(EventOpened, "corrective.alert", a.handleOpened)
}

func (a *Alerter) handleOpened(ctx context.Context, e events.Event) error {
	o, ok := e.(Opened)
	if !ok {
		return fmt.Errorf("unexpected event %T", e)
	}
	if len(a.recipients) == 0 || !(o.Criticality == equipment.CriticalityA || o.Urgency == UrgencyCritica) {
		return nil
	}
	_, err := a.notifier.Notify(ctx, o.TenantID, notification.TemplateCriticalTicket, map[string]string{
		"ticket":      o.TicketID.String(),
		"equipment":   o.EquipmentName,
		"criticality": string(o.Criticality),
		"urgency":     string(o.Urgency),
		"deadline":    o.SLADeadline.Format(time.RFC3339),
	}, a.recipients...)
	return err
}
