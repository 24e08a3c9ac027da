package staff

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicaleng/cmms/internal/platform/auth"
)

// Member is a person who can open, accept or resolve work in a tenant.
type Member struct {
	ID        uuid.UUID `db:"id" json:"id"`
	TenantID  string    `db:"tenant_id" json:"-"`
	Name      string    `db:"name" json:"name"`
	Email     *string   `db:"email" json:"email,omitempty"`
	Role      string    `db:"role" json:"role"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

var validRoles = map[string]bool{
	auth.RoleMaster: true, auth.RoleTecnico: true, auth.RoleSolicitante: true,
}

// CanAttend reports whether the member may be assigned corrective tickets.
func (m *Member) CanAttend() bool {
	return m.Active && (m.Role == auth.RoleMaster || m.Role == auth.RoleTecnico)
}
