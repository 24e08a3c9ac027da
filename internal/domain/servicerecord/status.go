// Package servicerecord holds the status vocabulary shared by preventive
// maintenance and medical physics tests, and the calendar arithmetic that
// regenerates recurring work.
package servicerecord

import (
	"time"

	"github.com/clinicaleng/cmms/internal/platform/apperr"
)

type Status string

const (
	Agendada  Status = "AGENDADA"
	Realizada Status = "REALIZADA"
	// Vencida is derived at read time and never written.
	Vencida Status = "VENCIDA"
)

// ParseFilter accepts any status a caller may filter by, including the
// derived Vencida.
func ParseFilter(s string) (Status, error) {
	switch st := Status(s); st {
	case Agendada, Realizada, Vencida:
		return st, nil
	}
	return "", apperr.Validation("status inválido: %s", s)
}

// Derive returns the status to present for a record stored with status and
// dueDate, as seen at now.
func Derive(stored Status, dueDate, now time.Time) Status {
	if stored == Agendada && dueDate.Before(now) {
		return Vencida
	}
	return stored
}

// CanExecute reports whether a record in stored may move to Realizada.
func CanExecute(stored Status) error {
	if stored != Agendada {
		return apperr.Validation("registro já realizado não pode ser executado novamente")
	}
	return nil
}
