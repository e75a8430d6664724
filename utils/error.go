package utils

import (
	"errors"
	"fmt"
)

// Domain error taxonomy. Every workflow/model operation fails with one of
// these so the API layer can translate without string matching. Messages are
// in the product's language since they surface to users as-is.
var (
	ErrorRecordNotFound = errors.New("record not found")

	// the status does not permit the requested operation
	ErrorInvalidTransition = errors.New("estado inválido para la operación")

	// the actor lacks the role/assignment for this action
	ErrorNotAuthorized = errors.New("no autorizado para esta operación")

	// the actor is not the current claim holder
	ErrorNotOwner = errors.New("no es el planificador asignado")

	// another planner already holds the claim; caller should re-poll, not retry
	ErrorAlreadyClaimed = errors.New("ya asignada a otro planificador")

	// the approval was decided before; replays never succeed
	ErrorAlreadyResolved = errors.New("la solicitud ya fue procesada")

	// finalize requires a decision on every item
	ErrorIncompleteTreatment = errors.New("hay ítems sin decisión de tratamiento")

	// another operation holds the per-solicitud lock; transient, retry
	ErrorLockContention = errors.New("otra operación está en curso sobre la solicitud, reintente")
)

// ValidationError carries the offending field for malformed input. Recoverable
// by the caller; everything else in the taxonomy is a state/authorization fault.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field string, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
