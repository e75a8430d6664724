package models

import (
	"errors"
)

/* Solicitud lifecycle */

type SolicitudEstado string

const (
	SolicitudEstadoDraft                 SolicitudEstado = "draft"
	SolicitudEstadoPendienteDeAprobacion SolicitudEstado = "pendiente_de_aprobacion"
	SolicitudEstadoAprobada              SolicitudEstado = "aprobada"
	SolicitudEstadoEnTratamiento         SolicitudEstado = "en_tratamiento"
	SolicitudEstadoCancelacionPendiente  SolicitudEstado = "cancelacion_pendiente"
	SolicitudEstadoCancelacionRechazada  SolicitudEstado = "cancelacion_rechazada"
	SolicitudEstadoFinalizada            SolicitudEstado = "finalizada"
	SolicitudEstadoRechazada             SolicitudEstado = "rechazada"
	SolicitudEstadoCancelada             SolicitudEstado = "cancelada"
)

// convert input to enum type
func ParseSolicitudEstado(str string) (SolicitudEstado, error) {
	switch SolicitudEstado(str) {
	case SolicitudEstadoDraft, SolicitudEstadoPendienteDeAprobacion, SolicitudEstadoAprobada,
		SolicitudEstadoEnTratamiento, SolicitudEstadoCancelacionPendiente, SolicitudEstadoCancelacionRechazada,
		SolicitudEstadoFinalizada, SolicitudEstadoRechazada, SolicitudEstadoCancelada:
		return SolicitudEstado(str), nil
	}
	return "", errors.New("invalid solicitud estado")
}

// transicionesValidas enumerates every legal status edge. Nothing in the
// codebase writes solicitudes.status except through CanTransition.
var transicionesValidas = map[SolicitudEstado][]SolicitudEstado{
	SolicitudEstadoDraft: {
		SolicitudEstadoPendienteDeAprobacion,
		SolicitudEstadoCancelada,
	},
	SolicitudEstadoPendienteDeAprobacion: {
		SolicitudEstadoAprobada,
		SolicitudEstadoRechazada,
		SolicitudEstadoCancelacionPendiente,
	},
	SolicitudEstadoAprobada: {
		SolicitudEstadoEnTratamiento,
		SolicitudEstadoCancelacionPendiente,
	},
	SolicitudEstadoEnTratamiento: {
		SolicitudEstadoFinalizada,
		SolicitudEstadoRechazada,
		SolicitudEstadoCancelacionPendiente,
	},
	SolicitudEstadoCancelacionPendiente: {
		SolicitudEstadoCancelada,
		SolicitudEstadoCancelacionRechazada,
	},
	// a rejected cancellation restores the status held when the
	// cancellation was requested; the requester may also re-submit
	// or cancel outright from here.
	SolicitudEstadoCancelacionRechazada: {
		SolicitudEstadoPendienteDeAprobacion,
		SolicitudEstadoAprobada,
		SolicitudEstadoEnTratamiento,
		SolicitudEstadoCancelada,
	},
}

func CanTransition(from SolicitudEstado, to SolicitudEstado) bool {
	for _, allowed := range transicionesValidas[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s SolicitudEstado) EsTerminal() bool {
	return s == SolicitudEstadoFinalizada || s == SolicitudEstadoRechazada || s == SolicitudEstadoCancelada
}

/* Treatment decisions */

type TratamientoDecision string

const (
	TratamientoDecisionStock       TratamientoDecision = "stock"
	TratamientoDecisionCompra      TratamientoDecision = "compra"
	TratamientoDecisionServicio    TratamientoDecision = "servicio"
	TratamientoDecisionEquivalente TratamientoDecision = "equivalente"
)

func ParseTratamientoDecision(str string) (TratamientoDecision, error) {
	switch TratamientoDecision(str) {
	case TratamientoDecisionStock, TratamientoDecisionCompra,
		TratamientoDecisionServicio, TratamientoDecisionEquivalente:
		return TratamientoDecision(str), nil
	}
	return "", errors.New("invalid tratamiento decision")
}

// ConsumePresupuesto reports whether the decision draws down budget.
// Stock transfers and services do not buy material.
func (d TratamientoDecision) ConsumePresupuesto() bool {
	return d == TratamientoDecisionCompra || d == TratamientoDecisionEquivalente
}

/* Approval actions (requisition, cancellation, budget increase) */

type DecisionAccion string

const (
	DecisionAccionAprobar  DecisionAccion = "aprobar"
	DecisionAccionRechazar DecisionAccion = "rechazar"
)

func ParseDecisionAccion(str string) (DecisionAccion, error) {
	switch DecisionAccion(str) {
	case DecisionAccionAprobar, DecisionAccionRechazar:
		return DecisionAccion(str), nil
	}
	return "", errors.New("invalid decision accion")
}

/* Cancellation request lifecycle */

type CancelacionEstado string

const (
	CancelacionEstadoPendiente CancelacionEstado = "pendiente"
	CancelacionEstadoAprobada  CancelacionEstado = "aprobada"
	CancelacionEstadoRechazada CancelacionEstado = "rechazada"
)

/* Budget incorporation lifecycle */

type IncorporacionEstado string

const (
	IncorporacionEstadoPendiente IncorporacionEstado = "pendiente"
	IncorporacionEstadoAprobada  IncorporacionEstado = "aprobada"
	IncorporacionEstadoRechazada IncorporacionEstado = "rechazada"
)

/* Claim-queue / treatment audit events */

type TratamientoEventoTipo string

const (
	TratamientoEventoTomar      TratamientoEventoTipo = "tomar"
	TratamientoEventoLiberar    TratamientoEventoTipo = "liberar"
	TratamientoEventoEditarItem TratamientoEventoTipo = "editar_item"
	TratamientoEventoFinalizar  TratamientoEventoTipo = "finalizar"
	TratamientoEventoRechazar   TratamientoEventoTipo = "rechazar"
)

const CriticidadDefault = "Normal"
