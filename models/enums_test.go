package models_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/spm_backend/models"
)

var todosLosEstados = []models.SolicitudEstado{
	models.SolicitudEstadoDraft,
	models.SolicitudEstadoPendienteDeAprobacion,
	models.SolicitudEstadoAprobada,
	models.SolicitudEstadoEnTratamiento,
	models.SolicitudEstadoCancelacionPendiente,
	models.SolicitudEstadoCancelacionRechazada,
	models.SolicitudEstadoFinalizada,
	models.SolicitudEstadoRechazada,
	models.SolicitudEstadoCancelada,
}

func TestCanTransition_AllowedEdges(t *testing.T) {
	allowed := []struct{ from, to models.SolicitudEstado }{
		{models.SolicitudEstadoDraft, models.SolicitudEstadoPendienteDeAprobacion},
		{models.SolicitudEstadoDraft, models.SolicitudEstadoCancelada},
		{models.SolicitudEstadoPendienteDeAprobacion, models.SolicitudEstadoAprobada},
		{models.SolicitudEstadoPendienteDeAprobacion, models.SolicitudEstadoRechazada},
		{models.SolicitudEstadoPendienteDeAprobacion, models.SolicitudEstadoCancelacionPendiente},
		{models.SolicitudEstadoAprobada, models.SolicitudEstadoEnTratamiento},
		{models.SolicitudEstadoAprobada, models.SolicitudEstadoCancelacionPendiente},
		{models.SolicitudEstadoEnTratamiento, models.SolicitudEstadoFinalizada},
		{models.SolicitudEstadoEnTratamiento, models.SolicitudEstadoRechazada},
		{models.SolicitudEstadoEnTratamiento, models.SolicitudEstadoCancelacionPendiente},
		{models.SolicitudEstadoCancelacionPendiente, models.SolicitudEstadoCancelada},
		{models.SolicitudEstadoCancelacionPendiente, models.SolicitudEstadoCancelacionRechazada},
		{models.SolicitudEstadoCancelacionRechazada, models.SolicitudEstadoPendienteDeAprobacion},
		{models.SolicitudEstadoCancelacionRechazada, models.SolicitudEstadoAprobada},
		{models.SolicitudEstadoCancelacionRechazada, models.SolicitudEstadoEnTratamiento},
		{models.SolicitudEstadoCancelacionRechazada, models.SolicitudEstadoCancelada},
	}
	for _, edge := range allowed {
		if !models.CanTransition(edge.from, edge.to) {
			t.Errorf("expected %s -> %s to be allowed", edge.from, edge.to)
		}
	}
}

func TestCanTransition_ForbiddenEdges(t *testing.T) {
	forbidden := []struct{ from, to models.SolicitudEstado }{
		// no stage skipping
		{models.SolicitudEstadoDraft, models.SolicitudEstadoAprobada},
		{models.SolicitudEstadoDraft, models.SolicitudEstadoEnTratamiento},
		{models.SolicitudEstadoDraft, models.SolicitudEstadoFinalizada},
		{models.SolicitudEstadoPendienteDeAprobacion, models.SolicitudEstadoEnTratamiento},
		{models.SolicitudEstadoPendienteDeAprobacion, models.SolicitudEstadoFinalizada},
		{models.SolicitudEstadoAprobada, models.SolicitudEstadoFinalizada},
		// an approver cannot reject once approved, and treatment cannot regress
		{models.SolicitudEstadoAprobada, models.SolicitudEstadoRechazada},
		{models.SolicitudEstadoEnTratamiento, models.SolicitudEstadoAprobada},
		// cancellation needs its request step outside draft
		{models.SolicitudEstadoPendienteDeAprobacion, models.SolicitudEstadoCancelada},
		{models.SolicitudEstadoEnTratamiento, models.SolicitudEstadoCancelada},
		// no going back to draft
		{models.SolicitudEstadoPendienteDeAprobacion, models.SolicitudEstadoDraft},
		{models.SolicitudEstadoCancelacionRechazada, models.SolicitudEstadoDraft},
	}
	for _, edge := range forbidden {
		if models.CanTransition(edge.from, edge.to) {
			t.Errorf("expected %s -> %s to be rejected", edge.from, edge.to)
		}
	}
}

func TestCanTransition_TerminalStatesHaveNoExit(t *testing.T) {
	for _, from := range todosLosEstados {
		if !from.EsTerminal() {
			continue
		}
		for _, to := range todosLosEstados {
			if models.CanTransition(from, to) {
				t.Errorf("terminal state %s must not transition to %s", from, to)
			}
		}
	}
}

func TestEsTerminal(t *testing.T) {
	terminales := map[models.SolicitudEstado]bool{
		models.SolicitudEstadoFinalizada: true,
		models.SolicitudEstadoRechazada:  true,
		models.SolicitudEstadoCancelada:  true,
	}
	for _, estado := range todosLosEstados {
		if estado.EsTerminal() != terminales[estado] {
			t.Errorf("EsTerminal(%s) = %v, expected %v", estado, estado.EsTerminal(), terminales[estado])
		}
	}
}

func TestParseSolicitudEstado(t *testing.T) {
	for _, estado := range todosLosEstados {
		parsed, err := models.ParseSolicitudEstado(string(estado))
		if err != nil {
			t.Fatalf("ParseSolicitudEstado(%s): %v", estado, err)
		}
		if parsed != estado {
			t.Fatalf("ParseSolicitudEstado(%s) = %s", estado, parsed)
		}
	}
	if _, err := models.ParseSolicitudEstado("archivada"); err == nil {
		t.Fatal("expected error for unknown estado")
	}
}

func TestParseDecisionAccion(t *testing.T) {
	if accion, err := models.ParseDecisionAccion("aprobar"); err != nil || accion != models.DecisionAccionAprobar {
		t.Fatalf("ParseDecisionAccion(aprobar) = %s, %v", accion, err)
	}
	if accion, err := models.ParseDecisionAccion("rechazar"); err != nil || accion != models.DecisionAccionRechazar {
		t.Fatalf("ParseDecisionAccion(rechazar) = %s, %v", accion, err)
	}
	if _, err := models.ParseDecisionAccion("aplazar"); err == nil {
		t.Fatal("expected error for unknown accion")
	}
}

func TestConsumePresupuesto(t *testing.T) {
	consume := map[models.TratamientoDecision]bool{
		models.TratamientoDecisionCompra:      true,
		models.TratamientoDecisionEquivalente: true,
		models.TratamientoDecisionStock:       false,
		models.TratamientoDecisionServicio:    false,
	}
	for decision, expected := range consume {
		if decision.ConsumePresupuesto() != expected {
			t.Errorf("ConsumePresupuesto(%s) = %v, expected %v", decision, decision.ConsumePresupuesto(), expected)
		}
	}
}
