package models_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/spm_backend/models"
	"bitbucket.org/mmdatafocus/spm_backend/utils"
)

func TestTratamientoDecisionValidate_AcceptsCompleteDecision(t *testing.T) {
	input := models.NewTratamientoDecision{
		ItemIndex:        0,
		Decision:         "compra",
		CantidadAprobada: decimal.RequireFromString("3"),
	}
	decision, err := input.Validate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision != models.TratamientoDecisionCompra {
		t.Fatalf("expected compra, got %s", decision)
	}
}

func TestTratamientoDecisionValidate_RejectsUnknownDecision(t *testing.T) {
	input := models.NewTratamientoDecision{
		ItemIndex:        1,
		Decision:         "aplazar",
		CantidadAprobada: decimal.RequireFromString("1"),
	}
	if _, err := input.Validate(); !utils.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTratamientoDecisionValidate_RejectsNonPositiveCantidad(t *testing.T) {
	for _, cantidad := range []string{"0", "-2"} {
		input := models.NewTratamientoDecision{
			ItemIndex:        0,
			Decision:         "stock",
			CantidadAprobada: decimal.RequireFromString(cantidad),
		}
		if _, err := input.Validate(); !utils.IsValidationError(err) {
			t.Fatalf("expected validation error for cantidad %s, got %v", cantidad, err)
		}
	}
}

func TestTratamientoDecisionValidate_EquivalenteRequiresCodigo(t *testing.T) {
	input := models.NewTratamientoDecision{
		ItemIndex:        2,
		Decision:         "equivalente",
		CantidadAprobada: decimal.RequireFromString("1"),
	}
	if _, err := input.Validate(); !utils.IsValidationError(err) {
		t.Fatalf("expected validation error without codigo_equivalente, got %v", err)
	}

	codigo := "MAT-ALT-01"
	input.CodigoEquivalente = &codigo
	decision, err := input.Validate()
	if err != nil {
		t.Fatalf("unexpected error with codigo_equivalente: %v", err)
	}
	if decision != models.TratamientoDecisionEquivalente {
		t.Fatalf("expected equivalente, got %s", decision)
	}
}

func TestSolicitudItemValidate(t *testing.T) {
	valid := models.NewSolicitudItem{
		Codigo:         "MAT-001",
		Cantidad:       decimal.RequireFromString("4"),
		PrecioUnitario: decimal.RequireFromString("2.5"),
	}
	if err := valid.Validate(0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	zeroQty := valid
	zeroQty.Cantidad = decimal.Zero
	if err := zeroQty.Validate(0); !utils.IsValidationError(err) {
		t.Fatalf("expected validation error for zero cantidad, got %v", err)
	}

	negativePrice := valid
	negativePrice.PrecioUnitario = decimal.RequireFromString("-1")
	if err := negativePrice.Validate(1); !utils.IsValidationError(err) {
		t.Fatalf("expected validation error for negative precio, got %v", err)
	}
}
