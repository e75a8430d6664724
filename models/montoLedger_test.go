package models_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/spm_backend/models"
)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func TestSubtotal_NilPriceCountsAsZero(t *testing.T) {
	if got := models.Subtotal(dec("4"), nil); !got.IsZero() {
		t.Fatalf("expected zero subtotal, got %s", got)
	}
	precio := dec("2.5")
	if got := models.Subtotal(dec("4"), &precio); !got.Equal(dec("10")) {
		t.Fatalf("expected 10, got %s", got)
	}
}

func TestTotalSolicitado_SumsRequestedSubtotals(t *testing.T) {
	items := []models.SolicitudItem{
		{ItemIndex: 0, Cantidad: dec("10"), PrecioUnitario: dec("2.5")},
		{ItemIndex: 1, Cantidad: dec("2"), PrecioUnitario: dec("5")},
	}
	if got := models.TotalSolicitado(items); !got.Equal(dec("35")) {
		t.Fatalf("expected 35, got %s", got)
	}
	if got := models.TotalSolicitado(nil); !got.IsZero() {
		t.Fatalf("expected zero for no items, got %s", got)
	}
}

func TestTotalAprobado_OnlyPurchaseLikeDecisionsConsume(t *testing.T) {
	items := []models.SolicitudItem{
		{ItemIndex: 0, Cantidad: dec("10"), PrecioUnitario: dec("2.5")},
		{ItemIndex: 1, Cantidad: dec("2"), PrecioUnitario: dec("5")},
		{ItemIndex: 2, Cantidad: dec("7"), PrecioUnitario: dec("3")},
		{ItemIndex: 3, Cantidad: dec("1"), PrecioUnitario: dec("99")},
	}
	precioEquivalente := dec("8")
	tratamientos := []models.SolicitudTratamiento{
		// compra without an estimate falls back to the requested price
		{ItemIndex: 0, Decision: models.TratamientoDecisionCompra, CantidadAprobada: dec("8")},
		// equivalente with an estimate uses the estimate
		{ItemIndex: 1, Decision: models.TratamientoDecisionEquivalente, CantidadAprobada: dec("2"), PrecioUnitarioEstimado: &precioEquivalente},
		// stock and servicio never consume budget
		{ItemIndex: 2, Decision: models.TratamientoDecisionStock, CantidadAprobada: dec("7")},
		{ItemIndex: 3, Decision: models.TratamientoDecisionServicio, CantidadAprobada: dec("1")},
	}

	// 8×2.5 + 2×8 = 36
	if got := models.TotalAprobado(items, tratamientos); !got.Equal(dec("36")) {
		t.Fatalf("expected 36, got %s", got)
	}
}

func TestTotalAprobado_EstimateOverridesRequestedPrice(t *testing.T) {
	items := []models.SolicitudItem{
		{ItemIndex: 0, Cantidad: dec("3"), PrecioUnitario: dec("100")},
	}
	estimado := dec("90")
	tratamientos := []models.SolicitudTratamiento{
		{ItemIndex: 0, Decision: models.TratamientoDecisionCompra, CantidadAprobada: dec("3"), PrecioUnitarioEstimado: &estimado},
	}
	if got := models.TotalAprobado(items, tratamientos); !got.Equal(dec("270")) {
		t.Fatalf("expected 270, got %s", got)
	}
}

func TestTotalAprobado_NoDecisionsIsZero(t *testing.T) {
	items := []models.SolicitudItem{
		{ItemIndex: 0, Cantidad: dec("10"), PrecioUnitario: dec("2.5")},
	}
	if got := models.TotalAprobado(items, nil); !got.IsZero() {
		t.Fatalf("expected zero, got %s", got)
	}
}

func TestTotalAprobado_ApprovedQuantityMayExceedRequested(t *testing.T) {
	items := []models.SolicitudItem{
		{ItemIndex: 0, Cantidad: dec("2"), PrecioUnitario: dec("10")},
	}
	tratamientos := []models.SolicitudTratamiento{
		{ItemIndex: 0, Decision: models.TratamientoDecisionCompra, CantidadAprobada: dec("5")},
	}
	if got := models.TotalAprobado(items, tratamientos); !got.Equal(dec("50")) {
		t.Fatalf("expected 50, got %s", got)
	}
}
