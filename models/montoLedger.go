package models

import (
	"github.com/shopspring/decimal"
)

// The monetary ledger is pure arithmetic over decimals; it never touches
// the database. solicitudes.total_monto is only ever written with the
// output of these functions.

// Subtotal is cantidad × precio_unitario. A nil price counts as zero.
func Subtotal(cantidad decimal.Decimal, precioUnitario *decimal.Decimal) decimal.Decimal {
	if precioUnitario == nil {
		return decimal.Zero
	}
	return cantidad.Mul(*precioUnitario)
}

// TotalSolicitado sums requested subtotals. Used while the solicitud is
// draft / pendiente_de_aprobacion / aprobada.
func TotalSolicitado(items []SolicitudItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(Subtotal(item.Cantidad, &item.PrecioUnitario))
	}
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// TotalAprobado sums planner-approved lines once the solicitud is under
// treatment. Only compra and equivalente decisions consume budget; stock
// and servicio lines contribute zero. When the planner recorded no price
// estimate the requested unit price of the matching item is used.
func TotalAprobado(items []SolicitudItem, tratamientos []SolicitudTratamiento) decimal.Decimal {
	preciosSolicitados := make(map[int]decimal.Decimal, len(items))
	for _, item := range items {
		preciosSolicitados[item.ItemIndex] = item.PrecioUnitario
	}

	total := decimal.Zero
	for _, t := range tratamientos {
		if !t.Decision.ConsumePresupuesto() {
			continue
		}
		precio := preciosSolicitados[t.ItemIndex]
		if t.PrecioUnitarioEstimado != nil {
			precio = *t.PrecioUnitarioEstimado
		}
		total = total.Add(t.CantidadAprobada.Mul(precio))
	}
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}
