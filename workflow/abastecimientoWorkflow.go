package workflow

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/spm_backend/config"
	"bitbucket.org/mmdatafocus/spm_backend/models"
	"bitbucket.org/mmdatafocus/spm_backend/utils"
	"gorm.io/gorm"
)

func solicitudExiste(tx *gorm.DB, solicitudId uint64) error {
	var count int64
	if err := tx.Model(&models.Solicitud{}).Where("id = ?", solicitudId).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}

// GetTimeline returns the supply-execution log of one solicitud, oldest
// first.
func GetTimeline(ctx context.Context, actor models.Actor, solicitudId uint64) ([]*models.TratamientoLog, error) {
	if !actor.EsPlanificador() {
		return nil, utils.ErrorNotAuthorized
	}
	db := config.GetDB()
	if err := solicitudExiste(db.WithContext(ctx), solicitudId); err != nil {
		return nil, err
	}
	var entries []*models.TratamientoLog
	err := db.WithContext(ctx).
		Where("solicitud_id = ?", solicitudId).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// AgregarNota appends a free-text note to the timeline.
func AgregarNota(ctx context.Context, actor models.Actor, solicitudId uint64, texto string, itemIndex *int) error {
	if !actor.EsPlanificador() {
		return utils.ErrorNotAuthorized
	}
	texto = strings.TrimSpace(texto)
	if texto == "" {
		return utils.NewValidationError("texto", "es obligatorio")
	}
	if len(texto) > 1000 {
		return utils.NewValidationError("texto", "no debe superar 1000 caracteres")
	}

	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := solicitudExiste(tx, solicitudId); err != nil {
			return err
		}
		return models.RegistrarLog(tx, solicitudId, itemIndex, actor.IdSpm, models.LogTipoNota, nil, map[string]interface{}{
			"texto": texto,
		})
	})
}

/* traslados */

// CrearTraslado raises a stock transfer for an item decided as stock.
func CrearTraslado(ctx context.Context, actor models.Actor, input models.NewTraslado) (*models.Traslado, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	if !actor.EsPlanificador() {
		return nil, utils.ErrorNotAuthorized
	}
	if !input.Cantidad.IsPositive() {
		return nil, utils.NewValidationError("cantidad", "debe ser mayor que cero")
	}

	traslado := models.Traslado{
		SolicitudId:    input.SolicitudId,
		ItemIndex:      input.ItemIndex,
		Material:       strings.ToUpper(strings.TrimSpace(input.Material)),
		Um:             input.Um,
		Cantidad:       input.Cantidad,
		OrigenCentro:   input.OrigenCentro,
		OrigenAlmacen:  input.OrigenAlmacen,
		OrigenLote:     input.OrigenLote,
		DestinoCentro:  input.DestinoCentro,
		DestinoAlmacen: input.DestinoAlmacen,
		Status:         models.TrasladoStatusPlanificado,
		CreatedBy:      actor.IdSpm,
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := solicitudExiste(tx, input.SolicitudId); err != nil {
			return err
		}
		if err := tx.Create(&traslado).Error; err != nil {
			config.LogError(logger, "abastecimientoWorkflow.go", "CrearTraslado", "create traslado", traslado, err)
			return err
		}
		estado := models.TrasladoStatusPlanificado
		return models.RegistrarLog(tx, input.SolicitudId, &traslado.ItemIndex, actor.IdSpm, models.LogTipoTrasladoCreado, &estado, map[string]interface{}{
			"traslado_id": traslado.ID,
			"material":    traslado.Material,
			"cantidad":    traslado.Cantidad,
		})
	})
	if err != nil {
		return nil, err
	}
	return &traslado, nil
}

// ActualizarTraslado updates the transfer status and SAP reference. The
// arrival (status recibido) lands on the timeline.
func ActualizarTraslado(ctx context.Context, actor models.Actor, trasladoId uint64, status string, referencia *string) (*models.Traslado, error) {
	if !actor.EsPlanificador() {
		return nil, utils.ErrorNotAuthorized
	}
	status = strings.ToLower(strings.TrimSpace(status))
	if status != models.TrasladoStatusPlanificado && status != models.TrasladoStatusRecibido {
		return nil, utils.NewValidationError("status", "inválido: %s", status)
	}

	db := config.GetDB()
	var traslado models.Traslado
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&traslado, "id = ?", trasladoId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		updates := map[string]interface{}{"status": status}
		if referencia != nil {
			updates["referencia"] = referencia
		}
		if err := tx.Model(&models.Traslado{}).Where("id = ?", trasladoId).Updates(updates).Error; err != nil {
			return err
		}
		traslado.Status = status
		if referencia != nil {
			traslado.Referencia = referencia
		}
		if status == models.TrasladoStatusRecibido {
			return models.RegistrarLog(tx, traslado.SolicitudId, &traslado.ItemIndex, actor.IdSpm, models.LogTipoTrasladoRecibido, &status, map[string]interface{}{
				"traslado_id": traslado.ID,
				"referencia":  utils.DereferencePtr(referencia),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &traslado, nil
}

/* solpeds */

// CrearSolped raises a purchase requisition for an item decided as compra
// or equivalente.
func CrearSolped(ctx context.Context, actor models.Actor, input models.NewSolped) (*models.Solped, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	if !actor.EsPlanificador() {
		return nil, utils.ErrorNotAuthorized
	}
	if !input.Cantidad.IsPositive() {
		return nil, utils.NewValidationError("cantidad", "debe ser mayor que cero")
	}

	solped := models.Solped{
		SolicitudId:       input.SolicitudId,
		ItemIndex:         input.ItemIndex,
		Material:          strings.ToUpper(strings.TrimSpace(input.Material)),
		Um:                input.Um,
		Cantidad:          input.Cantidad,
		PrecioUnitarioEst: input.PrecioUnitarioEst,
		Status:            models.SolpedStatusCreada,
		CreatedBy:         actor.IdSpm,
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := solicitudExiste(tx, input.SolicitudId); err != nil {
			return err
		}
		if err := tx.Create(&solped).Error; err != nil {
			config.LogError(logger, "abastecimientoWorkflow.go", "CrearSolped", "create solped", solped, err)
			return err
		}
		estado := models.SolpedStatusCreada
		return models.RegistrarLog(tx, input.SolicitudId, &solped.ItemIndex, actor.IdSpm, models.LogTipoSolpedCreada, &estado, map[string]interface{}{
			"solped_id": solped.ID,
			"material":  solped.Material,
			"cantidad":  solped.Cantidad,
		})
	})
	if err != nil {
		return nil, err
	}
	return &solped, nil
}

// ActualizarSolped updates the requisition status and SAP number. The
// release (status liberada) lands on the timeline.
func ActualizarSolped(ctx context.Context, actor models.Actor, solpedId uint64, status string, numero *string) (*models.Solped, error) {
	if !actor.EsPlanificador() {
		return nil, utils.ErrorNotAuthorized
	}
	status = strings.ToLower(strings.TrimSpace(status))
	if status != models.SolpedStatusCreada && status != models.SolpedStatusLiberada {
		return nil, utils.NewValidationError("status", "inválido: %s", status)
	}

	db := config.GetDB()
	var solped models.Solped
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&solped, "id = ?", solpedId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		updates := map[string]interface{}{"status": status}
		if numero != nil {
			updates["numero"] = numero
		}
		if err := tx.Model(&models.Solped{}).Where("id = ?", solpedId).Updates(updates).Error; err != nil {
			return err
		}
		solped.Status = status
		if numero != nil {
			solped.Numero = numero
		}
		if status == models.SolpedStatusLiberada {
			return models.RegistrarLog(tx, solped.SolicitudId, &solped.ItemIndex, actor.IdSpm, models.LogTipoSolpedLiberada, &status, map[string]interface{}{
				"solped_id": solped.ID,
				"numero":    utils.DereferencePtr(numero),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &solped, nil
}

/* purchase orders */

// CrearPurchaseOrder emits an order against a solped. The subtotal comes
// from the solped's cantidad and estimated price.
func CrearPurchaseOrder(ctx context.Context, actor models.Actor, input models.NewPurchaseOrder) (*models.PurchaseOrder, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	if !actor.EsPlanificador() {
		return nil, utils.ErrorNotAuthorized
	}

	var po models.PurchaseOrder
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var solped models.Solped
		if err := tx.First(&solped, "id = ?", input.SolpedId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		moneda := strings.TrimSpace(input.Moneda)
		if moneda == "" {
			moneda = "USD"
		}
		po = models.PurchaseOrder{
			SolpedId:        solped.ID,
			SolicitudId:     solped.SolicitudId,
			ProveedorEmail:  input.ProveedorEmail,
			ProveedorNombre: input.ProveedorNombre,
			Numero:          input.Numero,
			Status:          models.PurchaseOrderStatusEmitida,
			Subtotal:        solped.Cantidad.Mul(solped.PrecioUnitarioEst),
			Moneda:          moneda,
			CreatedBy:       actor.IdSpm,
		}
		if err := tx.Create(&po).Error; err != nil {
			config.LogError(logger, "abastecimientoWorkflow.go", "CrearPurchaseOrder", "create po", po, err)
			return err
		}
		estado := models.PurchaseOrderStatusEmitida
		return models.RegistrarLog(tx, solped.SolicitudId, &solped.ItemIndex, actor.IdSpm, models.LogTipoPoEmitida, &estado, map[string]interface{}{
			"po_id":     po.ID,
			"solped_id": solped.ID,
			"subtotal":  po.Subtotal,
		})
	})
	if err != nil {
		return nil, err
	}
	return &po, nil
}

func composePurchaseOrderEmail(po *models.PurchaseOrder, solped *models.Solped) (string, string) {
	numero := utils.DereferencePtr(po.Numero)
	if numero == "" {
		numero = fmt.Sprintf("PO-%d", po.ID)
	}
	subject := fmt.Sprintf("Orden de compra %s", numero)

	var b strings.Builder
	b.WriteString("<html><body>")
	b.WriteString(fmt.Sprintf("<h2>Orden de compra %s</h2>", html.EscapeString(numero)))
	if nombre := utils.DereferencePtr(po.ProveedorNombre); nombre != "" {
		b.WriteString(fmt.Sprintf("<p>Proveedor: %s</p>", html.EscapeString(nombre)))
	}
	b.WriteString(`<table border="1" cellpadding="6" cellspacing="0">`)
	b.WriteString("<tr><th>Material</th><th>Cantidad</th><th>UM</th><th>Precio unitario</th><th>Subtotal</th></tr>")
	b.WriteString(fmt.Sprintf("<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>",
		html.EscapeString(solped.Material),
		solped.Cantidad.String(),
		html.EscapeString(solped.Um),
		solped.PrecioUnitarioEst.String(),
		po.Subtotal.String()))
	b.WriteString("</table>")
	b.WriteString(fmt.Sprintf("<p>Moneda: %s</p>", html.EscapeString(po.Moneda)))
	b.WriteString(fmt.Sprintf("<p>Solicitud interna #%d</p>", po.SolicitudId))
	b.WriteString("</body></html>")
	return subject, b.String()
}

// EnviarPurchaseOrder queues the order mail to the proveedor and flips the
// PO to enviada. The outbox dispatcher delivers the mail.
func EnviarPurchaseOrder(ctx context.Context, actor models.Actor, poId uint64) (*models.PurchaseOrder, error) {
	if !actor.EsPlanificador() {
		return nil, utils.ErrorNotAuthorized
	}

	db := config.GetDB()
	var po models.PurchaseOrder
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&po, "id = ?", poId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		if utils.DereferencePtr(po.ProveedorEmail) == "" {
			return utils.NewValidationError("proveedor_email", "es obligatorio para enviar la orden")
		}
		var solped models.Solped
		if err := tx.First(&solped, "id = ?", po.SolpedId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}

		subject, body := composePurchaseOrderEmail(&po, &solped)
		if err := models.EncolarEmail(tx, *po.ProveedorEmail, subject, body, nil); err != nil {
			return err
		}
		if err := tx.Model(&models.PurchaseOrder{}).Where("id = ?", poId).
			Update("status", models.PurchaseOrderStatusEnviada).Error; err != nil {
			return err
		}
		po.Status = models.PurchaseOrderStatusEnviada
		estado := models.PurchaseOrderStatusEnviada
		return models.RegistrarLog(tx, po.SolicitudId, &solped.ItemIndex, actor.IdSpm, models.LogTipoPoEnviada, &estado, map[string]interface{}{
			"po_id":           po.ID,
			"proveedor_email": po.ProveedorEmail,
		})
	})
	if err != nil {
		return nil, err
	}
	return &po, nil
}

// ActualizarPurchaseOrder is the generic status update; the timeline entry
// is po_<status>.
func ActualizarPurchaseOrder(ctx context.Context, actor models.Actor, poId uint64, status string) (*models.PurchaseOrder, error) {
	if !actor.EsPlanificador() {
		return nil, utils.ErrorNotAuthorized
	}
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" || len(status) > 30 {
		return nil, utils.NewValidationError("status", "inválido: %s", status)
	}

	db := config.GetDB()
	var po models.PurchaseOrder
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&po, "id = ?", poId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		if err := tx.Model(&models.PurchaseOrder{}).Where("id = ?", poId).
			Update("status", status).Error; err != nil {
			return err
		}
		po.Status = status
		return models.RegistrarLog(tx, po.SolicitudId, nil, actor.IdSpm, "po_"+status, &status, map[string]interface{}{
			"po_id": po.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return &po, nil
}

// FlushQueuedEmails pushes every queued outbox mail immediately. The
// dispatcher does this on its own; the admin endpoint exists for manual
// recovery.
func FlushQueuedEmails(ctx context.Context, actor models.Actor) (int, error) {
	if !actor.EsAdmin() {
		return 0, utils.ErrorNotAuthorized
	}
	db := config.GetDB()

	var pending []models.OutboxEmail
	if err := db.WithContext(ctx).Where("status = ?", models.OutboxEmailStatusQueued).Order("id ASC").Find(&pending).Error; err != nil {
		return 0, err
	}
	sent := 0
	for _, email := range pending {
		if _, err := config.PublishEmailEvent(ctx, email); err != nil {
			if updateErr := db.WithContext(ctx).Model(&models.OutboxEmail{}).Where("id = ?", email.ID).Updates(map[string]interface{}{
				"status": models.OutboxEmailStatusError,
				"error":  err.Error(),
			}).Error; updateErr != nil {
				return sent, updateErr
			}
			continue
		}
		now := time.Now().UTC()
		if err := db.WithContext(ctx).Model(&models.OutboxEmail{}).Where("id = ?", email.ID).Updates(map[string]interface{}{
			"status":  models.OutboxEmailStatusSent,
			"sent_at": now,
			"error":   nil,
		}).Error; err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}
