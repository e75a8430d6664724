package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/spm_backend/config"
	"bitbucket.org/mmdatafocus/spm_backend/models"
	"bitbucket.org/mmdatafocus/spm_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Full lifecycle coverage against a real MySQL + Redis, exercising the
// same claim CAS, advisory locks and transactional outbox the service runs
// in production.
//
// Usage (requires Docker):
//   INTEGRATION_TESTS=1 go test ./workflow -run Integration -v
// Golden snapshot refresh:
//   INTEGRATION_TESTS=1 UPDATE_GOLDEN=1 go test ./workflow -run Estadisticas -v

func requireIntegration(t *testing.T) {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}
}

func setupIntegrationEnv(t *testing.T) context.Context {
	t.Helper()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "spm_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	return context.Background()
}

func seedUsuario(t *testing.T, usuario models.Usuario) models.Actor {
	t.Helper()
	hash, err := utils.HashPassword("secret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	usuario.Contrasena = string(hash)
	if usuario.EstadoRegistro == "" {
		usuario.EstadoRegistro = "activo"
	}
	if err := config.GetDB().Create(&usuario).Error; err != nil {
		t.Fatalf("seed usuario %s: %v", usuario.IdSpm, err)
	}
	return usuario.AsActor()
}

func strPtr(s string) *string { return &s }

func decPtr(d decimal.Decimal) *decimal.Decimal { return &d }

func submitSolicitud(t *testing.T, ctx context.Context, requester models.Actor) *models.Solicitud {
	t.Helper()
	header := models.NewSolicitudHeader{
		Centro:         "1008",
		Sector:         "Mantenimiento",
		Justificacion:  "reposición de repuestos críticos",
		CentroCostos:   "CC-77",
		AlmacenVirtual: "AV-01",
		FechaNecesidad: "2026-09-30",
	}
	items := []models.NewSolicitudItem{
		{Codigo: "MAT-001", Descripcion: "rodamiento", Unidad: "UN", Cantidad: decimal.NewFromInt(3), PrecioUnitario: decimal.NewFromInt(10)},
		{Codigo: "MAT-002", Descripcion: "correa", Unidad: "UN", Cantidad: decimal.NewFromInt(1), PrecioUnitario: decimal.NewFromInt(5)},
	}
	solicitud, err := Submit(ctx, requester, nil, header, items)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return solicitud
}

func TestSolicitudLifecycle_Integration(t *testing.T) {
	requireIntegration(t)
	ctx := setupIntegrationEnv(t)
	db := config.GetDB()

	aprobador := seedUsuario(t, models.Usuario{IdSpm: "jorge.lopez", Nombre: "Jorge López", Rol: "aprobador", Posicion: "Jefe de Planta"})
	requester := seedUsuario(t, models.Usuario{IdSpm: "maria.perez", Nombre: "María Pérez", Rol: "solicitante", Jefe: strPtr("jorge.lopez"), Centros: "1008"})
	plannerA := seedUsuario(t, models.Usuario{IdSpm: "pablo.ruiz", Nombre: "Pablo Ruiz", Rol: "planificador"})
	plannerB := seedUsuario(t, models.Usuario{IdSpm: "laura.gomez", Nombre: "Laura Gómez", Rol: "planificador"})

	// submit resolves the approver from the jefe chain and totals in
	// requested mode: 3×10 + 1×5 = 35
	solicitud := submitSolicitud(t, ctx, requester)
	if solicitud.Status != models.SolicitudEstadoPendienteDeAprobacion {
		t.Fatalf("status after submit = %s", solicitud.Status)
	}
	if solicitud.AprobadorId == nil || *solicitud.AprobadorId != aprobador.IdSpm {
		t.Fatalf("aprobador = %v", solicitud.AprobadorId)
	}
	if !solicitud.TotalMonto.Equal(decimal.NewFromInt(35)) {
		t.Fatalf("total solicitado = %s, expected 35", solicitud.TotalMonto)
	}

	// only the assigned approver decides
	if _, err := DecideSolicitud(ctx, plannerA, solicitud.ID, models.DecisionAccionAprobar, nil); !errors.Is(err, utils.ErrorNotAuthorized) {
		t.Fatalf("expected not-authorized for a stranger, got %v", err)
	}
	solicitud, err := DecideSolicitud(ctx, aprobador, solicitud.ID, models.DecisionAccionAprobar, nil)
	if err != nil {
		t.Fatalf("DecideSolicitud: %v", err)
	}
	if solicitud.Status != models.SolicitudEstadoAprobada {
		t.Fatalf("status after approval = %s", solicitud.Status)
	}
	// the approval is single-use: a replay reports the decision already taken
	if _, err := DecideSolicitud(ctx, aprobador, solicitud.ID, models.DecisionAccionRechazar, nil); !errors.Is(err, utils.ErrorAlreadyResolved) {
		t.Fatalf("expected already-resolved on re-decide, got %v", err)
	}

	// two planners race for the claim: exactly one winner
	var wg sync.WaitGroup
	claimErrs := make([]error, 2)
	for i, planner := range []models.Actor{plannerA, plannerB} {
		wg.Add(1)
		go func(i int, planner models.Actor) {
			defer wg.Done()
			_, claimErrs[i] = Claim(ctx, planner, solicitud.ID)
		}(i, planner)
	}
	wg.Wait()
	wins := 0
	for _, err := range claimErrs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, utils.ErrorAlreadyClaimed):
		default:
			t.Fatalf("unexpected claim error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly 1 claim winner, got %d", wins)
	}

	solicitud, err = models.GetSolicitud(ctx, solicitud.ID)
	if err != nil {
		t.Fatalf("GetSolicitud: %v", err)
	}
	if solicitud.Status != models.SolicitudEstadoEnTratamiento || solicitud.PlannerId == nil {
		t.Fatalf("after claim: status=%s planner=%v", solicitud.Status, solicitud.PlannerId)
	}
	holder, loser := plannerA, plannerB
	if *solicitud.PlannerId == plannerB.IdSpm {
		holder, loser = plannerB, plannerA
	}

	// the loser keeps losing until the holder releases
	if _, err := Claim(ctx, loser, solicitud.ID); !errors.Is(err, utils.ErrorAlreadyClaimed) {
		t.Fatalf("expected already-claimed for the loser, got %v", err)
	}
	// a repeat by the holder is an idempotent success
	if _, err := Claim(ctx, holder, solicitud.ID); err != nil {
		t.Fatalf("holder re-claim: %v", err)
	}

	// non-holders cannot record decisions or finalize
	decisionCompra := models.NewTratamientoDecision{
		ItemIndex:              0,
		Decision:               "compra",
		CantidadAprobada:       decimal.NewFromInt(3),
		PrecioUnitarioEstimado: decPtr(decimal.NewFromInt(12)),
		ProveedorSugerido:      strPtr("ACME SA"),
	}
	if _, err := RecordDecisiones(ctx, loser, solicitud.ID, []models.NewTratamientoDecision{decisionCompra}); !errors.Is(err, utils.ErrorNotOwner) {
		t.Fatalf("expected not-owner for the loser, got %v", err)
	}

	// finalize with an undecided item is refused
	solicitud, err = RecordDecisiones(ctx, holder, solicitud.ID, []models.NewTratamientoDecision{decisionCompra})
	if err != nil {
		t.Fatalf("RecordDecisiones item 0: %v", err)
	}
	if _, err := FinalizeTratamiento(ctx, holder, solicitud.ID); !errors.Is(err, utils.ErrorIncompleteTreatment) {
		t.Fatalf("expected incomplete treatment, got %v", err)
	}

	// approved mode counts only buying lines: 3×12 + 0 = 36
	solicitud, err = RecordDecisiones(ctx, holder, solicitud.ID, []models.NewTratamientoDecision{
		{ItemIndex: 1, Decision: "stock", CantidadAprobada: decimal.NewFromInt(1)},
	})
	if err != nil {
		t.Fatalf("RecordDecisiones item 1: %v", err)
	}
	if !solicitud.TotalMonto.Equal(decimal.NewFromInt(36)) {
		t.Fatalf("total aprobado = %s, expected 36", solicitud.TotalMonto)
	}

	// re-submitting an index overwrites, it does not append
	solicitud, err = RecordDecisiones(ctx, holder, solicitud.ID, []models.NewTratamientoDecision{decisionCompra})
	if err != nil {
		t.Fatalf("RecordDecisiones replay: %v", err)
	}
	if len(solicitud.Tratamientos) != 2 {
		t.Fatalf("expected 2 treatment rows after replay, got %d", len(solicitud.Tratamientos))
	}
	if !solicitud.TotalMonto.Equal(decimal.NewFromInt(36)) {
		t.Fatalf("total aprobado after replay = %s, expected 36", solicitud.TotalMonto)
	}

	// cancellation round trip: requested by the requester, rejected by the
	// holder, solicitud returns to treatment with ownership intact
	solicitud, err = SolicitarCancelacion(ctx, requester, solicitud.ID, strPtr("ya no se necesita"))
	if err != nil {
		t.Fatalf("SolicitarCancelacion: %v", err)
	}
	if solicitud.Status != models.SolicitudEstadoCancelacionPendiente {
		t.Fatalf("status after cancel request = %s", solicitud.Status)
	}
	if _, err := ResolverCancelacion(ctx, loser, solicitud.ID, models.DecisionAccionRechazar, nil); !errors.Is(err, utils.ErrorNotAuthorized) {
		t.Fatalf("expected not-authorized for non-holder resolver, got %v", err)
	}
	solicitud, err = ResolverCancelacion(ctx, holder, solicitud.ID, models.DecisionAccionRechazar, strPtr("faltan datos"))
	if err != nil {
		t.Fatalf("ResolverCancelacion: %v", err)
	}
	if solicitud.Status != models.SolicitudEstadoEnTratamiento {
		t.Fatalf("status after rejected cancel = %s", solicitud.Status)
	}
	cancelacion := solicitud.CancelacionActual()
	if cancelacion == nil || cancelacion.Estado != models.CancelacionEstadoRechazada {
		t.Fatalf("cancelacion = %+v", cancelacion)
	}
	if cancelacion.DecisionComentario == nil || *cancelacion.DecisionComentario != "faltan datos" {
		t.Fatalf("decision comentario = %v", cancelacion.DecisionComentario)
	}
	if !solicitud.EsHolder(holder) {
		t.Fatal("holder lost the claim across the cancellation round trip")
	}
	// resolving a resolved cancellation always fails
	if _, err := ResolverCancelacion(ctx, holder, solicitud.ID, models.DecisionAccionAprobar, nil); !errors.Is(err, utils.ErrorAlreadyResolved) {
		t.Fatalf("expected already-resolved, got %v", err)
	}

	solicitud, err = FinalizeTratamiento(ctx, holder, solicitud.ID)
	if err != nil {
		t.Fatalf("FinalizeTratamiento: %v", err)
	}
	if solicitud.Status != models.SolicitudEstadoFinalizada {
		t.Fatalf("status after finalize = %s", solicitud.Status)
	}

	// every transition wrote its fan-out before returning: in-app rows for
	// the requester plus pending outbox events for the dispatcher
	var notificaciones int64
	if err := db.Model(&models.Notificacion{}).Where("destinatario_id = ?", requester.IdSpm).Count(&notificaciones).Error; err != nil {
		t.Fatalf("count notificaciones: %v", err)
	}
	if notificaciones == 0 {
		t.Fatal("expected notificaciones for the requester")
	}
	var outbox int64
	if err := db.Model(&models.OutboxMessage{}).Where("aggregate_id = ? AND status = ?", solicitud.ID, models.OutboxStatusPending).Count(&outbox).Error; err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	if outbox == 0 {
		t.Fatal("expected pending outbox events for the solicitud")
	}

	// release returns a claim to the pool for anyone else to take
	segunda := submitSolicitud(t, ctx, requester)
	if _, err := DecideSolicitud(ctx, aprobador, segunda.ID, models.DecisionAccionAprobar, nil); err != nil {
		t.Fatalf("approve segunda: %v", err)
	}
	if _, err := Claim(ctx, plannerA, segunda.ID); err != nil {
		t.Fatalf("claim segunda: %v", err)
	}
	if _, err := Release(ctx, plannerB, segunda.ID); !errors.Is(err, utils.ErrorNotOwner) {
		t.Fatalf("expected not-owner on foreign release, got %v", err)
	}
	if _, err := Release(ctx, plannerA, segunda.ID); err != nil {
		t.Fatalf("release segunda: %v", err)
	}
	if _, err := Claim(ctx, plannerB, segunda.ID); err != nil {
		t.Fatalf("expected plannerB to claim after release, got %v", err)
	}
}

// A dangling reference in the jefe chain moves the walk to the next
// candidate; only a missing usuario is skippable, never a lookup failure.
func TestAprobadorChainSkipsMissing_Integration(t *testing.T) {
	requireIntegration(t)
	ctx := setupIntegrationEnv(t)

	gerente := seedUsuario(t, models.Usuario{IdSpm: "gloria.paz", Nombre: "Gloria Paz", Rol: "gerente1"})
	requester := seedUsuario(t, models.Usuario{
		IdSpm:    "maria.perez",
		Nombre:   "María Pérez",
		Rol:      "solicitante",
		Jefe:     strPtr("jefe.baja"),
		Gerente1: strPtr("gloria.paz"),
		Centros:  "1008",
	})

	solicitud := submitSolicitud(t, ctx, requester)
	if solicitud.AprobadorId == nil || *solicitud.AprobadorId != gerente.IdSpm {
		t.Fatalf("aprobador = %v, expected %s via gerente1 fallback", solicitud.AprobadorId, gerente.IdSpm)
	}
}

// A status read taken before the claim CAS lands must never clobber the
// claimed row: the conditional write refuses and the planner keeps both the
// status and the claim.
func TestCambiarStatusStaleRead_Integration(t *testing.T) {
	requireIntegration(t)
	ctx := setupIntegrationEnv(t)
	db := config.GetDB()

	aprobador := seedUsuario(t, models.Usuario{IdSpm: "jorge.lopez", Nombre: "Jorge López", Rol: "aprobador"})
	requester := seedUsuario(t, models.Usuario{IdSpm: "maria.perez", Nombre: "María Pérez", Rol: "solicitante", Jefe: strPtr("jorge.lopez")})
	planner := seedUsuario(t, models.Usuario{IdSpm: "pablo.ruiz", Nombre: "Pablo Ruiz", Rol: "planificador"})

	solicitud := submitSolicitud(t, ctx, requester)
	if _, err := DecideSolicitud(ctx, aprobador, solicitud.ID, models.DecisionAccionAprobar, nil); err != nil {
		t.Fatalf("approve: %v", err)
	}

	stale, err := models.GetSolicitud(ctx, solicitud.ID)
	if err != nil {
		t.Fatalf("GetSolicitud: %v", err)
	}
	if stale.Status != models.SolicitudEstadoAprobada {
		t.Fatalf("status before claim = %s", stale.Status)
	}

	// the claim lands between the read above and the write below
	if _, err := Claim(ctx, planner, solicitud.ID); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return cambiarStatus(tx, stale, models.SolicitudEstadoCancelacionPendiente)
	})
	if !errors.Is(err, utils.ErrorInvalidTransition) {
		t.Fatalf("expected invalid transition on stale write, got %v", err)
	}

	actual, err := models.GetSolicitud(ctx, solicitud.ID)
	if err != nil {
		t.Fatalf("GetSolicitud after stale write: %v", err)
	}
	if actual.Status != models.SolicitudEstadoEnTratamiento || actual.PlannerId == nil || *actual.PlannerId != planner.IdSpm {
		t.Fatalf("claimed row was clobbered: status=%s planner=%v", actual.Status, actual.PlannerId)
	}
}

func TestPresupuestoIncorporacion_Integration(t *testing.T) {
	requireIntegration(t)
	ctx := setupIntegrationEnv(t)
	db := config.GetDB()

	// rol gerente1 makes them request-eligible, posicion gerente2 makes
	// them approve-eligible: the self-approval ban must still hold
	jefa := seedUsuario(t, models.Usuario{IdSpm: "gisela.mora", Nombre: "Gisela Mora", Rol: "gerente1", Posicion: "Gerente2 de Operaciones", Centros: "1008"})
	gerente2 := seedUsuario(t, models.Usuario{IdSpm: "gerardo.diaz", Nombre: "Gerardo Díaz", Rol: "gerente", Posicion: "Gerente2 Corporativo"})
	solicitante := seedUsuario(t, models.Usuario{IdSpm: "maria.perez", Nombre: "María Pérez", Rol: "solicitante", Centros: "1008"})

	// plain requesters are not eligible
	if _, err := CrearIncorporacion(ctx, solicitante, models.NewIncorporacion{Centro: "1008", Monto: decimal.NewFromInt(500)}); !errors.Is(err, utils.ErrorNotAuthorized) {
		t.Fatalf("expected not-authorized for plain requester, got %v", err)
	}

	incorporacion, err := CrearIncorporacion(ctx, jefa, models.NewIncorporacion{
		Centro: "1008",
		Sector: strPtr("Mantenimiento"),
		Monto:  decimal.NewFromInt(500),
		Motivo: strPtr("ampliación parada de planta"),
	})
	if err != nil {
		t.Fatalf("CrearIncorporacion: %v", err)
	}
	if incorporacion.Estado != models.IncorporacionEstadoPendiente {
		t.Fatalf("estado = %s", incorporacion.Estado)
	}

	// the requester may not approve their own request even though they
	// hold the approver gate
	if _, err := ResolverIncorporacion(ctx, jefa, incorporacion.ID, models.DecisionAccionAprobar, nil); !errors.Is(err, utils.ErrorNotAuthorized) {
		t.Fatalf("expected not-authorized on self-approval, got %v", err)
	}

	incorporacion, err = ResolverIncorporacion(ctx, gerente2, incorporacion.ID, models.DecisionAccionAprobar, strPtr("ok"))
	if err != nil {
		t.Fatalf("ResolverIncorporacion: %v", err)
	}
	if incorporacion.Estado != models.IncorporacionEstadoAprobada {
		t.Fatalf("estado after approval = %s", incorporacion.Estado)
	}

	// approval credited the budget ledger atomically
	var presupuesto models.Presupuesto
	if err := db.Where("centro = ? AND sector = ?", "1008", "Mantenimiento").First(&presupuesto).Error; err != nil {
		t.Fatalf("fetch presupuesto: %v", err)
	}
	if !presupuesto.MontoUsd.Equal(decimal.NewFromInt(500)) || !presupuesto.SaldoUsd.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("presupuesto = monto %s saldo %s", presupuesto.MontoUsd, presupuesto.SaldoUsd)
	}

	// replays fail regardless of the action
	if _, err := ResolverIncorporacion(ctx, gerente2, incorporacion.ID, models.DecisionAccionRechazar, nil); !errors.Is(err, utils.ErrorAlreadyResolved) {
		t.Fatalf("expected already-resolved on replay, got %v", err)
	}
}

func TestEstadisticasGolden_Integration(t *testing.T) {
	requireIntegration(t)
	ctx := setupIntegrationEnv(t)
	db := config.GetDB()

	aprobador := seedUsuario(t, models.Usuario{IdSpm: "jorge.lopez", Nombre: "Jorge López", Rol: "aprobador"})
	requester := seedUsuario(t, models.Usuario{IdSpm: "maria.perez", Nombre: "María Pérez", Rol: "solicitante", Jefe: strPtr("jorge.lopez")})
	planner := seedUsuario(t, models.Usuario{IdSpm: "pablo.ruiz", Nombre: "Pablo Ruiz", Rol: "planificador"})

	// two closed solicitudes with pinned claim/close timestamps so the
	// mean treatment hours are deterministic: 24h and 48h -> 36h
	base := time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)
	for i, horas := range []int{24, 48} {
		solicitud := submitSolicitud(t, ctx, requester)
		if _, err := DecideSolicitud(ctx, aprobador, solicitud.ID, models.DecisionAccionAprobar, nil); err != nil {
			t.Fatalf("approve %d: %v", i, err)
		}
		if _, err := Claim(ctx, planner, solicitud.ID); err != nil {
			t.Fatalf("claim %d: %v", i, err)
		}
		if _, err := RecordDecisiones(ctx, planner, solicitud.ID, []models.NewTratamientoDecision{
			{ItemIndex: 0, Decision: "compra", CantidadAprobada: decimal.NewFromInt(3), PrecioUnitarioEstimado: decPtr(decimal.NewFromInt(12))},
			{ItemIndex: 1, Decision: "stock", CantidadAprobada: decimal.NewFromInt(1)},
		}); err != nil {
			t.Fatalf("decisiones %d: %v", i, err)
		}
		if _, err := FinalizeTratamiento(ctx, planner, solicitud.ID); err != nil {
			t.Fatalf("finalize %d: %v", i, err)
		}
		// UpdateColumn skips the autoUpdateTime hook
		if err := db.Model(&models.Solicitud{}).Where("id = ?", solicitud.ID).UpdateColumns(map[string]interface{}{
			"claimed_at": base,
			"updated_at": base.Add(time.Duration(horas) * time.Hour),
		}).Error; err != nil {
			t.Fatalf("pin timestamps %d: %v", i, err)
		}
	}

	stats, err := GetPlannerEstadisticas(ctx, planner, EstadisticasFilter{})
	if err != nil {
		t.Fatalf("GetPlannerEstadisticas: %v", err)
	}
	loadOrUpdateGolden(t, goldenPath("estadisticas_planner"), stats)
}

/* golden snapshot helpers */

func goldenPath(name string) string {
	return filepath.Join("testdata", "golden", name+".json")
}

func loadOrUpdateGolden(t *testing.T, path string, actual any) {
	t.Helper()

	update := strings.TrimSpace(os.Getenv("UPDATE_GOLDEN")) != ""
	expectedRaw, err := os.ReadFile(path)
	if err != nil {
		if update {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				t.Fatalf("mkdir golden dir: %v", err)
			}
			out, merr := json.MarshalIndent(actual, "", "  ")
			if merr != nil {
				t.Fatalf("marshal golden: %v", merr)
			}
			if werr := os.WriteFile(path, out, 0o644); werr != nil {
				t.Fatalf("write golden: %v", werr)
			}
			t.Logf("wrote golden snapshot: %s", path)
			return
		}
		t.Skipf("golden snapshot missing (%s). Re-run with UPDATE_GOLDEN=1 to generate.", path)
	}

	var expected any
	if err := json.Unmarshal(expectedRaw, &expected); err != nil {
		t.Fatalf("unmarshal golden (%s): %v", path, err)
	}
	actualRaw, err := json.Marshal(actual)
	if err != nil {
		t.Fatalf("marshal actual: %v", err)
	}
	var got any
	if err := json.Unmarshal(actualRaw, &got); err != nil {
		t.Fatalf("normalize actual: %v", err)
	}
	normalizedExpected, _ := json.Marshal(expected)
	if string(actualRaw) != string(normalizedExpected) {
		prettyExpected, _ := json.MarshalIndent(expected, "", "  ")
		prettyActual, _ := json.MarshalIndent(got, "", "  ")
		t.Fatalf("golden mismatch\n\nEXPECTED (%s):\n%s\n\nACTUAL:\n%s\n", path, string(prettyExpected), string(prettyActual))
	}
}

/* docker helpers */

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("spm-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("spm-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=spm_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
