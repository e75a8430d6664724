package models_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/spm_backend/models"
)

func TestEsPlanificador(t *testing.T) {
	cases := []struct {
		rol      string
		expected bool
	}{
		{"planificador", true},
		{"Planificador Senior", true},
		{"PLANNER", true},
		{"administrador", true},
		{"Admin", true},
		{"solicitante", false},
		{"gerente1", false},
		{"", false},
	}
	for _, c := range cases {
		actor := models.Actor{IdSpm: "u1", Rol: c.rol}
		if actor.EsPlanificador() != c.expected {
			t.Errorf("EsPlanificador(rol=%q) = %v, expected %v", c.rol, actor.EsPlanificador(), c.expected)
		}
	}
}

func TestPuedeSolicitarIncorporacion(t *testing.T) {
	cases := []struct {
		rol      string
		posicion string
		expected bool
	}{
		{"", "Jefe de Almacén", true},
		// accents and case never matter
		{"", "JEFE DE LOGÍSTICA", true},
		{"", "Gerente1", true},
		{"gerente1", "", true},
		{"", "Gerente2", false},
		{"solicitante", "Analista", false},
	}
	for _, c := range cases {
		actor := models.Actor{IdSpm: "u1", Rol: c.rol, Posicion: c.posicion}
		if actor.PuedeSolicitarIncorporacion() != c.expected {
			t.Errorf("PuedeSolicitarIncorporacion(rol=%q, posicion=%q) = %v, expected %v",
				c.rol, c.posicion, actor.PuedeSolicitarIncorporacion(), c.expected)
		}
	}
}

func TestPuedeAprobarIncorporacion(t *testing.T) {
	cases := []struct {
		rol      string
		posicion string
		expected bool
	}{
		{"administrador", "", true},
		{"", "Gerente2", true},
		{"gerente2", "", true},
		{"", "Gerente1", false},
		{"", "Jefe de Almacén", false},
		{"solicitante", "", false},
	}
	for _, c := range cases {
		actor := models.Actor{IdSpm: "u1", Rol: c.rol, Posicion: c.posicion}
		if actor.PuedeAprobarIncorporacion() != c.expected {
			t.Errorf("PuedeAprobarIncorporacion(rol=%q, posicion=%q) = %v, expected %v",
				c.rol, c.posicion, actor.PuedeAprobarIncorporacion(), c.expected)
		}
	}
}

func TestEsGestorPresupuesto(t *testing.T) {
	cases := []struct {
		rol      string
		posicion string
		expected bool
	}{
		{"", "Jefe de Planta", true},
		{"", "Gerente de Operaciones", true},
		{"presupuesto", "", true},
		{"administrador", "", true},
		{"solicitante", "Analista", false},
	}
	for _, c := range cases {
		actor := models.Actor{IdSpm: "u1", Rol: c.rol, Posicion: c.posicion}
		if actor.EsGestorPresupuesto() != c.expected {
			t.Errorf("EsGestorPresupuesto(rol=%q, posicion=%q) = %v, expected %v",
				c.rol, c.posicion, actor.EsGestorPresupuesto(), c.expected)
		}
	}
}

func TestCentrosList(t *testing.T) {
	usuario := models.Usuario{Centros: " C001 , C002,,C003 "}
	centros := usuario.CentrosList()
	if len(centros) != 3 {
		t.Fatalf("expected 3 centros, got %v", centros)
	}
	for i, expected := range []string{"C001", "C002", "C003"} {
		if centros[i] != expected {
			t.Errorf("centros[%d] = %q, expected %q", i, centros[i], expected)
		}
	}
	if vacio := (models.Usuario{}).CentrosList(); len(vacio) != 0 {
		t.Fatalf("expected no centros for empty column, got %v", vacio)
	}
}
