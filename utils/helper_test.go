package utils

import (
	"context"
	"testing"
	"time"
)

func TestNormalizeText(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"Planificación", "planificacion"},
		{"  JEFE DE LOGÍSTICA  ", "jefe de logistica"},
		{"Almacén", "almacen"},
		{"gerente2", "gerente2"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeText(c.in); got != c.expected {
			t.Errorf("NormalizeText(%q) = %q, expected %q", c.in, got, c.expected)
		}
	}
}

func TestContainsNormalized(t *testing.T) {
	if !ContainsNormalized("Jefe de Almacén", "almacen") {
		t.Error("expected accent-insensitive match")
	}
	if !ContainsNormalized("PLANIFICADOR senior", "Planificador") {
		t.Error("expected case-insensitive match")
	}
	if ContainsNormalized("Planificación", "planificador") {
		t.Error("planificación must not match planificador")
	}
	if ContainsNormalized("", "jefe") {
		t.Error("empty haystack must not match")
	}
}

func TestParseFecha_AcceptedLayouts(t *testing.T) {
	cases := []string{
		"2026-03-15",
		"15/03/2026",
		"2026-03-15T10:30:00Z",
		"2026-03-15 10:30:00",
		"  2026-03-15  ",
	}
	for _, c := range cases {
		parsed, err := ParseFecha(c)
		if err != nil {
			t.Errorf("ParseFecha(%q): %v", c, err)
			continue
		}
		if parsed.Year() != 2026 || parsed.Month() != time.March || parsed.Day() != 15 {
			t.Errorf("ParseFecha(%q) = %s", c, parsed)
		}
	}
}

func TestParseFecha_RejectsGarbage(t *testing.T) {
	for _, c := range []string{"", "mañana", "15-03-2026", "2026/03/15"} {
		if _, err := ParseFecha(c); !IsValidationError(err) {
			t.Errorf("ParseFecha(%q): expected validation error, got %v", c, err)
		}
	}
}

func TestUniqueSlice(t *testing.T) {
	got := UniqueSlice([]string{"a", "b", "a", "c", "b"})
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("UniqueSlice = %v", got)
	}
}

func TestNilIfEmpty(t *testing.T) {
	if NilIfEmpty("   ") != nil {
		t.Error("expected nil for blank string")
	}
	if v := NilIfEmpty("x"); v == nil || *v != "x" {
		t.Errorf("expected pointer to x, got %v", v)
	}
}

// Without redis the per-solicitud lock degrades to a no-op; the database
// advisory lock still guards the critical section.
func TestObtainSolicitudLockWithoutRedis(t *testing.T) {
	ctx := context.Background()
	lock, err := ObtainSolicitudLock(ctx, 42, "helper_test.go", "TestObtainSolicitudLockWithoutRedis")
	if err != nil {
		t.Fatalf("ObtainSolicitudLock without redis: %v", err)
	}
	if lock != nil {
		t.Fatal("expected nil lock without a redis connection")
	}
	ReleaseSolicitudLock(ctx, nil)
}

func TestIsValidEmail(t *testing.T) {
	if !IsValidEmail("compras@proveedor.com") {
		t.Error("expected valid email to pass")
	}
	if IsValidEmail("no-es-un-mail") {
		t.Error("expected invalid email to fail")
	}
}
