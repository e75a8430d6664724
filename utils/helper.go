package utils

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"bitbucket.org/mmdatafocus/spm_backend/config"
	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Layouts accepted for fecha_necesidad and other date inputs.
var fechaLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
}

func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// ParseFecha tries the accepted date layouts in order.
func ParseFecha(value string) (time.Time, error) {
	raw := strings.TrimSpace(value)
	for _, layout := range fechaLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, NewValidationError("fecha_necesidad", "fecha inválida: %s", value)
}

var normalizer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeText lowercases and strips accents so role and position
// checks match "Aprobación" against "aprobacion".
func NormalizeText(value string) string {
	stripped, _, err := transform.String(normalizer, value)
	if err != nil {
		stripped = value
	}
	return strings.ToLower(strings.TrimSpace(stripped))
}

// ContainsNormalized reports whether haystack contains needle after
// accent-stripping and lowercasing both sides.
func ContainsNormalized(haystack string, needle string) bool {
	return strings.Contains(NormalizeText(haystack), NormalizeText(needle))
}

func ProcessValidationErrors(err error) error {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		firstError := validationErrors[0]
		field := strings.ToLower(firstError.Field())
		switch firstError.Tag() {
		case "required":
			return NewValidationError(field, "es obligatorio")
		case "min":
			return NewValidationError(field, "debe tener al menos %s caracteres", firstError.Param())
		case "max":
			return NewValidationError(field, "no debe superar %s caracteres", firstError.Param())
		case "email":
			return NewValidationError(field, "no es un email válido")
		case "gt":
			return NewValidationError(field, "debe ser mayor que %s", firstError.Param())
		case "gte":
			return NewValidationError(field, "debe ser mayor o igual que %s", firstError.Param())
		default:
			return NewValidationError(field, "no es válido")
		}
	}
	return err
}

func UniqueSlice[T comparable](values []T) []T {
	seen := make(map[T]bool, len(values))
	unique := make([]T, 0, len(values))
	for _, value := range values {
		if !seen[value] {
			seen[value] = true
			unique = append(unique, value)
		}
	}
	return unique
}

func DereferencePtr[T any](value *T) T {
	if value != nil {
		return *value
	}
	var zeroValue T
	return zeroValue
}

func NilIfEmpty(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

// ObtainSolicitudLock takes the short redis lock that serializes
// mutations on one solicitud across instances. Returns a nil lock when
// redis is not configured; callers release with ReleaseSolicitudLock.
func ObtainSolicitudLock(ctx context.Context, solicitudId uint64, moduleName string, functionName string) (*redislock.Lock, error) {
	locker := config.GetRedisLock()
	if locker == nil {
		return nil, nil
	}
	lockKey := fmt.Sprintf("SPM:SOL:%d", solicitudId)
	lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, nil)
	if err == redislock.ErrNotObtained {
		config.LogError(config.GetLogger(), moduleName, functionName, "obtain solicitud lock", lockKey, err)
		return nil, ErrorLockContention
	}
	if err != nil {
		// Redis trouble must not block the business flow, the
		// database advisory lock still guards the critical section.
		config.LogError(config.GetLogger(), moduleName, functionName, "obtain solicitud lock", lockKey, err)
		return nil, nil
	}
	return lock, nil
}

func ReleaseSolicitudLock(ctx context.Context, lock *redislock.Lock) {
	if lock == nil {
		return
	}
	_ = lock.Release(ctx)
}
