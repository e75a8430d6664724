package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireSolicitudLock serializes mutations per solicitud across instances
// using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB that will run the transaction.
func AcquireSolicitudLock(tx *gorm.DB, solicitudId uint64) error {
	lockName := fmt.Sprintf("spm_sol_%d", solicitudId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire lock for solicitud id=%d", solicitudId)
	}
	return nil
}

func ReleaseSolicitudLock(tx *gorm.DB, solicitudId uint64) {
	lockName := fmt.Sprintf("spm_sol_%d", solicitudId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
