package utils

import (
	"context"
	"errors"

	"bitbucket.org/mmdatafocus/spm_backend/config"
	"gorm.io/gorm"
)

/* DB fetching */

// fetch the first model matching a condition
// (may return RecordNotFound)
func FetchModelWhere[T any](ctx context.Context, condition string, values ...interface{}) (*T, error) {

	db := config.GetDB()
	var result T
	err := db.WithContext(ctx).Where(condition, values...).First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

// fetch all models matching a condition
func FetchAllModels[T any](ctx context.Context, condition string, values ...interface{}) ([]*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx)
	if condition != "" {
		dbCtx = dbCtx.Where(condition, values...)
	}
	var results []*T
	err := dbCtx.Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
