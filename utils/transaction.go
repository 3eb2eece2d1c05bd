package utils

import (
	"context"
	"log/slog"

	"gorm.io/gorm"
)

// WithTransaction 在事务中执行 fn，出错回滚并记录日志
func WithTransaction(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	err := db.WithContext(ctx).Transaction(fn)
	if err != nil {
		slog.WarnContext(ctx, "transaction rolled back", "error", err)
	}
	return err
}
