package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/ninja0404/whale-signal/internal/model"
)

type WatchedTokenRepo interface {
	// ListEnabled 获取所有启用的监控代币
	ListEnabled(ctx context.Context) ([]*model.WatchedTokenRow, error)
}

type watchedTokenRepoImpl struct {
	db *gorm.DB
}

func NewWatchedTokenRepo(db *gorm.DB) WatchedTokenRepo {
	return &watchedTokenRepoImpl{
		db: db,
	}
}

func (r *watchedTokenRepoImpl) ListEnabled(ctx context.Context) ([]*model.WatchedTokenRow, error) {
	var rows []*model.WatchedTokenRow

	err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("id ASC").
		Find(&rows).Error

	return rows, err
}
