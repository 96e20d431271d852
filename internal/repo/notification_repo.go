package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/ninja0404/whale-signal/internal/model"
)

type NotificationRepo interface {
	// Append 追加一条通知流水
	Append(ctx context.Context, record *model.NotificationRecord) error
}

type notificationRepoImpl struct {
	db *gorm.DB
}

func NewNotificationRepo(db *gorm.DB) NotificationRepo {
	return &notificationRepoImpl{
		db: db,
	}
}

func (r *notificationRepoImpl) Append(ctx context.Context, record *model.NotificationRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}
