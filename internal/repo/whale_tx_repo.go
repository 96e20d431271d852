package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ninja0404/whale-signal/internal/model"
)

type WhaleTxRepo interface {
	// Exists 是否已存在相同 id 的记录
	Exists(ctx context.Context, id string) (bool, error)

	// Insert 不存在时写入，返回是否真正插入
	Insert(ctx context.Context, tx *model.WhaleTransaction) (bool, error)
}

type whaleTxRepoImpl struct {
	db *gorm.DB
}

func NewWhaleTxRepo(db *gorm.DB) WhaleTxRepo {
	return &whaleTxRepoImpl{
		db: db,
	}
}

func (r *whaleTxRepoImpl) Exists(ctx context.Context, id string) (bool, error) {
	var count int64

	err := r.db.WithContext(ctx).
		Model(&model.WhaleTransaction{}).
		Where("id = ?", id).
		Limit(1).
		Count(&count).Error

	return count > 0, err
}

// Insert 主键冲突时什么都不做，并发写同一 id 只会成功一次
func (r *whaleTxRepoImpl) Insert(ctx context.Context, tx *model.WhaleTransaction) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(tx)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
