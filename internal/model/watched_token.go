package model

import "time"

const TableNameWatchedToken = "watched_tokens"

// WatchedTokenRow 监控名单表，enabled=0 的行不参与订阅
type WatchedTokenRow struct {
	ID             int64      `gorm:"column:id;primaryKey;autoIncrement:true" json:"id"`
	Symbol         string     `gorm:"column:symbol;type:varchar(32);not null;comment:代币符号" json:"symbol"`
	TokenAddress   string     `gorm:"column:token_address;type:varchar(42);uniqueIndex;not null;comment:代币地址" json:"token_address"`
	PoolAddress    string     `gorm:"column:pool_address;type:varchar(42);not null;default:'';comment:主交易池地址" json:"pool_address"`
	PoolTokenIndex int        `gorm:"column:pool_token_index;not null;default:0;comment:代币在池中的位置 0/1" json:"pool_token_index"`
	Enabled        bool       `gorm:"column:enabled;not null;default:true" json:"enabled"`
	UpdatedAt      *time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (*WatchedTokenRow) TableName() string {
	return TableNameWatchedToken
}
