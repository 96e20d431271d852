package model

import (
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// WatchedToken 监控中的代币及其主交易池
type WatchedToken struct {
	Symbol       string
	TokenAddress ethcommon.Address
	PoolAddress  ethcommon.Address
	// PoolTokenIndex 代币在池子中的位置，0 对应 amount0，1 对应 amount1
	PoolTokenIndex int
}

// HasPool 是否配置了交易池
func (t WatchedToken) HasPool() bool {
	return t.PoolAddress != (ethcommon.Address{})
}

// TokenMetadata 代币链上元数据
type TokenMetadata struct {
	Decimals uint8
	// TotalSupply 按精度换算后的总量
	TotalSupply decimal.Decimal
	CachedAt    time.Time
	// Fallback 链上查询失败时使用了默认值
	Fallback bool
}

// PriceQuote 美元报价，USDPrice 为 0 表示所有价格源均不可用
type PriceQuote struct {
	USDPrice decimal.Decimal
	Source   string
	CachedAt time.Time
}

// Known 价格是否可用
func (q PriceQuote) Known() bool {
	return q.USDPrice.IsPositive()
}
