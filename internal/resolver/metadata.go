package resolver

import (
	"context"
	"math/big"
	"strings"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/pkg/clock"
	"github.com/ninja0404/whale-signal/pkg/logger"
)

const (
	DefaultDecimals    uint8 = 18
	defaultCallTimeout       = 10 * time.Second
)

// ChainReader 链上元数据读取
type ChainReader interface {
	Decimals(ctx context.Context, token ethcommon.Address) (uint8, error)
	TotalSupply(ctx context.Context, token ethcommon.Address) (*big.Int, error)
}

// MetadataResolver 代币精度与总量，失败时回退为 18 位精度、总量 0
type MetadataResolver struct {
	reader ChainReader
	cache  *TTLCache[model.TokenMetadata]
	clock  clock.Clock
	group  singleflight.Group
}

func NewMetadataResolver(reader ChainReader, cache *TTLCache[model.TokenMetadata], clk clock.Clock) *MetadataResolver {
	if clk == nil {
		clk = clock.Real()
	}
	return &MetadataResolver{reader: reader, cache: cache, clock: clk}
}

// Resolve 永不返回错误
func (m *MetadataResolver) Resolve(ctx context.Context, token ethcommon.Address) model.TokenMetadata {
	key := strings.ToLower(token.Hex())
	if meta, ok := m.cache.Get(key); ok {
		return meta
	}

	v, _, _ := m.group.Do(key, func() (interface{}, error) {
		if meta, ok := m.cache.Get(key); ok {
			return meta, nil
		}
		meta := m.fetch(ctx, token)
		if ctx.Err() == nil {
			m.cache.Set(key, meta)
		}
		return meta, nil
	})
	return v.(model.TokenMetadata)
}

// Purge 清理过期的元数据缓存
func (m *MetadataResolver) Purge() int {
	return m.cache.Purge()
}

func (m *MetadataResolver) fetch(ctx context.Context, token ethcommon.Address) model.TokenMetadata {
	callCtx, cancel := context.WithTimeout(ctx, defaultCallTimeout)
	defer cancel()

	meta := model.TokenMetadata{
		Decimals:    DefaultDecimals,
		TotalSupply: decimal.Zero,
		CachedAt:    m.clock.Now(),
	}

	decimals, err := m.reader.Decimals(callCtx, token)
	if err != nil {
		meta.Fallback = true
		logger.Warn("⚠️ 获取代币精度失败，使用默认值",
			logger.FieldToken(token.Hex()),
			logger.Uint8("decimals", DefaultDecimals),
			logger.FieldErr(err),
		)
	} else {
		meta.Decimals = decimals
	}

	supply, err := m.reader.TotalSupply(callCtx, token)
	if err != nil {
		meta.Fallback = true
		logger.Warn("⚠️ 获取代币总量失败，占比按 0 计算",
			logger.FieldToken(token.Hex()),
			logger.FieldErr(err),
		)
	} else {
		meta.TotalSupply = decimal.NewFromBigInt(supply, -int32(meta.Decimals))
	}

	return meta
}
