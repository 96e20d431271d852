package resolver

import (
	"context"
	"errors"
	"strings"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/pkg/clock"
	"github.com/ninja0404/whale-signal/pkg/logger"
	"github.com/ninja0404/whale-signal/pkg/retry"
)

const (
	SourceStablecoin = "stablecoin"
	SourceNone       = "none"
)

var (
	// ErrRateLimited 价格源返回限流
	ErrRateLimited = errors.New("rate limited")
	// ErrPriceNotFound 价格源没有该代币的报价
	ErrPriceNotFound = errors.New("price not found")
)

// PriceSource 单个报价源
type PriceSource interface {
	Name() string
	GetPrice(ctx context.Context, token ethcommon.Address) (decimal.Decimal, error)
}

// SourceFailureHook 某个价格源最终失败时回调，用于打点
type SourceFailureHook func(source string, class retry.Class)

// PriceResolver 稳定币直接返回 1，其余按顺序尝试各价格源
type PriceResolver struct {
	sources   []PriceSource
	stables   map[ethcommon.Address]struct{}
	cache     *TTLCache[model.PriceQuote]
	policy    retry.Policy
	clock     clock.Clock
	group     singleflight.Group
	onFailure SourceFailureHook
}

type PriceOption func(*PriceResolver)

func WithStablecoins(addrs ...ethcommon.Address) PriceOption {
	return func(p *PriceResolver) {
		for _, a := range addrs {
			p.stables[a] = struct{}{}
		}
	}
}

func WithRetryPolicy(policy retry.Policy) PriceOption {
	return func(p *PriceResolver) {
		p.policy = policy
	}
}

func WithSourceFailureHook(hook SourceFailureHook) PriceOption {
	return func(p *PriceResolver) {
		p.onFailure = hook
	}
}

// DefaultPricePolicy 每个源最多 3 次，间隔 2s、4s，限流时翻倍
func DefaultPricePolicy(clk clock.Clock) retry.Policy {
	return retry.Policy{
		MaxAttempts:    3,
		Delay:          retry.Linear(2*time.Second, 0),
		RateLimitDelay: retry.Linear(4*time.Second, 0),
		Clock:          clk,
	}
}

func NewPriceResolver(sources []PriceSource, cache *TTLCache[model.PriceQuote], clk clock.Clock, opts ...PriceOption) *PriceResolver {
	if clk == nil {
		clk = clock.Real()
	}
	p := &PriceResolver{
		sources: sources,
		stables: make(map[ethcommon.Address]struct{}),
		cache:   cache,
		policy:  DefaultPricePolicy(clk),
		clock:   clk,
	}
	for _, o := range opts {
		o(p)
	}
	if p.policy.Clock == nil {
		p.policy.Clock = clk
	}
	return p
}

func (p *PriceResolver) IsStablecoin(token ethcommon.Address) bool {
	_, ok := p.stables[token]
	return ok
}

// Resolve 所有源都失败时返回价格 0，该结果同样缓存一个 TTL
func (p *PriceResolver) Resolve(ctx context.Context, token ethcommon.Address) model.PriceQuote {
	if p.IsStablecoin(token) {
		return model.PriceQuote{USDPrice: decimal.NewFromInt(1), Source: SourceStablecoin, CachedAt: p.clock.Now()}
	}

	key := strings.ToLower(token.Hex())
	if q, ok := p.cache.Get(key); ok {
		return q
	}

	v, _, _ := p.group.Do(key, func() (interface{}, error) {
		if q, ok := p.cache.Get(key); ok {
			return q, nil
		}
		q := p.fetch(ctx, token)
		if ctx.Err() == nil {
			p.cache.Set(key, q)
		}
		return q, nil
	})
	return v.(model.PriceQuote)
}

func (p *PriceResolver) Purge() int {
	return p.cache.Purge()
}

func (p *PriceResolver) fetch(ctx context.Context, token ethcommon.Address) model.PriceQuote {
	for _, src := range p.sources {
		var price decimal.Decimal
		err := p.policy.Do(ctx, func(ctx context.Context, attempt int) error {
			got, err := src.GetPrice(ctx, token)
			if err != nil {
				logger.Debug("价格源请求失败",
					logger.FieldSource(src.Name()),
					logger.FieldToken(token.Hex()),
					logger.Int("attempt", attempt),
					logger.FieldErr(err),
				)
				return err
			}
			if !got.IsPositive() {
				return retry.MarkTerminal(ErrPriceNotFound)
			}
			price = got
			return nil
		})
		if err == nil {
			return model.PriceQuote{USDPrice: price, Source: src.Name(), CachedAt: p.clock.Now()}
		}
		if ctx.Err() != nil {
			break
		}

		class := retry.Classify(err)
		logger.Warn("⚠️ 价格源不可用，切换下一个",
			logger.FieldSource(src.Name()),
			logger.FieldToken(token.Hex()),
			logger.String("class", class.String()),
			logger.FieldErr(err),
		)
		if p.onFailure != nil {
			p.onFailure(src.Name(), class)
		}
	}

	logger.Warn("❌ 所有价格源均失败，价格按 0 处理", logger.FieldToken(token.Hex()))
	return model.PriceQuote{USDPrice: decimal.Zero, Source: SourceNone, CachedAt: p.clock.Now()}
}
