package resolver

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/pkg/clock"
	"github.com/ninja0404/whale-signal/pkg/retry"
)

var (
	pepe = ethcommon.HexToAddress("0x6982508145454Ce325dDbE47a25d4ec3d2311933")
	usdc = ethcommon.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
)

type scriptedSource struct {
	name string
	mu   sync.Mutex
	// results 按调用顺序返回，用完后重复最后一个
	results []sourceResult
	calls   int
}

type sourceResult struct {
	price decimal.Decimal
	err   error
}

func (s *scriptedSource) Name() string { return s.name }

func (s *scriptedSource) GetPrice(ctx context.Context, token ethcommon.Address) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.calls
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	s.calls++
	r := s.results[idx]
	return r.price, r.err
}

func (s *scriptedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func ok(price string) sourceResult {
	return sourceResult{price: decimal.RequireFromString(price)}
}

func fail(err error) sourceResult {
	return sourceResult{err: err}
}

func newPriceResolver(fake *clock.Fake, sources ...PriceSource) *PriceResolver {
	return NewPriceResolver(
		sources,
		NewTTLCache[model.PriceQuote](time.Minute, fake),
		fake,
		WithStablecoins(usdc),
	)
}

func TestTTLCacheExpiry(t *testing.T) {
	fake := clock.NewFake(time.Unix(1_700_000_000, 0))
	cache := NewTTLCache[int](time.Minute, fake)

	cache.Set("a", 1)
	v, found := cache.Get("a")
	require.True(t, found)
	assert.Equal(t, 1, v)

	fake.Advance(59 * time.Second)
	_, found = cache.Get("a")
	assert.True(t, found)

	fake.Advance(time.Second)
	_, found = cache.Get("a")
	assert.False(t, found)
	assert.Equal(t, 1, cache.Purge())
	assert.Equal(t, 0, cache.Len())
}

func TestPriceStablecoinShortCircuit(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	src := &scriptedSource{name: "primary", results: []sourceResult{ok("2")}}
	p := newPriceResolver(fake, src)

	q := p.Resolve(context.Background(), usdc)
	assert.True(t, q.USDPrice.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, SourceStablecoin, q.Source)
	assert.Zero(t, src.Calls())
}

func TestPriceCachedWithinTTL(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	src := &scriptedSource{name: "primary", results: []sourceResult{ok("2")}}
	p := newPriceResolver(fake, src)

	first := p.Resolve(context.Background(), pepe)
	fake.Advance(30 * time.Second)
	second := p.Resolve(context.Background(), pepe)

	assert.Equal(t, 1, src.Calls())
	assert.True(t, first.USDPrice.Equal(second.USDPrice))
	assert.Equal(t, "primary", second.Source)

	fake.Advance(31 * time.Second)
	p.Resolve(context.Background(), pepe)
	assert.Equal(t, 2, src.Calls())
}

func TestPriceRetriesTransientFailures(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	src := &scriptedSource{name: "primary", results: []sourceResult{
		fail(errors.New("connection reset")),
		fail(errors.New("connection reset")),
		ok("1.5"),
	}}
	p := newPriceResolver(fake, src)

	q := p.Resolve(context.Background(), pepe)
	assert.True(t, q.USDPrice.Equal(decimal.RequireFromString("1.5")))
	assert.Equal(t, 3, src.Calls())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, fake.Sleeps())
}

func TestPriceRateLimitedBacksOffLonger(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	src := &scriptedSource{name: "primary", results: []sourceResult{
		fail(retry.MarkRateLimited(ErrRateLimited)),
		ok("3"),
	}}
	p := newPriceResolver(fake, src)

	q := p.Resolve(context.Background(), pepe)
	assert.True(t, q.USDPrice.Equal(decimal.NewFromInt(3)))
	assert.Equal(t, []time.Duration{4 * time.Second}, fake.Sleeps())
}

func TestPriceHardFailureMovesToNextSource(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	primary := &scriptedSource{name: "primary", results: []sourceResult{fail(retry.MarkTerminal(ErrPriceNotFound))}}
	secondary := &scriptedSource{name: "secondary", results: []sourceResult{ok("0.25")}}

	var failed []string
	p := NewPriceResolver(
		[]PriceSource{primary, secondary},
		NewTTLCache[model.PriceQuote](time.Minute, fake),
		fake,
		WithSourceFailureHook(func(source string, class retry.Class) {
			failed = append(failed, source+":"+class.String())
		}),
	)

	q := p.Resolve(context.Background(), pepe)
	assert.Equal(t, "secondary", q.Source)
	assert.True(t, q.USDPrice.Equal(decimal.RequireFromString("0.25")))
	assert.Equal(t, 1, primary.Calls())
	assert.Empty(t, fake.Sleeps())
	assert.Equal(t, []string{"primary:terminal"}, failed)
}

func TestPriceExhaustionReturnsZero(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	primary := &scriptedSource{name: "primary", results: []sourceResult{fail(errors.New("timeout"))}}
	secondary := &scriptedSource{name: "secondary", results: []sourceResult{fail(errors.New("timeout"))}}
	p := newPriceResolver(fake, primary, secondary)

	q := p.Resolve(context.Background(), pepe)
	assert.True(t, q.USDPrice.IsZero())
	assert.False(t, q.Known())
	assert.Equal(t, SourceNone, q.Source)
	assert.Equal(t, 3, primary.Calls())
	assert.Equal(t, 3, secondary.Calls())

	// 失败结果同样在 TTL 内复用
	p.Resolve(context.Background(), pepe)
	assert.Equal(t, 3, primary.Calls())
}

func TestPriceZeroQuoteTreatedAsMissing(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	primary := &scriptedSource{name: "primary", results: []sourceResult{ok("0")}}
	secondary := &scriptedSource{name: "secondary", results: []sourceResult{ok("4")}}
	p := newPriceResolver(fake, primary, secondary)

	q := p.Resolve(context.Background(), pepe)
	assert.Equal(t, "secondary", q.Source)
	assert.Equal(t, 1, primary.Calls())
}

type fakeChainReader struct {
	mu          sync.Mutex
	decimals    uint8
	supply      *big.Int
	decimalsErr error
	supplyErr   error
	calls       int
}

func (f *fakeChainReader) Decimals(ctx context.Context, token ethcommon.Address) (uint8, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.decimals, f.decimalsErr
}

func (f *fakeChainReader) TotalSupply(ctx context.Context, token ethcommon.Address) (*big.Int, error) {
	return f.supply, f.supplyErr
}

func (f *fakeChainReader) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestMetadataCachedWithinTTL(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	reader := &fakeChainReader{decimals: 6, supply: big.NewInt(1_000_000_000_000)}
	m := NewMetadataResolver(reader, NewTTLCache[model.TokenMetadata](time.Minute, fake), fake)

	meta := m.Resolve(context.Background(), pepe)
	assert.Equal(t, uint8(6), meta.Decimals)
	assert.True(t, meta.TotalSupply.Equal(decimal.NewFromInt(1_000_000)))
	assert.False(t, meta.Fallback)

	m.Resolve(context.Background(), pepe)
	assert.Equal(t, 1, reader.Calls())

	fake.Advance(time.Minute)
	m.Resolve(context.Background(), pepe)
	assert.Equal(t, 2, reader.Calls())
}

func TestMetadataFallback(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	reader := &fakeChainReader{decimalsErr: errors.New("reverted"), supplyErr: errors.New("reverted")}
	m := NewMetadataResolver(reader, NewTTLCache[model.TokenMetadata](time.Minute, fake), fake)

	meta := m.Resolve(context.Background(), pepe)
	assert.Equal(t, DefaultDecimals, meta.Decimals)
	assert.True(t, meta.TotalSupply.IsZero())
	assert.True(t, meta.Fallback)

	m.Resolve(context.Background(), pepe)
	assert.Equal(t, 1, reader.Calls())
}

func TestResolverParallel(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	supply := new(big.Int).Mul(big.NewInt(1_000_000), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	reader := &fakeChainReader{decimals: 18, supply: supply}
	src := &scriptedSource{name: "primary", results: []sourceResult{ok("2")}}

	r := New(
		NewMetadataResolver(reader, NewTTLCache[model.TokenMetadata](time.Minute, fake), fake),
		newPriceResolver(fake, src),
	)

	meta, quote := r.Resolve(context.Background(), model.WatchedToken{Symbol: "PEPE", TokenAddress: pepe})
	assert.True(t, meta.TotalSupply.Equal(decimal.NewFromInt(1_000_000)))
	assert.True(t, quote.USDPrice.Equal(decimal.NewFromInt(2)))
	assert.True(t, r.IsStablecoin(model.WatchedToken{TokenAddress: usdc}))
}

func TestResolverPurgeDropsExpiredEntries(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	reader := &fakeChainReader{decimals: 18, supply: big.NewInt(1)}
	src := &scriptedSource{name: "primary", results: []sourceResult{ok("2")}}
	r := New(
		NewMetadataResolver(reader, NewTTLCache[model.TokenMetadata](time.Minute, fake), fake),
		newPriceResolver(fake, src),
	)
	token := model.WatchedToken{Symbol: "PEPE", TokenAddress: pepe}

	r.Resolve(context.Background(), token)
	assert.Zero(t, r.Purge())

	fake.Advance(time.Minute)
	assert.Equal(t, 2, r.Purge())
	assert.Zero(t, r.Purge())

	r.Resolve(context.Background(), token)
	assert.Equal(t, 2, src.Calls())
	assert.Equal(t, 2, reader.Calls())
}
