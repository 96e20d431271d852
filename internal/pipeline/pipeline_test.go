package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ninja0404/whale-signal/internal/common"
	"github.com/ninja0404/whale-signal/internal/decoder"
	"github.com/ninja0404/whale-signal/internal/detector"
	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/internal/publisher"
	"github.com/ninja0404/whale-signal/internal/repo"
	"github.com/ninja0404/whale-signal/internal/resolver"
	"github.com/ninja0404/whale-signal/internal/source"
	"github.com/ninja0404/whale-signal/internal/watchlist"
	"github.com/ninja0404/whale-signal/pkg/clock"
	"github.com/ninja0404/whale-signal/pkg/retry"
)

var (
	tokenAddr = ethcommon.HexToAddress("0x6982508145454Ce325dDbE47a25d4ec3d2311933")
	poolAddr  = ethcommon.HexToAddress("0xA43fe16908251ee70EF74718545e4FE6C5cCEc9f")
	wallet    = ethcommon.HexToAddress("0x00000000000000000000000000000000000000aa")
	other     = ethcommon.HexToAddress("0x00000000000000000000000000000000000000bb")
)

// fakeSource 手动喂日志的数据源
type fakeSource struct {
	ch    chan *model.RawLog
	once  sync.Once
	state source.State
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan *model.RawLog, 100), state: source.Running}
}

func (f *fakeSource) Start(ctx context.Context, tokens []model.WatchedToken) error { return nil }
func (f *fakeSource) Stop() error {
	f.once.Do(func() { close(f.ch) })
	return nil
}
func (f *fakeSource) Resubscribe(tokens []model.WatchedToken) {}
func (f *fakeSource) State() source.State                     { return f.state }
func (f *fakeSource) Logs() <-chan *model.RawLog              { return f.ch }

type fakeChain struct {
	decimals uint8
	supply   *big.Int
}

func (f *fakeChain) Decimals(ctx context.Context, token ethcommon.Address) (uint8, error) {
	return f.decimals, nil
}

func (f *fakeChain) TotalSupply(ctx context.Context, token ethcommon.Address) (*big.Int, error) {
	return f.supply, nil
}

type fixedPrice struct {
	price decimal.Decimal
	err   error
	mu    sync.Mutex
	calls int
}

func (f *fixedPrice) Name() string { return "fixed" }

func (f *fixedPrice) GetPrice(ctx context.Context, token ethcommon.Address) (decimal.Decimal, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.price, f.err
}

type recordingPublisher struct {
	mu  sync.Mutex
	got []*model.WhaleTransaction
}

func (r *recordingPublisher) Publish(ctx context.Context, tx *model.WhaleTransaction) error {
	r.mu.Lock()
	r.got = append(r.got, tx)
	r.mu.Unlock()
	return nil
}
func (r *recordingPublisher) GetType() string { return "recording" }
func (r *recordingPublisher) Close() error    { return nil }

// panicSink Persist 时 panic
type panicSink struct{}

func (panicSink) Persist(ctx context.Context, tx *model.WhaleTransaction) (bool, error) {
	panic("boom")
}
func (panicSink) Notify(ctx context.Context, tx *model.WhaleTransaction) {}

type harness struct {
	pipeline  *Pipeline
	source    *fakeSource
	db        *gorm.DB
	whaleRepo repo.WhaleTxRepo
	published *recordingPublisher
	price     *fixedPrice
}

// whales 按时间倒序读出已落库的巨鲸交易
func (h *harness) whales(t *testing.T) []*model.WhaleTransaction {
	t.Helper()
	var list []*model.WhaleTransaction
	require.NoError(t, h.db.Order("timestamp DESC").Find(&list).Error)
	return list
}

func (h *harness) notificationCount(t *testing.T, whaleTxID string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.db.Model(&model.NotificationRecord{}).Where("whale_tx_id = ?", whaleTxID).Count(&count).Error)
	return count
}

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.WhaleTransaction{}, &model.NotificationRecord{}))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newHarness(t *testing.T, price *fixedPrice) *harness {
	fake := clock.NewFake(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	db := openDB(t)

	snapshot := watchlist.NewSnapshot([]model.WatchedToken{
		{Symbol: "PEPE", TokenAddress: tokenAddr, PoolAddress: poolAddr, PoolTokenIndex: 0},
	})

	res := resolver.New(
		resolver.NewMetadataResolver(
			&fakeChain{decimals: 18, supply: tokens(1_000_000)},
			resolver.NewTTLCache[model.TokenMetadata](time.Minute, fake),
			fake,
		),
		resolver.NewPriceResolver(
			[]resolver.PriceSource{price},
			resolver.NewTTLCache[model.PriceQuote](time.Minute, fake),
			fake,
			resolver.WithRetryPolicy(resolver.DefaultPricePolicy(fake)),
		),
	)

	whaleRepo := repo.NewWhaleTxRepo(db)
	sink := publisher.NewManager(whaleRepo, repo.NewNotificationRepo(db), fake)
	published := &recordingPublisher{}
	sink.AddPublisher(published)

	src := newFakeSource()
	p := NewPipeline(
		src,
		decoder.DefaultRegistry(),
		func() Watchlist { return snapshot },
		res,
		detector.New(detector.DefaultThresholds(), whaleRepo, fake),
		sink,
		Options{},
	)
	return &harness{pipeline: p, source: src, db: db, whaleRepo: whaleRepo, published: published, price: price}
}

func transferLog(from, to ethcommon.Address, value *big.Int, txHash string, index uint) *model.RawLog {
	return &model.RawLog{
		Address:     tokenAddr,
		Topics:      []ethcommon.Hash{decoder.TransferTopic, ethcommon.BytesToHash(from.Bytes()), ethcommon.BytesToHash(to.Bytes())},
		Data:        ethcommon.LeftPadBytes(value.Bytes(), 32),
		TxHash:      ethcommon.HexToHash(txHash),
		BlockNumber: 19_000_000,
		LogIndex:    index,
	}
}

func v3SwapLog(t *testing.T, amount0, amount1 *big.Int, txHash string) *model.RawLog {
	mk := func(s string) abi.Type {
		typ, err := abi.NewType(s, "", nil)
		require.NoError(t, err)
		return typ
	}
	args := abi.Arguments{
		{Type: mk("int256")}, {Type: mk("int256")}, {Type: mk("uint160")}, {Type: mk("uint128")}, {Type: mk("int24")},
	}
	data, err := args.Pack(amount0, amount1, big.NewInt(1), big.NewInt(1), big.NewInt(0))
	require.NoError(t, err)
	return &model.RawLog{
		Address: poolAddr,
		Topics:  []ethcommon.Hash{decoder.UniswapV3SwapTopic, ethcommon.BytesToHash(wallet.Bytes()), ethcommon.BytesToHash(wallet.Bytes())},
		Data:    data,
		TxHash:  ethcommon.HexToHash(txHash),
	}
}

func TestEndToEndShareFloorTransferToPool(t *testing.T) {
	h := newHarness(t, &fixedPrice{price: decimal.NewFromInt(2)})
	ctx := context.Background()

	raw := transferLog(wallet, poolAddr, tokens(3000), "0x01", 4)
	assert.Equal(t, Persisted, h.pipeline.HandleLog(ctx, raw))

	exists, err := h.whaleRepo.Exists(ctx, raw.DedupKey())
	require.NoError(t, err)
	assert.True(t, exists)

	list := h.whales(t)
	require.Len(t, list, 1)
	tx := list[0]
	assert.Equal(t, common.SellAction, tx.Action)
	assert.True(t, tx.AmountUSD.Equal(decimal.NewFromInt(6000)), tx.AmountUSD.String())
	assert.True(t, tx.PercentSupply.Equal(decimal.RequireFromString("0.3")), tx.PercentSupply.String())

	assert.EqualValues(t, 1, h.notificationCount(t, raw.DedupKey()))
	assert.Len(t, h.published.got, 1)
}

func TestIdempotentReplay(t *testing.T) {
	h := newHarness(t, &fixedPrice{price: decimal.NewFromInt(2)})
	ctx := context.Background()

	raw := transferLog(wallet, poolAddr, tokens(3000), "0x01", 4)
	assert.Equal(t, Persisted, h.pipeline.HandleLog(ctx, raw))
	assert.Equal(t, Duplicate, h.pipeline.HandleLog(ctx, raw))

	list := h.whales(t)
	assert.Len(t, list, 1)
	assert.Len(t, h.published.got, 1)
	assert.EqualValues(t, 1, h.pipeline.GetStats().Duplicates)
}

func TestConcurrentReplayPersistsOnce(t *testing.T) {
	h := newHarness(t, &fixedPrice{price: decimal.NewFromInt(2)})
	require.NoError(t, h.pipeline.Start())

	for i := 0; i < 5; i++ {
		h.source.ch <- transferLog(wallet, poolAddr, tokens(3000), "0x01", 4)
	}
	require.NoError(t, h.pipeline.Stop())

	list := h.whales(t)
	assert.Len(t, list, 1)

	stats := h.pipeline.GetStats()
	assert.EqualValues(t, 5, stats.LogsReceived)
	assert.EqualValues(t, 1, stats.WhalesPersisted)
	assert.EqualValues(t, 4, stats.Duplicates)
}

func TestFaultIsolation(t *testing.T) {
	h := newHarness(t, &fixedPrice{price: decimal.NewFromInt(2)})
	require.NoError(t, h.pipeline.Start())

	bad := transferLog(wallet, poolAddr, tokens(3000), "0x0b", 0)
	bad.Data = []byte{0x01, 0x02}
	h.source.ch <- bad
	h.source.ch <- transferLog(wallet, poolAddr, tokens(3000), "0x0c", 1)
	require.NoError(t, h.pipeline.Stop())

	stats := h.pipeline.GetStats()
	assert.EqualValues(t, 1, stats.DecodeErrors)
	assert.EqualValues(t, 1, stats.WhalesPersisted)
}

func TestPanicInHandlerIsRecovered(t *testing.T) {
	h := newHarness(t, &fixedPrice{price: decimal.NewFromInt(2)})
	h.pipeline.sink = panicSink{}
	require.NoError(t, h.pipeline.Start())

	h.source.ch <- transferLog(wallet, poolAddr, tokens(3000), "0x01", 0)
	h.source.ch <- transferLog(wallet, poolAddr, tokens(3000), "0x02", 0)
	require.NoError(t, h.pipeline.Stop())

	assert.EqualValues(t, 2, h.pipeline.GetStats().Panics)
}

func TestPriceExhaustionNeverPersisted(t *testing.T) {
	h := newHarness(t, &fixedPrice{err: retry.MarkTerminal(errors.New("no pairs"))})
	ctx := context.Background()

	// 占比 50%，价格未知时也不落库
	raw := transferLog(wallet, poolAddr, tokens(500_000), "0x01", 0)
	assert.Equal(t, BelowThreshold, h.pipeline.HandleLog(ctx, raw))

	exists, err := h.whaleRepo.Exists(ctx, raw.DedupKey())
	require.NoError(t, err)
	assert.False(t, exists)
	assert.EqualValues(t, 1, h.pipeline.GetStats().PriceFallbacks)
}

func TestSwapBuyOnOwnPool(t *testing.T) {
	h := newHarness(t, &fixedPrice{price: decimal.NewFromInt(5)})
	ctx := context.Background()

	// amount0 为负：代币流出池子，买入 4000 枚 = $20,000
	raw := v3SwapLog(t, new(big.Int).Neg(tokens(4000)), big.NewInt(1e18), "0x05")
	assert.Equal(t, Persisted, h.pipeline.HandleLog(ctx, raw))
	require.Len(t, h.published.got, 1)
	assert.Equal(t, common.BuyAction, h.published.got[0].Action)
	assert.Equal(t, "swap", h.published.got[0].EventKind)
}

func TestIgnoredAndBelowThreshold(t *testing.T) {
	h := newHarness(t, &fixedPrice{price: decimal.NewFromInt(2)})
	ctx := context.Background()

	// 非监控合约
	foreign := transferLog(wallet, other, tokens(3000), "0x01", 0)
	foreign.Address = other
	assert.Equal(t, Ignored, h.pipeline.HandleLog(ctx, foreign))

	// 被回滚
	removed := transferLog(wallet, other, tokens(3000), "0x02", 0)
	removed.Removed = true
	assert.Equal(t, Ignored, h.pipeline.HandleLog(ctx, removed))

	// 普通转账 100 枚 = $200，0.01%
	assert.Equal(t, BelowThreshold, h.pipeline.HandleLog(ctx, transferLog(wallet, other, tokens(100), "0x03", 0)))

	// 数量为 0 的 swap 无法判断方向
	assert.Equal(t, Unclassified, h.pipeline.HandleLog(ctx, v3SwapLog(t, big.NewInt(0), big.NewInt(5), "0x04")))
	// 只有金额不足的那笔查询过价格
	assert.Equal(t, 1, h.price.calls)
}

func TestTransferAndSwapOfOneTradeStoredOnce(t *testing.T) {
	h := newHarness(t, &fixedPrice{price: decimal.NewFromInt(2)})
	ctx := context.Background()

	// 同一笔买入：池子转出代币的 Transfer 和 Swap，占比 0.4%
	transfer := transferLog(poolAddr, wallet, tokens(4000), "0x77", 3)
	swap := v3SwapLog(t, new(big.Int).Neg(tokens(4000)), big.NewInt(1e18), "0x77")
	swap.LogIndex = 4

	assert.Equal(t, Persisted, h.pipeline.HandleLog(ctx, transfer))
	assert.Equal(t, Duplicate, h.pipeline.HandleLog(ctx, swap))

	list := h.whales(t)
	require.Len(t, list, 1)
	assert.Equal(t, transfer.TxHash.Hex(), list[0].ID)
	assert.Equal(t, common.BuyAction, list[0].Action)
	assert.EqualValues(t, 1, h.notificationCount(t, transfer.DedupKey()))
	assert.Len(t, h.published.got, 1)
}
