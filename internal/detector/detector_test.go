package detector

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninja0404/whale-signal/internal/classifier"
	"github.com/ninja0404/whale-signal/internal/common"
	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/pkg/clock"
)

type memStore struct {
	ids map[string]bool
	err error
}

func (m *memStore) Exists(ctx context.Context, id string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.ids[id], nil
}

var (
	tokenAddr = ethcommon.HexToAddress("0x6982508145454ce325ddbe47a25d4ec3d2311933")
	poolAddr  = ethcommon.HexToAddress("0xa43fe16908251ee70ef74718545e4fe6c5ccec9f")
	whaleAddr = ethcommon.HexToAddress("0x00000000000000000000000000000000000000aa")
)

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

// 总量 1,000,000，0.2% 即 2000 枚
func input(kind model.EventKind, action common.Action, amount *big.Int, price string) Input {
	return Input{
		Log: &model.RawLog{
			Address:     tokenAddr,
			TxHash:      ethcommon.HexToHash("0xabc"),
			BlockNumber: 100,
			LogIndex:    3,
		},
		Kind:  kind,
		Token: model.WatchedToken{Symbol: "PEPE", TokenAddress: tokenAddr, PoolAddress: poolAddr},
		Class: classifier.Result{Action: action, RawAmount: amount, From: poolAddr, To: whaleAddr},
		Metadata: model.TokenMetadata{
			Decimals:    18,
			TotalSupply: decimal.NewFromInt(1_000_000),
		},
		Quote: model.PriceQuote{USDPrice: decimal.RequireFromString(price), Source: "dexscreener"},
	}
}

func newDetector(store Store) *Detector {
	return New(DefaultThresholds(), store, clock.NewFake(time.Unix(1_700_000_000, 0)))
}

func TestCandidateMath(t *testing.T) {
	d := newDetector(&memStore{})
	tx := d.Candidate(input(model.SwapKind, common.BuyAction, tokens(3000), "4"))

	assert.Equal(t, ethcommon.HexToHash("0xabc").Hex(), tx.ID)
	assert.True(t, tx.AmountToken.Equal(decimal.NewFromInt(3000)))
	assert.True(t, tx.AmountUSD.Equal(decimal.NewFromInt(12_000)))
	assert.True(t, tx.PercentSupply.Equal(decimal.RequireFromString("0.3")))
	assert.Equal(t, "swap", tx.EventKind)
	assert.Equal(t, "PEPE", tx.Symbol)
	assert.Equal(t, time.Unix(1_700_000_000, 0), tx.Timestamp)
}

func TestPercentOfSupplyZeroSupply(t *testing.T) {
	assert.True(t, PercentOfSupply(decimal.NewFromInt(10), decimal.Zero).IsZero())
	assert.True(t, ScaleAmount(nil, 18).IsZero())
	assert.True(t, ScaleAmount(big.NewInt(1_500_000), 6).Equal(decimal.RequireFromString("1.5")))
}

func TestThresholdBoundary(t *testing.T) {
	d := newDetector(&memStore{})
	ctx := context.Background()

	// USD 远低于下限，只看占比
	_, v, err := d.Detect(ctx, input(model.TransferKind, common.TransferAction, tokens(2000), "0.001"))
	require.NoError(t, err)
	assert.Equal(t, Qualified, v)

	_, v, err = d.Detect(ctx, input(model.TransferKind, common.TransferAction, tokens(1999), "0.001"))
	require.NoError(t, err)
	assert.Equal(t, BelowThreshold, v)

	// 占比不够，只看美元下限
	_, v, err = d.Detect(ctx, input(model.SwapKind, common.SellAction, tokens(1000), "10"))
	require.NoError(t, err)
	assert.Equal(t, Qualified, v)

	_, v, err = d.Detect(ctx, input(model.SwapKind, common.SellAction, tokens(1000), "9.99"))
	require.NoError(t, err)
	assert.Equal(t, BelowThreshold, v)

	// transfer 下限更高
	_, v, err = d.Detect(ctx, input(model.TransferKind, common.TransferAction, tokens(1000), "10"))
	require.NoError(t, err)
	assert.Equal(t, BelowThreshold, v)

	_, v, err = d.Detect(ctx, input(model.TransferKind, common.TransferAction, tokens(1000), "100"))
	require.NoError(t, err)
	assert.Equal(t, Qualified, v)
}

func TestUnknownPriceNeverQualifies(t *testing.T) {
	d := newDetector(&memStore{})
	_, v, err := d.Detect(context.Background(), input(model.TransferKind, common.TransferAction, tokens(500_000), "0"))
	require.NoError(t, err)
	assert.Equal(t, BelowThreshold, v)
}

func TestUnknownActionSkipped(t *testing.T) {
	d := newDetector(&memStore{})
	tx, v, err := d.Detect(context.Background(), input(model.SwapKind, common.UnknownAction, tokens(0), "1"))
	require.NoError(t, err)
	assert.Nil(t, tx)
	assert.Equal(t, Unclassified, v)
}

func TestDuplicate(t *testing.T) {
	in := input(model.SwapKind, common.BuyAction, tokens(3000), "4")
	d := newDetector(&memStore{ids: map[string]bool{in.Log.DedupKey(): true}})

	_, v, err := d.Detect(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, Duplicate, v)
}

func TestStoreErrorPropagates(t *testing.T) {
	d := newDetector(&memStore{err: errors.New("db down")})
	_, _, err := d.Detect(context.Background(), input(model.SwapKind, common.BuyAction, tokens(3000), "4"))
	assert.ErrorContains(t, err, "db down")
}

func TestUpdateThresholds(t *testing.T) {
	d := newDetector(&memStore{})
	in := input(model.SwapKind, common.SellAction, tokens(1000), "5")

	_, v, err := d.Detect(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, BelowThreshold, v)

	d.UpdateThresholds(Thresholds{SwapUSDFloor: 5000, TransferUSDFloor: 100_000, MinPercentSupply: 0.2})
	_, v, err = d.Detect(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, Qualified, v)
}
