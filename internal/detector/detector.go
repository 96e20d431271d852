package detector

import (
	"context"
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/ninja0404/whale-signal/internal/classifier"
	"github.com/ninja0404/whale-signal/internal/common"
	"github.com/ninja0404/whale-signal/internal/detector/condition"
	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/pkg/clock"
)

var hundred = decimal.NewFromInt(100)

// Thresholds 巨鲸判定阈值
type Thresholds struct {
	SwapUSDFloor     float64 `json:"swap_usd_floor"`
	TransferUSDFloor float64 `json:"transfer_usd_floor"`
	MinPercentSupply float64 `json:"min_percent_supply"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		SwapUSDFloor:     10_000,
		TransferUSDFloor: 100_000,
		MinPercentSupply: 0.2,
	}
}

// Store 去重查询
type Store interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Verdict 检测结论
type Verdict int

const (
	BelowThreshold Verdict = iota
	Qualified
	Duplicate
	Unclassified
)

func (v Verdict) String() string {
	switch v {
	case Qualified:
		return "qualified"
	case Duplicate:
		return "duplicate"
	case Unclassified:
		return "unclassified"
	default:
		return "below_threshold"
	}
}

// Input 一条已分类日志及其解析结果
type Input struct {
	Log      *model.RawLog
	Kind     model.EventKind
	Token    model.WatchedToken
	Class    classifier.Result
	Metadata model.TokenMetadata
	Quote    model.PriceQuote
}

// Detector 阈值过滤与去重
type Detector struct {
	condition atomic.Value // condition.Condition
	store     Store
	clock     clock.Clock
}

func New(thresholds Thresholds, store Store, clk clock.Clock) *Detector {
	if clk == nil {
		clk = clock.Real()
	}
	d := &Detector{store: store, clock: clk}
	d.condition.Store(BuildCondition(thresholds))
	return d
}

// UpdateThresholds 配置热更新时替换判定条件
func (d *Detector) UpdateThresholds(thresholds Thresholds) {
	d.condition.Store(BuildCondition(thresholds))
}

// BuildCondition 价格可用 且 (美元金额达到对应类型下限 或 占总量达到下限)
func BuildCondition(t Thresholds) condition.Condition {
	size := condition.NewBuilder().
		Name("whale_size").
		Description(fmt.Sprintf("swap >= $%v 或 transfer >= $%v 或 占比 >= %v%%",
			t.SwapUSDFloor, t.TransferUSDFloor, t.MinPercentSupply)).
		Or(condition.NewUsdFloorCondition(model.SwapKind, t.SwapUSDFloor)).
		Or(condition.NewUsdFloorCondition(model.TransferKind, t.TransferUSDFloor)).
		Or(condition.NewSupplyShareCondition(t.MinPercentSupply)).
		Build()

	return condition.NewBuilder().
		Name("whale").
		Description("价格可用且达到巨鲸规模").
		And(condition.NewPriceKnownCondition()).
		And(size).
		Build()
}

// Candidate 计算数量、美元价值与占比，生成待判定的交易
func (d *Detector) Candidate(in Input) *model.WhaleTransaction {
	amountToken := ScaleAmount(in.Class.RawAmount, in.Metadata.Decimals)
	price := in.Quote.USDPrice

	return &model.WhaleTransaction{
		ID:            in.Log.DedupKey(),
		TxHash:        in.Log.TxHash.Hex(),
		BlockNumber:   in.Log.BlockNumber,
		LogIndex:      in.Log.LogIndex,
		TokenAddress:  in.Token.TokenAddress.Hex(),
		Symbol:        in.Token.Symbol,
		EventKind:     in.Kind.String(),
		FromAddress:   in.Class.From.Hex(),
		ToAddress:     in.Class.To.Hex(),
		Action:        in.Class.Action,
		AmountToken:   amountToken,
		AmountUSD:     amountToken.Mul(price),
		PriceUSD:      price,
		PriceSource:   in.Quote.Source,
		PercentSupply: PercentOfSupply(amountToken, in.Metadata.TotalSupply),
		Timestamp:     d.clock.Now(),
	}
}

// Qualifies 只判断阈值，不查询存储
func (d *Detector) Qualifies(kind model.EventKind, tx *model.WhaleTransaction, priceKnown bool) bool {
	c := d.condition.Load().(condition.Condition)
	return c.Evaluate(&condition.EvaluationContext{
		Kind:        kind,
		Transaction: tx,
		PriceKnown:  priceKnown,
	})
}

// Detect 返回候选交易与结论，只有 Qualified 的交易需要写入
func (d *Detector) Detect(ctx context.Context, in Input) (*model.WhaleTransaction, Verdict, error) {
	if in.Class.Action == common.UnknownAction {
		return nil, Unclassified, nil
	}

	tx := d.Candidate(in)
	if !d.Qualifies(in.Kind, tx, in.Quote.Known()) {
		return tx, BelowThreshold, nil
	}

	exists, err := d.store.Exists(ctx, tx.ID)
	if err != nil {
		return tx, BelowThreshold, fmt.Errorf("check duplicate %s: %w", tx.ID, err)
	}
	if exists {
		return tx, Duplicate, nil
	}
	return tx, Qualified, nil
}

// ScaleAmount raw / 10^decimals
func ScaleAmount(raw *big.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}

// PercentOfSupply 总量为 0 时返回 0
func PercentOfSupply(amount, totalSupply decimal.Decimal) decimal.Decimal {
	if !totalSupply.IsPositive() {
		return decimal.Zero
	}
	return amount.Mul(hundred).DivRound(totalSupply, 10)
}
