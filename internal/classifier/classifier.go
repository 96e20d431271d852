package classifier

import (
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/ninja0404/whale-signal/internal/common"
	"github.com/ninja0404/whale-signal/internal/model"
)

// PoolSet 已知交易池地址
type PoolSet interface {
	IsPool(addr ethcommon.Address) bool
}

// Result 分类结果，RawAmount 为该代币的原始数量（非负）
type Result struct {
	Action    common.Action
	RawAmount *big.Int
	From      ethcommon.Address
	To        ethcommon.Address
}

// Classify 判断交易方向
//
// Transfer: 转入池子或代币本身是稳定币记为卖出，从池子转出记为买入，其余为普通转账。
// Swap: 该代币一侧流入池子记为卖出，流出池子记为买入，数量为 0 时无法判断。
func Classify(event model.DecodedEvent, token model.WatchedToken, pools PoolSet, stablecoin bool) Result {
	switch e := event.(type) {
	case *model.TransferEvent:
		return classifyTransfer(e, pools, stablecoin)
	case *model.SwapEvent:
		return classifySwap(e, token)
	default:
		return Result{Action: common.UnknownAction, RawAmount: new(big.Int)}
	}
}

func classifyTransfer(e *model.TransferEvent, pools PoolSet, stablecoin bool) Result {
	r := Result{From: e.From, To: e.To, RawAmount: new(big.Int)}
	if e.Value != nil {
		r.RawAmount.Set(e.Value)
	}

	switch {
	case pools.IsPool(e.To) || stablecoin:
		r.Action = common.SellAction
	case pools.IsPool(e.From):
		r.Action = common.BuyAction
	default:
		r.Action = common.TransferAction
	}
	return r
}

func classifySwap(e *model.SwapEvent, token model.WatchedToken) Result {
	r := Result{From: e.Sender, To: e.Recipient, RawAmount: new(big.Int)}

	leg := e.Leg(token.PoolTokenIndex)
	if leg == nil {
		r.Action = common.UnknownAction
		return r
	}
	r.RawAmount.Abs(leg)

	switch leg.Sign() {
	case 1:
		r.Action = common.SellAction
	case -1:
		r.Action = common.BuyAction
	default:
		r.Action = common.UnknownAction
	}
	return r
}
