package condition

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ninja0404/whale-signal/internal/model"
)

// UsdFloorCondition 单笔美元价值下限，只对指定事件类型生效
type UsdFloorCondition struct {
	BaseCondition
	Kind      model.EventKind
	Threshold decimal.Decimal
}

func NewUsdFloorCondition(kind model.EventKind, floor float64) *UsdFloorCondition {
	return &UsdFloorCondition{
		BaseCondition: BaseCondition{
			Name:        fmt.Sprintf("%s_usd_floor", kind),
			Description: fmt.Sprintf("%s 金额 >= $%v", kind, floor),
			Operator:    ">=",
		},
		Kind:      kind,
		Threshold: decimal.NewFromFloat(floor),
	}
}

func (c *UsdFloorCondition) Evaluate(context *EvaluationContext) bool {
	if context.Transaction == nil || context.Kind != c.Kind {
		return false
	}
	return c.CompareDecimal(context.Transaction.AmountUSD, c.Threshold)
}

// SupplyShareCondition 占总量百分比下限，总量未知时占比为 0
type SupplyShareCondition struct {
	BaseCondition
	Threshold decimal.Decimal
}

func NewSupplyShareCondition(minPercent float64) *SupplyShareCondition {
	return &SupplyShareCondition{
		BaseCondition: BaseCondition{
			Name:        "supply_share",
			Description: fmt.Sprintf("占总量 >= %v%%", minPercent),
			Operator:    ">=",
		},
		Threshold: decimal.NewFromFloat(minPercent),
	}
}

func (c *SupplyShareCondition) Evaluate(context *EvaluationContext) bool {
	if context.Transaction == nil || !context.Transaction.PercentSupply.IsPositive() {
		return false
	}
	return c.CompareDecimal(context.Transaction.PercentSupply, c.Threshold)
}

// PriceKnownCondition 价格可用
type PriceKnownCondition struct {
	BaseCondition
}

func NewPriceKnownCondition() *PriceKnownCondition {
	return &PriceKnownCondition{
		BaseCondition: BaseCondition{Name: "price_known", Description: "价格可用"},
	}
}

func (c *PriceKnownCondition) Evaluate(context *EvaluationContext) bool {
	return context.PriceKnown
}
