package condition

import (
	"github.com/ninja0404/whale-signal/internal/model"
)

// Condition 过滤条件接口
type Condition interface {
	// Evaluate 评估条件是否满足
	Evaluate(context *EvaluationContext) bool

	// GetName 获取条件名称
	GetName() string

	// GetDescription 获取条件描述
	GetDescription() string
}

// EvaluationContext 评估上下文，金额与占比在评估前已经算好
type EvaluationContext struct {
	Kind        model.EventKind
	Transaction *model.WhaleTransaction
	PriceKnown  bool
}

// LogicalOperator 逻辑操作符
type LogicalOperator string

const (
	AND LogicalOperator = "AND"
	OR  LogicalOperator = "OR"
)

// CompositeCondition 复合条件，支持AND/OR逻辑组合
type CompositeCondition struct {
	Name        string
	Description string
	Operator    LogicalOperator
	Conditions  []Condition
}

func (c *CompositeCondition) Evaluate(context *EvaluationContext) bool {
	switch c.Operator {
	case AND:
		for _, condition := range c.Conditions {
			if !condition.Evaluate(context) {
				return false
			}
		}
		return len(c.Conditions) > 0

	case OR:
		for _, condition := range c.Conditions {
			if condition.Evaluate(context) {
				return true
			}
		}
		return false

	default:
		return false
	}
}

func (c *CompositeCondition) GetName() string {
	return c.Name
}

func (c *CompositeCondition) GetDescription() string {
	return c.Description
}

// Builder 条件建造者，支持链式调用；嵌套组合时把子 Builder 的 Build 结果传入
type Builder struct {
	conditions []Condition
	operator   LogicalOperator
	name       string
	desc       string
}

func NewBuilder() *Builder {
	return &Builder{
		conditions: make([]Condition, 0),
		operator:   AND,
	}
}

func (b *Builder) Name(name string) *Builder {
	b.name = name
	return b
}

func (b *Builder) Description(desc string) *Builder {
	b.desc = desc
	return b
}

func (b *Builder) And(condition Condition) *Builder {
	b.operator = AND
	b.conditions = append(b.conditions, condition)
	return b
}

func (b *Builder) Or(condition Condition) *Builder {
	b.operator = OR
	b.conditions = append(b.conditions, condition)
	return b
}

func (b *Builder) Build() Condition {
	if len(b.conditions) == 1 && b.operator == AND {
		return b.conditions[0]
	}

	return &CompositeCondition{
		Name:        b.name,
		Description: b.desc,
		Operator:    b.operator,
		Conditions:  b.conditions,
	}
}
