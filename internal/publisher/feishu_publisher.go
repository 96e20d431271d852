package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/ninja0404/whale-signal/internal/common"
	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/internal/notifier"
	"github.com/ninja0404/whale-signal/pkg/utils"
)

// FeishuPublisher 飞书发布器
type FeishuPublisher struct {
	client      *notifier.LarkClient
	explorerURL string
	loc         *time.Location
}

// NewFeishuPublisher explorerURL 形如 https://etherscan.io
func NewFeishuPublisher(client *notifier.LarkClient, explorerURL string) *FeishuPublisher {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		loc = time.FixedZone("CST", 8*3600)
	}
	return &FeishuPublisher{
		client:      client,
		explorerURL: explorerURL,
		loc:         loc,
	}
}

func (p *FeishuPublisher) GetType() string {
	return "feishu"
}

func (p *FeishuPublisher) Publish(ctx context.Context, tx *model.WhaleTransaction) error {
	return p.client.Send(ctx, p.formatMessage(tx))
}

func (p *FeishuPublisher) Close() error {
	return nil
}

func (p *FeishuPublisher) kindName(kind string) string {
	switch kind {
	case model.SwapKind.String():
		return "DEX成交"
	case model.TransferKind.String():
		return "链上转账"
	default:
		return "未知类型"
	}
}

func (p *FeishuPublisher) actionName(tx *model.WhaleTransaction) string {
	switch tx.Action {
	case common.BuyAction:
		return "买入"
	case common.SellAction:
		return "卖出"
	case common.TransferAction:
		return "转账"
	default:
		return "未知"
	}
}

// formatMessage 格式化通知消息
func (p *FeishuPublisher) formatMessage(tx *model.WhaleTransaction) string {
	return fmt.Sprintf(`🐋 巨鲸交易提醒

%s 方向: %s
🪙 代币: %s
📍 代币地址: %s
📦 类型: %s
🔢 数量: %s
💵 价值: %s
💰 单价: %s (%s)
🥧 占总量: %s
👤 From: %s
👥 To: %s

🔗 交易链接: %s/tx/%s
⏰ 检测时间: %s`,
		tx.Action.Emoji(),
		p.actionName(tx),
		tx.Symbol,
		tx.TokenAddress,
		p.kindName(tx.EventKind),
		utils.FormatCompact(tx.AmountToken),
		utils.FormatUSD(tx.AmountUSD),
		utils.FormatPrice(tx.PriceUSD),
		tx.PriceSource,
		utils.FormatPercent(tx.PercentSupply),
		utils.ShortAddress(tx.FromAddress),
		utils.ShortAddress(tx.ToAddress),
		p.explorerURL,
		tx.TxHash,
		tx.Timestamp.In(p.loc).Format("2006-01-02 15:04:05"))
}
