package common

// Action 交易方向
type Action int32

const (
	UnknownAction  Action = 0
	BuyAction      Action = 1
	SellAction     Action = 2
	TransferAction Action = 3
)

func (a Action) Enum() int32 {
	return int32(a)
}

func (a Action) String() string {
	switch a {
	case BuyAction:
		return "buy"
	case SellAction:
		return "sell"
	case TransferAction:
		return "transfer"
	default:
		return "unknown"
	}
}

// Emoji 通知消息中使用的方向标记
func (a Action) Emoji() string {
	switch a {
	case BuyAction:
		return "🟢"
	case SellAction:
		return "🔴"
	case TransferAction:
		return "🔁"
	default:
		return "❔"
	}
}
