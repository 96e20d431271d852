package common

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeWhaleEvent(t *testing.T) {
	in := &Event{
		Type: WhaleSwapEventType,
		InnerEvent: &WhaleEvent{
			ID:            "0xabc-3",
			TxHash:        "0xabc",
			LogIndex:      3,
			Symbol:        "PEPE",
			Action:        SellAction,
			AmountToken:   decimal.NewFromInt(3000),
			AmountUSD:     decimal.NewFromInt(6000),
			PercentSupply: decimal.RequireFromString("0.3"),
			Timestamp:     time.Unix(1_700_000_000, 0).UTC(),
		},
	}

	data, err := EncodeEvent(in)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 0, 0, 0}, data[:4])

	out, err := DecodeEvent(data)
	require.NoError(t, err)
	assert.Equal(t, WhaleSwapEventType, out.Type)

	whale, ok := out.InnerEvent.(*WhaleEvent)
	require.True(t, ok)
	assert.Equal(t, "0xabc-3", whale.ID)
	assert.Equal(t, SellAction, whale.Action)
	assert.True(t, whale.AmountUSD.Equal(decimal.NewFromInt(6000)))
	assert.True(t, whale.PercentSupply.Equal(decimal.RequireFromString("0.3")))
}

func TestEncodeUnknownType(t *testing.T) {
	_, err := EncodeEvent(&Event{Type: 99, InnerEvent: &WhaleEvent{}})
	assert.Error(t, err)
}

func TestDecodeShortData(t *testing.T) {
	_, err := DecodeEvent([]byte{1, 0})
	assert.Error(t, err)
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "buy", BuyAction.String())
	assert.Equal(t, "sell", SellAction.String())
	assert.Equal(t, "transfer", TransferAction.String())
	assert.Equal(t, "unknown", Action(42).String())
}
