package decoder

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ninja0404/whale-signal/internal/model"
)

const (
	transferSignature      = "Transfer(address,address,uint256)"
	uniswapV3SwapSignature = "Swap(address,address,int256,int256,uint160,uint128,int24)"
	pancakeV3SwapSignature = "Swap(address,address,int256,int256,uint160,uint128,int24,uint128,uint128)"
	uniswapV2SwapSignature = "Swap(address,uint256,uint256,uint256,uint256,address)"
)

var (
	TransferTopic      = crypto.Keccak256Hash([]byte(transferSignature))
	UniswapV3SwapTopic = crypto.Keccak256Hash([]byte(uniswapV3SwapSignature))
	PancakeV3SwapTopic = crypto.Keccak256Hash([]byte(pancakeV3SwapSignature))
	UniswapV2SwapTopic = crypto.Keccak256Hash([]byte(uniswapV2SwapSignature))
)

var (
	uint256Type = mustType("uint256")
	int256Type  = mustType("int256")
	uint160Type = mustType("uint160")
	uint128Type = mustType("uint128")
	int24Type   = mustType("int24")

	transferData = abi.Arguments{{Name: "value", Type: uint256Type}}

	v3SwapData = abi.Arguments{
		{Name: "amount0", Type: int256Type},
		{Name: "amount1", Type: int256Type},
		{Name: "sqrtPriceX96", Type: uint160Type},
		{Name: "liquidity", Type: uint128Type},
		{Name: "tick", Type: int24Type},
	}

	pancakeV3SwapData = append(append(abi.Arguments{}, v3SwapData...),
		abi.Argument{Name: "protocolFeesToken0", Type: uint128Type},
		abi.Argument{Name: "protocolFeesToken1", Type: uint128Type},
	)

	v2SwapData = abi.Arguments{
		{Name: "amount0In", Type: uint256Type},
		{Name: "amount1In", Type: uint256Type},
		{Name: "amount0Out", Type: uint256Type},
		{Name: "amount1Out", Type: uint256Type},
	}
)

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

func TransferDef() EventDef {
	return EventDef{Name: "erc20_transfer", Kind: model.TransferKind, Topic: TransferTopic, Decode: decodeTransfer}
}

func UniswapV3SwapDef() EventDef {
	return EventDef{Name: "uniswap_v3_swap", Kind: model.SwapKind, Topic: UniswapV3SwapTopic, Decode: signedSwapDecoder("uniswap_v3", v3SwapData)}
}

func PancakeV3SwapDef() EventDef {
	return EventDef{Name: "pancake_v3_swap", Kind: model.SwapKind, Topic: PancakeV3SwapTopic, Decode: signedSwapDecoder("pancake_v3", pancakeV3SwapData)}
}

func UniswapV2SwapDef() EventDef {
	return EventDef{Name: "uniswap_v2_swap", Kind: model.SwapKind, Topic: UniswapV2SwapTopic, Decode: decodeV2Swap}
}

func decodeTransfer(raw *model.RawLog) (model.DecodedEvent, error) {
	// ERC-721 的 Transfer 签名相同，但 tokenId 是 indexed 的，topics 会是 4 个
	if len(raw.Topics) != 3 {
		return nil, fmt.Errorf("%w: transfer expects 3 topics, got %d", ErrMalformedLog, len(raw.Topics))
	}
	values, err := unpack(transferData, raw.Data)
	if err != nil {
		return nil, err
	}
	return &model.TransferEvent{
		From:  topicAddress(raw.Topics[1]),
		To:    topicAddress(raw.Topics[2]),
		Value: values[0].(*big.Int),
	}, nil
}

func signedSwapDecoder(protocol string, args abi.Arguments) DecodeFunc {
	return func(raw *model.RawLog) (model.DecodedEvent, error) {
		if len(raw.Topics) != 3 {
			return nil, fmt.Errorf("%w: swap expects 3 topics, got %d", ErrMalformedLog, len(raw.Topics))
		}
		values, err := unpack(args, raw.Data)
		if err != nil {
			return nil, err
		}
		return &model.SwapEvent{
			Protocol:  protocol,
			Sender:    topicAddress(raw.Topics[1]),
			Recipient: topicAddress(raw.Topics[2]),
			Amount0:   values[0].(*big.Int),
			Amount1:   values[1].(*big.Int),
		}, nil
	}
}

// decodeV2Swap 把 in/out 四元组折算成带符号的净流入
func decodeV2Swap(raw *model.RawLog) (model.DecodedEvent, error) {
	if len(raw.Topics) != 3 {
		return nil, fmt.Errorf("%w: swap expects 3 topics, got %d", ErrMalformedLog, len(raw.Topics))
	}
	values, err := unpack(v2SwapData, raw.Data)
	if err != nil {
		return nil, err
	}
	amount0In, amount1In := values[0].(*big.Int), values[1].(*big.Int)
	amount0Out, amount1Out := values[2].(*big.Int), values[3].(*big.Int)

	return &model.SwapEvent{
		Protocol:  "uniswap_v2",
		Sender:    topicAddress(raw.Topics[1]),
		Recipient: topicAddress(raw.Topics[2]),
		Amount0:   new(big.Int).Sub(amount0In, amount0Out),
		Amount1:   new(big.Int).Sub(amount1In, amount1Out),
	}, nil
}

func unpack(args abi.Arguments, data []byte) ([]interface{}, error) {
	if len(data) != 32*len(args) {
		return nil, fmt.Errorf("%w: expect %d bytes of data, got %d", ErrMalformedLog, 32*len(args), len(data))
	}
	values, err := args.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLog, err)
	}
	return values, nil
}

func topicAddress(h ethcommon.Hash) ethcommon.Address {
	return ethcommon.BytesToAddress(h.Bytes())
}
