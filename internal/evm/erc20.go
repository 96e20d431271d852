package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

const erc20ABIJSON = `[
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

var erc20ABI = mustParseABI(erc20ABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// ERC20Reader 读取 ERC-20 只读方法
type ERC20Reader struct {
	caller ethereum.ContractCaller
}

func NewERC20Reader(caller ethereum.ContractCaller) *ERC20Reader {
	return &ERC20Reader{caller: caller}
}

// Decimals 代币精度
func (r *ERC20Reader) Decimals(ctx context.Context, token ethcommon.Address) (uint8, error) {
	out, err := r.call(ctx, token, "decimals")
	if err != nil {
		return 0, err
	}
	decimals, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals: unexpected type %T", out[0])
	}
	return decimals, nil
}

// TotalSupply 原始单位的总量
func (r *ERC20Reader) TotalSupply(ctx context.Context, token ethcommon.Address) (*big.Int, error) {
	out, err := r.call(ctx, token, "totalSupply")
	if err != nil {
		return nil, err
	}
	supply, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("totalSupply: unexpected type %T", out[0])
	}
	return supply, nil
}

func (r *ERC20Reader) call(ctx context.Context, token ethcommon.Address, method string) ([]interface{}, error) {
	input, err := erc20ABI.Pack(method)
	if err != nil {
		return nil, err
	}

	raw, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call %s: %w", method, token.Hex(), err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%s call %s: empty result", method, token.Hex())
	}

	out, err := erc20ABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("%s unpack: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s unpack: no outputs", method)
	}
	return out, nil
}
