package chain

import (
	"context"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/ninja0404/whale-signal/internal/evm"
	"github.com/ninja0404/whale-signal/internal/source"
)

type ethSubscriber struct {
	client *ethclient.Client
}

func (e *ethSubscriber) SubscribeLogs(ctx context.Context, addresses []ethcommon.Address, topics []ethcommon.Hash, ch chan<- types.Log) (ethereum.Subscription, error) {
	query := ethereum.FilterQuery{
		Addresses: addresses,
		Topics:    [][]ethcommon.Hash{topics},
	}
	return e.client.SubscribeFilterLogs(ctx, query, ch)
}

func (e *ethSubscriber) Close() {
	e.client.Close()
}

// NewEthDialer 每次调用新建一个 websocket 连接
func NewEthDialer(wsURL string) source.Dialer {
	return func(ctx context.Context) (source.LogSubscriber, error) {
		client, err := evm.Dial(ctx, wsURL)
		if err != nil {
			return nil, err
		}
		return &ethSubscriber{client: client}, nil
	}
}
