package evm

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/ninja0404/whale-signal/pkg/logger"
)

const dialTimeout = 15 * time.Second

// Dial 连接节点，ws 地址用于订阅，http 地址用于合约调用
func Dial(ctx context.Context, url string) (*ethclient.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("rpc url empty")
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	client, err := ethclient.DialContext(dialCtx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	chainID, err := client.ChainID(dialCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("query chain id: %w", err)
	}

	logger.Info("🔗 节点连接成功",
		logger.String("url", url),
		logger.String("chain_id", chainID.String()),
	)
	return client, nil
}
