package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/ninja0404/whale-signal/pkg/retry"
)

const DexScreenerBaseURL = "https://api.dexscreener.com"

// DexScreenerSource 聚合器报价，取流动性最高且以该代币为 base 的交易对
type DexScreenerSource struct {
	baseURL    string
	chainID    string
	httpClient *resty.Client
}

func NewDexScreenerSource(baseURL, chainID string, httpClient *resty.Client) *DexScreenerSource {
	if baseURL == "" {
		baseURL = DexScreenerBaseURL
	}
	if chainID == "" {
		chainID = "ethereum"
	}
	return &DexScreenerSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		chainID:    chainID,
		httpClient: httpClient,
	}
}

func (d *DexScreenerSource) Name() string {
	return "dexscreener"
}

type dexScreenerPair struct {
	ChainID   string `json:"chainId"`
	PriceUsd  string `json:"priceUsd"`
	BaseToken struct {
		Address string `json:"address"`
	} `json:"baseToken"`
	Liquidity struct {
		Usd float64 `json:"usd"`
	} `json:"liquidity"`
}

func (d *DexScreenerSource) GetPrice(ctx context.Context, token ethcommon.Address) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/latest/dex/tokens/%s", d.baseURL, token.Hex())

	resp, err := d.httpClient.R().SetContext(ctx).Get(url)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to execute request: %w", err)
	}
	if err := classifyStatus(d.Name(), resp.StatusCode()); err != nil {
		return decimal.Zero, err
	}

	var result struct {
		Pairs []dexScreenerPair `json:"pairs"`
	}
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return decimal.Zero, retry.MarkTerminal(fmt.Errorf("failed to decode response: %w", err))
	}

	var (
		best      decimal.Decimal
		bestDepth = -1.0
	)
	for _, pair := range result.Pairs {
		if !strings.EqualFold(pair.ChainID, d.chainID) || !strings.EqualFold(pair.BaseToken.Address, token.Hex()) {
			continue
		}
		price, err := decimal.NewFromString(pair.PriceUsd)
		if err != nil || !price.IsPositive() {
			continue
		}
		if pair.Liquidity.Usd > bestDepth {
			best, bestDepth = price, pair.Liquidity.Usd
		}
	}
	if bestDepth < 0 {
		return decimal.Zero, retry.MarkTerminal(fmt.Errorf("%s: %w", d.Name(), ErrPriceNotFound))
	}
	return best, nil
}
