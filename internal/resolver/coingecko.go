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

const CoinGeckoBaseURL = "https://api.coingecko.com/api/v3"

// CoinGeckoSource 按合约地址查询的备用报价源
type CoinGeckoSource struct {
	baseURL    string
	platform   string
	apiKey     string
	httpClient *resty.Client
}

func NewCoinGeckoSource(baseURL, platform, apiKey string, httpClient *resty.Client) *CoinGeckoSource {
	if baseURL == "" {
		baseURL = CoinGeckoBaseURL
	}
	if platform == "" {
		platform = "ethereum"
	}
	return &CoinGeckoSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		platform:   platform,
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

func (c *CoinGeckoSource) Name() string {
	return "coingecko"
}

func (c *CoinGeckoSource) GetPrice(ctx context.Context, token ethcommon.Address) (decimal.Decimal, error) {
	address := strings.ToLower(token.Hex())

	req := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"contract_addresses": address,
			"vs_currencies":      "usd",
		})
	if c.apiKey != "" {
		req.SetHeader("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := req.Get(fmt.Sprintf("%s/simple/token_price/%s", c.baseURL, c.platform))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to execute request: %w", err)
	}
	if err := classifyStatus(c.Name(), resp.StatusCode()); err != nil {
		return decimal.Zero, err
	}

	var result map[string]struct {
		Usd json.Number `json:"usd"`
	}
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return decimal.Zero, retry.MarkTerminal(fmt.Errorf("failed to decode response: %w", err))
	}

	entry, ok := result[address]
	if !ok || entry.Usd == "" {
		return decimal.Zero, retry.MarkTerminal(fmt.Errorf("%s: %w", c.Name(), ErrPriceNotFound))
	}
	price, err := decimal.NewFromString(entry.Usd.String())
	if err != nil {
		return decimal.Zero, retry.MarkTerminal(fmt.Errorf("parse price %q: %w", entry.Usd, err))
	}
	return price, nil
}
