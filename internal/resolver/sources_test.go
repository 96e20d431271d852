package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninja0404/whale-signal/pkg/retry"
)

func setupServer(t *testing.T, status int, body string, check func(r *http.Request)) (*httptest.Server, *resty.Client) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, resty.NewWithClient(server.Client())
}

func TestDexScreenerPicksDeepestBasePair(t *testing.T) {
	addr := pepe.Hex()
	body := `{"pairs":[
		{"chainId":"ethereum","priceUsd":"1.10","baseToken":{"address":"` + strings.ToLower(addr) + `"},"liquidity":{"usd":1000}},
		{"chainId":"ethereum","priceUsd":"1.20","baseToken":{"address":"` + addr + `"},"liquidity":{"usd":90000}},
		{"chainId":"bsc","priceUsd":"9.99","baseToken":{"address":"` + addr + `"},"liquidity":{"usd":900000}},
		{"chainId":"ethereum","priceUsd":"0.5","baseToken":{"address":"0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"},"liquidity":{"usd":5000000}}
	]}`
	server, client := setupServer(t, http.StatusOK, body, func(r *http.Request) {
		assert.Equal(t, "/latest/dex/tokens/"+addr, r.URL.Path)
	})

	src := NewDexScreenerSource(server.URL, "ethereum", client)
	price, err := src.GetPrice(context.Background(), pepe)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("1.20")))
}

func TestDexScreenerNoPairs(t *testing.T) {
	server, client := setupServer(t, http.StatusOK, `{"pairs":null}`, nil)

	_, err := NewDexScreenerSource(server.URL, "ethereum", client).GetPrice(context.Background(), pepe)
	assert.ErrorIs(t, err, ErrPriceNotFound)
	assert.Equal(t, retry.Terminal, retry.Classify(err))
}

func TestSourceStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		class  retry.Class
	}{
		{http.StatusTooManyRequests, retry.RateLimited},
		{http.StatusBadGateway, retry.Transient},
		{http.StatusNotFound, retry.Terminal},
	}

	for _, tt := range tests {
		server, client := setupServer(t, tt.status, `{}`, nil)
		_, err := NewCoinGeckoSource(server.URL, "ethereum", "", client).GetPrice(context.Background(), pepe)
		require.Error(t, err)
		assert.Equal(t, tt.class, retry.Classify(err), "status %d", tt.status)
	}
}

func TestCoinGeckoPrice(t *testing.T) {
	addr := strings.ToLower(pepe.Hex())
	server, client := setupServer(t, http.StatusOK, `{"`+addr+`":{"usd":0.00001234}}`, func(r *http.Request) {
		assert.Equal(t, "/simple/token_price/ethereum", r.URL.Path)
		assert.Equal(t, addr, r.URL.Query().Get("contract_addresses"))
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		assert.Equal(t, "demo-key", r.Header.Get("x-cg-demo-api-key"))
	})

	price, err := NewCoinGeckoSource(server.URL, "ethereum", "demo-key", client).GetPrice(context.Background(), pepe)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("0.00001234")))
}

func TestCoinGeckoMissingToken(t *testing.T) {
	server, client := setupServer(t, http.StatusOK, `{}`, nil)

	_, err := NewCoinGeckoSource(server.URL, "ethereum", "", client).GetPrice(context.Background(), pepe)
	assert.ErrorIs(t, err, ErrPriceNotFound)
}

func TestRateLimitedErrorWrapsSentinel(t *testing.T) {
	err := classifyStatus("dexscreener", http.StatusTooManyRequests)
	assert.ErrorIs(t, err, ErrRateLimited)
}
