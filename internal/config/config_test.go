package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYaml = `
chain:
  ws_url: "${WHALE_WS_URL:-ws://localhost:8546}"
  reconnect_delay: 3s
thresholds:
  swap_usd_floor: 25000
  transfer_usd_floor: 100000
  min_percent_supply: 0.5
watchlist:
  tokens:
    - symbol: PEPE
      token_address: "0x6982508145454Ce325dDbE47a25d4ec3d2311933"
      pool_address: "0xA43fe16908251ee70EF74718545e4FE6C5cCEc9f"
      pool_token_index: 1
price:
  ttl: 30s
`

func TestLoadAppliesDefaultsAndOverrides(t *testing.T) {
	t.Setenv("CONFIG_TYPE", "")
	t.Setenv("CONFIG_FILE_PATH", "")
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(sampleYaml), 0o644))

	m := NewManager()
	require.NoError(t, m.Load(p))
	c := m.GetAppConfig()

	assert.Equal(t, "ws://localhost:8546", c.Chain.WsURL)
	assert.Equal(t, 3*time.Second, c.Chain.ReconnectDelay.Std())
	assert.Equal(t, 60*time.Second, c.Chain.ReconnectMax.Std())
	assert.Equal(t, 25000.0, c.Thresholds.SwapUSDFloor)
	assert.Equal(t, 0.5, c.Thresholds.MinPercentSupply)
	assert.Equal(t, 30*time.Second, c.Price.TTL.Std())
	assert.Equal(t, 3, c.Price.MaxAttempts)
	assert.Equal(t, "config", c.Watchlist.Source)

	tokens := m.WatchlistTokens()
	require.Len(t, tokens, 1)
	assert.Equal(t, "PEPE", tokens[0].Symbol)
	assert.Equal(t, 1, tokens[0].PoolTokenIndex)
}

func TestHotReload(t *testing.T) {
	t.Setenv("CONFIG_TYPE", "")
	t.Setenv("CONFIG_FILE_PATH", "")
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(sampleYaml), 0o644))

	m := NewManager()
	require.NoError(t, m.Load(p))

	reloaded := make(chan *AppConfig, 4)
	m.OnReload(func(c *AppConfig) { reloaded <- c })

	updated := sampleYaml + "\nmetrics:\n  listen_addr: \":9999\"\n"
	require.NoError(t, os.WriteFile(p, []byte(updated), 0o644))

	require.Eventually(t, func() bool {
		return m.GetAppConfig().Metrics.ListenAddr == ":9999"
	}, 5*time.Second, 20*time.Millisecond)
	assert.NotEmpty(t, reloaded)
}

func TestDurationJSON(t *testing.T) {
	var v struct {
		A Duration `json:"a"`
		B Duration `json:"b"`
		C Duration `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"1m30s","b":1000000000,"c":""}`), &v))
	assert.Equal(t, 90*time.Second, v.A.Std())
	assert.Equal(t, time.Second, v.B.Std())
	assert.Equal(t, time.Duration(0), v.C.Std())

	assert.Error(t, json.Unmarshal([]byte(`{"a":"soon"}`), &v))

	out, err := json.Marshal(Duration(2 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, `"2s"`, string(out))
}
