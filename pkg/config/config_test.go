package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninja0404/whale-signal/pkg/config/source/file"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadYamlAndScan(t *testing.T) {
	t.Setenv("WHALE_TEST_DSN", "root:pw@tcp(db:3306)/whale")

	p := writeFile(t, "app.yaml", `
polarx:
  dsn: "${WHALE_TEST_DSN}"
thresholds:
  swap_usd_floor: 10000
  min_percent_supply: 0.2
price:
  ttl: 60s
watchlist:
  tokens:
    - symbol: PEPE
      token_address: "0x6982508145454ce325ddbe47a25d4ec3d2311933"
`)

	c := NewConfig()
	require.NoError(t, c.Load(file.NewSource(file.WithPath(p))))

	assert.Equal(t, "root:pw@tcp(db:3306)/whale", c.Get("polarx", "dsn").String(""))
	assert.Equal(t, 10000, c.Get("thresholds", "swap_usd_floor").Int(0))
	assert.Equal(t, 0.2, c.Get("thresholds", "min_percent_supply").Float64(0))
	assert.Equal(t, time.Minute, c.Get("price", "ttl").Duration(0))
	assert.Equal(t, "fallback", c.Get("missing", "key").String("fallback"))

	var out struct {
		Watchlist struct {
			Tokens []struct {
				Symbol       string `json:"symbol"`
				TokenAddress string `json:"token_address"`
			} `json:"tokens"`
		} `json:"watchlist"`
	}
	require.NoError(t, c.Scan(&out))
	require.Len(t, out.Watchlist.Tokens, 1)
	assert.Equal(t, "PEPE", out.Watchlist.Tokens[0].Symbol)
}

func TestLaterSourceOverrides(t *testing.T) {
	base := writeFile(t, "base.yaml", "chain:\n  ws_url: ws://base\n  http_url: http://base\n")
	override := writeFile(t, "override.json", `{"chain":{"ws_url":"ws://override"}}`)

	c := NewConfig()
	require.NoError(t, c.Load(
		file.NewSource(file.WithPath(base)),
		file.NewSource(file.WithPath(override)),
	))

	assert.Equal(t, "ws://override", c.Get("chain", "ws_url").String(""))
	assert.Equal(t, "http://base", c.Get("chain", "http_url").String(""))
}

func TestLoadMissingFile(t *testing.T) {
	c := NewConfig()
	err := c.Load(file.NewSource(file.WithPath(filepath.Join(t.TempDir(), "nope.yaml"))))
	assert.Error(t, err)
}

func TestLoadToml(t *testing.T) {
	p := writeFile(t, "app.toml", `
[chain]
ws_url = "ws://toml"
log_buffer_size = 500
`)

	c := NewConfig()
	require.NoError(t, c.Load(file.NewSource(file.WithPath(p))))

	assert.Equal(t, "ws://toml", c.Get("chain", "ws_url").String(""))
	assert.Equal(t, 500, c.Get("chain", "log_buffer_size").Int(0))
}
