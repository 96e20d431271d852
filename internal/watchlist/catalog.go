package watchlist

import (
	"context"

	"github.com/ninja0404/whale-signal/internal/repo"
)

// TokenEntry 监控名单中的一行，地址为十六进制字符串
type TokenEntry struct {
	Symbol         string `json:"symbol"`
	TokenAddress   string `json:"token_address"`
	PoolAddress    string `json:"pool_address"`
	PoolTokenIndex int    `json:"pool_token_index"`
}

// Catalog 监控名单来源
type Catalog interface {
	Load(ctx context.Context) ([]TokenEntry, error)
	Name() string
}

// ConfigCatalog 从配置读取，每次 Load 都取最新配置
type ConfigCatalog struct {
	entries func() []TokenEntry
}

func NewConfigCatalog(entries func() []TokenEntry) *ConfigCatalog {
	return &ConfigCatalog{entries: entries}
}

func (c *ConfigCatalog) Load(ctx context.Context) ([]TokenEntry, error) {
	return c.entries(), nil
}

func (c *ConfigCatalog) Name() string {
	return "config"
}

// DBCatalog 从 watched_tokens 表读取启用的代币
type DBCatalog struct {
	repo repo.WatchedTokenRepo
}

func NewDBCatalog(r repo.WatchedTokenRepo) *DBCatalog {
	return &DBCatalog{repo: r}
}

func (c *DBCatalog) Load(ctx context.Context) ([]TokenEntry, error) {
	rows, err := c.repo.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]TokenEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, TokenEntry{
			Symbol:         row.Symbol,
			TokenAddress:   row.TokenAddress,
			PoolAddress:    row.PoolAddress,
			PoolTokenIndex: row.PoolTokenIndex,
		})
	}
	return entries, nil
}

func (c *DBCatalog) Name() string {
	return "db"
}
