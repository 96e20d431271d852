package watchlist

import (
	"sort"
	"strconv"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/pkg/logger"
)

// Snapshot 不可变的监控名单，整体替换
type Snapshot struct {
	tokens  []model.WatchedToken
	byToken map[ethcommon.Address]model.WatchedToken
	byPool  map[ethcommon.Address]model.WatchedToken
}

// NewSnapshot 重复的代币地址只保留第一条
func NewSnapshot(tokens []model.WatchedToken) *Snapshot {
	s := &Snapshot{
		tokens:  make([]model.WatchedToken, 0, len(tokens)),
		byToken: make(map[ethcommon.Address]model.WatchedToken, len(tokens)),
		byPool:  make(map[ethcommon.Address]model.WatchedToken, len(tokens)),
	}
	for _, t := range tokens {
		if _, ok := s.byToken[t.TokenAddress]; ok {
			continue
		}
		s.tokens = append(s.tokens, t)
		s.byToken[t.TokenAddress] = t
		if t.HasPool() {
			s.byPool[t.PoolAddress] = t
		}
	}
	return s
}

func (s *Snapshot) TokenByAddress(addr ethcommon.Address) (model.WatchedToken, bool) {
	t, ok := s.byToken[addr]
	return t, ok
}

func (s *Snapshot) TokenByPool(addr ethcommon.Address) (model.WatchedToken, bool) {
	t, ok := s.byPool[addr]
	return t, ok
}

func (s *Snapshot) IsPool(addr ethcommon.Address) bool {
	_, ok := s.byPool[addr]
	return ok
}

// Tokens 返回副本
func (s *Snapshot) Tokens() []model.WatchedToken {
	return append([]model.WatchedToken(nil), s.tokens...)
}

func (s *Snapshot) Len() int {
	return len(s.tokens)
}

// fingerprint 与顺序无关，用于判断名单是否变化
func (s *Snapshot) fingerprint() string {
	keys := make([]string, 0, len(s.tokens))
	for _, t := range s.tokens {
		keys = append(keys, t.TokenAddress.Hex()+"/"+t.PoolAddress.Hex()+"/"+strconv.Itoa(t.PoolTokenIndex))
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

// Validate 丢弃地址非法、池内位置非法以及重复的条目
func Validate(entries []TokenEntry) []model.WatchedToken {
	seen := make(map[ethcommon.Address]struct{}, len(entries))
	tokens := make([]model.WatchedToken, 0, len(entries))

	for _, e := range entries {
		if !ethcommon.IsHexAddress(e.TokenAddress) {
			logger.Warn("⚠️ 代币地址非法，已忽略",
				logger.String("symbol", e.Symbol),
				logger.FieldToken(e.TokenAddress))
			continue
		}
		if e.PoolAddress != "" && !ethcommon.IsHexAddress(e.PoolAddress) {
			logger.Warn("⚠️ 交易池地址非法，已忽略",
				logger.String("symbol", e.Symbol),
				logger.String("pool", e.PoolAddress))
			continue
		}
		if e.PoolTokenIndex != 0 && e.PoolTokenIndex != 1 {
			logger.Warn("⚠️ pool_token_index 只能是 0 或 1，已忽略",
				logger.String("symbol", e.Symbol),
				logger.Int("pool_token_index", e.PoolTokenIndex))
			continue
		}

		token := ethcommon.HexToAddress(e.TokenAddress)
		if _, ok := seen[token]; ok {
			logger.Warn("⚠️ 代币重复配置，已忽略", logger.FieldToken(e.TokenAddress))
			continue
		}
		seen[token] = struct{}{}

		wt := model.WatchedToken{
			Symbol:         e.Symbol,
			TokenAddress:   token,
			PoolTokenIndex: e.PoolTokenIndex,
		}
		if e.PoolAddress != "" {
			wt.PoolAddress = ethcommon.HexToAddress(e.PoolAddress)
		}
		tokens = append(tokens, wt)
	}
	return tokens
}
