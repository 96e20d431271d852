package publisher

import (
	"context"
	"fmt"
	"sync"

	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/internal/repo"
	"github.com/ninja0404/whale-signal/pkg/clock"
	"github.com/ninja0404/whale-signal/pkg/logger"
	"github.com/ninja0404/whale-signal/pkg/utils"
)

// Publisher 巨鲸交易通知渠道
type Publisher interface {
	// Publish 发布一笔已落库的巨鲸交易
	Publish(ctx context.Context, tx *model.WhaleTransaction) error

	// GetType 获取发布器类型
	GetType() string

	// Close 关闭发布器
	Close() error
}

// Manager 落库与通知，写库失败的交易直接丢弃不重试
type Manager struct {
	whaleTxRepo      repo.WhaleTxRepo
	notificationRepo repo.NotificationRepo
	clock            clock.Clock

	mu         sync.RWMutex
	publishers []Publisher
}

func NewManager(whaleTxRepo repo.WhaleTxRepo, notificationRepo repo.NotificationRepo, clk clock.Clock) *Manager {
	if clk == nil {
		clk = clock.Real()
	}
	return &Manager{
		whaleTxRepo:      whaleTxRepo,
		notificationRepo: notificationRepo,
		clock:            clk,
		publishers:       make([]Publisher, 0),
	}
}

// AddPublisher 添加发布器
func (m *Manager) AddPublisher(publisher Publisher) {
	m.mu.Lock()
	m.publishers = append(m.publishers, publisher)
	m.mu.Unlock()
}

// Start 输出已注册的发布器
func (m *Manager) Start() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, publisher := range m.publishers {
		logger.Info("✅ 已加载通知发布器", logger.String("type", publisher.GetType()))
	}
	logger.Info("📡 通知发布管理器已启动")
	return nil
}

// Persist 按 id 写入，已存在时返回 false
func (m *Manager) Persist(ctx context.Context, tx *model.WhaleTransaction) (bool, error) {
	inserted, err := m.whaleTxRepo.Insert(ctx, tx)
	if err != nil {
		return false, fmt.Errorf("persist whale tx %s: %w", tx.ID, err)
	}
	return inserted, nil
}

// Notify 追加通知流水并推送到所有发布器，任何失败只记日志
func (m *Manager) Notify(ctx context.Context, tx *model.WhaleTransaction) {
	record := &model.NotificationRecord{
		ID:            utils.NewULID(),
		WhaleTxID:     tx.ID,
		Symbol:        tx.Symbol,
		Action:        tx.Action,
		AmountUSD:     tx.AmountUSD,
		PercentSupply: tx.PercentSupply,
		Summary:       Summary(tx),
		CreatedAt:     m.clock.Now(),
	}
	if err := m.notificationRepo.Append(ctx, record); err != nil {
		logger.Warn("⚠️ 写入通知流水失败",
			logger.String("whale_tx_id", tx.ID),
			logger.FieldErr(err))
	}

	m.mu.RLock()
	publishers := append([]Publisher(nil), m.publishers...)
	m.mu.RUnlock()

	for _, publisher := range publishers {
		if err := publisher.Publish(ctx, tx); err != nil {
			logger.Error("发布通知失败",
				logger.String("publisher", publisher.GetType()),
				logger.String("whale_tx_id", tx.ID),
				logger.FieldErr(err))
			continue
		}
		logger.Debug("✅ 通知发布成功",
			logger.String("publisher", publisher.GetType()),
			logger.String("whale_tx_id", tx.ID))
	}
}

// Stop 关闭所有发布器
func (m *Manager) Stop() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, publisher := range m.publishers {
		if err := publisher.Close(); err != nil {
			logger.Error("关闭发布器失败",
				logger.String("type", publisher.GetType()),
				logger.FieldErr(err))
		}
	}

	logger.Info("通知发布管理器已停止")
	return nil
}

// Summary 单行摘要，如 "🟢 PEPE buy 3.00K ($12.00K, 0.30% supply)"
func Summary(tx *model.WhaleTransaction) string {
	return fmt.Sprintf("%s %s %s %s (%s, %s supply)",
		tx.Action.Emoji(),
		tx.Symbol,
		tx.Action,
		utils.FormatCompact(tx.AmountToken),
		utils.FormatUSD(tx.AmountUSD),
		utils.FormatPercent(tx.PercentSupply))
}

// LogPublisher 日志发布器 - 将巨鲸交易输出到日志
type LogPublisher struct{}

func (p *LogPublisher) GetType() string {
	return "log"
}

func (p *LogPublisher) Publish(ctx context.Context, tx *model.WhaleTransaction) error {
	logger.Info("🐋 发现巨鲸交易",
		logger.String("id", tx.ID),
		logger.FieldTxHash(tx.TxHash),
		logger.FieldToken(tx.TokenAddress),
		logger.String("symbol", tx.Symbol),
		logger.String("kind", tx.EventKind),
		logger.FieldAction(tx.Action.String()),
		logger.String("amount", tx.AmountToken.String()),
		logger.String("amount_usd", tx.AmountUSD.StringFixed(2)),
		logger.String("percent_supply", tx.PercentSupply.String()),
		logger.FieldSource(tx.PriceSource))
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
