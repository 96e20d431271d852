package config

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ninja0404/whale-signal/internal/detector"
	"github.com/ninja0404/whale-signal/internal/watchlist"
	"github.com/ninja0404/whale-signal/pkg/config"
	"github.com/ninja0404/whale-signal/pkg/config/source"
	"github.com/ninja0404/whale-signal/pkg/config/source/file"
	"github.com/ninja0404/whale-signal/pkg/config/source/mse"
	"github.com/ninja0404/whale-signal/pkg/database/polardbx"
	"github.com/ninja0404/whale-signal/pkg/logger"
	"github.com/ninja0404/whale-signal/pkg/mq/kafka"
	"github.com/ninja0404/whale-signal/pkg/utils"
)

// AppConfig 应用配置结构
type AppConfig struct {
	Logger     LoggerConfig         `yaml:"logger" json:"logger"`
	PolarX     polardbx.MysqlConfig `yaml:"polarx" json:"polarx"`
	Chain      ChainConfig          `yaml:"chain" json:"chain"`
	Watchlist  WatchlistConfig      `yaml:"watchlist" json:"watchlist"`
	Thresholds detector.Thresholds  `yaml:"thresholds" json:"thresholds"`
	Price      PriceConfig          `yaml:"price" json:"price"`
	Publisher  PublisherConfig      `yaml:"publisher" json:"publisher"`
	Metrics    MetricsConfig        `yaml:"metrics" json:"metrics"`
	Sentry     SentryConfig         `yaml:"sentry" json:"sentry"`
}

// LoggerConfig 日志配置，完整字段见 logger.Config
type LoggerConfig struct {
	Output     string `yaml:"output" json:"output"`
	Debug      bool   `yaml:"debug" json:"debug"`
	Level      string `yaml:"level" json:"level"`
	AddCaller  bool   `yaml:"add_caller" json:"add_caller"`
	CallerSkip int    `yaml:"caller_skip" json:"caller_skip"`
}

// ChainConfig 节点配置
type ChainConfig struct {
	WsURL           string   `yaml:"ws_url" json:"ws_url"`
	HttpURL         string   `yaml:"http_url" json:"http_url"`
	ExplorerURL     string   `yaml:"explorer_url" json:"explorer_url"`
	ReconnectDelay  Duration `yaml:"reconnect_delay" json:"reconnect_delay"`
	ReconnectMax    Duration `yaml:"reconnect_max" json:"reconnect_max"`
	LogBufferSize   int      `yaml:"log_buffer_size" json:"log_buffer_size"`
	MaxInflightLogs int      `yaml:"max_inflight_logs" json:"max_inflight_logs"`
	HandleTimeout   Duration `yaml:"handle_timeout" json:"handle_timeout"`
}

// WatchlistConfig 监控名单
type WatchlistConfig struct {
	// Source config 或 db
	Source          string                 `yaml:"source" json:"source"`
	Tokens          []watchlist.TokenEntry `yaml:"tokens" json:"tokens"`
	Stablecoins     []string               `yaml:"stablecoins" json:"stablecoins"`
	RefreshInterval Duration               `yaml:"refresh_interval" json:"refresh_interval"`
}

// PriceConfig 价格与元数据缓存、重试
type PriceConfig struct {
	TTL            Duration          `yaml:"ttl" json:"ttl"`
	MetadataTTL    Duration          `yaml:"metadata_ttl" json:"metadata_ttl"`
	MaxAttempts    int               `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay      Duration          `yaml:"base_delay" json:"base_delay"`
	RequestTimeout Duration          `yaml:"request_timeout" json:"request_timeout"`
	DexScreener    DexScreenerConfig `yaml:"dexscreener" json:"dexscreener"`
	CoinGecko      CoinGeckoConfig   `yaml:"coingecko" json:"coingecko"`
}

type DexScreenerConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
	ChainID string `yaml:"chain_id" json:"chain_id"`
}

type CoinGeckoConfig struct {
	BaseURL  string `yaml:"base_url" json:"base_url"`
	Platform string `yaml:"platform" json:"platform"`
	APIKey   string `yaml:"api_key" json:"api_key"`
}

// PublisherConfig 发布器配置
type PublisherConfig struct {
	Feishu FeishuConfig `yaml:"feishu" json:"feishu"`
	Kafka  KafkaConfig  `yaml:"kafka" json:"kafka"`
}

// FeishuConfig 飞书发布器配置
type FeishuConfig struct {
	WebhookURL string `yaml:"webhook_url" json:"webhook_url"`
}

// KafkaConfig 巨鲸事件广播，brokers 为空时不启用
type KafkaConfig struct {
	Brokers  []string                  `yaml:"brokers" json:"brokers"`
	Topic    string                    `yaml:"topic" json:"topic"`
	// Driver confluent 或 sarama
	Driver   string                    `yaml:"driver" json:"driver"`
	Producer kafka.KafkaProducerConfig `yaml:"producer" json:"producer"`
}

type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
}

type SentryConfig struct {
	DSN         string `yaml:"dsn" json:"dsn"`
	Environment string `yaml:"environment" json:"environment"`
}

// Duration 支持 "5s" 这样的字符串，也兼容纳秒整数
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case float64:
		*d = Duration(time.Duration(val))
	case string:
		if val == "" {
			*d = 0
			return nil
		}
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", val, err)
		}
		*d = Duration(parsed)
	case nil:
		*d = 0
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Default 未配置字段使用的默认值
func Default() AppConfig {
	return AppConfig{
		Chain: ChainConfig{
			ExplorerURL:     "https://etherscan.io",
			ReconnectDelay:  Duration(5 * time.Second),
			ReconnectMax:    Duration(60 * time.Second),
			LogBufferSize:   10_000,
			MaxInflightLogs: 1_000,
			HandleTimeout:   Duration(60 * time.Second),
		},
		Watchlist: WatchlistConfig{
			Source:          "config",
			RefreshInterval: Duration(5 * time.Minute),
		},
		Thresholds: detector.DefaultThresholds(),
		Price: PriceConfig{
			TTL:            Duration(60 * time.Second),
			MetadataTTL:    Duration(60 * time.Second),
			MaxAttempts:    3,
			BaseDelay:      Duration(2 * time.Second),
			RequestTimeout: Duration(10 * time.Second),
			DexScreener: DexScreenerConfig{
				BaseURL: "https://api.dexscreener.com",
				ChainID: "ethereum",
			},
			CoinGecko: CoinGeckoConfig{
				BaseURL:  "https://api.coingecko.com/api/v3",
				Platform: "ethereum",
			},
		},
		Publisher: PublisherConfig{
			Kafka: KafkaConfig{Topic: "whale-signal", Driver: "confluent"},
		},
		Metrics: MetricsConfig{ListenAddr: ":9464"},
	}
}

// Manager 配置管理器
type Manager struct {
	mu       sync.RWMutex
	config   *AppConfig
	onReload []func(*AppConfig)
}

// NewManager 创建配置管理器
func NewManager() *Manager {
	return &Manager{}
}

// Load 按环境变量选择 MSE 或本地文件，开启热更新
func (m *Manager) Load(configPath string) error {
	src, err := m.source(configPath)
	if err != nil {
		return err
	}

	config.Init(config.WithWatch(true))
	if err := config.Load(src); err != nil {
		return err
	}

	appConfig, err := m.scan()
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.config = appConfig
	m.mu.Unlock()

	config.OnChange(m.reload)
	return nil
}

func (m *Manager) source(configPath string) (source.Source, error) {
	if utils.IsMseConfig() {
		mseConfig, err := mse.ConfigFromEnv()
		if err != nil {
			return nil, fmt.Errorf("parse mse env: %w", err)
		}
		return mse.NewSource(mse.WithMseConfig(mseConfig), source.WithFormat("yaml")), nil
	}
	return file.NewSource(
		file.WithPath(utils.GetConfigFilePath(configPath)),
	), nil
}

func (m *Manager) scan() (*AppConfig, error) {
	appConfig := Default()
	if err := config.Scan(&appConfig); err != nil {
		return nil, err
	}
	return &appConfig, nil
}

func (m *Manager) reload() {
	appConfig, err := m.scan()
	if err != nil {
		logger.Error("❌ 配置热更新解析失败，保留旧配置", logger.FieldErr(err))
		return
	}

	m.mu.Lock()
	m.config = appConfig
	callbacks := append(([]func(*AppConfig))(nil), m.onReload...)
	m.mu.Unlock()

	logger.Info("🔄 配置已热更新")
	for _, fn := range callbacks {
		fn(appConfig)
	}
}

// OnReload 注册热更新回调
func (m *Manager) OnReload(fn func(*AppConfig)) {
	m.mu.Lock()
	m.onReload = append(m.onReload, fn)
	m.mu.Unlock()
}

// GetAppConfig 获取应用配置
func (m *Manager) GetAppConfig() *AppConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetDatabaseConfig 获取数据库配置
func (m *Manager) GetDatabaseConfig() polardbx.MysqlConfig {
	return m.GetAppConfig().PolarX
}

// WatchlistTokens 当前配置中的监控名单，供 ConfigCatalog 使用
func (m *Manager) WatchlistTokens() []watchlist.TokenEntry {
	return m.GetAppConfig().Watchlist.Tokens
}

// InitLogger 初始化日志系统
func (m *Manager) InitLogger() error {
	sentryConf := m.GetAppConfig().Sentry
	if sentryConf.DSN != "" {
		if err := logger.InitSentry(sentryConf.DSN, sentryConf.Environment); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
	}

	loggerConfig := logger.FromConfig("logger")
	loggerInstance := loggerConfig.Build()
	logger.SetDefault(loggerInstance)
	logger.SetDefaultL1(loggerInstance)
	return nil
}
