package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/hashicorp/go-multierror"
	"gorm.io/gorm"

	"github.com/ninja0404/whale-signal/internal/config"
	"github.com/ninja0404/whale-signal/internal/decoder"
	"github.com/ninja0404/whale-signal/internal/detector"
	"github.com/ninja0404/whale-signal/internal/evm"
	"github.com/ninja0404/whale-signal/internal/metrics"
	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/internal/notifier"
	"github.com/ninja0404/whale-signal/internal/pipeline"
	"github.com/ninja0404/whale-signal/internal/publisher"
	"github.com/ninja0404/whale-signal/internal/repo"
	"github.com/ninja0404/whale-signal/internal/resolver"
	"github.com/ninja0404/whale-signal/internal/source/chain"
	"github.com/ninja0404/whale-signal/internal/watchlist"
	"github.com/ninja0404/whale-signal/pkg/clock"
	"github.com/ninja0404/whale-signal/pkg/database/polardbx"
	"github.com/ninja0404/whale-signal/pkg/logger"
	"github.com/ninja0404/whale-signal/pkg/mq/kafka"
	"github.com/ninja0404/whale-signal/pkg/retry"
)

const shutdownTimeout = 10 * time.Second

// Application 巨鲸交易监听应用
type Application struct {
	configManager *config.Manager
	metrics       *metrics.Metrics

	db            *gorm.DB
	whaleTxRepo   repo.WhaleTxRepo
	rpcClient     *ethclient.Client
	watchlist     *watchlist.Manager
	detector      *detector.Detector
	publishers    *publisher.Manager
	subscription  *chain.Manager
	pipeline      *pipeline.Pipeline
	metricsServer *metrics.Server
	kafkaProducer publisher.MessageProducer

	ctx    context.Context
	cancel context.CancelFunc
}

// New 创建应用实例
func New() *Application {
	ctx, cancel := context.WithCancel(context.Background())
	return &Application{
		configManager: config.NewManager(),
		metrics:       metrics.New(),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Initialize 初始化应用
func (app *Application) Initialize(configPath string) error {
	// 1. 加载配置
	if err := app.configManager.Load(configPath); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. 初始化日志系统
	if err := app.configManager.InitLogger(); err != nil {
		return err
	}
	logger.Info("🚀 巨鲸交易监听服务初始化开始", logger.String("config_path", configPath))

	cfg := app.configManager.GetAppConfig()

	// 3. 初始化数据库
	if err := app.initDatabase(); err != nil {
		return err
	}

	// 4. 监控名单
	app.initWatchlist(cfg)

	// 5. 元数据与价格
	res, err := app.initResolver(cfg)
	if err != nil {
		return err
	}
	app.watchlist.OnTick(func() {
		if n := res.Purge(); n > 0 {
			logger.Debug("🧹 已清理过期的价格与元数据缓存", logger.Int("purged", n))
		}
	})

	// 6. 阈值判定
	app.detector = detector.New(cfg.Thresholds, app.whaleTxRepo, clock.Real())

	// 7. 落库与通知
	if err := app.initPublishers(cfg); err != nil {
		return err
	}

	// 8. 链上订阅与处理管道
	registry := decoder.DefaultRegistry()
	app.subscription = chain.NewManager(chain.NewEthDialer(cfg.Chain.WsURL), chain.Options{
		Topics:     registry.Topics(),
		BufferSize: cfg.Chain.LogBufferSize,
		Backoff:    retry.Exponential(cfg.Chain.ReconnectDelay.Std(), cfg.Chain.ReconnectMax.Std()),
		Observer:   app.metrics,
	})
	app.pipeline = pipeline.NewPipeline(
		app.subscription,
		registry,
		func() pipeline.Watchlist { return app.watchlist.Current() },
		res,
		app.detector,
		app.publishers,
		pipeline.Options{
			MaxInflight:   cfg.Chain.MaxInflightLogs,
			HandleTimeout: cfg.Chain.HandleTimeout.Std(),
			Metrics:       app.metrics,
		},
	)

	app.metricsServer = metrics.NewServer(cfg.Metrics.ListenAddr, app.metrics)
	app.configManager.OnReload(app.onConfigReload)

	logger.Info("✅ 巨鲸交易监听服务初始化完成")
	return nil
}

// initDatabase 初始化数据库连接并同步表结构
func (app *Application) initDatabase() error {
	dbConfig := app.configManager.GetDatabaseConfig()
	if err := polardbx.SetupDatabase(polardbx.DEFAULT_DB, &dbConfig); err != nil {
		return err
	}
	if err := polardbx.AutoMigrate(
		&model.WhaleTransaction{},
		&model.NotificationRecord{},
		&model.WatchedTokenRow{},
	); err != nil {
		return err
	}

	db, err := polardbx.GetDb()
	if err != nil {
		return err
	}
	app.db = db
	app.whaleTxRepo = repo.NewWhaleTxRepo(db)

	logger.Info("📊 数据库连接已建立")
	return nil
}

func (app *Application) initWatchlist(cfg *config.AppConfig) {
	var catalog watchlist.Catalog
	switch strings.ToLower(cfg.Watchlist.Source) {
	case "db":
		catalog = watchlist.NewDBCatalog(repo.NewWatchedTokenRepo(app.db))
	default:
		catalog = watchlist.NewConfigCatalog(app.configManager.WatchlistTokens)
	}
	app.watchlist = watchlist.NewManager(catalog, cfg.Watchlist.RefreshInterval.Std())

	app.watchlist.OnChange(func(tokens []model.WatchedToken) {
		app.metrics.WatchedTokens.Set(float64(len(tokens)))
		if app.subscription != nil {
			app.subscription.Resubscribe(tokens)
		}
	})
	logger.Info("📋 监控名单来源", logger.String("catalog", catalog.Name()))
}

func (app *Application) initResolver(cfg *config.AppConfig) (*resolver.Resolver, error) {
	rpcURL := cfg.Chain.HttpURL
	if rpcURL == "" {
		rpcURL = cfg.Chain.WsURL
	}
	client, err := evm.Dial(app.ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	app.rpcClient = client

	clk := clock.Real()
	httpClient := resolver.NewHTTPClient(cfg.Price.RequestTimeout.Std())
	sources := []resolver.PriceSource{
		resolver.NewDexScreenerSource(cfg.Price.DexScreener.BaseURL, cfg.Price.DexScreener.ChainID, httpClient),
		resolver.NewCoinGeckoSource(cfg.Price.CoinGecko.BaseURL, cfg.Price.CoinGecko.Platform, cfg.Price.CoinGecko.APIKey, httpClient),
	}

	stables := make([]ethcommon.Address, 0, len(cfg.Watchlist.Stablecoins))
	for _, s := range cfg.Watchlist.Stablecoins {
		if !ethcommon.IsHexAddress(s) {
			logger.Warn("⚠️ 稳定币地址无效，已忽略", logger.String("address", s))
			continue
		}
		stables = append(stables, ethcommon.HexToAddress(s))
	}

	baseDelay := cfg.Price.BaseDelay.Std()
	policy := retry.Policy{
		MaxAttempts:    cfg.Price.MaxAttempts,
		Delay:          retry.Linear(baseDelay, 0),
		RateLimitDelay: retry.Linear(2*baseDelay, 0),
		Clock:          clk,
	}

	meta := resolver.NewMetadataResolver(
		evm.NewERC20Reader(client),
		resolver.NewTTLCache[model.TokenMetadata](cfg.Price.MetadataTTL.Std(), clk),
		clk,
	)
	price := resolver.NewPriceResolver(
		sources,
		resolver.NewTTLCache[model.PriceQuote](cfg.Price.TTL.Std(), clk),
		clk,
		resolver.WithStablecoins(stables...),
		resolver.WithRetryPolicy(policy),
		resolver.WithSourceFailureHook(app.metrics.OnPriceSourceFailure),
	)
	return resolver.New(meta, price), nil
}

func (app *Application) initPublishers(cfg *config.AppConfig) error {
	app.publishers = publisher.NewManager(app.whaleTxRepo, repo.NewNotificationRepo(app.db), clock.Real())
	app.publishers.AddPublisher(&publisher.LogPublisher{})

	if cfg.Publisher.Feishu.WebhookURL != "" {
		lark := notifier.NewLarkClient(cfg.Publisher.Feishu.WebhookURL, nil)
		app.publishers.AddPublisher(publisher.NewFeishuPublisher(lark, cfg.Chain.ExplorerURL))
	}

	if len(cfg.Publisher.Kafka.Brokers) > 0 {
		producer, err := newKafkaProducer(cfg.Publisher.Kafka)
		if err != nil {
			return err
		}
		app.kafkaProducer = producer
		app.publishers.AddPublisher(publisher.NewKafkaPublisher(producer, cfg.Publisher.Kafka.Topic))
		logger.Info("📨 已启用kafka广播",
			logger.String("driver", cfg.Publisher.Kafka.Driver),
			logger.String("topic", cfg.Publisher.Kafka.Topic))
	}
	return nil
}

func newKafkaProducer(cfg config.KafkaConfig) (publisher.MessageProducer, error) {
	switch strings.ToLower(cfg.Driver) {
	case "sarama":
		producer, err := kafka.NewSaramaProducer(cfg.Brokers, cfg.Producer)
		if err != nil {
			return nil, err
		}
		return producer, nil
	case "confluent", "":
		producer, err := kafka.SetupKafkaProducer(cfg.Brokers, cfg.Producer)
		if err != nil {
			return nil, fmt.Errorf("setup kafka producer: %w", err)
		}
		return producer, nil
	default:
		return nil, fmt.Errorf("unknown kafka driver %q", cfg.Driver)
	}
}

// onConfigReload 阈值与配置名单热更新
func (app *Application) onConfigReload(cfg *config.AppConfig) {
	app.detector.UpdateThresholds(cfg.Thresholds)
	logger.Info("🎚️ 阈值已更新",
		logger.Float64("swap_usd_floor", cfg.Thresholds.SwapUSDFloor),
		logger.Float64("transfer_usd_floor", cfg.Thresholds.TransferUSDFloor),
		logger.Float64("min_percent_supply", cfg.Thresholds.MinPercentSupply))

	if _, err := app.watchlist.Refresh(app.ctx); err != nil {
		logger.Error("❌ 配置更新后刷新监控名单失败", logger.FieldErr(err))
	}
}

// Run 运行应用，阻塞直到收到终止信号
func (app *Application) Run() error {
	logger.Info("🎯 启动巨鲸交易检测管道")

	app.metricsServer.Start()

	if err := app.publishers.Start(); err != nil {
		return err
	}
	if err := app.watchlist.Start(app.ctx); err != nil {
		return err
	}
	if err := app.subscription.Start(app.ctx, app.watchlist.Current().Tokens()); err != nil {
		return err
	}
	if err := app.pipeline.Start(); err != nil {
		return err
	}

	cfg := app.configManager.GetAppConfig()
	logger.Info("🔥 巨鲸交易监听服务已启动，开始监控链上日志...")
	logger.Info("📊 阈值",
		logger.Float64("swap_usd_floor", cfg.Thresholds.SwapUSDFloor),
		logger.Float64("transfer_usd_floor", cfg.Thresholds.TransferUSDFloor),
		logger.Float64("min_percent_supply", cfg.Thresholds.MinPercentSupply))
	logger.Info("👀 监控名单", logger.Int("tokens", app.watchlist.Current().Len()))

	app.waitForShutdown()
	return nil
}

// waitForShutdown 等待关闭信号
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	logger.Info("📤 收到终止信号，开始优雅关闭应用...", logger.String("signal", sig.String()))

	if err := app.Shutdown(); err != nil {
		logger.Error("关闭过程中出现错误", logger.FieldErr(err))
	}
}

// Shutdown 按依赖反序关闭各组件
func (app *Application) Shutdown() error {
	logger.Info("🛑 开始关闭巨鲸交易监听服务...")
	var merr error

	if app.watchlist != nil {
		app.watchlist.Stop()
	}
	// 管道负责停止订阅并等待在途日志
	if app.pipeline != nil {
		if err := app.pipeline.Stop(); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	if app.publishers != nil {
		if err := app.publishers.Stop(); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	if app.kafkaProducer != nil {
		if err := app.kafkaProducer.Close(); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("close kafka producer: %w", err))
		}
	}
	if app.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := app.metricsServer.Stop(ctx); err != nil {
			merr = multierror.Append(merr, err)
		}
		cancel()
	}
	if app.rpcClient != nil {
		app.rpcClient.Close()
	}
	app.cancel()

	if err := polardbx.Stop(); err != nil {
		merr = multierror.Append(merr, err)
	}

	if app.pipeline != nil {
		stats := app.pipeline.GetStats()
		logger.Info("📈 服务运行统计",
			logger.Int64("logs_received", stats.LogsReceived),
			logger.Int64("events_decoded", stats.EventsDecoded),
			logger.Int64("whales_persisted", stats.WhalesPersisted),
			logger.Int64("duplicates", stats.Duplicates),
			logger.Int64("decode_errors", stats.DecodeErrors),
			logger.Int64("panics", stats.Panics))
	}

	logger.Info("✨ 巨鲸交易监听服务已关闭")
	logger.Close()
	return merr
}

// Start 初始化并运行
func (app *Application) Start(configPath string) error {
	if err := app.Initialize(configPath); err != nil {
		logger.Error("❌ 巨鲸交易监听服务初始化失败", logger.FieldErr(err))
		_ = app.Shutdown()
		return err
	}

	if err := app.Run(); err != nil {
		logger.Error("❌ 巨鲸交易监听服务运行失败", logger.FieldErr(err))
		_ = app.Shutdown()
		return err
	}
	return nil
}

// GetPipeline 获取数据处理管道
func (app *Application) GetPipeline() *pipeline.Pipeline {
	return app.pipeline
}

// GetConfigManager 获取配置管理器
func (app *Application) GetConfigManager() *config.Manager {
	return app.configManager
}
