package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/ninja0404/whale-signal/internal/classifier"
	"github.com/ninja0404/whale-signal/internal/common"
	"github.com/ninja0404/whale-signal/internal/decoder"
	"github.com/ninja0404/whale-signal/internal/detector"
	"github.com/ninja0404/whale-signal/internal/metrics"
	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/internal/source"
	"github.com/ninja0404/whale-signal/pkg/logger"
	"github.com/ninja0404/whale-signal/pkg/utils"
)

const (
	DefaultMaxInflight   = 1_000
	DefaultHandleTimeout = 60 * time.Second
)

// Watchlist 解码与分类需要的名单查询
type Watchlist interface {
	TokenByAddress(addr ethcommon.Address) (model.WatchedToken, bool)
	TokenByPool(addr ethcommon.Address) (model.WatchedToken, bool)
	IsPool(addr ethcommon.Address) bool
}

// Resolver 元数据与价格，失败时内部兜底
type Resolver interface {
	Resolve(ctx context.Context, token model.WatchedToken) (model.TokenMetadata, model.PriceQuote)
	IsStablecoin(token model.WatchedToken) bool
}

// Sink 落库与通知
type Sink interface {
	Persist(ctx context.Context, tx *model.WhaleTransaction) (bool, error)
	Notify(ctx context.Context, tx *model.WhaleTransaction)
}

// Outcome 单条日志的处理结果
type Outcome int

const (
	Ignored Outcome = iota
	DecodeFailed
	Unclassified
	BelowThreshold
	Duplicate
	StoreFailed
	Persisted
)

func (o Outcome) String() string {
	switch o {
	case DecodeFailed:
		return "decode_failed"
	case Unclassified:
		return "unclassified"
	case BelowThreshold:
		return "below_threshold"
	case Duplicate:
		return "duplicate"
	case StoreFailed:
		return "store_failed"
	case Persisted:
		return "persisted"
	default:
		return "ignored"
	}
}

// Options 管道参数
type Options struct {
	MaxInflight   int
	HandleTimeout time.Duration
	Metrics       *metrics.Metrics
}

// Pipeline 数据处理管道：订阅 → 解码 → 分类 → 解析价格 → 阈值与去重 → 落库与通知
type Pipeline struct {
	source    source.LogSource
	registry  *decoder.Registry
	watchlist func() Watchlist
	resolver  Resolver
	detector  *detector.Detector
	sink      Sink
	metrics   *metrics.Metrics

	handleTimeout time.Duration
	sem           chan struct{}

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
	started  atomic.Bool

	stats counters
}

type counters struct {
	received       atomic.Int64
	decoded        atomic.Int64
	decodeErrors   atomic.Int64
	belowThreshold atomic.Int64
	duplicates     atomic.Int64
	whales         atomic.Int64
	storeFailures  atomic.Int64
	priceFallbacks atomic.Int64
	panics         atomic.Int64
}

// NewPipeline 创建数据处理管道
func NewPipeline(
	src source.LogSource,
	registry *decoder.Registry,
	watchlist func() Watchlist,
	resolver Resolver,
	det *detector.Detector,
	sink Sink,
	opts Options,
) *Pipeline {
	if opts.MaxInflight <= 0 {
		opts.MaxInflight = DefaultMaxInflight
	}
	if opts.HandleTimeout <= 0 {
		opts.HandleTimeout = DefaultHandleTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		source:        src,
		registry:      registry,
		watchlist:     watchlist,
		resolver:      resolver,
		detector:      det,
		sink:          sink,
		metrics:       opts.Metrics,
		handleTimeout: opts.HandleTimeout,
		sem:           make(chan struct{}, opts.MaxInflight),
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
}

// Start 开始消费日志，订阅需已由调用方启动
func (p *Pipeline) Start() error {
	if !p.started.CompareAndSwap(false, true) {
		return fmt.Errorf("pipeline already started")
	}
	logger.Info("启动数据处理管道")
	go p.dispatch()
	logger.Info("数据处理管道已启动")
	return nil
}

// Stop 停止订阅，等待在途日志处理完成
func (p *Pipeline) Stop() error {
	var err error
	p.stopOnce.Do(func() {
		logger.Info("停止数据处理管道")

		if stopErr := p.source.Stop(); stopErr != nil {
			err = fmt.Errorf("stop log source: %w", stopErr)
		}
		if p.started.Load() {
			<-p.done
		}
		p.wg.Wait()
		p.cancel()

		stats := p.GetStats()
		logger.Info("数据处理管道已停止",
			logger.Int64("logs_received", stats.LogsReceived),
			logger.Int64("events_decoded", stats.EventsDecoded),
			logger.Int64("whales_persisted", stats.WhalesPersisted),
			logger.Int64("duplicates", stats.Duplicates),
			logger.Int64("decode_errors", stats.DecodeErrors),
			logger.Int64("store_failures", stats.StoreFailures))
	})
	return err
}

// dispatch 每条日志一个协程，在途数量受 MaxInflight 限制
func (p *Pipeline) dispatch() {
	defer close(p.done)

	for raw := range p.source.Logs() {
		p.sem <- struct{}{}
		p.wg.Add(1)
		go p.handleLog(raw)
	}
}

func (p *Pipeline) handleLog(raw *model.RawLog) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.stats.panics.Add(1)
			if p.metrics != nil {
				p.metrics.HandlerPanics.Inc()
			}
			logger.Error("💥 处理日志时发生panic",
				logger.String("id", raw.ID()),
				logger.Any("panic", r),
				logger.ByteString("stack", utils.GetStack()))
		}
		if p.metrics != nil {
			p.metrics.HandleDuration.Observe(time.Since(start).Seconds())
		}
		<-p.sem
		p.wg.Done()
	}()

	ctx, cancel := context.WithTimeout(p.ctx, p.handleTimeout)
	defer cancel()
	p.HandleLog(ctx, raw)
}

// HandleLog 同步处理一条日志，任何错误都在内部消化
func (p *Pipeline) HandleLog(ctx context.Context, raw *model.RawLog) Outcome {
	p.stats.received.Add(1)
	if p.metrics != nil {
		p.metrics.LogsReceived.Inc()
	}

	wl := p.watchlist()
	event, token, err := p.registry.Decode(raw, wl)
	if err != nil {
		p.stats.decodeErrors.Add(1)
		if p.metrics != nil {
			p.metrics.DecodeErrors.Inc()
		}
		logger.Warn("⚠️ 日志解码失败，已跳过",
			logger.FieldTxHash(raw.TxHash.Hex()),
			logger.Uint("log_index", raw.LogIndex),
			logger.FieldErr(err))
		return DecodeFailed
	}
	if event == nil {
		return Ignored
	}
	p.stats.decoded.Add(1)
	if p.metrics != nil {
		p.metrics.EventsDecoded.WithLabelValues(event.Kind().String()).Inc()
	}

	class := classifier.Classify(event, *token, wl, p.resolver.IsStablecoin(*token))
	if class.Action == common.UnknownAction {
		logger.Debug("无法判断交易方向，已跳过",
			logger.String("id", raw.ID()),
			logger.String("symbol", token.Symbol))
		return Unclassified
	}

	metadata, quote := p.resolver.Resolve(ctx, *token)
	if !quote.Known() {
		p.stats.priceFallbacks.Add(1)
		if p.metrics != nil {
			p.metrics.PriceFallbacks.Inc()
		}
	}

	tx, verdict, err := p.detector.Detect(ctx, detector.Input{
		Log:      raw,
		Kind:     event.Kind(),
		Token:    *token,
		Class:    class,
		Metadata: metadata,
		Quote:    quote,
	})
	if err != nil {
		p.storeFailed(raw, err)
		return StoreFailed
	}

	switch verdict {
	case detector.Unclassified:
		return Unclassified
	case detector.BelowThreshold:
		p.stats.belowThreshold.Add(1)
		if p.metrics != nil {
			p.metrics.BelowThreshold.Inc()
		}
		return BelowThreshold
	case detector.Duplicate:
		p.duplicate(tx)
		return Duplicate
	}

	inserted, err := p.sink.Persist(ctx, tx)
	if err != nil {
		p.storeFailed(raw, err)
		return StoreFailed
	}
	if !inserted {
		p.duplicate(tx)
		return Duplicate
	}

	p.stats.whales.Add(1)
	if p.metrics != nil {
		p.metrics.WhalesPersisted.WithLabelValues(tx.EventKind, tx.Action.String()).Inc()
	}
	logger.Info(fmt.Sprintf("%s 巨鲸交易已记录", tx.Action.Emoji()),
		logger.String("id", tx.ID),
		logger.String("symbol", tx.Symbol),
		logger.FieldAction(tx.Action.String()),
		logger.String("amount_usd", tx.AmountUSD.StringFixed(2)),
		logger.String("percent_supply", tx.PercentSupply.String()))

	p.sink.Notify(ctx, tx)
	return Persisted
}

func (p *Pipeline) duplicate(tx *model.WhaleTransaction) {
	p.stats.duplicates.Add(1)
	if p.metrics != nil {
		p.metrics.Duplicates.Inc()
	}
	logger.Debug("⏭️ 重复交易，已跳过", logger.String("id", tx.ID))
}

func (p *Pipeline) storeFailed(raw *model.RawLog, err error) {
	p.stats.storeFailures.Add(1)
	if p.metrics != nil {
		p.metrics.PersistFailures.Inc()
	}
	logger.Error("❌ 巨鲸交易写入失败，已丢弃",
		logger.String("id", raw.ID()),
		logger.FieldErr(err))
}

// Stats 管道统计信息
type Stats struct {
	LogsReceived    int64 `json:"logs_received"`
	EventsDecoded   int64 `json:"events_decoded"`
	DecodeErrors    int64 `json:"decode_errors"`
	BelowThreshold  int64 `json:"below_threshold"`
	Duplicates      int64 `json:"duplicates"`
	WhalesPersisted int64 `json:"whales_persisted"`
	StoreFailures   int64 `json:"store_failures"`
	PriceFallbacks  int64 `json:"price_fallbacks"`
	Panics          int64 `json:"panics"`
}

// GetStats 获取管道统计信息
func (p *Pipeline) GetStats() *Stats {
	return &Stats{
		LogsReceived:    p.stats.received.Load(),
		EventsDecoded:   p.stats.decoded.Load(),
		DecodeErrors:    p.stats.decodeErrors.Load(),
		BelowThreshold:  p.stats.belowThreshold.Load(),
		Duplicates:      p.stats.duplicates.Load(),
		WhalesPersisted: p.stats.whales.Load(),
		StoreFailures:   p.stats.storeFailures.Load(),
		PriceFallbacks:  p.stats.priceFallbacks.Load(),
		Panics:          p.stats.panics.Load(),
	}
}
