package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ninja0404/whale-signal/internal/source"
	"github.com/ninja0404/whale-signal/pkg/logger"
	"github.com/ninja0404/whale-signal/pkg/retry"
)

const namespace = "whale_signal"

// Metrics 进程内所有指标，注册在独立的 Registry 上
type Metrics struct {
	registry *prometheus.Registry

	LogsReceived      prometheus.Counter
	LogsDropped       prometheus.Counter
	EventsDecoded     *prometheus.CounterVec
	DecodeErrors      prometheus.Counter
	WhalesPersisted   *prometheus.CounterVec
	Duplicates        prometheus.Counter
	BelowThreshold    prometheus.Counter
	PersistFailures   prometheus.Counter
	HandlerPanics     prometheus.Counter
	Reconnects        prometheus.Counter
	PriceFallbacks    prometheus.Counter
	PriceSourceErrors *prometheus.CounterVec
	SubscriptionState prometheus.Gauge
	WatchedTokens     prometheus.Gauge
	HandleDuration    prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		LogsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "logs_received_total",
			Help: "Raw logs received from the subscription.",
		}),
		LogsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "logs_dropped_total",
			Help: "Raw logs dropped because the output buffer was full.",
		}),
		EventsDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_decoded_total",
			Help: "Decoded events by kind.",
		}, []string{"kind"}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "decode_errors_total",
			Help: "Logs with a registered signature that failed to decode.",
		}),
		WhalesPersisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "whales_persisted_total",
			Help: "Whale transactions written to the store.",
		}, []string{"kind", "action"}),
		Duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "duplicates_total",
			Help: "Qualified transactions skipped because the id already exists.",
		}),
		BelowThreshold: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "below_threshold_total",
			Help: "Classified events that did not meet any threshold.",
		}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "persist_failures_total",
			Help: "Whale transactions dropped after a failed write.",
		}),
		HandlerPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "handler_panics_total",
			Help: "Recovered panics in log handlers.",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "reconnects_total",
			Help: "Successful subscription reconnects.",
		}),
		PriceFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "price_fallbacks_total",
			Help: "Events resolved with an unknown price.",
		}),
		PriceSourceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "price_source_errors_total",
			Help: "Price source lookups that failed after retries.",
		}, []string{"source", "class"}),
		SubscriptionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "subscription_state",
			Help: "0=stopped 1=starting 2=running 3=reconnecting 4=stopping.",
		}),
		WatchedTokens: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "watched_tokens",
			Help: "Tokens in the current watchlist.",
		}),
		HandleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "handle_duration_seconds",
			Help:    "Time spent handling one log end to end.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}

	m.registry.MustRegister(
		m.LogsReceived, m.LogsDropped, m.EventsDecoded, m.DecodeErrors,
		m.WhalesPersisted, m.Duplicates, m.BelowThreshold, m.PersistFailures,
		m.HandlerPanics, m.Reconnects, m.PriceFallbacks, m.PriceSourceErrors,
		m.SubscriptionState, m.WatchedTokens, m.HandleDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) OnStateChange(state source.State) {
	m.SubscriptionState.Set(float64(state))
}

func (m *Metrics) OnReconnect() {
	m.Reconnects.Inc()
}

func (m *Metrics) OnDrop() {
	m.LogsDropped.Inc()
}

// OnPriceSourceFailure 作为 resolver.SourceFailureHook 使用
func (m *Metrics) OnPriceSourceFailure(source string, class retry.Class) {
	m.PriceSourceErrors.WithLabelValues(source, class.String()).Inc()
}

// Server /metrics HTTP 服务
type Server struct {
	srv *http.Server
}

func NewServer(addr string, m *Metrics) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

func (s *Server) Start() {
	go func() {
		logger.Info("📈 metrics 服务已启动", logger.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("❌ metrics 服务异常退出", logger.FieldErr(err))
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
