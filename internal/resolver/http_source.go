package resolver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ninja0404/whale-signal/pkg/retry"
)

// NewHTTPClient 价格源共用的 resty 客户端，重试由 PriceResolver 负责
func NewHTTPClient(timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return resty.New().
		SetTransport(&http.Transport{Proxy: http.ProxyFromEnvironment}).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
}

// classifyStatus 429 为限流，5xx 可重试，其余非 200 直接放弃该源
func classifyStatus(source string, code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusTooManyRequests:
		return retry.MarkRateLimited(fmt.Errorf("%s: %w", source, ErrRateLimited))
	case code >= http.StatusInternalServerError:
		return fmt.Errorf("%s: unexpected status code: %d", source, code)
	default:
		return retry.MarkTerminal(fmt.Errorf("%s: unexpected status code: %d", source, code))
	}
}
