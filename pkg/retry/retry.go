package retry

import (
	"context"
	"errors"
	"time"

	"github.com/ninja0404/whale-signal/pkg/clock"
)

// Class 失败分类
type Class int

const (
	// Transient 可重试，按常规退避
	Transient Class = iota
	// RateLimited 被限流，按更长的退避重试
	RateLimited
	// Terminal 不可重试，立即放弃
	Terminal
)

func (c Class) String() string {
	switch c {
	case RateLimited:
		return "rate_limited"
	case Terminal:
		return "terminal"
	default:
		return "transient"
	}
}

type classified struct {
	class Class
	err   error
}

func (c *classified) Error() string { return c.err.Error() }
func (c *classified) Unwrap() error { return c.err }

// MarkTerminal 标记为不可重试
func MarkTerminal(err error) error {
	if err == nil {
		return nil
	}
	return &classified{class: Terminal, err: err}
}

// MarkRateLimited 标记为限流
func MarkRateLimited(err error) error {
	if err == nil {
		return nil
	}
	return &classified{class: RateLimited, err: err}
}

// Classify 未标记的错误视为 Transient
func Classify(err error) Class {
	var c *classified
	if errors.As(err, &c) {
		return c.class
	}
	return Transient
}

// Backoff 第 attempt 次失败后的等待时长，attempt 从 1 开始
type Backoff func(attempt int) time.Duration

// Linear step, 2*step, 3*step ... 不超过 max
func Linear(step, max time.Duration) Backoff {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		d := time.Duration(attempt) * step
		if max > 0 && d > max {
			return max
		}
		return d
	}
}

// Exponential base, 2*base, 4*base ... 不超过 max
func Exponential(base, max time.Duration) Backoff {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		d := base
		for i := 1; i < attempt; i++ {
			d *= 2
			if max > 0 && d >= max {
				return max
			}
		}
		if max > 0 && d > max {
			return max
		}
		return d
	}
}

// Policy 有限次重试策略
type Policy struct {
	MaxAttempts    int
	Delay          Backoff
	RateLimitDelay Backoff
	Clock          clock.Clock
}

// Do 执行 fn 直到成功、遇到 Terminal 错误、次数用尽或 ctx 取消，返回最后一次错误
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.Real()
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(ctx, attempt); err == nil {
			return nil
		}

		class := Classify(err)
		if class == Terminal || attempt == maxAttempts {
			return err
		}

		wait := p.delay(class, attempt)
		if sleepErr := clock.Sleep(ctx, clk, wait); sleepErr != nil {
			return sleepErr
		}
	}
	return err
}

func (p Policy) delay(class Class, attempt int) time.Duration {
	if class == RateLimited && p.RateLimitDelay != nil {
		return p.RateLimitDelay(attempt)
	}
	if p.Delay != nil {
		return p.Delay(attempt)
	}
	return 0
}
