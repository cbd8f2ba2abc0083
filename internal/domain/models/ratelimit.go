package models

import (
	"math"
	"time"
)

// StrategyType selects the counting algorithm of a policy. The set is closed.
// StrategyType 选择策略的计数算法，取值集合是封闭的。
type StrategyType string

const (
	// StrategySlidingWindow counts timestamps within the last N seconds.
	// StrategySlidingWindow 统计最近 N 秒内的时间戳。
	StrategySlidingWindow StrategyType = "sliding_window"
	// StrategyFixedWindow counts requests in windows anchored at first use.
	// StrategyFixedWindow 统计从首次使用开始计时的固定窗口内的请求。
	StrategyFixedWindow StrategyType = "fixed_window"
)

// Valid reports whether the strategy is one of the known algorithms.
func (s StrategyType) Valid() bool {
	return s == StrategySlidingWindow || s == StrategyFixedWindow
}

// Policy describes one rate budget. Zero-valued fields mean "not set" so that
// policies can be layered by the resolver; FailOpen is a pointer for the same reason.
// Policy 描述一个限流预算。零值字段表示"未设置"，以便由解析器分层合并。
type Policy struct {
	// Strategy is the counting algorithm.
	Strategy StrategyType `mapstructure:"strategy" json:"strategy,omitempty"`
	// Limit is the number of points allowed per window.
	Limit int `mapstructure:"limit" json:"limit,omitempty"`
	// WindowSeconds is the window length.
	WindowSeconds int `mapstructure:"window_seconds" json:"window_seconds,omitempty"`
	// KeyPrefix is prepended to every store key built for this policy.
	KeyPrefix string `mapstructure:"key_prefix" json:"key_prefix,omitempty"`
	// FailOpen decides the outcome when the store is unreachable. nil means true.
	FailOpen *bool `mapstructure:"fail_open" json:"fail_open,omitempty"`
	// ConsumePoints is the default cost of one operation. 0 means 1.
	ConsumePoints int `mapstructure:"consume_points" json:"consume_points,omitempty"`
}

// IsFailOpen returns the effective fail-open flag.
func (p Policy) IsFailOpen() bool {
	return p.FailOpen == nil || *p.FailOpen
}

// Points returns the effective consume cost.
func (p Policy) Points() int {
	if p.ConsumePoints <= 0 {
		return 1
	}
	return p.ConsumePoints
}

// Window returns the window as a duration.
func (p Policy) Window() time.Duration {
	return time.Duration(p.WindowSeconds) * time.Second
}

// Resolvable reports whether the policy can be enforced at all.
func (p Policy) Resolvable() bool {
	return p.Limit > 0 && p.WindowSeconds > 0
}

// Merge returns p overlaid with every non-zero field of o (shallow, o wins).
func (p Policy) Merge(o Policy) Policy {
	if o.Strategy != "" {
		p.Strategy = o.Strategy
	}
	if o.Limit != 0 {
		p.Limit = o.Limit
	}
	if o.WindowSeconds != 0 {
		p.WindowSeconds = o.WindowSeconds
	}
	if o.KeyPrefix != "" {
		p.KeyPrefix = o.KeyPrefix
	}
	if o.FailOpen != nil {
		v := *o.FailOpen
		p.FailOpen = &v
	}
	if o.ConsumePoints != 0 {
		p.ConsumePoints = o.ConsumePoints
	}
	return p
}

// BoolPtr is a helper for building policies in code and tests.
func BoolPtr(v bool) *bool {
	return &v
}

// CheckOptions carries the per-call knobs of a limit check.
// CheckOptions 携带单次限流检查的参数。
type CheckOptions struct {
	// Context selects the per-surface policy override (http, websocket, notification).
	Context string
	// Identifier is informational; it is logged and attached to spans.
	Identifier string
	// ConsumePoints overrides the policy's cost when > 0.
	ConsumePoints int
	// DryRun evaluates the check without consuming anything.
	DryRun bool
}

// Result is the normalized outcome of a check.
// Result 是限流检查的标准化结果。
type Result struct {
	Allowed bool `json:"allowed"`
	// Remaining is never negative and never greater than Limit.
	Remaining int `json:"remaining"`
	Limit     int `json:"limit"`
	// ResetTime is epoch milliseconds; 0 when unknown.
	ResetTime int64 `json:"reset_time,omitempty"`
	// RetryAfter is in milliseconds; always > 0 when Allowed is false.
	RetryAfter int64 `json:"retry_after,omitempty"`
}

// Normalize enforces the Result invariants against the given policy.
func (r *Result) Normalize(p Policy) *Result {
	if r.Limit <= 0 {
		r.Limit = p.Limit
	}
	if r.Remaining < 0 {
		r.Remaining = 0
	}
	if r.Remaining > r.Limit {
		r.Remaining = r.Limit
	}
	if !r.Allowed && r.RetryAfter <= 0 {
		r.RetryAfter = int64(p.WindowSeconds) * 1000
	}
	if r.Allowed {
		r.RetryAfter = 0
	}
	return r
}

// ResetUnix returns ResetTime in unix seconds, rounded up.
func (r *Result) ResetUnix() int64 {
	if r.ResetTime <= 0 {
		return 0
	}
	return int64(math.Ceil(float64(r.ResetTime) / 1000))
}

// RetryAfterSeconds returns the retry hint in whole seconds, rounded up and at least 1,
// preferring the exact time left until ResetTime over the engine-supplied RetryAfter.
func (r *Result) RetryAfterSeconds(now time.Time) int64 {
	var ms int64
	if r.ResetTime > 0 {
		ms = r.ResetTime - now.UnixMilli()
	}
	if ms <= 0 {
		ms = r.RetryAfter
	}
	secs := int64(math.Ceil(float64(ms) / 1000))
	if secs < 1 {
		secs = 1
	}
	return secs
}
