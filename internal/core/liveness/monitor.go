// Package liveness 实现心跳存活监控
//
// 总线服务端在 __admin__/heartbeat 上周期性发布心跳。
// 启用监控后，引擎订阅该主题并把每次心跳喂给 Monitor；
// 心跳超时只产生告警与状态翻转，不会主动断开连接——
// 是否放弃连接是调用方的策略。
package liveness

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-feedbus/internal/util/logger"
)

var log = logger.Logger("liveness")

// 心跳主题
const (
	// HeartbeatFeed 心跳 feed
	HeartbeatFeed = "__admin__"

	// HeartbeatTopic 心跳 topic
	HeartbeatTopic = "heartbeat"
)

// DefaultTimeout 默认心跳超时
const DefaultTimeout = 30 * time.Second

// Config 监控配置
type Config struct {
	// Timeout 心跳超时，0 表示 DefaultTimeout
	Timeout time.Duration

	// OnStale 心跳超时回调（可选）
	OnStale func()
}

// Monitor 心跳监控器
//
// 并发安全。Beat 重置超时计时器；计时器到期时 Alive
// 翻转为 false 并触发告警，下一次 Beat 恢复。
type Monitor struct {
	clk     clock.Clock
	timeout time.Duration
	onStale func()

	mu    sync.Mutex
	timer *clock.Timer

	alive atomic.Bool
}

// New 创建监控器
//
// clk 为 nil 时使用真实时钟；测试可注入 clock.Mock。
func New(cfg Config, clk clock.Clock) *Monitor {
	if clk == nil {
		clk = clock.New()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Monitor{
		clk:     clk,
		timeout: timeout,
		onStale: cfg.OnStale,
	}
}

// Start 启动监控
//
// 从启动时刻开始计时：超时内没有任何心跳同样告警。
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.timer != nil {
		return
	}
	m.alive.Store(true)
	m.timer = m.clk.AfterFunc(m.timeout, m.stale)
}

// Stop 停止监控
//
// 幂等。停止后 Beat 仍可调用但不再计时。
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// Beat 记录一次心跳
func (m *Monitor) Beat() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.alive.Swap(true) {
		log.Info("heartbeat resumed")
	}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = m.clk.AfterFunc(m.timeout, m.stale)
	}
}

// Alive 返回当前存活状态
func (m *Monitor) Alive() bool {
	return m.alive.Load()
}

// stale 心跳超时
func (m *Monitor) stale() {
	if m.alive.Swap(false) {
		log.Warn("heartbeat stale", "timeout", m.timeout)
		if m.onStale != nil {
			m.onStale()
		}
	}
}
