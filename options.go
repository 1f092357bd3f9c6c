package feedbus

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-feedbus/internal/core/auth"
	"github.com/dep2p/go-feedbus/internal/core/engine"
	"github.com/dep2p/go-feedbus/internal/core/transport"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	// 端点配置
	addr         string
	websocketURL string
	tlsConfig    *tls.Config
	dialer       Dialer

	// 帧与队列配置
	maxFrame  uint32
	queueSize int

	// 认证配置
	authenticator Authenticator

	// 授权响应缓存配置
	authorization struct {
		cacheTTL  time.Duration
		cacheSize int
	}

	// 心跳监控配置
	heartbeat struct {
		enable  bool
		timeout time.Duration
	}

	// 时钟注入点（测试用）
	clock clock.Clock
}

// newOptions 创建默认选项
func newOptions() *options {
	return &options{}
}

// validate 校验选项组合
func (o *options) validate() error {
	if o.addr == "" && o.websocketURL == "" && o.dialer == nil {
		return ErrMissingEndpoint
	}
	return nil
}

// transportConfig 转换为传输配置
func (o *options) transportConfig() transport.Config {
	return transport.Config{
		Addr:         o.addr,
		WebsocketURL: o.websocketURL,
		TLSConfig:    o.tlsConfig,
		MaxFrame:     o.maxFrame,
		Dialer:       o.dialer,
	}
}

// engineConfig 转换为引擎配置
func (o *options) engineConfig() engine.Config {
	return engine.Config{
		Authenticator:          o.authenticator,
		MaxFrame:               o.maxFrame,
		QueueSize:              o.queueSize,
		AuthorizationCacheTTL:  o.authorization.cacheTTL,
		AuthorizationCacheSize: o.authorization.cacheSize,
		Heartbeat:              o.heartbeat.enable,
		HeartbeatTimeout:       o.heartbeat.timeout,
		Clock:                  o.clock,
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              端点选项
// ════════════════════════════════════════════════════════════════════════════

// WithAddress 设置 host:port 形式的服务端地址（TCP）
func WithAddress(addr string) Option {
	return func(o *options) error {
		o.addr = addr
		return nil
	}
}

// WithWebsocketURL 使用 WebSocket 传输
//
// url 为 ws:// 或 wss:// 地址，设置后优先于 TCP 地址。
func WithWebsocketURL(url string) Option {
	return func(o *options) error {
		o.websocketURL = url
		return nil
	}
}

// WithTLSConfig 设置 TLS 配置
//
// 配置由调用方构造，客户端不做任何证书决策。
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *options) error {
		o.tlsConfig = cfg
		return nil
	}
}

// WithDialer 使用自定义流工厂
//
// 设置后覆盖地址与 WebSocket 配置。
func WithDialer(d Dialer) Option {
	return func(o *options) error {
		o.dialer = d
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              认证选项
// ════════════════════════════════════════════════════════════════════════════

// WithAuthenticator 使用自定义认证策略
func WithAuthenticator(a Authenticator) Option {
	return func(o *options) error {
		o.authenticator = a
		return nil
	}
}

// WithBasicAuth 使用用户名/密码认证
func WithBasicAuth(username, password string, attrs ...AuthAttributes) Option {
	return func(o *options) error {
		a, err := auth.NewBasic(username, password, attrs...)
		if err != nil {
			return err
		}
		o.authenticator = a
		return nil
	}
}

// WithTokenAuth 使用 bearer token 认证
func WithTokenAuth(token string, attrs ...AuthAttributes) Option {
	return func(o *options) error {
		a, err := auth.NewToken(token, attrs...)
		if err != nil {
			return err
		}
		o.authenticator = a
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              行为选项
// ════════════════════════════════════════════════════════════════════════════

// WithMaxFrame 设置最大帧长度
func WithMaxFrame(n uint32) Option {
	return func(o *options) error {
		o.maxFrame = n
		return nil
	}
}

// WithWriteQueueSize 设置出站队列容量
func WithWriteQueueSize(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return fmt.Errorf("%w: write queue size must be positive", ErrConfiguration)
		}
		o.queueSize = n
		return nil
	}
}

// WithAuthorizationCache 启用授权响应缓存
//
// 有效期内对同一 (clientID, feed, topic) 的重复授权请求
// 由客户端直接应答，不再触发授权回调。
func WithAuthorizationCache(ttl time.Duration) Option {
	return func(o *options) error {
		if ttl <= 0 {
			return fmt.Errorf("%w: authorization cache ttl must be positive", ErrConfiguration)
		}
		o.authorization.cacheTTL = ttl
		return nil
	}
}

// WithHeartbeatMonitor 启用心跳监控
//
// timeout 为 0 时使用默认超时。
func WithHeartbeatMonitor(timeout time.Duration) Option {
	return func(o *options) error {
		o.heartbeat.enable = true
		o.heartbeat.timeout = timeout
		return nil
	}
}

// WithUserConfig 应用 JSON 加载的用户配置
//
// 在它之后的选项覆盖配置文件的同名字段。
func WithUserConfig(cfg *UserConfig) Option {
	return func(o *options) error {
		return cfg.apply(o)
	}
}
