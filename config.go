package feedbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dep2p/go-feedbus/internal/core/auth"
)

// ════════════════════════════════════════════════════════════════════════════
//                              用户配置
// ════════════════════════════════════════════════════════════════════════════

// UserConfig JSON 可加载的客户端配置
//
// 客户端不做文件 I/O：调用方自行读取字节后交给
// ParseUserConfig，再通过 WithUserConfig 应用。
type UserConfig struct {
	// Addr host:port 形式的服务端地址（TCP）
	Addr string `json:"addr,omitempty"`

	// WebsocketURL ws:// 或 wss:// 地址，设置后优先于 TCP
	WebsocketURL string `json:"websocket_url,omitempty"`

	// MaxFrame 最大帧长度，0 表示默认
	MaxFrame uint32 `json:"max_frame,omitempty"`

	// QueueSize 出站队列容量，0 表示默认
	QueueSize int `json:"queue_size,omitempty"`

	// Authentication 认证配置
	Authentication *AuthenticationConfig `json:"authentication,omitempty"`

	// Authorization 授权响应缓存配置
	Authorization AuthorizationConfig `json:"authorization,omitempty"`

	// Heartbeat 心跳监控配置
	Heartbeat HeartbeatConfig `json:"heartbeat,omitempty"`
}

// AuthenticationConfig 认证配置
type AuthenticationConfig struct {
	// Scheme 方案名称: none, basic, bearer 或已注册的自定义方案
	Scheme string `json:"scheme"`

	// Settings 方案参数，如 basic 的 username/password
	Settings map[string]string `json:"settings,omitempty"`
}

// AuthorizationConfig 授权响应缓存配置
type AuthorizationConfig struct {
	// CacheTTL 缓存有效期，0 禁用缓存
	CacheTTL Duration `json:"cache_ttl,omitempty"`

	// CacheSize 缓存容量，0 表示默认
	CacheSize int `json:"cache_size,omitempty"`
}

// HeartbeatConfig 心跳监控配置
type HeartbeatConfig struct {
	// Enable 是否启用
	Enable bool `json:"enable,omitempty"`

	// Timeout 心跳超时，0 表示默认
	Timeout Duration `json:"timeout,omitempty"`
}

// ParseUserConfig 解析 JSON 配置
func ParseUserConfig(data []byte) (*UserConfig, error) {
	var cfg UserConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// apply 将配置写入选项
func (c *UserConfig) apply(o *options) error {
	if c.Addr != "" {
		o.addr = c.Addr
	}
	if c.WebsocketURL != "" {
		o.websocketURL = c.WebsocketURL
	}
	if c.MaxFrame > 0 {
		o.maxFrame = c.MaxFrame
	}
	if c.QueueSize > 0 {
		o.queueSize = c.QueueSize
	}
	if c.Authentication != nil {
		a, err := auth.New(c.Authentication.Scheme, c.Authentication.Settings)
		if err != nil {
			return err
		}
		o.authenticator = a
	}
	if c.Authorization.CacheTTL > 0 {
		o.authorization.cacheTTL = c.Authorization.CacheTTL.Duration()
		o.authorization.cacheSize = c.Authorization.CacheSize
	}
	if c.Heartbeat.Enable {
		o.heartbeat.enable = true
		o.heartbeat.timeout = c.Heartbeat.Timeout.Duration()
	}
	return nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              Duration
// ════════════════════════════════════════════════════════════════════════════

// Duration JSON 友好的时长
//
// 接受 "30s" 形式的字符串或纳秒数。
type Duration time.Duration

// Duration 转换为 time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// MarshalJSON 编码为字符串形式
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON 解码字符串或纳秒数
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", value, err)
		}
		*d = Duration(parsed)
		return nil
	default:
		return fmt.Errorf("invalid duration value %v", v)
	}
}
