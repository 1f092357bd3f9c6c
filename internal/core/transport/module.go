// Package transport 实现总线连接的传输会话
package transport

import (
	"crypto/tls"

	"go.uber.org/fx"
)

// ============================================================================
//                              配置
// ============================================================================

// Config 传输配置
type Config struct {
	// Addr host:port 形式的服务端地址（TCP）
	Addr string

	// WebsocketURL 非空时使用 WebSocket 而非 TCP
	WebsocketURL string

	// TLSConfig 可选的 TLS 配置，由调用方构造
	TLSConfig *tls.Config

	// MaxFrame 最大帧长度，0 表示默认
	MaxFrame uint32

	// Dialer 自定义流工厂，设置后覆盖 Addr/WebsocketURL
	Dialer Dialer
}

// NewDialer 根据配置选择流工厂
func NewDialer(cfg Config) Dialer {
	if cfg.Dialer != nil {
		return cfg.Dialer
	}
	if cfg.WebsocketURL != "" {
		return &WebsocketDialer{URL: cfg.WebsocketURL, TLSConfig: cfg.TLSConfig}
	}
	return &TCPDialer{Addr: cfg.Addr, TLSConfig: cfg.TLSConfig}
}

// ============================================================================
//                              Fx 模块
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	// Config 传输配置
	Config Config
}

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	// Dialer 流工厂
	Dialer Dialer
}

// provideDialer 构造流工厂
func provideDialer(in ModuleInput) ModuleOutput {
	return ModuleOutput{Dialer: NewDialer(in.Config)}
}

// Module 返回传输模块
func Module() fx.Option {
	return fx.Module("transport",
		fx.Provide(provideDialer),
	)
}
