package feedbus

import (
	"errors"

	"github.com/dep2p/go-feedbus/internal/core/auth"
	"github.com/dep2p/go-feedbus/internal/core/engine"
	"github.com/dep2p/go-feedbus/internal/core/transport"
	"github.com/dep2p/go-feedbus/internal/core/wire"
)

// ════════════════════════════════════════════════════════════════════════════
//                              配置错误
// ════════════════════════════════════════════════════════════════════════════

var (
	// ErrMissingEndpoint 未配置服务端地址、WebSocket URL 或自定义拨号器
	ErrMissingEndpoint = errors.New("feedbus: no address, websocket url, or dialer configured")

	// ErrConfiguration 认证器配置无效
	ErrConfiguration = auth.ErrConfiguration

	// ErrUnknownScheme 未注册的认证方案
	ErrUnknownScheme = auth.ErrUnknownScheme
)

// ════════════════════════════════════════════════════════════════════════════
//                              连接错误
// ════════════════════════════════════════════════════════════════════════════

var (
	// ErrAlreadyConnected 客户端已有活跃连接
	ErrAlreadyConnected = engine.ErrAlreadyConnected

	// ErrAuthenticationFailed 认证握手被服务端拒绝
	ErrAuthenticationFailed = engine.ErrAuthenticationFailed

	// ErrNotReady 出站队列已满
	ErrNotReady = engine.ErrNotReady

	// ErrClosed 连接已终止
	ErrClosed = engine.ErrClosed

	// ErrConnectionClosed 底层连接已关闭
	ErrConnectionClosed = transport.ErrConnectionClosed
)

// ════════════════════════════════════════════════════════════════════════════
//                              帧错误
// ════════════════════════════════════════════════════════════════════════════

var (
	// ErrFrameTooLarge 帧长度超过配置上限
	ErrFrameTooLarge = wire.ErrFrameTooLarge
)
