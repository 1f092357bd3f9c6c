package engine

import "errors"

// ============================================================================
//                              引擎错误
// ============================================================================

var (
	// ErrAlreadyConnected 引擎已有活跃连接
	ErrAlreadyConnected = errors.New("engine: already connected")

	// ErrAuthenticationFailed 认证握手被服务端拒绝
	ErrAuthenticationFailed = errors.New("engine: authentication failed")

	// ErrNotReady 出站队列已满
	ErrNotReady = errors.New("engine: not ready, outbound queue full")

	// ErrClosed 连接已终止
	ErrClosed = errors.New("engine: closed")
)
