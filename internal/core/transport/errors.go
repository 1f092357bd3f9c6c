// Package transport 实现总线连接的传输会话
package transport

import "errors"

// ============================================================================
//                              错误定义
// ============================================================================

var (
	// ErrConnectionClosed 传输已关闭
	//
	// 对端关闭、本地 Close 或底层流故障都会收敛到该错误，
	// 引擎将其视为终态。
	ErrConnectionClosed = errors.New("connection closed")
)
