// Package wire 实现消息总线的帧编解码
package wire

import "errors"

// ============================================================================
//                              错误定义
// ============================================================================

var (
	// ErrFrameTooLarge 帧长度超过上限（致命错误）
	ErrFrameTooLarge = errors.New("frame too large")

	// ErrUnknownFrameKind 未知帧类型（非致命，跳过该帧）
	ErrUnknownFrameKind = errors.New("unknown frame kind")

	// ErrShortFrame 数据不足，需要继续读取
	ErrShortFrame = errors.New("short frame")

	// ErrTruncatedPayload 载荷不完整
	ErrTruncatedPayload = errors.New("truncated payload")
)
