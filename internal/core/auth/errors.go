// Package auth 实现认证握手的凭据协商
package auth

import "errors"

// ============================================================================
//                              错误定义
// ============================================================================

var (
	// ErrConfiguration 本地配置错误（连接前即可发现）
	ErrConfiguration = errors.New("invalid authenticator configuration")

	// ErrUnknownScheme 未注册的认证方案
	ErrUnknownScheme = errors.New("unknown authentication scheme")
)
