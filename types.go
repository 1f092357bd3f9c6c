package feedbus

import (
	"github.com/dep2p/go-feedbus/internal/core/auth"
	"github.com/dep2p/go-feedbus/internal/core/transport"
	"github.com/dep2p/go-feedbus/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              类型别名
// ════════════════════════════════════════════════════════════════════════════

// 公共数据类型，定义见 pkg/types。
type (
	// Subscription 订阅标识
	Subscription = types.Subscription

	// DataPacket 数据包
	DataPacket = types.DataPacket

	// DataEvent 入站数据事件
	DataEvent = types.DataEvent

	// ForwardedSubscription 转发订阅通知
	ForwardedSubscription = types.ForwardedSubscription

	// AuthorizationRequest 授权请求
	AuthorizationRequest = types.AuthorizationRequest

	// AuthorizationResponse 授权响应
	AuthorizationResponse = types.AuthorizationResponse

	// ConnState 连接状态
	ConnState = types.ConnState
)

// 回调类型
type (
	// DataHandler 数据事件回调
	DataHandler = types.DataHandler

	// NotificationHandler 转发订阅通知回调
	NotificationHandler = types.NotificationHandler

	// AuthorizationHandler 授权请求回调
	AuthorizationHandler = types.AuthorizationHandler

	// ClosedHandler 连接关闭回调
	ClosedHandler = types.ClosedHandler
)

// 连接状态常量
const (
	StateDisconnected   = types.StateDisconnected
	StateConnecting     = types.StateConnecting
	StateAuthenticating = types.StateAuthenticating
	StateSubscribing    = types.StateSubscribing
	StateReady          = types.StateReady
	StateClosing        = types.StateClosing
)

// ════════════════════════════════════════════════════════════════════════════
//                              扩展点别名
// ════════════════════════════════════════════════════════════════════════════

// Dialer 流工厂
//
// 自定义传输（代理、测试管道、外部加密通道）实现此接口，
// 通过 WithDialer 注入。
type Dialer = transport.Dialer

// DialerFunc 函数适配器
type DialerFunc = transport.DialerFunc

// Authenticator 认证策略
//
// 自定义认证方案实现此接口，通过 WithAuthenticator 注入。
type Authenticator = auth.Authenticator

// AuthAttributes 凭据附加属性
type AuthAttributes = auth.Attributes
