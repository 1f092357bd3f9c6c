// Package types 定义 feedbus 的公共类型
//
// 这些类型在用户 API 与内部模块之间共享：
// 订阅、数据事件、转发订阅通知、授权请求与响应。
package types

import (
	"fmt"

	"github.com/google/uuid"
)

// Subscription 订阅标识
//
// (Feed, Topic) 唯一标识一个订阅兴趣。
type Subscription struct {
	// Feed 数据源名称（发布域）
	Feed string

	// Topic Feed 内的主题名称
	Topic string
}

func (s Subscription) String() string {
	return fmt.Sprintf("%s/%s", s.Feed, s.Topic)
}

// DataPacket 数据包
//
// Entitlements 为空表示数据不受权限标签限制。
// Data 的内部编码对引擎不透明，由总线双方约定。
type DataPacket struct {
	// Entitlements 控制本包投递的权限标签
	Entitlements []int32

	// Data 载荷字节
	Data []byte
}

// DataEvent 入站数据事件
//
// 由服务端投递给本客户端的订阅数据，交给数据回调处理。
type DataEvent struct {
	// Feed 数据源名称
	Feed string

	// Topic 主题名称
	Topic string

	// IsImage 是否为全量快照（而非增量更新）
	IsImage bool

	// Packet 数据包
	Packet DataPacket
}

// ForwardedSubscription 转发订阅通知
//
// 服务端通知本客户端：另一个客户端订阅（或退订）了
// 本客户端所服务的 Feed/Topic。
type ForwardedSubscription struct {
	// ClientID 发起订阅的客户端标识
	ClientID uuid.UUID

	// User 发起订阅的用户
	User string

	// Host 发起订阅的主机
	Host string

	// Feed 数据源名称
	Feed string

	// Topic 主题名称
	Topic string

	// IsAdd true 表示新增订阅，false 表示移除
	IsAdd bool
}

// AuthorizationRequest 授权请求
//
// 服务端询问本客户端（作为数据属主）：某客户端是否
// 可以接收 Feed/Topic 的数据。
type AuthorizationRequest struct {
	// ClientID 请求授权的客户端标识
	ClientID uuid.UUID

	// Host 请求方主机
	Host string

	// User 请求方用户
	User string

	// Feed 数据源名称
	Feed string

	// Topic 主题名称
	Topic string
}

// AuthorizationResponse 授权响应
//
// 对 AuthorizationRequest 的应答。未授权时 Entitlements 忽略。
type AuthorizationResponse struct {
	// ClientID 请求授权的客户端标识
	ClientID uuid.UUID

	// Host 请求方主机
	Host string

	// User 请求方用户
	User string

	// Feed 数据源名称
	Feed string

	// Topic 主题名称
	Topic string

	// IsAuthorized 是否授权
	IsAuthorized bool

	// Entitlements 授予的权限标签
	Entitlements []int32
}

// ════════════════════════════════════════════════════════════════════════════
//                              回调类型
// ════════════════════════════════════════════════════════════════════════════

// DataHandler 数据事件回调
type DataHandler func(*DataEvent)

// NotificationHandler 转发订阅通知回调
type NotificationHandler func(*ForwardedSubscription)

// AuthorizationHandler 授权请求回调
type AuthorizationHandler func(*AuthorizationRequest)

// ClosedHandler 连接关闭回调
//
// err 为 nil 表示本地主动关闭；否则携带终止原因。
type ClosedHandler func(err error)
