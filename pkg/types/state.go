package types

// ConnState 连接状态
//
// 状态机: Disconnected → Connecting → Authenticating → Subscribing →
// Ready → Closing → Disconnected
type ConnState int32

const (
	// StateDisconnected 未连接
	StateDisconnected ConnState = iota

	// StateConnecting 正在建立传输连接
	StateConnecting

	// StateAuthenticating 正在认证握手
	StateAuthenticating

	// StateSubscribing 正在重放订阅快照
	StateSubscribing

	// StateReady 稳态消息循环
	StateReady

	// StateClosing 正在关闭
	StateClosing
)

// String 返回状态名称
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateSubscribing:
		return "subscribing"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}
