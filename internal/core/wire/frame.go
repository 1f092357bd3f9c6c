package wire

import (
	"encoding/binary"
	"fmt"
)

// ============================================================================
//                              帧格式
// ============================================================================

// 帧布局: [4 字节大端长度][1 字节类型][载荷]
//
// 长度字段统计类型字节加载荷，不含长度字段本身。

const (
	// HeaderLen 长度前缀的字节数
	HeaderLen = 4

	// MaxFrameLength 默认最大帧长度 (10 MiB)
	//
	// 防止恶意或损坏的对端导致无界内存增长。
	MaxFrameLength uint32 = 10 * 1024 * 1024
)

// Kind 帧类型标签
//
// v1 封闭集合，未知类型的帧被拒绝而非静默丢弃。
type Kind byte

const (
	// KindData 数据帧
	KindData Kind = 1
	// KindNotification 转发订阅通知帧
	KindNotification Kind = 2
	// KindAuthorizationRequest 授权请求帧
	KindAuthorizationRequest Kind = 3
	// KindAuthorizationResponse 授权响应帧
	KindAuthorizationResponse Kind = 4
	// KindSubscribe 订阅帧
	KindSubscribe Kind = 5
	// KindUnsubscribe 退订帧
	KindUnsubscribe Kind = 6
	// KindAuthenticationRequest 认证请求帧
	KindAuthenticationRequest Kind = 7
	// KindAuthenticationResponse 认证响应帧
	KindAuthenticationResponse Kind = 8
	// KindNotificationRequest 订阅通知登记帧
	KindNotificationRequest Kind = 9
)

// String 返回帧类型名称
func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindNotification:
		return "notification"
	case KindAuthorizationRequest:
		return "authorization-request"
	case KindAuthorizationResponse:
		return "authorization-response"
	case KindSubscribe:
		return "subscribe"
	case KindUnsubscribe:
		return "unsubscribe"
	case KindAuthenticationRequest:
		return "authentication-request"
	case KindAuthenticationResponse:
		return "authentication-response"
	case KindNotificationRequest:
		return "notification-request"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

// Valid 检查是否属于 v1 封闭集合
func (k Kind) Valid() bool {
	return k >= KindData && k <= KindNotificationRequest
}

// Frame 线路帧
//
// Kind 与 Payload 的分离是编解码层的唯一语义；
// 载荷的内部布局由各消息类型负责。
type Frame struct {
	Kind    Kind
	Payload []byte
}

// Encode 编码为线路字节
func (f *Frame) Encode() []byte {
	buf := make([]byte, HeaderLen+1+len(f.Payload))
	binary.BigEndian.PutUint32(buf, uint32(1+len(f.Payload)))
	buf[HeaderLen] = byte(f.Kind)
	copy(buf[HeaderLen+1:], f.Payload)
	return buf
}

// ============================================================================
//                              Decoder 实现
// ============================================================================

// Decoder 可续传的帧解码器
//
// Decoder 缓冲不完整的帧，跨任意字节边界续传解码：
// 调用方通过 Feed 注入读到的字节，通过 Next 取出完整帧。
// Decoder 不持有流，也不了解消息语义。
type Decoder struct {
	buf      []byte
	maxFrame uint32
}

// NewDecoder 创建解码器
//
// maxFrame 为 0 时使用 MaxFrameLength。
func NewDecoder(maxFrame uint32) *Decoder {
	if maxFrame == 0 {
		maxFrame = MaxFrameLength
	}
	return &Decoder{maxFrame: maxFrame}
}

// Feed 注入字节
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Buffered 返回当前缓冲的字节数
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Next 取出下一个完整帧
//
// 返回:
//   - (*Frame, nil): 解出一个完整帧
//   - (nil, ErrShortFrame): 数据不足，Feed 后重试
//   - (nil, ErrFrameTooLarge): 长度超限，连接应被关闭
func (d *Decoder) Next() (*Frame, error) {
	if len(d.buf) < HeaderLen {
		return nil, ErrShortFrame
	}

	length := binary.BigEndian.Uint32(d.buf)
	if length == 0 {
		return nil, fmt.Errorf("%w: zero-length frame", ErrTruncatedPayload)
	}
	if length > d.maxFrame {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFrameTooLarge, length, d.maxFrame)
	}

	total := HeaderLen + int(length)
	if len(d.buf) < total {
		return nil, ErrShortFrame
	}

	frame := &Frame{
		Kind:    Kind(d.buf[HeaderLen]),
		Payload: append([]byte(nil), d.buf[HeaderLen+1:total]...),
	}
	d.buf = d.buf[total:]
	return frame, nil
}
