package wire

import (
	"fmt"

	"github.com/google/uuid"
)

// ============================================================================
//                              消息定义
// ============================================================================

// Message 线路消息
//
// 每种消息对应一个帧类型，负责自身载荷的布局。
type Message interface {
	// Kind 返回帧类型
	Kind() Kind

	// encode 写入载荷
	encode(w *Writer)
}

// Marshal 将消息编码为帧
func Marshal(m Message) *Frame {
	w := NewWriter()
	m.encode(w)
	return &Frame{Kind: m.Kind(), Payload: w.Bytes()}
}

// Unmarshal 将帧解码为消息
//
// 未知帧类型返回 ErrUnknownFrameKind（非致命，调用方跳过该帧）。
func Unmarshal(f *Frame) (Message, error) {
	r := NewReader(f.Payload)
	switch f.Kind {
	case KindData:
		return decodeData(r)
	case KindNotification:
		return decodeNotification(r)
	case KindAuthorizationRequest:
		return decodeAuthorizationRequest(r)
	case KindAuthorizationResponse:
		return decodeAuthorizationResponse(r)
	case KindSubscribe:
		return decodeSubscribe(r)
	case KindUnsubscribe:
		return decodeUnsubscribe(r)
	case KindAuthenticationRequest:
		return decodeAuthenticationRequest(r)
	case KindAuthenticationResponse:
		return decodeAuthenticationResponse(r)
	case KindNotificationRequest:
		return decodeNotificationRequest(r)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownFrameKind, byte(f.Kind))
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              订阅管理
// ════════════════════════════════════════════════════════════════════════════

// Subscribe 订阅请求
type Subscribe struct {
	Feed  string
	Topic string
}

// Kind 返回帧类型
func (m *Subscribe) Kind() Kind { return KindSubscribe }

func (m *Subscribe) encode(w *Writer) {
	w.WriteString(m.Feed)
	w.WriteString(m.Topic)
}

func decodeSubscribe(r *Reader) (*Subscribe, error) {
	feed, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	topic, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	return &Subscribe{Feed: feed, Topic: topic}, nil
}

// Unsubscribe 退订请求
type Unsubscribe struct {
	Feed  string
	Topic string
}

// Kind 返回帧类型
func (m *Unsubscribe) Kind() Kind { return KindUnsubscribe }

func (m *Unsubscribe) encode(w *Writer) {
	w.WriteString(m.Feed)
	w.WriteString(m.Topic)
}

func decodeUnsubscribe(r *Reader) (*Unsubscribe, error) {
	feed, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	topic, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	return &Unsubscribe{Feed: feed, Topic: topic}, nil
}

// NotificationRequest 订阅通知登记
//
// Feed 的服务方通过该消息请求（或取消）服务端转发
// 该 Feed 上其他客户端的订阅动作。
type NotificationRequest struct {
	Feed  string
	IsAdd bool
}

// Kind 返回帧类型
func (m *NotificationRequest) Kind() Kind { return KindNotificationRequest }

func (m *NotificationRequest) encode(w *Writer) {
	w.WriteString(m.Feed)
	w.WriteBool(m.IsAdd)
}

func decodeNotificationRequest(r *Reader) (*NotificationRequest, error) {
	feed, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	isAdd, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	return &NotificationRequest{Feed: feed, IsAdd: isAdd}, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              数据
// ════════════════════════════════════════════════════════════════════════════

// Data 数据消息
//
// Entitlements 是投递本包时生效的权限标签；
// Payload 对引擎不透明。
type Data struct {
	Feed         string
	Topic        string
	Entitlements []int32
	Payload      []byte
	IsImage      bool
}

// Kind 返回帧类型
func (m *Data) Kind() Kind { return KindData }

func (m *Data) encode(w *Writer) {
	w.WriteString(m.Feed)
	w.WriteString(m.Topic)
	w.WriteInt32Set(m.Entitlements)
	w.WriteBytes(m.Payload)
	w.WriteBool(m.IsImage)
}

func decodeData(r *Reader) (*Data, error) {
	feed, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	topic, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	entitlements, err := r.ReadInt32Set()
	if err != nil {
		return nil, err
	}
	payload, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	isImage, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	return &Data{
		Feed:         feed,
		Topic:        topic,
		Entitlements: entitlements,
		Payload:      payload,
		IsImage:      isImage,
	}, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              通知
// ════════════════════════════════════════════════════════════════════════════

// Notification 转发订阅通知
//
// 服务端告知 Feed 的服务方：client_id 订阅（或退订）了
// 该 Feed/Topic。
type Notification struct {
	ClientID uuid.UUID
	User     string
	Host     string
	Feed     string
	Topic    string
	IsAdd    bool
}

// Kind 返回帧类型
func (m *Notification) Kind() Kind { return KindNotification }

func (m *Notification) encode(w *Writer) {
	w.WriteUUID(m.ClientID)
	w.WriteString(m.User)
	w.WriteString(m.Host)
	w.WriteString(m.Feed)
	w.WriteString(m.Topic)
	w.WriteBool(m.IsAdd)
}

func decodeNotification(r *Reader) (*Notification, error) {
	clientID, err := r.ReadUUID()
	if err != nil {
		return nil, err
	}
	user, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	host, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	feed, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	topic, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	isAdd, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	return &Notification{
		ClientID: clientID,
		User:     user,
		Host:     host,
		Feed:     feed,
		Topic:    topic,
		IsAdd:    isAdd,
	}, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              授权
// ════════════════════════════════════════════════════════════════════════════

// AuthorizationRequest 授权请求
//
// 服务端询问数据属主：client_id 是否可以接收 Feed/Topic。
type AuthorizationRequest struct {
	ClientID uuid.UUID
	Host     string
	User     string
	Feed     string
	Topic    string
}

// Kind 返回帧类型
func (m *AuthorizationRequest) Kind() Kind { return KindAuthorizationRequest }

func (m *AuthorizationRequest) encode(w *Writer) {
	w.WriteUUID(m.ClientID)
	w.WriteString(m.Host)
	w.WriteString(m.User)
	w.WriteString(m.Feed)
	w.WriteString(m.Topic)
}

func decodeAuthorizationRequest(r *Reader) (*AuthorizationRequest, error) {
	clientID, err := r.ReadUUID()
	if err != nil {
		return nil, err
	}
	host, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	user, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	feed, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	topic, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	return &AuthorizationRequest{
		ClientID: clientID,
		Host:     host,
		User:     user,
		Feed:     feed,
		Topic:    topic,
	}, nil
}

// AuthorizationResponse 授权响应
//
// 未显式授权的字段按拒绝处理。
type AuthorizationResponse struct {
	ClientID     uuid.UUID
	Host         string
	User         string
	Feed         string
	Topic        string
	IsAuthorized bool
	Entitlements []int32
}

// Kind 返回帧类型
func (m *AuthorizationResponse) Kind() Kind { return KindAuthorizationResponse }

func (m *AuthorizationResponse) encode(w *Writer) {
	w.WriteUUID(m.ClientID)
	w.WriteString(m.Host)
	w.WriteString(m.User)
	w.WriteString(m.Feed)
	w.WriteString(m.Topic)
	w.WriteBool(m.IsAuthorized)
	w.WriteInt32Set(m.Entitlements)
}

func decodeAuthorizationResponse(r *Reader) (*AuthorizationResponse, error) {
	clientID, err := r.ReadUUID()
	if err != nil {
		return nil, err
	}
	host, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	user, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	feed, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	topic, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	isAuthorized, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	entitlements, err := r.ReadInt32Set()
	if err != nil {
		return nil, err
	}
	return &AuthorizationResponse{
		ClientID:     clientID,
		Host:         host,
		User:         user,
		Feed:         feed,
		Topic:        topic,
		IsAuthorized: isAuthorized,
		Entitlements: entitlements,
	}, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              认证
// ════════════════════════════════════════════════════════════════════════════

// AuthenticationRequest 认证请求
//
// 握手时客户端发送一次，Credentials 的布局由 Scheme 决定。
type AuthenticationRequest struct {
	Scheme      string
	Credentials []byte
}

// Kind 返回帧类型
func (m *AuthenticationRequest) Kind() Kind { return KindAuthenticationRequest }

func (m *AuthenticationRequest) encode(w *Writer) {
	w.WriteString(m.Scheme)
	w.WriteBytes(m.Credentials)
}

func decodeAuthenticationRequest(r *Reader) (*AuthenticationRequest, error) {
	scheme, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	credentials, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	return &AuthenticationRequest{Scheme: scheme, Credentials: credentials}, nil
}

// AuthenticationResponse 认证响应
type AuthenticationResponse struct {
	Accepted bool
	Reason   string
}

// Kind 返回帧类型
func (m *AuthenticationResponse) Kind() Kind { return KindAuthenticationResponse }

func (m *AuthenticationResponse) encode(w *Writer) {
	w.WriteBool(m.Accepted)
	w.WriteString(m.Reason)
}

func decodeAuthenticationResponse(r *Reader) (*AuthenticationResponse, error) {
	accepted, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	reason, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	return &AuthenticationResponse{Accepted: accepted, Reason: reason}, nil
}
