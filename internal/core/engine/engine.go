// Package engine 实现总线协议引擎
//
// 引擎把传输会话、认证握手、订阅注册表与回调分发器组合成
// 完整的协议状态机:
//
//	Disconnected → Connecting → Authenticating → Subscribing →
//	Ready → Closing → Disconnected
//
// 所有入站帧由单一读 goroutine 驱动；出站帧经有界队列由写
// goroutine 串行发送。Ready 之前的发布调用会被缓冲，队列满
// 返回 ErrNotReady，连接终止后返回 ErrClosed。
//
// 重连是调用方的策略：连接终止后引擎回到 Disconnected，
// 再次 Connect 会重新拨号并按插入顺序重放注册表。
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-feedbus/internal/core/auth"
	"github.com/dep2p/go-feedbus/internal/core/dispatch"
	"github.com/dep2p/go-feedbus/internal/core/liveness"
	"github.com/dep2p/go-feedbus/internal/core/registry"
	"github.com/dep2p/go-feedbus/internal/core/transport"
	"github.com/dep2p/go-feedbus/internal/core/wire"
	"github.com/dep2p/go-feedbus/internal/util/logger"
	"github.com/dep2p/go-feedbus/pkg/types"
)

var log = logger.Logger("engine")

// 默认参数
const (
	// DefaultQueueSize 出站队列默认容量
	DefaultQueueSize = 64

	// DefaultAuthorizationCacheSize 授权响应缓存默认容量
	DefaultAuthorizationCacheSize = 256
)

// ============================================================================
//                              配置
// ============================================================================

// Config 引擎配置
type Config struct {
	// Authenticator 认证策略，nil 等同免认证
	Authenticator auth.Authenticator

	// MaxFrame 最大帧长度，0 表示默认
	MaxFrame uint32

	// QueueSize 出站队列容量，0 表示 DefaultQueueSize
	QueueSize int

	// AuthorizationCacheTTL 授权响应缓存有效期，0 禁用缓存
	AuthorizationCacheTTL time.Duration

	// AuthorizationCacheSize 授权响应缓存容量，0 表示默认
	AuthorizationCacheSize int

	// Heartbeat 是否启用心跳监控
	Heartbeat bool

	// HeartbeatTimeout 心跳超时，0 表示默认
	HeartbeatTimeout time.Duration

	// Clock 时钟注入点，nil 使用真实时钟
	Clock clock.Clock
}

// authKey 授权响应缓存键
type authKey struct {
	clientID uuid.UUID
	feed     string
	topic    string
}

// ============================================================================
//                              Engine 实现
// ============================================================================

// Engine 协议引擎
//
// 一个引擎同一时刻至多维护一条连接。除 Connect/Close 的
// 生命周期约束外，所有方法并发安全。
type Engine struct {
	id         uuid.UUID
	cfg        Config
	dialer     transport.Dialer
	registry   *registry.Registry
	dispatcher *dispatch.Dispatcher
	monitor    *liveness.Monitor

	// authCache 按 (clientID, feed, topic) 缓存已发出的授权响应
	authCache *expirable.LRU[authKey, *wire.AuthorizationResponse]

	// outbound 出站帧队列，跨连接存续
	outbound chan *wire.Frame

	state      atomic.Int32
	terminated atomic.Bool

	mu         sync.Mutex
	session    *transport.Session
	done       chan struct{}
	userClosed bool
}

// New 创建协议引擎
func New(cfg Config, dialer transport.Dialer, reg *registry.Registry, disp *dispatch.Dispatcher) *Engine {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	e := &Engine{
		id:         uuid.New(),
		cfg:        cfg,
		dialer:     dialer,
		registry:   reg,
		dispatcher: disp,
		outbound:   make(chan *wire.Frame, queueSize),
	}

	if cfg.AuthorizationCacheTTL > 0 {
		cacheSize := cfg.AuthorizationCacheSize
		if cacheSize <= 0 {
			cacheSize = DefaultAuthorizationCacheSize
		}
		e.authCache = expirable.NewLRU[authKey, *wire.AuthorizationResponse](
			cacheSize, nil, cfg.AuthorizationCacheTTL)
	}

	if cfg.Heartbeat {
		e.monitor = liveness.New(liveness.Config{Timeout: cfg.HeartbeatTimeout}, cfg.Clock)
	}

	return e
}

// ============================================================================
//                              连接生命周期
// ============================================================================

// Connect 建立连接
//
// 同步完成拨号、认证握手与注册表重放，返回时引擎处于 Ready。
// 任一阶段失败引擎回到 Disconnected，不触发关闭回调，也不
// 自动重试。
func (e *Engine) Connect(ctx context.Context) error {
	if !e.state.CompareAndSwap(int32(types.StateDisconnected), int32(types.StateConnecting)) {
		return ErrAlreadyConnected
	}
	e.terminated.Store(false)

	e.mu.Lock()
	e.userClosed = false
	e.mu.Unlock()

	conn, err := e.dialer.Dial(ctx)
	if err != nil {
		e.setState(types.StateDisconnected)
		return fmt.Errorf("dial: %w", err)
	}
	session := transport.NewSession(conn, e.cfg.MaxFrame)

	e.setState(types.StateAuthenticating)
	if err := e.handshake(session); err != nil {
		session.Close()
		e.setState(types.StateDisconnected)
		return err
	}

	e.setState(types.StateSubscribing)
	if e.monitor != nil {
		e.registry.Subscribe(liveness.HeartbeatFeed, liveness.HeartbeatTopic)
	}
	if err := e.replay(session); err != nil {
		session.Close()
		e.setState(types.StateDisconnected)
		return fmt.Errorf("replay subscriptions: %w", err)
	}

	done := make(chan struct{})
	e.mu.Lock()
	e.session = session
	e.done = done
	e.mu.Unlock()

	if e.monitor != nil {
		e.monitor.Start()
	}
	e.setState(types.StateReady)
	log.Info("connected", "id", e.id)

	g, gctx := errgroup.WithContext(context.Background())
	g.Go(func() error { return e.readLoop(session) })
	g.Go(func() error { return e.writeLoop(gctx, session) })
	go e.finalize(g, session, done)

	return nil
}

// handshake 认证握手
//
// 发送一个认证请求帧并等待响应。免认证方案不交换任何帧。
// 握手期间连接被服务端关闭视为认证失败。
func (e *Engine) handshake(s *transport.Session) error {
	a := e.cfg.Authenticator
	if a == nil || a.Scheme() == auth.SchemeNull {
		return nil
	}

	creds, err := a.Credentials()
	if err != nil {
		return fmt.Errorf("credentials for scheme %q: %w", a.Scheme(), err)
	}
	req := &wire.AuthenticationRequest{Scheme: a.Scheme(), Credentials: creds}
	if err := s.Send(wire.Marshal(req)); err != nil {
		return fmt.Errorf("send authentication request: %w", err)
	}

	frame, err := s.Receive()
	if err != nil {
		return fmt.Errorf("%w: connection closed during handshake", ErrAuthenticationFailed)
	}
	msg, err := wire.Unmarshal(frame)
	if err != nil {
		return fmt.Errorf("decode handshake response: %w", err)
	}
	resp, ok := msg.(*wire.AuthenticationResponse)
	if !ok {
		return fmt.Errorf("%w: unexpected %s frame during handshake", ErrAuthenticationFailed, frame.Kind)
	}
	if !resp.Accepted {
		if resp.Reason != "" {
			return fmt.Errorf("%w: %s", ErrAuthenticationFailed, resp.Reason)
		}
		return ErrAuthenticationFailed
	}
	return nil
}

// replay 重放注册表
//
// 先按插入顺序重放订阅，再重放订阅通知登记。
func (e *Engine) replay(s *transport.Session) error {
	for _, sub := range e.registry.Snapshot() {
		msg := &wire.Subscribe{Feed: sub.Feed, Topic: sub.Topic}
		if err := s.Send(wire.Marshal(msg)); err != nil {
			return err
		}
	}
	for _, feed := range e.registry.NotificationFeeds() {
		msg := &wire.NotificationRequest{Feed: feed, IsAdd: true}
		if err := s.Send(wire.Marshal(msg)); err != nil {
			return err
		}
	}
	return nil
}

// Close 关闭连接
//
// 幂等。关闭活跃连接会等待终止流程完成（关闭回调已投递）。
// 对从未连接的引擎调用后，发布操作返回 ErrClosed。
func (e *Engine) Close() error {
	e.mu.Lock()
	session := e.session
	done := e.done
	if session != nil {
		e.userClosed = true
	}
	e.mu.Unlock()

	if session == nil {
		e.terminated.Store(true)
		return nil
	}

	err := session.Close()
	<-done
	return err
}

// finalize 连接终止流程
//
// 等待两个泵退出后进入 Closing，本地主动关闭时以 nil 投递
// 关闭回调，否则携带终止原因。每条连接恰好投递一次。
func (e *Engine) finalize(g *errgroup.Group, s *transport.Session, done chan struct{}) {
	err := g.Wait()

	e.setState(types.StateClosing)
	s.Close()
	if e.monitor != nil {
		e.monitor.Stop()
	}
	e.terminated.Store(true)

	e.mu.Lock()
	userClosed := e.userClosed
	e.session = nil
	e.done = nil
	e.mu.Unlock()

	if userClosed && errors.Is(err, transport.ErrConnectionClosed) {
		err = nil
	}
	e.setState(types.StateDisconnected)

	if err != nil {
		log.Warn("connection terminated", "id", e.id, "err", err)
	} else {
		log.Debug("connection closed", "id", e.id)
	}
	e.dispatcher.DispatchClosed(err)
	close(done)
}

// State 返回当前连接状态
func (e *Engine) State() types.ConnState {
	return types.ConnState(e.state.Load())
}

// Alive 返回连接存活状态
//
// 启用心跳监控时以心跳为准，否则等价于处于 Ready。
func (e *Engine) Alive() bool {
	if e.monitor != nil {
		return e.monitor.Alive()
	}
	return e.State() == types.StateReady
}

// setState 迁移连接状态
func (e *Engine) setState(s types.ConnState) {
	old := types.ConnState(e.state.Swap(int32(s)))
	if old != s {
		log.Debug("state transition", "from", old, "to", s)
	}
}

// ============================================================================
//                              出站操作
// ============================================================================

// Subscribe 订阅 feed/topic
//
// 对已激活订阅的重复调用是空操作，不产生出站帧。
// 未连接时仅更新注册表，下次连接由重放补齐。
func (e *Engine) Subscribe(feed, topic string) error {
	if !e.registry.Subscribe(feed, topic) {
		return nil
	}
	if !e.connectionActive() {
		return nil
	}
	return e.enqueue(&wire.Subscribe{Feed: feed, Topic: topic})
}

// Unsubscribe 退订 feed/topic
func (e *Engine) Unsubscribe(feed, topic string) error {
	if !e.registry.Unsubscribe(feed, topic) {
		return nil
	}
	if !e.connectionActive() {
		return nil
	}
	return e.enqueue(&wire.Unsubscribe{Feed: feed, Topic: topic})
}

// RequestNotifications 登记对 feed 的订阅通知兴趣
func (e *Engine) RequestNotifications(feed string) error {
	if !e.registry.RequestNotifications(feed) {
		return nil
	}
	if !e.connectionActive() {
		return nil
	}
	return e.enqueue(&wire.NotificationRequest{Feed: feed, IsAdd: true})
}

// RelinquishNotifications 取消对 feed 的订阅通知兴趣
func (e *Engine) RelinquishNotifications(feed string) error {
	if !e.registry.RelinquishNotifications(feed) {
		return nil
	}
	if !e.connectionActive() {
		return nil
	}
	return e.enqueue(&wire.NotificationRequest{Feed: feed, IsAdd: false})
}

// Publish 发布数据
//
// Ready 之前的调用被缓冲，队列满返回 ErrNotReady，
// 连接终止后返回 ErrClosed。
func (e *Engine) Publish(feed, topic string, isImage bool, entitlements []int32, payload []byte) error {
	return e.enqueue(&wire.Data{
		Feed:         feed,
		Topic:        topic,
		Entitlements: entitlements,
		Payload:      payload,
		IsImage:      isImage,
	})
}

// Authorize 应答授权请求
//
// 启用缓存时响应同时写入缓存，有效期内对同一
// (clientID, feed, topic) 的重复请求由引擎直接应答。
func (e *Engine) Authorize(resp *types.AuthorizationResponse) error {
	msg := &wire.AuthorizationResponse{
		ClientID:     resp.ClientID,
		Host:         resp.Host,
		User:         resp.User,
		Feed:         resp.Feed,
		Topic:        resp.Topic,
		IsAuthorized: resp.IsAuthorized,
		Entitlements: resp.Entitlements,
	}
	if e.authCache != nil {
		e.authCache.Add(authKey{clientID: resp.ClientID, feed: resp.Feed, topic: resp.Topic}, msg)
	}
	return e.enqueue(msg)
}

// enqueue 将消息放入出站队列
func (e *Engine) enqueue(m wire.Message) error {
	if e.terminated.Load() {
		return ErrClosed
	}
	select {
	case e.outbound <- wire.Marshal(m):
		return nil
	default:
		return ErrNotReady
	}
}

// connectionActive 是否存在进行中的连接
func (e *Engine) connectionActive() bool {
	switch e.State() {
	case types.StateConnecting, types.StateAuthenticating, types.StateSubscribing, types.StateReady:
		return true
	default:
		return false
	}
}

// ============================================================================
//                              消息泵
// ============================================================================

// readLoop 入站泵
//
// 未知帧类型告警后跳过；其余解码错误对连接是致命的。
func (e *Engine) readLoop(s *transport.Session) error {
	for {
		frame, err := s.Receive()
		if err != nil {
			return err
		}

		msg, err := wire.Unmarshal(frame)
		if err != nil {
			if errors.Is(err, wire.ErrUnknownFrameKind) {
				log.Warn("skipping unknown frame", "kind", byte(frame.Kind))
				continue
			}
			return fmt.Errorf("decode %s frame: %w", frame.Kind, err)
		}
		e.route(msg)
	}
}

// writeLoop 出站泵
//
// 仅在 Ready 期间排空队列；发送失败时关闭会话以唤醒入站泵。
func (e *Engine) writeLoop(ctx context.Context, s *transport.Session) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame := <-e.outbound:
			if err := s.Send(frame); err != nil {
				s.Close()
				return err
			}
		}
	}
}

// route 分发入站消息
//
// 运行在入站读 goroutine 上。
func (e *Engine) route(msg wire.Message) {
	switch m := msg.(type) {
	case *wire.Data:
		if e.monitor != nil && m.Feed == liveness.HeartbeatFeed && m.Topic == liveness.HeartbeatTopic {
			e.monitor.Beat()
		}
		e.dispatcher.DispatchData(&types.DataEvent{
			Feed:    m.Feed,
			Topic:   m.Topic,
			IsImage: m.IsImage,
			Packet: types.DataPacket{
				Entitlements: m.Entitlements,
				Data:         m.Payload,
			},
		})

	case *wire.Notification:
		fwd := &types.ForwardedSubscription{
			ClientID: m.ClientID,
			User:     m.User,
			Host:     m.Host,
			Feed:     m.Feed,
			Topic:    m.Topic,
			IsAdd:    m.IsAdd,
		}
		e.registry.RecordForwarding(fwd)
		e.dispatcher.DispatchNotification(fwd)

	case *wire.AuthorizationRequest:
		e.routeAuthorization(m)

	default:
		log.Warn("unexpected frame in ready state", "kind", msg.Kind())
	}
}

// routeAuthorization 处理入站授权请求
//
// 缓存命中时直接应答；无授权处理器时按拒绝应答，
// 未显式授权的请求不能悬置。
func (e *Engine) routeAuthorization(m *wire.AuthorizationRequest) {
	if e.authCache != nil {
		key := authKey{clientID: m.ClientID, feed: m.Feed, topic: m.Topic}
		if resp, ok := e.authCache.Get(key); ok {
			log.Debug("authorization answered from cache",
				"client", m.ClientID, "feed", m.Feed, "topic", m.Topic)
			if err := e.enqueue(resp); err != nil {
				log.Warn("cached authorization response dropped", "err", err)
			}
			return
		}
	}

	if !e.dispatcher.HasAuthorizationHandlers() {
		log.Warn("no authorization handler, denying",
			"client", m.ClientID, "feed", m.Feed, "topic", m.Topic)
		deny := &wire.AuthorizationResponse{
			ClientID: m.ClientID,
			Host:     m.Host,
			User:     m.User,
			Feed:     m.Feed,
			Topic:    m.Topic,
		}
		if err := e.enqueue(deny); err != nil {
			log.Warn("denial response dropped", "err", err)
		}
		return
	}

	e.dispatcher.DispatchAuthorization(&types.AuthorizationRequest{
		ClientID: m.ClientID,
		Host:     m.Host,
		User:     m.User,
		Feed:     m.Feed,
		Topic:    m.Topic,
	})
}
