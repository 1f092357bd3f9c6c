package feedbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/dep2p/go-feedbus/internal/core/dispatch"
	"github.com/dep2p/go-feedbus/internal/core/engine"
	"github.com/dep2p/go-feedbus/internal/core/registry"
	"github.com/dep2p/go-feedbus/internal/util/logger"
	"github.com/dep2p/go-feedbus/pkg/types"

	"go.uber.org/fx"
)

var log = logger.Logger("feedbus")

// lifecycleTimeout Fx 应用启停超时
const lifecycleTimeout = 15 * time.Second

// Client 消息总线客户端
//
// 一个客户端对应总线上的一个连接。除 Connect/Close 的
// 生命周期约束外，所有方法并发安全。
//
// 重连是调用方的策略：连接终止后客户端回到断开状态，
// 再次 Connect 会重新拨号、重新认证并按原始顺序重放
// 全部活跃订阅。
type Client struct {
	app        *fx.App
	engine     *engine.Engine
	registry   *registry.Registry
	dispatcher *dispatch.Dispatcher

	closeOnce sync.Once
	closeErr  error
}

// NewClient 创建客户端
//
// 仅组装组件，不建立连接。至少需要 WithAddress、
// WithWebsocketURL 或 WithDialer 之一。
func NewClient(opts ...Option) (*Client, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	c := &Client{}
	app := buildFxApp(o, c)
	if err := app.Err(); err != nil {
		return nil, fmt.Errorf("build components: %w", err)
	}

	startCtx, cancel := context.WithTimeout(context.Background(), lifecycleTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return nil, fmt.Errorf("start components: %w", err)
	}
	c.app = app
	return c, nil
}

// Dial 创建客户端并建立连接
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	c, err := NewClient(append([]Option{WithAddress(addr)}, opts...)...)
	if err != nil {
		return nil, err
	}
	if err := c.Connect(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              连接生命周期
// ════════════════════════════════════════════════════════════════════════════

// Connect 建立连接
//
// 同步完成拨号、认证握手与订阅重放，返回时客户端就绪。
func (c *Client) Connect(ctx context.Context) error {
	return c.engine.Connect(ctx)
}

// State 返回当前连接状态
func (c *Client) State() ConnState {
	return c.engine.State()
}

// Alive 返回连接存活状态
//
// 启用心跳监控时以心跳为准，否则等价于连接就绪。
func (c *Client) Alive() bool {
	return c.engine.Alive()
}

// Close 关闭客户端
//
// 幂等；重复调用返回首次的结果。关闭活跃连接会等待
// 终止流程完成，关闭回调以 nil 投递。
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		err := c.engine.Close()

		stopCtx, cancel := context.WithTimeout(context.Background(), lifecycleTimeout)
		defer cancel()
		c.closeErr = multierr.Append(err, c.app.Stop(stopCtx))
		log.Debug("client closed")
	})
	return c.closeErr
}

// ════════════════════════════════════════════════════════════════════════════
//                              订阅操作
// ════════════════════════════════════════════════════════════════════════════

// Subscribe 订阅 feed/topic
//
// 幂等：对已激活订阅的重复调用是空操作。未连接时仅登记，
// 连接建立后由重放补齐。
func (c *Client) Subscribe(feed, topic string) error {
	return c.engine.Subscribe(feed, topic)
}

// Unsubscribe 退订 feed/topic
func (c *Client) Unsubscribe(feed, topic string) error {
	return c.engine.Unsubscribe(feed, topic)
}

// Subscriptions 返回按订阅顺序排列的活跃订阅
func (c *Client) Subscriptions() []Subscription {
	return c.registry.Snapshot()
}

// RequestNotifications 登记对 feed 的订阅通知兴趣
//
// 作为 feed 的服务方时调用，此后其他客户端对该 feed 的
// 订阅动作会经通知回调转发过来。
func (c *Client) RequestNotifications(feed string) error {
	return c.engine.RequestNotifications(feed)
}

// RelinquishNotifications 取消对 feed 的订阅通知兴趣
func (c *Client) RelinquishNotifications(feed string) error {
	return c.engine.RelinquishNotifications(feed)
}

// ════════════════════════════════════════════════════════════════════════════
//                              发布与授权
// ════════════════════════════════════════════════════════════════════════════

// Publish 发布数据
//
// isImage 标记全量快照；entitlements 控制投递范围，nil 表示
// 不受权限标签限制。就绪前的调用被缓冲，队列满返回
// ErrNotReady，连接终止后返回 ErrClosed。
func (c *Client) Publish(feed, topic string, isImage bool, entitlements []int32, payload []byte) error {
	return c.engine.Publish(feed, topic, isImage, entitlements, payload)
}

// Authorize 应答授权请求
//
// 在授权回调中调用。未应答的请求按拒绝处理。
func (c *Client) Authorize(clientID uuid.UUID, host, user, feed, topic string, isAuthorized bool, entitlements []int32) error {
	return c.engine.Authorize(&types.AuthorizationResponse{
		ClientID:     clientID,
		Host:         host,
		User:         user,
		Feed:         feed,
		Topic:        topic,
		IsAuthorized: isAuthorized,
		Entitlements: entitlements,
	})
}

// ════════════════════════════════════════════════════════════════════════════
//                              回调注册
// ════════════════════════════════════════════════════════════════════════════

// OnData 注册数据回调
//
// 回调运行在入站读 goroutine 上，会阻塞的处理必须自行
// 转移到其他执行上下文。返回的函数移除该回调。
func (c *Client) OnData(h DataHandler) (remove func()) {
	return c.dispatcher.OnData(h)
}

// OnNotification 注册转发订阅通知回调
func (c *Client) OnNotification(h NotificationHandler) (remove func()) {
	return c.dispatcher.OnNotification(h)
}

// OnAuthorization 注册授权请求回调
func (c *Client) OnAuthorization(h AuthorizationHandler) (remove func()) {
	return c.dispatcher.OnAuthorization(h)
}

// OnClosed 注册连接关闭回调
//
// 每条连接恰好投递一次；err 为 nil 表示本地主动关闭。
func (c *Client) OnClosed(h ClosedHandler) (remove func()) {
	return c.dispatcher.OnClosed(h)
}
