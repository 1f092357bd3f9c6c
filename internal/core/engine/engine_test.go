// Package engine 协议引擎测试
package engine

import (
	"context"
	"errors"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-feedbus/internal/core/auth"
	"github.com/dep2p/go-feedbus/internal/core/dispatch"
	"github.com/dep2p/go-feedbus/internal/core/liveness"
	"github.com/dep2p/go-feedbus/internal/core/registry"
	"github.com/dep2p/go-feedbus/internal/core/transport"
	"github.com/dep2p/go-feedbus/internal/core/wire"
	"github.com/dep2p/go-feedbus/pkg/types"
)

const testTimeout = 2 * time.Second

// ============================================================================
//                              测试脚手架
// ============================================================================

// fixture 引擎加对端假服务器
//
// 每次 accept 产出一条新管道：服务端会话供测试驱动，
// 客户端一侧交给引擎的拨号器。
type fixture struct {
	t    *testing.T
	eng  *Engine
	reg  *registry.Registry
	disp *dispatch.Dispatcher

	conns chan io.ReadWriteCloser
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	f := &fixture{
		t:     t,
		reg:   registry.New(),
		disp:  dispatch.New(),
		conns: make(chan io.ReadWriteCloser, 4),
	}
	dialer := transport.DialerFunc(func(ctx context.Context) (io.ReadWriteCloser, error) {
		select {
		case c := <-f.conns:
			return c, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	f.eng = New(cfg, dialer, f.reg, f.disp)

	t.Cleanup(func() { f.eng.Close() })
	return f
}

// accept 准备下一条连接的服务端
func (f *fixture) accept() (*transport.Session, <-chan wire.Message) {
	f.t.Helper()

	client, server := net.Pipe()
	f.conns <- client
	session := transport.NewSession(server, 0)
	f.t.Cleanup(func() { session.Close() })
	return session, serveFrames(session)
}

// serveFrames 把服务端收到的消息转入通道
func serveFrames(s *transport.Session) <-chan wire.Message {
	ch := make(chan wire.Message, 64)
	go func() {
		defer close(ch)
		for {
			frame, err := s.Receive()
			if err != nil {
				return
			}
			msg, err := wire.Unmarshal(frame)
			if err != nil {
				return
			}
			ch <- msg
		}
	}()
	return ch
}

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed before value arrived")
		return v
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting on channel")
		panic("unreachable")
	}
}

// onClosed 捕获关闭回调
func onClosed(f *fixture) <-chan error {
	ch := make(chan error, 1)
	f.disp.OnClosed(func(err error) { ch <- err })
	return ch
}

func sendMsg(t *testing.T, s *transport.Session, m wire.Message) {
	t.Helper()
	require.NoError(t, s.Send(wire.Marshal(m)))
}

// ============================================================================
//                              连接测试
// ============================================================================

func TestEngine_Connect(t *testing.T) {
	t.Run("免认证方案不交换握手帧", func(t *testing.T) {
		f := newFixture(t, Config{})
		_, msgs := f.accept()

		require.NoError(t, f.eng.Connect(context.Background()))
		assert.Equal(t, types.StateReady, f.eng.State())

		// 对端看到的第一个帧应当是数据而非握手
		require.NoError(t, f.eng.Publish("LSE", "VOD", false, nil, []byte("px=102.5")))
		msg := waitFor(t, msgs)
		data, ok := msg.(*wire.Data)
		require.True(t, ok, "expected data frame, got %T", msg)
		assert.Equal(t, "LSE", data.Feed)
	})

	t.Run("basic 方案完成握手", func(t *testing.T) {
		authenticator, err := auth.NewBasic("john.doe@example.com", "pa$word")
		require.NoError(t, err)

		f := newFixture(t, Config{Authenticator: authenticator})
		srv, msgs := f.accept()

		connectErr := make(chan error, 1)
		go func() { connectErr <- f.eng.Connect(context.Background()) }()

		msg := waitFor(t, msgs)
		req, ok := msg.(*wire.AuthenticationRequest)
		require.True(t, ok, "expected authentication request, got %T", msg)
		assert.Equal(t, auth.SchemeBasic, req.Scheme)

		r := wire.NewReader(req.Credentials)
		username, err := r.ReadString()
		require.NoError(t, err)
		password, err := r.ReadString()
		require.NoError(t, err)
		assert.Equal(t, "john.doe@example.com", username)
		assert.Equal(t, "pa$word", password)

		sendMsg(t, srv, &wire.AuthenticationResponse{Accepted: true})
		require.NoError(t, waitFor(t, connectErr))
		assert.Equal(t, types.StateReady, f.eng.State())
	})

	t.Run("认证被拒返回原因", func(t *testing.T) {
		authenticator, err := auth.NewToken("expired-token")
		require.NoError(t, err)

		f := newFixture(t, Config{Authenticator: authenticator})
		srv, msgs := f.accept()

		connectErr := make(chan error, 1)
		go func() { connectErr <- f.eng.Connect(context.Background()) }()

		waitFor(t, msgs)
		sendMsg(t, srv, &wire.AuthenticationResponse{Accepted: false, Reason: "token expired"})

		err = waitFor(t, connectErr)
		require.ErrorIs(t, err, ErrAuthenticationFailed)
		assert.Contains(t, err.Error(), "token expired")
		assert.Equal(t, types.StateDisconnected, f.eng.State())
	})

	t.Run("握手期间对端关闭视为认证失败", func(t *testing.T) {
		authenticator, err := auth.NewToken("some-token")
		require.NoError(t, err)

		f := newFixture(t, Config{Authenticator: authenticator})
		srv, msgs := f.accept()

		connectErr := make(chan error, 1)
		go func() { connectErr <- f.eng.Connect(context.Background()) }()

		waitFor(t, msgs)
		require.NoError(t, srv.Close())

		require.ErrorIs(t, waitFor(t, connectErr), ErrAuthenticationFailed)
	})

	t.Run("重复连接被拒绝", func(t *testing.T) {
		f := newFixture(t, Config{})
		f.accept()

		require.NoError(t, f.eng.Connect(context.Background()))
		require.ErrorIs(t, f.eng.Connect(context.Background()), ErrAlreadyConnected)
	})

	t.Run("拨号失败回到断开状态", func(t *testing.T) {
		dialErr := errors.New("connection refused")
		dialer := transport.DialerFunc(func(context.Context) (io.ReadWriteCloser, error) {
			return nil, dialErr
		})
		eng := New(Config{}, dialer, registry.New(), dispatch.New())

		require.ErrorIs(t, eng.Connect(context.Background()), dialErr)
		assert.Equal(t, types.StateDisconnected, eng.State())

		// 连接失败不是终止，缓冲仍然可用
		assert.NoError(t, eng.Publish("LSE", "VOD", false, nil, []byte("x")))
	})
}

// ============================================================================
//                              重放测试
// ============================================================================

func TestEngine_Replay(t *testing.T) {
	t.Run("按插入顺序重放订阅与通知登记", func(t *testing.T) {
		f := newFixture(t, Config{})
		require.NoError(t, f.eng.Subscribe("LSE", "VOD"))
		require.NoError(t, f.eng.Subscribe("LSE", "TSCO"))
		require.NoError(t, f.eng.RequestNotifications("PUB-1"))

		_, msgs := f.accept()
		require.NoError(t, f.eng.Connect(context.Background()))

		sub1, ok := waitFor(t, msgs).(*wire.Subscribe)
		require.True(t, ok)
		assert.Equal(t, "VOD", sub1.Topic)

		sub2, ok := waitFor(t, msgs).(*wire.Subscribe)
		require.True(t, ok)
		assert.Equal(t, "TSCO", sub2.Topic)

		notif, ok := waitFor(t, msgs).(*wire.NotificationRequest)
		require.True(t, ok)
		assert.Equal(t, "PUB-1", notif.Feed)
		assert.True(t, notif.IsAdd)
	})

	t.Run("重连后重放存续的注册表", func(t *testing.T) {
		f := newFixture(t, Config{})
		closed := onClosed(f)

		srv1, _ := f.accept()
		require.NoError(t, f.eng.Connect(context.Background()))
		require.NoError(t, f.eng.Subscribe("LSE", "VOD"))
		require.NoError(t, f.eng.Subscribe("FTSE", "UKX"))
		require.NoError(t, f.eng.Unsubscribe("LSE", "VOD"))

		require.NoError(t, srv1.Close())
		require.ErrorIs(t, waitFor(t, closed), transport.ErrConnectionClosed)

		_, msgs2 := f.accept()
		require.NoError(t, f.eng.Connect(context.Background()))

		sub, ok := waitFor(t, msgs2).(*wire.Subscribe)
		require.True(t, ok)
		assert.Equal(t, "FTSE", sub.Feed)
		assert.Equal(t, "UKX", sub.Topic)
	})

	t.Run("已连接时的订阅立即出站", func(t *testing.T) {
		f := newFixture(t, Config{})
		_, msgs := f.accept()
		require.NoError(t, f.eng.Connect(context.Background()))

		require.NoError(t, f.eng.Subscribe("LSE", "VOD"))
		sub, ok := waitFor(t, msgs).(*wire.Subscribe)
		require.True(t, ok)
		assert.Equal(t, "VOD", sub.Topic)

		// 重复订阅不产生帧，退订产生一个
		require.NoError(t, f.eng.Subscribe("LSE", "VOD"))
		require.NoError(t, f.eng.Unsubscribe("LSE", "VOD"))
		_, ok = waitFor(t, msgs).(*wire.Unsubscribe)
		require.True(t, ok)
	})
}

// ============================================================================
//                              入站路由测试
// ============================================================================

func TestEngine_Routing(t *testing.T) {
	t.Run("数据帧投递给数据回调", func(t *testing.T) {
		f := newFixture(t, Config{})
		events := make(chan *types.DataEvent, 1)
		f.disp.OnData(func(ev *types.DataEvent) { events <- ev })

		srv, _ := f.accept()
		require.NoError(t, f.eng.Connect(context.Background()))

		sendMsg(t, srv, &wire.Data{
			Feed:         "LSE",
			Topic:        "VOD",
			Entitlements: []int32{1, 2},
			Payload:      []byte("bid=102.4"),
			IsImage:      true,
		})

		ev := waitFor(t, events)
		assert.Equal(t, "LSE", ev.Feed)
		assert.Equal(t, "VOD", ev.Topic)
		assert.True(t, ev.IsImage)
		assert.Equal(t, []int32{1, 2}, ev.Packet.Entitlements)
		assert.Equal(t, []byte("bid=102.4"), ev.Packet.Data)
	})

	t.Run("通知帧记录转发关系并投递", func(t *testing.T) {
		f := newFixture(t, Config{})
		events := make(chan *types.ForwardedSubscription, 1)
		f.disp.OnNotification(func(ev *types.ForwardedSubscription) { events <- ev })

		srv, _ := f.accept()
		require.NoError(t, f.eng.Connect(context.Background()))

		clientID := uuid.New()
		sendMsg(t, srv, &wire.Notification{
			ClientID: clientID,
			User:     "trader1",
			Host:     "desk-3",
			Feed:     "PUB-1",
			Topic:    "prices",
			IsAdd:    true,
		})

		ev := waitFor(t, events)
		assert.Equal(t, clientID, ev.ClientID)
		assert.True(t, ev.IsAdd)

		fwds := f.reg.ActiveForwardings()
		require.Len(t, fwds, 1)
		assert.Equal(t, "PUB-1", fwds[0].Feed)
	})

	t.Run("未知帧类型跳过而不断开", func(t *testing.T) {
		f := newFixture(t, Config{})
		events := make(chan *types.DataEvent, 1)
		f.disp.OnData(func(ev *types.DataEvent) { events <- ev })

		srv, _ := f.accept()
		require.NoError(t, f.eng.Connect(context.Background()))

		require.NoError(t, srv.Send(&wire.Frame{Kind: wire.Kind(200), Payload: []byte{0}}))
		sendMsg(t, srv, &wire.Data{Feed: "LSE", Topic: "VOD", Payload: []byte("x")})

		ev := waitFor(t, events)
		assert.Equal(t, "VOD", ev.Topic)
		assert.Equal(t, types.StateReady, f.eng.State())
	})

	t.Run("回调 panic 不终止连接", func(t *testing.T) {
		f := newFixture(t, Config{})
		events := make(chan *types.DataEvent, 1)
		f.disp.OnData(func(*types.DataEvent) { panic("handler bug") })
		f.disp.OnData(func(ev *types.DataEvent) { events <- ev })

		srv, _ := f.accept()
		require.NoError(t, f.eng.Connect(context.Background()))

		sendMsg(t, srv, &wire.Data{Feed: "LSE", Topic: "VOD"})
		waitFor(t, events)
		assert.Equal(t, types.StateReady, f.eng.State())
	})
}

// ============================================================================
//                              授权测试
// ============================================================================

func TestEngine_Authorization(t *testing.T) {
	clientID := uuid.MustParse("6d1f3f05-93e4-4f9f-8a28-24a4758cd8f0")

	request := &wire.AuthorizationRequest{
		ClientID: clientID,
		Host:     "desk-3",
		User:     "trader1",
		Feed:     "PUB-1",
		Topic:    "prices",
	}

	t.Run("处理器应答产生恰好一个响应帧", func(t *testing.T) {
		f := newFixture(t, Config{})
		f.disp.OnAuthorization(func(req *types.AuthorizationRequest) {
			f.eng.Authorize(&types.AuthorizationResponse{
				ClientID:     req.ClientID,
				Host:         req.Host,
				User:         req.User,
				Feed:         req.Feed,
				Topic:        req.Topic,
				IsAuthorized: true,
				Entitlements: []int32{1, 2},
			})
		})

		srv, msgs := f.accept()
		require.NoError(t, f.eng.Connect(context.Background()))
		sendMsg(t, srv, request)

		resp, ok := waitFor(t, msgs).(*wire.AuthorizationResponse)
		require.True(t, ok)
		assert.Equal(t, clientID, resp.ClientID)
		assert.Equal(t, "PUB-1", resp.Feed)
		assert.Equal(t, "prices", resp.Topic)
		assert.True(t, resp.IsAuthorized)
		assert.Equal(t, []int32{1, 2}, resp.Entitlements)

		select {
		case extra := <-msgs:
			t.Fatalf("unexpected extra frame %T", extra)
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("有效期内的重复请求由缓存应答", func(t *testing.T) {
		f := newFixture(t, Config{AuthorizationCacheTTL: time.Minute})
		var handlerCalls atomic.Int32
		f.disp.OnAuthorization(func(req *types.AuthorizationRequest) {
			handlerCalls.Add(1)
			f.eng.Authorize(&types.AuthorizationResponse{
				ClientID:     req.ClientID,
				Feed:         req.Feed,
				Topic:        req.Topic,
				IsAuthorized: true,
			})
		})

		srv, msgs := f.accept()
		require.NoError(t, f.eng.Connect(context.Background()))

		sendMsg(t, srv, request)
		first, ok := waitFor(t, msgs).(*wire.AuthorizationResponse)
		require.True(t, ok)
		assert.True(t, first.IsAuthorized)

		sendMsg(t, srv, request)
		second, ok := waitFor(t, msgs).(*wire.AuthorizationResponse)
		require.True(t, ok)
		assert.True(t, second.IsAuthorized)
		assert.Equal(t, clientID, second.ClientID)

		assert.Equal(t, int32(1), handlerCalls.Load())
	})

	t.Run("无授权处理器时按拒绝应答", func(t *testing.T) {
		f := newFixture(t, Config{})
		srv, msgs := f.accept()
		require.NoError(t, f.eng.Connect(context.Background()))

		sendMsg(t, srv, request)
		resp, ok := waitFor(t, msgs).(*wire.AuthorizationResponse)
		require.True(t, ok)
		assert.False(t, resp.IsAuthorized)
		assert.Equal(t, clientID, resp.ClientID)
	})
}

// ============================================================================
//                              缓冲策略测试
// ============================================================================

func TestEngine_Buffering(t *testing.T) {
	t.Run("连接前的发布被缓冲并在就绪后出站", func(t *testing.T) {
		f := newFixture(t, Config{})
		require.NoError(t, f.eng.Publish("LSE", "VOD", false, nil, []byte("early")))

		_, msgs := f.accept()
		require.NoError(t, f.eng.Connect(context.Background()))

		data, ok := waitFor(t, msgs).(*wire.Data)
		require.True(t, ok)
		assert.Equal(t, []byte("early"), data.Payload)
	})

	t.Run("队列满返回未就绪错误", func(t *testing.T) {
		f := newFixture(t, Config{QueueSize: 1})
		require.NoError(t, f.eng.Publish("LSE", "VOD", false, nil, []byte("1")))
		require.ErrorIs(t, f.eng.Publish("LSE", "VOD", false, nil, []byte("2")), ErrNotReady)
	})

	t.Run("连接终止后返回已关闭错误", func(t *testing.T) {
		f := newFixture(t, Config{})
		f.accept()
		require.NoError(t, f.eng.Connect(context.Background()))
		require.NoError(t, f.eng.Close())

		require.ErrorIs(t, f.eng.Publish("LSE", "VOD", false, nil, []byte("x")), ErrClosed)
	})

	t.Run("从未连接的引擎关闭后同样拒绝", func(t *testing.T) {
		f := newFixture(t, Config{})
		require.NoError(t, f.eng.Close())
		require.ErrorIs(t, f.eng.Publish("LSE", "VOD", false, nil, nil), ErrClosed)
	})
}

// ============================================================================
//                              终止测试
// ============================================================================

func TestEngine_Termination(t *testing.T) {
	t.Run("本地关闭以 nil 投递关闭回调", func(t *testing.T) {
		f := newFixture(t, Config{})
		closed := onClosed(f)

		f.accept()
		require.NoError(t, f.eng.Connect(context.Background()))
		require.NoError(t, f.eng.Close())

		assert.NoError(t, waitFor(t, closed))
		assert.Equal(t, types.StateDisconnected, f.eng.State())
	})

	t.Run("对端关闭携带终止原因", func(t *testing.T) {
		f := newFixture(t, Config{})
		closed := onClosed(f)

		srv, _ := f.accept()
		require.NoError(t, f.eng.Connect(context.Background()))
		require.NoError(t, srv.Close())

		require.ErrorIs(t, waitFor(t, closed), transport.ErrConnectionClosed)
		assert.Equal(t, types.StateDisconnected, f.eng.State())
	})

	t.Run("超限帧是致命错误", func(t *testing.T) {
		f := newFixture(t, Config{MaxFrame: 64})
		closed := onClosed(f)

		srv, _ := f.accept()
		require.NoError(t, f.eng.Connect(context.Background()))

		sendMsg(t, srv, &wire.Data{Feed: "LSE", Topic: "VOD", Payload: make([]byte, 128)})

		require.ErrorIs(t, waitFor(t, closed), wire.ErrFrameTooLarge)
		assert.Equal(t, types.StateDisconnected, f.eng.State())
	})

	t.Run("关闭回调每条连接恰好一次", func(t *testing.T) {
		f := newFixture(t, Config{})
		closed := make(chan error, 4)
		f.disp.OnClosed(func(err error) { closed <- err })

		f.accept()
		require.NoError(t, f.eng.Connect(context.Background()))
		require.NoError(t, f.eng.Close())
		require.NoError(t, f.eng.Close())

		waitFor(t, closed)
		select {
		case <-closed:
			t.Fatal("closed callback fired twice")
		case <-time.After(50 * time.Millisecond):
		}
	})
}

// ============================================================================
//                              心跳测试
// ============================================================================

func TestEngine_Heartbeat(t *testing.T) {
	t.Run("启用监控时重放心跳订阅并跟踪心跳", func(t *testing.T) {
		mock := clock.NewMock()
		f := newFixture(t, Config{
			Heartbeat:        true,
			HeartbeatTimeout: 10 * time.Second,
			Clock:            mock,
		})
		beats := make(chan *types.DataEvent, 1)
		f.disp.OnData(func(ev *types.DataEvent) { beats <- ev })

		srv, msgs := f.accept()
		require.NoError(t, f.eng.Connect(context.Background()))

		sub, ok := waitFor(t, msgs).(*wire.Subscribe)
		require.True(t, ok)
		assert.Equal(t, liveness.HeartbeatFeed, sub.Feed)
		assert.Equal(t, liveness.HeartbeatTopic, sub.Topic)
		assert.True(t, f.eng.Alive())

		sendMsg(t, srv, &wire.Data{Feed: liveness.HeartbeatFeed, Topic: liveness.HeartbeatTopic})
		waitFor(t, beats)
		assert.True(t, f.eng.Alive())

		mock.Add(11 * time.Second)
		assert.False(t, f.eng.Alive())
	})

	t.Run("未启用监控时以就绪状态为准", func(t *testing.T) {
		f := newFixture(t, Config{})
		assert.False(t, f.eng.Alive())

		f.accept()
		require.NoError(t, f.eng.Connect(context.Background()))
		assert.True(t, f.eng.Alive())
	})
}
