package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"

	"github.com/gorilla/websocket"
)

// ============================================================================
//                              Dialer 接口
// ============================================================================

// Dialer 流工厂
//
// 返回已连接（可能已加密）的字节流端点。
// 引擎只消费就绪的流，不关心其建立方式。
type Dialer interface {
	// Dial 建立连接
	Dial(ctx context.Context) (io.ReadWriteCloser, error)
}

// DialerFunc 函数适配器
type DialerFunc func(ctx context.Context) (io.ReadWriteCloser, error)

// Dial 建立连接
func (f DialerFunc) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	return f(ctx)
}

// ============================================================================
//                              TCP / TLS
// ============================================================================

// TCPDialer TCP 流工厂
//
// TLSConfig 非空时在 TCP 之上做 TLS 握手。
// TLSConfig 由调用方构造并传入，这里不做任何证书决策。
type TCPDialer struct {
	// Addr host:port 形式的服务端地址
	Addr string

	// TLSConfig 可选的 TLS 配置
	TLSConfig *tls.Config
}

// Dial 建立连接
func (d *TCPDialer) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	var nd net.Dialer
	conn, err := nd.DialContext(ctx, "tcp", d.Addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.Addr, err)
	}

	if d.TLSConfig == nil {
		return conn, nil
	}

	tlsConn := tls.Client(conn, d.TLSConfig)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake with %s: %w", d.Addr, err)
	}
	return tlsConn, nil
}

// ============================================================================
//                              WebSocket
// ============================================================================

// WebsocketDialer WebSocket 流工厂
//
// 帧作为二进制消息传输；URL 使用 wss 时由 gorilla
// 处理 TLS，TLSConfig 可覆盖其默认配置。
type WebsocketDialer struct {
	// URL ws:// 或 wss:// 地址
	URL string

	// TLSConfig 可选的 TLS 配置
	TLSConfig *tls.Config
}

// Dial 建立连接
func (d *WebsocketDialer) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	dialer := websocket.Dialer{TLSClientConfig: d.TLSConfig}
	conn, _, err := dialer.DialContext(ctx, d.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.URL, err)
	}
	return &wsStream{conn: conn}, nil
}

// wsStream 将 WebSocket 连接适配为字节流
type wsStream struct {
	conn    *websocket.Conn
	current io.Reader
}

// Read 从二进制消息流读取
func (s *wsStream) Read(p []byte) (int, error) {
	for {
		if s.current == nil {
			_, r, err := s.conn.NextReader()
			if err != nil {
				return 0, err
			}
			s.current = r
		}

		n, err := s.current.Read(p)
		if err == io.EOF {
			// 当前消息读尽，继续下一条
			s.current = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

// Write 作为一条二进制消息写出
func (s *wsStream) Write(p []byte) (int, error) {
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close 关闭连接
func (s *wsStream) Close() error {
	return s.conn.Close()
}
