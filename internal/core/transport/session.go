// Package transport 实现总线连接的传输会话
//
// Session 持有底层字节流（明文或由外部工厂加密），
// 提供帧级别的发送与接收原语。加密上下文永远不在
// 这里构造，由调用方通过 Dialer 提供就绪的流。
package transport

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-feedbus/internal/core/wire"
	"github.com/dep2p/go-feedbus/internal/util/logger"
)

var log = logger.Logger("transport")

// readChunk 单次底层读取的缓冲大小
const readChunk = 32 * 1024

// Session 传输会话
//
// 发送端由互斥锁串行化，任意 goroutine 可并发调用 Send，
// 帧不会在写入中途交错。接收端必须由单一 goroutine 驱动。
// Close 幂等，可在任意并发上下文调用，并使阻塞中的
// Receive 以 ErrConnectionClosed 返回。
type Session struct {
	conn io.ReadWriteCloser
	dec  *wire.Decoder

	writeMu sync.Mutex

	closeOnce sync.Once
	closed    atomic.Bool
	closeErr  error
}

// NewSession 创建传输会话
//
// maxFrame 为 0 时使用 wire.MaxFrameLength。
func NewSession(conn io.ReadWriteCloser, maxFrame uint32) *Session {
	return &Session{
		conn: conn,
		dec:  wire.NewDecoder(maxFrame),
	}
}

// Send 发送一个帧
func (s *Session) Send(f *wire.Frame) error {
	if s.closed.Load() {
		return ErrConnectionClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.conn.Write(f.Encode()); err != nil {
		if s.closed.Load() {
			return ErrConnectionClosed
		}
		return fmt.Errorf("send frame: %w", err)
	}
	return nil
}

// Receive 接收一个完整帧
//
// 阻塞直到解出完整帧或流关闭。字节按到达顺序交给解码器，
// 跨任意读取边界续传。
func (s *Session) Receive() (*wire.Frame, error) {
	buf := make([]byte, readChunk)
	for {
		frame, err := s.dec.Next()
		if err == nil {
			return frame, nil
		}
		if !errors.Is(err, wire.ErrShortFrame) {
			// 帧超限或损坏，对连接是致命的
			return nil, err
		}

		n, err := s.conn.Read(buf)
		if n > 0 {
			s.dec.Feed(buf[:n])
			continue
		}
		if err != nil {
			if s.closed.Load() || errors.Is(err, io.EOF) {
				return nil, ErrConnectionClosed
			}
			return nil, fmt.Errorf("%w: %v", ErrConnectionClosed, err)
		}
	}
}

// Close 关闭会话
//
// 幂等；重复调用返回首次的结果。
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.closeErr = s.conn.Close()
		log.Debug("session closed")
	})
	return s.closeErr
}
