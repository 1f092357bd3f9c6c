package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// ============================================================================
//                              载荷读取
// ============================================================================

// Reader 载荷读取器
//
// 与 Writer 对称，在完整的帧载荷上顺序读取。
// 载荷耗尽时返回 ErrTruncatedPayload。
type Reader struct {
	buf []byte
	off int
}

// NewReader 创建载荷读取器
func NewReader(payload []byte) *Reader {
	return &Reader{buf: payload}
}

// Remaining 返回未读取的字节数
func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

// take 取出 n 个字节
func (r *Reader) take(n int) ([]byte, error) {
	if r.Remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncatedPayload, n, r.Remaining())
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// ReadBool 读取布尔
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.take(1)
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

// ReadInt32 读取大端 int32
func (r *Reader) ReadInt32() (int32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

// readCount 读取非负计数
func (r *Reader) readCount() (int, error) {
	n, err := r.ReadInt32()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative count %d", ErrTruncatedPayload, n)
	}
	return int(n), nil
}

// ReadString 读取长度前缀字符串
func (r *Reader) ReadString() (string, error) {
	n, err := r.readCount()
	if err != nil {
		return "", err
	}
	b, err := r.take(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadBytes 读取长度前缀字节数组
//
// 长度 0 返回 nil。
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.readCount()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	b, err := r.take(n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

// ReadUUID 读取 UUID（16 字节，Microsoft 字节序）
func (r *Reader) ReadUUID() (uuid.UUID, error) {
	b, err := r.take(16)
	if err != nil {
		return uuid.Nil, err
	}
	return uuidFromWire(b), nil
}

// ReadInt32Set 读取 int32 集合
//
// 计数 0 返回 nil。
func (r *Reader) ReadInt32Set() ([]int32, error) {
	n, err := r.readCount()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if n*4 > r.Remaining() {
		return nil, fmt.Errorf("%w: set count %d exceeds payload", ErrTruncatedPayload, n)
	}
	vs := make([]int32, 0, n)
	for i := 0; i < n; i++ {
		v, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		vs = append(vs, v)
	}
	return vs, nil
}
