package wire

import (
	"bytes"
	"encoding/binary"

	"github.com/google/uuid"
)

// ============================================================================
//                              载荷写入
// ============================================================================

// Writer 载荷写入器
//
// 按总线的二进制约定写入基本类型：
// 大端 int32 长度前缀的字符串与字节数组、单字节布尔、
// 大端 int32 集合、Microsoft 字节序的 UUID。
type Writer struct {
	buf bytes.Buffer
}

// NewWriter 创建载荷写入器
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes 返回已写入的载荷字节
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// WriteBool 写入布尔（1 字节）
func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

// WriteInt32 写入大端 int32
func (w *Writer) WriteInt32(v int32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(v))
	w.buf.Write(tmp[:])
}

// WriteString 写入长度前缀字符串
func (w *Writer) WriteString(s string) {
	w.WriteInt32(int32(len(s)))
	w.buf.WriteString(s)
}

// WriteBytes 写入长度前缀字节数组
//
// nil 或空数组写为长度 0。
func (w *Writer) WriteBytes(b []byte) {
	w.WriteInt32(int32(len(b)))
	w.buf.Write(b)
}

// WriteUUID 写入 UUID（16 字节，Microsoft 字节序）
//
// 总线服务端使用 GUID 混合字节序：前三个字段小端，其余大端。
func (w *Writer) WriteUUID(id uuid.UUID) {
	w.buf.Write(uuidToWire(id))
}

// WriteInt32Set 写入 int32 集合（计数 + 各值）
//
// nil 或空集合写为计数 0。
func (w *Writer) WriteInt32Set(vs []int32) {
	w.WriteInt32(int32(len(vs)))
	for _, v := range vs {
		w.WriteInt32(v)
	}
}

// uuidToWire 转换为线路字节序
func uuidToWire(id uuid.UUID) []byte {
	b := make([]byte, 16)
	b[0], b[1], b[2], b[3] = id[3], id[2], id[1], id[0]
	b[4], b[5] = id[5], id[4]
	b[6], b[7] = id[7], id[6]
	copy(b[8:], id[8:])
	return b
}

// uuidFromWire 从线路字节序还原
func uuidFromWire(b []byte) uuid.UUID {
	var id uuid.UUID
	id[0], id[1], id[2], id[3] = b[3], b[2], b[1], b[0]
	id[4], id[5] = b[5], b[4]
	id[6], id[7] = b[7], b[6]
	copy(id[8:], b[8:])
	return id
}
