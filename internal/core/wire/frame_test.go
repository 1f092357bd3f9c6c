// Package wire 帧编解码测试
package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
//                              Decoder 测试
// ============================================================================

func TestDecoder_SingleFrame(t *testing.T) {
	t.Run("完整帧一次解出", func(t *testing.T) {
		frame := &Frame{Kind: KindSubscribe, Payload: []byte("hello")}

		d := NewDecoder(0)
		d.Feed(frame.Encode())

		got, err := d.Next()
		require.NoError(t, err)
		assert.Equal(t, KindSubscribe, got.Kind)
		assert.Equal(t, []byte("hello"), got.Payload)
		assert.Equal(t, 0, d.Buffered())
	})

	t.Run("空载荷帧", func(t *testing.T) {
		frame := &Frame{Kind: KindAuthenticationRequest}

		d := NewDecoder(0)
		d.Feed(frame.Encode())

		got, err := d.Next()
		require.NoError(t, err)
		assert.Equal(t, KindAuthenticationRequest, got.Kind)
		assert.Empty(t, got.Payload)
	})

	t.Run("数据不足返回 ErrShortFrame", func(t *testing.T) {
		d := NewDecoder(0)
		d.Feed([]byte{0, 0})

		got, err := d.Next()
		assert.Nil(t, got)
		assert.ErrorIs(t, err, ErrShortFrame)
	})
}

func TestDecoder_PartialReads(t *testing.T) {
	t.Run("任意字节边界切分均可续传", func(t *testing.T) {
		frame := &Frame{Kind: KindData, Payload: []byte("partial read resumability")}
		encoded := frame.Encode()

		// 在每个可能的切分点各验证一次
		for split := 1; split < len(encoded); split++ {
			d := NewDecoder(0)

			d.Feed(encoded[:split])
			got, err := d.Next()
			require.Nil(t, got, "split=%d", split)
			require.ErrorIs(t, err, ErrShortFrame, "split=%d", split)

			d.Feed(encoded[split:])
			got, err = d.Next()
			require.NoError(t, err, "split=%d", split)
			assert.Equal(t, frame.Kind, got.Kind)
			assert.Equal(t, frame.Payload, got.Payload)
		}
	})

	t.Run("逐字节喂入", func(t *testing.T) {
		frame := &Frame{Kind: KindNotification, Payload: []byte{0xde, 0xad, 0xbe, 0xef}}
		encoded := frame.Encode()

		d := NewDecoder(0)
		for i, b := range encoded {
			d.Feed([]byte{b})
			got, err := d.Next()
			if i < len(encoded)-1 {
				require.ErrorIs(t, err, ErrShortFrame)
			} else {
				require.NoError(t, err)
				assert.Equal(t, frame.Payload, got.Payload)
			}
		}
	})

	t.Run("多帧粘连逐一解出", func(t *testing.T) {
		f1 := &Frame{Kind: KindSubscribe, Payload: []byte("one")}
		f2 := &Frame{Kind: KindUnsubscribe, Payload: []byte("two")}
		f3 := &Frame{Kind: KindData, Payload: []byte("three")}

		d := NewDecoder(0)
		d.Feed(append(append(f1.Encode(), f2.Encode()...), f3.Encode()...))

		for _, want := range []*Frame{f1, f2, f3} {
			got, err := d.Next()
			require.NoError(t, err)
			assert.Equal(t, want.Kind, got.Kind)
			assert.Equal(t, want.Payload, got.Payload)
		}

		_, err := d.Next()
		assert.ErrorIs(t, err, ErrShortFrame)
	})
}

func TestDecoder_Limits(t *testing.T) {
	t.Run("超长帧返回 ErrFrameTooLarge", func(t *testing.T) {
		d := NewDecoder(16)
		d.Feed([]byte{0x00, 0x00, 0x01, 0x00})

		_, err := d.Next()
		assert.ErrorIs(t, err, ErrFrameTooLarge)
	})

	t.Run("零长度帧视为损坏", func(t *testing.T) {
		d := NewDecoder(0)
		d.Feed([]byte{0, 0, 0, 0})

		_, err := d.Next()
		assert.ErrorIs(t, err, ErrTruncatedPayload)
	})

	t.Run("默认上限为 MaxFrameLength", func(t *testing.T) {
		d := NewDecoder(0)
		assert.Equal(t, MaxFrameLength, d.maxFrame)
	})
}

// ============================================================================
//                              Kind 测试
// ============================================================================

func TestKind(t *testing.T) {
	t.Run("封闭集合校验", func(t *testing.T) {
		for k := KindData; k <= KindNotificationRequest; k++ {
			assert.True(t, k.Valid(), "kind %d", k)
		}
		assert.False(t, Kind(0).Valid())
		assert.False(t, Kind(42).Valid())
	})

	t.Run("名称", func(t *testing.T) {
		assert.Equal(t, "data", KindData.String())
		assert.Equal(t, "authorization-response", KindAuthorizationResponse.String())
		assert.Equal(t, "kind(99)", Kind(99).String())
	})
}
