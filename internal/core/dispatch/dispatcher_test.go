// Package dispatch 回调分发器测试
package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-feedbus/pkg/types"
)

// ============================================================================
//                              分发顺序测试
// ============================================================================

func TestDispatcher_Order(t *testing.T) {
	t.Run("按注册顺序投递", func(t *testing.T) {
		d := New()
		var calls []int

		d.OnData(func(*types.DataEvent) { calls = append(calls, 1) })
		d.OnData(func(*types.DataEvent) { calls = append(calls, 2) })
		d.OnData(func(*types.DataEvent) { calls = append(calls, 3) })

		d.DispatchData(&types.DataEvent{Feed: "LSE", Topic: "VOD"})

		assert.Equal(t, []int{1, 2, 3}, calls)
	})

	t.Run("各类事件互不串扰", func(t *testing.T) {
		d := New()
		var dataCalls, notifyCalls int

		d.OnData(func(*types.DataEvent) { dataCalls++ })
		d.OnNotification(func(*types.ForwardedSubscription) { notifyCalls++ })

		d.DispatchData(&types.DataEvent{})
		d.DispatchData(&types.DataEvent{})
		d.DispatchNotification(&types.ForwardedSubscription{})

		assert.Equal(t, 2, dataCalls)
		assert.Equal(t, 1, notifyCalls)
	})
}

// ============================================================================
//                              隔离测试
// ============================================================================

func TestDispatcher_Isolation(t *testing.T) {
	t.Run("处理器 panic 不影响后续处理器", func(t *testing.T) {
		d := New()
		var secondCalled bool

		d.OnData(func(*types.DataEvent) { panic("first handler explodes") })
		d.OnData(func(*types.DataEvent) { secondCalled = true })

		require.NotPanics(t, func() {
			d.DispatchData(&types.DataEvent{Feed: "LSE", Topic: "VOD"})
		})
		assert.True(t, secondCalled)
	})

	t.Run("closed 处理器 panic 同样被隔离", func(t *testing.T) {
		d := New()
		var called int

		d.OnClosed(func(error) { panic("boom") })
		d.OnClosed(func(error) { called++ })

		require.NotPanics(t, func() { d.DispatchClosed(nil) })
		assert.Equal(t, 1, called)
	})
}

// ============================================================================
//                              拷贝迭代测试
// ============================================================================

func TestDispatcher_CopyOnIterate(t *testing.T) {
	t.Run("分发期间移除自身对本次无影响", func(t *testing.T) {
		d := New()
		var calls []string

		var removeFirst func()
		removeFirst = d.OnData(func(*types.DataEvent) {
			calls = append(calls, "first")
			removeFirst()
		})
		d.OnData(func(*types.DataEvent) { calls = append(calls, "second") })

		d.DispatchData(&types.DataEvent{})
		assert.Equal(t, []string{"first", "second"}, calls)

		// 移除从下一个事件开始生效
		d.DispatchData(&types.DataEvent{})
		assert.Equal(t, []string{"first", "second", "second"}, calls)
	})

	t.Run("分发期间新增处理器从下一个事件生效", func(t *testing.T) {
		d := New()
		var calls int

		d.OnNotification(func(*types.ForwardedSubscription) {
			if calls == 0 {
				d.OnNotification(func(*types.ForwardedSubscription) { calls += 10 })
			}
			calls++
		})

		d.DispatchNotification(&types.ForwardedSubscription{})
		assert.Equal(t, 1, calls)

		d.DispatchNotification(&types.ForwardedSubscription{})
		assert.Equal(t, 12, calls)
	})

	t.Run("移除函数幂等", func(t *testing.T) {
		d := New()
		var calls int

		remove := d.OnAuthorization(func(*types.AuthorizationRequest) { calls++ })
		remove()
		remove()

		d.DispatchAuthorization(&types.AuthorizationRequest{})
		assert.Zero(t, calls)
	})
}

func TestDispatcher_HasAuthorizationHandlers(t *testing.T) {
	d := New()
	assert.False(t, d.HasAuthorizationHandlers())

	remove := d.OnAuthorization(func(*types.AuthorizationRequest) {})
	assert.True(t, d.HasAuthorizationHandlers())

	remove()
	assert.False(t, d.HasAuthorizationHandlers())
}
