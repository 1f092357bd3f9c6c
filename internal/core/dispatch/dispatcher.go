// Package dispatch 实现回调分发器
//
// 分发器为每类事件（数据、通知、授权、关闭）维护一个按注册
// 顺序排列的处理器列表。投递采用拷贝迭代：分发期间对列表的
// 增删只对下一个事件生效，绝不在迭代中途改变序列。
//
// 单个处理器的 panic 被就地隔离并记录，不影响后续处理器，
// 也不会中断入站读循环或关闭连接。
//
// 投递默认运行在入站读 goroutine 上：会阻塞的处理器必须
// 自行把耗时工作转移到其他执行上下文。
package dispatch

import (
	"sync"

	"github.com/dep2p/go-feedbus/internal/util/logger"
	"github.com/dep2p/go-feedbus/pkg/types"
)

var log = logger.Logger("dispatch")

// ============================================================================
//                              处理器列表
// ============================================================================

// handlerEntry 带序号的处理器
type handlerEntry[T any] struct {
	id uint64
	fn T
}

// handlerList 按注册顺序排列的处理器列表
type handlerList[T any] struct {
	mu      sync.Mutex
	nextID  uint64
	entries []handlerEntry[T]
}

// add 注册处理器，返回移除函数
//
// 移除函数幂等，可在分发回调内调用；生效时机是下一个事件。
func (l *handlerList[T]) add(fn T) (remove func()) {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.entries = append(l.entries, handlerEntry[T]{id: id, fn: fn})
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, e := range l.entries {
			if e.id == id {
				// 拷贝后删除，避免改写正在迭代的快照底层数组
				entries := make([]handlerEntry[T], 0, len(l.entries)-1)
				entries = append(entries, l.entries[:i]...)
				entries = append(entries, l.entries[i+1:]...)
				l.entries = entries
				return
			}
		}
	}
}

// snapshot 返回当前处理器的拷贝
func (l *handlerList[T]) snapshot() []T {
	l.mu.Lock()
	defer l.mu.Unlock()

	fns := make([]T, len(l.entries))
	for i, e := range l.entries {
		fns[i] = e.fn
	}
	return fns
}

// len 返回当前处理器数量
func (l *handlerList[T]) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// ============================================================================
//                              Dispatcher 实现
// ============================================================================

// Dispatcher 回调分发器
type Dispatcher struct {
	data          handlerList[types.DataHandler]
	notification  handlerList[types.NotificationHandler]
	authorization handlerList[types.AuthorizationHandler]
	closed        handlerList[types.ClosedHandler]
}

// New 创建分发器
func New() *Dispatcher {
	return &Dispatcher{}
}

// OnData 注册数据处理器
func (d *Dispatcher) OnData(h types.DataHandler) (remove func()) {
	return d.data.add(h)
}

// OnNotification 注册通知处理器
func (d *Dispatcher) OnNotification(h types.NotificationHandler) (remove func()) {
	return d.notification.add(h)
}

// OnAuthorization 注册授权处理器
func (d *Dispatcher) OnAuthorization(h types.AuthorizationHandler) (remove func()) {
	return d.authorization.add(h)
}

// OnClosed 注册关闭处理器
func (d *Dispatcher) OnClosed(h types.ClosedHandler) (remove func()) {
	return d.closed.add(h)
}

// HasAuthorizationHandlers 是否存在授权处理器
//
// 引擎用它判断授权请求是否会被应答。
func (d *Dispatcher) HasAuthorizationHandlers() bool {
	return d.authorization.len() > 0
}

// DispatchData 投递数据事件
func (d *Dispatcher) DispatchData(ev *types.DataEvent) {
	for _, h := range d.data.snapshot() {
		invoke(func() { h(ev) }, "data")
	}
}

// DispatchNotification 投递转发订阅通知
func (d *Dispatcher) DispatchNotification(ev *types.ForwardedSubscription) {
	for _, h := range d.notification.snapshot() {
		invoke(func() { h(ev) }, "notification")
	}
}

// DispatchAuthorization 投递授权请求
func (d *Dispatcher) DispatchAuthorization(ev *types.AuthorizationRequest) {
	for _, h := range d.authorization.snapshot() {
		invoke(func() { h(ev) }, "authorization")
	}
}

// DispatchClosed 投递关闭事件
func (d *Dispatcher) DispatchClosed(err error) {
	for _, h := range d.closed.snapshot() {
		invoke(func() { h(err) }, "closed")
	}
}

// invoke 执行处理器并隔离 panic
func invoke(fn func(), category string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("handler panicked", "category", category, "panic", r)
		}
	}()
	fn()
}
