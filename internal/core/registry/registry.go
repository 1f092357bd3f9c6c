// Package registry 实现本地订阅注册表
//
// 注册表维护两类会话级状态：
//   - 本客户端声明的 (feed, topic) 订阅兴趣
//   - 服务端转发来的其他客户端的订阅关系（本客户端作为
//     feed 服务方时需要感知）
//
// 重连后引擎按插入顺序重放 Snapshot，使服务端状态与本地
// 状态精确一致。订阅与退订是幂等的，采用"仅状态变化时通知
// 服务端"策略：对已激活订阅的重复 Subscribe 是本地空操作，
// 不触发出站帧。
package registry

import (
	"sync"

	"github.com/google/uuid"

	"github.com/dep2p/go-feedbus/internal/util/logger"
	"github.com/dep2p/go-feedbus/pkg/types"
)

var log = logger.Logger("registry")

// forwardingKey 转发关系的唯一标识
type forwardingKey struct {
	clientID uuid.UUID
	feed     string
	topic    string
}

// Registry 订阅注册表
//
// 所有方法并发安全。每个引擎实例独占一个注册表。
type Registry struct {
	mu sync.RWMutex

	// subscriptions 活跃订阅，值为插入序号
	subscriptions map[types.Subscription]struct{}

	// order 订阅插入顺序
	order []types.Subscription

	// notifications 已登记订阅通知的 feed
	notifications map[string]struct{}

	// notificationOrder feed 登记顺序
	notificationOrder []string

	// forwardings 活跃的转发订阅关系
	forwardings map[forwardingKey]types.ForwardedSubscription

	// forwardingOrder 转发关系插入顺序
	forwardingOrder []forwardingKey
}

// New 创建注册表
func New() *Registry {
	return &Registry{
		subscriptions: make(map[types.Subscription]struct{}),
		notifications: make(map[string]struct{}),
		forwardings:   make(map[forwardingKey]types.ForwardedSubscription),
	}
}

// ============================================================================
//                              订阅
// ============================================================================

// Subscribe 登记订阅
//
// 返回 true 表示状态发生变化（需要通知服务端）。
// 对已激活订阅的重复调用返回 false。
func (r *Registry) Subscribe(feed, topic string) bool {
	sub := types.Subscription{Feed: feed, Topic: topic}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subscriptions[sub]; ok {
		return false
	}
	r.subscriptions[sub] = struct{}{}
	r.order = append(r.order, sub)
	return true
}

// Unsubscribe 移除订阅
//
// 返回 true 表示状态发生变化。未订阅时为空操作。
func (r *Registry) Unsubscribe(feed, topic string) bool {
	sub := types.Subscription{Feed: feed, Topic: topic}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subscriptions[sub]; !ok {
		return false
	}
	delete(r.subscriptions, sub)
	for i, s := range r.order {
		if s == sub {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// IsSubscribed 查询订阅状态
func (r *Registry) IsSubscribed(feed, topic string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.subscriptions[types.Subscription{Feed: feed, Topic: topic}]
	return ok
}

// Snapshot 返回按插入顺序排列的活跃订阅
//
// 用于重连后的重放。
func (r *Registry) Snapshot() []types.Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]types.Subscription(nil), r.order...)
}

// ============================================================================
//                              订阅通知登记
// ============================================================================

// RequestNotifications 登记对 feed 的订阅通知兴趣
//
// 返回 true 表示状态发生变化。
func (r *Registry) RequestNotifications(feed string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.notifications[feed]; ok {
		return false
	}
	r.notifications[feed] = struct{}{}
	r.notificationOrder = append(r.notificationOrder, feed)
	return true
}

// RelinquishNotifications 取消对 feed 的订阅通知兴趣
func (r *Registry) RelinquishNotifications(feed string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.notifications[feed]; !ok {
		return false
	}
	delete(r.notifications, feed)
	for i, f := range r.notificationOrder {
		if f == feed {
			r.notificationOrder = append(r.notificationOrder[:i], r.notificationOrder[i+1:]...)
			break
		}
	}
	return true
}

// NotificationFeeds 返回按登记顺序排列的通知兴趣
func (r *Registry) NotificationFeeds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.notificationOrder...)
}

// ============================================================================
//                              转发订阅关系
// ============================================================================

// RecordForwarding 记录服务端转发的订阅关系
//
// IsAdd=false 清除对应的已有条目。关系仅被记录，
// 不会被自动执行；是否据此发布数据由用户回调决定。
func (r *Registry) RecordForwarding(fwd *types.ForwardedSubscription) {
	key := forwardingKey{clientID: fwd.ClientID, feed: fwd.Feed, topic: fwd.Topic}

	r.mu.Lock()
	defer r.mu.Unlock()

	if fwd.IsAdd {
		if _, ok := r.forwardings[key]; !ok {
			r.forwardingOrder = append(r.forwardingOrder, key)
		}
		r.forwardings[key] = *fwd
		return
	}

	if _, ok := r.forwardings[key]; !ok {
		log.Debug("remove for unknown forwarding",
			"client", fwd.ClientID, "feed", fwd.Feed, "topic", fwd.Topic)
		return
	}
	delete(r.forwardings, key)
	for i, k := range r.forwardingOrder {
		if k == key {
			r.forwardingOrder = append(r.forwardingOrder[:i], r.forwardingOrder[i+1:]...)
			break
		}
	}
}

// ActiveForwardings 返回按插入顺序排列的活跃转发关系
func (r *Registry) ActiveForwardings() []types.ForwardedSubscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.ForwardedSubscription, 0, len(r.forwardingOrder))
	for _, key := range r.forwardingOrder {
		out = append(out, r.forwardings[key])
	}
	return out
}
