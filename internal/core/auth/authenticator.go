// Package auth 实现认证握手的凭据协商
//
// 认证是可插拔的策略：每种方案只需实现"根据构造时的静态配置
// 产出凭据字节"这一能力。内置 null、basic、bearer 三种方案，
// 新方案通过 Register 注册。
//
// 凭据仅在握手期间存在，不会被持久化。
package auth

import (
	"fmt"
	"sort"
	"sync"
)

// ============================================================================
//                              方案名称
// ============================================================================

const (
	// SchemeNull 免认证
	SchemeNull = "none"

	// SchemeBasic 用户名/密码
	SchemeBasic = "basic"

	// SchemeToken 不透明 bearer token
	SchemeToken = "bearer"
)

// ============================================================================
//                              Authenticator 接口
// ============================================================================

// Authenticator 认证策略
//
// 引擎在传输建立后、任何订阅流量之前调用一次 Credentials，
// 将结果放入认证请求帧发送。认证失败由服务端关闭传输或
// 返回拒绝帧表达，引擎不自动重试。
type Authenticator interface {
	// Scheme 返回方案名称
	Scheme() string

	// Credentials 产出凭据字节
	Credentials() ([]byte, error)
}

// Attributes 凭据附加属性
//
// 代理场景下随凭据一起发送的元数据，均可为空。
type Attributes struct {
	// Impersonating 代理所代表的真实用户
	Impersonating string

	// ForwardedFor 真实客户端所在主机
	ForwardedFor string

	// Application 应用名称
	Application string
}

// ============================================================================
//                              方案注册表
// ============================================================================

// Factory 根据配置构造认证器
type Factory func(settings map[string]string) (Authenticator, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register 注册认证方案
//
// 重复注册会覆盖旧的工厂，便于测试替换。
func Register(scheme string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[scheme] = factory
}

// New 根据方案名称构造认证器
func New(scheme string, settings map[string]string) (Authenticator, error) {
	registryMu.RLock()
	factory, ok := registry[scheme]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
	return factory(settings)
}

// Schemes 返回已注册的方案名称（字典序）
func Schemes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register(SchemeNull, func(map[string]string) (Authenticator, error) {
		return NewNull(), nil
	})
	Register(SchemeBasic, func(settings map[string]string) (Authenticator, error) {
		return NewBasic(settings["username"], settings["password"])
	})
	Register(SchemeToken, func(settings map[string]string) (Authenticator, error) {
		return NewToken(settings["token"])
	})
}
