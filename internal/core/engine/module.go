// Package engine 实现总线协议引擎
package engine

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-feedbus/internal/core/dispatch"
	"github.com/dep2p/go-feedbus/internal/core/registry"
	"github.com/dep2p/go-feedbus/internal/core/transport"
)

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	// Config 引擎配置
	Config Config

	// Dialer 流工厂
	Dialer transport.Dialer

	// Registry 订阅注册表
	Registry *registry.Registry

	// Dispatcher 回调分发器
	Dispatcher *dispatch.Dispatcher
}

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	// Engine 协议引擎
	Engine *Engine
}

// provideEngine 构造协议引擎
func provideEngine(in ModuleInput) ModuleOutput {
	return ModuleOutput{Engine: New(in.Config, in.Dialer, in.Registry, in.Dispatcher)}
}

// Module 返回引擎模块
func Module() fx.Option {
	return fx.Module("engine",
		fx.Provide(provideEngine),
	)
}
