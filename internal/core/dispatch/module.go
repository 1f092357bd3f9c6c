// Package dispatch 实现回调分发器
package dispatch

import "go.uber.org/fx"

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	// Dispatcher 回调分发器
	Dispatcher *Dispatcher
}

// provideDispatcher 构造分发器
func provideDispatcher() ModuleOutput {
	return ModuleOutput{Dispatcher: New()}
}

// Module 返回分发模块
func Module() fx.Option {
	return fx.Module("dispatch",
		fx.Provide(provideDispatcher),
	)
}
