// Package registry 实现本地订阅注册表
package registry

import "go.uber.org/fx"

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	// Registry 订阅注册表
	Registry *Registry
}

// provideRegistry 构造注册表
func provideRegistry() ModuleOutput {
	return ModuleOutput{Registry: New()}
}

// Module 返回注册表模块
func Module() fx.Option {
	return fx.Module("registry",
		fx.Provide(provideRegistry),
	)
}
