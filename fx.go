package feedbus

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-feedbus/internal/core/dispatch"
	"github.com/dep2p/go-feedbus/internal/core/engine"
	"github.com/dep2p/go-feedbus/internal/core/registry"
	"github.com/dep2p/go-feedbus/internal/core/transport"
	"github.com/dep2p/go-feedbus/internal/util/logger"
)

var fxLogger = logger.Logger("fx")

// buildFxApp 构建 Fx 应用
//
// 组装全部内部模块:
//
//	registry → dispatch → transport → engine
//
// 配置通过 fx.Supply 注入，组件经 fx.Invoke 回填到 Client。
func buildFxApp(opts *options, c *Client) *fx.App {
	return fx.New(
		// 配置注入
		fx.Supply(opts.transportConfig()),
		fx.Supply(opts.engineConfig()),

		// 内部模块
		registry.Module(),
		dispatch.Module(),
		transport.Module(),
		engine.Module(),

		// Client 组件注入
		fx.Invoke(injectClientComponents(c)),

		// 禁用 Fx 日志输出（避免干扰用户日志）
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
		fx.NopLogger,
	)
}

// clientInjectParams Client 组件注入参数
type clientInjectParams struct {
	fx.In

	// Engine 协议引擎
	Engine *engine.Engine

	// Registry 订阅注册表
	Registry *registry.Registry

	// Dispatcher 回调分发器
	Dispatcher *dispatch.Dispatcher
}

// injectClientComponents 创建 Client 组件注入函数
func injectClientComponents(c *Client) interface{} {
	return func(params clientInjectParams) {
		c.engine = params.Engine
		c.registry = params.Registry
		c.dispatcher = params.Dispatcher
		fxLogger.Debug("client components injected")
	}
}
