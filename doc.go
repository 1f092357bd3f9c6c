// Package feedbus 是消息总线的客户端
//
// 客户端通过长度前缀的二进制帧协议与总线服务端通信，
// 提供 feed/topic 两级主题上的订阅、发布、订阅通知转发
// 与数据授权能力。
//
// 基本用法:
//
//	client, err := feedbus.Dial(ctx, "bus.example.com:9011",
//		feedbus.WithBasicAuth("john.doe@example.com", "secret"),
//	)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	client.OnData(func(ev *feedbus.DataEvent) {
//		fmt.Printf("%s/%s: %s\n", ev.Feed, ev.Topic, ev.Packet.Data)
//	})
//	if err := client.Subscribe("LSE", "VOD"); err != nil {
//		return err
//	}
//
// 作为 feed 的服务方，登记订阅通知并按需发布:
//
//	client.RequestNotifications("PUB-1")
//	client.OnNotification(func(n *feedbus.ForwardedSubscription) {
//		if n.IsAdd {
//			client.Publish(n.Feed, n.Topic, true, nil, snapshotFor(n.Topic))
//		}
//	})
//
// 连接终止后客户端回到断开状态并投递一次关闭回调；
// 再次 Connect 会重新拨号并按原始顺序重放全部活跃订阅，
// 重连策略由调用方决定。
package feedbus
