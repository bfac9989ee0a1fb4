package resource

import "transcode-orchestrator/pkg/manager"

func init() {
	// 注册资源插件，按注册顺序打开，逆序关闭
	manager.RegisterResourcePlugin(&MySqlResourcePlugin{})
	manager.RegisterResourcePlugin(&RedisResourcePlugin{})
	manager.RegisterResourcePlugin(&KafkaResourcePlugin{})
	manager.RegisterResourcePlugin(&MinioResourcePlugin{})
}
