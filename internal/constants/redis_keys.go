package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// ChatModulePrefix 对话模块
	ChatModulePrefix = "chat"

	// EntityIntent 意图分类结果实体
	EntityIntent = "intent"

	// KeyIntentCategory 问题文本到意图分类标签的缓存 (STRING)
	// 格式: app:chat:intent:{md5(query)}
	KeyIntentCategory = AppPrefix + ":" + ChatModulePrefix + ":" + EntityIntent + ":%s"
)
