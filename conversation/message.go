package conversation

// Role 消息角色
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message 一条对话消息
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
