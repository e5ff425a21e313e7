package jobs

// TaskTypeRevokeSessions はロール変更後のセッション失効タスクです。
const TaskTypeRevokeSessions = "session:revoke"

const queueName = "sessions"

// RevokePayload はセッション失効タスクのペイロードです。
type RevokePayload struct {
	Email string `json:"email"`
}
