package logger

const (
	FieldUserID   = "user_id"
	FieldChatID   = "chat_id"
	FieldUpdateID = "update_id"
	FieldTraceID  = "trace_id"
	FieldState    = "state"
	FieldAction   = "action"
	FieldCommand  = "command"
	FieldSourceID = "source_id"
	FieldError    = "error"
)
