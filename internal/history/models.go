package history

import "time"

// Interaction is one line of the bot's audit log.
type Interaction struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"index;not null" json:"user_id"`
	Username  string    `gorm:"type:varchar(64)" json:"username"`
	Request   string    `gorm:"type:text;not null" json:"request"`
	Response  string    `gorm:"type:text" json:"response"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (Interaction) TableName() string { return "interactions" }

type ReplyStatus string

const (
	ReplyCompleted ReplyStatus = "completed"
	ReplyFailed    ReplyStatus = "failed"
)

// Reply is the durable outcome of one task. TaskID is unique so a
// redelivered task finds the earlier outcome instead of writing twice.
type Reply struct {
	ID               uint64      `gorm:"primaryKey;autoIncrement" json:"-"`
	TaskID           string      `gorm:"type:varchar(26);uniqueIndex;not null" json:"task_id"`
	UserID           int64       `gorm:"not null;index:idx_reply_user_created,priority:1" json:"user_id"`
	ChatID           int64       `gorm:"not null" json:"chat_id"`
	InboundMessageID int         `json:"inbound_message_id"`
	Model            string      `gorm:"type:varchar(32);not null" json:"model"`
	Intent           string      `gorm:"type:varchar(16);not null" json:"intent"`
	Query            string      `gorm:"type:text;not null" json:"query"`
	RephrasedQuery   string      `gorm:"type:text" json:"rephrased_query"`
	Status           ReplyStatus `gorm:"type:varchar(16);index;not null" json:"status"`
	Content          string      `gorm:"type:text" json:"content,omitempty"`
	Error            *string     `gorm:"type:text" json:"error,omitempty"`
	CreatedAt        time.Time   `gorm:"index:idx_reply_user_created,priority:2" json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

func (Reply) TableName() string { return "task_replies" }
