// Package task hands user queries to out-of-process workers and delivers
// the correlated replies back to the originating chat.
package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const TypeLLM = "llm_task"

// Record is the queue payload for one query.
type Record struct {
	Type             string    `json:"type"`
	TaskID           string    `json:"task_id"`
	UserID           int64     `json:"user_id"`
	ChatID           int64     `json:"chat_id"`
	UserQuery        string    `json:"user_query"`
	RephrasedQuery   string    `json:"rephrased_query"`
	Model            string    `json:"model"`
	WaitingMessageID int       `json:"waiting_message_id"`
	Intent           string    `json:"intent"`
	IsAuthenticated  bool      `json:"is_authenticated"`
	ShowAuthPrompt   bool      `json:"show_auth_prompt"`
	Timestamp        time.Time `json:"timestamp"`
	InboundMessageID int       `json:"inbound_message_id"`
}

var ErrBadRecord = errors.New("task: malformed record")

// Decode parses a queue body and checks the fields a worker cannot do without.
func Decode(body []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(body, &r); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrBadRecord, err)
	}
	if r.Type == "" {
		r.Type = TypeLLM
	}
	if r.TaskID == "" || r.ChatID == 0 {
		return Record{}, fmt.Errorf("%w: task_id and chat_id are required", ErrBadRecord)
	}
	return r, nil
}

// Query is the text sent to the model: the rephrased query when there is one.
func (r Record) Query() string {
	if r.RephrasedQuery != "" {
		return r.RephrasedQuery
	}
	return r.UserQuery
}

type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}
