// Package session holds per-user conversational state in a key/value store
// with optional expiry. Values are strings; absence is reported separately
// from failure.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMalformed is returned when a stored value cannot be parsed.
var ErrMalformed = errors.New("malformed session value")

// Store is the minimal contract every state component depends on.
// A ttl of zero stores the value without expiry.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

func UserKey(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

func userField(userID int64, field string) string {
	return fmt.Sprintf("user:%d:%s", userID, field)
}

func ModelKey(userID int64) string           { return userField(userID, "model") }
func MsgCountKey(userID int64) string        { return userField(userID, "msg_count") }
func IntentKey(userID int64) string          { return userField(userID, "intent") }
func IntentLockKey(userID int64) string      { return userField(userID, "intent_lock") }
func AuthProcessKey(userID int64) string     { return userField(userID, "auth_process") }
func AuthStageKey(userID int64) string       { return userField(userID, "auth_stage") }
func TempLoginKey(userID int64) string       { return userField(userID, "temp_login") }
func LoginKey(userID int64) string           { return userField(userID, "mygenetics:login") }
func PasswordKey(userID int64) string        { return userField(userID, "mygenetics:password") }
func CodelabKey(userID int64) string         { return userField(userID, "mygenetics:codelab") }
func AuthStatusKey(userID int64) string      { return userField(userID, "auth") }
func AuthPromptShownKey(userID int64) string { return userField(userID, "auth_prompt_shown") }

// TaskStatusKey is keyed by either a task id or a user id; both are written.
func TaskStatusKey(id string) string {
	return "task:" + id + ":status"
}

// TaskOwnerKey names the task that last set the user's status key.
func TaskOwnerKey(userID int64) string {
	return fmt.Sprintf("task:%d:owner", userID)
}

func RephrasedQueryKey(userID int64) string { return userField(userID, "rephrased_query") }

// TaskResponseKey caches the raw LLM answer for a task.
func TaskResponseKey(taskID string) string {
	return "task:" + taskID + ":response"
}
