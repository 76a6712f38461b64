package history

import (
	"context"
	"fmt"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(gormsqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestRecordReplyOrGetExisting_DedupesByTaskID(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	first := &Reply{TaskID: "01JTASK0000000000000000001", UserID: 1, ChatID: 10, Model: "chatgpt", Intent: "diet", Query: "q", Status: ReplyCompleted, Content: "a"}
	got, created, err := repo.RecordReplyOrGetExisting(ctx, first)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !created || got.ID == 0 {
		t.Fatalf("expected a fresh row, created=%v id=%d", created, got.ID)
	}

	dup := &Reply{TaskID: first.TaskID, UserID: 1, ChatID: 10, Model: "chatgpt", Intent: "diet", Query: "q", Status: ReplyCompleted, Content: "b"}
	got, created, err = repo.RecordReplyOrGetExisting(ctx, dup)
	if err != nil {
		t.Fatalf("record duplicate: %v", err)
	}
	if created {
		t.Fatalf("expected existing row to be returned")
	}
	if got.Content != "a" {
		t.Fatalf("expected original content, got %q", got.Content)
	}

	var n int64
	if err := repo.db.Model(&Reply{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row, got %d", n)
	}
}

func TestCompleted(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	errMsg := "backend error"
	if _, _, err := repo.RecordReplyOrGetExisting(ctx, &Reply{TaskID: "t-failed", UserID: 1, Model: "chatgpt", Intent: "unknown", Query: "q", Status: ReplyFailed, Error: &errMsg}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, _, err := repo.RecordReplyOrGetExisting(ctx, &Reply{TaskID: "t-ok", UserID: 1, Model: "chatgpt", Intent: "unknown", Query: "q", Status: ReplyCompleted}); err != nil {
		t.Fatalf("record: %v", err)
	}

	for taskID, want := range map[string]bool{"t-failed": false, "t-ok": true, "t-missing": false} {
		got, err := repo.Completed(ctx, taskID)
		if err != nil {
			t.Fatalf("completed %s: %v", taskID, err)
		}
		if got != want {
			t.Fatalf("completed %s = %v, want %v", taskID, got, want)
		}
	}
}

func TestRecentCompletedDesc(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		rep := &Reply{TaskID: fmt.Sprintf("t-%d", i), UserID: 7, Model: "chatgpt", Intent: "diet", Query: fmt.Sprintf("q%d", i), Status: ReplyCompleted, Content: fmt.Sprintf("a%d", i)}
		if _, _, err := repo.RecordReplyOrGetExisting(ctx, rep); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	got, err := repo.RecentCompletedDesc(ctx, 7, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].Query != "q3" || got[1].Query != "q2" {
		t.Fatalf("unexpected order: %+v", got)
	}

	got, err = repo.RecentCompletedDesc(ctx, 7, 0)
	if err != nil || got != nil {
		t.Fatalf("limit 0 should return nothing, got %v %v", got, err)
	}
}

func TestInteractions(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := repo.LogInteraction(ctx, &Interaction{UserID: 5, Username: "ann", Request: fmt.Sprintf("r%d", i)}); err != nil {
			t.Fatalf("log: %v", err)
		}
	}

	page, err := repo.ListInteractions(ctx, 5, 2, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 || page[0].Request != "r2" {
		t.Fatalf("unexpected first page: %+v", page)
	}

	rest, err := repo.ListInteractions(ctx, 5, 10, page[1].ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rest) != 1 || rest[0].Request != "r0" {
		t.Fatalf("unexpected second page: %+v", rest)
	}
}
