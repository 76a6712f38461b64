package knowledge

import (
	"context"
	"encoding/json"
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

func seed(t *testing.T, repo *Repo) {
	t.Helper()
	ctx := context.Background()
	faqs := []FAQEntry{
		{Question: "How much protein per day?", Answer: "About 1.6 g of protein per kg of body weight.", Intent: "diet"},
		{Question: "Is running good for the heart?", Answer: "Regular running improves cardiovascular health.", Intent: "fitness"},
		{Question: "Can I drink coffee?", Answer: "Moderate coffee intake is fine for most adults.", Intent: "diet"},
	}
	for i := range faqs {
		if err := repo.AddFAQ(ctx, &faqs[i]); err != nil {
			t.Fatalf("seed faq: %v", err)
		}
	}
	articles := []Article{
		{Title: "Protein sources", Content: "Eggs, legumes and fish are rich in protein."},
		{Title: "Interval running", Content: "Short sprints followed by rest."},
	}
	for i := range articles {
		if err := repo.AddArticle(ctx, &articles[i]); err != nil {
			t.Fatalf("seed article: %v", err)
		}
	}
}

func TestFindFAQ(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	seed(t, repo)

	hits, err := repo.FindFAQ(context.Background(), "how much PROTEIN do I need", 2)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d: %+v", len(hits), hits)
	}
	if hits[0].Kind != KindFAQ || !strings.Contains(hits[0].Content, "1.6 g") {
		t.Fatalf("unexpected hit: %+v", hits[0])
	}
}

func TestFindKnowledgeArticles_Ranking(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	seed(t, repo)

	hits, err := repo.FindKnowledgeArticles(context.Background(), "protein", 5)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(hits) != 1 || hits[0].Title != "Protein sources" {
		t.Fatalf("unexpected hits: %+v", hits)
	}
}

func TestFindSimilar_MergesAndLimits(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	seed(t, repo)

	hits, err := repo.FindSimilar(context.Background(), "running protein", 3)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	kinds := map[Kind]bool{}
	for i, h := range hits {
		kinds[h.Kind] = true
		if i > 0 && h.Score > hits[i-1].Score {
			t.Fatalf("hits not sorted by score: %+v", hits)
		}
	}
	if !kinds[KindFAQ] || !kinds[KindArticle] {
		t.Fatalf("expected both kinds, got %+v", hits)
	}
}

func TestFind_NoKeywords(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	seed(t, repo)

	hits, err := repo.FindSimilar(context.Background(), "how are you?", 3)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits, got %+v", hits)
	}
}

func TestGeneticReport_Upsert(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	rep, err := repo.GetGeneticReport(ctx, 1)
	if err != nil || rep != nil {
		t.Fatalf("expected no report, got %+v %v", rep, err)
	}

	if err := repo.StoreGeneticReport(ctx, 1, "LAB-1", map[string]any{"lactose": "tolerant"}); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := repo.StoreGeneticReport(ctx, 1, "LAB-2", map[string]any{"lactose": "intolerant"}); err != nil {
		t.Fatalf("store again: %v", err)
	}

	rep, err = repo.GetGeneticReport(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rep.Codelab != "LAB-2" {
		t.Fatalf("expected latest codelab, got %q", rep.Codelab)
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(rep.Data), &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data["lactose"] != "intolerant" {
		t.Fatalf("unexpected data: %v", data)
	}
}
