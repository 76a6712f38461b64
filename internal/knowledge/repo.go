// Package knowledge stores the FAQ, reference articles and users' genetic
// reports, and finds the entries most relevant to a query.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"unicode"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const candidateLimit = 50

type Kind string

const (
	KindFAQ     Kind = "faq"
	KindArticle Kind = "article"
)

// Hit is one search result. Title holds the FAQ question or the article title.
type Hit struct {
	Kind    Kind    `json:"kind"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) AddFAQ(ctx context.Context, e *FAQEntry) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *Repo) AddArticle(ctx context.Context, a *Article) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *Repo) FindFAQ(ctx context.Context, query string, limit int) ([]Hit, error) {
	words := keywords(query)
	if len(words) == 0 || limit <= 0 {
		return nil, nil
	}
	var rows []FAQEntry
	if err := r.matching(ctx, &FAQEntry{}, []string{"question", "answer"}, words).Find(&rows).Error; err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(rows))
	for _, e := range rows {
		hits = append(hits, Hit{Kind: KindFAQ, Title: e.Question, Content: e.Answer, Score: score(words, e.Question, e.Answer)})
	}
	return top(hits, limit), nil
}

func (r *Repo) FindKnowledgeArticles(ctx context.Context, query string, limit int) ([]Hit, error) {
	words := keywords(query)
	if len(words) == 0 || limit <= 0 {
		return nil, nil
	}
	var rows []Article
	if err := r.matching(ctx, &Article{}, []string{"title", "content"}, words).Find(&rows).Error; err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(rows))
	for _, a := range rows {
		hits = append(hits, Hit{Kind: KindArticle, Title: a.Title, Content: a.Content, Score: score(words, a.Title, a.Content)})
	}
	return top(hits, limit), nil
}

// FindSimilar merges FAQ and article hits into one ranking.
func (r *Repo) FindSimilar(ctx context.Context, query string, limit int) ([]Hit, error) {
	faq, err := r.FindFAQ(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	articles, err := r.FindKnowledgeArticles(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return top(append(faq, articles...), limit), nil
}

// GetGeneticReport returns nil without error when the user has no report.
func (r *Repo) GetGeneticReport(ctx context.Context, userID int64) (*GeneticReport, error) {
	var rep GeneticReport
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&rep).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

// StoreGeneticReport replaces the user's report.
func (r *Repo) StoreGeneticReport(ctx context.Context, userID int64, codelab string, data map[string]any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	rep := GeneticReport{UserID: userID, Codelab: codelab, Data: string(b)}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"codelab", "data", "updated_at"}),
	}).Create(&rep).Error
}

func (r *Repo) matching(ctx context.Context, model any, cols []string, words []string) *gorm.DB {
	cond := r.db.WithContext(ctx)
	for i, w := range words {
		pattern := "%" + w + "%"
		for j, c := range cols {
			expr := "LOWER(" + c + ") LIKE ?"
			if i == 0 && j == 0 {
				cond = cond.Where(expr, pattern)
			} else {
				cond = cond.Or(expr, pattern)
			}
		}
	}
	return r.db.WithContext(ctx).Model(model).Where(cond).Limit(candidateLimit)
}

func keywords(q string) []string {
	seen := map[string]bool{}
	var out []string
	for _, f := range strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(f)) < 3 || stopwords[f] || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// score weights title matches twice as much as body matches.
func score(words []string, title, body string) float64 {
	title, body = strings.ToLower(title), strings.ToLower(body)
	var s float64
	for _, w := range words {
		s += 2 * float64(strings.Count(title, w))
		s += float64(strings.Count(body, w))
	}
	return s / float64(len(words))
}

func top(hits []Hit, limit int) []Hit {
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "what": true, "how": true,
	"can": true, "you": true, "with": true, "this": true, "that": true, "should": true,
	"что": true, "как": true, "для": true, "это": true, "или": true, "при": true,
}
