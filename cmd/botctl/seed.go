package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/suPer8Hu/nutribot/internal/intent"
	"github.com/suPer8Hu/nutribot/internal/knowledge"
)

// seed is the import file layout. JSON input decodes the same way.
type seed struct {
	FAQ []struct {
		Question string `yaml:"question"`
		Answer   string `yaml:"answer"`
		Intent   string `yaml:"intent"`
	} `yaml:"faq"`
	Articles []struct {
		Title   string `yaml:"title"`
		Content string `yaml:"content"`
		Intent  string `yaml:"intent"`
		Source  string `yaml:"source"`
	} `yaml:"articles"`
}

type knowledgeWriter interface {
	AddFAQ(ctx context.Context, e *knowledge.FAQEntry) error
	AddArticle(ctx context.Context, a *knowledge.Article) error
}

type imported struct {
	faq      int
	articles int
}

func parseSeed(r io.Reader) (*seed, error) {
	var s seed
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty seed file")
		}
		return nil, err
	}
	for i, f := range s.FAQ {
		if strings.TrimSpace(f.Question) == "" || strings.TrimSpace(f.Answer) == "" {
			return nil, fmt.Errorf("faq[%d]: question and answer are required", i)
		}
	}
	for i, a := range s.Articles {
		if strings.TrimSpace(a.Title) == "" || strings.TrimSpace(a.Content) == "" {
			return nil, fmt.Errorf("articles[%d]: title and content are required", i)
		}
	}
	return &s, nil
}

// seedIntent keeps known intents and blanks everything else.
func seedIntent(s string) string {
	in := intent.Parse(s)
	if in == intent.Unknown {
		return ""
	}
	return string(in)
}

func importSeed(ctx context.Context, w knowledgeWriter, s *seed) (imported, error) {
	var n imported
	for _, f := range s.FAQ {
		e := &knowledge.FAQEntry{
			Question: strings.TrimSpace(f.Question),
			Answer:   strings.TrimSpace(f.Answer),
			Intent:   seedIntent(f.Intent),
		}
		if err := w.AddFAQ(ctx, e); err != nil {
			return n, fmt.Errorf("add faq %q: %w", e.Question, err)
		}
		n.faq++
	}
	for _, a := range s.Articles {
		art := &knowledge.Article{
			Title:   strings.TrimSpace(a.Title),
			Content: strings.TrimSpace(a.Content),
			Intent:  seedIntent(a.Intent),
			Source:  strings.TrimSpace(a.Source),
		}
		if err := w.AddArticle(ctx, art); err != nil {
			return n, fmt.Errorf("add article %q: %w", art.Title, err)
		}
		n.articles++
	}
	return n, nil
}
