package intent

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/suPer8Hu/nutribot/internal/ai"
	"github.com/suPer8Hu/nutribot/internal/logging"
	"github.com/suPer8Hu/nutribot/internal/prompts"
	"github.com/suPer8Hu/nutribot/internal/session"
)

const rephrasedTTL = time.Hour

// Classifier asks an LLM which persona fits a query.
type Classifier struct {
	llm     ai.Provider
	store   session.Store
	prompts *prompts.Set
	log     *zap.Logger
}

func NewClassifier(llm ai.Provider, store session.Store, set *prompts.Set, log *zap.Logger) *Classifier {
	return &Classifier{llm: llm, store: store, prompts: set, log: logging.OrNop(log)}
}

// Classify stores and returns the intent. Errors leave the stored intent untouched.
func (c *Classifier) Classify(ctx context.Context, userID int64, query string) (Intent, error) {
	prompt := prompts.Fill(c.prompts.Classifier.Template, "query", query)
	out, err := ai.Complete(ctx, c.llm, c.prompts.Classifier.System, prompt)
	if err != nil {
		return Unknown, err
	}
	in := Parse(firstLine(out))
	if err := c.store.Set(ctx, session.IntentKey(userID), string(in), 0); err != nil {
		c.log.Warn("store intent", zap.Int64("user_id", userID), zap.Error(err))
	}
	c.log.Info("intent classified", zap.Int64("user_id", userID), zap.String("intent", string(in)))
	return in, nil
}

// Rephraser rewrites a query to be more specific for the chosen domain.
type Rephraser struct {
	llm     ai.Provider
	store   session.Store
	prompts *prompts.Set
	log     *zap.Logger
}

func NewRephraser(llm ai.Provider, store session.Store, set *prompts.Set, log *zap.Logger) *Rephraser {
	return &Rephraser{llm: llm, store: store, prompts: set, log: logging.OrNop(log)}
}

func (r *Rephraser) Rephrase(ctx context.Context, userID int64, in Intent, query string) (string, error) {
	system := prompts.Fill(r.prompts.Rephraser.System, "intent", string(in))
	prompt := prompts.Fill(r.prompts.Rephraser.Template, "intent", string(in), "query", query)
	out, err := ai.Complete(ctx, r.llm, system, prompt)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if err := r.store.Set(ctx, session.RephrasedQueryKey(userID), out, rephrasedTTL); err != nil {
		r.log.Warn("store rephrased query", zap.Int64("user_id", userID), zap.Error(err))
	}
	return out, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	return s
}
