package task

import (
	"context"
	"errors"
	"sync"

	"github.com/suPer8Hu/nutribot/internal/ai"
	"github.com/suPer8Hu/nutribot/internal/history"
	"github.com/suPer8Hu/nutribot/internal/intent"
	"github.com/suPer8Hu/nutribot/internal/knowledge"
	"github.com/suPer8Hu/nutribot/internal/transport"
)

var errBoom = errors.New("boom")

type sentMessage struct {
	ChatID  int64
	Text    string
	Buttons [][]transport.Button
}

type fakeSender struct {
	mu        sync.Mutex
	sent      []sentMessage
	deleted   []int
	sendErr   error
	deleteErr error
}

func (s *fakeSender) Send(_ context.Context, chatID int64, text string, buttons [][]transport.Button) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{ChatID: chatID, Text: text, Buttons: buttons})
	if s.sendErr != nil {
		return 0, s.sendErr
	}
	return len(s.sent) + 100, nil
}

func (s *fakeSender) Edit(context.Context, int64, int, string, [][]transport.Button) error {
	return nil
}

func (s *fakeSender) Delete(_ context.Context, _ int64, messageID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, messageID)
	return s.deleteErr
}

type fakeLLM struct {
	mu    sync.Mutex
	reply string
	err   error
	got   [][]ai.Message
}

func (f *fakeLLM) Chat(_ context.Context, msgs []ai.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, msgs)
	return f.reply, f.err
}

func (f *fakeLLM) lastCall() []ai.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.got) == 0 {
		return nil
	}
	return f.got[len(f.got)-1]
}

type fakeSearcher struct {
	faq       []knowledge.Hit
	articles  []knowledge.Hit
	report    *knowledge.GeneticReport
	reportErr error
	faqErr    error
}

func (f *fakeSearcher) FindFAQ(context.Context, string, int) ([]knowledge.Hit, error) {
	return f.faq, f.faqErr
}

func (f *fakeSearcher) FindKnowledgeArticles(context.Context, string, int) ([]knowledge.Hit, error) {
	return f.articles, nil
}

func (f *fakeSearcher) GetGeneticReport(context.Context, int64) (*knowledge.GeneticReport, error) {
	return f.report, f.reportErr
}

type fakeReplies struct {
	mu      sync.Mutex
	rows    map[string]*history.Reply
	recent  []history.Reply
	limitIn int
}

func newFakeReplies() *fakeReplies {
	return &fakeReplies{rows: map[string]*history.Reply{}}
}

func (f *fakeReplies) RecordReplyOrGetExisting(_ context.Context, rep *history.Reply) (*history.Reply, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.rows[rep.TaskID]; ok {
		return existing, false, nil
	}
	f.rows[rep.TaskID] = rep
	return rep, true, nil
}

func (f *fakeReplies) Completed(_ context.Context, taskID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[taskID]
	return ok && r.Status == history.ReplyCompleted, nil
}

func (f *fakeReplies) RecentCompletedDesc(_ context.Context, _ int64, limit int) ([]history.Reply, error) {
	f.limitIn = limit
	if limit < len(f.recent) {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

type fakePublisher struct {
	mu   sync.Mutex
	recs []Record
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, rec Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.recs = append(p.recs, rec)
	return nil
}

type fakeClassifier struct {
	in    intent.Intent
	err   error
	calls int
}

func (c *fakeClassifier) Classify(context.Context, int64, string) (intent.Intent, error) {
	c.calls++
	return c.in, c.err
}

type fakeRephraser struct {
	out string
	err error
	got intent.Intent
}

func (r *fakeRephraser) Rephrase(_ context.Context, _ int64, in intent.Intent, _ string) (string, error) {
	r.got = in
	return r.out, r.err
}

type fakeAuth struct {
	authenticated bool
	prompt        bool
	authErr       error
	promptCalls   int
}

func (a *fakeAuth) IsAuthenticated(context.Context, int64) (bool, error) {
	return a.authenticated, a.authErr
}

func (a *fakeAuth) ShouldShowPrompt(context.Context, int64) (bool, error) {
	a.promptCalls++
	return a.prompt, nil
}
