package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"nursemate/internal/ai/chain"
	"nursemate/internal/model"
	"nursemate/internal/pkg/taskqueue"
	"nursemate/internal/repository"
)

// memStore 内存版对话/消息存储
type memStore struct {
	mu            sync.Mutex
	conversations map[string]*model.Conversation
	messages      []*model.Message
	seq           int64

	createErr     error
	failAssistant bool
	titleErr      error
	titleUpdates  int
}

func newMemStore() *memStore {
	return &memStore{conversations: map[string]*model.Conversation{}}
}

func (s *memStore) FindOrCreate(_ context.Context, convID, userID, title string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.conversations[convID]; ok {
		if c.UserID != userID {
			return nil, repository.ErrNotOwner
		}
		return c, nil
	}
	now := time.Now().UTC()
	c := &model.Conversation{ConversationID: convID, UserID: userID, Title: title, CreatedAt: now, UpdatedAt: now}
	s.conversations[convID] = c
	return c, nil
}

func (s *memStore) conversationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}

func (s *memStore) FindByConversationID(_ context.Context, convID string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[convID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c, nil
}

func (s *memStore) UpdateTitle(_ context.Context, convID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.titleErr != nil {
		return s.titleErr
	}
	c, ok := s.conversations[convID]
	if !ok {
		return repository.ErrNotFound
	}
	c.Title = title
	s.titleUpdates++
	return nil
}

func (s *memStore) ListByUserID(_ context.Context, userID string, limit, offset int64) ([]*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Conversation
	for _, c := range s.conversations {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= int64(len(out)) {
		return []*model.Conversation{}, nil
	}
	out = out[offset:]
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) Create(_ context.Context, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	if s.failAssistant && msg.Role == model.RoleAssistant {
		return errors.New("write concern timeout")
	}
	s.seq++
	msg.ID = primitive.NewObjectID()
	msg.CreatedAt = time.Unix(0, s.seq).UTC()
	cp := *msg
	s.messages = append(s.messages, &cp)
	return nil
}

func (s *memStore) ListRecent(_ context.Context, convID string, limit int64) ([]*model.Message, error) {
	all := s.byConversation(convID)
	if limit > 0 && int64(len(all)) > limit {
		all = all[int64(len(all))-limit:]
	}
	return all, nil
}

func (s *memStore) ListByConversation(_ context.Context, convID string) ([]*model.Message, error) {
	return s.byConversation(convID), nil
}

func (s *memStore) byConversation(convID string) []*model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*model.Message{}
	for _, m := range s.messages {
		if m.ConversationID == convID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// memCache 内存版上下文缓存
type memCache struct {
	mu          sync.Mutex
	turns       map[string][]model.Turn
	summaries   map[string]*model.RollingSummary
	unavailable bool
	pushErr     error
}

func newMemCache() *memCache {
	return &memCache{turns: map[string][]model.Turn{}, summaries: map[string]*model.RollingSummary{}}
}

func (c *memCache) PushTurn(_ context.Context, userID string, turn model.Turn) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unavailable {
		return repository.ErrCacheUnavailable
	}
	if c.pushErr != nil {
		return c.pushErr
	}
	turns := append(c.turns[userID], turn)
	if len(turns) > 5 {
		turns = turns[len(turns)-5:]
	}
	c.turns[userID] = turns
	return nil
}

func (c *memCache) RecentTurns(_ context.Context, userID string) ([]model.Turn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unavailable {
		return nil, repository.ErrCacheUnavailable
	}
	return append([]model.Turn(nil), c.turns[userID]...), nil
}

func (c *memCache) GetSummary(_ context.Context, userID string) (*model.RollingSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unavailable {
		return nil, repository.ErrCacheUnavailable
	}
	return c.summaries[userID], nil
}

func (c *memCache) SetSummary(_ context.Context, userID, summary string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unavailable {
		return repository.ErrCacheUnavailable
	}
	c.summaries[userID] = &model.RollingSummary{Summary: summary, UpdatedAt: time.Now().UTC()}
	return nil
}

// fakeRetriever 固定检索结果
type fakeRetriever struct {
	snippets []string
	err      error
}

func (r *fakeRetriever) Retrieve(_ context.Context, _ string, _ int) ([]string, error) {
	return r.snippets, r.err
}

// fakeGenerator 按片段回调的答案生成器
type fakeGenerator struct {
	mu       sync.Mutex
	tokens   []string
	full     string
	err      error
	before   func()
	requests []*chain.AnswerRequest
}

func (g *fakeGenerator) Generate(_ context.Context, req *chain.AnswerRequest, onToken func(string)) (string, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()
	if g.before != nil {
		g.before()
	}
	if len(g.tokens) == 0 {
		return g.full, g.err
	}
	var b strings.Builder
	for _, t := range g.tokens {
		onToken(t)
		b.WriteString(t)
	}
	return b.String(), g.err
}

func (g *fakeGenerator) lastRequest() *chain.AnswerRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.requests) == 0 {
		return nil
	}
	return g.requests[len(g.requests)-1]
}

// fakeSummarizer 记录输入的摘要器
type fakeSummarizer struct {
	mu     sync.Mutex
	result string
	err    error
	inputs [][]model.Turn
}

func (f *fakeSummarizer) Summarize(_ context.Context, _ string, turns []model.Turn) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, turns)
	return f.result, f.err
}

// syncSubmitter 同步执行任务
type syncSubmitter struct {
	mu    sync.Mutex
	names []string
	errs  []error
}

func (s *syncSubmitter) Submit(t taskqueue.Task) bool {
	err := t.Run(context.Background())
	s.mu.Lock()
	s.names = append(s.names, t.Name)
	s.errs = append(s.errs, err)
	s.mu.Unlock()
	return true
}

// recordingEmitter 记录事件的 Emitter
type recordingEmitter struct {
	mu       sync.Mutex
	events   []map[string]any
	terminal int
}

func (e *recordingEmitter) record(v any) {
	raw, _ := json.Marshal(v)
	var m map[string]any
	_ = json.Unmarshal(raw, &m)
	e.events = append(e.events, m)
}

func (e *recordingEmitter) Emit(v any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.terminal > 0 {
		return errors.New("stream finished")
	}
	e.record(v)
	return nil
}

func (e *recordingEmitter) Finish(v any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.terminal > 0 {
		return errors.New("stream finished")
	}
	e.terminal++
	e.record(v)
	return nil
}

func (e *recordingEmitter) snapshot() []map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]map[string]any(nil), e.events...)
}

func (e *recordingEmitter) last() map[string]any {
	ev := e.snapshot()
	if len(ev) == 0 {
		return nil
	}
	return ev[len(ev)-1]
}

func (e *recordingEmitter) statuses() []string {
	var out []string
	for _, ev := range e.snapshot() {
		if s, ok := ev["status"].(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (e *recordingEmitter) deltas() []map[string]any {
	var out []map[string]any
	for _, ev := range e.snapshot() {
		if _, ok := ev["delta"]; ok {
			out = append(out, ev)
		}
	}
	return out
}
