// Package conversation keeps chat sessions in memory.
package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmylchreest/homescout/internal/listing"
	"github.com/jmylchreest/homescout/internal/llm"
	"github.com/jmylchreest/homescout/internal/logger"
	"github.com/jmylchreest/homescout/internal/search"
)

// Conversation is one chat session. Callers hold Lock for the duration of a
// turn so that turns of the same conversation never interleave.
type Conversation struct {
	ID      string
	Created time.Time

	turn sync.Mutex

	mu         sync.Mutex
	messages   []llm.Message
	lastResult *search.Result
	updated    time.Time
}

// Lock starts a turn.
func (c *Conversation) Lock() { c.turn.Lock() }

// Unlock ends a turn.
func (c *Conversation) Unlock() { c.turn.Unlock() }

// Messages returns a copy of the history.
func (c *Conversation) Messages() []llm.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.Message(nil), c.messages...)
}

// Append adds messages to the history.
func (c *Conversation) Append(msgs ...llm.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msgs...)
	c.updated = time.Now()
}

// SetLastResult stores the outcome of the latest search.
func (c *Conversation) SetLastResult(r search.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastResult = &r
	c.updated = time.Now()
}

// LastResult returns the latest search outcome, if any.
func (c *Conversation) LastResult() (search.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastResult == nil {
		return search.Result{}, false
	}
	return *c.lastResult, true
}

// LastListings returns the listings of the latest search, or nil when the
// conversation has not searched yet.
func (c *Conversation) LastListings() []listing.Record {
	r, ok := c.LastResult()
	if !ok {
		return nil
	}
	return r.Listings
}

// Updated returns when the conversation last changed.
func (c *Conversation) Updated() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updated
}

func (c *Conversation) touch() {
	c.mu.Lock()
	c.updated = time.Now()
	c.mu.Unlock()
}

// Store holds conversations by id.
type Store struct {
	mu    sync.Mutex
	convs map[string]*Conversation
	ttl   time.Duration
}

// NewStore creates a Store. Conversations idle for longer than ttl are
// removed by Sweep; ttl <= 0 keeps them forever.
func NewStore(ttl time.Duration) *Store {
	return &Store{convs: make(map[string]*Conversation), ttl: ttl}
}

// GetOrCreate returns the conversation for id. An empty id gets a new
// random id; an unknown id starts a new conversation under that id.
func (s *Store) GetOrCreate(id string) (conv *Conversation, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	if conv, ok := s.convs[id]; ok {
		conv.touch()
		return conv, false
	}

	now := time.Now()
	conv = &Conversation{ID: id, Created: now, updated: now}
	s.convs[id] = conv
	logger.Debug("conversation started", "conversation", id)
	return conv, true
}

// Get returns an existing conversation.
func (s *Store) Get(id string) (*Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	return conv, ok
}

// Delete removes a conversation.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.convs[id]
	delete(s.convs, id)
	return ok
}

// Len returns the number of conversations.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.convs)
}

// Sweep removes conversations idle for longer than the TTL. Conversations
// with a turn in progress are kept.
func (s *Store) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, conv := range s.convs {
		if !conv.Updated().Before(cutoff) {
			continue
		}
		if !conv.turn.TryLock() {
			continue
		}
		delete(s.convs, id)
		conv.turn.Unlock()
		removed++
	}
	if removed > 0 {
		logger.Debug("expired idle conversations", "removed", removed, "remaining", len(s.convs))
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
