package conversation

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/homescout/internal/listing"
	"github.com/jmylchreest/homescout/internal/llm"
	"github.com/jmylchreest/homescout/internal/search"
)

func TestGetOrCreate(t *testing.T) {
	s := NewStore(0)

	conv, created := s.GetOrCreate("")
	require.True(t, created)
	_, err := uuid.Parse(conv.ID)
	assert.NoError(t, err, "empty id should get a uuid")

	again, created := s.GetOrCreate(conv.ID)
	assert.False(t, created)
	assert.Same(t, conv, again)

	named, created := s.GetOrCreate("agent-42")
	assert.True(t, created)
	assert.Equal(t, "agent-42", named.ID)
	assert.Equal(t, 2, s.Len())
}

func TestHistoryAndResults(t *testing.T) {
	conv, _ := NewStore(0).GetOrCreate("")

	assert.Nil(t, conv.LastListings())
	_, ok := conv.LastResult()
	assert.False(t, ok)

	conv.Append(llm.Message{Role: llm.RoleUser, Content: "hi"}, llm.Message{Role: llm.RoleAssistant, Content: "hello"})
	msgs := conv.Messages()
	require.Len(t, msgs, 2)
	msgs[0].Content = "changed"
	assert.Equal(t, "hi", conv.Messages()[0].Content, "Messages must return a copy")

	conv.SetLastResult(search.Result{Location: "Lyon", Listings: []listing.Record{{SequenceIndex: 1, Price: "1 €"}}})
	res, ok := conv.LastResult()
	require.True(t, ok)
	assert.Equal(t, "Lyon", res.Location)
	assert.Len(t, conv.LastListings(), 1)
}

func TestDelete(t *testing.T) {
	s := NewStore(0)
	conv, _ := s.GetOrCreate("")
	assert.True(t, s.Delete(conv.ID))
	assert.False(t, s.Delete(conv.ID))
	_, ok := s.Get(conv.ID)
	assert.False(t, ok)
}

func TestSweep(t *testing.T) {
	s := NewStore(time.Minute)
	idle, _ := s.GetOrCreate("idle")
	busy, _ := s.GetOrCreate("busy")
	fresh, _ := s.GetOrCreate("fresh")

	old := time.Now().Add(-time.Hour)
	idle.updated = old
	busy.updated = old
	busy.Lock()
	defer busy.Unlock()

	assert.Equal(t, 1, s.Sweep())
	_, ok := s.Get("idle")
	assert.False(t, ok)
	_, ok = s.Get(busy.ID)
	assert.True(t, ok, "conversation with a turn in progress must survive")
	_, ok = s.Get(fresh.ID)
	assert.True(t, ok)

	assert.Equal(t, 0, NewStore(0).Sweep())
}

func TestTurnsSerialised(t *testing.T) {
	conv, _ := NewStore(0).GetOrCreate("")

	var wg sync.WaitGroup
	active := 0
	maxActive := 0
	var mu sync.Mutex
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conv.Lock()
			defer conv.Unlock()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)
			conv.Append(llm.Message{Role: llm.RoleUser, Content: "x"})

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive)
	assert.Len(t, conv.Messages(), 8)
}
