package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/homescout/internal/agent"
	"github.com/jmylchreest/homescout/internal/conversation"
	"github.com/jmylchreest/homescout/internal/listing"
	"github.com/jmylchreest/homescout/internal/search"
)

type fakeResponder struct {
	reply agent.Reply
	err   error
	calls []string
	// search, when set, is stored on the conversation like a tool call would.
	search *search.Result
}

func (f *fakeResponder) Respond(ctx context.Context, conv *conversation.Conversation, text string) (agent.Reply, error) {
	f.calls = append(f.calls, conv.ID+":"+text)
	if f.err != nil {
		return agent.Reply{}, f.err
	}
	if f.search != nil {
		conv.SetLastResult(*f.search)
	}
	r := f.reply
	r.Listings = conv.LastListings()
	return r, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestChatNewConversation(t *testing.T) {
	store := conversation.NewStore(0)
	resp := &fakeResponder{reply: agent.Reply{Text: "Which city?"}}
	h := New(resp, store).Routes()

	rec := do(t, h, http.MethodPost, "/chat", `{"message":"find me a flat"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "Which city?", body["reply"])
	assert.NotEmpty(t, body["conversation_id"])
	assert.Contains(t, body, "listings")
	assert.Nil(t, body["listings"], "listings are null before any search")
	assert.Equal(t, 1, store.Len())
}

func TestChatContinuesConversation(t *testing.T) {
	store := conversation.NewStore(0)
	resp := &fakeResponder{
		reply:  agent.Reply{Text: "Found one."},
		search: &search.Result{Location: "Lyon", Listings: []listing.Record{{SequenceIndex: 1, Price: "200 000 €", Details: "T3", Phone: "unavailable"}}},
	}
	h := New(resp, store).Routes()

	first := decode[ChatResponse](t, do(t, h, http.MethodPost, "/chat", `{"message":"search Lyon"}`))
	require.Len(t, first.Listings, 1)

	resp.search = nil
	resp.reply.Text = "Anything else?"
	rec := do(t, h, http.MethodPost, "/chat", `{"message":"thanks","conversation_id":"`+first.ConversationID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[ChatResponse](t, rec)

	assert.Equal(t, first.ConversationID, second.ConversationID)
	assert.Equal(t, "Anything else?", second.Reply)
	assert.Len(t, second.Listings, 1, "listings of the last search are returned on later turns")
	assert.Equal(t, 1, store.Len())
	assert.Len(t, resp.calls, 2)
}

func TestChatUnknownIDIsKept(t *testing.T) {
	store := conversation.NewStore(0)
	h := New(&fakeResponder{reply: agent.Reply{Text: "hi"}}, store).Routes()

	got := decode[ChatResponse](t, do(t, h, http.MethodPost, "/chat", `{"message":"hello","conversation_id":"crm-1234"}`))
	assert.Equal(t, "crm-1234", got.ConversationID)
	_, ok := store.Get("crm-1234")
	assert.True(t, ok)
}

func TestChatBadRequests(t *testing.T) {
	tests := []struct {
		name   string
		method string
		body   string
		status int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"empty body", http.MethodPost, "", http.StatusBadRequest},
		{"malformed json", http.MethodPost, `{"message":`, http.StatusBadRequest},
		{"missing message", http.MethodPost, `{"conversation_id":"x"}`, http.StatusUnprocessableEntity},
		{"blank message", http.MethodPost, `{"message":"   "}`, http.StatusUnprocessableEntity},
		{"id too long", http.MethodPost, `{"message":"hi","conversation_id":"` + strings.Repeat("a", 200) + `"}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &fakeResponder{}
			h := New(resp, conversation.NewStore(0)).Routes()

			rec := do(t, h, tt.method, "/chat", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			body := decode[map[string]string](t, rec)
			assert.NotEmpty(t, body["error"])
			assert.Empty(t, resp.calls)
		})
	}
}

func TestChatResponderError(t *testing.T) {
	h := New(&fakeResponder{err: errors.New("provider down")}, conversation.NewStore(0)).Routes()

	rec := do(t, h, http.MethodPost, "/chat", `{"message":"hi"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "agent failed to respond", body["error"])
	assert.NotContains(t, rec.Body.String(), "provider down")
}

func TestChatTurnTimeout(t *testing.T) {
	h := New(&fakeResponder{err: context.DeadlineExceeded}, conversation.NewStore(0), WithTurnTimeout(time.Second)).Routes()

	rec := do(t, h, http.MethodPost, "/chat", `{"message":"hi"}`)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestDeleteConversation(t *testing.T) {
	store := conversation.NewStore(0)
	store.GetOrCreate("abc")
	h := New(&fakeResponder{}, store).Routes()

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/chat/abc", "").Code)
	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/chat/abc", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/chat/abc", "").Code)
	assert.Equal(t, 0, store.Len())
}

func TestHealthcheck(t *testing.T) {
	store := conversation.NewStore(0)
	store.GetOrCreate("")
	h := New(&fakeResponder{}, store).Routes()

	rec := do(t, h, http.MethodGet, "/healthcheck", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 1, body["conversations"])

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodPost, "/healthcheck", "").Code)
}

func TestCORS(t *testing.T) {
	h := New(&fakeResponder{reply: agent.Reply{Text: "ok"}}, conversation.NewStore(0)).Routes()

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.Equal(t, "content-type", rec.Header().Get("Access-Control-Allow-Headers"))

	req = httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, http.StatusOK, rec.Code)
}
