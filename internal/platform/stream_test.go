package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupRules_ReplacesExistingRules(t *testing.T) {
	var mu sync.Mutex
	var deleted bool
	var added string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tweets/search/stream/rules", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")

		if r.Method == http.MethodGet {
			w.Write([]byte(`{"data":[{"id":"old-1","value":"stale rule"}]}`))
			return
		}

		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode rules request body: %v", err)
			return
		}

		mu.Lock()
		defer mu.Unlock()
		if _, ok := body["delete"]; ok {
			deleted = true
			w.Write([]byte(`{}`))
			return
		}
		if add, ok := body["add"].([]interface{}); ok {
			rule := add[0].(map[string]interface{})
			added = rule["value"].(string)
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{}`))
			return
		}
		t.Errorf("unexpected rules request body: %v", body)
	}))
	defer server.Close()

	stream := NewTwitterStream("token", "projectrugguard", "riddle me this")
	stream.baseURL = server.URL

	require.NoError(t, stream.SetupRules(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, deleted)
	assert.Equal(t, `@projectrugguard "riddle me this" is:reply`, added)
}

func TestNextEvent_ParsesStreamPayloads(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tweets/search/stream", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		// keep-alive line, then a reply tweet, then a non-reply tweet
		w.Write([]byte("\n"))
		w.Write([]byte(`{"data":{"id":"555","text":"@projectrugguard riddle me this","author_id":"77","referenced_tweets":[{"type":"replied_to","id":"111"}]}}` + "\n"))
		w.Write([]byte(`{"data":{"id":"556","text":"riddle me this","author_id":"78"}}` + "\n"))
	}))
	defer server.Close()

	stream := NewTwitterStream("token", "projectrugguard", "riddle me this")
	stream.baseURL = server.URL
	defer stream.Close()

	first, err := stream.NextEvent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "555", first.EventID)
	assert.Equal(t, "77", first.ReplierAccountID)
	assert.Equal(t, "111", first.RepliedToPostID)
	assert.Equal(t, "555", first.ReplyTargetID)
	assert.True(t, first.IsReply())

	second, err := stream.NextEvent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "556", second.EventID)
	assert.False(t, second.IsReply())
}

func TestNextEvent_RepeatedConnectionDropsGiveUp(t *testing.T) {
	var connects int32
	// Every connect succeeds with an empty body, so each read hits EOF
	// immediately. That must exhaust the attempt cap, not loop forever.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&connects, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	stream := NewTwitterStream("token", "projectrugguard", "riddle me this")
	stream.baseURL = server.URL
	stream.reconnectWait = time.Millisecond

	_, err := stream.NextEvent(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "permanently lost")
	assert.Equal(t, int32(maxReconnectAttempts), atomic.LoadInt32(&connects))
}

func TestNextEvent_ReturnsOnContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	stream := NewTwitterStream("token", "projectrugguard", "riddle me this")
	stream.baseURL = server.URL

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := stream.NextEvent(ctx)
	assert.Error(t, err)
}
