package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledWithoutCredentials(t *testing.T) {
	assert.False(t, NewService("", "").Enabled())
	assert.False(t, NewService("token", "").Enabled())
	assert.False(t, NewService("", "chat").Enabled())
	assert.True(t, NewService("token", "chat").Enabled())
}

func TestDisabledServiceSendsNothing(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	s := NewService("", "")
	s.apiBase = srv.URL
	s.NotifyTrade(context.Background(), "buy", "pumpfun", "wallet", 0.1, "sig")
	s.NotifyError(context.Background(), "boom")
	assert.False(t, called)
}

func TestNotifyTradePostsMessage(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
	}))
	defer srv.Close()

	s := NewService("test-token", "42")
	s.apiBase = srv.URL
	s.NotifyTrade(context.Background(), "buy", "pumpfun", "8xot", 0.25, "5QzS")

	assert.Equal(t, "/bottest-token/sendMessage", gotPath)
	assert.Equal(t, "42", gotBody["chat_id"])
	assert.Contains(t, gotBody["text"], "buy on pumpfun")
	assert.Contains(t, gotBody["text"], "0.250000 SOL")
}

func TestNotifyGuardianStates(t *testing.T) {
	var texts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		texts = append(texts, body["text"])
	}))
	defer srv.Close()

	s := NewService("t", "c")
	s.apiBase = srv.URL
	s.NotifyGuardian(context.Background(), true, "strong")
	s.NotifyGuardian(context.Background(), false, "")

	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "guardian activated: strong")
	assert.Equal(t, "guardian deactivated", texts[1])
}

func TestDeliveryFailureIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewService("t", "c")
	s.apiBase = srv.URL
	// Must not panic or propagate anything.
	s.NotifyError(context.Background(), "rpc down")
}
